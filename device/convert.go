package device

import (
	bvk "github.com/andewx/bindlessvk"
	vk "github.com/vulkan-go/vulkan"
)

// bufferUsageToVk translates the bit-flag BufferUsage enum mirroring the
// original RHI (flags.go) into the real vk.BufferUsageFlagBits, the same bit
// by bit translation gogpu-wgpu's hal/vulkan/convert.go uses for its own
// WebGPU-flavored usage enum.
func bufferUsageToVk(usage bvk.BufferUsage) vk.BufferUsageFlags {
	var flags vk.BufferUsageFlags
	if usage.Has(bvk.BufferUsageTransferSrc) {
		flags |= vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit)
	}
	if usage.Has(bvk.BufferUsageTransferDst) {
		flags |= vk.BufferUsageFlags(vk.BufferUsageTransferDstBit)
	}
	if usage.Has(bvk.BufferUsageUniform) {
		flags |= vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)
	}
	if usage.Has(bvk.BufferUsageStorage) {
		flags |= vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit)
	}
	if usage.Has(bvk.BufferUsageIndex) {
		flags |= vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit)
	}
	if usage.Has(bvk.BufferUsageVertex) {
		flags |= vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)
	}
	if usage.Has(bvk.BufferUsageIndirect) {
		flags |= vk.BufferUsageFlags(vk.BufferUsageIndirectBufferBit)
	}
	if usage.Has(bvk.BufferUsageShaderDeviceAddress) {
		flags |= vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit)
	}
	return flags
}

// imageUsageToVk translates ImageUsage the same way.
func imageUsageToVk(usage bvk.ImageUsage) vk.ImageUsageFlags {
	var flags vk.ImageUsageFlags
	if usage.Has(bvk.ImageUsageTransferSrc) {
		flags |= vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit)
	}
	if usage.Has(bvk.ImageUsageTransferDst) {
		flags |= vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)
	}
	if usage.Has(bvk.ImageUsageSampled) {
		flags |= vk.ImageUsageFlags(vk.ImageUsageSampledBit)
	}
	if usage.Has(bvk.ImageUsageStorage) {
		flags |= vk.ImageUsageFlags(vk.ImageUsageStorageBit)
	}
	if usage.Has(bvk.ImageUsageColorAttachment) {
		flags |= vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	}
	if usage.Has(bvk.ImageUsageDepthStencilAttachment) {
		flags |= vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit)
	}
	if usage.Has(bvk.ImageUsageTransientAttachment) {
		flags |= vk.ImageUsageFlags(vk.ImageUsageTransientAttachmentBit)
	}
	if usage.Has(bvk.ImageUsageInputAttachment) {
		flags |= vk.ImageUsageFlags(vk.ImageUsageInputAttachmentBit)
	}
	return flags
}
