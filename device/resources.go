package device

import (
	"fmt"
	"unsafe"

	bvk "github.com/andewx/bindlessvk"
	"github.com/andewx/bindlessvk/command"
	"github.com/andewx/bindlessvk/descriptor"
	"github.com/andewx/bindlessvk/queue"
	"github.com/andewx/bindlessvk/resource"
	"github.com/andewx/bindlessvk/upload"
	vk "github.com/vulkan-go/vulkan"
)

// BufferInfo describes a buffer to create: size, usage, the MemoryUsage bits
// steering allocator placement, and sharing mode across queue families.
type BufferInfo struct {
	Size        uint64
	Usage       bvk.BufferUsage
	Memory      bvk.MemoryUsage
	SharingMode vk.SharingMode
}

// ImageInfo describes an image to create.
type ImageInfo struct {
	Type       vk.ImageType
	Format     vk.Format
	Samples    vk.SampleCountFlagBits
	Tiling     vk.ImageTiling
	Usage      bvk.ImageUsage
	Memory     bvk.MemoryUsage
	Extent     vk.Extent3D
	MipLevels  uint32
	ClearValue vk.ClearValue
}

// memoryPropertyFlags translates a MemoryUsage bitset into the
// vk.MemoryPropertyFlags the allocator should require of the backing memory
// type.
func memoryPropertyFlags(usage bvk.MemoryUsage) vk.MemoryPropertyFlags {
	var want vk.MemoryPropertyFlags
	if usage.Has(bvk.MemoryUsageHostWritable) {
		want |= vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	}
	if usage.Has(bvk.MemoryUsageHostTransferable) {
		want |= vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCachedBit)
	}
	if want == 0 {
		want = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	}
	return want
}

// CreateBuffer allocates a vk.Buffer and its backing memory block, inserts
// it into the device's buffer pool, and returns a reference-counted handle.
// The caller is responsible for binding the returned buffer into the
// bindless BDA table (Buffer.Bind) once it has a device address and a
// slot from the caller's own allocation scheme, unless BufferUsageStorage
// addressing is managed entirely by the caller.
func (d *Device) CreateBuffer(info BufferInfo) (resource.Ref[*resource.Buffer], error) {
	usageFlags := bufferUsageToVk(info.Usage)
	sharing := info.SharingMode
	if sharing == 0 {
		sharing = vk.SharingModeExclusive
	}
	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(info.Size),
		Usage:       usageFlags,
		SharingMode: sharing,
	}
	var native vk.Buffer
	ret := vk.CreateBuffer(d.handle, &createInfo, nil, &native)
	if ret != vk.Success {
		return resource.Ref[*resource.Buffer]{}, fmt.Errorf("device: vkCreateBuffer: result %d", ret)
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.handle, native, &reqs)
	reqs.Deref()

	memTypeIx, ok := d.Allocator.FindMemoryType(reqs.MemoryTypeBits, memoryPropertyFlags(info.Memory))
	if !ok {
		vk.DestroyBuffer(d.handle, native, nil)
		return resource.Ref[*resource.Buffer]{}, fmt.Errorf("device: CreateBuffer: no memory type satisfies requested MemoryUsage flags")
	}
	host := info.Memory.Has(bvk.MemoryUsageHostWritable) || info.Memory.Has(bvk.MemoryUsageHostTransferable)
	block, err := d.Allocator.Allocate(memTypeIx, reqs.Size, reqs.Alignment, host)
	if err != nil {
		vk.DestroyBuffer(d.handle, native, nil)
		return resource.Ref[*resource.Buffer]{}, fmt.Errorf("device: CreateBuffer: %w", err)
	}

	if ret := vk.BindBufferMemory(d.handle, native, block.Memory, block.Offset); ret != vk.Success {
		vk.DestroyBuffer(d.handle, native, nil)
		return resource.Ref[*resource.Buffer]{}, fmt.Errorf("device: vkBindBufferMemory: result %d", ret)
	}

	buf := resource.NewBuffer(d.handle, native, block, info.Size, info.Usage)
	slot := d.buffers.Insert(buf)
	return resource.NewRef(d.buffers, slot), nil
}

// CreateBoundBuffer is CreateBuffer plus an automatic bindless BDA table
// bind: it allocates a fresh BDA slot from the device's own free list and
// writes the resulting buffer's device address into it, returning both the
// Ref and the slot it now occupies. BufferUsageShaderDeviceAddress is added
// to info.Usage if the caller left it out.
func (d *Device) CreateBoundBuffer(info BufferInfo) (resource.Ref[*resource.Buffer], uint32, error) {
	if !info.Usage.Has(bvk.BufferUsageShaderDeviceAddress) {
		info.Usage |= bvk.BufferUsageShaderDeviceAddress
	}
	ref, err := d.CreateBuffer(info)
	if err != nil {
		return resource.Ref[*resource.Buffer]{}, 0, err
	}
	slot, ok := d.bufferSlots.Alloc()
	if !ok {
		ref.Release()
		return resource.Ref[*resource.Buffer]{}, 0, fmt.Errorf("device: CreateBoundBuffer: BDA table exhausted its %d slots", d.bufferSlots.Max())
	}
	buf, _ := ref.Value()
	if err := buf.Bind(d.Descriptors, slot); err != nil {
		d.bufferSlots.Release(slot)
		ref.Release()
		return resource.Ref[*resource.Buffer]{}, 0, err
	}
	return ref, slot, nil
}

// CreateImage allocates a vk.Image, its default vk.ImageView, and backing
// memory, inserts it into the device's image pool, and returns a
// reference-counted handle. The image starts in ImageLayoutUndefined; the
// caller transitions it via command.Buffer.QueueImageBarrier before first use.
func (d *Device) CreateImage(info ImageInfo) (resource.Ref[*resource.Image], error) {
	usageFlags := imageUsageToVk(info.Usage)
	mipLevels := info.MipLevels
	if mipLevels == 0 {
		mipLevels = 1
	}
	samples := info.Samples
	if samples == 0 {
		samples = vk.SampleCount1Bit
	}
	createInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     info.Type,
		Format:        info.Format,
		Extent:        info.Extent,
		MipLevels:     mipLevels,
		ArrayLayers:   1,
		Samples:       samples,
		Tiling:        info.Tiling,
		Usage:         usageFlags,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var native vk.Image
	ret := vk.CreateImage(d.handle, &createInfo, nil, &native)
	if ret != vk.Success {
		return resource.Ref[*resource.Image]{}, fmt.Errorf("device: vkCreateImage: result %d", ret)
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.handle, native, &reqs)
	reqs.Deref()

	memTypeIx, ok := d.Allocator.FindMemoryType(reqs.MemoryTypeBits, memoryPropertyFlags(info.Memory))
	if !ok {
		vk.DestroyImage(d.handle, native, nil)
		return resource.Ref[*resource.Image]{}, fmt.Errorf("device: CreateImage: no memory type satisfies requested MemoryUsage flags")
	}
	block, err := d.Allocator.Allocate(memTypeIx, reqs.Size, reqs.Alignment, false)
	if err != nil {
		vk.DestroyImage(d.handle, native, nil)
		return resource.Ref[*resource.Image]{}, fmt.Errorf("device: CreateImage: %w", err)
	}
	if ret := vk.BindImageMemory(d.handle, native, block.Memory, block.Offset); ret != vk.Success {
		vk.DestroyImage(d.handle, native, nil)
		return resource.Ref[*resource.Image]{}, fmt.Errorf("device: vkBindImageMemory: result %d", ret)
	}

	aspect := vk.ImageAspectFlags(vk.ImageAspectColorBit)
	if info.Usage.Has(bvk.ImageUsageDepthStencilAttachment) {
		aspect = vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	}
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    native,
		ViewType: viewTypeForImageType(info.Type),
		Format:   info.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     mipLevels,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if ret := vk.CreateImageView(d.handle, &viewInfo, nil, &view); ret != vk.Success {
		vk.DestroyImage(d.handle, native, nil)
		return resource.Ref[*resource.Image]{}, fmt.Errorf("device: vkCreateImageView: result %d", ret)
	}

	img := resource.NewImage(d.handle, native, view, block, info.Usage, info.Format, info.Extent)
	slot := d.images.Insert(img)
	return resource.NewRef(d.images, slot), nil
}

// CreateBoundImage is CreateImage plus an automatic bindless bind: it
// allocates a fresh image-table slot and writes the image's view into
// whichever of STORAGE_IMAGE/SAMPLED_IMAGE bindings its usage flags select.
func (d *Device) CreateBoundImage(info ImageInfo) (resource.Ref[*resource.Image], uint32, error) {
	ref, err := d.CreateImage(info)
	if err != nil {
		return resource.Ref[*resource.Image]{}, 0, err
	}
	slot, ok := d.imageSlots.Alloc()
	if !ok {
		ref.Release()
		return resource.Ref[*resource.Image]{}, 0, fmt.Errorf("device: CreateBoundImage: image table exhausted its %d slots", d.imageSlots.Max())
	}
	img, _ := ref.Value()
	if err := img.Bind(d.Descriptors, slot); err != nil {
		d.imageSlots.Release(slot)
		ref.Release()
		return resource.Ref[*resource.Image]{}, 0, err
	}
	return ref, slot, nil
}

func viewTypeForImageType(t vk.ImageType) vk.ImageViewType {
	switch t {
	case vk.ImageType1d:
		return vk.ImageViewType1d
	case vk.ImageType3d:
		return vk.ImageViewType3d
	default:
		return vk.ImageViewType2d
	}
}

// CreateSampler resolves desc through the descriptor cache's content-
// addressed sampler cache, creating and binding a new vk.Sampler only the
// first time this exact configuration is requested.
func (d *Device) CreateSampler(desc descriptor.SamplerDesc) (resource.SamplerHandle, error) {
	slot, err := d.Descriptors.Samplers.Get(desc)
	if err != nil {
		return resource.SamplerHandle{}, err
	}
	return resource.NewSamplerHandle(d.Descriptors.Samplers, desc, slot), nil
}

// ReleaseBuffer and ReleaseImage submit whatever work is already enqueued on
// q via Queue.SendToGPUAndRelease and release ref gated on exactly that
// submission's completion, rather than an immediate (and therefore
// GPU-unsafe) release. This is the real, non-error-rollback call site that
// exercises resource.Ref.WithReadyValue against the timeline value
// Queue.SendToGPU actually signals: the caller must have already recorded
// and enqueued onto q every command buffer that reads ref before calling
// this.
func (d *Device) ReleaseBuffer(ref resource.Ref[*resource.Buffer], q *queue.Queue) (uint64, error) {
	return q.SendToGPUAndRelease(ref.ReleaseAfter())
}

func (d *Device) ReleaseImage(ref resource.Ref[*resource.Image], q *queue.Queue) (uint64, error) {
	return q.SendToGPUAndRelease(ref.ReleaseAfter())
}

// ReleaseSampler is ReleaseBuffer/ReleaseImage's equivalent for a
// content-addressed SamplerHandle: handle's cache record is only retired
// (and, once its refcount reaches zero, zombie-gated) on q's next
// submission's completion.
func (d *Device) ReleaseSampler(handle resource.SamplerHandle, q *queue.Queue) (uint64, error) {
	return q.SendToGPUAndRelease(handle.ReleaseAfter())
}

// CreateEvent creates a vk.Event for the finer-grained intra-command-buffer
// synchronization handshake command.Buffer.SetEvent/ResetEvent/WaitEvent
// expose as an alternative to a full pipeline barrier, inserts it into the
// device's event pool, and returns a reference-counted handle.
func (d *Device) CreateEvent() (resource.Ref[*resource.Event], error) {
	var native vk.Event
	ret := vk.CreateEvent(d.handle, &vk.EventCreateInfo{
		SType: vk.StructureTypeEventCreateInfo,
	}, nil, &native)
	if ret != vk.Success {
		return resource.Ref[*resource.Event]{}, fmt.Errorf("device: vkCreateEvent: result %d", ret)
	}
	ev := resource.NewEvent(d.handle, native)
	slot := d.events.Insert(ev)
	return resource.NewRef(d.events, slot), nil
}

// FlushUploads submits every upload staged onto d.Upload through d.Transfer:
// release must be a command buffer already acquired (and begun) on
// d.Transfer, and acquire must be one already acquired on whichever queue
// family owns a pending upload's destination resource, or nil if every
// pending upload targets the transfer family itself. Returns the
// upload.FenceInfo identifying the real device timeline value this batch's
// copies (and any ownership-transfer barriers) complete at.
func (d *Device) FlushUploads(release, acquire *command.Buffer) (upload.FenceInfo, error) {
	return d.Upload.SendToGPU(d.Transfer, release, acquire)
}

// CreateShader compiles SPIR-V bytecode into a vk.ShaderModule. entryPoint
// and inputs are carried through unmodified for later pipeline creation and
// vertex-input binding description; inputs should be nil for non-vertex
// stages.
func (d *Device) CreateShader(spirv []byte, stage vk.ShaderStageFlagBits, entryPoint string, inputs []resource.VertexInputAttribute) (*resource.Shader, error) {
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		return nil, fmt.Errorf("device: CreateShader: SPIR-V byte length %d is not a non-zero multiple of 4", len(spirv))
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(spirv)),
		PCode:    sliceUint32(spirv),
	}
	var native vk.ShaderModule
	ret := vk.CreateShaderModule(d.handle, &createInfo, nil, &native)
	if ret != vk.Success {
		return nil, fmt.Errorf("device: vkCreateShaderModule: result %d", ret)
	}
	return resource.NewShader(d.handle, native, stage, entryPoint, inputs), nil
}

// sliceUint32 reinterprets a SPIR-V byte blob as the uint32 words
// vk.ShaderModuleCreateInfo.PCode expects, the same raw reinterpret cast the
// teacher's own shader-loading helper uses.
func sliceUint32(data []byte) []uint32 {
	return unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)
}
