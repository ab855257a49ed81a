package device

import (
	"fmt"
	"unsafe"

	"github.com/andewx/bindlessvk/queue"
	vk "github.com/vulkan-go/vulkan"
)

// createLogicalDevice creates the vk.Device for the families resolved by
// resolveQueueFamilies, requesting one queue per distinct family and
// chaining the Vulkan 1.2/1.3 feature structs that the bindless descriptor
// cache (descriptor indexing, buffer device address) and the command
// package (synchronization2, dynamic rendering) require. Generalizes the
// teacher's single vk.CreateDevice call in platform.go to a three-role,
// PNext-chained feature request.
func (d *Device) createLogicalDevice(families queueFamilies) error {
	extensions, err := enumerateDeviceExtensions(d.gpu)
	if err != nil {
		return fmt.Errorf("device: createLogicalDevice: %w", err)
	}
	enabled := make([]string, 0, len(requiredDeviceExtensions))
	for _, want := range requiredDeviceExtensions {
		if contains(extensions, want) {
			enabled = append(enabled, want)
		}
	}

	vk12Features := vk.PhysicalDeviceVulkan12Features{
		SType:                                     vk.StructureTypePhysicalDeviceVulkan12Features,
		TimelineSemaphore:                         vk.True,
		BufferDeviceAddress:                       vk.True,
		DescriptorIndexing:                        vk.True,
		DescriptorBindingPartiallyBound:           vk.True,
		DescriptorBindingUpdateUnusedWhilePending: vk.True,
		DescriptorBindingVariableDescriptorCount:  vk.True,
		ShaderSampledImageArrayNonUniformIndexing: vk.True,
		RuntimeDescriptorArray:                    vk.True,
		ScalarBlockLayout:                         vk.True,
		ShaderInt8:                                vk.True,
		DrawIndirectCount:                         vk.True,
		// The descriptor cache builds its STORAGE_IMAGE and STORAGE_BUFFER
		// bindings with UPDATE_AFTER_BIND (descriptor/cache.go); without
		// requesting these two feature bits that layout creation is a
		// validation-layer/driver contract violation.
		DescriptorBindingStorageImageUpdateAfterBind:  vk.True,
		DescriptorBindingStorageBufferUpdateAfterBind: vk.True,
	}
	vk13Features := vk.PhysicalDeviceVulkan13Features{
		SType:            vk.StructureTypePhysicalDeviceVulkan13Features,
		PNext:            unsafe.Pointer(&vk12Features),
		DynamicRendering: vk.True,
		Synchronization2: vk.True,
	}
	coreFeatures := vk.PhysicalDeviceFeatures{
		ShaderInt16:          vk.True,
		ShaderInt64:          vk.True,
		ShaderFloat64:        vk.True,
		FullDrawIndexUint32:  vk.True,
		MultiDrawIndirect:    vk.True,
		SamplerAnisotropy:    vk.True,
	}

	priority := float32(1.0)
	families32 := []uint32{families.graphics}
	if families.separateTransfer {
		families32 = append(families32, families.transfer)
	}
	if families.separateCompute && !(families.separateTransfer && families.compute == families.transfer) {
		families32 = append(families32, families.compute)
	}
	queueInfos := make([]vk.DeviceQueueCreateInfo, 0, len(families32))
	for _, fam := range families32 {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: fam,
			QueueCount:       1,
			PQueuePriorities: []float32{priority},
		})
	}

	var handle vk.Device
	ret := vk.CreateDevice(d.gpu, &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   unsafe.Pointer(&vk13Features),
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(enabled)),
		PpEnabledExtensionNames: enabled,
		PEnabledFeatures:        &coreFeatures,
	}, nil, &handle)
	if ret != vk.Success {
		return fmt.Errorf("device: vkCreateDevice: result %d", ret)
	}
	d.handle = handle
	return nil
}

// acquireQueues fetches the vk.Queue handles for each resolved family and
// wraps them in the queue package's submission-batching Queue type. All
// three share d.timeline so every queue signaling the device's one timeline
// semaphore claims strictly increasing values.
func (d *Device) acquireQueues(families queueFamilies) {
	var graphics vk.Queue
	vk.GetDeviceQueue(d.handle, families.graphics, 0, &graphics)
	d.Graphics = queue.New(d.handle, graphics, families.graphics, d.timeline)

	if families.separateTransfer {
		var transfer vk.Queue
		vk.GetDeviceQueue(d.handle, families.transfer, 0, &transfer)
		d.Transfer = queue.New(d.handle, transfer, families.transfer, d.timeline)
	} else {
		d.Transfer = d.Graphics
	}

	if families.separateCompute {
		var compute vk.Queue
		vk.GetDeviceQueue(d.handle, families.compute, 0, &compute)
		d.Compute = queue.New(d.handle, compute, families.compute, d.timeline)
	} else {
		d.Compute = d.Graphics
	}
}
