package device

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// queueFamilies records the family index resolved for each of the three
// queue roles this runtime requires, generalizing queue.go's single
// graphics/present CoreQueue scan to graphics, transfer, and compute.
type queueFamilies struct {
	graphics uint32
	transfer uint32
	compute  uint32
	// separateTransfer/separateCompute record whether a dedicated family
	// (distinct from graphics) was found for that role, so
	// createLogicalDevice knows whether to request an extra
	// vk.DeviceQueueCreateInfo entry and acquireQueues whether to fetch a
	// separate queue or reuse the graphics one.
	separateTransfer bool
	separateCompute  bool
}

// maxScannedDevices bounds how many enumerated physical devices the
// bucket/score pass below considers, assuming a system exposes at most a
// handful of distinct Vulkan devices.
const maxScannedDevices = 8

// deviceTypeFallbackOrder is the bucket preference used when the caller
// supplies no preferredDevice, or no device of the preferred type is a valid
// candidate: discrete GPUs first, falling back toward software rasterizers.
var deviceTypeFallbackOrder = []vk.PhysicalDeviceType{
	vk.PhysicalDeviceTypeDiscreteGpu,
	vk.PhysicalDeviceTypeIntegratedGpu,
	vk.PhysicalDeviceTypeVirtualGpu,
	vk.PhysicalDeviceTypeCpu,
	vk.PhysicalDeviceTypeOther,
}

// candidateDevice is a physical device that passed the graphics-queue and
// required-extension filters, scored for selection within its type bucket.
type candidateDevice struct {
	gpu   vk.PhysicalDevice
	props vk.PhysicalDeviceProperties
	score uint64
}

// scoreDevice sums a handful of capability-correlated limits fields,
// divided by 1000 so the score stays a small comparable integer across
// wildly different device classes.
func scoreDevice(limits vk.PhysicalDeviceLimits) uint64 {
	sum := uint64(limits.MaxMemoryAllocationCount) +
		uint64(limits.MaxBoundDescriptorSets) +
		uint64(limits.MaxDrawIndirectCount) +
		uint64(limits.MaxDrawIndexedIndexValue)
	return sum / 1000
}

// selectPhysicalDevice enumerates the instance's physical devices (up to
// maxScannedDevices), buckets the ones exposing a graphics-capable queue
// family and every required device extension by vk.PhysicalDeviceType, and
// picks the highest-scored candidate from the caller's preferred bucket if
// one has a candidate, else the highest-scored candidate from the first
// non-empty bucket in deviceTypeFallbackOrder: a bucket-then-score selection
// algorithm generalizing instance.go's first-match is_valid_device scan.
func (d *Device) selectPhysicalDevice(preferred *vk.PhysicalDeviceType) error {
	var count uint32
	ret := vk.EnumeratePhysicalDevices(d.instance, &count, nil)
	if ret != vk.Success {
		return fmt.Errorf("device: vkEnumeratePhysicalDevices(count): result %d", ret)
	}
	if count == 0 {
		return fmt.Errorf("device: no Vulkan physical devices found")
	}
	if count > maxScannedDevices {
		count = maxScannedDevices
	}
	gpus := make([]vk.PhysicalDevice, count)
	ret = vk.EnumeratePhysicalDevices(d.instance, &count, gpus)
	if ret != vk.Success {
		return fmt.Errorf("device: vkEnumeratePhysicalDevices: result %d", ret)
	}

	buckets := make(map[vk.PhysicalDeviceType][]candidateDevice)
	for _, gpu := range gpus {
		var queueCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &queueCount, nil)
		if queueCount == 0 {
			continue
		}
		qprops := make([]vk.QueueFamilyProperties, queueCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &queueCount, qprops)
		hasGraphics := false
		for _, p := range qprops {
			p.Deref()
			if p.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
				hasGraphics = true
				break
			}
		}
		if !hasGraphics {
			continue
		}
		extensions, err := enumerateDeviceExtensions(gpu)
		if err != nil {
			return fmt.Errorf("device: selectPhysicalDevice: %w", err)
		}
		missing := 0
		for _, want := range requiredDeviceExtensions {
			if !contains(extensions, want) {
				missing++
			}
		}
		if missing > 0 {
			continue
		}

		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(gpu, &props)
		props.Deref()
		props.Limits.Deref()

		buckets[props.DeviceType] = append(buckets[props.DeviceType], candidateDevice{
			gpu: gpu, props: props, score: scoreDevice(props.Limits),
		})
	}

	order := deviceTypeFallbackOrder
	if preferred != nil {
		order = append([]vk.PhysicalDeviceType{*preferred}, deviceTypeFallbackOrder...)
	}

	var chosen *candidateDevice
	for _, ty := range order {
		list := buckets[ty]
		if len(list) == 0 {
			continue
		}
		best := list[0]
		for _, c := range list[1:] {
			if c.score > best.score {
				best = c
			}
		}
		chosen = &best
		break
	}
	if chosen == nil {
		return fmt.Errorf("device: no physical device exposes a graphics queue and every required extension")
	}

	d.gpu = chosen.gpu
	d.limits = chosen.props.Limits
	vk.GetPhysicalDeviceMemoryProperties(d.gpu, &d.memProps)
	d.memProps.Deref()
	return nil
}

// resolveQueueFamilies finds the best family for each of the three queue
// roles: graphics (and, if surface is non-null, present capability on that
// same family), a dedicated transfer family if one exists without the
// graphics bit, and a dedicated compute family if one exists without the
// graphics bit. Falling back to the graphics family for a role is always
// valid since GRAPHICS implies TRANSFER and usually COMPUTE support.
func (d *Device) resolveQueueFamilies(surface vk.Surface) (queueFamilies, error) {
	var families queueFamilies

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(d.gpu, &count, nil)
	props := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(d.gpu, &count, props)

	graphicsFound := false
	for i := uint32(0); i < count; i++ {
		p := props[i]
		p.Deref()
		if p.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			continue
		}
		if surface != vk.NullSurface {
			var supportsPresent vk.Bool32
			vk.GetPhysicalDeviceSurfaceSupport(d.gpu, i, surface, &supportsPresent)
			if !supportsPresent.B() {
				continue
			}
		}
		families.graphics = i
		graphicsFound = true
		break
	}
	if !graphicsFound {
		return families, fmt.Errorf("device: no graphics queue family supports the requested surface")
	}

	families.transfer = families.graphics
	for i := uint32(0); i < count; i++ {
		p := props[i]
		p.Deref()
		if p.QueueFlags&vk.QueueFlags(vk.QueueTransferBit) != 0 &&
			p.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			families.transfer = i
			families.separateTransfer = true
			break
		}
	}

	families.compute = families.graphics
	for i := uint32(0); i < count; i++ {
		p := props[i]
		p.Deref()
		if p.QueueFlags&vk.QueueFlags(vk.QueueComputeBit) != 0 &&
			p.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 {
			families.compute = i
			families.separateCompute = true
			break
		}
	}

	return families, nil
}

func enumerateDeviceExtensions(gpu vk.PhysicalDevice) ([]string, error) {
	var count uint32
	ret := vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil)
	if ret != vk.Success {
		return nil, fmt.Errorf("vkEnumerateDeviceExtensionProperties(count): result %d", ret)
	}
	props := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateDeviceExtensionProperties(gpu, "", &count, props)
	if ret != vk.Success {
		return nil, fmt.Errorf("vkEnumerateDeviceExtensionProperties: result %d", ret)
	}
	names := make([]string, 0, count)
	for _, p := range props {
		p.Deref()
		names = append(names, vk.ToString(p.ExtensionName[:]))
	}
	return names, nil
}
