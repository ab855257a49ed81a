// Package device is the runtime hub: it owns the Vulkan instance and
// logical device, the three queues (graphics/present, transfer, compute),
// the bindless descriptor cache, the resource pools, and the upload heap.
// Initialize follows the eight-step bring-up sequence of
// original_source/rhi/private/src/vulkan/device.cpp's APIContext::initialize,
// expressed in instance.go/platform.go/context.go's idiom (explicit
// vk.CreateInstance/vk.CreateDevice calls, manual extension/layer
// negotiation against vk.Enumerate*).
package device

import (
	"fmt"
	"unsafe"

	bvk "github.com/andewx/bindlessvk"
	"github.com/andewx/bindlessvk/descriptor"
	"github.com/andewx/bindlessvk/internal/alloc"
	"github.com/andewx/bindlessvk/queue"
	"github.com/andewx/bindlessvk/resource"
	"github.com/andewx/bindlessvk/upload"
	vk "github.com/vulkan-go/vulkan"
)

// requiredDeviceExtensions are the extensions every selected physical device
// must support: swapchain presentation, dynamic rendering, timeline
// semaphores, buffer device address, and descriptor indexing for the
// bindless set.
var requiredDeviceExtensions = []string{
	"VK_KHR_swapchain",
	"VK_KHR_dynamic_rendering",
	"VK_KHR_timeline_semaphore",
	"VK_KHR_buffer_device_address",
	"VK_EXT_descriptor_indexing",
	"VK_KHR_synchronization2",
}

// DeviceInitInfo configures Device.Initialize.
type DeviceInitInfo struct {
	ApplicationName string
	Validation      bool
	// CreateSurface, when set, is invoked once the instance exists (matching
	// app.VulkanSurface(instance)'s callback in platform.go) and its result
	// is used to require presentation support when resolving queue families.
	// Leave nil for a headless/compute-only device.
	CreateSurface    func(vk.Instance) (vk.Surface, error)
	MaxPushConstants uint32 // clamped to the device's reported limit; 0 = use device max

	// MaxImages, MaxSamplers, and MaxBuffers bound the bindless descriptor
	// cache's STORAGE_IMAGE/COMBINED_IMAGE_SAMPLER/SAMPLED_IMAGE, SAMPLER, and
	// BDA table binding counts respectively. Zero defaults to a modest but
	// usable bindless budget.
	MaxImages   uint32
	MaxSamplers uint32
	MaxBuffers  uint32

	// PreferredDeviceType, when non-nil, is tried before the default
	// discrete-GPU-first fallback order in selectPhysicalDevice.
	PreferredDeviceType *vk.PhysicalDeviceType
}

const (
	defaultMaxImages   = 4096
	defaultMaxSamplers = 1024
	defaultMaxBuffers  = 4096
)

// Device is the runtime hub described in the package doc.
type Device struct {
	instance       vk.Instance
	debugMessenger vk.DebugReportCallback
	gpu            vk.PhysicalDevice
	handle         vk.Device
	surface        vk.Surface
	memProps       vk.PhysicalDeviceMemoryProperties
	limits         vk.PhysicalDeviceLimits

	Graphics *queue.Queue
	Transfer *queue.Queue
	Compute  *queue.Queue

	Descriptors *descriptor.Cache
	Allocator   *alloc.Allocator
	Upload      *upload.Heap

	buffers  *resource.Pool[*resource.Buffer]
	images   *resource.Pool[*resource.Image]
	samplers *resource.Pool[*resource.Sampler]
	events   *resource.Pool[*resource.Event]

	// imageSlots and bufferSlots hand out the bindless indices CreateImage
	// and CreateBuffer bind their resources at. Kept here rather than in
	// descriptor.Cache per that package's Open Questions note: the cache
	// only validates index < max*, the caller owns the free list.
	imageSlots  *descriptor.SlotAllocator
	bufferSlots *descriptor.SlotAllocator

	timelineSemaphore vk.Semaphore
	timeline          *queue.Timeline
	completedValue    uint64
}

// Initialize brings up a Device end to end: instance, optional debug
// messenger, physical device selection, queue family resolution, logical
// device, queue handles, allocator, resource pools, descriptor cache, and
// upload heap. On any failure it tears down everything created so far and
// returns a non-nil error (no partial state is left live).
func Initialize(info DeviceInitInfo) (dev *Device, err error) {
	d := &Device{}
	defer func() {
		if err != nil {
			d.Destroy()
		}
	}()

	if err = d.createInstance(info); err != nil {
		return nil, err
	}
	if info.Validation {
		if err = d.createDebugMessenger(); err != nil {
			return nil, err
		}
	}
	if info.CreateSurface != nil {
		d.surface, err = info.CreateSurface(d.instance)
		if err != nil {
			return nil, fmt.Errorf("device: Initialize: CreateSurface: %w", err)
		}
	}
	if err = d.selectPhysicalDevice(info.PreferredDeviceType); err != nil {
		return nil, err
	}
	families, err := d.resolveQueueFamilies(d.surface)
	if err != nil {
		return nil, err
	}
	if err = d.createLogicalDevice(families); err != nil {
		return nil, err
	}
	if err = d.createTimelineSemaphore(); err != nil {
		return nil, err
	}
	d.acquireQueues(families)

	d.Allocator = alloc.New(d.handle, d.memProps)

	pushConstMax := info.MaxPushConstants
	if pushConstMax == 0 || pushConstMax > d.limits.MaxPushConstantsSize {
		pushConstMax = d.limits.MaxPushConstantsSize
	}
	cfg := descriptor.Config{
		MaxImages:   info.MaxImages,
		MaxSamplers: info.MaxSamplers,
		MaxBuffers:  info.MaxBuffers,
	}
	if cfg.MaxImages == 0 {
		cfg.MaxImages = defaultMaxImages
	}
	if cfg.MaxSamplers == 0 {
		cfg.MaxSamplers = defaultMaxSamplers
	}
	if cfg.MaxBuffers == 0 {
		cfg.MaxBuffers = defaultMaxBuffers
	}
	d.Descriptors, err = descriptor.New(d.handle, d.Allocator, pushConstMax, cfg)
	if err != nil {
		return nil, fmt.Errorf("device: Initialize: %w", err)
	}

	hostMemType, ok := d.Allocator.FindMemoryType(^uint32(0),
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if !ok {
		return nil, fmt.Errorf("device: Initialize: no host-visible/coherent memory type available")
	}
	d.Upload = upload.New(d.handle, d.Allocator, hostMemType, d.Transfer.FamilyIndex())

	d.buffers = resource.NewPool[*resource.Buffer](64)
	d.images = resource.NewPool[*resource.Image](64)
	d.samplers = resource.NewPool[*resource.Sampler](16)
	d.events = resource.NewPool[*resource.Event](8)

	d.imageSlots = descriptor.NewSlotAllocator(cfg.MaxImages)
	d.bufferSlots = descriptor.NewSlotAllocator(cfg.MaxBuffers)

	bvk.Logger().Info("device initialized", "pushConstantMax", pushConstMax)
	return d, nil
}

func (d *Device) createTimelineSemaphore() error {
	typeInfo := vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
		SemaphoreType: vk.SemaphoreTypeTimeline,
		InitialValue:  0,
	}
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(d.handle, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: unsafe.Pointer(&typeInfo),
	}, nil, &sem)
	if ret != vk.Success {
		return fmt.Errorf("device: vkCreateSemaphore(timeline): result %d", ret)
	}
	d.timelineSemaphore = sem
	d.timeline = queue.NewTimeline(sem)
	return nil
}

// TimelineSemaphore returns the device's frame-scheduling timeline
// semaphore, signaled by queue submissions and waited on before reclaiming
// zombie resources.
func (d *Device) TimelineSemaphore() vk.Semaphore { return d.timelineSemaphore }

// CompletedValue queries the timeline semaphore's current counter value.
func (d *Device) CompletedValue() (uint64, error) {
	var value uint64
	ret := vk.GetSemaphoreCounterValue(d.handle, d.timelineSemaphore, &value)
	if ret != vk.Success {
		return 0, fmt.Errorf("device: vkGetSemaphoreCounterValue: result %d", ret)
	}
	d.completedValue = value
	return value, nil
}

// ClearGarbage reaps every zombie resource across all pools, and the
// descriptor cache's content-addressed sampler cache, whose submitted
// timeline value has been reached by the device's timeline semaphore. This
// replaces the naive vkDeviceWaitIdle-before-free pattern destroy paths
// otherwise fall back to.
func (d *Device) ClearGarbage() (int, error) {
	completed, err := d.CompletedValue()
	if err != nil {
		return 0, err
	}
	n := d.buffers.ClearGarbage(completed)
	n += d.images.ClearGarbage(completed)
	n += d.samplers.ClearGarbage(completed)
	n += d.events.ClearGarbage(completed)
	n += d.Descriptors.Samplers.ClearGarbage(completed)
	return n, nil
}

// Buffers, Images, Samplers, and Events expose the device's resource pools
// for the upload/command packages and application code to insert/release
// into.
func (d *Device) Buffers() *resource.Pool[*resource.Buffer]   { return d.buffers }
func (d *Device) Images() *resource.Pool[*resource.Image]     { return d.images }
func (d *Device) Samplers() *resource.Pool[*resource.Sampler] { return d.samplers }
func (d *Device) Events() *resource.Pool[*resource.Event]     { return d.events }

// Handle returns the underlying vk.Device.
func (d *Device) Handle() vk.Device { return d.handle }

// PhysicalDevice returns the selected vk.PhysicalDevice.
func (d *Device) PhysicalDevice() vk.PhysicalDevice { return d.gpu }

// Surface returns the presentation surface created during Initialize, or
// vk.NullSurface for a headless/compute-only device.
func (d *Device) Surface() vk.Surface { return d.surface }

// Destroy tears down everything Initialize created, in reverse order. Safe
// to call on a partially-initialized Device (e.g. from Initialize's own
// failure path) since every step guards on its handle being non-zero.
func (d *Device) Destroy() {
	var zeroSem vk.Semaphore
	if d.timelineSemaphore != zeroSem {
		vk.DestroySemaphore(d.handle, d.timelineSemaphore, nil)
	}
	if d.Upload != nil {
		d.Upload.Destroy()
	}
	if d.Descriptors != nil {
		d.Descriptors.Destroy()
	}
	if d.Allocator != nil {
		d.Allocator.Destroy()
	}
	// Transfer/Compute may alias Graphics (shared-family fallback in
	// acquireQueues) — destroy each distinct *queue.Queue exactly once.
	destroyed := make(map[*queue.Queue]bool, 3)
	for _, q := range []*queue.Queue{d.Graphics, d.Transfer, d.Compute} {
		if q != nil && !destroyed[q] {
			q.Destroy()
			destroyed[q] = true
		}
	}
	var zeroDev vk.Device
	if d.handle != zeroDev {
		vk.DestroyDevice(d.handle, nil)
	}
	if d.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(d.instance, d.debugMessenger, nil)
	}
	if d.surface != vk.NullSurface {
		vk.DestroySurface(d.instance, d.surface, nil)
	}
	var zeroInst vk.Instance
	if d.instance != zeroInst {
		vk.DestroyInstance(d.instance, nil)
	}
}
