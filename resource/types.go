package resource

import (
	"unsafe"

	bvk "github.com/andewx/bindlessvk"
	"github.com/andewx/bindlessvk/descriptor"
	"github.com/andewx/bindlessvk/internal/alloc"
	"github.com/andewx/bindlessvk/internal/memcopy"
	vk "github.com/vulkan-go/vulkan"
)

// Buffer is a gpu buffer plus the memory block backing it: handle, size,
// usage, memory block, optional mapped pointer, device address. Grounded
// on buffers.go's creation sequence.
type Buffer struct {
	device  vk.Device
	Native  vk.Buffer
	Block   alloc.Block
	Size    uint64
	Usage   bvk.BufferUsage
	address uint64
}

// NewBuffer wraps an already-created, already-bound vk.Buffer. If usage
// includes BufferUsageShaderDeviceAddress, its device address is resolved
// immediately via vkGetBufferDeviceAddress so Bind can hand it to the BDA
// table without a second driver round trip.
func NewBuffer(device vk.Device, native vk.Buffer, block alloc.Block, size uint64, usage bvk.BufferUsage) *Buffer {
	b := &Buffer{device: device, Native: native, Block: block, Size: size, Usage: usage}
	if usage.Has(bvk.BufferUsageShaderDeviceAddress) {
		b.address = vk.GetBufferDeviceAddress(device, &vk.BufferDeviceAddressInfo{
			SType:  vk.StructureTypeBufferDeviceAddressInfo,
			Buffer: native,
		})
	}
	return b
}

// Address returns the buffer-device-address of this buffer. Zero if the
// buffer was not created with BufferUsageShaderDeviceAddress.
func (b *Buffer) Address() uint64 { return b.address }

// Bind writes this buffer's device address into the BDA table at index.
// Slot assignment is caller-chosen.
func (b *Buffer) Bind(cache *descriptor.Cache, index uint32) error {
	return cache.BindBufferAddress(index, b.address)
}

// Data returns a mapped []byte view when the backing block is host-visible,
// or nil otherwise (device-local buffers must go through the upload heap).
func (b *Buffer) Data() []byte {
	if b.Block.Mapped == nil {
		return nil
	}
	return b.Block.Mapped
}

// Write copies data into the mapped region at offset. It is a no-op error
// (returns false) if the buffer is not host-visible.
func (b *Buffer) Write(data []byte, offset uint64) bool {
	if b.Block.Mapped == nil {
		return false
	}
	memcopy.CopyTo(unsafe.Pointer(&b.Block.Mapped[0]), offset, data)
	return true
}

func (b *Buffer) destroy() {
	vk.DestroyBuffer(b.device, b.Native, nil)
}

// Image is a gpu image plus its default view and backing memory block.
type Image struct {
	device vk.Device
	Native vk.Image
	View   vk.ImageView
	Block  alloc.Block
	Usage  bvk.ImageUsage
	Format vk.Format
	Extent vk.Extent3D
	Layout bvk.ImageLayout
}

// NewImage wraps an already-created image, view, and backing block.
func NewImage(device vk.Device, native vk.Image, view vk.ImageView, block alloc.Block, usage bvk.ImageUsage, format vk.Format, extent vk.Extent3D) *Image {
	return &Image{
		device: device, Native: native, View: view, Block: block,
		Usage: usage, Format: format, Extent: extent,
		Layout: bvk.ImageLayoutUndefined,
	}
}

func (i *Image) destroy() {
	var zero vk.ImageView
	if i.View != zero {
		vk.DestroyImageView(i.device, i.View, nil)
	}
	vk.DestroyImage(i.device, i.Native, nil)
}

// Bind writes this image's view into the bindless binding(s) matching its
// usage flags at index: STORAGE_IMAGE when ImageUsageStorage is set,
// SAMPLED_IMAGE when ImageUsageSampled is set. An image may be bound to both
// bindings at the same index if it carries both usages.
func (i *Image) Bind(cache *descriptor.Cache, index uint32) error {
	layout := vk.ImageLayout(i.Layout)
	if i.Usage.Has(bvk.ImageUsageStorage) {
		if err := cache.BindStorageImage(index, i.View, layout); err != nil {
			return err
		}
	}
	if i.Usage.Has(bvk.ImageUsageSampled) {
		if err := cache.BindSampledImage(index, i.View, layout); err != nil {
			return err
		}
	}
	return nil
}

// BindCombined writes this image's view together with sampler into the
// COMBINED_IMAGE_SAMPLER binding at index.
func (i *Image) BindCombined(cache *descriptor.Cache, index uint32, sampler vk.Sampler) error {
	return cache.BindCombinedImageSampler(index, i.View, sampler, vk.ImageLayout(i.Layout))
}

// Sampler wraps a native vk.Sampler and the bindless slot it occupies in the
// descriptor cache's Sampler binding.
type Sampler struct {
	device vk.Device
	Native vk.Sampler
	Slot   uint32
}

// NewSampler wraps an already-created vk.Sampler.
func NewSampler(device vk.Device, native vk.Sampler) *Sampler {
	return &Sampler{device: device, Native: native}
}

func (s *Sampler) destroy() {
	vk.DestroySampler(s.device, s.Native, nil)
}

// Bind writes this sampler into the SAMPLER binding at index and records the
// slot it now occupies.
func (s *Sampler) Bind(cache *descriptor.Cache, index uint32) error {
	if err := cache.BindSampler(index, s.Native); err != nil {
		return err
	}
	s.Slot = index
	return nil
}

// Semaphore wraps either a binary or a timeline vk.Semaphore.
type Semaphore struct {
	device   vk.Device
	Native   vk.Semaphore
	Timeline bool
}

// NewSemaphore wraps an already-created vk.Semaphore.
func NewSemaphore(device vk.Device, native vk.Semaphore, timeline bool) *Semaphore {
	return &Semaphore{device: device, Native: native, Timeline: timeline}
}

func (s *Semaphore) destroy() {
	vk.DestroySemaphore(s.device, s.Native, nil)
}

// Fence wraps a native vk.Fence used for CPU/GPU synchronization outside the
// timeline-semaphore frame-scheduling path (e.g. swapchain acquire).
type Fence struct {
	device vk.Device
	Native vk.Fence
}

// NewFence wraps an already-created vk.Fence.
func NewFence(device vk.Device, native vk.Fence) *Fence {
	return &Fence{device: device, Native: native}
}

func (f *Fence) destroy() {
	vk.DestroyFence(f.device, f.Native, nil)
}

// Wait blocks until the fence signals or timeoutNs elapses, returning true on
// signal.
func (f *Fence) Wait(timeoutNs uint64) bool {
	ret := vk.WaitForFences(f.device, 1, []vk.Fence{f.Native}, vk.True, timeoutNs)
	return ret == vk.Success
}

// VertexInputAttribute records one reflected vertex-stage input location,
// the only reflection this runtime performs: full shader reflection beyond
// vertex-input attribute locations is out of scope.
type VertexInputAttribute struct {
	Location uint32
	Name     string
	Format   vk.Format
}

// Shader wraps a compiled vk.ShaderModule plus the entry-point name and, for
// the vertex stage, the reflected input attribute locations the original
// RHI's ShaderCompiledInfo carries, minus reflection beyond vertex-input
// attributes.
type Shader struct {
	device     vk.Device
	Native     vk.ShaderModule
	Stage      vk.ShaderStageFlagBits
	EntryPoint string
	Inputs     []VertexInputAttribute // populated only for Stage == ShaderStageVertexBit
}

// NewShader wraps an already-compiled vk.ShaderModule.
func NewShader(device vk.Device, native vk.ShaderModule, stage vk.ShaderStageFlagBits, entryPoint string, inputs []VertexInputAttribute) *Shader {
	return &Shader{device: device, Native: native, Stage: stage, EntryPoint: entryPoint, Inputs: inputs}
}

func (s *Shader) destroy() {
	vk.DestroyShaderModule(s.device, s.Native, nil)
}

// PipelineKind distinguishes a raster pipeline from a compute pipeline; the
// raytracing variant is reserved. NewPipeline accepts any kind without
// checking it, and nothing in this module creates a raytracing pipeline.
type PipelineKind int

const (
	PipelineKindRaster PipelineKind = iota
	PipelineKindCompute
	PipelineKindRaytrace // reserved, not specified
)

// Pipeline wraps a native vk.Pipeline plus the pipeline layout it was built
// against, looked up from the descriptor cache's layout table by
// push-constant size.
type Pipeline struct {
	device vk.Device
	Native vk.Pipeline
	Layout vk.PipelineLayout
	Kind   PipelineKind
}

// NewPipeline wraps an already-created vk.Pipeline and the layout it was
// built against.
func NewPipeline(device vk.Device, native vk.Pipeline, layout vk.PipelineLayout, kind PipelineKind) *Pipeline {
	return &Pipeline{device: device, Native: native, Layout: layout, Kind: kind}
}

func (p *Pipeline) destroy() {
	vk.DestroyPipeline(p.device, p.Native, nil)
}
