package descriptor

import (
	"encoding/binary"
	"fmt"
	"unsafe"

	"github.com/andewx/bindlessvk/internal/alloc"
	vk "github.com/vulkan-go/vulkan"
)

// Binding slots within the single bindless descriptor set, matching the
// layout initialize_descriptor_cache assigns in the original device.cpp:
// storage images, combined image samplers, sampled images and samplers each
// get their own binding, and a fifth binding exposes the buffer-device-
// address table as a single STORAGE_BUFFER used as an indexable array of
// uint64 addresses.
const (
	BindingStorageImage = iota
	BindingCombinedImageSampler
	BindingSampledImage
	BindingSampler
	BindingBufferDeviceAddress
)

// bdaEntrySize is the byte width of one BDA table slot: a single uint64
// buffer-device-address.
const bdaEntrySize = 8

// Config bounds each bindless binding's descriptor count, supplied by the
// caller rather than a fixed constant, passed through from DeviceInitInfo
// with defaults for zero fields. The counts are not clamped against device
// limits.
type Config struct {
	MaxImages   uint32 // shared by StorageImage/CombinedImageSampler/SampledImage bindings
	MaxSamplers uint32
	MaxBuffers  uint32 // number of BDA table slots; the BDA buffer is MaxBuffers*8 bytes
}

// Cache owns the single bindless descriptor set, its layout, the
// push-constant-size-keyed pipeline layout table, and the BDA table buffer.
type Cache struct {
	device    vk.Device
	pool      vk.DescriptorPool
	setLayout vk.DescriptorSetLayout
	set       vk.DescriptorSet
	Layouts   *LayoutTable
	Samplers  *SamplerCache

	cfg      Config
	bdaBuffer vk.Buffer
	bdaBlock  alloc.Block
}

// New builds the bindless descriptor set layout (PARTIALLY_BOUND |
// UPDATE_AFTER_BIND on every binding), pool, set, and the permanently-mapped
// BDA table buffer, then the pipeline layout table for push-constant sizes
// up to deviceMaxPushConstants.
func New(device vk.Device, allocator *alloc.Allocator, deviceMaxPushConstants uint32, cfg Config) (*Cache, error) {
	c := &Cache{device: device, cfg: cfg}

	bindingFlags := vk.DescriptorBindingFlags(
		vk.DescriptorBindingPartiallyBoundBit | vk.DescriptorBindingUpdateAfterBindBit,
	)
	flagsPerBinding := []vk.DescriptorBindingFlags{
		bindingFlags, bindingFlags, bindingFlags, bindingFlags, bindingFlags,
	}
	flagsInfo := vk.DescriptorSetLayoutBindingFlagsCreateInfo{
		SType:         vk.StructureTypeDescriptorSetLayoutBindingFlagsCreateInfo,
		BindingCount:  uint32(len(flagsPerBinding)),
		PBindingFlags: flagsPerBinding,
	}

	bindings := []vk.DescriptorSetLayoutBinding{
		binding(BindingStorageImage, vk.DescriptorTypeStorageImage, cfg.MaxImages),
		binding(BindingCombinedImageSampler, vk.DescriptorTypeCombinedImageSampler, cfg.MaxImages),
		binding(BindingSampledImage, vk.DescriptorTypeSampledImage, cfg.MaxImages),
		binding(BindingSampler, vk.DescriptorTypeSampler, cfg.MaxSamplers),
		binding(BindingBufferDeviceAddress, vk.DescriptorTypeStorageBuffer, 1),
	}

	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		PNext:        unsafe.Pointer(&flagsInfo),
		Flags:        vk.DescriptorSetLayoutCreateFlags(vk.DescriptorSetLayoutCreateUpdateAfterBindPoolBit),
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	ret := vk.CreateDescriptorSetLayout(device, &layoutInfo, nil, &c.setLayout)
	if ret != vk.Success {
		return nil, fmt.Errorf("descriptor: vkCreateDescriptorSetLayout: result %d", ret)
	}

	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: cfg.MaxImages},
		{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: cfg.MaxImages},
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: cfg.MaxImages},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: cfg.MaxSamplers},
		{Type: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1},
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateUpdateAfterBindBit),
		MaxSets:       1,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}
	ret = vk.CreateDescriptorPool(device, &poolInfo, nil, &c.pool)
	if ret != vk.Success {
		vk.DestroyDescriptorSetLayout(device, c.setLayout, nil)
		return nil, fmt.Errorf("descriptor: vkCreateDescriptorPool: result %d", ret)
	}

	setLayouts := []vk.DescriptorSetLayout{c.setLayout}
	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     c.pool,
		DescriptorSetCount: 1,
		PSetLayouts:        setLayouts,
	}
	sets := make([]vk.DescriptorSet, 1)
	ret = vk.AllocateDescriptorSets(device, &allocInfo, &sets[0])
	if ret != vk.Success {
		c.destroyPoolAndLayout()
		return nil, fmt.Errorf("descriptor: vkAllocateDescriptorSets: result %d", ret)
	}
	c.set = sets[0]

	if err := c.createBDABuffer(allocator); err != nil {
		c.destroyPoolAndLayout()
		return nil, err
	}

	layouts, err := NewLayoutTable(device, c.setLayout, deviceMaxPushConstants)
	if err != nil {
		c.destroyBDABuffer()
		c.destroyPoolAndLayout()
		return nil, err
	}
	c.Layouts = layouts
	c.Samplers = NewSamplerCache(device, c)
	return c, nil
}

// createBDABuffer allocates the single device-local-if-possible, host-
// visible, permanently-mapped storage buffer backing the BDA table (§4.2),
// and writes its descriptor into binding 4 of the bindless set.
func (c *Cache) createBDABuffer(allocator *alloc.Allocator) error {
	size := vk.DeviceSize(uint64(c.cfg.MaxBuffers) * bdaEntrySize)
	if size == 0 {
		size = bdaEntrySize
	}
	ret := vk.CreateBuffer(c.device, &vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Size:  size,
		Usage: vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit),
	}, nil, &c.bdaBuffer)
	if ret != vk.Success {
		return fmt.Errorf("descriptor: vkCreateBuffer(bda): result %d", ret)
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(c.device, c.bdaBuffer, &req)
	req.Deref()

	memType, ok := allocator.FindMemoryType(req.MemoryTypeBits, vk.MemoryPropertyFlags(
		vk.MemoryPropertyDeviceLocalBit|vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if !ok {
		memType, ok = allocator.FindMemoryType(req.MemoryTypeBits, vk.MemoryPropertyFlags(
			vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	}
	if !ok {
		vk.DestroyBuffer(c.device, c.bdaBuffer, nil)
		return fmt.Errorf("descriptor: no host-visible memory type for the BDA table")
	}

	block, err := allocator.Allocate(memType, req.Size, req.Alignment, true)
	if err != nil {
		vk.DestroyBuffer(c.device, c.bdaBuffer, nil)
		return fmt.Errorf("descriptor: BDA table allocation: %w", err)
	}
	if ret := vk.BindBufferMemory(c.device, c.bdaBuffer, block.Memory, block.Offset); ret != vk.Success {
		vk.DestroyBuffer(c.device, c.bdaBuffer, nil)
		return fmt.Errorf("descriptor: vkBindBufferMemory(bda): result %d", ret)
	}
	c.bdaBlock = block

	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          c.set,
		DstBinding:      BindingBufferDeviceAddress,
		DstArrayElement: 0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeStorageBuffer,
		PBufferInfo: []vk.DescriptorBufferInfo{{
			Buffer: c.bdaBuffer,
			Offset: 0,
			Range:  size,
		}},
	}
	vk.UpdateDescriptorSets(c.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return nil
}

func (c *Cache) destroyBDABuffer() {
	var zero vk.Buffer
	if c.bdaBuffer != zero {
		vk.DestroyBuffer(c.device, c.bdaBuffer, nil)
		c.bdaBuffer = zero
	}
}

func binding(slot int, ty vk.DescriptorType, count uint32) vk.DescriptorSetLayoutBinding {
	return vk.DescriptorSetLayoutBinding{
		Binding:         uint32(slot),
		DescriptorType:  ty,
		DescriptorCount: count,
		StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAll),
	}
}

// MaxImages, MaxSamplers, and MaxBuffers return the bounds this cache was
// configured with, so callers can size their own SlotAllocators.
func (c *Cache) MaxImages() uint32   { return c.cfg.MaxImages }
func (c *Cache) MaxSamplers() uint32 { return c.cfg.MaxSamplers }
func (c *Cache) MaxBuffers() uint32  { return c.cfg.MaxBuffers }

// BindStorageImage writes view into the STORAGE_IMAGE binding at index. The
// caller owns index allocation; the core only validates index < MaxImages.
func (c *Cache) BindStorageImage(index uint32, view vk.ImageView, layout vk.ImageLayout) error {
	if index >= c.cfg.MaxImages {
		return fmt.Errorf("descriptor: BindStorageImage: index %d >= MaxImages %d", index, c.cfg.MaxImages)
	}
	c.writeImage(BindingStorageImage, index, vk.DescriptorTypeStorageImage, view, vk.Sampler(vk.NullHandle), layout)
	return nil
}

// BindSampledImage writes view into the SAMPLED_IMAGE binding at index.
func (c *Cache) BindSampledImage(index uint32, view vk.ImageView, layout vk.ImageLayout) error {
	if index >= c.cfg.MaxImages {
		return fmt.Errorf("descriptor: BindSampledImage: index %d >= MaxImages %d", index, c.cfg.MaxImages)
	}
	c.writeImage(BindingSampledImage, index, vk.DescriptorTypeSampledImage, view, vk.Sampler(vk.NullHandle), layout)
	return nil
}

// BindCombinedImageSampler writes view+sampler into the COMBINED_IMAGE_SAMPLER
// binding at index.
func (c *Cache) BindCombinedImageSampler(index uint32, view vk.ImageView, sampler vk.Sampler, layout vk.ImageLayout) error {
	if index >= c.cfg.MaxImages {
		return fmt.Errorf("descriptor: BindCombinedImageSampler: index %d >= MaxImages %d", index, c.cfg.MaxImages)
	}
	c.writeImage(BindingCombinedImageSampler, index, vk.DescriptorTypeCombinedImageSampler, view, sampler, layout)
	return nil
}

// BindSampler writes sampler into the SAMPLER binding at index.
func (c *Cache) BindSampler(index uint32, sampler vk.Sampler) error {
	if index >= c.cfg.MaxSamplers {
		return fmt.Errorf("descriptor: BindSampler: index %d >= MaxSamplers %d", index, c.cfg.MaxSamplers)
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          c.set,
		DstBinding:      BindingSampler,
		DstArrayElement: index,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler: sampler,
		}},
	}
	vk.UpdateDescriptorSets(c.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return nil
}

func (c *Cache) writeImage(bindingSlot uint32, index uint32, ty vk.DescriptorType, view vk.ImageView, sampler vk.Sampler, layout vk.ImageLayout) {
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          c.set,
		DstBinding:      bindingSlot,
		DstArrayElement: index,
		DescriptorCount: 1,
		DescriptorType:  ty,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     sampler,
			ImageView:   view,
			ImageLayout: layout,
		}},
	}
	vk.UpdateDescriptorSets(c.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// BindBufferAddress writes address into BDA table slot index, so shaders
// indexing binding 4 at that slot resolve to this buffer.
func (c *Cache) BindBufferAddress(index uint32, address uint64) error {
	if index >= c.cfg.MaxBuffers {
		return fmt.Errorf("descriptor: BindBufferAddress: index %d >= MaxBuffers %d", index, c.cfg.MaxBuffers)
	}
	if c.bdaBlock.Mapped == nil {
		return fmt.Errorf("descriptor: BDA table is not mapped")
	}
	binary.LittleEndian.PutUint64(c.bdaBlock.Mapped[index*bdaEntrySize:], address)
	return nil
}

// Set returns the single bindless descriptor set, for vkCmdBindDescriptorSets.
func (c *Cache) Set() vk.DescriptorSet {
	return c.set
}

func (c *Cache) destroyPoolAndLayout() {
	vk.DestroyDescriptorPool(c.device, c.pool, nil)
	vk.DestroyDescriptorSetLayout(c.device, c.setLayout, nil)
}

// Destroy releases the pipeline layout table, descriptor pool/set and set
// layout, and the BDA table buffer.
func (c *Cache) Destroy() {
	if c.Samplers != nil {
		c.Samplers.Destroy()
	}
	if c.Layouts != nil {
		c.Layouts.Destroy()
	}
	c.destroyBDABuffer()
	c.destroyPoolAndLayout()
}
