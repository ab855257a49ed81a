// Package alloc implements a small VMA-style sub-allocator over
// vk.DeviceMemory: each memory type gets a list of fixed-size blocks carved
// into linear sub-allocations, so buffer/image creation does not call
// vkAllocateMemory per resource. Grounded on the allocator bring-up step of
// original_source/rhi/private/src/vulkan/device.cpp's APIContext::initialize
// and buffers.go's raw vk.AllocateMemory/vk.MapMemory calls.
package alloc

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"
)

// DefaultBlockSize is the size of each underlying vk.DeviceMemory allocation
// a memory type's block list grows by: 64 MiB, eight times the upload heap's
// 8 MiB HeapBlockSize and equal to its HeapPoolMaxSize.
const DefaultBlockSize vk.DeviceSize = 64 * 1024 * 1024

// Block is a sub-allocation carved out of a larger vk.DeviceMemory
// allocation: the unit resource.Pool hands to a Buffer or Image.
type Block struct {
	Memory    vk.DeviceMemory
	Offset    vk.DeviceSize
	Size      vk.DeviceSize
	MemTypeIx uint32
	Mapped    []byte // non-nil only for host-visible memory types
}

type deviceMemoryChunk struct {
	memory vk.DeviceMemory
	size   vk.DeviceSize
	cursor vk.DeviceSize
	mapped []byte
}

// Allocator hands out Blocks from a growing set of device-memory chunks, one
// chunk list per memory type index.
type Allocator struct {
	device     vk.Device
	memProps   vk.PhysicalDeviceMemoryProperties
	chunks     map[uint32][]*deviceMemoryChunk
	blockSize  vk.DeviceSize
}

// New returns an Allocator bound to device, using memProps (already
// Deref()'d) to resolve memory-type indices.
func New(device vk.Device, memProps vk.PhysicalDeviceMemoryProperties) *Allocator {
	return &Allocator{
		device:    device,
		memProps:  memProps,
		chunks:    make(map[uint32][]*deviceMemoryChunk),
		blockSize: DefaultBlockSize,
	}
}

// FindMemoryType returns the index of a memory type within typeBits whose
// property flags contain all of want, or false if none match.
func (a *Allocator) FindMemoryType(typeBits uint32, want vk.MemoryPropertyFlags) (uint32, bool) {
	for i := uint32(0); i < a.memProps.MemoryTypeCount; i++ {
		if typeBits&(1<<i) == 0 {
			continue
		}
		mt := a.memProps.MemoryTypes[i]
		mt.Deref()
		if vk.MemoryPropertyFlags(mt.PropertyFlags)&want == want {
			return i, true
		}
	}
	return 0, false
}

// Allocate returns a Block of at least size bytes aligned to align, from the
// given memory type index, growing the chunk list if no existing chunk has
// room. host, when true, maps the backing chunk (if it is not mapped
// already) so Block.Mapped is non-nil.
func (a *Allocator) Allocate(memTypeIx uint32, size, align vk.DeviceSize, host bool) (Block, error) {
	for _, c := range a.chunks[memTypeIx] {
		offset := alignUp(c.cursor, align)
		if offset+size <= c.size {
			if host && c.mapped == nil {
				if err := a.mapChunk(c); err != nil {
					return Block{}, err
				}
			}
			c.cursor = offset + size
			blk := Block{Memory: c.memory, Offset: offset, Size: size, MemTypeIx: memTypeIx}
			if c.mapped != nil {
				blk.Mapped = c.mapped[offset : offset+size]
			}
			return blk, nil
		}
	}

	chunkSize := a.blockSize
	if size > chunkSize {
		chunkSize = size
	}
	var mem vk.DeviceMemory
	ret := vk.AllocateMemory(a.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  chunkSize,
		MemoryTypeIndex: memTypeIx,
	}, nil, &mem)
	if ret != vk.Success {
		return Block{}, fmt.Errorf("alloc: vkAllocateMemory(%d bytes, type %d): result %d", chunkSize, memTypeIx, ret)
	}

	c := &deviceMemoryChunk{memory: mem, size: chunkSize}
	a.chunks[memTypeIx] = append(a.chunks[memTypeIx], c)

	if host {
		if err := a.mapChunk(c); err != nil {
			return Block{}, err
		}
	}

	blk := Block{Memory: mem, Offset: 0, Size: size, MemTypeIx: memTypeIx}
	c.cursor = size
	if c.mapped != nil {
		blk.Mapped = c.mapped[0:size]
	}
	return blk, nil
}

func (a *Allocator) mapChunk(c *deviceMemoryChunk) error {
	var ptr unsafe.Pointer
	ret := vk.MapMemory(a.device, c.memory, 0, c.size, 0, &ptr)
	if ret != vk.Success {
		return fmt.Errorf("alloc: vkMapMemory: result %d", ret)
	}
	c.mapped = unsafe.Slice((*byte)(ptr), int(c.size))
	return nil
}

func alignUp(v, align vk.DeviceSize) vk.DeviceSize {
	if align == 0 {
		return v
	}
	return (v + align - 1) &^ (align - 1)
}

// Destroy frees every chunk this allocator owns. Callers must ensure no
// Block from this allocator is still referenced by a live resource.
func (a *Allocator) Destroy() {
	for _, list := range a.chunks {
		for _, c := range list {
			vk.UnmapMemory(a.device, c.memory)
			vk.FreeMemory(a.device, c.memory, nil)
		}
	}
	a.chunks = make(map[uint32][]*deviceMemoryChunk)
}
