// Package command implements the command-pool/command-buffer allocation and
// recording layer: grow-or-reuse allocation (grounded on managers.go's
// CommandBufferManager), an explicit recording state machine, barrier
// batching, and dynamic-rendering-scoped draw/dispatch/blit/event recording.
package command

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// MaxCommandBuffersPerPool caps how many vk.CommandBuffers a single Pool will
// ever allocate as its per-pool command buffer budget. Once this many
// buffers are live, Acquire returns an error until one is Released back to
// the free-slot ring.
const MaxCommandBuffersPerPool = 16

// Pool allocates and recycles command buffers from a single vk.CommandPool,
// generalizing CommandBufferManager's grow-or-reuse pattern.
// Freed slots are tracked in a ring so individual buffers can be returned
// without resetting the whole pool. Not safe for concurrent use from
// multiple goroutines; callers needing multi-threaded recording use one Pool
// per ThreadKey (queue.Queue owns this mapping).
type Pool struct {
	device  vk.Device
	native  vk.CommandPool
	level   vk.CommandBufferLevel
	buffers []vk.CommandBuffer
	free    []int
}

// NewPool creates a vk.CommandPool on queueFamilyIndex with the
// RESET_COMMAND_BUFFER flag, allowing individual buffer reset.
func NewPool(device vk.Device, queueFamilyIndex uint32, level vk.CommandBufferLevel) (*Pool, error) {
	var native vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: queueFamilyIndex,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}, nil, &native)
	if ret != vk.Success {
		return nil, fmt.Errorf("command: vkCreateCommandPool: result %d", ret)
	}
	return &Pool{device: device, native: native, level: level}, nil
}

// Reset marks every command buffer handed out so far as recyclable. It does
// not reset the underlying vk.CommandPool itself (callers wanting that do so
// once all in-flight submissions referencing it have completed).
func (p *Pool) Reset() {
	p.free = p.free[:0]
	for i := range p.buffers {
		p.free = append(p.free, i)
	}
}

// Acquire returns a fresh or recycled command buffer in a state ready for
// vkBeginCommandBuffer, allocating a new native buffer only when no
// previously allocated one is free and MaxCommandBuffersPerPool has not been
// reached.
func (p *Pool) Acquire() (*Buffer, error) {
	if n := len(p.free); n > 0 {
		slot := p.free[n-1]
		p.free = p.free[:n-1]
		cb := p.buffers[slot]
		ret := vk.ResetCommandBuffer(cb, vk.CommandBufferResetFlags(vk.CommandBufferResetReleaseResourcesBit))
		if ret != vk.Success {
			return nil, fmt.Errorf("command: vkResetCommandBuffer: result %d", ret)
		}
		return newBuffer(cb, p, slot), nil
	}

	if len(p.buffers) >= MaxCommandBuffersPerPool {
		return nil, fmt.Errorf("command: pool exhausted: %d command buffers already allocated", MaxCommandBuffersPerPool)
	}

	bufs := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(p.device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.native,
		Level:              p.level,
		CommandBufferCount: 1,
	}, bufs)
	if ret != vk.Success {
		return nil, fmt.Errorf("command: vkAllocateCommandBuffers: result %d", ret)
	}
	slot := len(p.buffers)
	p.buffers = append(p.buffers, bufs[0])
	return newBuffer(bufs[0], p, slot), nil
}

// Release returns buf's slot to the free ring so a later Acquire can reuse
// it. The caller must not use buf again after calling this.
func (p *Pool) Release(buf *Buffer) {
	p.free = append(p.free, buf.slot)
}

// Destroy frees every allocated command buffer and the pool itself.
func (p *Pool) Destroy() {
	if len(p.buffers) > 0 {
		vk.FreeCommandBuffers(p.device, p.native, uint32(len(p.buffers)), p.buffers)
	}
	vk.DestroyCommandPool(p.device, p.native, nil)
}

// Native returns the underlying vk.CommandPool, e.g. for debug naming.
func (p *Pool) Native() vk.CommandPool {
	return p.native
}
