// Package upload implements the staging upload heap: a ring of fixed-size
// heap pools, each carved into heap blocks, used to stage buffer/image data
// before a transfer-queue copy and, where the destination resource is owned
// by a different queue family, a cross-queue ownership-transfer barrier pair
// hands it over. Grounded directly on
// original_source/render/public/render/upload_heap.hpp, including its exact
// ring/block constants, and buffers.go's staging-copy idiom.
package upload

import (
	"fmt"
	"sync"
	"unsafe"

	bvk "github.com/andewx/bindlessvk"
	"github.com/andewx/bindlessvk/command"
	"github.com/andewx/bindlessvk/internal/alloc"
	"github.com/andewx/bindlessvk/internal/memcopy"
	"github.com/andewx/bindlessvk/queue"
	vk "github.com/vulkan-go/vulkan"
)

const (
	// HeapBlockSize is the size of one HeapBlock's staging allocation.
	HeapBlockSize uint64 = 8 * 1024 * 1024
	// MaxUploadHeapPerPool bounds how many HeapBlocks a HeapPool may carve.
	MaxUploadHeapPerPool = 8
	// HeapPoolMaxSize bounds a HeapPool's total staging capacity
	// (MaxUploadHeapPerPool * HeapBlockSize).
	HeapPoolMaxSize uint64 = 64 * 1024 * 1024
	// MaxPoolInQueue bounds how many HeapPools may be in flight at once
	// across the ring.
	MaxPoolInQueue = 4
	// MaxUploadsPerPool bounds how many individual upload requests a single
	// HeapPool's info queue may hold before SendToGPU must be called.
	MaxUploadsPerPool = 64
)

// HeapBlock is one fixed-size staging sub-allocation within a HeapPool, with
// its own vk.Buffer bound over the block's memory range so it can serve as
// the source of a vkCmdCopyBuffer/vkCmdCopyBufferToImage.
type HeapBlock struct {
	Block   alloc.Block
	Staging vk.Buffer
	Cursor  uint64
}

func (hb *HeapBlock) remaining() uint64 {
	return HeapBlockSize - hb.Cursor
}

// BufferUploadInfo records a staged write destined for a device buffer copy.
type BufferUploadInfo struct {
	ID            uint64
	BlockIndex    int
	StagingOffset uint64
	Size          uint64
	DstBuffer     vk.Buffer
	DstOffset     uint64
	// DstQueueFamily is the family that will own and use DstBuffer once this
	// upload completes. When it differs from the heap's transfer family,
	// SendToGPU queues a release-side ownership-transfer barrier on the
	// transfer command buffer and requires a matching acquire-side barrier
	// recorded on a command buffer belonging to that family. Leave it equal
	// to the transfer family (or zero) when the transfer queue is the only
	// consumer.
	DstQueueFamily uint32
}

// ImageUploadInfo records a staged write destined for a device image copy.
type ImageUploadInfo struct {
	ID             uint64
	BlockIndex     int
	StagingOffset  uint64
	DstImage       vk.Image
	Region         vk.BufferImageCopy
	DstQueueFamily uint32
	// AspectMask selects which aspect an ownership-transfer barrier covers;
	// defaults to COLOR when left zero.
	AspectMask vk.ImageAspectFlags
}

// HeapPool is one ring slot: a set of HeapBlocks plus the buffer/image
// upload requests staged into them since the last send.
type HeapPool struct {
	blocks        []*HeapBlock
	bufferUploads []BufferUploadInfo
	imageUploads  []ImageUploadInfo
}

func newHeapPool() *HeapPool {
	return &HeapPool{}
}

func (p *HeapPool) totalSize() uint64 {
	return uint64(len(p.blocks)) * HeapBlockSize
}

// FenceInfo identifies a submitted upload batch: the device's real timeline
// semaphore plus the value that batch's vkQueueSubmit2 will signal on
// completion. Callers gate resource release, or a dependent pass's own
// submission, on this pair instead of a heap-private counter.
type FenceInfo struct {
	Semaphore vk.Semaphore
	Value     uint64
}

// Heap is the upload-heap ring itself: MaxPoolInQueue HeapPools cycling as
// SendToGPU retires the oldest and RequestHeaps/UploadDataTo* stage into the
// current one.
type Heap struct {
	mu             sync.Mutex
	device         vk.Device
	alloc          *alloc.Allocator
	memType        uint32
	transferFamily uint32
	pools          [MaxPoolInQueue]*HeapPool
	current        int

	nextID      uint64
	completions map[uint64]uint64 // upload ID -> timeline value it completes at
}

// New builds an upload heap allocating staging memory of hostMemType (must
// be HOST_VISIBLE | HOST_COHERENT) through allocator. transferFamily is the
// queue family SendToGPU submits through; an upload's DstQueueFamily is
// compared against it to decide whether an ownership-transfer barrier pair
// is required.
func New(device vk.Device, allocator *alloc.Allocator, hostMemType uint32, transferFamily uint32) *Heap {
	h := &Heap{
		device:         device,
		alloc:          allocator,
		memType:        hostMemType,
		transferFamily: transferFamily,
		completions:    make(map[uint64]uint64),
	}
	for i := range h.pools {
		h.pools[i] = newHeapPool()
	}
	return h
}

func (h *Heap) currentPool() *HeapPool {
	return h.pools[h.current%MaxPoolInQueue]
}

// createStagingBuffer binds a vk.Buffer of HeapBlockSize bytes over blk's
// already-allocated memory, so the block itself can be passed to
// vkCmdCopyBuffer as a source.
func (h *Heap) createStagingBuffer(blk alloc.Block) (vk.Buffer, error) {
	var buf vk.Buffer
	ret := vk.CreateBuffer(h.device, &vk.BufferCreateInfo{
		SType: vk.StructureTypeBufferCreateInfo,
		Size:  vk.DeviceSize(HeapBlockSize),
		Usage: vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
	}, nil, &buf)
	if ret != vk.Success {
		return buf, fmt.Errorf("vkCreateBuffer: result %d", ret)
	}
	ret = vk.BindBufferMemory(h.device, buf, blk.Memory, blk.Offset)
	if ret != vk.Success {
		vk.DestroyBuffer(h.device, buf, nil)
		return buf, fmt.Errorf("vkBindBufferMemory: result %d", ret)
	}
	return buf, nil
}

// RequestHeaps ensures the current pool has enough block capacity to stage
// size additional bytes, allocating new HeapBlocks (up to
// MaxUploadHeapPerPool / HeapPoolMaxSize) as needed.
func (h *Heap) RequestHeaps(size uint64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.requestHeapsLocked(size)
}

func (h *Heap) requestHeapsLocked(size uint64) error {
	pool := h.currentPool()
	have := uint64(0)
	for _, b := range pool.blocks {
		have += b.remaining()
	}
	for have < size {
		if len(pool.blocks) >= MaxUploadHeapPerPool || pool.totalSize()+HeapBlockSize > HeapPoolMaxSize {
			return fmt.Errorf("upload: pool exhausted (blocks=%d, size=%d) requesting %d more bytes",
				len(pool.blocks), pool.totalSize(), size)
		}
		blk, err := h.alloc.Allocate(h.memType, vk.DeviceSize(HeapBlockSize), 16, true)
		if err != nil {
			return fmt.Errorf("upload: RequestHeaps: %w", err)
		}
		staging, err := h.createStagingBuffer(blk)
		if err != nil {
			return fmt.Errorf("upload: RequestHeaps: %w", err)
		}
		pool.blocks = append(pool.blocks, &HeapBlock{Block: blk, Staging: staging})
		have += HeapBlockSize
	}
	return nil
}

// stage finds room for size bytes across the current pool's blocks (calling
// requestHeapsLocked to grow it if necessary) and copies data in, returning
// the block index and in-block offset written to.
func (h *Heap) stage(data []byte) (int, uint64, error) {
	size := uint64(len(data))
	if err := h.requestHeapsLocked(size); err != nil {
		return 0, 0, err
	}
	pool := h.currentPool()
	for i, b := range pool.blocks {
		if b.remaining() >= size {
			offset := b.Cursor
			if b.Block.Mapped != nil {
				memcopy.CopyTo(unsafe.Pointer(&b.Block.Mapped[0]), offset, data)
			}
			b.Cursor += size
			return i, offset, nil
		}
	}
	return 0, 0, fmt.Errorf("upload: stage: no block had room for %d bytes after RequestHeaps", size)
}

func (h *Heap) assignID() uint64 {
	h.nextID++
	return h.nextID
}

// UploadDataToBuffer stages data and records a BufferUploadInfo that
// SendToGPU will turn into a vkCmdCopyBuffer, returning the upload_id
// UploadCompleted later queries. dstQueueFamily is the family that will use
// dst after this upload; pass the heap's own transfer family (or 0) if the
// transfer queue is the only consumer.
func (h *Heap) UploadDataToBuffer(data []byte, dst vk.Buffer, dstOffset uint64, dstQueueFamily uint32) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pool := h.currentPool()
	if len(pool.bufferUploads)+len(pool.imageUploads) >= MaxUploadsPerPool {
		return 0, fmt.Errorf("upload: pool has reached MaxUploadsPerPool=%d", MaxUploadsPerPool)
	}
	blockIdx, offset, err := h.stage(data)
	if err != nil {
		return 0, err
	}
	id := h.assignID()
	pool.bufferUploads = append(pool.bufferUploads, BufferUploadInfo{
		ID:             id,
		BlockIndex:     blockIdx,
		StagingOffset:  offset,
		Size:           uint64(len(data)),
		DstBuffer:      dst,
		DstOffset:      dstOffset,
		DstQueueFamily: dstQueueFamily,
	})
	return id, nil
}

// UploadDataToImage stages data and records an ImageUploadInfo for a later
// vkCmdCopyBufferToImage, returning the upload_id UploadCompleted later
// queries.
func (h *Heap) UploadDataToImage(data []byte, dst vk.Image, region vk.BufferImageCopy, dstQueueFamily uint32) (uint64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pool := h.currentPool()
	if len(pool.bufferUploads)+len(pool.imageUploads) >= MaxUploadsPerPool {
		return 0, fmt.Errorf("upload: pool has reached MaxUploadsPerPool=%d", MaxUploadsPerPool)
	}
	blockIdx, offset, err := h.stage(data)
	if err != nil {
		return 0, err
	}
	region.BufferOffset = vk.DeviceSize(offset)
	id := h.assignID()
	pool.imageUploads = append(pool.imageUploads, ImageUploadInfo{
		ID:             id,
		BlockIndex:     blockIdx,
		StagingOffset:  offset,
		DstImage:       dst,
		Region:         region,
		DstQueueFamily: dstQueueFamily,
	})
	return id, nil
}

// needsOwnershipTransfer reports whether an upload destined for dstFamily
// must cross an ownership-transfer barrier before the transfer queue's work
// is visible to it.
func needsOwnershipTransfer(dstFamily, transferFamily uint32) bool {
	return dstFamily != 0 && dstFamily != transferFamily
}

// SendToGPU records every pending buffer copy (in insertion order), then
// every pending image copy, onto release — buffer copies before image
// copies within one send, matching the original's copy ordering. For any
// upload whose DstQueueFamily differs from the heap's transfer family, it
// also queues a release-side ownership-transfer barrier on release and the
// matching acquire-side barrier on acquire; acquire must already be a
// command buffer acquired from (and, by the caller, eventually submitted
// to) that destination queue — pass nil only when every pending upload's
// DstQueueFamily equals the transfer family. release is then enqueued onto
// transferQueue and actually submitted via vkQueueSubmit2 (unlike the local
// counter this replaces), advancing the ring to the next pool. Returns the
// FenceInfo identifying the real device timeline semaphore and the value
// this batch's work signals on completion.
func (h *Heap) SendToGPU(transferQueue *queue.Queue, release, acquire *command.Buffer) (FenceInfo, error) {
	h.mu.Lock()
	pool := h.currentPool()

	for _, u := range pool.bufferUploads {
		if u.BlockIndex >= len(pool.blocks) {
			h.mu.Unlock()
			return FenceInfo{}, fmt.Errorf("upload: SendToGPU: block index %d out of range (%d blocks)", u.BlockIndex, len(pool.blocks))
		}
		blk := pool.blocks[u.BlockIndex]
		vk.CmdCopyBuffer(release.Native(), blk.Staging, u.DstBuffer, 1, []vk.BufferCopy{{
			SrcOffset: vk.DeviceSize(u.StagingOffset),
			DstOffset: vk.DeviceSize(u.DstOffset),
			Size:      vk.DeviceSize(u.Size),
		}})
		if needsOwnershipTransfer(u.DstQueueFamily, h.transferFamily) {
			if acquire == nil {
				h.mu.Unlock()
				return FenceInfo{}, fmt.Errorf("upload: SendToGPU: upload %d requires an ownership transfer to family %d but no acquire command buffer was given", u.ID, u.DstQueueFamily)
			}
			release.QueueBufferBarrier(command.BufferBarrier{
				Buffer:         u.DstBuffer,
				SrcStage:       bvk.PipelineStageTransfer,
				DstStage:       bvk.PipelineStageTransfer,
				SrcAccess:      bvk.AccessTransferWrite,
				DstAccess:      bvk.AccessNone,
				Offset:         u.DstOffset,
				Size:           u.Size,
				SrcQueueFamily: h.transferFamily,
				DstQueueFamily: u.DstQueueFamily,
			})
			acquire.QueueBufferBarrier(command.BufferBarrier{
				Buffer:         u.DstBuffer,
				SrcStage:       bvk.PipelineStageTransfer,
				DstStage:       bvk.PipelineStageAllCommands,
				SrcAccess:      bvk.AccessNone,
				DstAccess:      bvk.AccessMemoryRead | bvk.AccessMemoryWrite,
				Offset:         u.DstOffset,
				Size:           u.Size,
				SrcQueueFamily: h.transferFamily,
				DstQueueFamily: u.DstQueueFamily,
			})
		}
	}
	for _, u := range pool.imageUploads {
		if u.BlockIndex >= len(pool.blocks) {
			h.mu.Unlock()
			return FenceInfo{}, fmt.Errorf("upload: SendToGPU: block index %d out of range (%d blocks)", u.BlockIndex, len(pool.blocks))
		}
		blk := pool.blocks[u.BlockIndex]
		vk.CmdCopyBufferToImage(release.Native(), blk.Staging, u.DstImage, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{u.Region})
		if needsOwnershipTransfer(u.DstQueueFamily, h.transferFamily) {
			if acquire == nil {
				h.mu.Unlock()
				return FenceInfo{}, fmt.Errorf("upload: SendToGPU: upload %d requires an ownership transfer to family %d but no acquire command buffer was given", u.ID, u.DstQueueFamily)
			}
			aspect := u.AspectMask
			if aspect == 0 {
				aspect = vk.ImageAspectFlags(vk.ImageAspectColorBit)
			}
			release.QueueImageBarrier(command.ImageBarrier{
				Image:          u.DstImage,
				SrcStage:       bvk.PipelineStageTransfer,
				DstStage:       bvk.PipelineStageTransfer,
				SrcAccess:      bvk.AccessTransferWrite,
				DstAccess:      bvk.AccessNone,
				OldLayout:      bvk.ImageLayoutTransferDstOptimal,
				NewLayout:      bvk.ImageLayoutTransferDstOptimal,
				AspectMask:     aspect,
				SrcQueueFamily: h.transferFamily,
				DstQueueFamily: u.DstQueueFamily,
			})
			acquire.QueueImageBarrier(command.ImageBarrier{
				Image:          u.DstImage,
				SrcStage:       bvk.PipelineStageTransfer,
				DstStage:       bvk.PipelineStageAllCommands,
				SrcAccess:      bvk.AccessNone,
				DstAccess:      bvk.AccessMemoryRead | bvk.AccessMemoryWrite,
				OldLayout:      bvk.ImageLayoutTransferDstOptimal,
				NewLayout:      bvk.ImageLayoutTransferDstOptimal,
				AspectMask:     aspect,
				SrcQueueFamily: h.transferFamily,
				DstQueueFamily: u.DstQueueFamily,
			})
		}
	}

	retiring := make([]uint64, 0, len(pool.bufferUploads)+len(pool.imageUploads))
	for _, u := range pool.bufferUploads {
		retiring = append(retiring, u.ID)
	}
	for _, u := range pool.imageUploads {
		retiring = append(retiring, u.ID)
	}
	pool.bufferUploads = nil
	pool.imageUploads = nil
	for _, b := range pool.blocks {
		b.Cursor = 0
	}
	h.current++
	h.mu.Unlock()

	if err := transferQueue.Enqueue(queue.SubmissionGroup{Buffers: []*command.Buffer{release}}); err != nil {
		return FenceInfo{}, fmt.Errorf("upload: SendToGPU: %w", err)
	}
	value, err := transferQueue.SendToGPU()
	if err != nil {
		return FenceInfo{}, fmt.Errorf("upload: SendToGPU: %w", err)
	}

	h.mu.Lock()
	for _, id := range retiring {
		h.completions[id] = value
	}
	h.mu.Unlock()

	return FenceInfo{Semaphore: transferQueue.Timeline().Semaphore(), Value: value}, nil
}

// UploadCompleted reports whether the upload identified by id has had its
// GPU work finish, given the device's currently completed timeline value.
// Returns false for an id that was never submitted (e.g. a typo, or one
// still only staged and not yet sent).
func (h *Heap) UploadCompleted(id uint64, completedValue uint64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	required, ok := h.completions[id]
	if !ok {
		return false
	}
	return completedValue >= required
}

// Destroy destroys every staging vk.Buffer this heap owns. Their memory
// blocks stay with the allocator, which is owned by the caller (shared
// across the upload heap and the resource pool's device-local allocations).
func (h *Heap) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, pool := range h.pools {
		for _, b := range pool.blocks {
			vk.DestroyBuffer(h.device, b.Staging, nil)
		}
		pool.blocks = nil
	}
}
