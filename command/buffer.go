package command

import (
	"fmt"
	"unsafe"

	bvk "github.com/andewx/bindlessvk"
	vk "github.com/vulkan-go/vulkan"
)

// State is the command buffer's explicit recording state machine,
// mirroring the Vulkan spec's own command buffer lifecycle
// (initial/recording/executable/pending/invalid) that renderpass.go leaves
// implicit in call order.
type State int

const (
	StateInitial State = iota
	StateRecording
	StateExecutable
	StatePending
	StateInvalid
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateRecording:
		return "recording"
	case StateExecutable:
		return "executable"
	case StatePending:
		return "pending"
	default:
		return "invalid"
	}
}

// Buffer wraps a vk.CommandBuffer with the recording state machine and a
// pending barrier batch.
type Buffer struct {
	native  vk.CommandBuffer
	state   State
	pending barrierBatch

	pool *Pool
	slot int

	// recordingTimeline is the device timeline semaphore value this buffer's
	// submission will signal on completion, stamped by the owning Queue's
	// SendToGPU. It is distinct from Queue.TimelineValue, which reports the
	// queue-wide monotonic counter: this field records the specific value
	// THIS buffer's work completes at, so a caller holding only a *Buffer can
	// tell whether its own submission (not just "something on the queue") has
	// finished.
	recordingTimeline uint64
}

func newBuffer(native vk.CommandBuffer, pool *Pool, slot int) *Buffer {
	return &Buffer{native: native, state: StateInitial, pool: pool, slot: slot}
}

// Native returns the underlying vk.CommandBuffer.
func (b *Buffer) Native() vk.CommandBuffer { return b.native }

// State returns the buffer's current recording state.
func (b *Buffer) State() State { return b.state }

// SetRecordingTimeline stamps the timeline value this buffer's submission
// will signal on completion, called by Queue.SendToGPU right after
// vkQueueSubmit2.
func (b *Buffer) SetRecordingTimeline(value uint64) { b.recordingTimeline = value }

// RecordingTimeline returns the timeline value most recently stamped by
// SetRecordingTimeline, or 0 if this buffer has never been submitted.
func (b *Buffer) RecordingTimeline() uint64 { return b.recordingTimeline }

// Release returns this buffer to its owning Pool's free-slot ring once the
// caller has confirmed (via the device timeline) that recordingTimeline has
// been reached. Safe to call only after MarkCompleted.
func (b *Buffer) Release() {
	if b.pool != nil {
		b.pool.Release(b)
	}
}

func (b *Buffer) transition(from []State, to State, op string) error {
	for _, f := range from {
		if b.state == f {
			b.state = to
			return nil
		}
	}
	return fmt.Errorf("command: %s invalid from state %s", op, b.state)
}

// Begin transitions Initial -> Recording and calls vkBeginCommandBuffer.
func (b *Buffer) Begin(oneTimeSubmit bool) error {
	if err := b.transition([]State{StateInitial}, StateRecording, "Begin"); err != nil {
		return err
	}
	var flags vk.CommandBufferUsageFlags
	if oneTimeSubmit {
		flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	ret := vk.BeginCommandBuffer(b.native, &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	})
	if ret != vk.Success {
		b.state = StateInvalid
		return fmt.Errorf("command: vkBeginCommandBuffer: result %d", ret)
	}
	return nil
}

// End flushes any pending barrier batch, transitions Recording -> Executable
// and calls vkEndCommandBuffer.
func (b *Buffer) End() error {
	b.FlushBarriers()
	if err := b.transition([]State{StateRecording}, StateExecutable, "End"); err != nil {
		return err
	}
	ret := vk.EndCommandBuffer(b.native)
	if ret != vk.Success {
		b.state = StateInvalid
		return fmt.Errorf("command: vkEndCommandBuffer: result %d", ret)
	}
	return nil
}

// MarkSubmitted transitions Executable -> Pending once the buffer has been
// handed to vkQueueSubmit.
func (b *Buffer) MarkSubmitted() error {
	return b.transition([]State{StateExecutable}, StatePending, "MarkSubmitted")
}

// MarkCompleted transitions Pending -> Initial once the queue confirms this
// submission's timeline value has been reached, making the buffer available
// for Acquire/Begin again.
func (b *Buffer) MarkCompleted() error {
	return b.transition([]State{StatePending}, StateInitial, "MarkCompleted")
}

// --- barrier batching -------------------------------------------------

// barrierBatch accumulates buffer/image/memory barriers recorded through
// PipelineBarrier (below) until FlushBarriers or End issues a single
// vkCmdPipelineBarrier2, avoiding one driver call per individual resource
// transition the way the original RHI's command buffer batches them.
type barrierBatch struct {
	srcStage vk.PipelineStageFlags2
	dstStage vk.PipelineStageFlags2
	memory   []vk.MemoryBarrier2
	buffers  []vk.BufferMemoryBarrier2
	images   []vk.ImageMemoryBarrier2
}

// BufferBarrier describes a queued buffer memory barrier.
type BufferBarrier struct {
	Buffer      vk.Buffer
	SrcStage    bvk.PipelineStage
	DstStage    bvk.PipelineStage
	SrcAccess   bvk.MemoryAccessType
	DstAccess   bvk.MemoryAccessType
	Offset, Size uint64
	SrcQueueFamily, DstQueueFamily uint32
}

// ImageBarrier describes a queued image memory barrier, including a layout
// transition.
type ImageBarrier struct {
	Image       vk.Image
	SrcStage    bvk.PipelineStage
	DstStage    bvk.PipelineStage
	SrcAccess   bvk.MemoryAccessType
	DstAccess   bvk.MemoryAccessType
	OldLayout   bvk.ImageLayout
	NewLayout   bvk.ImageLayout
	AspectMask  vk.ImageAspectFlags
	SrcQueueFamily, DstQueueFamily uint32
}

// MaxBarrierBatchSize caps how many barriers of a single kind (buffer,
// image, or memory) accumulate in a Buffer's pending batch before
// QueueBufferBarrier/QueueImageBarrier auto-flush it, keeping a single
// vkCmdPipelineBarrier2 call from growing unbounded within one recording
// scope.
const MaxBarrierBatchSize = 16

// QueueBufferBarrier appends a buffer barrier to the pending batch, flushing
// first if the buffer-barrier batch is already at MaxBarrierBatchSize.
func (b *Buffer) QueueBufferBarrier(bar BufferBarrier) {
	if len(b.pending.buffers) >= MaxBarrierBatchSize {
		b.FlushBarriers()
	}
	b.pending.buffers = append(b.pending.buffers, vk.BufferMemoryBarrier2{
		SType:               vk.StructureTypeBufferMemoryBarrier2,
		SrcStageMask:        vk.PipelineStageFlags2(bar.SrcStage),
		DstStageMask:        vk.PipelineStageFlags2(bar.DstStage),
		SrcAccessMask:       vk.AccessFlags2(bar.SrcAccess),
		DstAccessMask:       vk.AccessFlags2(bar.DstAccess),
		SrcQueueFamilyIndex: bar.SrcQueueFamily,
		DstQueueFamilyIndex: bar.DstQueueFamily,
		Buffer:              bar.Buffer,
		Offset:               vk.DeviceSize(bar.Offset),
		Size:                 vk.DeviceSize(bar.Size),
	})
}

// QueueImageBarrier appends an image barrier to the pending batch, flushing
// first if the image-barrier batch is already at MaxBarrierBatchSize.
func (b *Buffer) QueueImageBarrier(bar ImageBarrier) {
	if len(b.pending.images) >= MaxBarrierBatchSize {
		b.FlushBarriers()
	}
	aspect := bar.AspectMask
	if aspect == 0 {
		aspect = vk.ImageAspectFlags(vk.ImageAspectColorBit)
	}
	b.pending.images = append(b.pending.images, vk.ImageMemoryBarrier2{
		SType:               vk.StructureTypeImageMemoryBarrier2,
		SrcStageMask:        vk.PipelineStageFlags2(bar.SrcStage),
		DstStageMask:        vk.PipelineStageFlags2(bar.DstStage),
		SrcAccessMask:       vk.AccessFlags2(bar.SrcAccess),
		DstAccessMask:       vk.AccessFlags2(bar.DstAccess),
		OldLayout:           vk.ImageLayout(bar.OldLayout),
		NewLayout:           vk.ImageLayout(bar.NewLayout),
		SrcQueueFamilyIndex: bar.SrcQueueFamily,
		DstQueueFamilyIndex: bar.DstQueueFamily,
		Image:               bar.Image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     vk.RemainingMipLevels,
			BaseArrayLayer: 0,
			LayerCount:     vk.RemainingArrayLayers,
		},
	})
}

// PendingBarrierCount reports how many barriers are queued but not yet
// flushed, for tests and diagnostics.
func (b *Buffer) PendingBarrierCount() int {
	return len(b.pending.buffers) + len(b.pending.images) + len(b.pending.memory)
}

// FlushBarriers issues one vkCmdPipelineBarrier2 covering every queued
// barrier and clears the batch. A no-op if nothing is queued.
func (b *Buffer) FlushBarriers() {
	if b.PendingBarrierCount() == 0 {
		return
	}
	info := vk.DependencyInfo{
		SType:                    vk.StructureTypeDependencyInfo,
		MemoryBarrierCount:       uint32(len(b.pending.memory)),
		PMemoryBarriers:          b.pending.memory,
		BufferMemoryBarrierCount: uint32(len(b.pending.buffers)),
		PBufferMemoryBarriers:    b.pending.buffers,
		ImageMemoryBarrierCount:  uint32(len(b.pending.images)),
		PImageMemoryBarriers:     b.pending.images,
	}
	vk.CmdPipelineBarrier2(b.native, &info)
	b.pending = barrierBatch{}
}

// --- dynamic rendering + draw/dispatch/blit/events ---------------------

// ColorAttachment describes one color attachment for BeginRendering.
type ColorAttachment struct {
	View       vk.ImageView
	Layout     vk.ImageLayout
	LoadOp     vk.AttachmentLoadOp
	StoreOp    vk.AttachmentStoreOp
	ClearColor vk.ClearColorValue
}

// DepthStencilAttachment describes the optional depth and/or stencil
// attachment for BeginRendering. Leave View at its zero value to omit that
// aspect entirely.
type DepthStencilAttachment struct {
	View           vk.ImageView
	Layout         vk.ImageLayout
	LoadOp         vk.AttachmentLoadOp
	StoreOp        vk.AttachmentStoreOp
	ClearDepth     float32
	ClearStencil   uint32
}

func (a DepthStencilAttachment) toRenderingInfo() vk.RenderingAttachmentInfo {
	return vk.RenderingAttachmentInfo{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   a.View,
		ImageLayout: a.Layout,
		LoadOp:      a.LoadOp,
		StoreOp:     a.StoreOp,
		ClearValue:  vk.ClearValue(vk.NewClearDepthStencil(a.ClearDepth, a.ClearStencil)),
	}
}

// BeginRendering starts a dynamic-rendering scope over the given color
// attachments plus optional depth/stencil attachments and render area,
// replacing renderpass.go's VkRenderPass/VkFramebuffer objects with
// VK_KHR_dynamic_rendering. Pass a zero-value DepthStencilAttachment (nil
// View) to omit depth and/or stencil.
func (b *Buffer) BeginRendering(area vk.Rect2D, colors []ColorAttachment, depth, stencil *DepthStencilAttachment) {
	b.FlushBarriers()
	infos := make([]vk.RenderingAttachmentInfo, len(colors))
	for i, c := range colors {
		infos[i] = vk.RenderingAttachmentInfo{
			SType:       vk.StructureTypeRenderingAttachmentInfo,
			ImageView:   c.View,
			ImageLayout: c.Layout,
			LoadOp:      c.LoadOp,
			StoreOp:     c.StoreOp,
			ClearValue:  vk.ClearValue(vk.NewClearValue(c.ClearColor.Float32[:])),
		}
	}
	renderInfo := vk.RenderingInfo{
		SType:                vk.StructureTypeRenderingInfo,
		RenderArea:           area,
		LayerCount:           1,
		ColorAttachmentCount: uint32(len(infos)),
		PColorAttachments:    infos,
	}
	var depthInfo, stencilInfo vk.RenderingAttachmentInfo
	if depth != nil {
		depthInfo = depth.toRenderingInfo()
		renderInfo.PDepthAttachment = &depthInfo
	}
	if stencil != nil {
		stencilInfo = stencil.toRenderingInfo()
		renderInfo.PStencilAttachment = &stencilInfo
	}
	vk.CmdBeginRendering(b.native, &renderInfo)
}

// EndRendering ends the dynamic-rendering scope started by BeginRendering.
func (b *Buffer) EndRendering() {
	vk.CmdEndRendering(b.native)
}

// BindPipeline binds a graphics or compute pipeline plus the single bindless
// descriptor set at the layout the pipeline was built against.
func (b *Buffer) BindPipeline(bindPoint vk.PipelineBindPoint, pipeline vk.Pipeline, layout vk.PipelineLayout, set vk.DescriptorSet) {
	vk.CmdBindPipeline(b.native, bindPoint, pipeline)
	sets := []vk.DescriptorSet{set}
	vk.CmdBindDescriptorSets(b.native, bindPoint, layout, 0, 1, sets, 0, nil)
}

// PushConstants records a push-constant update against layout.
func (b *Buffer) PushConstants(layout vk.PipelineLayout, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(b.native, layout, vk.ShaderStageFlags(vk.ShaderStageAll), 0, uint32(len(data)), unsafe.Pointer(&data[0]))
}

// Draw records a non-indexed draw call. Any pending barrier batch is flushed
// first.
func (b *Buffer) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	b.FlushBarriers()
	vk.CmdDraw(b.native, vertexCount, instanceCount, firstVertex, firstInstance)
}

// DrawIndexed records an indexed draw call.
func (b *Buffer) DrawIndexed(indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	b.FlushBarriers()
	vk.CmdDrawIndexed(b.native, indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

// DrawIndirect records an indirect non-indexed draw reading drawCount
// vk.DrawIndirectCommand entries from buf starting at offset.
func (b *Buffer) DrawIndirect(buf vk.Buffer, offset uint64, drawCount, stride uint32) {
	b.FlushBarriers()
	vk.CmdDrawIndirect(b.native, buf, vk.DeviceSize(offset), drawCount, stride)
}

// DrawIndirectCount records an indirect draw whose count is itself read from
// countBuf at countOffset, capped at maxDrawCount.
func (b *Buffer) DrawIndirectCount(buf vk.Buffer, offset uint64, countBuf vk.Buffer, countOffset uint64, maxDrawCount, stride uint32) {
	b.FlushBarriers()
	vk.CmdDrawIndirectCount(b.native, buf, vk.DeviceSize(offset), countBuf, vk.DeviceSize(countOffset), maxDrawCount, stride)
}

// Dispatch records a compute dispatch.
func (b *Buffer) Dispatch(groupsX, groupsY, groupsZ uint32) {
	b.FlushBarriers()
	vk.CmdDispatch(b.native, groupsX, groupsY, groupsZ)
}

// DispatchIndirect records a compute dispatch reading its group counts from
// buf at offset (a vk.DispatchIndirectCommand).
func (b *Buffer) DispatchIndirect(buf vk.Buffer, offset uint64) {
	b.FlushBarriers()
	vk.CmdDispatchIndirect(b.native, buf, vk.DeviceSize(offset))
}

// BlitImage records an image blit (e.g. mip generation, swapchain copy).
func (b *Buffer) BlitImage(src vk.Image, srcLayout vk.ImageLayout, dst vk.Image, dstLayout vk.ImageLayout, region vk.ImageBlit, filter vk.Filter) {
	b.FlushBarriers()
	vk.CmdBlitImage(b.native, src, srcLayout, dst, dstLayout, 1, []vk.ImageBlit{region}, filter)
}

// SetEvent, ResetEvent, and WaitEvent expose
// vkCmdSetEvent2/vkCmdResetEvent2/vkCmdWaitEvents2 for finer-grained
// intra-command-buffer synchronization than a full barrier flush.

// SetEvent signals event once every command recorded before it has passed
// stage, folding stage into the DependencyInfo's memory barrier so a later
// WaitEvent actually waits on the scope this call recorded rather than an
// unscoped signal.
func (b *Buffer) SetEvent(event vk.Event, stage bvk.PipelineStage) {
	vk.CmdSetEvent2(b.native, event, &vk.DependencyInfo{
		SType:              vk.StructureTypeDependencyInfo,
		MemoryBarrierCount: 1,
		PMemoryBarriers: []vk.MemoryBarrier2{{
			SType:        vk.StructureTypeMemoryBarrier2,
			SrcStageMask: vk.PipelineStageFlags2(stage),
			DstStageMask: vk.PipelineStageFlags2(stage),
		}},
	})
}

// ResetEvent unsignals event once every command recorded before it has
// passed stage.
func (b *Buffer) ResetEvent(event vk.Event, stage bvk.PipelineStage) {
	vk.CmdResetEvent2(b.native, event, vk.PipelineStageFlags2(stage))
}

func (b *Buffer) WaitEvent(event vk.Event, dep vk.DependencyInfo) {
	vk.CmdWaitEvents2(b.native, 1, []vk.Event{event}, []vk.DependencyInfo{dep})
}
