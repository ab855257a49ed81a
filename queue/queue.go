// Package queue implements the command-submission pipeline: per-queue
// submission-group batching and per-thread command pools, grounded on
// original_source/src/render/public/render/command_queue.hpp and
// queue.go's family-scan/bind idiom.
package queue

import (
	"fmt"
	"sync"

	"github.com/andewx/bindlessvk/command"
	vk "github.com/vulkan-go/vulkan"
)

// MaxSubmissionGroups bounds how many independent SubmissionGroups a Queue
// batches before SendToGPU must be called, matching the original's
// MAX_SUBMISSION_GROUPS.
const MaxSubmissionGroups = 8

// MaxFenceSubmissionCount bounds how many command buffers a single
// vkQueueSubmit2 batch may carry, matching MAX_FENCE_SUBMISSION_COUNT.
const MaxFenceSubmissionCount = 128

// ThreadKey identifies the caller's logical worker slot for per-thread
// command pool ownership. Go goroutines have no portable OS-thread identity
// to key on (unlike the original's std::thread::id), so callers supply a
// stable key themselves — e.g. a worker-pool slot index (see the Open
// Question resolutions in DESIGN.md).
type ThreadKey uint64

// SubmissionGroup is one batch of command buffers plus the wait/signal
// semaphores for a single vkQueueSubmit2 call.
type SubmissionGroup struct {
	Buffers []*command.Buffer
	Waits   []vk.SemaphoreSubmitInfo
	Signals []vk.SemaphoreSubmitInfo
}

// Timeline is the device's single timeline semaphore plus the monotonic
// counter of values signaled on it, shared by every Queue (Graphics,
// Transfer, Compute) so that even when separate hardware queues submit
// concurrently, the values reaching the driver for this one semaphore are
// claimed and signaled in strictly increasing order.
type Timeline struct {
	mu        sync.Mutex
	semaphore vk.Semaphore
	value     uint64
}

// NewTimeline wraps an already-created timeline semaphore (initial value 0).
func NewTimeline(semaphore vk.Semaphore) *Timeline {
	return &Timeline{semaphore: semaphore}
}

// Value returns the last value claimed (not necessarily yet signaled by the
// driver — use Device.CompletedValue to query real GPU progress).
func (t *Timeline) Value() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value
}

// Semaphore returns the native timeline semaphore this Timeline counts
// values against.
func (t *Timeline) Semaphore() vk.Semaphore { return t.semaphore }

// Queue wraps one vk.Queue (graphics, transfer, or compute) with per-thread
// command pools and a bounded set of pending submission groups.
type Queue struct {
	device      vk.Device
	native      vk.Queue
	familyIndex uint32
	mu          sync.Mutex
	pools       map[ThreadKey]*command.Pool
	groups      []SubmissionGroup
	timeline    *Timeline
}

// New wraps an already-acquired vk.Queue for familyIndex. timeline is the
// device's shared timeline semaphore counter: every queue signaling it must
// be constructed with the same *Timeline instance.
func New(device vk.Device, native vk.Queue, familyIndex uint32, timeline *Timeline) *Queue {
	return &Queue{
		device:      device,
		native:      native,
		familyIndex: familyIndex,
		pools:       make(map[ThreadKey]*command.Pool),
		timeline:    timeline,
	}
}

// FamilyIndex returns the queue family this Queue was created from.
func (q *Queue) FamilyIndex() uint32 { return q.familyIndex }

// Native returns the underlying vk.Queue, for presentation or debug naming.
func (q *Queue) Native() vk.Queue { return q.native }

// PoolFor returns (creating if necessary) the command.Pool owned by key.
func (q *Queue) PoolFor(key ThreadKey) (*command.Pool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p, ok := q.pools[key]; ok {
		return p, nil
	}
	p, err := command.NewPool(q.device, q.familyIndex, vk.CommandBufferLevelPrimary)
	if err != nil {
		return nil, fmt.Errorf("queue: PoolFor(%d): %w", key, err)
	}
	q.pools[key] = p
	return p, nil
}

// RequestCommandBuffer acquires a fresh command buffer from key's pool and
// begins recording. Mirrors RequestCommandBufferInfo in the original.
func (q *Queue) RequestCommandBuffer(key ThreadKey, oneTimeSubmit bool) (*command.Buffer, error) {
	pool, err := q.PoolFor(key)
	if err != nil {
		return nil, err
	}
	cb, err := pool.Acquire()
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(oneTimeSubmit); err != nil {
		return nil, err
	}
	return cb, nil
}

// Enqueue adds a fully-recorded SubmissionGroup to the pending batch,
// returning an error if MaxSubmissionGroups would be exceeded without an
// intervening SendToGPU.
func (q *Queue) Enqueue(g SubmissionGroup) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.groups) >= MaxSubmissionGroups {
		return fmt.Errorf("queue: %d pending submission groups exceeds MaxSubmissionGroups=%d; call SendToGPU first",
			len(q.groups), MaxSubmissionGroups)
	}
	q.groups = append(q.groups, g)
	return nil
}

// PendingGroups returns the number of submission groups queued since the
// last SendToGPU.
func (q *Queue) PendingGroups() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.groups)
}

// SendToGPU submits every pending group in one vkQueueSubmit2 call (ending
// every buffer first), appending a signal of the device's shared timeline
// semaphore to the last submit so GPU completion of this whole batch is
// observable through Device.CompletedValue. Returns the timeline value
// reached once the GPU completes this submission — the readyValue callers
// must stamp onto any Ref released because of work done by this batch
// (resource.Ref.WithReadyValue). Buffers exceeding MaxFenceSubmissionCount
// across all pending groups are rejected rather than silently dropped.
func (q *Queue) SendToGPU() (uint64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	total := 0
	for _, g := range q.groups {
		total += len(g.Buffers)
	}
	if total > MaxFenceSubmissionCount {
		return 0, fmt.Errorf("queue: %d command buffers exceeds MaxFenceSubmissionCount=%d",
			total, MaxFenceSubmissionCount)
	}

	if len(q.groups) == 0 {
		return q.timeline.Value(), nil
	}

	submits := make([]vk.SubmitInfo2, 0, len(q.groups))
	for _, g := range q.groups {
		cbInfos := make([]vk.CommandBufferSubmitInfo, 0, len(g.Buffers))
		for _, cb := range g.Buffers {
			if err := cb.End(); err != nil {
				return 0, fmt.Errorf("queue: SendToGPU: %w", err)
			}
			cbInfos = append(cbInfos, vk.CommandBufferSubmitInfo{
				SType:         vk.StructureTypeCommandBufferSubmitInfo,
				CommandBuffer: cb.Native(),
			})
		}
		submits = append(submits, vk.SubmitInfo2{
			SType:                    vk.StructureTypeSubmitInfo2,
			WaitSemaphoreInfoCount:   uint32(len(g.Waits)),
			PWaitSemaphoreInfos:      g.Waits,
			CommandBufferInfoCount:   uint32(len(cbInfos)),
			PCommandBufferInfos:      cbInfos,
			SignalSemaphoreInfoCount: uint32(len(g.Signals)),
			PSignalSemaphoreInfos:    g.Signals,
		})
	}

	// Claim-and-submit under the shared timeline's lock, not just q.mu, so
	// that concurrent SendToGPU calls from other Queues signaling the same
	// semaphore (Transfer/Compute when not aliased to Graphics) hand the
	// driver strictly increasing values in the order they are claimed.
	q.timeline.mu.Lock()
	defer q.timeline.mu.Unlock()
	nextValue := q.timeline.value + 1

	last := &submits[len(submits)-1]
	last.PSignalSemaphoreInfos = append(last.PSignalSemaphoreInfos, vk.SemaphoreSubmitInfo{
		SType:     vk.StructureTypeSemaphoreSubmitInfo,
		Semaphore: q.timeline.semaphore,
		Value:     nextValue,
		StageMask: vk.PipelineStageFlags2(vk.PipelineStage2AllCommands),
	})
	last.SignalSemaphoreInfoCount = uint32(len(last.PSignalSemaphoreInfos))

	var noFence vk.Fence
	ret := vk.QueueSubmit2(q.native, uint32(len(submits)), submits, noFence)
	if ret != vk.Success {
		return 0, fmt.Errorf("queue: vkQueueSubmit2: result %d", ret)
	}
	q.timeline.value = nextValue

	for _, g := range q.groups {
		for _, cb := range g.Buffers {
			_ = cb.MarkSubmitted()
			cb.SetRecordingTimeline(nextValue)
		}
	}

	q.groups = q.groups[:0]
	return nextValue, nil
}

// TimelineValue returns the last timeline value claimed by any Queue sharing
// this Queue's Timeline.
func (q *Queue) TimelineValue() uint64 {
	return q.timeline.Value()
}

// Timeline returns the shared Timeline this Queue signals, for packages
// (e.g. upload) that need to report the real device timeline semaphore
// alongside a value they had this Queue sign off on.
func (q *Queue) Timeline() *Timeline { return q.timeline }

// Releasable is a resource release deferred until a submission's timeline
// value is known, built by resource.Ref[T].ReleaseAfter or
// resource.SamplerHandle.ReleaseAfter.
type Releasable func(readyValue uint64)

// SendToGPUAndRelease submits every pending group (as SendToGPU) and then
// invokes each releasable with the resulting timeline value. This is the
// real, non-error-rollback path for stamping resource.Ref.WithReadyValue
// with a value this package actually submitted and will actually signal,
// rather than leaving every caller to guess a readyValue by hand.
func (q *Queue) SendToGPUAndRelease(releasables ...Releasable) (uint64, error) {
	value, err := q.SendToGPU()
	if err != nil {
		return 0, err
	}
	for _, r := range releasables {
		r(value)
	}
	return value, nil
}

// Present submits a present request for swapchain/imageIndex, waiting on
// waits. Returns whether the swapchain is suboptimal/out-of-date.
func (q *Queue) Present(swapchain vk.Swapchain, imageIndex uint32, waits []vk.Semaphore) (vk.Result, error) {
	swapchains := []vk.Swapchain{swapchain}
	images := []uint32{imageIndex}
	info := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		SwapchainCount:     uint32(len(swapchains)),
		PSwapchains:        swapchains,
		PImageIndices:      images,
	}
	ret := vk.QueuePresent(q.native, &info)
	if ret != vk.Success && ret != vk.Suboptimal && ret != vk.ErrorOutOfDate {
		return ret, fmt.Errorf("queue: vkQueuePresent: result %d", ret)
	}
	return ret, nil
}

// Destroy releases every per-thread command pool this Queue owns.
func (q *Queue) Destroy() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.pools {
		p.Destroy()
	}
	q.pools = make(map[ThreadKey]*command.Pool)
}
