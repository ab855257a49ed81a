package resource

import (
	"sync"

	"github.com/andewx/bindlessvk/internal/container"
)

// Destroyer destroys the native Vulkan object(s) backing a T. Implemented by
// the resource kind (Buffer.destroy, Image.destroy, ...), not by the pool.
type Destroyer interface {
	destroy()
}

// entry pairs a pooled value with its reference count and the zombie
// bookkeeping needed once that count reaches zero.
type entry[T Destroyer] struct {
	value T
	rc    *refCount
}

// zombie records a slot whose refcount hit zero and the timeline value that
// must be reached before its native object can be destroyed, avoiding a
// wait-idle stall on every garbage collection pass.
type zombie struct {
	slot       uint32
	readyValue uint64
}

// Pool is a stable-index, reference-counted object pool for one resource
// kind T (Buffer, Image, Sampler, Semaphore, Fence, Shader, Pipeline, ...).
// Slots freed by a zero refcount are not reused until ClearGarbage confirms
// the GPU has finished with them.
type Pool[T Destroyer] struct {
	mu      sync.RWMutex
	slots   *container.PagedArray[entry[T]]
	zombies container.Ring[zombie]
}

// NewPool returns an empty Pool with capacity pre-reserved.
func NewPool[T Destroyer](capacity int) *Pool[T] {
	return &Pool[T]{slots: container.NewPagedArray[entry[T]](capacity)}
}

// Insert stores v with an initial reference count of 1 and returns its slot.
func (p *Pool[T]) Insert(v T) uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.slots.Insert(entry[T]{value: v, rc: newRefCount()})
}

// Get returns the value at slot and whether the slot is occupied. A slot
// whose refcount reached zero stays occupied as a zombie until ClearGarbage
// reclaims it, so Get still reports it.
func (p *Pool[T]) Get(slot uint32) (T, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.slots.Get(slot)
	return e.value, ok
}

// Ref increments slot's reference count, for Resource[T].Clone.
func (p *Pool[T]) Ref(slot uint32) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if e, ok := p.slots.Get(slot); ok {
		e.rc.Ref()
	}
}

// Release decrements slot's reference count. If it reaches zero, the slot is
// enqueued as a zombie tagged with readyValue (the submission's timeline
// value) instead of being destroyed immediately: the native object is only
// destroyed once ClearGarbage observes the device timeline has reached
// readyValue.
func (p *Pool[T]) Release(slot uint32, readyValue uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.slots.Get(slot)
	if !ok {
		return
	}
	if e.rc.Unref() == 0 {
		p.zombies.PushBack(zombie{slot: slot, readyValue: readyValue})
	}
}

// ClearGarbage destroys and frees every zombie slot whose readyValue is <=
// completedValue, in FIFO order, stopping at the first zombie not yet ready
// (readyValues are non-decreasing in submission order, so later zombies
// cannot be ready before an earlier one). Returns the count reclaimed.
func (p *Pool[T]) ClearGarbage(completedValue uint64) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.zombies.DrainWhile(
		func(z zombie) bool { return z.readyValue <= completedValue },
		func(z zombie) {
			if e, ok := p.slots.Get(z.slot); ok {
				e.value.destroy()
			}
			p.slots.Remove(z.slot)
		},
	)
}

// PendingZombies returns the number of slots awaiting a fence-gated reclaim.
func (p *Pool[T]) PendingZombies() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.zombies.Len()
}

// Len returns the number of slots ever allocated (including zombies not yet
// reclaimed), matching container.PagedArray.Len.
func (p *Pool[T]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.slots.Len()
}
