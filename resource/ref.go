package resource

// Ref is the generic reference-counted smart handle callers hold instead of
// a raw pool slot, mirroring the original RHI's Resource[T]. Go has no
// destructors, so callers must call Release explicitly; unlike a C++
// destructor there is no automatic decrement on scope exit.
type Ref[T Destroyer] struct {
	pool       *Pool[T]
	slot       uint32
	readyValue uint64 // timeline value to stamp on this ref's eventual Release
}

// NewRef wraps slot (already inserted with refcount 1) from pool into a Ref.
func NewRef[T Destroyer](pool *Pool[T], slot uint32) Ref[T] {
	return Ref[T]{pool: pool, slot: slot}
}

// Value returns the underlying resource value and whether it is still live.
func (r Ref[T]) Value() (T, bool) {
	return r.pool.Get(r.slot)
}

// Slot returns the raw pool index, for building a Handle[Tag] in the caller.
func (r Ref[T]) Slot() uint32 {
	return r.slot
}

// Clone increments the reference count and returns a second, independent Ref
// to the same slot.
func (r Ref[T]) Clone() Ref[T] {
	r.pool.Ref(r.slot)
	return Ref[T]{pool: r.pool, slot: r.slot}
}

// WithReadyValue returns a copy of r that will stamp the zombie entry (if
// this Release is the one that drops the count to zero) with timelineValue,
// the GPU timeline value Release's caller knows this resource was last used
// at.
func (r Ref[T]) WithReadyValue(timelineValue uint64) Ref[T] {
	r.readyValue = timelineValue
	return r
}

// Release decrements the reference count. On reaching zero, the slot is
// enqueued as a zombie and is not safe to Value() from any remaining Ref
// after this call (there should be none, if refcounting discipline was
// followed).
func (r Ref[T]) Release() {
	r.pool.Release(r.slot, r.readyValue)
}

// ReleaseAfter returns a release function suitable for
// queue.Queue.SendToGPUAndRelease: calling it with a submission's timeline
// value stamps that value onto r via WithReadyValue before releasing it, so
// the zombie's readyValue is gated on the submission that actually used r
// rather than a caller-guessed value.
func (r Ref[T]) ReleaseAfter() func(uint64) {
	return func(value uint64) { r.WithReadyValue(value).Release() }
}
