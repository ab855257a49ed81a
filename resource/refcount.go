// Package resource implements the reference-counted GPU resource lifetime
// subsystem: stable-index paged pools per object kind, a generic Ref[T]
// smart handle, and the zombie list that defers native Vulkan destruction
// until the timeline fence that last used a resource has signaled.
// Grounded on managers.go's grow-or-reuse managers generalized with
// generics, and on original_source/rhi/private/src/vulkan/device.cpp's
// zombie-dispatch-by-kind destroy pattern.
package resource

import "sync/atomic"

// refCount is an atomic reference count starting at 1 on creation, matching
// RefCountedResource's constructor semantics.
type refCount struct {
	n atomic.Int64
}

func newRefCount() *refCount {
	rc := &refCount{}
	rc.n.Store(1)
	return rc
}

// Ref increments the count and returns the new value.
func (rc *refCount) Ref() int64 {
	return rc.n.Add(1)
}

// Unref decrements the count and returns the new value. Callers must treat a
// return of 0 as "destroy now" and must never call Unref again afterward.
func (rc *refCount) Unref() int64 {
	return rc.n.Add(-1)
}

// Count returns the current reference count without modifying it.
func (rc *refCount) Count() int64 {
	return rc.n.Load()
}
