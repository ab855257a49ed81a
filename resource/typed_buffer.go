package resource

import "unsafe"

// TypedBuffer is a thin typed view over a Ref[*Buffer] exposing the buffer's
// device address and, when the backing memory is host-visible, a typed
// slice over the mapped region. Only the host-visible fast path is carried;
// a device-local shadow-copy-and-commit path would need render-graph
// integration this package does not have.
type TypedBuffer[T any] struct {
	ref Ref[*Buffer]
}

// NewTypedBuffer wraps ref for typed access.
func NewTypedBuffer[T any](ref Ref[*Buffer]) TypedBuffer[T] {
	return TypedBuffer[T]{ref: ref}
}

// Address returns the buffer's device address, for passing by value into
// shaders as part of a push-constant or another buffer's BDA table entry.
func (t TypedBuffer[T]) Address() uint64 {
	buf, ok := t.ref.Value()
	if !ok {
		return 0
	}
	return buf.Address()
}

// Elems returns a typed view over the mapped buffer contents, or nil if the
// buffer is not host-visible or no longer live.
func (t TypedBuffer[T]) Elems() []T {
	buf, ok := t.ref.Value()
	if !ok || buf.Block.Mapped == nil {
		return nil
	}
	var zero T
	elemSize := int(unsafe.Sizeof(zero))
	if elemSize == 0 {
		return nil
	}
	n := len(buf.Block.Mapped) / elemSize
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(unsafe.Pointer(&buf.Block.Mapped[0])), n)
}

// Release forwards to the underlying Ref.
func (t TypedBuffer[T]) Release() {
	t.ref.Release()
}
