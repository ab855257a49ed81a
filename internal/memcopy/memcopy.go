// Package memcopy provides the small set of aligned host-memory helpers the
// upload heap and buffer-mapping code need when staging data into
// vk.MapMemory-returned pointers. Grounded on the alignment arithmetic in
// original_source/foundation/allocator/linear_allocator.h and buffers.go's
// direct unsafe.Pointer usage around vk.MapMemory.
package memcopy

import (
	"reflect"
	"unsafe"
)

// AlignUp rounds size up to the next multiple of align. align must be a
// power of two.
func AlignUp(size, align uint64) uint64 {
	return (size + align - 1) &^ (align - 1)
}

// IsPowerOfTwo reports whether v is a nonzero power of two.
func IsPowerOfTwo(v uint64) bool {
	return v != 0 && v&(v-1) == 0
}

// CopyTo copies src into the mapped host pointer dst, which must point at a
// region at least len(src) bytes long. Used for writing staged upload data
// directly into a vk.MapMemory-returned pointer without an intermediate Go
// allocation.
func CopyTo(dst unsafe.Pointer, offset uint64, src []byte) {
	if len(src) == 0 {
		return
	}
	var view []byte
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&view))
	hdr.Data = uintptr(dst) + uintptr(offset)
	hdr.Len = len(src)
	hdr.Cap = len(src)
	copy(view, src)
}

// ViewBytes returns a []byte view over a mapped pointer of the given length,
// without copying. The returned slice is valid only while the underlying
// Vulkan memory remains mapped.
func ViewBytes(ptr unsafe.Pointer, length uint64) []byte {
	if length == 0 {
		return nil
	}
	var view []byte
	hdr := (*reflect.SliceHeader)(unsafe.Pointer(&view))
	hdr.Data = uintptr(ptr)
	hdr.Len = int(length)
	hdr.Cap = int(length)
	return view
}
