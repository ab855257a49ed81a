package memcopy

import (
	"testing"
	"unsafe"
)

func TestAlignUp(t *testing.T) {
	cases := []struct{ size, align, want uint64 }{
		{0, 256, 0},
		{1, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{8 * 1024 * 1024, 64, 8 * 1024 * 1024},
	}
	for _, c := range cases {
		if got := AlignUp(c.size, c.align); got != c.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", c.size, c.align, got, c.want)
		}
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for _, v := range []uint64{1, 2, 4, 1024, 1 << 20} {
		if !IsPowerOfTwo(v) {
			t.Errorf("IsPowerOfTwo(%d) = false, want true", v)
		}
	}
	for _, v := range []uint64{0, 3, 5, 6, 1023} {
		if IsPowerOfTwo(v) {
			t.Errorf("IsPowerOfTwo(%d) = true, want false", v)
		}
	}
}

func TestCopyToAndViewBytes(t *testing.T) {
	buf := make([]byte, 64)
	ptr := unsafe.Pointer(&buf[0])
	src := []byte("hello, gpu")
	CopyTo(ptr, 8, src)

	view := ViewBytes(ptr, 64)
	got := view[8 : 8+len(src)]
	if string(got) != string(src) {
		t.Fatalf("CopyTo/ViewBytes mismatch: got %q, want %q", got, src)
	}
}
