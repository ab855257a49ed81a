package container

import "testing"

func TestPagedArrayInsertGet(t *testing.T) {
	p := NewPagedArray[string](0)
	idx := p.Insert("a")
	v, ok := p.Get(idx)
	if !ok || v != "a" {
		t.Fatalf("Get(%d) = %q, %v; want a, true", idx, v, ok)
	}
}

func TestPagedArrayReuseSlot(t *testing.T) {
	p := NewPagedArray[int](0)
	a := p.Insert(1)
	b := p.Insert(2)
	p.Remove(a)
	c := p.Insert(3)
	if c != a {
		t.Fatalf("expected freed slot %d reused, got %d", a, c)
	}
	if _, ok := p.Get(a); !ok {
		t.Fatalf("slot %d should be occupied after reuse", a)
	}
	if v, _ := p.Get(b); v != 2 {
		t.Fatalf("unrelated slot %d corrupted: got %d", b, v)
	}
}

func TestPagedArrayRemoveTwiceFails(t *testing.T) {
	p := NewPagedArray[int](0)
	a := p.Insert(1)
	if !p.Remove(a) {
		t.Fatalf("first Remove should succeed")
	}
	if p.Remove(a) {
		t.Fatalf("second Remove should fail")
	}
}

func TestPagedArrayEachSkipsFreed(t *testing.T) {
	p := NewPagedArray[int](0)
	a := p.Insert(10)
	p.Insert(20)
	p.Remove(a)
	var seen []int
	p.Each(func(idx uint32, v int) { seen = append(seen, v) })
	if len(seen) != 1 || seen[0] != 20 {
		t.Fatalf("Each visited %v, want [20]", seen)
	}
}

func TestRingFIFO(t *testing.T) {
	var r Ring[int]
	r.PushBack(1)
	r.PushBack(2)
	r.PushBack(3)
	v, ok := r.PopFront()
	if !ok || v != 1 {
		t.Fatalf("PopFront = %d, %v; want 1, true", v, ok)
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
}

func TestRingDrainWhileStopsAtFirstReject(t *testing.T) {
	var r Ring[int]
	for i := 0; i < 5; i++ {
		r.PushBack(i)
	}
	var drained []int
	n := r.DrainWhile(func(v int) bool { return v < 3 }, func(v int) {
		drained = append(drained, v)
	})
	if n != 3 {
		t.Fatalf("DrainWhile drained %d, want 3", n)
	}
	if r.Len() != 2 {
		t.Fatalf("remaining Len() = %d, want 2", r.Len())
	}
	front, _ := r.Front()
	if front != 3 {
		t.Fatalf("Front() = %d, want 3", front)
	}
}
