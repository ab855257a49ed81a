package resource

import "testing"

// fakeDestroyable counts how many times destroy() was called, so tests can
// assert ClearGarbage actually reclaims native objects rather than just
// freeing slots.
type fakeDestroyable struct {
	id        int
	destroyed *int
}

func (f fakeDestroyable) destroy() {
	*f.destroyed++
}

func TestRefCountLifecycle(t *testing.T) {
	rc := newRefCount()
	if rc.Count() != 1 {
		t.Fatalf("initial count = %d, want 1", rc.Count())
	}
	rc.Ref()
	if rc.Count() != 2 {
		t.Fatalf("count after Ref = %d, want 2", rc.Count())
	}
	if v := rc.Unref(); v != 1 {
		t.Fatalf("Unref = %d, want 1", v)
	}
	if v := rc.Unref(); v != 0 {
		t.Fatalf("Unref = %d, want 0", v)
	}
}

func TestPoolReleaseEnqueuesZombieNotDestroyedUntilReady(t *testing.T) {
	destroyed := 0
	pool := NewPool[fakeDestroyable](0)
	slot := pool.Insert(fakeDestroyable{id: 1, destroyed: &destroyed})

	pool.Release(slot, 10) // ready at timeline value 10

	if pool.PendingZombies() != 1 {
		t.Fatalf("expected 1 pending zombie, got %d", pool.PendingZombies())
	}
	if destroyed != 0 {
		t.Fatalf("destroy() called before ClearGarbage, count=%d", destroyed)
	}

	n := pool.ClearGarbage(5) // timeline hasn't reached 10 yet
	if n != 0 || destroyed != 0 {
		t.Fatalf("ClearGarbage(5) reclaimed %d (destroyed=%d), want 0", n, destroyed)
	}

	n = pool.ClearGarbage(10)
	if n != 1 || destroyed != 1 {
		t.Fatalf("ClearGarbage(10) reclaimed %d (destroyed=%d), want 1", n, destroyed)
	}
	if pool.PendingZombies() != 0 {
		t.Fatalf("expected 0 pending zombies after reclaim, got %d", pool.PendingZombies())
	}
}

func TestPoolClearGarbageStopsAtFirstNotReady(t *testing.T) {
	destroyed := 0
	pool := NewPool[fakeDestroyable](0)
	a := pool.Insert(fakeDestroyable{id: 1, destroyed: &destroyed})
	b := pool.Insert(fakeDestroyable{id: 2, destroyed: &destroyed})
	c := pool.Insert(fakeDestroyable{id: 3, destroyed: &destroyed})

	pool.Release(a, 1)
	pool.Release(b, 100) // not ready for a long time
	pool.Release(c, 2)   // would be ready at value 2, but queued behind b

	n := pool.ClearGarbage(50)
	if n != 1 {
		t.Fatalf("ClearGarbage(50) reclaimed %d, want 1 (stops at b)", n)
	}
	if pool.PendingZombies() != 2 {
		t.Fatalf("expected 2 zombies remaining, got %d", pool.PendingZombies())
	}
}

func TestPoolRefCloneKeepsSlotAliveUntilAllReleased(t *testing.T) {
	destroyed := 0
	pool := NewPool[fakeDestroyable](0)
	slot := pool.Insert(fakeDestroyable{id: 1, destroyed: &destroyed})

	r1 := NewRef[fakeDestroyable](pool, slot)
	r2 := r1.Clone()

	r1.Release()
	if pool.PendingZombies() != 0 {
		t.Fatalf("releasing one of two refs should not zombify, pending=%d", pool.PendingZombies())
	}

	r2.Release()
	if pool.PendingZombies() != 1 {
		t.Fatalf("releasing the last ref should zombify, pending=%d", pool.PendingZombies())
	}
}
