package resource

import "testing"

// TestRefReleaseAfterStampsReadyValue proves the domain ReleaseAfter's
// caller (queue.Queue.SendToGPUAndRelease) stamps matches exactly what
// ClearGarbage gates on: a value of N only reclaims once completedValue
// reaches N, not before and not after an off-by-one.
func TestRefReleaseAfterStampsReadyValue(t *testing.T) {
	destroyed := 0
	pool := NewPool[fakeDestroyable](0)
	slot := pool.Insert(fakeDestroyable{id: 1, destroyed: &destroyed})
	ref := NewRef[fakeDestroyable](pool, slot)

	release := ref.ReleaseAfter()
	release(7) // as if Queue.SendToGPUAndRelease had just submitted at timeline value 7

	if pool.PendingZombies() != 1 {
		t.Fatalf("ReleaseAfter() did not enqueue a zombie, pending=%d", pool.PendingZombies())
	}
	if n := pool.ClearGarbage(6); n != 0 || destroyed != 0 {
		t.Fatalf("ClearGarbage(6) reclaimed %d (destroyed=%d), want 0 (readyValue 7 not yet reached)", n, destroyed)
	}
	if n := pool.ClearGarbage(7); n != 1 || destroyed != 1 {
		t.Fatalf("ClearGarbage(7) reclaimed %d (destroyed=%d), want 1", n, destroyed)
	}
}
