package upload

import "testing"

func TestBufferUploadInfoRecordsOwningBlockIndex(t *testing.T) {
	// Two blocks, each reporting room for only a small write, so staging a
	// second chunk lands in block 1 rather than overflowing block 0's cursor.
	// stage() must record which block it used, not just an in-block offset,
	// since offsets reset to zero per block.
	pool := &HeapPool{blocks: []*HeapBlock{
		{Cursor: HeapBlockSize - 4},
		{},
	}}
	h := &Heap{pools: [MaxPoolInQueue]*HeapPool{pool, newHeapPool(), newHeapPool(), newHeapPool()}}

	blockIdx, offset, err := h.stage([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if blockIdx != 1 {
		t.Fatalf("stage() used block %d, want block 1 (block 0 has no room)", blockIdx)
	}
	if offset != 0 {
		t.Fatalf("stage() offset = %d, want 0 (block 1 was empty)", offset)
	}
}

func TestHeapBlockRemaining(t *testing.T) {
	hb := &HeapBlock{Cursor: 100}
	if got := hb.remaining(); got != HeapBlockSize-100 {
		t.Fatalf("remaining() = %d, want %d", got, HeapBlockSize-100)
	}
}

func TestUploadCompletedComparesTimelineValue(t *testing.T) {
	h := &Heap{completions: map[uint64]uint64{5: 9}}

	if h.UploadCompleted(5, 8) {
		t.Fatalf("UploadCompleted(5, 8) should be false when upload 5 needs value 9")
	}
	if !h.UploadCompleted(5, 9) {
		t.Fatalf("UploadCompleted(5, 9) should be true")
	}
	if h.UploadCompleted(99, 1000) {
		t.Fatalf("UploadCompleted(99, ...) should be false for an unknown upload id")
	}
}

func TestNeedsOwnershipTransfer(t *testing.T) {
	if needsOwnershipTransfer(0, 3) {
		t.Fatalf("a zero DstQueueFamily (no explicit owner) must not require a transfer")
	}
	if needsOwnershipTransfer(3, 3) {
		t.Fatalf("a DstQueueFamily equal to the transfer family must not require a transfer")
	}
	if !needsOwnershipTransfer(2, 3) {
		t.Fatalf("a DstQueueFamily different from the transfer family must require a transfer")
	}
}
