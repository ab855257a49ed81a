package swapchain

import "testing"

func TestStateZeroValueIsReady(t *testing.T) {
	var s State
	if s != StateReady {
		t.Fatalf("zero value of State = %v, want StateReady", s)
	}
}

func TestSwapchainAccessorsOnZeroValue(t *testing.T) {
	sc := &Swapchain{}
	if sc.State() != StateReady {
		t.Fatalf("State() = %v, want StateReady", sc.State())
	}
}
