package descriptor

import "testing"

func TestRoundUpPowerOfTwo(t *testing.T) {
	cases := []struct{ in, want uint32 }{
		{0, 0},
		{1, 1},
		{2, 2},
		{3, 4},
		{4, 4},
		{5, 8},
		{17, 32},
		{128, 128},
		{129, 256},
	}
	for _, c := range cases {
		if got := RoundUpPowerOfTwo(c.in); got != c.want {
			t.Errorf("RoundUpPowerOfTwo(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestGetAppropriatePipelineLayout(t *testing.T) {
	const deviceMax = 128
	cases := []struct{ requested, want uint32 }{
		{0, 0},
		{1, 1},
		{3, 4},
		{65, 128},
		{128, 128},
		{200, 128}, // clamped to deviceMax, never rounded past it
	}
	for _, c := range cases {
		if got := GetAppropriatePipelineLayout(c.requested, deviceMax); got != c.want {
			t.Errorf("GetAppropriatePipelineLayout(%d, %d) = %d, want %d", c.requested, deviceMax, got, c.want)
		}
	}
}

func TestBuildLayoutSizesAlignment(t *testing.T) {
	sizes := BuildLayoutSizes(17) // rounds down to 16
	want := []uint32{0, 4, 8, 12, 16}
	if len(sizes) != len(want) {
		t.Fatalf("BuildLayoutSizes(17) = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("BuildLayoutSizes(17)[%d] = %d, want %d", i, sizes[i], want[i])
		}
	}
}
