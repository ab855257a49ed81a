package alloc

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestAlignUp(t *testing.T) {
	cases := []struct{ v, align, want vk.DeviceSize }{
		{0, 16, 0},
		{1, 16, 16},
		{16, 16, 16},
		{17, 16, 32},
		{0, 0, 0},
	}
	for _, c := range cases {
		if got := alignUp(c.v, c.align); got != c.want {
			t.Errorf("alignUp(%d, %d) = %d, want %d", c.v, c.align, got, c.want)
		}
	}
}

func TestFindMemoryType(t *testing.T) {
	var props vk.PhysicalDeviceMemoryProperties
	props.MemoryTypeCount = 2
	props.MemoryTypes[0].PropertyFlags = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	props.MemoryTypes[1].PropertyFlags = vk.MemoryPropertyFlags(
		vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)

	a := New(vk.Device(nil), props)

	idx, ok := a.FindMemoryType(0x3, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
	if !ok || idx != 1 {
		t.Fatalf("FindMemoryType host-visible = %d, %v; want 1, true", idx, ok)
	}

	idx, ok = a.FindMemoryType(0x1, vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit))
	if ok {
		t.Fatalf("FindMemoryType should fail when typeBits excludes the matching type, got %d", idx)
	}
}
