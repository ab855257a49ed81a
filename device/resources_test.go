package device

import (
	"testing"

	bvk "github.com/andewx/bindlessvk"
	vk "github.com/vulkan-go/vulkan"
)

func TestMemoryPropertyFlagsDefaultsToDeviceLocal(t *testing.T) {
	got := memoryPropertyFlags(0)
	want := vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
	if got != want {
		t.Fatalf("memoryPropertyFlags(0) = %v, want device-local", got)
	}
}

func TestMemoryPropertyFlagsHostWritableRequiresCoherent(t *testing.T) {
	got := memoryPropertyFlags(bvk.MemoryUsageHostWritable)
	want := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	if got != want {
		t.Fatalf("memoryPropertyFlags(HostWritable) = %v, want %v", got, want)
	}
}

func TestMemoryPropertyFlagsHostTransferableRequiresCached(t *testing.T) {
	got := memoryPropertyFlags(bvk.MemoryUsageHostTransferable)
	want := vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCachedBit)
	if got != want {
		t.Fatalf("memoryPropertyFlags(HostTransferable) = %v, want %v", got, want)
	}
}

func TestViewTypeForImageType(t *testing.T) {
	cases := []struct {
		in   vk.ImageType
		want vk.ImageViewType
	}{
		{vk.ImageType1d, vk.ImageViewType1d},
		{vk.ImageType2d, vk.ImageViewType2d},
		{vk.ImageType3d, vk.ImageViewType3d},
	}
	for _, c := range cases {
		if got := viewTypeForImageType(c.in); got != c.want {
			t.Fatalf("viewTypeForImageType(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSliceUint32PacksLittleEndian(t *testing.T) {
	got := sliceUint32([]byte{0x01, 0x00, 0x00, 0x00, 0xff, 0x00, 0x00, 0x00})
	if len(got) != 2 || got[0] != 1 || got[1] != 0xff {
		t.Fatalf("sliceUint32() = %v, want [1 255]", got)
	}
}
