package descriptor

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestPackSamplerKeyDeterministic(t *testing.T) {
	d := SamplerDesc{
		MagFilter:        vk.FilterLinear,
		MinFilter:        vk.FilterLinear,
		MipmapMode:       vk.SamplerMipmapModeLinear,
		AddressModeU:     vk.SamplerAddressModeRepeat,
		AddressModeV:     vk.SamplerAddressModeRepeat,
		AddressModeW:     vk.SamplerAddressModeRepeat,
		AnisotropyEnable: true,
		MaxAnisotropy:    16,
	}
	a := PackSamplerKey(d)
	b := PackSamplerKey(d)
	if a != b {
		t.Fatalf("PackSamplerKey not deterministic: %d != %d", a, b)
	}
}

func TestPackSamplerKeyDistinguishesFields(t *testing.T) {
	base := SamplerDesc{MagFilter: vk.FilterNearest}
	variant := base
	variant.MagFilter = vk.FilterLinear

	if PackSamplerKey(base) == PackSamplerKey(variant) {
		t.Fatalf("distinct MagFilter values produced the same key")
	}

	wAniso := base
	wAniso.AnisotropyEnable = true
	if PackSamplerKey(base) == PackSamplerKey(wAniso) {
		t.Fatalf("AnisotropyEnable bit not represented in key")
	}
}

func TestQuantizeAnisotropyClamps(t *testing.T) {
	if got := quantizeAnisotropy(-5); got != 0 {
		t.Fatalf("quantizeAnisotropy(-5) = %d, want 0", got)
	}
	if got := quantizeAnisotropy(1000); got != 255 {
		t.Fatalf("quantizeAnisotropy(1000) = %d, want 255", got)
	}
}
