package descriptor

import (
	"fmt"

	"github.com/andewx/bindlessvk/internal/container"
	vk "github.com/vulkan-go/vulkan"
)

// SamplerKey is the packed 64-bit content-addressing key for a sampler
// configuration, preserved bit-for-bit from the original device.cpp sampler
// cache so a persisted pipeline cache built against one binary stays valid
// against another. Field widths: magFilter/minFilter (2 bits each),
// mipmapMode (2), addressModeU/V/W (3 each), anisotropyEnabled (1),
// maxAnisotropy quantized to a byte, compareEnabled (1), compareOp (4),
// borderColor (3), unnormalizedCoordinates (1).
type SamplerKey uint64

const (
	samplerShiftMagFilter = 0
	samplerShiftMinFilter = 2
	samplerShiftMipmap    = 4
	samplerShiftAddrU     = 6
	samplerShiftAddrV     = 9
	samplerShiftAddrW     = 12
	samplerShiftAniso     = 15
	samplerShiftMaxAniso  = 16
	samplerShiftCompareEn = 24
	samplerShiftCompareOp = 25
	samplerShiftBorder    = 29
	samplerShiftUnnorm    = 32
)

// SamplerDesc is the subset of vk.SamplerCreateInfo that participates in
// content addressing.
type SamplerDesc struct {
	MagFilter               vk.Filter
	MinFilter               vk.Filter
	MipmapMode              vk.SamplerMipmapMode
	AddressModeU            vk.SamplerAddressMode
	AddressModeV            vk.SamplerAddressMode
	AddressModeW            vk.SamplerAddressMode
	AnisotropyEnable        bool
	MaxAnisotropy           float32
	CompareEnable           bool
	CompareOp               vk.CompareOp
	BorderColor             vk.BorderColor
	UnnormalizedCoordinates bool
}

// PackSamplerKey computes the content-addressing key for d.
func PackSamplerKey(d SamplerDesc) SamplerKey {
	var k uint64
	k |= uint64(d.MagFilter) << samplerShiftMagFilter
	k |= uint64(d.MinFilter) << samplerShiftMinFilter
	k |= uint64(d.MipmapMode) << samplerShiftMipmap
	k |= uint64(d.AddressModeU) << samplerShiftAddrU
	k |= uint64(d.AddressModeV) << samplerShiftAddrV
	k |= uint64(d.AddressModeW) << samplerShiftAddrW
	if d.AnisotropyEnable {
		k |= 1 << samplerShiftAniso
	}
	k |= uint64(quantizeAnisotropy(d.MaxAnisotropy)) << samplerShiftMaxAniso
	if d.CompareEnable {
		k |= 1 << samplerShiftCompareEn
	}
	k |= uint64(d.CompareOp) << samplerShiftCompareOp
	k |= uint64(d.BorderColor) << samplerShiftBorder
	if d.UnnormalizedCoordinates {
		k |= 1 << samplerShiftUnnorm
	}
	return SamplerKey(k)
}

// quantizeAnisotropy maps a float max-anisotropy value (typically 1..16) to
// a single byte, matching the original's byte-quantized packing.
func quantizeAnisotropy(v float32) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	return uint8(v)
}

// Cache of vk.Sampler objects keyed by SamplerKey, so identical sampler
// configurations requested from different materials share one native
// VkSampler and one bindless slot.
type SamplerCache struct {
	device   vk.Device
	cache    *Cache
	slots    *SlotAllocator
	samplers map[SamplerKey]cachedSampler
	zombies  container.Ring[zombieSampler]
}

type cachedSampler struct {
	sampler vk.Sampler
	slot    uint32
	refs    uint32
}

// zombieSampler records a cached sampler whose refcount hit zero and the
// timeline value that must be reached before its native object can be
// destroyed, mirroring resource.Pool's zombie bookkeeping: a sampler still
// referenced by an in-flight command buffer must not be destroyed mid-use
// just because its content-addressed record happened to drop to zero.
type zombieSampler struct {
	key        SamplerKey
	sampler    vk.Sampler
	slot       uint32
	readyValue uint64
}

func NewSamplerCache(device vk.Device, cache *Cache) *SamplerCache {
	return &SamplerCache{
		device:   device,
		cache:    cache,
		slots:    NewSlotAllocator(cache.MaxSamplers()),
		samplers: make(map[SamplerKey]cachedSampler),
	}
}

// Get returns the bindless slot for d, creating and binding a new vk.Sampler
// only the first time this exact configuration is requested.
func (s *SamplerCache) Get(d SamplerDesc) (uint32, error) {
	key := PackSamplerKey(d)
	if existing, ok := s.samplers[key]; ok {
		existing.refs++
		s.samplers[key] = existing
		return existing.slot, nil
	}

	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               d.MagFilter,
		MinFilter:               d.MinFilter,
		MipmapMode:              d.MipmapMode,
		AddressModeU:            d.AddressModeU,
		AddressModeV:            d.AddressModeV,
		AddressModeW:            d.AddressModeW,
		AnisotropyEnable:        vk.Bool32(boolToUint32(d.AnisotropyEnable)),
		MaxAnisotropy:           d.MaxAnisotropy,
		CompareEnable:           vk.Bool32(boolToUint32(d.CompareEnable)),
		CompareOp:               d.CompareOp,
		BorderColor:             d.BorderColor,
		UnnormalizedCoordinates: vk.Bool32(boolToUint32(d.UnnormalizedCoordinates)),
	}
	var sampler vk.Sampler
	ret := vk.CreateSampler(s.device, &info, nil, &sampler)
	if ret != vk.Success {
		return 0, fmt.Errorf("descriptor: vkCreateSampler: result %d", ret)
	}

	slot, ok := s.slots.Alloc()
	if !ok {
		vk.DestroySampler(s.device, sampler, nil)
		return 0, fmt.Errorf("descriptor: sampler cache exhausted its %d bindless slots", s.slots.Max())
	}
	if err := s.cache.BindSampler(slot, sampler); err != nil {
		s.slots.Release(slot)
		vk.DestroySampler(s.device, sampler, nil)
		return 0, err
	}
	s.samplers[key] = cachedSampler{sampler: sampler, slot: slot, refs: 1}
	return slot, nil
}

// Release decrements the reference count of the cached sampler matching d.
// Only when that count reaches zero is the record retired — and even then
// the underlying vk.Sampler is not destroyed inline, since a command buffer
// already submitted may still reference it. Instead it is pushed onto the
// same zombie-ring mechanism resource.Pool[T] uses for buffers and images,
// gated on readyValue, and only reclaimed once ClearGarbage observes the
// device timeline has reached it.
func (s *SamplerCache) Release(d SamplerDesc, readyValue uint64) {
	key := PackSamplerKey(d)
	existing, ok := s.samplers[key]
	if !ok {
		return
	}
	existing.refs--
	if existing.refs > 0 {
		s.samplers[key] = existing
		return
	}
	delete(s.samplers, key)
	s.zombies.PushBack(zombieSampler{
		key:        key,
		sampler:    existing.sampler,
		slot:       existing.slot,
		readyValue: readyValue,
	})
}

// ClearGarbage destroys and frees every zombie sampler whose readyValue is
// <= completedValue, in FIFO order, mirroring resource.Pool.ClearGarbage.
// Returns the count reclaimed.
func (s *SamplerCache) ClearGarbage(completedValue uint64) int {
	return s.zombies.DrainWhile(
		func(z zombieSampler) bool { return z.readyValue <= completedValue },
		func(z zombieSampler) {
			vk.DestroySampler(s.device, z.sampler, nil)
			s.slots.Release(z.slot)
		},
	)
}

// PendingZombies returns the number of samplers awaiting a fence-gated
// reclaim.
func (s *SamplerCache) PendingZombies() int {
	return s.zombies.Len()
}

// RefCount returns the current reference count for d's packed key, or 0 if
// no live sampler matches it.
func (s *SamplerCache) RefCount(d SamplerDesc) uint32 {
	if existing, ok := s.samplers[PackSamplerKey(d)]; ok {
		return existing.refs
	}
	return 0
}

// Destroy destroys every still-live cached vk.Sampler, regardless of
// refcount, plus any zombie sampler still awaiting a fence-gated reclaim;
// called once from Cache.Destroy during device teardown, where waiting on
// the timeline to catch up would just be a wait-idle by another name.
func (s *SamplerCache) Destroy() {
	for key, cs := range s.samplers {
		vk.DestroySampler(s.device, cs.sampler, nil)
		delete(s.samplers, key)
	}
	for {
		z, ok := s.zombies.PopFront()
		if !ok {
			break
		}
		vk.DestroySampler(s.device, z.sampler, nil)
		s.slots.Release(z.slot)
	}
}

func boolToUint32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
