package resource

import "github.com/andewx/bindlessvk/descriptor"

// SamplerHandle is the caller-facing handle for a content-addressed sampler:
// identical SamplerDescs resolve to the same underlying vk.Sampler with its
// refcount bumped. Unlike Ref[T], its lifetime is tracked by
// descriptor.SamplerCache's own per-key refcount rather than a pool slot —
// the native object is only destroyed when the cache's shared record, not
// any individual caller's handle, reaches zero.
type SamplerHandle struct {
	cache *descriptor.SamplerCache
	desc  descriptor.SamplerDesc
	slot  uint32
}

// NewSamplerHandle wraps an already-resolved bindless slot for desc.
func NewSamplerHandle(cache *descriptor.SamplerCache, desc descriptor.SamplerDesc, slot uint32) SamplerHandle {
	return SamplerHandle{cache: cache, desc: desc, slot: slot}
}

// Slot returns the bindless SAMPLER-binding index this sampler occupies.
func (h SamplerHandle) Slot() uint32 { return h.slot }

// Clone returns a second, independent handle to the same underlying sampler,
// bumping its content-addressed refcount.
func (h SamplerHandle) Clone() (SamplerHandle, error) {
	slot, err := h.cache.Get(h.desc)
	if err != nil {
		return SamplerHandle{}, err
	}
	return SamplerHandle{cache: h.cache, desc: h.desc, slot: slot}, nil
}

// Release decrements the content-addressed refcount, gated on readyValue
// (the timeline value of the submission that last used this sampler): the
// native vk.Sampler is destroyed only once every outstanding handle sharing
// this SamplerDesc has released and the device timeline reaches the
// readyValue of whichever release dropped the count to zero.
func (h SamplerHandle) Release(readyValue uint64) {
	h.cache.Release(h.desc, readyValue)
}

// ReleaseAfter returns a release function suitable for
// queue.Queue.SendToGPUAndRelease, mirroring Ref[T].ReleaseAfter.
func (h SamplerHandle) ReleaseAfter() func(uint64) {
	return func(value uint64) { h.Release(value) }
}
