// Package swapchain implements presentable-image acquisition, resize, and
// present. Grounded closely on swapchain.go (surface capability query,
// format/present-mode selection, per-image view creation) adapted to an
// explicit state enum and to dynamic rendering (no vk.RenderPass/
// vk.Framebuffer — color attachments are bound per frame via
// command.Buffer.BeginRendering instead of CreateFrameBuffer).
package swapchain

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// State mirrors the swapchain's external lifecycle: Ready to present,
// SuboptimalNeedsResize after a vk.Suboptimal acquire/present result, and
// OutOfDate once vk.ErrorOutOfDate forces a rebuild before further use.
type State int

const (
	StateReady State = iota
	StateSuboptimal
	StateOutOfDate
	StateDestroyed
)

// Swapchain owns one vk.Swapchain, its images and per-image views, plus the
// per-frame acquire/present semaphore ring and frame-throttle fences
// (acquireSemaphores[N]/presentSemaphores[N], waiting on
// cpu_elapsed_frames - frames_in_flight before acquiring).
type Swapchain struct {
	gpu     vk.PhysicalDevice
	device  vk.Device
	surface vk.Surface
	native  vk.Swapchain
	format  vk.SurfaceFormat
	extent  vk.Extent2D
	images  []vk.Image
	views   []vk.ImageView
	state   State

	framesInFlight          int
	preferredSurfaceFormats []vk.SurfaceFormat
	acquireSemaphores       []vk.Semaphore
	frameFences             []vk.Fence
	presentSemaphores       []vk.Semaphore // one per swapchain image, indexed by image index
	cpuFrame                uint64
}

// New creates a swapchain for surface with at least desiredImages images
// (clamped to the surface's min/max) and framesInFlight sets of acquire/
// throttle resources. preferredSurfaceFormats is scanned against the
// surface's reported formats in order, first match wins; if none match (or
// the list is empty) the first surface-reported format is used, falling back
// to sRGB8A8 if the surface reports "undefined".
func New(gpu vk.PhysicalDevice, device vk.Device, surface vk.Surface, desiredImages, framesInFlight int, preferredSurfaceFormats []vk.SurfaceFormat, old vk.Swapchain) (*Swapchain, error) {
	var caps vk.SurfaceCapabilities
	if ret := vk.GetPhysicalDeviceSurfaceCapabilities(gpu, surface, &caps); ret != vk.Success {
		return nil, fmt.Errorf("swapchain: vkGetPhysicalDeviceSurfaceCapabilities: result %d", ret)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &formatCount, nil)
	if formatCount == 0 {
		return nil, fmt.Errorf("swapchain: no surface formats reported")
	}
	reported := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(gpu, surface, &formatCount, reported)
	for i := range reported {
		reported[i].Deref()
	}

	format := selectSurfaceFormat(reported, preferredSurfaceFormats)
	if format.Format == vk.FormatUndefined {
		format.Format = vk.FormatB8g8r8a8Srgb
		format.ColorSpace = vk.ColorSpaceSrgbNonlinear
	}

	extent := caps.CurrentExtent
	if extent.Width == vk.MaxUint32 {
		return nil, fmt.Errorf("swapchain: surface capabilities report no fixed extent; caller must supply one")
	}

	count := uint32(desiredImages)
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}

	preTransform := caps.CurrentTransform
	if caps.SupportedTransforms&vk.SurfaceTransformFlags(vk.SurfaceTransformIdentityBit) != 0 {
		preTransform = vk.SurfaceTransformIdentityBit
	}

	compositeAlpha := vk.CompositeAlphaOpaqueBit
	for _, candidate := range []vk.CompositeAlphaFlagBits{
		vk.CompositeAlphaOpaqueBit,
		vk.CompositeAlphaPreMultipliedBit,
		vk.CompositeAlphaPostMultipliedBit,
		vk.CompositeAlphaInheritBit,
	} {
		if caps.SupportedCompositeAlpha&vk.CompositeAlphaFlags(candidate) != 0 {
			compositeAlpha = candidate
			break
		}
	}

	var native vk.Swapchain
	ret := vk.CreateSwapchain(device, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    count,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     preTransform,
		CompositeAlpha:   compositeAlpha,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}, nil, &native)
	if ret != vk.Success {
		return nil, fmt.Errorf("swapchain: vkCreateSwapchain: result %d", ret)
	}

	var zero vk.Swapchain
	if old != zero {
		vk.DestroySwapchain(device, old, nil)
	}

	if framesInFlight < 1 {
		framesInFlight = 1
	}
	sc := &Swapchain{
		gpu: gpu, device: device, surface: surface, native: native, format: format, extent: extent,
		framesInFlight: framesInFlight, preferredSurfaceFormats: preferredSurfaceFormats,
	}
	if err := sc.fetchImages(); err != nil {
		sc.Destroy()
		return nil, err
	}
	if err := sc.createFrameResources(); err != nil {
		sc.Destroy()
		return nil, err
	}
	return sc, nil
}

// selectSurfaceFormat scans preferred in order against reported, returning
// the first preferred entry that also appears in reported. Falls back to
// reported[0] if preferred is empty or none of its entries match.
func selectSurfaceFormat(reported, preferred []vk.SurfaceFormat) vk.SurfaceFormat {
	for _, want := range preferred {
		for _, have := range reported {
			if have.Format == want.Format && have.ColorSpace == want.ColorSpace {
				return have
			}
		}
	}
	return reported[0]
}

// createFrameResources allocates the acquire-semaphore/throttle-fence ring
// (sized framesInFlight) and one present semaphore per swapchain image.
func (s *Swapchain) createFrameResources() error {
	s.acquireSemaphores = make([]vk.Semaphore, s.framesInFlight)
	s.frameFences = make([]vk.Fence, s.framesInFlight)
	for i := 0; i < s.framesInFlight; i++ {
		ret := vk.CreateSemaphore(s.device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &s.acquireSemaphores[i])
		if ret != vk.Success {
			return fmt.Errorf("swapchain: vkCreateSemaphore(acquire[%d]): result %d", i, ret)
		}
		ret = vk.CreateFence(s.device, &vk.FenceCreateInfo{
			SType: vk.StructureTypeFenceCreateInfo,
			Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit),
		}, nil, &s.frameFences[i])
		if ret != vk.Success {
			return fmt.Errorf("swapchain: vkCreateFence(frame[%d]): result %d", i, ret)
		}
	}
	s.presentSemaphores = make([]vk.Semaphore, len(s.images))
	for i := range s.presentSemaphores {
		ret := vk.CreateSemaphore(s.device, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &s.presentSemaphores[i])
		if ret != vk.Success {
			return fmt.Errorf("swapchain: vkCreateSemaphore(present[%d]): result %d", i, ret)
		}
	}
	return nil
}

func (s *Swapchain) destroyFrameResources() {
	for _, sem := range s.acquireSemaphores {
		vk.DestroySemaphore(s.device, sem, nil)
	}
	for _, f := range s.frameFences {
		vk.DestroyFence(s.device, f, nil)
	}
	for _, sem := range s.presentSemaphores {
		vk.DestroySemaphore(s.device, sem, nil)
	}
	s.acquireSemaphores, s.frameFences, s.presentSemaphores = nil, nil, nil
}

func (s *Swapchain) fetchImages() error {
	var n uint32
	vk.GetSwapchainImages(s.device, s.native, &n, nil)
	s.images = make([]vk.Image, n)
	vk.GetSwapchainImages(s.device, s.native, &n, s.images)
	s.views = make([]vk.ImageView, n)
	for i := range s.images {
		var view vk.ImageView
		ret := vk.CreateImageView(s.device, &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    s.images[i],
			ViewType: vk.ImageViewType2d,
			Format:   s.format.Format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleIdentity,
				G: vk.ComponentSwizzleIdentity,
				B: vk.ComponentSwizzleIdentity,
				A: vk.ComponentSwizzleIdentity,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}, nil, &view)
		if ret != vk.Success {
			return fmt.Errorf("swapchain: vkCreateImageView[%d]: result %d", i, ret)
		}
		s.views[i] = view
	}
	s.state = StateReady
	return nil
}

// Extent returns the current swapchain image extent.
func (s *Swapchain) Extent() vk.Extent2D { return s.extent }

// Format returns the selected surface format.
func (s *Swapchain) Format() vk.Format { return s.format.Format }

// ImageView returns the view for image index.
func (s *Swapchain) ImageView(index uint32) vk.ImageView { return s.views[index] }

// Image returns the native image handle for index.
func (s *Swapchain) Image(index uint32) vk.Image { return s.images[index] }

// State returns the swapchain's current lifecycle state.
func (s *Swapchain) State() State { return s.state }

// Native returns the underlying vk.Swapchain handle, for vkQueuePresent.
func (s *Swapchain) Native() vk.Swapchain { return s.native }

// AcquireNextImage throttles to framesInFlight in-flight frames (waiting on
// and resetting the current ring slot's frame fence, the fence the caller's
// submission for the previous use of this slot must signal), then acquires
// the next presentable image using that slot's acquire semaphore. Returns
// the image index, the semaphore the caller's submission must wait on before
// writing to the image, the fence that submission must signal on completion,
// and the semaphore the caller's submission must signal before Present is
// called for this image index. Transitions State to Suboptimal/OutOfDate as
// reported.
func (s *Swapchain) AcquireNextImage(timeoutNs uint64) (index uint32, acquireSem vk.Semaphore, frameFence vk.Fence, presentSem vk.Semaphore, err error) {
	slot := int(s.cpuFrame % uint64(s.framesInFlight))
	frameFence = s.frameFences[slot]
	if ret := vk.WaitForFences(s.device, 1, []vk.Fence{frameFence}, vk.True, timeoutNs); ret != vk.Success {
		return 0, 0, 0, 0, fmt.Errorf("swapchain: vkWaitForFences(frame throttle): result %d", ret)
	}
	if ret := vk.ResetFences(s.device, 1, []vk.Fence{frameFence}); ret != vk.Success {
		return 0, 0, 0, 0, fmt.Errorf("swapchain: vkResetFences(frame throttle): result %d", ret)
	}

	acquireSem = s.acquireSemaphores[slot]
	var noFence vk.Fence
	ret := vk.AcquireNextImage(s.device, s.native, timeoutNs, acquireSem, noFence, &index)
	s.cpuFrame++
	switch ret {
	case vk.Success:
		s.state = StateReady
	case vk.Suboptimal:
		s.state = StateSuboptimal
	case vk.ErrorOutOfDate:
		s.state = StateOutOfDate
		return 0, 0, 0, 0, fmt.Errorf("swapchain: out of date")
	default:
		return 0, 0, 0, 0, fmt.Errorf("swapchain: vkAcquireNextImage: result %d", ret)
	}
	return index, acquireSem, frameFence, s.presentSemaphores[index], nil
}

// Resize rebuilds the swapchain (reusing the current one as OldSwapchain)
// for a new surface extent, e.g. after a window resize or a Suboptimal/
// OutOfDate result. The old views are destroyed; the old vk.Swapchain handle
// is destroyed by New via OldSwapchain retirement.
func (s *Swapchain) Resize(desiredImages int) error {
	for _, v := range s.views {
		vk.DestroyImageView(s.device, v, nil)
	}
	s.destroyFrameResources()
	rebuilt, err := New(s.gpu, s.device, s.surface, desiredImages, s.framesInFlight, s.preferredSurfaceFormats, s.native)
	if err != nil {
		return err
	}
	*s = *rebuilt
	return nil
}

// Destroy releases every image view, the frame-resource ring, and the
// swapchain itself.
func (s *Swapchain) Destroy() {
	for _, v := range s.views {
		vk.DestroyImageView(s.device, v, nil)
	}
	s.destroyFrameResources()
	var zero vk.Swapchain
	if s.native != zero {
		vk.DestroySwapchain(s.device, s.native, nil)
	}
	s.state = StateDestroyed
}
