package resource

import (
	"github.com/andewx/bindlessvk/command"
	"github.com/andewx/bindlessvk/swapchain"
)

// CommandPool adapts command.Pool to Destroyer so a command pool can be held
// in a Pool[T] and follow the same ref-counted pool/zombie lifecycle as
// every other resource kind.
type CommandPool struct {
	Native *command.Pool
}

// NewCommandPool wraps an already-created command.Pool.
func NewCommandPool(native *command.Pool) *CommandPool {
	return &CommandPool{Native: native}
}

func (p *CommandPool) destroy() {
	p.Native.Destroy()
}

// Swapchain adapts swapchain.Swapchain to Destroyer, so a swapchain can be
// held in a Pool[T] like every other kind.
type Swapchain struct {
	Native *swapchain.Swapchain
}

// NewSwapchain wraps an already-created swapchain.Swapchain.
func NewSwapchain(native *swapchain.Swapchain) *Swapchain {
	return &Swapchain{Native: native}
}

func (s *Swapchain) destroy() {
	s.Native.Destroy()
}
