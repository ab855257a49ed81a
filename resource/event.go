package resource

import vk "github.com/vulkan-go/vulkan"

// EventState mirrors a Vulkan event's two states. Vulkan itself exposes
// vkGetEventStatus for a live device-side query; this field only records
// what the holder last told command.Buffer.SetEvent/ResetEvent to record,
// so code that only has an *Event (not a command buffer) can tell which way
// it was last driven without a round trip to the driver.
type EventState int

const (
	EventUnsignaled EventState = iota
	EventSignaled
)

// Event wraps a native vk.Event, the finer-grained intra-command-buffer
// synchronization handshake command.Buffer.SetEvent/ResetEvent/WaitEvent
// expose as an alternative to a full pipeline barrier.
type Event struct {
	device vk.Device
	Native vk.Event
	state  EventState
}

// NewEvent wraps an already-created vk.Event, Unsignaled until SetSignaled.
func NewEvent(device vk.Device, native vk.Event) *Event {
	return &Event{device: device, Native: native, state: EventUnsignaled}
}

// State returns the state last recorded by SetSignaled/SetUnsignaled.
func (e *Event) State() EventState { return e.state }

// SetSignaled records that a vkCmdSetEvent2 for this event has been queued.
func (e *Event) SetSignaled() { e.state = EventSignaled }

// SetUnsignaled records that a vkCmdResetEvent2 for this event has been
// queued.
func (e *Event) SetUnsignaled() { e.state = EventUnsignaled }

func (e *Event) destroy() {
	vk.DestroyEvent(e.device, e.Native, nil)
}
