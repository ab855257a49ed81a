package device

import bvk "github.com/andewx/bindlessvk"

// SetObjectName records a "<kind>:<name>" debug label for a resource, e.g.
// for display in a GPU capture tool's object browser. vulkan-go's generated
// bindings do not expose VK_EXT_debug_utils object naming, so this surfaces
// the label through the structured logger instead of a driver call — still
// useful for correlating validation-layer messages (which report raw
// handles) with the resource that produced them.
func (d *Device) SetObjectName(kind, name string) {
	bvk.Logger().Debug("object name", "label", kind+":"+name)
}
