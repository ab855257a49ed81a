// Package descriptor implements the bindless mega descriptor set: one
// PARTIALLY_BOUND | UPDATE_AFTER_BIND set carrying storage images, combined
// image samplers, sampled images and samplers, a push-constant-size-keyed
// pipeline-layout table, and the buffer-device-address table that lets
// shaders address storage buffers without a bound descriptor slot. Grounded
// on original_source/rhi/private/src/vulkan/device.cpp's
// initialize_descriptor_cache/create_pipeline_layouts/
// get_appropriate_pipeline_layout.
package descriptor

import vk "github.com/vulkan-go/vulkan"

// pushConstantAlignment is the multiple-of-4 requirement Vulkan places on
// push-constant ranges; the layout table is built at these granularities.
const pushConstantAlignment = 4

// BuildLayoutSizes returns the ascending, 4-byte-aligned push-constant sizes
// from 0 up to and including deviceMax that create_pipeline_layouts builds
// one vk.PipelineLayout for, each holding a single push-constant range
// [0, size).
func BuildLayoutSizes(deviceMax uint32) []uint32 {
	max := roundDownToMultiple(deviceMax, pushConstantAlignment)
	sizes := make([]uint32, 0, max/pushConstantAlignment+1)
	for sz := uint32(0); sz <= max; sz += pushConstantAlignment {
		sizes = append(sizes, sz)
	}
	return sizes
}

func roundDownToMultiple(v, mult uint32) uint32 {
	return v - (v % mult)
}

// RoundUpPowerOfTwo rounds size up to the next power of two using the
// classic bit-smear sequence, preserved exactly as the original's
// get_appropriate_pipeline_layout does so pipeline-cache blobs stay
// byte-compatible across builds.
func RoundUpPowerOfTwo(size uint32) uint32 {
	if size == 0 {
		return 0
	}
	n := size - 1
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	return n + 1
}

// GetAppropriatePipelineLayout returns the push-constant-range size a
// requested push-constant size should be looked up under in the layout
// table: clamp to deviceMax, then round the clamped value up to the next
// power of two unless it already equals deviceMax.
func GetAppropriatePipelineLayout(requested, deviceMax uint32) uint32 {
	if requested >= deviceMax {
		return deviceMax
	}
	if requested == 0 {
		return 0
	}
	return RoundUpPowerOfTwo(requested)
}

// LayoutTable maps a push-constant range size to the vk.PipelineLayout built
// for it, mirroring the original's map<uint32_t, VkPipelineLayout>.
type LayoutTable struct {
	device    vk.Device
	setLayout vk.DescriptorSetLayout
	deviceMax uint32
	layouts   map[uint32]vk.PipelineLayout
}

// NewLayoutTable constructs the pipeline-layout table for every 4-byte
// aligned push-constant size up to deviceMax, each combining the single
// bindless set layout with one push-constant range [0, size) visible to all
// stages.
func NewLayoutTable(device vk.Device, setLayout vk.DescriptorSetLayout, deviceMax uint32) (*LayoutTable, error) {
	t := &LayoutTable{
		device:    device,
		setLayout: setLayout,
		deviceMax: roundDownToMultiple(deviceMax, pushConstantAlignment),
		layouts:   make(map[uint32]vk.PipelineLayout),
	}
	for _, size := range BuildLayoutSizes(deviceMax) {
		layout, err := t.createLayout(size)
		if err != nil {
			t.Destroy()
			return nil, err
		}
		t.layouts[size] = layout
	}
	return t, nil
}

func (t *LayoutTable) createLayout(pushConstantSize uint32) (vk.PipelineLayout, error) {
	setLayouts := []vk.DescriptorSetLayout{t.setLayout}
	info := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	var ranges []vk.PushConstantRange
	if pushConstantSize > 0 {
		ranges = []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageAll),
			Offset:     0,
			Size:       pushConstantSize,
		}}
		info.PushConstantRangeCount = uint32(len(ranges))
		info.PPushConstantRanges = ranges
	}
	var layout vk.PipelineLayout
	ret := vk.CreatePipelineLayout(t.device, &info, nil, &layout)
	if ret != vk.Success {
		var zero vk.PipelineLayout
		return zero, &layoutError{size: pushConstantSize, result: ret}
	}
	return layout, nil
}

// Lookup returns the pipeline layout appropriate for requested push-constant
// bytes, per GetAppropriatePipelineLayout.
func (t *LayoutTable) Lookup(requested uint32) (vk.PipelineLayout, bool) {
	size := GetAppropriatePipelineLayout(requested, t.deviceMax)
	l, ok := t.layouts[size]
	return l, ok
}

// Destroy releases every pipeline layout in the table.
func (t *LayoutTable) Destroy() {
	for _, l := range t.layouts {
		vk.DestroyPipelineLayout(t.device, l, nil)
	}
	t.layouts = make(map[uint32]vk.PipelineLayout)
}

type layoutError struct {
	size   uint32
	result vk.Result
}

func (e *layoutError) Error() string {
	return "descriptor: vkCreatePipelineLayout(push_constant_size=" +
		itoa(e.size) + "): result " + itoa(uint32(e.result))
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
