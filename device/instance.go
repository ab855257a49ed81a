package device

import (
	"fmt"
	"unsafe"

	bvk "github.com/andewx/bindlessvk"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

// requiredValidationLayer is enabled only when DeviceInitInfo.Validation is
// set, matching platform.go's ApplicationVulkanLayers negotiation but
// hardcoded to the one layer this runtime cares about.
const requiredValidationLayer = "VK_LAYER_KHRONOS_validation"

func (d *Device) createInstance(info DeviceInitInfo) error {
	instanceExtensions, err := enumerateInstanceExtensions()
	if err != nil {
		return fmt.Errorf("device: createInstance: %w", err)
	}
	if info.CreateSurface != nil {
		instanceExtensions = appendMissing(instanceExtensions, platformSurfaceExtensions()...)
	}
	if info.Validation {
		instanceExtensions = appendMissing(instanceExtensions, "VK_EXT_debug_report")
	}

	var layers []string
	if info.Validation {
		available, err := enumerateInstanceLayers()
		if err != nil {
			return fmt.Errorf("device: createInstance: %w", err)
		}
		if contains(available, requiredValidationLayer) {
			layers = append(layers, requiredValidationLayer)
		}
	}

	appName := info.ApplicationName
	if appName == "" {
		appName = "bindlessvk"
	}

	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:            vk.StructureTypeApplicationInfo,
			PApplicationName: safeString(appName),
			PEngineName:      safeString("bindlessvk"),
			ApiVersion:       uint32(vk.MakeVersion(1, 3, 0)),
		},
		EnabledExtensionCount:   uint32(len(instanceExtensions)),
		PpEnabledExtensionNames: instanceExtensions,
		EnabledLayerCount:       uint32(len(layers)),
		PpEnabledLayerNames:     layers,
	}, nil, &instance)
	if ret != vk.Success {
		return fmt.Errorf("device: vkCreateInstance: result %d", ret)
	}
	d.instance = instance
	vk.InitInstance(instance)
	return nil
}

func (d *Device) createDebugMessenger() error {
	ret := vk.CreateDebugReportCallback(d.instance, &vk.DebugReportCallbackCreateInfo{
		SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
		PfnCallback: debugCallback,
	}, nil, &d.debugMessenger)
	if ret != vk.Success {
		return fmt.Errorf("device: vkCreateDebugReportCallback: result %d", ret)
	}
	return nil
}

func debugCallback(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
	object uint64, location uint, messageCode int32, pLayerPrefix, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	logFromDebugReport(flags, pLayerPrefix, pMessage)
	return vk.Bool32(vk.False)
}

func enumerateInstanceExtensions() ([]string, error) {
	var count uint32
	ret := vk.EnumerateInstanceExtensionProperties("", &count, nil)
	if ret != vk.Success {
		return nil, fmt.Errorf("vkEnumerateInstanceExtensionProperties(count): result %d", ret)
	}
	props := make([]vk.ExtensionProperties, count)
	ret = vk.EnumerateInstanceExtensionProperties("", &count, props)
	if ret != vk.Success {
		return nil, fmt.Errorf("vkEnumerateInstanceExtensionProperties: result %d", ret)
	}
	names := make([]string, 0, count)
	for _, p := range props {
		p.Deref()
		names = append(names, vk.ToString(p.ExtensionName[:]))
	}
	return names, nil
}

func enumerateInstanceLayers() ([]string, error) {
	var count uint32
	ret := vk.EnumerateInstanceLayerProperties(&count, nil)
	if ret != vk.Success {
		return nil, fmt.Errorf("vkEnumerateInstanceLayerProperties(count): result %d", ret)
	}
	props := make([]vk.LayerProperties, count)
	ret = vk.EnumerateInstanceLayerProperties(&count, props)
	if ret != vk.Success {
		return nil, fmt.Errorf("vkEnumerateInstanceLayerProperties: result %d", ret)
	}
	names := make([]string, 0, count)
	for _, p := range props {
		p.Deref()
		names = append(names, vk.ToString(p.LayerName[:]))
	}
	return names, nil
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

func appendMissing(list []string, items ...string) []string {
	for _, item := range items {
		if !contains(list, item) {
			list = append(list, item)
		}
	}
	return list
}

func safeString(s string) string {
	return s + "\x00"
}

// platformSurfaceExtensions returns the windowing-system surface extensions
// GLFW requires for the current platform, for callers that pass a real
// presentation surface into DeviceInitInfo.
func platformSurfaceExtensions() []string {
	return glfw.GetRequiredInstanceExtensions()
}

func logFromDebugReport(flags vk.DebugReportFlags, layerPrefix, message string) {
	logger := bvk.Logger()
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		logger.Error("vulkan validation", "layer", layerPrefix, "message", message)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		logger.Warn("vulkan validation", "layer", layerPrefix, "message", message)
	default:
		logger.Info("vulkan validation", "layer", layerPrefix, "message", message)
	}
}
