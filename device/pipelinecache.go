package device

import (
	"fmt"
	"os"

	"github.com/andewx/bindlessvk/internal/sbf"
	vk "github.com/vulkan-go/vulkan"
)

// driverInfo reads the current GPU's driver version triple as reported by
// vkGetPhysicalDeviceProperties, for comparison against a cache blob's
// .cacheinfo sidecar.
func (d *Device) driverInfo() sbf.DriverInfo {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(d.gpu, &props)
	props.Deref()
	v := props.DriverVersion
	return sbf.DriverInfo{
		Major: (v >> 22) & 0x3ff,
		Minor: (v >> 12) & 0x3ff,
		Patch: v & 0xfff,
	}
}

// SavePipelineCache writes the device's vk.PipelineCache contents to path,
// and the current driver version triple to path+".cacheinfo", so a future
// LoadPipelineCache on a different driver discards rather than misuses it.
func (d *Device) SavePipelineCache(cache vk.PipelineCache, path string) error {
	var size uint
	ret := vk.GetPipelineCacheData(d.handle, cache, &size, nil)
	if ret != vk.Success {
		return fmt.Errorf("device: vkGetPipelineCacheData(size): result %d", ret)
	}
	data := make([]byte, size)
	ret = vk.GetPipelineCacheData(d.handle, cache, &size, data)
	if ret != vk.Success {
		return fmt.Errorf("device: vkGetPipelineCacheData: result %d", ret)
	}

	blob := sbf.Write(sbf.Header{Version: sbf.CurrentVersion}, data)
	if err := os.WriteFile(path, blob, 0o644); err != nil {
		return fmt.Errorf("device: SavePipelineCache: %w", err)
	}
	sidecar := sbf.WriteDriverInfo(d.driverInfo())
	if err := os.WriteFile(path+".cacheinfo", sidecar, 0o644); err != nil {
		return fmt.Errorf("device: SavePipelineCache: writing sidecar: %w", err)
	}
	return nil
}

// LoadPipelineCache reads path (and its .cacheinfo sidecar) and creates a
// vk.PipelineCache from the payload. If the sidecar is missing, unreadable,
// or its driver version triple does not match the current device, the cache
// is created empty instead of seeded from stale data.
func (d *Device) LoadPipelineCache(path string) (vk.PipelineCache, error) {
	var initial []byte
	if blob, err := os.ReadFile(path); err == nil {
		if sidecar, err := os.ReadFile(path + ".cacheinfo"); err == nil {
			if stored, err := sbf.ReadDriverInfo(sidecar); err == nil && stored.Matches(d.driverInfo()) {
				if _, payload, err := sbf.Read(blob); err == nil {
					initial = payload
				}
			}
		}
	}

	var cache vk.PipelineCache
	ret := vk.CreatePipelineCache(d.handle, &vk.PipelineCacheCreateInfo{
		SType:           vk.StructureTypePipelineCacheCreateInfo,
		InitialDataSize: uint(len(initial)),
		PInitialData:    initial,
	}, nil, &cache)
	if ret != vk.Success {
		return cache, fmt.Errorf("device: vkCreatePipelineCache: result %d", ret)
	}
	return cache, nil
}
