// Command bindlessvk-smoke opens a GLFW window, brings up a Device against
// its surface, acquires and presents a swapchain image in a loop, and exits
// cleanly. It requires a real GPU and windowing system, so it is excluded
// from `go test ./...` by the manual build tag — run it directly with
// `go run -tags manual ./cmd/bindlessvk-smoke`.
//
// Grounded on application.go/test/render_test.go's GLFW bring-up sequence
// (glfw.Init, window creation, vk.SetGetInstanceProcAddr, the
// window/poll-events loop).
//
//go:build manual

package main

import (
	"log/slog"
	"os"
	"runtime"

	bvk "github.com/andewx/bindlessvk"
	"github.com/andewx/bindlessvk/device"
	"github.com/andewx/bindlessvk/swapchain"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
)

const (
	windowWidth  = 1280
	windowHeight = 720
)

func main() {
	runtime.LockOSThread()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	bvk.SetLogger(logger)

	if err := glfw.Init(); err != nil {
		logger.Error("glfw.Init failed", "err", err)
		os.Exit(1)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	window, err := glfw.CreateWindow(windowWidth, windowHeight, "bindlessvk smoke", nil, nil)
	if err != nil {
		logger.Error("glfw.CreateWindow failed", "err", err)
		os.Exit(1)
	}

	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vk.Init(); err != nil {
		logger.Error("vk.Init failed", "err", err)
		os.Exit(1)
	}

	dev, err := device.Initialize(device.DeviceInitInfo{
		ApplicationName: "bindlessvk-smoke",
		Validation:      true,
		CreateSurface: func(instance vk.Instance) (vk.Surface, error) {
			ptr, err := window.CreateWindowSurface(instance, nil)
			if err != nil {
				return vk.NullSurface, err
			}
			return vk.SurfaceFromPointer(ptr), nil
		},
	})
	if err != nil {
		logger.Error("device.Initialize failed", "err", err)
		os.Exit(1)
	}
	defer dev.Destroy()

	preferredFormats := []vk.SurfaceFormat{
		{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	sc, err := swapchain.New(dev.PhysicalDevice(), dev.Handle(), dev.Surface(), 3, 2, preferredFormats, vk.NullSwapchain)
	if err != nil {
		logger.Error("swapchain.New failed", "err", err)
		os.Exit(1)
	}
	defer sc.Destroy()

	frames := 0
	for !window.ShouldClose() && frames < 120 {
		glfw.PollEvents()

		index, _, _, presentSem, err := sc.AcquireNextImage(^uint64(0))
		if err != nil {
			logger.Warn("AcquireNextImage failed", "err", err)
			break
		}
		if _, err := dev.Graphics.Present(sc.Native(), index, []vk.Semaphore{presentSem}); err != nil {
			logger.Warn("present failed", "err", err)
		}

		if n, err := dev.ClearGarbage(); err == nil && n > 0 {
			logger.Debug("reclaimed zombie resources", "count", n)
		}
		frames++
	}

	logger.Info("smoke run complete", "frames", frames)
}
