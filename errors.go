package bindlessvk

import (
	"errors"
	"fmt"
	"runtime"

	vk "github.com/vulkan-go/vulkan"
)

// ErrNotImplemented is a typed sentinel for reserved-but-unspecified features
// (raytracing pipelines, multi-adapter device selection). No function in
// this module returns it.
var ErrNotImplemented = errors.New("bindlessvk: not implemented")

// IsVkError reports whether ret denotes a Vulkan failure result.
func IsVkError(ret vk.Result) bool {
	return ret != vk.Success
}

// NewVkError wraps a non-success vk.Result into an error carrying the call
// site, matching errors.go's newError.
func NewVkError(ret vk.Result) error {
	if ret == vk.Success {
		return nil
	}
	pc, file, line, ok := runtime.Caller(1)
	if !ok {
		return fmt.Errorf("vulkan error: %d", ret)
	}
	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	return fmt.Errorf("vulkan error: %d on %s (%s:%d)", ret, name, file, line)
}

// OrPanic panics with err after running finalizers, for programmer-error
// paths (barrier-batch overflow, state-machine violations) where recovery at
// the call site would only mask a usage bug. Device-boundary calls
// (instance/device/allocator creation) return errors instead.
func OrPanic(err error, finalizers ...func()) {
	if err != nil {
		for _, fn := range finalizers {
			fn()
		}
		panic(err)
	}
}

// CheckErr recovers a panic into *err, for use as a deferred call at package
// API boundaries that must not let an internal OrPanic escape as a panic.
func CheckErr(err *error) {
	if v := recover(); v != nil {
		switch e := v.(type) {
		case error:
			*err = e
		default:
			*err = fmt.Errorf("%+v", v)
		}
	}
}
