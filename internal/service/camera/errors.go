package camera

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied  = errors.New("camera permission denied")
	ErrDeviceUnavailable = errors.New("camera device unavailable")
	ErrNoFrameAvailable  = errors.New("no frame available")
)

// AccessError reports a failed acquisition. Err is ErrPermissionDenied or
// ErrDeviceUnavailable, possibly wrapping the driver error in Cause.
type AccessError struct {
	Device string
	Err    error
	Cause  error
}

func (e *AccessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("camera %s: %v: %v", e.Device, e.Err, e.Cause)
	}
	return fmt.Sprintf("camera %s: %v", e.Device, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

// PermissionDenied lets callers classify the failure without importing this package.
func (e *AccessError) PermissionDenied() bool {
	return errors.Is(e.Err, ErrPermissionDenied)
}
