package camera

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"gocv.io/x/gocv"
)

// Device is the part of gocv.VideoCapture a session needs.
type Device interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Opener opens a capture device by id (index, file path or stream URL).
type Opener func(deviceID string) (Device, error)

// OpenVideoCapture opens deviceID with gocv. Numeric ids are device indexes.
func OpenVideoCapture(deviceID string) (Device, error) {
	var source interface{} = deviceID
	if index, err := strconv.Atoi(deviceID); err == nil {
		if err := checkDeviceNode(index); err != nil {
			return nil, &AccessError{Device: deviceID, Err: classify(err), Cause: err}
		}
		source = index
	}

	vc, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return nil, &AccessError{Device: deviceID, Err: ErrDeviceUnavailable, Cause: err}
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, &AccessError{Device: deviceID, Err: ErrDeviceUnavailable}
	}
	return vc, nil
}

// checkDeviceNode probes /dev/videoN where it exists so that a permission
// problem is not reported as a missing device.
func checkDeviceNode(index int) error {
	node := fmt.Sprintf("/dev/video%d", index)
	if _, err := os.Stat(node); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// Not a V4L system (or no such node); let gocv decide.
			return nil
		}
		return err
	}
	f, err := os.OpenFile(node, os.O_RDONLY, 0)
	if err != nil {
		return err
	}
	return f.Close()
}

func classify(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return ErrPermissionDenied
	}
	return ErrDeviceUnavailable
}
