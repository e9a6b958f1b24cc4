package pipeline

import "errors"

var (
	ErrClosed             = errors.New("pipeline closed")
	ErrEmptyUpload        = errors.New("empty upload")
	ErrCaptureUnavailable = errors.New("capture not available")
	ErrSuperseded         = errors.New("camera request superseded")
)

const (
	networkErrorMessage = "Failed to fetch results. Is the backend running?"

	cameraAlert    = "Unable to access camera. Check permissions."
	liveAlert      = "Unable to start live detection. Check camera permissions."
	noCameraAlert  = "No camera available."
	noLiveCamAlert = "Unable to start live detection. No camera available."
)

// permissionDenied is implemented by acquisition errors that know whether
// the user refused access.
type permissionDenied interface {
	PermissionDenied() bool
}

// AlertFor is the notice shown for a failed camera acquisition.
func AlertFor(err error, live bool) string {
	var pd permissionDenied
	denied := errors.As(err, &pd) && pd.PermissionDenied()
	switch {
	case live && denied:
		return liveAlert
	case live:
		return noLiveCamAlert
	case denied:
		return cameraAlert
	default:
		return noCameraAlert
	}
}
