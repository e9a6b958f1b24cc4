package camera

import (
	"fmt"
	"sync"
	"time"

	"detectdemo/internal/logger"

	"gocv.io/x/gocv"
)

// retryDelay is how long the pump waits after a failed read.
const retryDelay = 10 * time.Millisecond

// Session is an active camera stream. A frame pump keeps the latest frame,
// the way a video element does for the page.
type Session struct {
	id       uint64
	deviceID string
	device   Device
	logger   *logger.Logger

	maxReadFailures int

	mu       sync.Mutex
	frame    gocv.Mat // Latest frame, owned by mu
	width    int
	height   int
	ready    bool
	ended    bool
	released bool
	onReady  []func()

	stopOnce sync.Once
	stop     chan struct{}
	exited   chan struct{}
}

func newSession(id uint64, deviceID string, device Device, maxReadFailures int, logger *logger.Logger) *Session {
	if maxReadFailures <= 0 {
		maxReadFailures = 1
	}
	s := &Session{
		id:              id,
		deviceID:        deviceID,
		device:          device,
		logger:          logger,
		maxReadFailures: maxReadFailures,
		frame:           gocv.NewMat(),
		stop:            make(chan struct{}),
		exited:          make(chan struct{}),
	}
	go s.pump()
	return s
}

// ID is unique per process and increases with every acquisition.
func (s *Session) ID() uint64 {
	return s.id
}

// Available reports whether a frame can be sampled right now.
func (s *Session) Available() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready && !s.ended && !s.released
}

// Dimensions returns the native frame size, zero until ready.
func (s *Session) Dimensions() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// OnReady registers cb to run once, when the first frame arrives. If the
// session is already ready cb runs immediately on the caller's goroutine.
// Callbacks run on the pump goroutine and must not call Release.
func (s *Session) OnReady(cb func()) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	if !s.ready {
		s.onReady = append(s.onReady, cb)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	cb()
}

// CopyFrame copies the current frame into dst, resizing dst as needed.
func (s *Session) CopyFrame(dst *gocv.Mat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready || s.ended || s.released || s.frame.Empty() {
		return ErrNoFrameAvailable
	}
	s.frame.CopyTo(dst)
	return nil
}

// PreviewJPEG encodes the current frame for the live preview.
func (s *Session) PreviewJPEG() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready || s.ended || s.released || s.frame.Empty() {
		return nil, ErrNoFrameAvailable
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, s.frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

// Release stops the pump and closes the device. It is idempotent and safe
// on a nil session.
func (s *Session) Release() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.released = true
		s.onReady = nil
		s.mu.Unlock()
		close(s.stop)
	})
	<-s.exited
}

// pump reads frames until released or the device keeps failing.
func (s *Session) pump() {
	scratch := gocv.NewMat()
	defer func() {
		scratch.Close()
		if err := s.device.Close(); err != nil {
			s.logger.Warning("Camera %s session %d: close failed: %v", s.deviceID, s.id, err)
		}
		s.mu.Lock()
		s.frame.Close()
		s.mu.Unlock()
		close(s.exited)
	}()

	failures := 0
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		if !s.device.Read(&scratch) || scratch.Empty() {
			failures++
			if failures >= s.maxReadFailures {
				s.mu.Lock()
				s.ended = true
				s.mu.Unlock()
				s.logger.Warning("Camera %s session %d ended after %d failed reads", s.deviceID, s.id, failures)
				return
			}
			select {
			case <-s.stop:
				return
			case <-time.After(retryDelay):
			}
			continue
		}
		failures = 0

		s.mu.Lock()
		s.frame, scratch = scratch, s.frame
		s.width, s.height = s.frame.Cols(), s.frame.Rows()
		width, height := s.width, s.height
		var callbacks []func()
		becameReady := false
		if !s.ready && !s.released {
			s.ready = true
			becameReady = true
			callbacks = s.onReady
			s.onReady = nil
		}
		s.mu.Unlock()

		if becameReady {
			s.logger.Info("Camera %s session %d ready (%dx%d)", s.deviceID, s.id, width, height)
			for _, cb := range callbacks {
				cb()
			}
		}
	}
}
