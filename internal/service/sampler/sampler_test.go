package sampler

import (
	"errors"
	"testing"

	"detectdemo/internal/config"

	"gocv.io/x/gocv"
)

// matSource hands out a fixed frame, or fails when frame is nil.
type matSource struct {
	id    uint64
	frame *gocv.Mat
}

func (m *matSource) ID() uint64 { return m.id }

func (m *matSource) CopyFrame(dst *gocv.Mat) error {
	if m.frame == nil {
		return errors.New("not ready")
	}
	m.frame.CopyTo(dst)
	return nil
}

func newFrame(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 200, 30, 0), rows, cols, gocv.MatTypeCV8UC3)
}

func TestSampler_EncodesJPEGAtNativeResolution(t *testing.T) {
	s := NewSampler(&config.Config{JPEGQuality: 80})
	defer s.Close()

	frame := newFrame(48, 64)
	defer frame.Close()

	blob, err := s.Sample(&matSource{id: 7, frame: &frame}, "camera.jpg")
	if err != nil {
		t.Fatalf("Sample failed: %v", err)
	}

	if blob.Width != 64 || blob.Height != 48 {
		t.Errorf("Expected 64x48, got %dx%d", blob.Width, blob.Height)
	}
	if blob.SessionID != 7 {
		t.Errorf("Expected session id 7, got %d", blob.SessionID)
	}
	if blob.Name != "camera.jpg" || blob.ContentType != "image/jpeg" {
		t.Errorf("Unexpected blob metadata: %s %s", blob.Name, blob.ContentType)
	}

	decoded, err := gocv.IMDecode(blob.Data, gocv.IMReadColor)
	if err != nil {
		t.Fatalf("Blob is not a decodable image: %v", err)
	}
	defer decoded.Close()
	if decoded.Cols() != 64 || decoded.Rows() != 48 {
		t.Errorf("Decoded size mismatch: %dx%d", decoded.Cols(), decoded.Rows())
	}
}

func TestSampler_ReusesRasterAcrossSizes(t *testing.T) {
	s := NewSampler(&config.Config{})
	defer s.Close()

	small := newFrame(20, 30)
	defer small.Close()
	large := newFrame(60, 80)
	defer large.Close()

	for _, tc := range []struct {
		frame *gocv.Mat
		w, h  int
	}{{&large, 80, 60}, {&small, 30, 20}, {&large, 80, 60}} {
		blob, err := s.Sample(&matSource{id: 1, frame: tc.frame}, "live.jpg")
		if err != nil {
			t.Fatalf("Sample failed: %v", err)
		}
		if blob.Width != tc.w || blob.Height != tc.h {
			t.Errorf("Expected %dx%d, got %dx%d", tc.w, tc.h, blob.Width, blob.Height)
		}
	}
}

func TestSampler_NoFrameAvailable(t *testing.T) {
	s := NewSampler(&config.Config{})

	if _, err := s.Sample(&matSource{id: 1}, "live.jpg"); !errors.Is(err, ErrNoFrameAvailable) {
		t.Errorf("Expected ErrNoFrameAvailable, got %v", err)
	}

	s.Close()
	s.Close()

	frame := newFrame(10, 10)
	defer frame.Close()
	if _, err := s.Sample(&matSource{id: 1, frame: &frame}, "live.jpg"); !errors.Is(err, ErrNoFrameAvailable) {
		t.Errorf("Expected ErrNoFrameAvailable after close, got %v", err)
	}
}
