package sampler

import (
	"errors"
	"fmt"
	"sync"

	"detectdemo/internal/config"
	"detectdemo/internal/model"

	"gocv.io/x/gocv"
)

// ErrNoFrameAvailable is returned when the source has no frame to give.
var ErrNoFrameAvailable = errors.New("no frame available")

const (
	DefaultJPEGQuality = 90
	jpegContentType    = "image/jpeg"
)

// FrameSource is a camera session the sampler can read from.
type FrameSource interface {
	ID() uint64
	CopyFrame(dst *gocv.Mat) error
}

// Sampler draws the current frame into one reused raster and encodes it as JPEG.
type Sampler struct {
	mu      sync.Mutex // Exclusive use of raster
	raster  gocv.Mat
	quality int
	closed  bool
}

// NewSampler creates a Sampler with the configured JPEG quality.
func NewSampler(config *config.Config) *Sampler {
	quality := config.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &Sampler{
		raster:  gocv.NewMat(),
		quality: quality,
	}
}

// Sample captures src's current frame at native resolution.
func (s *Sampler) Sample(src FrameSource, name string) (model.ImageBlob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return model.ImageBlob{}, ErrNoFrameAvailable
	}
	if err := src.CopyFrame(&s.raster); err != nil {
		return model.ImageBlob{}, fmt.Errorf("%w: %v", ErrNoFrameAvailable, err)
	}
	if s.raster.Empty() {
		return model.ImageBlob{}, ErrNoFrameAvailable
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, s.raster, []int{gocv.IMWriteJpegQuality, s.quality})
	if err != nil {
		return model.ImageBlob{}, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())

	return model.ImageBlob{
		Name:        name,
		ContentType: jpegContentType,
		Data:        data,
		Width:       s.raster.Cols(),
		Height:      s.raster.Rows(),
		SessionID:   src.ID(),
	}, nil
}

// Close frees the raster. Later samples fail with ErrNoFrameAvailable.
func (s *Sampler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		s.raster.Close()
	}
}
