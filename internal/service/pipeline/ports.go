package pipeline

import (
	"context"
	"time"

	"detectdemo/internal/model"
)

// Session is an acquired camera stream.
type Session interface {
	ID() uint64
	Available() bool
	OnReady(cb func())
	Release()
}

// MediaSource acquires camera sessions.
type MediaSource interface {
	Acquire(ctx context.Context) (Session, error)
}

// FrameSampler encodes the current frame of a session.
type FrameSampler interface {
	Sample(session Session, name string) (model.ImageBlob, error)
}

// Detector runs remote inference on an image.
type Detector interface {
	Infer(ctx context.Context, blob model.ImageBlob) (*model.DetectionResult, error)
}

// Annotator draws detections when the service returns no annotated image.
type Annotator interface {
	Annotate(img []byte, detections []model.Detection) ([]byte, error)
}

// MotionGate decides whether a live frame is worth sending.
type MotionGate interface {
	Changed(blob model.ImageBlob) (bool, error)
}

// Ticker drives live sampling.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker with the given period.
type TickerFactory func(period time.Duration) Ticker

type timeTicker struct {
	*time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.Ticker.C }

// NewTimeTicker wraps time.NewTicker.
func NewTimeTicker(period time.Duration) Ticker {
	return timeTicker{time.NewTicker(period)}
}
