package app

import (
	"context"
	"fmt"

	"detectdemo/internal/model"
	"detectdemo/internal/service/camera"
	"detectdemo/internal/service/pipeline"
	"detectdemo/internal/service/sampler"
)

// cameraSession hands a session back to its manager on Release, so the
// manager's active session and the preview stay in sync.
type cameraSession struct {
	*camera.Session
	manager *camera.Manager
}

func (s cameraSession) Release() {
	s.manager.Release(s.Session)
}

// cameraSource adapts camera.Manager to pipeline.MediaSource.
type cameraSource struct {
	manager *camera.Manager
}

func (c cameraSource) Acquire(ctx context.Context) (pipeline.Session, error) {
	session, err := c.manager.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return cameraSession{Session: session, manager: c.manager}, nil
}

// frameSampler adapts sampler.Sampler to pipeline.FrameSampler.
type frameSampler struct {
	sampler *sampler.Sampler
}

func (f frameSampler) Sample(session pipeline.Session, name string) (model.ImageBlob, error) {
	src, ok := session.(sampler.FrameSource)
	if !ok {
		return model.ImageBlob{}, fmt.Errorf("session %d cannot be sampled", session.ID())
	}
	return f.sampler.Sample(src, name)
}
