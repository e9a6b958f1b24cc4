package app

import (
	"testing"

	"detectdemo/internal/config"
	"detectdemo/internal/service/sampler"
)

type plainSession struct{}

func (plainSession) ID() uint64        { return 7 }
func (plainSession) Available() bool   { return true }
func (plainSession) OnReady(cb func()) { cb() }
func (plainSession) Release()          {}

func TestFrameSampler_RejectsForeignSession(t *testing.T) {
	s := sampler.NewSampler(&config.Config{})
	defer s.Close()

	if _, err := (frameSampler{sampler: s}).Sample(plainSession{}, "live.jpg"); err == nil {
		t.Error("Expected error for a session without frames")
	}
}
