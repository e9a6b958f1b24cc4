package camera

import (
	"context"
	"errors"
	"sync"

	"detectdemo/internal/config"
	"detectdemo/internal/logger"
)

// Manager owns camera sessions. At most one session is active at a time.
type Manager struct {
	deviceID        string
	maxReadFailures int
	open            Opener
	logger          *logger.Logger

	mu     sync.Mutex
	nextID uint64
	active *Session
}

// NewManager creates a Manager for the configured device using gocv.
func NewManager(config *config.Config, logger *logger.Logger) *Manager {
	return NewManagerWithOpener(config, logger, OpenVideoCapture)
}

// NewManagerWithOpener is NewManager with a custom device opener.
func NewManagerWithOpener(config *config.Config, logger *logger.Logger, open Opener) *Manager {
	return &Manager{
		deviceID:        config.CameraDevice,
		maxReadFailures: config.CameraReadFailures,
		open:            open,
		logger:          logger,
	}
}

type openResult struct {
	device Device
	err    error
}

// Acquire opens the device and starts a new session. Any session still
// active is released first.
func (m *Manager) Acquire(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	previous := m.active
	m.active = nil
	m.mu.Unlock()
	if previous != nil {
		m.logger.Info("Camera %s: releasing session %d for a new acquisition", m.deviceID, previous.ID())
		previous.Release()
	}

	done := make(chan openResult, 1)
	go func() {
		device, err := m.open(m.deviceID)
		done <- openResult{device: device, err: err}
	}()

	var res openResult
	select {
	case res = <-done:
	case <-ctx.Done():
		go func() {
			// The open may still succeed; close the device nobody will use.
			if late := <-done; late.err == nil {
				late.device.Close()
			}
		}()
		return nil, &AccessError{Device: m.deviceID, Err: ErrDeviceUnavailable, Cause: ctx.Err()}
	}

	if res.err != nil {
		m.logger.Error("Camera %s: acquisition failed: %v", m.deviceID, res.err)
		var accessErr *AccessError
		if errors.As(res.err, &accessErr) {
			return nil, res.err
		}
		return nil, &AccessError{Device: m.deviceID, Err: ErrDeviceUnavailable, Cause: res.err}
	}

	m.mu.Lock()
	m.nextID++
	session := newSession(m.nextID, m.deviceID, res.device, m.maxReadFailures, m.logger)
	previous = m.active
	m.active = session
	m.mu.Unlock()

	// Two acquisitions raced; the newer one wins.
	if previous != nil {
		previous.Release()
	}

	m.logger.Info("Camera %s: session %d acquired", m.deviceID, session.ID())
	return session, nil
}

// Release releases session. Calling it with a released or nil session is a no-op.
func (m *Manager) Release(session *Session) {
	if session == nil {
		return
	}
	m.mu.Lock()
	if m.active == session {
		m.active = nil
	}
	m.mu.Unlock()
	session.Release()
}

// Active returns the current session or nil.
func (m *Manager) Active() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Preview encodes the active session's current frame.
func (m *Manager) Preview() ([]byte, error) {
	session := m.Active()
	if session == nil {
		return nil, ErrNoFrameAvailable
	}
	return session.PreviewJPEG()
}

// Close releases the active session.
func (m *Manager) Close() {
	m.mu.Lock()
	session := m.active
	m.active = nil
	m.mu.Unlock()
	session.Release()
}
