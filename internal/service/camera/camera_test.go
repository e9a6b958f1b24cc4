package camera

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"detectdemo/internal/config"
	"detectdemo/internal/logger"

	"gocv.io/x/gocv"
)

// ========================================
// Test Doubles
// ========================================

// fakeDevice produces solid frames of a fixed size.
type fakeDevice struct {
	width, height int
	failAfter     int // Reads that succeed before every read fails, 0 = never fail

	reads  atomic.Int64
	closes atomic.Int64
}

func (d *fakeDevice) Read(m *gocv.Mat) bool {
	n := d.reads.Add(1)
	time.Sleep(2 * time.Millisecond)
	if d.failAfter > 0 && int(n) > d.failAfter {
		return false
	}
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 120, 200, 0), d.height, d.width, gocv.MatTypeCV8UC3)
	defer frame.Close()
	frame.CopyTo(m)
	return true
}

func (d *fakeDevice) Close() error {
	d.closes.Add(1)
	return nil
}

func testLogger() *logger.Logger {
	return logger.NewWriterLogger(io.Discard)
}

func testConfig() *config.Config {
	return &config.Config{CameraDevice: "0", CameraReadFailures: 3}
}

func newTestManager(devices ...*fakeDevice) (*Manager, *atomic.Int64) {
	var opened atomic.Int64
	var mu sync.Mutex
	open := func(deviceID string) (Device, error) {
		mu.Lock()
		defer mu.Unlock()
		i := opened.Add(1) - 1
		if int(i) >= len(devices) {
			return nil, errors.New("no more devices")
		}
		return devices[i], nil
	}
	return NewManagerWithOpener(testConfig(), testLogger(), open), &opened
}

func waitReady(t *testing.T, s *Session) {
	t.Helper()
	ready := make(chan struct{})
	var once sync.Once
	s.OnReady(func() { once.Do(func() { close(ready) }) })
	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("Session did not become ready")
	}
}

// ========================================
// Acquire / Release
// ========================================

func TestManager_AcquireBecomesReady(t *testing.T) {
	device := &fakeDevice{width: 64, height: 48}
	m, _ := newTestManager(device)

	s, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer m.Release(s)

	waitReady(t, s)

	if !s.Available() {
		t.Error("Expected session to be available after ready")
	}
	w, h := s.Dimensions()
	if w != 64 || h != 48 {
		t.Errorf("Expected 64x48, got %dx%d", w, h)
	}
}

func TestSession_OnReadyFiresOnce(t *testing.T) {
	m, _ := newTestManager(&fakeDevice{width: 32, height: 32})
	s, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer m.Release(s)

	var calls atomic.Int64
	s.OnReady(func() { calls.Add(1) })
	waitReady(t, s)
	time.Sleep(20 * time.Millisecond)

	if calls.Load() != 1 {
		t.Errorf("Expected ready callback once, got %d", calls.Load())
	}
}

func TestSession_ReleaseIsIdempotent(t *testing.T) {
	device := &fakeDevice{width: 32, height: 32}
	m, _ := newTestManager(device)

	s, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	waitReady(t, s)

	m.Release(s)
	m.Release(s)
	s.Release()

	if device.closes.Load() != 1 {
		t.Errorf("Expected device closed once, got %d", device.closes.Load())
	}
	if s.Available() {
		t.Error("Released session should not be available")
	}
	if m.Active() != nil {
		t.Error("Expected no active session after release")
	}

	var nilSession *Session
	nilSession.Release()
	m.Release(nil)
}

func TestManager_AtMostOneActiveSession(t *testing.T) {
	first := &fakeDevice{width: 32, height: 32}
	second := &fakeDevice{width: 32, height: 32}
	m, _ := newTestManager(first, second)

	s1, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}
	s2, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Second acquire failed: %v", err)
	}
	defer m.Release(s2)

	if first.closes.Load() != 1 {
		t.Errorf("Expected first device closed by second acquisition, got %d closes", first.closes.Load())
	}
	if s1.Available() {
		t.Error("First session should be released")
	}
	if s2.ID() <= s1.ID() {
		t.Errorf("Expected increasing session ids, got %d then %d", s1.ID(), s2.ID())
	}
	if m.Active() != s2 {
		t.Error("Expected second session to be active")
	}
}

func TestManager_AcquireFailure(t *testing.T) {
	denied := func(string) (Device, error) {
		return nil, &AccessError{Device: "0", Err: ErrPermissionDenied}
	}
	m := NewManagerWithOpener(testConfig(), testLogger(), denied)

	s, err := m.Acquire(context.Background())
	if s != nil {
		t.Error("Expected no session on failure")
	}
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}
	var accessErr *AccessError
	if !errors.As(err, &accessErr) || !accessErr.PermissionDenied() {
		t.Errorf("Expected AccessError reporting permission denied, got %v", err)
	}

	broken := func(string) (Device, error) { return nil, errors.New("driver exploded") }
	m = NewManagerWithOpener(testConfig(), testLogger(), broken)
	if _, err := m.Acquire(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Expected ErrDeviceUnavailable, got %v", err)
	}
}

func TestManager_AcquireCanceled(t *testing.T) {
	device := &fakeDevice{width: 16, height: 16}
	slow := func(string) (Device, error) {
		time.Sleep(50 * time.Millisecond)
		return device, nil
	}
	m := NewManagerWithOpener(testConfig(), testLogger(), slow)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Acquire(ctx); !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Expected ErrDeviceUnavailable for canceled acquisition, got %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for device.closes.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if device.closes.Load() != 1 {
		t.Errorf("Expected late device to be closed, got %d closes", device.closes.Load())
	}
}

// ========================================
// Frames
// ========================================

func TestSession_EndsAfterReadFailures(t *testing.T) {
	device := &fakeDevice{width: 32, height: 32, failAfter: 2}
	m, _ := newTestManager(device)

	s, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer m.Release(s)
	waitReady(t, s)

	deadline := time.Now().Add(time.Second)
	for s.Available() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Available() {
		t.Fatal("Expected session to end after repeated read failures")
	}

	dst := gocv.NewMat()
	defer dst.Close()
	if err := s.CopyFrame(&dst); !errors.Is(err, ErrNoFrameAvailable) {
		t.Errorf("Expected ErrNoFrameAvailable from ended session, got %v", err)
	}
}

func TestSession_CopyFrameAndPreview(t *testing.T) {
	m, _ := newTestManager(&fakeDevice{width: 40, height: 30})

	if _, err := m.Preview(); !errors.Is(err, ErrNoFrameAvailable) {
		t.Errorf("Expected ErrNoFrameAvailable without a session, got %v", err)
	}

	s, err := m.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer m.Release(s)

	dst := gocv.NewMat()
	defer dst.Close()
	waitReady(t, s)

	if err := s.CopyFrame(&dst); err != nil {
		t.Fatalf("CopyFrame failed: %v", err)
	}
	if dst.Cols() != 40 || dst.Rows() != 30 {
		t.Errorf("Expected 40x30 copy, got %dx%d", dst.Cols(), dst.Rows())
	}

	jpg, err := m.Preview()
	if err != nil {
		t.Fatalf("Preview failed: %v", err)
	}
	if len(jpg) < 2 || jpg[0] != 0xFF || jpg[1] != 0xD8 {
		t.Error("Expected preview to be a JPEG")
	}
}
