package pipeline

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"detectdemo/internal/logger"
	"detectdemo/internal/model"
	"detectdemo/internal/service/inference"
)

const (
	DefaultPeriod = time.Second

	uploadName  = "upload.jpg"
	captureName = "camera.jpg"
	liveName    = "live.jpg"
)

// cameraRun is one acquired session, either for manual capture or for live
// detection. A live run owns the sampling loop.
type cameraRun struct {
	session Session
	live    bool
	stop    chan struct{}
	done    chan struct{}
}

// request is a dispatched inference. An orphaned request still runs to
// completion but its outcome is never applied.
type request struct {
	seq      uint64
	origin   model.Origin
	run      *cameraRun
	orphaned bool
}

type Option func(*Controller)

// WithPeriod sets the live sampling period.
func WithPeriod(period time.Duration) Option {
	return func(c *Controller) {
		if period > 0 {
			c.period = period
		}
	}
}

// WithTicker replaces time.NewTicker for live sampling.
func WithTicker(factory TickerFactory) Option {
	return func(c *Controller) { c.newTicker = factory }
}

func WithAnnotator(annotator Annotator) Option {
	return func(c *Controller) { c.annotator = annotator }
}

func WithMotionGate(gate MotionGate) Option {
	return func(c *Controller) { c.motion = gate }
}

// Controller owns the camera session, the sampling timer and every in-flight
// request, and folds their outcomes into a single PipelineState.
type Controller struct {
	source    MediaSource
	sampler   FrameSampler
	detector  Detector
	annotator Annotator
	motion    MotionGate
	period    time.Duration
	newTicker TickerFactory
	logger    *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	state       model.PipelineState
	published   model.PipelineState
	outbox      []Event
	listeners   []Listener
	closed      bool
	run         *cameraRun
	opening     bool
	openingLive bool
	openSeq     uint64
	seq         uint64
	pending     int
	inflight    map[uint64]*request
	liveSlot    *request
	stats       Stats

	notifyMu sync.Mutex
}

func NewController(source MediaSource, sampler FrameSampler, detector Detector, logger *logger.Logger, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		source:    source,
		sampler:   sampler,
		detector:  detector,
		period:    DefaultPeriod,
		newTicker: NewTimeTicker,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		inflight:  make(map[uint64]*request),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot of the current state.
func (c *Controller) State() model.PipelineState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	stats := c.stats
	stats.InFlight = len(c.inflight)
	return stats
}

// Subscribe registers l for all future events.
func (c *Controller) Subscribe(l Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, l)
}

// UploadFile clears the current result and error and sends data for inference.
func (c *Controller) UploadFile(name string, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyUpload
	}
	if name == "" {
		name = uploadName
	}
	blob := model.ImageBlob{
		Name:        name,
		ContentType: http.DetectContentType(data),
		Data:        data,
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.state.Result = nil
	c.state.Error = ""
	c.dispatchLocked(&request{origin: model.OriginUpload}, blob)
	c.unlockAndNotify()

	c.logger.Info("Upload %s (%d bytes) dispatched", name, len(data))
	return nil
}

// StartCamera acquires a session for manual capture. Capture is enabled once
// the first frame arrives.
func (c *Controller) StartCamera(ctx context.Context) error {
	return c.openCamera(ctx, false)
}

// StartLiveDetection acquires a session and samples it every period.
func (c *Controller) StartLiveDetection(ctx context.Context) error {
	return c.openCamera(ctx, true)
}

func (c *Controller) openCamera(ctx context.Context, live bool) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.openSeq++
	seq := c.openSeq
	c.opening = true
	c.openingLive = live
	// The device is exclusive: the current run is released before opening
	// it again, so a failed acquisition leaves the camera stopped. Result
	// and error are untouched until the new session exists.
	previous := c.detachLocked()
	c.unlockAndNotify()

	c.shutdown(previous)

	session, err := c.source.Acquire(ctx)

	c.mu.Lock()
	current := seq == c.openSeq && !c.closed
	if current {
		c.opening = false
	}
	if err != nil {
		if current {
			c.logger.Warning("Camera acquisition failed: %v", err)
			c.outbox = append(c.outbox, Event{Kind: EventAlert, Alert: AlertFor(err, live)})
		}
		c.unlockAndNotify()
		return err
	}
	if !current {
		c.mu.Unlock()
		session.Release()
		return ErrSuperseded
	}

	run := &cameraRun{
		session: session,
		live:    live,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	c.run = run
	c.state.CameraActive = true
	c.state.CaptureEnabled = false
	c.state.LiveDetectionActive = live
	if !live {
		c.state.Result = nil
		c.state.Error = ""
	}
	if live {
		ticker := c.newTicker(c.period)
		go c.loop(run, ticker)
	} else {
		close(run.done)
	}
	c.unlockAndNotify()

	if live {
		c.logger.Info("Live detection started on session %d every %v", session.ID(), c.period)
	} else {
		c.logger.Info("Camera started on session %d", session.ID())
	}

	session.OnReady(func() { c.markReady(run) })
	return nil
}

func (c *Controller) markReady(run *cameraRun) {
	c.mu.Lock()
	if c.run == run {
		c.state.CaptureEnabled = true
	}
	c.unlockAndNotify()
}

// CapturePhoto samples the manual camera once, releases it and sends the
// frame for inference.
func (c *Controller) CapturePhoto() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	run := c.run
	if run == nil || run.live || !c.state.CaptureEnabled {
		c.mu.Unlock()
		return ErrCaptureUnavailable
	}
	c.mu.Unlock()

	blob, sampleErr := c.sampler.Sample(run.session, captureName)

	c.mu.Lock()
	if c.run != run {
		c.mu.Unlock()
		return ErrSuperseded
	}
	c.openSeq++
	c.opening = false
	c.detachLocked()
	c.state.Result = nil
	if sampleErr == nil {
		c.dispatchLocked(&request{origin: model.OriginCapture}, blob)
	}
	c.unlockAndNotify()

	c.shutdown(run)

	if sampleErr != nil {
		c.logger.Warning("Capture on session %d failed: %v", run.session.ID(), sampleErr)
		return errors.Join(ErrCaptureUnavailable, sampleErr)
	}
	return nil
}

// StopCamera stops live sampling, releases the session and clears the
// result. Requests still in flight are discarded when they complete.
func (c *Controller) StopCamera() {
	c.mu.Lock()
	if c.opening {
		c.openSeq++
		c.opening = false
	}
	run := c.detachLocked()
	c.state.Result = nil
	c.unlockAndNotify()

	c.shutdown(run)
}

// StopLiveDetection is StopCamera for a live run. A manual camera is left alone.
func (c *Controller) StopLiveDetection() {
	c.mu.Lock()
	if c.opening && c.openingLive {
		c.openSeq++
		c.opening = false
	}
	var run *cameraRun
	if c.run != nil && c.run.live {
		run = c.detachLocked()
		c.state.Result = nil
	}
	c.unlockAndNotify()

	c.shutdown(run)
}

// Close tears the controller down and waits for in-flight requests.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.openSeq++
	c.opening = false
	run := c.detachLocked()
	for _, r := range c.inflight {
		c.orphanLocked(r)
	}
	c.unlockAndNotify()

	c.shutdown(run)
	c.cancel()
	c.wg.Wait()
}

// detachLocked forgets the current run and orphans its live requests. The
// caller must shut the returned run down after unlocking.
func (c *Controller) detachLocked() *cameraRun {
	run := c.run
	if run == nil {
		return nil
	}
	c.run = nil
	c.state.CameraActive = false
	c.state.CaptureEnabled = false
	c.state.LiveDetectionActive = false
	for _, r := range c.inflight {
		if r.run == run {
			c.orphanLocked(r)
		}
	}
	return run
}

// shutdown stops the sampling loop and releases the session.
func (c *Controller) shutdown(run *cameraRun) {
	if run == nil {
		return
	}
	select {
	case <-run.stop:
	default:
		close(run.stop)
	}
	<-run.done
	run.session.Release()
	c.logger.Info("Camera session %d released", run.session.ID())
}

func (c *Controller) loop(run *cameraRun, ticker Ticker) {
	defer close(run.done)
	defer ticker.Stop()
	for {
		select {
		case <-run.stop:
			return
		case <-ticker.C():
			c.tick(run)
		}
	}
}

// tick samples the live session unless a live request is still in flight.
// Skipped ticks are dropped, never queued.
func (c *Controller) tick(run *cameraRun) {
	c.mu.Lock()
	if c.closed || c.run != run {
		c.mu.Unlock()
		return
	}
	if c.liveSlot != nil {
		c.stats.SkippedBusy++
		c.mu.Unlock()
		return
	}
	if !run.session.Available() {
		c.stats.SkippedNotReady++
		c.mu.Unlock()
		return
	}
	r := &request{origin: model.OriginLive, run: run}
	c.liveSlot = r
	c.mu.Unlock()

	blob, err := c.sampler.Sample(run.session, liveName)
	if err != nil {
		c.releaseSlot(r, func(s *Stats) { s.SkippedNoFrame++ })
		return
	}
	if c.motion != nil {
		changed, err := c.motion.Changed(blob)
		if err != nil {
			c.logger.Warning("Motion check on session %d failed: %v", run.session.ID(), err)
		} else if !changed {
			c.releaseSlot(r, func(s *Stats) { s.SkippedStill++ })
			return
		}
	}

	c.mu.Lock()
	if c.closed || c.run != run {
		if c.liveSlot == r {
			c.liveSlot = nil
		}
		c.mu.Unlock()
		return
	}
	c.dispatchLocked(r, blob)
	c.unlockAndNotify()
}

func (c *Controller) releaseSlot(r *request, count func(*Stats)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.liveSlot == r {
		c.liveSlot = nil
	}
	count(&c.stats)
}

// dispatchLocked registers r and starts its inference. A manual request
// supersedes older manual requests.
func (c *Controller) dispatchLocked(r *request, blob model.ImageBlob) {
	if r.origin != model.OriginLive {
		for _, other := range c.inflight {
			if other.origin != model.OriginLive {
				c.orphanLocked(other)
			}
		}
	}

	c.seq++
	r.seq = c.seq
	c.inflight[r.seq] = r
	c.pending++
	c.stats.Dispatched++
	c.state.Loading = true
	c.state.Error = ""

	c.wg.Add(1)
	go c.infer(r, blob)
}

func (c *Controller) orphanLocked(r *request) {
	if r.orphaned {
		return
	}
	r.orphaned = true
	c.pending--
	c.state.Loading = c.pending > 0
}

func (c *Controller) infer(r *request, blob model.ImageBlob) {
	defer c.wg.Done()

	start := time.Now()
	result, err := c.detector.Infer(c.ctx, blob)
	if err == nil && result != nil && len(result.Image) == 0 {
		result.Image = c.annotate(blob, result.Detections)
	}
	c.complete(r, blob, result, err, time.Since(start))
}

// annotate draws boxes on the submitted image, or returns it unchanged.
func (c *Controller) annotate(blob model.ImageBlob, detections []model.Detection) []byte {
	if c.annotator == nil || len(detections) == 0 {
		return blob.Data
	}
	img, err := c.annotator.Annotate(blob.Data, detections)
	if err != nil {
		c.logger.Warning("Failed to annotate %s: %v", blob.Name, err)
		return blob.Data
	}
	return img
}

// complete applies the outcome of r unless it was orphaned. Applying a
// result orphans every older request, so results land in dispatch order.
func (c *Controller) complete(r *request, blob model.ImageBlob, result *model.DetectionResult, err error, elapsed time.Duration) {
	c.mu.Lock()
	delete(c.inflight, r.seq)
	if c.liveSlot == r {
		c.liveSlot = nil
	}
	if r.orphaned {
		c.stats.Discarded++
		c.mu.Unlock()
		c.logger.Info("Discarded %s request %d after %v", r.origin, r.seq, elapsed)
		return
	}

	r.orphaned = true
	c.pending--
	for _, other := range c.inflight {
		if other.seq < r.seq {
			c.orphanLocked(other)
		}
	}
	c.state.Loading = c.pending > 0

	if err != nil {
		c.stats.Failed++
		c.state.Error = errorMessage(err)
		c.logger.Error("%s request %d failed after %v: %v", r.origin, r.seq, elapsed, err)
	} else {
		c.stats.Completed++
		c.state.Result = result
		c.state.Error = ""
		c.outbox = append(c.outbox, Event{
			Kind:   EventResult,
			Origin: r.origin,
			Result: result,
			Source: blob.Data,
		})
	}
	c.unlockAndNotify()
}

func errorMessage(err error) string {
	var serviceErr *inference.ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.UserMessage()
	}
	return networkErrorMessage
}

// unlockAndNotify releases mu and delivers queued events. notifyMu is taken
// before mu is released so listeners see events in mutation order.
func (c *Controller) unlockAndNotify() {
	events := c.outbox
	c.outbox = nil
	if c.state != c.published {
		c.published = c.state
		events = append(events, Event{Kind: EventState, State: c.state})
	}
	if len(events) == 0 {
		c.mu.Unlock()
		return
	}
	listeners := c.listeners

	c.notifyMu.Lock()
	c.mu.Unlock()
	defer c.notifyMu.Unlock()

	for _, event := range events {
		for _, l := range listeners {
			l(event)
		}
	}
}
