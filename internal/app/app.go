package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"detectdemo/internal/config"
	"detectdemo/internal/logger"
	"detectdemo/internal/repository/sqlite"
	"detectdemo/internal/route"
	"detectdemo/internal/service/camera"
	"detectdemo/internal/service/inference"
	"detectdemo/internal/service/pipeline"
	"detectdemo/internal/service/sampler"
	"detectdemo/internal/service/storage"
	"detectdemo/internal/service/vision"
	"detectdemo/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	camera     *camera.Manager
	sampler    *sampler.Sampler
	client     *inference.Client
	motion     *vision.MotionGate
	controller *pipeline.Controller
	hubService *websocket.HubService
	archive    *storage.ArchiveService
	db         *sqlite.DB
	router     http.Handler
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	manager := camera.NewManager(cfg, log)
	frames := sampler.NewSampler(cfg)
	client := inference.NewClient(cfg, log)

	opts := []pipeline.Option{
		pipeline.WithPeriod(time.Duration(cfg.SamplingInterval) * time.Millisecond),
		pipeline.WithAnnotator(vision.NewAnnotator(log)),
	}
	motion := vision.NewMotionGate(cfg, log)
	if motion != nil {
		opts = append(opts, pipeline.WithMotionGate(motion))
	}

	controller := pipeline.NewController(
		cameraSource{manager: manager},
		frameSampler{sampler: frames},
		client,
		log,
		opts...,
	)

	hub := websocket.NewHubService(log)
	controller.Subscribe(hub.Publish)

	a := &App{
		config:     cfg,
		logger:     log,
		camera:     manager,
		sampler:    frames,
		client:     client,
		motion:     motion,
		controller: controller,
		hubService: hub,
	}

	deps := route.Dependencies{
		Config:    cfg,
		Logger:    log,
		Pipeline:  controller,
		Previewer: manager,
		Hub:       hub,
	}

	if cfg.ArchiveEnabled {
		db, err := sqlite.New(cfg.DatabasePath)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("failed to open history database: %w", err)
		}
		snapshotRepo := sqlite.NewSnapshotRepository(db)
		detectionRepo := sqlite.NewDetectionRepository(db)

		a.db = db
		a.archive = storage.NewArchiveService(cfg, log, snapshotRepo, detectionRepo)
		controller.Subscribe(a.archive.Record)

		deps.SnapshotRepo = snapshotRepo
		deps.DetectionRepo = detectionRepo
	}

	a.router = route.SetupRoutes(deps)
	return a, nil
}

// Run serves HTTP until ctx is done, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	background, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.hubService.Run(background)
	}()
	if a.archive != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.archive.Run(background)
		}()
	}

	health, healthCancel := context.WithTimeout(ctx, 2*time.Second)
	if err := a.client.Health(health); err != nil {
		a.logger.Warning("Inference service not reachable at %s: %v", a.config.InferenceURL, err)
	}
	healthCancel()

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: a.router,
	}

	fmt.Printf("🚀 Detection Demo Server\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("🤖 Inference: %s\n", a.config.InferenceURL)
	fmt.Printf("📷 Camera: %s\n", a.config.CameraDevice)
	if a.archive != nil {
		fmt.Printf("📁 Archive: %s\n", a.config.ImageDirectory)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("HTTP shutdown failed: %v", err)
		}
		shutdownCancel()
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}

	// The controller goes first so the archive sees every applied result.
	a.controller.Close()
	cancel()
	wg.Wait()
	a.close()
	return serveErr
}

func (a *App) close() {
	a.controller.Close()
	a.camera.Close()
	a.sampler.Close()
	if a.motion != nil {
		a.motion.Close()
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Failed to close history database: %v", err)
		}
	}
}
