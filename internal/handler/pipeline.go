package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"detectdemo/internal/dto"
	"detectdemo/internal/logger"
	"detectdemo/internal/model"
	"detectdemo/internal/service/pipeline"
)

const maxUploadSize = 32 << 20

// Pipeline is the controller surface the presentation layer drives.
type Pipeline interface {
	UploadFile(name string, data []byte) error
	StartCamera(ctx context.Context) error
	CapturePhoto() error
	StopCamera()
	StartLiveDetection(ctx context.Context) error
	StopLiveDetection()
	State() model.PipelineState
	Stats() pipeline.Stats
}

// Previewer returns the current camera frame as JPEG.
type Previewer interface {
	Preview() ([]byte, error)
}

// UploadHandler handles POST /api/detect/upload with a multipart "file" field.
func UploadHandler(p Pipeline, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "File field is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			logger.Error("Error reading upload %s: %v", header.Filename, err)
			http.Error(w, "Unable to read file", http.StatusBadRequest)
			return
		}

		if err := p.UploadFile(header.Filename, data); err != nil {
			writeIntentError(w, logger, err)
			return
		}
		writeState(w, logger, http.StatusAccepted, p.State())
	}
}

// StartCameraHandler handles POST /api/camera/start.
func StartCameraHandler(p Pipeline, logger *logger.Logger) http.HandlerFunc {
	return acquireHandler(p.StartCamera, p, logger, false)
}

// StartLiveHandler handles POST /api/live/start.
func StartLiveHandler(p Pipeline, logger *logger.Logger) http.HandlerFunc {
	return acquireHandler(p.StartLiveDetection, p, logger, true)
}

func acquireHandler(start func(context.Context) error, p Pipeline, logger *logger.Logger, live bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := start(r.Context()); err != nil {
			if isIntentError(err) {
				writeIntentError(w, logger, err)
				return
			}
			writeJSON(w, logger, http.StatusServiceUnavailable, dto.NewAlertMessage(pipeline.AlertFor(err, live)))
			return
		}
		writeState(w, logger, http.StatusOK, p.State())
	}
}

// CaptureHandler handles POST /api/camera/capture.
func CaptureHandler(p Pipeline, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := p.CapturePhoto(); err != nil {
			writeIntentError(w, logger, err)
			return
		}
		writeState(w, logger, http.StatusAccepted, p.State())
	}
}

// StopCameraHandler handles POST /api/camera/stop.
func StopCameraHandler(p Pipeline, logger *logger.Logger) http.HandlerFunc {
	return stopHandler(p.StopCamera, p, logger)
}

// StopLiveHandler handles POST /api/live/stop.
func StopLiveHandler(p Pipeline, logger *logger.Logger) http.HandlerFunc {
	return stopHandler(p.StopLiveDetection, p, logger)
}

func stopHandler(stop func(), p Pipeline, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		stop()
		writeState(w, logger, http.StatusOK, p.State())
	}
}

// StateHandler handles GET /api/state.
func StateHandler(p Pipeline, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeState(w, logger, http.StatusOK, p.State())
	}
}

// StatsHandler handles GET /api/stats.
func StatsHandler(p Pipeline, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, p.Stats())
	}
}

// PreviewHandler serves the current camera frame, or 404 without a camera.
func PreviewHandler(previewer Previewer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame, err := previewer.Preview()
		if err != nil {
			http.Error(w, "No camera frame available", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(frame)
	}
}

func isIntentError(err error) bool {
	return errors.Is(err, pipeline.ErrClosed) ||
		errors.Is(err, pipeline.ErrEmptyUpload) ||
		errors.Is(err, pipeline.ErrCaptureUnavailable) ||
		errors.Is(err, pipeline.ErrSuperseded)
}

func writeIntentError(w http.ResponseWriter, logger *logger.Logger, err error) {
	switch {
	case errors.Is(err, pipeline.ErrEmptyUpload):
		http.Error(w, "Empty file", http.StatusBadRequest)
	case errors.Is(err, pipeline.ErrCaptureUnavailable):
		http.Error(w, "Capture not available", http.StatusConflict)
	case errors.Is(err, pipeline.ErrSuperseded):
		http.Error(w, "Superseded by a newer camera request", http.StatusConflict)
	case errors.Is(err, pipeline.ErrClosed):
		http.Error(w, "Shutting down", http.StatusServiceUnavailable)
	default:
		logger.Error("Unexpected pipeline error: %v", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func writeState(w http.ResponseWriter, logger *logger.Logger, status int, state model.PipelineState) {
	writeJSON(w, logger, status, dto.NewStateMessage(state))
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}
