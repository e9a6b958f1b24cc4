package dto

import (
	"encoding/base64"

	"detectdemo/internal/model"
)

const (
	MessageTypeState = "state"
	MessageTypeAlert = "alert"
)

// StateMessage is pushed to viewers over the WebSocket and returned by /api/state.
type StateMessage struct {
	Type  string     `json:"type"`
	State *StateView `json:"state,omitempty"`
	Alert string     `json:"alert,omitempty"`
}

// StateView is the JSON form of model.PipelineState.
type StateView struct {
	Result              *ResultView `json:"result"`
	Loading             bool        `json:"loading"`
	Error               *string     `json:"error"`
	CameraActive        bool        `json:"cameraActive"`
	CaptureEnabled      bool        `json:"captureEnabled"`
	LiveDetectionActive bool        `json:"liveDetectionActive"`
}

type ResultView struct {
	Image      string             `json:"image"`
	Counts     map[string]int     `json:"counts"`
	Detections []PredictDetection `json:"detections"`
}

// NewStateMessage converts the pipeline state for the wire.
func NewStateMessage(state model.PipelineState) StateMessage {
	view := &StateView{
		Loading:             state.Loading,
		CameraActive:        state.CameraActive,
		CaptureEnabled:      state.CaptureEnabled,
		LiveDetectionActive: state.LiveDetectionActive,
	}
	if state.Error != "" {
		msg := state.Error
		view.Error = &msg
	}
	if r := state.Result; r != nil {
		detections := make([]PredictDetection, 0, len(r.Detections))
		for _, d := range r.Detections {
			detections = append(detections, PredictDetection{
				Class:      d.Class,
				Confidence: d.Confidence,
				BBox:       []float64{d.BBox[0], d.BBox[1], d.BBox[2], d.BBox[3]},
			})
		}
		view.Result = &ResultView{
			Image:      base64.StdEncoding.EncodeToString(r.Image),
			Counts:     r.Counts,
			Detections: detections,
		}
	}
	return StateMessage{Type: MessageTypeState, State: view}
}

// NewAlertMessage wraps a transient camera notice.
func NewAlertMessage(alert string) StateMessage {
	return StateMessage{Type: MessageTypeAlert, Alert: alert}
}
