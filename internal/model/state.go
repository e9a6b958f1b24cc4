package model

// Origin tells which intent produced an inference request.
type Origin string

const (
	OriginUpload  Origin = "upload"
	OriginCapture Origin = "capture"
	OriginLive    Origin = "live"
)

// PipelineState is the read model rendered by the presentation layer.
type PipelineState struct {
	Result              *DetectionResult
	Loading             bool
	Error               string // Inference failures only, empty when none
	CameraActive        bool
	CaptureEnabled      bool
	LiveDetectionActive bool
}
