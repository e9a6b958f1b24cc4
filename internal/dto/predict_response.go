package dto

// PredictResponse is the JSON body returned by POST {baseUrl}/predict.
type PredictResponse struct {
	Success    bool               `json:"success"`
	Error      string             `json:"error,omitempty"`
	Image      string             `json:"image,omitempty"` // base64 JPEG
	Counts     map[string]int     `json:"counts,omitempty"`
	Detections []PredictDetection `json:"detections,omitempty"`
}

type PredictDetection struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}
