package model

// Detection is a single object found by the remote service.
// BBox is [x1, y1, x2, y2] in pixels of the submitted image.
type Detection struct {
	Class      string
	Confidence float64
	BBox       [4]float64
}

// DetectionResult is immutable once produced; a newer result replaces it
// entirely.
type DetectionResult struct {
	Image      []byte // Annotated JPEG
	Counts     map[string]int
	Detections []Detection
}

// CountDetections returns the number of detections per class.
func CountDetections(detections []Detection) map[string]int {
	counts := make(map[string]int, len(detections))
	for _, d := range detections {
		counts[d.Class]++
	}
	return counts
}

// ImageBlob is an encoded image on its way to the inference service.
type ImageBlob struct {
	Name        string
	ContentType string
	Data        []byte
	Width       int
	Height      int
	SessionID   uint64 // Camera session the frame was sampled under, 0 for uploads
}
