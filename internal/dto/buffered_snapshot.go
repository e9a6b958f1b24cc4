package dto

import "detectdemo/internal/model"

// BufferedSnapshot holds a result image and its detections before flushing to disk.
type BufferedSnapshot struct {
	UID        string
	Timestamp  string
	Origin     model.Origin
	Detections []model.Detection
	Data       []byte
}
