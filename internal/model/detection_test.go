package model

import "testing"

func TestCountDetections(t *testing.T) {
	detections := []Detection{
		{Class: "helmet", Confidence: 0.91},
		{Class: "tool", Confidence: 0.55},
		{Class: "helmet", Confidence: 0.78},
	}

	counts := CountDetections(detections)

	if counts["helmet"] != 2 {
		t.Errorf("Expected 2 helmets, got %d", counts["helmet"])
	}
	if counts["tool"] != 1 {
		t.Errorf("Expected 1 tool, got %d", counts["tool"])
	}
	if len(counts) != 2 {
		t.Errorf("Expected 2 classes, got %d", len(counts))
	}
}

func TestCountDetections_Empty(t *testing.T) {
	counts := CountDetections(nil)
	if counts == nil || len(counts) != 0 {
		t.Errorf("Expected empty non-nil map, got %v", counts)
	}
}
