package vision

import (
	"image"
	"image/color"
	"io"
	"testing"

	"detectdemo/internal/config"
	"detectdemo/internal/logger"
	"detectdemo/internal/model"

	"gocv.io/x/gocv"
)

func testLogger() *logger.Logger {
	return logger.NewWriterLogger(io.Discard)
}

// encodeFrame builds a JPEG of the given size, optionally with a white box.
func encodeFrame(t *testing.T, cols, rows int, box image.Rectangle) []byte {
	t.Helper()
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC3)
	defer mat.Close()
	if !box.Empty() {
		gocv.Rectangle(&mat, box, color.RGBA{R: 255, G: 255, B: 255, A: 0}, -1)
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		t.Fatalf("Failed to encode frame: %v", err)
	}
	defer buf.Close()
	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out
}

func TestAnnotator_DrawsBoxes(t *testing.T) {
	src := encodeFrame(t, 160, 120, image.Rectangle{})
	a := NewAnnotator(testLogger())

	out, err := a.Annotate(src, []model.Detection{
		{Class: "helmet", Confidence: 0.9, BBox: [4]float64{10, 20, 80, 100}},
		{Class: "glove", Confidence: 0.4, BBox: [4]float64{90, 10, 150, 60}},
	})
	if err != nil {
		t.Fatalf("Annotate failed: %v", err)
	}

	mat, err := gocv.IMDecode(out, gocv.IMReadColor)
	if err != nil {
		t.Fatalf("Annotated output is not an image: %v", err)
	}
	defer mat.Close()
	if mat.Cols() != 160 || mat.Rows() != 120 {
		t.Errorf("Expected 160x120, got %dx%d", mat.Cols(), mat.Rows())
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)
	if gocv.CountNonZero(gray) == 0 {
		t.Error("Expected drawn boxes on a black frame")
	}
}

func TestAnnotator_RejectsGarbage(t *testing.T) {
	a := NewAnnotator(testLogger())
	if _, err := a.Annotate([]byte("not an image"), nil); err == nil {
		t.Error("Expected error for undecodable input")
	}
}

func TestMotionGate_DisabledByDefault(t *testing.T) {
	if g := NewMotionGate(&config.Config{}, testLogger()); g != nil {
		t.Error("Expected nil gate when threshold is zero")
	}
}

func TestMotionGate_Changed(t *testing.T) {
	g := NewMotionGate(&config.Config{MotionThreshold: 500}, testLogger())
	defer g.Close()

	still := encodeFrame(t, 100, 100, image.Rectangle{})
	moved := encodeFrame(t, 100, 100, image.Rect(20, 20, 80, 80))

	tests := []struct {
		name     string
		data     []byte
		session  uint64
		expected bool
	}{
		{"first frame of session", still, 1, true},
		{"same scene", still, 1, false},
		{"object appears", moved, 1, true},
		{"object stays", moved, 1, false},
		{"new session resets", moved, 2, true},
	}

	for _, tt := range tests {
		changed, err := g.Changed(model.ImageBlob{Data: tt.data, SessionID: tt.session})
		if err != nil {
			t.Fatalf("%s: Changed failed: %v", tt.name, err)
		}
		if changed != tt.expected {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.expected, changed)
		}
	}
}
