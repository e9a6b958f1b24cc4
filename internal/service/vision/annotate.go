package vision

import (
	"fmt"
	"image"
	"image/color"

	"detectdemo/internal/logger"
	"detectdemo/internal/model"

	"gocv.io/x/gocv"
)

// Annotator draws detection boxes on an image when the service sends none back.
type Annotator struct {
	logger *logger.Logger
}

func NewAnnotator(logger *logger.Logger) *Annotator {
	return &Annotator{logger: logger}
}

// Annotate draws each detection with its class and confidence and returns a JPEG.
func (a *Annotator) Annotate(img []byte, detections []model.Detection) ([]byte, error) {
	mat, err := gocv.IMDecode(img, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return nil, fmt.Errorf("decoded image is empty")
	}

	for _, detection := range detections {
		c := classColor(detection.Class)
		rect := image.Rect(int(detection.BBox[0]), int(detection.BBox[1]), int(detection.BBox[2]), int(detection.BBox[3]))
		if err := gocv.Rectangle(&mat, rect, c, 2); err != nil {
			return nil, fmt.Errorf("failed to draw rectangle: %v", err)
		}

		label := fmt.Sprintf("%s (%.2f)", detection.Class, detection.Confidence)
		pt := image.Pt(rect.Min.X, rect.Min.Y-5)
		if err := gocv.PutText(&mat, label, pt, gocv.FontHersheySimplex, 0.5, c, 1); err != nil {
			return nil, fmt.Errorf("failed to draw text: %v", err)
		}
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		a.logger.Error("Failed to encode annotated image: %v", err)
		return nil, err
	}
	defer buf.Close()

	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

// classColor matches the page: helmet green, tool blue, everything else red.
func classColor(class string) color.RGBA {
	switch class {
	case "helmet":
		return color.RGBA{R: 0, G: 255, B: 128, A: 0}
	case "tool":
		return color.RGBA{R: 0, G: 160, B: 255, A: 0}
	default:
		return color.RGBA{R: 255, G: 0, B: 0, A: 0}
	}
}
