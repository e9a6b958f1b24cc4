package vision

import (
	"fmt"
	"sync"

	"detectdemo/internal/config"
	"detectdemo/internal/logger"
	"detectdemo/internal/model"

	"gocv.io/x/gocv"
)

// MotionGate compares consecutive live frames and reports whether the
// scene changed enough to be worth an inference request.
type MotionGate struct {
	threshold int

	mu          sync.Mutex
	previousMat gocv.Mat
	hasPrevious bool
	sessionID   uint64
	logger      *logger.Logger
}

// NewMotionGate returns nil when config.MotionThreshold disables the gate.
func NewMotionGate(config *config.Config, logger *logger.Logger) *MotionGate {
	if config.MotionThreshold <= 0 {
		return nil
	}
	return &MotionGate{
		threshold: config.MotionThreshold,
		logger:    logger,
	}
}

// Changed reports whether blob differs from the previous frame of the same
// session by more than the threshold. The first frame of a session always counts.
func (g *MotionGate) Changed(blob model.ImageBlob) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	mat, err := gocv.IMDecode(blob.Data, gocv.IMReadColor)
	if err != nil {
		return false, fmt.Errorf("failed to decode image: %v", err)
	}
	defer mat.Close()

	if mat.Empty() {
		return false, fmt.Errorf("decoded image is empty")
	}

	if !g.hasPrevious || g.sessionID != blob.SessionID ||
		g.previousMat.Cols() != mat.Cols() || g.previousMat.Rows() != mat.Rows() {
		g.remember(mat, blob.SessionID)
		return true, nil
	}

	diff := gocv.NewMat()
	defer diff.Close()
	if err := gocv.AbsDiff(g.previousMat, mat, &diff); err != nil {
		return false, fmt.Errorf("failed to compute absolute difference: %v", err)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if err := gocv.CvtColor(diff, &gray, gocv.ColorBGRToGray); err != nil {
		return false, fmt.Errorf("failed to convert image to grayscale: %v", err)
	}

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(gray, &thresh, 30, 255, gocv.ThresholdBinary)

	changed := gocv.CountNonZero(thresh)
	g.remember(mat, blob.SessionID)

	if changed > g.threshold {
		g.logger.Info("Motion detected: %d pixels changed", changed)
		return true, nil
	}
	return false, nil
}

func (g *MotionGate) remember(mat gocv.Mat, sessionID uint64) {
	if g.hasPrevious {
		g.previousMat.Close()
	}
	g.previousMat = mat.Clone()
	g.hasPrevious = true
	g.sessionID = sessionID
}

// Close frees the stored frame.
func (g *MotionGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.hasPrevious {
		g.previousMat.Close()
		g.hasPrevious = false
	}
}
