package vision

import (
	"math"

	"connect-hub/liveness-service/internal/config"
	"connect-hub/liveness-service/internal/models"
)

const epsilon = 1e-6

// Thresholds bundles the tunables detectors read from config, so pure
// detector functions stay free of global state and are trivially testable.
type Thresholds struct {
	EAR        float64
	SmileRatio float64
	MouthOpen  float64
	BrowRaise  float64
	HeadTurnNoseX float64
}

// ThresholdsFromConfig lifts the relevant fields out of config.Config.
func ThresholdsFromConfig(cfg *config.Config) Thresholds {
	return Thresholds{
		EAR:           cfg.EARThreshold,
		SmileRatio:    cfg.SmileRatioThreshold,
		MouthOpen:     cfg.MouthOpenThreshold,
		BrowRaise:     cfg.BrowRaiseThreshold,
		HeadTurnNoseX: cfg.HeadTurnNoseX,
	}
}

// DefaultThresholds matches the spec.md §6 defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EAR:           0.21,
		SmileRatio:    4.0,
		MouthOpen:     0.5,
		BrowRaise:     0.35,
		HeadTurnNoseX: 0.58,
	}
}

type detectorFunc func(lm *models.Landmarks, t Thresholds) (bool, float64)

var detectorTable = map[models.GestureKind]detectorFunc{
	models.GestureBlink:     detectBlink,
	models.GestureSmile:     detectSmile,
	models.GestureMouthOpen: detectMouthOpen,
	models.GestureTurnLeft:  detectTurnLeft,
	models.GestureTurnRight: detectTurnRight,
	models.GestureBrowRaise: detectBrowRaise,
}

// Detect dispatches to the pure detector for action and rounds confidence to
// three decimal places, per §4.3. Detecting an unknown gesture kind never
// happens in practice — GestureKind is closed and every variant has an
// entry in detectorTable — but returns (false, 0) defensively rather than
// panicking on a dispatch miss.
func Detect(lm *models.Landmarks, action models.GestureKind, t Thresholds) (bool, float64) {
	fn, ok := detectorTable[action]
	if !ok {
		return false, 0
	}
	detected, confidence := fn(lm, t)
	return detected, roundTo(confidence, 3)
}

func dist(a, b models.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func ear(lm *models.Landmarks, p0, p1, p2, p3, p4, p5 int) float64 {
	v1 := dist(lm[p1], lm[p5])
	v2 := dist(lm[p2], lm[p4])
	h := dist(lm[p0], lm[p3])
	return (v1 + v2) / (2*h + epsilon)
}

func detectBlink(lm *models.Landmarks, t Thresholds) (bool, float64) {
	leftEAR := ear(lm, MeshLeftEye0, MeshLeftEye1, MeshLeftEye2, MeshLeftEye3, MeshLeftEye4, MeshLeftEye5)
	rightEAR := ear(lm, MeshRightEye0, MeshRightEye1, MeshRightEye2, MeshRightEye3, MeshRightEye4, MeshRightEye5)
	avgEAR := (leftEAR + rightEAR) / 2.0

	detected := avgEAR < t.EAR
	if !detected {
		return false, 0
	}
	return true, clamp01(1 - avgEAR/t.EAR)
}

func mouthWidth(lm *models.Landmarks) float64 {
	return dist(lm[MeshMouthLeft], lm[MeshMouthRight])
}

func mouthHeight(lm *models.Landmarks) float64 {
	return dist(lm[MeshLipUpper], lm[MeshLipLower])
}

func detectSmile(lm *models.Landmarks, t Thresholds) (bool, float64) {
	ratio := mouthWidth(lm) / (mouthHeight(lm) + epsilon)
	if ratio <= t.SmileRatio {
		return false, 0
	}
	return true, clamp01(math.Min(1, ratio/6.0))
}

func detectMouthOpen(lm *models.Landmarks, t Thresholds) (bool, float64) {
	ratio := mouthHeight(lm) / (mouthWidth(lm) + epsilon)
	if ratio <= t.MouthOpen {
		return false, 0
	}
	return true, clamp01(math.Min(1, ratio/0.75))
}

func noseX(lm *models.Landmarks) float64 {
	return lm[MeshNoseTip].X
}

func detectTurnLeft(lm *models.Landmarks, t Thresholds) (bool, float64) {
	nx := noseX(lm)
	if nx <= t.HeadTurnNoseX {
		return false, 0
	}
	return true, clamp01(math.Min(1, (nx-0.5)*4))
}

func detectTurnRight(lm *models.Landmarks, t Thresholds) (bool, float64) {
	nx := noseX(lm)
	upperBound := 1.0 - t.HeadTurnNoseX
	if nx >= upperBound {
		return false, 0
	}
	return true, clamp01(math.Min(1, (0.5-nx)*4))
}

func detectBrowRaise(lm *models.Landmarks, t Thresholds) (bool, float64) {
	leftDist := dist(lm[MeshBrowLeft], lm[MeshEyelidLeft])
	rightDist := dist(lm[MeshBrowRight], lm[MeshEyelidRight])
	eyeWidth := dist(lm[MeshLeftEye0], lm[MeshLeftEye3])
	ratio := (leftDist + rightDist) / (2*eyeWidth + epsilon)

	if ratio <= t.BrowRaise {
		return false, 0
	}
	return true, clamp01(math.Min(1, ratio/0.49))
}
