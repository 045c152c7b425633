package vision

import (
	"math"

	"connect-hub/liveness-service/internal/config"
	"connect-hub/liveness-service/internal/models"
)

// Matcher walks a frame sequence against an ordered gesture sequence,
// enforcing consecutive-frame confirmation and step order (C4).
type Matcher struct {
	provider             LandmarkProvider
	thresholds           Thresholds
	frameWidth           int
	minConsecutiveFrames int
}

// NewMatcher wires C1 decode width, the C2 provider, and C3 thresholds
// behind a single entry point the orchestrator calls once per verification.
func NewMatcher(provider LandmarkProvider, cfg *config.Config) *Matcher {
	return &Matcher{
		provider:             provider,
		thresholds:           ThresholdsFromConfig(cfg),
		frameWidth:           cfg.FrameWidth,
		minConsecutiveFrames: cfg.MinConsecutiveFrames,
	}
}

// Match runs the full C1->C2->C3 pipeline over frames against steps and
// returns the finished outcome, including scoring.
func (m *Matcher) Match(frames []string, steps []models.GestureKind) models.VerifyOutcome {
	if len(frames) == 0 {
		return models.VerifyOutcome{
			Passed:        false,
			LivenessScore: 0,
			TemporalValid: false,
			Error:         "No frames provided",
		}
	}

	stepResults := make([]models.StepResult, len(steps))
	for i, s := range steps {
		stepResults[i] = models.StepResult{Step: s, Detected: false, Confidence: 0, FrameIdx: -1}
	}

	currentStepIdx := 0
	consecutiveCount := 0
	faceDetectedCount := 0
	totalFrames := len(frames)

	for frameIdx, b64 := range frames {
		if currentStepIdx >= len(steps) {
			break
		}

		frame, ok := DecodeFrame(b64, m.frameWidth)
		if !ok {
			continue
		}

		lm, ok := m.provider.Landmarks(frame)
		if !ok {
			consecutiveCount = 0
			continue
		}

		faceDetectedCount++

		detected, confidence := Detect(lm, steps[currentStepIdx], m.thresholds)
		if detected {
			consecutiveCount++
			if consecutiveCount >= m.minConsecutiveFrames {
				stepResults[currentStepIdx] = models.StepResult{
					Step:       steps[currentStepIdx],
					Detected:   true,
					Confidence: confidence,
					FrameIdx:   frameIdx,
				}
				currentStepIdx++
				consecutiveCount = 0
			}
		} else {
			consecutiveCount = 0
		}
	}

	return score(stepResults, faceDetectedCount, totalFrames)
}

func temporalValid(stepResults []models.StepResult) bool {
	var committedFrames []int
	for _, r := range stepResults {
		if r.Detected {
			committedFrames = append(committedFrames, r.FrameIdx)
		}
	}
	if len(committedFrames) <= 1 {
		return len(committedFrames) > 0
	}
	for i := 1; i < len(committedFrames); i++ {
		if committedFrames[i] <= committedFrames[i-1] {
			return false
		}
	}
	return true
}

// score is a pure function of the matcher's final state, kept separate so it
// can be property-tested without exercising the detectors or decoder.
func score(stepResults []models.StepResult, faceDetectedCount, totalFrames int) models.VerifyOutcome {
	stepsPassed := 0
	var confidenceSum float64
	for _, r := range stepResults {
		if r.Detected {
			stepsPassed++
			confidenceSum += r.Confidence
		}
	}

	s := float64(len(stepResults))
	stepScore := 0.0
	if s > 0 {
		stepScore = 60 * float64(stepsPassed) / s
	}

	faceScore := 0.0
	if totalFrames > 0 {
		faceScore = 20 * float64(faceDetectedCount) / float64(totalFrames)
	}

	meanConfidence := 0.0
	if stepsPassed > 0 {
		meanConfidence = confidenceSum / float64(stepsPassed)
	}
	confScore := 20 * meanConfidence

	livenessScore := math.Min(100, stepScore+faceScore+confScore)
	livenessScore = math.Round(livenessScore*10) / 10

	valid := temporalValid(stepResults)
	passed := stepsPassed == len(stepResults) && valid && livenessScore >= 60.0

	return models.VerifyOutcome{
		Passed:            passed,
		LivenessScore:     livenessScore,
		StepResults:       stepResults,
		FaceDetectedCount: faceDetectedCount,
		TotalFrames:       totalFrames,
		TemporalValid:     valid,
	}
}
