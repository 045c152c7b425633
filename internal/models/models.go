// Package models holds the domain types shared across the liveness
// verification pipeline: challenges, gestures, landmarks and outcomes.
package models

import "time"

// GestureKind is the closed set of facial gestures the challenge system can
// ask a claimant to perform. Adding a gesture means adding a variant here and
// a matching detector in the vision package.
type GestureKind string

const (
	GestureBlink     GestureKind = "blink"
	GestureTurnLeft  GestureKind = "turn_left"
	GestureTurnRight GestureKind = "turn_right"
	GestureSmile     GestureKind = "smile"
	GestureBrowRaise GestureKind = "brow_raise"
	GestureMouthOpen GestureKind = "mouth_open"
)

// GesturePool is the default pool generate_challenge draws from. The order
// here is fixed; the draw itself is randomized with crypto/rand.
var GesturePool = []GestureKind{
	GestureBlink,
	GestureTurnLeft,
	GestureTurnRight,
	GestureSmile,
	GestureBrowRaise,
	GestureMouthOpen,
}

// Challenge is a single-use authentication artifact: an ordered gesture
// sequence with an expiry. Once Used flips true it never reverts.
type Challenge struct {
	ID        string
	Steps     []GestureKind
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// Point is a normalized 2-D landmark coordinate, x and y in [0,1].
type Point struct {
	X, Y float64
}

// LandmarkCount matches the canonical MediaPipe Face Mesh topology size. The
// pipeline only ever populates and reads a small documented subset of these
// slots (see vision's landmark index constants); the rest stay zero-valued.
const LandmarkCount = 478

// Landmarks is a dense, fixed-schema vector of facial landmark points.
type Landmarks [LandmarkCount]Point

// Frame is a decoded, downscaled image buffer. It is transient — never
// persisted — and exists only for the duration of one verification request.
type Frame struct {
	Width, Height int
	// Pix holds width*height*3 bytes in interleaved BGR order, row-major.
	Pix []byte
}

// StepResult records what happened (or didn't) for one challenge step during
// temporal matching.
type StepResult struct {
	Step       GestureKind `json:"step"`
	Detected   bool        `json:"detected"`
	Confidence float64     `json:"confidence"`
	FrameIdx   int         `json:"frame_idx"`
}

// VerifyOutcome is the result of running the matcher and scoring rule over a
// frame sequence against a challenge's steps.
type VerifyOutcome struct {
	Passed            bool         `json:"passed"`
	LivenessScore     float64      `json:"liveness_score"`
	StepResults       []StepResult `json:"step_results"`
	FaceDetectedCount int          `json:"face_detected_count"`
	TotalFrames       int          `json:"total_frames"`
	TemporalValid     bool         `json:"temporal_valid"`
	Error             string       `json:"error,omitempty"`
}

// VerificationAttempt is the write-once audit record persisted for every
// verify call, successful or not. CredentialTokenHash is set only when the
// attempt passed and a credential was minted; it is the same SHA-256 hash
// RevocationStore.Revoke expects, letting an operator revoke the credential
// issued for this attempt later without needing the raw token.
type VerificationAttempt struct {
	ID                  string
	ChallengeID         string
	LivenessScore       float64
	Passed              bool
	ClientIP            string
	UserAgent           string
	StepResults         []StepResult
	CredentialTokenHash string
	CreatedAt           time.Time
}

// Credential is the short-lived bearer credential minted on a passing
// verification.
type Credential struct {
	Token     string
	Subject   string
	ExpiresAt time.Time
}
