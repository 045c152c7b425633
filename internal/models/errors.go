package models

import "errors"

// Protocol-level errors are terminal and must be reported before any frame
// work begins. Per-frame failures (decode/no-face) never surface as errors —
// they are absorbed into the matcher's statistics.
var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrChallengeExpired  = errors.New("challenge expired")
	ErrChallengeReplay   = errors.New("challenge already used")
	ErrInvalidInput      = errors.New("invalid input")
	ErrPipelineFailed    = errors.New("liveness pipeline failed")
)
