// Package orchestrator wires the challenge lifecycle, vision pipeline and
// credential issuer into the three operations exposed over HTTP:
// generate_challenge, verify and attack_sim.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"connect-hub/liveness-service/internal/challenge"
	"connect-hub/liveness-service/internal/credential"
	"connect-hub/liveness-service/internal/models"
	"connect-hub/liveness-service/internal/workerpool"
)

// AttackSimSteps is the fixed step sequence attack_sim runs against,
// independent of any stored challenge.
var AttackSimSteps = []models.GestureKind{
	models.GestureBlink,
	models.GestureTurnRight,
	models.GestureSmile,
}

const minLivenessScoreToPass = 60.0

// Matcher is the subset of vision.Matcher the orchestrator depends on,
// declared here so tests can substitute a stub instead of a real dlib-backed
// pipeline.
type Matcher interface {
	Match(frames []string, steps []models.GestureKind) models.VerifyOutcome
}

// Orchestrator is the thin driver described as the Verification
// Orchestrator: load challenge -> run frames through the pipeline -> score
// -> mint credential.
type Orchestrator struct {
	lifecycle *challenge.Lifecycle
	store     challenge.Store
	matcher   Matcher
	issuer    *credential.Issuer
	pool      *workerpool.Pool
	logger    *zap.Logger
}

func New(
	lifecycle *challenge.Lifecycle,
	store challenge.Store,
	matcher Matcher,
	issuer *credential.Issuer,
	pool *workerpool.Pool,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		lifecycle: lifecycle,
		store:     store,
		matcher:   matcher,
		issuer:    issuer,
		pool:      pool,
		logger:    logger,
	}
}

// GenerateChallengeResult is the generate_challenge operation's response
// shape.
type GenerateChallengeResult struct {
	ChallengeID       string
	Steps             []models.GestureKind
	ExpiresAt         time.Time
	ExpiresInSeconds  int
}

// GenerateChallenge implements the generate_challenge operation.
func (o *Orchestrator) GenerateChallenge(ctx context.Context) (*GenerateChallengeResult, error) {
	c, err := o.lifecycle.Generate(ctx)
	if err != nil {
		return nil, err
	}
	return &GenerateChallengeResult{
		ChallengeID:      c.ID,
		Steps:            c.Steps,
		ExpiresAt:        c.ExpiresAt,
		ExpiresInSeconds: int(time.Until(c.ExpiresAt).Seconds()),
	}, nil
}

// VerifyResult bundles the pipeline outcome with the minted credential, when
// the verification passed.
type VerifyResult struct {
	Outcome    models.VerifyOutcome
	Credential *models.Credential
}

// Verify implements the verify operation: protocol-level errors
// (NotFound/Replay/Expired) are returned before any frame decoding begins;
// per-frame failures never surface past the matcher.
func (o *Orchestrator) Verify(ctx context.Context, challengeID string, frames []string, clientIP, userAgent string) (*VerifyResult, error) {
	if len(frames) == 0 || len(frames) > 60 {
		return nil, fmt.Errorf("%w: frames must be 1..60", models.ErrInvalidInput)
	}

	c, err := o.lifecycle.Consume(ctx, challengeID)
	if err != nil {
		return nil, err
	}

	outcome, err := workerpool.Submit(ctx, o.pool, func() (models.VerifyOutcome, error) {
		return o.matcher.Match(frames, c.Steps), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPipelineFailed, err)
	}

	result := &VerifyResult{Outcome: outcome}
	attempt := &models.VerificationAttempt{
		ID:            uuid.New().String(),
		ChallengeID:   challengeID,
		LivenessScore: outcome.LivenessScore,
		Passed:        outcome.Passed,
		ClientIP:      clientIP,
		UserAgent:     userAgent,
		StepResults:   outcome.StepResults,
		CreatedAt:     time.Now().UTC(),
	}

	if outcome.Passed {
		cred, tokenHash, err := o.issuer.Mint(
			fmt.Sprintf("verified-user-%s", challengeID),
			map[string]any{"liveness_score": outcome.LivenessScore},
		)
		if err != nil {
			o.logger.Error("failed to mint credential", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", models.ErrPipelineFailed, err)
		}
		attempt.CredentialTokenHash = tokenHash
		result.Credential = cred
	}

	if err := o.store.PutAttempt(ctx, attempt); err != nil {
		o.logger.Error("failed to persist verification attempt", zap.Error(err), zap.String("challenge_id", challengeID))
		return nil, fmt.Errorf("%w: %v", models.ErrPipelineFailed, err)
	}

	return result, nil
}

// AttackSimResult is the attack_sim operation's response shape.
type AttackSimResult struct {
	Outcome         models.VerifyOutcome
	RejectionReason string
	Recommendation  string
}

// AttackSim runs the pipeline against a fixed gesture sequence without
// touching challenge state, for adversarial testing of the pipeline itself.
func (o *Orchestrator) AttackSim(ctx context.Context, frames []string) (*AttackSimResult, error) {
	if len(frames) == 0 || len(frames) > 10 {
		return nil, fmt.Errorf("%w: frames must be 1..10", models.ErrInvalidInput)
	}

	outcome, err := workerpool.Submit(ctx, o.pool, func() (models.VerifyOutcome, error) {
		return o.matcher.Match(frames, AttackSimSteps), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrPipelineFailed, err)
	}

	result := &AttackSimResult{Outcome: outcome}
	if !outcome.Passed {
		result.RejectionReason = rejectionReason(outcome)
		result.Recommendation = recommendationFor(result.RejectionReason)
	}
	return result, nil
}

// rejectionReason applies the priority order from the attack_sim contract.
func rejectionReason(outcome models.VerifyOutcome) string {
	switch {
	case outcome.FaceDetectedCount == 0:
		return "no face"
	case !outcome.TemporalValid:
		return "no temporal variation"
	case outcome.LivenessScore < minLivenessScoreToPass:
		return "liveness too low"
	default:
		return "failed challenge ordering"
	}
}

func recommendationFor(reason string) string {
	switch reason {
	case "no face":
		return "ensure the claimant's face is fully visible and well lit"
	case "no temporal variation":
		return "perform gestures distinctly and in the requested order, one at a time"
	case "liveness too low":
		return "hold each gesture for at least two consecutive frames"
	default:
		return "repeat the challenge's gestures in the exact order requested"
	}
}

// IsProtocolError reports whether err is one of the terminal challenge-state
// errors that must be reported before any frame work begins.
func IsProtocolError(err error) bool {
	return errors.Is(err, models.ErrChallengeNotFound) ||
		errors.Is(err, models.ErrChallengeExpired) ||
		errors.Is(err, models.ErrChallengeReplay)
}
