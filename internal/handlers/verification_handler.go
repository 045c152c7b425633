// Package handlers implements the HTTP surface over the verification
// orchestrator: generate_challenge, verify and attack_sim, plus a health
// endpoint. The metrics endpoint is the Prometheus handler wired in main.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"connect-hub/liveness-service/internal/metrics"
	"connect-hub/liveness-service/internal/models"
	"connect-hub/liveness-service/internal/orchestrator"
)

type VerificationHandler struct {
	orchestrator *orchestrator.Orchestrator
	logger       *zap.Logger
}

func NewVerificationHandler(o *orchestrator.Orchestrator, logger *zap.Logger) *VerificationHandler {
	return &VerificationHandler{orchestrator: o, logger: logger}
}

type verifyRequest struct {
	ChallengeID string   `json:"challenge_id" binding:"required"`
	Frames      []string `json:"frames" binding:"required"`
}

type attackSimRequest struct {
	Frames []string `json:"frames" binding:"required"`
}

// GenerateChallenge handles POST /api/v1/challenge.
func (h *VerificationHandler) GenerateChallenge(c *gin.Context) {
	result, err := h.orchestrator.GenerateChallenge(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to generate challenge", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to generate challenge",
			"code":  "CHALLENGE_GENERATION_FAILED",
		})
		return
	}

	metrics.ChallengesGenerated.Inc()

	c.JSON(http.StatusOK, gin.H{
		"challenge_id":       result.ChallengeID,
		"steps":              result.Steps,
		"expires_at":         result.ExpiresAt,
		"expires_in_seconds": result.ExpiresInSeconds,
	})
}

// Verify handles POST /api/v1/verify.
func (h *VerificationHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
			"code":  "INVALID_INPUT",
		})
		return
	}

	result, err := h.orchestrator.Verify(c.Request.Context(), req.ChallengeID, req.Frames, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.respondProtocolOrServerError(c, err, "verify")
		return
	}

	metrics.ObserveVerification(result.Outcome.Passed, result.Outcome.LivenessScore)

	h.logger.Info("verification completed",
		zap.String("challenge_id", req.ChallengeID),
		zap.Bool("passed", result.Outcome.Passed),
		zap.Float64("liveness_score", result.Outcome.LivenessScore))

	body := gin.H{"outcome": result.Outcome}
	if result.Credential != nil {
		body["credential"] = gin.H{
			"token":      result.Credential.Token,
			"expires_at": result.Credential.ExpiresAt,
		}
	}
	c.JSON(http.StatusOK, body)
}

// AttackSim handles POST /api/v1/attack-sim.
func (h *VerificationHandler) AttackSim(c *gin.Context) {
	var req attackSimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "invalid request body",
			"code":  "INVALID_INPUT",
		})
		return
	}

	result, err := h.orchestrator.AttackSim(c.Request.Context(), req.Frames)
	if err != nil {
		h.respondProtocolOrServerError(c, err, "attack_sim")
		return
	}

	metrics.ObserveVerification(result.Outcome.Passed, result.Outcome.LivenessScore)

	c.JSON(http.StatusOK, gin.H{
		"outcome":          result.Outcome,
		"rejection_reason": result.RejectionReason,
		"recommendation":   result.Recommendation,
	})
}

// Health handles GET /health.
func (h *VerificationHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *VerificationHandler) respondProtocolOrServerError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, models.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "INVALID_INPUT"})
	case errors.Is(err, models.ErrChallengeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "code": "CHALLENGE_NOT_FOUND"})
	case errors.Is(err, models.ErrChallengeReplay):
		c.JSON(http.StatusGone, gin.H{"error": err.Error(), "code": "CHALLENGE_REPLAY"})
	case errors.Is(err, models.ErrChallengeExpired):
		c.JSON(http.StatusGone, gin.H{"error": err.Error(), "code": "CHALLENGE_EXPIRED"})
	default:
		h.logger.Error("pipeline failure", zap.String("op", op), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification pipeline failed", "code": "PIPELINE_FAILED"})
	}
}
