// Package challenge implements the single-use challenge lifecycle (C5): it
// generates randomized gesture sequences, persists them through an external
// Store, and enforces one-time use and expiry on consume.
package challenge

import (
	"context"

	"connect-hub/liveness-service/internal/models"
)

// Store is the external-store contract the core requires: durable
// persistence of challenges and attempts, plus an atomic single-use
// transition. Concrete backends (memory, Redis, SQL) live in the store
// package; this interface is declared here so the challenge package does not
// depend on any particular backend.
type Store interface {
	Put(ctx context.Context, c *models.Challenge) error
	Get(ctx context.Context, id string) (*models.Challenge, error)
	// CompareAndSetUsed atomically transitions Used from false to true and
	// reports whether this call performed the transition. A false result
	// means the challenge was already used by a concurrent or prior call.
	CompareAndSetUsed(ctx context.Context, id string) (bool, error)
	PutAttempt(ctx context.Context, a *models.VerificationAttempt) error
}
