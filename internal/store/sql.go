package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"connect-hub/liveness-service/internal/models"
)

// challengeRow and attemptRow are gorm's persisted shapes. StepsJSON and
// StepResultsJSON hold the JSON-encoded slices since the gesture/step types
// have no natural relational decomposition worth the join cost here.
type challengeRow struct {
	ID        string `gorm:"primaryKey"`
	StepsJSON string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

func (challengeRow) TableName() string { return "challenges" }

type attemptRow struct {
	ID                  string `gorm:"primaryKey"`
	ChallengeID         string
	LivenessScore       float64
	Passed              bool
	ClientIP            string
	UserAgent           string
	StepResultsJSON     string
	CredentialTokenHash string
	CreatedAt           time.Time
}

func (attemptRow) TableName() string { return "verification_attempts" }

type revokedTokenRow struct {
	TokenHash string `gorm:"primaryKey"`
	CreatedAt time.Time
}

func (revokedTokenRow) TableName() string { return "revoked_tokens" }

// SQLStore persists challenges and attempts through gorm, defaulting to a
// local sqlite file. CompareAndSetUsed relies on RowsAffected from a
// conditional UPDATE rather than a separate read-then-write, so the
// transition is atomic even against a concurrent UPDATE from another
// process.
type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("store: failed to open sql database: %w", err)
	}
	if err := db.AutoMigrate(&challengeRow{}, &attemptRow{}, &revokedTokenRow{}); err != nil {
		return nil, fmt.Errorf("store: failed to migrate schema: %w", err)
	}

	// sqlite serializes writers at the file level; a single open connection
	// avoids SQLITE_BUSY errors under concurrent CompareAndSetUsed calls
	// instead of surfacing them as spurious failures.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("store: failed to access underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Put(ctx context.Context, c *models.Challenge) error {
	steps, err := json.Marshal(c.Steps)
	if err != nil {
		return err
	}
	row := challengeRow{
		ID:        c.ID,
		StepsJSON: string(steps),
		CreatedAt: c.CreatedAt,
		ExpiresAt: c.ExpiresAt,
		Used:      c.Used,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *SQLStore) Get(ctx context.Context, id string) (*models.Challenge, error) {
	var row challengeRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var steps []models.GestureKind
	if err := json.Unmarshal([]byte(row.StepsJSON), &steps); err != nil {
		return nil, err
	}

	return &models.Challenge{
		ID:        row.ID,
		Steps:     steps,
		CreatedAt: row.CreatedAt,
		ExpiresAt: row.ExpiresAt,
		Used:      row.Used,
	}, nil
}

func (s *SQLStore) CompareAndSetUsed(ctx context.Context, id string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&challengeRow{}).
		Where("id = ? AND used = ?", id, false).
		Update("used", true)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (s *SQLStore) PutAttempt(ctx context.Context, a *models.VerificationAttempt) error {
	stepResults, err := json.Marshal(a.StepResults)
	if err != nil {
		return err
	}
	row := attemptRow{
		ID:                  a.ID,
		ChallengeID:         a.ChallengeID,
		LivenessScore:       a.LivenessScore,
		Passed:              a.Passed,
		ClientIP:            a.ClientIP,
		UserAgent:           a.UserAgent,
		StepResultsJSON:     string(stepResults),
		CredentialTokenHash: a.CredentialTokenHash,
		CreatedAt:           a.CreatedAt,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// IsRevoked and Revoke implement credential.RevocationStore.
func (s *SQLStore) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&revokedTokenRow{}).Where("token_hash = ?", tokenHash).Count(&count).Error
	return count > 0, err
}

func (s *SQLStore) Revoke(ctx context.Context, tokenHash string) error {
	return s.db.WithContext(ctx).Create(&revokedTokenRow{TokenHash: tokenHash, CreatedAt: time.Now().UTC()}).Error
}
