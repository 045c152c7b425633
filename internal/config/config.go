// Package config loads the liveness service's environment-driven
// configuration surface, following the teacher's spf13/viper idiom.
package config

import "github.com/spf13/viper"

type Config struct {
	Port        int    `mapstructure:"PORT"`
	Environment string `mapstructure:"ENVIRONMENT"`

	// Face model / native recognizer settings (C2).
	FaceModelPath string `mapstructure:"FACE_MODEL_PATH"`

	// Frame decoding (C1).
	FrameWidth int `mapstructure:"FRAME_WIDTH"`

	// Gesture detector thresholds (C3), tunable per camera geometry.
	EARThreshold         float64 `mapstructure:"EAR_THRESHOLD"`
	SmileRatioThreshold  float64 `mapstructure:"SMILE_RATIO_THRESHOLD"`
	MouthOpenThreshold   float64 `mapstructure:"MOUTH_OPEN_THRESHOLD"`
	BrowRaiseThreshold   float64 `mapstructure:"BROW_RAISE_THRESHOLD"`
	HeadTurnNoseX        float64 `mapstructure:"HEAD_TURN_NOSE_X"`

	// Temporal matcher (C4).
	MinConsecutiveFrames int `mapstructure:"MIN_CONSECUTIVE_FRAMES"`

	// Challenge lifecycle (C5).
	ChallengeExpirySeconds int `mapstructure:"CHALLENGE_EXPIRY_SECONDS"`
	ChallengeLength        int `mapstructure:"CHALLENGE_LENGTH"`

	// External store wiring.
	StorageDriver string `mapstructure:"STORAGE_DRIVER"` // memory | redis | sql
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	SQLitePath    string `mapstructure:"SQLITE_PATH"`

	// Encrypted snapshot persistence for the in-process store.
	SnapshotPath          string `mapstructure:"SNAPSHOT_PATH"`
	SnapshotEncryptionKey string `mapstructure:"SNAPSHOT_ENCRYPTION_KEY"`

	// External auth / credential minting.
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	JWTExpiryMinutes  int    `mapstructure:"JWT_EXPIRY_MINUTES"`

	// Transport / performance.
	RateLimitRPS   int `mapstructure:"RATE_LIMIT_RPS"`
	WorkerPoolSize int `mapstructure:"WORKER_POOL_SIZE"`
}

func Load() (*Config, error) {
	viper.SetDefault("PORT", 8080)
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("FACE_MODEL_PATH", "./models")

	viper.SetDefault("FRAME_WIDTH", 320)

	viper.SetDefault("EAR_THRESHOLD", 0.21)
	viper.SetDefault("SMILE_RATIO_THRESHOLD", 4.0)
	viper.SetDefault("MOUTH_OPEN_THRESHOLD", 0.5)
	viper.SetDefault("BROW_RAISE_THRESHOLD", 0.35)
	viper.SetDefault("HEAD_TURN_NOSE_X", 0.58)

	viper.SetDefault("MIN_CONSECUTIVE_FRAMES", 2)

	viper.SetDefault("CHALLENGE_EXPIRY_SECONDS", 120)
	viper.SetDefault("CHALLENGE_LENGTH", 3)

	viper.SetDefault("STORAGE_DRIVER", "memory")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("SQLITE_PATH", "./storage/liveness.db")

	viper.SetDefault("SNAPSHOT_PATH", "./storage/challenges.snapshot")
	viper.SetDefault("SNAPSHOT_ENCRYPTION_KEY", "")

	viper.SetDefault("JWT_SECRET", "change-me-in-production")
	viper.SetDefault("JWT_EXPIRY_MINUTES", 5)

	viper.SetDefault("RATE_LIMIT_RPS", 60)
	viper.SetDefault("WORKER_POOL_SIZE", 8)

	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
