// Package config loads the server's configuration from TEAMSYNC_*
// environment variables.
package config

import (
	"fmt"
	"log/slog"

	"github.com/kelseyhightower/envconfig"
)

// BaseEnv is the process-level configuration every deployment sets.
type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3100"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
}

// StorageEnv selects and parameterizes the snapshot storage backend.
type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".teamsync/data"`
	// The S3 fields only matter when Type is "s3".
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"teamsync/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

// VAPIDEnv holds the web push signing keys. Leaving them empty disables
// push notifications without failing startup.
type VAPIDEnv struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDContact    string `envconfig:"VAPID_CONTACT" default:""`
}

// EngineEnv tunes the per-team state engine: history caps, quality gate
// policy, and autonomous run limits.
type EngineEnv struct {
	MessageCap               int     `envconfig:"MESSAGE_CAP" default:"200"`
	ActivityCap              int     `envconfig:"ACTIVITY_CAP" default:"300"`
	HealthIssueCap           int     `envconfig:"HEALTH_ISSUE_CAP" default:"3"`
	GateMaxCycles            int     `envconfig:"GATE_MAX_CYCLES" default:"3"`
	GatePassThreshold        float64 `envconfig:"GATE_PASS_THRESHOLD" default:"80"`
	GateEscalationModel      string  `envconfig:"GATE_ESCALATION_MODEL" default:""`
	YoloMode                 string  `envconfig:"YOLO_MODE" default:"smart"`
	YoloCostCapUSD           float64 `envconfig:"YOLO_COST_CAP_USD" default:"0"`
	YoloTimeoutSeconds       int     `envconfig:"YOLO_TIMEOUT_SECONDS" default:"0"`
	YoloMaxConcurrent        int     `envconfig:"YOLO_MAX_CONCURRENT" default:"4"`
	YoloMaxRemediationRounds int     `envconfig:"YOLO_MAX_REMEDIATION_ROUNDS" default:"2"`
	YoloRequireApproval      bool    `envconfig:"YOLO_REQUIRE_APPROVAL" default:"true"`
}

type Env struct {
	BaseEnv
	StorageEnv
	VAPIDEnv
	EngineEnv
}

const namespace = "TEAMSYNC"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func BaseEnvFromEnv(env *Env) *BaseEnv {
	return &env.BaseEnv
}

func StorageEnvFromEnv(env *Env) *StorageEnv {
	return &env.StorageEnv
}

func VAPIDEnvFromEnv(env *Env) *VAPIDEnv {
	return &env.VAPIDEnv
}

func EngineEnvFromEnv(env *Env) *EngineEnv {
	return &env.EngineEnv
}
