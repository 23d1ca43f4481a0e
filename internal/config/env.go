package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3100"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
}

type IdentityEnv struct {
	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	TokenTTL  time.Duration `envconfig:"TOKEN_TTL" default:"720h"`
	// BootstrapAdminEmail gets the admin role when its user record is first created.
	BootstrapAdminEmail string `envconfig:"BOOTSTRAP_ADMIN_EMAIL"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".timeguild/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"timeguild/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
	// SQLite settings (used when Type == "sqlite")
	SQLitePath string `envconfig:"SQLITE_PATH" default:".timeguild/timeguild.db"`
}

type NATSEnv struct {
	URL           string `envconfig:"NATS_URL"`
	SubjectPrefix string `envconfig:"NATS_SUBJECT_PREFIX" default:"timeguild.events"`
}

type VAPIDEnv struct {
	PublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	PrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	Contact    string `envconfig:"VAPID_CONTACT"`
}

type AssistantEnv struct {
	Timeout time.Duration `envconfig:"ASSISTANT_MODEL_TIMEOUT" default:"60s"`
	WorkDir string        `envconfig:"ASSISTANT_WORK_DIR"`
}

type Env struct {
	BaseEnv
	IdentityEnv
	StorageEnv
	NATSEnv
	VAPIDEnv
	AssistantEnv
}

const namespace = "TIMEGUILD"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	if env.JWTSecret == "" {
		return nil, fmt.Errorf("failed to load env: %s_JWT_SECRET is empty", namespace)
	}
	if env.TokenTTL <= 0 {
		return nil, fmt.Errorf("failed to load env: %s_TOKEN_TTL must be positive", namespace)
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

func (e *BaseEnv) Addr() string {
	return e.HTTPHost + ":" + e.HTTPPort
}

func (e *VAPIDEnv) Enabled() bool {
	return e.PublicKey != "" && e.PrivateKey != ""
}
