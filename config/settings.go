package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

func init() {
	// Load env from .env when present; real env wins.
	godotenv.Load()
}

// Settings is the full runtime configuration. Credentials come from the
// environment (ERP_* variables); CLI flags override individual fields after
// Load.
type Settings struct {
	ServerURL string `validate:"required,url"`
	Database  string `validate:"required"`
	Username  string `validate:"required"`
	Password  string `validate:"required"`

	Workers   int `validate:"min=1,max=32"`
	BatchSize int `validate:"min=1"`

	PoolSize           int
	MaxCallsPerSession int
	MaxSessionAge      time.Duration
	MaxSessionIdle     time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RetryMaxDelay      time.Duration
	ReconnectCooldown  time.Duration
	CallTimeout        time.Duration

	ProgressEveryRows int
	ProgressEveryTime time.Duration

	RunsDir string
}

var validate = validator.New()

// Load builds Settings from the environment with the engine defaults.
func Load() Settings {
	return Settings{
		ServerURL: os.Getenv("ERP_SERVER_URL"),
		Database:  os.Getenv("ERP_DATABASE"),
		Username:  os.Getenv("ERP_USERNAME"),
		Password:  os.Getenv("ERP_PASSWORD"),

		Workers:   envInt("IMPORT_WORKERS", 6),
		BatchSize: envInt("IMPORT_BATCH_SIZE", 100),

		PoolSize:           envInt("ERP_SESSION_POOL_SIZE", 8),
		MaxCallsPerSession: envInt("ERP_SESSION_MAX_CALLS", 500),
		MaxSessionAge:      envDuration("ERP_SESSION_MAX_AGE", time.Hour),
		MaxSessionIdle:     envDuration("ERP_SESSION_MAX_IDLE", 3*time.Minute),
		MaxRetries:         envInt("ERP_CALL_MAX_RETRIES", 3),
		RetryBaseDelay:     envDuration("ERP_RETRY_BASE_DELAY", 2*time.Second),
		RetryMaxDelay:      envDuration("ERP_RETRY_MAX_DELAY", 2*time.Minute),
		ReconnectCooldown:  envDuration("ERP_RECONNECT_COOLDOWN", 30*time.Second),
		CallTimeout:        envDuration("ERP_CALL_TIMEOUT", 30*time.Second),

		ProgressEveryRows: envInt("IMPORT_PROGRESS_ROWS", 50),
		ProgressEveryTime: envDuration("IMPORT_PROGRESS_INTERVAL", 15*time.Second),

		RunsDir: envString("IMPORT_RUNS_DIR", "runs"),
	}
}

// Validate reports missing connection settings before any RPC happens.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(errs))
			for _, fe := range errs {
				fields = append(fields, fe.Field())
			}
			return fmt.Errorf("invalid or missing settings: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

func envString(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
