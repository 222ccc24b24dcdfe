package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	QUEUE_MODE_INLINE = "inline"
	QUEUE_MODE_ASYNQ  = "asynq"
)

type Configuration struct {
	ApiPort   string `json:"api_port"`
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	Database string `json:"database"` // "sqlite3" or "postgres"
	DbPath   string `json:"db_path"`
	DbHost   string `json:"db_host"`
	DbPort   string `json:"db_port"`
	DbUser   string `json:"db_user"`
	DbName   string `json:"db_name"`
	DbPass   string `json:"db_pass"`

	AutoMigrate bool `json:"auto_migrate"`

	Security struct {
		JwtSecret           string `json:"jwt_secret"`
		AccessTTLMinutes    int    `json:"access_ttl_minutes"`
		RefreshCodeLen      int    `json:"refresh_code_len"`
		RefreshCodeMaxValid int    `json:"refresh_code_max_valid_days"`
		BcryptCost          int    `json:"bcrypt_cost"`
	} `json:"security"`

	Credits struct {
		SignupBonus int `json:"signup_bonus"`
		JobCost     int `json:"job_cost"`
	} `json:"credits"`

	Upload struct {
		MaxBytes     int64 `json:"max_bytes"`
		MaxDimension int   `json:"max_dimension"`
		MaxPixels    int   `json:"max_pixels"`
	} `json:"upload"`

	AI struct {
		BaseURL        string `json:"base_url"`
		ApiKey         string `json:"api_key"`
		Model          string `json:"model"`
		TimeoutSeconds int    `json:"timeout_seconds"`
		MaxAttempts    int    `json:"max_attempts"`
	} `json:"ai"`

	Storage struct {
		Endpoint  string `json:"endpoint"`
		AccessKey string `json:"access_key"`
		SecretKey string `json:"secret_key"`
		Bucket    string `json:"bucket"`
		Region    string `json:"region"`
		UseSSL    bool   `json:"use_ssl"`
	} `json:"storage"`

	Redis struct {
		Addr     string `json:"addr"`
		Password string `json:"password"`
		DB       int    `json:"db"`
	} `json:"redis"`

	Queue struct {
		Mode              string `json:"mode"` // "inline" or "asynq"
		InlineConcurrency int    `json:"inline_concurrency"`
		DebounceSeconds   int    `json:"debounce_seconds"`
		Name              string `json:"name"`
		InteractiveName   string `json:"interactive_name"`
		WorkerConcurrency int    `json:"worker_concurrency"`
	} `json:"queue"`

	Workers struct {
		SweepIntervalSeconds     int `json:"sweep_interval_seconds"`
		PendingGraceSeconds      int `json:"pending_grace_seconds"`
		ProcessingTimeoutSeconds int `json:"processing_timeout_seconds"`
	} `json:"workers"`

	RateLimit struct {
		RPS   float64 `json:"rps"`
		Burst int     `json:"burst"`
	} `json:"rate_limit"`

	StylesPath  string   `json:"styles_path"`
	CORSOrigins []string `json:"cors_origins"`
}

// Load reads the JSON file at path (optional when it does not exist), then applies
// .env / environment overrides and defaults.
func Load(path string) (Configuration, error) {
	var c Configuration

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}

	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			slog.Info("config file not found, using defaults", "path", path)
		case err != nil:
			return c, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := json.Unmarshal(b, &c); err != nil {
				return c, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnv(&c)
	applyDefaults(&c)

	if err := validate(c); err != nil {
		return c, err
	}
	return c, nil
}

func applyEnv(c *Configuration) {
	setString(&c.ApiPort, "PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.LogFormat, "LOG_FORMAT")
	setString(&c.Database, "DATABASE")
	setString(&c.DbPath, "DB_PATH")
	setString(&c.DbHost, "DB_HOST")
	setString(&c.DbPort, "DB_PORT")
	setString(&c.DbUser, "DB_USER")
	setString(&c.DbName, "DB_NAME")
	setString(&c.DbPass, "DB_PASS")
	if v := getenv("AUTOMIGRATE", ""); v != "" {
		c.AutoMigrate = v == "1" || strings.EqualFold(v, "true")
	}

	setString(&c.Security.JwtSecret, "JWT_SECRET")
	setInt(&c.Security.AccessTTLMinutes, "JWT_ACCESS_TTL_MINUTES")

	setString(&c.AI.BaseURL, "GEMINI_BASE_URL")
	setString(&c.AI.ApiKey, "GEMINI_API_KEY")
	setString(&c.AI.Model, "GEMINI_MODEL")

	setString(&c.Storage.Endpoint, "S3_ENDPOINT")
	setString(&c.Storage.AccessKey, "S3_ACCESS_KEY")
	setString(&c.Storage.SecretKey, "S3_SECRET_KEY")
	setString(&c.Storage.Bucket, "S3_BUCKET")
	setString(&c.Storage.Region, "S3_REGION")
	if v := getenv("S3_USE_SSL", ""); v != "" {
		c.Storage.UseSSL = strings.EqualFold(v, "true") || v == "1"
	}

	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")

	setString(&c.Queue.Mode, "QUEUE_MODE")
	setInt(&c.Queue.WorkerConcurrency, "QUEUE_WORKER_CONCURRENCY")
	setString(&c.StylesPath, "STYLES_PATH")
}

func applyDefaults(c *Configuration) {
	if c.ApiPort == "" {
		c.ApiPort = "8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
	if c.Database == "" {
		c.Database = "sqlite3"
	}
	if c.DbPath == "" {
		c.DbPath = "db/database.db"
	}
	if c.Security.JwtSecret == "" {
		c.Security.JwtSecret = "CHANGE_ME"
	}
	if c.Security.AccessTTLMinutes <= 0 {
		c.Security.AccessTTLMinutes = 24 * 60
	}
	if c.Security.RefreshCodeLen <= 0 {
		c.Security.RefreshCodeLen = 48
	}
	if c.Security.RefreshCodeMaxValid <= 0 {
		c.Security.RefreshCodeMaxValid = 30
	}
	if c.Security.BcryptCost <= 0 {
		c.Security.BcryptCost = 10
	}
	if c.Credits.SignupBonus < 0 {
		c.Credits.SignupBonus = 0
	}
	if c.Credits.JobCost <= 0 {
		c.Credits.JobCost = 1
	}
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = 10 << 20
	}
	if c.Upload.MaxDimension <= 0 {
		c.Upload.MaxDimension = 1536
	}
	if c.Upload.MaxPixels <= 0 {
		c.Upload.MaxPixels = 40_000_000
	}
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-2.5-flash-image"
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = 120
	}
	if c.AI.MaxAttempts <= 0 {
		c.AI.MaxAttempts = 3
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "platestyle"
	}
	if c.Storage.Region == "" {
		c.Storage.Region = "us-east-1"
	}
	if c.Queue.Mode == "" {
		if c.Redis.Addr != "" {
			c.Queue.Mode = QUEUE_MODE_ASYNQ
		} else {
			c.Queue.Mode = QUEUE_MODE_INLINE
		}
	}
	if c.Queue.InlineConcurrency <= 0 {
		c.Queue.InlineConcurrency = 3
	}
	if c.Queue.DebounceSeconds <= 0 {
		c.Queue.DebounceSeconds = 3
	}
	if c.Queue.Name == "" {
		c.Queue.Name = "default"
	}
	if c.Queue.InteractiveName == "" {
		c.Queue.InteractiveName = "interactive"
	}
	if c.Queue.WorkerConcurrency <= 0 {
		c.Queue.WorkerConcurrency = 5
	}
	if c.Workers.SweepIntervalSeconds <= 0 {
		c.Workers.SweepIntervalSeconds = 30
	}
	if c.Workers.PendingGraceSeconds <= 0 {
		c.Workers.PendingGraceSeconds = 60
	}
	if c.Workers.ProcessingTimeoutSeconds <= 0 {
		c.Workers.ProcessingTimeoutSeconds = 300
	}
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = 2
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 10
	}
}

func validate(c Configuration) error {
	switch c.Database {
	case "sqlite3", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported database: %s", c.Database)
	}
	switch c.Queue.Mode {
	case QUEUE_MODE_INLINE:
	case QUEUE_MODE_ASYNQ:
		if c.Redis.Addr == "" {
			return errors.New("queue mode asynq requires redis.addr")
		}
	default:
		return fmt.Errorf("unsupported queue mode: %s", c.Queue.Mode)
	}
	return nil
}

func (c Configuration) AccessTTL() time.Duration {
	return time.Duration(c.Security.AccessTTLMinutes) * time.Minute
}

func (c Configuration) RefreshTTL() time.Duration {
	return time.Duration(c.Security.RefreshCodeMaxValid) * 24 * time.Hour
}

func (c Configuration) DebounceWindow() time.Duration {
	return time.Duration(c.Queue.DebounceSeconds) * time.Second
}

func (c Configuration) SweepInterval() time.Duration {
	return time.Duration(c.Workers.SweepIntervalSeconds) * time.Second
}

func (c Configuration) PendingGrace() time.Duration {
	return time.Duration(c.Workers.PendingGraceSeconds) * time.Second
}

func (c Configuration) ProcessingTimeout() time.Duration {
	return time.Duration(c.Workers.ProcessingTimeoutSeconds) * time.Second
}

func (c Configuration) AITimeout() time.Duration {
	return time.Duration(c.AI.TimeoutSeconds) * time.Second
}

// ObjectStorageEnabled reports whether an S3-compatible endpoint is configured.
func (c Configuration) ObjectStorageEnabled() bool {
	return strings.TrimSpace(c.Storage.Endpoint) != ""
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func setString(dst *string, key string) {
	if v := getenv(key, ""); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v := getenv(key, "")
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		slog.Warn("ignoring non-numeric env override", "key", key, "value", v)
		return
	}
	*dst = n
}
