package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// HoldPolicy decides when a motor stops being bookable.
type HoldPolicy string

const (
	// HoldOnPayment keeps the motor available until its payment is verified.
	HoldOnPayment HoldPolicy = "on_payment"
	// HoldOnCreate marks the motor rented as soon as a reservation is created.
	HoldOnCreate HoldPolicy = "on_create"
)

type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	DBTimeout   time.Duration
	DBMaxConns  int

	JWTSecret string
	JWTTTL    time.Duration

	Location       *time.Location
	HoldPolicy     HoldPolicy
	UploadMaxBytes int64
	CORSOrigins    []string

	Storage  StorageConfig
	SendGrid SendGridConfig
	Twilio   TwilioConfig

	PendingExpiry time.Duration
	JobSchedule   string
}

type StorageConfig struct {
	Driver     string
	LocalRoot  string
	S3Bucket   string
	S3Region   string
	S3Key      string
	S3Secret   string
	S3Endpoint string
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

func (c SendGridConfig) Enabled() bool { return c.APIKey != "" && c.FromEmail != "" }

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// Load reads the optional .env file and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from an arbitrary lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	r := reader{getenv: getenv}

	cfg := &Config{
		AppEnv:      r.str("APP_ENV", "development"),
		Port:        r.str("PORT", "8080"),
		DatabaseURL: r.str("DATABASE_URL", ""),
		DBTimeout:   r.duration("DB_TIMEOUT", 5*time.Second),
		DBMaxConns:  r.int("DB_MAX_OPEN_CONNS", 25),

		JWTSecret: r.str("JWT_SECRET", ""),
		JWTTTL:    r.duration("JWT_TTL", 24*time.Hour),

		HoldPolicy:     HoldPolicy(r.str("MOTOR_HOLD_POLICY", string(HoldOnPayment))),
		UploadMaxBytes: int64(r.int("UPLOAD_MAX_BYTES", 5<<20)),
		CORSOrigins:    r.list("CORS_ORIGINS"),

		Storage: StorageConfig{
			Driver:     r.str("STORAGE_DRIVER", "local"),
			LocalRoot:  r.str("STORAGE_LOCAL_ROOT", "uploads"),
			S3Bucket:   r.str("S3_BUCKET", ""),
			S3Region:   r.str("S3_REGION", "us-east-1"),
			S3Key:      r.str("S3_KEY", ""),
			S3Secret:   r.str("S3_SECRET", ""),
			S3Endpoint: r.str("S3_ENDPOINT", ""),
		},
		SendGrid: SendGridConfig{
			APIKey:    r.str("SENDGRID_API_KEY", ""),
			FromEmail: r.str("SENDGRID_FROM_EMAIL", ""),
			FromName:  r.str("SENDGRID_FROM_NAME", "Motorent"),
		},
		Twilio: TwilioConfig{
			AccountSID: r.str("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  r.str("TWILIO_AUTH_TOKEN", ""),
			FromNumber: r.str("TWILIO_FROM_NUMBER", ""),
		},

		PendingExpiry: time.Duration(r.int("PENDING_EXPIRY_HOURS", 0)) * time.Hour,
		JobSchedule:   r.str("JOB_SCHEDULE", "@every 1h"),
	}

	tz := r.str("APP_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		r.fail("APP_TIMEZONE", err)
	}
	cfg.Location = loc

	if r.err != nil {
		return nil, r.err
	}
	return cfg, cfg.validate()
}

// RequireServer checks the settings only the HTTP server needs.
func (c *Config) RequireServer() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET not set")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production" || c.AppEnv == "prod"
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL not set")
	}
	switch c.HoldPolicy {
	case HoldOnPayment, HoldOnCreate:
	default:
		return fmt.Errorf("MOTOR_HOLD_POLICY must be %q or %q, got %q", HoldOnPayment, HoldOnCreate, c.HoldPolicy)
	}
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.DBTimeout <= 0 {
		return fmt.Errorf("DB_TIMEOUT must be positive")
	}
	if c.UploadMaxBytes <= 0 {
		return fmt.Errorf("UPLOAD_MAX_BYTES must be positive")
	}
	if c.PendingExpiry < 0 {
		return fmt.Errorf("PENDING_EXPIRY_HOURS must not be negative")
	}
	return nil
}

type reader struct {
	getenv func(string) string
	err    error
}

func (r *reader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s: %w", key, err)
	}
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return n
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, err)
		return def
	}
	return d
}

func (r *reader) list(key string) []string {
	v := strings.TrimSpace(r.getenv(key))
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
