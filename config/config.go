package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"
)

// Config is built once at startup and handed by pointer to every component that needs it.
type Config struct {
	Env         string
	Port        string
	CORSOrigins []string

	StoreDriver string
	MongoURI    string
	DBName      string

	JWTSecret          string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	// Legacy toggles reproduce the original service's behaviour for compatibility tests.
	LegacyBorrowRace     bool
	LegacyDuplicateLikes bool
	CascadeUserDelete    bool

	MetadataLookup bool

	S3Bucket      string
	S3Region      string
	S3AccessKeyID string
	S3SecretKey   string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
}

func Load() (*Config, error) {
	accessTTL, err := getEnvDuration("ACCESS_TOKEN_TTL", 48*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshTTL, err := getEnvDuration("REFRESH_TOKEN_TTL", 14*24*time.Hour)
	if err != nil {
		return nil, err
	}
	smtpPort, err := strconv.Atoi(getEnv("SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("SMTP_PORT: %w", err)
	}

	mongoURI := getEnv("MONGODB_URI", "")
	if mongoURI == "" {
		// the original deployment used a bare "db" variable
		mongoURI = getEnv("db", "mongodb://localhost:27017")
	}

	return &Config{
		Env:                  getEnv("APP_ENV", "dev"),
		Port:                 getEnv("PORT", "3000"),
		CORSOrigins:          getEnvList("CORS_ALLOWED_ORIGINS"),
		StoreDriver:          strings.ToLower(getEnv("STORE_DRIVER", DriverMongo)),
		MongoURI:             mongoURI,
		DBName:               getEnv("MONGODB_DB", "library"),
		JWTSecret:            getEnv("JWT_SECRET", ""),
		RefreshTokenSecret:   getEnv("REFRESH_TOKEN_SECRET", ""),
		AccessTokenTTL:       accessTTL,
		RefreshTokenTTL:      refreshTTL,
		LegacyBorrowRace:     getEnvBool("LEGACY_BORROW_RACE", false),
		LegacyDuplicateLikes: getEnvBool("LEGACY_DUPLICATE_LIKES", false),
		CascadeUserDelete:    getEnvBool("CASCADE_USER_DELETE", true),
		MetadataLookup:       getEnvBool("METADATA_LOOKUP", false),
		S3Bucket:             getEnv("AWS_S3_BUCKET", ""),
		S3Region:             getEnv("AWS_REGION", "us-east-1"),
		S3AccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		S3SecretKey:          getEnv("AWS_SECRET_ACCESS_KEY", ""),
		SMTPHost:             getEnv("SMTP_HOST", ""),
		SMTPPort:             smtpPort,
		SMTPUser:             getEnv("SMTP_USER", ""),
		SMTPPassword:         getEnv("SMTP_PASSWORD", ""),
		SMTPFrom:             getEnv("SMTP_FROM", ""),
	}, nil
}

// Validate reports every problem at once so a misconfigured deploy fails with a single message.
func (c *Config) Validate() error {
	var errs []error
	switch c.StoreDriver {
	case DriverMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGODB_URI is required for the mongo store"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverMongo, DriverMemory, c.StoreDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.RefreshTokenSecret == "" {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET is required"))
	}
	if c.JWTSecret != "" && c.JWTSecret == c.RefreshTokenSecret {
		errs = append(errs, errors.New("REFRESH_TOKEN_SECRET must differ from JWT_SECRET"))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		errs = append(errs, errors.New("SMTP_FROM is required when SMTP_HOST is set"))
	}
	return errors.Join(errs...)
}

func (c *Config) S3Enabled() bool   { return c.S3Bucket != "" }
func (c *Config) SMTPEnabled() bool { return c.SMTPHost != "" }

// LogSummary logs the loaded settings without secret values.
func (c *Config) LogSummary(log *slog.Logger) {
	log.Info("config loaded",
		"env", c.Env,
		"port", c.Port,
		"store", c.StoreDriver,
		"db", c.DBName,
		"access_ttl", c.AccessTokenTTL.String(),
		"refresh_ttl", c.RefreshTokenTTL.String(),
		"legacy_borrow_race", c.LegacyBorrowRace,
		"legacy_duplicate_likes", c.LegacyDuplicateLikes,
		"cascade_user_delete", c.CascadeUserDelete,
		"metadata_lookup", c.MetadataLookup,
		"s3", c.S3Enabled(),
		"smtp", c.SMTPEnabled(),
	)
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
