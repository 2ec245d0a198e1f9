// Package config reads server settings from the environment, after loading
// any .env file present.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds everything main needs to wire the server.
type Config struct {
	Port    string `validate:"required,numeric"`
	GinMode string `validate:"oneof=debug release test"`
	DevMode bool
	LogFile string `validate:"required"`

	DatabasePath string `validate:"required"`

	AdminUsername string `validate:"required"`
	AdminPassword string `validate:"required"`
	// SessionSecret signs the session cookie. Generated per process when unset.
	SessionSecret string `validate:"required,min=32"`

	SubmitLatency time.Duration `validate:"gte=0"`
	ResetDelay    time.Duration `validate:"gte=0"`
	SessionTTL    time.Duration `validate:"gt=0"`

	VisitorRetention time.Duration `validate:"gt=0"`
	SkillsView       string        `validate:"oneof=css 3d"`

	OTLPEndpoint string
	ServiceName  string `validate:"required"`

	// Warnings collects defaults that should not reach production.
	Warnings []string `validate:"-"`
}

var validate = validator.New()

// Load reads the given .env files (default ".env") if they exist, then builds
// a Config from the environment. Values already set in the environment win.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables alone.
func FromEnv() (*Config, error) {
	c := &Config{
		Port:          getenv("PORT", "8080"),
		GinMode:       getenv("GIN_MODE", "debug"),
		DevMode:       strings.EqualFold(os.Getenv("APP_ENV"), "development"),
		LogFile:       getenv("LOG_FILE", ".logs/app.log"),
		DatabasePath:  getenv("DATABASE_PATH", "portfolio.db"),
		AdminUsername: os.Getenv("ADMIN_USERNAME"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		SkillsView:    strings.ToLower(getenv("SKILLS_VIEW", "css")),
		OTLPEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		ServiceName:   getenv("OTEL_SERVICE_NAME", "portfolio"),
	}

	// Default credentials for development (remove in production)
	if c.AdminUsername == "" {
		c.AdminUsername = "admin"
		c.Warnings = append(c.Warnings, "using default admin username, set ADMIN_USERNAME")
	}
	if c.AdminPassword == "" {
		c.AdminPassword = "admin123"
		c.Warnings = append(c.Warnings, "using default admin password, set ADMIN_PASSWORD")
	}
	if c.SessionSecret == "" {
		secret, err := randomHex(32)
		if err != nil {
			return nil, fmt.Errorf("config: generate session secret: %w", err)
		}
		c.SessionSecret = secret
		c.Warnings = append(c.Warnings, "generated a session secret, sessions will not survive restarts")
	}

	var err error
	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"CONTACT_SUBMIT_LATENCY", 2 * time.Second, &c.SubmitLatency},
		{"CONTACT_RESET_DELAY", 3 * time.Second, &c.ResetDelay},
		{"CONTACT_SESSION_TTL", 30 * time.Minute, &c.SessionTTL},
		{"VISITOR_RETENTION", 365 * 24 * time.Hour, &c.VisitorRetention},
	}
	for _, d := range durations {
		if *d.dst, err = getDuration(d.key, d.def); err != nil {
			return nil, err
		}
	}

	if err := validate.Struct(c); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return c, nil
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
