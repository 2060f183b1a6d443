// Package config loads suite configuration from the project .env file and
// environment variables.
//
// Real environment variables always win over .env entries, so CI can inject
// secrets without editing files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DefaultAuthStatePath is relative to the project root.
	DefaultAuthStatePath  = "playwright/.auth/user.json"
	DefaultSafetyWindow   = 300 * time.Second
	DefaultBrowserTimeout = 15 * time.Second
	DefaultNotesAPIRPS    = 5
	DefaultNotesAPIBurst  = 5
)

// Config holds the suite configuration.
type Config struct {
	ProjectRoot string

	// Application under test
	BaseURL string // BASE_URL, used for interactive login

	// Supabase
	FunctionsURL string // SUPABASE_FUNCTIONS_URL, overrides issuer-derived URL
	AnonKey      string // SUPABASE_ANON_KEY, sent as apikey header
	AuthURL      string // SUPABASE_AUTH_URL, overrides issuer-derived refresh endpoint

	// Session management
	AuthStatePath string        // AUTH_STATE_PATH, absolute after Load
	SafetyWindow  time.Duration // AUTH_SAFETY_WINDOW

	// Notes API pacing
	NotesAPIRPS   float64 // NOTES_API_RPS
	NotesAPIBurst int     // NOTES_API_BURST

	// Browser
	BrowserTimeout time.Duration // BROWSER_TIMEOUT
	Headless       bool          // HEADLESS
}

// ValidationError lists every configuration problem found.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("configuration validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Load reads <projectRoot>/.env (if present) and the environment.
// An empty projectRoot is resolved with FindProjectRoot.
func Load(projectRoot string) (*Config, error) {
	if projectRoot == "" {
		root, err := FindProjectRoot()
		if err != nil {
			return nil, err
		}
		projectRoot = root
	}

	if err := godotenv.Load(filepath.Join(projectRoot, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{ProjectRoot: projectRoot}
	cfg.BaseURL = strings.TrimSpace(os.Getenv("BASE_URL"))
	cfg.FunctionsURL = strings.TrimSpace(os.Getenv("SUPABASE_FUNCTIONS_URL"))
	cfg.AnonKey = strings.TrimSpace(os.Getenv("SUPABASE_ANON_KEY"))
	cfg.AuthURL = strings.TrimSpace(os.Getenv("SUPABASE_AUTH_URL"))

	cfg.AuthStatePath = getEnvOrDefault("AUTH_STATE_PATH", DefaultAuthStatePath)
	if !filepath.IsAbs(cfg.AuthStatePath) {
		cfg.AuthStatePath = filepath.Join(projectRoot, cfg.AuthStatePath)
	}
	cfg.SafetyWindow = parseDurationOrDefault("AUTH_SAFETY_WINDOW", DefaultSafetyWindow)

	cfg.NotesAPIRPS = parseFloat64OrDefault("NOTES_API_RPS", DefaultNotesAPIRPS)
	cfg.NotesAPIBurst = parseIntOrDefault("NOTES_API_BURST", DefaultNotesAPIBurst)

	cfg.BrowserTimeout = parseDurationOrDefault("BROWSER_TIMEOUT", DefaultBrowserTimeout)
	cfg.Headless = parseBoolOrDefault("HEADLESS", true)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that every command depends on.
func (c *Config) Validate() error {
	var errs []string

	if c.AuthStatePath == "" {
		errs = append(errs, "AUTH_STATE_PATH must not be empty")
	}
	if c.SafetyWindow <= 0 {
		errs = append(errs, "AUTH_SAFETY_WINDOW must be positive")
	}
	if c.NotesAPIRPS <= 0 {
		errs = append(errs, "NOTES_API_RPS must be positive")
	}
	if c.NotesAPIBurst <= 0 {
		errs = append(errs, "NOTES_API_BURST must be positive")
	}
	if c.BrowserTimeout <= 0 {
		errs = append(errs, "BROWSER_TIMEOUT must be positive")
	}
	for name, value := range map[string]string{
		"BASE_URL":               c.BaseURL,
		"SUPABASE_FUNCTIONS_URL": c.FunctionsURL,
		"SUPABASE_AUTH_URL":      c.AuthURL,
	} {
		if value != "" && !isHTTPURL(value) {
			errs = append(errs, name+" must be an http(s) URL")
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

// RequireBaseURL fails when interactive login has no application URL.
func (c *Config) RequireBaseURL() error {
	if c.BaseURL == "" {
		return &ValidationError{Errors: []string{"BASE_URL is not set. Define it in .env or your environment."}}
	}
	return nil
}

// FindProjectRoot walks up from the working directory to the directory
// holding go.mod.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("project root not found: no go.mod above working directory")
		}
		dir = parent
	}
}

func isHTTPURL(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}

// Helper functions for parsing environment variables

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func parseIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func parseBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// parseDurationOrDefault accepts Go durations ("5m") or bare seconds ("300").
func parseDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
