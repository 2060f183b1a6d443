package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

var configEnvKeys = []string{
	"BASE_URL",
	"SUPABASE_FUNCTIONS_URL",
	"SUPABASE_ANON_KEY",
	"SUPABASE_AUTH_URL",
	"AUTH_STATE_PATH",
	"AUTH_SAFETY_WINDOW",
	"NOTES_API_RPS",
	"NOTES_API_BURST",
	"BROWSER_TIMEOUT",
	"HEADLESS",
}

// clearConfigEnv blanks every recognized key; t.Setenv restores them after the test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)
	root := t.TempDir()

	cfg, err := Load(root)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, DefaultAuthStatePath), cfg.AuthStatePath)
	require.Equal(t, DefaultSafetyWindow, cfg.SafetyWindow)
	require.Equal(t, float64(DefaultNotesAPIRPS), cfg.NotesAPIRPS)
	require.True(t, cfg.Headless)
	require.Empty(t, cfg.BaseURL)
	require.Error(t, cfg.RequireBaseURL())
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	clearConfigEnv(t)
	root := t.TempDir()
	dotenv := "BASE_URL=http://localhost:5173\nSUPABASE_ANON_KEY=from-file\nAUTH_SAFETY_WINDOW=120\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ".env"), []byte(dotenv), 0o600))
	t.Setenv("SUPABASE_ANON_KEY", "from-env")

	cfg, err := Load(root)
	require.NoError(t, err)
	require.Equal(t, "http://localhost:5173", cfg.BaseURL)
	require.Equal(t, "from-env", cfg.AnonKey)
	require.Equal(t, 120*time.Second, cfg.SafetyWindow)
	require.NoError(t, cfg.RequireBaseURL())
}

func TestLoad_AbsoluteAuthStatePathKept(t *testing.T) {
	clearConfigEnv(t)
	abs := filepath.Join(t.TempDir(), "state.json")
	t.Setenv("AUTH_STATE_PATH", abs)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, abs, cfg.AuthStatePath)
}

func TestLoad_InvalidValuesCollected(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("NOTES_API_RPS", "-1")
	t.Setenv("BASE_URL", "localhost:5173")
	t.Setenv("SUPABASE_FUNCTIONS_URL", "ftp://x")

	_, err := Load(t.TempDir())
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "want *ValidationError, got %v", err)
	require.Len(t, verr.Errors, 3)
	require.Contains(t, err.Error(), "NOTES_API_RPS")
	require.Contains(t, err.Error(), "BASE_URL")
	require.Contains(t, err.Error(), "SUPABASE_FUNCTIONS_URL")
}

func TestParseDurationOrDefault_SecondsAndGoSyntax(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		secs := rapid.IntRange(0, 100000).Draw(rt, "secs")
		t.Setenv("AUTH_SAFETY_WINDOW", strconv.Itoa(secs))
		if got := parseDurationOrDefault("AUTH_SAFETY_WINDOW", time.Minute); got != time.Duration(secs)*time.Second {
			rt.Fatalf("bare seconds %d parsed as %v", secs, got)
		}
		goSyntax := (time.Duration(secs) * time.Second).String()
		t.Setenv("AUTH_SAFETY_WINDOW", goSyntax)
		if got := parseDurationOrDefault("AUTH_SAFETY_WINDOW", time.Minute); got != time.Duration(secs)*time.Second {
			rt.Fatalf("%q parsed as %v", goSyntax, got)
		}
	})
	t.Setenv("AUTH_SAFETY_WINDOW", "soon")
	require.Equal(t, time.Minute, parseDurationOrDefault("AUTH_SAFETY_WINDOW", time.Minute))
}

func TestValidate_SafetyWindowMustBePositive(t *testing.T) {
	t.Parallel()
	for _, window := range []time.Duration{-time.Second, 0} {
		cfg := Config{
			AuthStatePath:  "/tmp/user.json",
			SafetyWindow:   window,
			NotesAPIRPS:    1,
			NotesAPIBurst:  1,
			BrowserTimeout: time.Second,
		}
		err := cfg.Validate()
		require.Error(t, err, "window %v", window)
		require.Contains(t, err.Error(), "AUTH_SAFETY_WINDOW must be positive")
	}
}

func TestLoad_ZeroSafetyWindowIsRejected(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("AUTH_SAFETY_WINDOW", "0")
	_, err := Load(t.TempDir())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Contains(t, err.Error(), "AUTH_SAFETY_WINDOW")
}
