package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kuitang/notes-e2e/internal/config"
	"github.com/kuitang/notes-e2e/internal/session"
	"github.com/kuitang/notes-e2e/internal/session/sessiontest"
)

var testNow = time.Unix(1700000000, 0)

func TestInspect_NeverPrintsTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.json")
	sess := sessiontest.NewSession(t, "https://testproject.supabase.co/auth/v1", testNow.Add(90*time.Minute), "secret-refresh-token")
	sessiontest.WriteSessionState(t, path, sess)

	var out bytes.Buffer
	err := runInspect(context.Background(), &out, session.NewStore(path), 5*time.Minute, session.NewFakeClock(testNow))
	require.NoError(t, err)

	text := out.String()
	require.Contains(t, text, "https://testproject.supabase.co/auth/v1")
	require.Contains(t, text, "ttl:           1h30m0s")
	require.Contains(t, text, "needs refresh: false")
	require.Contains(t, text, "refreshable:   true")
	require.NotContains(t, text, sess.AccessToken)
	require.NotContains(t, text, "secret-refresh-token")
}

func TestInspect_MissingStore(t *testing.T) {
	err := runInspect(context.Background(), &bytes.Buffer{}, session.NewStore(filepath.Join(t.TempDir(), "none.json")), time.Minute, session.SystemClock)
	require.ErrorIs(t, err, session.ErrStoreNotFound)
}

func TestEnsure_RefreshesAndReportsJSON(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"n.a.t","refresh_token":"r2","expires_in":3600}`))
	}))
	defer auth.Close()

	path := filepath.Join(t.TempDir(), "user.json")
	sessiontest.WriteSessionState(t, path, sessiontest.NewSession(t, auth.URL+"/auth/v1", testNow.Add(time.Minute), "r1"))

	cfg := &config.Config{
		AuthStatePath:  path,
		SafetyWindow:   config.DefaultSafetyWindow,
		BrowserTimeout: time.Second,
	}
	var out bytes.Buffer
	err := runEnsure(context.Background(), &out, newManager(cfg, session.NewFakeClock(testNow)), false, true)
	require.NoError(t, err)

	var report ensureReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	require.Equal(t, "ready", report.State)
	require.True(t, report.Refreshed)
	require.Equal(t, []string{"fresh", "expiring_soon", "refreshing", "ready"}, report.Path)
	require.Equal(t, time.Unix(testNow.Unix()+3600, 0).UTC().Format(time.RFC3339), report.ExpiresAt)
}

func TestEnsure_FailureWithoutBaseURL(t *testing.T) {
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	}))
	defer auth.Close()

	path := filepath.Join(t.TempDir(), "user.json")
	sessiontest.WriteSessionState(t, path, sessiontest.NewSession(t, auth.URL+"/auth/v1", testNow, "revoked"))

	cfg := &config.Config{AuthStatePath: path, SafetyWindow: config.DefaultSafetyWindow, BrowserTimeout: time.Second}
	var out bytes.Buffer
	err := runEnsure(context.Background(), &out, newManager(cfg, session.NewFakeClock(testNow)), false, false)
	require.ErrorIs(t, err, session.ErrRefreshRejected)
	require.Contains(t, out.String(), "state:      failed")
	require.Contains(t, out.String(), "status 400")
}

func TestRootCmd_Inspect(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "playwright", ".auth", "user.json")
	sessiontest.WriteSessionState(t, path, sessiontest.NewSession(t, "https://testproject.supabase.co/auth/v1", time.Now().Add(time.Hour), "r1"))

	for _, key := range []string{"BASE_URL", "SUPABASE_FUNCTIONS_URL", "SUPABASE_AUTH_URL", "AUTH_SAFETY_WINDOW", "NOTES_API_RPS", "NOTES_API_BURST", "BROWSER_TIMEOUT"} {
		t.Setenv(key, "")
	}
	t.Setenv("AUTH_STATE_PATH", path)

	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"inspect", "--root", root})
	require.NoError(t, cmd.Execute())
	require.True(t, strings.Contains(out.String(), "storage state: "+path), out.String())
}

func TestRootCmd_SetupRequiresBaseURL(t *testing.T) {
	root := t.TempDir()
	t.Setenv("BASE_URL", "")
	t.Setenv("AUTH_STATE_PATH", filepath.Join(root, "user.json"))

	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"setup", "--root", root})
	err := cmd.Execute()

	var verr *config.ValidationError
	require.ErrorAs(t, err, &verr)
}
