// Package browser provides shared test utilities for Playwright browser tests
// against a running notes application. Tests skip unless BASE_URL is set.
package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/notes-e2e/internal/browserauth"
	"github.com/kuitang/notes-e2e/internal/config"
	"github.com/kuitang/notes-e2e/internal/obs"
	"github.com/kuitang/notes-e2e/internal/pages"
	"github.com/kuitang/notes-e2e/internal/session"
)

const (
	// Ceiling for every wait in tests/browser. Do not add larger timeouts.
	browserMaxTimeoutMS = 15000
	browserMaxTimeout   = 15 * time.Second
)

var browserFixtureMu sync.Mutex
var browserSharedFixture *BrowserTestEnv

// BrowserTestEnv is the shared environment for browser tests: configuration,
// a session manager over the storage state, and one Chromium instance.
type BrowserTestEnv struct {
	Config  *config.Config
	BaseURL string
	Manager *session.Manager

	pw        *playwright.Playwright
	browser   playwright.Browser
	browserMu sync.Mutex
}

// SetupBrowserTestEnv returns the shared environment, skipping when the suite
// is not configured.
func SetupBrowserTestEnv(t *testing.T) *BrowserTestEnv {
	t.Helper()

	browserFixtureMu.Lock()
	defer browserFixtureMu.Unlock()

	if browserSharedFixture != nil {
		return browserSharedFixture
	}

	cfg, err := config.Load(repositoryRoot())
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.BaseURL == "" {
		t.Skip("BASE_URL not set; skipping browser tests")
	}

	browserSharedFixture = &BrowserTestEnv{
		Config:  cfg,
		BaseURL: cfg.BaseURL,
		Manager: session.NewManager(session.Options{
			Store:           session.NewStore(cfg.AuthStatePath),
			Refresher:       &session.Refresher{AuthURL: cfg.AuthURL, APIKey: cfg.AnonKey, Timeout: cfg.BrowserTimeout},
			ReAuthenticator: &browserauth.Regenerator{StatePath: cfg.AuthStatePath, Headless: cfg.Headless, Timeout: cfg.BrowserTimeout},
			BaseURL:         cfg.BaseURL,
			SafetyWindow:    cfg.SafetyWindow,
			FunctionsURL:    cfg.FunctionsURL,
			APIKey:          cfg.AnonKey,
		}),
	}
	return browserSharedFixture
}

func cleanupSharedBrowserTestEnv() {
	browserFixtureMu.Lock()
	defer browserFixtureMu.Unlock()
	if browserSharedFixture == nil {
		return
	}
	browserSharedFixture.browserMu.Lock()
	if browserSharedFixture.browser != nil {
		_ = browserSharedFixture.browser.Close()
	}
	if browserSharedFixture.pw != nil {
		_ = browserSharedFixture.pw.Stop()
	}
	browserSharedFixture.browserMu.Unlock()
	browserSharedFixture = nil
}

func TestMain(m *testing.M) {
	obs.Init()
	code := m.Run()
	cleanupSharedBrowserTestEnv()
	os.Exit(code)
}

func repositoryRoot() string {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		panic("Failed to resolve repository root for test utilities")
	}
	return filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
}

// =============================================================================
// Browser lifecycle helpers
// =============================================================================

// InitBrowser initializes Playwright and launches Chromium. Skips the test if not available.
func (env *BrowserTestEnv) InitBrowser(t *testing.T) {
	t.Helper()

	env.browserMu.Lock()
	defer env.browserMu.Unlock()

	if env.browser != nil {
		return
	}

	pw, err := playwright.Run()
	if err != nil {
		t.Skip("Playwright not available:", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(env.Config.Headless),
	})
	if err != nil {
		_ = pw.Stop()
		t.Skip("Could not launch browser:", err)
	}
	env.pw = pw
	env.browser = browser
}

// EnsureSession runs one session manager pass so the storage state is usable
// for at least the safety window.
func (env *BrowserTestEnv) EnsureSession(t *testing.T) *session.Result {
	t.Helper()

	ctx := obs.WithCorrelation(context.Background(), obs.Correlation{TestName: t.Name()})
	res, err := env.Manager.Ensure(ctx, session.EnsureOptions{})
	if errors.Is(err, session.ErrStoreNotFound) {
		t.Skip("No storage state; run `authstate setup` first")
	}
	if err != nil {
		t.Fatalf("Failed to prepare session (path %v): %v", res.Path, err)
	}
	return res
}

// NewAuthedContext creates a browser context signed in through the stored session.
func (env *BrowserTestEnv) NewAuthedContext(t *testing.T) playwright.BrowserContext {
	t.Helper()
	env.InitBrowser(t)
	env.EnsureSession(t)

	ctx, err := env.browser.NewContext(playwright.BrowserNewContextOptions{
		BaseURL:          playwright.String(env.BaseURL),
		StorageStatePath: playwright.String(env.Config.AuthStatePath),
	})
	if err != nil {
		t.Fatalf("could not create browser context: %v", err)
	}
	ctx.SetDefaultTimeout(browserMaxTimeoutMS)
	ctx.SetDefaultNavigationTimeout(browserMaxTimeoutMS)
	t.Cleanup(func() { _ = ctx.Close() })
	return ctx
}

// NewPage creates a new page in ctx.
func NewPage(t *testing.T, ctx playwright.BrowserContext) playwright.Page {
	t.Helper()

	page, err := ctx.NewPage()
	if err != nil {
		t.Fatalf("could not create page: %v", err)
	}
	return page
}

// =============================================================================
// Navigation and wait helpers
// =============================================================================

// Navigate navigates to a path on the application and waits for DOMContentLoaded.
func Navigate(t *testing.T, page playwright.Page, baseURL, path string) {
	t.Helper()

	_, err := page.Goto(baseURL+path, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(browserMaxTimeoutMS),
	})
	if err != nil {
		t.Fatalf("Failed to navigate to %s: %v", path, err)
	}
}

// WaitVisible waits for a locator to be visible, logging page state on failure.
func WaitVisible(t *testing.T, page playwright.Page, locator playwright.Locator, what string) {
	t.Helper()

	err := locator.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(browserMaxTimeoutMS),
	})
	if err != nil {
		currentURL := page.URL()
		title, _ := page.Title()
		content, _ := page.Content()
		if len(content) > 500 {
			content = content[:500] + "..."
		}
		t.Logf("Current URL: %s", currentURL)
		t.Logf("Current title: %s", title)
		t.Logf("Content preview: %s", content)
		t.Fatalf("Failed to wait for %s: %v", what, err)
	}
}

// WaitHidden waits for a locator to detach or hide.
func WaitHidden(t *testing.T, locator playwright.Locator, what string) {
	t.Helper()

	err := locator.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateHidden,
		Timeout: playwright.Float(browserMaxTimeoutMS),
	})
	if err != nil {
		t.Fatalf("%s still visible: %v", what, err)
	}
}

// TextOf returns the trimmed text content of a locator.
func TextOf(t *testing.T, locator playwright.Locator) string {
	t.Helper()

	text, err := locator.InnerText(playwright.LocatorInnerTextOptions{Timeout: playwright.Float(browserMaxTimeoutMS)})
	if err != nil {
		t.Fatalf("Failed to read text: %v", err)
	}
	return text
}

// OpenNotes navigates to the app root and waits for the signed-in notes UI.
func OpenNotes(t *testing.T, page playwright.Page, baseURL string) *pages.All {
	t.Helper()

	Navigate(t, page, baseURL, "/")
	all := pages.NewAll(page)
	WaitVisible(t, page, all.LeftPanel.NewNoteButton, "New Note button")
	return all
}
