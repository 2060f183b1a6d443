// Package browserauth logs in through the application UI and snapshots the
// resulting browser storage state. It is the interactive fallback used when a
// stored session cannot be refreshed.
package browserauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kuitang/notes-e2e/internal/obs"
	"github.com/kuitang/notes-e2e/internal/pages"
	"github.com/kuitang/notes-e2e/internal/session"
	"github.com/kuitang/notes-e2e/internal/urlutil"
)

// DefaultTimeout bounds each UI step of a login.
const DefaultTimeout = 15 * time.Second

// LoginWithPersistentTestUser opens the landing page and signs in with the
// persistent test user, then waits until the notes UI is usable.
func LoginWithPersistentTestUser(ctx context.Context, page playwright.Page, baseURL string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ms := playwright.Float(float64(timeout.Milliseconds()))

	if _, err := page.Goto(urlutil.BuildAbsolute(baseURL, "/"), playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   ms,
	}); err != nil {
		return fmt.Errorf("open landing page: %w", classify(err))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	landing := pages.NewLandingView(page)
	if err := landing.TestLoginButton.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: ms,
	}); err != nil {
		return fmt.Errorf("wait for %q: %w", pages.TestLoginButtonName, classify(err))
	}
	if err := landing.TestLoginButton.Click(playwright.LocatorClickOptions{Timeout: ms}); err != nil {
		return fmt.Errorf("click %q: %w", pages.TestLoginButtonName, classify(err))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	return WaitForSignedIn(page, timeout)
}

// WaitForSignedIn waits for the New Note button, which only renders for a
// signed-in user. Timing out yields session.ErrUILoginTimeout.
func WaitForSignedIn(page playwright.Page, timeout time.Duration) error {
	panel := pages.NewLeftPanel(page)
	err := panel.NewNoteButton.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return fmt.Errorf("wait for %q after login: %w", pages.NewNoteButtonName, classify(err))
	}
	return nil
}

// classify maps Playwright timeouts to session.ErrUILoginTimeout.
func classify(err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %v", session.ErrUILoginTimeout, err)
	}
	return err
}

// Regenerator performs a fresh UI login in a throwaway browser and writes the
// storage state to StatePath. It implements session.ReAuthenticator.
type Regenerator struct {
	StatePath string
	Headless  bool
	// Timeout bounds each UI step. Zero means DefaultTimeout.
	Timeout time.Duration
}

var _ session.ReAuthenticator = (*Regenerator)(nil)

// ReAuthenticate logs in against baseURL and replaces the storage state file.
func (r *Regenerator) ReAuthenticate(ctx context.Context, baseURL string) (err error) {
	if baseURL == "" {
		return errors.New("base URL is required for UI login")
	}
	if r.StatePath == "" {
		return errors.New("storage state path is required for UI login")
	}
	log := obs.From(ctx).With("pkg", "browserauth")
	start := time.Now()

	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}
	defer func() {
		if stopErr := pw.Stop(); stopErr != nil && err == nil {
			err = fmt.Errorf("stop playwright: %w", stopErr)
		}
	}()

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(r.Headless),
	})
	if err != nil {
		return fmt.Errorf("launch chromium: %w", err)
	}
	defer browser.Close()

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		BaseURL: playwright.String(baseURL),
	})
	if err != nil {
		return fmt.Errorf("create browser context: %w", err)
	}
	defer bctx.Close()

	page, err := bctx.NewPage()
	if err != nil {
		return fmt.Errorf("create page: %w", err)
	}

	if err := LoginWithPersistentTestUser(ctx, page, baseURL, r.Timeout); err != nil {
		log.ErrorContext(ctx, "UI login failed", "base_url", baseURL, "url", page.URL(), "error", err)
		return err
	}

	snapshot, err := bctx.StorageState()
	if err != nil {
		return fmt.Errorf("snapshot storage state: %w", err)
	}
	if err := WriteStorageState(ctx, session.NewStore(r.StatePath), snapshot); err != nil {
		return err
	}
	log.InfoContext(ctx, "storage state regenerated", "path", r.StatePath, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// WriteStorageState stores a browser snapshot through store, replacing the
// file atomically.
func WriteStorageState(ctx context.Context, store *session.Store, snapshot *playwright.StorageState) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("encode storage state: %w", err)
	}
	var state session.StorageState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("decode storage state: %w", err)
	}
	if err := store.Write(ctx, &state); err != nil {
		return fmt.Errorf("save storage state: %w", err)
	}
	return nil
}
