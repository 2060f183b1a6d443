package testutil

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/kuitang/notes-e2e/internal/config"
	"github.com/kuitang/notes-e2e/internal/notesapi"
	"github.com/kuitang/notes-e2e/internal/obs"
	"github.com/kuitang/notes-e2e/internal/session"
)

// Suite is the live environment shared by e2e tests: configuration and a
// session manager over the persisted storage state. UI recovery is not wired
// here; tests that need a fresh login run under tests/browser.
type Suite struct {
	Config  *config.Config
	Manager *session.Manager
}

var (
	suiteMu     sync.Mutex
	suiteShared *Suite
)

// Setup returns the shared suite, skipping the test when the storage state is
// missing or no session can be prepared from it.
func Setup(t *testing.T, root string) *Suite {
	t.Helper()

	suiteMu.Lock()
	defer suiteMu.Unlock()

	if suiteShared == nil {
		cfg, err := config.Load(root)
		if err != nil {
			t.Fatalf("Failed to load config: %v", err)
		}
		suiteShared = &Suite{
			Config: cfg,
			Manager: session.NewManager(session.Options{
				Store:        session.NewStore(cfg.AuthStatePath),
				Refresher:    &session.Refresher{AuthURL: cfg.AuthURL, APIKey: cfg.AnonKey, Timeout: cfg.BrowserTimeout},
				SafetyWindow: cfg.SafetyWindow,
				FunctionsURL: cfg.FunctionsURL,
				APIKey:       cfg.AnonKey,
			}),
		}
	}

	ctx, cancel := context.WithTimeout(Context(t), 30*time.Second)
	defer cancel()
	if _, err := suiteShared.Manager.Ensure(ctx, session.EnsureOptions{}); err != nil {
		if errors.Is(err, session.ErrStoreNotFound) {
			t.Skipf("No storage state at %s; run `authstate setup` first", suiteShared.Config.AuthStatePath)
		}
		t.Skipf("Session unavailable: %v", err)
	}
	return suiteShared
}

// Context returns a background context carrying the test's correlation data.
func Context(t *testing.T) context.Context {
	return obs.WithCorrelation(context.Background(), obs.Correlation{TestName: t.Name()})
}

// NotesClient returns an authenticated notes client closed at test cleanup.
func (s *Suite) NotesClient(t *testing.T) *notesapi.Client {
	t.Helper()

	client, err := notesapi.NewWithManager(Context(t), s.Manager)
	if err != nil {
		t.Fatalf("Failed to create notes client: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

// Limiter paces seeding calls per the configured notes API rate.
func (s *Suite) Limiter() *rate.Limiter {
	return notesapi.NewLimiter(s.Config.NotesAPIRPS, s.Config.NotesAPIBurst)
}
