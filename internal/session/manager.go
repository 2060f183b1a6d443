package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/oauth2"

	"github.com/kuitang/notes-e2e/internal/errs"
	"github.com/kuitang/notes-e2e/internal/obs"
)

// DefaultSafetyWindow is how close to expiry a session may get before it is refreshed.
const DefaultSafetyWindow = 300 * time.Second

// State is a step of one Manager pass.
type State int

const (
	StateFresh State = iota
	StateExpiringSoon
	StateRefreshing
	StateRecovering
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateExpiringSoon:
		return "expiring_soon"
	case StateRefreshing:
		return "refreshing"
	case StateRecovering:
		return "recovering"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ReAuthenticator regenerates the storage state through an interactive login
// against the application at baseURL.
type ReAuthenticator interface {
	ReAuthenticate(ctx context.Context, baseURL string) error
}

// ReAuthFunc adapts a function to ReAuthenticator.
type ReAuthFunc func(ctx context.Context, baseURL string) error

func (f ReAuthFunc) ReAuthenticate(ctx context.Context, baseURL string) error {
	return f(ctx, baseURL)
}

// errRefreshDidNotExtend marks a refresh whose result is still inside the
// safety window, e.g. a response carrying neither expires_at nor expires_in.
var errRefreshDidNotExtend = errs.New(errs.FailedPrecondition, "refreshed session is still within the safety window")

// Options configures a Manager.
type Options struct {
	Store           *Store
	Refresher       TokenRefresher
	ReAuthenticator ReAuthenticator
	// BaseURL is the application URL used for interactive recovery.
	BaseURL string
	// SafetyWindow defaults to DefaultSafetyWindow when zero.
	SafetyWindow time.Duration
	Clock        Clock

	// FunctionsURL overrides the issuer-derived Edge Functions base.
	FunctionsURL string
	// APIKey is sent as the apikey header on API requests.
	APIKey string
}

// Manager decides whether the persisted session is usable and refreshes or
// regenerates it when it is not. Each Ensure call is one pass; nothing runs
// in the background.
type Manager struct {
	store        *Store
	refresher    TokenRefresher
	reauth       ReAuthenticator
	baseURL      string
	safetyWindow time.Duration
	clock        Clock
	functionsURL string
	apiKey       string
	log          *slog.Logger
}

// NewManager creates a Manager.
func NewManager(opts Options) *Manager {
	window := opts.SafetyWindow
	if window == 0 {
		window = DefaultSafetyWindow
	}
	return &Manager{
		store:        opts.Store,
		refresher:    opts.Refresher,
		reauth:       opts.ReAuthenticator,
		baseURL:      opts.BaseURL,
		safetyWindow: window,
		clock:        clockOrSystem(opts.Clock),
		functionsURL: opts.FunctionsURL,
		apiKey:       opts.APIKey,
		log:          obs.Pkg("session"),
	}
}

// EnsureOptions are the per-call inputs of a pass.
type EnsureOptions struct {
	// ForceRefresh refreshes even when the session is outside the safety window.
	ForceRefresh bool
}

// Result describes a finished pass.
type Result struct {
	Session *Session
	State   State
	// Path lists every state visited, starting with StateFresh.
	Path []State
	// RefreshErr is the refresh failure that triggered recovery, if any.
	RefreshErr error
}

// Refreshed reports whether the pass replaced the session through the refresh endpoint.
func (r *Result) Refreshed() bool {
	return r.State == StateReady && r.visited(StateRefreshing) && !r.visited(StateRecovering)
}

// Recovered reports whether the pass regenerated the session through UI login.
func (r *Result) Recovered() bool {
	return r.State == StateReady && r.visited(StateRecovering)
}

func (r *Result) visited(s State) bool {
	for _, p := range r.Path {
		if p == s {
			return true
		}
	}
	return false
}

// pass carries the mutable data of one Ensure call.
type pass struct {
	ctx    context.Context
	opts   EnsureOptions
	result *Result
	err    error
}

func (p *pass) enter(s State) {
	p.result.State = s
	p.result.Path = append(p.result.Path, s)
}

// Ensure runs one pass of the state machine and returns a usable session.
// On failure the returned Result is still populated with the path taken.
func (m *Manager) Ensure(ctx context.Context, opts EnsureOptions) (*Result, error) {
	p := &pass{ctx: ctx, opts: opts, result: &Result{}}

	sess, err := m.store.LoadSession(ctx)
	if err != nil {
		p.enter(StateFailed)
		return p.result, fmt.Errorf("load session: %w", err)
	}
	p.result.Session = sess
	p.enter(StateFresh)

	for {
		var next State
		switch p.result.State {
		case StateFresh:
			next = m.fromFresh(p)
		case StateExpiringSoon:
			next = StateRefreshing
		case StateRefreshing:
			next = m.refresh(p)
		case StateRecovering:
			next = m.recover(p)
		case StateReady:
			m.log.InfoContext(ctx, "session ready", "path", pathAttr(p.result.Path), "expires_at", expiresAttr(p.result.Session))
			return p.result, nil
		case StateFailed:
			m.log.ErrorContext(ctx, "session unavailable", "path", pathAttr(p.result.Path), "error", p.err)
			return p.result, p.err
		}
		p.enter(next)
	}
}

func (m *Manager) fromFresh(p *pass) State {
	if p.result.Session.NeedsRefresh(m.clock.Now(), m.safetyWindow) {
		return StateExpiringSoon
	}
	if p.opts.ForceRefresh {
		return StateRefreshing
	}
	return StateReady
}

func (m *Manager) refresh(p *pass) State {
	next, err := m.tryRefresh(p.ctx, p.result.Session)
	if err != nil {
		m.log.WarnContext(p.ctx, "refresh failed, falling back to UI login", "error", err)
		p.result.RefreshErr = err
		return StateRecovering
	}
	p.result.Session = next
	return StateReady
}

func (m *Manager) tryRefresh(ctx context.Context, sess *Session) (*Session, error) {
	if m.refresher == nil {
		return nil, errors.New("no token refresher configured")
	}
	next, err := m.refresher.Refresh(ctx, sess)
	if err != nil {
		return nil, err
	}
	if next.NeedsRefresh(m.clock.Now(), m.safetyWindow) {
		return nil, errRefreshDidNotExtend
	}
	if err := m.store.PersistSession(ctx, next); err != nil {
		return nil, fmt.Errorf("persist refreshed session: %w", err)
	}
	return next, nil
}

func (m *Manager) recover(p *pass) State {
	if m.reauth == nil || m.baseURL == "" {
		p.err = fmt.Errorf("refresh failed and UI recovery is not configured: %w", p.result.RefreshErr)
		return StateFailed
	}
	if err := m.reauth.ReAuthenticate(p.ctx, m.baseURL); err != nil {
		p.err = fmt.Errorf("UI recovery after refresh failure (%v): %w", p.result.RefreshErr, err)
		return StateFailed
	}
	regenerated, err := m.store.LoadSession(p.ctx)
	if err != nil {
		p.err = fmt.Errorf("load regenerated session: %w", err)
		return StateFailed
	}
	if regenerated.NeedsRefresh(m.clock.Now(), m.safetyWindow) {
		p.err = ErrRecoveryStillExpiring
		return StateFailed
	}
	p.result.Session = regenerated
	return StateReady
}

// NewRequestContext runs a pass and binds the resulting session to an
// authenticated Edge Functions client. The caller must Close it.
func (m *Manager) NewRequestContext(ctx context.Context, opts EnsureOptions) (*RequestContext, error) {
	res, err := m.Ensure(ctx, opts)
	if err != nil {
		return nil, err
	}
	return NewRequestContext(res.Session, m.functionsURL, m.apiKey)
}

// TokenSource exposes the managed session as an oauth2.TokenSource. Every
// Token call runs one pass.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, m: m}
}

type managerTokenSource struct {
	ctx context.Context
	m   *Manager
}

func (ts *managerTokenSource) Token() (*oauth2.Token, error) {
	res, err := ts.m.Ensure(ts.ctx, EnsureOptions{})
	if err != nil {
		return nil, err
	}
	return res.Session.OAuth2Token(), nil
}

func pathAttr(path []State) []string {
	out := make([]string, len(path))
	for i, s := range path {
		out[i] = s.String()
	}
	return out
}
