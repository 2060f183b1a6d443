package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kuitang/notes-e2e/internal/logutil"
	"github.com/kuitang/notes-e2e/internal/obs"
	"github.com/kuitang/notes-e2e/internal/urlutil"
)

const maxTokenResponseBytes = 1 << 20

// TokenRefresher exchanges a session's refresh token for a new session.
type TokenRefresher interface {
	Refresh(ctx context.Context, sess *Session) (*Session, error)
}

// Refresher calls the Supabase auth token endpoint with grant_type=refresh_token.
type Refresher struct {
	// AuthURL overrides the issuer-derived auth base (".../auth/v1/").
	AuthURL string
	// APIKey is sent as the apikey header when set.
	APIKey string
	// Transport backs the per-call client. Nil clones http.DefaultTransport.
	Transport http.RoundTripper
	// Timeout bounds one exchange. Zero leaves it to the transport.
	Timeout time.Duration
	Clock   Clock
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    *int64 `json:"expires_at"`
	ExpiresIn    *int64 `json:"expires_in"`
}

// Refresh exchanges sess.RefreshToken for a new session. sess is not modified.
func (r *Refresher) Refresh(ctx context.Context, sess *Session) (*Session, error) {
	if sess.RefreshToken == "" {
		return nil, ErrMissingRefreshToken
	}
	authBase, err := r.authBase(sess)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]string{"refresh_token": sess.RefreshToken})
	if err != nil {
		return nil, fmt.Errorf("marshal refresh request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, authBase+"token?grant_type=refresh_token", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.APIKey != "" {
		req.Header.Set("apikey", r.APIKey)
	}

	client := r.newClient()
	defer client.CloseIdleConnections()

	log := obs.From(ctx).With("pkg", "session")
	log.DebugContext(ctx, "refreshing session", "url", req.URL.String(), "headers", logutil.Headers(req.Header))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("refresh request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read refresh response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rejected := &RefreshRejectedError{
			Status: resp.StatusCode,
			Body:   logutil.Snippet(raw, maxDiagnosticBody),
		}
		log.WarnContext(ctx, "refresh rejected", "status", rejected.Status, "body", rejected.Body)
		return nil, rejected
	}

	next, err := mergeTokenResponse(sess, raw, clockOrSystem(r.Clock).Now())
	if err != nil {
		return nil, err
	}
	log.InfoContext(ctx, "session refreshed", "expires_at", expiresAttr(next), "rotated_refresh_token", next.RefreshToken != sess.RefreshToken)
	return next, nil
}

func (r *Refresher) authBase(sess *Session) (string, error) {
	if r.AuthURL != "" {
		return urlutil.WithTrailingSlash(r.AuthURL), nil
	}
	iss, err := Issuer(sess)
	if err != nil {
		return "", fmt.Errorf("derive auth URL: %w", err)
	}
	return urlutil.AuthBaseFromIssuer(iss), nil
}

// newClient returns a client owned by one exchange; callers release it with
// CloseIdleConnections.
func (r *Refresher) newClient() *http.Client {
	transport := r.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	return &http.Client{Transport: transport, Timeout: r.Timeout}
}

// mergeTokenResponse builds the next session from a success body. Fields the
// provider omitted keep the previous session's values.
func mergeTokenResponse(prev *Session, raw []byte, now time.Time) (*Session, error) {
	var tok tokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("parse refresh response: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("refresh response: %w", ErrMissingAccessToken)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("parse refresh response: %w", err)
	}

	next := prev.clone()
	for key, value := range fields {
		switch key {
		case keyAccessToken, keyRefreshToken, keyExpiresAt, keyTokenType:
		default:
			if next.extra == nil {
				next.extra = make(map[string]json.RawMessage)
			}
			next.extra[key] = value
		}
	}

	next.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		next.RefreshToken = tok.RefreshToken
	}
	if tok.TokenType != "" {
		next.TokenType = tok.TokenType
	}
	switch {
	case tok.ExpiresAt != nil:
		next.ExpiresAt = Int64(*tok.ExpiresAt)
	case tok.ExpiresIn != nil:
		next.ExpiresAt = Int64(now.Unix() + *tok.ExpiresIn)
	}
	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("refresh response: %w", err)
	}
	return next, nil
}

func expiresAttr(s *Session) any {
	if s.ExpiresAt == nil {
		return "never"
	}
	return time.Unix(*s.ExpiresAt, 0).UTC().Format(time.RFC3339)
}
