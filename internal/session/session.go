// Package session manages the Supabase session persisted in the Playwright
// storage state file: decoding the auth cookie, refreshing tokens against the
// auth provider, and falling back to an interactive UI login.
package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Core JSON keys of a Supabase session. Every other key is carried through
// untouched.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyExpiresAt    = "expires_at"
	keyTokenType    = "token_type"
)

// Session is the decoded Supabase session stored in the auth cookie.
// A session is replaced wholesale on refresh, never patched in place.
type Session struct {
	AccessToken string
	// RefreshToken is empty when the provider issued none; refresh is then impossible.
	RefreshToken string
	// ExpiresAt is Unix seconds. Nil means the session never expires.
	ExpiresAt *int64
	TokenType string

	// extra holds the remaining cookie JSON (user, expires_in, provider_token...).
	extra map[string]json.RawMessage
}

// Int64 returns a pointer to v.
func Int64(v int64) *int64 {
	return &v
}

// Validate enforces the header.payload.signature shape of the access token.
func (s *Session) Validate() error {
	if s == nil || s.AccessToken == "" {
		return ErrMissingAccessToken
	}
	if parts := strings.Split(s.AccessToken, "."); len(parts) != 3 {
		return fmt.Errorf("%w: access token has %d segments, want 3", ErrInvalidToken, len(parts))
	}
	return nil
}

// TTL returns the time left before expiry. ok is false for sessions without expiry.
func (s *Session) TTL(now time.Time) (ttl time.Duration, ok bool) {
	if s.ExpiresAt == nil {
		return 0, false
	}
	return time.Unix(*s.ExpiresAt, 0).Sub(now), true
}

// NeedsRefresh reports whether the session expires at or before now+window.
// Sessions without expiry never need a refresh.
func (s *Session) NeedsRefresh(now time.Time, window time.Duration) bool {
	if s.ExpiresAt == nil {
		return false
	}
	return *s.ExpiresAt <= now.Add(window).Unix()
}

// Extra returns the raw JSON of a non-core field.
func (s *Session) Extra(key string) (json.RawMessage, bool) {
	raw, ok := s.extra[key]
	return raw, ok
}

// OAuth2Token converts the session for use with golang.org/x/oauth2 transports.
func (s *Session) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		RefreshToken: s.RefreshToken,
	}
	if s.ExpiresAt != nil {
		tok.Expiry = time.Unix(*s.ExpiresAt, 0)
	}
	return tok
}

func (s *Session) clone() *Session {
	out := *s
	if s.ExpiresAt != nil {
		out.ExpiresAt = Int64(*s.ExpiresAt)
	}
	if s.extra != nil {
		out.extra = make(map[string]json.RawMessage, len(s.extra))
		for k, v := range s.extra {
			out.extra[k] = v
		}
	}
	return &out
}

// MarshalJSON emits the core fields plus every carried field.
func (s Session) MarshalJSON() ([]byte, error) {
	fields := make(map[string]any, len(s.extra)+4)
	for k, v := range s.extra {
		fields[k] = v
	}
	fields[keyAccessToken] = s.AccessToken
	fields[keyTokenType] = s.TokenType
	if s.RefreshToken != "" {
		fields[keyRefreshToken] = s.RefreshToken
	}
	if s.ExpiresAt != nil {
		fields[keyExpiresAt] = *s.ExpiresAt
	}
	return json.Marshal(fields)
}

// UnmarshalJSON splits core fields from carried ones.
func (s *Session) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	out := Session{}
	for key, raw := range fields {
		switch key {
		case keyAccessToken:
			if err := unmarshalOptional(raw, &out.AccessToken); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		case keyRefreshToken:
			if err := unmarshalOptional(raw, &out.RefreshToken); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		case keyTokenType:
			if err := unmarshalOptional(raw, &out.TokenType); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
		case keyExpiresAt:
			exp, err := decodeUnixSeconds(raw)
			if err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			out.ExpiresAt = exp
		default:
			if out.extra == nil {
				out.extra = make(map[string]json.RawMessage)
			}
			out.extra[key] = raw
		}
	}
	*s = out
	return nil
}

func unmarshalOptional(raw json.RawMessage, dst *string) error {
	if isNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// decodeUnixSeconds accepts integer or fractional seconds.
func decodeUnixSeconds(raw json.RawMessage) (*int64, error) {
	if isNull(raw) {
		return nil, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, err
	}
	if i, err := n.Int64(); err == nil {
		return Int64(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return nil, err
	}
	return Int64(int64(f)), nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
