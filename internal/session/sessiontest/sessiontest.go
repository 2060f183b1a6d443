// Package sessiontest builds signed tokens and storage state fixtures for
// tests of the session package and its callers.
package sessiontest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	jose "github.com/go-jose/go-jose/v3"
	"github.com/go-jose/go-jose/v3/jwt"

	"github.com/kuitang/notes-e2e/internal/session"
)

// ProjectRef is the Supabase project ref used in fixture cookie names.
const ProjectRef = "testproject"

// AuthCookieName is the canonical auth cookie name for ProjectRef.
const AuthCookieName = "sb-" + ProjectRef + "-auth-token"

var signingKey = []byte("0123456789abcdef0123456789abcdef") // 32 bytes for HS256

// supabaseClaims mirrors the claims GoTrue puts in access tokens.
type supabaseClaims struct {
	jwt.Claims
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
}

// MintAccessToken returns an HS256 JWT with the given issuer and expiry.
// An empty issuer omits the iss claim.
func MintAccessToken(t testing.TB, issuer string, expiresAt time.Time) string {
	t.Helper()

	opts := jose.SignerOptions{}
	opts.WithType("JWT")
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.HS256, Key: signingKey}, &opts)
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}
	claims := supabaseClaims{
		Claims: jwt.Claims{
			Issuer:   issuer,
			Subject:  "00000000-0000-0000-0000-000000000001",
			Expiry:   jwt.NewNumericDate(expiresAt),
			IssuedAt: jwt.NewNumericDate(expiresAt.Add(-time.Hour)),
		},
		Role:  "authenticated",
		Email: "persistent-test-user@example.com",
	}
	token, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	if err != nil {
		t.Fatalf("sign access token: %v", err)
	}
	return token
}

// NewSession returns a session whose access token is issued by issuer and
// expires at expiresAt.
func NewSession(t testing.TB, issuer string, expiresAt time.Time, refreshToken string) *session.Session {
	t.Helper()
	return &session.Session{
		AccessToken:  MintAccessToken(t, issuer, expiresAt),
		RefreshToken: refreshToken,
		ExpiresAt:    session.Int64(expiresAt.Unix()),
		TokenType:    "bearer",
	}
}

// AuthCookie renders sess as a storage state cookie named name.
func AuthCookie(t testing.TB, name string, sess *session.Session) map[string]any {
	t.Helper()
	value, err := session.EncodeSession(sess)
	if err != nil {
		t.Fatalf("encode session: %v", err)
	}
	cookie := map[string]any{
		"name":     name,
		"value":    value,
		"domain":   "localhost",
		"path":     "/",
		"expires":  -1,
		"httpOnly": false,
		"secure":   false,
		"sameSite": "Lax",
	}
	if sess.ExpiresAt != nil {
		cookie["expires"] = *sess.ExpiresAt
	}
	return cookie
}

// PlainCookie returns an unrelated cookie entry.
func PlainCookie(name, value string) map[string]any {
	return map[string]any{
		"name":     name,
		"value":    value,
		"domain":   "localhost",
		"path":     "/",
		"expires":  -1,
		"httpOnly": true,
		"secure":   false,
		"sameSite": "Strict",
	}
}

// WriteState writes a storage state file holding cookies and one origin entry.
func WriteState(t testing.TB, path string, cookies ...map[string]any) {
	t.Helper()
	if cookies == nil {
		cookies = []map[string]any{}
	}
	state := map[string]any{
		"cookies": cookies,
		"origins": []any{
			map[string]any{
				"origin": "http://localhost:5173",
				"localStorage": []any{
					map[string]any{"name": "theme", "value": "dark"},
				},
			},
		},
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		t.Fatalf("marshal state: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create state dir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write state: %v", err)
	}
}

// WriteSessionState writes a storage state whose only auth cookie holds sess.
func WriteSessionState(t testing.TB, path string, sess *session.Session) {
	t.Helper()
	WriteState(t, path,
		PlainCookie("theme", "dark"),
		AuthCookie(t, AuthCookieName, sess),
	)
}
