package logutil

import (
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestIsSensitiveField(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"Authorization", "apikey", "refresh_token", "access-token", "Set-Cookie", "client_secret"} {
		require.True(t, IsSensitiveField(key), key)
	}
	for _, key := range []string{"Content-Type", "expires_at", "title", "id"} {
		require.False(t, IsSensitiveField(key), key)
	}
}

func TestHeaders_MasksCredentials(t *testing.T) {
	t.Parallel()
	h := http.Header{}
	h.Set("Authorization", "Bearer abc.def.ghi")
	h.Set("apikey", "anon-key")
	h.Set("Content-Type", "application/json")

	got := Headers(h)
	require.NotContains(t, got, "abc.def.ghi")
	require.NotContains(t, got, "anon-key")
	require.Contains(t, got, `content-type="application/json"`)
	require.Equal(t, "{}", Headers(nil))
}

func TestRedactJSON_Nested(t *testing.T) {
	t.Parallel()
	got := RedactJSON([]byte(`{"error":"invalid_grant","data":{"refresh_token":"r1","items":[{"access_token":"a1"}]}}`))
	require.NotContains(t, got, "r1")
	require.NotContains(t, got, "a1")
	require.Contains(t, got, "invalid_grant")
	require.Equal(t, "plain text", RedactJSON([]byte("plain text")))
}

func TestTruncate_NeverExceedsLimit(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		value := rapid.String().Draw(t, "value")
		limit := rapid.IntRange(1, 64).Draw(t, "limit")
		got := Truncate(value, limit)
		kept := strings.TrimSuffix(got, "... [truncated]")
		if len([]rune(kept)) > limit {
			t.Fatalf("kept %d runes, limit %d", len([]rune(kept)), limit)
		}
		if len([]rune(value)) <= limit && got != value {
			t.Fatalf("short value changed: %q -> %q", value, got)
		}
	})
}
