package urlutil

import (
	"strings"
)

const (
	authPathSuffix = "/auth/v1"
	functionsPath  = "/functions/v1/"
)

// WithTrailingSlash normalizes base so relative endpoint names resolve under it.
func WithTrailingSlash(base string) string {
	base = normalizeBaseURL(base)
	if base == "" {
		return ""
	}
	return base + "/"
}

// AuthBaseFromIssuer returns the auth API base for a token issuer, e.g.
// "https://ref.supabase.co/auth/v1" -> "https://ref.supabase.co/auth/v1/".
func AuthBaseFromIssuer(issuer string) string {
	return WithTrailingSlash(issuer)
}

// FunctionsBaseFromIssuer returns the Edge Functions base for a token issuer, e.g.
// "https://ref.supabase.co/auth/v1" -> "https://ref.supabase.co/functions/v1/".
func FunctionsBaseFromIssuer(issuer string) string {
	base := normalizeBaseURL(issuer)
	if base == "" {
		return ""
	}
	return strings.TrimSuffix(base, authPathSuffix) + functionsPath
}

// BuildAbsolute builds an absolute URL from a base origin and a path.
func BuildAbsolute(base, path string) string {
	base = normalizeBaseURL(base)
	if path == "" {
		return base
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return base + path
	}
	return base + "/" + path
}

func normalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/")
}
