package session

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// CookiePrefix marks a base64url-encoded session in the Supabase auth cookie.
const CookiePrefix = "base64-"

// DecodeBase64URL reverses URL-safe Base64 (padding optional) and returns UTF-8 text.
func DecodeBase64URL(input string) (string, error) {
	b64 := strings.NewReplacer("-", "+", "_", "/").Replace(strings.TrimRight(input, "="))
	switch len(b64) % 4 {
	case 2:
		b64 += "=="
	case 3:
		b64 += "="
	case 1:
		return "", fmt.Errorf("%w: impossible length %d", ErrMalformedInput, len(input))
	}
	decoded, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("%w: decoded bytes are not UTF-8", ErrMalformedInput)
	}
	return string(decoded), nil
}

// EncodeBase64URL encodes text as unpadded URL-safe Base64.
func EncodeBase64URL(input string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(input))
}

// ReadJWTPayload decodes the claims segment of a JWT without verifying it.
func ReadJWTPayload(accessToken string) (map[string]any, error) {
	parts := strings.Split(accessToken, ".")
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidToken)
	}
	text, err := DecodeBase64URL(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrInvalidToken, err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object: %w", ErrMalformedInput, err)
	}
	return payload, nil
}

// Issuer returns the iss claim of the session's access token.
func Issuer(s *Session) (string, error) {
	payload, err := ReadJWTPayload(s.AccessToken)
	if err != nil {
		return "", err
	}
	iss, _ := payload["iss"].(string)
	if strings.TrimSpace(iss) == "" {
		return "", ErrMissingIssuer
	}
	return iss, nil
}

// EncodeSession renders a session as an auth cookie value.
func EncodeSession(s *Session) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}
	return CookiePrefix + EncodeBase64URL(string(data)), nil
}

// DecodeSession parses an auth cookie value. The prefix is optional.
func DecodeSession(value string) (*Session, error) {
	text, err := DecodeBase64URL(strings.TrimPrefix(value, CookiePrefix))
	if err != nil {
		return nil, err
	}
	var s Session
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return nil, fmt.Errorf("%w: cookie is not session JSON: %w", ErrMalformedInput, err)
	}
	return &s, nil
}
