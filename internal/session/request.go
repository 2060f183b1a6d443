package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/kuitang/notes-e2e/internal/urlutil"
)

// RequestContext is an HTTP client bound to the Edge Functions base URL and
// the session's bearer token. It is not shared between concurrent callers:
// build a new one instead.
type RequestContext struct {
	BaseURL string
	// Header mirrors the headers every request carries, for inspection.
	Header http.Header
	Client *http.Client

	transport *http.Transport
}

// NewRequestContext builds a client for sess. functionsURL overrides the
// issuer-derived base; apiKey is sent as the apikey header when set.
func NewRequestContext(sess *Session, functionsURL, apiKey string) (*RequestContext, error) {
	if sess == nil || sess.AccessToken == "" {
		return nil, ErrMissingAccessToken
	}
	base, err := FunctionsBaseURL(sess, functionsURL)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Content-Type", "application/json")
	if apiKey != "" {
		header.Set("apikey", apiKey)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	client := &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(sess.OAuth2Token()),
			Base:   &headerTransport{header: header, base: transport},
		},
	}

	visible := header.Clone()
	visible.Set("Authorization", "Bearer "+sess.AccessToken)
	return &RequestContext{
		BaseURL:   base,
		Header:    visible,
		Client:    client,
		transport: transport,
	}, nil
}

// FunctionsBaseURL resolves the Edge Functions base: the override when set,
// otherwise derived from the access token issuer.
func FunctionsBaseURL(sess *Session, override string) (string, error) {
	if override != "" {
		return urlutil.WithTrailingSlash(override), nil
	}
	iss, err := Issuer(sess)
	if err != nil {
		return "", fmt.Errorf("derive functions URL: %w", err)
	}
	return urlutil.FunctionsBaseFromIssuer(iss), nil
}

// Do sends a request to endpoint (relative to BaseURL). A non-nil body is
// JSON-encoded.
func (rc *RequestContext) Do(ctx context.Context, method, endpoint string, query url.Values, body any) (*http.Response, error) {
	target := rc.BaseURL + strings.TrimPrefix(endpoint, "/")
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", endpoint, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	return rc.Client.Do(req)
}

// Close releases pooled connections.
func (rc *RequestContext) Close() {
	if rc.transport != nil {
		rc.transport.CloseIdleConnections()
	}
}

// headerTransport adds fixed headers the request does not already set.
type headerTransport struct {
	header http.Header
	base   http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for key, values := range t.header {
		if clone.Header.Get(key) != "" {
			continue
		}
		for _, v := range values {
			clone.Header.Add(key, v)
		}
	}
	return t.base.RoundTrip(clone)
}
