// Package notesapi is a typed client for the notes Edge Functions, used to
// seed and clean up data around browser tests.
package notesapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/kuitang/notes-e2e/internal/errs"
	"github.com/kuitang/notes-e2e/internal/logutil"
	"github.com/kuitang/notes-e2e/internal/obs"
	"github.com/kuitang/notes-e2e/internal/session"
)

const (
	endpointCreateNote = "create-note"
	endpointGetNotes   = "get-notes"
	endpointDeleteNote = "delete-note"

	maxResponseBytes = 4 << 20
	maxErrorPreview  = 200
)

// ErrNonJSONResponse is returned when a response body is not JSON.
var ErrNonJSONResponse = errs.New(errs.Internal, "expected JSON response")

// ContextFactory builds an authenticated request context. The client calls
// it with ForceRefresh after a 401.
type ContextFactory func(ctx context.Context, opts session.EnsureOptions) (*session.RequestContext, error)

// Client calls the notes API with the managed session. Safe for sequential
// use from one test; concurrent calls serialize on the request context.
type Client struct {
	mu       sync.Mutex
	rc       *session.RequestContext
	recreate ContextFactory
	log      *slog.Logger
}

// New builds a client whose first request context comes from factory.
func New(ctx context.Context, factory ContextFactory) (*Client, error) {
	rc, err := factory(ctx, session.EnsureOptions{})
	if err != nil {
		return nil, fmt.Errorf("create request context: %w", err)
	}
	return &Client{rc: rc, recreate: factory, log: obs.Pkg("notesapi")}, nil
}

// NewWithManager builds a client backed by a session manager.
func NewWithManager(ctx context.Context, m *session.Manager) (*Client, error) {
	return New(ctx, m.NewRequestContext)
}

// CreateNote calls POST create-note.
func (c *Client) CreateNote(ctx context.Context, payload CreateNotePayload) (*Response[NoteData], error) {
	resp, err := c.do(ctx, http.MethodPost, endpointCreateNote, nil, payload)
	if err != nil {
		return nil, err
	}
	return parse[NoteData](resp)
}

// GetNotes calls GET get-notes. A single-note body ({"note": ...}) is
// normalized to {"notes": [...]}.
func (c *Client) GetNotes(ctx context.Context, query GetNotesQuery) (*Response[NotesData], error) {
	resp, err := c.do(ctx, http.MethodGet, endpointGetNotes, query.Values(), nil)
	if err != nil {
		return nil, err
	}
	raw, err := parse[map[string]json.RawMessage](resp)
	if err != nil {
		return nil, err
	}
	out := &Response[NotesData]{Status: raw.Status}
	if err := normalizeNotes(raw.Data, &out.Data); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", endpointGetNotes, err)
	}
	return out, nil
}

func normalizeNotes(fields map[string]json.RawMessage, out *NotesData) error {
	if msg, ok := fields["error"]; ok {
		_ = json.Unmarshal(msg, &out.Error)
	}
	if list, ok := fields["notes"]; ok {
		return json.Unmarshal(list, &out.Notes)
	}
	if single, ok := fields["note"]; ok {
		var n Note
		if err := json.Unmarshal(single, &n); err != nil {
			return err
		}
		out.Notes = []Note{n}
		return nil
	}
	out.Notes = []Note{}
	return nil
}

// DeleteNote calls POST delete-note.
func (c *Client) DeleteNote(ctx context.Context, id string) (*Response[DeletedData], error) {
	resp, err := c.do(ctx, http.MethodPost, endpointDeleteNote, nil, map[string]string{"id": id})
	if err != nil {
		return nil, err
	}
	return parse[DeletedData](resp)
}

// Close releases the current request context.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rc != nil {
		c.rc.Close()
		c.rc = nil
	}
}

// do sends one request. On 401 it replaces the request context with one
// built after a forced refresh and retries once; a second 401 is returned
// as is.
func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body any) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rc == nil {
		return nil, errs.New(errs.FailedPrecondition, "notes client is closed")
	}

	resp, err := c.rc.Do(ctx, method, endpoint, query, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	drain(resp)
	c.log.WarnContext(ctx, "request unauthorized, retrying with refreshed session", "endpoint", endpoint)
	c.rc.Close()
	c.rc = nil
	rc, err := c.recreate(ctx, session.EnsureOptions{ForceRefresh: true})
	if err != nil {
		return nil, fmt.Errorf("recreate request context after 401: %w", err)
	}
	c.rc = rc

	resp, err = c.rc.Do(ctx, method, endpoint, query, body)
	if err != nil {
		return nil, fmt.Errorf("%s %s (retry): %w", method, endpoint, err)
	}
	return resp, nil
}

func parse[T any](resp *http.Response) (*Response[T], error) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	out := &Response[T]{Status: resp.StatusCode}
	if err := json.Unmarshal(raw, &out.Data); err != nil {
		return nil, fmt.Errorf("%w but got status %d: %s", ErrNonJSONResponse, resp.StatusCode, logutil.Truncate(string(raw), maxErrorPreview))
	}
	return out, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
	resp.Body.Close()
}
