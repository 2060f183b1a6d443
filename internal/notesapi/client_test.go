package notesapi_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/kuitang/notes-e2e/internal/notesapi"
	"github.com/kuitang/notes-e2e/internal/session"
	"github.com/kuitang/notes-e2e/internal/session/sessiontest"
)

// =============================================================================
// Fake notes Edge Functions
// =============================================================================

type fakeNotesServer struct {
	*httptest.Server

	mu       sync.Mutex
	notes    map[string]notesapi.Note
	order    []string
	nextID   int
	validTok string

	unauthorized atomic.Int32
}

func newFakeNotesServer(t *testing.T, validToken string) *fakeNotesServer {
	t.Helper()
	f := &fakeNotesServer{notes: map[string]notesapi.Note{}, validTok: validToken}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /functions/v1/create-note", f.createNote)
	mux.HandleFunc("GET /functions/v1/get-notes", f.getNotes)
	mux.HandleFunc("POST /functions/v1/delete-note", f.deleteNote)
	f.Server = httptest.NewServer(f.authorize(mux))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeNotesServer) functionsURL() string {
	return f.URL + "/functions/v1"
}

func (f *fakeNotesServer) setValidToken(tok string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.validTok = tok
}

func (f *fakeNotesServer) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		valid := f.validTok
		f.mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer "+valid {
			f.unauthorized.Add(1)
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid JWT"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeNotesServer) createNote(w http.ResponseWriter, r *http.Request) {
	var payload notesapi.CreateNotePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	id := payload.ID
	if id == "" {
		id = "note-" + strconv.Itoa(f.nextID)
	}
	tags := payload.Tags
	if tags == nil {
		tags = []string{}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	n := notesapi.Note{ID: id, UserID: "user-1", Title: payload.Title, Description: payload.Description, Tags: tags, CreatedAt: now, UpdatedAt: now}
	f.notes[id] = n
	f.order = append(f.order, id)
	writeJSON(w, http.StatusOK, map[string]any{"note": n})
}

func (f *fakeNotesServer) getNotes(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := r.URL.Query()
	if id := q.Get("id"); id != "" {
		n, ok := f.notes[id]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Note not found"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"note": n})
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	out := []notesapi.Note{}
	for _, id := range f.order {
		n, ok := f.notes[id]
		if !ok {
			continue
		}
		if title := q.Get("title"); title != "" && !strings.Contains(n.Title, title) {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": out})
}

func (f *fakeNotesServer) deleteNote(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.notes[body.ID]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Note not found"})
		return
	}
	delete(f.notes, body.ID)
	writeJSON(w, http.StatusOK, map[string]string{"id": body.ID})
}

func (f *fakeNotesServer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notes)
}

// staticFactory builds request contexts for fixed tokens: stale on the first
// call, fresh once a refresh is forced.
type staticFactory struct {
	functionsURL string
	stale, fresh string
	calls        atomic.Int32
	forced       atomic.Int32
}

func (f *staticFactory) build(_ context.Context, opts session.EnsureOptions) (*session.RequestContext, error) {
	f.calls.Add(1)
	tok := f.stale
	if opts.ForceRefresh {
		f.forced.Add(1)
		tok = f.fresh
	}
	return session.NewRequestContext(&session.Session{AccessToken: tok, TokenType: "bearer"}, f.functionsURL, "anon-key")
}

func newClient(t *testing.T, srv *fakeNotesServer) (*notesapi.Client, *staticFactory) {
	t.Helper()
	factory := &staticFactory{functionsURL: srv.functionsURL(), stale: "valid.access.token", fresh: "valid.access.token"}
	c, err := notesapi.New(context.Background(), factory.build)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c, factory
}

// =============================================================================
// Client behavior
// =============================================================================

func TestClient_CreateGetDelete(t *testing.T) {
	t.Parallel()
	srv := newFakeNotesServer(t, "valid.access.token")
	c, _ := newClient(t, srv)
	ctx := context.Background()

	created, err := c.CreateNote(ctx, notesapi.CreateNotePayload{Title: "API note", Description: "<p>API body</p>"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, created.Status)
	require.NotEmpty(t, created.Data.Note.ID)

	fetched, err := c.GetNotes(ctx, notesapi.GetNotesQuery{ID: created.Data.Note.ID})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, fetched.Status)
	require.Len(t, fetched.Data.Notes, 1, "single-note bodies are normalized to a list")
	require.Equal(t, "API note", fetched.Data.Notes[0].Title)

	deleted, err := c.DeleteNote(ctx, created.Data.Note.ID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, deleted.Status)
	require.Equal(t, created.Data.Note.ID, deleted.Data.ID)

	missing, err := c.GetNotes(ctx, notesapi.GetNotesQuery{ID: created.Data.Note.ID})
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, missing.Status)
	require.Empty(t, missing.Data.Notes)
	require.Equal(t, "Note not found", missing.Data.Error)
}

var listRun atomic.Int32

func testClient_ListRespectsLimit(t *rapid.T, c *notesapi.Client) {
	// Unique per run: shrinking replays draws against the same server.
	prefix := fmt.Sprintf("[run-%d]", listRun.Add(1))
	total := rapid.IntRange(0, 6).Draw(t, "total")
	limit := rapid.IntRange(1, 8).Draw(t, "limit")
	ctx := context.Background()

	for i := 0; i < total; i++ {
		if _, err := c.CreateNote(ctx, notesapi.CreateNotePayload{Title: fmt.Sprintf("%s %d", prefix, i)}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	got, err := c.GetNotes(ctx, notesapi.GetNotesQuery{Title: prefix, Limit: limit})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want := min(total, limit)
	if len(got.Data.Notes) != want {
		t.Fatalf("expected %d notes (total=%d limit=%d), got %d", want, total, limit, len(got.Data.Notes))
	}
	for _, n := range got.Data.Notes {
		if !strings.HasPrefix(n.Title, prefix) {
			t.Fatalf("title %q does not match filter %q", n.Title, prefix)
		}
	}
}

func TestClient_ListRespectsLimit(t *testing.T) {
	t.Parallel()
	srv := newFakeNotesServer(t, "valid.access.token")
	c, _ := newClient(t, srv)
	rapid.Check(t, func(rt *rapid.T) { testClient_ListRespectsLimit(rt, c) })
}

func TestClient_RetriesOnceAfter401(t *testing.T) {
	t.Parallel()
	srv := newFakeNotesServer(t, "fresh.access.token")
	factory := &staticFactory{functionsURL: srv.functionsURL(), stale: "stale.access.token", fresh: "fresh.access.token"}
	c, err := notesapi.New(context.Background(), factory.build)
	require.NoError(t, err)
	defer c.Close()

	created, err := c.CreateNote(context.Background(), notesapi.CreateNotePayload{Title: "after refresh"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, created.Status)
	require.Equal(t, int32(1), factory.forced.Load())
	require.Equal(t, int32(1), srv.unauthorized.Load())

	// The refreshed context is kept for later calls.
	_, err = c.GetNotes(context.Background(), notesapi.GetNotesQuery{})
	require.NoError(t, err)
	require.Equal(t, int32(2), factory.calls.Load())
}

func TestClient_SecondUnauthorizedIsReturned(t *testing.T) {
	t.Parallel()
	srv := newFakeNotesServer(t, "never.matches.token")
	factory := &staticFactory{functionsURL: srv.functionsURL(), stale: "stale.access.token", fresh: "still.wrong.token"}
	c, err := notesapi.New(context.Background(), factory.build)
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.DeleteNote(context.Background(), "note-1")
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.Status)
	require.Equal(t, int32(1), factory.forced.Load(), "exactly one retry")
	require.Equal(t, int32(2), srv.unauthorized.Load())
}

func TestClient_NonJSONResponse(t *testing.T) {
	t.Parallel()
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "<html>"+strings.Repeat("gateway ", 100)+"</html>")
	}))
	defer gateway.Close()

	factory := &staticFactory{functionsURL: gateway.URL + "/functions/v1", stale: "valid.access.token"}
	c, err := notesapi.New(context.Background(), factory.build)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.GetNotes(context.Background(), notesapi.GetNotesQuery{})
	require.ErrorIs(t, err, notesapi.ErrNonJSONResponse)
	require.Contains(t, err.Error(), "status 502")
	require.Contains(t, err.Error(), "<html>gateway")
	require.Less(t, len(err.Error()), 400)
}

func TestClient_ClosedClient(t *testing.T) {
	t.Parallel()
	srv := newFakeNotesServer(t, "valid.access.token")
	c, _ := newClient(t, srv)
	c.Close()
	_, err := c.GetNotes(context.Background(), notesapi.GetNotesQuery{})
	require.Error(t, err)
}

func TestGetNotesQuery_Values(t *testing.T) {
	t.Parallel()
	require.Empty(t, notesapi.GetNotesQuery{}.Values())
	require.Equal(t, "id=n1&limit=3&title=a+b", notesapi.GetNotesQuery{ID: "n1", Title: "a b", Limit: 3}.Values().Encode())
}

// =============================================================================
// Manager-backed client
// =============================================================================

func TestNewWithManager_RefreshesOnUnauthorized(t *testing.T) {
	t.Parallel()
	now := time.Now()

	var authCalls atomic.Int32
	auth := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCalls.Add(1)
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token":  "rotated.access.token",
			"refresh_token": "r2",
			"expires_in":    3600,
			"token_type":    "bearer",
		})
	}))
	defer auth.Close()

	notes := newFakeNotesServer(t, "rotated.access.token")
	path := filepath.Join(t.TempDir(), "user.json")
	sessiontest.WriteSessionState(t, path, sessiontest.NewSession(t, auth.URL+"/auth/v1", now.Add(time.Hour), "r1"))

	m := session.NewManager(session.Options{
		Store:        session.NewStore(path),
		Refresher:    &session.Refresher{},
		FunctionsURL: notes.functionsURL(),
	})
	c, err := notesapi.NewWithManager(context.Background(), m)
	require.NoError(t, err)
	defer c.Close()

	created, err := c.CreateNote(context.Background(), notesapi.CreateNotePayload{Title: "managed"})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, created.Status)
	require.Equal(t, int32(1), authCalls.Load())

	persisted, err := session.NewStore(path).LoadSession(context.Background())
	require.NoError(t, err)
	require.Equal(t, "rotated.access.token", persisted.AccessToken)
}
