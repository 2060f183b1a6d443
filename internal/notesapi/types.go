package notesapi

import (
	"net/url"
	"strconv"
)

// Note is a note as returned by the Edge Functions API.
type Note struct {
	ID          string   `json:"id"`
	UserID      string   `json:"user_id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// CreateNotePayload is the body of POST create-note. Every field is optional.
type CreateNotePayload struct {
	ID          string   `json:"id,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// GetNotesQuery holds the query parameters of GET get-notes.
type GetNotesQuery struct {
	ID    string
	Title string
	Limit int
}

// Values encodes the query. Zero fields are omitted.
func (q GetNotesQuery) Values() url.Values {
	v := url.Values{}
	if q.ID != "" {
		v.Set("id", q.ID)
	}
	if q.Title != "" {
		v.Set("title", q.Title)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// Response is a parsed API response. Non-2xx statuses are returned, not
// turned into errors, so tests can assert on them.
type Response[T any] struct {
	Status int
	Data   T
}

// NoteData is the body of a create-note response.
type NoteData struct {
	Note  Note   `json:"note"`
	Error string `json:"error,omitempty"`
}

// NotesData is the normalized body of a get-notes response.
type NotesData struct {
	Notes []Note `json:"notes"`
	Error string `json:"error,omitempty"`
}

// DeletedData is the body of a delete-note response.
type DeletedData struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}
