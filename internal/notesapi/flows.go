package notesapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kuitang/notes-e2e/internal/obs"
)

const defaultTagPrefix = "tag"

// CreateNotesOptions configures a bulk seeding run.
type CreateNotesOptions struct {
	Count       int
	TitlePrefix string
	BodyPrefix  string
	// TagsPerNote adds that many unique tags to each note.
	TagsPerNote int
	// TagPrefix defaults to "tag".
	TagPrefix string
	// Limiter paces create calls. Nil means unpaced.
	Limiter *rate.Limiter
}

// CreatedNote is what a seeding run sent for one note.
type CreatedNote struct {
	ID          string
	Title       string
	Description string
	Tags        []string
}

// CreatedNotes is the outcome of CreateNotes, in creation order.
type CreatedNotes struct {
	RunID  string
	IDs    []string
	Titles []string
	Notes  []CreatedNote
}

// NewLimiter returns a limiter for rps requests per second. rps <= 0 disables pacing.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// NewRunID returns an identifier that keeps titles and tags of one run unique
// across parallel workers.
func NewRunID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
}

// CreateNotes creates opts.Count notes titled "<TitlePrefix> <runID>-<i>"
// with "<p><BodyPrefix> <runID>-<i></p>" descriptions. Any status other than
// 200 aborts the run.
func CreateNotes(ctx context.Context, c *Client, opts CreateNotesOptions) (*CreatedNotes, error) {
	tagPrefix := opts.TagPrefix
	if tagPrefix == "" {
		tagPrefix = defaultTagPrefix
	}
	runID := NewRunID()
	out := &CreatedNotes{RunID: runID}
	log := obs.From(ctx).With("pkg", "notesapi", "seed_run", runID)

	for i := 1; i <= opts.Count; i++ {
		if opts.Limiter != nil {
			if err := opts.Limiter.Wait(ctx); err != nil {
				return out, fmt.Errorf("pace create note %d: %w", i, err)
			}
		}

		title := fmt.Sprintf("%s %s-%d", opts.TitlePrefix, runID, i)
		description := fmt.Sprintf("<p>%s %s-%d</p>", opts.BodyPrefix, runID, i)
		tags := make([]string, 0, opts.TagsPerNote)
		for j := 1; j <= opts.TagsPerNote; j++ {
			tags = append(tags, fmt.Sprintf("%s-%s-%d-%d", tagPrefix, runID, i, j))
		}

		created, err := c.CreateNote(ctx, CreateNotePayload{Title: title, Description: description, Tags: tags})
		if err != nil {
			return out, fmt.Errorf("create note %d: %w", i, err)
		}
		if created.Status != http.StatusOK {
			return out, fmt.Errorf("failed to create note %d: expected 200, got %d", i, created.Status)
		}

		out.IDs = append(out.IDs, created.Data.Note.ID)
		out.Titles = append(out.Titles, title)
		out.Notes = append(out.Notes, CreatedNote{
			ID:          created.Data.Note.ID,
			Title:       title,
			Description: description,
			Tags:        tags,
		})
	}
	log.InfoContext(ctx, "seeded notes", "count", len(out.IDs))
	return out, nil
}

// DeleteNotesBestEffort deletes ids and reports how many succeeded. Failures
// are logged and skipped so cleanup never fails a test.
func DeleteNotesBestEffort(ctx context.Context, c *Client, ids []string) int {
	log := obs.From(ctx).With("pkg", "notesapi")
	deleted := 0
	for _, id := range ids {
		resp, err := c.DeleteNote(ctx, id)
		switch {
		case err != nil:
			log.WarnContext(ctx, "cleanup delete failed", "note_id", id, "error", err)
		case resp.Status != http.StatusOK:
			log.WarnContext(ctx, "cleanup delete rejected", "note_id", id, "status", resp.Status, "message", resp.Data.Error)
		default:
			deleted++
		}
	}
	return deleted
}
