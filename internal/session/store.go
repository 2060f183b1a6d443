package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/tidwall/sjson"
)

// authCookiePattern matches the single-chunk Supabase auth cookie
// sb-<project-ref>-auth-token. Chunked cookies (".0", ".1") do not match.
var authCookiePattern = regexp.MustCompile(`^sb-[^-.]+-auth-token$`)

// IsAuthCookieName reports whether name is the canonical auth cookie name.
func IsAuthCookieName(name string) bool {
	return authCookiePattern.MatchString(name)
}

// StorageState is a Playwright storage state document. Cookies and origins stay raw
// so a rewrite only touches the auth record.
type StorageState struct {
	Cookies []json.RawMessage `json:"cookies"`
	Origins json.RawMessage   `json:"origins,omitempty"`
}

// Cookie is the subset of a storage state cookie the store reads.
type Cookie struct {
	Name     string   `json:"name"`
	Value    string   `json:"value"`
	Domain   string   `json:"domain,omitempty"`
	Path     string   `json:"path,omitempty"`
	Expires  *float64 `json:"expires,omitempty"`
	HTTPOnly bool     `json:"httpOnly,omitempty"`
	Secure   bool     `json:"secure,omitempty"`
	SameSite string   `json:"sameSite,omitempty"`
}

// AuthRecord is the located auth cookie and its position in StorageState.Cookies.
type AuthRecord struct {
	Index  int
	Cookie Cookie
}

// Store is a handle on one storage state file. Writes are atomic for
// readers; concurrent writers are not isolated (last rename wins).
type Store struct {
	Path string
}

// NewStore returns a store for the given path.
func NewStore(path string) *Store {
	return &Store{Path: path}
}

// Read loads and parses the storage state. Cookie contents are not validated.
func (s *Store) Read(ctx context.Context) (*StorageState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, s.Path)
		}
		return nil, fmt.Errorf("read storage state %s: %w", s.Path, err)
	}
	var state StorageState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("parse storage state %s: %w", s.Path, err)
	}
	return &state, nil
}

// Write replaces the storage state via a temp sibling file and rename.
func (s *Store) Write(ctx context.Context, state *StorageState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if state.Cookies == nil {
		state.Cookies = []json.RawMessage{}
	}
	// Raw entries must come back out byte for byte, so no HTML escaping.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(state); err != nil {
		return fmt.Errorf("marshal storage state: %w", err)
	}
	data := buf.Bytes()

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create storage state dir: %w", err)
	}
	tmpPath := filepath.Join(dir, fmt.Sprintf(".%s.%d.%d.tmp", filepath.Base(s.Path), os.Getpid(), time.Now().UnixNano()))

	if err := writeFileSync(tmpPath, data); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.Path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace storage state: %w", err)
	}
	return nil
}

func writeFileSync(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create temp storage state: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write temp storage state: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp storage state: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp storage state: %w", err)
	}
	return nil
}

// FindAuthRecord returns the single cookie matching the auth cookie pattern.
func FindAuthRecord(state *StorageState) (*AuthRecord, error) {
	var (
		found *AuthRecord
		names []string
	)
	for i, raw := range state.Cookies {
		var c Cookie
		if err := json.Unmarshal(raw, &c); err != nil {
			// Entries the store does not understand are left alone.
			continue
		}
		if !IsAuthCookieName(c.Name) {
			continue
		}
		names = append(names, c.Name)
		if found == nil {
			found = &AuthRecord{Index: i, Cookie: c}
		}
	}
	switch len(names) {
	case 0:
		return nil, ErrAuthRecordNotFound
	case 1:
		return found, nil
	default:
		return nil, &AmbiguousAuthRecordError{Count: len(names), Names: names}
	}
}

// ParseSession decodes the session held in an auth record.
func ParseSession(record *AuthRecord) (*Session, error) {
	sess, err := DecodeSession(record.Cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("decode cookie %s: %w", record.Cookie.Name, err)
	}
	if err := sess.Validate(); err != nil {
		return nil, fmt.Errorf("cookie %s: %w", record.Cookie.Name, err)
	}
	return sess, nil
}

// LoadSession reads the store and returns the session of its auth record.
func (s *Store) LoadSession(ctx context.Context) (*Session, error) {
	state, err := s.Read(ctx)
	if err != nil {
		return nil, err
	}
	record, err := FindAuthRecord(state)
	if err != nil {
		return nil, err
	}
	return ParseSession(record)
}

// PersistSession re-reads the store, rewrites the auth record's value (and
// expires when the session has an expiry) in place and writes the store back.
func (s *Store) PersistSession(ctx context.Context, sess *Session) error {
	state, err := s.Read(ctx)
	if err != nil {
		return err
	}
	record, err := FindAuthRecord(state)
	if err != nil {
		return err
	}
	value, err := EncodeSession(sess)
	if err != nil {
		return err
	}

	patched, err := sjson.SetBytes(state.Cookies[record.Index], "value", value)
	if err != nil {
		return fmt.Errorf("encode auth cookie value: %w", err)
	}
	if sess.ExpiresAt != nil {
		if patched, err = sjson.SetBytes(patched, "expires", *sess.ExpiresAt); err != nil {
			return fmt.Errorf("encode auth cookie expiry: %w", err)
		}
	}
	state.Cookies[record.Index] = patched

	return s.Write(ctx, state)
}
