package session

import (
	"fmt"

	"github.com/kuitang/notes-e2e/internal/errs"
)

// Session errors. Callers match them with errors.Is; errs.CodeOf yields
// the category.
var (
	ErrStoreNotFound         = errs.New(errs.NotFound, "storage state not found")
	ErrAuthRecordNotFound    = errs.New(errs.NotFound, "supabase auth cookie not found in storage state")
	ErrAmbiguousAuthRecord   = errs.New(errs.FailedPrecondition, "more than one supabase auth cookie in storage state")
	ErrMissingAccessToken    = errs.New(errs.InvalidArgument, "access_token not found in auth cookie")
	ErrMalformedInput        = errs.New(errs.InvalidArgument, "malformed base64url input")
	ErrInvalidToken          = errs.New(errs.InvalidArgument, "invalid JWT")
	ErrMissingIssuer         = errs.New(errs.InvalidArgument, "issuer (iss) not found in access token")
	ErrMissingRefreshToken   = errs.New(errs.FailedPrecondition, "refresh_token not found in session")
	ErrRefreshRejected       = errs.New(errs.Unauthenticated, "token refresh rejected")
	ErrRecoveryStillExpiring = errs.New(errs.FailedPrecondition, "session regenerated by UI login is still within the safety window")
	ErrUILoginTimeout        = errs.New(errs.Unavailable, "timed out waiting for post-login UI")
)

// maxDiagnosticBody bounds the response text carried by RefreshRejectedError.
const maxDiagnosticBody = 500

// RefreshRejectedError is returned when the auth provider answers a refresh
// with a non-success status.
type RefreshRejectedError struct {
	Status int
	Body   string
}

func (e *RefreshRejectedError) Error() string {
	return fmt.Sprintf("token refresh rejected: status %d: %s", e.Status, e.Body)
}

func (e *RefreshRejectedError) Unwrap() error {
	return ErrRefreshRejected
}

// AmbiguousAuthRecordError reports how many cookies matched the auth cookie pattern.
type AmbiguousAuthRecordError struct {
	Count int
	Names []string
}

func (e *AmbiguousAuthRecordError) Error() string {
	return fmt.Sprintf("expected exactly one supabase auth cookie, found %d: %v", e.Count, e.Names)
}

func (e *AmbiguousAuthRecordError) Unwrap() error {
	return ErrAmbiguousAuthRecord
}
