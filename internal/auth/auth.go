// Package auth defines the credential-verification contract the session
// engine depends on, a file-backed implementation for local deployments, and
// the HMAC session tokens used by the HTTP admin API.
//
// The directory backend proper (LDAP bind and search) lives outside this
// repository; anything satisfying Authenticator can be plugged in.
package auth

import (
	"context"
	"errors"
)

var (
	// ErrInvalidCredentials means the username exists but the password is
	// wrong. Counted by the login rate limiter.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound means the directory has no such user. Counted the
	// same as a bad password so the limiter cannot be probed for usernames.
	ErrUserNotFound = errors.New("user not found")

	// ErrUnavailable means the directory service could not be reached.
	// Never counted against the client.
	ErrUnavailable = errors.New("directory service unavailable")
)

// Authenticator verifies a username/password pair and returns the canonical
// identity to bind to the session. The canonical form may differ from the
// submitted string (case, formatting); callers must use the returned value.
// Implementations may block on network I/O and must honor ctx.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
}
