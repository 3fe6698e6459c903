// Package session keeps per-client state on the server, keyed by a signed
// cookie, and guards mutating requests with single-use CSRF tokens.
package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// csrfTokenBytes is the amount of randomness in a CSRF token.
const csrfTokenBytes = 64

// Identity is the minimal record of the logged-in user kept in a session.
type Identity struct {
	UserID  int64
	Name    string
	Picture string
}

// Session is the state of one client. It is loaded by Manager.Load and
// persisted by Manager.Commit; changes are lost unless committed.
type Session struct {
	id     string
	idHash string

	// oldIDHash is set by Renew so Commit can drop the previous row.
	oldIDHash string

	// Identity is nil for anonymous clients.
	Identity *Identity

	csrfToken   string
	csrfChanged bool
	flashes     []string

	isNew     bool
	createdAt time.Time
}

func newSession() *Session {
	id := uuid.NewString()
	return &Session{
		id:        id,
		idHash:    hashID(id),
		isNew:     true,
		createdAt: time.Now().UTC(),
	}
}

// IsNew reports whether the session has never been committed.
func (s *Session) IsNew() bool { return s.isNew }

// CSRFToken returns the pending CSRF token, or "" if there is none.
func (s *Session) CSRFToken() string { return s.csrfToken }

// IssueCSRFToken returns the pending CSRF token, generating one if none is
// pending. The same token is returned until a POST consumes it.
func (s *Session) IssueCSRFToken() (string, error) {
	if s.csrfToken != "" {
		return s.csrfToken, nil
	}

	buf := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating csrf token: %w", err)
	}
	s.csrfToken = base64.RawURLEncoding.EncodeToString(buf)
	s.csrfChanged = true
	return s.csrfToken, nil
}

// SetIdentity records a logged-in user.
func (s *Session) SetIdentity(ident *Identity) {
	s.Identity = ident
}

// Clear removes the identity and any pending CSRF token.
func (s *Session) Clear() {
	s.Identity = nil
	if s.csrfToken != "" {
		s.csrfToken = ""
		s.csrfChanged = true
	}
}

// Renew gives the session a fresh id. The old id stops working on commit.
func (s *Session) Renew() {
	if !s.isNew && s.oldIDHash == "" {
		s.oldIDHash = s.idHash
	}
	s.id = uuid.NewString()
	s.idHash = hashID(s.id)
	// The pending token belongs to the new row now.
	if s.csrfToken != "" {
		s.csrfChanged = true
	}
}

// AddFlash queues a message for the next rendered page.
func (s *Session) AddFlash(msg string) {
	s.flashes = append(s.flashes, msg)
}

// PopFlashes returns and clears the queued messages.
func (s *Session) PopFlashes() []string {
	f := s.flashes
	s.flashes = nil
	return f
}

// empty reports whether there is nothing worth persisting.
func (s *Session) empty() bool {
	return s.Identity == nil && s.csrfToken == "" && len(s.flashes) == 0
}
