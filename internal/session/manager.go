package session

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/erazemk/catalog/internal/db"
	"github.com/erazemk/catalog/internal/model"
	"github.com/erazemk/catalog/internal/store"
)

// ErrCSRF is returned when a mutating request carries no valid CSRF token.
var ErrCSRF = errors.New("csrf token missing or invalid")

const (
	// CSRFFormField is the form field carrying the CSRF token.
	CSRFFormField = "_csrf_token"
	// CSRFHeader is the header alternative to CSRFFormField.
	CSRFHeader = "X-CSRF-Token"

	defaultCookieName = "catalog_session"
	defaultMaxAge     = 14 * 24 * time.Hour
)

// Options configures a Manager.
type Options struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

// Manager loads and commits sessions.
type Manager struct {
	db     *db.DB
	secret []byte
	opts   Options
}

// NewManager creates a Manager that signs cookies with secret.
func NewManager(database *db.DB, secret string, opts Options) *Manager {
	if opts.CookieName == "" {
		opts.CookieName = defaultCookieName
	}
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultMaxAge
	}
	return &Manager{db: database, secret: []byte(secret), opts: opts}
}

// Load returns the session of the request. A missing, invalid or expired
// cookie yields a new anonymous session.
func (m *Manager) Load(r *http.Request) (*Session, error) {
	c, err := r.Cookie(m.opts.CookieName)
	if err != nil {
		return newSession(), nil
	}

	id, err := parseCookie(m.secret, c.Value)
	if err != nil {
		slog.Debug("ignoring session cookie", "error", err)
		return newSession(), nil
	}

	data, err := store.GetSession(r.Context(), m.db, hashID(id))
	if err != nil {
		return nil, fmt.Errorf("loading session: %w", err)
	}
	if data == nil {
		return newSession(), nil
	}

	s := &Session{
		id:        id,
		idHash:    data.IDHash,
		csrfToken: data.CSRFToken,
		flashes:   data.Flashes,
		createdAt: data.CreatedAt,
	}
	if data.UserID != 0 {
		s.Identity = &Identity{UserID: data.UserID, Name: data.Name, Picture: data.Picture}
	}
	return s, nil
}

// Commit persists the session and sets its cookie. The CSRF token is only
// written if it was issued or cleared since Load, so a concurrent request
// cannot bring back a consumed token. A loaded session whose row was deleted
// in the meantime is not written back: no cookie is set and s becomes a new
// anonymous session.
func (m *Manager) Commit(ctx context.Context, w http.ResponseWriter, s *Session) error {
	if s.isNew && s.empty() {
		return nil
	}

	expires := time.Now().UTC().Add(m.opts.MaxAge)
	data := &model.SessionData{
		IDHash:    s.idHash,
		Flashes:   s.flashes,
		CreatedAt: s.createdAt,
		ExpiresAt: expires,
	}
	if s.Identity != nil {
		data.UserID = s.Identity.UserID
		data.Name = s.Identity.Name
		data.Picture = s.Identity.Picture
	}

	gone := false
	err := m.db.WithTx(ctx, func(ctx context.Context, q db.Querier) error {
		if s.isNew || s.oldIDHash != "" {
			if s.oldIDHash != "" {
				if err := store.DeleteSession(ctx, q, s.oldIDHash); err != nil {
					return err
				}
			}
			if err := store.CreateSession(ctx, q, data); err != nil {
				return err
			}
		} else {
			ok, err := store.UpdateSession(ctx, q, data)
			if err != nil {
				return err
			}
			if !ok {
				gone = true
				return nil
			}
		}
		if s.csrfChanged {
			return store.SetSessionCSRFToken(ctx, q, s.idHash, s.csrfToken)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("committing session: %w", err)
	}
	if gone {
		// Logged out or renewed by another request since Load.
		slog.Debug("session ended while request was in flight")
		*s = *newSession()
		return nil
	}

	value, err := signCookie(m.secret, s.id, expires)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.opts.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(m.opts.MaxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	s.isNew = false
	s.oldIDHash = ""
	s.csrfChanged = false
	return nil
}

// VerifyCSRF consumes the session's pending CSRF token and compares it with
// the one submitted in the request. The stored token is gone afterwards
// whatever the outcome, so a token can succeed at most once.
func (m *Manager) VerifyCSRF(ctx context.Context, s *Session, r *http.Request) error {
	submitted := r.Header.Get(CSRFHeader)
	if submitted == "" {
		submitted = r.PostFormValue(CSRFFormField)
	}

	s.csrfToken = ""
	s.csrfChanged = false
	if s.isNew {
		return ErrCSRF
	}

	stored, ok, err := store.TakeSessionCSRFToken(ctx, m.db, s.idHash)
	if err != nil {
		return fmt.Errorf("taking csrf token: %w", err)
	}
	if !ok || submitted == "" {
		return ErrCSRF
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) != 1 {
		return ErrCSRF
	}
	return nil
}
