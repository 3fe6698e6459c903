package web

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/erazemk/catalog/internal/authz"
	"github.com/erazemk/catalog/internal/identity"
	"github.com/erazemk/catalog/internal/obs"
	"github.com/erazemk/catalog/internal/session"
	"github.com/erazemk/catalog/internal/store"
)

// handlerFunc is a page handler that receives the request's session. Session
// changes are only persisted through render and redirect, so a handler that
// returns an error leaves the session as it was.
type handlerFunc func(w http.ResponseWriter, r *http.Request, sess *session.Session) error

// httpError is an error with a user-facing message and status.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string { return e.message }

func badRequest(msg string) error { return &httpError{status: http.StatusBadRequest, message: msg} }

var errNotFound = &httpError{status: http.StatusNotFound, message: "Not found"}

// handle loads the session and maps handler errors to error pages.
func (s *Server) handle(h handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.Sessions.Load(r)
		if err != nil {
			slog.Error("failed to load session", "error", err)
			s.renderError(w, r, nil, http.StatusInternalServerError, "Something went wrong. Please try again.")
			return
		}
		if err := h(w, r, sess); err != nil {
			s.handleError(w, r, sess, err)
		}
	})
}

// protect runs the CSRF check before h. On failure h does not run.
func (s *Server) protect(h handlerFunc) handlerFunc {
	return func(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
		if err := s.parseForm(r); err != nil {
			return err
		}
		if err := s.Sessions.VerifyCSRF(r.Context(), sess, r); err != nil {
			return err
		}
		return h(w, r, sess)
	}
}

func (s *Server) parseForm(r *http.Request) error {
	var err error
	if ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); ct == "multipart/form-data" {
		err = r.ParseMultipartForm(s.MaxBodyBytes)
	} else {
		err = r.ParseForm()
	}
	if err == nil {
		return nil
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &httpError{status: http.StatusRequestEntityTooLarge, message: "The upload is too large."}
	}
	return badRequest("The form could not be read.")
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) {
	var he *httpError
	switch {
	case errors.Is(err, session.ErrCSRF):
		obs.CSRFRejections.Inc()
		slog.Warn("csrf check failed", "method", r.Method, "path", r.URL.Path)
		s.renderError(w, r, sess, http.StatusForbidden, "Your form has expired. Please reload the page and try again.")
	case errors.Is(err, authz.ErrUnauthenticated):
		s.renderError(w, r, sess, http.StatusForbidden, "Unfortunately you need to be logged in to make changes.")
	case errors.Is(err, authz.ErrForbidden):
		slog.Warn("ownership check failed", "path", r.URL.Path, "user", sess.Identity.UserID)
		s.renderError(w, r, sess, http.StatusForbidden, "Unfortunately this item was not created by you.")
	case errors.Is(err, identity.ErrInvalidToken):
		s.renderError(w, r, sess, http.StatusUnauthorized, "Login failed.")
	case errors.Is(err, store.ErrNotFound):
		s.renderError(w, r, sess, errNotFound.status, errNotFound.message)
	case errors.As(err, &he):
		s.renderError(w, r, sess, he.status, he.message)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		s.renderError(w, r, sess, http.StatusInternalServerError, "Something went wrong. Please try again.")
	}
}

// renderError writes an error page, or a JSON error for JSON clients. The
// session is not committed.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, sess *session.Session, status int, msg string) {
	if wantsJSON(r) {
		jsonError(w, status, msg)
		return
	}

	data := &PageData{Title: http.StatusText(status), Error: msg, ClientID: s.ClientID}
	if sess != nil {
		data.User = sess.Identity
	}
	body, err := s.templates.Execute("error.html", data)
	if err != nil {
		slog.Error("failed to render error page", "error", err)
		http.Error(w, msg, status)
		return
	}
	writeHTML(w, status, body)
}

// page returns the base data for a page and moves queued flashes into it.
func (s *Server) page(sess *session.Session, title string) PageData {
	return PageData{
		Title:    title,
		User:     sess.Identity,
		Flashes:  sess.PopFlashes(),
		ClientID: s.ClientID,
	}
}

// formPage is page plus a CSRF token for the form on it.
func (s *Server) formPage(sess *session.Session, title string) (PageData, error) {
	p := s.page(sess, title)
	token, err := sess.IssueCSRFToken()
	if err != nil {
		return p, err
	}
	p.CSRFToken = token
	return p, nil
}

// render executes a page template, commits the session and writes the page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, sess *session.Session, status int, name string, data any) error {
	body, err := s.templates.Execute(name, data)
	if err != nil {
		return err
	}
	if err := s.Sessions.Commit(r.Context(), w, sess); err != nil {
		return err
	}
	writeHTML(w, status, body)
	return nil
}

// redirect commits the session and redirects to url.
func (s *Server) redirect(w http.ResponseWriter, r *http.Request, sess *session.Session, url string) error {
	if err := s.Sessions.Commit(r.Context(), w, sess); err != nil {
		return err
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
	return nil
}

func writeHTML(w http.ResponseWriter, status int, body *bytes.Buffer) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := body.WriteTo(w); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// pathID parses a numeric path value.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id < 0 {
		return 0, errNotFound
	}
	return id, nil
}

func itemURL(categoryID, itemID int64) string {
	return fmt.Sprintf("/categories/%d/items/%d", categoryID, itemID)
}

func categoryURL(categoryID int64) string {
	return fmt.Sprintf("/categories/%d/items", categoryID)
}
