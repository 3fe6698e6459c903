package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/erazemk/catalog/internal/db"
	"github.com/erazemk/catalog/internal/identity"
	"github.com/erazemk/catalog/internal/model"
	"github.com/erazemk/catalog/internal/obs"
	"github.com/erazemk/catalog/internal/session"
	"github.com/erazemk/catalog/internal/store"
)

// login handles GET /login, the redirect target of Login with Amazon. The
// access token is verified, the user is looked up or created, and the
// session is given a new id.
func (s *Server) login(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	profile, err := s.Verifier.Verify(r.Context(), r.URL.Query().Get("access_token"))
	if errors.Is(err, identity.ErrInvalidToken) {
		obs.Logins.WithLabelValues("rejected").Inc()
		slog.Warn("login rejected", "error", err)
		return err
	}
	if err != nil {
		obs.Logins.WithLabelValues("error").Inc()
		slog.Error("login provider unavailable", "error", err)
		return &httpError{status: http.StatusBadGateway, message: "Login is unavailable right now. Please try again later."}
	}

	var user *model.User
	err = s.DB.WithTx(r.Context(), func(ctx context.Context, q db.Querier) error {
		var err error
		user, err = store.GetUserByEmail(ctx, q, profile.Email)
		if err != nil || user != nil {
			return err
		}
		name := profile.Name
		if name == "" {
			name = profile.Email
		}
		user, err = store.CreateUser(ctx, q, name, profile.Email, model.AvatarURL(profile.Email))
		if err != nil {
			return err
		}
		if user == nil {
			// A concurrent first login created it.
			user, err = store.GetUserByEmail(ctx, q, profile.Email)
			if err == nil && user == nil {
				err = fmt.Errorf("user %s vanished after insert conflict", profile.Email)
			}
			return err
		}
		slog.Info("user created", "user", user.ID, "email", user.Email)
		return nil
	})
	if err != nil {
		obs.Logins.WithLabelValues("error").Inc()
		return err
	}

	sess.Renew()
	sess.SetIdentity(&session.Identity{UserID: user.ID, Name: user.Name, Picture: user.Picture})
	sess.AddFlash("You were successfully logged in")

	obs.Logins.WithLabelValues("success").Inc()
	slog.Info("user logged in", "user", user.ID)
	return s.redirect(w, r, sess, safeNext(r.URL.Query().Get("next")))
}

// logout handles GET /logout. It always succeeds.
func (s *Server) logout(w http.ResponseWriter, r *http.Request, sess *session.Session) error {
	if sess.Identity != nil {
		slog.Info("user logged out", "user", sess.Identity.UserID)
	}
	sess.Clear()
	sess.Renew()
	sess.AddFlash("You have been logged out")
	return s.redirect(w, r, sess, safeNext(r.URL.Query().Get("next")))
}
