package web

import (
	"net/http"

	"github.com/erazemk/catalog/internal/blob"
	"github.com/erazemk/catalog/internal/db"
	"github.com/erazemk/catalog/internal/identity"
	"github.com/erazemk/catalog/internal/imaging"
	"github.com/erazemk/catalog/internal/obs"
	"github.com/erazemk/catalog/internal/session"
	webembed "github.com/erazemk/catalog/web"
)

// Deps are the collaborators of the web handlers.
type Deps struct {
	DB       *db.DB
	Sessions *session.Manager
	Verifier identity.Verifier
	Blobs    blob.Store
	Images   *imaging.Processor

	// ClientID is the Login with Amazon client ID used by the login button.
	ClientID     string
	LatestItems  int
	MaxBodyBytes int64
	LoginRate    float64
	LoginBurst   int
}

// Server holds all dependencies for page handlers.
type Server struct {
	Deps
	templates *Templates
}

// NewRouter creates the application handler with all routes registered.
func NewRouter(d Deps) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}
	if d.LatestItems <= 0 {
		d.LatestItems = 5
	}
	if d.MaxBodyBytes <= 0 {
		d.MaxBodyBytes = 10 << 20
	}

	s := &Server{Deps: d, templates: templates}
	loginLimit := newIPRateLimiter(d.LoginRate, d.LoginBurst)

	mux := http.NewServeMux()

	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))
	mux.Handle("GET /metrics", obs.Handler())

	mux.Handle("GET /{$}", s.handle(s.home))
	mux.Handle("GET /categories/{category_id}/items", s.handle(s.categoryItems))
	mux.Handle("GET /categories/{category_id}/items/{item_id}", s.handle(s.itemDetail))

	mux.Handle("GET /items/{item_id}/edit", s.handle(s.itemEditForm))
	mux.Handle("POST /items/{item_id}/edit", s.handle(s.protect(s.itemEditSubmit)))
	mux.Handle("GET /items/{item_id}/delete", s.handle(s.itemDeleteForm))
	mux.Handle("POST /items/{item_id}/delete", s.handle(s.protect(s.itemDeleteSubmit)))
	mux.Handle("GET /items/{item_id}/image", s.handle(s.itemImage))
	mux.Handle("POST /items/{item_id}/image", s.handle(s.protect(s.itemImageSubmit)))

	mux.Handle("GET /login", loginLimit.Middleware(s.handle(s.login)))
	mux.Handle("GET /logout", s.handle(s.logout))

	var h http.Handler = obs.Instrument(mux)
	h = limitBody(d.MaxBodyBytes, h)
	h = securityHeaders(h)
	return h, nil
}
