package web

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"time"

	"github.com/erazemk/catalog/internal/model"
	"github.com/erazemk/catalog/internal/session"
	webembed "github.com/erazemk/catalog/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"itemURL":     func(item model.Item) string { return itemURL(item.CategoryID, item.ID) },
		"categoryURL": categoryURL,
		"owns": func(user *session.Identity, item model.Item) bool {
			return user != nil && user.UserID == item.UserID
		},
		"date": func(t time.Time) string { return t.Local().Format("2 Jan 2006 15:04") },
	}
}

var pages = []string{
	"home.html",
	"category_items.html",
	"item_detail.html",
	"item_edit.html",
	"item_delete.html",
	"error.html",
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Execute renders a template into a buffer.
func (ts *Templates) Execute(name string, data any) (*bytes.Buffer, error) {
	tmpl, ok := ts.templates[name]
	if !ok {
		return nil, fmt.Errorf("template %s not found", name)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return nil, fmt.Errorf("rendering template %s: %w", name, err)
	}
	return &buf, nil
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title     string
	User      *session.Identity
	CSRFToken string
	Flashes   []string
	ClientID  string
	Error     string
}
