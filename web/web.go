// Package web serves the embedded console views: the login page and the
// admin shell.
package web

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
)

//go:embed dist/*
var content embed.FS

// Pages holds the parsed embedded assets.
type Pages struct {
	login  []byte
	admin  []byte
	static http.Handler
}

// Load reads the embedded views once.
func Load() (*Pages, error) {
	fsys, err := fs.Sub(content, "dist")
	if err != nil {
		return nil, fmt.Errorf("loading embedded web assets: %w", err)
	}
	login, err := fs.ReadFile(fsys, "login.html")
	if err != nil {
		return nil, fmt.Errorf("reading embedded login.html: %w", err)
	}
	admin, err := fs.ReadFile(fsys, "admin.html")
	if err != nil {
		return nil, fmt.Errorf("reading embedded admin.html: %w", err)
	}
	return &Pages{
		login:  login,
		admin:  admin,
		static: http.FileServer(http.FS(fsys)),
	}, nil
}

// Login serves the login view.
func (p *Pages) Login(w http.ResponseWriter, r *http.Request) {
	serveHTML(w, p.login)
}

// Admin serves the admin shell for every path below /admin; the shell does
// its own client-side routing.
func (p *Pages) Admin(w http.ResponseWriter, r *http.Request) {
	serveHTML(w, p.admin)
}

// Static serves scripts and stylesheets under /static/.
func (p *Pages) Static() http.Handler {
	return p.static
}

func serveHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(body)
}
