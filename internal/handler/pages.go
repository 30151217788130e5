// Package handler contains the HTTP request handlers of the portal.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements the http.Handler interface:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Or more commonly an http.HandlerFunc, a function with the right signature.
// Chi's router accepts these directly.
//
// HANDLER RESPONSIBILITIES:
// 1. Parse the incoming HTTP request (URL params, query, body)
// 2. Call a service
// 3. Write the HTTP response (status code, headers, body)
//
// Handlers hold no business rules; those live in internal/service.
package handler

import (
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/matrimony-portal/internal/auth"
	"github.com/sakif/matrimony-portal/internal/model"
)

// siteName prefixes every page title.
const siteName = "Matrimony"

// PageHandler renders the HTML shell of each page. The browser script reads
// data-page and fetches everything else from the JSON API.
//
// Templates are parsed once at startup and reused for every request.
type PageHandler struct {
	templates *template.Template
	logger    *slog.Logger
}

// pageData is what page.html is executed with.
type pageData struct {
	Title string
	Page  string
	Param string
	User  *model.User
}

// NewPageHandler parses base.html and page.html from fsys.
//
// TEMPLATE COMPOSITION:
// base.html defines the document with a {{template "content" .}} slot;
// page.html fills it with {{define "content"}}...{{end}}.
func NewPageHandler(fsys fs.FS, logger *slog.Logger) (*PageHandler, error) {
	tmpl, err := template.ParseFS(fsys, "templates/base.html", "templates/page.html")
	if err != nil {
		return nil, err
	}
	return &PageHandler{templates: tmpl, logger: logger}, nil
}

// Page returns a handler rendering the named page. When param is set, that
// chi URL parameter is passed through to the page (a profile id, say).
//
// On guarded routes the guard has already put the user in the context; on
// public routes User is nil.
func (h *PageHandler) Page(name, title, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := pageData{Title: siteName, Page: name}
		if title != "" {
			data.Title = title + " | " + siteName
		}
		if param != "" {
			data.Param = chi.URLParam(r, param)
		}
		if u, ok := auth.UserFromContext(r.Context()); ok {
			data.User = u
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		if err := h.templates.ExecuteTemplate(w, "base", data); err != nil {
			h.logger.Error("failed to render template",
				slog.String("page", name),
				slog.String("error", err.Error()),
			)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}
