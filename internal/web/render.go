package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"github.com/Runemoro/knit/internal/db"
	"github.com/Runemoro/knit/internal/errors"
	"github.com/Runemoro/knit/internal/ops"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "classes", "history"
}

// ListPageData is the template data for the class list page.
type ListPageData struct {
	PageData
	Items        []ops.ClassSummary
	Pagination   ops.Pagination
	Pattern      string
	UnmappedOnly bool
}

// DetailPageData is the template data for the class detail page.
type DetailPageData struct {
	PageData
	Class     ops.ClassView
	File      string
	Persisted bool
	Unmapped  int
	Total     int
}

// HistoryPageData is the template data for the rename history page.
type HistoryPageData struct {
	PageData
	Items      []db.Entry
	Pagination ops.Pagination
}

// classScope is a class being rendered together with the ref fields that
// address it in rename forms.
type classScope struct {
	Root   string
	Nested string // $-separated current names below Root
	Class  ops.ClassView
}

func rootScope(c ops.ClassView) classScope {
	return classScope{Root: c.Name, Class: c}
}

func childScope(parent classScope, c ops.ClassView) classScope {
	nested := c.Name
	if parent.Nested != "" {
		nested = parent.Nested + "$" + c.Name
	}
	return classScope{Root: parent.Root, Nested: nested, Class: c}
}

// renameForm holds the hidden fields of one rename form.
type renameForm struct {
	Scope      classScope
	Kind       string
	Member     string
	Descriptor string
	Index      int
	Name       string
}

func newRenameForm(scope classScope, kind, member, descriptor string, index int, name string) renameForm {
	return renameForm{Scope: scope, Kind: kind, Member: member, Descriptor: descriptor, Index: index, Name: name}
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"sub":        func(a, b int) int { return a - b },
		"formatTime": formatTime,
		"markdown":   renderComment,
		"deref":      deref,
		"mapped":     mappedPercent,
		"scope":      rootScope,
		"child":      childScope,
		"renameForm": newRenameForm,
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"list":    "list.html",
		"detail":  "detail.html",
		"history": "history.html",
		"error":   "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For HTMX requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		log.Printf("template %q not found", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if req != nil && req.Header.Get("HX-Request") == "true" {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		log.Printf("template execution error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var kErr *errors.KnitError
	if !stderrors.As(err, &kErr) {
		kErr = errors.NewInternal(err)
	}
	if kErr.Code == errors.ErrInternal {
		log.Printf("internal error: %v", kErr.Details["internal_error"])
	}

	status := kErr.Status
	message := kErr.Message

	// HTMX request: return HTML fragment
	if req.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	// JSON request
	if wantsJSON(req) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    string(kErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	// Full error page
	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderComment converts documentation lines, written as markdown, to HTML
// using goldmark. Raw HTML in comments is escaped by goldmark's defaults.
func renderComment(lines []string) template.HTML {
	md := strings.Join(lines, "\n")
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// deref dereferences a timestamp pointer, returning 0 if nil.
func deref(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

// mappedPercent formats the share of total that is not unmapped.
func mappedPercent(unmapped, total int) string {
	if total == 0 {
		return "100%"
	}
	return fmt.Sprintf("%d%%", (total-unmapped)*100/total)
}
