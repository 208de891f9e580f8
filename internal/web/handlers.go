package web

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Runemoro/knit/internal/errors"
	"github.com/Runemoro/knit/internal/ops"
)

// Handlers contains HTTP route handlers for the mapping browser.
type Handlers struct {
	env      *ops.Env
	renderer *Renderer
}

// HandleList handles GET /classes, the persisted root classes.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	input := ops.ListInput{
		Pattern:      r.URL.Query().Get("pattern"),
		UnmappedOnly: parseBoolParam(r, "unmapped"),
		Limit:        parseIntParam(r, "limit", 50),
		Offset:       parseIntParam(r, "offset", 0),
	}

	result, err := ops.List(h.env, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "list", ListPageData{
		PageData: PageData{
			Title:   "Classes",
			Version: h.renderer.version,
			Nav:     "classes",
		},
		Items:        result.Items,
		Pagination:   result.Pagination,
		Pattern:      input.Pattern,
		UnmappedOnly: input.UnmappedOnly,
	})
}

// HandleDetail handles GET /classes/{name...}, one root class with its members.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if strings.TrimSpace(name) == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("class name is required"))
		return
	}

	result, err := ops.Show(h.env, ops.ShowInput{Class: name})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	unmapped, total := result.Class.Count()
	h.renderer.renderPage(w, r, "detail", DetailPageData{
		PageData: PageData{
			Title:   result.Class.Name,
			Version: h.renderer.version,
			Nav:     "classes",
		},
		Class:     result.Class,
		File:      result.File,
		Persisted: result.Persisted,
		Unmapped:  unmapped,
		Total:     total,
	})
}

// HandleRename handles POST /rename, renaming one entity from a form.
func (h *Handlers) HandleRename(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	ref := ops.RefInput{
		Kind:       r.FormValue("kind"),
		Class:      r.FormValue("class"),
		Member:     r.FormValue("member"),
		Descriptor: r.FormValue("descriptor"),
	}
	if nested := strings.TrimSpace(r.FormValue("nested")); nested != "" {
		ref.Nested = strings.Split(nested, "$")
	}
	if idx := r.FormValue("index"); idx != "" {
		i, err := strconv.Atoi(idx)
		if err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("index must be an integer"))
			return
		}
		ref.Index = i
	}

	result, err := ops.Rename(h.env, ops.RenameInput{Ref: ref, NewName: r.FormValue("new_name")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	target := classURL(rootOf(result.Current))

	// HTMX request: redirect via HX-Redirect header
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandleHistory handles GET /history, the rename journal.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	result, err := ops.History(h.env, ops.HistoryInput{
		Limit:  parseIntParam(r, "limit", 0),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "history", HistoryPageData{
		PageData: PageData{
			Title:   "History",
			Version: h.renderer.version,
			Nav:     "history",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// HandleUndo handles POST /undo, reverting the latest active rename.
func (h *Handlers) HandleUndo(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Undo(h.env)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", "/history")
		w.WriteHeader(http.StatusOK)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	http.Redirect(w, r, "/history", http.StatusSeeOther)
}

// rootOf returns the root class of a formatted ref such as a/B$C#d()V.
func rootOf(ref string) string {
	if i := strings.IndexAny(ref, "$#"); i >= 0 {
		return ref[:i]
	}
	return ref
}

// classURL returns the detail page of a root class.
func classURL(name string) string {
	return "/classes/" + (&url.URL{Path: name}).EscapedPath()
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1"
}
