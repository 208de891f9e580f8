package web

import (
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Runemoro/knit/internal/config"
	"github.com/Runemoro/knit/internal/db"
	"github.com/Runemoro/knit/internal/mapping"
	"github.com/Runemoro/knit/internal/ops"
	"github.com/Runemoro/knit/internal/store"
)

func setupTest(t *testing.T) *Handlers {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := db.Init(filepath.Join(tmpDir, "state"))
	if err != nil {
		t.Fatalf("db.Init: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.MappingsDir = filepath.Join(tmpDir, "mappings")

	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		t.Fatalf("template sub-FS: %v", err)
	}

	return &Handlers{
		env:      ops.NewEnv(cfg, database),
		renderer: NewRenderer(templateSub, "test"),
	}
}

// seedMapping writes a mapping file for the root class name.
func seedMapping(t *testing.T, h *Handlers, name, content string) {
	t.Helper()
	path := mapping.FilePath(h.env.Config.MappingsDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

const blockMapping = "CLASS a net/Block\n" +
	"\tJAVADOC A **placed** block.\n" +
	"\tCLASS b Settings\n" +
	"\t\tFIELD c strength F\n" +
	"\tFIELD d hardness I\n" +
	"\tMETHOD e place (La;I)V\n" +
	"\t\tARG 2 count\n"

// --- HandleList ---

func TestHandleList_Default(t *testing.T) {
	h := setupTest(t)
	seedMapping(t, h, "net/Block", blockMapping)
	seedMapping(t, h, "net/class_7", "CLASS f net/class_7\n")

	req := httptest.NewRequest("GET", "/classes", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, ">net/Block<") || !strings.Contains(body, ">net/class_7<") {
		t.Error("expected both classes in response")
	}
	if !strings.Contains(body, `<tr class="unmapped">`) {
		t.Error("expected net/class_7 to be marked unmapped")
	}
}

func TestHandleList_Filters(t *testing.T) {
	h := setupTest(t)
	seedMapping(t, h, "net/Block", blockMapping)
	seedMapping(t, h, "net/class_7", "CLASS f net/class_7\n")
	seedMapping(t, h, "util/class_8", "CLASS g util/class_8\n")

	req := httptest.NewRequest("GET", "/classes?pattern=net/**&unmapped=true", nil)
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, ">net/class_7<") {
		t.Error("expected net/class_7 in filtered results")
	}
	if strings.Contains(body, ">net/Block<") || strings.Contains(body, ">util/class_8<") {
		t.Error("did not expect other classes in filtered results")
	}
}

func TestHandleList_Empty(t *testing.T) {
	h := setupTest(t)

	rec := httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest("GET", "/classes", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "No mapped classes.") {
		t.Error("expected empty state message")
	}
}

func TestHandleList_HtmxReturnsContentOnly(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/classes", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if strings.Contains(rec.Body.String(), "<!DOCTYPE html>") {
		t.Error("htmx request should not render the layout")
	}
}

func TestHandleList_InvalidPattern(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/classes?pattern="+url.QueryEscape("net/[a"), nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleList(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	assertJSONErrorCode(t, rec, "INVALID_REQUEST")
}

// --- HandleDetail ---

func TestHandleDetail_Found(t *testing.T) {
	h := setupTest(t)
	seedMapping(t, h, "net/Block", blockMapping)

	srv := httptest.NewServer(NewHandler(h.env, nil, "test"))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/classes/net/Block")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var sb strings.Builder
	if _, err := io.Copy(&sb, resp.Body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := sb.String()

	for _, want := range []string{
		"<h1>net/Block</h1>",
		"<strong>placed</strong>",
		`value="hardness"`,
		`value="place"`,
		`value="count"`,
		`name="nested" value="Settings"`,
		`value="strength"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in detail page", want)
		}
	}
}

func TestHandleDetail_JSON(t *testing.T) {
	h := setupTest(t)
	seedMapping(t, h, "net/Block", blockMapping)

	req := httptest.NewRequest("GET", "/classes/net/Block", nil)
	req.SetPathValue("name", "net/Block")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	var out ops.ShowOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Class.Obfuscated != "a" || len(out.Class.Classes) != 1 || !out.Persisted {
		t.Errorf("ShowOutput = %+v", out)
	}
}

func TestHandleDetail_Unpersisted(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/classes/q", nil)
	req.SetPathValue("name", "q")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "not persisted") {
		t.Error("expected identity mapping to be shown as not persisted")
	}
}

func TestHandleDetail_EmptyName(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("GET", "/classes/", nil)
	req.SetPathValue("name", "")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleDetail_MappingsDisabled(t *testing.T) {
	h := setupTest(t)
	h.env = ops.NewEnv(config.DefaultConfig(), nil)

	req := httptest.NewRequest("GET", "/classes/a", nil)
	req.SetPathValue("name", "a")
	rec := httptest.NewRecorder()
	h.HandleDetail(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

// --- HandleRename ---

func renameRequest(values url.Values) *http.Request {
	req := httptest.NewRequest("POST", "/rename", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHandleRename_DefaultRedirect(t *testing.T) {
	h := setupTest(t)
	seedMapping(t, h, "net/Block", blockMapping)

	rec := httptest.NewRecorder()
	h.HandleRename(rec, renameRequest(url.Values{
		"kind":       {"field"},
		"class":      {"net/Block"},
		"member":     {"hardness"},
		"descriptor": {"I"},
		"new_name":   {"toughness"},
	}))

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/classes/net/Block" {
		t.Errorf("Location = %q", loc)
	}

	data, err := os.ReadFile(mapping.FilePath(h.env.Config.MappingsDir, "net/Block"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), "FIELD d toughness I") {
		t.Errorf("file = %q", data)
	}
}

func TestHandleRename_NestedLocal(t *testing.T) {
	h := setupTest(t)
	seedMapping(t, h, "net/Block", blockMapping)

	rec := httptest.NewRecorder()
	h.HandleRename(rec, renameRequest(url.Values{
		"kind":       {"field"},
		"class":      {"net/Block"},
		"nested":     {"Settings"},
		"member":     {"strength"},
		"descriptor": {"F"},
		"new_name":   {"resistance"},
	}))
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("nested rename status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req := renameRequest(url.Values{
		"kind":       {"local"},
		"class":      {"net/Block"},
		"member":     {"place"},
		"descriptor": {"(La;I)V"},
		"index":      {"2"},
		"new_name":   {"amount"},
	})
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	h.HandleRename(rec, req)

	var out ops.RenameOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Previous != "count" || out.Current != "net/Block#place(La;I)V[2]" {
		t.Errorf("RenameOutput = %+v", out)
	}
}

func TestHandleRename_HtmxRedirect(t *testing.T) {
	h := setupTest(t)
	seedMapping(t, h, "net/Block", blockMapping)

	req := renameRequest(url.Values{"class": {"net/Block"}, "new_name": {"net/world/Block"}})
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleRename(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("HX-Redirect"); got != "/classes/net/world/Block" {
		t.Errorf("HX-Redirect = %q", got)
	}
}

func TestHandleRename_Errors(t *testing.T) {
	h := setupTest(t)
	seedMapping(t, h, "net/Block", blockMapping)
	seedMapping(t, h, "net/Stone", "CLASS s net/Stone\n")

	tests := []struct {
		name   string
		values url.Values
		status int
	}{
		{"bad index", url.Values{"kind": {"local"}, "class": {"net/Block"}, "index": {"x"}, "new_name": {"y"}}, http.StatusBadRequest},
		{"empty name", url.Values{"class": {"net/Block"}}, http.StatusBadRequest},
		{"collision", url.Values{"class": {"net/Block"}, "new_name": {"net/Stone"}}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleRename(rec, renameRequest(tt.values))
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

// --- HandleHistory / HandleUndo ---

func TestHandleHistoryAndUndo(t *testing.T) {
	h := setupTest(t)
	seedMapping(t, h, "net/Block", blockMapping)

	rec := httptest.NewRecorder()
	h.HandleRename(rec, renameRequest(url.Values{
		"kind": {"field"}, "class": {"net/Block"}, "member": {"hardness"}, "descriptor": {"I"}, "new_name": {"toughness"},
	}))

	rec = httptest.NewRecorder()
	h.HandleHistory(rec, httptest.NewRequest("GET", "/history", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "net/Block#hardness:I") || !strings.Contains(body, "active") {
		t.Errorf("history page missing entry: %s", body)
	}

	req := httptest.NewRequest("POST", "/undo", nil)
	req.Header.Set("Accept", "application/json")
	rec = httptest.NewRecorder()
	h.HandleUndo(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("undo status = %d, want 200", rec.Code)
	}
	var out ops.UndoOutput
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out.Undone) != 1 {
		t.Errorf("Undone = %+v", out.Undone)
	}

	rec = httptest.NewRecorder()
	h.HandleUndo(rec, httptest.NewRequest("POST", "/undo", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("second undo status = %d, want 409", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.HandleHistory(rec, httptest.NewRequest("GET", "/history", nil))
	if !strings.Contains(rec.Body.String(), "undone ") {
		t.Error("expected entry to be marked undone")
	}
}

func TestHandleUndo_DefaultRedirect(t *testing.T) {
	h := setupTest(t)
	if _, err := ops.Rename(h.env, ops.RenameInput{Ref: ops.RefInput{Class: "a"}, NewName: "net/Main"}); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	rec := httptest.NewRecorder()
	h.HandleUndo(rec, httptest.NewRequest("POST", "/undo", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/history" {
		t.Errorf("status = %d, Location = %q", rec.Code, rec.Header().Get("Location"))
	}
}

// --- Server ---

func TestServer_RoutesAndMetrics(t *testing.T) {
	h := setupTest(t)
	seedMapping(t, h, "net/Block", blockMapping)

	reg := prometheus.NewRegistry()
	metrics := store.NewMetrics(reg)
	env := ops.NewEnv(h.env.Config, h.env.DB, store.WithMetrics(metrics))

	srv := httptest.NewServer(NewHandler(env, reg, "test"))
	defer srv.Close()

	client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }}
	resp, err := client.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound || resp.Header.Get("Location") != "/classes" {
		t.Errorf("GET / = %d %q", resp.StatusCode, resp.Header.Get("Location"))
	}
	if resp.Header.Get("X-Frame-Options") != "DENY" {
		t.Error("expected security headers")
	}

	resp, err = client.Get(srv.URL + "/classes/net/Block")
	if err != nil {
		t.Fatalf("GET detail: %v", err)
	}
	resp.Body.Close()

	resp, err = client.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	var sb strings.Builder
	_, _ = io.Copy(&sb, resp.Body)
	if !strings.Contains(sb.String(), "knit_store_loads_total 1") {
		t.Errorf("metrics missing store loads:\n%s", sb.String())
	}

	resp, err = client.Get(srv.URL + "/static/style.css")
	if err != nil {
		t.Fatalf("GET static: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("static status = %d", resp.StatusCode)
	}
}

func TestServer_NoMetricsWithoutGatherer(t *testing.T) {
	h := setupTest(t)

	rec := httptest.NewRecorder()
	NewHandler(h.env, nil, "test").ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// --- Error rendering ---

func TestErrorRendering_HtmxFragment(t *testing.T) {
	h := setupTest(t)

	req := httptest.NewRequest("POST", "/undo", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	h.HandleUndo(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if !strings.HasPrefix(rec.Body.String(), `<div class="error-message">`) {
		t.Errorf("body = %q, want error fragment", rec.Body.String())
	}
}

func TestErrorRendering_FullErrorPage(t *testing.T) {
	h := setupTest(t)

	rec := httptest.NewRecorder()
	h.HandleUndo(rec, httptest.NewRequest("POST", "/undo", nil))

	body := rec.Body.String()
	if !strings.Contains(body, "<!DOCTYPE html>") || !strings.Contains(body, "Error 409") {
		t.Errorf("expected full error page, got %s", body)
	}
}

// --- Helpers ---

func TestRenderComment(t *testing.T) {
	got := string(renderComment([]string{"Uses `int` slots.", "", "<script>x</script>"}))
	if !strings.Contains(got, "<code>int</code>") {
		t.Errorf("renderComment() = %q, want inline code", got)
	}
	if strings.Contains(got, "<script>") {
		t.Errorf("renderComment() = %q, raw HTML must not pass through", got)
	}
}

func TestMappedPercent(t *testing.T) {
	tests := []struct {
		unmapped, total int
		want            string
	}{
		{0, 0, "100%"},
		{1, 4, "75%"},
		{3, 3, "0%"},
	}
	for _, tt := range tests {
		if got := mappedPercent(tt.unmapped, tt.total); got != tt.want {
			t.Errorf("mappedPercent(%d, %d) = %q, want %q", tt.unmapped, tt.total, got, tt.want)
		}
	}
}

func TestRootOf(t *testing.T) {
	tests := map[string]string{
		"net/Block":                 "net/Block",
		"net/Block$Settings":        "net/Block",
		"net/Block#place(La;I)V[2]": "net/Block",
		"a#b:I":                     "a",
	}
	for in, want := range tests {
		if got := rootOf(in); got != want {
			t.Errorf("rootOf(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseIntParam(t *testing.T) {
	req := httptest.NewRequest("GET", "/?limit=7&bad=x", nil)
	if got := parseIntParam(req, "limit", 1); got != 7 {
		t.Errorf("limit = %d, want 7", got)
	}
	if got := parseIntParam(req, "bad", 1); got != 1 {
		t.Errorf("bad = %d, want default 1", got)
	}
	if got := parseIntParam(req, "missing", 3); got != 3 {
		t.Errorf("missing = %d, want default 3", got)
	}
}

func TestParseBoolParam(t *testing.T) {
	req := httptest.NewRequest("GET", "/?a=true&b=1&c=yes", nil)
	for name, want := range map[string]bool{"a": true, "b": true, "c": false, "d": false} {
		if got := parseBoolParam(req, name); got != want {
			t.Errorf("parseBoolParam(%q) = %v, want %v", name, got, want)
		}
	}
}

func assertJSONErrorCode(t *testing.T, rec *httptest.ResponseRecorder, code string) {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	if payload.Error.Code != code {
		t.Errorf("code = %q, want %q", payload.Error.Code, code)
	}
}
