package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/Runemoro/knit/internal/config"
	"github.com/Runemoro/knit/internal/errors"
	"github.com/Runemoro/knit/internal/mapping"
)

func newExportEnv(t *testing.T) (*Env, string) {
	t.Helper()
	env := newTestEnv(t)
	allowed := t.TempDir()
	env.Config.AllowedPaths = []string{allowed}
	return env, allowed
}

func TestExport_HappyPath(t *testing.T) {
	env, allowed := newExportEnv(t)
	writeMapping(t, env, "net/Block", "CLASS a net/Block\n\tFIELD b hardness I\n")
	writeMapping(t, env, "Main", "CLASS c Main\n")

	dest := filepath.Join(allowed, "snapshot")
	out, err := Export(context.Background(), env, ExportInput{Path: dest})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if out.Count != 2 || out.Path != dest || out.ExportedAt == 0 {
		t.Errorf("Export() = %+v", out)
	}

	root, err := mapping.ReadFile(mapping.FilePath(dest, "net/Block"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if root.Name != "net/Block" || len(root.Fields) != 1 {
		t.Errorf("exported root = %+v", root)
	}
}

func TestExport_MalformedFile(t *testing.T) {
	env, allowed := newExportEnv(t)
	writeMapping(t, env, "Good", "CLASS a Good\n")
	writeMapping(t, env, "Bad", "CLASS b Bad\n\t\t\tFIELD c d I\n")

	dest := filepath.Join(allowed, "snapshot")
	_, err := Export(context.Background(), env, ExportInput{Path: dest})
	if !errors.Is(err, errors.ErrMalformedMapping) {
		t.Fatalf("Export() error = %v, want MALFORMED_MAPPING", err)
	}
	kErr := err.(*errors.KnitError)
	if kErr.Details["file"] != mapping.FilePath(mappingsDir(env), "Bad") || kErr.Details["line"] != 2 || kErr.Details["count"] != 1 {
		t.Errorf("Details = %v", kErr.Details)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Errorf("nothing should be exported, stat error = %v", err)
	}

	// the bad file is reported even after the store replaced it in memory
	if _, err := Show(env, ShowInput{Class: "Bad"}); err != nil {
		t.Fatalf("Show() error = %v", err)
	}
	if _, err := Export(context.Background(), env, ExportInput{Path: dest}); !errors.Is(err, errors.ErrMalformedMapping) {
		t.Errorf("second Export() error = %v, want MALFORMED_MAPPING", err)
	}
}

func TestExport_Empty(t *testing.T) {
	env, allowed := newExportEnv(t)

	out, err := Export(context.Background(), env, ExportInput{Path: filepath.Join(allowed, "empty")})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if out.Count != 0 {
		t.Errorf("Count = %d, want 0", out.Count)
	}
}

func TestExport_RefusesNonEmptyDir(t *testing.T) {
	env, allowed := newExportEnv(t)
	writeMapping(t, env, "Main", "CLASS c Main\n")

	dest := filepath.Join(allowed, "snapshot")
	if err := os.MkdirAll(dest, 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	keep := filepath.Join(dest, "notes.txt")
	if err := os.WriteFile(keep, []byte("keep me"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Export(context.Background(), env, ExportInput{Path: dest}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Export() error = %v, want INVALID_REQUEST", err)
	}
	// overwrite only replaces trees of mapping files
	if _, err := Export(context.Background(), env, ExportInput{Path: dest, Overwrite: true}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Export(overwrite) error = %v, want INVALID_REQUEST", err)
	}
	if _, err := os.Stat(keep); err != nil {
		t.Errorf("unrelated file removed: %v", err)
	}
}

func TestExport_Overwrite(t *testing.T) {
	env, allowed := newExportEnv(t)
	writeMapping(t, env, "Main", "CLASS c Main\n")

	dest := filepath.Join(allowed, "snapshot")
	if _, err := Export(context.Background(), env, ExportInput{Path: dest}); err != nil {
		t.Fatalf("first Export() error = %v", err)
	}
	stale := mapping.FilePath(dest, "old/Gone")
	if err := os.MkdirAll(filepath.Dir(stale), 0755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(stale, []byte("CLASS x old/Gone\n"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Export(context.Background(), env, ExportInput{Path: dest}); !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("Export() without overwrite = %v, want INVALID_REQUEST", err)
	}
	out, err := Export(context.Background(), env, ExportInput{Path: dest, Overwrite: true})
	if err != nil {
		t.Fatalf("Export(overwrite) error = %v", err)
	}
	if out.Count != 1 {
		t.Errorf("Count = %d, want 1", out.Count)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale export file should be removed, stat error = %v", err)
	}
}

func TestExport_PathRejected(t *testing.T) {
	env, _ := newExportEnv(t)

	tests := []string{
		"/tmp/../etc/knit",
		mappingsDir(env),
		filepath.Join(t.TempDir(), "outside"),
	}
	for _, path := range tests {
		if _, err := Export(context.Background(), env, ExportInput{Path: path}); !errors.Is(err, errors.ErrInvalidRequest) {
			t.Errorf("Export(%q) error = %v, want INVALID_REQUEST", path, err)
		}
	}
}

func TestExport_DefaultPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	env := newTestEnv(t)
	writeMapping(t, env, "Main", "CLASS c Main\n")

	out, err := Export(context.Background(), env, ExportInput{})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if filepath.Dir(out.Path) != filepath.Join(home, ".knit", "exports") {
		t.Errorf("Path = %q, want under %s", out.Path, home)
	}
}

func TestExport_Disabled(t *testing.T) {
	env := NewEnv(config.DefaultConfig(), nil)

	if _, err := Export(context.Background(), env, ExportInput{Path: "/tmp/x"}); !errors.Is(err, errors.ErrMappingsDisabled) {
		t.Errorf("Export() error = %v, want MAPPINGS_DISABLED", err)
	}
}

func TestExport_Cancelled(t *testing.T) {
	env, allowed := newExportEnv(t)
	writeMapping(t, env, "Main", "CLASS c Main\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := Export(ctx, env, ExportInput{Path: filepath.Join(allowed, "x")}); !errors.Is(err, errors.ErrCancelled) {
		t.Errorf("Export() error = %v, want CANCELLED", err)
	}
}
