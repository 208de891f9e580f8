package ops

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Runemoro/knit/internal/errors"
	"github.com/Runemoro/knit/internal/mapping"
	"github.com/Runemoro/knit/internal/store"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Path      string // optional, default: ~/.knit/exports/mappings-<timestamp>
	Overwrite bool   // replace an existing directory that holds only mapping files
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes a copy of every persisted root into another directory,
// laid out the same way as the mapping directory.
func Export(ctx context.Context, env *Env, input ExportInput) (*ExportOutput, error) {
	now := time.Now()

	exportPath := input.Path
	if exportPath == "" {
		dir, err := DefaultExportsDir()
		if err != nil {
			return nil, err
		}
		exportPath = filepath.Join(dir, "mappings-"+now.Format("2006-01-02T150405"))
	}

	var out *ExportOutput
	err := env.Store.Do(func(s *store.Store) error {
		if !s.HasMappings() {
			return store.ErrDisabled
		}
		if err := ValidateDir(exportPath, PathCheckWrite, env.Config, s.Dir()); err != nil {
			return err
		}
		if err := checkReplaceable(exportPath, input.Overwrite); err != nil {
			return err
		}

		if err := checkParseable(s.Dir()); err != nil {
			return err
		}

		names, err := s.Roots()
		if err != nil {
			return err
		}
		roots := make([]*mapping.Class, 0, len(names))
		for _, name := range names {
			if err := ctx.Err(); err != nil {
				return err
			}
			root, err := s.GetOrCreate(name)
			if err != nil {
				return err
			}
			roots = append(roots, root)
		}

		if err := os.MkdirAll(filepath.Dir(exportPath), 0700); err != nil {
			return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
		}
		count, err := mapping.WriteDir(roots, exportPath)
		if err != nil {
			return errors.NewInternal(fmt.Errorf("failed to write export: %w", err))
		}
		out = &ExportOutput{Path: exportPath, Count: count, ExportedAt: now.Unix()}
		return nil
	})
	if err != nil {
		return nil, convertError(err, exportPath)
	}
	return out, nil
}

// checkParseable fails with MALFORMED_MAPPING when a mapping file cannot be
// parsed. The store would export such a file as an identity mapping, which
// writes nothing.
func checkParseable(dir string) error {
	_, malformed, err := mapping.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(malformed) == 0 {
		return nil
	}

	first := malformed[0]
	kErr := errors.FromFormat(first)
	kErr.Message = fmt.Sprintf("cannot export %d malformed mapping file(s), fix them first: %s", len(malformed), first.Error())
	kErr.Details["count"] = len(malformed)
	return kErr
}

// checkReplaceable fails unless dir is missing, empty, or (with overwrite)
// holds nothing but mapping files.
func checkReplaceable(dir string, overwrite bool) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.NewInvalidRequest(fmt.Sprintf("cannot read export directory: %v", err))
	}
	if len(entries) == 0 {
		return nil
	}
	if !overwrite {
		return errors.NewInvalidRequest("export directory is not empty; pass overwrite to replace it")
	}

	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return errors.NewInvalidRequest(fmt.Sprintf("export directory contains a symlink: %s", path))
		}
		if !d.IsDir() && filepath.Ext(path) != mapping.Extension {
			return errors.NewInvalidRequest(fmt.Sprintf("export directory contains a non-mapping file: %s", path))
		}
		return nil
	})
}
