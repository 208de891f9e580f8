package ops

import (
	"fmt"
	"log"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/Runemoro/knit/internal/db"
	"github.com/Runemoro/knit/internal/errors"
	"github.com/Runemoro/knit/internal/mapping"
	"github.com/Runemoro/knit/internal/store"
)

// RenameInput contains parameters for the Rename operation.
type RenameInput struct {
	Ref     RefInput
	NewName string
	DryRun  bool // compute the file diff without writing anything
}

// RenameOutput contains the result of the Rename operation.
type RenameOutput struct {
	ID       string `json:"id,omitempty"` // journal entry, empty for dry runs
	Target   string `json:"target"`
	Current  string `json:"current"`
	Previous string `json:"previous"`
	File     string `json:"file,omitempty"`
	Diff     string `json:"diff,omitempty"`
	DryRun   bool   `json:"dry_run,omitempty"`
}

// Rename renames the entity in.Ref addresses and journals the change.
func Rename(env *Env, input RenameInput) (*RenameOutput, error) {
	var out *RenameOutput
	var identifier string
	err := env.Store.Do(func(s *store.Store) error {
		ref, err := input.Ref.resolve(s)
		if err != nil {
			return err
		}
		identifier = ref.String()
		cmd := store.Rename{Target: ref, NewName: input.NewName}

		if input.DryRun {
			p, err := s.Preview(cmd)
			if err != nil {
				return err
			}
			diff, err := unifiedDiff(p)
			if err != nil {
				return err
			}
			out = &RenameOutput{Target: identifier, File: p.NewFile, Diff: diff, DryRun: true}
			return nil
		}

		applied, err := s.Apply(cmd)
		if err != nil {
			return err
		}
		out = &RenameOutput{
			Target:   identifier,
			Current:  applied.Current.String(),
			Previous: applied.Previous,
		}
		out.File, _ = s.File(applied.Current.Class)

		if env.DB == nil {
			return nil
		}
		entry := db.NewEntry(db.NewID(), cmd, applied)
		if err := db.InsertRename(env.DB, entry); err != nil {
			revert(s, applied)
			return err
		}
		out.ID = entry.ID
		return nil
	})
	if err != nil {
		return nil, convertError(err, identifier)
	}
	return out, nil
}

// revert undoes an applied rename that could not be journaled.
func revert(s *store.Store, applied store.Applied) {
	if _, err := s.Apply(applied.Inverse()); err != nil {
		log.Printf("failed to revert unjournaled rename of %s: %v", applied.Current, err)
	}
}

func unifiedDiff(p store.Preview) (string, error) {
	from := p.OldFile
	if from == "" {
		from = "/dev/null"
	}
	to := p.NewFile
	if p.After == nil {
		to = "/dev/null"
	}
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        splitLines(p.Before),
		B:        splitLines(p.After),
		FromFile: from,
		ToFile:   to,
		Context:  3,
	})
}

func splitLines(b []byte) []string {
	if len(b) == 0 {
		return nil
	}
	return difflib.SplitLines(strings.TrimSuffix(string(b), "\n"))
}

// UndoOutput contains the result of the Undo operation.
type UndoOutput struct {
	Undone []RenameOutput `json:"undone"`
}

// Undo reverts the most recent journaled operation that is still active.
// Package renames are reverted as a whole.
func Undo(env *Env) (*UndoOutput, error) {
	if env.DB == nil {
		return nil, errors.NewInvalidRequest("rename journal is not available")
	}

	out := &UndoOutput{Undone: []RenameOutput{}}
	var identifier string
	err := env.Store.Do(func(s *store.Store) error {
		entries, err := db.LatestActive(env.DB)
		if err != nil {
			return err
		}

		var done []string
		for _, e := range entries {
			identifier = e.Current.String()
			applied, err := s.Apply(e.Undo())
			if err != nil {
				if markErr := db.MarkUndone(env.DB, done); markErr != nil {
					log.Printf("failed to mark undone renames: %v", markErr)
				}
				return err
			}
			done = append(done, e.ID)
			out.Undone = append(out.Undone, RenameOutput{
				ID:       e.ID,
				Target:   identifier,
				Current:  applied.Current.String(),
				Previous: applied.Previous,
			})
		}
		return db.MarkUndone(env.DB, done)
	})
	if err != nil {
		return nil, convertError(err, identifier)
	}
	return out, nil
}

// RenamePackageInput contains parameters for the RenamePackage operation.
type RenamePackageInput struct {
	From string
	To   string // empty moves classes to the default package
}

// RenamePackageOutput contains the result of the RenamePackage operation.
type RenamePackageOutput struct {
	BatchID string         `json:"batch_id,omitempty"`
	Renamed []RenameOutput `json:"renamed"`
}

// RenamePackage moves every root class of a package and journals the moves
// as one batch.
func RenamePackage(env *Env, input RenamePackageInput) (*RenamePackageOutput, error) {
	out := &RenamePackageOutput{Renamed: []RenameOutput{}}
	err := env.Store.Do(func(s *store.Store) error {
		applied, err := s.RenamePackage(input.From, input.To)
		batch := db.NewID()
		for _, a := range applied {
			r := RenameOutput{
				Target:   store.Ref{Kind: store.KindClass, Class: a.Previous}.String(),
				Current:  a.Current.String(),
				Previous: a.Previous,
			}
			if env.DB != nil {
				cmd := store.Rename{Target: store.Ref{Kind: store.KindClass, Class: a.Previous}, NewName: a.Current.Class}
				entry := db.NewEntry(batch, cmd, a)
				if jerr := db.InsertRename(env.DB, entry); jerr != nil {
					return jerr
				}
				r.ID = entry.ID
				out.BatchID = batch
			}
			out.Renamed = append(out.Renamed, r)
		}
		return err
	})
	if err != nil {
		return nil, convertError(err, mapping.NormalizeName(input.From))
	}
	return out, nil
}

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Limit  int // default: config history_limit, max: 100
	Offset int
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Items      []db.Entry `json:"items"`
	Pagination Pagination `json:"pagination"`
}

// History lists journaled renames, newest first.
func History(env *Env, input HistoryInput) (*HistoryOutput, error) {
	if env.DB == nil {
		return nil, errors.NewInvalidRequest("rename journal is not available")
	}

	limit := input.Limit
	if limit <= 0 && env.Config != nil {
		limit = env.Config.HistoryLimit
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	offset := max(input.Offset, 0)

	items, err := db.ListRenames(env.DB, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := db.CountRenames(env.DB)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []db.Entry{}
	}

	return &HistoryOutput{
		Items: items,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(items) < total,
			Total:   total,
		},
	}, nil
}

// FormatEntry formats a journal entry as one line of text.
func FormatEntry(e db.Entry) string {
	status := "active"
	if e.UndoneAt != nil {
		status = "undone"
	}
	return fmt.Sprintf("%s %s %s -> %s (%s)", e.ID, e.Kind, e.Target, e.NewName, status)
}
