package db

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Runemoro/knit/internal/errors"
	"github.com/Runemoro/knit/internal/store"
)

// Entry is one journaled rename. Target addresses the entity before the
// rename and Current after it. Entries written by one operation share a
// BatchID and are undone together.
type Entry struct {
	ID        string     `json:"id"`
	BatchID   string     `json:"batch_id"`
	Kind      store.Kind `json:"kind"`
	Target    store.Ref  `json:"target"`
	Current   store.Ref  `json:"current"`
	OldName   string     `json:"old_name"`
	NewName   string     `json:"new_name"`
	CreatedAt int64      `json:"created_at"`
	UndoneAt  *int64     `json:"undone_at,omitempty"`
}

// Undo returns the rename that reverts e.
func (e *Entry) Undo() store.Rename {
	return store.Rename{Target: e.Current, NewName: e.OldName}
}

// NewID returns a new ULID. IDs generated by one process sort in creation
// order.
func NewID() string {
	return ulid.Make().String()
}

// NewEntry builds a journal entry for a rename that took effect.
func NewEntry(batchID string, cmd store.Rename, applied store.Applied) *Entry {
	return &Entry{
		ID:        NewID(),
		BatchID:   batchID,
		Kind:      cmd.Target.Kind,
		Target:    cmd.Target,
		Current:   applied.Current,
		OldName:   applied.Previous,
		NewName:   cmd.NewName,
		CreatedAt: time.Now().Unix(),
	}
}

// InsertRename appends e to the journal.
func InsertRename(db *sql.DB, e *Entry) error {
	target, err := json.Marshal(e.Target)
	if err != nil {
		return errors.NewInternal(err)
	}
	current, err := json.Marshal(e.Current)
	if err != nil {
		return errors.NewInternal(err)
	}

	query := `
		INSERT INTO renames (
			id, batch_id, kind, target_json, result_json,
			old_name, new_name, created_at, undone_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL)
	`
	_, err = db.Exec(query,
		e.ID, e.BatchID, string(e.Kind), string(target), string(current),
		e.OldName, e.NewName, e.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// LatestActive returns the active entries of the most recent batch, newest
// first. Returns NOTHING_TO_UNDO when every entry has been undone.
func LatestActive(db *sql.DB) ([]Entry, error) {
	var batchID string
	err := db.QueryRow(`
		SELECT batch_id FROM renames
		WHERE undone_at IS NULL
		ORDER BY batch_id DESC
		LIMIT 1
	`).Scan(&batchID)
	if err == sql.ErrNoRows {
		return nil, errors.NewNothingToUndo()
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	rows, err := db.Query(selectColumns+`
		WHERE batch_id = ? AND undone_at IS NULL
		ORDER BY id DESC
	`, batchID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return scanEntries(rows)
}

// MarkUndone stamps the given entries as undone.
func MarkUndone(db *sql.DB, ids []string) error {
	tx, err := db.Begin()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().Unix()
	for _, id := range ids {
		result, err := tx.Exec("UPDATE renames SET undone_at = ? WHERE id = ? AND undone_at IS NULL", now, id)
		if err != nil {
			return errors.NewInternal(err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return errors.NewInternal(err)
		}
		if n == 0 {
			return errors.NewNotFound(id)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListRenames returns journal entries newest first, including undone ones.
func ListRenames(db *sql.DB, limit, offset int) ([]Entry, error) {
	rows, err := db.Query(selectColumns+`
		ORDER BY id DESC
		LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return scanEntries(rows)
}

// CountRenames returns the number of journal entries.
func CountRenames(db *sql.DB) (int, error) {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM renames").Scan(&count); err != nil {
		return 0, errors.NewInternal(err)
	}
	return count, nil
}

const selectColumns = `
	SELECT id, batch_id, kind, target_json, result_json,
		old_name, new_name, created_at, undone_at
	FROM renames
`

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var kind, target, current string
		var undoneAt sql.NullInt64
		if err := rows.Scan(&e.ID, &e.BatchID, &kind, &target, &current,
			&e.OldName, &e.NewName, &e.CreatedAt, &undoneAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		e.Kind = store.Kind(kind)
		if err := json.Unmarshal([]byte(target), &e.Target); err != nil {
			return nil, errors.NewInternal(err)
		}
		if err := json.Unmarshal([]byte(current), &e.Current); err != nil {
			return nil, errors.NewInternal(err)
		}
		if undoneAt.Valid {
			v := undoneAt.Int64
			e.UndoneAt = &v
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return entries, nil
}
