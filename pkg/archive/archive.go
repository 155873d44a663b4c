// Package archive records messages delivered from greenbox boxes in a
// SQLite database, so they outlive the ring's overwrite window.
//
// A box keeps only its last blockCount messages. A recorder attaches a
// reader, appends what it delivers with [Archive.Append], and later tooling
// queries the history with [Archive.Query].
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Errors returned by the archive.
var (
	ErrSchemaVersion = errors.New("archive: unsupported schema version")
	ErrClosed        = errors.New("archive: closed")
)

// Record is one archived message.
type Record struct {
	ID         int64
	Box        string
	WriterID   string
	Slot       int
	Payload    []byte
	ReceivedAt time.Time
}

// Query selects records. Zero values mean "no filter".
type Query struct {
	Box     string
	AfterID int64
	// Limit keeps the newest Limit matching records, still returned in
	// ascending ID order.
	Limit int
}

// Archive is an open archive database. It is safe for concurrent use.
type Archive struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the archive at path.
func Open(ctx context.Context, path string) (*Archive, error) {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}

	db, err := openSqlite(ctx, path)
	if err != nil {
		return nil, err
	}

	err = ensureSchema(ctx, db)
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}

	return &Archive{db: db, path: path}, nil
}

// Path returns the database path.
func (a *Archive) Path() string { return a.path }

// Append stores recs in one transaction. ReceivedAt defaults to now.
func (a *Archive) Append(ctx context.Context, recs []Record) error {
	if a.db == nil {
		return ErrClosed
	}

	if len(recs) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin txn: %w", err)
	}

	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO messages (box, writer_id, slot, payload, received_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("sqlite: prepare insert: %w", err)
	}

	defer stmt.Close()

	now := time.Now()

	for _, r := range recs {
		at := r.ReceivedAt
		if at.IsZero() {
			at = now
		}

		payload := r.Payload
		if payload == nil {
			payload = []byte{}
		}

		_, err = stmt.ExecContext(ctx, r.Box, r.WriterID, r.Slot, payload, at.UnixNano())
		if err != nil {
			return fmt.Errorf("sqlite: insert: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("sqlite: commit txn: %w", err)
	}

	return nil
}

// Query returns matching records in ascending ID order.
func (a *Archive) Query(ctx context.Context, q Query) ([]Record, error) {
	if a.db == nil {
		return nil, ErrClosed
	}

	var (
		where []string
		args  []any
	)

	if q.Box != "" {
		where = append(where, "box = ?")
		args = append(args, q.Box)
	}

	if q.AfterID > 0 {
		where = append(where, "id > ?")
		args = append(args, q.AfterID)
	}

	query := "SELECT id, box, writer_id, slot, payload, received_at FROM messages"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	if q.Limit > 0 {
		query = "SELECT * FROM (" + query + " ORDER BY id DESC LIMIT ?) ORDER BY id"
		args = append(args, q.Limit)
	} else {
		query += " ORDER BY id"
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}

	defer rows.Close()

	var out []Record

	for rows.Next() {
		var (
			r  Record
			at int64
		)

		err = rows.Scan(&r.ID, &r.Box, &r.WriterID, &r.Slot, &r.Payload, &at)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan: %w", err)
		}

		r.ReceivedAt = time.Unix(0, at)
		out = append(out, r)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("sqlite: rows: %w", err)
	}

	return out, nil
}

// Count returns the number of records for box, or all records if box is
// empty.
func (a *Archive) Count(ctx context.Context, box string) (int64, error) {
	if a.db == nil {
		return 0, ErrClosed
	}

	var (
		n   int64
		err error
	)

	if box == "" {
		err = a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages").Scan(&n)
	} else {
		err = a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM messages WHERE box = ?", box).Scan(&n)
	}

	if err != nil {
		return 0, fmt.Errorf("sqlite: count: %w", err)
	}

	return n, nil
}

// Close closes the database. Further calls return nil.
func (a *Archive) Close() error {
	if a.db == nil {
		return nil
	}

	err := a.db.Close()
	a.db = nil

	return err
}
