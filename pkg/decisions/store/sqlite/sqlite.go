package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/internalerr"
	"github.com/LoMein123/DecisionsBot-v2/pkg/decisions/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db *sql.DB
}

// OpenSQLite opens a SQLite database with WAL mode enabled.
func OpenSQLite(ctx context.Context, path string) (store.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Initialize schema
	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS partitions (
	name TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS decisions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	copy TEXT NOT NULL,
	year_partition TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT '',
	school TEXT NOT NULL DEFAULT '',
	program TEXT NOT NULL DEFAULT '',
	average TEXT NOT NULL DEFAULT '',
	decision_date TEXT NOT NULL DEFAULT '',
	applicant_type TEXT NOT NULL DEFAULT '',
	submitter TEXT NOT NULL DEFAULT '',
	note TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '',
	identifier TEXT NOT NULL DEFAULT '',
	submitter_id TEXT NOT NULL DEFAULT '',
	anonymous INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	FOREIGN KEY(year_partition) REFERENCES partitions(name)
);

CREATE INDEX IF NOT EXISTS decisions_by_partition ON decisions(copy, year_partition, id);

CREATE UNIQUE INDEX IF NOT EXISTS decisions_by_identifier
	ON decisions(copy, year_partition, identifier) WHERE identifier <> '';
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// AppendRow adds a row at the end of a partition, creating the partition
// on first use.
func (s *sqliteStore) AppendRow(ctx context.Context, c store.Copy, partition string, r store.Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO partitions (name) VALUES (?)`, partition); err != nil {
		return err
	}

	if r.Identifier != "" {
		var n int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM decisions WHERE copy=? AND year_partition=? AND identifier=?`,
			string(c), partition, r.Identifier,
		).Scan(&n)
		if err != nil {
			return err
		}
		if n > 0 {
			return fmt.Errorf("%w: identifier %s in %s/%s", internalerr.ErrDuplicate, r.Identifier, c, partition)
		}
	}

	created := r.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}

	const stmt = `
INSERT INTO decisions (
	copy, year_partition, status, school, program, average, decision_date,
	applicant_type, submitter, note, tags, identifier, submitter_id,
	anonymous, deleted, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`
	_, err = tx.ExecContext(ctx, stmt,
		string(c), partition, r.Status, r.School, r.Program, r.Average, r.Date,
		r.ApplicantType, r.Submitter, r.Note, r.Tags, r.Identifier, r.SubmitterID,
		boolInt(r.Anonymous), boolInt(r.Deleted), created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// FindRowByIdentifier locates the live row carrying identifier. Tombstoned
// private rows are not returned.
func (s *sqliteStore) FindRowByIdentifier(ctx context.Context, c store.Copy, identifier string) (store.Location, error) {
	if identifier == "" {
		return store.Location{}, internalerr.ErrNotFound
	}

	var (
		id        int64
		partition string
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, year_partition FROM decisions
WHERE copy=? AND identifier=? AND deleted=0
ORDER BY year_partition, id
LIMIT 1;
`, string(c), identifier).Scan(&id, &partition)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Location{}, internalerr.ErrNotFound
	}
	if err != nil {
		return store.Location{}, err
	}

	var index int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM decisions WHERE copy=? AND year_partition=? AND id<=?`,
		string(c), partition, id,
	).Scan(&index)
	if err != nil {
		return store.Location{}, err
	}

	return store.Location{Partition: partition, Index: index}, nil
}

// ReadAllRows returns every row of a partition in order.
func (s *sqliteStore) ReadAllRows(ctx context.Context, c store.Copy, partition string) ([]store.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT status, school, program, average, decision_date, applicant_type,
	submitter, note, tags, identifier, submitter_id, anonymous, deleted, created_at
FROM decisions
WHERE copy=? AND year_partition=?
ORDER BY id;
`, string(c), partition)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Row
	for rows.Next() {
		var (
			r                  store.Row
			anonymous, deleted int
			created            string
		)
		if err := rows.Scan(
			&r.Status, &r.School, &r.Program, &r.Average, &r.Date, &r.ApplicantType,
			&r.Submitter, &r.Note, &r.Tags, &r.Identifier, &r.SubmitterID,
			&anonymous, &deleted, &created,
		); err != nil {
			return nil, err
		}
		r.Anonymous = anonymous != 0
		r.Deleted = deleted != 0
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			r.CreatedAt = t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListPartitions returns applicant-year partitions in ascending order.
func (s *sqliteStore) ListPartitions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name FROM partitions WHERE name <> ? ORDER BY name`, store.ReservedPartition)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// DeleteRow removes the public row at index.
func (s *sqliteStore) DeleteRow(ctx context.Context, partition string, index int) error {
	id, err := s.rowID(ctx, store.Public, partition, index)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM decisions WHERE id=?`, id)
	return err
}

// MarkTombstone sets the deleted flag on the private row at index.
func (s *sqliteStore) MarkTombstone(ctx context.Context, partition string, index int) error {
	id, err := s.rowID(ctx, store.Private, partition, index)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE decisions SET deleted=1 WHERE id=?`, id)
	return err
}

// rowID resolves a 1-based row index to its primary key.
func (s *sqliteStore) rowID(ctx context.Context, c store.Copy, partition string, index int) (int64, error) {
	if index < 1 {
		return 0, internalerr.ErrNotFound
	}
	var id int64
	err := s.db.QueryRowContext(ctx, `
SELECT id FROM decisions
WHERE copy=? AND year_partition=?
ORDER BY id
LIMIT 1 OFFSET ?;
`, string(c), partition, index-1).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, internalerr.ErrNotFound
	}
	return id, err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
