package manifest

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore persists component records in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens the manifest database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS components (
			component_id TEXT PRIMARY KEY,
			source_path TEXT NOT NULL,
			source_hash TEXT,
			doc_path TEXT,
			status TEXT,
			generated_at TIMESTAMP
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_components_source ON components(source_path);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// SaveRecord upserts a component record.
func (s *SQLiteStore) SaveRecord(ctx context.Context, rec ComponentRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO components (component_id, source_path, source_hash, doc_path, status, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(component_id) DO UPDATE SET
			source_path=excluded.source_path,
			source_hash=excluded.source_hash,
			doc_path=excluded.doc_path,
			status=excluded.status,
			generated_at=excluded.generated_at
	`, rec.ComponentID, rec.SourcePath, rec.SourceHash, rec.DocPath, string(rec.Status), rec.GeneratedAt)

	return err
}

// SaveRecords upserts a batch inside one transaction.
func (s *SQLiteStore) SaveRecords(ctx context.Context, recs []ComponentRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO components (component_id, source_path, source_hash, doc_path, status, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(component_id) DO UPDATE SET
			source_path=excluded.source_path,
			source_hash=excluded.source_hash,
			doc_path=excluded.doc_path,
			status=excluded.status,
			generated_at=excluded.generated_at
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err := stmt.ExecContext(ctx,
			rec.ComponentID, rec.SourcePath, rec.SourceHash, rec.DocPath,
			string(rec.Status), rec.GeneratedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListRecords returns every component record, ordered by source path.
// Rows that fail validation (hand-edited database, older schema) are
// skipped rather than poisoning the whole manifest.
func (s *SQLiteStore) ListRecords(ctx context.Context) ([]ComponentRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT component_id, source_path, source_hash, doc_path, status, generated_at
		FROM components ORDER BY source_path
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ComponentRecord
	for rows.Next() {
		var (
			rec               ComponentRecord
			hash, doc, status sql.NullString
			generatedAt       sql.NullTime
		)
		if err := rows.Scan(&rec.ComponentID, &rec.SourcePath, &hash, &doc, &status, &generatedAt); err != nil {
			return nil, err
		}
		rec.SourceHash = hash.String
		rec.DocPath = doc.String
		rec.Status = Status(status.String)
		if generatedAt.Valid {
			rec.GeneratedAt = generatedAt.Time
		}
		if valid, err := NewComponentRecord(rec.ComponentID, rec.SourcePath, rec.SourceHash, rec.DocPath); err == nil {
			valid.Status = rec.Status
			valid.GeneratedAt = rec.GeneratedAt
			out = append(out, valid)
		}
	}
	return out, rows.Err()
}

// GetRecord retrieves the record covering an exact source path, if any.
func (s *SQLiteStore) GetRecord(ctx context.Context, sourcePath string) (*ComponentRecord, error) {
	cleaned, err := CleanSourcePath(sourcePath)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT component_id, source_path, source_hash, doc_path, status, generated_at
		FROM components WHERE source_path = ?
	`, cleaned)

	var (
		rec               ComponentRecord
		hash, doc, status sql.NullString
		generatedAt       sql.NullTime
	)
	if err := row.Scan(&rec.ComponentID, &rec.SourcePath, &hash, &doc, &status, &generatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rec.SourceHash = hash.String
	rec.DocPath = doc.String
	rec.Status = Status(status.String)
	if generatedAt.Valid {
		rec.GeneratedAt = generatedAt.Time
	}
	return &rec, nil
}

// DeleteRecord removes a component record, e.g. after its docs are retired.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, componentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM components WHERE component_id = ?`, componentID)
	return err
}

// MarkVerified flips a component's status after human review.
func (s *SQLiteStore) MarkVerified(ctx context.Context, componentID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE components SET status = ? WHERE component_id = ?
	`, string(StatusVerified), componentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("no component %q", componentID)
	}
	return nil
}
