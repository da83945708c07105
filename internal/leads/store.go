package leads

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// DefaultDBName is the lead database file name inside the data directory
const DefaultDBName = "leads.db"

// Store persists leads in SQLite
type Store struct {
	db     *sql.DB
	path   string
	logger *logrus.Logger
}

// Open opens or creates the lead database at path
func Open(path string, logger *logrus.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; keep the pool from contending with itself
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close() // Close error less important than schema error
		return nil, fmt.Errorf("failed to initialise schema: %w", err)
	}

	return &Store{db: db, path: path, logger: logger}, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.path
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores leads for a session in one transaction. Leads already stored
// for the same session, source URL, e-mail and phone are ignored.
func (s *Store) Save(ctx context.Context, leads []Lead, sessionID, query string) (err error) {
	if len(leads) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			err = errors.Join(err, tx.Rollback())
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO leads (
			lead_id, session_id, query, name, email, phone, instagram,
			website, domain, source, source_url, snippet, extracted_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	inserted := 0
	for _, l := range leads {
		extracted := l.ExtractedAt
		if extracted.IsZero() {
			extracted = time.Now().UTC()
		}
		res, execErr := stmt.ExecContext(ctx,
			l.ID, sessionID, query, l.Name, l.Email, l.Phone, l.Instagram,
			l.Website, l.Domain, l.Source, l.SourceURL, l.Snippet,
			extracted.Format(time.RFC3339Nano),
		)
		if execErr != nil {
			return fmt.Errorf("failed to insert lead %s: %w", l.ID, execErr)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit leads: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"received":   len(leads),
		"inserted":   inserted,
	}).Info("Leads saved")

	return nil
}

// List returns the leads stored for a session, oldest first
func (s *Store) List(ctx context.Context, sessionID string) ([]Lead, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lead_id, session_id, query, name, email, phone, instagram,
		       website, domain, source, source_url, snippet, extracted_at
		FROM leads WHERE session_id = ? ORDER BY extracted_at, rowid`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Lead
	for rows.Next() {
		var (
			l                                     Lead
			name, instagram, website, domain, src sql.NullString
			snippet                               sql.NullString
			extracted                             string
		)
		if err := rows.Scan(&l.ID, &l.SessionID, &l.Query, &name, &l.Email, &l.Phone, &instagram,
			&website, &domain, &src, &l.SourceURL, &snippet, &extracted); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		l.Name = name.String
		l.Instagram = instagram.String
		l.Website = website.String
		l.Domain = domain.String
		l.Source = src.String
		l.Snippet = snippet.String
		if t, err := time.Parse(time.RFC3339Nano, extracted); err == nil {
			l.ExtractedAt = t
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
