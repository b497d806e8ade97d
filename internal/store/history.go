package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Compilation is one recorded compile of a design.
type Compilation struct {
	ID         string `json:"id"`
	DesignName string `json:"design_name"`
	Seq        int64  `json:"seq"`
	DesignHash string `json:"design_hash"`
	Dialect    string `json:"dialect"`
	Query      string `json:"query"`
}

// RecordCompilation appends a compile result to a design's history.
// The seq is assigned by the store: one past the design's last entry.
func (s *Store) RecordCompilation(ctx context.Context, designName, designHash, dialect, query string) (Compilation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Compilation{}, fmt.Errorf("record compilation: begin: %w", err)
	}
	defer tx.Rollback()

	c := Compilation{
		ID:         uuid.Must(uuid.NewV7()).String(),
		DesignName: designName,
		DesignHash: designHash,
		Dialect:    dialect,
		Query:      query,
	}

	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM compilations WHERE design_name = ?
	`, designName).Scan(&c.Seq)
	if err != nil {
		return Compilation{}, fmt.Errorf("record compilation: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO compilations (id, design_name, seq, design_hash, dialect, query)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.DesignName, c.Seq, c.DesignHash, c.Dialect, c.Query)
	if err != nil {
		return Compilation{}, fmt.Errorf("record compilation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Compilation{}, fmt.Errorf("record compilation: commit: %w", err)
	}
	return c, nil
}

// ReadHistory returns the last limit compilations of a design, oldest
// first. A limit <= 0 returns the full history.
func (s *Store) ReadHistory(ctx context.Context, designName string, limit int) ([]Compilation, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, design_name, seq, design_hash, dialect, query
		FROM (
			SELECT * FROM compilations
			WHERE design_name = ?
			ORDER BY seq DESC, id COLLATE BINARY DESC
			LIMIT ?
		)
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, designName, limit)
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return scanCompilations(rows)
}

// FindCompilation returns the most recent compilation of any design whose
// content hash and dialect match. ok is false when there is none.
func (s *Store) FindCompilation(ctx context.Context, designHash, dialect string) (c Compilation, ok bool, err error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, design_name, seq, design_hash, dialect, query
		FROM compilations
		WHERE design_hash = ? AND dialect = ?
		ORDER BY seq DESC, id COLLATE BINARY DESC
		LIMIT 1
	`, designHash, dialect)
	if err != nil {
		return Compilation{}, false, fmt.Errorf("find compilation: %w", err)
	}
	found, err := scanCompilations(rows)
	if err != nil {
		return Compilation{}, false, err
	}
	if len(found) == 0 {
		return Compilation{}, false, nil
	}
	return found[0], true, nil
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

func scanCompilations(rows rowScanner) ([]Compilation, error) {
	defer rows.Close()

	out := []Compilation{}
	for rows.Next() {
		var c Compilation
		if err := rows.Scan(&c.ID, &c.DesignName, &c.Seq, &c.DesignHash, &c.Dialect, &c.Query); err != nil {
			return nil, fmt.Errorf("scan compilation: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate compilations: %w", err)
	}
	return out, nil
}
