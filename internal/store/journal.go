package store

import (
	"context"
	"fmt"

	"github.com/roach88/querycanvas/internal/canvas"
	"github.com/roach88/querycanvas/internal/engine"
)

// AppendGestures appends journal entries for a design in one transaction.
//
// Uses ON CONFLICT DO NOTHING on (design_name, seq): re-appending a journal
// that was already persisted is a no-op, so callers may flush the full
// engine journal each time.
func (s *Store) AppendGestures(ctx context.Context, designName string, entries []engine.JournalEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append gestures: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO gestures
		(design_name, seq, kind, payload, instance_id, connection_id, error_code)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(design_name, seq) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("append gestures: prepare: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		kind, payload, err := engine.MarshalGesture(entry.Gesture)
		if err != nil {
			return fmt.Errorf("append gestures: seq %d: %w", entry.Seq, err)
		}
		_, err = stmt.ExecContext(ctx,
			designName,
			entry.Seq,
			string(kind),
			string(payload),
			entry.InstanceID,
			entry.ConnectionID,
			string(entry.ErrorCode),
		)
		if err != nil {
			return fmt.Errorf("append gestures: seq %d: %w", entry.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append gestures: commit: %w", err)
	}
	return nil
}

// ReadJournal returns a design's journal in seq order.
// Returns an empty slice (not nil) if nothing was recorded.
func (s *Store) ReadJournal(ctx context.Context, designName string) ([]engine.JournalEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, kind, payload, instance_id, connection_id, error_code
		FROM gestures
		WHERE design_name = ?
		ORDER BY seq ASC
	`, designName)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	defer rows.Close()

	entries := []engine.JournalEntry{}
	for rows.Next() {
		var (
			entry     engine.JournalEntry
			kind      string
			payload   string
			errorCode string
		)
		if err := rows.Scan(&entry.Seq, &kind, &payload, &entry.InstanceID, &entry.ConnectionID, &errorCode); err != nil {
			return nil, fmt.Errorf("scan gesture: %w", err)
		}
		g, err := engine.UnmarshalGesture(engine.GestureKind(kind), []byte(payload))
		if err != nil {
			return nil, fmt.Errorf("read journal: seq %d: %w", entry.Seq, err)
		}
		entry.Gesture = g
		entry.ErrorCode = canvas.ErrorCode(errorCode)
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate gestures: %w", err)
	}

	return entries, nil
}

// LastSeq returns the highest journal seq recorded for a design, or 0.
// Used to resume an engine clock with engine.NewClockAt.
func (s *Store) LastSeq(ctx context.Context, designName string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM gestures WHERE design_name = ?
	`, designName).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}
