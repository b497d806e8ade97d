package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/roach88/querycanvas/internal/ir"
)

// DesignInfo summarizes one saved design.
type DesignInfo struct {
	Name            string `json:"name"`
	Hash            string `json:"hash"`
	Revision        int64  `json:"revision"`
	InstanceCount   int    `json:"instance_count"`
	ConnectionCount int    `json:"connection_count"`
	ToolVersion     string `json:"tool_version"`
}

// storedDesign mirrors the canonical encoding of ir.Design.
type storedDesign struct {
	Version     string              `json:"version"`
	Instances   []ir.PlacedInstance `json:"instances"`
	Connections []ir.Connection     `json:"connections"`
}

// SaveDesign writes design under name, replacing any previous revision.
// The stored content is canonical JSON; the returned info carries its hash.
func (s *Store) SaveDesign(ctx context.Context, name string, design ir.Design) (DesignInfo, error) {
	if name == "" {
		return DesignInfo{}, fmt.Errorf("save design: name is required")
	}

	content, err := ir.MarshalCanonical(design)
	if err != nil {
		return DesignInfo{}, fmt.Errorf("save design %q: %w", name, err)
	}
	hash, err := ir.DesignHash(design)
	if err != nil {
		return DesignInfo{}, fmt.Errorf("save design %q: %w", name, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO designs
		(name, content, content_hash, design_version, tool_version, instance_count, connection_count)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			content          = excluded.content,
			content_hash     = excluded.content_hash,
			design_version   = excluded.design_version,
			tool_version     = excluded.tool_version,
			instance_count   = excluded.instance_count,
			connection_count = excluded.connection_count,
			revision         = designs.revision + 1
	`,
		name,
		string(content),
		hash,
		ir.DesignVersion,
		ir.ToolVersion,
		len(design.Instances),
		len(design.Connections),
	)
	if err != nil {
		return DesignInfo{}, fmt.Errorf("save design %q: %w", name, err)
	}

	return s.designInfo(ctx, name)
}

// LoadDesign reads the design saved under name.
// Returns an error wrapping sql.ErrNoRows if there is none, and an error
// if the stored content no longer matches its hash.
func (s *Store) LoadDesign(ctx context.Context, name string) (ir.Design, error) {
	var content, hash, version string
	err := s.db.QueryRowContext(ctx, `
		SELECT content, content_hash, design_version
		FROM designs
		WHERE name = ?
	`, name).Scan(&content, &hash, &version)
	if err != nil {
		return ir.Design{}, fmt.Errorf("load design %q: %w", name, err)
	}

	if version != ir.DesignVersion {
		return ir.Design{}, fmt.Errorf("load design %q: unsupported design version %q", name, version)
	}

	design, err := unmarshalDesign(name, content)
	if err != nil {
		return ir.Design{}, err
	}

	got, err := ir.DesignHash(design)
	if err != nil {
		return ir.Design{}, fmt.Errorf("load design %q: %w", name, err)
	}
	if got != hash {
		return ir.Design{}, fmt.Errorf("load design %q: content hash mismatch (stored %s, computed %s)", name, hash, got)
	}

	return design, nil
}

// IsNotFound reports whether err is a missing-record error from the store.
func IsNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// ListDesigns returns every saved design ordered by name.
// Returns an empty slice (not nil) when nothing is saved.
func (s *Store) ListDesigns(ctx context.Context) ([]DesignInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, content_hash, revision, instance_count, connection_count, tool_version
		FROM designs
		ORDER BY name COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list designs: %w", err)
	}
	defer rows.Close()

	infos := []DesignInfo{}
	for rows.Next() {
		var info DesignInfo
		if err := rows.Scan(&info.Name, &info.Hash, &info.Revision, &info.InstanceCount, &info.ConnectionCount, &info.ToolVersion); err != nil {
			return nil, fmt.Errorf("scan design: %w", err)
		}
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate designs: %w", err)
	}

	return infos, nil
}

// DeleteDesign removes a design with its journal and compile history.
// Returns false if nothing was saved under name.
func (s *Store) DeleteDesign(ctx context.Context, name string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("delete design %q: begin: %w", name, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM designs WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete design %q: %w", name, err)
	}
	for _, table := range []string{"gestures", "compilations"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE design_name = ?", name); err != nil {
			return false, fmt.Errorf("delete design %q: %s: %w", name, table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("delete design %q: commit: %w", name, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete design %q: %w", name, err)
	}
	return n > 0, nil
}

func (s *Store) designInfo(ctx context.Context, name string) (DesignInfo, error) {
	info := DesignInfo{Name: name}
	err := s.db.QueryRowContext(ctx, `
		SELECT content_hash, revision, instance_count, connection_count, tool_version
		FROM designs
		WHERE name = ?
	`, name).Scan(&info.Hash, &info.Revision, &info.InstanceCount, &info.ConnectionCount, &info.ToolVersion)
	if err != nil {
		return DesignInfo{}, fmt.Errorf("read design %q: %w", name, err)
	}
	return info, nil
}

func unmarshalDesign(name, content string) (ir.Design, error) {
	var stored storedDesign
	if err := json.Unmarshal([]byte(content), &stored); err != nil {
		return ir.Design{}, fmt.Errorf("unmarshal design %q: %w", name, err)
	}

	design := ir.Design{
		Name:        name,
		Instances:   stored.Instances,
		Connections: stored.Connections,
	}
	if design.Instances == nil {
		design.Instances = []ir.PlacedInstance{}
	}
	if design.Connections == nil {
		design.Connections = []ir.Connection{}
	}
	return design, nil
}
