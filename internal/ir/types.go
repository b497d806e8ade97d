package ir

import (
	"fmt"
	"strings"
)

// RelationDefinition is a read-only relation supplied by the catalog.
// Column order is significant: it is the projection order of generated queries.
type RelationDefinition struct {
	ID          string             `json:"id" yaml:"id"`
	Name        string             `json:"name" yaml:"name"`
	Description string             `json:"description" yaml:"description"`
	Columns     []ColumnDefinition `json:"columns" yaml:"columns"`
}

// ColumnDefinition describes one column of a relation.
type ColumnDefinition struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Type         string `json:"type" yaml:"type"`
	IsPrimaryKey bool   `json:"is_primary_key" yaml:"is_primary_key"`
}

// Column returns the column with the given name.
func (r *RelationDefinition) Column(name string) (ColumnDefinition, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnDefinition{}, false
}

// HasColumn reports whether the relation defines a column with the given name.
func (r *RelationDefinition) HasColumn(name string) bool {
	_, ok := r.Column(name)
	return ok
}

// RelationLookup resolves relation ids to definitions.
// Implemented by catalog.Catalog.
type RelationLookup interface {
	Lookup(relationID string) (*RelationDefinition, bool)
}

// Position is a canvas coordinate. It is consumed, never produced, by the core.
type Position struct {
	X int64 `json:"x" yaml:"x"`
	Y int64 `json:"y" yaml:"y"`
}

// PlacedInstance is one on-canvas occurrence of a relation.
// The same RelationID may appear on many instances; InstanceID is the unit
// of graph identity.
type PlacedInstance struct {
	InstanceID string   `json:"instance_id" yaml:"instance_id"`
	RelationID string   `json:"relation_id" yaml:"relation_id"`
	Position   Position `json:"position" yaml:"position"`
}

// JoinKind governs how the two relations of a connection are combined.
type JoinKind string

const (
	JoinInner JoinKind = "INNER"
	JoinLeft  JoinKind = "LEFT"
	JoinRight JoinKind = "RIGHT"
	JoinFull  JoinKind = "FULL"
)

// JoinKinds lists every join kind in canonical order.
var JoinKinds = []JoinKind{JoinInner, JoinLeft, JoinRight, JoinFull}

// Valid reports whether k is one of the four join kinds.
func (k JoinKind) Valid() bool {
	switch k {
	case JoinInner, JoinLeft, JoinRight, JoinFull:
		return true
	}
	return false
}

// Phrase returns the kind's canonical SQL phrase, e.g. "LEFT JOIN".
func (k JoinKind) Phrase() string {
	return string(k) + " JOIN"
}

// ParseJoinKind parses a join kind case-insensitively.
// Accepts both the bare kind ("left") and the phrase ("LEFT JOIN").
func ParseJoinKind(s string) (JoinKind, error) {
	k := JoinKind(strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(s)), " JOIN"))
	if !k.Valid() {
		return "", fmt.Errorf("invalid join kind %q (must be INNER, LEFT, RIGHT or FULL)", s)
	}
	return k, nil
}

// Connection is a directed field-to-field link between two placed instances.
// SourceInstanceID never equals TargetInstanceID.
type Connection struct {
	ID               string   `json:"id" yaml:"id"`
	SourceInstanceID string   `json:"source_instance_id" yaml:"source_instance_id"`
	SourceColumn     string   `json:"source_column" yaml:"source_column"`
	TargetInstanceID string   `json:"target_instance_id" yaml:"target_instance_id"`
	TargetColumn     string   `json:"target_column" yaml:"target_column"`
	JoinKind         JoinKind `json:"join_kind" yaml:"join_kind"`
}

// Touches reports whether either endpoint references instanceID.
func (c Connection) Touches(instanceID string) bool {
	return c.SourceInstanceID == instanceID || c.TargetInstanceID == instanceID
}

// SessionState is the state of the two-click connection gesture.
// The zero value is Idle.
type SessionState struct {
	Armed            bool   `json:"armed"`
	SourceInstanceID string `json:"source_instance_id,omitempty"`
	SourceColumn     string `json:"source_column,omitempty"`
}

// Idle reports whether no gesture is in progress.
func (s SessionState) Idle() bool { return !s.Armed }

// String renders "idle" or "armed(<instance>.<column>)".
func (s SessionState) String() string {
	if !s.Armed {
		return "idle"
	}
	return fmt.Sprintf("armed(%s.%s)", s.SourceInstanceID, s.SourceColumn)
}

// Design is a plain-data snapshot of a canvas: instances in placement order
// and connections in creation order. The session is never part of a design.
type Design struct {
	Name        string           `json:"name" yaml:"name"`
	Instances   []PlacedInstance `json:"instances" yaml:"instances"`
	Connections []Connection     `json:"connections" yaml:"connections"`
}
