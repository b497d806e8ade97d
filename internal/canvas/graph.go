package canvas

import (
	"fmt"

	"github.com/roach88/querycanvas/internal/ir"
)

// Graph holds the directed field-to-field connections between placed
// instances, in creation order. Creation order is JOIN order.
//
// Duplicates are allowed: connecting the same pair of fields twice yields
// two independent connections.
type Graph struct {
	registry    *Registry
	relations   ir.RelationLookup
	ids         IDGenerator
	connections []ir.Connection
}

// NewGraph creates an empty graph over registry. Removing an instance from
// the registry removes every connection touching it.
func NewGraph(registry *Registry, relations ir.RelationLookup, gen IDGenerator) *Graph {
	g := &Graph{
		registry:  registry,
		relations: relations,
		ids:       gen,
	}
	registry.OnRemove(g.detach)
	return g
}

// AddConnection appends a connection with join kind INNER.
//
// Checks run in this order and the first failure wins:
//  1. source and target are the same instance (SAME_INSTANCE)
//  2. either instance is not on the canvas (UNKNOWN_INSTANCE)
//  3. either column is not defined by its relation (UNKNOWN_COLUMN)
func (g *Graph) AddConnection(sourceInstanceID, sourceColumn, targetInstanceID, targetColumn string) (ir.Connection, error) {
	c := ir.Connection{
		SourceInstanceID: sourceInstanceID,
		SourceColumn:     sourceColumn,
		TargetInstanceID: targetInstanceID,
		TargetColumn:     targetColumn,
		JoinKind:         ir.JoinInner,
	}
	if err := g.check(c); err != nil {
		return ir.Connection{}, err
	}

	c.ID = g.ids.Generate()
	for g.indexOf(c.ID) >= 0 {
		c.ID = g.ids.Generate()
	}
	g.connections = append(g.connections, c)
	return c, nil
}

// insert appends a connection with a caller-chosen id (design restore).
func (g *Graph) insert(c ir.Connection) error {
	if c.JoinKind == "" {
		c.JoinKind = ir.JoinInner
	}
	if !c.JoinKind.Valid() {
		return &Error{
			Code:         CodeInvalidJoinKind,
			Message:      fmt.Sprintf("connection %q: invalid join kind %q", c.ID, c.JoinKind),
			ConnectionID: c.ID,
		}
	}
	if g.indexOf(c.ID) >= 0 {
		return &Error{
			Code:         CodeDuplicateID,
			Message:      "connection id " + c.ID + " is used twice",
			ConnectionID: c.ID,
		}
	}
	if err := g.check(c); err != nil {
		return err
	}
	g.connections = append(g.connections, c)
	return nil
}

// check validates the endpoints of c without mutating anything.
func (g *Graph) check(c ir.Connection) error {
	if c.SourceInstanceID == c.TargetInstanceID {
		return newSameInstanceError(c.SourceInstanceID)
	}
	for _, id := range []string{c.SourceInstanceID, c.TargetInstanceID} {
		if !g.registry.Has(id) {
			return newUnknownInstanceError(id)
		}
	}
	if err := g.checkEndpoint(c.SourceInstanceID, c.SourceColumn); err != nil {
		return err
	}
	return g.checkEndpoint(c.TargetInstanceID, c.TargetColumn)
}

// checkEndpoint verifies that instanceID is placed and its relation
// defines column.
func (g *Graph) checkEndpoint(instanceID, column string) error {
	inst, ok := g.registry.Get(instanceID)
	if !ok {
		return newUnknownInstanceError(instanceID)
	}
	rel, ok := g.relations.Lookup(inst.RelationID)
	if !ok {
		return newUnknownRelationError(inst.RelationID)
	}
	if !rel.HasColumn(column) {
		return newUnknownColumnError(instanceID, rel.ID, column)
	}
	return nil
}

// RemoveConnection deletes a connection. Idempotent: the return value
// reports whether anything was removed.
func (g *Graph) RemoveConnection(connectionID string) bool {
	i := g.indexOf(connectionID)
	if i < 0 {
		return false
	}
	g.connections = append(g.connections[:i], g.connections[i+1:]...)
	return true
}

// SetJoinKind changes the join kind of a connection in place.
func (g *Graph) SetJoinKind(connectionID string, kind ir.JoinKind) error {
	i := g.indexOf(connectionID)
	if i < 0 {
		return newUnknownConnectionError(connectionID)
	}
	if !kind.Valid() {
		return &Error{
			Code:         CodeInvalidJoinKind,
			Message:      fmt.Sprintf("invalid join kind %q", kind),
			ConnectionID: connectionID,
		}
	}
	g.connections[i].JoinKind = kind
	return nil
}

// ConnectionsTouching returns, in creation order, every connection whose
// source or target is instanceID.
func (g *Graph) ConnectionsTouching(instanceID string) []ir.Connection {
	out := []ir.Connection{}
	for _, c := range g.connections {
		if c.Touches(instanceID) {
			out = append(out, c)
		}
	}
	return out
}

// Get returns the connection with the given id.
func (g *Graph) Get(connectionID string) (ir.Connection, bool) {
	i := g.indexOf(connectionID)
	if i < 0 {
		return ir.Connection{}, false
	}
	return g.connections[i], true
}

// List returns connections in creation order. The slice is a copy.
func (g *Graph) List() []ir.Connection {
	out := make([]ir.Connection, len(g.connections))
	copy(out, g.connections)
	return out
}

// Len returns the number of connections.
func (g *Graph) Len() int {
	return len(g.connections)
}

// detach removes every connection touching instanceID.
func (g *Graph) detach(instanceID string) {
	kept := g.connections[:0]
	for _, c := range g.connections {
		if !c.Touches(instanceID) {
			kept = append(kept, c)
		}
	}
	clear(g.connections[len(kept):])
	g.connections = kept
}

func (g *Graph) reset() {
	g.connections = nil
}

func (g *Graph) indexOf(connectionID string) int {
	for i, c := range g.connections {
		if c.ID == connectionID {
			return i
		}
	}
	return -1
}
