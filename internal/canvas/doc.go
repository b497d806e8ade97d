// Package canvas implements the in-memory model behind the join builder.
//
// ARCHITECTURE:
//
// Three components share one registry of placed instances:
//
//	Registry  placed relation instances, in placement order
//	Graph     directed field-to-field connections, in creation order
//	Session   the two-click "pick source field / pick target field" gesture
//
// Builder owns one of each and exposes the gesture operations
// (PlaceRelation, ActivateField, SetJoinKind, ...). Callers mutate state
// only through these operations so that cascades hold: removing an
// instance removes every connection touching it and resets a session
// armed on it.
//
// INVARIANTS:
//   - No connection references a missing instance
//   - No connection joins an instance to itself
//   - Every connection endpoint names a column of its instance's relation
//   - A rejected operation leaves Registry, Graph and Session unchanged
//
// Concurrency: none of these types are safe for concurrent use. The engine
// package serializes gestures onto a single writer.
package canvas
