// Package queryir provides the abstract query produced from a canvas.
//
// The IR sits between the canvas graph and text rendering:
//
//	[canvas instances + connections] → [Query IR] → [SQL text]
//
// It covers exactly what a canvas can express: a projection (either * or an
// ordered column list), one base table, and an ordered list of joins whose
// ON clauses compare columns. There are no filters, groupings or orderings.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so renderers can switch
// exhaustively:
//
//	switch q := query.(type) {
//	case Select:
//	    // Handle select
//	case *Select:
//	    // Handle select
//	}
//
// Validate reports structural oddities (a JOIN that reintroduces a table,
// an ON clause referencing a table that is not in scope yet, columns of a
// table that is never joined) and dialect portability of outer joins.
// Warnings never block rendering: the canvas compiles whatever the user drew.
package queryir
