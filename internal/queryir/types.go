package queryir

import "github.com/roach88/querycanvas/internal/ir"

// Query represents an abstract query. Sealed: only Select implements it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a join condition. Sealed: ColumnEquals and And.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// TableRef names a relation in FROM or JOIN, optionally aliased.
type TableRef struct {
	Relation string // Relation name as it appears in SQL
	Alias    string // Empty when the relation is referenced by its name
}

// Qualifier is the name columns of this table are qualified with.
func (t TableRef) Qualifier() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Relation
}

// ColumnRef is a qualified column reference: <Table>.<Column>.
// Table holds the qualifier (alias or relation name), not the relation id.
type ColumnRef struct {
	Table  string
	Column string
}

// Select is the whole query a canvas compiles to.
//
// Semantics:
//
//	SELECT <Star | Columns> FROM <From> <Joins...>
//
// Example:
//
//	Select{
//	  Columns: []ColumnRef{{"users", "id"}, {"orders", "user_id"}},
//	  From:    TableRef{Relation: "users"},
//	  Joins: []Join{{
//	    Kind:  ir.JoinLeft,
//	    Table: TableRef{Relation: "orders"},
//	    On:    ColumnEquals{Left: ColumnRef{"users", "id"}, Right: ColumnRef{"orders", "user_id"}},
//	  }},
//	}
//
// Joins are kept in the order given; each introduces Join.Table.
type Select struct {
	Star    bool        // SELECT * (Columns ignored)
	Columns []ColumnRef // Projection in order
	From    TableRef    // Base table
	Joins   []Join      // JOIN clauses in order
}

func (Select) queryNode() {}

// Join is one JOIN clause.
type Join struct {
	Kind  ir.JoinKind
	Table TableRef  // Table introduced by this join
	On    Predicate // Join condition (required)
}

// ColumnEquals compares two columns: Left = Right.
type ColumnEquals struct {
	Left  ColumnRef
	Right ColumnRef
}

func (ColumnEquals) predicateNode() {}

// And is a conjunction. An empty And is invalid.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Tables returns the qualifiers introduced by the query, in order.
func (s Select) Tables() []string {
	out := make([]string, 0, len(s.Joins)+1)
	out = append(out, s.From.Qualifier())
	for _, j := range s.Joins {
		out = append(out, j.Table.Qualifier())
	}
	return out
}
