package queryir

import (
	"fmt"
	"slices"

	"github.com/roach88/querycanvas/internal/ir"
)

// ValidationResult contains structural and portability analysis of a query.
type ValidationResult struct {
	// IsPortable indicates that no warnings were raised: the query is
	// unambiguous and runs unchanged on every supported engine.
	IsPortable bool

	// Warnings lists every issue found, in query order.
	Warnings []string
}

// Engines lacking an outer join kind. SQLite supports RIGHT and FULL only
// from 3.39.
var unsupportedJoins = map[ir.JoinKind][]string{
	ir.JoinRight: {"SQLite < 3.39"},
	ir.JoinFull:  {"MySQL", "SQLite < 3.39"},
}

// Validate checks a query for ambiguity and portability issues.
//
// Rules:
//  1. Each JOIN introduces a qualifier not already in scope
//  2. ON clauses reference only qualifiers in scope at that JOIN
//  3. Projection columns belong to qualifiers the query introduces
//  4. No two JOIN clauses are identical
//  5. RIGHT and FULL joins are flagged for engines lacking them
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	v.validateQuery(query)

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
	scope    []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case nil:
		v.addWarning("nil query")
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addWarning("nil query")
			return
		}
		v.validateSelect(*query)
	default:
		v.addWarning("unknown query type: %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	v.scope = []string{sel.From.Qualifier()}

	for i, join := range sel.Joins {
		q := join.Table.Qualifier()
		if slices.Contains(v.scope, q) {
			v.addWarning("join %d: %q is already in scope; qualify repeated relations with an alias", i+1, q)
		}
		v.scope = append(v.scope, q)

		if join.On == nil {
			v.addWarning("join %d: missing ON condition", i+1)
		} else {
			v.validatePredicate(i+1, join.On)
		}

		for j := 0; j < i; j++ {
			if joinsEqual(sel.Joins[j], join) {
				v.addWarning("join %d duplicates join %d", i+1, j+1)
				break
			}
		}

		for _, engine := range unsupportedJoins[join.Kind] {
			v.addWarning("join %d: %s is not supported by %s", i+1, join.Kind.Phrase(), engine)
		}
	}

	if sel.Star {
		return
	}
	reported := map[string]bool{}
	for _, col := range sel.Columns {
		if !slices.Contains(v.scope, col.Table) && !reported[col.Table] {
			reported[col.Table] = true
			v.addWarning("columns of %q are selected but %q is never joined", col.Table, col.Table)
		}
	}
}

func (v *validator) validatePredicate(joinNum int, p Predicate) {
	switch pred := p.(type) {
	case ColumnEquals:
		v.validateColumnEquals(joinNum, pred)
	case *ColumnEquals:
		v.validateColumnEquals(joinNum, *pred)
	case And:
		v.validateAnd(joinNum, pred)
	case *And:
		v.validateAnd(joinNum, *pred)
	default:
		v.addWarning("join %d: unknown predicate type: %T", joinNum, p)
	}
}

func (v *validator) validateColumnEquals(joinNum int, eq ColumnEquals) {
	for _, ref := range []ColumnRef{eq.Left, eq.Right} {
		if !slices.Contains(v.scope, ref.Table) {
			v.addWarning("join %d: ON references %s.%s before %q is introduced", joinNum, ref.Table, ref.Column, ref.Table)
		}
	}
}

func (v *validator) validateAnd(joinNum int, and And) {
	if len(and.Predicates) == 0 {
		v.addWarning("join %d: empty AND", joinNum)
	}
	for _, sub := range and.Predicates {
		v.validatePredicate(joinNum, sub)
	}
}

// joinsEqual compares two joins structurally.
func joinsEqual(a, b Join) bool {
	if a.Kind != b.Kind || a.Table != b.Table {
		return false
	}
	ae, aok := a.On.(ColumnEquals)
	be, bok := b.On.(ColumnEquals)
	return aok && bok && ae == be
}
