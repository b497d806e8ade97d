package querysql

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/querycanvas/internal/ir"
	"github.com/roach88/querycanvas/internal/queryir"
)

// EmptyCanvasText is returned for a canvas with no instances. It is a
// display state, not an error.
const EmptyCanvasText = "-- no relations selected"

// SQLCompiler lowers canvas state to QueryIR and renders it as SQL text.
//
// Output is deterministic: instances are projected in placement order,
// columns in relation definition order, joins in connection creation
// order. Each JOIN introduces the connection's target instance.
type SQLCompiler struct {
	dialect   Dialect
	aliasMode AliasMode
	indent    string
}

// Option configures an SQLCompiler.
type Option func(*SQLCompiler)

// WithDialect sets identifier quoting. Default: DialectPlain.
func WithDialect(d Dialect) Option {
	return func(c *SQLCompiler) {
		c.dialect = d
	}
}

// WithAliasMode sets instance aliasing. Default: AliasAuto.
func WithAliasMode(m AliasMode) Option {
	return func(c *SQLCompiler) {
		c.aliasMode = m
	}
}

// NewSQLCompiler creates a compiler. With no options it emits plain
// identifiers and aliases only repeated relations.
func NewSQLCompiler(opts ...Option) *SQLCompiler {
	c := &SQLCompiler{
		dialect:   DialectPlain,
		aliasMode: AliasAuto,
		indent:    "    ",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compile maps (instances, connections) to query text.
//
//   - no instances: EmptyCanvasText
//   - one instance: SELECT * FROM <relation>
//   - otherwise: qualified projection, FROM the first instance, one JOIN
//     line per connection
//
// Compile is total over a structurally valid canvas. When none of the
// placed relations declares a column the projection falls back to
// SELECT *. An instance whose relation is missing from relations, or a
// connection to an instance not in instances, means the canvas and
// catalog are out of sync: Compile panics.
func (c *SQLCompiler) Compile(instances []ir.PlacedInstance, connections []ir.Connection, relations ir.RelationLookup) string {
	q, ok := c.Build(instances, connections, relations)
	if !ok {
		return EmptyCanvasText
	}
	text, err := c.Render(q)
	if err != nil {
		// Build only produces renderable queries.
		panic(fmt.Sprintf("querysql: render built query: %v", err))
	}
	return text
}

// Build lowers canvas state to a queryir.Select. ok is false for an empty
// canvas. Panics on the same precondition violations as Compile.
func (c *SQLCompiler) Build(instances []ir.PlacedInstance, connections []ir.Connection, relations ir.RelationLookup) (sel queryir.Select, ok bool) {
	if len(instances) == 0 {
		return queryir.Select{}, false
	}

	if len(instances) == 1 {
		// A lone instance is never aliased, whatever the alias mode.
		sel.From = queryir.TableRef{Relation: mustLookup(relations, instances[0]).Name}
		sel.Star = true
		return sel, true
	}

	refs := c.tableRefs(instances, relations)
	sel.From = refs[instances[0].InstanceID]

	for _, inst := range instances {
		rel := mustLookup(relations, inst)
		qualifier := refs[inst.InstanceID].Qualifier()
		for _, col := range rel.Columns {
			sel.Columns = append(sel.Columns, queryir.ColumnRef{Table: qualifier, Column: col.Name})
		}
	}

	for _, conn := range connections {
		src, ok := refs[conn.SourceInstanceID]
		if !ok {
			panic(fmt.Sprintf("querysql: connection %q references unknown instance %q", conn.ID, conn.SourceInstanceID))
		}
		tgt, ok := refs[conn.TargetInstanceID]
		if !ok {
			panic(fmt.Sprintf("querysql: connection %q references unknown instance %q", conn.ID, conn.TargetInstanceID))
		}
		kind := conn.JoinKind
		if kind == "" {
			kind = ir.JoinInner
		}
		sel.Joins = append(sel.Joins, queryir.Join{
			Kind:  kind,
			Table: tgt,
			On: queryir.ColumnEquals{
				Left:  queryir.ColumnRef{Table: src.Qualifier(), Column: conn.SourceColumn},
				Right: queryir.ColumnRef{Table: tgt.Qualifier(), Column: conn.TargetColumn},
			},
		})
	}

	// Only relations without columns: nothing to enumerate.
	sel.Star = len(sel.Columns) == 0
	return sel, true
}

// tableRefs assigns every instance its table reference. Under AliasAuto a
// relation placed n > 1 times gets aliases <name>_1 .. <name>_n in
// placement order. An alias never reuses a qualifier already in the
// query, compared case-insensitively: if users_1 is itself a placed
// relation, the repeated users instances become users_2, users_3, ...
func (c *SQLCompiler) tableRefs(instances []ir.PlacedInstance, relations ir.RelationLookup) map[string]queryir.TableRef {
	counts := make(map[string]int, len(instances))
	for _, inst := range instances {
		counts[mustLookup(relations, inst).Name]++
	}

	aliased := func(name string) bool {
		switch c.aliasMode {
		case AliasAlways:
			return true
		case AliasNever:
			return false
		default:
			return counts[name] > 1
		}
	}

	taken := make(map[string]bool, len(counts))
	for name := range counts {
		if !aliased(name) {
			taken[strings.ToLower(name)] = true
		}
	}

	next := make(map[string]int, len(counts))
	refs := make(map[string]queryir.TableRef, len(instances))
	for _, inst := range instances {
		name := mustLookup(relations, inst).Name
		ref := queryir.TableRef{Relation: name}
		if aliased(name) {
			for {
				next[name]++
				alias := name + "_" + strconv.Itoa(next[name])
				if !taken[strings.ToLower(alias)] {
					ref.Alias = alias
					taken[strings.ToLower(alias)] = true
					break
				}
			}
		}
		refs[inst.InstanceID] = ref
	}
	return refs
}

func mustLookup(relations ir.RelationLookup, inst ir.PlacedInstance) *ir.RelationDefinition {
	rel, ok := relations.Lookup(inst.RelationID)
	if !ok {
		panic(fmt.Sprintf("querysql: instance %q references relation %q missing from the catalog", inst.InstanceID, inst.RelationID))
	}
	return rel
}

// Render converts a query to SQL text. Lines are separated by "\n"; no
// terminator is emitted.
func (c *SQLCompiler) Render(q queryir.Query) (string, error) {
	switch query := q.(type) {
	case queryir.Select:
		return c.renderSelect(query)
	case *queryir.Select:
		if query == nil {
			return "", fmt.Errorf("cannot render nil query")
		}
		return c.renderSelect(*query)
	case nil:
		return "", fmt.Errorf("cannot render nil query")
	default:
		return "", fmt.Errorf("unsupported query type: %T", q)
	}
}

func (c *SQLCompiler) renderSelect(sel queryir.Select) (string, error) {
	if sel.From.Relation == "" {
		return "", fmt.Errorf("select has no FROM relation")
	}

	var lines []string
	if sel.Star {
		lines = append(lines, "SELECT * FROM "+c.table(sel.From))
	} else {
		if len(sel.Columns) == 0 {
			return "", fmt.Errorf("select has no columns")
		}
		cols := make([]string, len(sel.Columns))
		for i, col := range sel.Columns {
			cols[i] = c.indent + c.column(col)
		}
		lines = append(lines, "SELECT", strings.Join(cols, ",\n"), "FROM "+c.table(sel.From))
	}

	for i, join := range sel.Joins {
		if !join.Kind.Valid() {
			return "", fmt.Errorf("join %d: invalid join kind %q", i+1, join.Kind)
		}
		on, err := c.predicate(join.On)
		if err != nil {
			return "", fmt.Errorf("join %d: %w", i+1, err)
		}
		lines = append(lines, fmt.Sprintf("%s %s ON %s", join.Kind.Phrase(), c.table(join.Table), on))
	}

	return strings.Join(lines, "\n"), nil
}

func (c *SQLCompiler) predicate(p queryir.Predicate) (string, error) {
	switch pred := p.(type) {
	case queryir.ColumnEquals:
		return c.column(pred.Left) + " = " + c.column(pred.Right), nil
	case *queryir.ColumnEquals:
		return c.column(pred.Left) + " = " + c.column(pred.Right), nil
	case queryir.And:
		return c.and(pred)
	case *queryir.And:
		return c.and(*pred)
	case nil:
		return "", fmt.Errorf("missing ON condition")
	default:
		return "", fmt.Errorf("unsupported predicate type: %T", p)
	}
}

func (c *SQLCompiler) and(a queryir.And) (string, error) {
	if len(a.Predicates) == 0 {
		return "", fmt.Errorf("empty AND")
	}
	parts := make([]string, len(a.Predicates))
	for i, sub := range a.Predicates {
		s, err := c.predicate(sub)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return strings.Join(parts, " AND "), nil
}

func (c *SQLCompiler) table(t queryir.TableRef) string {
	if t.Alias == "" {
		return c.dialect.quote(t.Relation)
	}
	return c.dialect.quote(t.Relation) + " AS " + c.dialect.quote(t.Alias)
}

func (c *SQLCompiler) column(ref queryir.ColumnRef) string {
	return c.dialect.quote(ref.Table) + "." + c.dialect.quote(ref.Column)
}

// Compile compiles with the default compiler.
func Compile(instances []ir.PlacedInstance, connections []ir.Connection, relations ir.RelationLookup) string {
	return NewSQLCompiler().Compile(instances, connections, relations)
}
