package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/querycanvas/internal/ir"
)

// CompileRelation parses a CUE value into a RelationDefinition.
// Uses the CUE SDK's Go API directly.
//
// The value is the relation struct itself; its label becomes the relation id:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`relation: users: { columns: [{name: "id", type: "integer"}] }`)
//	rel, err := CompileRelation(v.LookupPath(cue.ParsePath("relation.users")))
//
// Column order follows the list order of `columns`. Each column id is
// "<relation id>.<column name>". Display names are NFC normalized.
func CompileRelation(v cue.Value) (*ir.RelationDefinition, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	rel := &ir.RelationDefinition{}

	selectors := v.Path().Selectors()
	if len(selectors) > 0 {
		rel.ID = selectors[len(selectors)-1].String()
	}
	if rel.ID == "" {
		return nil, &CompileError{
			Field:   "relation",
			Message: "relation must be declared under a label (relation: <id>: {...})",
			Pos:     v.Pos(),
		}
	}

	name, err := optionalString(v, "name")
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = rel.ID
	}
	rel.Name = norm.NFC.String(name)

	if rel.Description, err = optionalString(v, "description"); err != nil {
		return nil, err
	}

	rel.Columns, err = parseColumns(v, rel.ID)
	if err != nil {
		return nil, err
	}

	return rel, nil
}

// parseColumns parses the ordered `columns` list.
func parseColumns(v cue.Value, relationID string) ([]ir.ColumnDefinition, error) {
	colsVal := v.LookupPath(cue.ParsePath("columns"))
	if !colsVal.Exists() {
		return nil, &CompileError{
			Field:   "columns",
			Message: "columns is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := colsVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "columns",
			Message: "columns must be a list",
			Pos:     colsVal.Pos(),
		}
	}

	var columns []ir.ColumnDefinition
	for i := 0; iter.Next(); i++ {
		col, err := parseColumn(iter.Value(), relationID, i)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// parseColumn parses a single {name, type, primary_key?} entry.
func parseColumn(v cue.Value, relationID string, index int) (ir.ColumnDefinition, error) {
	field := fmt.Sprintf("columns[%d]", index)

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return ir.ColumnDefinition{}, &CompileError{
			Field:   field + ".name",
			Message: "column name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return ir.ColumnDefinition{}, formatCUEError(err)
	}
	name = norm.NFC.String(name)

	typeVal := v.LookupPath(cue.ParsePath("type"))
	if !typeVal.Exists() {
		return ir.ColumnDefinition{}, &CompileError{
			Field:   field + ".type",
			Message: fmt.Sprintf("column %q: type is required", name),
			Pos:     v.Pos(),
		}
	}
	colType, err := typeVal.String()
	if err != nil {
		return ir.ColumnDefinition{}, formatCUEError(err)
	}

	var isPK bool
	if pkVal := v.LookupPath(cue.ParsePath("primary_key")); pkVal.Exists() {
		if isPK, err = pkVal.Bool(); err != nil {
			return ir.ColumnDefinition{}, formatCUEError(err)
		}
	}

	return ir.ColumnDefinition{
		ID:           relationID + "." + name,
		Name:         name,
		Type:         colType,
		IsPrimaryKey: isPK,
	}, nil
}

// optionalString returns the string at path, or "" when absent.
func optionalString(v cue.Value, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

// CompileRelations compiles every field under `relation` in declaration order.
func CompileRelations(root cue.Value) ([]*ir.RelationDefinition, error) {
	relVal := root.LookupPath(cue.ParsePath("relation"))
	if !relVal.Exists() {
		return nil, nil
	}

	iter, err := relVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var rels []*ir.RelationDefinition
	for iter.Next() {
		rel, err := CompileRelation(iter.Value())
		if err != nil {
			return nil, err
		}
		rels = append(rels, rel)
	}
	return rels, nil
}
