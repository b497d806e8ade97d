package compiler

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roach88/querycanvas/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// General validation errors (E200)
	ErrUnsupportedType = "E200" // unsupported value type for validation

	// RelationDefinition errors (E201-E209)
	ErrRelationNameEmpty   = "E201" // relation name is required
	ErrRelationNoColumns   = "E202" // at least one column required
	ErrDuplicateColumn     = "E203" // duplicate column name within a relation
	ErrInvalidIdentifier   = "E204" // name is not a plain SQL identifier
	ErrColumnTypeEmpty     = "E205" // column type is required
	ErrDuplicateRelationID = "E206" // duplicate relation id within a catalog
)

// ValidationError represents a catalog validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// identifierPattern matches names usable unquoted in every supported dialect.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsIdentifier reports whether s is a plain SQL identifier.
func IsIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// Validate validates compiled relations.
// Returns all errors found (does not fail-fast).
// Supports a single relation or a whole catalog ([]*ir.RelationDefinition).
func Validate(v any) []ValidationError {
	switch val := v.(type) {
	case *ir.RelationDefinition:
		return validateRelation(val)
	case ir.RelationDefinition:
		return validateRelation(&val)
	case []*ir.RelationDefinition:
		return validateCatalog(val)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

// validateRelation validates one relation definition.
func validateRelation(rel *ir.RelationDefinition) []ValidationError {
	var errs []ValidationError
	prefix := "relation." + rel.ID

	if strings.TrimSpace(rel.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + ".name",
			Message: "name is required",
			Code:    ErrRelationNameEmpty,
		})
	} else if !IsIdentifier(rel.Name) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".name",
			Message: fmt.Sprintf("%q is not a valid identifier", rel.Name),
			Code:    ErrInvalidIdentifier,
		})
	}

	if len(rel.Columns) == 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".columns",
			Message: "at least one column is required",
			Code:    ErrRelationNoColumns,
		})
	}

	seen := make(map[string]bool, len(rel.Columns))
	for i, col := range rel.Columns {
		field := fmt.Sprintf("%s.columns[%d]", prefix, i)

		if !IsIdentifier(col.Name) {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("%q is not a valid identifier", col.Name),
				Code:    ErrInvalidIdentifier,
			})
		}
		if seen[col.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate column %q", col.Name),
				Code:    ErrDuplicateColumn,
			})
		}
		seen[col.Name] = true

		if strings.TrimSpace(col.Type) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".type",
				Message: fmt.Sprintf("column %q: type is required", col.Name),
				Code:    ErrColumnTypeEmpty,
			})
		}
	}

	return errs
}

// validateCatalog validates every relation plus catalog-wide uniqueness.
func validateCatalog(rels []*ir.RelationDefinition) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(rels))
	for _, rel := range rels {
		if seen[rel.ID] {
			errs = append(errs, ValidationError{
				Field:   "relation." + rel.ID,
				Message: fmt.Sprintf("duplicate relation id %q", rel.ID),
				Code:    ErrDuplicateRelationID,
			})
		}
		seen[rel.ID] = true
		errs = append(errs, validateRelation(rel)...)
	}
	return errs
}
