// Package catalog holds the immutable set of relation definitions a canvas
// draws from.
//
// A Catalog is read-only after construction: Lookup and List hand out the
// catalog's own definitions and callers must not mutate them. Relations
// keep their declaration order.
package catalog

import (
	"fmt"
	"strings"

	"github.com/roach88/querycanvas/internal/compiler"
	"github.com/roach88/querycanvas/internal/ir"
)

// Catalog is an ordered, immutable set of relation definitions.
type Catalog struct {
	relations []*ir.RelationDefinition
	byID      map[string]*ir.RelationDefinition
}

// InvalidCatalogError reports every validation failure of a catalog.
type InvalidCatalogError struct {
	Errors []compiler.ValidationError
}

func (e *InvalidCatalogError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.Error()
	}
	return fmt.Sprintf("invalid catalog: %s", strings.Join(msgs, "; "))
}

// New builds a catalog from relation definitions.
// The definitions are deep-copied; later changes to rels do not leak in.
// Returns *InvalidCatalogError if any relation fails validation.
func New(rels []*ir.RelationDefinition) (*Catalog, error) {
	if errs := compiler.Validate(rels); len(errs) > 0 {
		return nil, &InvalidCatalogError{Errors: errs}
	}

	c := &Catalog{
		relations: make([]*ir.RelationDefinition, len(rels)),
		byID:      make(map[string]*ir.RelationDefinition, len(rels)),
	}
	for i, r := range rels {
		cp := *r
		cp.Columns = append([]ir.ColumnDefinition(nil), r.Columns...)
		c.relations[i] = &cp
		c.byID[cp.ID] = &cp
	}
	return c, nil
}

// MustNew is like New but panics on error.
// Use only in tests or with static fixtures.
func MustNew(rels ...*ir.RelationDefinition) *Catalog {
	c, err := New(rels)
	if err != nil {
		panic(err)
	}
	return c
}

// Lookup returns the relation with the given id.
func (c *Catalog) Lookup(relationID string) (*ir.RelationDefinition, bool) {
	r, ok := c.byID[relationID]
	return r, ok
}

// ByName returns the first relation whose display name matches.
func (c *Catalog) ByName(name string) (*ir.RelationDefinition, bool) {
	for _, r := range c.relations {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// Resolve looks a relation up by id, falling back to its display name.
func (c *Catalog) Resolve(ref string) (*ir.RelationDefinition, bool) {
	if r, ok := c.Lookup(ref); ok {
		return r, true
	}
	return c.ByName(ref)
}

// List returns relations in declaration order.
func (c *Catalog) List() []*ir.RelationDefinition {
	out := make([]*ir.RelationDefinition, len(c.relations))
	copy(out, c.relations)
	return out
}

// Len returns the number of relations.
func (c *Catalog) Len() int {
	return len(c.relations)
}
