// Package testutil provides deterministic helpers shared by package tests.
package testutil

import (
	"github.com/roach88/querycanvas/internal/catalog"
	"github.com/roach88/querycanvas/internal/ir"
)

// Relation builds a relation whose first column is the primary key.
// Every column is typed "integer" unless named "email" or "name".
func Relation(id string, columns ...string) *ir.RelationDefinition {
	r := &ir.RelationDefinition{ID: id, Name: id}
	for i, c := range columns {
		typ := "integer"
		if c == "email" || c == "name" {
			typ = "text"
		}
		r.Columns = append(r.Columns, ir.ColumnDefinition{
			ID:           id + "." + c,
			Name:         c,
			Type:         typ,
			IsPrimaryKey: i == 0,
		})
	}
	return r
}

// ShopCatalog returns the catalog used across tests. It matches
// testdata/catalog/shop.cue:
//
//	users(id, email, manager_id)
//	orders(id, user_id, total)
//	products(id, name)
func ShopCatalog() *catalog.Catalog {
	return catalog.MustNew(
		Relation("users", "id", "email", "manager_id"),
		Relation("orders", "id", "user_id", "total"),
		Relation("products", "id", "name"),
	)
}
