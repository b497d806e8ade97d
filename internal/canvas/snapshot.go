package canvas

import (
	"github.com/roach88/querycanvas/internal/ir"
)

// Snapshot returns the canvas as plain data. The session is not included.
func (b *Builder) Snapshot(name string) ir.Design {
	return ir.Design{
		Name:        name,
		Instances:   b.registry.List(),
		Connections: b.graph.List(),
	}
}

// Restore rebuilds a canvas from a design, keeping its ids and order.
//
// Every invariant is checked as if the design had been drawn by hand:
// relations must exist, connection endpoints must resolve, ids must be
// unique. An empty join kind restores as INNER. Ids allocated after the
// restore come from the configured generators and skip ids already in use.
func Restore(design ir.Design, relations ir.RelationLookup, opts ...Option) (*Builder, error) {
	b := NewBuilder(relations, opts...)

	for _, inst := range design.Instances {
		if inst.InstanceID == "" {
			return nil, &Error{Code: CodeUnknownInstance, Message: "instance id is required"}
		}
		if _, ok := relations.Lookup(inst.RelationID); !ok {
			return nil, newUnknownRelationError(inst.RelationID)
		}
		if err := b.registry.insert(inst); err != nil {
			return nil, err
		}
	}

	for _, c := range design.Connections {
		if c.ID == "" {
			return nil, &Error{Code: CodeUnknownConnection, Message: "connection id is required"}
		}
		if err := b.graph.insert(c); err != nil {
			return nil, err
		}
	}

	return b, nil
}
