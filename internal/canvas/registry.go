package canvas

import (
	"github.com/roach88/querycanvas/internal/ir"
)

// Registry tracks placed relation instances in placement order.
//
// The first placed instance that is still on the canvas is the base
// relation of the compiled FROM clause, so order is part of the contract.
type Registry struct {
	instances []ir.PlacedInstance
	ids       IDGenerator
	onRemove  []func(instanceID string)
}

// NewRegistry creates an empty registry allocating ids from gen.
func NewRegistry(gen IDGenerator) *Registry {
	return &Registry{ids: gen}
}

// OnRemove registers fn to run after an instance is removed.
// Graph and Session use this to cascade.
func (r *Registry) OnRemove(fn func(instanceID string)) {
	r.onRemove = append(r.onRemove, fn)
}

// Place appends a new instance of relation at pos. Always succeeds;
// the same relation may be placed any number of times.
func (r *Registry) Place(relation *ir.RelationDefinition, pos ir.Position) ir.PlacedInstance {
	id := r.ids.Generate()
	for r.indexOf(id) >= 0 {
		id = r.ids.Generate()
	}

	inst := ir.PlacedInstance{
		InstanceID: id,
		RelationID: relation.ID,
		Position:   pos,
	}
	r.instances = append(r.instances, inst)
	return inst
}

// insert appends an instance with a caller-chosen id (design restore).
func (r *Registry) insert(inst ir.PlacedInstance) error {
	if r.indexOf(inst.InstanceID) >= 0 {
		return &Error{
			Code:       CodeDuplicateID,
			Message:    "instance id " + inst.InstanceID + " is used twice",
			InstanceID: inst.InstanceID,
		}
	}
	r.instances = append(r.instances, inst)
	return nil
}

// Remove deletes the instance and runs the removal cascade.
// Removing an unknown id is a no-op; the return value reports whether
// anything was removed.
func (r *Registry) Remove(instanceID string) bool {
	i := r.indexOf(instanceID)
	if i < 0 {
		return false
	}
	r.instances = append(r.instances[:i], r.instances[i+1:]...)
	for _, fn := range r.onRemove {
		fn(instanceID)
	}
	return true
}

// Move updates the position of an instance. It never touches connections
// or the session.
func (r *Registry) Move(instanceID string, pos ir.Position) error {
	i := r.indexOf(instanceID)
	if i < 0 {
		return newUnknownInstanceError(instanceID)
	}
	r.instances[i].Position = pos
	return nil
}

// Get returns the instance with the given id.
func (r *Registry) Get(instanceID string) (ir.PlacedInstance, bool) {
	i := r.indexOf(instanceID)
	if i < 0 {
		return ir.PlacedInstance{}, false
	}
	return r.instances[i], true
}

// Has reports whether the instance is on the canvas.
func (r *Registry) Has(instanceID string) bool {
	return r.indexOf(instanceID) >= 0
}

// List returns instances in placement order. The slice is a copy.
func (r *Registry) List() []ir.PlacedInstance {
	out := make([]ir.PlacedInstance, len(r.instances))
	copy(out, r.instances)
	return out
}

// Len returns the number of placed instances.
func (r *Registry) Len() int {
	return len(r.instances)
}

// reset drops every instance without running the cascade; callers reset
// the graph and session themselves.
func (r *Registry) reset() {
	r.instances = nil
}

func (r *Registry) indexOf(instanceID string) int {
	for i, inst := range r.instances {
		if inst.InstanceID == instanceID {
			return i
		}
	}
	return -1
}
