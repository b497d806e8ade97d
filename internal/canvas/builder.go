package canvas

import (
	"fmt"

	"github.com/roach88/querycanvas/internal/ir"
	"github.com/roach88/querycanvas/internal/querysql"
)

// Builder is the owned canvas aggregate: one Registry, one Graph and one
// Session over a read-only relation catalog. Every user gesture maps to
// one Builder method.
type Builder struct {
	relations ir.RelationLookup
	registry  *Registry
	graph     *Graph
	session   *Session
	compiler  *querysql.SQLCompiler
}

type options struct {
	instanceIDs   IDGenerator
	connectionIDs IDGenerator
	compiler      *querysql.SQLCompiler
}

// Option configures a Builder.
type Option func(*options)

// WithInstanceIDs sets the instance id generator. Default: UUIDv7Generator.
func WithInstanceIDs(gen IDGenerator) Option {
	return func(o *options) {
		o.instanceIDs = gen
	}
}

// WithConnectionIDs sets the connection id generator. Default: UUIDv7Generator.
func WithConnectionIDs(gen IDGenerator) Option {
	return func(o *options) {
		o.connectionIDs = gen
	}
}

// WithCompiler sets the compiler used by RequestCompile.
// Default: querysql.NewSQLCompiler().
func WithCompiler(c *querysql.SQLCompiler) Option {
	return func(o *options) {
		o.compiler = c
	}
}

// NewBuilder creates an empty canvas over relations.
func NewBuilder(relations ir.RelationLookup, opts ...Option) *Builder {
	o := options{
		instanceIDs:   UUIDv7Generator{},
		connectionIDs: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.compiler == nil {
		o.compiler = querysql.NewSQLCompiler()
	}

	registry := NewRegistry(o.instanceIDs)
	graph := NewGraph(registry, relations, o.connectionIDs)
	return &Builder{
		relations: relations,
		registry:  registry,
		graph:     graph,
		session:   NewSession(registry, graph),
		compiler:  o.compiler,
	}
}

// Activation is the outcome of ActivateField.
type Activation struct {
	// Session is the state after the activation.
	Session ir.SessionState
	// Connection is set when the activation completed a gesture.
	Connection *ir.Connection
}

// PlaceRelation places a new instance of relationID at pos.
func (b *Builder) PlaceRelation(relationID string, pos ir.Position) (ir.PlacedInstance, error) {
	rel, ok := b.relations.Lookup(relationID)
	if !ok {
		return ir.PlacedInstance{}, newUnknownRelationError(relationID)
	}
	return b.registry.Place(rel, pos), nil
}

// RemoveInstance removes an instance, every connection touching it, and
// the session if it is armed on it. Unknown ids are a no-op.
func (b *Builder) RemoveInstance(instanceID string) bool {
	return b.registry.Remove(instanceID)
}

// MoveInstance repositions an instance.
func (b *Builder) MoveInstance(instanceID string, pos ir.Position) error {
	return b.registry.Move(instanceID, pos)
}

// ActivateField is a click on column of instanceID. See Session.
func (b *Builder) ActivateField(instanceID, column string) (Activation, error) {
	c, err := b.session.Activate(instanceID, column)
	return Activation{Session: b.session.State(), Connection: c}, err
}

// CancelSession abandons an in-progress gesture. It reports whether one
// was in progress.
func (b *Builder) CancelSession() bool {
	return b.session.Cancel()
}

// RemoveConnection deletes a connection. Unknown ids are a no-op.
func (b *Builder) RemoveConnection(connectionID string) bool {
	return b.graph.RemoveConnection(connectionID)
}

// SetJoinKind changes the join kind of a connection.
func (b *Builder) SetJoinKind(connectionID string, kind ir.JoinKind) error {
	return b.graph.SetJoinKind(connectionID, kind)
}

// RequestCompile compiles the current canvas to query text.
func (b *Builder) RequestCompile() string {
	return b.compiler.Compile(b.registry.List(), b.graph.List(), b.relations)
}

// ResetCanvas clears instances, connections and the session
// unconditionally.
func (b *Builder) ResetCanvas() {
	b.session.Cancel()
	b.graph.reset()
	b.registry.reset()
}

// Instances returns placed instances in placement order.
func (b *Builder) Instances() []ir.PlacedInstance {
	return b.registry.List()
}

// Instance returns one placed instance.
func (b *Builder) Instance(instanceID string) (ir.PlacedInstance, bool) {
	return b.registry.Get(instanceID)
}

// Connections returns connections in creation order.
func (b *Builder) Connections() []ir.Connection {
	return b.graph.List()
}

// ConnectionsTouching returns the connections whose source or target is
// instanceID.
func (b *Builder) ConnectionsTouching(instanceID string) []ir.Connection {
	return b.graph.ConnectionsTouching(instanceID)
}

// Session returns the current gesture state.
func (b *Builder) Session() ir.SessionState {
	return b.session.State()
}

// Relations returns the catalog the builder draws from.
func (b *Builder) Relations() ir.RelationLookup {
	return b.relations
}

// ResolvedConnection is a connection with human-readable names for label
// rendering.
type ResolvedConnection struct {
	ir.Connection
	SourceRelation string `json:"source_relation"`
	TargetRelation string `json:"target_relation"`
	Label          string `json:"label"`
}

// ResolvedConnections returns connections in creation order, each labelled
// "<source relation>.<column> → <target relation>.<column> (<KIND> JOIN)".
func (b *Builder) ResolvedConnections() []ResolvedConnection {
	conns := b.graph.List()
	out := make([]ResolvedConnection, len(conns))
	for i, c := range conns {
		src := b.relationName(c.SourceInstanceID)
		tgt := b.relationName(c.TargetInstanceID)
		out[i] = ResolvedConnection{
			Connection:     c,
			SourceRelation: src,
			TargetRelation: tgt,
			Label: fmt.Sprintf("%s.%s → %s.%s (%s)",
				src, c.SourceColumn, tgt, c.TargetColumn, c.JoinKind.Phrase()),
		}
	}
	return out
}

func (b *Builder) relationName(instanceID string) string {
	inst, ok := b.registry.Get(instanceID)
	if !ok {
		return instanceID
	}
	if rel, ok := b.relations.Lookup(inst.RelationID); ok {
		return rel.Name
	}
	return inst.RelationID
}
