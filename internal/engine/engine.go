package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/querycanvas/internal/canvas"
	"github.com/roach88/querycanvas/internal/ir"
	"github.com/roach88/querycanvas/internal/querysql"
)

// Outcome is the result of applying one gesture.
type Outcome struct {
	// Seq is the logical time the gesture was applied at. Zero when the
	// gesture was never applied (cancelled context, stopped engine).
	Seq int64

	Gesture Gesture

	// Err is a *canvas.Error when the canvas rejected the gesture, or a
	// *RuntimeError / context error when it was never applied.
	Err error

	// Instance is set by a successful PlaceRelation.
	Instance *ir.PlacedInstance

	// Connection is set by an ActivateField that completed a connection.
	Connection *ir.Connection

	// Changed reports whether RemoveInstance, CancelSession or
	// RemoveConnection found something to remove.
	Changed bool

	// Session is the session state after the gesture.
	Session ir.SessionState

	// Query is set by RequestCompile.
	Query string
}

// Engine applies gestures to one canvas in a single total order.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
//   - Apply() and the read accessors: safe from any goroutine; they
//     serialize with Run on mu
type Engine struct {
	mu            sync.Mutex
	builder       *canvas.Builder
	clock         Sequencer
	queue         *gestureQueue
	journal       []JournalEntry
	instanceIDs   *scriptedIDs
	connectionIDs *scriptedIDs
}

type options struct {
	clock         Sequencer
	instanceIDs   canvas.IDGenerator
	connectionIDs canvas.IDGenerator
	compiler      *querysql.SQLCompiler
}

// Option configures an Engine.
type Option func(*options)

// WithClock sets the seq source. Default: NewClock().
func WithClock(c Sequencer) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithInstanceIDs sets the instance id generator. Default: UUIDv7.
func WithInstanceIDs(gen canvas.IDGenerator) Option {
	return func(o *options) {
		o.instanceIDs = gen
	}
}

// WithConnectionIDs sets the connection id generator. Default: UUIDv7.
func WithConnectionIDs(gen canvas.IDGenerator) Option {
	return func(o *options) {
		o.connectionIDs = gen
	}
}

// WithCompiler sets the SQL compiler used by RequestCompile.
func WithCompiler(c *querysql.SQLCompiler) Option {
	return func(o *options) {
		o.compiler = c
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock:         NewClock(),
		instanceIDs:   canvas.UUIDv7Generator{},
		connectionIDs: canvas.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) canvasOptions(instanceIDs, connectionIDs canvas.IDGenerator) []canvas.Option {
	copts := []canvas.Option{
		canvas.WithInstanceIDs(instanceIDs),
		canvas.WithConnectionIDs(connectionIDs),
	}
	if o.compiler != nil {
		copts = append(copts, canvas.WithCompiler(o.compiler))
	}
	return copts
}

// New creates an engine over an empty canvas.
func New(relations ir.RelationLookup, opts ...Option) *Engine {
	o := buildOptions(opts)
	instanceIDs := &scriptedIDs{fallback: o.instanceIDs}
	connectionIDs := &scriptedIDs{fallback: o.connectionIDs}

	return &Engine{
		builder:       canvas.NewBuilder(relations, o.canvasOptions(instanceIDs, connectionIDs)...),
		clock:         o.clock,
		queue:         newGestureQueue(),
		instanceIDs:   instanceIDs,
		connectionIDs: connectionIDs,
	}
}

// NewFromDesign creates an engine whose canvas is restored from design.
// The journal starts empty.
func NewFromDesign(design ir.Design, relations ir.RelationLookup, opts ...Option) (*Engine, error) {
	o := buildOptions(opts)
	instanceIDs := &scriptedIDs{fallback: o.instanceIDs}
	connectionIDs := &scriptedIDs{fallback: o.connectionIDs}

	b, err := canvas.Restore(design, relations, o.canvasOptions(instanceIDs, connectionIDs)...)
	if err != nil {
		return nil, fmt.Errorf("restore design %q: %w", design.Name, err)
	}

	return &Engine{
		builder:       b,
		clock:         o.clock,
		queue:         newGestureQueue(),
		instanceIDs:   instanceIDs,
		connectionIDs: connectionIDs,
	}, nil
}

// Apply applies g synchronously and returns its outcome.
//
// Rejected gestures are still journaled and still consume a seq: a
// rejected click is part of the user's history. A cancelled context or an
// unknown gesture type is not applied at all.
func (e *Engine) Apply(ctx context.Context, g Gesture) Outcome {
	if err := ctx.Err(); err != nil {
		return Outcome{Gesture: g, Err: err}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.apply(g)
}

// apply must be called with mu held.
func (e *Engine) apply(g Gesture) Outcome {
	if !known(g) {
		return Outcome{
			Gesture: g,
			Err: &RuntimeError{
				Code:    ErrCodeUnknownGesture,
				Message: fmt.Sprintf("unsupported gesture type %T", g),
			},
		}
	}

	out := Outcome{Seq: e.clock.Next(), Gesture: g}
	slog.Debug("applying gesture", "seq", out.Seq, "kind", g.Kind())

	switch g := g.(type) {
	case PlaceRelation:
		inst, err := e.builder.PlaceRelation(g.RelationID, g.Position)
		if err == nil {
			out.Instance = &inst
		}
		out.Err = err
	case RemoveInstance:
		out.Changed = e.builder.RemoveInstance(g.InstanceID)
	case MoveInstance:
		out.Err = e.builder.MoveInstance(g.InstanceID, g.Position)
	case ActivateField:
		act, err := e.builder.ActivateField(g.InstanceID, g.Column)
		out.Connection = act.Connection
		out.Err = err
	case CancelSession:
		out.Changed = e.builder.CancelSession()
	case RemoveConnection:
		out.Changed = e.builder.RemoveConnection(g.ConnectionID)
	case SetJoinKind:
		out.Err = e.builder.SetJoinKind(g.ConnectionID, g.JoinKind)
	case RequestCompile:
		out.Query = e.builder.RequestCompile()
	case ResetCanvas:
		e.builder.ResetCanvas()
	}
	out.Session = e.builder.Session()

	if out.Err != nil {
		slog.Debug("gesture rejected", "seq", out.Seq, "kind", g.Kind(), "error", out.Err)
	}

	e.journal = append(e.journal, newJournalEntry(out))
	return out
}

func known(g Gesture) bool {
	switch g.(type) {
	case PlaceRelation, RemoveInstance, MoveInstance, ActivateField, CancelSession,
		RemoveConnection, SetJoinKind, RequestCompile, ResetCanvas:
		return true
	}
	return false
}

// Submit enqueues g for the Run loop. The returned channel receives
// exactly one Outcome. Safe from any goroutine.
func (e *Engine) Submit(g Gesture) <-chan Outcome {
	reply := make(chan Outcome, 1)
	if !e.queue.Enqueue(submission{gesture: g, reply: reply}) {
		reply <- stoppedOutcome(g)
	}
	return reply
}

func stoppedOutcome(g Gesture) Outcome {
	return Outcome{
		Gesture: g,
		Err:     &RuntimeError{Code: ErrCodeEngineStopped, Message: "engine is stopped"},
	}
}

// Run drains submitted gestures in FIFO order.
// Blocks until ctx is cancelled or Stop is called.
//
// Must be called from exactly one goroutine.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")

	for {
		s, ok := e.queue.TryDequeue()
		if ok {
			s.reply <- e.Apply(ctx, s.gesture)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			e.drain()
			return ctx.Err()

		case <-e.queue.Wait():
			// Close closes the signal channel, so this fires at once
			// after Stop.
			if e.queue.Len() == 0 && e.queue.Closed() {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// drain answers every pending submission with ENGINE_STOPPED.
func (e *Engine) drain() {
	for {
		s, ok := e.queue.TryDequeue()
		if !ok {
			return
		}
		s.reply <- stoppedOutcome(s.gesture)
	}
}

// Stop closes the queue. Run returns once pending submissions are applied.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Journal returns a copy of every applied gesture in seq order.
func (e *Engine) Journal() []JournalEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]JournalEntry, len(e.journal))
	copy(out, e.journal)
	return out
}

// Snapshot returns the current canvas as a named design.
func (e *Engine) Snapshot(name string) ir.Design {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.builder.Snapshot(name)
}

// Query compiles the current canvas without journaling a gesture.
func (e *Engine) Query() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.builder.RequestCompile()
}

// Session returns the current session state.
func (e *Engine) Session() ir.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.builder.Session()
}

// Instances returns placed instances in placement order.
func (e *Engine) Instances() []ir.PlacedInstance {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.builder.Instances()
}

// Connections returns connections in creation order.
func (e *Engine) Connections() []ir.Connection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.builder.Connections()
}

// ResolvedConnections returns connections with relation names and labels.
func (e *Engine) ResolvedConnections() []canvas.ResolvedConnection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.builder.ResolvedConnections()
}

// ConnectionsTouching returns the connections with instanceID at either
// end, in creation order.
func (e *Engine) ConnectionsTouching(instanceID string) []ir.Connection {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.builder.ConnectionsTouching(instanceID)
}

// Relations returns the catalog the canvas draws from.
func (e *Engine) Relations() ir.RelationLookup {
	return e.builder.Relations()
}

// scriptedIDs returns queued ids first and falls back to a real generator.
// Replay queues the ids a journal recorded so they are reallocated
// verbatim. Guarded by Engine.mu.
type scriptedIDs struct {
	queued   []string
	fallback canvas.IDGenerator
}

func (s *scriptedIDs) Generate() string {
	if len(s.queued) > 0 {
		id := s.queued[0]
		s.queued = s.queued[1:]
		return id
	}
	return s.fallback.Generate()
}

func (s *scriptedIDs) push(id string) {
	s.queued = append(s.queued, id)
}

func (s *scriptedIDs) reset() {
	s.queued = nil
}
