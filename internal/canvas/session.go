package canvas

import (
	"github.com/roach88/querycanvas/internal/ir"
)

// Session is the two-click connection gesture.
//
// States: Idle and Armed(source instance, source column).
//
//	Idle            --activate(I, F)-->            Armed(I, F)
//	Armed(I, F)     --activate(J, G), J != I-->    Idle, connection I.F -> J.G added
//	Armed(I, F)     --activate(I, G)-->            Armed(I, F), SAME_INSTANCE returned
//	Armed(I, F)     --cancel-->                    Idle
//	Armed(I, F)     --instance I removed-->        Idle
//
// A rejected activation never changes the state: an invalid source keeps
// the session Idle, an invalid target keeps it Armed on the same source so
// the user can pick another target without restarting the gesture.
type Session struct {
	state    ir.SessionState
	registry *Registry
	graph    *Graph
}

// NewSession creates an idle session completing connections into graph.
func NewSession(registry *Registry, graph *Graph) *Session {
	s := &Session{registry: registry, graph: graph}
	registry.OnRemove(s.Invalidate)
	return s
}

// Activate drives the state machine with a click on column of instanceID.
// It returns the created connection when the click completes a gesture,
// and nil when it arms the session.
func (s *Session) Activate(instanceID, column string) (*ir.Connection, error) {
	if !s.state.Armed {
		if err := s.graph.checkEndpoint(instanceID, column); err != nil {
			return nil, err
		}
		s.state = ir.SessionState{
			Armed:            true,
			SourceInstanceID: instanceID,
			SourceColumn:     column,
		}
		return nil, nil
	}

	c, err := s.graph.AddConnection(s.state.SourceInstanceID, s.state.SourceColumn, instanceID, column)
	if err != nil {
		return nil, err
	}
	s.state = ir.SessionState{}
	return &c, nil
}

// Cancel returns the session to Idle. It reports whether a gesture was
// in progress.
func (s *Session) Cancel() bool {
	wasArmed := s.state.Armed
	s.state = ir.SessionState{}
	return wasArmed
}

// Invalidate resets the session if it is armed on instanceID.
func (s *Session) Invalidate(instanceID string) {
	if s.state.Armed && s.state.SourceInstanceID == instanceID {
		s.state = ir.SessionState{}
	}
}

// State returns the current session state.
func (s *Session) State() ir.SessionState {
	return s.state
}
