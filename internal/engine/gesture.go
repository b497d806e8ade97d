package engine

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/querycanvas/internal/ir"
)

// GestureKind names a gesture in journals, scenarios and the shell.
type GestureKind string

const (
	KindPlaceRelation    GestureKind = "place"
	KindRemoveInstance   GestureKind = "remove"
	KindMoveInstance     GestureKind = "move"
	KindActivateField    GestureKind = "activate"
	KindCancelSession    GestureKind = "cancel"
	KindRemoveConnection GestureKind = "unlink"
	KindSetJoinKind      GestureKind = "set_kind"
	KindRequestCompile   GestureKind = "compile"
	KindResetCanvas      GestureKind = "reset"
)

// Gesture is one user action on the canvas.
// Sealed: only types in this package implement it.
type Gesture interface {
	Kind() GestureKind
	gesture()
}

// PlaceRelation drops a new instance of a catalog relation on the canvas.
type PlaceRelation struct {
	RelationID string      `json:"relation_id" yaml:"relation_id"`
	Position   ir.Position `json:"position" yaml:"position"`
}

// RemoveInstance deletes an instance and every connection touching it.
type RemoveInstance struct {
	InstanceID string `json:"instance_id" yaml:"instance_id"`
}

// MoveInstance repositions an instance. Connections are unaffected.
type MoveInstance struct {
	InstanceID string      `json:"instance_id" yaml:"instance_id"`
	Position   ir.Position `json:"position" yaml:"position"`
}

// ActivateField is a click on one field of one instance.
type ActivateField struct {
	InstanceID string `json:"instance_id" yaml:"instance_id"`
	Column     string `json:"column" yaml:"column"`
}

// CancelSession abandons a half-drawn connection.
type CancelSession struct{}

// RemoveConnection deletes one connection.
type RemoveConnection struct {
	ConnectionID string `json:"connection_id" yaml:"connection_id"`
}

// SetJoinKind changes the join kind of one connection.
type SetJoinKind struct {
	ConnectionID string      `json:"connection_id" yaml:"connection_id"`
	JoinKind     ir.JoinKind `json:"join_kind" yaml:"join_kind"`
}

// RequestCompile asks for the query text of the current canvas.
type RequestCompile struct{}

// ResetCanvas clears instances, connections and the session.
type ResetCanvas struct{}

func (PlaceRelation) Kind() GestureKind    { return KindPlaceRelation }
func (RemoveInstance) Kind() GestureKind   { return KindRemoveInstance }
func (MoveInstance) Kind() GestureKind     { return KindMoveInstance }
func (ActivateField) Kind() GestureKind    { return KindActivateField }
func (CancelSession) Kind() GestureKind    { return KindCancelSession }
func (RemoveConnection) Kind() GestureKind { return KindRemoveConnection }
func (SetJoinKind) Kind() GestureKind      { return KindSetJoinKind }
func (RequestCompile) Kind() GestureKind   { return KindRequestCompile }
func (ResetCanvas) Kind() GestureKind      { return KindResetCanvas }

func (PlaceRelation) gesture()    {}
func (RemoveInstance) gesture()   {}
func (MoveInstance) gesture()     {}
func (ActivateField) gesture()    {}
func (CancelSession) gesture()    {}
func (RemoveConnection) gesture() {}
func (SetJoinKind) gesture()      {}
func (RequestCompile) gesture()   {}
func (ResetCanvas) gesture()      {}

// MarshalGesture encodes a gesture's arguments as JSON.
// The kind travels separately so payloads stay flat.
func MarshalGesture(g Gesture) (GestureKind, []byte, error) {
	if g == nil {
		return "", nil, fmt.Errorf("nil gesture")
	}
	payload, err := json.Marshal(g)
	if err != nil {
		return "", nil, fmt.Errorf("marshal %s gesture: %w", g.Kind(), err)
	}
	return g.Kind(), payload, nil
}

// UnmarshalGesture decodes a payload produced by MarshalGesture.
// An empty payload is accepted for argument-less gestures.
func UnmarshalGesture(kind GestureKind, payload []byte) (Gesture, error) {
	switch kind {
	case KindPlaceRelation:
		return decodeGesture[PlaceRelation](kind, payload)
	case KindRemoveInstance:
		return decodeGesture[RemoveInstance](kind, payload)
	case KindMoveInstance:
		return decodeGesture[MoveInstance](kind, payload)
	case KindActivateField:
		return decodeGesture[ActivateField](kind, payload)
	case KindCancelSession:
		return CancelSession{}, nil
	case KindRemoveConnection:
		return decodeGesture[RemoveConnection](kind, payload)
	case KindSetJoinKind:
		return decodeGesture[SetJoinKind](kind, payload)
	case KindRequestCompile:
		return RequestCompile{}, nil
	case KindResetCanvas:
		return ResetCanvas{}, nil
	default:
		return nil, &RuntimeError{
			Code:    ErrCodeUnknownGesture,
			Message: fmt.Sprintf("unknown gesture kind %q", kind),
		}
	}
}

func decodeGesture[T Gesture](kind GestureKind, payload []byte) (Gesture, error) {
	var g T
	if len(payload) == 0 {
		return g, nil
	}
	if err := json.Unmarshal(payload, &g); err != nil {
		return nil, fmt.Errorf("unmarshal %s gesture: %w", kind, err)
	}
	return g, nil
}
