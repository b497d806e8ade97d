package engine

import (
	"context"
	"fmt"

	"github.com/roach88/querycanvas/internal/canvas"
	"github.com/roach88/querycanvas/internal/ir"
)

// JournalEntry records one applied gesture.
//
// InstanceID and ConnectionID hold the ids the gesture allocated, so a
// journal recorded with random ids still replays to the same canvas.
type JournalEntry struct {
	Seq          int64            `json:"seq" yaml:"seq"`
	Gesture      Gesture          `json:"-" yaml:"-"`
	InstanceID   string           `json:"instance_id,omitempty" yaml:"instance_id,omitempty"`
	ConnectionID string           `json:"connection_id,omitempty" yaml:"connection_id,omitempty"`
	ErrorCode    canvas.ErrorCode `json:"error_code,omitempty" yaml:"error_code,omitempty"`
}

// Kind returns the recorded gesture's kind.
func (j JournalEntry) Kind() GestureKind {
	if j.Gesture == nil {
		return ""
	}
	return j.Gesture.Kind()
}

// Rejected reports whether the canvas rejected the gesture.
func (j JournalEntry) Rejected() bool {
	return j.ErrorCode != ""
}

func newJournalEntry(out Outcome) JournalEntry {
	entry := JournalEntry{
		Seq:       out.Seq,
		Gesture:   out.Gesture,
		ErrorCode: canvas.CodeOf(out.Err),
	}
	if out.Instance != nil {
		entry.InstanceID = out.Instance.InstanceID
	}
	if out.Connection != nil {
		entry.ConnectionID = out.Connection.ID
	}
	return entry
}

// Replay applies a journal to a fresh engine over relations.
//
// Each entry must reproduce its recorded result: the same error code and
// the same allocated ids. The first entry that does not yields a
// REPLAY_DIVERGED error. The returned engine's journal mirrors the input.
func Replay(ctx context.Context, relations ir.RelationLookup, journal []JournalEntry, opts ...Option) (*Engine, error) {
	e := New(relations, opts...)

	for _, entry := range journal {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.Gesture == nil {
			return nil, &RuntimeError{
				Code:    ErrCodeUnknownGesture,
				Message: "journal entry has no gesture",
				Seq:     entry.Seq,
			}
		}

		out := e.replayOne(entry)
		if err := checkReplayed(entry, out); err != nil {
			return nil, err
		}
	}

	return e, nil
}

func (e *Engine) replayOne(entry JournalEntry) Outcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	if entry.InstanceID != "" {
		e.instanceIDs.push(entry.InstanceID)
	}
	if entry.ConnectionID != "" {
		e.connectionIDs.push(entry.ConnectionID)
	}
	defer e.instanceIDs.reset()
	defer e.connectionIDs.reset()

	return e.apply(entry.Gesture)
}

func checkReplayed(entry JournalEntry, out Outcome) error {
	if rt, ok := out.Err.(*RuntimeError); ok {
		return fmt.Errorf("replay seq %d: %w", entry.Seq, rt)
	}
	if got := canvas.CodeOf(out.Err); got != entry.ErrorCode {
		return newDivergedError(entry.Seq, "%s: recorded error %q, replay produced %q", entry.Kind(), entry.ErrorCode, got)
	}

	var gotInstance, gotConnection string
	if out.Instance != nil {
		gotInstance = out.Instance.InstanceID
	}
	if out.Connection != nil {
		gotConnection = out.Connection.ID
	}
	if gotInstance != entry.InstanceID {
		return newDivergedError(entry.Seq, "%s: recorded instance %q, replay produced %q", entry.Kind(), entry.InstanceID, gotInstance)
	}
	if gotConnection != entry.ConnectionID {
		return newDivergedError(entry.Seq, "%s: recorded connection %q, replay produced %q", entry.Kind(), entry.ConnectionID, gotConnection)
	}
	return nil
}
