// Package engine applies canvas gestures in a single, totally ordered stream.
//
// The engine owns one canvas.Builder. Every gesture the user makes (place a
// relation, click a field, change a join kind, ...) is a Gesture value that
// the engine applies, stamps with a logical seq, and appends to its journal.
//
// ARCHITECTURE:
//
// Single-Writer Loop:
// Callers on other goroutines (interactive shell, file watcher) use Submit,
// which enqueues the gesture on a FIFO queue. Run drains the queue from
// exactly one goroutine. Callers that own the engine outright may call
// Apply directly; Apply and Run serialize on the same lock.
//
// Logical Clock:
// Each applied gesture takes the next seq from the engine's Sequencer.
// Seqs never come from wall-clock time, so a journal replays in the order
// it was recorded.
//
// Journal:
// The journal records every applied gesture together with the ids it
// allocated and the error it produced, if any. Replay feeds the recorded
// ids back into a fresh builder, so a journal recorded with UUIDv7 ids
// replays to an identical canvas and identical query text.
package engine
