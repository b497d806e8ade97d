// Package store provides SQLite-backed persistence for querycanvas.
//
// The store keeps three kinds of records:
//   - Designs: named canvas snapshots as canonical JSON plus content hash
//   - Gestures: the append-only journal an engine produced for a design
//   - Compilations: query text produced for a design, in order
//
// # Ordering
//
// Journal and history reads order by the logical seq, never by wall-clock
// time: ORDER BY seq ASC, id COLLATE BINARY ASC where an id exists.
// Design listings order by name COLLATE BINARY.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON
//
// Design content is encoded with ir.MarshalCanonical and verified against
// ir.DesignHash when loaded.
package store
