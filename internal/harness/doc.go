// Package harness runs conformance scenarios against the gesture engine.
//
// A scenario replays a list of gestures on a fresh canvas with
// deterministic ids (instances i1, i2, ...; connections c1, c2, ...) and a
// deterministic clock, checks per-step expectations, then evaluates
// assertions on the final canvas and its compiled query.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: users_orders_left
//	description: "What this scenario validates"
//	catalog: ../catalog          # optional, relative to the scenario file
//	dialect: plain               # optional: plain, ansi, mysql, mssql
//	alias: auto                  # optional: auto, always, never
//	steps:
//	  - place: {relation_id: users}
//	  - place: {relation_id: orders, position: {x: 240, y: 0}}
//	  - activate: {instance_id: i1, column: id}
//	    expect: {session: "armed(i1.id)"}
//	  - activate: {instance_id: i2, column: user_id}
//	    expect: {connection: c1}
//	  - set_kind: {connection_id: c1, join_kind: LEFT}
//	  - activate: {instance_id: i1, column: nope}
//	    expect: {error: UNKNOWN_COLUMN}
//	assertions:
//	  - type: query_contains
//	    text: "LEFT JOIN orders"
//	  - type: connection_count
//	    count: 1
//
// Each step names exactly one gesture by its journal kind: place, remove,
// move, activate, cancel, unlink, set_kind, compile or reset. Argument-less
// gestures are written with an empty mapping, e.g. "- cancel: {}".
//
// # Assertions
//
//   - query_equals: compiled query equals query (trailing newlines ignored)
//   - query_contains: compiled query contains text
//   - instance_count, connection_count: exact counts
//   - session_state: "idle", "armed" or an exact "armed(i1.id)"
//   - portable: IsPortable matches; warning, if set, must appear
//
// # Golden Files
//
// RunWithGolden compares the compiled query against
// testdata/golden/<name>.golden; AssertTraceGolden compares the canonical
// JSON trace against testdata/golden/<name>.trace.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
