// Package ir provides the plain data types shared by every querycanvas package.
//
// This package contains type definitions and their canonical encoding only.
// All other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Positions are int64 canvas coordinates (no floats, keeps encoding canonical)
//   - Instance identity (InstanceID) is distinct from relation identity (RelationID)
//   - All JSON and YAML tags use snake_case
//   - Slices carry order: column order drives projection order, connection
//     order drives JOIN order
package ir
