// Package harness runs composition scenarios written in YAML against the
// real engine, session and persistence stack.
//
// # Scenario Format
//
//	name: resize_keeps_answers
//	description: "Growing then shrinking keeps the leading answers"
//	catalog: catalog.cue
//	steps:
//	  - action: add
//	    service: "11"
//	    quantity: 2
//	  - action: patch_info
//	    service: "11"
//	    instance: inst-1
//	    info: { method: lavado }
//	  - action: set_quantity
//	    service: "11"
//	    quantity: 1
//	assertions:
//	  - type: quantity
//	    service: "11"
//	    count: 1
//	  - type: info
//	    service: "11"
//	    instance: inst-1
//	    expect: { method: lavado }
//	  - type: invariants
//
// The catalog path is resolved relative to the scenario file.
//
// # Steps
//
//   - set_profile: merges profile into the client profile
//   - add: selects a catalog item (quantity defaults to 1)
//   - set_quantity: resizes a selection
//   - patch_info: patches one instance's answers; a null value removes the key
//   - remove: deselects a service and records the removal
//   - import: merges or replaces selections from a source record
//   - reset: discards the composition and its snapshot
//   - reload: flushes the snapshot and restores it into a fresh engine,
//     as a page reload would; the removal set does not survive
//
// # Assertion Types
//
//   - selection_count: number of selections equals count
//   - quantity: the service's quantity equals count
//   - info: the instance's answers match expect; a null expectation means absent
//   - invariants: the composition invariants hold
//   - absent: the service is not selected
//
// # Deterministic Testing
//
// Instance ids come from instance.SequenceGenerator with the scenario's
// id_prefix (default "inst"), and each run gets a fresh in-memory SQLite
// store, so traces and final states are stable for golden comparison.
package harness
