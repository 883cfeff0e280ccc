// Package prefs persists versioned user preferences such as column sizing or
// density.
//
// Every value is written inside an Envelope:
//
//	{"schemaVersion": 2, "updatedAt": 1717171717000, "value": {...}}
//
// Reads pass through migration before use. An envelope written by an older
// schema is migrated and re-stamped; one written by a newer schema is
// discarded in favour of defaults. Writes always persist the merged value at
// the current version, so storage never keeps entries for columns that no
// longer exist.
//
// Backends only move bytes:
//
//	Backend (Load/Save) -> Store[V] (envelope, migrate, merge) -> feature
//
// Optional capabilities are discovered with type assertions: Deleter enables
// real removal on reset and SyncLoader enables Store.GetSync.
//
// Deterministic keys come from Key.Identifier().
package prefs
