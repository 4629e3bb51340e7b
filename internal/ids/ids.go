// Package ids mints opaque identifiers for the entities defined in the
// autonomy core's data model. Ids carry no ordering information — callers
// must use created_at/timestamp fields for chronology.
package ids

import "github.com/google/uuid"

// New returns a fresh opaque id with the given prefix, e.g. "goal-<uuid>".
// The prefix is purely a debugging aid; no component parses it back apart.
func New(prefix string) string {
	return prefix + "-" + uuid.NewString()
}

// Goal mints a new goal id.
func Goal() string { return New("goal") }

// Task mints a new task id.
func Task() string { return New("task") }

// Message mints a new goal-message id.
func Message() string { return New("msg") }

// Execution mints a new tool-execution id.
func Execution() string { return New("exec") }

// Backup mints a new backup id.
func Backup() string { return New("backup") }

// Decision mints a new decision-log entry id.
func Decision() string { return New("dec") }
