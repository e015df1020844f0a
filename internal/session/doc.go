// Package session defines drover's central entity: one tracked unit of agent
// work bound to a branch, a workspace, and a runtime process.
//
// # Status vs. activity
//
// A session carries two orthogonal signals. Status is the authoritative
// workflow position (spawning through merged/done), moves only along the
// transitions the lifecycle engine derives, and has a terminal subset after
// which the session is never polled again. Activity is the volatile
// liveness/engagement signal of the underlying process (active, idle,
// waiting_input, blocked, exited) and may change on every reconciliation
// tick without a status change.
//
// # Persistence
//
// Sessions persist as flat key=value records (see ToRecord/FromRecord and
// the store package). The format is deliberately human-editable: one field
// per line, # comments allowed, empty fields omitted.
package session
