// Package errors provides structured error types for drover.
// These errors carry the operation that failed, a category, and the
// session/plugin context needed to report failures without guesswork.
package errors

import (
	"errors"
	"fmt"
)

// Op describes an operation, usually as "package.Function".
type Op string

// Kind categorizes the type of error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindReservationConflict means a session ID was already reserved.
	// Recoverable: callers generate a fresh ID and retry.
	KindReservationConflict
	// KindNotFound means an operation referenced an unknown or dead session.
	KindNotFound
	// KindPlugin wraps a failure from a capability plugin.
	KindPlugin
	// KindDeliveryAmbiguous means a message was sent but receipt was never
	// confirmed before the busy-wait expired. Non-fatal.
	KindDeliveryAmbiguous
	// KindStaleRecord means a persisted record was corrupt or partially
	// written. Reads treat the record as absent.
	KindStaleRecord
	// KindConflict means a live resource already exists and cannot be
	// silently replaced (e.g. a running orchestrator).
	KindConflict
	KindInvalid
	KindIO
	KindConfig
	KindGit
	KindTimeout
)

func (k Kind) String() string {
	switch k {
	case KindReservationConflict:
		return "reservation conflict"
	case KindNotFound:
		return "not found"
	case KindPlugin:
		return "plugin error"
	case KindDeliveryAmbiguous:
		return "delivery ambiguous"
	case KindStaleRecord:
		return "stale record"
	case KindConflict:
		return "conflict"
	case KindInvalid:
		return "invalid"
	case KindIO:
		return "I/O error"
	case KindConfig:
		return "configuration error"
	case KindGit:
		return "git error"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown error"
	}
}

// Error is the structured error type for drover.
type Error struct {
	Op      Op     // Operation that failed
	Kind    Kind   // Category of error
	Session string // Session ID involved, if any
	Plugin  string // Plugin name, for KindPlugin
	Err     error  // Underlying error
	Context string // Additional context
}

// Error returns the error message.
func (e *Error) Error() string {
	msg := string(e.Op)
	if e.Session != "" {
		msg = fmt.Sprintf("%s [session %s]", msg, e.Session)
	}
	if e.Plugin != "" {
		msg = fmt.Sprintf("%s [plugin %s]", msg, e.Plugin)
	}
	if e.Context != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Context)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %s", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// E creates a new Error. Arguments can be:
// - Op: the operation name
// - Kind: the error kind
// - string: context message
// - error: the underlying error
func E(args ...interface{}) error {
	e := &Error{}
	for _, arg := range args {
		switch a := arg.(type) {
		case Op:
			e.Op = a
		case Kind:
			e.Kind = a
		case string:
			e.Context = a
		case error:
			e.Err = a
		}
	}
	if e.Err == nil && e.Context == "" {
		e.Context = e.Kind.String()
	}
	return e
}

// Is reports whether err is of the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// GetKind returns the Kind of an error.
func GetKind(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ReservationConflict reports that a session ID is already reserved.
func ReservationConflict(id string) error {
	return &Error{Op: "store.Reserve", Kind: KindReservationConflict, Session: id,
		Context: "session ID already reserved"}
}

// SessionNotFound reports an operation against an unknown session.
func SessionNotFound(op Op, id string) error {
	return &Error{Op: op, Kind: KindNotFound, Session: id, Context: "session not found"}
}

// RuntimeDead reports an operation against a session whose runtime is gone.
func RuntimeDead(op Op, id string) error {
	return &Error{Op: op, Kind: KindNotFound, Session: id, Context: "runtime handle is dead"}
}

// PluginFailed wraps a capability plugin failure with its session context.
func PluginFailed(op Op, plugin, sessionID string, err error) error {
	return &Error{Op: op, Kind: KindPlugin, Plugin: plugin, Session: sessionID, Err: err}
}

// DeliveryAmbiguous reports a message whose receipt was never confirmed.
func DeliveryAmbiguous(id string) error {
	return &Error{Op: "manager.Send", Kind: KindDeliveryAmbiguous, Session: id,
		Context: "message sent but receipt unconfirmed after busy-wait"}
}

// StaleRecord reports a corrupt or partially written session record.
func StaleRecord(id string, err error) error {
	return &Error{Op: "store.Read", Kind: KindStaleRecord, Session: id, Err: err}
}

// OrchestratorRunning reports an attempt to replace a live orchestrator.
func OrchestratorRunning(id string) error {
	return &Error{Op: "manager.SpawnOrchestrator", Kind: KindConflict, Session: id,
		Context: "orchestrator already running; stop it before requesting a new prompt"}
}
