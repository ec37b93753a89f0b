// Package interceptor implements the compensable method interceptor
// (spec.md §4.2/§4.3): given a Method Context describing an intercepted
// call, it decides whether the call is a ROOT, PROVIDER, or NORMAL
// participant in a TCC transaction and drives the corresponding
// begin/proceed/commit-or-rollback sequence through a txmanager.Manager.
package interceptor

import "github.com/tylooteam/tyloo/internal/txcore"

// Propagation is the propagation behavior declared on a compensable
// method (spec.md §6).
type Propagation string

const (
	// Required joins an active transaction if one exists, otherwise
	// starts a ROOT (no inbound context) or a PROVIDER branch (inbound
	// context present).
	Required Propagation = "REQUIRED"
	// RequiresNew always starts a fresh ROOT, regardless of an active
	// transaction or inbound context.
	RequiresNew Propagation = "REQUIRES_NEW"
	// Mandatory requires an active transaction or inbound context; with
	// neither, invocation is a programmer error.
	Mandatory Propagation = "MANDATORY"
)

// Annotation is the declarative surface a compensable method carries
// (spec.md §6): which methods confirm/cancel invoke, how propagation
// behaves, whether each phase dispatches async, and which errors defer
// cancellation rather than triggering it immediately.
type Annotation struct {
	ConfirmMethod string
	CancelMethod  string
	Propagation   Propagation
	AsyncConfirm  bool
	AsyncCancel   bool

	// DelayCancelExceptions is the Go rendering of "list of exception
	// types": a list of sentinel or target errors matched against the
	// business method's returned error with errors.Is/errors.As. A match
	// means "defer cancellation to recovery" rather than "cancel now".
	DelayCancelExceptions []error
}

// Role is the outcome of resolving a Method Context against the
// propagation x active x ctx-present table (spec.md §4.2).
type Role string

const (
	RoleRoot     Role = "ROOT"
	RoleProvider Role = "PROVIDER"
	RoleNormal   Role = "NORMAL"
	RoleError    Role = "ERROR"
)

// ResolveRole implements the propagation x active x ctx-present table
// from spec.md §4.2.
func ResolveRole(p Propagation, active bool, inbound *txcore.Context) Role {
	switch p {
	case RequiresNew:
		return RoleRoot
	case Mandatory:
		switch {
		case active:
			return RoleNormal
		case inbound != nil:
			return RoleProvider
		default:
			return RoleError
		}
	default: // Required
		switch {
		case active:
			return RoleNormal
		case inbound != nil:
			return RoleProvider
		default:
			return RoleRoot
		}
	}
}
