// Package policy decides, before every mutating operation, whether this
// instance may write: online writers cooperate through the global lock
// (first writer wins, others degrade to read-only), offline operation is
// always permitted against the local copy.
package policy

import "log/slog"

//go:generate moq -out policy_mock.go . Locker Prober

// Locker is the slice of the lock manager the guard needs.
type Locker interface {
	HoldsGlobal() bool
	AcquireGlobal() bool
}

// Prober reports whether the network root is reachable.
type Prober interface {
	Online() bool
}

// Decision is the outcome of a write-access check.
type Decision int

const (
	// Allow grants read-write access to the shared dataset.
	Allow Decision = iota
	// AllowLocalOnly grants writes against the local copy only: the
	// instance is offline and there is nobody to coordinate with.
	AllowLocalOnly
	// Deny means another instance holds the global lock; the caller must
	// degrade to a read-only view.
	Deny
)

// String renders the decision for logs and status reports.
func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case AllowLocalOnly:
		return "allow-local-only"
	case Deny:
		return "deny"
	default:
		return "unknown"
	}
}

// Writable reports whether the decision permits any mutation.
func (d Decision) Writable() bool {
	return d != Deny
}

// Guard evaluates the write-access policy.
type Guard struct {
	locks  Locker
	probe  Prober
	logger *slog.Logger
}

// NewGuard creates a guard over the given collaborators.
func NewGuard(locks Locker, probe Prober, logger *slog.Logger) *Guard {
	return &Guard{locks: locks, probe: probe, logger: logger}
}

// Check returns the current write-access decision, transparently acquiring
// the global lock when online and nobody holds it yet.
func (g *Guard) Check() Decision {
	if g.locks.HoldsGlobal() {
		return Allow
	}

	if g.probe.Online() {
		if g.locks.AcquireGlobal() {
			return Allow
		}
		g.logger.Info("write denied, another session is editing")
		return Deny
	}

	// Offline: single-user assumption, write to the local copy only.
	return AllowLocalOnly
}
