// Package schedule maps check outcomes to the next poll cadence.
package schedule

import (
	"fmt"
	"time"
)

// Regime is the believed current network mode
type Regime int

const (
	RegimeNoPortal Regime = iota
	RegimePortalDetected
	RegimeLoggedIn
)

func (r Regime) String() string {
	switch r {
	case RegimePortalDetected:
		return "portal_detected"
	case RegimeLoggedIn:
		return "logged_in"
	default:
		return "no_portal"
	}
}

// MarshalText makes regimes readable in JSON and YAML status output
func (r Regime) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Regime) UnmarshalText(text []byte) error {
	switch string(text) {
	case "no_portal":
		*r = RegimeNoPortal
	case "portal_detected":
		*r = RegimePortalDetected
	case "logged_in":
		*r = RegimeLoggedIn
	default:
		return fmt.Errorf("unknown regime %q", text)
	}
	return nil
}

// Outcome is what a single check cycle observed
type Outcome int

const (
	// OutcomeNoPortal means the probe was clear and no login was needed
	OutcomeNoPortal Outcome = iota

	// OutcomePortalDetected means a portal was seen, whatever the login result
	OutcomePortalDetected

	// OutcomeLoginSucceeded means a login succeeded, or the probe was clear
	// while already logged in
	OutcomeLoginSucceeded

	// OutcomeCheckFailed means the probe itself failed (network error)
	OutcomeCheckFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomePortalDetected:
		return "portal_detected"
	case OutcomeLoginSucceeded:
		return "login_succeeded"
	case OutcomeCheckFailed:
		return "check_failed"
	default:
		return "no_portal"
	}
}

// Limits bounds the poll interval
type Limits struct {
	Min time.Duration
	Max time.Duration
}

// DefaultLimits are the 10s..30m bounds
var DefaultLimits = Limits{Min: 10 * time.Second, Max: 1800 * time.Second}

// State is the cadence state owned by the daemon loop.
// Interval is always within the Limits it was computed with.
type State struct {
	Regime   Regime
	Interval time.Duration
}

// Initial is the state before the first check: fast polling, no portal assumed
func Initial(limits Limits) State {
	return State{Regime: RegimeNoPortal, Interval: limits.Min}
}

// Next computes the state following outcome
func Next(current State, outcome Outcome, limits Limits) State {
	var next State

	switch outcome {
	case OutcomePortalDetected:
		next = State{Regime: RegimePortalDetected, Interval: limits.Min}
	case OutcomeLoginSucceeded:
		next = State{Regime: RegimeLoggedIn, Interval: limits.Max}
	case OutcomeNoPortal:
		next = State{Regime: RegimeNoPortal, Interval: max(limits.Min, current.Interval/2)}
	default:
		next = State{Regime: current.Regime, Interval: limits.Min}
	}

	next.Interval = limits.Clamp(next.Interval)
	return next
}

// Clamp bounds d to [Min, Max]
func (l Limits) Clamp(d time.Duration) time.Duration {
	return min(max(d, l.Min), l.Max)
}
