// Package gate tracks the coordinator-granted authorization state.
//
// The machine is a perpetual re-evaluation loop, not a one-shot graph: every
// worker cycle folds the latest bind/state observation in and asks "may I work
// now". Authorization is never sticky — a negative or failed observation
// demotes immediately, and nothing is cached beyond the current cycle.
package gate

import (
	"log"
	"math/rand"
	"sync"
	"time"
)

// State is the current authorization level.
type State int

const (
	// Unbound means the coordinator has not (or no longer) bound this device.
	Unbound State = iota
	// BoundDisabled means bound but not cleared to work.
	BoundDisabled
	// BoundEnabledUnverified means cleared to run jobs, GPU not yet verified.
	BoundEnabledUnverified
	// BoundEnabledVerified means fully cleared, including share mining.
	BoundEnabledVerified
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "UNBOUND"
	case BoundDisabled:
		return "BOUND_DISABLED"
	case BoundEnabledUnverified:
		return "BOUND_ENABLED_UNVERIFIED"
	case BoundEnabledVerified:
		return "BOUND_ENABLED_VERIFIED"
	}
	return "UNKNOWN"
}

// Options tune one machine. WorkInterval paces active cycles, IdleInterval
// paces every gated-off or failed cycle, RecheckProbability is the per-cycle
// chance of re-affirming authorization while actively mining.
type Options struct {
	Name               string
	WorkInterval       time.Duration
	IdleInterval       time.Duration
	RecheckProbability float64
	// Rand overrides the random source for the probabilistic re-check.
	// Nil uses math/rand. Tests inject a deterministic function.
	Rand func() float64
}

// Machine folds coordinator observations into an authorization state. Each
// worker loop owns its own machine; the two loops never share one, so they
// may observe different snapshots at any instant (acceptable per design —
// gate state is advisory per cycle, not a distributed lock).
type Machine struct {
	mu    sync.Mutex
	state State
	opts  Options
}

// New creates a machine starting at Unbound.
func New(opts Options) *Machine {
	if opts.Rand == nil {
		opts.Rand = rand.Float64
	}
	return &Machine{opts: opts}
}

// Name returns the machine's log label.
func (m *Machine) Name() string { return m.opts.Name }

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ObserveBind folds a bind result in. bound=false demotes to Unbound from
// any state.
func (m *Machine) ObserveBind(bound bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !bound {
		m.set(Unbound)
		return
	}
	if m.state == Unbound {
		m.set(BoundDisabled)
	}
}

// ObserveState folds a state-query result in. Only meaningful while bound;
// the verified flag is owned by the coordinator and read as-is.
func (m *Machine) ObserveState(enabled, gpuVerified bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Unbound {
		return
	}
	switch {
	case !enabled:
		m.set(BoundDisabled)
	case gpuVerified:
		m.set(BoundEnabledVerified)
	default:
		m.set(BoundEnabledUnverified)
	}
}

// ObserveFailure parks the machine after a failed remote call: not authorized
// this cycle, never fatal. An unbound machine stays unbound; anything enabled
// demotes to BoundDisabled until a fresh positive observation.
func (m *Machine) ObserveFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Unbound {
		return
	}
	m.set(BoundDisabled)
}

// CanMine reports whether share search and submission are permitted.
func (m *Machine) CanMine() bool {
	return m.State() == BoundEnabledVerified
}

// CanRunJobs reports whether claiming inference jobs is permitted. GPU
// verification gates mining only.
func (m *Machine) CanRunJobs() bool {
	s := m.State()
	return s == BoundEnabledUnverified || s == BoundEnabledVerified
}

// Backoff returns how long the owning loop should sleep after a cycle in the
// given state: the short work interval while fully cleared, the long idle
// interval for every gated-off or error-parked state.
func (m *Machine) Backoff(s State) time.Duration {
	if s == BoundEnabledVerified {
		return m.opts.WorkInterval
	}
	return m.opts.IdleInterval
}

// ShouldRecheck decides whether this cycle re-affirms authorization with the
// coordinator. Always true when not actively mining; while in an active
// burst it fires with a small fixed probability instead of every cycle,
// trading a bounded chance of one extra cycle past de-authorization for
// reduced polling load.
func (m *Machine) ShouldRecheck() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != BoundEnabledVerified {
		return true
	}
	return m.opts.Rand() < m.opts.RecheckProbability
}

// set records a transition. Caller holds the lock.
func (m *Machine) set(s State) {
	if s == m.state {
		return
	}
	log.Printf("[gate:%s] %s -> %s", m.opts.Name, m.state, s)
	m.state = s
}
