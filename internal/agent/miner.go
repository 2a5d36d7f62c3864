package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hashplane-network/hashplane/internal/coordinator"
	"github.com/hashplane-network/hashplane/internal/gate"
	"github.com/hashplane-network/hashplane/internal/infra/metrics"
	"github.com/hashplane-network/hashplane/internal/infra/sqlite"
	"github.com/hashplane-network/hashplane/internal/pow"
)

// runMiner drives the share generator: bind, gate-check, search, submit,
// sleep, forever. Every failure mode is "not authorized this cycle" plus a
// backoff; nothing here is fatal.
func (a *Agent) runMiner(ctx context.Context) {
	log.Printf("[miner] started: difficulty=%v", a.cfg.Mining.Difficulty)

	for {
		a.minerCycle(ctx)
		if !sleep(ctx, a.minerGate.Backoff(a.minerGate.State())) {
			log.Printf("[miner] stopped")
			return
		}
	}
}

// minerCycle is one outer iteration. Recovers from anything unexpected so
// the loop always restarts after backoff.
func (a *Agent) minerCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[miner] unexpected: %v", r)
		}
	}()

	m := a.minerGate
	if m.ShouldRecheck() {
		if !a.recheck(ctx, m) {
			metrics.GateState.WithLabelValues("miner").Set(float64(m.State()))
			return
		}
	}
	metrics.GateState.WithLabelValues("miner").Set(float64(m.State()))

	if !m.CanMine() {
		return
	}

	// Fresh timestamp per search keeps repeated and concurrent searches off
	// identical input spaces.
	seed := fmt.Sprintf("%s-%s-%d", a.cfg.Agent.HostID, a.cfg.Agent.DeviceID, time.Now().UnixNano())
	sol, err := pow.Search(ctx, a.cfg.Mining.Difficulty, seed)
	if err != nil {
		// Cancellation mid-search; the outer loop exits on its next sleep.
		return
	}
	metrics.SearchDuration.Observe(sol.Elapsed.Seconds())
	log.Printf("[miner] solution: nonce=%d hash=%s... elapsed=%s", sol.Nonce, sol.Hash[:12], sol.Elapsed.Round(time.Millisecond))

	total, err := a.coord.SubmitShare(ctx, a.cfg.Mining.Difficulty)
	if err != nil {
		a.observeCallFailure(m, err)
		metrics.SharesFailed.Inc()
		log.Printf("[miner] submit share failed: %v", err)
		return
	}
	metrics.SharesSubmitted.Inc()
	log.Printf("[miner] share accepted: coordinator total=%d", total)

	a.journalShare(sol)
	a.updateSnap(func(s *Snapshot) {
		s.SharesSubmitted++
		s.CoordinatorTotal = total
		s.LastShareAt = time.Now()
	})
}

// recheck re-affirms authorization with the coordinator: bind, then query
// state. Reports whether both calls succeeded; the gate machine absorbs the
// observations either way.
func (a *Agent) recheck(ctx context.Context, m *gate.Machine) bool {
	bound, err := a.coord.Bind(ctx, a.gpuModel)
	if err != nil {
		a.observeCallFailure(m, err)
		log.Printf("[%s] bind failed: %v", m.Name(), err)
		return false
	}
	m.ObserveBind(bound)
	if !bound {
		return false
	}

	st, err := a.coord.QueryState(ctx)
	if err != nil {
		a.observeCallFailure(m, err)
		log.Printf("[%s] query state failed: %v", m.Name(), err)
		return false
	}
	m.ObserveState(st.Enabled, st.GPUVerified)
	return true
}

// observeCallFailure parks the gate machine and counts the failure.
func (a *Agent) observeCallFailure(m *gate.Machine, err error) {
	m.ObserveFailure()
	var ce *coordinator.CallError
	if errors.As(err, &ce) {
		metrics.CoordinatorFailures.WithLabelValues(ce.Op, string(ce.Reason)).Inc()
	}
}

// journalShare records a submitted share; journal failures never affect the
// loop.
func (a *Agent) journalShare(sol pow.Solution) {
	if a.journal == nil {
		return
	}
	err := a.journal.RecordShare(sqlite.ShareRecord{
		SubmittedAt: time.Now(),
		Difficulty:  a.cfg.Mining.Difficulty,
		Nonce:       sol.Nonce,
		Hash:        sol.Hash,
		ElapsedMS:   sol.Elapsed.Milliseconds(),
	})
	if err != nil {
		log.Printf("[miner] journal: %v", err)
	}
}
