package agent

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/hashplane-network/hashplane/internal/coordinator"
	"github.com/hashplane-network/hashplane/internal/gate"
	"github.com/hashplane-network/hashplane/internal/gpu"
	"github.com/hashplane-network/hashplane/internal/inference"
	"github.com/hashplane-network/hashplane/internal/infra/sqlite"
)

// Agent supervises the two worker loops. The loops share no mutable state
// with each other — each owns its own gate machine and talks to the
// coordinator through independent calls; the only rendezvous is the
// read-only status snapshot.
type Agent struct {
	cfg      Config
	coord    *coordinator.Client
	backend  *inference.Client
	journal  *sqlite.DB // nil when the journal could not be opened
	gpuModel string

	minerGate *gate.Machine
	jobsGate  *gate.Machine

	mu   sync.Mutex
	snap Snapshot
}

// Snapshot is the agent's current view for the status endpoint. Purely
// informational; nothing in the worker loops reads it back.
type Snapshot struct {
	Wallet     string `json:"wallet"`
	HostID     string `json:"host_id"`
	DeviceID   string `json:"device_id"`
	GPUModel   string `json:"gpu_model,omitempty"`
	MinerState string `json:"miner_state"`
	JobsState  string `json:"jobs_state"`

	SharesSubmitted  int64     `json:"shares_submitted"`  // this process only
	CoordinatorTotal int64     `json:"coordinator_total"` // as last reported
	LastShareAt      time.Time `json:"last_share_at,omitzero"`

	JobsCompleted int64  `json:"jobs_completed"`
	JobsFailed    int64  `json:"jobs_failed"`
	LastJobID     string `json:"last_job_id,omitempty"`
}

// New wires an agent from an already-validated config. dataDir holds the
// work journal; a journal open failure is logged and degrades the agent to
// journal-less operation rather than failing startup.
func New(cfg Config, dataDir string) *Agent {
	id := coordinator.Identity{
		Wallet:   cfg.Agent.Wallet,
		HostID:   cfg.Agent.HostID,
		DeviceID: cfg.Agent.DeviceID,
	}

	journal, err := sqlite.Open(dataDir)
	if err != nil {
		log.Printf("[agent] journal disabled: %v", err)
		journal = nil
	}

	gpuModel := gpu.Detect(cfg.Agent.GPUModel)
	if gpuModel == "" {
		log.Printf("[agent] no GPU model detected; binding without one")
	}

	a := &Agent{
		cfg:      cfg,
		coord:    coordinator.New(cfg.Coordinator.URL, id, parseDuration(cfg.Coordinator.Timeout, 15*time.Second)),
		backend:  inference.New(cfg.Backend.URL, cfg.Backend.Routes, cfg.Backend.DefaultModel, parseDuration(cfg.Backend.Timeout, 120*time.Second)),
		journal:  journal,
		gpuModel: gpuModel,
	}
	a.minerGate = gate.New(gate.Options{
		Name:               "miner",
		WorkInterval:       parseDuration(cfg.Mining.WorkInterval, 2*time.Second),
		IdleInterval:       parseDuration(cfg.Mining.IdleInterval, 15*time.Second),
		RecheckProbability: cfg.Mining.RecheckProbability,
	})
	// The jobs loop re-affirms authorization on every cycle; the
	// probabilistic skip applies to active mining bursts only.
	a.jobsGate = gate.New(gate.Options{
		Name:               "jobs",
		WorkInterval:       parseDuration(cfg.Jobs.PollInterval, 5*time.Second),
		IdleInterval:       parseDuration(cfg.Jobs.IdleInterval, 10*time.Second),
		RecheckProbability: 1,
	})
	a.snap = Snapshot{
		Wallet:   id.Wallet,
		HostID:   id.HostID,
		DeviceID: id.DeviceID,
		GPUModel: gpuModel,
	}
	return a
}

// Run starts both worker loops and blocks until the context is cancelled and
// both have stopped. Nothing below the top of each loop terminates the
// process; the only fatal error path is config validation before Run.
func (a *Agent) Run(ctx context.Context) {
	log.Printf("[agent] starting: host=%s device=%s coordinator=%s",
		a.cfg.Agent.HostID, a.cfg.Agent.DeviceID, a.cfg.Coordinator.URL)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.runMiner(ctx)
	}()
	go func() {
		defer wg.Done()
		a.runJobs(ctx)
	}()
	wg.Wait()

	log.Printf("[agent] stopped")
}

// Close releases agent resources.
func (a *Agent) Close() {
	if a.journal != nil {
		_ = a.journal.Close()
	}
}

// Snapshot returns the current status view.
func (a *Agent) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.snap
	s.MinerState = a.minerGate.State().String()
	s.JobsState = a.jobsGate.State().String()
	return s
}

// Journal returns the work journal, or nil when disabled.
func (a *Agent) Journal() *sqlite.DB { return a.journal }

// updateSnap mutates the snapshot under the lock.
func (a *Agent) updateSnap(fn func(*Snapshot)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.snap)
}

// sleep waits for d or until cancellation, reporting whether the owning loop
// should continue.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
