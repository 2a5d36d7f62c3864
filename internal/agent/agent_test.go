package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/hashplane-network/hashplane/internal/coordinator"
)

// fakeCoordinator is an in-process coordinator for loop tests. It records
// every call so tests can assert on what the agent actually sent.
type fakeCoordinator struct {
	mu sync.Mutex

	bound    bool
	enabled  bool
	verified bool

	job       *coordinator.Job // handed out once, then nil
	shareFail bool             // force submit-share to 500

	bindCalls   int
	stateCalls  int
	shareCalls  int
	claimCalls  int
	resultCalls int

	lastShareDifficulty float64
	lastResultJobID     string
	lastResult          string
	lastResultError     string

	srv *httptest.Server
}

func newFakeCoordinator(t *testing.T) *fakeCoordinator {
	t.Helper()
	f := &fakeCoordinator{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeCoordinator) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.URL.Path == "/api/v1/agents/bind":
		f.bindCalls++
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "bound": f.bound})

	case r.URL.Path == "/api/v1/agents/host-t/state":
		f.stateCalls++
		json.NewEncoder(w).Encode(map[string]any{
			"host_id": "host-t", "enabled": f.enabled, "gpu_verified": f.verified,
		})

	case r.URL.Path == "/api/v1/shares":
		f.shareCalls++
		if f.shareFail {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		var req struct {
			Difficulty float64 `json:"difficulty"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.lastShareDifficulty = req.Difficulty
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "total": int64(f.shareCalls)})

	case r.URL.Path == "/api/v1/jobs/claim":
		f.claimCalls++
		job := f.job
		f.job = nil
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "job": job})

	case len(r.URL.Path) > len("/api/v1/jobs/") && r.URL.Path[len(r.URL.Path)-7:] == "/result":
		f.resultCalls++
		f.lastResultJobID = r.URL.Path[len("/api/v1/jobs/") : len(r.URL.Path)-len("/result")]
		var req struct {
			Result string `json:"result"`
			Error  string `json:"error"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.lastResult = req.Result
		f.lastResultError = req.Error
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeCoordinator) counts() (bind, state, share, claim, result int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bindCalls, f.stateCalls, f.shareCalls, f.claimCalls, f.resultCalls
}

// newFakeBackend serves one canned chat completion.
func newFakeBackend(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"},
			},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// newTestAgent builds an agent pointed at the fakes with fast intervals and
// a deterministic always-recheck gate.
func newTestAgent(t *testing.T, coordURL, backendURL string, difficulty float64) *Agent {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Agent.Wallet = "0xTEST"
	cfg.Agent.HostID = "host-t"
	cfg.Agent.DeviceID = "dev-t"
	cfg.Agent.GPUModel = "TEST GPU" // skip nvidia-smi probing
	cfg.Coordinator.URL = coordURL
	cfg.Coordinator.Timeout = "2s"
	cfg.Backend.URL = backendURL
	cfg.Backend.Timeout = "2s"
	cfg.Mining.Difficulty = difficulty
	cfg.Mining.WorkInterval = "10ms"
	cfg.Mining.IdleInterval = "10ms"
	cfg.Mining.RecheckProbability = 1 // re-check every cycle in tests
	cfg.Jobs.PollInterval = "10ms"
	cfg.Jobs.IdleInterval = "10ms"

	a := New(cfg, t.TempDir())
	t.Cleanup(a.Close)
	return a
}

// ─── Supervisor ─────────────────────────────────────────────────────────────

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFakeCoordinator(t)
	backend := newFakeBackend(t, "out")
	a := newTestAgent(t, f.srv.URL, backend.URL, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not stop after cancellation")
	}
}

func TestSnapshot_CarriesIdentity(t *testing.T) {
	f := newFakeCoordinator(t)
	backend := newFakeBackend(t, "out")
	a := newTestAgent(t, f.srv.URL, backend.URL, 1)

	snap := a.Snapshot()
	if snap.Wallet != "0xTEST" || snap.HostID != "host-t" || snap.DeviceID != "dev-t" {
		t.Errorf("snapshot identity = %+v", snap)
	}
	if snap.MinerState != "UNBOUND" || snap.JobsState != "UNBOUND" {
		t.Errorf("initial states = %q/%q, want UNBOUND", snap.MinerState, snap.JobsState)
	}
}
