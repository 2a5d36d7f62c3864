// Package coordinator is the typed HTTP client for the HashPlane coordinator.
//
// It covers the five agent-facing operations: bind, query-state, submit-share,
// claim-next-job and submit-job-result. The client never retries; every failure
// is surfaced as a *CallError carrying the operation and a typed reason so the
// worker loops own the backoff decision.
package coordinator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity names this agent instance to the coordinator. Immutable for the
// process lifetime.
type Identity struct {
	Wallet   string
	HostID   string
	DeviceID string
}

// Reason classifies why a coordinator call failed.
type Reason string

const (
	// ReasonTransport covers connection and timeout failures.
	ReasonTransport Reason = "transport"
	// ReasonStatus covers non-2xx responses.
	ReasonStatus Reason = "status"
	// ReasonDecode covers malformed response bodies.
	ReasonDecode Reason = "decode"
	// ReasonRejected covers well-formed responses with ok=false.
	ReasonRejected Reason = "rejected"
)

// CallError is a failed coordinator call. All reasons are transient from the
// loops' perspective: log, back off, try again next cycle.
type CallError struct {
	Op     string
	Reason Reason
	Status int
	Err    error
}

func (e *CallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("coordinator %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("coordinator %s: %s (HTTP %d)", e.Op, e.Reason, e.Status)
}

func (e *CallError) Unwrap() error { return e.Err }

// GateState is one snapshot of the coordinator's authorization view for this
// host. Valid for the current loop cycle only; never cached across cycles.
type GateState struct {
	HostID           string `json:"host_id"`
	Enabled          bool   `json:"enabled"`
	Wallet           string `json:"wallet,omitempty"`
	GPUReportedModel string `json:"gpu_reported_model,omitempty"`
	GPUVerified      bool   `json:"gpu_verified"`
}

// Job is one inference request owned by the coordinator. The agent claims at
// most one at a time and writes back exactly one result or error for it.
type Job struct {
	ID      string `json:"id"`
	Wallet  string `json:"wallet"`
	ModelID string `json:"model_id"`
	Prompt  string `json:"prompt"`
	Status  string `json:"status"`
	Result  string `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Client talks to one coordinator on behalf of one identity.
type Client struct {
	base string
	id   Identity
	http *http.Client
}

// New creates a coordinator client. baseURL is the coordinator root, without
// a trailing slash.
func New(baseURL string, id Identity, timeout time.Duration) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		id:   id,
		http: &http.Client{Timeout: timeout},
	}
}

// Identity returns the identity this client binds and submits as.
func (c *Client) Identity() Identity { return c.id }

// ─── Wire types ─────────────────────────────────────────────────────────────

type bindRequest struct {
	HostID   string `json:"host_id"`
	DeviceID string `json:"device_id"`
	Wallet   string `json:"wallet"`
	GPUModel string `json:"gpu_model,omitempty"`
}

type bindResponse struct {
	OK    bool   `json:"ok"`
	Bound bool   `json:"bound"`
	Error string `json:"error,omitempty"`
}

type shareRequest struct {
	Wallet     string  `json:"wallet"`
	HostID     string  `json:"host_id"`
	DeviceID   string  `json:"device_id"`
	Difficulty float64 `json:"difficulty"`
}

type shareResponse struct {
	OK    bool   `json:"ok"`
	Total int64  `json:"total,omitempty"`
	Error string `json:"error,omitempty"`
}

type claimRequest struct {
	HostID   string `json:"host_id"`
	DeviceID string `json:"device_id"`
}

type claimResponse struct {
	OK    bool   `json:"ok"`
	Job   *Job   `json:"job"`
	Error string `json:"error,omitempty"`
}

type jobResultRequest struct {
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// ─── Operations ─────────────────────────────────────────────────────────────

// Bind registers this identity with the coordinator. Idempotent; called every
// mining-loop iteration. bound=false with a well-formed response is a normal
// not-yet-authorized outcome, not an error.
func (c *Client) Bind(ctx context.Context, gpuModel string) (bool, error) {
	req := bindRequest{
		HostID:   c.id.HostID,
		DeviceID: c.id.DeviceID,
		Wallet:   c.id.Wallet,
		GPUModel: gpuModel,
	}
	var resp bindResponse
	if err := c.post(ctx, "bind", "/api/v1/agents/bind", req, &resp); err != nil {
		return false, err
	}
	if !resp.OK {
		return false, &CallError{Op: "bind", Reason: ReasonRejected, Err: fmt.Errorf("%s", resp.Error)}
	}
	return resp.Bound, nil
}

// QueryState fetches the current gate state for this host. Read-only and safe
// to poll frequently.
func (c *Client) QueryState(ctx context.Context) (GateState, error) {
	var st GateState
	if err := c.get(ctx, "query-state", "/api/v1/agents/"+c.id.HostID+"/state", &st); err != nil {
		return GateState{}, err
	}
	return st, nil
}

// SubmitShare reports one completed share at the given difficulty. The
// returned cumulative total is informational only; the coordinator is the
// sole source of truth for it.
func (c *Client) SubmitShare(ctx context.Context, difficulty float64) (int64, error) {
	req := shareRequest{
		Wallet:     c.id.Wallet,
		HostID:     c.id.HostID,
		DeviceID:   c.id.DeviceID,
		Difficulty: difficulty,
	}
	var resp shareResponse
	if err := c.post(ctx, "submit-share", "/api/v1/shares", req, &resp); err != nil {
		return 0, err
	}
	if !resp.OK {
		return 0, &CallError{Op: "submit-share", Reason: ReasonRejected, Err: fmt.Errorf("%s", resp.Error)}
	}
	return resp.Total, nil
}

// ClaimNextJob asks the coordinator for the next queued job. A (nil, nil)
// return means no work is available, which is a normal outcome — claiming is
// racy by design and losing to another agent looks identical.
func (c *Client) ClaimNextJob(ctx context.Context) (*Job, error) {
	req := claimRequest{HostID: c.id.HostID, DeviceID: c.id.DeviceID}
	var resp claimResponse
	if err := c.post(ctx, "claim-next-job", "/api/v1/jobs/claim", req, &resp); err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, &CallError{Op: "claim-next-job", Reason: ReasonRejected, Err: fmt.Errorf("%s", resp.Error)}
	}
	return resp.Job, nil
}

// SubmitJobResult reports the terminal outcome for a claimed job. Must be
// called exactly once per claim; jobErr is empty on success.
func (c *Client) SubmitJobResult(ctx context.Context, jobID, result, jobErr string) error {
	req := jobResultRequest{Result: result, Error: jobErr}
	return c.post(ctx, "submit-job-result", "/api/v1/jobs/"+jobID+"/result", req, nil)
}

// ─── Transport ──────────────────────────────────────────────────────────────

func (c *Client) post(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &CallError{Op: op, Reason: ReasonDecode, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return &CallError{Op: op, Reason: ReasonTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(op, req, out)
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return &CallError{Op: op, Reason: ReasonTransport, Err: err}
	}
	return c.do(op, req, out)
}

func (c *Client) do(op string, req *http.Request, out any) error {
	req.Header.Set("X-Request-Id", uuid.New().String())

	resp, err := c.http.Do(req)
	if err != nil {
		return &CallError{Op: op, Reason: ReasonTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &CallError{Op: op, Reason: ReasonStatus, Status: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &CallError{Op: op, Reason: ReasonDecode, Err: err}
	}
	return nil
}
