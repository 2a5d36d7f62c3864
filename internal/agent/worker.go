package agent

import (
	"context"
	"log"
	"time"

	"github.com/hashplane-network/hashplane/internal/coordinator"
	"github.com/hashplane-network/hashplane/internal/infra/metrics"
	"github.com/hashplane-network/hashplane/internal/infra/sqlite"
)

// fallbackResult is submitted as the result body when generation fails, so
// the coordinator always receives a non-empty terminal payload alongside the
// job error.
const fallbackResult = "generation failed; see error"

// runJobs drives the inference executor: gate-check, claim, generate, submit,
// sleep, forever. At most one job is in flight at a time; server-side claim
// exclusivity is the only locking.
func (a *Agent) runJobs(ctx context.Context) {
	log.Printf("[jobs] started: backend=%s", a.cfg.Backend.URL)

	for {
		a.jobsCycle(ctx)
		if !sleep(ctx, a.jobsGate.Backoff(a.jobsGate.State())) {
			log.Printf("[jobs] stopped")
			return
		}
	}
}

// jobsCycle is one outer iteration, recovered so the loop survives anything
// unexpected below it.
func (a *Agent) jobsCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[jobs] unexpected: %v", r)
		}
	}()

	m := a.jobsGate
	if !a.recheck(ctx, m) {
		metrics.GateState.WithLabelValues("jobs").Set(float64(m.State()))
		return
	}
	metrics.GateState.WithLabelValues("jobs").Set(float64(m.State()))

	if !m.CanRunJobs() {
		return
	}

	job, err := a.coord.ClaimNextJob(ctx)
	if err != nil {
		a.observeCallFailure(m, err)
		log.Printf("[jobs] claim failed: %v", err)
		return
	}
	if job == nil {
		// No work queued, or another agent won the claim. Normal.
		return
	}

	a.executeJob(ctx, job)
}

// executeJob runs one claimed job to its terminal submission. Every claimed
// job gets exactly one result-or-error submission: backend failures become a
// job-level error, and the submission itself survives cancellation so a
// claimed job is never abandoned silently mid-shutdown.
func (a *Agent) executeJob(ctx context.Context, job *coordinator.Job) {
	log.Printf("[jobs] claimed %s: model=%s", job.ID, job.ModelID)

	start := time.Now()
	result, genErr := a.backend.Generate(ctx, job.ModelID, job.Prompt)
	elapsed := time.Since(start)
	metrics.JobDuration.Observe(elapsed.Seconds())

	status := "completed"
	jobErr := ""
	if genErr != nil {
		status = "failed"
		jobErr = genErr.Error()
		result = fallbackResult
		metrics.JobsFailed.Inc()
		log.Printf("[jobs] %s generation failed: %v", job.ID, genErr)
	} else {
		metrics.JobsCompleted.Inc()
		log.Printf("[jobs] %s completed in %s", job.ID, elapsed.Round(time.Millisecond))
	}

	if err := a.coord.SubmitJobResult(context.WithoutCancel(ctx), job.ID, result, jobErr); err != nil {
		a.observeCallFailure(a.jobsGate, err)
		log.Printf("[jobs] submit result for %s failed: %v", job.ID, err)
	}

	a.journalJob(job, status, jobErr, elapsed)
	a.updateSnap(func(s *Snapshot) {
		if status == "completed" {
			s.JobsCompleted++
		} else {
			s.JobsFailed++
		}
		s.LastJobID = job.ID
	})
}

// journalJob records a finished job; journal failures never affect the loop.
func (a *Agent) journalJob(job *coordinator.Job, status, jobErr string, elapsed time.Duration) {
	if a.journal == nil {
		return
	}
	err := a.journal.RecordJob(sqlite.JobRecord{
		ID:         job.ID,
		ModelID:    job.ModelID,
		Status:     status,
		Error:      jobErr,
		ElapsedMS:  elapsed.Milliseconds(),
		FinishedAt: time.Now(),
	})
	if err != nil {
		log.Printf("[jobs] journal: %v", err)
	}
}
