package checkout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"checkout-orchestrator/internal/model"
)

type JobUpdate struct {
	JobID  string
	Status string
}

// JobPoller polls a generation job at a fixed interval while its status is
// exactly "processing". Status checks run one at a time on a single
// goroutine.
type JobPoller struct {
	jobs     JobStatusService
	interval time.Duration
	onUpdate func(JobUpdate)
	logger   *slog.Logger

	mu     sync.Mutex
	jobID  string
	cancel context.CancelFunc
	done   chan struct{}
}

func NewJobPoller(jobs JobStatusService, interval time.Duration, onUpdate func(JobUpdate), logger *slog.Logger) *JobPoller {
	if onUpdate == nil {
		onUpdate = func(JobUpdate) {}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &JobPoller{
		jobs:     jobs,
		interval: interval,
		onUpdate: onUpdate,
		logger:   logger,
	}
}

// Watch starts polling jobID if status is processing and reports whether a
// poll is running for it afterwards. Watching a different job replaces the
// current poll; watching the same job again is a no-op.
func (p *JobPoller) Watch(ctx context.Context, jobID, status string) bool {
	if status != model.JobProcessing {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		if p.jobID == jobID {
			return true
		}
		p.cancel()
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.jobID = jobID
	p.cancel = cancel
	p.done = done

	go p.run(ctx, jobID, done)
	return true
}

func (p *JobPoller) run(ctx context.Context, jobID string, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := p.jobs.JobStatus(ctx, jobID)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.logger.Warn("job status check failed", "job_id", jobID, "error", err)
			continue
		}

		p.onUpdate(JobUpdate{JobID: jobID, Status: status})
		if status != model.JobProcessing {
			p.release(jobID)
			return
		}
	}
}

// release forgets jobID once its poll has ended on its own.
func (p *JobPoller) release(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.jobID == jobID && p.cancel != nil {
		p.cancel()
		p.cancel = nil
		p.jobID = ""
	}
}

// Cancel stops the running poll and waits for it to exit.
func (p *JobPoller) Cancel() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.jobID = ""
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (p *JobPoller) Running() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobID, p.cancel != nil
}
