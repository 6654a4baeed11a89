package jobpoll

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aria-labs/ariactl/internal/backend"
	"github.com/aria-labs/ariactl/internal/observability"
	"github.com/aria-labs/ariactl/internal/protocol"
	"github.com/aria-labs/ariactl/internal/state"
)

var ErrJobIDRequired = errors.New("jobpoll: job id required")

// DefaultInterval is the fixed time between status fetches.
const DefaultInterval = 2 * time.Second

// Fetcher retrieves the current status of one job.
type Fetcher interface {
	FetchJobStatus(ctx context.Context, jobID string) (backend.JobStatusResponse, error)
}

// Sink receives poll results in fetch order.
type Sink interface {
	// HandleJobUpdate replaces the job lifecycle and folds per-agent
	// statuses from the poll response.
	HandleJobUpdate(job state.JobLifecycle, agents map[string]string)
	// HandleJobEvent delivers a synthetic protocol event (the single
	// completion message, or the error on a failed fetch).
	HandleJobEvent(ev protocol.Event)
	// HandleJobDone clears the lifecycle once terminal and consumed.
	HandleJobDone(jobID string)
}

// Poller drives at most one poll loop at a time. Starting a new job or
// stopping cancels the previous loop; a fetch that resolves after
// cancellation is discarded, never applied.
type Poller struct {
	fetcher  Fetcher
	sink     Sink
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	gen    uint64
	jobID  string
	cancel context.CancelFunc
}

// NewPoller constructs an idle poller. A non-positive interval selects
// DefaultInterval.
func NewPoller(fetcher Fetcher, sink Sink, interval time.Duration, log zerolog.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{
		fetcher:  fetcher,
		sink:     sink,
		interval: interval,
		log:      log.With().Str("component", "jobpoll").Logger(),
	}
}

// JobID returns the job currently being polled, if any.
func (p *Poller) JobID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobID
}

// Start begins polling jobID, replacing any active poll loop. The first
// fetch is issued immediately.
func (p *Poller) Start(jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return ErrJobIDRequired
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}
	p.gen++
	gen := p.gen
	p.jobID = jobID
	p.cancel = cancel
	p.mu.Unlock()

	p.log.Info().Str("job", jobID).Msg("job poll started")
	go p.run(ctx, gen, jobID)
	return nil
}

// Stop cancels the active poll loop, if any.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.gen++
	p.jobID = ""
	p.mu.Unlock()
}

// finishLocked releases the loop's slot if it still owns it. Callers
// hold p.mu.
func (p *Poller) finishLocked(gen uint64) {
	if gen == p.gen {
		if p.cancel != nil {
			p.cancel()
			p.cancel = nil
		}
		p.jobID = ""
	}
}

func (p *Poller) run(ctx context.Context, gen uint64, jobID string) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		resp, err := p.fetcher.FetchJobStatus(ctx, jobID)

		// Staleness check and sink apply share the critical section:
		// once Start or Stop has bumped the generation under p.mu, a
		// late fetch for the old job can never reach the sink.
		p.mu.Lock()
		if ctx.Err() != nil || gen != p.gen {
			p.mu.Unlock()
			return
		}
		if err != nil {
			// A job handle has a bounded lifetime: a failed fetch ends
			// the poll instead of retrying.
			observability.RecordJobPollFetch("error")
			p.log.Warn().Err(err).Str("job", jobID).Msg("job status fetch failed, poll stopped")
			p.sink.HandleJobEvent(protocol.Event{
				Type:    protocol.EventError,
				Content: fmt.Sprintf("job %s status unavailable: %v", jobID, err),
			})
			p.finishLocked(gen)
			p.mu.Unlock()
			return
		}
		observability.RecordJobPollFetch("ok")

		job := state.JobLifecycle{
			JobID:       jobID,
			Status:      state.JobStatus(resp.Status),
			Progress:    resp.Progress,
			CurrentStep: resp.CurrentStep,
			Result:      resp.Result,
			Error:       resp.Error,
		}
		p.sink.HandleJobUpdate(job, resp.AgentStatuses)

		if job.Status.Terminal() {
			p.log.Info().Str("job", jobID).Str("status", string(job.Status)).Msg("job terminal, poll stopped")
			p.sink.HandleJobEvent(protocol.Event{
				Type:    protocol.EventMessage,
				Content: summarize(job),
			})
			p.sink.HandleJobDone(jobID)
			p.finishLocked(gen)
			p.mu.Unlock()
			return
		}
		p.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func summarize(job state.JobLifecycle) string {
	if job.Status == state.JobFailed {
		reason := strings.TrimSpace(job.Error)
		if reason == "" {
			reason = "no error detail reported"
		}
		return fmt.Sprintf("Analysis job %s failed: %s", job.JobID, reason)
	}
	if len(job.Result) > 0 {
		return fmt.Sprintf("Analysis job %s completed. Result: %s", job.JobID, strings.TrimSpace(string(job.Result)))
	}
	return fmt.Sprintf("Analysis job %s completed.", job.JobID)
}
