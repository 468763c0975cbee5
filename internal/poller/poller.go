package poller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/andreasstove999/ecommerce-system/checkout-client-go/internal/clients"
)

const (
	DefaultInterval    = 2 * time.Second
	DefaultMaxAttempts = 150
	DefaultTimeout     = 5 * time.Minute
)

var (
	ErrAlreadyStarted = errors.New("poller already started")
	ErrPollingTimeout = errors.New("payment job did not finish in time")
	ErrNoJob          = errors.New("job id is required")
)

type State string

const (
	StateIdle      State = "IDLE"
	StatePolling   State = "POLLING"
	StateFinished  State = "FINISHED"
	StateFailed    State = "FAILED"
	StateTimedOut  State = "TIMED_OUT"
	StateCancelled State = "CANCELLED"
)

func (s State) IsTerminal() bool {
	return s != StateIdle && s != StatePolling
}

func (s State) String() string {
	return string(s)
}

// Fetcher reads the current status of a job.
type Fetcher interface {
	FetchJob(ctx context.Context, jobID string) (clients.Job, error)
}

// Attempt describes one status fetch.
type Attempt struct {
	JobID    string
	N        int
	Status   clients.JobStatus
	Err      error
	Duration time.Duration
}

type Config struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
	Logger      *log.Logger
	OnAttempt   func(Attempt)
}

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard, "", 0)
	}
	return c
}

// Outcome is handed to the terminal callback. Job is the last successfully
// fetched job and is zero when none was fetched.
type Outcome struct {
	State    State
	Job      clients.Job
	Attempts int
	Err      error
}

// Poller watches a single job until it finishes, fails, times out or is
// cancelled. Fetches never overlap: the next one is scheduled only after the
// previous response has been handled.
type Poller struct {
	fetcher Fetcher
	jobID   string
	cfg     Config

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}
}

func New(fetcher Fetcher, jobID string, cfg Config) *Poller {
	return &Poller{
		fetcher: fetcher,
		jobID:   jobID,
		cfg:     cfg.withDefaults(),
		state:   StateIdle,
		done:    make(chan struct{}),
	}
}

func (p *Poller) JobID() string { return p.jobID }

// Start issues the first fetch immediately and keeps polling in the
// background. onTerminal runs exactly once for Finished, Failed and TimedOut
// and never after Cancel.
func (p *Poller) Start(ctx context.Context, onTerminal func(Outcome)) error {
	if p.jobID == "" {
		return ErrNoJob
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return fmt.Errorf("%w: job %s is %s", ErrAlreadyStarted, p.jobID, p.state)
	}

	ctx, cancel := context.WithCancel(ctx)
	p.state = StatePolling
	p.cancel = cancel
	go p.run(ctx, onTerminal)
	return nil
}

// Cancel stops polling. It is safe to call any number of times, before Start
// or after the job has terminated.
func (p *Poller) Cancel() {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case StateIdle:
		p.state = StateCancelled
		close(p.done)
	case StatePolling:
		p.state = StateCancelled
		p.cancel()
	}
}

// Done is closed once the poller no longer fetches.
func (p *Poller) Done() <-chan struct{} { return p.done }

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Poller) run(ctx context.Context, onTerminal func(Outcome)) {
	defer close(p.done)

	deadline := time.NewTimer(p.cfg.Timeout)
	defer deadline.Stop()
	tick := time.NewTimer(0)
	defer tick.Stop()

	var last clients.Job
	attempts := 0
	for {
		select {
		case <-ctx.Done():
			p.stopped()
			return
		case <-deadline.C:
			p.finish(onTerminal, Outcome{State: StateTimedOut, Job: last, Attempts: attempts,
				Err: fmt.Errorf("%w: %s after %s", ErrPollingTimeout, p.jobID, p.cfg.Timeout)})
			return
		case <-tick.C:
		}

		attempts++
		start := time.Now()
		job, err := p.fetcher.FetchJob(ctx, p.jobID)
		if ctx.Err() != nil {
			p.stopped()
			return
		}
		if p.cfg.OnAttempt != nil {
			p.cfg.OnAttempt(Attempt{JobID: p.jobID, N: attempts, Status: job.Status, Err: err, Duration: time.Since(start)})
		}

		if err != nil {
			p.cfg.Logger.Printf("poll job %s attempt %d: %v", p.jobID, attempts, err)
		} else {
			last = job
			switch job.Status {
			case clients.JobFinished:
				p.finish(onTerminal, Outcome{State: StateFinished, Job: job, Attempts: attempts})
				return
			case clients.JobFailed:
				p.finish(onTerminal, Outcome{State: StateFailed, Job: job, Attempts: attempts})
				return
			}
		}

		if attempts >= p.cfg.MaxAttempts {
			p.finish(onTerminal, Outcome{State: StateTimedOut, Job: last, Attempts: attempts,
				Err: fmt.Errorf("%w: %s after %d attempts", ErrPollingTimeout, p.jobID, attempts)})
			return
		}
		tick.Reset(p.cfg.Interval)
	}
}

// finish records the terminal state and runs the callback, unless Cancel won
// the race.
func (p *Poller) finish(onTerminal func(Outcome), out Outcome) {
	p.mu.Lock()
	if p.state != StatePolling {
		p.mu.Unlock()
		return
	}
	p.state = out.State
	p.cancel()
	p.mu.Unlock()

	if onTerminal != nil {
		onTerminal(out)
	}
}

// stopped handles a cancelled parent context the same way as Cancel.
func (p *Poller) stopped() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StatePolling {
		p.state = StateCancelled
	}
}
