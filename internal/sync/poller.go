// Package sync runs background jobs such as the remote metadata import and
// the mail intake, each on its own interval.
package sync

import (
	"context"
	"log/slog"
	"sort"
	gosync "sync"
	"time"
)

// Job is one unit of background work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// State is the current state of a job.
type State int

const (
	Idle State = iota
	Running
	Failed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Failed:
		return "failed"
	default:
		return "idle"
	}
}

// Status reports the last run of a job.
type Status struct {
	Name    string
	State   State
	LastRun time.Time
	LastOK  time.Time
	Runs    int
	Error   error
}

// runTimeout bounds a single run of a job.
const runTimeout = 2 * time.Minute

type entry struct {
	job      Job
	interval time.Duration
	trigger  chan struct{}
}

// Poller runs registered jobs immediately on start and then on their
// interval until the context passed to Run is cancelled.
type Poller struct {
	logger   *slog.Logger
	entries  []*entry
	statuses map[string]*Status
	mu       gosync.Mutex
	running  bool
}

// New creates an empty poller.
func New(logger *slog.Logger) *Poller {
	return &Poller{
		logger:   logger,
		statuses: make(map[string]*Status),
	}
}

// Register adds a job. A non-positive interval defaults to two minutes.
// Jobs registered after Run has started are ignored.
func (p *Poller) Register(job Job, interval time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if interval <= 0 {
		interval = 120 * time.Second
	}
	p.entries = append(p.entries, &entry{job: job, interval: interval, trigger: make(chan struct{}, 1)})
	p.statuses[job.Name()] = &Status{Name: job.Name()}
}

// Run starts one goroutine per job and blocks until ctx is done and every
// job has returned.
func (p *Poller) Run(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	entries := append([]*entry(nil), p.entries...)
	p.mu.Unlock()

	var wg gosync.WaitGroup
	for _, e := range entries {
		wg.Add(1)
		go func(e *entry) {
			defer wg.Done()
			p.loop(ctx, e)
		}(e)
	}
	wg.Wait()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
}

// Trigger asks the named job to run now. It reports false for unknown jobs.
// A trigger arriving while one is pending is merged into it.
func (p *Poller) Trigger(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, e := range p.entries {
		if e.job.Name() != name {
			continue
		}
		select {
		case e.trigger <- struct{}{}:
		default:
		}
		return true
	}
	return false
}

// Statuses returns the status of every job, sorted by name.
func (p *Poller) Statuses() []Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Status, 0, len(p.statuses))
	for _, s := range p.statuses {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (p *Poller) loop(ctx context.Context, e *entry) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	p.runOnce(ctx, e.job)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx, e.job)
		case <-e.trigger:
			p.runOnce(ctx, e.job)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	name := job.Name()
	p.setState(name, Running, nil)

	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

	start := time.Now()
	err := job.Run(runCtx)
	if err != nil {
		p.logger.Error("job failed", "job", name, "error", err, "duration", time.Since(start))
		p.setState(name, Failed, err)
		return
	}
	p.logger.Debug("job finished", "job", name, "duration", time.Since(start))
	p.setState(name, Idle, nil)
}

func (p *Poller) setState(name string, state State, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.statuses[name]
	if !ok {
		return
	}
	st.State = state
	st.Error = err
	if state == Running {
		return
	}
	now := time.Now()
	st.LastRun = now
	st.Runs++
	if err == nil {
		st.LastOK = now
	}
}
