// Package jobs runs admin-triggered workflows in the background, one at a
// time, and tracks their phase for polling and event streams.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"investorradar/domain/core"
	"investorradar/internal"
)

// retained caps how many finished jobs stay queryable.
const retained = 50

// Job is one background run. Phase mirrors the workflow state machine
// while the run is live and keeps its final value afterwards.
type Job struct {
	ID         core.JobID  `json:"id"`
	Kind       string      `json:"kind"`
	Phase      string      `json:"phase"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
	Error      string      `json:"error,omitempty"`
	Result     interface{} `json:"result,omitempty"`
}

// Done reports whether the run has finished.
func (j *Job) Done() bool {
	return j.FinishedAt != nil
}

// RunFunc is the unit of work. Implementations report state transitions
// through setPhase.
type RunFunc func(ctx context.Context, setPhase func(phase string)) (interface{}, error)

// Listener receives a job snapshot on every phase change and on completion.
type Listener func(job Job)

// Runner executes at most one workflow at a time. A second Start while a
// run is live fails with core.ErrRunInProgress instead of queueing.
type Runner struct {
	mu       sync.Mutex
	jobs     map[core.JobID]*Job
	order    []core.JobID
	listener Listener
	gate     *semaphore.Weighted
	log      *internal.Logger
}

// NewRunner creates the job runner
func NewRunner(logger *internal.Logger) *Runner {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Runner{
		jobs: make(map[core.JobID]*Job),
		gate: semaphore.NewWeighted(1),
		log:  logger.Named("jobs"),
	}
}

// SetListener installs the snapshot listener. Must be called before the
// first Start.
func (r *Runner) SetListener(listener Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listener = listener
}

// Start launches fn in the background and returns the tracking job.
func (r *Runner) Start(kind string, fn RunFunc) (Job, error) {
	if !r.gate.TryAcquire(1) {
		return Job{}, core.ErrRunInProgress
	}

	job := r.admit(kind)
	r.log.Info("job %s started: kind=%s", job.ID, kind)

	go r.execute(context.Background(), job.ID, fn)
	return job, nil
}

// Run executes fn inline while holding the single-run gate, so callers
// that want the result in hand still show up on the jobs API. The
// caller's context flows into fn.
func (r *Runner) Run(ctx context.Context, kind string, fn RunFunc) (interface{}, error) {
	if !r.gate.TryAcquire(1) {
		return nil, core.ErrRunInProgress
	}

	job := r.admit(kind)
	r.log.Info("job %s running inline: kind=%s", job.ID, kind)

	return r.execute(ctx, job.ID, fn)
}

// admit registers a fresh job record. The gate must already be held.
func (r *Runner) admit(kind string) Job {
	job := &Job{
		ID:        core.JobID(core.NewID()),
		Kind:      kind,
		Phase:     "PENDING",
		StartedAt: time.Now().UTC(),
	}
	r.remember(job)
	return *job
}

// Get returns a snapshot of one job, core.ErrJobNotFound when unknown.
func (r *Runner) Get(id core.JobID) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, core.ErrJobNotFound
	}
	return *job, nil
}

// List returns snapshots of the retained jobs, newest first.
func (r *Runner) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

// Running reports whether a run is currently live.
func (r *Runner) Running() bool {
	if r.gate.TryAcquire(1) {
		r.gate.Release(1)
		return false
	}
	return true
}

func (r *Runner) execute(ctx context.Context, id core.JobID, fn RunFunc) (interface{}, error) {
	setPhase := func(phase string) {
		r.update(id, func(job *Job) {
			job.Phase = phase
		})
	}

	result, err := r.runGuarded(ctx, fn, setPhase)

	// Release before recording completion so a finished job always means
	// the gate is free.
	r.gate.Release(1)

	now := time.Now().UTC()
	r.update(id, func(job *Job) {
		job.FinishedAt = &now
		job.Result = result
		if err != nil {
			job.Error = err.Error()
			job.Phase = "FAILED"
		}
	})
	if err != nil {
		r.log.Error("job %s failed: %v", id, err)
	} else {
		r.log.Info("job %s finished", id)
	}
	return result, err
}

// runGuarded converts a workflow panic into a job failure.
func (r *Runner) runGuarded(ctx context.Context, fn RunFunc, setPhase func(string)) (result interface{}, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return fn(ctx, setPhase)
}

// update mutates a job under the lock and notifies the listener with a
// snapshot taken outside it.
func (r *Runner) update(id core.JobID, mutate func(*Job)) {
	r.mu.Lock()
	job, ok := r.jobs[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	mutate(job)
	snapshot := *job
	listener := r.listener
	r.mu.Unlock()

	if listener != nil {
		listener(snapshot)
	}
}

func (r *Runner) remember(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	r.order = append(r.order, job.ID)
	for len(r.order) > retained {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.jobs, oldest)
	}
}
