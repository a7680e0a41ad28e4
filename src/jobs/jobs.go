package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/quillpress/quill/src/logging"
	"github.com/rs/zerolog"
)

/*
 * Background work in quill is always tied to a Job. A Job owns a context that
 * is canceled on shutdown, and a done channel that the job closes once it has
 * actually stopped. The website waits on all jobs before exiting.
 */

// A Job tracks the lifetime of one background task, or of a pool of short
// tasks started with Go.
type Job struct {
	Name   string
	Ctx    context.Context
	Logger zerolog.Logger

	cancel     func()
	done       chan struct{}
	finishOnce sync.Once

	tasksMu     sync.Mutex
	tasksClosed bool
	tasks       sync.WaitGroup
}

func New(name string) *Job {
	logger := logging.With().Str("job", name).Logger()
	ctx, cancel := context.WithCancel(context.Background())
	ctx = logging.AttachLoggerToContext(&logger, ctx)
	return &Job{
		Name:   name,
		Ctx:    ctx,
		Logger: logger,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// NewPool creates a Job whose work is a set of tasks started with Go. The job
// finishes by itself once it is canceled and every running task has returned.
func NewPool(name string) *Job {
	job := New(name)
	go func() {
		<-job.Canceled()

		job.tasksMu.Lock()
		job.tasksClosed = true
		job.tasksMu.Unlock()

		job.tasks.Wait()
		job.Finish()
	}()
	return job
}

// Noop returns a job that is already finished. Handy for optional features
// that are disabled by config.
func Noop() *Job {
	return New("noop").Finish()
}

// Cancel asks the job to stop. Called from outside the job.
func (j *Job) Cancel() {
	j.cancel()
}

func (j *Job) Canceled() <-chan struct{} {
	return j.Ctx.Done()
}

// Finish marks the job's work as completely done. Called by the job itself.
// Calling it more than once is harmless.
func (j *Job) Finish() *Job {
	j.finishOnce.Do(func() {
		close(j.done)
	})
	return j
}

func (j *Job) Finished() <-chan struct{} {
	return j.done
}

// Go runs fn on a new goroutine as part of the job. It returns false without
// running anything if the job has already been canceled. Panics in fn are
// logged and do not take down the process.
func (j *Job) Go(fn func(ctx context.Context)) bool {
	j.tasksMu.Lock()
	if j.tasksClosed || j.Ctx.Err() != nil {
		j.tasksMu.Unlock()
		return false
	}
	j.tasks.Add(1)
	j.tasksMu.Unlock()

	go func() {
		defer j.tasks.Done()
		defer logging.LogPanics(&j.Logger)
		fn(j.Ctx)
	}()
	return true
}

// Jobs is a plain slice so it can be built with slice syntax.
type Jobs []*Job

// CancelAndWait cancels every job and waits up to timeout for them all to
// finish. It returns the names of the jobs that did not finish in time.
func (jobs Jobs) CancelAndWait(timeout time.Duration) []string {
	allDoneChan := make(chan struct{})
	for _, job := range jobs {
		job.Cancel()
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	go func() {
		for _, job := range jobs {
			<-job.Finished()
		}
		close(allDoneChan)
	}()

	select {
	case <-timer.C:
		return jobs.ListUnfinished()
	case <-allDoneChan:
		return nil
	}
}

func (jobs Jobs) ListUnfinished() []string {
	unfinished := []string{}
	for _, job := range jobs {
		select {
		case <-job.Finished():
			continue
		default:
			unfinished = append(unfinished, job.Name)
		}
	}
	return unfinished
}
