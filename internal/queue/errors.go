package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrBrokerUnavailable is returned by AddJob when Redis did not accept the job.
	ErrBrokerUnavailable = errors.New("queue broker unavailable")
	ErrJobNotFound       = errors.New("job not found")
	ErrQueueStarted      = errors.New("queue already started")
	// ErrJobStalled is the failure recorded for a job whose worker stopped
	// renewing its lock. It costs one attempt.
	ErrJobStalled = errors.New("job stalled more than allowable limit")

	errNotStalled = errors.New("job is not stalled")
)

// JobExhaustedError reports a job that failed every attempt. It is never
// retried automatically; replay it through the dashboard.
type JobExhaustedError struct {
	Job *Job
	Err error
}

func (e *JobExhaustedError) Error() string {
	return fmt.Sprintf("job %s (%s) exhausted after %d attempts: %v", e.Job.ID, e.Job.Name, e.Job.AttemptsMade, e.Err)
}

func (e *JobExhaustedError) Unwrap() error { return e.Err }

type panicError struct{ value interface{} }

func (e panicError) Error() string { return fmt.Sprintf("handler panic: %v", e.value) }
