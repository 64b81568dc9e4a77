package queue

import (
	"time"

	"github.com/rs/zerolog"
)

// Feature-area queue names.
const (
	QueueAuth  = "auth"
	QueueUser  = "user"
	QueueChat  = "chat"
	QueueImage = "image"
	QueueEmail = "email"
)

// Options controls retry policy and worker timing for a queue.
// Zero fields get defaults in withDefaults.
type Options struct {
	Prefix   string
	Attempts int
	Backoff  time.Duration

	// LockDuration is how long an active job may go without a lock refresh
	// before the stalled checker hands it back to the wait list.
	LockDuration    time.Duration
	StalledInterval time.Duration
	PromoteInterval time.Duration

	// PollTimeout bounds each blocking pop. Redis rounds it up to 1s.
	PollTimeout time.Duration

	Logger  *zerolog.Logger
	Metrics *Metrics

	// OnExhausted is called once per job that failed every attempt.
	OnExhausted func(err *JobExhaustedError)
}

const (
	DefaultAttempts = 3
	DefaultBackoff  = 5 * time.Second
)

func (o Options) withDefaults() Options {
	if o.Prefix == "" {
		o.Prefix = "bull"
	}
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
	if o.LockDuration <= 0 {
		o.LockDuration = 30 * time.Second
	}
	if o.StalledInterval <= 0 {
		o.StalledInterval = 30 * time.Second
	}
	if o.PromoteInterval <= 0 {
		o.PromoteInterval = time.Second
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = time.Second
	}
	return o
}

// Counts is a snapshot of one job name's lists.
type Counts struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Delayed   int64 `json:"delayed"`
	Exhausted int64 `json:"exhausted"`
}

// QueueInfo is what the dashboard shows for a queue.
type QueueInfo struct {
	Name string            `json:"name"`
	Jobs map[string]Counts `json:"jobs"`
}
