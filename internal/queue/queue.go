package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Rayan1605/MainChatApplication/pkg/logger"
)

// Queue is a named, Redis-backed job queue with at-least-once delivery.
//
// Layout under <prefix>:<queue>:
//
//	jobs              hash   job id -> job JSON
//	names             set    job names seen by AddJob
//	<job>:wait        list   ids ready to run (LPUSH in, BRPOPLPUSH out)
//	<job>:active      list   ids being processed
//	<job>:delayed     zset   ids waiting out their backoff, scored by run-at ms
//	<job>:failed      list   ids that exhausted their attempts
//	<job>:stalled     set    active ids seen without a lock on the last check
//	lock:<id>         string held while a worker runs the job
type Queue struct {
	name string
	rdb  redis.UniversalClient
	opts Options
	log  zerolog.Logger

	mu         sync.Mutex
	processors map[string]*processor
	runCtx     context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

type processor struct {
	name        string
	concurrency int
	handler     Handler
}

// New creates the queue and registers it with registry (which may be nil).
func New(name string, rdb redis.UniversalClient, registry *Registry, opts Options) *Queue {
	opts = opts.withDefaults()
	log := logger.Named(name + "Queue")
	if opts.Logger != nil {
		log = *opts.Logger
	}

	q := &Queue{
		name:       name,
		rdb:        rdb,
		opts:       opts,
		log:        log,
		processors: make(map[string]*processor),
	}
	if registry != nil {
		registry.Register(q)
	}
	return q
}

func (q *Queue) Name() string { return q.name }

// AddJob stores the job and puts it on its wait list. It returns once Redis
// has accepted the write and never waits for a consumer.
func (q *Queue) AddJob(ctx context.Context, name string, data interface{}) (*Job, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", name, err)
	}

	job := &Job{
		ID:        uuid.NewString(),
		Queue:     q.name,
		Name:      name,
		Data:      payload,
		Attempts:  q.opts.Attempts,
		Backoff:   q.opts.Backoff,
		State:     StateWaiting,
		CreatedAt: time.Now().UTC(),
	}
	raw, err := encodeJob(job)
	if err != nil {
		return nil, err
	}

	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.key("jobs"), job.ID, raw)
		pipe.SAdd(ctx, q.key("names"), name)
		pipe.LPush(ctx, q.key(name, "wait"), job.ID)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: add %s job: %w", ErrBrokerUnavailable, name, err)
	}

	q.opts.Metrics.inc(q.name, name, statusEnqueued)
	q.log.Debug().Str("job_id", job.ID).Str("job", name).Msg("Job added")
	return job, nil
}

// Process binds handler to jobs called name, running at most concurrency of
// them at once in this process. Handlers registered after Start begin
// immediately. A name can be bound once; later calls are ignored.
func (q *Queue) Process(name string, concurrency int, handler Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	p := &processor{name: name, concurrency: concurrency, handler: handler}

	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.processors[name]; ok {
		q.log.Warn().Str("job", name).Msg("Processor already registered, ignoring")
		return
	}
	q.processors[name] = p
	if q.runCtx != nil {
		q.startProcessor(q.runCtx, p)
	}
}

// Start launches the workers, promoters and the stalled-job checker.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		return ErrQueueStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	q.runCtx, q.cancel = runCtx, cancel

	for _, p := range q.processors {
		q.startProcessor(runCtx, p)
	}
	q.wg.Add(1)
	go q.stalledLoop(runCtx)

	q.log.Info().Int("processors", len(q.processors)).Msg("Queue started")
	return nil
}

// Close stops fetching new jobs and waits for in-flight handlers to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	cancel := q.cancel
	q.cancel, q.runCtx = nil, nil
	q.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	q.wg.Wait()
	q.log.Info().Msg("Queue stopped")
}

func (q *Queue) startProcessor(ctx context.Context, p *processor) {
	for i := 0; i < p.concurrency; i++ {
		q.wg.Add(1)
		go q.work(ctx, p)
	}
	q.wg.Add(1)
	go q.promoteLoop(ctx, p.name)
}

// Counts returns list sizes for every known job name.
func (q *Queue) Counts(ctx context.Context) (map[string]Counts, error) {
	names, err := q.rdb.SMembers(ctx, q.key("names")).Result()
	if err != nil {
		return nil, err
	}
	q.mu.Lock()
	for name := range q.processors {
		names = append(names, name)
	}
	q.mu.Unlock()

	out := make(map[string]Counts)
	for _, name := range names {
		if _, seen := out[name]; seen {
			continue
		}
		pipe := q.rdb.Pipeline()
		waiting := pipe.LLen(ctx, q.key(name, "wait"))
		active := pipe.LLen(ctx, q.key(name, "active"))
		delayed := pipe.ZCard(ctx, q.key(name, "delayed"))
		failed := pipe.LLen(ctx, q.key(name, "failed"))
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, err
		}
		out[name] = Counts{
			Waiting:   waiting.Val(),
			Active:    active.Val(),
			Delayed:   delayed.Val(),
			Exhausted: failed.Val(),
		}
	}
	return out, nil
}

// Exhausted lists jobs called name that failed every attempt.
func (q *Queue) Exhausted(ctx context.Context, name string) ([]*Job, error) {
	ids, err := q.rdb.LRange(ctx, q.key(name, "failed"), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*Job{}, nil
	}

	raws, err := q.rdb.HMGet(ctx, q.key("jobs"), ids...).Result()
	if err != nil {
		return nil, err
	}
	jobs := make([]*Job, 0, len(raws))
	for _, raw := range raws {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		job, err := decodeJob(s)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Moves an id from the failed list back to wait and stores its reset job.
// KEYS: failed, wait, jobs. ARGV: id, job JSON.
var retryScript = redis.NewScript(`
if redis.call('LREM', KEYS[1], 1, ARGV[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[3], ARGV[1], ARGV[2])
redis.call('LPUSH', KEYS[2], ARGV[1])
return 1
`)

// Retry puts an exhausted job back on its wait list with a fresh attempt
// budget.
func (q *Queue) Retry(ctx context.Context, id string) (*Job, error) {
	raw, err := q.rdb.HGet(ctx, q.key("jobs"), id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	job, err := decodeJob(raw)
	if err != nil {
		return nil, err
	}
	if job.State != StateExhausted {
		return nil, ErrJobNotFound
	}

	job.AttemptsMade = 0
	job.FailedReason = ""
	job.FinishedAt = nil
	job.State = StateWaiting

	if raw, err = encodeJob(job); err != nil {
		return nil, err
	}
	keys := []string{q.key(job.Name, "failed"), q.key(job.Name, "wait"), q.key("jobs")}
	moved, err := retryScript.Run(ctx, q.rdb, keys, id, raw).Int()
	if err != nil {
		return nil, err
	}
	if moved == 0 {
		return nil, ErrJobNotFound
	}
	q.log.Info().Str("job_id", id).Str("job", job.Name).Msg("Exhausted job requeued")
	return job, nil
}

func (q *Queue) key(parts ...string) string {
	return q.opts.Prefix + ":" + q.name + ":" + strings.Join(parts, ":")
}

func (q *Queue) lockKey(id string) string {
	return q.key("lock", id)
}
