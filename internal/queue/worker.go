package queue

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"
)

// Moves due ids from the delayed set to the wait list.
// KEYS: delayed, wait. ARGV: now (ms), batch size.
var promoteScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
  redis.call('LPUSH', KEYS[2], id)
end
return #ids
`)

// Returns active ids that were unlocked on this check and the previous one,
// then records the ids currently unlocked as candidates for the next check.
// KEYS: active, stalled. ARGV: lock key prefix.
var stalledScript = redis.NewScript(`
local stalled = {}
local candidates = redis.call('SMEMBERS', KEYS[2])
for _, id in ipairs(candidates) do
  if redis.call('EXISTS', ARGV[1] .. id) == 0 then
    table.insert(stalled, id)
  end
end
redis.call('DEL', KEYS[2])
local active = redis.call('LRANGE', KEYS[1], 0, -1)
for _, id in ipairs(active) do
  if redis.call('EXISTS', ARGV[1] .. id) == 0 then
    redis.call('SADD', KEYS[2], id)
  end
end
return stalled
`)

const (
	promoteBatch     = 100
	stalledTxRetries = 5
)

func (q *Queue) work(ctx context.Context, p *processor) {
	defer q.wg.Done()

	for ctx.Err() == nil {
		id, err := q.rdb.BRPopLPush(ctx, q.key(p.name, "wait"), q.key(p.name, "active"), q.opts.PollTimeout).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.log.Error().Err(err).Str("job", p.name).Msg("Failed to fetch job")
			sleep(ctx, q.opts.PollTimeout)
			continue
		}
		// A job that was claimed finishes its bookkeeping even during shutdown.
		q.run(context.WithoutCancel(ctx), p, id)
	}
}

func (q *Queue) run(ctx context.Context, p *processor, id string) {
	lockKey := q.lockKey(id)
	if err := q.rdb.Set(ctx, lockKey, q.name, q.opts.LockDuration).Err(); err != nil {
		q.log.Warn().Err(err).Str("job_id", id).Msg("Failed to lock job")
	}

	raw, err := q.rdb.HGet(ctx, q.key("jobs"), id).Result()
	var job *Job
	if err == nil {
		job, err = decodeJob(raw)
	}
	if err != nil {
		q.log.Error().Err(err).Str("job_id", id).Str("job", p.name).Msg("Dropping job with unreadable data")
		q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.LRem(ctx, q.key(p.name, "active"), 1, id)
			pipe.HDel(ctx, q.key("jobs"), id)
			pipe.Del(ctx, lockKey)
			return nil
		})
		return
	}

	now := time.Now().UTC()
	job.ProcessedAt = &now
	job.State = StateActive

	stop := q.keepLock(ctx, lockKey)
	start := time.Now()
	herr := invoke(ctx, p.handler, job)
	stop()
	q.opts.Metrics.observe(q.name, job.Name, time.Since(start))

	if herr == nil {
		q.complete(ctx, job)
		return
	}
	q.fail(ctx, job, herr)
}

func invoke(ctx context.Context, h Handler, job *Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	return h(ctx, job)
}

func (q *Queue) complete(ctx context.Context, job *Job) {
	_, err := q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.key(job.Name, "active"), 1, job.ID)
		pipe.HDel(ctx, q.key("jobs"), job.ID)
		pipe.Del(ctx, q.lockKey(job.ID))
		return nil
	})
	if err != nil {
		// The stalled checker will hand it back; the handler may run again.
		q.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to mark job completed")
		return
	}
	q.opts.Metrics.inc(q.name, job.Name, statusCompleted)
	q.log.Info().Str("job_id", job.ID).Str("job", job.Name).Msgf("Job with ID %s has been completed", job.ID)
}

func (q *Queue) fail(ctx context.Context, job *Job, cause error) {
	job.AttemptsMade++
	job.FailedReason = cause.Error()

	if job.AttemptsMade >= job.Attempts {
		now := time.Now().UTC()
		job.FinishedAt = &now
		job.State = StateExhausted
		raw, err := encodeJob(job)
		if err != nil {
			q.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to encode job")
			return
		}
		_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, q.key("jobs"), job.ID, raw)
			pipe.LRem(ctx, q.key(job.Name, "active"), 1, job.ID)
			pipe.LPush(ctx, q.key(job.Name, "failed"), job.ID)
			pipe.Del(ctx, q.lockKey(job.ID))
			return nil
		})
		if err != nil {
			q.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to mark job exhausted")
			return
		}

		q.exhausted(job, cause)
		return
	}

	job.State = StateDelayed
	runAt := time.Now().Add(job.Backoff)
	raw, err := encodeJob(job)
	if err != nil {
		q.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to encode job")
		return
	}
	_, err = q.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.key("jobs"), job.ID, raw)
		pipe.LRem(ctx, q.key(job.Name, "active"), 1, job.ID)
		pipe.ZAdd(ctx, q.key(job.Name, "delayed"), redis.Z{Score: float64(runAt.UnixMilli()), Member: job.ID})
		pipe.Del(ctx, q.lockKey(job.ID))
		return nil
	})
	if err != nil {
		q.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to schedule job retry")
		return
	}
	q.opts.Metrics.inc(q.name, job.Name, statusFailed)
	q.log.Warn().
		Err(cause).
		Str("job_id", job.ID).
		Str("job", job.Name).
		Int("attempt", job.AttemptsMade).
		Dur("backoff", job.Backoff).
		Msg("Job failed, retrying")
}

func (q *Queue) exhausted(job *Job, cause error) {
	exhausted := &JobExhaustedError{Job: job, Err: cause}
	q.opts.Metrics.inc(q.name, job.Name, statusExhausted)
	q.log.Error().
		Err(exhausted).
		Str("job_id", job.ID).
		Str("job", job.Name).
		Int("attempts", job.AttemptsMade).
		RawJSON("data", job.Data).
		Msg("Job failed all attempts")
	if q.opts.OnExhausted != nil {
		q.opts.OnExhausted(exhausted)
	}
}

// keepLock refreshes the job lock until stop is called.
func (q *Queue) keepLock(ctx context.Context, key string) (stop func()) {
	done := make(chan struct{})
	go func() {
		t := time.NewTicker(q.opts.LockDuration / 2)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				q.rdb.PExpire(ctx, key, q.opts.LockDuration)
			}
		}
	}()
	return func() { close(done) }
}

func (q *Queue) promoteLoop(ctx context.Context, name string) {
	defer q.wg.Done()
	t := time.NewTicker(q.opts.PromoteInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := q.promote(ctx, name); err != nil && ctx.Err() == nil {
				q.log.Error().Err(err).Str("job", name).Msg("Failed to promote delayed jobs")
			}
		}
	}
}

func (q *Queue) promote(ctx context.Context, name string) (int64, error) {
	keys := []string{q.key(name, "delayed"), q.key(name, "wait")}
	return promoteScript.Run(ctx, q.rdb, keys, time.Now().UnixMilli(), promoteBatch).Int64()
}

func (q *Queue) stalledLoop(ctx context.Context) {
	defer q.wg.Done()
	t := time.NewTicker(q.opts.StalledInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := q.checkStalled(ctx); err != nil && ctx.Err() == nil {
				q.log.Error().Err(err).Msg("Stalled job check failed")
			}
		}
	}
}

func (q *Queue) checkStalled(ctx context.Context) error {
	q.mu.Lock()
	names := make([]string, 0, len(q.processors))
	for name := range q.processors {
		names = append(names, name)
	}
	q.mu.Unlock()

	for _, name := range names {
		keys := []string{q.key(name, "active"), q.key(name, "stalled")}
		ids, err := stalledScript.Run(ctx, q.rdb, keys, q.key("lock")+":").StringSlice()
		if err != nil {
			return err
		}
		for _, id := range ids {
			if err := q.recoverStalled(ctx, name, id); err != nil {
				return err
			}
		}
	}
	return nil
}

// recoverStalled charges a stalled job one attempt and moves it from active
// back to wait, or to failed once its attempts are spent. A job that
// finished or was locked again in the meantime is left alone.
func (q *Queue) recoverStalled(ctx context.Context, name, id string) error {
	activeKey := q.key(name, "active")
	lockKey := q.lockKey(id)

	var job *Job
	txf := func(tx *redis.Tx) error {
		job = nil
		locked, err := tx.Exists(ctx, lockKey).Result()
		if err != nil {
			return err
		}
		active, err := tx.LRange(ctx, activeKey, 0, -1).Result()
		if err != nil {
			return err
		}
		if locked > 0 || !slices.Contains(active, id) {
			return errNotStalled
		}

		raw, err := tx.HGet(ctx, q.key("jobs"), id).Result()
		if errors.Is(err, redis.Nil) {
			// Nothing left to run; drop the orphaned id.
			if err := tx.LRem(ctx, activeKey, 1, id).Err(); err != nil {
				return err
			}
			return errNotStalled
		}
		if err != nil {
			return err
		}
		j, err := decodeJob(raw)
		if err != nil {
			q.log.Error().Err(err).Str("job_id", id).Str("job", name).Msg("Dropping stalled job with unreadable data")
			if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.LRem(ctx, activeKey, 1, id)
				pipe.HDel(ctx, q.key("jobs"), id)
				return nil
			}); err != nil {
				return err
			}
			return errNotStalled
		}

		j.AttemptsMade++
		j.FailedReason = ErrJobStalled.Error()
		if j.AttemptsMade >= j.Attempts {
			now := time.Now().UTC()
			j.FinishedAt = &now
			j.State = StateExhausted
		} else {
			j.State = StateWaiting
		}
		encoded, err := encodeJob(j)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, q.key("jobs"), id, encoded)
			pipe.LRem(ctx, activeKey, 1, id)
			pipe.SRem(ctx, q.key(name, "stalled"), id)
			if j.State == StateExhausted {
				pipe.LPush(ctx, q.key(name, "failed"), id)
			} else {
				pipe.RPush(ctx, q.key(name, "wait"), id)
			}
			return nil
		})
		if err == nil {
			job = j
		}
		return err
	}

	for i := 0; i < stalledTxRetries; i++ {
		err := q.rdb.Watch(ctx, txf, activeKey, lockKey)
		switch {
		case err == nil:
			q.stalled(job, name, id)
			return nil
		case errors.Is(err, errNotStalled):
			return nil
		case errors.Is(err, redis.TxFailedErr):
			continue
		default:
			return err
		}
	}
	// Still unlocked and active, so the next check picks it up again.
	q.log.Warn().Str("job_id", id).Str("job", name).Msg("Stalled job changed during recovery")
	return nil
}

func (q *Queue) stalled(job *Job, name, id string) {
	q.opts.Metrics.inc(q.name, name, statusStalled)
	q.log.Error().Str("job_id", id).Str("job", name).Msgf("Job with ID %s has been stalled", id)
	if job.State == StateExhausted {
		q.exhausted(job, ErrJobStalled)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
