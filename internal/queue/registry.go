package queue

import (
	"context"
	"sort"
	"sync"
)

// Registry tracks every queue so one dashboard can show them all.
// It is passed to New instead of living in a package variable.
type Registry struct {
	mu     sync.RWMutex
	queues map[string]*Queue
}

func NewRegistry() *Registry {
	return &Registry{queues: make(map[string]*Queue)}
}

// Register adds q under its name. Registering the same name twice keeps the
// first queue and reports false.
func (r *Registry) Register(q *Queue) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.queues[q.Name()]; ok {
		return false
	}
	r.queues[q.Name()] = q
	return true
}

func (r *Registry) Get(name string) (*Queue, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	q, ok := r.queues[name]
	return q, ok
}

// Queues returns the registered queues sorted by name.
func (r *Registry) Queues() []*Queue {
	r.mu.RLock()
	out := make([]*Queue, 0, len(r.queues))
	for _, q := range r.queues {
		out = append(out, q)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Overview collects counts for every registered queue.
func (r *Registry) Overview(ctx context.Context) ([]QueueInfo, error) {
	queues := r.Queues()
	out := make([]QueueInfo, 0, len(queues))
	for _, q := range queues {
		jobs, err := q.Counts(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, QueueInfo{Name: q.Name(), Jobs: jobs})
	}
	return out, nil
}
