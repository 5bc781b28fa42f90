package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/racs-io/racs/internal/circuit"
	racserr "github.com/racs-io/racs/pkg/errors"
)

// DefaultPriority is assigned to every repository at startup; lower is
// preferred on the read path.
const DefaultPriority = 5

// Handle wraps one repository with its runtime state: fetch priority,
// activation flag, circuit breaker, and the per-adapter serialization lock
// for backends whose clients are not goroutine-safe.
type Handle struct {
	repo Repository

	mu       sync.Mutex // guards priority and active
	priority int
	active   bool

	breaker *circuit.Breaker
	callMu  sync.Mutex // held across calls iff repo.Serialized()
}

// Name returns the repository name.
func (h *Handle) Name() string { return h.repo.Name() }

// Class returns the adapter class name.
func (h *Handle) Class() string { return h.repo.Class() }

// Priority returns the current fetch priority.
func (h *Handle) Priority() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.priority
}

// Active reports whether the repository participates in fan-outs.
func (h *Handle) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// IncreasePriority makes the repository less preferred (admin path).
func (h *Handle) IncreasePriority() {
	h.mu.Lock()
	h.priority++
	h.mu.Unlock()
}

// DecreasePriority makes the repository more preferred (admin path).
func (h *Handle) DecreasePriority() {
	h.mu.Lock()
	h.priority--
	h.mu.Unlock()
}

// ToggleActive flips the activation flag (admin path). Takes effect on the
// next fan-out dispatch; in-flight requests are not quiesced.
func (h *Handle) ToggleActive() {
	h.mu.Lock()
	h.active = !h.active
	h.mu.Unlock()
}

// SetActive forces the activation flag (startup m-trimming).
func (h *Handle) SetActive(active bool) {
	h.mu.Lock()
	h.active = active
	h.mu.Unlock()
}

// BreakerState reports the circuit breaker state for the admin page.
func (h *Handle) BreakerState() circuit.State { return h.breaker.State() }

// Do runs one backend call through the breaker and, for serialized
// adapters, the per-adapter lock.
func (h *Handle) Do(op func(Repository) error) error {
	if !h.breaker.Allow() {
		return racserr.Transient(h.Name(), nil)
	}
	if h.repo.Serialized() {
		h.callMu.Lock()
		defer h.callMu.Unlock()
	}
	err := op(h.repo)
	// Client-level kinds are not backend health signals.
	switch {
	case err == nil,
		racserr.IsCode(err, racserr.CodeNoSuchBucket),
		racserr.IsCode(err, racserr.CodeObjectNotFound),
		racserr.IsCode(err, racserr.CodeBucketNotEmpty):
		h.breaker.Record(nil)
	default:
		h.breaker.Record(err)
	}
	return err
}

// CreateBucket forwards through Do; same for the remaining operations.
func (h *Handle) CreateBucket(ctx context.Context, bucket string) error {
	return h.Do(func(r Repository) error { return r.CreateBucket(ctx, bucket) })
}

func (h *Handle) DeleteBucket(ctx context.Context, bucket string) error {
	return h.Do(func(r Repository) error { return r.DeleteBucket(ctx, bucket) })
}

func (h *Handle) PutObject(ctx context.Context, bucket, key string, data []byte, contentType string, userMeta map[string]string) error {
	return h.Do(func(r Repository) error {
		return r.PutObject(ctx, bucket, key, data, contentType, userMeta)
	})
}

func (h *Handle) GetObject(ctx context.Context, bucket, key string) (obj *Object, err error) {
	err = h.Do(func(r Repository) error {
		obj, err = r.GetObject(ctx, bucket, key)
		return err
	})
	return obj, err
}

func (h *Handle) Head(ctx context.Context, bucket, key string) (headers map[string]string, err error) {
	err = h.Do(func(r Repository) error {
		headers, err = r.Head(ctx, bucket, key)
		return err
	})
	return headers, err
}

func (h *Handle) DeleteObject(ctx context.Context, bucket, key string) error {
	return h.Do(func(r Repository) error { return r.DeleteObject(ctx, bucket, key) })
}

func (h *Handle) ListBucket(ctx context.Context, bucket string, opts ListOptions) (listing *Listing, err error) {
	err = h.Do(func(r Repository) error {
		listing, err = r.ListBucket(ctx, bucket, opts)
		return err
	})
	return listing, err
}

func (h *Handle) ListBuckets(ctx context.Context) (buckets []string, err error) {
	err = h.Do(func(r Repository) error {
		buckets, err = r.ListBuckets(ctx)
		return err
	})
	return buckets, err
}

// Manager owns the repository set.
type Manager struct {
	handles []*Handle
}

// NewManager wraps the given repositories with runtime state.
func NewManager(repos []Repository, breakerCfg circuit.Config) *Manager {
	m := &Manager{}
	for _, r := range repos {
		m.handles = append(m.handles, &Handle{
			repo:     r,
			priority: DefaultPriority,
			active:   true,
			breaker:  circuit.NewBreaker(r.Name(), breakerCfg),
		})
	}
	return m
}

// All returns every repository regardless of activation, in config order.
func (m *Manager) All() []*Handle { return m.handles }

// Active returns the repositories currently eligible for fan-out, in
// config order.
func (m *Manager) Active() []*Handle {
	var out []*Handle
	for _, h := range m.handles {
		if h.Active() {
			out = append(out, h)
		}
	}
	return out
}

// Get looks a repository up by name.
func (m *Manager) Get(name string) *Handle {
	for _, h := range m.handles {
		if h.Name() == name {
			return h
		}
	}
	return nil
}

// ByPriority returns the active repositories sorted by ascending priority,
// ties broken by config order.
func (m *Manager) ByPriority() []*Handle {
	active := m.Active()
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority() < active[j].Priority()
	})
	return active
}
