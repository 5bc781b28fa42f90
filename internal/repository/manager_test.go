package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racs-io/racs/internal/circuit"
	racserr "github.com/racs-io/racs/pkg/errors"
)

// fakeRepo is a minimal in-memory Repository for manager tests.
type fakeRepo struct {
	name       string
	serialized bool
	err        error

	mu      sync.Mutex
	inCall  int
	overlap bool
	calls   int
}

func (f *fakeRepo) Name() string     { return f.name }
func (f *fakeRepo) Class() string    { return "FakeRepository" }
func (f *fakeRepo) Serialized() bool { return f.serialized }

func (f *fakeRepo) enter() {
	f.mu.Lock()
	f.inCall++
	if f.inCall > 1 {
		f.overlap = true
	}
	f.calls++
	f.mu.Unlock()
	time.Sleep(time.Millisecond)
	f.mu.Lock()
	f.inCall--
	f.mu.Unlock()
}

func (f *fakeRepo) CreateBucket(context.Context, string) error { f.enter(); return f.err }
func (f *fakeRepo) DeleteBucket(context.Context, string) error { f.enter(); return f.err }
func (f *fakeRepo) PutObject(context.Context, string, string, []byte, string, map[string]string) error {
	f.enter()
	return f.err
}
func (f *fakeRepo) GetObject(context.Context, string, string) (*Object, error) {
	f.enter()
	return &Object{}, f.err
}
func (f *fakeRepo) Head(context.Context, string, string) (map[string]string, error) {
	f.enter()
	return map[string]string{}, f.err
}
func (f *fakeRepo) DeleteObject(context.Context, string, string) error { f.enter(); return f.err }
func (f *fakeRepo) ListBucket(context.Context, string, ListOptions) (*Listing, error) {
	f.enter()
	return &Listing{}, f.err
}
func (f *fakeRepo) ListBuckets(context.Context) ([]string, error) { f.enter(); return nil, f.err }

func newTestManager(repos ...Repository) *Manager {
	return NewManager(repos, circuit.Config{FailureThreshold: 3, Cooldown: time.Hour})
}

func TestManagerActiveAndPriority(t *testing.T) {
	m := newTestManager(&fakeRepo{name: "a"}, &fakeRepo{name: "b"}, &fakeRepo{name: "c"})
	require.Len(t, m.Active(), 3)

	m.Get("b").ToggleActive()
	active := m.Active()
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].Name())
	assert.Equal(t, "c", active[1].Name())

	// Lower priority sorts first; ties keep config order.
	m.Get("c").DecreasePriority()
	byPrio := m.ByPriority()
	assert.Equal(t, "c", byPrio[0].Name())
	assert.Equal(t, "a", byPrio[1].Name())
}

func TestManagerGetUnknown(t *testing.T) {
	m := newTestManager(&fakeRepo{name: "a"})
	assert.Nil(t, m.Get("zzz"))
}

func TestSerializedAdapterNeverOverlaps(t *testing.T) {
	repo := &fakeRepo{name: "slow", serialized: true}
	m := newTestManager(repo)
	h := m.Get("slow")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = h.CreateBucket(context.Background(), "b")
		}()
	}
	wg.Wait()
	assert.False(t, repo.overlap, "serialized adapter saw concurrent calls")
	assert.Equal(t, 8, repo.calls)
}

func TestBreakerFailsFastAfterRepeatedErrors(t *testing.T) {
	repo := &fakeRepo{name: "down", err: errors.New("unreachable")}
	m := newTestManager(repo)
	h := m.Get("down")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Error(t, h.CreateBucket(ctx, "b"))
	}
	before := repo.calls
	err := h.CreateBucket(ctx, "b")
	assert.True(t, racserr.IsCode(err, racserr.CodeBackendTransient))
	assert.Equal(t, before, repo.calls, "open breaker must not reach the backend")
}

func TestBreakerIgnoresClientKinds(t *testing.T) {
	repo := &fakeRepo{name: "ok", err: racserr.NoSuchBucket("b")}
	m := newTestManager(repo)
	h := m.Get("ok")
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		assert.Error(t, h.DeleteBucket(ctx, "b"))
	}
	// NoSuchBucket is the client's fault, not the backend's; the breaker
	// stays closed and calls keep flowing.
	assert.Equal(t, 10, repo.calls)
}
