package coordination

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn is an in-memory stand-in for a ZooKeeper connection: a flat
// node table with per-parent sequence counters and one-shot delete
// watches. Enough to exercise the lock protocol end to end.
type fakeConn struct {
	mu      sync.Mutex
	nodes   map[string][]byte
	seq     map[string]int
	watches map[string][]chan zk.Event
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		nodes:   make(map[string][]byte),
		seq:     make(map[string]int),
		watches: make(map[string][]chan zk.Event),
	}
}

func parent(path string) string {
	idx := strings.LastIndex(path, "/")
	if idx <= 0 {
		return "/"
	}
	return path[:idx]
}

func (f *fakeConn) Create(path string, data []byte, flags int32, _ []zk.ACL) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if flags&zk.FlagSequence != 0 {
		p := parent(path)
		n := f.seq[p]
		f.seq[p]++
		path = fmt.Sprintf("%s%010d", path, n)
	} else if _, exists := f.nodes[path]; exists {
		return "", zk.ErrNodeExists
	}
	f.nodes[path] = data
	return path, nil
}

func (f *fakeConn) Children(path string) ([]string, *zk.Stat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[path]; !ok {
		return nil, nil, zk.ErrNoNode
	}
	var children []string
	for node := range f.nodes {
		if parent(node) == path {
			children = append(children, node[len(path)+1:])
		}
	}
	sort.Strings(children)
	return children, &zk.Stat{}, nil
}

func (f *fakeConn) ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan zk.Event, 1)
	if _, ok := f.nodes[path]; !ok {
		ch <- zk.Event{Type: zk.EventNodeDeleted, Path: path}
		return false, nil, ch, nil
	}
	f.watches[path] = append(f.watches[path], ch)
	return true, &zk.Stat{}, ch, nil
}

func (f *fakeConn) Delete(path string, _ int32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.nodes[path]; !ok {
		return zk.ErrNoNode
	}
	for node := range f.nodes {
		if parent(node) == path {
			return zk.ErrNotEmpty
		}
	}
	delete(f.nodes, path)
	for _, ch := range f.watches[path] {
		ch <- zk.Event{Type: zk.EventNodeDeleted, Path: path}
	}
	delete(f.watches, path)
	return nil
}

func newTestClient(t *testing.T, conn Conn) *Client {
	t.Helper()
	cfg := DefaultConfig()
	cfg.AcquireTimeout = 2 * time.Second
	client, err := NewClient(conn, cfg, nil)
	require.NoError(t, err)
	return client
}

func TestWriteLockFreeScope(t *testing.T) {
	conn := newFakeConn()
	client := newTestClient(t, conn)

	release := client.AcquireWrite(context.Background(), "bucket", "key")
	release()

	// Release removes the ephemeral child and the empty lock node.
	conn.mu.Lock()
	defer conn.mu.Unlock()
	assert.Len(t, conn.nodes, 1) // only the root remains
}

func TestWritersExclude(t *testing.T) {
	conn := newFakeConn()
	client := newTestClient(t, conn)
	ctx := context.Background()

	release1 := client.AcquireWrite(ctx, "b", "k")

	acquired := make(chan ReleaseFunc, 1)
	go func() { acquired <- client.AcquireWrite(ctx, "b", "k") }()

	select {
	case <-acquired:
		t.Fatal("second writer acquired while first held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	release1()
	select {
	case release2 := <-acquired:
		release2()
	case <-time.After(time.Second):
		t.Fatal("second writer never acquired after release")
	}
}

func TestReadersShare(t *testing.T) {
	conn := newFakeConn()
	client := newTestClient(t, conn)
	ctx := context.Background()

	release1 := client.AcquireRead(ctx, "b", "k")
	done := make(chan ReleaseFunc, 1)
	go func() { done <- client.AcquireRead(ctx, "b", "k") }()

	select {
	case release2 := <-done:
		release2()
	case <-time.After(time.Second):
		t.Fatal("concurrent readers must not block each other")
	}
	release1()
}

func TestReaderWaitsForWriter(t *testing.T) {
	conn := newFakeConn()
	client := newTestClient(t, conn)
	ctx := context.Background()

	releaseW := client.AcquireWrite(ctx, "b", "k")
	acquired := make(chan ReleaseFunc, 1)
	go func() { acquired <- client.AcquireRead(ctx, "b", "k") }()

	select {
	case <-acquired:
		t.Fatal("reader acquired under an active writer")
	case <-time.After(50 * time.Millisecond):
	}

	releaseW()
	select {
	case releaseR := <-acquired:
		releaseR()
	case <-time.After(time.Second):
		t.Fatal("reader never acquired after the writer released")
	}
}

func TestTimeoutProceedsWithoutLock(t *testing.T) {
	conn := newFakeConn()
	cfg := DefaultConfig()
	cfg.AcquireTimeout = 30 * time.Millisecond
	client, err := NewClient(conn, cfg, nil)
	require.NoError(t, err)

	// A stale child from a vanished holder blocks the scope forever.
	lockNode := client.LockNodePath("b", "k")
	_, err = conn.Create(lockNode, []byte("stale"), 0, zk.WorldACL(zk.PermAll))
	require.NoError(t, err)
	_, err = conn.Create(lockNode+"/write-", []byte("ghost"), zk.FlagEphemeral|zk.FlagSequence, zk.WorldACL(zk.PermAll))
	require.NoError(t, err)

	start := time.Now()
	release := client.AcquireWrite(context.Background(), "b", "k")
	release()
	assert.Less(t, time.Since(start), time.Second, "timed-out acquire must return promptly")
}

func TestDisabledClientIsNoop(t *testing.T) {
	var client *Client
	release := client.AcquireWrite(context.Background(), "b", "k")
	release()
	release = client.AcquireRead(context.Background(), "b", "k")
	release()
}
