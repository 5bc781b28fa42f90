// Package coordination implements the cross-proxy reader/writer lock per
// (bucket, key), built on ZooKeeper sequential ephemeral nodes. The
// protocol is the standard ZooKeeper shared-lock recipe: each acquirer
// creates a typed sequential child under the scope's lock node and watches
// only its blocking predecessor, never the parent, so releases wake one
// waiter instead of the herd.
package coordination

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-zookeeper/zk"
)

// Mode selects reader or writer semantics.
type Mode string

const (
	// ModeRead admits concurrent readers behind no writer.
	ModeRead Mode = "read"
	// ModeWrite admits a single holder.
	ModeWrite Mode = "write"
)

// ReleaseFunc releases a held lock. Safe to call exactly once.
type ReleaseFunc func()

// Conn is the subset of the ZooKeeper client the lock protocol needs.
// *zk.Conn satisfies it; tests substitute an in-memory fake.
type Conn interface {
	Create(path string, data []byte, flags int32, acl []zk.ACL) (string, error)
	Children(path string) ([]string, *zk.Stat, error)
	ExistsW(path string) (bool, *zk.Stat, <-chan zk.Event, error)
	Delete(path string, version int32) error
}

// Config holds the coordination service settings.
type Config struct {
	Enabled        bool          `yaml:"enabled"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RootNode       string        `yaml:"root_node"`
	SessionTimeout time.Duration `yaml:"session_timeout"`
	AcquireTimeout time.Duration `yaml:"acquire_timeout"`
}

// DefaultConfig returns the standard local-ZooKeeper settings.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           2181,
		RootNode:       "/racs",
		SessionTimeout: 10 * time.Second,
		AcquireTimeout: 60 * time.Second,
	}
}

// Client hands out per-(bucket,key) reader/writer locks. A disabled client
// hands out immediate no-op releases.
type Client struct {
	conn    Conn
	root    string
	id      string
	timeout time.Duration
	counter atomic.Uint64
	log     *slog.Logger
}

// Connect dials the coordination service and ensures the root node exists.
// Returns nil (a no-op client) when cfg.Enabled is false.
func Connect(cfg Config, log *slog.Logger) (*Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	servers := []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}
	conn, _, err := zk.Connect(servers, cfg.SessionTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect zookeeper %s: %w", servers[0], err)
	}
	return NewClient(conn, cfg, log)
}

// NewClient wraps an established connection. Exposed for tests.
func NewClient(conn Conn, cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		conn:    conn,
		root:    cfg.RootNode,
		id:      fmt.Sprintf("racs-%d-%d", time.Now().UnixNano(), rand.Int31()),
		timeout: cfg.AcquireTimeout,
		log:     log.With("component", "coordination"),
	}
	if c.timeout <= 0 {
		c.timeout = 60 * time.Second
	}
	if _, err := conn.Create(c.root, []byte("racs root"), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
		return nil, fmt.Errorf("create root node %s: %w", c.root, err)
	}
	return c, nil
}

// AcquireRead blocks until it is safe to read (bucket, key).
func (c *Client) AcquireRead(ctx context.Context, bucket, key string) ReleaseFunc {
	return c.acquire(ctx, ModeRead, bucket, key)
}

// AcquireWrite blocks until it is safe to write (bucket, key).
func (c *Client) AcquireWrite(ctx context.Context, bucket, key string) ReleaseFunc {
	return c.acquire(ctx, ModeWrite, bucket, key)
}

// acquire never fails the request: on timeout or coordination error the
// caller proceeds without the lock. That is safe only for single-proxy
// deployments, and it is logged loudly, but a stalled lock service must not
// take down the data path.
func (c *Client) acquire(ctx context.Context, mode Mode, bucket, key string) ReleaseFunc {
	if c == nil {
		return func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	release, err := c.lock(ctx, mode, bucket, key)
	if err != nil {
		c.log.Warn("proceeding without lock",
			"mode", mode, "bucket", bucket, "key", key, "error", err)
		return func() {}
	}
	return release
}

// LockNodePath returns the lock node for a scope: the root plus
// "<bucket>:<key>" with slashes escaped to keep the path flat.
func (c *Client) LockNodePath(bucket, key string) string {
	scope := strings.ReplaceAll(bucket+":"+key, "/", "SLASH")
	return c.root + "/" + scope
}

func (c *Client) lock(ctx context.Context, mode Mode, bucket, key string) (ReleaseFunc, error) {
	lockNode := c.LockNodePath(bucket, key)
	if _, err := c.conn.Create(lockNode, []byte(c.id), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
		return nil, fmt.Errorf("create lock node: %w", err)
	}

	// Create returns the sequence-suffixed path of our child, so no scan is
	// needed to find it; the payload token only labels the holder.
	token := fmt.Sprintf("%s-%d", c.id, c.counter.Add(1))
	child, err := c.conn.Create(lockNode+"/"+string(mode)+"-", []byte(token),
		zk.FlagEphemeral|zk.FlagSequence, zk.WorldACL(zk.PermAll))
	if err != nil {
		return nil, fmt.Errorf("create %s child: %w", mode, err)
	}

	for {
		children, _, err := c.conn.Children(lockNode)
		if err != nil {
			return nil, fmt.Errorf("list lock children: %w", err)
		}
		sortBySequence(children)

		mine := child[strings.LastIndex(child, "/")+1:]
		granted, waitFor := Decide(children, mine, mode)
		if granted {
			return func() { c.release(child, lockNode) }, nil
		}

		exists, _, watch, err := c.conn.ExistsW(lockNode + "/" + waitFor)
		if err != nil {
			return nil, fmt.Errorf("watch predecessor %s: %w", waitFor, err)
		}
		if !exists {
			continue // predecessor already gone; re-evaluate immediately
		}
		select {
		case <-watch:
		case <-ctx.Done():
			// Drop our child so we do not block others while absent.
			_ = c.conn.Delete(child, -1)
			return nil, ctx.Err()
		}
	}
}

func (c *Client) release(child, lockNode string) {
	if err := c.conn.Delete(child, -1); err != nil && err != zk.ErrNoNode {
		c.log.Warn("release lock child", "path", child, "error", err)
	}
	// Best-effort removal of an empty lock node; losing the race to a new
	// acquirer is fine.
	if err := c.conn.Delete(lockNode, -1); err != nil && err != zk.ErrNoNode && err != zk.ErrNotEmpty {
		c.log.Warn("remove lock node", "path", lockNode, "error", err)
	}
}

// Decide evaluates the lock protocol for one pass over the sorted children.
// A writer proceeds iff it holds the smallest sequence. A reader proceeds
// iff no writer precedes it. When blocked, the returned waitFor names the
// child to watch: a writer watches its immediate predecessor, a reader the
// last writer ahead of it.
func Decide(sortedChildren []string, mine string, mode Mode) (granted bool, waitFor string) {
	if mode == ModeWrite {
		for i, child := range sortedChildren {
			if child != mine {
				continue
			}
			if i == 0 {
				return true, ""
			}
			return false, sortedChildren[i-1]
		}
		return false, ""
	}

	// Reader: scan everything ahead of us for writers.
	for _, child := range sortedChildren {
		if child == mine {
			break
		}
		if strings.HasPrefix(child, string(ModeWrite)+"-") {
			waitFor = child
		}
	}
	return waitFor == "", waitFor
}

// Sequence extracts the trailing sequence number of a lock child name.
func Sequence(child string) int {
	idx := strings.LastIndex(child, "-")
	if idx < 0 {
		return -1
	}
	n, err := strconv.Atoi(child[idx+1:])
	if err != nil {
		return -1
	}
	return n
}

func sortBySequence(children []string) {
	sort.Slice(children, func(i, j int) bool {
		return Sequence(children[i]) < Sequence(children[j])
	})
}
