package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/racs-io/racs/internal/circuit"
	"github.com/racs-io/racs/internal/config"
	"github.com/racs-io/racs/internal/repository"
	"github.com/racs-io/racs/internal/repository/fs"
)

func TestReadConcurrency(t *testing.T) {
	assert.Equal(t, 3, readConcurrency(config.PolicyLatency, 3, 2))
	assert.Equal(t, 2, readConcurrency(config.PolicyBandwidth, 3, 2))
	assert.Equal(t, 3, readConcurrency(config.PolicyBandwidth, 3, 3))
}

func TestChooseRepositoriesOrdersByPriority(t *testing.T) {
	repos := make([]repository.Repository, 3)
	for i, name := range []string{"a", "b", "c"} {
		repo, err := fs.New(name, fs.Options{BaseDirectory: t.TempDir()})
		require.NoError(t, err)
		repos[i] = repo
	}
	manager := repository.NewManager(repos, circuit.Config{})
	manager.Get("c").DecreasePriority()
	manager.Get("a").IncreasePriority()

	chosen := chooseRepositories(manager)
	require.Len(t, chosen, 3)
	assert.Equal(t, "c", chosen[0].Name())
	assert.Equal(t, "b", chosen[1].Name())
	assert.Equal(t, "a", chosen[2].Name())
}

func TestRedundantRepositories(t *testing.T) {
	repos := make([]repository.Repository, 3)
	for i, name := range []string{"a", "b", "c"} {
		repo, err := fs.New(name, fs.Options{BaseDirectory: t.TempDir()})
		require.NoError(t, err)
		repos[i] = repo
	}
	manager := repository.NewManager(repos, circuit.Config{})
	all := manager.Active()

	extra := redundantRepositories(all[:2], all)
	require.Len(t, extra, 1)
	assert.Equal(t, "c", extra[0].Name())

	assert.Empty(t, redundantRepositories(all, all))
}

func TestRequestIDShapes(t *testing.T) {
	id2 := newID2()
	assert.Len(t, id2, 64)
	for _, c := range id2 {
		assert.Contains(t, base62Alphabet, string(c))
	}

	reqID := newRequestID()
	assert.Len(t, reqID, 16)
	assert.Regexp(t, "^[0-9A-F]{16}$", reqID)
}
