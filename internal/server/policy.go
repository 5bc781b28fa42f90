package server

import (
	"github.com/racs-io/racs/internal/config"
	"github.com/racs-io/racs/internal/repository"
)

// chooseRepositories orders the active repositories for a read. Under the
// latency policy all of them run concurrently and the k fastest win; under
// the bandwidth policy the executor's concurrency cap keeps only k
// transfers in flight, and the rest of the ordered list serves as
// fall-over when one of the first k fails.
func chooseRepositories(manager *repository.Manager) []*repository.Handle {
	return manager.ByPriority()
}

// readConcurrency translates the policy into the executor's cap.
func readConcurrency(policy config.ReadPolicy, n, k int) int {
	if policy == config.PolicyBandwidth && k < n {
		return k
	}
	return n
}

// redundantRepositories returns available minus spent, preserving the
// order of available.
func redundantRepositories(spent, available []*repository.Handle) []*repository.Handle {
	used := make(map[*repository.Handle]struct{}, len(spent))
	for _, h := range spent {
		used[h] = struct{}{}
	}
	var extra []*repository.Handle
	for _, h := range available {
		if _, ok := used[h]; !ok {
			extra = append(extra, h)
		}
	}
	return extra
}
