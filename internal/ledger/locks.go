package ledger

import (
	"context"
	"slices"
	"sync"

	"golang.org/x/sync/semaphore"
)

// accountLocks hands out one exclusive lock per account. A weight-one
// semaphore is used instead of sync.Mutex so acquisition can give up when
// the context expires.
type accountLocks struct {
	mu    sync.Mutex             // protects locks
	locks map[string]*semaphore.Weighted
}

func newAccountLocks() *accountLocks {
	return &accountLocks{locks: make(map[string]*semaphore.Weighted)}
}

func (l *accountLocks) get(accountNumber string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, exists := l.locks[accountNumber]
	if !exists {
		sem = semaphore.NewWeighted(1)
		l.locks[accountNumber] = sem
	}
	return sem
}

// acquire locks every given account in lexicographic order so that two
// transfers over the same pair can never wait on each other in a cycle.
// On failure nothing stays locked.
func (l *accountLocks) acquire(ctx context.Context, accountNumbers ...string) (func(), error) {
	ordered := slices.Clone(accountNumbers)
	slices.Sort(ordered)
	ordered = slices.Compact(ordered)

	held := make([]*semaphore.Weighted, 0, len(ordered))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release(1)
		}
	}

	for _, accountNumber := range ordered {
		sem := l.get(accountNumber)
		if err := sem.Acquire(ctx, 1); err != nil {
			release()
			return nil, err
		}
		held = append(held, sem)
	}

	return release, nil
}
