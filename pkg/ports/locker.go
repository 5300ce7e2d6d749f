package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a lease obtained from a DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes work on one session across processes, so two
// `tabula serve` replicas never step the same session at once.
type DistributedLocker interface {
	// Lock blocks until the lease on key (a session ID) is held or ctx is done.
	// The lease expires after ttl if the holder dies; call the UnlockFunc to release early.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
