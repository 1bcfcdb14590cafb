// internal/engine/locks.go
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	engerrors "menusync/internal/common/errors"
	"menusync/internal/common/logger"
)

// releaseScript deletes the lock key only if it still holds our token, so an
// expired lock re-acquired by another worker is never released by us.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// BranchLock serializes syncs per branch sync link across all service
// instances. Two concurrent syncs against the same link must be mutually
// exclusive; syncs against different links never block each other.
type BranchLock struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewBranchLock(client *redis.Client, ttl time.Duration, log logger.Logger) *BranchLock {
	return &BranchLock{client: client, ttl: ttl, logger: log}
}

func lockKey(branchSyncID string) string {
	return "menusync:lock:" + branchSyncID
}

// Acquire takes the per-branch lock or fails fast with SyncInProgress.
// The returned release func is safe to call exactly once.
func (l *BranchLock) Acquire(ctx context.Context, branchSyncID string) (func(), error) {
	token := uuid.New().String()
	key := lockKey(branchSyncID)

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire branch lock: %w", err)
	}
	if !ok {
		return nil, engerrors.NewSyncInProgressError(branchSyncID)
	}

	release := func() {
		// Background context: the lock must be released even when the sync
		// context is already cancelled.
		rctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := l.client.Eval(rctx, releaseScript, []string{key}, token).Err(); err != nil {
			l.logger.Warn("branch lock release failed; relying on TTL expiry", map[string]interface{}{
				"branchSyncId": branchSyncID,
				"error":        err.Error(),
			})
		}
	}
	return release, nil
}
