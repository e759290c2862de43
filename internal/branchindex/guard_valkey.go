package branchindex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

const guardKeyPrefix = "codecrow:index_guard:"

// releaseScript deletes the lease only if this holder still owns it, so an
// expired lease taken over by another worker is never released by the old one.
const releaseScript = `if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end`

// ValkeyGuard is a Guard backed by a Valkey SET NX PX lease, serializing
// mutations for a key across worker processes. The lease TTL bounds how long
// a crashed worker can wedge a branch.
type ValkeyGuard struct {
	client valkey.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewValkeyGuard(client valkey.Client, ttl time.Duration, logger *slog.Logger) *ValkeyGuard {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &ValkeyGuard{client: client, ttl: ttl, logger: logger}
}

func (g *ValkeyGuard) TryAcquire(ctx context.Context, projectID uuid.UUID, branchName string) (func(), bool, error) {
	key := guardKeyPrefix + guardKey(projectID, branchName)
	token := uuid.NewString()

	resp := g.client.Do(ctx, g.client.B().Set().
		Key(key).Value(token).
		Nx().Px(g.ttl).
		Build())
	if err := resp.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			// SET NX on a held key replies nil: someone else owns the lease.
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("acquire guard lease: %w", err)
	}

	release := func() {
		// Release must succeed even when the mutation context is cancelled.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		resp := g.client.Do(rctx, g.client.B().Eval().
			Script(releaseScript).Numkeys(1).
			Key(key).Arg(token).
			Build())
		if err := resp.Error(); err != nil {
			g.logger.Warn("release guard lease failed",
				slog.String("key", key),
				slog.String("error", err.Error()))
		}
	}
	return release, true, nil
}
