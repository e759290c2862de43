package branchindex

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Guard serializes index mutations per (project, branch) key. It is a liveness
// optimization that prevents duplicated work; the registry's compare-and-set
// remains the correctness mechanism against lost updates.
type Guard interface {
	// TryAcquire attempts to take the key without blocking. When acquired=true
	// the caller owns the key and must call release on every exit path.
	TryAcquire(ctx context.Context, projectID uuid.UUID, branchName string) (release func(), acquired bool, err error)
}

// KeyedGuard is an in-process Guard backed by a keyed mutex set. Sufficient
// for single-worker deployments; multi-worker deployments layer the Valkey
// lease guard on top.
type KeyedGuard struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewKeyedGuard() *KeyedGuard {
	return &KeyedGuard{held: make(map[string]struct{})}
}

func (g *KeyedGuard) TryAcquire(_ context.Context, projectID uuid.UUID, branchName string) (func(), bool, error) {
	key := guardKey(projectID, branchName)

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, taken := g.held[key]; taken {
		return nil, false, nil
	}
	g.held[key] = struct{}{}

	release := func() {
		g.mu.Lock()
		delete(g.held, key)
		g.mu.Unlock()
	}
	return release, true, nil
}

func guardKey(projectID uuid.UUID, branchName string) string {
	return projectID.String() + "/" + branchName
}
