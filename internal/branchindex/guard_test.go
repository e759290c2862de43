package branchindex

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestKeyedGuard(t *testing.T) {
	guard := NewKeyedGuard()
	ctx := context.Background()
	projectID := uuid.New()

	release, acquired, err := guard.TryAcquire(ctx, projectID, "feature/x")
	if err != nil || !acquired {
		t.Fatalf("first acquire: acquired=%v err=%v", acquired, err)
	}

	// Same key is held.
	if _, again, _ := guard.TryAcquire(ctx, projectID, "feature/x"); again {
		t.Error("second acquire succeeded while key held")
	}

	// Other keys are independent.
	relOther, otherOK, _ := guard.TryAcquire(ctx, projectID, "feature/y")
	if !otherOK {
		t.Error("different branch blocked by unrelated key")
	}
	relProj, projOK, _ := guard.TryAcquire(ctx, uuid.New(), "feature/x")
	if !projOK {
		t.Error("different project blocked by unrelated key")
	}
	relOther()
	relProj()

	release()
	rel2, reacquired, _ := guard.TryAcquire(ctx, projectID, "feature/x")
	if !reacquired {
		t.Fatal("reacquire after release failed")
	}
	rel2()
}
