package repos

import (
	"context"
	"testing"

	"github.com/hathitrust/feed/internal/data/repos/testutil"
	"github.com/hathitrust/feed/internal/platform/dbctx"
)

func TestFeedQueueRepoEnqueueAndClaim(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewFeedQueueRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	entry, err := repo.Enqueue(dbc, "test", "39002012345", "yale", "ready")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if entry.Status != "ready" {
		t.Fatalf("Status = %q, want ready", entry.Status)
	}

	claimed, err := repo.ClaimNextRunnable(dbc, []string{"collated", "punted"}, "worker-1")
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if claimed == nil {
		t.Fatalf("ClaimNextRunnable = nil, want the enqueued row")
	}
	if claimed.ID != entry.ID {
		t.Fatalf("claimed id = %d, want %d", claimed.ID, entry.ID)
	}
}

func TestFeedQueueRepoClaimSkipsReleaseStates(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewFeedQueueRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	if _, err := repo.Enqueue(dbc, "test", "39002012345", "yale", "collated"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(dbc, []string{"collated", "punted"}, "worker-1")
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if claimed != nil {
		t.Fatalf("ClaimNextRunnable = %+v, want nil (row is in a release state)", claimed)
	}
}

func TestFeedQueueRepoUpdateStatusBumpsFailureCount(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewFeedQueueRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	entry, err := repo.Enqueue(dbc, "test", "39002012345", "yale", "ready")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := repo.UpdateStatus(dbc, entry.ID, "punted", true); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	claimed, err := repo.ClaimNextRunnable(dbc, []string{"collated"}, "worker-1")
	if err != nil {
		t.Fatalf("ClaimNextRunnable: %v", err)
	}
	if claimed == nil {
		t.Fatalf("claimed = nil, want the row now at punted status")
	}
	if claimed.Status != "punted" {
		t.Fatalf("Status = %q, want punted", claimed.Status)
	}
	if claimed.FailureCount != 1 {
		t.Fatalf("FailureCount = %d, want 1", claimed.FailureCount)
	}
}
