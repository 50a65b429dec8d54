package repos

import (
	"context"
	"testing"

	"github.com/hathitrust/feed/internal/data/repos/testutil"
	"github.com/hathitrust/feed/internal/ingesterr"
	"github.com/hathitrust/feed/internal/platform/dbctx"
)

func TestErrorRepoRecord(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewErrorRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	ie := ingesterr.OperationFailedf("collate", "/tmp/foo.zip", nil)
	if err := repo.Record(dbc, "test", "39002012345", "punted", ie); err != nil {
		t.Fatalf("Record: %v", err)
	}
}

func TestErrorRepoRecordNilIsNoop(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewErrorRepo(tx, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	if err := repo.Record(dbc, "test", "39002012345", "punted", nil); err != nil {
		t.Fatalf("Record(nil) returned err: %v", err)
	}
}
