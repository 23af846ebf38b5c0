package state

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattjoyce/relaycmd/internal/storage"
)

func openStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "history.db")
	db, err := storage.OpenSQLite(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestStoreHistoryNewestFirst(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openStore(t)
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"e1", "e2", "e3"} {
		if err := s.Begin(ctx, id, "save", base.Add(time.Duration(i)*time.Second)); err != nil {
			t.Fatalf("Begin %s: %v", id, err)
		}
	}
	if err := s.Begin(ctx, "other", "export", base); err != nil {
		t.Fatalf("Begin other: %v", err)
	}
	if err := s.Finish(ctx, "e1", StatusSucceeded, "", base.Add(500*time.Millisecond)); err != nil {
		t.Fatalf("Finish e1: %v", err)
	}
	if err := s.Finish(ctx, "e2", StatusFailed, "disk full", base.Add(2*time.Second)); err != nil {
		t.Fatalf("Finish e2: %v", err)
	}

	recs, err := s.History(ctx, "save", 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].ID != "e3" || recs[1].ID != "e2" || recs[2].ID != "e1" {
		t.Fatalf("unexpected order: %s %s %s", recs[0].ID, recs[1].ID, recs[2].ID)
	}
	if recs[0].Status != StatusRunning || recs[0].CompletedAt != nil {
		t.Fatalf("e3 should still be running: %+v", recs[0])
	}
	if recs[1].Status != StatusFailed || recs[1].Error != "disk full" {
		t.Fatalf("e2 not recorded as failed: %+v", recs[1])
	}
	if recs[2].CompletedAt == nil || !recs[2].CompletedAt.Equal(base.Add(500*time.Millisecond)) {
		t.Fatalf("e1 completed_at = %v", recs[2].CompletedAt)
	}

	limited, err := s.History(ctx, "save", 1)
	if err != nil {
		t.Fatalf("History limit: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "e3" {
		t.Fatalf("limit not applied: %+v", limited)
	}
}

func TestStoreHistoryEmpty(t *testing.T) {
	t.Parallel()

	recs, err := openStore(t).History(context.Background(), "nothing", 10)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if recs == nil || len(recs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", recs)
	}
}

func TestStoreFinishUnknownExecution(t *testing.T) {
	t.Parallel()

	err := openStore(t).Finish(context.Background(), "ghost", StatusSucceeded, "", time.Now())
	if !errors.Is(err, ErrUnknownExecution) {
		t.Fatalf("expected ErrUnknownExecution, got %v", err)
	}
}

func TestStoreFinishRejectsRunningStatus(t *testing.T) {
	t.Parallel()

	if err := openStore(t).Finish(context.Background(), "x", StatusRunning, "", time.Now()); err == nil {
		t.Fatal("expected error for non-final status")
	}
}

func TestStoreBeginDuplicateID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openStore(t)
	if err := s.Begin(ctx, "dup", "save", time.Now()); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.Begin(ctx, "dup", "save", time.Now()); err == nil {
		t.Fatal("expected primary key violation")
	}
}

func TestStoreRecoverInterrupted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openStore(t)
	now := time.Now()
	_ = s.Begin(ctx, "a", "save", now)
	_ = s.Begin(ctx, "b", "save", now)
	_ = s.Finish(ctx, "b", StatusSucceeded, "", now)

	n, err := s.RecoverInterrupted(ctx, now)
	if err != nil {
		t.Fatalf("RecoverInterrupted: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 recovered execution, got %d", n)
	}

	recs, _ := s.History(ctx, "save", 0)
	for _, r := range recs {
		if r.ID == "a" && (r.Status != StatusFailed || r.Error == "") {
			t.Fatalf("a not marked interrupted: %+v", r)
		}
		if r.ID == "b" && r.Status != StatusSucceeded {
			t.Fatalf("b changed: %+v", r)
		}
	}
}

func TestStorePrune(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openStore(t)
	now := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)

	_ = s.Begin(ctx, "old", "save", now.Add(-72*time.Hour))
	_ = s.Finish(ctx, "old", StatusSucceeded, "", now.Add(-72*time.Hour))
	_ = s.Begin(ctx, "recent", "save", now.Add(-time.Hour))
	_ = s.Finish(ctx, "recent", StatusSucceeded, "", now.Add(-time.Hour))
	_ = s.Begin(ctx, "running", "save", now.Add(-96*time.Hour))

	n, err := s.Prune(ctx, 24*time.Hour, now)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 pruned row, got %d", n)
	}

	recs, _ := s.History(ctx, "save", 0)
	if len(recs) != 2 {
		t.Fatalf("expected recent and running to remain, got %+v", recs)
	}

	if n, err := s.Prune(ctx, 0, now); err != nil || n != 0 {
		t.Fatalf("zero retention should be a no-op, got n=%d err=%v", n, err)
	}
}

func TestStoreEnabledFlags(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := openStore(t)

	if err := s.SaveEnabled(ctx, "save", false); err != nil {
		t.Fatalf("SaveEnabled: %v", err)
	}
	if err := s.SaveEnabled(ctx, "export", true); err != nil {
		t.Fatalf("SaveEnabled: %v", err)
	}
	if err := s.SaveEnabled(ctx, "save", true); err != nil {
		t.Fatalf("SaveEnabled overwrite: %v", err)
	}
	if err := s.SaveEnabled(ctx, "", true); err == nil {
		t.Fatal("expected error for empty command")
	}

	flags, err := s.LoadEnabled(ctx)
	if err != nil {
		t.Fatalf("LoadEnabled: %v", err)
	}
	if len(flags) != 2 || !flags["save"] || !flags["export"] {
		t.Fatalf("unexpected flags %v", flags)
	}
}
