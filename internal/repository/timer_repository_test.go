package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-desk/internal/domain"
	"github.com/spec-kit/ticket-desk/internal/persistence"
)

func newTimerRepos(t *testing.T) (*IndexedTimerRepository, ScanOpenCounter) {
	t.Helper()
	base := NewTimerRepository(context.Background(), persistence.NewMemoryKV(), zap.NewNop())
	return NewIndexedTimerRepository(base), ScanOpenCounter{Timers: base}
}

func record(ws, channel, assignee, requester string, open int) *domain.TicketTimerRecord {
	rec := &domain.TicketTimerRecord{
		WorkspaceID:   ws,
		ChannelID:     channel,
		AssigneeID:    assignee,
		RequesterID:   requester,
		CreatedAt:     time.Now(),
		OpenTicketIDs: []string{},
	}
	for i := 0; i < open; i++ {
		rec.OpenTicketIDs = append(rec.OpenTicketIDs, fmt.Sprintf("m%d", i))
	}
	return rec
}

func TestIndexedCounterMatchesScan(t *testing.T) {
	indexed, scan := newTimerRepos(t)

	indexed.Put(record("ws", "c1", "a", "r", 1))
	indexed.Put(record("ws", "c2", "a", "r", 2))
	indexed.Put(record("ws", "c3", "a", "other", 1))
	indexed.Put(record("ws", "c4", "b", "r", 1))
	indexed.Put(record("ws", "c5", "a", "r", 0))

	pairs := [][2]string{{"a", "r"}, {"a", "other"}, {"b", "r"}, {"b", "other"}}
	for _, pair := range pairs {
		want := scan.CountOpen("ws", pair[0], pair[1])
		got := indexed.CountOpen("ws", pair[0], pair[1])
		if got != want {
			t.Errorf("CountOpen(%s,%s) = %d, scan says %d", pair[0], pair[1], got, want)
		}
	}

	// Closing all tickets in a channel removes it from the count.
	rec, _ := indexed.Get("ws", "c1")
	rec.OpenTicketIDs = []string{}
	indexed.Put(rec)
	if got, want := indexed.CountOpen("ws", "a", "r"), scan.CountOpen("ws", "a", "r"); got != want || got != 1 {
		t.Errorf("after close: indexed %d, scan %d, want 1", got, want)
	}

	// Deleting a record drops its contribution.
	indexed.Delete("ws", "c2")
	if got, want := indexed.CountOpen("ws", "a", "r"), scan.CountOpen("ws", "a", "r"); got != want || got != 0 {
		t.Errorf("after delete: indexed %d, scan %d, want 0", got, want)
	}

	// Reopening counts again.
	rec, _ = indexed.Get("ws", "c1")
	rec.OpenTicketIDs = []string{"m1"}
	indexed.Put(rec)
	if got := indexed.CountOpen("ws", "a", "r"); got != 1 {
		t.Errorf("after reopen: %d, want 1", got)
	}
}

func TestIndexedCounterRebuildsFromStore(t *testing.T) {
	kv := persistence.NewMemoryKV()
	logger := zap.NewNop()

	first := NewIndexedTimerRepository(NewTimerRepository(context.Background(), kv, logger))
	first.Put(record("ws", "c1", "a", "r", 2))
	first.Put(record("ws", "c2", "a", "r", 1))
	if err := first.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	second := NewIndexedTimerRepository(NewTimerRepository(context.Background(), kv, logger))
	if got := second.CountOpen("ws", "a", "r"); got != 2 {
		t.Errorf("rebuilt count = %d, want 2", got)
	}
}

func TestTimerRepositoryCloneOnRead(t *testing.T) {
	indexed, _ := newTimerRepos(t)
	indexed.Put(record("ws", "c1", "a", "r", 1))

	rec, _ := indexed.Get("ws", "c1")
	rec.OpenTicketIDs = append(rec.OpenTicketIDs, "rogue")
	rec.Reminded = true

	stored, _ := indexed.Get("ws", "c1")
	if len(stored.OpenTicketIDs) != 1 || stored.Reminded {
		t.Error("mutation of a read copy leaked into the store")
	}
}

func TestTimerRecordsSurviveFlushAndReload(t *testing.T) {
	kv := persistence.NewMemoryKV()
	logger := zap.NewNop()

	repo := NewTimerRepository(context.Background(), kv, logger)
	rec := record("ws", "c1", "a", "r", 1)
	rec.Reminded = true
	rec.ArchiveThreadID = "thr-9"
	repo.Put(rec)
	if err := repo.Flush(context.Background()); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reloaded := NewTimerRepository(context.Background(), kv, logger)
	got, ok := reloaded.Get("ws", "c1")
	if !ok {
		t.Fatal("record lost across reload")
	}
	if !got.Reminded || got.ArchiveThreadID != "thr-9" || len(got.OpenTicketIDs) != 1 {
		t.Errorf("reloaded record mismatch: %+v", got)
	}
}
