package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/abhisek/predtext/internal/event"
	"github.com/abhisek/predtext/internal/master"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)
	db := s.DB()

	tests := []struct {
		pragma string
		want   string
	}{
		// WAL mode falls back to "memory" for in-memory databases,
		// so we skip journal_mode here.
		{"foreign_keys", "1"},
		{"synchronous", "1"}, // NORMAL = 1
	}

	for _, tt := range tests {
		var got string
		err := db.QueryRow("PRAGMA " + tt.pragma).Scan(&got)
		if err != nil {
			t.Errorf("PRAGMA %s: %v", tt.pragma, err)
			continue
		}
		if got != tt.want {
			t.Errorf("PRAGMA %s = %q, want %q", tt.pragma, got, tt.want)
		}
	}
}

func TestMigrationCreatesTables(t *testing.T) {
	s := openTestStore(t)
	for _, table := range []string{"events", "snapshots", "analyses", "global_sequence"} {
		var name string
		err := s.DB().QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}
}

func TestSequenceCounter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var seqs []int64
	for i := 0; i < 5; i++ {
		seq, err := s.seq.Next(ctx)
		if err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
		seqs = append(seqs, seq)
	}

	// Should be monotonically increasing starting from 1.
	for i, seq := range seqs {
		expected := int64(i + 1)
		if seq != expected {
			t.Errorf("seq[%d] = %d, want %d", i, seq, expected)
		}
	}
}

func TestEventLogAppendAndQuery(t *testing.T) {
	s := openTestStore(t)
	log := s.EventLog()
	ctx := context.Background()

	evs := []event.Event{
		event.Login("p1", 0).WithStamp(100, "p", 0),
		event.Next().WithStamp(200, "p", 1),
		event.TapKey("h", 1, 2).WithStamp(300, "p", 2),
	}
	var seqs []int64
	for _, ev := range evs {
		seq, err := log.Append(ctx, "p1", ev)
		if err != nil {
			t.Fatalf("append: %v", err)
		}
		seqs = append(seqs, seq)
	}
	if _, err := log.Append(ctx, "p2", event.Login("p2", 1).WithStamp(150, "p", 0)); err != nil {
		t.Fatalf("append p2: %v", err)
	}

	got, err := log.Events(ctx, "p1", QueryOpts{})
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("events = %d, want 3", len(got))
	}
	for i, se := range got {
		if se.Sequence != seqs[i] {
			t.Errorf("event %d sequence = %d, want %d", i, se.Sequence, seqs[i])
		}
		if se.Event.Type != evs[i].Type || se.Event.JSTimestamp != evs[i].JSTimestamp {
			t.Errorf("event %d = %+v, want %+v", i, se.Event, evs[i])
		}
	}
	if got[2].Event.Key != "h" || got[2].Event.X == nil || *got[2].Event.X != 1 {
		t.Errorf("payload not preserved: %+v", got[2].Event)
	}

	after, err := log.Events(ctx, "p1", QueryOpts{After: seqs[0], Limit: 1})
	if err != nil {
		t.Fatalf("events after: %v", err)
	}
	if len(after) != 1 || after[0].Sequence != seqs[1] {
		t.Errorf("after/limit query = %+v", after)
	}
}

func TestParticipants(t *testing.T) {
	s := openTestStore(t)
	log := s.EventLog()
	ctx := context.Background()

	for _, ev := range []struct {
		p  string
		ts int64
	}{{"b", 10}, {"a", 20}, {"b", 30}} {
		if err := log.For(ev.p).Append(ctx, event.Next().WithStamp(ev.ts, "p", 0)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	got, err := log.Participants(ctx)
	if err != nil {
		t.Fatalf("participants: %v", err)
	}
	if len(got) != 2 || got[0].ParticipantID != "a" || got[1].ParticipantID != "b" {
		t.Fatalf("participants = %+v", got)
	}
	if got[1].Events != 2 || got[1].FirstTimestamp != 10 || got[1].LastTimestamp != 30 {
		t.Errorf("summary b = %+v", got[1])
	}
}

func TestSnapshotSaveAndLatest(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	// No snapshot yet.
	snap, err := repo.Latest(ctx, "p1")
	if err != nil {
		t.Fatalf("latest (empty): %v", err)
	}
	if snap != nil {
		t.Fatal("expected nil snapshot when none exist")
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	err = repo.Save(ctx, &Snapshot{
		ParticipantID: "p1",
		Sequence:      42,
		Timestamp:     now,
		Data: SnapshotData{
			Version: SnapshotVersion,
			Session: master.Snapshot{ParticipantID: "p1", ScreenNum: 2, CurExperiment: "task"},
		},
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	snap, err = repo.Latest(ctx, "p1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if snap == nil {
		t.Fatal("expected non-nil snapshot")
	}
	if snap.Sequence != 42 {
		t.Errorf("sequence = %d, want 42", snap.Sequence)
	}
	if snap.Data.Session.CurExperiment != "task" || snap.Data.Session.ScreenNum != 2 {
		t.Errorf("session = %+v", snap.Data.Session)
	}
	if !snap.Timestamp.Equal(now) {
		t.Errorf("timestamp = %v, want %v", snap.Timestamp, now)
	}

	other, err := repo.Latest(ctx, "p2")
	if err != nil || other != nil {
		t.Errorf("latest for p2 = %+v, %v; want nil", other, err)
	}
}

func TestSnapshotPrune(t *testing.T) {
	s := openTestStore(t)
	repo := s.SnapshotRepo()
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 7; i++ {
		err := repo.Save(ctx, &Snapshot{
			ParticipantID: "p1",
			Sequence:      int64(i + 1),
			Timestamp:     base.Add(time.Duration(i) * time.Minute),
			Data:          SnapshotData{Version: SnapshotVersion},
		})
		if err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	if err := repo.Prune(ctx, "p1", 5); err != nil {
		t.Fatalf("prune: %v", err)
	}

	var count int
	if err := s.DB().QueryRow("SELECT COUNT(*) FROM snapshots").Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 5 {
		t.Errorf("remaining snapshots = %d, want 5", count)
	}

	snap, err := repo.Latest(ctx, "p1")
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if snap.Sequence != 7 {
		t.Errorf("latest sequence = %d, want 7", snap.Sequence)
	}

	// Fewer than keep is a no-op.
	if err := repo.Prune(ctx, "p1", 10); err != nil {
		t.Fatalf("prune: %v", err)
	}
}

func TestAnalysisRepo(t *testing.T) {
	s := openTestStore(t)
	repo := s.AnalysisRepo()
	ctx := context.Background()

	got, err := repo.Get(ctx, "p1")
	if err != nil || got != nil {
		t.Fatalf("get empty = %+v, %v", got, err)
	}

	if err := repo.Save(ctx, "p1", "1.0.0", map[string]int{"pages": 1}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := repo.Save(ctx, "p1", "1.1.0", map[string]int{"pages": 2}); err != nil {
		t.Fatalf("save again: %v", err)
	}

	got, err = repo.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ClientVersion != "1.1.0" || string(got.Data) != `{"pages":2}` {
		t.Errorf("analysis = %+v (%s)", got, got.Data)
	}
}

func TestFileLogAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "p1.jsonl")
	fl, err := OpenFileLog(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()
	for _, ev := range []event.Event{event.Login("p1", 0), event.Next()} {
		if err := fl.Append(ctx, ev); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := fl.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	evs, err := event.ReadFile(path, true)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(evs) != 2 || evs[0].ParticipantID != "p1" || evs[1].Type != event.TypeNext {
		t.Errorf("read back %+v", evs)
	}
}
