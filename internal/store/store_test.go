package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/theirongolddev/worklog/internal/model"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "worklog.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func strp(s string) *string { return &s }

func mustCreate(t *testing.T, s *Store, snap model.Snapshot) int64 {
	t.Helper()
	id, err := s.CreateRecord(context.Background(), snap)
	if err != nil {
		t.Fatalf("CreateRecord: %v", err)
	}
	return id
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worklog.db")
	for i := 0; i < 2; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open #%d: %v", i+1, err)
		}
		v, err := s.SchemaVersion(context.Background())
		if err != nil {
			t.Fatalf("SchemaVersion: %v", err)
		}
		if v != len(migrations) {
			t.Fatalf("schema version = %d, want %d", v, len(migrations))
		}
		_ = s.Close()
	}
}

func TestMigrationKeepsExistingRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worklog.db")

	// Build a database at schema version 1 with one row.
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(migrations[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("PRAGMA user_version = 1"); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO tracking (start_time, duration_seconds, keystrokes) VALUES ('2026-01-05T09:00:00Z', 600, 12)`); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open after v1: %v", err)
	}
	defer s.Close()

	recs, err := s.ListRecords(context.Background())
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(recs) != 1 || recs[0].DurationSeconds != 600 || recs[0].Keystrokes != 12 {
		t.Fatalf("records after migration = %+v, want the original row", recs)
	}
	if _, err := s.MarkSynced(context.Background(), []int64{recs[0].ID}); err != nil {
		t.Fatalf("MarkSynced on migrated row: %v", err)
	}
}

func TestCreateAndListRecords(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	mustCreate(t, s, model.Snapshot{StartTime: base, DurationSeconds: 600, Keystrokes: 10})
	mustCreate(t, s, model.Snapshot{
		StartTime:       base.Add(10 * time.Minute),
		DurationSeconds: 180,
		MouseMoves:      40,
		MouseClicks:     3,
		ScreenshotRefs:  []string{"a.png", "", "b.png"},
		ProjectID:       strp("p1"),
		ProjectName:     strp("Website"),
		UserID:          strp("42"),
	})

	recs, err := s.ListRecords(ctx)
	if err != nil {
		t.Fatalf("ListRecords: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}

	newest := recs[0]
	if newest.DurationSeconds != 180 {
		t.Fatalf("newest duration = %d, want 180 (newest first)", newest.DurationSeconds)
	}
	if len(newest.ScreenshotRefs) != 2 || newest.ScreenshotRefs[1] != "b.png" {
		t.Fatalf("ScreenshotRefs = %v, want [a.png b.png]", newest.ScreenshotRefs)
	}
	if newest.ProjectName == nil || *newest.ProjectName != "Website" {
		t.Fatalf("ProjectName = %v, want Website", newest.ProjectName)
	}
	if newest.SyncStatus != model.Pending {
		t.Fatalf("SyncStatus = %v, want pending", newest.SyncStatus)
	}
	if !newest.StartTime.Equal(base.Add(10 * time.Minute)) {
		t.Fatalf("StartTime = %v", newest.StartTime)
	}

	oldest := recs[1]
	if oldest.ProjectID != nil || oldest.UserID != nil {
		t.Fatalf("expected nil project/user, got %v/%v", oldest.ProjectID, oldest.UserID)
	}
	if len(oldest.ScreenshotRefs) != 0 {
		t.Fatalf("ScreenshotRefs = %v, want empty", oldest.ScreenshotRefs)
	}
}

func TestRecordsIsRestartable(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		mustCreate(t, s, model.Snapshot{StartTime: time.Now().Add(time.Duration(i) * time.Minute), DurationSeconds: 1})
	}

	seq := s.Records(ctx)
	count := func() int {
		n := 0
		for _, err := range seq {
			if err != nil {
				t.Fatalf("iterating: %v", err)
			}
			n++
		}
		return n
	}
	if a, b := count(), count(); a != 3 || b != 3 {
		t.Fatalf("iterations yielded %d and %d, want 3 and 3", a, b)
	}

	// Breaking early must release the cursor.
	for range seq {
		break
	}
	mustCreate(t, s, model.Snapshot{StartTime: time.Now(), DurationSeconds: 1})
	if n := count(); n != 4 {
		t.Fatalf("after early break and insert got %d, want 4", n)
	}
}

func TestMarkSyncedIsIdempotentAndMonotonic(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(rt, "records")
		ids := make([]int64, n)
		for i := range ids {
			id, err := s.CreateRecord(ctx, model.Snapshot{StartTime: time.Now(), DurationSeconds: int64(i)})
			if err != nil {
				rt.Fatalf("CreateRecord: %v", err)
			}
			ids[i] = id
		}

		subset := rapid.SliceOfDistinct(rapid.SampledFrom(ids), func(id int64) int64 { return id }).Draw(rt, "subset")

		first, err := s.MarkSynced(ctx, subset)
		if err != nil {
			rt.Fatalf("MarkSynced: %v", err)
		}
		if first != int64(len(subset)) {
			rt.Fatalf("first MarkSynced changed %d, want %d", first, len(subset))
		}
		again, err := s.MarkSynced(ctx, subset)
		if err != nil {
			rt.Fatalf("MarkSynced again: %v", err)
		}
		if again != 0 {
			rt.Fatalf("second MarkSynced changed %d rows, want 0", again)
		}

		marked := make(map[int64]bool, len(subset))
		for _, id := range subset {
			marked[id] = true
		}
		pending, err := s.PendingRecords(ctx)
		if err != nil {
			rt.Fatalf("PendingRecords: %v", err)
		}
		for _, rec := range pending {
			if marked[rec.ID] {
				rt.Fatalf("record %d reverted to pending", rec.ID)
			}
		}
	})
}

func TestAggregateDurationHalfOpen(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	mustCreate(t, s, model.Snapshot{StartTime: day.Add(-time.Second), DurationSeconds: 1000})
	mustCreate(t, s, model.Snapshot{StartTime: day, DurationSeconds: 600})
	mustCreate(t, s, model.Snapshot{StartTime: day.Add(12 * time.Hour), DurationSeconds: 300})
	mustCreate(t, s, model.Snapshot{StartTime: day.Add(24 * time.Hour), DurationSeconds: 5000})

	got, err := s.AggregateDuration(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("AggregateDuration: %v", err)
	}
	if got != 900 {
		t.Fatalf("AggregateDuration = %d, want 900", got)
	}

	empty, err := s.AggregateDuration(ctx, day.AddDate(1, 0, 0), day.AddDate(1, 0, 1))
	if err != nil || empty != 0 {
		t.Fatalf("empty range = %d, %v; want 0, nil", empty, err)
	}
}

func TestSelectProjectUnknown(t *testing.T) {
	s := openTest(t)
	if err := s.SelectProject(context.Background(), "nope"); !errors.Is(err, ErrProjectNotFound) {
		t.Fatalf("err = %v, want ErrProjectNotFound", err)
	}
}

func TestProjectSelectionExclusive(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	ids := []string{"p0", "p1", "p2", "p3"}
	for i, id := range ids {
		if err := s.AddProject(ctx, id, fmt.Sprintf("Project %d", i)); err != nil {
			t.Fatalf("AddProject: %v", err)
		}
	}

	rapid.Check(t, func(rt *rapid.T) {
		var want string
		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.IntRange(0, 4).Draw(rt, "action") == 0 {
				if err := s.ClearSelection(ctx); err != nil {
					rt.Fatalf("ClearSelection: %v", err)
				}
				want = ""
				continue
			}
			id := rapid.SampledFrom(ids).Draw(rt, "id")
			if err := s.SelectProject(ctx, id); err != nil {
				rt.Fatalf("SelectProject(%s): %v", id, err)
			}
			want = id
		}

		projects, err := s.Projects(ctx)
		if err != nil {
			rt.Fatalf("Projects: %v", err)
		}
		selected := 0
		for _, p := range projects {
			if p.Selected {
				selected++
			}
		}
		if selected > 1 {
			rt.Fatalf("%d projects selected", selected)
		}

		sel, err := s.SelectedProject(ctx)
		if err != nil {
			rt.Fatalf("SelectedProject: %v", err)
		}
		switch {
		case want == "" && sel != nil:
			rt.Fatalf("selected = %s, want none", sel.ID)
		case want != "" && (sel == nil || sel.ID != want):
			rt.Fatalf("selected = %v, want %s", sel, want)
		}
	})
}

func TestUnparseableStartTimeIsAnError(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()
	mustCreate(t, s, model.Snapshot{StartTime: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC), DurationSeconds: 60})
	if _, err := s.db.ExecContext(ctx, `INSERT INTO tracking (start_time, duration_seconds) VALUES ('yesterday-ish', 60)`); err != nil {
		t.Fatal(err)
	}

	if _, err := s.ListRecords(ctx); err == nil {
		t.Fatal("ListRecords: want error for corrupt start_time")
	}
	if _, err := s.PendingRecords(ctx); err == nil {
		t.Fatal("PendingRecords: want error rather than a zero start time")
	}
}
