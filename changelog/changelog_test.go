package changelog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ipamtools/bamsync/metrics"
	"github.com/ipamtools/bamsync/model"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "changelog.db"), metrics.New(false))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func report(runID string, started time.Time) model.RunReport {
	return model.RunReport{
		RunID:    runID,
		Started:  started,
		Finished: started.Add(2 * time.Second),
		Results: []model.RowResult{
			{Line: 2, Name: "lab-dhcp", ObjectType: model.TypeDHCPRole, Outcome: model.OutcomeApplied},
		},
	}
}

func TestRecordAndRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	if err := store.Record(ctx, report("run-a", now)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.Record(ctx, report("run-b", now.Add(time.Minute))); err != nil {
		t.Fatalf("record: %v", err)
	}

	runs, err := store.Runs(ctx)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}

	byID := map[string]model.RunReport{}
	for _, run := range runs {
		byID[run.RunID] = run
	}
	got, ok := byID["run-a"]
	if !ok {
		t.Fatal("run-a not persisted")
	}
	if len(got.Results) != 1 || got.Results[0].Name != "lab-dhcp" {
		t.Errorf("run-a results not round-tripped: %+v", got.Results)
	}
	if !got.Started.Equal(now) {
		t.Errorf("started = %v, want %v", got.Started, now)
	}
}

func TestRecordOverwritesSameRunID(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := report("run-a", now)
	if err := store.Record(ctx, first); err != nil {
		t.Fatalf("record: %v", err)
	}
	second := first
	second.Results = append(second.Results, model.RowResult{Line: 3, Name: "lab-dns", Outcome: model.OutcomeFailed, Reason: "status=500"})
	if err := store.Record(ctx, second); err != nil {
		t.Fatalf("record: %v", err)
	}

	runs, err := store.Runs(ctx)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run after overwrite, got %d", len(runs))
	}
	if len(runs[0].Results) != 2 {
		t.Errorf("expected the overwritten report, got %d results", len(runs[0].Results))
	}
}

func TestLastRunPicksLatestStart(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i, id := range []string{"run-old", "run-new", "run-mid"} {
		offsets := []time.Duration{-2 * time.Hour, 0, -time.Hour}
		if err := store.Record(ctx, report(id, now.Add(offsets[i]))); err != nil {
			t.Fatalf("record %s: %v", id, err)
		}
	}

	last, found, err := store.LastRun(ctx)
	if err != nil {
		t.Fatalf("last run: %v", err)
	}
	if !found {
		t.Fatal("expected a last run")
	}
	if last.RunID != "run-new" {
		t.Errorf("last run = %s, want run-new", last.RunID)
	}
}

func TestLastRunEmptyStore(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.LastRun(context.Background())
	if err != nil {
		t.Fatalf("last run: %v", err)
	}
	if found {
		t.Error("empty store reported a last run")
	}
}
