package transcript

import (
	"context"
	"testing"
	"time"
)

func TestSweeperClearsExpired(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.Append(ctx, "stale", Turn{Speaker: SpeakerSystem, Text: "old", Timestamp: base.Add(-48 * time.Hour)})
	store.Append(ctx, "busy", Turn{Speaker: SpeakerSystem, Text: "old but live", Timestamp: base.Add(-48 * time.Hour)})
	store.Append(ctx, "fresh", Turn{Speaker: SpeakerSystem, Text: "new", Timestamp: base.Add(-time.Hour)})

	sweeper, err := NewSweeper(store, 24*time.Hour,
		WithClock(func() time.Time { return base }),
		WithInUse(func(id string) bool { return id == "busy" }),
	)
	if err != nil {
		t.Fatalf("new sweeper: %v", err)
	}

	cleared, err := sweeper.Sweep(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(cleared) != 1 || cleared[0] != "stale" {
		t.Errorf("cleared = %v, want [stale]", cleared)
	}

	for _, id := range []string{"busy", "fresh"} {
		if turns, _ := store.All(ctx, id); len(turns) != 1 {
			t.Errorf("%s should be kept", id)
		}
	}
}

func TestSweeperRejectsBadTTL(t *testing.T) {
	if _, err := NewSweeper(testStore(t), 0); err == nil {
		t.Error("expected error for zero ttl")
	}
}

func TestSweeperSchedule(t *testing.T) {
	sweeper, err := NewSweeper(testStore(t), time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := sweeper.Start(context.Background(), "not a cron schedule"); err == nil {
		t.Error("expected error for invalid schedule")
	}

	sweeper, _ = NewSweeper(testStore(t), time.Hour)
	if err := sweeper.Start(context.Background(), "@every 1h"); err != nil {
		t.Fatalf("start: %v", err)
	}
	sweeper.Stop()
	sweeper.Stop()
}
