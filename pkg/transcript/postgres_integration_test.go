//go:build integration

package transcript_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-interview/pkg/transcript"
)

// TestPostgresStoreIntegration runs against a real database.
// Run with: DATABASE_URL=postgres://... go test -tags=integration ./pkg/transcript/...
func TestPostgresStoreIntegration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := transcript.NewPostgresStore(ctx, dsn, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	sessionID := uuid.NewString()
	defer store.Clear(ctx, sessionID)

	base := time.Date(2025, 3, 14, 9, 26, 53, 589793238, time.UTC)
	var want []transcript.Turn
	for i := 0; i < 5; i++ {
		speaker := transcript.SpeakerSystem
		if i%2 == 1 {
			speaker = transcript.SpeakerHuman
		}
		turn := transcript.Turn{
			Speaker:   speaker,
			Text:      fmt.Sprintf("answer %d", i),
			Timestamp: base.Add(time.Duration(i)*time.Second + time.Duration(i)*7*time.Nanosecond),
		}
		want = append(want, turn)
		if err := store.Append(ctx, sessionID, turn); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	turns, err := store.All(ctx, sessionID)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(turns) != 5 {
		t.Fatalf("want 5 turns, got %d", len(turns))
	}
	for i, turn := range turns {
		if turn.Text != want[i].Text || turn.Speaker != want[i].Speaker || !turn.Timestamp.Equal(want[i].Timestamp) {
			t.Errorf("turn %d = %+v, want %+v", i, turn, want[i])
		}
	}

	fresh := transcript.NewTurn(transcript.SpeakerSystem, "stamped now")
	if err := store.Append(ctx, sessionID, fresh); err != nil {
		t.Fatalf("append: %v", err)
	}
	turns, _ = store.All(ctx, sessionID)
	if last := turns[len(turns)-1]; !last.Timestamp.Equal(fresh.Timestamp) {
		t.Errorf("timestamp = %v, want %v", last.Timestamp, fresh.Timestamp)
	}

	if err := store.Clear(ctx, sessionID); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if turns, _ := store.All(ctx, sessionID); len(turns) != 0 {
		t.Errorf("expected cleared session, got %d turns", len(turns))
	}
}
