package audioio

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func requireBinary(t *testing.T, name string) {
	t.Helper()
	if _, err := exec.LookPath(name); err != nil {
		t.Skipf("%s not installed", name)
	}
}

func TestCommandSourceReadsUntilEOF(t *testing.T) {
	requireBinary(t, "head")

	cfg := DefaultConfig()
	// 10 buffers of 20ms at 24kHz mono.
	src := NewCommandSource(cfg, []string{"head", "-c", "9600", "/dev/zero"}, nil)
	defer src.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := src.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	samples := 0
	for {
		chunk, err := src.Read(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		samples += len(chunk.Samples)
	}
	if samples != 4800 {
		t.Errorf("read %d samples, want 4800", samples)
	}
}

func TestCommandSourceStartError(t *testing.T) {
	src := NewCommandSource(DefaultConfig(), []string{"definitely-not-a-recorder"}, nil)
	if err := src.Start(context.Background()); err == nil {
		t.Error("expected start error")
	}
	if err := src.Stop(); err != nil {
		t.Errorf("Stop on idle source: %v", err)
	}
}

func TestCommandSinkWriteFlushClear(t *testing.T) {
	requireBinary(t, "cat")

	cfg := DefaultConfig()
	sink := NewCommandSink(cfg, []string{"cat"}, nil)
	defer sink.Close()
	ctx := context.Background()

	chunk := Chunk{Samples: make([]int16, 1200), SampleRate: cfg.SampleRate, Channels: 1}
	if err := sink.Write(ctx, chunk); !errors.Is(err, ErrSinkStopped) {
		t.Errorf("write before Start = %v", err)
	}

	sink.Start(ctx)
	if err := sink.Write(ctx, chunk); err != nil {
		t.Fatalf("Write: %v", err)
	}

	start := time.Now()
	if err := sink.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("Flush returned after %v, want about 50ms", elapsed)
	}

	sink.Write(ctx, chunk)
	sink.Clear()
	start = time.Now()
	sink.Flush(ctx)
	if time.Since(start) > 20*time.Millisecond {
		t.Error("Flush after Clear should not wait")
	}

	if got := sink.Stats().SamplesWritten; got != 2400 {
		t.Errorf("samples written = %d", got)
	}
}

func TestCommandArgs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Device = "plughw:1,0"

	rec, _ := recordArgs(BackendALSA, cfg)
	if got := strings.Join(rec, " "); got != "arecord -q -D plughw:1,0 -f S16_LE -r 24000 -c 1 -t raw" {
		t.Errorf("arecord argv = %q", got)
	}
	play, _ := playArgs(BackendSoX, cfg)
	if play[0] != "play" || play[len(play)-1] != "-" {
		t.Errorf("play argv = %v", play)
	}

	cfg.PlayCommand = []string{"my-player", "--raw"}
	if play, _ := playArgs(BackendALSA, cfg); play[0] != "my-player" {
		t.Errorf("override ignored: %v", play)
	}
	if _, err := recordArgs("jack", DefaultConfig()); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestBytesDuration(t *testing.T) {
	cfg := DefaultConfig()
	if d := cfg.BytesDuration(48000); d != time.Second {
		t.Errorf("duration = %v", d)
	}
}
