package capture

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func final(delay time.Duration, text string) TimedFragment {
	return TimedFragment{Delay: delay, Fragment: Fragment{Text: text, Final: true}}
}

func interim(delay time.Duration, text string) TimedFragment {
	return TimedFragment{Delay: delay, Fragment: Fragment{Text: text}}
}

func TestListenSpeechOnStreamEnd(t *testing.T) {
	rec := &MockRecognizer{Fragments: []TimedFragment{
		interim(0, "I have"),
		final(0, "I have five years"),
		final(0, "of Go experience"),
	}}
	l := NewListener(rec)

	res, err := l.Listen(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if res.Kind != KindSpeech || res.Text != "I have five years of Go experience" {
		t.Errorf("Listen() = %+v", res)
	}
}

func TestListenSilenceOnEmptyStream(t *testing.T) {
	l := NewListener(&MockRecognizer{})

	res, err := l.Listen(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if res.Kind != KindSilence {
		t.Errorf("Kind = %v, want silence", res.Kind)
	}
}

func TestListenInterimPromotedOnStreamEnd(t *testing.T) {
	rec := &MockRecognizer{Fragments: []TimedFragment{interim(0, "um, maybe")}}
	l := NewListener(rec)

	res, _ := l.Listen(context.Background(), time.Second)
	if res.Kind != KindSpeech || res.Text != "um, maybe" {
		t.Errorf("Listen() = %+v, want promoted interim text", res)
	}
}

func TestListenBlankFragmentsAreNotSpeech(t *testing.T) {
	rec := &MockRecognizer{Fragments: []TimedFragment{final(0, "   "), interim(0, "")}}
	l := NewListener(rec)

	res, _ := l.Listen(context.Background(), time.Second)
	if res.Kind != KindSilence {
		t.Errorf("Listen() = %+v, want silence", res)
	}
}

func TestListenSilenceDeadline(t *testing.T) {
	l := NewListener(&MockRecognizer{Hold: true})

	start := time.Now()
	res, err := l.Listen(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if res.Kind != KindSilence {
		t.Errorf("Kind = %v, want silence", res.Kind)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("settled after %v, before the threshold", elapsed)
	}
}

func TestListenDeadlineAfterSpeech(t *testing.T) {
	rec := &MockRecognizer{Hold: true, Fragments: []TimedFragment{final(10*time.Millisecond, "done talking")}}
	l := NewListener(rec)

	res, err := l.Listen(context.Background(), 60*time.Millisecond)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if res.Kind != KindSpeech || res.Text != "done talking" {
		t.Errorf("Listen() = %+v", res)
	}
}

func TestListenFragmentsResetDeadline(t *testing.T) {
	rec := &MockRecognizer{Hold: true, Fragments: []TimedFragment{
		interim(60*time.Millisecond, "so"),
		interim(60*time.Millisecond, "so the"),
		interim(60*time.Millisecond, "so the answer"),
		final(60*time.Millisecond, "so the answer is channels"),
	}}
	l := NewListener(rec)

	res, err := l.Listen(context.Background(), 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if res.Text != "so the answer is channels" {
		t.Errorf("Listen() = %+v, settled before the final fragment", res)
	}
}

func TestListenArmOnActivity(t *testing.T) {
	l := NewListener(&MockRecognizer{Hold: true}, WithArmPolicy(ArmOnActivity))

	done := make(chan error, 1)
	go func() {
		_, err := l.Listen(context.Background(), 20*time.Millisecond)
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("listen settled without activity: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	l.Stop()
	select {
	case err := <-done:
		if !errors.Is(err, ErrStopped) {
			t.Errorf("Listen() error = %v, want ErrStopped", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not abort the listen")
	}
}

func TestListenArmOnActivityArmsAfterSpeech(t *testing.T) {
	rec := &MockRecognizer{Hold: true, Fragments: []TimedFragment{final(30*time.Millisecond, "hello")}}
	l := NewListener(rec, WithArmPolicy(ArmOnActivity))

	res, err := l.Listen(context.Background(), 30*time.Millisecond)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if res.Kind != KindSpeech {
		t.Errorf("Kind = %v, want speech", res.Kind)
	}
}

func TestListenRecognizerErrors(t *testing.T) {
	boom := errors.New("microphone unplugged")

	t.Run("start", func(t *testing.T) {
		l := NewListener(&MockRecognizer{StartErr: boom})
		_, err := l.Listen(context.Background(), time.Second)

		var capErr *CaptureError
		if !errors.As(err, &capErr) || capErr.Op != "start" || !errors.Is(err, boom) {
			t.Errorf("Listen() error = %v", err)
		}
	})

	t.Run("stream", func(t *testing.T) {
		rec := &MockRecognizer{Hold: true, Fragments: []TimedFragment{
			final(0, "partial answer"),
			{Fragment: Fragment{Err: boom}},
		}}
		l := NewListener(rec)
		_, err := l.Listen(context.Background(), time.Second)

		var capErr *CaptureError
		if !errors.As(err, &capErr) || capErr.Op != "recognize" {
			t.Errorf("Listen() error = %v", err)
		}
	})

	t.Run("no recognizer", func(t *testing.T) {
		_, err := NewListener(nil).Listen(context.Background(), time.Second)
		if !errors.Is(err, ErrNoRecognizer) {
			t.Errorf("Listen() error = %v", err)
		}
	})
}

func TestListenConcurrent(t *testing.T) {
	l := NewListener(&MockRecognizer{Hold: true})

	done := make(chan struct{})
	go func() {
		defer close(done)
		l.Listen(context.Background(), 200*time.Millisecond)
	}()

	deadline := time.Now().Add(time.Second)
	for !l.Listening() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if _, err := l.Listen(context.Background(), time.Second); !errors.Is(err, ErrConcurrentListen) {
		t.Errorf("second Listen() error = %v, want ErrConcurrentListen", err)
	}
	<-done

	if l.Listening() {
		t.Error("listener should be idle after settling")
	}
}

func TestListenContextCancel(t *testing.T) {
	l := NewListener(&MockRecognizer{Hold: true})
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := l.Listen(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("Listen() error = %v, want context.Canceled", err)
	}
}

func TestStopIdle(t *testing.T) {
	l := NewListener(&MockRecognizer{})
	l.Stop()
	l.Stop()
}

func TestWatchDoesNotLeakAcrossListens(t *testing.T) {
	rec := &MockRecognizer{Fragments: []TimedFragment{final(0, "first")}}
	l := NewListener(rec)

	if res, _ := l.Listen(context.Background(), time.Second); res.Text != "first" {
		t.Fatalf("first listen = %+v", res)
	}

	rec.Fragments = nil
	res, _ := l.Listen(context.Background(), time.Second)
	if res.Kind != KindSilence {
		t.Errorf("second listen = %+v, text leaked from previous attempt", res)
	}
}

// TestListenSingleResolution drives the listener with randomized fragment
// timing and checks every attempt settles exactly once with a coherent result.
func TestListenSingleResolution(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	words := []string{"", "  ", "yes", "I think", "goroutines", "and channels"}

	for i := 0; i < 150; i++ {
		var frags []TimedFragment
		spoken := false
		for n := rng.Intn(6); n > 0; n-- {
			text := words[rng.Intn(len(words))]
			if text != "" && text != "  " {
				spoken = true
			}
			frags = append(frags, TimedFragment{
				Delay:    time.Duration(rng.Intn(8)) * time.Millisecond,
				Fragment: Fragment{Text: text, Final: rng.Intn(2) == 0},
			})
		}
		withErr := rng.Intn(10) == 0
		if withErr {
			frags = append(frags, TimedFragment{Fragment: Fragment{Err: errors.New("glitch")}})
		}

		arm := ArmImmediately
		if rng.Intn(3) == 0 {
			arm = ArmOnActivity
		}
		rec := &MockRecognizer{Fragments: frags, Hold: rng.Intn(2) == 0 && arm == ArmImmediately}
		l := NewListener(rec, WithArmPolicy(arm))
		threshold := time.Duration(5+rng.Intn(20)) * time.Millisecond

		outcomes := make(chan error, 2)
		var res Result
		go func() {
			r, err := l.Listen(context.Background(), threshold)
			res = r
			outcomes <- err
		}()

		var err error
		select {
		case err = <-outcomes:
		case <-time.After(2 * time.Second):
			t.Fatalf("run %d: listen never settled", i)
		}
		select {
		case <-outcomes:
			t.Fatalf("run %d: listen settled twice", i)
		case <-time.After(time.Millisecond):
		}

		if err != nil {
			var capErr *CaptureError
			if !withErr || !errors.As(err, &capErr) {
				t.Fatalf("run %d: unexpected error %v", i, err)
			}
			continue
		}
		switch res.Kind {
		case KindSpeech:
			if res.Text == "" || !spoken {
				t.Fatalf("run %d: speech result %+v with spoken=%v", i, res, spoken)
			}
		case KindSilence:
			if res.Text != "" {
				t.Fatalf("run %d: silence carried text %q", i, res.Text)
			}
		default:
			t.Fatalf("run %d: unknown kind %v", i, res.Kind)
		}
		if l.Listening() {
			t.Fatalf("run %d: listener still active", i)
		}
	}
}

func TestListenActivityHoldsDeadline(t *testing.T) {
	voice := TimedFragment{Delay: 60 * time.Millisecond, Fragment: Fragment{Activity: true}}
	rec := &MockRecognizer{Hold: true, Fragments: []TimedFragment{
		voice, voice, voice,
		final(60*time.Millisecond, "long thought"),
	}}
	l := NewListener(rec)

	res, err := l.Listen(context.Background(), 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	if res.Kind != KindSpeech || res.Text != "long thought" {
		t.Errorf("Listen() = %+v, want text after voice activity", res)
	}
}
