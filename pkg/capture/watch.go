package capture

import (
	"time"
)

// silenceWatch is the per-listen deadline. It lives for exactly one Listen
// call and is discarded afterwards.
type silenceWatch struct {
	threshold time.Duration
	timer     *time.Timer
	armed     bool
	activity  bool
}

func newSilenceWatch(threshold time.Duration, arm ArmPolicy) *silenceWatch {
	w := &silenceWatch{threshold: threshold}
	if arm == ArmImmediately {
		w.arm()
	}
	return w
}

func (w *silenceWatch) arm() {
	if w.timer == nil {
		w.timer = time.NewTimer(w.threshold)
	} else {
		w.timer.Reset(w.threshold)
	}
	w.armed = true
}

// touch records speech activity and pushes the deadline out.
func (w *silenceWatch) touch() {
	w.activity = true
	w.arm()
}

// C is nil until the watch is armed, so selecting on it blocks.
func (w *silenceWatch) C() <-chan time.Time {
	if !w.armed {
		return nil
	}
	return w.timer.C
}

func (w *silenceWatch) stop() {
	if w.timer != nil {
		w.timer.Stop()
	}
	w.armed = false
}
