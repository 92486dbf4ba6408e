package core

import "fmt"

// TimerMode selects what a timer counts.
type TimerMode uint8

const (
	TimerFrames TimerMode = iota
	TimerSeconds
)

// String returns the string representation of TimerMode.
func (m TimerMode) String() string {
	switch m {
	case TimerFrames:
		return "frames"
	case TimerSeconds:
		return "seconds"
	default:
		return "unknown"
	}
}

// TimerSpec configures a periodic callback. Exactly one field is set.
type TimerSpec struct {
	Frames  int
	Seconds float64
}

// EveryFrames fires every n frames.
func EveryFrames(n int) TimerSpec {
	return TimerSpec{Frames: n}
}

// EverySeconds fires every s seconds of frame time.
func EverySeconds(s float64) TimerSpec {
	return TimerSpec{Seconds: s}
}

func (s TimerSpec) resolve() (TimerMode, float64, error) {
	switch {
	case s.Frames > 0 && s.Seconds == 0:
		return TimerFrames, float64(s.Frames), nil
	case s.Seconds > 0 && s.Frames == 0:
		return TimerSeconds, s.Seconds, nil
	default:
		return 0, 0, fmt.Errorf("%w: frames=%d seconds=%g", ErrTimerMode, s.Frames, s.Seconds)
	}
}

// Timer is a periodic callback owned by one atom. It runs as part of the
// owner's update chain, so it pauses when the owner stops ticking.
type Timer struct {
	mode      TimerMode
	interval  float64
	remaining float64
	fn        func(dt float64)
	stopped   bool
}

// Mode returns what the timer counts.
func (t *Timer) Mode() TimerMode {
	return t.mode
}

// Remaining returns the frames or seconds left before the next fire.
func (t *Timer) Remaining() float64 {
	return t.remaining
}

// Stop prevents further fires. The timer is dropped on the next tick.
func (t *Timer) Stop() {
	t.stopped = true
}

// tick decrements by one frame or by dt and fires at zero. The countdown
// resets to the full interval; missed periods are not caught up.
func (t *Timer) tick(dt float64) {
	if t.mode == TimerFrames {
		t.remaining--
	} else {
		t.remaining -= dt
	}
	if t.remaining <= 0 {
		t.fn(dt)
		t.remaining = t.interval
	}
}

// AddTimer registers a periodic callback on a.
func AddTimer(a Atom, spec TimerSpec, fn func(dt float64)) (*Timer, error) {
	mode, interval, err := spec.resolve()
	if err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("timer callback cannot be nil")
	}
	t := &Timer{mode: mode, interval: interval, remaining: interval, fn: fn}
	n := a.AsNode()
	n.timers = append(n.timers, t)
	return t, nil
}

func (n *Node) tickTimers(dt float64) {
	if len(n.timers) == 0 {
		return
	}
	timers := n.Timers()
	live := timers[:0:0]
	for _, t := range timers {
		if t.stopped {
			continue
		}
		t.tick(dt)
		if !t.stopped {
			live = append(live, t)
		}
	}
	// Timers added by a callback during this tick are kept for the next one.
	if len(n.timers) > len(timers) {
		live = append(live, n.timers[len(timers):]...)
	}
	n.timers = live
}
