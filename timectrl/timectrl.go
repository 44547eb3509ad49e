package timectrl

import (
	"context"
	"sync"
	"time"
)

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still stepping by Tick.
	Accelerated
)

func (m Mode) String() string {
	if m == Accelerated {
		return "accelerated"
	}
	return "realtime"
}

// ParseMode maps "realtime"/"accelerated" (case-sensitive, as used by flags
// and env) to a Mode. Unknown values fall back to RealTime and report false.
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "realtime", "real", "":
		return RealTime, true
	case "accelerated", "fast":
		return Accelerated, true
	default:
		return RealTime, false
	}
}

type timer struct {
	at time.Time
	ch chan time.Time
}

// TimeController drives simulation time and notifies registered listeners.
type TimeController struct {
	mu        sync.RWMutex
	StartTime time.Time
	Tick      time.Duration
	Mode      Mode

	// currentTime tracks the current simulation time. It is updated
	// as the controller advances time.
	currentTime time.Time

	// resume is non-nil while paused and closed on Resume.
	resume chan struct{}
	stop   context.CancelFunc

	timers    []timer
	listeners []func(time.Time)
}

// NewTimeController constructs a controller.
func NewTimeController(start time.Time, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		StartTime:   start,
		Tick:        tick,
		Mode:        mode,
		currentTime: start,
	}
}

// After returns a channel that will receive the current simulation time
// after the duration d has elapsed in simulation time. Timers fire as the
// clock advances, before that tick's listeners run. Non-positive durations
// fire immediately.
func (tc *TimeController) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)

	tc.mu.Lock()
	defer tc.mu.Unlock()
	if d <= 0 {
		ch <- tc.currentTime
		return ch
	}
	tc.timers = append(tc.timers, timer{at: tc.currentTime.Add(d), ch: ch})
	return ch
}

// AddListener registers a callback invoked on every tick.
func (tc *TimeController) AddListener(fn func(time.Time)) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.listeners = append(tc.listeners, fn)
}

// Pause stops time from advancing until Resume is called.
func (tc *TimeController) Pause() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.resume == nil {
		tc.resume = make(chan struct{})
	}
}

// Resume continues a paused controller.
func (tc *TimeController) Resume() {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.resume != nil {
		close(tc.resume)
		tc.resume = nil
	}
}

// Paused reports whether the controller is paused.
func (tc *TimeController) Paused() bool {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.resume != nil
}

// Stop ends a running Start loop. It is safe to call from a listener.
func (tc *TimeController) Stop() {
	tc.mu.RLock()
	stop := tc.stop
	tc.mu.RUnlock()
	if stop != nil {
		stop()
	}
}

// Start runs the controller for the specified duration (0 means until Stop
// or ctx is done) in a separate goroutine. It returns a channel that is
// closed when the controller finishes.
func (tc *TimeController) Start(ctx context.Context, duration time.Duration) <-chan struct{} {
	ctx, cancel := context.WithCancel(ctx)

	tc.mu.Lock()
	tc.stop = cancel
	simTime := tc.StartTime
	tc.currentTime = simTime
	tc.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()

		var tick <-chan time.Time
		if tc.Mode == RealTime {
			ticker := time.NewTicker(tc.Tick)
			defer ticker.Stop()
			tick = ticker.C
		}

		elapsed := time.Duration(0)
		for {
			if duration > 0 && elapsed >= duration {
				return
			}
			if !tc.waitWhilePaused(ctx) {
				return
			}

			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-tick:
				}
			} else if ctx.Err() != nil {
				return
			}
			// A pause may have landed while waiting for the ticker.
			if tc.Paused() {
				continue
			}

			simTime = simTime.Add(tc.Tick)
			elapsed += tc.Tick
			tc.advance(simTime)

			tc.mu.RLock()
			listeners := append([]func(time.Time){}, tc.listeners...)
			tc.mu.RUnlock()
			for _, fn := range listeners {
				fn(simTime)
			}
		}
	}()
	return done
}

// waitWhilePaused blocks while paused; it reports false if ctx ended first.
func (tc *TimeController) waitWhilePaused(ctx context.Context) bool {
	for {
		tc.mu.RLock()
		resume := tc.resume
		tc.mu.RUnlock()
		if resume == nil {
			return ctx.Err() == nil
		}
		select {
		case <-ctx.Done():
			return false
		case <-resume:
		}
	}
}

func (tc *TimeController) advance(t time.Time) {
	tc.mu.Lock()
	tc.currentTime = t
	var due []timer
	pending := tc.timers[:0]
	for _, tm := range tc.timers {
		if !tm.at.After(t) {
			due = append(due, tm)
		} else {
			pending = append(pending, tm)
		}
	}
	tc.timers = pending
	tc.mu.Unlock()

	for _, tm := range due {
		tm.ch <- t
	}
}
