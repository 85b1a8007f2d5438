package model

import (
	"encoding/json"
	"time"
)

// Timer accumulates active time across the cluster legs of a run.
type Timer struct {
	elapsed   time.Duration
	legStart  time.Time
	isRunning bool
}

// Start begins a new leg. Starting a running timer is a no-op.
func (t *Timer) Start(now time.Time) {
	if t.isRunning {
		return
	}
	t.legStart = now
	t.isRunning = true
}

// Resume continues timing after a pause.
func (t *Timer) Resume(now time.Time) {
	t.Start(now)
}

// Stop closes the current leg and adds it to the accumulated time.
func (t *Timer) Stop(now time.Time) {
	if !t.isRunning {
		return
	}
	if d := now.Sub(t.legStart); d > 0 {
		t.elapsed += d
	}
	t.isRunning = false
	t.legStart = time.Time{}
}

// Running reports whether a leg is open.
func (t *Timer) Running() bool {
	return t.isRunning
}

// Elapsed returns the accumulated time including an open leg up to now.
func (t *Timer) Elapsed(now time.Time) time.Duration {
	if !t.isRunning {
		return t.elapsed
	}
	if d := now.Sub(t.legStart); d > 0 {
		return t.elapsed + d
	}
	return t.elapsed
}

type timerJSON struct {
	ElapsedSeconds float64    `json:"elapsed_seconds"`
	LegStart       *time.Time `json:"leg_start,omitempty"`
}

// MarshalJSON stores the accumulated seconds and an open leg, if any.
func (t Timer) MarshalJSON() ([]byte, error) {
	out := timerJSON{ElapsedSeconds: t.elapsed.Seconds()}
	if t.isRunning {
		start := t.legStart
		out.LegStart = &start
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a timer written by MarshalJSON.
func (t *Timer) UnmarshalJSON(data []byte) error {
	var in timerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	t.elapsed = time.Duration(in.ElapsedSeconds * float64(time.Second))
	t.isRunning = in.LegStart != nil
	t.legStart = time.Time{}
	if in.LegStart != nil {
		t.legStart = *in.LegStart
	}
	return nil
}

// RestoreTimer rebuilds a stopped timer from accumulated seconds.
func RestoreTimer(elapsedSeconds float64) Timer {
	return Timer{elapsed: time.Duration(elapsedSeconds * float64(time.Second))}
}
