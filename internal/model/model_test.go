package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestTimerAccumulatesLegs(t *testing.T) {
	var timer Timer
	timer.Start(t0)
	timer.Start(t0.Add(time.Minute))
	timer.Stop(t0.Add(10 * time.Minute))
	timer.Stop(t0.Add(20 * time.Minute))
	timer.Resume(t0.Add(30 * time.Minute))

	if got := timer.Elapsed(t0.Add(35 * time.Minute)); got != 15*time.Minute {
		t.Fatalf("expected 15m, got %v", got)
	}
	timer.Stop(t0.Add(40 * time.Minute))
	if got := timer.Elapsed(t0.Add(time.Hour)); got != 20*time.Minute {
		t.Fatalf("expected 20m, got %v", got)
	}
}

func TestTimerJSONKeepsOpenLeg(t *testing.T) {
	var timer Timer
	timer.Start(t0)
	data, err := json.Marshal(timer)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Timer
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.Running() || back.Elapsed(t0.Add(time.Minute)) != time.Minute {
		t.Fatalf("open leg lost: %s", data)
	}
}

func TestPerHourZeroElapsed(t *testing.T) {
	if got := PerHour(100, 0); got != 0 {
		t.Fatalf("expected 0, got %v", got)
	}
	if got := PerHour(100, 30*time.Minute); got != 200 {
		t.Fatalf("expected 200, got %v", got)
	}
	prev := PerHour(100, time.Second)
	for d := 2 * time.Second; d < 3*time.Hour; d += 7 * time.Minute {
		got := PerHour(100, d)
		if got > prev {
			t.Fatalf("per-hour grew with elapsed time at %v: %v > %v", d, got, prev)
		}
		prev = got
	}
}

func TestRunHashDependsOnGuidAndTime(t *testing.T) {
	g := uuid.MustParse("8a2b3c4d-0000-4000-8000-000000000001")
	a := RunHash(g, t0)
	if a != RunHash(g, t0) {
		t.Fatalf("hash must be stable")
	}
	if a == RunHash(g, t0.Add(time.Nanosecond)) {
		t.Fatalf("hash must depend on enter time")
	}
	if a == RunHash(uuid.New(), t0) {
		t.Fatalf("hash must depend on guid")
	}
}

func TestFinishIsFinal(t *testing.T) {
	run := NewRun("A", uuid.New(), t0)
	run.Finish(t0.Add(time.Minute))
	run.Finish(t0.Add(time.Hour))
	if run.Status != StatusDone || !run.EndTime.Equal(t0.Add(time.Minute)) {
		t.Fatalf("second finish should be a no-op: %v", run.EndTime)
	}
	if run.Timer.Elapsed(t0.Add(time.Hour)) != time.Minute {
		t.Fatalf("timer should be stopped")
	}
}

func TestAddIgnoresNonPositive(t *testing.T) {
	run := NewRun("A", uuid.New(), t0)
	run.Add(-5, ValueFame, CityUnknown)
	run.Add(0, ValueSilver, CityUnknown)
	run.Add(7, ValueFactionCoins, CityBridgewatch)
	if run.Rewards.Fame != 0 || run.Rewards.Silver != 0 || run.Rewards.FactionCoins != 7 {
		t.Fatalf("unexpected rewards: %+v", run.Rewards)
	}
	if run.CityFaction != CityBridgewatch {
		t.Fatalf("expected city faction to be set, got %s", run.CityFaction)
	}
}

func TestCloneIsDeep(t *testing.T) {
	run := NewRun("A", uuid.New(), t0)
	run.EventObjects = []EventObject{{ID: 1}}
	run.Death = &DeathInfo{DiedName: "me"}
	clone := run.Clone()
	clone.GuidList[0] = uuid.Nil
	clone.EventObjects[0].ID = 2
	clone.Death.DiedName = "other"
	if run.GuidList[0] == uuid.Nil || run.EventObjects[0].ID != 1 || run.Death.DiedName != "me" {
		t.Fatalf("clone shares state with the original")
	}
}

func TestParseModes(t *testing.T) {
	f, err := ParseModes("hellgate, Expedition,")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !f.Allows(ModeHellGate) || !f.Allows(ModeExpedition) || f.Allows(ModeSolo) {
		t.Fatalf("unexpected filter %v", f)
	}
	if f.String() != "HellGate,Expedition" {
		t.Fatalf("unexpected string %q", f.String())
	}
	if _, err := ParseModes("raid"); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
	empty, err := ParseModes("")
	if err != nil || empty != nil || !empty.Allows(ModeSolo) {
		t.Fatalf("empty list should allow everything")
	}
}
