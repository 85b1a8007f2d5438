package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/verte-zerg/dungeonlog/internal/model"
	"github.com/verte-zerg/dungeonlog/internal/store"
)

const replayLog = `{"type":"map_transition","at":"2024-05-01T12:00:00Z","map_type":"RandomDungeon","map_guid":"00000000-0000-0000-0000-000000000001","map_index":"A"}
{"type":"value_gained","at":"2024-05-01T12:05:00Z","amount":1500,"kind":"Fame"}
not an event
{"type":"map_transition","at":"2024-05-01T12:10:00Z","map_type":"Unknown","map_guid":null}
`

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	return dir
}

func TestLoadSettingsPrecedence(t *testing.T) {
	dir := isolate(t)
	cfgPath := filepath.Join(dir, "config", "dungeonlog", "config.toml")
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	content := "[tracker]\nplayer = \"file\"\nretention = 50\nmodes = \"solo\"\n\n[storage]\nbackend = \"sqlite\"\n"
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("DUNGEONLOG_PLAYER", "env")

	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--retention", "7"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	s, err := loadSettings(cmd)
	if err != nil {
		t.Fatalf("load settings: %v", err)
	}
	if s.player != "env" {
		t.Fatalf("env should override file, got player %q", s.player)
	}
	if s.retention != 7 {
		t.Fatalf("flag should override file, got retention %d", s.retention)
	}
	if !s.filter.Allows(model.ModeSolo) || s.filter.Allows(model.ModeHellGate) {
		t.Fatalf("unexpected filter %v", s.filter)
	}
	want := filepath.Join(dir, "data", "dungeonlog", "runs.db")
	if s.backend != store.BackendSQLite || s.path != want {
		t.Fatalf("unexpected storage %s %s", s.backend, s.path)
	}
	if s.addr != defaultAddr {
		t.Fatalf("unexpected addr %q", s.addr)
	}
}

func TestValidateSettings(t *testing.T) {
	base := settings{retention: 1, backend: store.BackendJSON, addr: defaultAddr}
	if err := validateSettings(base); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bad := base
	bad.retention = 0
	if err := validateSettings(bad); err == nil || !strings.Contains(err.Error(), "--retention") {
		t.Fatalf("expected retention error, got %v", err)
	}
	bad = base
	bad.backend = "csv"
	if err := validateSettings(bad); err == nil || !strings.Contains(err.Error(), "--backend") {
		t.Fatalf("expected backend error, got %v", err)
	}
}

func TestConfirm(t *testing.T) {
	var out bytes.Buffer
	ok, err := confirm(strings.NewReader("Y\n"), &out, "sure? ")
	if err != nil || !ok {
		t.Fatalf("expected yes, got %v %v", ok, err)
	}
	if out.String() != "sure? " {
		t.Fatalf("unexpected prompt %q", out.String())
	}
	ok, err = confirm(strings.NewReader(""), &out, "sure? ")
	if err != nil || ok {
		t.Fatalf("empty answer should be no, got %v %v", ok, err)
	}
}

func TestReplaySaveThenRemove(t *testing.T) {
	dir := isolate(t)
	logPath := filepath.Join(dir, "events.jsonl")
	if err := os.WriteFile(logPath, []byte(replayLog), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"replay", logPath, "--save"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !containsAll(out.String(), []string{"Last 24h", "Runs: 1", "Fame: 1,500"}) {
		t.Fatalf("unexpected replay output:\n%s", out.String())
	}

	repo, err := store.NewFileStore(filepath.Join(dir, "data", "dungeonlog", "runs.json"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	runs, err := repo.Load(context.Background())
	if err != nil || len(runs) != 1 {
		t.Fatalf("expected 1 saved run, got %d (%v)", len(runs), err)
	}

	out.Reset()
	cmd = newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"remove", runs[0].Hash, "--yes"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if !strings.Contains(out.String(), runs[0].Hash) {
		t.Fatalf("removed run should be listed:\n%s", out.String())
	}
	runs, err = repo.Load(context.Background())
	if err != nil || len(runs) != 0 {
		t.Fatalf("expected empty history, got %d (%v)", len(runs), err)
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
