package model

import (
	"fmt"
	"strings"
)

// ModeFilter restricts statistics and the projection to some modes.
// A nil filter admits every run.
type ModeFilter map[Mode]struct{}

// NewModeFilter builds a filter from modes. No modes yields a nil filter.
func NewModeFilter(modes ...Mode) ModeFilter {
	if len(modes) == 0 {
		return nil
	}
	f := make(ModeFilter, len(modes))
	for _, m := range modes {
		f[m] = struct{}{}
	}
	return f
}

// Allows reports whether mode passes the filter.
func (f ModeFilter) Allows(mode Mode) bool {
	if f == nil {
		return true
	}
	_, ok := f[mode]
	return ok
}

// Modes returns the filtered modes in display order.
func (f ModeFilter) Modes() []Mode {
	if f == nil {
		return nil
	}
	out := make([]Mode, 0, len(f))
	for _, m := range Modes {
		if _, ok := f[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

// ParseModes parses a comma-separated list of modes, case-insensitively.
// An empty list yields a nil filter.
func ParseModes(value string) (ModeFilter, error) {
	var modes []Mode
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		mode, ok := parseMode(part)
		if !ok {
			return nil, fmt.Errorf("unknown mode %q", part)
		}
		modes = append(modes, mode)
	}
	return NewModeFilter(modes...), nil
}

func parseMode(value string) (Mode, bool) {
	for _, m := range Modes {
		if strings.EqualFold(string(m), value) {
			return m, true
		}
	}
	return "", false
}

// String renders the filter as ParseModes accepts it.
func (f ModeFilter) String() string {
	modes := f.Modes()
	parts := make([]string, len(modes))
	for i, m := range modes {
		parts[i] = string(m)
	}
	return strings.Join(parts, ",")
}
