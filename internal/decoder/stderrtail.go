// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package decoder

import (
	"strings"
	"sync"
)

// lineRing keeps the last lines written to it, for diagnostics when the
// decoder exits unexpectedly.
type lineRing struct {
	mu    sync.Mutex
	lines []string
	head  int
	full  bool
}

func newLineRing(capacity int) *lineRing {
	if capacity < 1 {
		capacity = 20
	}
	return &lineRing{lines: make([]string, capacity)}
}

func (r *lineRing) Add(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.head] = line
	r.head = (r.head + 1) % len(r.lines)
	if r.head == 0 {
		r.full = true
	}
}

// Lines returns the retained lines oldest first.
func (r *lineRing) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.full {
		return append([]string(nil), r.lines[:r.head]...)
	}
	out := make([]string, 0, len(r.lines))
	out = append(out, r.lines[r.head:]...)
	return append(out, r.lines[:r.head]...)
}
