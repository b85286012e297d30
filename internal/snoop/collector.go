// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package snoop

import "github.com/ManuGH/epgsnoop/internal/program"

// Collector keeps the accepted programs in arrival order and rejects events
// already seen on the same service.
type Collector struct {
	seen     map[string]struct{}
	programs []*program.Program
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{seen: make(map[string]struct{})}
}

// Key is the dedup key of a program: service id and decoder event id.
func Key(p *program.Program) string {
	return p.PID + "|" + p.EventID
}

// Accept stores p unless its key was seen before. It reports whether p was new.
func (c *Collector) Accept(p *program.Program) bool {
	key := Key(p)
	if _, dup := c.seen[key]; dup {
		return false
	}
	c.seen[key] = struct{}{}
	c.programs = append(c.programs, p)
	return true
}

// Programs returns the accepted programs in arrival order.
func (c *Collector) Programs() []*program.Program { return c.programs }

// Len returns the number of accepted programs.
func (c *Collector) Len() int { return len(c.programs) }
