// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package processor enriches captured programs with a sequence of
// independent transforms.
//
// Each processor visits every valid program in turn. Processors that need
// to add or remove programs do so through a Batch that is applied once the
// pass is over, so the collection never changes under an iteration.
package processor

import (
	"github.com/ManuGH/epgsnoop/internal/program"
)

// Processor transforms one valid program in place.
type Processor interface {
	Name() string
	Process(p *program.Program)
}

// Finisher is implemented by processors with an end-of-pass hook. programs
// holds the collection as it was during the pass; structural changes go
// through batch only.
type Finisher interface {
	Finish(programs []*program.Program, batch *Batch)
}

// Outcome is the result of constructing a processor: either an active
// processor or an inactive marker explaining why it was skipped.
type Outcome struct {
	name   string
	proc   Processor
	reason string
}

// Active wraps a usable processor.
func Active(p Processor) Outcome {
	return Outcome{name: p.Name(), proc: p}
}

// Inactive records a processor that deactivated itself at construction.
func Inactive(name, reason string) Outcome {
	return Outcome{name: name, reason: reason}
}

func (o Outcome) Name() string { return o.name }

// Processor returns the active processor, or false for an inactive outcome.
func (o Outcome) Processor() (Processor, bool) { return o.proc, o.proc != nil }

// Reason explains an inactive outcome.
func (o Outcome) Reason() string { return o.reason }

// Batch queues structural changes to the program collection.
type Batch struct {
	inserts []*program.Program
	deletes []*program.Program
}

func (b *Batch) Insert(p *program.Program) { b.inserts = append(b.inserts, p) }

func (b *Batch) Delete(p *program.Program) { b.deletes = append(b.deletes, p) }

func (b *Batch) Inserts() int { return len(b.inserts) }

func (b *Batch) Deletes() int { return len(b.deletes) }

// Apply returns programs with the queued deletions removed and the queued
// insertions appended, both in queue order. Deleting a program that is not
// part of the collection is a no-op. The batch is empty afterwards.
func (b *Batch) Apply(programs []*program.Program) []*program.Program {
	if len(b.deletes) == 0 && len(b.inserts) == 0 {
		return programs
	}

	drop := make(map[*program.Program]struct{}, len(b.deletes))
	for _, p := range b.deletes {
		drop[p] = struct{}{}
	}

	out := make([]*program.Program, 0, len(programs)+len(b.inserts))
	for _, p := range programs {
		if _, ok := drop[p]; ok {
			continue
		}
		out = append(out, p)
	}
	out = append(out, b.inserts...)

	b.inserts, b.deletes = nil, nil
	return out
}
