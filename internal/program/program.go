// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package program models one guide event reconstructed from decoder output.
package program

import (
	"time"

	"github.com/ManuGH/epgsnoop/internal/channels"
	"github.com/ManuGH/epgsnoop/internal/log"
)

// Validity field names reported by Missing.
const (
	FieldTitle   = "title"
	FieldStart   = "start"
	FieldEnd     = "end"
	FieldChannel = "channel"
)

// Program is a mutable guide event. Start, duration and end are kept
// private so the end-time derivation cannot be bypassed.
type Program struct {
	PID     string // DVB service id the event was announced on
	EventID string // decoder event id, unique per PID within a run

	Title       string
	Subtitle    string
	Description string
	Language    string
	Country     string
	Channel     *channels.Channel

	StartInfo    string // decoder's human readable rendering of the start token
	DurationInfo string

	Content1    string // content nibble level 1
	Content2    string // content nibble level 2
	ContentInfo string
	User1       string
	User2       string

	RatingNum      string
	RatingInfo     string
	Rating         string
	RatingSystem   string
	RatingAdvisory string

	CategoryType string
	CategoryName string

	Actors   []string
	Director string
	Year     string

	Video  bool
	HD     bool
	Aspect string

	start    time.Time
	duration time.Duration
	end      time.Time

	hasStart    bool
	hasDuration bool
	hasEnd      bool
}

// New returns an empty program announced on the given service id.
func New(pid string) *Program {
	return &Program{PID: pid}
}

// SetStart decodes a raw DVB start token. Decode failures leave start unset.
func (p *Program) SetStart(raw string) {
	v, err := DecodeDVBTime(raw)
	// a zero MJD is elapsed time, not an instant
	if err == nil && v.IsDuration {
		err = ErrMalformedDVBTime
	}
	if err != nil {
		p.logDecodeFailure(FieldStart, raw, err)
		return
	}
	p.SetStartTime(v.Time)
}

// SetDuration decodes a raw DVB duration token. Decode failures leave duration unset.
func (p *Program) SetDuration(raw string) {
	v, err := DecodeDVBTime(raw)
	if err == nil && !v.IsDuration {
		err = ErrMalformedDVBTime
	}
	if err != nil {
		p.logDecodeFailure("duration", raw, err)
		return
	}
	p.SetDurationValue(v.Duration)
}

// SetStartTime sets an already decoded start instant.
func (p *Program) SetStartTime(t time.Time) {
	p.start = t.UTC()
	p.hasStart = true
	p.recomputeEnd()
}

// SetDurationValue sets an already decoded duration.
func (p *Program) SetDurationValue(d time.Duration) {
	p.duration = d
	p.hasDuration = true
	p.recomputeEnd()
}

// recomputeEnd derives end once both start and duration are known, so the
// arrival order of the two fields never changes the result.
func (p *Program) recomputeEnd() {
	if p.hasStart && p.hasDuration {
		p.end = p.start.Add(p.duration)
		p.hasEnd = true
	}
}

// Start returns the decoded start instant.
func (p *Program) Start() (time.Time, bool) { return p.start, p.hasStart }

// Duration returns the decoded duration.
func (p *Program) Duration() (time.Duration, bool) { return p.duration, p.hasDuration }

// End returns the derived end instant.
func (p *Program) End() (time.Time, bool) { return p.end, p.hasEnd }

// Valid reports whether the program can be processed and rendered.
func (p *Program) Valid() bool {
	return p.Title != "" && p.hasStart && p.hasEnd && p.Channel != nil
}

// Missing lists the validity fields that are absent.
func (p *Program) Missing() []string {
	var out []string
	if p.Title == "" {
		out = append(out, FieldTitle)
	}
	if !p.hasStart {
		out = append(out, FieldStart)
	}
	if !p.hasEnd {
		out = append(out, FieldEnd)
	}
	if p.Channel == nil {
		out = append(out, FieldChannel)
	}
	return out
}

// Clone returns a deep copy. The channel reference is shared, not copied.
func (p *Program) Clone() *Program {
	cp := *p
	if p.Actors != nil {
		cp.Actors = append([]string(nil), p.Actors...)
	}
	return &cp
}

func (p *Program) String() string {
	if p.Title != "" {
		return "Program: " + p.Title
	}
	return "Program instance"
}

func (p *Program) logDecodeFailure(field, raw string, err error) {
	logger := log.WithComponent("program")
	logger.Debug().
		Err(err).
		Str(log.FieldEvent, "program.decode_failed").
		Str(log.FieldPID, p.PID).
		Str("field", field).
		Str("raw", raw).
		Msg("could not decode time field")
}
