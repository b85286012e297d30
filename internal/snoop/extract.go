// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package snoop

import (
	"regexp"
	"strings"

	"github.com/ManuGH/epgsnoop/internal/program"
)

var (
	// "Start_time: 0xeb96100000 [= 2024-01-01 10:00:00 (UTC)]"
	decodeRegex = regexp.MustCompile(`\[= (.*?)\]$`)
	// `event_name: "Shortland Street"  -- Charset: ...`
	detailRegex = regexp.MustCompile(`(?:char|name): "(.*?)"  -- Charset`)
)

// Extractor assembles programs from the labelled lines of a packet and
// offers every finalized event to the collector.
type Extractor struct {
	collector *Collector
	events    int
}

// NewExtractor returns an extractor feeding c.
func NewExtractor(c *Collector) *Extractor {
	return &Extractor{collector: c}
}

// Events returns the number of event headers seen so far, duplicates included.
func (e *Extractor) Events() int { return e.events }

// Extract walks one packet and returns how many events the collector
// accepted as new.
func (e *Extractor) Extract(pkt []string) int {
	found := 0
	channel := ""
	var open *program.Program

	finalize := func() {
		if open != nil && e.collector.Accept(open) {
			found++
		}
		open = nil
	}

	for _, line := range pkt {
		if strings.HasPrefix(line, "Service_ID") {
			if id, ok := firstToken(line); ok {
				channel = id
			}
			continue
		}

		if strings.HasPrefix(line, "Event_ID") {
			finalize()
			id, ok := firstToken(line)
			if !ok {
				continue
			}
			open = program.New(channel)
			open.EventID = id
			e.events++
			continue
		}

		if strings.HasPrefix(line, PacketEnd) {
			finalize()
			continue
		}

		if open != nil {
			applyField(open, line)
		}
	}
	return found
}

// applyField writes one labelled line onto p. Prefixes are tried in order
// and the first match wins; unknown or malformed lines are ignored.
func applyField(p *program.Program, line string) {
	switch {
	case strings.HasPrefix(line, "Start_time:"):
		if tok, ok := firstToken(line); ok {
			p.SetStart(tok)
		}
		p.StartInfo = decodedInfo(line)
	case strings.HasPrefix(line, "Duration:"):
		if tok, ok := firstToken(line); ok {
			p.SetDuration(tok)
		}
		p.DurationInfo = decodedInfo(line)
	case strings.HasPrefix(line, "event_name:"):
		p.Title = quotedText(line)
	case strings.HasPrefix(line, "text_char:"):
		p.Description = quotedText(line)
	case strings.HasPrefix(line, "Rating:"):
		if tok, ok := firstToken(line); ok {
			p.RatingNum = tok
		}
		p.RatingInfo = decodedInfo(line)
	case strings.HasPrefix(line, "Country_code:"):
		if v, ok := remainder(line); ok {
			p.Country = v
		}
	case strings.Contains(line, "language_code:"):
		if v, ok := remainder(line); ok {
			p.Language = v
		}
	case strings.HasPrefix(line, "Content_nibble_level_1:"):
		if tok, ok := firstToken(line); ok {
			p.Content1 = tok
		}
	case strings.HasPrefix(line, "Content_nibble_level_2:"):
		if tok, ok := firstToken(line); ok {
			p.Content2 = tok
		}
	case strings.HasPrefix(line, "[= "):
		p.ContentInfo = decodedInfo(line)
	case strings.HasPrefix(line, "User_nibble_1:"):
		if tok, ok := firstToken(line); ok {
			p.User1 = tok
		}
	case strings.HasPrefix(line, "User_nibble_2:"):
		if tok, ok := firstToken(line); ok {
			p.User2 = tok
		}
	}
}

// remainder returns everything after the first ": " separator, with later
// separators collapsed to a single space.
func remainder(line string) (string, bool) {
	parts := strings.Split(line, ": ")
	if len(parts) < 2 {
		return "", false
	}
	v := strings.TrimSpace(strings.Join(parts[1:], " "))
	return v, v != ""
}

// firstToken returns the first whitespace separated word of the value.
func firstToken(line string) (string, bool) {
	v, ok := remainder(line)
	if !ok {
		return "", false
	}
	return strings.Fields(v)[0], true
}

func decodedInfo(line string) string {
	if m := decodeRegex.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func quotedText(line string) string {
	if m := detailRegex.FindStringSubmatch(line); m != nil {
		return m[1]
	}
	return ""
}
