// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package snoop

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ManuGH/epgsnoop/internal/program"
)

type fixtureEvent struct {
	id       string
	start    time.Time
	duration time.Duration
	title    string
	desc     string
}

// packetText renders one EIT section the way dvbsnoop prints it.
func packetText(service string, events ...fixtureEvent) string {
	var b strings.Builder
	b.WriteString("------------------------------------------------------------\n")
	b.WriteString("SECT-Packet: 00000001   PID: 18 (0x0012), Length: 431 (0x01af)\n")
	b.WriteString("Time received: Mon  2024-01-01  09:59:58.123\n")
	b.WriteString("PID:  18 (0x0012)  [= assigned for: DVB Event Information Table (EIT)]\n")
	fmt.Fprintf(&b, "Service_ID: %s (0x03e9)\n", service)
	b.WriteString("Version_number: 4 (0x04)\n")
	for _, ev := range events {
		fmt.Fprintf(&b, "    Event_ID: %s (0x3039)\n", ev.id)
		fmt.Fprintf(&b, "    Start_time: %s [= %s (UTC)]\n", program.EncodeDVBTime(ev.start), ev.start.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "    Duration: %s [=  %s (UTC)]\n", program.EncodeDVBDuration(ev.duration), "hh:mm:ss")
		b.WriteString("    Running_status: 0 (0x00)  [= undefined]\n")
		b.WriteString("        DVB-DescriptorTag: 77 (0x4d)  [= short_event_descriptor]\n")
		b.WriteString("          ISO639_2_language_code:  eng\n")
		fmt.Fprintf(&b, "          event_name: \"%s\"  -- Charset: ISO/IEC 6937 [default]\n", ev.title)
		if ev.desc != "" {
			fmt.Fprintf(&b, "          text_char: \"%s\"  -- Charset: ISO/IEC 6937 [default]\n", ev.desc)
		}
		b.WriteString("          Content_nibble_level_1: 1 (0x01)\n")
		b.WriteString("          Content_nibble_level_2: 4 (0x04)\n")
		b.WriteString("             [= movie/drama (comedy)]\n")
		b.WriteString("          User_nibble_1: 0 (0x00)\n")
		b.WriteString("          User_nibble_2: 3 (0x03)\n")
		b.WriteString("          Rating: 4 (0x04)  [= minimum age: 7 years]\n")
	}
	b.WriteString("CRC: 1234567890 (0x499602d2)\n")
	b.WriteString("==========================================================\n")
	return b.String()
}

// generatorSource yields packets from a function until closed.
type generatorSource struct {
	next    func(n int) string
	n       int
	pending []string
	closed  atomic.Bool
}

func (g *generatorSource) ReadLine() (string, error) {
	if g.closed.Load() {
		return "", io.EOF
	}
	for len(g.pending) == 0 {
		g.n++
		g.pending = strings.Split(strings.TrimSuffix(g.next(g.n), "\n"), "\n")
	}
	line := g.pending[0]
	g.pending = g.pending[1:]
	return line, nil
}

func (g *generatorSource) Close() error {
	g.closed.Store(true)
	return nil
}
