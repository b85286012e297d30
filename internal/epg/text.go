// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package epg

import (
	"fmt"
	"io"

	"github.com/ManuGH/epgsnoop/internal/channels"
	"github.com/ManuGH/epgsnoop/internal/program"
)

const textTimeLayout = "2006-01-02 15:04:05 -0700"

// writeText emits the debugging listing: one "<pid> - <xmltvid>" line per
// used channel followed by one "<title> - <start> (<duration>)" line per
// valid program.
func writeText(w io.Writer, catalog *channels.Catalog, programs []*program.Program) (Stats, error) {
	used := make(map[string]bool)
	for _, p := range programs {
		if p.Valid() {
			used[p.Channel.ID] = true
		}
	}

	var stats Stats
	for _, ch := range catalog.All() {
		if !used[ch.ID] {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s - %s\n", ch.ID, ch.XMLTVID); err != nil {
			return stats, err
		}
		stats.Channels++
	}
	for _, p := range programs {
		if !p.Valid() {
			continue
		}
		start, _ := p.Start()
		end, _ := p.End()
		if _, err := fmt.Fprintf(w, "%s - %s (%s)\n", p.Title, start.Format(textTimeLayout), end.Sub(start)); err != nil {
			return stats, err
		}
		stats.Programmes++
	}
	return stats, nil
}
