// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package processor

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ManuGH/epgsnoop/internal/log"
	"github.com/ManuGH/epgsnoop/internal/program"
)

// DefaultMergeTitlePattern matches the relay slots of the historical
// BBC World on TV1 arrangement.
const DefaultMergeTitlePattern = `BBC World( \d{4})?`

// ChannelMerge replaces relay slots on a host channel with the guest
// channel's programs that air strictly inside the slot. The slot is deleted
// and the guest programs are inserted as copies pointing at the host
// channel; both changes are applied after the pass.
type ChannelMerge struct {
	host, guest string
	title       *regexp.Regexp

	slots []*program.Program
}

// NewChannelMerge is inactive unless both host and guest XMLTV ids are set.
func NewChannelMerge(_ context.Context, cfg Config) Outcome {
	const name = "channel_merge"
	if cfg.MergeHost == "" || cfg.MergeGuest == "" {
		return Inactive(name, "channelMerge.host and channelMerge.guest not configured")
	}
	pattern := cfg.MergeTitlePattern
	if pattern == "" {
		pattern = DefaultMergeTitlePattern
	}
	re, err := regexp.Compile(`^(?:` + pattern + `)`)
	if err != nil {
		return Inactive(name, fmt.Sprintf("titlePattern: %v", err))
	}
	return Active(&ChannelMerge{host: cfg.MergeHost, guest: cfg.MergeGuest, title: re})
}

func (*ChannelMerge) Name() string { return "channel_merge" }

func (m *ChannelMerge) Process(p *program.Program) {
	if p.Channel.XMLTVID == m.host && m.title.MatchString(p.Title) {
		m.slots = append(m.slots, p)
	}
}

func (m *ChannelMerge) Finish(programs []*program.Program, batch *Batch) {
	slots := m.slots
	m.slots = nil

	for _, slot := range slots {
		slotStart, _ := slot.Start()
		slotEnd, _ := slot.End()
		for _, op := range programs {
			if !op.Valid() || op.Channel.XMLTVID != m.guest {
				continue
			}
			start, _ := op.Start()
			end, _ := op.End()
			if start.After(slotStart) && end.Before(slotEnd) {
				np := op.Clone()
				np.Channel = slot.Channel
				batch.Insert(np)
			}
		}
		logger := log.WithComponent("processor")
		logger.Debug().
			Str(log.FieldProcessor, m.Name()).
			Str(log.FieldTitle, slot.Title).
			Time("start", slotStart).
			Msg("removing relay slot")
		batch.Delete(slot)
	}
}
