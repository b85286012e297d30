// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package snoop

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/epgsnoop/internal/program"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)

func TestAssembler_DelimitsPackets(t *testing.T) {
	text := "noise before\n" +
		packetText("1001", fixtureEvent{id: "1", start: t0, duration: time.Hour, title: "A"}) +
		"garbage between packets\n" +
		packetText("1002")

	a := NewAssembler(NewStringSource(text))

	first, err := a.NextPacket()
	require.NoError(t, err)
	assert.Contains(t, first[0], PacketStart)
	assert.Contains(t, first[len(first)-1], PacketEnd)
	assert.Contains(t, first, "Event_ID: 1 (0x3039)", "lines are trimmed")

	second, err := a.NextPacket()
	require.NoError(t, err)
	assert.Contains(t, second, "Service_ID: 1002 (0x03e9)")

	_, err = a.NextPacket()
	assert.ErrorIs(t, err, io.EOF)
}

func TestAssembler_PartialPacketAtEOF(t *testing.T) {
	a := NewAssembler(NewStringSource("SECT-Packet: 1\nService_ID: 7 (0x07)\n"))
	pkt, err := a.NextPacket()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"SECT-Packet: 1", "Service_ID: 7 (0x07)"}, pkt)
}

func TestExtractor_AssemblesEvents(t *testing.T) {
	c := NewCollector()
	e := NewExtractor(c)
	pkt := mustPacket(t, packetText("1001",
		fixtureEvent{id: "10", start: t0, duration: 30 * time.Minute, title: "Morning News", desc: "Headlines."},
		fixtureEvent{id: "11", start: t0.Add(30 * time.Minute), duration: 2 * time.Hour, title: "Movie: Heat"},
	))

	found := e.Extract(pkt)
	assert.Equal(t, 2, found)
	assert.Equal(t, 2, e.Events())
	require.Equal(t, 2, c.Len())

	news := c.Programs()[0]
	assert.Equal(t, "1001", news.PID)
	assert.Equal(t, "10", news.EventID)
	assert.Equal(t, "Morning News", news.Title)
	assert.Equal(t, "Headlines.", news.Description)
	assert.Equal(t, "eng", news.Language)
	assert.Equal(t, "1", news.Content1)
	assert.Equal(t, "4", news.Content2)
	assert.Equal(t, "movie/drama (comedy)", news.ContentInfo)
	assert.Equal(t, "0", news.User1)
	assert.Equal(t, "3", news.User2)
	assert.Equal(t, "4", news.RatingNum)
	assert.Equal(t, "minimum age: 7 years", news.RatingInfo)
	assert.Equal(t, "2024-01-01 10:00:00 (UTC)", news.StartInfo)

	start, ok := news.Start()
	require.True(t, ok)
	assert.True(t, t0.Equal(start))
	end, ok := news.End()
	require.True(t, ok)
	assert.True(t, t0.Add(30*time.Minute).Equal(end))

	assert.Equal(t, "Movie: Heat", c.Programs()[1].Title)
}

func TestExtractor_EndToEndDurationAfterStart(t *testing.T) {
	pkt := []string{
		"SECT-Packet: 00000001",
		"Service_ID: 1001 (0x03e9)",
		"Event_ID: 1 (0x0001)",
		"Start_time: 0xEB96100000 [= 2024-01-01 10:00:00 (UTC)]",
		"Duration: 0x0000120000 [= 12:00:00]",
		`event_name: "Marathon"  -- Charset: ISO/IEC 6937`,
		"CRC: 1 (0x01)",
	}
	c := NewCollector()
	require.Equal(t, 1, NewExtractor(c).Extract(pkt))

	p := c.Programs()[0]
	end, ok := p.End()
	require.True(t, ok)
	assert.True(t, time.Date(2024, 1, 1, 22, 0, 0, 0, time.UTC).Equal(end))
}

func TestExtractor_IgnoresLinesOutsideEvents(t *testing.T) {
	pkt := []string{
		"SECT-Packet: 1",
		`event_name: "Orphan"  -- Charset: x`,
		"Service_ID: 5 (0x05)",
		"Start_time: 0xEB96100000 [= x]",
		"CRC: 1",
	}
	c := NewCollector()
	assert.Zero(t, NewExtractor(c).Extract(pkt))
	assert.Zero(t, c.Len())
}

func TestExtractor_MalformedLinesDegradeGracefully(t *testing.T) {
	pkt := []string{
		"SECT-Packet: 1",
		"Service_ID: 5 (0x05)",
		"Event_ID: 9 (0x09)",
		"Start_time:",
		"Duration: 0xZZ [= broken]",
		"event_name: no quotes here",
		"Rating:",
		"Content_nibble_level_1:",
		"Some_unknown_field: 1",
		"CRC: 1",
	}
	c := NewCollector()
	require.NotPanics(t, func() { NewExtractor(c).Extract(pkt) })
	require.Equal(t, 1, c.Len())

	p := c.Programs()[0]
	assert.Empty(t, p.Title)
	_, ok := p.Start()
	assert.False(t, ok)
	_, ok = p.Duration()
	assert.False(t, ok)
	assert.Equal(t, "broken", p.DurationInfo)
	assert.False(t, p.Valid())
}

func TestExtractor_ServiceIDPersistsAcrossEvents(t *testing.T) {
	pkt := []string{
		"SECT-Packet: 1",
		"Service_ID: 5 (0x05)",
		"Event_ID: 1 (0x01)",
		"Event_ID: 2 (0x02)",
		"Service_ID: 6 (0x06)",
		"Event_ID: 3 (0x03)",
		"CRC: 1",
	}
	c := NewCollector()
	assert.Equal(t, 3, NewExtractor(c).Extract(pkt))

	var keys []string
	for _, p := range c.Programs() {
		keys = append(keys, Key(p))
	}
	assert.Equal(t, []string{"5|1", "5|2", "6|3"}, keys)
}

func TestCollector_DeduplicatesByKey(t *testing.T) {
	c := NewCollector()
	a := program.New("1001")
	a.EventID = "42"
	b := program.New("1001")
	b.EventID = "42"
	other := program.New("1002")
	other.EventID = "42"

	assert.True(t, c.Accept(a))
	assert.False(t, c.Accept(b))
	assert.True(t, c.Accept(other))
	assert.Equal(t, 2, c.Len())
	assert.Same(t, a, c.Programs()[0])
}

func TestExtractor_RepeatedPacketFindsNothingNew(t *testing.T) {
	text := packetText("1001", fixtureEvent{id: "1", start: t0, duration: time.Hour, title: "A"})
	c := NewCollector()
	e := NewExtractor(c)
	assert.Equal(t, 1, e.Extract(mustPacket(t, text)))
	assert.Equal(t, 0, e.Extract(mustPacket(t, text)))
	assert.Equal(t, 2, e.Events())
	assert.Equal(t, 1, c.Len())
}

type countingRecorder struct {
	packets int
	maxIdle int
}

func (r *countingRecorder) ObservePacket(int) { r.packets++ }
func (r *countingRecorder) SetIdleStreak(n int) {
	if n > r.maxIdle {
		r.maxIdle = n
	}
}

func TestCapture_TerminatesAtNoveltyPlusThreshold(t *testing.T) {
	for _, tc := range []struct{ k, threshold int }{{0, 5}, {1, 1}, {7, 25}, {40, 3}} {
		t.Run(fmt.Sprintf("k=%d/threshold=%d", tc.k, tc.threshold), func(t *testing.T) {
			src := &generatorSource{next: func(n int) string {
				id := n
				if n > tc.k {
					id = 1 // carousel repeat
				}
				return packetText("1001", fixtureEvent{
					id: fmt.Sprint(id), start: t0.Add(time.Duration(id) * time.Hour), duration: time.Hour, title: "Show",
				})
			}}
			rec := &countingRecorder{}
			c := NewCapture(src, Options{IdleThreshold: tc.threshold, Quiet: true, Recorder: rec})

			programs, err := c.Run(context.Background())
			require.NoError(t, err)

			wantPrograms := tc.k
			if tc.k == 0 {
				wantPrograms = 1 // the first repeated packet is still new
			}
			wantPackets := tc.k + tc.threshold
			if tc.k == 0 {
				wantPackets = 1 + tc.threshold
			}
			assert.Len(t, programs, wantPrograms)
			assert.Equal(t, int64(wantPackets), c.Progress().Packets)
			assert.Equal(t, wantPackets, src.n)
			assert.Equal(t, wantPackets, rec.packets)
			assert.Equal(t, tc.threshold, rec.maxIdle)
			assert.True(t, src.closed.Load(), "source must be closed on completion")
			assert.True(t, c.Progress().Done)
		})
	}
}

func TestCapture_NoEventsEverStillTerminates(t *testing.T) {
	src := &generatorSource{next: func(int) string { return packetText("1001") }}
	c := NewCapture(src, Options{IdleThreshold: 10, Quiet: true})

	programs, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, programs)
	assert.Equal(t, 10, src.n)
	assert.True(t, src.closed.Load())
}

func TestCapture_StopsAtEndOfStream(t *testing.T) {
	text := packetText("1001", fixtureEvent{id: "1", start: t0, duration: time.Hour, title: "A"}) +
		packetText("1001", fixtureEvent{id: "2", start: t0.Add(time.Hour), duration: time.Hour, title: "B"})
	c := NewCapture(NewStringSource(text), Options{IdleThreshold: 100, Quiet: true})

	programs, err := c.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, programs, 2)
	assert.Equal(t, int64(2), c.Progress().Packets)
}

func TestCapture_CancelledContext(t *testing.T) {
	src := &generatorSource{next: func(n int) string {
		return packetText("1001", fixtureEvent{id: fmt.Sprint(n), start: t0, duration: time.Hour, title: "A"})
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewCapture(src, Options{IdleThreshold: 10, Quiet: true})
	_, err := c.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, src.closed.Load())
}

type failingSource struct{ closed atomic.Bool }

func (f *failingSource) ReadLine() (string, error) { return "", errors.New("decoder exited with status 1") }
func (f *failingSource) Close() error              { f.closed.Store(true); return nil }

func TestCapture_SourceErrorIsSurfaced(t *testing.T) {
	src := &failingSource{}
	_, err := NewCapture(src, Options{Quiet: true}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoder exited")
	assert.True(t, src.closed.Load())
}

func TestNewCapture_DefaultThreshold(t *testing.T) {
	c := NewCapture(NewStringSource(""), Options{})
	assert.Equal(t, DefaultIdleThreshold, c.opts.IdleThreshold)
}

func mustPacket(t *testing.T, text string) []string {
	t.Helper()
	pkt, err := NewAssembler(NewStringSource(text)).NextPacket()
	require.NoError(t, err)
	return pkt
}
