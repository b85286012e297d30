// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package epg

import (
	"bufio"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/ManuGH/epgsnoop/internal/channels"
	"github.com/ManuGH/epgsnoop/internal/program"
	"github.com/ManuGH/epgsnoop/internal/version"
)

// Output formats.
const (
	FormatXMLTV          = "xmltv"
	FormatXMLTVLegacyIDs = "xmltv_legacy_ids"
	FormatTest           = "test"
)

// Output encodings.
const (
	EncodingUTF8   = "UTF-8"
	EncodingLatin1 = "ISO-8859-1"
)

const (
	xmltvTimeLayout = "20060102150405 -0700"
	generatorURL    = "https://github.com/ManuGH/epgsnoop"
	legacyIDSuffix  = ".dvb.guide"
)

var (
	ErrUnknownFormat   = errors.New("unknown output format")
	ErrUnknownEncoding = errors.New("unknown output encoding")
)

// Formats lists the supported output formats.
func Formats() []string { return []string{FormatXMLTV, FormatXMLTVLegacyIDs, FormatTest} }

// Options control rendering.
type Options struct {
	Format   string
	Encoding string

	ShowIcons   bool
	IconURLBase string

	// Location for programme times; defaults to time.Local.
	Location *time.Location
	// Now stamps the document date; defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = FormatXMLTV
	}
	if o.Encoding == "" {
		o.Encoding = EncodingUTF8
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Stats summarise a rendered guide.
type Stats struct {
	Channels   int
	Programmes int
}

// Render writes the guide for the valid programs in the chosen format.
// Channels appear in catalog order and only when at least one valid
// program refers to them.
func Render(w io.Writer, catalog *channels.Catalog, programs []*program.Program, opts Options) (Stats, error) {
	opts = opts.withDefaults()

	out, flush, err := encoder(w, opts.Encoding)
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	switch opts.Format {
	case FormatXMLTV, FormatXMLTVLegacyIDs:
		tv := Build(catalog, programs, opts)
		stats = Stats{Channels: len(tv.Channels), Programmes: len(tv.Programmes)}
		err = writeXMLTV(out, tv, opts.Encoding)
	case FormatTest:
		stats, err = writeText(out, catalog, programs)
	default:
		return Stats{}, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
	if err != nil {
		return stats, err
	}
	return stats, flush()
}

func encoder(w io.Writer, enc string) (io.Writer, func() error, error) {
	switch strings.ToUpper(enc) {
	case EncodingUTF8, "UTF8":
		bw := bufio.NewWriter(w)
		return bw, bw.Flush, nil
	case EncodingLatin1, "LATIN1":
		// characters outside Latin-1 become numeric character references
		ew := encoding.HTMLEscapeUnsupported(charmap.ISO8859_1.NewEncoder()).Writer(w)
		bw := bufio.NewWriter(ew)
		return bw, bw.Flush, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, enc)
	}
}

// Build assembles the XMLTV document.
func Build(catalog *channels.Catalog, programs []*program.Program, opts Options) TV {
	opts = opts.withDefaults()
	legacy := opts.Format == FormatXMLTVLegacyIDs

	used := make(map[string]bool)
	var progs []Programme
	for _, p := range programs {
		if !p.Valid() {
			continue
		}
		used[p.Channel.ID] = true
		progs = append(progs, programme(p, channelRef(p.Channel, legacy), opts.Location))
	}

	var chans []Channel
	for _, ch := range catalog.All() {
		if !used[ch.ID] {
			continue
		}
		c := Channel{ID: channelRef(ch, legacy), DisplayName: ch.Name, URL: ch.URL}
		if ch.Icon != "" && opts.ShowIcons && opts.IconURLBase != "" {
			c.Icon = &Icon{Src: opts.IconURLBase + ch.Icon}
		}
		chans = append(chans, c)
	}

	return TV{
		Generator:    "epgsnoop/" + version.Version,
		GeneratorURL: generatorURL,
		Date:         opts.Now().Format(xmltvTimeLayout),
		Channels:     chans,
		Programmes:   progs,
	}
}

func channelRef(ch *channels.Channel, legacy bool) string {
	if legacy || ch.XMLTVID == "" {
		return ch.ID + legacyIDSuffix
	}
	return ch.XMLTVID
}

func programme(p *program.Program, channel string, loc *time.Location) Programme {
	start, _ := p.Start()
	end, _ := p.End()
	out := Programme{
		Start:    start.In(loc).Format(xmltvTimeLayout),
		Stop:     end.In(loc).Format(xmltvTimeLayout),
		Channel:  channel,
		Title:    Title{Lang: p.Language, Text: p.Title},
		SubTitle: p.Subtitle,
		Desc:     p.Description,
		Date:     p.Year,
		Country:  p.Country,
	}
	if len(p.Actors) > 0 || p.Director != "" {
		out.Credits = &Credits{Director: p.Director, Actors: p.Actors}
	}
	for _, c := range []string{p.CategoryType, p.CategoryName} {
		if c != "" {
			out.Categories = append(out.Categories, c)
		}
	}
	if p.Video {
		v := &Video{Present: "yes", Aspect: p.Aspect}
		if p.HD {
			v.Quality = "HDTV"
		}
		out.Video = v
	}
	if p.Rating != "" {
		value := p.Rating
		if p.RatingAdvisory != "" {
			value += " " + p.RatingAdvisory
		}
		out.Rating = &Rating{System: p.RatingSystem, Value: value}
	}
	return out
}

func writeXMLTV(w io.Writer, tv TV, enc string) error {
	header := fmt.Sprintf("<?xml version=\"1.0\" encoding=\"%s\"?>\n<!DOCTYPE tv SYSTEM \"xmltv.dtd\">\n", strings.ToUpper(normalizedEncoding(enc)))
	if _, err := io.WriteString(w, header); err != nil {
		return fmt.Errorf("write XMLTV header: %w", err)
	}
	e := xml.NewEncoder(w)
	e.Indent("", "\t")
	if err := e.Encode(tv); err != nil {
		return fmt.Errorf("encode XMLTV: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("write XMLTV: %w", err)
	}
	return nil
}

func normalizedEncoding(enc string) string {
	switch strings.ToUpper(enc) {
	case EncodingLatin1, "LATIN1":
		return EncodingLatin1
	default:
		return EncodingUTF8
	}
}
