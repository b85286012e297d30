// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package channels loads the channel catalog that maps DVB service IDs to
// XMLTV channel metadata.
package channels

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/ManuGH/epgsnoop/internal/log"
)

// CatalogHeader must appear in every catalog file. Older layouts without the
// channel number column are rejected.
const CatalogHeader = "# CHANNEL_ID|XMLTVID|NAME|ICON|WEBSITE|CHANNEL_NUMBER"

// ErrOutdatedCatalog is returned when the catalog lacks CatalogHeader.
var ErrOutdatedCatalog = errors.New("channel catalog appears to be out of date")

// Channel describes one DVB service as it should appear in the guide.
type Channel struct {
	ID      string // DVB service id as printed by the decoder
	XMLTVID string
	Name    string
	Icon    string
	URL     string
	Number  int
}

// Catalog is a read-only lookup of channels by service id.
type Catalog struct {
	byID  map[string]*Channel
	order []string
}

// Lookup returns the channel for a service id.
func (c *Catalog) Lookup(id string) (*Channel, bool) {
	if c == nil {
		return nil, false
	}
	ch, ok := c.byID[id]
	return ch, ok
}

// Len returns the number of channels in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byID)
}

// All returns channels ordered by channel number, then by file order.
func (c *Catalog) All() []*Channel {
	if c == nil {
		return nil
	}
	out := make([]*Channel, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Number, out[j].Number
		if a == 0 || b == 0 {
			return a != 0 && b == 0
		}
		return a < b
	})
	return out
}

// LoadFile reads a catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	path = filepath.Clean(path)
	// #nosec G304 -- catalog path is provided by the operator via config
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open channel catalog: %w", err)
	}
	defer func() { _ = f.Close() }()

	cat, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("channel catalog %s: %w", path, err)
	}
	logger := log.WithComponent("channels")
	logger.Info().
		Str(log.FieldEvent, "channels.loaded").
		Str(log.FieldPath, path).
		Int("channels", cat.Len()).
		Msg("loaded channel catalog")
	return cat, nil
}

// Parse reads pipe-delimited rows: id|xmltvid|name|icon|website|number.
// Trailing columns may be omitted. Lines starting with # are comments.
func Parse(r io.Reader) (*Catalog, error) {
	cat := &Catalog{byID: make(map[string]*Channel)}
	headerSeen := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == CatalogHeader {
			headerSeen = true
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "|")
		ch := &Channel{ID: strings.TrimSpace(fields[0])}
		if ch.ID == "" {
			continue
		}
		if len(fields) > 1 {
			ch.XMLTVID = strings.TrimSpace(fields[1])
		}
		if len(fields) > 2 {
			ch.Name = strings.TrimSpace(fields[2])
		}
		if len(fields) > 3 {
			ch.Icon = strings.TrimSpace(fields[3])
		}
		if len(fields) > 4 {
			ch.URL = strings.TrimSpace(fields[4])
		}
		if len(fields) > 5 {
			if n, err := strconv.Atoi(strings.TrimSpace(fields[5])); err == nil {
				ch.Number = n
			}
		}

		if _, dup := cat.byID[ch.ID]; !dup {
			cat.order = append(cat.order, ch.ID)
		}
		cat.byID[ch.ID] = ch
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read channel catalog: %w", err)
	}
	if !headerSeen {
		return nil, ErrOutdatedCatalog
	}
	return cat, nil
}
