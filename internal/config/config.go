// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads the epgsnoop run configuration.
//
// Precedence is ENV > file > defaults. The YAML file is decoded strictly:
// unknown keys are rejected instead of silently ignored.
package config

import (
	"slices"
	"time"

	"github.com/ManuGH/epgsnoop/internal/decoder"
	"github.com/ManuGH/epgsnoop/internal/epg"
	"github.com/ManuGH/epgsnoop/internal/processor"
)

// Config is the complete run configuration.
type Config struct {
	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	Adapter   int `yaml:"adapter"`
	LNBOffset int `yaml:"lnbOffset"` // MHz

	Transponder Transponder `yaml:"transponder"`
	Tuner       Tuner       `yaml:"tuner"`
	Decoder     Decoder     `yaml:"decoder"`
	Capture     Capture     `yaml:"capture"`

	ChannelsFile string `yaml:"channelsFile"`
	Output       Output `yaml:"output"`
	XMLTV        XMLTV  `yaml:"xmltv"`

	// Processors run in the listed order.
	Processors         []string           `yaml:"processors"`
	CategoryDB         CategoryDB         `yaml:"categoryDb"`
	SearchReplaceTitle SearchReplaceTitle `yaml:"searchReplaceTitle"`
	ChannelMerge       ChannelMerge       `yaml:"channelMerge"`

	Status  Status  `yaml:"status"`
	Metrics Metrics `yaml:"metrics"`
}

type Transponder struct {
	Frequency  int    `yaml:"frequency"` // MHz
	Polarity   string `yaml:"polarity"`  // H or V
	SymbolRate int    `yaml:"symbolRate"`
}

type Tuner struct {
	Bin          string        `yaml:"bin"`
	Settle       time.Duration `yaml:"settle"`
	Flush        bool          `yaml:"flush"`
	FlushPackets int           `yaml:"flushPackets"`
}

type Decoder struct {
	Bin     string `yaml:"bin"`
	PID     string `yaml:"pid"`
	Charset string `yaml:"charset"`
}

type Capture struct {
	// IdleThreshold is the number of consecutive packets without a new
	// event after which the capture is considered complete.
	IdleThreshold int `yaml:"idleThreshold"`
}

type Output struct {
	Path     string `yaml:"path"` // "-" for stdout
	Format   string `yaml:"format"`
	Encoding string `yaml:"encoding"`
}

type XMLTV struct {
	ShowIcons   bool   `yaml:"showIcons"`
	IconURLBase string `yaml:"iconURLBase"`
}

type CategoryDB struct {
	Database string `yaml:"database"`
}

type SearchReplaceTitle struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type ChannelMerge struct {
	Host         string `yaml:"host"`
	Guest        string `yaml:"guest"`
	TitlePattern string `yaml:"titlePattern"`
}

type Status struct {
	Listen string `yaml:"listen"` // empty disables the status server
}

type Metrics struct {
	Textfile string `yaml:"textfile"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "console",
		Adapter:   0,
		LNBOffset: 10600,
		Transponder: Transponder{
			Polarity: "H",
		},
		Tuner: Tuner{
			Bin:          "dvbtune",
			Settle:       500 * time.Millisecond,
			Flush:        true,
			FlushPackets: 2000,
		},
		Decoder: Decoder{
			Bin:     decoder.DefaultBin,
			PID:     decoder.DefaultPID,
			Charset: decoder.CharsetLatin1,
		},
		Capture:      Capture{IdleThreshold: 2500},
		ChannelsFile: "/etc/epgsnoop/channels.conf",
		Output: Output{
			Path:     "-",
			Format:   epg.FormatXMLTV,
			Encoding: epg.EncodingUTF8,
		},
		XMLTV: XMLTV{ShowIcons: true},
		Processors:         slices.Clone(processor.DefaultOrder),
		SearchReplaceTitle: SearchReplaceTitle{Timeout: 10 * time.Second},
	}
}
