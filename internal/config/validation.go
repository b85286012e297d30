// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ManuGH/epgsnoop/internal/decoder"
	"github.com/ManuGH/epgsnoop/internal/epg"
	"github.com/ManuGH/epgsnoop/internal/processor"
	"github.com/ManuGH/epgsnoop/internal/validate"
)

// Validate checks cfg and returns every problem at once.
func Validate(cfg Config) error {
	v := validate.New()

	v.OneOf("logLevel", strings.ToLower(cfg.LogLevel),
		[]string{"trace", "debug", "info", "warn", "error", "disabled"})
	v.OneOf("logFormat", strings.ToLower(cfg.LogFormat), []string{"json", "console"})

	v.NonNegative("adapter", cfg.Adapter)
	v.NonNegative("lnbOffset", cfg.LNBOffset)

	// Frequency 0 means the adapter is already tuned.
	if cfg.Transponder.Frequency != 0 {
		v.Positive("transponder.symbolRate", cfg.Transponder.SymbolRate)
		v.OneOf("transponder.polarity", strings.ToUpper(cfg.Transponder.Polarity), []string{"H", "V"})
		if cfg.Transponder.Frequency < cfg.LNBOffset {
			v.AddError("transponder.frequency",
				fmt.Sprintf("frequency must not be below lnbOffset %d", cfg.LNBOffset),
				cfg.Transponder.Frequency)
		}
		v.NotEmpty("tuner.bin", cfg.Tuner.Bin)
	}
	if cfg.Tuner.Settle < 0 {
		v.AddError("tuner.settle", "duration cannot be negative", cfg.Tuner.Settle)
	}
	if cfg.Tuner.Flush {
		v.Positive("tuner.flushPackets", cfg.Tuner.FlushPackets)
	}

	v.NotEmpty("decoder.bin", cfg.Decoder.Bin)
	if _, err := strconv.ParseUint(cfg.Decoder.PID, 0, 16); err != nil {
		v.AddError("decoder.pid", "pid must be a number, for example 0x12", cfg.Decoder.PID)
	}
	v.OneOf("decoder.charset", strings.ToLower(cfg.Decoder.Charset),
		[]string{decoder.CharsetLatin1, decoder.CharsetUTF8})

	v.Positive("capture.idleThreshold", cfg.Capture.IdleThreshold)

	v.NotEmpty("channelsFile", cfg.ChannelsFile)
	v.NotEmpty("output.path", cfg.Output.Path)
	v.OneOf("output.format", cfg.Output.Format, epg.Formats())
	v.OneOf("output.encoding", strings.ToUpper(cfg.Output.Encoding),
		[]string{epg.EncodingUTF8, epg.EncodingLatin1})
	if cfg.XMLTV.IconURLBase != "" {
		v.URL("xmltv.iconURLBase", cfg.XMLTV.IconURLBase, []string{"http", "https"})
	}

	seen := make(map[string]bool, len(cfg.Processors))
	for i, name := range cfg.Processors {
		field := fmt.Sprintf("processors[%d]", i)
		if !processor.Known(name) {
			v.AddError(field, "unknown processor, valid: "+strings.Join(processor.Names(), ", "), name)
			continue
		}
		if seen[name] {
			v.AddError(field, "processor listed twice", name)
		}
		seen[name] = true
	}

	if cfg.SearchReplaceTitle.URL != "" {
		v.URL("searchReplaceTitle.url", cfg.SearchReplaceTitle.URL, []string{"http", "https"})
	}
	if cfg.SearchReplaceTitle.Timeout < 0 {
		v.AddError("searchReplaceTitle.timeout", "duration cannot be negative", cfg.SearchReplaceTitle.Timeout)
	}
	v.Regexp("channelMerge.titlePattern", cfg.ChannelMerge.TitlePattern)
	if (cfg.ChannelMerge.Host == "") != (cfg.ChannelMerge.Guest == "") {
		v.AddError("channelMerge", "host and guest must be set together",
			cfg.ChannelMerge.Host+"/"+cfg.ChannelMerge.Guest)
	}

	v.ListenAddr("status.listen", cfg.Status.Listen)

	if err := v.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
