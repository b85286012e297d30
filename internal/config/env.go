// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/epgsnoop/internal/log"
)

// EnvPrefix is shared by every environment override.
const EnvPrefix = "EPGSNOOP_"

// Environment keys.
const (
	EnvLogLevel             = EnvPrefix + "LOG_LEVEL"
	EnvLogFormat            = EnvPrefix + "LOG_FORMAT"
	EnvAdapter              = EnvPrefix + "ADAPTER"
	EnvLNBOffset            = EnvPrefix + "LNB_OFFSET"
	EnvFrequency            = EnvPrefix + "FREQUENCY"
	EnvPolarity             = EnvPrefix + "POLARITY"
	EnvSymbolRate           = EnvPrefix + "SYMBOL_RATE"
	EnvTunerBin             = EnvPrefix + "TUNER_BIN"
	EnvTunerSettle          = EnvPrefix + "TUNER_SETTLE"
	EnvTunerFlush           = EnvPrefix + "TUNER_FLUSH"
	EnvFlushPackets         = EnvPrefix + "FLUSH_PACKETS"
	EnvDecoderBin           = EnvPrefix + "DECODER_BIN"
	EnvDecoderPID           = EnvPrefix + "DECODER_PID"
	EnvDecoderCharset       = EnvPrefix + "DECODER_CHARSET"
	EnvIdleThreshold        = EnvPrefix + "IDLE_THRESHOLD"
	EnvChannelsFile         = EnvPrefix + "CHANNELS_FILE"
	EnvOutputPath           = EnvPrefix + "OUTPUT_PATH"
	EnvOutputFormat         = EnvPrefix + "OUTPUT_FORMAT"
	EnvOutputEncoding       = EnvPrefix + "OUTPUT_ENCODING"
	EnvShowIcons            = EnvPrefix + "XMLTV_SHOW_ICONS"
	EnvIconURLBase          = EnvPrefix + "XMLTV_ICON_URL_BASE"
	EnvProcessors           = EnvPrefix + "PROCESSORS"
	EnvCategoryDB           = EnvPrefix + "CATEGORY_DB"
	EnvSearchReplaceURL     = EnvPrefix + "SEARCH_REPLACE_URL"
	EnvSearchReplaceTimeout = EnvPrefix + "SEARCH_REPLACE_TIMEOUT"
	EnvMergeHost            = EnvPrefix + "MERGE_HOST"
	EnvMergeGuest           = EnvPrefix + "MERGE_GUEST"
	EnvMergeTitlePattern    = EnvPrefix + "MERGE_TITLE_PATTERN"
	EnvStatusListen         = EnvPrefix + "STATUS_LISTEN"
	EnvMetricsTextfile      = EnvPrefix + "METRICS_TEXTFILE"
)

// envReader reads overrides and remembers which keys it looked at.
type envReader struct {
	logger   zerolog.Logger
	consumed map[string]struct{}
}

func newEnvReader() *envReader {
	return &envReader{
		logger:   log.WithComponent("config"),
		consumed: make(map[string]struct{}),
	}
}

// lookup returns a non-empty value; empty variables count as unset.
func (e *envReader) lookup(key string) (string, bool) {
	e.consumed[key] = struct{}{}
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *envReader) used(key, value string) {
	e.logger.Debug().
		Str("key", key).
		Str("value", value).
		Str("source", "environment").
		Msg("using environment variable")
}

func (e *envReader) invalid(key, value, kind string) {
	e.logger.Warn().
		Str("key", key).
		Str("value", value).
		Msgf("invalid %s in environment variable, keeping configured value", kind)
}

func (e *envReader) String(key string, dst *string) {
	if v, ok := e.lookup(key); ok {
		e.used(key, v)
		*dst = v
	}
}

func (e *envReader) Int(key string, dst *int) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.invalid(key, v, "integer")
		return
	}
	e.used(key, v)
	*dst = i
}

func (e *envReader) Bool(key string, dst *bool) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		e.invalid(key, v, "boolean")
		return
	}
	e.used(key, v)
	*dst = b
}

func (e *envReader) Duration(key string, dst *time.Duration) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.invalid(key, v, "duration")
		return
	}
	e.used(key, v)
	*dst = d
}

// List splits a comma separated value, dropping empty items.
func (e *envReader) List(key string, dst *[]string) {
	v, ok := e.lookup(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	e.used(key, v)
	*dst = out
}

func (e *envReader) apply(cfg *Config) {
	e.String(EnvLogLevel, &cfg.LogLevel)
	e.String(EnvLogFormat, &cfg.LogFormat)
	e.Int(EnvAdapter, &cfg.Adapter)
	e.Int(EnvLNBOffset, &cfg.LNBOffset)

	e.Int(EnvFrequency, &cfg.Transponder.Frequency)
	e.String(EnvPolarity, &cfg.Transponder.Polarity)
	e.Int(EnvSymbolRate, &cfg.Transponder.SymbolRate)

	e.String(EnvTunerBin, &cfg.Tuner.Bin)
	e.Duration(EnvTunerSettle, &cfg.Tuner.Settle)
	e.Bool(EnvTunerFlush, &cfg.Tuner.Flush)
	e.Int(EnvFlushPackets, &cfg.Tuner.FlushPackets)

	e.String(EnvDecoderBin, &cfg.Decoder.Bin)
	e.String(EnvDecoderPID, &cfg.Decoder.PID)
	e.String(EnvDecoderCharset, &cfg.Decoder.Charset)

	e.Int(EnvIdleThreshold, &cfg.Capture.IdleThreshold)
	e.String(EnvChannelsFile, &cfg.ChannelsFile)

	e.String(EnvOutputPath, &cfg.Output.Path)
	e.String(EnvOutputFormat, &cfg.Output.Format)
	e.String(EnvOutputEncoding, &cfg.Output.Encoding)
	e.Bool(EnvShowIcons, &cfg.XMLTV.ShowIcons)
	e.String(EnvIconURLBase, &cfg.XMLTV.IconURLBase)

	e.List(EnvProcessors, &cfg.Processors)
	e.String(EnvCategoryDB, &cfg.CategoryDB.Database)
	e.String(EnvSearchReplaceURL, &cfg.SearchReplaceTitle.URL)
	e.Duration(EnvSearchReplaceTimeout, &cfg.SearchReplaceTitle.Timeout)
	e.String(EnvMergeHost, &cfg.ChannelMerge.Host)
	e.String(EnvMergeGuest, &cfg.ChannelMerge.Guest)
	e.String(EnvMergeTitlePattern, &cfg.ChannelMerge.TitlePattern)

	e.String(EnvStatusListen, &cfg.Status.Listen)
	e.String(EnvMetricsTextfile, &cfg.Metrics.Textfile)
}

// unknownKeys reports EPGSNOOP_ variables that no override reads.
func (e *envReader) unknownKeys() []string {
	var unknown []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := e.consumed[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	return unknown
}
