// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ManuGH/epgsnoop/internal/log"
)

// Loader merges defaults, an optional YAML file and the environment.
type Loader struct {
	configPath string

	// ConsumedEnvKeys lists every EPGSNOOP_ key read by the last Load.
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty path skips the file layer.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load builds the effective configuration with precedence ENV > file > defaults
// and validates the result.
func (l *Loader) Load() (Config, error) {
	cfg := Default()

	if l.configPath != "" {
		if err := loadFile(l.configPath, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
	}

	env := newEnvReader()
	env.apply(&cfg)
	l.ConsumedEnvKeys = env.consumed

	logger := log.WithComponent("config")
	for _, key := range env.unknownKeys() {
		logger.Warn().Str("key", key).Msg("ignoring unknown environment variable")
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile decodes path over cfg. Unknown keys and multiple documents are rejected.
func loadFile(path string, cfg *Config) error {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config format %q (want .yaml or .yml)", ext)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "not found in type") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("parse yaml: %w", err)
	}

	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("parse yaml: multiple documents are not supported")
		}
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
