// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package validate

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidator_URL(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		wantErr bool
	}{
		{"valid http", "http://example.com/replacements.json", false},
		{"valid https", "https://example.com", false},
		{"empty url", "", true},
		{"no host", "http://", true},
		{"invalid scheme", "ftp://example.com", true},
		{"no scheme", "example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			v.URL("url", tt.value, []string{"http", "https"})
			assert.Equal(t, tt.wantErr, !v.IsValid(), "%v", v.Err())
		})
	}
}

func TestValidator_Numbers(t *testing.T) {
	v := New()
	v.Range("adapter", 3, 0, 15)
	v.Positive("idleThreshold", 1)
	v.NonNegative("lnbOffset", 0)
	assert.True(t, v.IsValid())

	v.Range("adapter", 16, 0, 15)
	v.Positive("idleThreshold", 0)
	v.NonNegative("lnbOffset", -1)
	assert.Len(t, v.Errors(), 3)
}

func TestValidator_Strings(t *testing.T) {
	v := New()
	v.NotEmpty("bin", "dvbsnoop")
	v.OneOf("polarity", "H", []string{"H", "V"})
	v.Regexp("titlePattern", `BBC World( \d{4})?`)
	v.ListenAddr("listen", "127.0.0.1:9750")
	v.ListenAddr("listen", "")
	assert.True(t, v.IsValid(), "%v", v.Err())

	v.NotEmpty("bin", "  ")
	v.OneOf("polarity", "X", []string{"H", "V"})
	v.Regexp("titlePattern", "(")
	v.ListenAddr("listen", "localhost")
	assert.Len(t, v.Errors(), 4)
}

func TestValidator_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "channels.conf")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	v := New()
	v.File("channelsFile", path)
	assert.True(t, v.IsValid())

	v.File("channelsFile", dir)
	v.File("channelsFile", filepath.Join(dir, "missing"))
	v.File("channelsFile", "")
	assert.Len(t, v.Errors(), 3)
}

func TestValidator_ErrJoinsFieldErrors(t *testing.T) {
	v := New()
	assert.NoError(t, v.Err())

	v.AddError("a", "broken", 1)
	v.AddError("b", "also broken", 2)
	err := v.Err()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed for a: broken")
	assert.Contains(t, err.Error(), "validation failed for b: also broken")

	var fe Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "a", fe.Field)
}
