// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package channels

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `# CHANNEL_ID|XMLTVID|NAME|ICON|WEBSITE|CHANNEL_NUMBER
# comment row
1001|tv1.sky.co.nz|TV ONE|tv1.png|http://tvnz.co.nz|1
1002|tv2.sky.co.nz|TV2

1003|bbc-world.sky.co.nz|BBC World|||88
1004|prime.sky.co.nz|Prime|prime.png||notanumber
`

func TestParse(t *testing.T) {
	cat, err := Parse(strings.NewReader(sampleCatalog))
	require.NoError(t, err)
	assert.Equal(t, 4, cat.Len())

	tv1, ok := cat.Lookup("1001")
	require.True(t, ok)
	want := &Channel{ID: "1001", XMLTVID: "tv1.sky.co.nz", Name: "TV ONE", Icon: "tv1.png", URL: "http://tvnz.co.nz", Number: 1}
	if diff := cmp.Diff(want, tv1); diff != "" {
		t.Fatalf("channel mismatch (-want +got):\n%s", diff)
	}

	tv2, ok := cat.Lookup("1002")
	require.True(t, ok)
	assert.Equal(t, "TV2", tv2.Name)
	assert.Empty(t, tv2.Icon)
	assert.Zero(t, tv2.Number)

	bbc, _ := cat.Lookup("1003")
	assert.Equal(t, 88, bbc.Number)
	assert.Empty(t, bbc.URL)

	prime, _ := cat.Lookup("1004")
	assert.Zero(t, prime.Number, "unparseable channel numbers are ignored")

	_, ok = cat.Lookup("9999")
	assert.False(t, ok)
}

func TestParse_OutdatedHeader(t *testing.T) {
	_, err := Parse(strings.NewReader("# CHANNEL_ID|XMLTVID|NAME|ICON|WEBSITE\n1|a|b\n"))
	require.ErrorIs(t, err, ErrOutdatedCatalog)
}

func TestCatalog_AllOrdersByNumber(t *testing.T) {
	cat, err := Parse(strings.NewReader(sampleCatalog))
	require.NoError(t, err)

	var ids []string
	for _, ch := range cat.All() {
		ids = append(ids, ch.ID)
	}
	assert.Equal(t, []string{"1001", "1003", "1002", "1004"}, ids)
}

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "channels.conf")
	require.NoError(t, os.WriteFile(p, []byte(sampleCatalog), 0o600))

	cat, err := LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, 4, cat.Len())

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.conf"))
	require.Error(t, err)
}

func TestNilCatalog(t *testing.T) {
	var cat *Catalog
	_, ok := cat.Lookup("1")
	assert.False(t, ok)
	assert.Zero(t, cat.Len())
	assert.Nil(t, cat.All())
}
