// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package decoder

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeDecoder writes an executable shell script standing in for dvbsnoop.
func fakeDecoder(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dvbsnoop")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func readAll(t *testing.T, p *Process) ([]string, error) {
	t.Helper()
	var lines []string
	for {
		line, err := p.ReadLine()
		if err != nil {
			return lines, err
		}
		lines = append(lines, line)
	}
}

func TestArgs(t *testing.T) {
	assert.Equal(t, []string{"-adapter", "1", "-nph", "0x12"}, Options{Adapter: 1}.Args())
	assert.Equal(t, []string{"-adapter", "0", "-n", "2000", "-nph", "0x12"}, Options{Packets: 2000}.Args())
	assert.Equal(t, []string{"-adapter", "0", "-nph", "0x11"}, Options{PID: "0x11"}.Args())
}

func TestReadsLinesUntilCleanExit(t *testing.T) {
	bin := fakeDecoder(t, `echo "SECT-Packet: 1"; echo "  Service_ID: 1001"; echo "CRC: 0x1"`)
	p, err := Start(context.Background(), Options{Bin: bin})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	lines, err := readAll(t, p)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{"SECT-Packet: 1", "  Service_ID: 1001", "CRC: 0x1"}, lines)
}

func TestLatin1Decoding(t *testing.T) {
	// 0xe9 is e-acute in ISO-8859-1
	bin := fakeDecoder(t, `printf 'event_name: "Caf\351"\n'`)

	p, err := Start(context.Background(), Options{Bin: bin})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()
	lines, err := readAll(t, p)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{`event_name: "Café"`}, lines)
}

func TestUTF8Passthrough(t *testing.T) {
	bin := fakeDecoder(t, `printf 'event_name: "Caf\303\251"\n'`)

	p, err := Start(context.Background(), Options{Bin: bin, Charset: CharsetUTF8})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()
	lines, err := readAll(t, p)
	require.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []string{`event_name: "Café"`}, lines)
}

func TestFailureExitSurfacesStderr(t *testing.T) {
	bin := fakeDecoder(t, `echo "Error(16): Device or resource busy" >&2; exit 3`)
	p, err := Start(context.Background(), Options{Bin: bin})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	_, err = readAll(t, p)
	require.ErrorIs(t, err, ErrDecoderExited)
	assert.Contains(t, err.Error(), "Device or resource busy")
	assert.Equal(t, []string{"Error(16): Device or resource busy"}, p.StderrTail())
}

func TestCloseDiscardsPendingOutput(t *testing.T) {
	bin := fakeDecoder(t, `while :; do echo "SECT-Packet"; done`)
	p, err := Start(context.Background(), Options{Bin: bin, Grace: time.Second})
	require.NoError(t, err)

	line, err := p.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "SECT-Packet", line)

	done := make(chan struct{})
	go func() {
		_ = p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}

	_, err = p.ReadLine()
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, p.Close(), "second Close is a no-op")
}

func TestOversizedLineEndsRead(t *testing.T) {
	bin := fakeDecoder(t, `head -c 3000000 /dev/zero | tr '\000' x; echo`)
	p, err := Start(context.Background(), Options{Bin: bin, Grace: time.Second})
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	errc := make(chan error, 1)
	go func() {
		_, err := readAll(t, p)
		errc <- err
	}()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, bufio.ErrTooLong)
	case <-time.After(10 * time.Second):
		t.Fatal("ReadLine did not return after an oversized line")
	}
}

func TestCloseUnblocksPendingRead(t *testing.T) {
	bin := fakeDecoder(t, `sleep 30`)
	p, err := Start(context.Background(), Options{Bin: bin, Grace: time.Second})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		_, err := p.ReadLine()
		errCh <- err
	}()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, p.Close())

	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, ErrDecoderExited), "unexpected %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("ReadLine still blocked after Close")
	}
}

func TestMissingBinary(t *testing.T) {
	_, err := Start(context.Background(), Options{Bin: filepath.Join(t.TempDir(), "nope")})
	assert.ErrorIs(t, err, ErrDecoderUnavailable)
}

func TestStartHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Start(ctx, Options{Bin: "true"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLineRing(t *testing.T) {
	r := newLineRing(3)
	assert.Empty(t, r.Lines())
	for _, l := range []string{"a", "", "b", "c", "d"} {
		r.Add(l)
	}
	assert.Equal(t, []string{"b", "c", "d"}, r.Lines())
}
