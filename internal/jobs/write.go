// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package jobs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/epgsnoop/internal/log"
)

// StdoutPath selects standard output instead of a file.
const StdoutPath = "-"

// writeGuide hands render a writer for path. Files are replaced atomically:
// a failed render leaves any previous guide untouched.
func writeGuide(ctx context.Context, path string, stdout io.Writer, render func(io.Writer) error) error {
	logger := log.FromContext(ctx)

	if path == StdoutPath {
		bw := bufio.NewWriter(stdout)
		if err := render(bw); err != nil {
			return err
		}
		return bw.Flush()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending guide file: %w", err)
	}
	defer func() {
		// no-op once the file has been committed
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Str(log.FieldPath, path).Msg("cleanup pending guide file")
		}
	}()

	bw := bufio.NewWriter(pendingFile)
	if err := render(bw); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write guide data: %w", err)
	}

	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace guide file: %w", err)
	}
	return nil
}
