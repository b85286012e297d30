// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package sqlite

import (
	"context"
	"fmt"
	"strings"
)

// VerifyIntegrity runs PRAGMA quick_check (or integrity_check when full is
// set) on a read-only connection. It returns the diagnostic rows when the
// database is damaged and nil when it is healthy.
func VerifyIntegrity(ctx context.Context, path string, full bool) ([]string, error) {
	cfg := DefaultConfig()
	cfg.ReadOnly = true
	db, err := Open(ctx, path, cfg)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()

	pragma := "PRAGMA quick_check;"
	if full {
		pragma = "PRAGMA integrity_check;"
	}

	rows, err := db.QueryContext(ctx, pragma)
	if err != nil {
		return nil, fmt.Errorf("integrity pragma failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []string
	for rows.Next() {
		var res string
		if err := rows.Scan(&res); err != nil {
			return nil, fmt.Errorf("scan integrity result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("integrity rows: %w", err)
	}

	if len(results) == 1 && strings.EqualFold(results[0], "ok") {
		return nil, nil
	}
	if len(results) == 0 {
		return []string{"no results returned from integrity check"}, nil
	}
	return results, nil
}
