// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService = "service"
	FieldVersion = "version"
	FieldRunID   = "run_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldProcessor = "processor"
	FieldPID       = "pid"

	// Capture fields
	FieldPackets  = "packets"
	FieldEvents   = "events"
	FieldPrograms = "programs"
	FieldIdle     = "idle"
	FieldChannel  = "channel"
	FieldTitle    = "title"

	// Path fields
	FieldPath = "path"
)
