// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup runs the external DVB tools (dvbtune, dvbsnoop) in their
// own process group so the whole tree can be stopped on release.
package procgroup

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/ManuGH/epgsnoop/internal/log"
	"github.com/ManuGH/epgsnoop/internal/metrics"
)

// DefaultGrace is how long Terminate waits after SIGTERM before SIGKILL.
const DefaultGrace = 2 * time.Second

// Terminate stops the process group of cmd. It sends SIGTERM, waits up to
// grace for waitCh to deliver the exit result and escalates to SIGKILL.
// waitCh must receive the result of cmd.Wait exactly once; Terminate always
// drains it and returns that result. Nil commands are a no-op.
func Terminate(cmd *exec.Cmd, waitCh <-chan error, grace time.Duration) error {
	if cmd == nil || cmd.Process == nil {
		return nil
	}
	logger := log.WithComponent("procgroup")

	signal(cmd, syscall.SIGTERM)

	select {
	case err := <-waitCh:
		if err == nil {
			metrics.IncProcWait("exit0")
		} else {
			metrics.IncProcWait("exit_nonzero")
		}
		return err
	case <-time.After(grace):
		logger.Warn().
			Str(log.FieldEvent, "procgroup.escalate").
			Int("pid", cmd.Process.Pid).
			Dur("grace", grace).
			Msg("SIGTERM grace period exceeded, sending SIGKILL to process group")
		signal(cmd, syscall.SIGKILL)

		err := <-waitCh
		if err == nil {
			metrics.IncProcWait("forced_exit0")
		} else {
			metrics.IncProcWait("forced_error")
		}
		return err
	}
}

func signal(cmd *exec.Cmd, sig syscall.Signal) {
	name := "SIGTERM"
	if sig == syscall.SIGKILL {
		name = "SIGKILL"
	}
	err := Kill(cmd, sig)
	switch {
	case err == nil:
		metrics.IncProcTerminate(name, "sent")
	case errors.Is(err, os.ErrProcessDone), errors.Is(err, syscall.ESRCH):
		metrics.IncProcTerminate(name, "esrch")
	default:
		metrics.IncProcTerminate(name, "error")
		logger := log.WithComponent("procgroup")
		logger.Debug().Err(err).Str("signal", name).Msg("signal process group failed")
	}
}
