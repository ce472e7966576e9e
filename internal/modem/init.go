package modem

import (
	"fmt"
	"time"

	"github.com/wkchan/callgw/internal/at"
	"github.com/wkchan/callgw/pkg/logger"
)

// Init probes the modem and applies the configured init commands (echo off,
// verbose CME errors, CLIP caller id, ...). Must be called after Run has
// started. A failed probe is fatal; a failed init command is logged and
// skipped, since optional features vary per firmware.
func (e *Engine) Init(initCmds []string) error {
	if _, err := e.Exec(Command{Text: at.CmdAt, Timeout: 2 * time.Second}); err != nil {
		return fmt.Errorf("modem not responding: %w", err)
	}

	for _, cmd := range initCmds {
		if _, err := e.Exec(Command{Text: cmd}); err != nil {
			logger.Log.Warnf("Init command %q failed: %v", cmd, err)
		}
	}
	return nil
}
