//go:build !windows

// Package shutdown funnels termination signals into one channel so the
// recorder and logger can be closed before exit.
package shutdown

import (
	"os"
	"os/signal"
	"syscall"
)

func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
}
