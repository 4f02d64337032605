//go:build windows

package shutdown

import (
	"os"
	"os/signal"
)

// Notify registers for interrupt only; SIGTERM does not exist here.
func Notify(ch chan os.Signal) {
	signal.Notify(ch, os.Interrupt)
}
