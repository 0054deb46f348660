//go:build windows

package main

import (
	"os"
	"os/signal"

	"golang.org/x/sys/windows"
)

// notifySignals routes shutdown signals to ch. Windows has no reload signal.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, os.Interrupt, windows.SIGTERM)
}

func isReload(os.Signal) bool { return false }
