//go:build !windows

package main

import (
	"os"
	"os/signal"

	"golang.org/x/sys/unix"
)

// notifySignals routes shutdown and reload signals to ch.
func notifySignals(ch chan<- os.Signal) {
	signal.Notify(ch, unix.SIGINT, unix.SIGTERM, unix.SIGHUP)
}

func isReload(sig os.Signal) bool {
	return sig == unix.SIGHUP
}
