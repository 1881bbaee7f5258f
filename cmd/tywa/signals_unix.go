//go:build unix

package main

import (
	"os"
	"syscall"
)

// relayedSignals drain the child before exiting.
var relayedSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1, syscall.SIGUSR2}
