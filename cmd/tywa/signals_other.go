//go:build !unix

package main

import "os"

var relayedSignals = []os.Signal{os.Interrupt}
