//go:build !unix

package process

import (
	"errors"
	"net"
	"os"
)

var channelEnv []string

// socketPair is only available on Unix systems.
func socketPair() (net.Conn, *os.File, error) {
	return nil, nil, errors.New("child message channel requires a Unix system")
}
