//go:build unix

package process

import (
	"fmt"
	"net"
	"os"
	"syscall"
)

// channelFD is the descriptor number of the first entry of exec.Cmd.ExtraFiles.
const channelFD = 3

// channelEnv tells a Node.js child that a fork channel is open on fd 3 and
// that messages are JSON encoded.
var channelEnv = []string{
	fmt.Sprintf("NODE_CHANNEL_FD=%d", channelFD),
	"NODE_CHANNEL_SERIALIZATION_MODE=json",
}

// socketPair returns the parent's end of a connected Unix socket pair as a
// net.Conn and the child's end as a file to pass in ExtraFiles.
func socketPair() (net.Conn, *os.File, error) {
	fds, err := syscall.Socketpair(syscall.AF_UNIX, syscall.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	syscall.CloseOnExec(fds[0])
	syscall.CloseOnExec(fds[1])

	parentFile := os.NewFile(uintptr(fds[0]), "tywa-ipc-parent")
	childFile := os.NewFile(uintptr(fds[1]), "tywa-ipc-child")

	conn, err := net.FileConn(parentFile)
	// FileConn dups the descriptor.
	parentFile.Close()
	if err != nil {
		childFile.Close()
		return nil, nil, fmt.Errorf("socketpair conn: %w", err)
	}
	return conn, childFile, nil
}
