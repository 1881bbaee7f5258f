package process

import (
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// Launcher starts the supervised child: the runtime command followed by the
// entry file, with a message channel on fd 3.
type Launcher struct {
	// Runtime is the command line that runs Entry, e.g. ["node"].
	Runtime []string

	// Entry is the built entrypoint, passed as the last argument.
	Entry string

	// Dir is the working directory; empty means the current one.
	Dir string

	// Env is appended to the current environment.
	Env []string

	// Stdout and Stderr default to the supervisor's own.
	Stdout io.Writer
	Stderr io.Writer
}

// Start spawns a new child. The child's standard streams are inherited.
func (l *Launcher) Start() (*Process, error) {
	if len(l.Runtime) == 0 {
		return nil, errors.New("runtime command is empty")
	}

	args := append(append([]string(nil), l.Runtime[1:]...), l.Entry)
	cmd := exec.Command(l.Runtime[0], args...)
	cmd.Dir = l.Dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = l.Stdout
	if cmd.Stdout == nil {
		cmd.Stdout = os.Stdout
	}
	cmd.Stderr = l.Stderr
	if cmd.Stderr == nil {
		cmd.Stderr = os.Stderr
	}

	conn, childEnd, err := socketPair()
	if err != nil {
		return nil, err
	}
	cmd.ExtraFiles = []*os.File{childEnd}
	cmd.Env = append(append(os.Environ(), l.Env...), channelEnv...)

	proc := NewProcess(uuid.New().String(), filepath.Base(l.Entry), cmd)
	err = proc.start()
	// The child holds its own copy now.
	childEnd.Close()
	if err != nil {
		conn.Close()
		return nil, err
	}

	proc.channel = NewChannel(conn)
	return proc, nil
}
