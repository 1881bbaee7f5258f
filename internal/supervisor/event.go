package supervisor

import (
	"context"
	"fmt"
	"os"

	"github.com/dshills/tywa/internal/process"
)

// State is the supervisor state.
type State int

const (
	// StateIdle waits for changes.
	StateIdle State = iota
	// StateBuilding is rebuilding one changed file.
	StateBuilding
	// StateRestarting waits for the child to acknowledge a restart.
	StateRestarting
	// StateDraining waits for the child to acknowledge a shutdown.
	StateDraining
	// StateTerminated is final.
	StateTerminated
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StateRestarting:
		return "restarting"
	case StateDraining:
		return "draining"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Messages exchanged with the child.
const (
	MsgBeforeExit = "beforeExit"
	MsgExit       = "exit"
)

// Event is an input to the state machine.
type Event interface {
	event()
}

// FileChanged reports a changed source file.
type FileChanged struct {
	Path string
}

// ChildMessage is a message received from a child.
type ChildMessage struct {
	ChildID string
	Msg     string
}

// ChildExited reports that a child process has exited.
type ChildExited struct {
	ChildID string
}

// Signal reports a termination signal received by the supervisor.
type Signal struct {
	Sig os.Signal
}

// ShutdownTimeout reports that a child did not acknowledge in time.
type ShutdownTimeout struct {
	ChildID string
	seq     int
}

func (FileChanged) event()     {}
func (ChildMessage) event()    {}
func (ChildExited) event()     {}
func (Signal) event()          {}
func (ShutdownTimeout) event() {}

// Builder rebuilds one changed source file.
type Builder interface {
	Rebuild(ctx context.Context, path string) error
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context, path string) error

// Rebuild calls f.
func (f BuilderFunc) Rebuild(ctx context.Context, path string) error {
	return f(ctx, path)
}

// Spawner starts a new child.
type Spawner interface {
	Spawn() (process.Child, error)
}

// SpawnerFunc adapts a function to Spawner.
type SpawnerFunc func() (process.Child, error)

// Spawn calls f.
func (f SpawnerFunc) Spawn() (process.Child, error) {
	return f()
}
