// Package process runs the supervised child and owns the slot that holds it.
//
// # Process
//
// Each Process wraps an exec.Cmd with exit tracking and, when started by a
// Launcher, a message channel on file descriptor 3. The channel speaks the
// protocol Node.js uses for child_process.fork with JSON serialization: one
// JSON value per line, so the child sees messages through process.on
// ("message") and replies with process.send.
//
//	launcher := &process.Launcher{Runtime: []string{"node"}, Entry: "dist/index.js"}
//	proc, err := launcher.Start()
//	if err != nil {
//	    return err
//	}
//	_ = proc.Send("beforeExit")
//	for msg := range proc.Messages() {
//	    if msg == "exit" {
//	        _ = proc.Kill()
//	    }
//	}
//	<-proc.Done()
//
// # Slot
//
// A Slot holds at most one child. Its transitions are explicit:
//
//	Empty --Spawn--> Live --RequestShutdown--> ShutdownRequested
//	Live/ShutdownRequested --ConfirmTerminated--> Empty
//
// ConfirmTerminated refuses a child whose Done channel is still open, so a new
// child can never be spawned while the previous one is alive.
//
// # Thread Safety
//
// Both Slot and Process are safe for concurrent use.
package process
