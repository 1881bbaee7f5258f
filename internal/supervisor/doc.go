// Package supervisor restarts the child process when sources change.
//
// A Supervisor is a state machine driven by a single event queue. File
// watcher, child message reader, child exit monitor, signal relay and the
// shutdown timer only post events; Run consumes them one at a time, so a
// rebuild always completes before the next event is looked at.
//
//	Idle --FileChanged--> Building --ok, restart needed--> Restarting
//	                          |                                |
//	                          +--failed or unwatched--> Idle <-+-- "exit" ack
//	any --Signal--> Draining --"exit" ack--> Terminated
//
// The child is asked to exit with the "beforeExit" message and acknowledges
// with "exit"; only then is it killed and, unless draining, replaced. A child
// that exits without acknowledging counts as having acknowledged. A missing
// acknowledgment is bounded by the shutdown timeout, after which the child is
// killed.
//
// Changes arriving while Restarting wait in an ordered set, one entry per
// path, and are rebuilt one at a time once Idle. Changes arriving while
// Draining are dropped.
package supervisor
