package supervisor

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dshills/tywa/internal/config"
	"github.com/dshills/tywa/internal/logging"
	"github.com/dshills/tywa/internal/process"
)

// DefaultQueueSize is the capacity of the event queue.
const DefaultQueueSize = 64

// ErrTerminated is returned by Run on a supervisor that already terminated.
var ErrTerminated = errors.New("supervisor terminated")

// Stats counts supervisor actions.
type Stats struct {
	Rebuilds         int64
	Spawns           int64
	ShutdownRequests int64
}

// Supervisor owns the child slot and reacts to events.
type Supervisor struct {
	cfg     *config.Config
	builder Builder
	spawner Spawner
	log     *logging.Logger

	events chan Event
	done   chan struct{}
	slot   *process.Slot

	// Consumer-owned state.
	ctx        context.Context
	state      State
	pending    []string
	pendingSet map[string]bool
	timer      *time.Timer
	timerSeq   int

	// Published for observers.
	published        atomic.Int32
	rebuilds         atomic.Int64
	shutdownRequests atomic.Int64
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithSlot uses slot instead of a new empty one.
func WithSlot(slot *process.Slot) Option {
	return func(s *Supervisor) {
		s.slot = slot
	}
}

// New creates a supervisor. cfg supplies the project root, the unwatched
// directory fragments and the shutdown timeout.
func New(cfg *config.Config, builder Builder, spawner Spawner, log *logging.Logger, opts ...Option) *Supervisor {
	if log == nil {
		log = logging.Null
	}
	s := &Supervisor{
		cfg:        cfg,
		builder:    builder,
		spawner:    spawner,
		log:        log.WithComponent("supervisor"),
		events:     make(chan Event, DefaultQueueSize),
		done:       make(chan struct{}),
		slot:       process.NewSlot(),
		pendingSet: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Post queues an event. It blocks while the queue is full and drops the event
// once Run has returned.
func (s *Supervisor) Post(ev Event) {
	select {
	case s.events <- ev:
	case <-s.done:
	}
}

// State returns the current state. It may be called from any goroutine.
func (s *Supervisor) State() State {
	return State(s.published.Load())
}

// Stats returns action counters.
func (s *Supervisor) Stats() Stats {
	return Stats{
		Rebuilds:         s.rebuilds.Load(),
		Spawns:           int64(s.slot.Spawned()),
		ShutdownRequests: s.shutdownRequests.Load(),
	}
}

// Run spawns the first child and consumes events until the supervisor has
// drained (nil) or ctx is cancelled (ctx.Err(), after killing the child).
func (s *Supervisor) Run(ctx context.Context) error {
	select {
	case <-s.done:
		return ErrTerminated
	default:
	}
	defer close(s.done)
	defer s.stopTimer()
	defer s.logStats()

	s.ctx = ctx
	s.setState(StateIdle)
	s.spawn()

	for {
		select {
		case <-ctx.Done():
			s.killNow()
			return ctx.Err()

		case ev := <-s.events:
			s.handle(ev)
			if s.state == StateIdle {
				s.drainPending()
			}
			if s.state == StateTerminated {
				return nil
			}
		}
	}
}

func (s *Supervisor) logStats() {
	st := s.Stats()
	s.log.Debug("%d rebuilds, %d children started, %d shutdown requests",
		st.Rebuilds, st.Spawns, st.ShutdownRequests)
}

func (s *Supervisor) setState(st State) {
	if s.state != st {
		s.log.Debug("state %s -> %s", s.state, st)
	}
	s.state = st
	s.published.Store(int32(st))
}

func (s *Supervisor) handle(ev Event) {
	switch e := ev.(type) {
	case FileChanged:
		s.onFileChanged(e.Path)
	case ChildMessage:
		s.onChildMessage(e)
	case ChildExited:
		s.onChildExited(e)
	case Signal:
		s.onSignal(e)
	case ShutdownTimeout:
		s.onShutdownTimeout(e)
	}
}

func (s *Supervisor) onFileChanged(path string) {
	switch s.state {
	case StateIdle:
		s.rebuild(path)
	case StateRestarting:
		if !s.pendingSet[path] {
			s.pendingSet[path] = true
			s.pending = append(s.pending, path)
			s.log.Debug("%s changed during restart; queued", s.cfg.Rel(path))
		}
	default:
		s.log.Debug("%s changed while %s; ignored", s.cfg.Rel(path), s.state)
	}
}

// drainPending rebuilds queued changes in arrival order until one of them
// starts a restart.
func (s *Supervisor) drainPending() {
	for s.state == StateIdle && len(s.pending) > 0 {
		path := s.pending[0]
		s.pending = s.pending[1:]
		delete(s.pendingSet, path)
		s.rebuild(path)
	}
}

func (s *Supervisor) rebuild(path string) {
	s.setState(StateBuilding)
	s.rebuilds.Add(1)

	rel := s.cfg.Rel(path)
	s.log.Info("file changed: %s", rel)

	if err := s.builder.Rebuild(s.ctx, path); err != nil {
		s.log.Warn("rebuild of %s failed; child left running: %v", rel, err)
		s.setState(StateIdle)
		return
	}

	if fragment, ok := s.unwatched(rel); ok {
		s.log.Info("%s is under unwatched %q; child not restarted", rel, fragment)
		s.setState(StateIdle)
		return
	}

	s.restart()
}

// unwatched returns the first unwatched fragment contained in rel.
func (s *Supervisor) unwatched(rel string) (string, bool) {
	slashed := filepath.ToSlash(rel)
	for _, fragment := range s.cfg.UnwatchedDirectories {
		if fragment != "" && strings.Contains(slashed, fragment) {
			return fragment, true
		}
	}
	return "", false
}

func (s *Supervisor) restart() {
	switch s.slot.State() {
	case process.SlotEmpty:
		// The previous child exited on its own; nothing to stop.
		s.spawn()
		s.setState(StateIdle)
	case process.SlotLive:
		s.setState(StateRestarting)
		s.log.Info("stopping child process")
		s.requestShutdown()
	case process.SlotShutdownRequested:
		s.setState(StateRestarting)
	}
}

// requestShutdown sends beforeExit to a live child and arms the timeout. A
// child that cannot be messaged is treated as having acknowledged.
func (s *Supervisor) requestShutdown() {
	child, ok := s.slot.RequestShutdown()
	if !ok {
		return
	}
	s.shutdownRequests.Add(1)

	if err := child.Send(MsgBeforeExit); err != nil {
		s.log.Warn("cannot message child %s: %v; killing it", child.ID(), err)
		s.acknowledged(child)
		return
	}
	s.startTimer(child)
}

func (s *Supervisor) onChildMessage(e ChildMessage) {
	child := s.slot.Child()
	if child == nil || child.ID() != e.ChildID {
		return
	}
	if e.Msg != MsgExit {
		s.log.Debug("message from child %s: %s", e.ChildID, e.Msg)
		return
	}
	s.acknowledged(child)
}

func (s *Supervisor) onChildExited(e ChildExited) {
	child := s.slot.Child()
	if child == nil || child.ID() != e.ChildID {
		return
	}

	switch s.state {
	case StateRestarting, StateDraining:
		s.log.Debug("child %s exited before acknowledging", child.ID())
		s.acknowledged(child)
	default:
		s.log.Warn("child process exited; a new one starts after the next change")
		s.terminate(child)
	}
}

func (s *Supervisor) onSignal(e Signal) {
	switch s.state {
	case StateDraining:
		s.log.Debug("received %v while draining; waiting for the child", e.Sig)
		return
	case StateTerminated:
		return
	}

	s.log.Info("received %v; shutting down", e.Sig)
	s.setState(StateDraining)
	s.pending = nil
	s.pendingSet = make(map[string]bool)

	switch s.slot.State() {
	case process.SlotEmpty:
		s.setState(StateTerminated)
	case process.SlotLive:
		s.requestShutdown()
	case process.SlotShutdownRequested:
		// A restart already asked the child to exit; its acknowledgment now
		// completes the drain.
	}
}

func (s *Supervisor) onShutdownTimeout(e ShutdownTimeout) {
	if s.timer == nil || e.seq != s.timerSeq {
		return
	}
	child := s.slot.Child()
	if child == nil || child.ID() != e.ChildID {
		return
	}
	s.log.Warn("child %s did not acknowledge within %s; killing it", child.ID(), s.cfg.ShutdownTimeout)
	s.acknowledged(child)
}

// acknowledged finishes the shutdown of child: it is killed and, unless the
// supervisor is draining, replaced.
func (s *Supervisor) acknowledged(child process.Child) {
	s.terminate(child)

	switch s.state {
	case StateDraining:
		s.log.Info("exiting")
		s.setState(StateTerminated)
	default:
		s.log.Info("starting new child process")
		s.spawn()
		s.setState(StateIdle)
	}
}

// terminate kills child and waits until it has exited, then empties the
// slot.
func (s *Supervisor) terminate(child process.Child) {
	s.stopTimer()
	if err := child.Kill(); err != nil {
		s.log.Warn("killing child %s: %v", child.ID(), err)
	}
	<-child.Done()
	if err := s.slot.ConfirmTerminated(child); err != nil {
		s.log.Error("confirming child %s terminated: %v", child.ID(), err)
	}
}

func (s *Supervisor) killNow() {
	if child := s.slot.Child(); child != nil {
		s.terminate(child)
	}
	s.setState(StateTerminated)
}

func (s *Supervisor) spawn() {
	child, err := s.slot.Spawn(s.spawner.Spawn)
	if err != nil {
		s.log.Error("starting child process: %v", err)
		return
	}
	s.log.Debug("child %s started", child.ID())
	go s.relay(child)
}

// relay posts the child's messages and its exit.
func (s *Supervisor) relay(child process.Child) {
	msgs := child.Messages()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil
				continue
			}
			s.Post(ChildMessage{ChildID: child.ID(), Msg: msg})

		case <-child.Done():
			for msgs != nil {
				select {
				case msg, ok := <-msgs:
					if !ok {
						msgs = nil
						continue
					}
					s.Post(ChildMessage{ChildID: child.ID(), Msg: msg})
				default:
					msgs = nil
				}
			}
			s.Post(ChildExited{ChildID: child.ID()})
			return

		case <-s.done:
			return
		}
	}
}

func (s *Supervisor) startTimer(child process.Child) {
	s.stopTimer()
	if s.cfg.ShutdownTimeout <= 0 {
		return
	}
	seq := s.timerSeq
	id := child.ID()
	s.timer = time.AfterFunc(s.cfg.ShutdownTimeout, func() {
		s.Post(ShutdownTimeout{ChildID: id, seq: seq})
	})
}

// stopTimer disarms the timer; a timeout already queued is ignored because
// its sequence number no longer matches.
func (s *Supervisor) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.timerSeq++
}
