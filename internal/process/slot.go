package process

import (
	"errors"
	"fmt"
	"sync"
)

// SlotState is the state of a Slot.
type SlotState int

const (
	// SlotEmpty holds no child.
	SlotEmpty SlotState = iota
	// SlotLive holds a running child with no shutdown outstanding.
	SlotLive
	// SlotShutdownRequested holds a child that has been asked to exit.
	SlotShutdownRequested
)

// String returns a human-readable state name.
func (s SlotState) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotLive:
		return "live"
	case SlotShutdownRequested:
		return "shutdown-requested"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Slot errors.
var (
	// ErrSlotOccupied is returned by Spawn while a child is held.
	ErrSlotOccupied = errors.New("slot already holds a child")

	// ErrNotTerminated is returned by ConfirmTerminated for a child that has
	// not exited.
	ErrNotTerminated = errors.New("child has not terminated")

	// ErrNotHeld is returned by ConfirmTerminated for a child the slot does
	// not hold.
	ErrNotHeld = errors.New("child is not held by the slot")
)

// Slot holds at most one child.
type Slot struct {
	mu    sync.Mutex
	child Child
	state SlotState

	// spawned counts successful spawns.
	spawned int
}

// NewSlot creates an empty slot.
func NewSlot() *Slot {
	return &Slot{}
}

// State returns the slot state.
func (s *Slot) State() SlotState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Child returns the held child, or nil.
func (s *Slot) Child() Child {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.child
}

// Spawned returns the number of children spawned into the slot.
func (s *Slot) Spawned() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spawned
}

// Spawn starts a child with start and holds it. It fails with ErrSlotOccupied
// unless the slot is empty; start is not called in that case.
func (s *Slot) Spawn(start func() (Child, error)) (Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SlotEmpty {
		return nil, ErrSlotOccupied
	}

	child, err := start()
	if err != nil {
		return nil, err
	}

	s.child = child
	s.state = SlotLive
	s.spawned++
	return child, nil
}

// RequestShutdown marks the held child as asked to exit. It returns the child
// only on the Live to ShutdownRequested transition, so the caller sends the
// request at most once per child.
func (s *Slot) RequestShutdown() (Child, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SlotLive {
		return nil, false
	}
	s.state = SlotShutdownRequested
	return s.child, true
}

// ConfirmTerminated empties the slot once child has exited, and closes the
// child's message channel.
func (s *Slot) ConfirmTerminated(child Child) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.child == nil || s.child != child {
		return ErrNotHeld
	}
	select {
	case <-child.Done():
	default:
		return ErrNotTerminated
	}

	_ = child.Close()
	s.child = nil
	s.state = SlotEmpty
	return nil
}
