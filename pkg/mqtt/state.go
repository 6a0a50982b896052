package mqtt

import (
	"context"
	"errors"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/vensim/pkg/log"
)

// Connection states.
const (
	StateDisconnected = "disconnected"
	StateConnecting   = "connecting"
	StateConnected    = "connected"
)

const (
	eventDial = "dial"
	eventUp   = "up"
	eventDrop = "drop"
)

// StateListener is notified after every connection state change.
type StateListener func(from, to string)

type connState struct {
	machine *fsm.FSM
}

func newConnState(listener StateListener) *connState {
	onEnter := func(_ context.Context, e *fsm.Event) {
		log.Info("MQTT connection state changed", "from", e.Src, "to", e.Dst, "event", e.Event)
		if listener != nil {
			listener(e.Src, e.Dst)
		}
	}

	return &connState{
		machine: fsm.NewFSM(
			StateDisconnected,
			fsm.Events{
				{Name: eventDial, Src: []string{StateDisconnected}, Dst: StateConnecting},
				{Name: eventUp, Src: []string{StateDisconnected, StateConnecting}, Dst: StateConnected},
				{Name: eventDrop, Src: []string{StateConnecting, StateConnected}, Dst: StateDisconnected},
			},
			fsm.Callbacks{
				"enter_state": onEnter,
			},
		),
	}
}

// fire applies event, ignoring events that do not apply to the current state
// (for example a drop reported twice by different paho callbacks).
func (s *connState) fire(event string) {
	err := s.machine.Event(context.Background(), event)
	if err == nil {
		return
	}

	var invalid fsm.InvalidEventError
	var noop fsm.NoTransitionError
	if errors.As(err, &invalid) || errors.As(err, &noop) {
		return
	}
	log.Error(err, "MQTT connection state transition failed", "event", event, "state", s.machine.Current())
}

func (s *connState) current() string {
	return s.machine.Current()
}

func (s *connState) is(state string) bool {
	return s.machine.Is(state)
}
