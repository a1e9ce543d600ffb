// Package mode implements the editor's mode and picker state machine.
package mode

import (
	"errors"
	"fmt"
)

// State is the editor mode
type State int

const (
	// Idle shows no overlay
	Idle State = iota
	// Active shows scan results and accepts card selection
	Active
	// PickerOpen shows the value picker for one card on top of Active
	PickerOpen
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case PickerOpen:
		return "picker-open"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EventType identifies a user action
type EventType int

const (
	Toggle EventType = iota
	Close
	Cancel
	SelectCard
	ChooseValue
	SubmitCustom
	ClickOutside
)

func (e EventType) String() string {
	switch e {
	case Toggle:
		return "toggle"
	case Close:
		return "close"
	case Cancel:
		return "cancel"
	case SelectCard:
		return "select-card"
	case ChooseValue:
		return "choose-value"
	case SubmitCustom:
		return "submit-custom"
	case ClickOutside:
		return "click-outside"
	default:
		return fmt.Sprintf("EventType(%d)", int(e))
	}
}

// Event is a user action. Key is set for SelectCard.
type Event struct {
	Type EventType
	Key  string
}

// ErrInvalidTransition is returned for events the current state does not accept
var ErrInvalidTransition = errors.New("invalid transition")

// Machine is the mode state plus the key of the open picker
type Machine struct {
	State     State
	PickerKey string
}

// Transition computes the machine that results from applying ev to m. m is
// left untouched.
func Transition(m Machine, ev Event) (Machine, error) {
	switch m.State {
	case Idle:
		if ev.Type == Toggle {
			return Machine{State: Active}, nil
		}
	case Active:
		switch ev.Type {
		case Toggle, Close, Cancel:
			return Machine{State: Idle}, nil
		case SelectCard:
			if ev.Key == "" {
				return m, fmt.Errorf("%w: select-card without a key", ErrInvalidTransition)
			}
			return Machine{State: PickerOpen, PickerKey: ev.Key}, nil
		}
	case PickerOpen:
		switch ev.Type {
		case ChooseValue, SubmitCustom, Cancel, ClickOutside:
			return Machine{State: Active}, nil
		case SelectCard:
			// Opening another picker replaces the current one
			if ev.Key == "" {
				return m, fmt.Errorf("%w: select-card without a key", ErrInvalidTransition)
			}
			return Machine{State: PickerOpen, PickerKey: ev.Key}, nil
		case Toggle, Close:
			return Machine{State: Idle}, nil
		}
	}
	return m, fmt.Errorf("%w: %s in state %s", ErrInvalidTransition, ev.Type, m.State)
}

// Apply transitions m in place
func (m *Machine) Apply(ev Event) error {
	next, err := Transition(*m, ev)
	if err != nil {
		return err
	}
	*m = next
	return nil
}

// Is reports whether the machine is in state s
func (m Machine) Is(s State) bool {
	return m.State == s
}
