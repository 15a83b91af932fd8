package ohci

import "fmt"

// State is a step of controller bring-up. States only move forward; a
// failed step leaves the controller in the last state it reached.
type State int

const (
	StateUnreset State = iota
	StateSoftReset
	StatePowerUp
	StatePhyDiscovered
	StatePortsEnabled
	StateFiltersArmed
	StateConfigROMLoaded
	StateLinkEnabled
)

var stateNames = [...]string{
	StateUnreset:         "Unreset",
	StateSoftReset:       "SoftReset",
	StatePowerUp:         "PowerUp",
	StatePhyDiscovered:   "PhyDiscovered",
	StatePortsEnabled:    "PortsEnabled",
	StateFiltersArmed:    "FiltersArmed",
	StateConfigROMLoaded: "ConfigRomLoaded",
	StateLinkEnabled:     "LinkEnabled",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Event is what a Poll call found and handled
type Event int

const (
	EventNone Event = iota
	EventBusReset
	EventPostedWriteError
	EventUnrecoverableError
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventBusReset:
		return "bus reset"
	case EventPostedWriteError:
		return "posted write error"
	case EventUnrecoverableError:
		return "unrecoverable error"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}
