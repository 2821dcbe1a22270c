package model

import (
	"strings"

	"github.com/pkg/errors"
)

// PinMode is the direction of a pin.
type PinMode string

const (
	PinModeOutput PinMode = "OUT"
	PinModeInput  PinMode = "IN"
)

// ParsePinMode parses the configured mode of a pin.
// An empty mode defaults to output.
func ParsePinMode(s string) (PinMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "OUT", "OUTPUT":
		return PinModeOutput, nil
	case "IN", "INPUT":
		return PinModeInput, nil
	default:
		return "", errors.Wrapf(ConfigError, "invalid pin mode '%s'", s)
	}
}

// Pull configures the pull resistor of an input pin.
type Pull string

const (
	PullNone Pull = "NONE"
	PullUp   Pull = "UP"
	PullDown Pull = "DOWN"
)

// ParsePull parses the configured pull of a pin.
// An empty value means no pull resistor.
func ParsePull(s string) (Pull, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "NONE", "OFF", "FLOAT":
		return PullNone, nil
	case "UP":
		return PullUp, nil
	case "DOWN":
		return PullDown, nil
	default:
		return "", errors.Wrapf(ConfigError, "invalid pull '%s'", s)
	}
}

// PinSpec describes a single configured pin.
// PinSpecs are immutable once loaded.
type PinSpec struct {
	// Unique identifier of the pin
	ID string
	// Hardware line number (BCM numbering on a Raspberry Pi)
	Number int
	// Direction of the pin
	Mode PinMode
	// Pull resistor (input pins only)
	Pull Pull
	// Initial logical state (output pins only).
	// Nil when not configured.
	Initial *bool
}

// InitialState returns the state the pin starts in.
func (p PinSpec) InitialState() bool {
	return p.Initial != nil && *p.Initial
}

// IsOutput returns true if the pin is an output.
func (p PinSpec) IsOutput() bool {
	return p.Mode == PinModeOutput
}

// PinEventSource identifies what caused a pin state change.
type PinEventSource string

const (
	PinEventInit    PinEventSource = "init"
	PinEventSet     PinEventSource = "set"
	PinEventToggle  PinEventSource = "toggle"
	PinEventPulse   PinEventSource = "pulse"
	PinEventRestore PinEventSource = "restore"
	PinEventRead    PinEventSource = "read"
)

// PinEvent is emitted after every successful change of a pin state.
type PinEvent struct {
	Pin    string         `json:"pin"`
	Value  bool           `json:"value"`
	Source PinEventSource `json:"source"`
}
