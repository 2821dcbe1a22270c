package model

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	// DefaultPulseDuration is used for pulse commands without duration.
	DefaultPulseDuration = time.Millisecond * 500
	// MaxPulseDuration is the longest pulse accepted.
	MaxPulseDuration = time.Hour * 24
	// DefaultServiceAction is used for service triggers without action.
	DefaultServiceAction = "start"
)

// Action is the closed set of operations on a GPIO pin.
type Action int

const (
	ActionSet Action = iota + 1
	ActionToggle
	ActionPulse
	ActionGet
)

// String returns the wire name of the action.
func (a Action) String() string {
	switch a {
	case ActionSet:
		return "set"
	case ActionToggle:
		return "toggle"
	case ActionPulse:
		return "pulse"
	case ActionGet:
		return "get"
	default:
		return "unknown"
	}
}

// ParseAction converts a wire name into an Action.
func ParseAction(s string) (Action, error) {
	switch strings.ToLower(s) {
	case "set":
		return ActionSet, nil
	case "toggle":
		return ActionToggle, nil
	case "pulse":
		return ActionPulse, nil
	case "get":
		return ActionGet, nil
	default:
		return 0, errors.Wrapf(UnknownActionError, "action '%s'", s)
	}
}

// GpioCommand is the payload of a gpio-control message.
type GpioCommand struct {
	Pin    string
	Action Action
	// Value to set (set), or transient value (pulse).
	Value bool
	// Duration of a pulse
	Duration time.Duration
}

type gpioPayload struct {
	Pin      *string  `json:"pin"`
	Action   *string  `json:"action"`
	Value    *bool    `json:"value"`
	Duration *float64 `json:"duration"`
}

// ParseGpioCommand decodes and validates a gpio-control payload.
func ParseGpioCommand(data []byte) (GpioCommand, error) {
	var p gpioPayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return GpioCommand{}, errors.Wrapf(MalformedPayloadError, "invalid JSON: %s", err)
		}
	}
	if p.Pin == nil || *p.Pin == "" {
		return GpioCommand{}, errors.Wrap(MalformedPayloadError, "missing 'pin' field")
	}
	if p.Action == nil || *p.Action == "" {
		return GpioCommand{}, errors.Wrap(MalformedPayloadError, "missing 'action' field")
	}
	action, err := ParseAction(*p.Action)
	if err != nil {
		return GpioCommand{}, err
	}
	cmd := GpioCommand{
		Pin:    *p.Pin,
		Action: action,
	}
	switch action {
	case ActionSet:
		if p.Value == nil {
			return GpioCommand{}, errors.Wrap(MalformedPayloadError, "missing 'value' field for set")
		}
		cmd.Value = *p.Value
	case ActionPulse:
		cmd.Value = true
		if p.Value != nil {
			cmd.Value = *p.Value
		}
		cmd.Duration = DefaultPulseDuration
		if p.Duration != nil {
			d := *p.Duration
			if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
				return GpioCommand{}, errors.Wrapf(MalformedPayloadError, "invalid pulse duration %v", d)
			}
			cmd.Duration = time.Duration(d * float64(time.Second))
			if cmd.Duration <= 0 || cmd.Duration > MaxPulseDuration {
				return GpioCommand{}, errors.Wrapf(MalformedPayloadError, "pulse duration %v out of range", d)
			}
		}
	}
	return cmd, nil
}

// ServiceTriggerCommand is the payload of a service-trigger message.
type ServiceTriggerCommand struct {
	Service string
	Action  string
}

type servicePayload struct {
	Service *string `json:"service"`
	Action  *string `json:"action"`
}

// ParseServiceTriggerCommand decodes and validates a service-trigger payload.
func ParseServiceTriggerCommand(data []byte) (ServiceTriggerCommand, error) {
	var p servicePayload
	if len(data) > 0 {
		if err := json.Unmarshal(data, &p); err != nil {
			return ServiceTriggerCommand{}, errors.Wrapf(MalformedPayloadError, "invalid JSON: %s", err)
		}
	}
	if p.Service == nil || *p.Service == "" {
		return ServiceTriggerCommand{}, errors.Wrap(MalformedPayloadError, "missing 'service' field")
	}
	cmd := ServiceTriggerCommand{
		Service: *p.Service,
		Action:  DefaultServiceAction,
	}
	if p.Action != nil && *p.Action != "" {
		cmd.Action = *p.Action
	}
	return cmd, nil
}

// PinReply is published on the reply address of a get request.
type PinReply struct {
	Pin   string `json:"pin"`
	Value bool   `json:"value"`
}

// ErrorReply is published on the reply address of a failed request.
type ErrorReply struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
