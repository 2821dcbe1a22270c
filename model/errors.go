package model

import (
	"github.com/pkg/errors"
)

var (
	// ConfigError is fatal and prevents the node from subscribing.
	ConfigError = errors.New("invalid configuration")
	// UnknownSubjectError is returned for messages on a subject without route.
	UnknownSubjectError = errors.New("unknown subject")
	// MalformedPayloadError is returned when a payload misses fields or has invalid values.
	MalformedPayloadError = errors.New("malformed payload")
	// UnknownActionError is returned for an action outside the known set.
	UnknownActionError = errors.New("unknown action")
	// UnknownPinError is returned for a pin identifier that is not configured.
	UnknownPinError = errors.New("unknown pin")
	// WrongModeError is returned when writing to a pin that is not an output.
	WrongModeError = errors.New("wrong pin mode")
	// ServiceUnavailableError is returned by the service trigger collaborator.
	ServiceUnavailableError = errors.New("service unavailable")
	// RegistryClosedError is returned by a pin registry after Close.
	RegistryClosedError = errors.New("pin registry closed")
	// SchedulerClosedError is returned by the action scheduler after Close.
	SchedulerClosedError = errors.New("action scheduler closed")

	maskAny = errors.WithStack
)

// IsConfigError returns true if the cause of the given error is a ConfigError.
func IsConfigError(err error) bool {
	return errors.Is(err, ConfigError)
}

// ErrorKind returns a short, stable name for the class of the given error.
// Used as log field and metric label.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ConfigError):
		return "config"
	case errors.Is(err, UnknownSubjectError):
		return "unknown_subject"
	case errors.Is(err, MalformedPayloadError):
		return "malformed_payload"
	case errors.Is(err, UnknownActionError):
		return "unknown_action"
	case errors.Is(err, UnknownPinError):
		return "unknown_pin"
	case errors.Is(err, WrongModeError):
		return "wrong_mode"
	case errors.Is(err, ServiceUnavailableError):
		return "service_unavailable"
	case errors.Is(err, RegistryClosedError), errors.Is(err, SchedulerClosedError):
		return "closed"
	default:
		return "internal"
	}
}
