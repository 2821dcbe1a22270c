package model

import (
	"strings"

	"github.com/pkg/errors"
)

// OperationKind is the kind of operation bound to a subject.
type OperationKind string

const (
	OperationGpioControl    OperationKind = "gpio"
	OperationServiceTrigger OperationKind = "service"
)

// ParseOperationKind parses the configured type of an operation.
// The names used by older node configurations are accepted too.
func ParseOperationKind(s string) (OperationKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gpio", "gpio_control":
		return OperationGpioControl, nil
	case "service", "service_trigger":
		return OperationServiceTrigger, nil
	default:
		return "", errors.Wrapf(ConfigError, "invalid operation type '%s'", s)
	}
}

// OperationRoute binds a subject to an operation kind.
type OperationRoute struct {
	Subject string
	Kind    OperationKind
	// Optional queue group, so that a set of nodes share the load.
	Queue string
}
