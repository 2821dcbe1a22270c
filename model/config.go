package model

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	DefaultServer               = "nats://localhost:4222"
	DefaultClientName           = "necromancy-node"
	DefaultReconnectTimeWait    = 2.0
	DefaultMaxReconnectAttempts = -1
	DefaultPingInterval         = 20.0
	DefaultConnectTimeout       = 4.0
	DefaultMaxInFlight          = 64
	DefaultDrainTimeout         = 5.0
	DefaultLogLevel             = "info"
	DefaultMetricsHost          = "0.0.0.0"
)

// Config holds the complete configuration of a node.
type Config struct {
	// Message bus connection
	Bus BusConfig `json:"bus" yaml:"bus"`
	// Legacy name of the bus section; implies a NATS bus.
	NATS *BusConfig `json:"nats,omitempty" yaml:"nats,omitempty"`
	// Subjects the node subscribes to
	Operations []OperationConfig `json:"operations" yaml:"operations"`
	// Local pins
	GPIO GPIOConfig `json:"gpio" yaml:"gpio"`
	// Names of services that can be triggered
	Services []string `json:"services,omitempty" yaml:"services,omitempty"`
	// Message handling
	Dispatch DispatchConfig `json:"dispatch" yaml:"dispatch"`
	Logging  LoggingConfig  `json:"logging" yaml:"logging"`
	Metrics  MetricsConfig  `json:"metrics" yaml:"metrics"`
}

// BusType identifies the message bus implementation.
type BusType string

const (
	BusTypeNATS     BusType = "nats"
	BusTypeMQTT     BusType = "mqtt"
	BusTypeLoopback BusType = "loopback"
)

// BusConfig holds the settings of the message bus connection.
// Durations are in seconds.
type BusConfig struct {
	Type                 BusType    `json:"type,omitempty" yaml:"type,omitempty"`
	Servers              StringList `json:"servers,omitempty" yaml:"servers,omitempty"`
	ClientName           string     `json:"client_name,omitempty" yaml:"client_name,omitempty"`
	Username             string     `json:"username,omitempty" yaml:"username,omitempty"`
	Password             string     `json:"password,omitempty" yaml:"password,omitempty"`
	ReconnectTimeWait    float64    `json:"reconnect_time_wait,omitempty" yaml:"reconnect_time_wait,omitempty"`
	MaxReconnectAttempts *int       `json:"max_reconnect_attempts,omitempty" yaml:"max_reconnect_attempts,omitempty"`
	PingInterval         float64    `json:"ping_interval,omitempty" yaml:"ping_interval,omitempty"`
	ConnectTimeout       float64    `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`
	// MQTT quality of service (0..2)
	QoS int `json:"qos,omitempty" yaml:"qos,omitempty"`
}

// OperationConfig binds a subject to an operation type.
type OperationConfig struct {
	Subject string `json:"subject" yaml:"subject"`
	Type    string `json:"type,omitempty" yaml:"type,omitempty"`
	// Older configurations name the type "operation".
	Operation string `json:"operation,omitempty" yaml:"operation,omitempty"`
	Queue     string `json:"queue,omitempty" yaml:"queue,omitempty"`
}

// DriverType identifies the pin driver implementation.
type DriverType string

const (
	DriverAuto      DriverType = "auto"
	DriverSysfs     DriverType = "sysfs"
	DriverPeriph    DriverType = "periph"
	DriverSimulated DriverType = "simulated"
)

// GPIOConfig holds the settings of local pins.
type GPIOConfig struct {
	// Defaults to true
	Enabled *bool               `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Driver  DriverType          `json:"driver,omitempty" yaml:"driver,omitempty"`
	Pins    map[string]PinConfig `json:"pins,omitempty" yaml:"pins,omitempty"`
}

// IsEnabled returns true unless GPIO is explicitly disabled.
func (c GPIOConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// PinConfig holds the configuration of a single pin.
type PinConfig struct {
	Number  *int    `json:"number" yaml:"number"`
	Mode    string  `json:"mode,omitempty" yaml:"mode,omitempty"`
	Initial *bool   `json:"initial,omitempty" yaml:"initial,omitempty"`
	Pull    *string `json:"pull,omitempty" yaml:"pull,omitempty"`
}

// ShutdownPolicy determines what happens to pending pulses on shutdown.
type ShutdownPolicy string

const (
	// Restore pending pulses immediately
	ShutdownRestore ShutdownPolicy = "restore"
	// Leave pins in their current state
	ShutdownAbandon ShutdownPolicy = "abandon"
)

// DispatchConfig holds the settings of the dispatch loop.
type DispatchConfig struct {
	// Maximum number of messages handled concurrently
	MaxInFlight int `json:"max_in_flight,omitempty" yaml:"max_in_flight,omitempty"`
	// Seconds to wait for in-flight messages during shutdown
	DrainTimeout float64 `json:"drain_timeout,omitempty" yaml:"drain_timeout,omitempty"`
	// What to do with pending pulses during shutdown
	PulseShutdown ShutdownPolicy `json:"pulse_shutdown,omitempty" yaml:"pulse_shutdown,omitempty"`
	// If set, every pin change is published on this subject
	StateSubject string `json:"state_subject,omitempty" yaml:"state_subject,omitempty"`
}

// LoggingConfig holds the settings of the logger.
type LoggingConfig struct {
	Level string `json:"level,omitempty" yaml:"level,omitempty"`
	// console|json
	Format string `json:"format,omitempty" yaml:"format,omitempty"`
	// If set, log lines are forwarded onto this subject
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty"`
}

// MetricsConfig holds the settings of the metrics endpoint.
// The endpoint is disabled when Port is 0.
type MetricsConfig struct {
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port int    `json:"port,omitempty" yaml:"port,omitempty"`
}

// ApplyDefaults fills all unset fields with their default value.
func (c *Config) ApplyDefaults() {
	if c.NATS != nil && len(c.Bus.Servers) == 0 && c.Bus.Type == "" {
		c.Bus = *c.NATS
		c.Bus.Type = BusTypeNATS
	}
	if c.Bus.Type == "" {
		c.Bus.Type = BusTypeNATS
	}
	if len(c.Bus.Servers) == 0 && c.Bus.Type == BusTypeNATS {
		c.Bus.Servers = StringList{DefaultServer}
	}
	if c.Bus.ClientName == "" {
		c.Bus.ClientName = DefaultClientName
	}
	if c.Bus.ReconnectTimeWait == 0 {
		c.Bus.ReconnectTimeWait = DefaultReconnectTimeWait
	}
	if c.Bus.MaxReconnectAttempts == nil {
		v := DefaultMaxReconnectAttempts
		c.Bus.MaxReconnectAttempts = &v
	}
	if c.Bus.PingInterval == 0 {
		c.Bus.PingInterval = DefaultPingInterval
	}
	if c.Bus.ConnectTimeout == 0 {
		c.Bus.ConnectTimeout = DefaultConnectTimeout
	}
	if c.GPIO.Driver == "" {
		c.GPIO.Driver = DriverAuto
	}
	if c.Dispatch.MaxInFlight == 0 {
		c.Dispatch.MaxInFlight = DefaultMaxInFlight
	}
	if c.Dispatch.DrainTimeout == 0 {
		c.Dispatch.DrainTimeout = DefaultDrainTimeout
	}
	if c.Dispatch.PulseShutdown == "" {
		c.Dispatch.PulseShutdown = ShutdownRestore
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Metrics.Host == "" {
		c.Metrics.Host = DefaultMetricsHost
	}
}

// Validate the given configuration, returning nil on ok,
// or a ConfigError describing all issues found.
func (c Config) Validate() error {
	var ae aerr.AggregateError
	switch c.Bus.Type {
	case BusTypeNATS, BusTypeMQTT, BusTypeLoopback:
	default:
		ae.Add(errors.Wrapf(ConfigError, "invalid bus type '%s'", c.Bus.Type))
	}
	if c.Bus.QoS < 0 || c.Bus.QoS > 2 {
		ae.Add(errors.Wrapf(ConfigError, "invalid qos %d", c.Bus.QoS))
	}
	switch c.GPIO.Driver {
	case DriverAuto, DriverSysfs, DriverPeriph, DriverSimulated:
	default:
		ae.Add(errors.Wrapf(ConfigError, "invalid gpio driver '%s'", c.GPIO.Driver))
	}
	switch c.Dispatch.PulseShutdown {
	case ShutdownRestore, ShutdownAbandon:
	default:
		ae.Add(errors.Wrapf(ConfigError, "invalid pulse_shutdown '%s'", c.Dispatch.PulseShutdown))
	}
	if c.Dispatch.MaxInFlight < 0 {
		ae.Add(errors.Wrapf(ConfigError, "invalid max_in_flight %d", c.Dispatch.MaxInFlight))
	}
	if _, err := c.PinSpecs(); err != nil {
		ae.Add(err)
	}
	if _, err := c.Routes(); err != nil {
		ae.Add(err)
	}
	if err := ae.AsError(); err != nil {
		if IsConfigError(err) {
			return err
		}
		return errors.Wrap(ConfigError, err.Error())
	}
	return nil
}

// PinSpecs converts the configured pins into PinSpecs, ordered by ID.
func (c Config) PinSpecs() ([]PinSpec, error) {
	ids := lo.Keys(c.GPIO.Pins)
	sort.Strings(ids)
	result := make([]PinSpec, 0, len(ids))
	for _, id := range ids {
		pc := c.GPIO.Pins[id]
		if pc.Number == nil {
			return nil, errors.Wrapf(ConfigError, "pin '%s' has no number", id)
		}
		mode, err := ParsePinMode(pc.Mode)
		if err != nil {
			return nil, errors.Wrapf(err, "pin '%s'", id)
		}
		pull := PullNone
		if pc.Pull != nil {
			if pull, err = ParsePull(*pc.Pull); err != nil {
				return nil, errors.Wrapf(err, "pin '%s'", id)
			}
		}
		result = append(result, PinSpec{
			ID:      id,
			Number:  *pc.Number,
			Mode:    mode,
			Pull:    pull,
			Initial: pc.Initial,
		})
	}
	return result, nil
}

// Routes converts the configured operations into OperationRoutes.
func (c Config) Routes() ([]OperationRoute, error) {
	result := make([]OperationRoute, 0, len(c.Operations))
	seen := make(map[string]struct{})
	for i, op := range c.Operations {
		subject := strings.TrimSpace(op.Subject)
		if subject == "" {
			return nil, errors.Wrapf(ConfigError, "operation %d has no subject", i)
		}
		if _, found := seen[subject]; found {
			return nil, errors.Wrapf(ConfigError, "duplicate subject '%s'", subject)
		}
		seen[subject] = struct{}{}
		typ := op.Type
		if typ == "" {
			typ = op.Operation
		}
		kind, err := ParseOperationKind(typ)
		if err != nil {
			return nil, errors.Wrapf(err, "subject '%s'", subject)
		}
		result = append(result, OperationRoute{
			Subject: subject,
			Kind:    kind,
			Queue:   op.Queue,
		})
	}
	return result, nil
}

// Seconds converts a configured number of seconds into a duration.
func Seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// StringList is a list of strings that can also be configured as a single string.
type StringList []string

// UnmarshalJSON accepts both a string and a list of strings.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = StringList{single}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return maskAny(err)
	}
	*l = list
	return nil
}

// UnmarshalYAML accepts both a string and a list of strings.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		*l = StringList{value.Value}
		return nil
	}
	var list []string
	if err := value.Decode(&list); err != nil {
		return maskAny(err)
	}
	*l = list
	return nil
}
