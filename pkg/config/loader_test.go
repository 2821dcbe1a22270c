//    Copyright 2026 The Necromancy Authors
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/necromancy/node/model"
)

const jsonConfig = `{
  "nats": {
    "servers": "nats://hub.local:4222",
    "client_name": "kitchen"
  },
  "operations": [
    {"subject": "kitchen.gpio", "operation": "gpio_control"},
    {"subject": "kitchen.service", "type": "service", "queue": "kitchens"}
  ],
  "gpio": {
    "enabled": true,
    "pins": {
      "relay": {"number": 17, "mode": "OUT", "initial": true},
      "door": {"number": 22, "mode": "IN", "pull": "UP"},
      "fan": {"number": 23}
    }
  },
  "logging": {"level": "DEBUG"}
}`

const yamlConfig = `
bus:
  type: mqtt
  servers:
    - tcp://${TEST_BROKER_HOST}:1883
  username: node
  password: ${TEST_BROKER_PASSWORD}
  qos: 1
operations:
  - subject: garage/gpio
    type: gpio
gpio:
  driver: simulated
  pins:
    door:
      number: 5
      mode: OUT
dispatch:
  max_in_flight: 8
  drain_timeout: 2.5
  pulse_shutdown: abandon
  state_subject: garage/state
metrics:
  port: 9100
`

func TestParseJSON(t *testing.T) {
	cfg, err := Parse([]byte(jsonConfig), FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, model.BusTypeNATS, cfg.Bus.Type)
	assert.Equal(t, model.StringList{"nats://hub.local:4222"}, cfg.Bus.Servers)
	assert.Equal(t, "kitchen", cfg.Bus.ClientName)
	assert.Equal(t, model.DefaultReconnectTimeWait, cfg.Bus.ReconnectTimeWait)
	require.NotNil(t, cfg.Bus.MaxReconnectAttempts)
	assert.Equal(t, -1, *cfg.Bus.MaxReconnectAttempts)
	assert.Equal(t, model.DriverAuto, cfg.GPIO.Driver)
	assert.Equal(t, model.ShutdownRestore, cfg.Dispatch.PulseShutdown)
	assert.Equal(t, 0, cfg.Metrics.Port)

	routes, err := cfg.Routes()
	require.NoError(t, err)
	assert.Equal(t, []model.OperationRoute{
		{Subject: "kitchen.gpio", Kind: model.OperationGpioControl},
		{Subject: "kitchen.service", Kind: model.OperationServiceTrigger, Queue: "kitchens"},
	}, routes)

	pins, err := cfg.PinSpecs()
	require.NoError(t, err)
	require.Len(t, pins, 3)
	assert.Equal(t, "door", pins[0].ID)
	assert.Equal(t, model.PinModeInput, pins[0].Mode)
	assert.Equal(t, model.PullUp, pins[0].Pull)
	assert.Equal(t, "fan", pins[1].ID)
	assert.Equal(t, model.PinModeOutput, pins[1].Mode)
	assert.False(t, pins[1].InitialState())
	assert.True(t, pins[2].InitialState())
}

func TestParseYAML(t *testing.T) {
	t.Setenv("TEST_BROKER_HOST", "broker.lan")
	t.Setenv("TEST_BROKER_PASSWORD", "s3cret")

	cfg, err := Parse([]byte(yamlConfig), FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, model.BusTypeMQTT, cfg.Bus.Type)
	assert.Equal(t, model.StringList{"tcp://broker.lan:1883"}, cfg.Bus.Servers)
	assert.Equal(t, "s3cret", cfg.Bus.Password)
	assert.Equal(t, 1, cfg.Bus.QoS)
	assert.Equal(t, model.DriverSimulated, cfg.GPIO.Driver)
	assert.Equal(t, 8, cfg.Dispatch.MaxInFlight)
	assert.Equal(t, 2.5, cfg.Dispatch.DrainTimeout)
	assert.Equal(t, model.ShutdownAbandon, cfg.Dispatch.PulseShutdown)
	assert.Equal(t, "garage/state", cfg.Dispatch.StateSubject)
	assert.Equal(t, 9100, cfg.Metrics.Port)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"syntax":         `{"operations": [`,
		"bad type":       `{"operations": [{"subject": "a", "type": "reboot"}]}`,
		"no subject":     `{"operations": [{"type": "gpio"}]}`,
		"dup subject":    `{"operations": [{"subject": "a", "type": "gpio"}, {"subject": "a", "type": "service"}]}`,
		"no number":      `{"gpio": {"pins": {"a": {"mode": "OUT"}}}}`,
		"bad mode":       `{"gpio": {"pins": {"a": {"number": 1, "mode": "PWM"}}}}`,
		"bad pull":       `{"gpio": {"pins": {"a": {"number": 1, "mode": "IN", "pull": "LEFT"}}}}`,
		"bad driver":     `{"gpio": {"driver": "magic"}}`,
		"bad bus":        `{"bus": {"type": "smoke-signals"}}`,
		"bad policy":     `{"dispatch": {"pulse_shutdown": "explode"}}`,
		"multiple fails": `{"bus": {"type": "x"}, "gpio": {"driver": "y"}}`,
	}
	for name, data := range tests {
		_, err := Parse([]byte(data), FormatJSON)
		require.Error(t, err, name)
		assert.True(t, model.IsConfigError(err), "%s: %v", name, err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.yml")
	require.NoError(t, os.WriteFile(path, []byte("operations:\n  - subject: a.b\n    type: gpio\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Operations, 1)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.True(t, model.IsConfigError(err))
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFromPath("/etc/node.YAML"))
	assert.Equal(t, FormatYAML, FormatFromPath("node.yml"))
	assert.Equal(t, FormatJSON, FormatFromPath("config.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("config"))
}

func TestInterpolateEnv(t *testing.T) {
	t.Setenv("NODE_TEST_VAR", "value")
	assert.Equal(t, "a-value-b", interpolateEnv("a-${NODE_TEST_VAR}-b"))
	assert.Equal(t, "${NODE_TEST_UNSET_VAR}", interpolateEnv("${NODE_TEST_UNSET_VAR}"))
}
