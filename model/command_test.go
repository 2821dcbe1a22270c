package model

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGpioCommand(t *testing.T) {
	cmd, err := ParseGpioCommand([]byte(`{"pin":"relay","action":"set","value":false}`))
	require.NoError(t, err)
	assert.Equal(t, GpioCommand{Pin: "relay", Action: ActionSet, Value: false}, cmd)

	cmd, err = ParseGpioCommand([]byte(`{"pin":"relay","action":"pulse"}`))
	require.NoError(t, err)
	assert.True(t, cmd.Value)
	assert.Equal(t, DefaultPulseDuration, cmd.Duration)

	cmd, err = ParseGpioCommand([]byte(`{"pin":"relay","action":"pulse","value":false,"duration":1.5}`))
	require.NoError(t, err)
	assert.False(t, cmd.Value)
	assert.Equal(t, 1500*time.Millisecond, cmd.Duration)

	cmd, err = ParseGpioCommand([]byte(`{"pin":"relay","action":"TOGGLE","duration":-4}`))
	require.NoError(t, err, "duration is ignored outside pulses")
	assert.Equal(t, ActionToggle, cmd.Action)
}

func TestParseGpioCommandErrors(t *testing.T) {
	tests := map[string]error{
		``:                                            MalformedPayloadError,
		`[]`:                                          MalformedPayloadError,
		`{"action":"get"}`:                            MalformedPayloadError,
		`{"pin":"","action":"get"}`:                   MalformedPayloadError,
		`{"pin":"a"}`:                                 MalformedPayloadError,
		`{"pin":"a","action":"set"}`:                  MalformedPayloadError,
		`{"pin":"a","action":"set","value":"yes"}`:    MalformedPayloadError,
		`{"pin":"a","action":"pulse","duration":0}`:   MalformedPayloadError,
		`{"pin":"a","action":"pulse","duration":1e9}`: MalformedPayloadError,
		`{"pin":"a","action":"blink"}`:                UnknownActionError,
	}
	for payload, cause := range tests {
		_, err := ParseGpioCommand([]byte(payload))
		assert.True(t, errors.Is(err, cause), "%q: got %v", payload, err)
	}
}

func TestParseServiceTriggerCommand(t *testing.T) {
	cmd, err := ParseServiceTriggerCommand([]byte(`{"service":"camera"}`))
	require.NoError(t, err)
	assert.Equal(t, ServiceTriggerCommand{Service: "camera", Action: DefaultServiceAction}, cmd)

	cmd, err = ParseServiceTriggerCommand([]byte(`{"service":"camera","action":"stop"}`))
	require.NoError(t, err)
	assert.Equal(t, "stop", cmd.Action)

	_, err = ParseServiceTriggerCommand([]byte(`{"action":"stop"}`))
	assert.True(t, errors.Is(err, MalformedPayloadError))
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "", ErrorKind(nil))
	assert.Equal(t, "unknown_pin", ErrorKind(errors.Wrapf(UnknownPinError, "pin '%s'", "x")))
	assert.Equal(t, "closed", ErrorKind(maskAny(SchedulerClosedError)))
	assert.Equal(t, "internal", ErrorKind(errors.New("boom")))
}

func TestParseOperationKind(t *testing.T) {
	for _, s := range []string{"gpio", "GPIO_CONTROL"} {
		kind, err := ParseOperationKind(s)
		require.NoError(t, err)
		assert.Equal(t, OperationGpioControl, kind)
	}
	kind, err := ParseOperationKind("service_trigger")
	require.NoError(t, err)
	assert.Equal(t, OperationServiceTrigger, kind)

	_, err = ParseOperationKind("")
	assert.True(t, IsConfigError(err))
}
