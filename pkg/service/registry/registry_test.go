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

package registry

import (
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/necromancy/node/model"
	"github.com/necromancy/node/pkg/service/bridge"
)

func boolPtr(v bool) *bool { return &v }

func testSpecs() []model.PinSpec {
	return []model.PinSpec{
		{ID: "relay", Number: 17, Mode: model.PinModeOutput},
		{ID: "led", Number: 27, Mode: model.PinModeOutput, Initial: boolPtr(true)},
		{ID: "button", Number: 22, Mode: model.PinModeInput, Pull: model.PullUp},
	}
}

func newTestRegistry(t *testing.T) (*Registry, *bridge.VirtualBridge) {
	b := bridge.NewVirtualBridge()
	r, err := New(testSpecs(), b, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r, b
}

func TestNewRejectsInvalidPins(t *testing.T) {
	tests := []struct {
		name  string
		specs []model.PinSpec
	}{
		{"duplicate id", []model.PinSpec{
			{ID: "a", Number: 1, Mode: model.PinModeOutput},
			{ID: "a", Number: 2, Mode: model.PinModeOutput},
		}},
		{"duplicate number", []model.PinSpec{
			{ID: "a", Number: 1, Mode: model.PinModeOutput},
			{ID: "b", Number: 1, Mode: model.PinModeInput},
		}},
		{"input with initial", []model.PinSpec{
			{ID: "a", Number: 1, Mode: model.PinModeInput, Initial: boolPtr(false)},
		}},
		{"negative number", []model.PinSpec{
			{ID: "a", Number: -1, Mode: model.PinModeOutput},
		}},
		{"unknown mode", []model.PinSpec{
			{ID: "a", Number: 1, Mode: "PWM"},
		}},
		{"unknown pull", []model.PinSpec{
			{ID: "a", Number: 1, Mode: model.PinModeInput, Pull: "SIDEWAYS"},
		}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := New(test.specs, bridge.NewVirtualBridge(), zerolog.Nop())
			require.Error(t, err)
			assert.True(t, model.IsConfigError(err), "got %v", err)
		})
	}
}

func TestInitialState(t *testing.T) {
	r, b := newTestRegistry(t)

	v, err := r.Get("relay")
	require.NoError(t, err)
	assert.False(t, v)

	v, err = r.Get("led")
	require.NoError(t, err)
	assert.True(t, v)
	level, _ := b.Level(27)
	assert.True(t, level)

	assert.Equal(t, "simulated", r.Mode())
	assert.True(t, r.Simulated())
	require.Len(t, r.Pins(), 3)
	assert.Equal(t, "button", r.Pins()[0].ID)
}

func TestSetToggleGet(t *testing.T) {
	r, b := newTestRegistry(t)

	v, err := r.Set("relay", true)
	require.NoError(t, err)
	assert.True(t, v)
	level, _ := b.Level(17)
	assert.True(t, level)

	v, err = r.Toggle("relay")
	require.NoError(t, err)
	assert.False(t, v)

	v, err = r.Get("relay")
	require.NoError(t, err)
	assert.False(t, v)

	prev, err := r.Swap("relay", true)
	require.NoError(t, err)
	assert.False(t, prev)
	v, _ = r.Get("relay")
	assert.True(t, v)
}

func TestErrors(t *testing.T) {
	r, _ := newTestRegistry(t)

	_, err := r.Set("nope", true)
	assert.True(t, errors.Is(err, model.UnknownPinError))
	_, err = r.Get("nope")
	assert.True(t, errors.Is(err, model.UnknownPinError))
	_, err = r.Toggle("nope")
	assert.True(t, errors.Is(err, model.UnknownPinError))

	_, err = r.Set("button", true)
	assert.True(t, errors.Is(err, model.WrongModeError))
	_, err = r.Toggle("button")
	assert.True(t, errors.Is(err, model.WrongModeError))
	_, err = r.Swap("button", true)
	assert.True(t, errors.Is(err, model.WrongModeError))
}

func TestInputFollowsDrivenValue(t *testing.T) {
	r, b := newTestRegistry(t)

	v, err := r.Get("button")
	require.NoError(t, err)
	assert.False(t, v)

	require.NoError(t, b.DriveInput(22, true))
	v, err = r.Get("button")
	require.NoError(t, err)
	assert.True(t, v)
}

func TestConcurrentSetDistinctPins(t *testing.T) {
	specs := make([]model.PinSpec, 0, 8)
	for i := 0; i < 8; i++ {
		specs = append(specs, model.PinSpec{ID: fmt.Sprintf("p%d", i), Number: i, Mode: model.PinModeOutput})
	}
	r, err := New(specs, bridge.NewVirtualBridge(), zerolog.Nop())
	require.NoError(t, err)
	defer r.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Set(fmt.Sprintf("p%d", i), i%2 == 0)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	for i := 0; i < 8; i++ {
		v, err := r.Get(fmt.Sprintf("p%d", i))
		require.NoError(t, err)
		assert.Equal(t, i%2 == 0, v)
	}
}

func TestConcurrentTogglesSamePin(t *testing.T) {
	r, _ := newTestRegistry(t)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.Toggle("relay")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	// An even number of toggles restores the initial state
	v, err := r.Get("relay")
	require.NoError(t, err)
	assert.False(t, v)
}

func TestSubscribe(t *testing.T) {
	r, _ := newTestRegistry(t)

	var mutex sync.Mutex
	var events []model.PinEvent
	cancel := r.Subscribe(func(evt model.PinEvent) {
		mutex.Lock()
		defer mutex.Unlock()
		events = append(events, evt)
	})
	defer cancel()

	_, err := r.Set("relay", true)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		for _, evt := range events {
			if evt.Pin == "relay" && evt.Value && evt.Source == model.PinEventSet {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribeCancelIsPerSubscriber(t *testing.T) {
	r, _ := newTestRegistry(t)

	var first, second int32
	var mutex sync.Mutex
	cancelFirst := r.Subscribe(func(evt model.PinEvent) {
		mutex.Lock()
		defer mutex.Unlock()
		first++
	})
	cancelSecond := r.Subscribe(func(evt model.PinEvent) {
		mutex.Lock()
		defer mutex.Unlock()
		second++
	})
	defer cancelSecond()
	cancelFirst()

	_, err := r.Set("relay", true)
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		mutex.Lock()
		defer mutex.Unlock()
		return second > 0
	}, time.Second, 10*time.Millisecond)
	mutex.Lock()
	defer mutex.Unlock()
	assert.Equal(t, int32(0), first)
}

func TestClose(t *testing.T) {
	b := bridge.NewVirtualBridge()
	r, err := New(testSpecs(), b, zerolog.Nop())
	require.NoError(t, err)

	require.NoError(t, r.Close())
	_, err = r.Set("relay", true)
	assert.True(t, errors.Is(err, model.RegistryClosedError))
	_, err = r.Get("led")
	assert.True(t, errors.Is(err, model.RegistryClosedError))
	_, found := b.Level(17)
	assert.False(t, found, "lines must be released")

	// Closing twice is harmless
	assert.NoError(t, r.Close())
}

type failingBridge struct {
	*bridge.VirtualBridge
}

func (failingBridge) Name() string    { return "sysfs" }
func (failingBridge) Simulated() bool { return false }
func (failingBridge) Output(int, bool) (bridge.OutputPin, error) {
	return nil, errors.New("permission denied")
}

func TestNewReportsBridgeFailure(t *testing.T) {
	_, err := New(testSpecs(), failingBridge{bridge.NewVirtualBridge()}, zerolog.Nop())
	require.Error(t, err)
	assert.False(t, model.IsConfigError(err))
}

func TestCloseStopsEventDispatcher(t *testing.T) {
	baseline := runtime.NumGoroutine()
	for i := 0; i < 50; i++ {
		r, err := New(testSpecs(), bridge.NewVirtualBridge(), zerolog.Nop())
		require.NoError(t, err)
		require.NoError(t, r.Close())

		_, err = New(testSpecs(), failingBridge{bridge.NewVirtualBridge()}, zerolog.Nop())
		require.Error(t, err)
	}
	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= baseline+10
	}, 2*time.Second, 10*time.Millisecond)
}
