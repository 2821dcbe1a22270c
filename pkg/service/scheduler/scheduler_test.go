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

package scheduler

import (
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/necromancy/node/model"
	"github.com/necromancy/node/pkg/service/bridge"
	"github.com/necromancy/node/pkg/service/registry"
)

func newTestScheduler(t *testing.T) (*Scheduler, *registry.Registry) {
	specs := []model.PinSpec{
		{ID: "relay", Number: 17, Mode: model.PinModeOutput},
		{ID: "button", Number: 22, Mode: model.PinModeInput},
	}
	r, err := registry.New(specs, bridge.NewVirtualBridge(), zerolog.Nop())
	require.NoError(t, err)
	s := New(r, zerolog.Nop())
	t.Cleanup(func() {
		s.Close(model.ShutdownAbandon)
		r.Close()
	})
	return s, r
}

func pinValue(t *testing.T, r *registry.Registry, id string) bool {
	v, err := r.Get(id)
	require.NoError(t, err)
	return v
}

func TestPulseRestores(t *testing.T) {
	s, r := newTestScheduler(t)

	prev, err := s.Pulse("relay", true, 30*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, prev)
	assert.True(t, pinValue(t, r, "relay"))
	_, pending := s.Pending("relay")
	assert.True(t, pending)

	assert.Eventually(t, func() bool {
		return !pinValue(t, r, "relay")
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return s.PendingCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestLastPulseWins(t *testing.T) {
	s, r := newTestScheduler(t)

	_, err := s.Pulse("relay", true, 2*time.Second)
	require.NoError(t, err)
	first, _ := s.Pending("relay")

	// The second pulse captures the state set by the first one
	prev, err := s.Pulse("relay", false, 30*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, prev)
	second, _ := s.Pending("relay")
	assert.True(t, second.Before(first))

	assert.Eventually(t, func() bool {
		return s.PendingCount() == 0 && pinValue(t, r, "relay")
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.True(t, pinValue(t, r, "relay"))
}

func TestExplicitSetDoesNotCancelRestore(t *testing.T) {
	s, r := newTestScheduler(t)

	_, err := s.Pulse("relay", true, 50*time.Millisecond)
	require.NoError(t, err)
	_, err = r.Set("relay", true)
	require.NoError(t, err)
	_, pending := s.Pending("relay")
	assert.True(t, pending)

	assert.Eventually(t, func() bool {
		return !pinValue(t, r, "relay")
	}, time.Second, 5*time.Millisecond)
}

func TestPulseErrors(t *testing.T) {
	s, _ := newTestScheduler(t)

	_, err := s.Pulse("relay", true, 0)
	assert.True(t, errors.Is(err, model.MalformedPayloadError))
	_, err = s.Pulse("nope", true, time.Second)
	assert.True(t, errors.Is(err, model.UnknownPinError))
	_, err = s.Pulse("button", true, time.Second)
	assert.True(t, errors.Is(err, model.WrongModeError))
	assert.Equal(t, 0, s.PendingCount())
}

func TestCloseRestore(t *testing.T) {
	s, r := newTestScheduler(t)

	_, err := s.Pulse("relay", true, time.Hour)
	require.NoError(t, err)
	require.NoError(t, s.Close(model.ShutdownRestore))
	assert.False(t, pinValue(t, r, "relay"))
	assert.Equal(t, 0, s.PendingCount())

	_, err = s.Pulse("relay", true, time.Second)
	assert.True(t, errors.Is(err, model.SchedulerClosedError))
}

func TestCloseAbandon(t *testing.T) {
	s, r := newTestScheduler(t)

	_, err := s.Pulse("relay", true, 20*time.Millisecond)
	require.NoError(t, err)
	require.NoError(t, s.Close(model.ShutdownAbandon))
	time.Sleep(60 * time.Millisecond)
	assert.True(t, pinValue(t, r, "relay"))
}

// flakyPins fails every restore.
type flakyPins struct {
	mutex    sync.Mutex
	restores int
}

func (f *flakyPins) Swap(id string, value bool) (bool, error) {
	return !value, nil
}

func (f *flakyPins) SetFrom(id string, value bool, source model.PinEventSource) (bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.restores++
	return false, errors.Wrapf(model.UnknownPinError, "pin '%s'", id)
}

func (f *flakyPins) count() int {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.restores
}

func TestRestoreFailureIsSwallowed(t *testing.T) {
	pins := &flakyPins{}
	s := New(pins, zerolog.Nop())

	_, err := s.Pulse("gone", true, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return pins.count() == 1 && s.PendingCount() == 0
	}, time.Second, 5*time.Millisecond)

	// The scheduler keeps working
	_, err = s.Pulse("gone", true, time.Hour)
	require.NoError(t, err)
	assert.Error(t, s.Close(model.ShutdownRestore))
}

// slowPins blocks every write of the pin "slow" until released.
type slowPins struct {
	release chan struct{}
	entered chan struct{}
}

func (p *slowPins) wait(id string) {
	if id == "slow" {
		p.entered <- struct{}{}
		<-p.release
	}
}

func (p *slowPins) Swap(id string, value bool) (bool, error) {
	p.wait(id)
	return !value, nil
}

func (p *slowPins) SetFrom(id string, value bool, source model.PinEventSource) (bool, error) {
	p.wait(id)
	return value, nil
}

func TestDistinctPinsPulseInParallel(t *testing.T) {
	pins := &slowPins{release: make(chan struct{}), entered: make(chan struct{}, 1)}
	s := New(pins, zerolog.Nop())

	slowDone := make(chan error, 1)
	go func() {
		_, err := s.Pulse("slow", true, time.Hour)
		slowDone <- err
	}()
	<-pins.entered

	// The slow write is in progress, other pins are not held up
	fastDone := make(chan error, 1)
	go func() {
		_, err := s.Pulse("fast", true, time.Hour)
		fastDone <- err
	}()
	select {
	case err := <-fastDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pulse on another pin blocked by a slow write")
	}
	_, pending := s.Pending("fast")
	assert.True(t, pending)

	close(pins.release)
	require.NoError(t, <-slowDone)
	assert.Equal(t, 2, s.PendingCount())
	require.NoError(t, s.Close(model.ShutdownAbandon))
	assert.Equal(t, 0, s.PendingCount())
}
