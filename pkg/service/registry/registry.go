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
	"sort"
	"sync"
	"sync/atomic"

	"github.com/mattn/go-pubsub"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/necromancy/node/model"
	"github.com/necromancy/node/pkg/service/bridge"
)

// Registry owns the configured pins and their current logical state.
// Access to a single pin is serialized, distinct pins are independent.
type Registry struct {
	log    zerolog.Logger
	bridge bridge.API
	// Immutable after New
	pins   map[string]*pin
	specs  []model.PinSpec
	events *pubsub.PubSub
	closed atomic.Bool

	subMutex  sync.Mutex
	subs      map[int]func(model.PinEvent)
	lastSubID int
}

type pin struct {
	mutex  sync.Mutex
	spec   model.PinSpec
	state  bool
	input  bridge.InputPin
	output bridge.OutputPin
}

// New validates the given pins and opens them on the given bridge.
// Returns a ConfigError for invalid pin sets. Failures of the bridge are
// returned as is, so the caller can fall back to a virtual bridge.
func New(specs []model.PinSpec, api bridge.API, log zerolog.Logger) (*Registry, error) {
	if err := validate(specs); err != nil {
		return nil, err
	}
	r := &Registry{
		log:    log.With().Str("component", "registry").Logger(),
		bridge: api,
		pins:   make(map[string]*pin, len(specs)),
		specs:  append([]model.PinSpec(nil), specs...),
		events: pubsub.New(),
		subs:   make(map[int]func(model.PinEvent)),
	}
	r.events.Sub(r.dispatch)
	sort.Slice(r.specs, func(i, j int) bool { return r.specs[i].ID < r.specs[j].ID })

	for _, spec := range r.specs {
		p := &pin{spec: spec}
		if spec.IsOutput() {
			out, err := api.Output(spec.Number, spec.InitialState())
			if err != nil {
				r.events.Close()
				return nil, errors.Wrapf(err, "failed to open output pin '%s' (%d)", spec.ID, spec.Number)
			}
			p.output = out
			p.state = spec.InitialState()
		} else {
			in, err := api.Input(spec.Number, spec.Pull)
			if err != nil {
				r.events.Close()
				return nil, errors.Wrapf(err, "failed to open input pin '%s' (%d)", spec.ID, spec.Number)
			}
			p.input = in
			if v, err := in.Read(); err == nil {
				p.state = v
			}
		}
		r.pins[spec.ID] = p
		pinStateGauge.WithLabelValues(spec.ID).Set(boolToFloat(p.state))
		r.log.Debug().
			Str("pin", spec.ID).
			Int("number", spec.Number).
			Str("mode", string(spec.Mode)).
			Bool("value", p.state).
			Msg("Pin opened")
	}
	for _, spec := range r.specs {
		r.publish(spec.ID, r.pins[spec.ID].state, model.PinEventInit)
	}
	return r, nil
}

// validate a set of pin specifications.
func validate(specs []model.PinSpec) error {
	ids := make(map[string]struct{}, len(specs))
	numbers := make(map[int]string, len(specs))
	for _, spec := range specs {
		if spec.ID == "" {
			return errors.Wrap(model.ConfigError, "pin without identifier")
		}
		if _, found := ids[spec.ID]; found {
			return errors.Wrapf(model.ConfigError, "duplicate pin identifier '%s'", spec.ID)
		}
		ids[spec.ID] = struct{}{}
		if spec.Number < 0 {
			return errors.Wrapf(model.ConfigError, "pin '%s' has invalid number %d", spec.ID, spec.Number)
		}
		if other, found := numbers[spec.Number]; found {
			return errors.Wrapf(model.ConfigError, "pins '%s' and '%s' share line number %d", other, spec.ID, spec.Number)
		}
		numbers[spec.Number] = spec.ID
		switch spec.Mode {
		case model.PinModeOutput:
		case model.PinModeInput:
			if spec.Initial != nil {
				return errors.Wrapf(model.ConfigError, "input pin '%s' cannot have an initial value", spec.ID)
			}
		default:
			return errors.Wrapf(model.ConfigError, "pin '%s' has invalid mode '%s'", spec.ID, spec.Mode)
		}
		switch spec.Pull {
		case "", model.PullNone, model.PullUp, model.PullDown:
		default:
			return errors.Wrapf(model.ConfigError, "pin '%s' has invalid pull '%s'", spec.ID, spec.Pull)
		}
	}
	return nil
}

// Mode returns the name of the driver in use.
func (r *Registry) Mode() string {
	return r.bridge.Name()
}

// Simulated returns true when no hardware is driven.
func (r *Registry) Simulated() bool {
	return r.bridge.Simulated()
}

// Pins returns the specifications of all pins, ordered by identifier.
func (r *Registry) Pins() []model.PinSpec {
	return append([]model.PinSpec(nil), r.specs...)
}

// acquire looks up and locks the pin with given identifier.
// On success the caller must unlock the pin.
func (r *Registry) acquire(id string) (*pin, error) {
	p, found := r.pins[id]
	if !found {
		return nil, errors.Wrapf(model.UnknownPinError, "pin '%s'", id)
	}
	p.mutex.Lock()
	if r.closed.Load() {
		p.mutex.Unlock()
		return nil, errors.Wrapf(model.RegistryClosedError, "pin '%s'", id)
	}
	return p, nil
}

// write the given value to the pin. Pin must be locked.
func (r *Registry) write(p *pin, value bool, source model.PinEventSource) error {
	if !p.spec.IsOutput() {
		return errors.Wrapf(model.WrongModeError, "pin '%s' is not an output", p.spec.ID)
	}
	if err := p.output.Write(value); err != nil {
		writeErrorsTotal.WithLabelValues(p.spec.ID).Inc()
		return errors.Wrapf(err, "failed to write pin '%s'", p.spec.ID)
	}
	p.state = value
	writesTotal.WithLabelValues(p.spec.ID, string(source)).Inc()
	pinStateGauge.WithLabelValues(p.spec.ID).Set(boolToFloat(value))
	r.publish(p.spec.ID, value, source)
	return nil
}

// Set the state of an output pin.
// Returns the new state.
func (r *Registry) Set(id string, value bool) (bool, error) {
	return r.SetFrom(id, value, model.PinEventSet)
}

// SetFrom sets the state of an output pin, recording the given source
// in the change event.
func (r *Registry) SetFrom(id string, value bool, source model.PinEventSource) (bool, error) {
	p, err := r.acquire(id)
	if err != nil {
		return false, err
	}
	defer p.mutex.Unlock()
	if err := r.write(p, value, source); err != nil {
		return false, err
	}
	return value, nil
}

// Toggle inverts the state of an output pin.
// Returns the new state.
func (r *Registry) Toggle(id string) (bool, error) {
	p, err := r.acquire(id)
	if err != nil {
		return false, err
	}
	defer p.mutex.Unlock()
	value := !p.state
	if err := r.write(p, value, model.PinEventToggle); err != nil {
		return false, err
	}
	return value, nil
}

// Swap sets the state of an output pin and returns the state it had
// right before.
func (r *Registry) Swap(id string, value bool) (bool, error) {
	p, err := r.acquire(id)
	if err != nil {
		return false, err
	}
	defer p.mutex.Unlock()
	prev := p.state
	if err := r.write(p, value, model.PinEventPulse); err != nil {
		return false, err
	}
	return prev, nil
}

// Get returns the current state of a pin.
// Input pins are read from the bridge.
func (r *Registry) Get(id string) (bool, error) {
	p, err := r.acquire(id)
	if err != nil {
		return false, err
	}
	defer p.mutex.Unlock()
	if p.spec.IsOutput() {
		return p.state, nil
	}
	value, err := p.input.Read()
	if err != nil {
		readErrorsTotal.WithLabelValues(id).Inc()
		return false, errors.Wrapf(err, "failed to read pin '%s'", id)
	}
	if value != p.state {
		p.state = value
		pinStateGauge.WithLabelValues(id).Set(boolToFloat(value))
		r.publish(id, value, model.PinEventRead)
	}
	return value, nil
}

// Subscribe registers a callback that is invoked for every pin change.
// Callbacks are invoked asynchronously.
// Call the returned function to unsubscribe.
func (r *Registry) Subscribe(cb func(model.PinEvent)) func() {
	r.subMutex.Lock()
	defer r.subMutex.Unlock()
	r.lastSubID++
	id := r.lastSubID
	r.subs[id] = cb
	return func() {
		r.subMutex.Lock()
		defer r.subMutex.Unlock()
		delete(r.subs, id)
	}
}

// dispatch is the single pubsub subscriber of the registry.
// pubsub identifies subscribers by function, so callbacks are kept here.
func (r *Registry) dispatch(evt model.PinEvent) {
	r.subMutex.Lock()
	cbs := make([]func(model.PinEvent), 0, len(r.subs))
	for _, cb := range r.subs {
		cbs = append(cbs, cb)
	}
	r.subMutex.Unlock()
	for _, cb := range cbs {
		cb(evt)
	}
}

func (r *Registry) publish(id string, value bool, source model.PinEventSource) {
	r.events.Pub(model.PinEvent{
		Pin:    id,
		Value:  value,
		Source: source,
	})
}

// Close the registry and release all pins.
// All operations fail with a RegistryClosedError afterwards.
func (r *Registry) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	// Wait for operations in progress
	for _, p := range r.pins {
		p.mutex.Lock()
		p.mutex.Unlock()
	}
	// No pin can publish anymore, stop the event dispatcher
	r.events.Close()
	r.log.Debug().Int("pins", len(r.pins)).Msg("Releasing pins")
	if err := r.bridge.Close(); err != nil {
		return errors.Wrap(err, "failed to close bridge")
	}
	return nil
}

func boolToFloat(v bool) float64 {
	if v {
		return 1
	}
	return 0
}
