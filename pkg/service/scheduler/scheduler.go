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
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"

	"github.com/necromancy/node/model"
)

// PinWriter is the part of the pin registry used by the scheduler.
type PinWriter interface {
	// Swap sets the state of an output pin and returns its previous state.
	Swap(id string, value bool) (bool, error)
	// SetFrom sets the state of an output pin.
	SetFrom(id string, value bool, source model.PinEventSource) (bool, error)
}

// Scheduler executes pulses: a pin is set to a transient value and
// restored to its previous value once the duration has elapsed.
// A new pulse on a pin cancels and replaces the pending restore of that pin.
// Explicit set and toggle commands do not cancel a pending restore, so a
// restore firing later overwrites them.
//
// Pulses and restores of one pin are serialized by the slot of that pin,
// distinct pins are written in parallel. Lock order: slot, then mutex.
type Scheduler struct {
	log     zerolog.Logger
	pins    PinWriter
	mutex   sync.Mutex
	slots   map[string]*sync.Mutex
	pending map[string]*pendingPulse
	closed  bool
}

type pendingPulse struct {
	pin      string
	restore  bool
	deadline time.Time
	timer    *time.Timer
}

// New creates a scheduler that writes to the given pins.
func New(pins PinWriter, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		log:     log.With().Str("component", "scheduler").Logger(),
		pins:    pins,
		slots:   make(map[string]*sync.Mutex),
		pending: make(map[string]*pendingPulse),
	}
}

// slot returns the lock of the given pin. Must be called with mutex held.
func (s *Scheduler) slot(id string) *sync.Mutex {
	m, found := s.slots[id]
	if !found {
		m = &sync.Mutex{}
		s.slots[id] = m
	}
	return m
}

// Pulse sets the given pin to the given value now and schedules a restore
// of its current state after the given duration.
// Returns the state that will be restored.
func (s *Scheduler) Pulse(id string, value bool, duration time.Duration) (bool, error) {
	if duration <= 0 {
		return false, errors.Wrapf(model.MalformedPayloadError, "pulse duration must be positive, got %s", duration)
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return false, maskAny(model.SchedulerClosedError)
	}
	slot := s.slot(id)
	s.mutex.Unlock()

	slot.Lock()
	defer slot.Unlock()

	// Close may have started while waiting for the slot
	s.mutex.Lock()
	closed := s.closed
	s.mutex.Unlock()
	if closed {
		return false, maskAny(model.SchedulerClosedError)
	}

	prev, err := s.pins.Swap(id, value)
	if err != nil {
		return false, err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if old, found := s.pending[id]; found {
		old.timer.Stop()
		supersededTotal.Inc()
		s.log.Debug().
			Str("pin", id).
			Bool("restore", old.restore).
			Msg("Pending restore superseded")
	}
	p := &pendingPulse{
		pin:      id,
		restore:  prev,
		deadline: time.Now().Add(duration),
	}
	// When Close started during the swap, it handles this pulse once
	// it acquires the slot.
	p.timer = time.AfterFunc(duration, func() { s.fire(p) })
	s.pending[id] = p
	pulsesTotal.Inc()
	pendingGauge.Set(float64(len(s.pending)))
	return prev, nil
}

// fire restores the pin of the given pulse, unless the pulse has been
// superseded or the scheduler is closed.
func (s *Scheduler) fire(p *pendingPulse) {
	s.mutex.Lock()
	slot := s.slot(p.pin)
	s.mutex.Unlock()

	slot.Lock()
	defer slot.Unlock()

	s.mutex.Lock()
	if s.closed || s.pending[p.pin] != p {
		s.mutex.Unlock()
		return
	}
	delete(s.pending, p.pin)
	pendingGauge.Set(float64(len(s.pending)))
	s.mutex.Unlock()

	s.restore(p)
}

// restore the state of the pin of the given pulse.
// Errors are logged only.
func (s *Scheduler) restore(p *pendingPulse) error {
	if _, err := s.pins.SetFrom(p.pin, p.restore, model.PinEventRestore); err != nil {
		restoreErrorsTotal.Inc()
		s.log.Warn().Err(err).
			Str("pin", p.pin).
			Bool("value", p.restore).
			Msg("Failed to restore pin after pulse")
		return err
	}
	restoresTotal.Inc()
	s.log.Debug().
		Str("pin", p.pin).
		Bool("value", p.restore).
		Msg("Restored pin after pulse")
	return nil
}

// Pending returns the deadline of the pending restore of the given pin.
func (s *Scheduler) Pending(id string) (time.Time, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if p, found := s.pending[id]; found {
		return p.deadline, true
	}
	return time.Time{}, false
}

// PendingCount returns the number of pending restores.
func (s *Scheduler) PendingCount() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.pending)
}

// Close stops all pending restores. With the restore policy, the pins are
// restored immediately, with the abandon policy they keep their current
// state. Once Close returns, the scheduler never writes to its pins again.
func (s *Scheduler) Close(policy model.ShutdownPolicy) error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true
	slots := make(map[string]*sync.Mutex, len(s.slots))
	for id, slot := range s.slots {
		slots[id] = slot
	}
	s.mutex.Unlock()

	var result error
	for id, slot := range slots {
		// Wait for a pulse or restore in progress on this pin
		slot.Lock()
		s.mutex.Lock()
		p, found := s.pending[id]
		delete(s.pending, id)
		pendingGauge.Set(float64(len(s.pending)))
		s.mutex.Unlock()
		if found {
			p.timer.Stop()
			if policy == model.ShutdownRestore {
				if err := s.restore(p); err != nil {
					result = multierr.Append(result, err)
				}
			} else {
				abandonedTotal.Inc()
				s.log.Info().Str("pin", id).Msg("Abandoned pending restore")
			}
		}
		slot.Unlock()
	}
	return result
}
