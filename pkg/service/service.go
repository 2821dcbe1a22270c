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

package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/semaphore"

	"github.com/necromancy/node/model"
	"github.com/necromancy/node/pkg/bus"
	"github.com/necromancy/node/pkg/service/bridge"
	"github.com/necromancy/node/pkg/service/registry"
	"github.com/necromancy/node/pkg/service/router"
	"github.com/necromancy/node/pkg/service/scheduler"
	"github.com/necromancy/node/pkg/service/trigger"
)

// Service is the dispatch loop of a node.
type Service interface {
	// Run the dispatch loop until the given context is cancelled.
	// Returns an error when the node cannot start.
	Run(ctx context.Context) error
	// Phase returns the current lifecycle state.
	Phase() Phase
	// Status returns a snapshot of the state of the node.
	Status() Status
}

// Status is a snapshot of the state of the node.
type Status struct {
	Phase         Phase     `json:"phase"`
	Driver        string    `json:"driver,omitempty"`
	Simulated     bool      `json:"simulated"`
	Pins          int       `json:"pins"`
	Subjects      int       `json:"subjects"`
	InFlight      int64     `json:"in_flight"`
	PendingPulses int       `json:"pending_pulses"`
	Handled       uint64    `json:"handled"`
	Dropped       uint64    `json:"dropped"`
	StartedAt     time.Time `json:"started_at"`
}

type Config struct {
	Pins   []model.PinSpec
	Routes []model.OperationRoute
	// Maximum number of messages handled concurrently
	MaxInFlight int
	// Maximum time to wait for in-flight messages during shutdown
	DrainTimeout time.Duration
	// What to do with pending pulses during shutdown
	PulseShutdown model.ShutdownPolicy
	// If set, pin changes are published on this subject
	StateSubject string
}

type Dependencies struct {
	Logger  zerolog.Logger
	Bridge  bridge.API
	Bus     bus.Connection
	Trigger trigger.Trigger
}

type service struct {
	Config
	Dependencies

	mutex     sync.Mutex
	phase     Phase
	draining  bool
	startedAt time.Time
	inFlight  sync.WaitGroup
	sem       *semaphore.Weighted
	acceptCtx context.Context
	handleCtx context.Context

	registry  *registry.Registry
	scheduler *scheduler.Scheduler
	router    *router.Router

	active  int64
	handled uint64
	dropped uint64
}

// NewService creates a Service instance and returns it.
func NewService(conf Config, deps Dependencies) (Service, error) {
	if deps.Bridge == nil {
		return nil, errors.New("bridge missing")
	}
	if deps.Bus == nil {
		return nil, errors.New("bus missing")
	}
	if deps.Trigger == nil {
		deps.Trigger = trigger.NewLoggingTrigger(nil, deps.Logger)
	}
	if conf.MaxInFlight <= 0 {
		conf.MaxInFlight = model.DefaultMaxInFlight
	}
	if conf.DrainTimeout <= 0 {
		conf.DrainTimeout = model.Seconds(model.DefaultDrainTimeout)
	}
	if conf.PulseShutdown == "" {
		conf.PulseShutdown = model.ShutdownRestore
	}
	deps.Logger = deps.Logger.With().Str("component", "service").Logger()
	return &service{
		Config:       conf,
		Dependencies: deps,
		phase:        PhaseStarting,
		sem:          semaphore.NewWeighted(int64(conf.MaxInFlight)),
	}, nil
}

// Run the dispatch loop until the given context is cancelled.
func (s *service) Run(ctx context.Context) error {
	log := s.Logger
	s.setPhase(PhaseStarting)
	s.mutex.Lock()
	s.startedAt = time.Now()
	s.mutex.Unlock()

	if err := s.start(); err != nil {
		log.Error().Err(err).Msg("Failed to start")
		s.setPhase(PhaseStopped)
		return err
	}

	// Stop announcing pin changes after shutdown
	stopAnnouncer := func() {}
	if s.StateSubject != "" {
		stopAnnouncer = newAnnouncer(s.StateSubject, s.Bus, log).Attach(s.registry)
	}

	acceptCtx, stopAccepting := context.WithCancel(context.Background())
	handleCtx, stopHandling := context.WithCancel(context.Background())
	defer stopAccepting()
	defer stopHandling()
	s.acceptCtx = acceptCtx
	s.handleCtx = handleCtx

	subs, err := s.subscribe()
	if err != nil {
		log.Error().Err(err).Msg("Failed to subscribe")
		s.setPhase(PhaseDraining)
		s.shutdown(subs, stopAccepting, stopHandling)
		stopAnnouncer()
		s.registry.Close()
		s.setPhase(PhaseStopped)
		return err
	}
	s.setPhase(PhaseSubscribed)

	s.setPhase(PhaseRunning)
	log.Info().
		Int("subjects", len(subs)).
		Int("pins", len(s.Pins)).
		Str("driver", s.registry.Mode()).
		Bool("simulated", s.registry.Simulated()).
		Msg("Node started, waiting for messages")
	<-ctx.Done()

	s.setPhase(PhaseDraining)
	log.Info().Msg("Draining")
	err = s.shutdown(subs, stopAccepting, stopHandling)
	stopAnnouncer()
	if closeErr := s.registry.Close(); closeErr != nil {
		err = multierr.Append(err, closeErr)
	}
	s.setPhase(PhaseStopped)
	if err != nil {
		log.Warn().Err(err).Msg("Shutdown completed with errors")
	} else {
		log.Info().Msg("Stopped")
	}
	return nil
}

// start builds the registry, scheduler and router.
// Hardware failures fall back to a virtual bridge, configuration
// errors are returned.
func (s *service) start() error {
	log := s.Logger
	reg, err := registry.New(s.Pins, s.Bridge, log)
	if err != nil && !model.IsConfigError(err) && !s.Bridge.Simulated() {
		if closeErr := s.Bridge.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Msg("Failed to close failing bridge")
		}
		s.Bridge = bridge.Fallback(s.Bridge.Name(), err, log)
		reg, err = registry.New(s.Pins, s.Bridge, log)
	}
	if err != nil {
		s.Bridge.Close()
		return errors.Wrap(err, "failed to initialize pins")
	}
	sched := scheduler.New(reg, log)
	rt, err := router.New(s.Routes, reg, sched, s.Trigger, s.Bus, log)
	if err != nil {
		sched.Close(model.ShutdownAbandon)
		reg.Close()
		return errors.Wrap(err, "failed to initialize routes")
	}
	s.mutex.Lock()
	s.registry, s.scheduler, s.router = reg, sched, rt
	s.mutex.Unlock()
	return nil
}

// subscribe registers interest in the subject of every route.
func (s *service) subscribe() ([]bus.Subscription, error) {
	subs := make([]bus.Subscription, 0, len(s.Routes))
	for _, route := range s.Routes {
		// A bus delivers a message to every matching subscription,
		// each delivery runs the operation of its own route.
		route := route
		sub, err := s.Bus.Subscribe(route.Subject, route.Queue, func(msg *bus.Message) {
			s.onMessage(route, msg)
		})
		if err != nil {
			return subs, errors.Wrapf(err, "failed to subscribe to '%s'", route.Subject)
		}
		s.Logger.Info().
			Str("subject", route.Subject).
			Str("type", string(route.Kind)).
			Str("queue", route.Queue).
			Msg("Subscribed")
		subs = append(subs, sub)
	}
	return subs, nil
}

// onMessage is called by the bus for every incoming message.
// Each message is handled in its own goroutine.
func (s *service) onMessage(route model.OperationRoute, msg *bus.Message) {
	if err := s.sem.Acquire(s.acceptCtx, 1); err != nil {
		s.drop(msg, "draining")
		return
	}
	s.mutex.Lock()
	if s.draining {
		s.mutex.Unlock()
		s.sem.Release(1)
		s.drop(msg, "draining")
		return
	}
	s.inFlight.Add(1)
	s.mutex.Unlock()

	inFlightGauge.Set(float64(atomic.AddInt64(&s.active, 1)))
	go func() {
		defer func() {
			inFlightGauge.Set(float64(atomic.AddInt64(&s.active, -1)))
			atomic.AddUint64(&s.handled, 1)
			s.sem.Release(1)
			s.inFlight.Done()
		}()
		s.router.HandleFor(s.handleCtx, route, msg)
	}()
}

// drop records a message that is not handled.
func (s *service) drop(msg *bus.Message, reason string) {
	atomic.AddUint64(&s.dropped, 1)
	droppedTotal.WithLabelValues(reason).Inc()
	s.Logger.Warn().
		Str("subject", msg.Subject).
		Str("reason", reason).
		Msg("Dropped message")
}

// shutdown stops accepting messages, waits for in-flight messages
// and closes the scheduler.
func (s *service) shutdown(subs []bus.Subscription, stopAccepting, stopHandling context.CancelFunc) error {
	var result error
	s.mutex.Lock()
	s.draining = true
	s.mutex.Unlock()
	stopAccepting()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			result = multierr.Append(result, err)
		}
	}

	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.DrainTimeout):
		s.Logger.Warn().
			Int64("in_flight", atomic.LoadInt64(&s.active)).
			Dur("timeout", s.DrainTimeout).
			Msg("Drain timeout expired")
		stopHandling()
	}

	if s.scheduler != nil {
		pending := s.scheduler.PendingCount()
		if err := s.scheduler.Close(s.PulseShutdown); err != nil {
			result = multierr.Append(result, err)
		}
		if pending > 0 {
			s.Logger.Info().
				Int("pending", pending).
				Str("policy", string(s.PulseShutdown)).
				Msg("Closed pending pulses")
		}
	}
	return result
}

// Status returns a snapshot of the state of the node.
func (s *service) Status() Status {
	s.mutex.Lock()
	st := Status{
		Phase:     s.phase,
		Pins:      len(s.Pins),
		Subjects:  len(s.Routes),
		StartedAt: s.startedAt,
	}
	reg, sched := s.registry, s.scheduler
	s.mutex.Unlock()

	if reg != nil {
		st.Driver = reg.Mode()
		st.Simulated = reg.Simulated()
	}
	if sched != nil {
		st.PendingPulses = sched.PendingCount()
	}
	st.InFlight = atomic.LoadInt64(&s.active)
	st.Handled = atomic.LoadUint64(&s.handled)
	st.Dropped = atomic.LoadUint64(&s.dropped)
	return st
}
