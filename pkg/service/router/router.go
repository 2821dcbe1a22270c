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

package router

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/necromancy/node/model"
	"github.com/necromancy/node/pkg/bus"
	"github.com/necromancy/node/pkg/service/trigger"
)

// PinRegistry is the part of the pin registry used by the router.
type PinRegistry interface {
	Set(id string, value bool) (bool, error)
	Toggle(id string) (bool, error)
	Get(id string) (bool, error)
}

// PulseScheduler is the part of the action scheduler used by the router.
type PulseScheduler interface {
	Pulse(id string, value bool, duration time.Duration) (bool, error)
}

// Result describes the outcome of a routed message.
type Result struct {
	Subject string
	Kind    model.OperationKind
	// GPIO operations
	Pin      string
	Action   model.Action
	Value    bool
	Previous bool
	// Service triggers
	Service       string
	ServiceAction string
	// Set when a reply was published
	Replied bool
}

// Router maps subjects onto operations and dispatches them.
type Router struct {
	log       zerolog.Logger
	routes    []model.OperationRoute
	exact     map[string]model.OperationRoute
	pins      PinRegistry
	pulses    PulseScheduler
	trigger   trigger.Trigger
	publisher bus.Publisher
}

// New creates a router for the given routes.
// Returns a ConfigError when a route has an empty or duplicate subject,
// or an unknown kind.
func New(routes []model.OperationRoute, pins PinRegistry, pulses PulseScheduler, trig trigger.Trigger, publisher bus.Publisher, log zerolog.Logger) (*Router, error) {
	r := &Router{
		log:       log.With().Str("component", "router").Logger(),
		routes:    append([]model.OperationRoute(nil), routes...),
		exact:     make(map[string]model.OperationRoute, len(routes)),
		pins:      pins,
		pulses:    pulses,
		trigger:   trig,
		publisher: publisher,
	}
	for _, route := range routes {
		if route.Subject == "" {
			return nil, errors.Wrap(model.ConfigError, "route without subject")
		}
		if _, found := r.exact[route.Subject]; found {
			return nil, errors.Wrapf(model.ConfigError, "duplicate subject '%s'", route.Subject)
		}
		switch route.Kind {
		case model.OperationGpioControl, model.OperationServiceTrigger:
		default:
			return nil, errors.Wrapf(model.ConfigError, "subject '%s' has unknown operation type '%s'", route.Subject, route.Kind)
		}
		r.exact[route.Subject] = route
	}
	return r, nil
}

// Subjects returns all routes of the router.
func (r *Router) Subjects() []model.OperationRoute {
	return append([]model.OperationRoute(nil), r.routes...)
}

// lookup finds the route for the given subject.
// Exact subjects take precedence over wildcard subjects.
func (r *Router) lookup(subject string) (model.OperationRoute, bool) {
	if route, found := r.exact[subject]; found {
		return route, true
	}
	for _, route := range r.routes {
		if bus.SubjectMatches(route.Subject, subject) {
			return route, true
		}
	}
	return model.OperationRoute{}, false
}

// Route the given message to the operation of the route its subject
// resolves to.
func (r *Router) Route(ctx context.Context, msg *bus.Message) (Result, error) {
	route, found := r.lookup(msg.Subject)
	if !found {
		return Result{}, errors.Wrapf(model.UnknownSubjectError, "subject '%s'", msg.Subject)
	}
	return r.RouteFor(ctx, route, msg)
}

// RouteFor routes the given message to the operation of the given route,
// without resolving the subject of the message.
func (r *Router) RouteFor(ctx context.Context, route model.OperationRoute, msg *bus.Message) (Result, error) {
	switch route.Kind {
	case model.OperationGpioControl:
		return r.routeGpio(ctx, msg)
	case model.OperationServiceTrigger:
		return r.routeService(ctx, msg)
	default:
		return Result{}, errors.Wrapf(model.UnknownSubjectError, "subject '%s' has unknown operation type '%s'", msg.Subject, route.Kind)
	}
}

func (r *Router) routeGpio(ctx context.Context, msg *bus.Message) (Result, error) {
	cmd, err := model.ParseGpioCommand(msg.Data)
	if err != nil {
		return Result{}, err
	}
	result := Result{
		Subject: msg.Subject,
		Kind:    model.OperationGpioControl,
		Pin:     cmd.Pin,
		Action:  cmd.Action,
	}
	switch cmd.Action {
	case model.ActionSet:
		result.Value, err = r.pins.Set(cmd.Pin, cmd.Value)
	case model.ActionToggle:
		result.Value, err = r.pins.Toggle(cmd.Pin)
	case model.ActionPulse:
		result.Value = cmd.Value
		result.Previous, err = r.pulses.Pulse(cmd.Pin, cmd.Value, cmd.Duration)
	case model.ActionGet:
		result.Value, err = r.pins.Get(cmd.Pin)
		if err == nil && msg.HasReply() {
			if err := r.reply(msg.Reply, model.PinReply{Pin: cmd.Pin, Value: result.Value}); err != nil {
				r.log.Warn().Err(err).Str("reply", msg.Reply).Msg("Failed to publish reply")
			} else {
				result.Replied = true
			}
		}
	default:
		err = errors.Wrapf(model.UnknownActionError, "action %d", cmd.Action)
	}
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func (r *Router) routeService(ctx context.Context, msg *bus.Message) (Result, error) {
	cmd, err := model.ParseServiceTriggerCommand(msg.Data)
	if err != nil {
		return Result{}, err
	}
	if err := r.trigger.Trigger(ctx, cmd.Service, cmd.Action); err != nil {
		return Result{}, err
	}
	return Result{
		Subject:       msg.Subject,
		Kind:          model.OperationServiceTrigger,
		Service:       cmd.Service,
		ServiceAction: cmd.Action,
	}, nil
}

// Handle routes the given message and records the outcome.
// Handle never fails: every error, including a panic, is logged, counted
// and, when the message has a reply address, replied to.
func (r *Router) Handle(ctx context.Context, msg *bus.Message) {
	r.handle(msg, func() (Result, error) { return r.Route(ctx, msg) })
}

// HandleFor is Handle for a message received on the subscription of the
// given route.
func (r *Router) HandleFor(ctx context.Context, route model.OperationRoute, msg *bus.Message) {
	r.handle(msg, func() (Result, error) { return r.RouteFor(ctx, route, msg) })
}

func (r *Router) handle(msg *bus.Message, route func() (Result, error)) {
	log := r.log.With().
		Str("msg_id", uuid.NewString()).
		Str("subject", msg.Subject).
		Logger()
	start := time.Now()

	result, err := safeRoute(route)
	handleDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		kind := model.ErrorKind(err)
		messagesTotal.WithLabelValues("error").Inc()
		errorsTotal.WithLabelValues(kind).Inc()
		level := zerolog.WarnLevel
		if kind == "internal" {
			level = zerolog.ErrorLevel
		}
		log.WithLevel(level).Err(err).
			Str("error_kind", kind).
			Int("size", len(msg.Data)).
			Msg("Failed to handle message")
		if msg.HasReply() {
			if err := r.reply(msg.Reply, model.ErrorReply{Error: err.Error(), Kind: kind}); err != nil {
				log.Warn().Err(err).Str("reply", msg.Reply).Msg("Failed to publish error reply")
			}
		}
		return
	}
	messagesTotal.WithLabelValues("ok").Inc()
	switch result.Kind {
	case model.OperationGpioControl:
		level := zerolog.InfoLevel
		if result.Action == model.ActionGet && result.Replied {
			level = zerolog.DebugLevel
		}
		evt := log.WithLevel(level).
			Str("pin", result.Pin).
			Str("action", result.Action.String()).
			Bool("value", result.Value)
		if result.Action == model.ActionPulse {
			evt = evt.Bool("restore", result.Previous)
		}
		evt.Msg("Handled gpio command")
	case model.OperationServiceTrigger:
		log.Info().
			Str("service", result.Service).
			Str("action", result.ServiceAction).
			Msg("Handled service trigger")
	}
}

// safeRoute calls the given route function, converting a panic into an error.
func safeRoute(route func() (Result, error)) (result Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			panicsTotal.Inc()
			err = errors.Errorf("panic while handling message: %v", rec)
		}
	}()
	return route()
}

// reply publishes the given value as JSON on the given reply address.
func (r *Router) reply(address string, value interface{}) error {
	if r.publisher == nil {
		return errors.New("no publisher")
	}
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrap(err, "failed to encode reply")
	}
	if err := r.publisher.Publish(address, data); err != nil {
		return err
	}
	repliesTotal.Inc()
	return nil
}
