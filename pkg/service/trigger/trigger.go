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

package trigger

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/necromancy/node/model"
)

// Trigger is the collaborator that acts upon service triggers.
type Trigger interface {
	// Trigger performs the given action on the given service.
	// Returns a ServiceUnavailableError when the service cannot be reached.
	Trigger(ctx context.Context, service, action string) error
}

type loggingTrigger struct {
	log      zerolog.Logger
	services []string
}

// NewLoggingTrigger returns a Trigger that records triggers in the log.
// When services is not empty, only those services are available.
func NewLoggingTrigger(services []string, log zerolog.Logger) Trigger {
	t := &loggingTrigger{
		log: log.With().Str("component", "trigger").Logger(),
	}
	if len(services) > 0 {
		t.services = lo.Uniq(services)
	}
	return t
}

// Trigger logs the given action on the given service.
func (t *loggingTrigger) Trigger(ctx context.Context, service, action string) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrapf(model.ServiceUnavailableError, "service '%s': %s", service, err)
	}
	if t.services != nil {
		if !lo.Contains(t.services, service) {
			return errors.Wrapf(model.ServiceUnavailableError, "service '%s' is not configured", service)
		}
	}
	t.log.Info().
		Str("service", service).
		Str("action", action).
		Msg("Service trigger")
	return nil
}
