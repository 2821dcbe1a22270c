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
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/necromancy/node/model"
	"github.com/necromancy/node/pkg/bus"
	"github.com/necromancy/node/pkg/service/registry"
)

// announcer publishes pin changes on a subject.
type announcer struct {
	log       zerolog.Logger
	subject   string
	publisher bus.Publisher
}

func newAnnouncer(subject string, publisher bus.Publisher, log zerolog.Logger) *announcer {
	return &announcer{
		log:       log.With().Str("subject", subject).Logger(),
		subject:   subject,
		publisher: publisher,
	}
}

// Attach subscribes to the pin changes of the given registry.
// Call the returned function to stop.
func (a *announcer) Attach(reg *registry.Registry) func() {
	return reg.Subscribe(a.announce)
}

func (a *announcer) announce(evt model.PinEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		a.log.Warn().Err(err).Msg("Failed to encode pin event")
		return
	}
	if err := a.publisher.Publish(a.subject, data); err != nil {
		announceErrorsTotal.Inc()
		a.log.Debug().Err(err).Str("pin", evt.Pin).Msg("Failed to announce pin change")
		return
	}
	announcementsTotal.Inc()
}
