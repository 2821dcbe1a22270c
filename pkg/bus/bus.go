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

package bus

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/necromancy/node/model"
)

// Message is a single message received from the bus.
type Message struct {
	// Subject the message arrived on
	Subject string
	// Raw payload
	Data []byte
	// Reply address, empty when the sender expects no reply
	Reply string
}

// HasReply returns true if the message carries a reply address.
func (m *Message) HasReply() bool {
	return m != nil && m.Reply != ""
}

// Handler is invoked for every message received on a subscription.
// Every invocation gets its own message, the handler may keep it after
// returning.
type Handler func(msg *Message)

// Subscription is the registered interest in a single subject.
type Subscription interface {
	// Subject of the subscription
	Subject() string
	// Unsubscribe stops the delivery of messages.
	Unsubscribe() error
}

// Connection to a message bus.
type Connection interface {
	// Name of the bus type
	Name() string
	// Subscribe registers interest in the given subject.
	// When queue is not empty, messages are load balanced across
	// all subscribers of the same queue.
	Subscribe(subject, queue string, handler Handler) (Subscription, error)
	// Publish the given data on the given subject.
	Publish(subject string, data []byte) error
	// Close the connection.
	Close() error
}

// Publisher is the part of a connection needed to send messages.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Connect opens a connection to the bus described by the given config.
func Connect(cfg model.BusConfig, log zerolog.Logger) (Connection, error) {
	log = log.With().Str("component", "bus").Str("bus", string(cfg.Type)).Logger()
	switch cfg.Type {
	case model.BusTypeNATS, "":
		return connectNATS(cfg, log)
	case model.BusTypeMQTT:
		return connectMQTT(cfg, log)
	case model.BusTypeLoopback:
		return NewLoopback(), nil
	default:
		return nil, errors.Wrapf(model.ConfigError, "unknown bus type '%s'", cfg.Type)
	}
}
