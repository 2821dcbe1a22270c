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
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/necromancy/node/model"
)

type natsConnection struct {
	log zerolog.Logger
	nc  *nats.Conn
}

type natsSubscription struct {
	sub *nats.Subscription
}

// connectNATS opens a connection to a NATS cluster.
func connectNATS(cfg model.BusConfig, log zerolog.Logger) (Connection, error) {
	opts := []nats.Option{
		nats.Name(cfg.ClientName),
		nats.ReconnectWait(model.Seconds(cfg.ReconnectTimeWait)),
		nats.PingInterval(model.Seconds(cfg.PingInterval)),
		nats.Timeout(model.Seconds(cfg.ConnectTimeout)),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			disconnectsTotal.WithLabelValues(string(model.BusTypeNATS)).Inc()
			log.Warn().Err(err).Msg("Disconnected from NATS")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("server", nc.ConnectedUrl()).Msg("Reconnected to NATS")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Debug().Msg("NATS connection closed")
		}),
	}
	if cfg.MaxReconnectAttempts != nil {
		opts = append(opts, nats.MaxReconnects(*cfg.MaxReconnectAttempts))
	}
	if cfg.Username != "" {
		opts = append(opts, nats.UserInfo(cfg.Username, cfg.Password))
	}
	servers := strings.Join(cfg.Servers, ",")
	if servers == "" {
		servers = model.DefaultServer
	}
	nc, err := nats.Connect(servers, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to NATS at %s", servers)
	}
	log.Info().Str("server", nc.ConnectedUrl()).Msg("Connected to NATS")
	return &natsConnection{
		log: log,
		nc:  nc,
	}, nil
}

// Name of the bus type
func (c *natsConnection) Name() string { return string(model.BusTypeNATS) }

// Subscribe registers interest in the given subject.
func (c *natsConnection) Subscribe(subject, queue string, handler Handler) (Subscription, error) {
	cb := func(msg *nats.Msg) {
		receivedTotal.WithLabelValues(string(model.BusTypeNATS)).Inc()
		handler(&Message{
			Subject: msg.Subject,
			Data:    msg.Data,
			Reply:   msg.Reply,
		})
	}
	var sub *nats.Subscription
	var err error
	if queue != "" {
		sub, err = c.nc.QueueSubscribe(subject, queue, cb)
	} else {
		sub, err = c.nc.Subscribe(subject, cb)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to subscribe to '%s'", subject)
	}
	return &natsSubscription{sub: sub}, nil
}

// Publish the given data on the given subject.
func (c *natsConnection) Publish(subject string, data []byte) error {
	if err := c.nc.Publish(subject, data); err != nil {
		publishErrorsTotal.WithLabelValues(string(model.BusTypeNATS)).Inc()
		return errors.Wrapf(err, "failed to publish on '%s'", subject)
	}
	publishedTotal.WithLabelValues(string(model.BusTypeNATS)).Inc()
	return nil
}

// Close drains and closes the connection.
func (c *natsConnection) Close() error {
	if err := c.nc.Drain(); err != nil {
		c.nc.Close()
		return errors.Wrap(err, "failed to drain NATS connection")
	}
	return nil
}

func (s *natsSubscription) Subject() string { return s.sub.Subject }

func (s *natsSubscription) Unsubscribe() error {
	return maskAny(s.sub.Unsubscribe())
}
