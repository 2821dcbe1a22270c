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
	"fmt"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/necromancy/node/model"
)

const (
	mqttPublishTimeout    = time.Second
	mqttDisconnectQuiesce = 250 // ms
	mqttDefaultBroker     = "tcp://localhost:1883"
)

type mqttConnection struct {
	log    zerolog.Logger
	client mqttapi.Client
	qos    byte
}

type mqttSubscription struct {
	conn  *mqttConnection
	topic string
}

// connectMQTT opens a connection to an MQTT broker.
// MQTT has no reply addresses, so messages never carry one.
func connectMQTT(cfg model.BusConfig, log zerolog.Logger) (Connection, error) {
	clientID := fmt.Sprintf("%s-%s", cfg.ClientName, uuid.NewString()[:8])
	opts := mqttapi.NewClientOptions().
		SetClientID(clientID).
		SetOrderMatters(false).
		SetAutoReconnect(true).
		SetConnectTimeout(model.Seconds(cfg.ConnectTimeout)).
		SetKeepAlive(model.Seconds(cfg.PingInterval)).
		SetMaxReconnectInterval(model.Seconds(cfg.ReconnectTimeWait))
	if len(cfg.Servers) == 0 {
		opts.AddBroker(mqttDefaultBroker)
	}
	for _, server := range cfg.Servers {
		opts.AddBroker(server)
	}
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectionLostHandler(func(_ mqttapi.Client, err error) {
		disconnectsTotal.WithLabelValues(string(model.BusTypeMQTT)).Inc()
		log.Warn().Err(err).Msg("Lost connection to MQTT broker")
	})
	opts.SetOnConnectHandler(func(_ mqttapi.Client) {
		log.Info().Str("client-id", clientID).Msg("Connected to MQTT broker")
	})
	opts.SetDefaultPublishHandler(func(c mqttapi.Client, m mqttapi.Message) {
		// Ignore messages when no subscription match
	})

	client := mqttapi.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errors.Wrap(token.Error(), "failed to connect to MQTT broker")
	}
	return &mqttConnection{
		log:    log,
		client: client,
		qos:    byte(cfg.QoS),
	}, nil
}

// sharedTopic returns the topic to subscribe to for the given queue group.
func sharedTopic(topic, queue string) string {
	if queue == "" {
		return topic
	}
	return "$share/" + queue + "/" + topic
}

// Name of the bus type
func (c *mqttConnection) Name() string { return string(model.BusTypeMQTT) }

// Subscribe registers interest in the given topic.
// Queue groups are mapped onto shared subscriptions.
func (c *mqttConnection) Subscribe(subject, queue string, handler Handler) (Subscription, error) {
	topic := sharedTopic(subject, queue)
	cb := func(_ mqttapi.Client, msg mqttapi.Message) {
		receivedTotal.WithLabelValues(string(model.BusTypeMQTT)).Inc()
		handler(&Message{
			Subject: msg.Topic(),
			Data:    msg.Payload(),
		})
	}
	if token := c.client.Subscribe(topic, c.qos, cb); token.Wait() && token.Error() != nil {
		return nil, errors.Wrapf(token.Error(), "failed to subscribe to '%s'", topic)
	}
	return &mqttSubscription{conn: c, topic: topic}, nil
}

// Publish the given data on the given topic.
func (c *mqttConnection) Publish(subject string, data []byte) error {
	token := c.client.Publish(subject, c.qos, false, data)
	if !token.WaitTimeout(mqttPublishTimeout) {
		publishErrorsTotal.WithLabelValues(string(model.BusTypeMQTT)).Inc()
		return errors.Errorf("failed to deliver on '%s' in time", subject)
	}
	if err := token.Error(); err != nil {
		publishErrorsTotal.WithLabelValues(string(model.BusTypeMQTT)).Inc()
		return errors.Wrapf(err, "failed to publish on '%s'", subject)
	}
	publishedTotal.WithLabelValues(string(model.BusTypeMQTT)).Inc()
	return nil
}

// Close disconnects from the broker.
func (c *mqttConnection) Close() error {
	c.client.Disconnect(mqttDisconnectQuiesce)
	return nil
}

func (s *mqttSubscription) Subject() string { return s.topic }

func (s *mqttSubscription) Unsubscribe() error {
	if token := s.conn.client.Unsubscribe(s.topic); token.Wait() && token.Error() != nil {
		return errors.Wrapf(token.Error(), "failed to unsubscribe from '%s'", s.topic)
	}
	return nil
}
