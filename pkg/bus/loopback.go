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
	"sync"

	"github.com/pkg/errors"
)

// Loopback is an in-process bus. Messages published on it are delivered
// synchronously to all subscribers whose subject matches, including
// wildcard subjects, and to one subscriber per queue group.
type Loopback struct {
	mutex  sync.Mutex
	subs   []*loopbackSubscription
	next   map[string]int
	closed bool
}

type loopbackSubscription struct {
	bus     *Loopback
	subject string
	queue   string
	handler Handler
}

// NewLoopback creates a new in-process bus.
func NewLoopback() *Loopback {
	return &Loopback{
		next: make(map[string]int),
	}
}

// Name of the bus type
func (l *Loopback) Name() string { return "loopback" }

// Subscribe registers interest in the given subject.
func (l *Loopback) Subscribe(subject, queue string, handler Handler) (Subscription, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.closed {
		return nil, errors.New("loopback bus closed")
	}
	s := &loopbackSubscription{
		bus:     l,
		subject: subject,
		queue:   queue,
		handler: handler,
	}
	l.subs = append(l.subs, s)
	return s, nil
}

// Publish the given data on the given subject.
func (l *Loopback) Publish(subject string, data []byte) error {
	return l.Deliver(&Message{Subject: subject, Data: data})
}

// Deliver the given message to all matching subscribers.
// Use it to send messages that carry a reply address.
func (l *Loopback) Deliver(msg *Message) error {
	targets, err := l.targets(msg.Subject)
	if err != nil {
		return err
	}
	for _, s := range targets {
		m := *msg
		m.Data = append([]byte(nil), msg.Data...)
		s.handler(&m)
	}
	return nil
}

// targets selects the subscriptions that receive a message on the given subject.
func (l *Loopback) targets(subject string) ([]*loopbackSubscription, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.closed {
		return nil, errors.New("loopback bus closed")
	}
	var result []*loopbackSubscription
	// Queue groups are scoped to the subscribed subject
	groups := make(map[string][]*loopbackSubscription)
	var groupOrder []string
	for _, s := range l.subs {
		if !SubjectMatches(s.subject, subject) {
			continue
		}
		if s.queue == "" {
			result = append(result, s)
			continue
		}
		key := s.subject + "|" + s.queue
		if _, found := groups[key]; !found {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], s)
	}
	for _, key := range groupOrder {
		members := groups[key]
		idx := l.next[key] % len(members)
		l.next[key] = idx + 1
		result = append(result, members[idx])
	}
	return result, nil
}

// SubscriptionCount returns the number of active subscriptions.
func (l *Loopback) SubscriptionCount() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.subs)
}

// Close the bus. All subscriptions are removed.
func (l *Loopback) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.subs = nil
	l.closed = true
	return nil
}

func (s *loopbackSubscription) Subject() string { return s.subject }

func (s *loopbackSubscription) Unsubscribe() error {
	l := s.bus
	l.mutex.Lock()
	defer l.mutex.Unlock()

	for i, x := range l.subs {
		if x == s {
			l.subs = append(l.subs[:i], l.subs[i+1:]...)
			return nil
		}
	}
	return nil
}
