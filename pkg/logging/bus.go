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

package logging

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/necromancy/node/pkg/bus"
)

// BusWriter forwards log lines onto a bus subject.
// Lines are queued and dropped when the queue is full.
type BusWriter interface {
	io.Writer
	Enable(enable bool)
	SetDestination(subject string, publisher bus.Publisher)
}

type busLogger struct {
	mutex     sync.Mutex
	queue     chan []byte
	subject   string
	publisher bus.Publisher
	enable    bool
	wakeup    chan struct{}
}

const (
	busQueueSize = 512
)

// NewBusWriter creates a new bus output for logs.
// The sender stops when the given context is canceled.
func NewBusWriter(ctx context.Context) BusWriter {
	l := &busLogger{
		queue:  make(chan []byte, busQueueSize),
		wakeup: make(chan struct{}, 1),
	}
	go l.run(ctx)
	return l
}

// Write queues a log line. It never blocks.
func (l *busLogger) Write(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	// zerolog reuses its buffers
	line := append([]byte(nil), p...)
	for attempt := 0; attempt < 10; attempt++ {
		select {
		case l.queue <- line:
			return len(p), nil
		default:
			// Queue full; drop the oldest line and try again
			select {
			case <-l.queue:
			default:
			}
		}
	}
	return len(p), nil
}

func (l *busLogger) Enable(enable bool) {
	l.mutex.Lock()
	l.enable = enable
	l.mutex.Unlock()
	l.notify()
}

func (l *busLogger) SetDestination(subject string, publisher bus.Publisher) {
	l.mutex.Lock()
	l.subject = subject
	l.publisher = publisher
	l.mutex.Unlock()
	l.notify()
}

func (l *busLogger) notify() {
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

type logMsg struct {
	Message string `json:"message"`
}

func (l *busLogger) run(ctx context.Context) {
	for {
		l.mutex.Lock()
		publisher := l.publisher
		subject := l.subject
		enabled := l.enable
		l.mutex.Unlock()

		if enabled && subject != "" && publisher != nil {
			select {
			case line := <-l.queue:
				if data, err := json.Marshal(logMsg{Message: string(line)}); err == nil {
					// Errors cannot be logged here
					_ = publisher.Publish(subject, data)
				}
			case <-l.wakeup:
				// Destination changed
			case <-ctx.Done():
				return
			}
		} else {
			select {
			case <-l.wakeup:
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
		}
	}
}
