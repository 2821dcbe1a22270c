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

package bridge

import (
	"io"
	"sync"

	"github.com/ecc1/gpio"
	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/necromancy/node/model"
)

const (
	// sysfs lines are always configured active high
	sysfsActiveLow = false
)

type sysfsBridge struct {
	mutex sync.Mutex
	log   zerolog.Logger
	lines []interface{}
}

// NewSysfsBridge implements the bridge using the kernel sysfs GPIO interface.
func NewSysfsBridge(log zerolog.Logger) (API, error) {
	return &sysfsBridge{
		log: log.With().Str("driver", string(model.DriverSysfs)).Logger(),
	}, nil
}

// Name of the driver
func (p *sysfsBridge) Name() string { return string(model.DriverSysfs) }

// Simulated returns false.
func (p *sysfsBridge) Simulated() bool { return false }

// Input initializes a GPIO input pin with the given line number.
// The sysfs interface cannot configure pull resistors.
func (p *sysfsBridge) Input(pinNumber int, pull model.Pull) (InputPin, error) {
	if pull != model.PullNone {
		p.log.Warn().
			Int("number", pinNumber).
			Str("pull", string(pull)).
			Msg("sysfs driver cannot configure pull resistors, ignoring")
	}
	pin, err := gpio.Input(pinNumber, sysfsActiveLow)
	if err != nil {
		return nil, errors.Wrapf(err, "Input[%d] failed", pinNumber)
	}
	p.track(pin)
	return pin, nil
}

// Output initializes a GPIO output pin with the given line number
// and initial logical value.
func (p *sysfsBridge) Output(pinNumber int, initialValue bool) (OutputPin, error) {
	pin, err := gpio.Output(pinNumber, sysfsActiveLow, initialValue)
	if err != nil {
		return nil, errors.Wrapf(err, "Output[%d] failed", pinNumber)
	}
	p.track(pin)
	return pin, nil
}

func (p *sysfsBridge) track(line interface{}) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.lines = append(p.lines, line)
}

// Close releases all opened lines.
func (p *sysfsBridge) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var ae aerr.AggregateError
	for _, line := range p.lines {
		if c, ok := line.(io.Closer); ok {
			if err := c.Close(); err != nil {
				ae.Add(err)
			}
		}
	}
	p.lines = nil
	return ae.AsError()
}
