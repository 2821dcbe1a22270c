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
	"fmt"
	"sync"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/necromancy/node/model"
)

type periphBridge struct {
	mutex sync.Mutex
	log   zerolog.Logger
	lines []gpio.PinIO
}

// NewPeriphBridge implements the bridge using the periph.io host drivers.
// Lines are addressed by their BCM number.
func NewPeriphBridge(log zerolog.Logger) (API, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.Wrap(err, "host.Init failed")
	}
	return &periphBridge{
		log: log.With().Str("driver", string(model.DriverPeriph)).Logger(),
	}, nil
}

// Name of the driver
func (p *periphBridge) Name() string { return string(model.DriverPeriph) }

// Simulated returns false.
func (p *periphBridge) Simulated() bool { return false }

func (p *periphBridge) lookup(pinNumber int) (gpio.PinIO, error) {
	name := fmt.Sprintf("GPIO%d", pinNumber)
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, errors.Errorf("line %s not found", name)
	}
	return pin, nil
}

// Input initializes a GPIO input pin with the given line number.
func (p *periphBridge) Input(pinNumber int, pull model.Pull) (InputPin, error) {
	pin, err := p.lookup(pinNumber)
	if err != nil {
		return nil, err
	}
	if err := pin.In(periphPull(pull), gpio.NoEdge); err != nil {
		return nil, errors.Wrapf(err, "In[%d] failed", pinNumber)
	}
	p.track(pin)
	return periphInput{pin}, nil
}

// Output initializes a GPIO output pin with the given line number
// and initial logical value.
func (p *periphBridge) Output(pinNumber int, initialValue bool) (OutputPin, error) {
	pin, err := p.lookup(pinNumber)
	if err != nil {
		return nil, err
	}
	if err := pin.Out(gpio.Level(initialValue)); err != nil {
		return nil, errors.Wrapf(err, "Out[%d] failed", pinNumber)
	}
	p.track(pin)
	return periphOutput{pin}, nil
}

func (p *periphBridge) track(pin gpio.PinIO) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.lines = append(p.lines, pin)
}

// Close halts all opened lines.
func (p *periphBridge) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var ae aerr.AggregateError
	for _, pin := range p.lines {
		if err := pin.Halt(); err != nil {
			ae.Add(errors.Wrapf(err, "Halt[%s] failed", pin.Name()))
		}
	}
	p.lines = nil
	return ae.AsError()
}

func periphPull(pull model.Pull) gpio.Pull {
	switch pull {
	case model.PullUp:
		return gpio.PullUp
	case model.PullDown:
		return gpio.PullDown
	default:
		return gpio.Float
	}
}

type periphInput struct {
	pin gpio.PinIO
}

func (i periphInput) Read() (bool, error) {
	return i.pin.Read() == gpio.High, nil
}

type periphOutput struct {
	pin gpio.PinIO
}

func (o periphOutput) Write(value bool) error {
	return o.pin.Out(gpio.Level(value))
}
