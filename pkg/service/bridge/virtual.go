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
	"sync"

	"github.com/pkg/errors"

	"github.com/necromancy/node/model"
)

// VirtualBridge is an in-memory bridge used when no GPIO hardware is
// available. Input lines can be driven from the outside.
type VirtualBridge struct {
	mutex  sync.Mutex
	lines  map[int]*virtualLine
	closed bool
}

type virtualLine struct {
	bridge *VirtualBridge
	number int
	output bool
	value  bool
}

// NewVirtualBridge implements the bridge for a simulated node.
func NewVirtualBridge() *VirtualBridge {
	return &VirtualBridge{
		lines: make(map[int]*virtualLine),
	}
}

// Name of the driver
func (p *VirtualBridge) Name() string { return string(model.DriverSimulated) }

// Simulated returns true.
func (p *VirtualBridge) Simulated() bool { return true }

// Input initializes a simulated input pin.
// Its value is false until driven otherwise.
func (p *VirtualBridge) Input(pinNumber int, pull model.Pull) (InputPin, error) {
	l, err := p.open(pinNumber, false, false)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Output initializes a simulated output pin.
func (p *VirtualBridge) Output(pinNumber int, initialValue bool) (OutputPin, error) {
	l, err := p.open(pinNumber, true, initialValue)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (p *VirtualBridge) open(pinNumber int, output, value bool) (*virtualLine, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return nil, errors.New("bridge closed")
	}
	if pinNumber < 0 {
		return nil, errors.Errorf("invalid pin %d", pinNumber)
	}
	if _, found := p.lines[pinNumber]; found {
		return nil, errors.Errorf("pin %d already in use", pinNumber)
	}
	l := &virtualLine{
		bridge: p,
		number: pinNumber,
		output: output,
		value:  value,
	}
	p.lines[pinNumber] = l
	return l, nil
}

// DriveInput sets the level seen by a simulated input pin.
func (p *VirtualBridge) DriveInput(pinNumber int, value bool) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	l, found := p.lines[pinNumber]
	if !found {
		return errors.Errorf("pin %d not opened", pinNumber)
	}
	if l.output {
		return errors.Errorf("pin %d is an output", pinNumber)
	}
	l.value = value
	return nil
}

// Level returns the current level of an opened line.
func (p *VirtualBridge) Level(pinNumber int) (value bool, found bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if l, ok := p.lines[pinNumber]; ok {
		return l.value, true
	}
	return false, false
}

// Close releases all lines.
func (p *VirtualBridge) Close() error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.lines = make(map[int]*virtualLine)
	p.closed = true
	return nil
}

func (l *virtualLine) Read() (bool, error) {
	l.bridge.mutex.Lock()
	defer l.bridge.mutex.Unlock()
	return l.value, nil
}

func (l *virtualLine) Write(value bool) error {
	l.bridge.mutex.Lock()
	defer l.bridge.mutex.Unlock()
	if !l.output {
		return errors.Errorf("pin %d is an input", l.number)
	}
	l.value = value
	return nil
}
