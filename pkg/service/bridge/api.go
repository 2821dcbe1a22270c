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
	"github.com/necromancy/node/model"
)

// API of the bridge, the driver used to access the local GPIO lines.
// A single API is selected at startup and shared by all pins.
type API interface {
	// Name of the driver
	Name() string
	// Simulated returns true when no real hardware is driven.
	Simulated() bool

	// Input initializes a GPIO input pin with the given line number
	// and pull resistor setting.
	Input(pinNumber int, pull model.Pull) (InputPin, error)
	// Output initializes a GPIO output pin with the given line number
	// and initial logical value.
	Output(pinNumber int, initialValue bool) (OutputPin, error)

	// Close releases all lines opened through this bridge.
	Close() error
}

// InputPin is the interface satisfied by GPIO input pins.
type InputPin interface {
	Read() (bool, error)
}

// OutputPin is the interface satisfied by GPIO output pins.
type OutputPin interface {
	Write(bool) error
}
