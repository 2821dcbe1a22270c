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

package registry

import (
	"github.com/necromancy/node/pkg/metrics"
)

const (
	subSystem = "registry"
)

var (
	// Current logical state per pin
	pinStateGauge = metrics.MustRegisterGaugeVec(subSystem,
		"pin_state",
		"Current logical state per pin",
		"pin")
	// Total number of successful writes per pin and source
	writesTotal = metrics.MustRegisterCounterVec(subSystem,
		"writes_total",
		"Total number of successful writes per pin and source",
		"pin", "source")
	// Total number of failed writes per pin
	writeErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"write_errors_total",
		"Total number of failed writes per pin",
		"pin")
	// Total number of failed reads per pin
	readErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"read_errors_total",
		"Total number of failed reads per pin",
		"pin")
)
