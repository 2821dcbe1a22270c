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
	"github.com/necromancy/node/pkg/metrics"
)

const (
	subSystem = "bridge"
)

var (
	// Total number of bridges opened per driver
	openTotal = metrics.MustRegisterCounterVec(subSystem,
		"open_total",
		"Total number of bridges opened per driver",
		"driver")
	// Total number of times a hardware driver failed and simulation was used
	fallbackTotal = metrics.MustRegisterCounter(subSystem,
		"fallback_total",
		"Total number of times a hardware driver failed and simulation was used")
)
