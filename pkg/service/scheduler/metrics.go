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

package scheduler

import (
	"github.com/necromancy/node/pkg/metrics"
)

const (
	subSystem = "scheduler"
)

var (
	// Total number of pulses started
	pulsesTotal = metrics.MustRegisterCounter(subSystem,
		"pulses_total",
		"Total number of pulses started")
	// Total number of pending restores replaced by a newer pulse
	supersededTotal = metrics.MustRegisterCounter(subSystem,
		"superseded_total",
		"Total number of pending restores replaced by a newer pulse")
	// Total number of restores applied
	restoresTotal = metrics.MustRegisterCounter(subSystem,
		"restores_total",
		"Total number of restores applied")
	// Total number of restores that failed
	restoreErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"restore_errors_total",
		"Total number of restores that failed")
	// Total number of restores abandoned during shutdown
	abandonedTotal = metrics.MustRegisterCounter(subSystem,
		"abandoned_total",
		"Total number of restores abandoned during shutdown")
	// Current number of pending restores
	pendingGauge = metrics.MustRegisterGauge(subSystem,
		"pending",
		"Current number of pending restores")
)
