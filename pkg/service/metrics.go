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

package service

import (
	"github.com/necromancy/node/pkg/metrics"
)

const (
	subSystem = "service"
)

var (
	// Current lifecycle phase (1 for the active phase)
	phaseGauge = metrics.MustRegisterGaugeVec(subSystem,
		"phase",
		"Current lifecycle phase (1 for the active phase)",
		"phase")
	// Number of messages being handled
	inFlightGauge = metrics.MustRegisterGauge(subSystem,
		"in_flight",
		"Number of messages being handled")
	// Total number of messages dropped per reason
	droppedTotal = metrics.MustRegisterCounterVec(subSystem,
		"dropped_total",
		"Total number of messages dropped per reason",
		"reason")
	// Total number of pin changes announced
	announcementsTotal = metrics.MustRegisterCounter(subSystem,
		"announcements_total",
		"Total number of pin changes announced")
	// Total number of pin changes that could not be announced
	announceErrorsTotal = metrics.MustRegisterCounter(subSystem,
		"announce_errors_total",
		"Total number of pin changes that could not be announced")
)
