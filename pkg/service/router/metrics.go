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

package router

import (
	"github.com/necromancy/node/pkg/metrics"
)

const (
	subSystem = "router"
)

var (
	// Total number of handled messages per outcome
	messagesTotal = metrics.MustRegisterCounterVec(subSystem,
		"messages_total",
		"Total number of handled messages per outcome",
		"outcome")
	// Total number of failed messages per error kind
	errorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"errors_total",
		"Total number of failed messages per error kind",
		"kind")
	// Total number of panics recovered while handling a message
	panicsTotal = metrics.MustRegisterCounter(subSystem,
		"panics_total",
		"Total number of panics recovered while handling a message")
	// Total number of replies published
	repliesTotal = metrics.MustRegisterCounter(subSystem,
		"replies_total",
		"Total number of replies published")
	// Time needed to handle a message
	handleDuration = metrics.MustRegisterHistogram(subSystem,
		"handle_duration_seconds",
		"Time needed to handle a message",
		0.0001, 4, 8)
)
