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

package bus

import (
	"github.com/necromancy/node/pkg/metrics"
)

const (
	subSystem = "bus"
)

var (
	// Total number of messages received per bus type
	receivedTotal = metrics.MustRegisterCounterVec(subSystem,
		"received_total",
		"Total number of messages received per bus type",
		"bus")
	// Total number of messages published per bus type
	publishedTotal = metrics.MustRegisterCounterVec(subSystem,
		"published_total",
		"Total number of messages published per bus type",
		"bus")
	// Total number of failed publications per bus type
	publishErrorsTotal = metrics.MustRegisterCounterVec(subSystem,
		"publish_errors_total",
		"Total number of failed publications per bus type",
		"bus")
	// Total number of connection losses per bus type
	disconnectsTotal = metrics.MustRegisterCounterVec(subSystem,
		"disconnects_total",
		"Total number of connection losses per bus type",
		"bus")
)
