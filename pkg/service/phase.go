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

// Phase is the lifecycle state of the dispatch loop.
type Phase string

const (
	PhaseStarting   Phase = "STARTING"
	PhaseSubscribed Phase = "SUBSCRIBED"
	PhaseRunning    Phase = "RUNNING"
	PhaseDraining   Phase = "DRAINING"
	PhaseStopped    Phase = "STOPPED"
)

var allPhases = []Phase{
	PhaseStarting,
	PhaseSubscribed,
	PhaseRunning,
	PhaseDraining,
	PhaseStopped,
}

// setPhase records the given phase and exposes it as metric.
func (s *service) setPhase(p Phase) {
	s.mutex.Lock()
	s.phase = p
	s.mutex.Unlock()
	for _, x := range allPhases {
		v := 0.0
		if x == p {
			v = 1
		}
		phaseGauge.WithLabelValues(string(x)).Set(v)
	}
	s.Logger.Debug().Str("phase", string(p)).Msg("Phase changed")
}

// Phase returns the current lifecycle state.
func (s *service) Phase() Phase {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.phase
}
