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
	"strings"
)

// SubjectMatches returns true if the given subject matches the given
// pattern. NATS wildcards ('*', '>' with '.' separators) and MQTT
// wildcards ('+', '#' with '/' separators) are supported.
// MQTT '#' also matches its parent level, NATS '>' does not.
func SubjectMatches(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	sep, one, rest := ".", "*", ">"
	mqtt := strings.ContainsAny(pattern, "+#") || (strings.Contains(pattern, "/") && !strings.Contains(pattern, "."))
	if mqtt {
		sep, one, rest = "/", "+", "#"
	}
	pTokens := strings.Split(pattern, sep)
	sTokens := strings.Split(subject, sep)
	for i, p := range pTokens {
		if p == rest {
			if i != len(pTokens)-1 {
				return false
			}
			if mqtt {
				return len(sTokens) >= i
			}
			return len(sTokens) > i
		}
		if i >= len(sTokens) {
			return false
		}
		if p != one && p != sTokens[i] {
			return false
		}
	}
	return len(pTokens) == len(sTokens)
}
