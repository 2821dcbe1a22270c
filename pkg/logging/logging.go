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

package logging

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/necromancy/node/model"
)

// ParseLevel parses a log level name, case insensitive.
// WARNING and CRITICAL are accepted as aliases.
func ParseLevel(s string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	case "critical":
		return zerolog.FatalLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil {
		return zerolog.NoLevel, errors.Wrapf(model.ConfigError, "invalid log level '%s'", s)
	}
	return level, nil
}

// NewLogger creates a logger writing to the given output.
// Format "json" writes JSON lines, anything else human readable lines.
// Extra outputs always receive JSON lines.
func NewLogger(out io.Writer, format string, level zerolog.Level, extra ...io.Writer) zerolog.Logger {
	if !strings.EqualFold(format, "json") {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	if len(extra) > 0 {
		out = NewMultiWriter(append([]io.Writer{out}, extra...)...)
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
