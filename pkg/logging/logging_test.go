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
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/necromancy/node/model"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"WARNING": zerolog.WarnLevel,
		"warn":    zerolog.WarnLevel,
		"Error":   zerolog.ErrorLevel,
	}
	for input, expected := range tests {
		level, err := ParseLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, expected, level, input)
	}
	_, err := ParseLevel("chatty")
	assert.True(t, model.IsConfigError(err))
}

func TestNewLoggerJSON(t *testing.T) {
	var buf, extra bytes.Buffer
	log := NewLogger(&buf, "json", zerolog.InfoLevel, &extra)
	log.Debug().Msg("hidden")
	log.Info().Str("pin", "relay").Msg("visible")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "visible", line["message"])
	assert.Equal(t, "relay", line["pin"])
	assert.Equal(t, buf.String(), extra.String())
}

type recordingPublisher struct {
	mutex    sync.Mutex
	subjects []string
	data     [][]byte
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.subjects = append(p.subjects, subject)
	p.data = append(p.data, data)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.data)
}

func TestBusWriter(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewBusWriter(ctx)
	pub := &recordingPublisher{}
	_, err := w.Write([]byte("queued before enabled\n"))
	require.NoError(t, err)

	w.SetDestination("node.logs", pub)
	w.Enable(true)
	assert.Eventually(t, func() bool { return pub.count() == 1 }, time.Second, 5*time.Millisecond)

	var msg logMsg
	pub.mutex.Lock()
	require.NoError(t, json.Unmarshal(pub.data[0], &msg))
	assert.Equal(t, "node.logs", pub.subjects[0])
	pub.mutex.Unlock()
	assert.Equal(t, "queued before enabled\n", msg.Message)
}

func TestBusWriterNeverBlocks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := NewBusWriter(ctx)
	for i := 0; i < busQueueSize*3; i++ {
		n, err := w.Write([]byte("line"))
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	}
}
