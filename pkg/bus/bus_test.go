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
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/necromancy/node/model"
)

func TestLoopbackDelivery(t *testing.T) {
	l := NewLoopback()
	var got []*Message
	sub, err := l.Subscribe("node.gpio", "", func(msg *Message) {
		got = append(got, msg)
	})
	require.NoError(t, err)
	assert.Equal(t, "node.gpio", sub.Subject())

	require.NoError(t, l.Publish("node.gpio", []byte(`{"pin":"a"}`)))
	require.NoError(t, l.Publish("node.other", []byte(`{}`)))
	require.NoError(t, l.Deliver(&Message{Subject: "node.gpio", Data: []byte(`{}`), Reply: "inbox.1"}))

	require.Len(t, got, 2)
	assert.Equal(t, `{"pin":"a"}`, string(got[0].Data))
	assert.False(t, got[0].HasReply())
	assert.True(t, got[1].HasReply())
	assert.Equal(t, "inbox.1", got[1].Reply)

	require.NoError(t, sub.Unsubscribe())
	assert.Equal(t, 0, l.SubscriptionCount())
	require.NoError(t, l.Publish("node.gpio", nil))
	assert.Len(t, got, 2)
}

func TestLoopbackQueueGroup(t *testing.T) {
	l := NewLoopback()
	counts := make([]int, 3)
	for i := range counts {
		i := i
		_, err := l.Subscribe("work", "workers", func(*Message) { counts[i]++ })
		require.NoError(t, err)
	}
	plain := 0
	_, err := l.Subscribe("work", "", func(*Message) { plain++ })
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		require.NoError(t, l.Publish("work", nil))
	}
	assert.Equal(t, []int{2, 2, 2}, counts)
	assert.Equal(t, 6, plain)
}

func TestLoopbackWildcardDelivery(t *testing.T) {
	l := NewLoopback()
	var exact, wildcard, mqtt int
	_, err := l.Subscribe("node.gpio", "", func(*Message) { exact++ })
	require.NoError(t, err)
	_, err = l.Subscribe("node.*", "", func(*Message) { wildcard++ })
	require.NoError(t, err)
	_, err = l.Subscribe("node/#", "", func(*Message) { mqtt++ })
	require.NoError(t, err)

	require.NoError(t, l.Publish("node.gpio", nil))
	require.NoError(t, l.Publish("node.service", nil))
	require.NoError(t, l.Publish("node/gpio/17", nil))
	assert.Equal(t, 1, exact)
	assert.Equal(t, 2, wildcard)
	assert.Equal(t, 1, mqtt)
}

func TestLoopbackHandlerOwnsMessage(t *testing.T) {
	l := NewLoopback()
	var kept *Message
	_, err := l.Subscribe("node.gpio", "", func(msg *Message) { kept = msg })
	require.NoError(t, err)

	data := []byte(`{"pin":"a"}`)
	require.NoError(t, l.Publish("node.gpio", data))
	copy(data, "XXXXXXXXXXX")
	require.NotNil(t, kept)
	assert.Equal(t, `{"pin":"a"}`, string(kept.Data))
}

func TestSubjectMatches(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		match   bool
	}{
		{"a.b", "a.b", true},
		{"a.b", "a.c", false},
		{"a.*", "a.b", true},
		{"a.*", "a.b.c", false},
		{"a.>", "a.b.c", true},
		{"a.>", "a", false},
		{"a.>.c", "a.b.c", false},
		{"a/+/c", "a/b/c", true},
		{"a/#", "a/b/c", true},
		{"a/#", "a", true},
		{"#", "a/b", true},
		{"a/#", "b", false},
		{"a/+", "a/b/c", false},
	}
	for _, test := range tests {
		assert.Equal(t, test.match, SubjectMatches(test.pattern, test.subject), "%s ~ %s", test.pattern, test.subject)
	}
}

func TestLoopbackClose(t *testing.T) {
	l := NewLoopback()
	require.NoError(t, l.Close())
	assert.Error(t, l.Publish("x", nil))
	_, err := l.Subscribe("x", "", func(*Message) {})
	assert.Error(t, err)
}

func TestSharedTopic(t *testing.T) {
	assert.Equal(t, "node/gpio", sharedTopic("node/gpio", ""))
	assert.Equal(t, "$share/nodes/node/gpio", sharedTopic("node/gpio", "nodes"))
}

func TestConnect(t *testing.T) {
	conn, err := Connect(model.BusConfig{Type: model.BusTypeLoopback}, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "loopback", conn.Name())
	require.NoError(t, conn.Close())

	_, err = Connect(model.BusConfig{Type: "carrier-pigeon"}, zerolog.Nop())
	assert.True(t, model.IsConfigError(err))
}
