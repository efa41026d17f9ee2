// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Prairie Post Contributors

package gateway

import (
	"encoding/json"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/prairiepost/prairiepost/internal/chat"
)

type countingRecorder struct {
	mu      sync.Mutex
	opened  int
	closed  int
	dropped int
}

func (r *countingRecorder) ConnectionOpened() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened++
}

func (r *countingRecorder) ConnectionClosed() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
}

func (r *countingRecorder) EventDropped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped++
}

func (r *countingRecorder) counts() (opened, closed, dropped int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opened, r.closed, r.dropped
}

func newTestHub(recorder MetricsRecorder) *Hub {
	return NewHub(slog.New(slog.DiscardHandler), recorder)
}

func TestHub_RegisterUnregister(t *testing.T) {
	defer goleak.VerifyNone(t)

	recorder := &countingRecorder{}
	hub := newTestHub(recorder)

	conn := hub.Register(ulid.Make(), "Clara C")
	assert.Equal(t, 1, hub.ActiveConnections())

	hub.Unregister(conn)
	assert.Equal(t, 0, hub.ActiveConnections())

	// Unregister is idempotent and counts each connection once.
	hub.Unregister(conn)

	opened, closed, _ := recorder.counts()
	assert.Equal(t, 1, opened)
	assert.Equal(t, 1, closed)

	_, open := <-conn.Events()
	assert.False(t, open, "event channel closed after unregister")
}

func TestHub_BroadcastReachesAllOpenConnections(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := newTestHub(nil)
	a := hub.Register(ulid.Make(), "A")
	b := hub.Register(ulid.Make(), "B")

	// A connection closed before the broadcast must not receive it.
	gone := hub.Register(ulid.Make(), "Gone")
	hub.Unregister(gone)

	hub.Broadcast(Event{Name: "chat:new", Data: []byte(`{}`)})

	for _, conn := range []*Connection{a, b} {
		select {
		case event := <-conn.Events():
			assert.Equal(t, "chat:new", event.Name)
		case <-time.After(time.Second):
			t.Fatal("connection did not receive broadcast")
		}
	}

	select {
	case _, open := <-gone.Events():
		assert.False(t, open)
	default:
		t.Fatal("closed connection's channel should be closed")
	}

	hub.Unregister(a)
	hub.Unregister(b)
}

func TestHub_SlowConnectionIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	recorder := &countingRecorder{}
	hub := newTestHub(recorder)

	slow := hub.Register(ulid.Make(), "Slow")

	// Fill the connection's buffer without draining it.
	for range connBufferSize {
		hub.Broadcast(Event{Name: "chat:new", Data: []byte(`{}`)})
	}
	assert.Equal(t, 1, hub.ActiveConnections())

	// One more send overflows the buffer and the connection is removed.
	hub.Broadcast(Event{Name: "chat:new", Data: []byte(`{}`)})
	assert.Equal(t, 0, hub.ActiveConnections())

	_, _, dropped := recorder.counts()
	assert.Equal(t, 1, dropped)

	drained := 0
	for range slow.Events() {
		drained++
	}
	assert.Equal(t, connBufferSize, drained, "buffered events remain readable until the close")
}

func TestHub_NotifyMessage(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := newTestHub(nil)
	conn := hub.Register(ulid.Make(), "Clara C")
	defer hub.Unregister(conn)

	userID := ulid.Make()
	hub.NotifyMessage(&chat.Message{
		ID:        7,
		UserID:    userID,
		Content:   "howdy",
		CreatedAt: time.Now(),
		Author:    chat.Author{ID: userID.String(), DisplayName: "Clara C"},
	})

	select {
	case event := <-conn.Events():
		assert.Equal(t, EventChatNew, event.Name)

		var payload map[string]any
		require.NoError(t, json.Unmarshal(event.Data, &payload))
		assert.Equal(t, float64(7), payload["id"])
		assert.Equal(t, "howdy", payload["content"])
		user, ok := payload["user"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Clara C", user["displayName"])
		assert.NotContains(t, payload, "UserID", "internal fields stay internal")
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}
}

func TestHub_CloseRemovesEverything(t *testing.T) {
	defer goleak.VerifyNone(t)

	recorder := &countingRecorder{}
	hub := newTestHub(recorder)

	a := hub.Register(ulid.Make(), "A")
	b := hub.Register(ulid.Make(), "B")

	hub.Close()
	assert.Equal(t, 0, hub.ActiveConnections())

	for _, conn := range []*Connection{a, b} {
		_, open := <-conn.Events()
		assert.False(t, open, "event channel closed after hub close")
	}

	opened, closed, _ := recorder.counts()
	assert.Equal(t, 2, opened)
	assert.Equal(t, 2, closed)
}

func TestHub_ConcurrentBroadcastAndUnregister(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub := newTestHub(nil)

	var conns []*Connection
	for range 20 {
		conns = append(conns, hub.Register(ulid.Make(), "x"))
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range 200 {
			hub.Broadcast(Event{Name: "chat:new", Data: []byte(`{}`)})
		}
	}()
	go func() {
		defer wg.Done()
		for _, conn := range conns {
			hub.Unregister(conn)
		}
	}()
	wg.Wait()

	assert.Equal(t, 0, hub.ActiveConnections())
}
