package connectivity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func drain(ch <-chan Event) []EventKind {
	var kinds []EventKind
	for {
		select {
		case ev := <-ch:
			kinds = append(kinds, ev.Kind)
		default:
			return kinds
		}
	}
}

func TestMonitor_EdgeTriggered(t *testing.T) {
	m := NewMonitor(Offline, testLogger())
	events, cancel := m.Subscribe()
	defer cancel()

	assert.False(t, m.Set(Offline), "repeated reading is not a transition")
	assert.True(t, m.Set(Online))
	assert.False(t, m.Set(Online))
	assert.False(t, m.Set(Online))
	assert.True(t, m.Set(Offline))
	assert.True(t, m.Set(Online))

	assert.Equal(t, []EventKind{EventRestored, EventLost, EventRestored}, drain(events))
	assert.True(t, m.IsOnline())
}

func TestMonitor_InitialStateEmitsNothing(t *testing.T) {
	m := NewMonitor(Online, testLogger())
	events, cancel := m.Subscribe()
	defer cancel()

	m.Set(Online)
	assert.Empty(t, drain(events))
	assert.Equal(t, "online", m.State().String())
}

func TestMonitor_EverySubscriberGetsEvents(t *testing.T) {
	m := NewMonitor(Offline, testLogger())
	a, cancelA := m.Subscribe()
	b, cancelB := m.Subscribe()
	defer cancelA()

	m.Set(Online)
	cancelB()
	cancelB()
	m.Set(Offline)

	assert.Equal(t, []EventKind{EventRestored, EventLost}, drain(a))

	var fromB []EventKind
	for ev := range b {
		fromB = append(fromB, ev.Kind)
	}
	assert.Equal(t, []EventKind{EventRestored}, fromB)
}

func TestMonitor_SlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewMonitor(Offline, testLogger())
	_, cancel := m.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			m.Set(Online)
			m.Set(Offline)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Set blocked on an undrained subscriber")
	}
}

func TestStaticSource(t *testing.T) {
	m := NewMonitor(Online, testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error)
	go func() { done <- m.Watch(ctx, StaticSource{State: Offline}) }()

	require.Eventually(t, func() bool { return !m.IsOnline() }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) report(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func TestStreamSource_ReportsConnectionEdges(t *testing.T) {
	closeConn := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Write(r.Context(), websocket.MessageText, []byte(`{"type":"hello"}`))
		<-closeConn
		conn.Close(websocket.StatusGoingAway, "bye")
	}))
	defer srv.Close()

	var (
		rec      recorder
		msgMu    sync.Mutex
		messages []string
	)
	src := NewStreamSource("ws"+strings.TrimPrefix(srv.URL, "http"), testLogger())
	src.Backoff.InitialDelay = time.Hour
	src.Backoff.MaxDelay = time.Hour
	src.OnMessage = func(b []byte) {
		msgMu.Lock()
		messages = append(messages, string(b))
		msgMu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- src.Run(ctx, rec.report) }()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []State{Online}, rec.snapshot())

	close(closeConn)
	require.Eventually(t, func() bool { return len(rec.snapshot()) == 2 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []State{Online, Offline}, rec.snapshot())

	msgMu.Lock()
	assert.Equal(t, []string{`{"type":"hello"}`}, messages)
	msgMu.Unlock()

	cancel()
	assert.NoError(t, <-done)
}

func TestStreamSource_DialFailureIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	srv.Close()

	var rec recorder
	src := NewStreamSource(url, testLogger())
	src.Backoff.InitialDelay = time.Hour
	src.Backoff.MaxDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- src.Run(ctx, rec.report) }()

	require.Eventually(t, func() bool { return len(rec.snapshot()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []State{Offline}, rec.snapshot())

	cancel()
	assert.NoError(t, <-done)
}
