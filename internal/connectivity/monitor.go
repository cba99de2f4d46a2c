package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State int

const (
	Offline State = iota
	Online
)

func (s State) String() string {
	if s == Online {
		return "online"
	}
	return "offline"
}

type EventKind int

const (
	// EventRestored fires on an Offline to Online transition.
	EventRestored EventKind = iota + 1
	// EventLost fires on an Online to Offline transition.
	EventLost
)

func (k EventKind) String() string {
	switch k {
	case EventRestored:
		return "restored"
	case EventLost:
		return "lost"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind EventKind
	At   time.Time
}

const subscriberBuffer = 16

// Monitor tracks reachability as reported by a Source and turns readings
// into edge events: one event per transition, none for repeated readings.
type Monitor struct {
	mu     sync.Mutex
	state  State
	subs   map[int]chan Event
	nextID int
	logger *logrus.Logger
	now    func() time.Time
}

// NewMonitor starts in the platform's current state; no event is emitted
// for it.
func NewMonitor(initial State, logger *logrus.Logger) *Monitor {
	return &Monitor{
		state:  initial,
		subs:   make(map[int]chan Event),
		logger: logger,
		now:    time.Now,
	}
}

func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Monitor) IsOnline() bool {
	return m.State() == Online
}

// Set records a reading and reports whether it was a transition.
func (m *Monitor) Set(s State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s == m.state {
		return false
	}
	m.state = s

	ev := Event{Kind: EventLost, At: m.now()}
	if s == Online {
		ev.Kind = EventRestored
	}
	m.logger.WithField("state", s.String()).Info("Connectivity changed")

	for id, ch := range m.subs {
		select {
		case ch <- ev:
		default:
			m.logger.WithField("subscriber", id).Warn("Connectivity subscriber not draining, event dropped")
		}
	}
	return true
}

// Subscribe returns a channel of transitions and a function that ends the
// subscription and closes the channel.
func (m *Monitor) Subscribe() (<-chan Event, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextID
	m.nextID++
	ch := make(chan Event, subscriberBuffer)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
			close(ch)
		})
	}
}

// Watch feeds readings from src into the monitor until ctx is done.
func (m *Monitor) Watch(ctx context.Context, src Source) error {
	return src.Run(ctx, func(s State) { m.Set(s) })
}
