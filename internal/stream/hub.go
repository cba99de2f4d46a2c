package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"precioverdadero/internal/metrics"
	"precioverdadero/internal/models"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

const (
	clientBuffer = 16
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

type client struct {
	send chan []byte
	// closed once the hub gives up on the client.
	gone chan struct{}
	once sync.Once
}

func (c *client) drop() {
	c.once.Do(func() { close(c.gone) })
}

// Hub fans events out to every connected websocket. A client whose buffer
// is full is disconnected instead of stalling the broadcast.
type Hub struct {
	logger         *logrus.Logger
	originPatterns []string
	metrics        *metrics.Registry

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewHub(originPatterns []string, logger *logrus.Logger) *Hub {
	return &Hub{
		logger:         logger,
		originPatterns: originPatterns,
		metrics:        metrics.GetRegistry(),
		clients:        make(map[*client]struct{}),
	}
}

// Clients returns the number of connected sockets.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Publish implements events.Publisher.
func (h *Hub) Publish(_ context.Context, ev models.StreamEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Dropping slow live stream client")
			h.removeLocked(c)
		}
	}
	return nil
}

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		h.removeLocked(c)
	}
	return nil
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.reportLocked()
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	c.drop()
	h.reportLocked()
}

func (h *Hub) reportLocked() {
	h.metrics.SetGauge(metrics.StreamClients, float64(len(h.clients)), nil, "Connected live stream clients")
}

// ServeHTTP upgrades the request and streams events until the client goes
// away or is dropped. The first frame is always a hello event.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The server's write timeout would otherwise cut long-lived sockets.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.WithError(err).Debug("Live stream upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ctx := conn.CloseRead(r.Context())
	c := &client{send: make(chan []byte, clientBuffer), gone: make(chan struct{})}

	hello, _ := json.Marshal(models.StreamEvent{Type: models.EventHello, At: time.Now().UTC()})
	c.send <- hello
	h.add(c)
	defer h.remove(c)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.gone:
			conn.Close(websocket.StatusPolicyViolation, "too slow")
			return
		case data := <-c.send:
			if err := write(ctx, conn, data); err != nil {
				h.logger.WithError(err).Debug("Live stream write failed")
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
