package connectivity

import (
	"context"
	"net/http"
	"time"

	"precioverdadero/internal/constants"
	"precioverdadero/internal/retry"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// Source produces reachability readings until ctx is done.
type Source interface {
	Run(ctx context.Context, report func(State)) error
}

// StaticSource reports one fixed state.
type StaticSource struct {
	State State
}

func (s StaticSource) Run(ctx context.Context, report func(State)) error {
	report(s.State)
	<-ctx.Done()
	return nil
}

// StreamSource holds a websocket to the server's live stream. An open
// socket means Online; a failed dial or a dropped socket means Offline.
// Readings change only on connection events.
type StreamSource struct {
	URL        string
	HTTPClient *http.Client
	Logger     *logrus.Logger
	// OnMessage, when set, receives every frame read from the stream.
	OnMessage func([]byte)
	Backoff   retry.BackoffConfig
}

func NewStreamSource(url string, logger *logrus.Logger) *StreamSource {
	return &StreamSource{
		URL:    url,
		Logger: logger,
		Backoff: retry.BackoffConfig{
			InitialDelay: constants.DefaultStreamReconnectInitial * time.Millisecond,
			MaxDelay:     constants.DefaultStreamReconnectMaxMs * time.Millisecond,
			Multiplier:   2.0,
			Jitter:       true,
		},
	}
}

func (s *StreamSource) Run(ctx context.Context, report func(State)) error {
	backoff := retry.NewBackoff(s.Backoff)
	failures := 0

	for {
		connected := s.connectAndRead(ctx, report)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			failures = 0
		}
		failures++

		delay := backoff.GetNextDelay(failures)
		s.Logger.WithFields(logrus.Fields{
			"url":   s.URL,
			"delay": delay.String(),
		}).Debug("Live stream reconnect scheduled")
		if err := retry.Sleep(ctx, delay); err != nil {
			return nil
		}
	}
}

// connectAndRead returns whether the dial succeeded.
func (s *StreamSource) connectAndRead(ctx context.Context, report func(State)) bool {
	conn, _, err := websocket.Dial(ctx, s.URL, &websocket.DialOptions{HTTPClient: s.HTTPClient})
	if err != nil {
		if ctx.Err() == nil {
			s.Logger.WithError(err).Debug("Live stream dial failed")
			report(Offline)
		}
		return false
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	report(Online)
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.Logger.WithError(err).Debug("Live stream closed")
				report(Offline)
			}
			return true
		}
		if s.OnMessage != nil {
			s.OnMessage(data)
		}
	}
}
