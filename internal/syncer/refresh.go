package syncer

import (
	"context"
	"encoding/json"

	"precioverdadero/internal/models"

	"github.com/sirupsen/logrus"
)

// EventRefresher redraws the board when the live stream reports a new
// comment. Bursts collapse into a single refresh.
type EventRefresher struct {
	board  Refresher
	logger *logrus.Logger
	kick   chan struct{}
}

func NewEventRefresher(board Refresher, logger *logrus.Logger) *EventRefresher {
	return &EventRefresher{board: board, logger: logger, kick: make(chan struct{}, 1)}
}

// Handle takes one raw stream frame. It never blocks.
func (r *EventRefresher) Handle(data []byte) {
	var ev models.StreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		r.logger.WithError(err).Debug("Ignoring malformed stream frame")
		return
	}
	if ev.Type != models.EventCommentCreated {
		return
	}
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run performs the refreshes until ctx is done.
func (r *EventRefresher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-r.kick:
			if err := r.board.Refresh(ctx); err != nil && ctx.Err() == nil {
				r.logger.WithError(err).Warn("Board refresh after stream event failed")
			}
		}
	}
}
