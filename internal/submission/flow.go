package submission

import (
	"context"
	"time"

	"precioverdadero/internal/connectivity"
	"precioverdadero/internal/errors"
	"precioverdadero/internal/metrics"
	"precioverdadero/internal/models"
	"precioverdadero/internal/notify"
	"precioverdadero/internal/offline"
	"precioverdadero/internal/syncer"
	"precioverdadero/internal/tracing"
	"precioverdadero/internal/validation"
	"precioverdadero/pkg/commentapi"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

type Outcome int

const (
	OutcomeInvalid Outcome = iota
	OutcomeQueuedOffline
	OutcomeSent
	OutcomeQueuedAfterRejection
	OutcomeQueuedAfterFailure
	// OutcomeLost means the comment could be neither delivered nor saved.
	OutcomeLost
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInvalid:
		return "invalid"
	case OutcomeQueuedOffline:
		return "queued_offline"
	case OutcomeSent:
		return "sent"
	case OutcomeQueuedAfterRejection:
		return "queued_after_rejection"
	case OutcomeQueuedAfterFailure:
		return "queued_after_failure"
	case OutcomeLost:
		return "lost"
	default:
		return "unknown"
	}
}

// ClearForm reports whether the entered fields can be discarded.
func (o Outcome) ClearForm() bool {
	return o != OutcomeInvalid && o != OutcomeLost
}

// Queued reports whether the comment ended up in the local queue.
func (o Outcome) Queued() bool {
	return o == OutcomeQueuedOffline || o == OutcomeQueuedAfterRejection || o == OutcomeQueuedAfterFailure
}

// Result is what one submission did. Pending is set when the comment was
// queued; Err carries the underlying failure, if any.
type Result struct {
	Outcome Outcome
	Message string
	Pending *models.PendingComment
	Err     error
}

// Flow decides, for each new comment, between direct delivery and the
// local queue.
type Flow struct {
	queue   *offline.Queue
	api     syncer.Submitter
	board   syncer.Refresher
	monitor *connectivity.Monitor
	surface notify.Surface
	timeout time.Duration
	logger  *logrus.Logger
	metrics *metrics.Registry
}

func NewFlow(queue *offline.Queue, api syncer.Submitter, board syncer.Refresher, monitor *connectivity.Monitor,
	surface notify.Surface, timeout time.Duration, logger *logrus.Logger) *Flow {
	return &Flow{
		queue:   queue,
		api:     api,
		board:   board,
		monitor: monitor,
		surface: surface,
		timeout: timeout,
		logger:  logger,
		metrics: metrics.GetRegistry(),
	}
}

// Submit validates the comment and delivers or queues it. Exactly one
// notification is shown per call.
func (f *Flow) Submit(ctx context.Context, name, email, text string) Result {
	ctx, span := tracing.StartSpan(ctx, "comment.submit")
	defer span.End()

	input := models.CommentInput{Name: name, Email: email, Text: text}
	res := f.submit(ctx, input)

	tracing.AddSpanAttributes(ctx, attribute.String("outcome", res.Outcome.String()))
	f.metrics.IncrementCounter(metrics.SubmitOutcomes, map[string]string{"outcome": res.Outcome.String()},
		"Comment submissions by outcome")

	switch res.Outcome {
	case OutcomeSent:
		f.surface.Notify(notify.Success(res.Message))
	case OutcomeQueuedOffline, OutcomeQueuedAfterFailure:
		f.surface.Notify(notify.Info(res.Message))
	default:
		f.surface.Notify(notify.Error(res.Message))
	}
	return res
}

func (f *Flow) submit(ctx context.Context, input models.CommentInput) Result {
	if err := validation.ValidateComment(input, notify.MsgMissingFields); err != nil {
		return Result{Outcome: OutcomeInvalid, Message: errors.GetUserMessage(err), Err: err}
	}

	if !f.monitor.IsOnline() {
		return f.enqueue("", input, OutcomeQueuedOffline, notify.MsgSavedOffline, nil)
	}

	// The key doubles as the pending id, so a resend of a comment the
	// server accepted just before the timeout is recognised as a duplicate.
	key, err := f.queue.NewID()
	if err != nil {
		f.logger.WithError(err).Warn("Could not generate idempotency key")
		key = ""
	}

	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if f.timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, f.timeout)
	}
	err = f.api.Submit(attemptCtx, input, key)
	cancel()

	switch {
	case err == nil:
		f.logger.Info("Comment delivered")
		if f.board != nil {
			if rerr := f.board.Refresh(ctx); rerr != nil {
				f.logger.WithError(rerr).Warn("Comment list refresh failed")
			}
		}
		return Result{Outcome: OutcomeSent, Message: notify.MsgSent}
	case commentapi.IsRejected(err):
		f.logger.WithError(err).Warn("Comment rejected by server, saving locally")
		return f.enqueue(key, input, OutcomeQueuedAfterRejection, notify.MsgSavedAfterReject, err)
	default:
		f.logger.WithError(err).Warn("Comment delivery failed, saving locally")
		return f.enqueue(key, input, OutcomeQueuedAfterFailure, notify.MsgSavedAfterFailure, err)
	}
}

func (f *Flow) enqueue(id string, input models.CommentInput, outcome Outcome, message string, cause error) Result {
	var (
		pending *models.PendingComment
		err     error
	)
	if id != "" {
		pending, err = f.queue.EnqueueWithID(id, input)
	} else {
		pending, err = f.queue.Enqueue(input)
	}
	if err != nil {
		errors.Entry(f.logger.WithError(err).WithField("outcome", outcome.String()), err).Error("Comment lost: local save failed")
		return Result{Outcome: OutcomeLost, Message: notify.MsgLocalSaveFailed, Err: err}
	}
	f.surface.PendingChanged(f.queue.Len())
	f.logger.WithFields(logrus.Fields{
		"pending_id": pending.ID,
		"outcome":    outcome.String(),
	}).Info("Comment saved to local queue")
	return Result{Outcome: outcome, Message: message, Pending: pending, Err: cause}
}
