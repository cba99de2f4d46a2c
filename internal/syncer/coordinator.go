package syncer

import (
	"context"
	"sync"
	"time"

	"precioverdadero/internal/connectivity"
	"precioverdadero/internal/metrics"
	"precioverdadero/internal/models"
	"precioverdadero/internal/notify"
	"precioverdadero/internal/offline"
	"precioverdadero/internal/retry"
	"precioverdadero/internal/tracing"
	"precioverdadero/pkg/commentapi"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// Submitter delivers one comment to the server.
type Submitter interface {
	Submit(ctx context.Context, input models.CommentInput, idempotencyKey string) error
}

// Refresher re-fetches and redraws the comment list.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerRestored Trigger = "restored"
	TriggerManual   Trigger = "manual"
	TriggerDeferred Trigger = "deferred"
	TriggerFollowUp Trigger = "follow_up"
)

// automatic triggers are subject to the minimum interval.
func (t Trigger) automatic() bool {
	return t != TriggerManual && t != TriggerFollowUp
}

// Result summarises what one call to Sync did.
type Result struct {
	Trigger Trigger
	// Skipped is set when no pass ran; Reason says why.
	Skipped bool
	Reason  string
	// Coalesced means a pass was already running; one follow-up pass
	// will run after it.
	Coalesced bool
	// RetryAfter is set for throttled triggers: the earliest time an
	// automatic pass is allowed again.
	RetryAfter time.Duration
	// Interrupted means the context ended before every item was tried.
	Interrupted bool
	Passes      int
	Synced      int
	Failed      int
	Remaining   int
}

const (
	ReasonOffline   = "offline"
	ReasonThrottled = "throttled"
)

type Config struct {
	// RequestTimeout bounds each submission; expiry counts as a failure.
	RequestTimeout time.Duration
	// MinInterval is the minimum gap between automatic passes.
	MinInterval time.Duration
	// MaxBackoff caps the gap after consecutive passes with failures.
	MaxBackoff time.Duration
}

// FromClientConfig converts the file configuration.
func FromClientConfig(c models.ClientConfig) Config {
	return Config{
		RequestTimeout: time.Duration(c.RequestTimeoutMs) * time.Millisecond,
		MinInterval:    time.Duration(c.MinSyncIntervalMs) * time.Millisecond,
		MaxBackoff:     time.Duration(c.MaxSyncBackoffMs) * time.Millisecond,
	}
}

// Coordinator drains the local queue against the server. Items are sent
// one at a time in queue order; a failed item stays queued and the pass
// moves on. Only one pass runs at a time.
type Coordinator struct {
	queue   *offline.Queue
	api     Submitter
	board   Refresher
	monitor *connectivity.Monitor
	surface notify.Surface
	logger  *logrus.Logger
	metrics *metrics.Registry
	now     func() time.Time

	mu           sync.Mutex
	cfg          Config
	cooldown     *retry.Backoff
	running      bool
	followUp     bool
	lastAuto     time.Time
	failedPasses int
}

func NewCoordinator(queue *offline.Queue, api Submitter, board Refresher, monitor *connectivity.Monitor,
	surface notify.Surface, cfg Config, logger *logrus.Logger) *Coordinator {
	c := &Coordinator{
		queue:   queue,
		api:     api,
		board:   board,
		monitor: monitor,
		surface: surface,
		logger:  logger,
		metrics: metrics.GetRegistry(),
		now:     time.Now,
	}
	c.UpdateConfig(cfg)
	return c
}

// UpdateConfig swaps timing settings; used on config reload.
func (c *Coordinator) UpdateConfig(cfg Config) {
	initial := cfg.MinInterval
	if initial <= 0 {
		initial = time.Second
	}
	if cfg.MaxBackoff < cfg.MinInterval {
		cfg.MaxBackoff = cfg.MinInterval
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg = cfg
	c.cooldown = retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: initial,
		MaxDelay:     cfg.MaxBackoff,
		Multiplier:   2.0,
	})
}

// Sync runs a pass unless one is running, the client is offline, or the
// trigger is automatic and arrives before the cool-down has passed.
func (c *Coordinator) Sync(ctx context.Context, trigger Trigger) Result {
	if !c.monitor.IsOnline() {
		c.logger.WithField("trigger", string(trigger)).Debug("Sync skipped while offline")
		return Result{Trigger: trigger, Skipped: true, Reason: ReasonOffline, Remaining: c.queue.Len()}
	}

	c.mu.Lock()
	if c.running {
		c.followUp = true
		c.mu.Unlock()
		c.logger.WithField("trigger", string(trigger)).Debug("Sync already running, follow-up queued")
		return Result{Trigger: trigger, Coalesced: true}
	}
	if trigger.automatic() {
		if wait := c.waitLocked(); wait > 0 {
			c.mu.Unlock()
			c.logger.WithFields(logrus.Fields{
				"trigger":     string(trigger),
				"retry_after": wait.String(),
			}).Debug("Sync throttled")
			return Result{Trigger: trigger, Skipped: true, Reason: ReasonThrottled, RetryAfter: wait, Remaining: c.queue.Len()}
		}
		c.lastAuto = c.now()
	}
	c.running = true
	c.mu.Unlock()

	total := Result{Trigger: trigger}
	current := trigger
	for {
		synced, failed, interrupted := c.pass(ctx, current)
		total.Passes++
		total.Synced += synced
		total.Failed += failed
		total.Interrupted = total.Interrupted || interrupted

		c.mu.Lock()
		// An interrupted pass says nothing about the server, so the
		// cool-down is left as it was.
		switch {
		case interrupted:
		case failed > 0:
			c.failedPasses++
		default:
			c.failedPasses = 0
		}
		if c.followUp && ctx.Err() == nil && c.monitor.IsOnline() {
			c.followUp = false
			c.mu.Unlock()
			current = TriggerFollowUp
			continue
		}
		c.followUp = false
		c.running = false
		c.mu.Unlock()
		break
	}

	total.Remaining = c.queue.Len()
	return total
}

// waitLocked returns how long an automatic trigger must still wait.
func (c *Coordinator) waitLocked() time.Duration {
	if c.lastAuto.IsZero() || c.cfg.MinInterval <= 0 {
		return 0
	}
	gap := c.cfg.MinInterval
	if c.failedPasses > 0 {
		if d := c.cooldown.GetNextDelay(c.failedPasses); d > gap {
			gap = d
		}
	}
	return gap - c.now().Sub(c.lastAuto)
}

// pass sends every item of a queue snapshot once. interrupted is set when
// ctx ended before the snapshot was done.
func (c *Coordinator) pass(ctx context.Context, trigger Trigger) (synced, failed int, interrupted bool) {
	start := c.now()
	ctx, span := tracing.StartSpan(ctx, "sync.pass", attribute.String("trigger", string(trigger)))
	defer span.End()

	labels := map[string]string{"trigger": string(trigger)}
	c.metrics.IncrementCounter(metrics.SyncPasses, labels, "Sync passes started")

	items := c.queue.List()
	if len(items) == 0 {
		c.reportPending(0)
		return 0, 0, false
	}

	log := c.logger.WithFields(logrus.Fields{
		"trigger": string(trigger),
		"pending": len(items),
	})
	log.Info("Sync pass started")

	c.mu.Lock()
	timeout := c.cfg.RequestTimeout
	c.mu.Unlock()

	for _, item := range items {
		if ctx.Err() != nil {
			interrupted = true
			break
		}

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		err := c.api.Submit(attemptCtx, item.Input(), item.ID)
		cancel()

		if err != nil && ctx.Err() != nil {
			interrupted = true
			break
		}
		if err != nil {
			failed++
			tracing.RecordError(ctx, err, attribute.String("pending_id", item.ID))
			log.WithError(err).WithFields(logrus.Fields{
				"pending_id": item.ID,
				"rejected":   commentapi.IsRejected(err),
			}).Warn("Pending comment not delivered, keeping it queued")
			continue
		}

		synced++
		if err := c.queue.Remove(item.ID); err != nil {
			// The server has the comment; the idempotency key keeps a
			// later resend from duplicating it.
			log.WithError(err).WithField("pending_id", item.ID).Error("Failed to drop delivered comment from local queue")
		}
	}

	remaining := c.queue.Len()
	c.reportPending(remaining)
	c.metrics.AddToCounter(metrics.SyncItemsSynced, float64(synced), nil, "Pending comments delivered")
	c.metrics.AddToCounter(metrics.SyncItemsFailed, float64(failed), nil, "Pending comment delivery failures")
	c.metrics.RecordTimer(metrics.SyncDuration, c.now().Sub(start), labels, "Sync pass duration")
	tracing.AddSpanAttributes(ctx, attribute.Int("synced", synced), attribute.Int("failed", failed),
		attribute.Bool("interrupted", interrupted))

	if synced > 0 {
		if c.board != nil {
			if err := c.board.Refresh(ctx); err != nil {
				log.WithError(err).Warn("Comment list refresh failed")
			}
		}
		c.surface.Notify(notify.Success(notify.SyncedMessage(synced)))
	}

	log.WithFields(logrus.Fields{
		"synced":      synced,
		"failed":      failed,
		"remaining":   remaining,
		"interrupted": interrupted,
	}).Info("Sync pass finished")
	return synced, failed, interrupted
}

func (c *Coordinator) reportPending(n int) {
	c.metrics.SetGauge(metrics.PendingComments, float64(n), nil, "Comments waiting in the local queue")
	c.surface.PendingChanged(n)
}

// Run syncs at startup when online and on every restored transition, and
// shows connectivity notices. Throttled triggers are retried once the
// cool-down has passed. It blocks until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	events, unsubscribe := c.monitor.Subscribe()
	defer unsubscribe()

	var (
		timer    *time.Timer
		deferred <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	schedule := func(res Result) {
		if res.Reason != ReasonThrottled {
			return
		}
		if timer == nil {
			timer = time.NewTimer(res.RetryAfter)
		} else {
			timer.Stop()
			timer.Reset(res.RetryAfter)
		}
		deferred = timer.C
	}

	if c.monitor.IsOnline() {
		schedule(c.Sync(ctx, TriggerStartup))
	} else {
		c.reportPending(c.queue.Len())
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev.Kind {
			case connectivity.EventRestored:
				c.surface.Notify(notify.Info(notify.MsgConnectionBack))
				schedule(c.Sync(ctx, TriggerRestored))
			case connectivity.EventLost:
				c.surface.Notify(notify.Info(notify.MsgConnectionLost))
			}

		case <-deferred:
			deferred = nil
			schedule(c.Sync(ctx, TriggerDeferred))
		}
	}
}
