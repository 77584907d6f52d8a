package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reservo/models"
	"reservo/services/realtime"
	"reservo/services/tasks"
	"reservo/utils"

	"github.com/hibiken/asynq"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// Enqueuer is the part of *asynq.Client the dispatcher needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher turns change-stream rows into relay tasks.
type Dispatcher struct {
	Queue    Enqueuer
	MaxRetry int
	// OnInsert runs after an insert is queued. Errors are logged.
	OnInsert func(ctx context.Context, r models.Reservation) error
	// RetryDelay is the wait before reopening a timed-out or closed channel.
	RetryDelay time.Duration
	Clock      clockwork.Clock

	mu      sync.Mutex
	sub     realtime.Subscriber
	ctx     context.Context
	gen     uint64
	running bool
	retry   clockwork.Timer
}

func NewDispatcher(queue Enqueuer, maxRetry int) *Dispatcher {
	return &Dispatcher{
		Queue:      queue,
		MaxRetry:   maxRetry,
		RetryDelay: realtime.ResubscribeDelay,
		Clock:      clockwork.NewRealClock(),
	}
}

// Start subscribes to sub and keeps the subscription open until Stop. The
// listener retries channel errors itself. A timed-out open or a close that
// Stop did not ask for is reopened here after RetryDelay.
func (d *Dispatcher) Start(ctx context.Context, sub realtime.Subscriber) {
	d.mu.Lock()
	d.sub = sub
	d.ctx = ctx
	d.running = true
	d.mu.Unlock()

	d.subscribe()
}

// Stop cancels any pending resubscribe and closes the channel.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.gen++
	if d.retry != nil {
		d.retry.Stop()
		d.retry = nil
	}
	sub := d.sub
	d.mu.Unlock()

	sub.Unsubscribe(ctx)
}

func (d *Dispatcher) subscribe() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.gen++
	gen := d.gen
	sub, ctx := d.sub, d.ctx
	d.mu.Unlock()

	h := d.Handlers(ctx)
	logStatus := h.OnStatus
	h.OnStatus = func(s realtime.Status, err error) {
		logStatus(s, err)
		if s == realtime.StatusTimedOut || s == realtime.StatusClosed {
			d.scheduleResubscribe(gen, s)
		}
	}
	sub.Subscribe(ctx, h)
}

// scheduleResubscribe ignores statuses from handlers an earlier subscribe or
// Stop has replaced, so the close emitted while swapping channels is not a loss.
func (d *Dispatcher) scheduleResubscribe(gen uint64, s realtime.Status) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running || gen != d.gen || d.retry != nil {
		return
	}
	utils.GetLogger().Warn("dispatcher: realtime channel lost, resubscribing",
		zap.String("status", string(s)), zap.Duration("delay", d.RetryDelay))
	utils.RealtimeResubscribes.Inc()
	d.retry = d.Clock.AfterFunc(d.RetryDelay, func() {
		d.mu.Lock()
		if gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.retry = nil
		d.mu.Unlock()
		d.subscribe()
	})
}

// Dispatch queues one event for the relay worker.
func (d *Dispatcher) Dispatch(ctx context.Context, eventType string, r models.Reservation) error {
	record, err := realtime.EncodeRecord(r)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	task, opts, err := tasks.NewWebhookTask(models.WebhookEvent{Type: eventType, Record: record}, d.MaxRetry)
	if err != nil {
		return err
	}
	if _, err := d.Queue.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue webhook task: %w", err)
	}
	return nil
}

// Handlers adapts the dispatcher to a realtime subscription.
func (d *Dispatcher) Handlers(ctx context.Context) realtime.Handlers {
	logger := utils.GetLogger()
	dispatch := func(eventType string, r models.Reservation) {
		if err := d.Dispatch(ctx, eventType, r); err != nil {
			logger.Error("dispatcher: failed to queue event", zap.String("id", r.ID), zap.String("type", eventType), zap.Error(err))
		}
	}
	return realtime.Handlers{
		OnInsert: func(r models.Reservation) {
			dispatch(models.EventInsert, r)
			if d.OnInsert != nil {
				if err := d.OnInsert(ctx, r); err != nil {
					logger.Warn("dispatcher: insert hook failed", zap.String("id", r.ID), zap.Error(err))
				}
			}
		},
		OnUpdate: func(r models.Reservation) { dispatch(models.EventUpdate, r) },
		OnStatus: func(s realtime.Status, err error) {
			logger.Info("dispatcher: realtime status", zap.String("status", string(s)), zap.Error(err))
		},
	}
}

// ProcessTask runs the relay for a queued event. Events that can never be
// forwarded skip asynq's retries.
func (r *Relay) ProcessTask(ctx context.Context, t *asynq.Task) error {
	ev, err := tasks.ParseWebhookTask(t)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if _, err := r.Handle(ctx, ev); err != nil {
		if errors.Is(err, ErrInvalidEvent) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}
