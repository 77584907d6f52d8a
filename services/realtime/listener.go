package realtime

import (
	"context"
	"errors"
	"sync"
	"time"

	"reservo/utils"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	// ResubscribeDelay is the fixed wait before reopening after CHANNEL_ERROR.
	ResubscribeDelay = 5 * time.Second
	// SubscribeTimeout bounds a single open attempt.
	SubscribeTimeout = 10 * time.Second
)

// Listener holds at most one open channel. Subscribe replaces it and
// Unsubscribe tears it down.
type Listener struct {
	Feed             Feed
	Clock            clockwork.Clock
	RetryDelay       time.Duration
	SubscribeTimeout time.Duration

	mu       sync.Mutex
	gen      uint64
	active   bool
	handlers Handlers
	parent   context.Context
	cancel   context.CancelFunc
	stream   Stream
	retry    clockwork.Timer
}

func NewListener(feed Feed, clock clockwork.Clock) *Listener {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Listener{
		Feed:             feed,
		Clock:            clock,
		RetryDelay:       ResubscribeDelay,
		SubscribeTimeout: SubscribeTimeout,
	}
}

var _ Subscriber = (*Listener)(nil)

// Subscribe opens a channel delivering inserts and updates to h. An existing
// channel is torn down first.
func (l *Listener) Subscribe(ctx context.Context, h Handlers) {
	l.Unsubscribe(ctx)

	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.active = true
	l.handlers = h
	l.parent = context.WithoutCancel(ctx)
	l.mu.Unlock()

	l.open(gen)
}

// Unsubscribe closes the current channel. Errors are logged.
func (l *Listener) Unsubscribe(ctx context.Context) {
	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return
	}
	l.gen++
	l.active = false
	if l.retry != nil {
		l.retry.Stop()
		l.retry = nil
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	stream := l.stream
	l.stream = nil
	h := l.handlers
	l.mu.Unlock()

	if stream != nil {
		if err := stream.Close(ctx); err != nil {
			utils.GetLogger().Warn("realtime: failed to close stream", zap.Error(err))
		}
	}
	emitStatus(h, StatusClosed, nil)
}

func (l *Listener) open(gen uint64) {
	logger := utils.GetLogger()

	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(l.parent)
	l.cancel = cancel
	h := l.handlers
	timeout := l.SubscribeTimeout
	l.mu.Unlock()

	openCtx, cancelOpen := context.WithTimeout(runCtx, timeout)
	stream, err := l.Feed.Open(openCtx)
	timedOut := errors.Is(openCtx.Err(), context.DeadlineExceeded)
	cancelOpen()

	if err != nil {
		if runCtx.Err() != nil {
			return
		}
		if timedOut {
			logger.Warn("realtime: subscribe timed out", zap.Duration("timeout", timeout))
			emitStatus(h, StatusTimedOut, err)
			return
		}
		logger.Error("realtime: subscribe failed", zap.Error(err))
		emitStatus(h, StatusChannelError, err)
		l.scheduleResubscribe(gen)
		return
	}

	l.mu.Lock()
	if gen != l.gen {
		l.mu.Unlock()
		_ = stream.Close(context.Background())
		return
	}
	l.stream = stream
	l.mu.Unlock()

	logger.Debug("realtime: subscribed")
	emitStatus(h, StatusSubscribed, nil)
	go l.read(runCtx, gen, stream, h)
}

func (l *Listener) read(ctx context.Context, gen uint64, stream Stream, h Handlers) {
	logger := utils.GetLogger()
	for {
		change, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.mu.Lock()
			current := gen == l.gen
			if current {
				l.stream = nil
			}
			l.mu.Unlock()
			if !current {
				return
			}
			_ = stream.Close(context.Background())

			if errors.Is(err, ErrStreamClosed) {
				logger.Info("realtime: stream closed by server")
				emitStatus(h, StatusClosed, nil)
				return
			}
			logger.Error("realtime: stream error", zap.Error(err))
			emitStatus(h, StatusChannelError, err)
			l.scheduleResubscribe(gen)
			return
		}
		dispatch(change, h)
	}
}

// scheduleResubscribe reopens the channel after RetryDelay, never sooner.
func (l *Listener) scheduleResubscribe(gen uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if gen != l.gen {
		return
	}
	l.gen++
	next := l.gen
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	utils.RealtimeResubscribes.Inc()
	l.retry = l.Clock.AfterFunc(l.RetryDelay, func() {
		l.mu.Lock()
		if next == l.gen {
			l.retry = nil
		}
		l.mu.Unlock()
		l.open(next)
	})
}

func dispatch(change Change, h Handlers) {
	logger := utils.GetLogger()

	res, err := DecodeRecord(change.Document)
	if err != nil {
		logger.Error("realtime: dropping malformed payload", zap.String("operation", change.Operation), zap.Error(err))
		return
	}
	utils.RealtimeEvents.WithLabelValues(change.Operation).Inc()

	switch change.Operation {
	case OpInsert:
		if h.OnInsert != nil {
			h.OnInsert(res)
		}
	case OpUpdate:
		if h.OnUpdate != nil {
			h.OnUpdate(res)
		}
	default:
		logger.Debug("realtime: ignoring operation", zap.String("operation", change.Operation))
	}
}

func emitStatus(h Handlers, s Status, err error) {
	if h.OnStatus != nil {
		h.OnStatus(s, err)
	}
}
