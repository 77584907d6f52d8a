package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reservo/models"
	"reservo/services/realtime"
	"reservo/services/tasks"

	"github.com/hibiken/asynq"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	tasks []*asynq.Task
	err   error
}

func (q *fakeQueue) EnqueueContext(_ context.Context, t *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.tasks = append(q.tasks, t)
	return &asynq.TaskInfo{ID: "task-1", Type: t.Type()}, nil
}

func TestDispatcher_QueuesInsertAndUpdate(t *testing.T) {
	q := &fakeQueue{}
	d := NewDispatcher(q, 5)
	var hooked []string
	d.OnInsert = func(_ context.Context, r models.Reservation) error {
		hooked = append(hooked, r.ID)
		return errors.New("push failed")
	}

	h := d.Handlers(context.Background())
	h.OnInsert(row(models.StatusPending, 1))
	h.OnUpdate(row(models.StatusConfirmed, 2))

	require.Len(t, q.tasks, 2)
	assert.Equal(t, []string{"r1"}, hooked)

	ev, err := tasks.ParseWebhookTask(q.tasks[1])
	require.NoError(t, err)
	assert.Equal(t, models.EventUpdate, ev.Type)
	assert.Contains(t, string(ev.Record), `"status":"Confirmed"`)
}

func TestDispatcher_EnqueueError(t *testing.T) {
	d := NewDispatcher(&fakeQueue{err: errors.New("redis down")}, 5)
	err := d.Dispatch(context.Background(), models.EventInsert, row(models.StatusPending, 1))
	assert.ErrorContains(t, err, "redis down")
}

type fakeSubscription struct {
	mu       sync.Mutex
	handlers []realtime.Handlers
	unsubs   int
}

func (f *fakeSubscription) Subscribe(_ context.Context, h realtime.Handlers) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, h)
}

func (f *fakeSubscription) Unsubscribe(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubs++
}

func (f *fakeSubscription) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *fakeSubscription) last() realtime.Handlers {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers[len(f.handlers)-1]
}

func newSupervised(t *testing.T) (*Dispatcher, *fakeSubscription, clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	d := NewDispatcher(&fakeQueue{}, 5)
	d.Clock = clock
	sub := &fakeSubscription{}
	d.Start(context.Background(), sub)
	t.Cleanup(func() { d.Stop(context.Background()) })
	require.Equal(t, 1, sub.count())
	return d, sub, clock
}

func TestDispatcher_ResubscribesAfterTimeout(t *testing.T) {
	d, sub, clock := newSupervised(t)

	sub.last().OnStatus(realtime.StatusTimedOut, context.DeadlineExceeded)

	clock.Advance(d.RetryDelay - time.Millisecond)
	assert.Never(t, func() bool { return sub.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond, "must wait the full delay")

	clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return sub.count() == 2 }, time.Second, 5*time.Millisecond)
}

func TestDispatcher_ResubscribesAfterServerClose(t *testing.T) {
	d, sub, clock := newSupervised(t)
	first := sub.last()

	first.OnStatus(realtime.StatusClosed, nil)
	clock.Advance(d.RetryDelay)
	require.Eventually(t, func() bool { return sub.count() == 2 }, time.Second, 5*time.Millisecond)

	// the replaced handlers see a close while the channel is swapped
	first.OnStatus(realtime.StatusClosed, nil)
	clock.Advance(d.RetryDelay)
	assert.Never(t, func() bool { return sub.count() > 2 }, 50*time.Millisecond, 5*time.Millisecond)

	sub.last().OnStatus(realtime.StatusChannelError, errors.New("reset"))
	clock.Advance(d.RetryDelay)
	assert.Never(t, func() bool { return sub.count() > 2 }, 50*time.Millisecond, 5*time.Millisecond, "channel errors are retried by the listener")
}

func TestDispatcher_StopCancelsResubscribe(t *testing.T) {
	d, sub, clock := newSupervised(t)
	h := sub.last()

	h.OnStatus(realtime.StatusTimedOut, context.DeadlineExceeded)
	d.Stop(context.Background())
	h.OnStatus(realtime.StatusClosed, nil)

	clock.Advance(d.RetryDelay * 2)
	assert.Never(t, func() bool { return sub.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, 1, sub.unsubs)

	d.Stop(context.Background())
	assert.Equal(t, 1, sub.unsubs, "stop is idempotent")
}

// endingFeed serves streams the server ends immediately.
type endingFeed struct {
	mu    sync.Mutex
	opens int
}

func (f *endingFeed) Open(context.Context) (realtime.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opens++
	return endedStream{}, nil
}

func (f *endingFeed) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opens
}

type endedStream struct{}

func (endedStream) Next(context.Context) (realtime.Change, error) {
	return realtime.Change{}, realtime.ErrStreamClosed
}

func (endedStream) Close(context.Context) error { return nil }

func TestDispatcher_RecoversListenerAfterServerClose(t *testing.T) {
	clock := clockwork.NewFakeClock()
	feed := &endingFeed{}
	d := NewDispatcher(&fakeQueue{}, 5)
	d.Clock = clock

	d.Start(context.Background(), realtime.NewListener(feed, clockwork.NewFakeClock()))
	require.Equal(t, 1, feed.count())

	done := make(chan struct{})
	go func() {
		clock.BlockUntil(1)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("no resubscribe scheduled after the stream closed")
	}

	clock.Advance(d.RetryDelay)
	require.Eventually(t, func() bool { return feed.count() == 2 }, time.Second, 5*time.Millisecond)

	d.Stop(context.Background())
	clock.Advance(d.RetryDelay * 2)
	assert.Never(t, func() bool { return feed.count() > 2 }, 50*time.Millisecond, 5*time.Millisecond)
}
