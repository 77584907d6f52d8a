package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"reservo/models"
	"reservo/services/realtime"
	"reservo/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type endpoint struct {
	mu       sync.Mutex
	status   int
	received []models.WebhookPayload
	srv      *httptest.Server
}

func newEndpoint(t *testing.T, status int) *endpoint {
	t.Helper()
	e := &endpoint{status: status}
	e.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var p models.WebhookPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		e.mu.Lock()
		e.received = append(e.received, p)
		code := e.status
		e.mu.Unlock()
		w.WriteHeader(code)
	}))
	t.Cleanup(e.srv.Close)
	return e
}

func (e *endpoint) hits() []models.WebhookPayload {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.WebhookPayload{}, e.received...)
}

func newTestRelay(t *testing.T, url string) (*Relay, *RedisMarkers, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	markers := NewRedisMarkers(client)
	return NewRelay(markers, url, time.Second, time.Minute), markers, mr
}

func event(t *testing.T, eventType string, r models.Reservation) models.WebhookEvent {
	t.Helper()
	raw, err := realtime.EncodeRecord(r)
	require.NoError(t, err)
	return models.WebhookEvent{Type: eventType, Record: raw}
}

func row(status string, version int64) models.Reservation {
	return models.Reservation{
		ID: "r1", Name: "Alice", Phone: "612345678", Date: "01/06/2025", TimeSlot: "8h00-11h00",
		Status: status, Version: version, CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestRelay_InsertForwardsBookingOrigin(t *testing.T) {
	ep := newEndpoint(t, http.StatusOK)
	r, _, _ := newTestRelay(t, ep.srv.URL)

	out, err := r.Handle(context.Background(), event(t, models.EventInsert, row(models.StatusPending, 1)))
	require.NoError(t, err)
	assert.False(t, out.Duplicate)

	hits := ep.hits()
	require.Len(t, hits, 1)
	assert.Equal(t, models.WebhookPayload{
		ID: "r1", Name: "Alice", Phone: "612345678", Date: "01/06/2025", TimeSlot: "8h00-11h00",
		Status: models.StatusPending, CreatedAt: row("", 0).CreatedAt,
		EventType: models.EventInsert, Origin: models.OriginBooking,
	}, hits[0])
}

func TestRelay_UpdateOrigins(t *testing.T) {
	ep := newEndpoint(t, http.StatusOK)
	r, markers, mr := newTestRelay(t, ep.srv.URL)
	ctx := context.Background()

	require.NoError(t, markers.SetManual(ctx, "r1", time.Minute))
	_, err := r.Handle(ctx, event(t, models.EventUpdate, row(models.StatusConfirmed, 2)))
	require.NoError(t, err)
	assert.False(t, mr.Exists(utils.ManualMarkerPrefix+"r1"), "marker is one-shot")

	_, err = r.Handle(ctx, event(t, models.EventUpdate, row(models.StatusCanceled, 3)))
	require.NoError(t, err)

	hits := ep.hits()
	require.Len(t, hits, 2)
	assert.Equal(t, models.OriginDashboard, hits[0].Origin)
	assert.Equal(t, models.OriginAutomation, hits[1].Origin)
	assert.Equal(t, models.EventUpdate, hits[1].EventType)
}

func TestRelay_RedeliveryIsAcknowledgedOnce(t *testing.T) {
	ep := newEndpoint(t, http.StatusOK)
	r, _, _ := newTestRelay(t, ep.srv.URL)
	ev := event(t, models.EventUpdate, row(models.StatusConfirmed, 2))

	_, err := r.Handle(context.Background(), ev)
	require.NoError(t, err)
	out, err := r.Handle(context.Background(), ev)
	require.NoError(t, err)

	assert.True(t, out.Duplicate)
	assert.Len(t, ep.hits(), 1)
}

func TestRelay_EndpointFailure(t *testing.T) {
	ep := newEndpoint(t, http.StatusBadGateway)
	r, markers, mr := newTestRelay(t, ep.srv.URL)
	ctx := context.Background()

	require.NoError(t, markers.SetManual(ctx, "r1", time.Minute))
	ev := event(t, models.EventUpdate, row(models.StatusConfirmed, 2))

	_, err := r.Handle(ctx, ev)
	require.ErrorIs(t, err, ErrForward)
	assert.Contains(t, err.Error(), "502")
	assert.True(t, mr.Exists(utils.ManualMarkerPrefix+"r1"), "marker restored for redelivery")
	assert.False(t, mr.Exists(forwardedKey("r1", 2)))

	ep.mu.Lock()
	ep.status = http.StatusOK
	ep.mu.Unlock()

	_, err = r.Handle(ctx, ev)
	require.NoError(t, err)
	hits := ep.hits()
	require.Len(t, hits, 2)
	assert.Equal(t, models.OriginDashboard, hits[1].Origin)
}

func TestRelay_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	r, _, _ := newTestRelay(t, url)

	_, err := r.Handle(context.Background(), event(t, models.EventInsert, row(models.StatusPending, 1)))
	assert.ErrorIs(t, err, ErrForward)
}

type failingConsume struct {
	*RedisMarkers
}

func (f failingConsume) ConsumeManual(context.Context, string) (bool, error) {
	return false, errors.New("write rejected")
}

func TestRelay_MarkerClearFailureFailsInvocation(t *testing.T) {
	ep := newEndpoint(t, http.StatusOK)
	r, markers, mr := newTestRelay(t, ep.srv.URL)
	ctx := context.Background()
	require.NoError(t, markers.SetManual(ctx, "r1", time.Minute))
	r.Markers = failingConsume{markers}

	_, err := r.Handle(ctx, event(t, models.EventUpdate, row(models.StatusConfirmed, 2)))
	require.ErrorIs(t, err, ErrMarkerClear)
	assert.Empty(t, ep.hits())
	assert.True(t, mr.Exists(utils.ManualMarkerPrefix+"r1"))
	assert.False(t, mr.Exists(forwardedKey("r1", 2)))
}

func TestRelay_InvalidEvents(t *testing.T) {
	ep := newEndpoint(t, http.StatusOK)
	r, _, _ := newTestRelay(t, ep.srv.URL)
	ctx := context.Background()

	_, err := r.Handle(ctx, models.WebhookEvent{Type: "DELETE", Record: json.RawMessage(`{"id":"r1","status":"Pending"}`)})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	_, err = r.Handle(ctx, models.WebhookEvent{Type: models.EventInsert, Record: json.RawMessage(`[]`)})
	assert.ErrorIs(t, err, ErrInvalidEvent)

	assert.Empty(t, ep.hits())
}

func TestNewRelay_DefaultURL(t *testing.T) {
	r := NewRelay(nil, "", 0, time.Minute)
	assert.Equal(t, utils.DefaultWebhookURL, r.URL)
	assert.Equal(t, defaultTimeout, r.Client.Timeout)
}

func TestProcessTask_SkipsRetryForInvalidEvents(t *testing.T) {
	ep := newEndpoint(t, http.StatusInternalServerError)
	r, _, _ := newTestRelay(t, ep.srv.URL)

	err := r.ProcessTask(context.Background(), asynq.NewTask("reservation:webhook", []byte(`{"type":"INSERT","record":"oops"}`)))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	payload, _ := json.Marshal(event(t, models.EventInsert, row(models.StatusPending, 1)))
	err = r.ProcessTask(context.Background(), asynq.NewTask("reservation:webhook", payload))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry, "endpoint failures are left to asynq retries")
}

func TestRelay_ClearedMarkerForwardsAutomation(t *testing.T) {
	ep := newEndpoint(t, http.StatusOK)
	r, markers, mr := newTestRelay(t, ep.srv.URL)
	ctx := context.Background()

	require.NoError(t, markers.SetManual(ctx, "r1", time.Minute))
	require.NoError(t, markers.ClearManual(ctx, "r1"))
	assert.False(t, mr.Exists(utils.ManualMarkerPrefix+"r1"))
	require.NoError(t, markers.ClearManual(ctx, "r1"), "clearing an absent marker is fine")

	_, err := r.Handle(ctx, event(t, models.EventUpdate, row(models.StatusCanceled, 2)))
	require.NoError(t, err)

	hits := ep.hits()
	require.Len(t, hits, 1)
	assert.Equal(t, models.OriginAutomation, hits[0].Origin)
}
