package handlers

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reservo/models"
	"reservo/services/auth"
	"reservo/services/dashboard"
	"reservo/services/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSessions struct{}

func (stubSessions) GetSession(context.Context, string) (*models.Session, error) {
	now := time.Now()
	return &models.Session{ID: "s1", Email: "admin@example.com", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}, nil
}

// slowRejection answers the session check late and negatively.
type slowRejection struct{}

func (slowRejection) GetSession(ctx context.Context, _ string) (*models.Session, error) {
	select {
	case <-time.After(50 * time.Millisecond):
	case <-ctx.Done():
	}
	return nil, auth.ErrSessionExpired
}

type idleListener struct{}

func (idleListener) Subscribe(_ context.Context, h realtime.Handlers) {
	if h.OnStatus != nil {
		h.OnStatus(realtime.StatusSubscribed, nil)
	}
}

func (idleListener) Unsubscribe(context.Context) {}

func dashboardServer(t *testing.T, svc *fakeService) (*httptest.Server, *auth.FastPaths) {
	t.Helper()
	return dashboardServerWith(t, svc, stubSessions{})
}

func dashboardServerWith(t *testing.T, svc *fakeService, sessions auth.SessionChecker) (*httptest.Server, *auth.FastPaths) {
	t.Helper()
	fps := auth.NewFastPaths(0)
	h := NewDashboardHandler(svc, sessions, fps, func() realtime.Subscriber { return idleListener{} })
	r := gin.New()
	r.GET("/ws", h.Stream)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, fps
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(dashboardMessage) bool) dashboardMessage {
	t.Helper()
	for {
		var m dashboardMessage
		require.NoError(t, conn.ReadJSON(&m))
		if match(m) {
			return m
		}
	}
}

func TestDashboardStream_WithoutFastPathSignsOut(t *testing.T) {
	srv, _ := dashboardServer(t, &fakeService{})
	conn := dial(t, srv, "tok")

	m := readUntil(t, conn, func(m dashboardMessage) bool {
		return m.Type == "view" && m.View.State == dashboard.StateUnauthenticated
	})
	assert.Empty(t, m.View.Reservations)

	var next dashboardMessage
	err := conn.ReadJSON(&next)
	assert.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
}

func TestDashboardStream_UnknownTokensLeaveNoHints(t *testing.T) {
	srv, fps := dashboardServer(t, &fakeService{})

	for i := 0; i < 5; i++ {
		conn := dial(t, srv, uuid.NewString())
		readUntil(t, conn, func(m dashboardMessage) bool {
			return m.Type == "view" && m.View.State == dashboard.StateUnauthenticated
		})
	}
	assert.Zero(t, fps.Len())
}

func TestDashboardStream_EditsBeforeSessionCheckAreRefused(t *testing.T) {
	status := models.StatusCanceled
	svc := &fakeService{list: []models.Reservation{{ID: "r1", Name: "Alice", Status: models.StatusPending, Version: 1}}, deleteOK: true}
	srv, fps := dashboardServerWith(t, svc, slowRejection{})
	fps.For("tok").MarkTab(time.Now())
	conn := dial(t, srv, "tok")

	require.NoError(t, conn.WriteJSON(dashboardCommand{Action: "delete", ID: "r1"}))
	require.NoError(t, conn.WriteJSON(dashboardCommand{Action: "update", ID: "r1", Fields: models.ReservationUpdate{Status: &status}}))

	var results []dashboardMessage
	var closeErr error
	for {
		var m dashboardMessage
		if err := conn.ReadJSON(&m); err != nil {
			closeErr = err
			break
		}
		if m.Type == "result" {
			results = append(results, m)
		}
		if m.Type == "view" {
			assert.NotEqual(t, dashboard.StateReady, m.View.State)
		}
	}

	assert.True(t, websocket.IsCloseError(closeErr, websocket.ClosePolicyViolation), "got %v", closeErr)
	for _, r := range results {
		require.NotNil(t, r.Result)
		assert.False(t, r.Result.Success, "%s must be refused", r.Action)
	}
	assert.Zero(t, svc.deletes.Load(), "delete reached the store before the session was verified")
	assert.Empty(t, svc.updates)
	require.Eventually(t, func() bool { return fps.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestDashboardStream_LoadsAndDeletes(t *testing.T) {
	svc := &fakeService{list: []models.Reservation{{ID: "r1", Name: "Alice", Status: models.StatusPending, Version: 1}}, deleteOK: true}
	srv, fps := dashboardServer(t, svc)
	fps.For("tok").MarkPersistent(time.Now())
	conn := dial(t, srv, "tok")

	m := readUntil(t, conn, func(m dashboardMessage) bool {
		return m.Type == "view" && m.View.State == dashboard.StateReady
	})
	require.Len(t, m.View.Reservations, 1)
	assert.Equal(t, "Alice", m.View.Reservations[0].Name)

	require.NoError(t, conn.WriteJSON(dashboardCommand{Action: "delete", ID: "r1"}))
	res := readUntil(t, conn, func(m dashboardMessage) bool { return m.Type == "result" })
	assert.Equal(t, "delete", res.Action)
	require.NotNil(t, res.Result)
	assert.True(t, res.Result.Success)

	require.NoError(t, conn.WriteJSON(dashboardCommand{Action: "bogus"}))
	bad := readUntil(t, conn, func(m dashboardMessage) bool { return m.Type == "error" })
	assert.Equal(t, "unknown action", bad.Result.Message)
}
