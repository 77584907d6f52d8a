package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"reservo/middleware"
	"reservo/models"
	"reservo/services/auth"
	"reservo/services/dashboard"
	"reservo/services/realtime"
	"reservo/services/reservation"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// DashboardHandler runs one reconciliation loop per websocket viewer.
type DashboardHandler struct {
	Service     reservation.ReservationService
	Sessions    auth.SessionChecker
	FastPaths   *auth.FastPaths
	NewListener func() realtime.Subscriber
	Upgrader    websocket.Upgrader
}

func NewDashboardHandler(svc reservation.ReservationService, sessions auth.SessionChecker, fp *auth.FastPaths, newListener func() realtime.Subscriber) *DashboardHandler {
	return &DashboardHandler{
		Service:     svc,
		Sessions:    sessions,
		FastPaths:   fp,
		NewListener: newListener,
		Upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// dashboardCommand is a viewer request read from the socket.
type dashboardCommand struct {
	Action string                   `json:"action"`
	ID     string                   `json:"id,omitempty"`
	Fields models.ReservationUpdate `json:"fields"`
}

// dashboardMessage is pushed to the viewer.
type dashboardMessage struct {
	Type        string              `json:"type"`
	View        *dashboard.View     `json:"view,omitempty"`
	Reservation *models.Reservation `json:"reservation,omitempty"`
	Result      *reservation.Result `json:"result,omitempty"`
	Action      string              `json:"action,omitempty"`
	ID          string              `json:"id,omitempty"`
}

var errNoticeDropped = errors.New("viewer is not keeping up, notice dropped")

// socketNotifier turns new-reservation events into viewer notices.
type socketNotifier struct {
	out  chan<- dashboardMessage
	done <-chan struct{}
}

func (n socketNotifier) NotifyNewReservation(_ context.Context, r models.Reservation) error {
	select {
	case n.out <- dashboardMessage{Type: "notice", Reservation: &r}:
		return nil
	case <-n.done:
		return errNoticeDropped
	default:
		return errNoticeDropped
	}
}

// Stream upgrades to a websocket and pushes dashboard views until the viewer
// leaves or the session ends.
func (h *DashboardHandler) Stream(c *gin.Context) {
	logger := getLogger(c)
	token := middleware.BearerToken(c)

	conn, err := h.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Dashboard: websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx := context.WithoutCancel(c.Request.Context())
	out := make(chan dashboardMessage, 16)
	done := make(chan struct{})

	// a token without a hint signs out without a network check
	loop := dashboard.NewLoop(h.Service, h.Sessions, h.NewListener(), h.FastPaths.Lookup(token), token)
	loop.Notifier = socketNotifier{out: out, done: done}
	views := loop.Watch()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		defer close(done)
		// unblocks the reader when the pump stops first
		defer conn.Close()
		h.writePump(conn, views, out, logger)
	}()

	go loop.Mount(ctx)

	send := func(m dashboardMessage) {
		select {
		case out <- m:
		case <-done:
		}
	}

	for {
		var cmd dashboardCommand
		if err := conn.ReadJSON(&cmd); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Dashboard: viewer read ended", zap.Error(err))
			}
			break
		}
		switch cmd.Action {
		case "update":
			res := loop.Update(ctx, cmd.ID, cmd.Fields)
			send(dashboardMessage{Type: "result", Action: cmd.Action, ID: cmd.ID, Result: &res})
		case "delete":
			ok := loop.Delete(ctx, cmd.ID)
			res := reservation.Result{Success: ok, ID: cmd.ID}
			if !ok {
				res.Message = "Failed to delete reservation"
			}
			send(dashboardMessage{Type: "result", Action: cmd.Action, ID: cmd.ID, Result: &res})
		case "retry":
			go loop.Retry(ctx)
		default:
			send(dashboardMessage{Type: "error", Action: cmd.Action, Result: &reservation.Result{Success: false, Message: "unknown action"}})
		}
	}

	ended := loop.Snapshot().State
	loop.Close(ctx)
	<-writerDone
	if ended == dashboard.StateUnauthenticated {
		h.FastPaths.Drop(token)
	}
}

// writePump is the only writer on conn.
func (h *DashboardHandler) writePump(conn *websocket.Conn, views <-chan dashboard.View, out <-chan dashboardMessage, logger *zap.Logger) {
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	write := func(m dashboardMessage) error {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(m)
	}

	for {
		select {
		case v, ok := <-views:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
				return
			}
			if err := write(dashboardMessage{Type: "view", View: &v}); err != nil {
				logger.Debug("Dashboard: write failed", zap.Error(err))
				return
			}
			if v.State == dashboard.StateUnauthenticated {
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unauthenticated"), time.Now().Add(wsWriteWait))
				return
			}
		case m := <-out:
			if err := write(m); err != nil {
				logger.Debug("Dashboard: write failed", zap.Error(err))
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// Snapshot returns the current list for viewers that do not hold a socket.
func (h *DashboardHandler) Snapshot(c *gin.Context) {
	res := h.Service.List(c.Request.Context())
	if !res.Success {
		c.JSON(http.StatusInternalServerError, res)
		return
	}
	c.JSON(http.StatusOK, res)
}
