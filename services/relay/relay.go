package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"reservo/models"
	"reservo/services/realtime"
	"reservo/utils"

	"go.uber.org/zap"
)

const defaultTimeout = 10 * time.Second

// Relay forwards row events to the automation endpoint. Inserts are tagged
// with the booking origin. Updates are tagged with the dashboard origin when
// a manual marker was waiting for them and with the automation origin otherwise.
// Redeliveries of an already forwarded (id, version) are acknowledged without
// a second call.
type Relay struct {
	Markers      MarkerStore
	URL          string
	Client       *http.Client
	MarkerTTL    time.Duration
	ForwardedTTL time.Duration
}

func NewRelay(markers MarkerStore, url string, timeout, markerTTL time.Duration) *Relay {
	if url == "" {
		url = utils.DefaultWebhookURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Relay{
		Markers:      markers,
		URL:          url,
		Client:       &http.Client{Timeout: timeout},
		MarkerTTL:    markerTTL,
		ForwardedTTL: utils.ForwardedTTL,
	}
}

// Handle processes one event. The relay never retries.
func (r *Relay) Handle(ctx context.Context, ev models.WebhookEvent) (Outcome, error) {
	logger := utils.GetLogger()

	if ev.Type != models.EventInsert && ev.Type != models.EventUpdate {
		utils.RelayForwards.WithLabelValues("invalid").Inc()
		return Outcome{}, fmt.Errorf("%w: unsupported type %q", ErrInvalidEvent, ev.Type)
	}
	rec, err := realtime.DecodeRecord(ev.Record)
	if err != nil {
		utils.RelayForwards.WithLabelValues("invalid").Inc()
		logger.Error("relay: dropping malformed record", zap.String("type", ev.Type), zap.Error(err))
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	logger = logger.With(zap.String("id", rec.ID), zap.Int64("version", rec.Version), zap.String("type", ev.Type))

	first, err := r.Markers.MarkForwarded(ctx, rec.ID, rec.Version, r.ForwardedTTL)
	if err != nil {
		logger.Warn("relay: dedupe check failed, forwarding anyway", zap.Error(err))
		first = true
	}
	if !first {
		utils.RelayForwards.WithLabelValues("duplicate").Inc()
		logger.Info("relay: already forwarded")
		return Outcome{Duplicate: true}, nil
	}

	origin := models.OriginBooking
	manual := false
	if ev.Type == models.EventUpdate {
		manual, err = r.Markers.ConsumeManual(ctx, rec.ID)
		if err != nil {
			r.forget(ctx, rec)
			utils.RelayForwards.WithLabelValues("failed").Inc()
			logger.Error("relay: failed to clear manual marker", zap.Error(err))
			return Outcome{}, fmt.Errorf("%w: %v", ErrMarkerClear, err)
		}
		origin = models.OriginAutomation
		if manual {
			origin = models.OriginDashboard
		}
	}

	payload := BuildPayload(rec, ev.Type, origin)
	if err := r.post(ctx, payload); err != nil {
		r.forget(ctx, rec)
		if manual {
			if rerr := r.Markers.RestoreManual(ctx, rec.ID, r.MarkerTTL); rerr != nil {
				logger.Warn("relay: failed to restore manual marker", zap.Error(rerr))
			}
		}
		utils.RelayForwards.WithLabelValues("failed").Inc()
		logger.Error("relay: forward failed", zap.Error(err))
		return Outcome{}, err
	}

	utils.RelayForwards.WithLabelValues("forwarded").Inc()
	logger.Info("relay: event forwarded", zap.String("origin", origin))
	return Outcome{Payload: payload}, nil
}

func (r *Relay) forget(ctx context.Context, rec models.Reservation) {
	if err := r.Markers.UnmarkForwarded(ctx, rec.ID, rec.Version); err != nil {
		utils.GetLogger().Warn("relay: failed to drop dedupe key", zap.String("id", rec.ID), zap.Error(err))
	}
}

// BuildPayload normalizes a row for the automation endpoint.
func BuildPayload(rec models.Reservation, eventType, origin string) models.WebhookPayload {
	return models.WebhookPayload{
		ID:        rec.ID,
		Name:      rec.Name,
		Phone:     rec.Phone,
		Date:      rec.Date,
		TimeSlot:  rec.TimeSlot,
		Status:    rec.Status,
		CreatedAt: rec.CreatedAt,
		EventType: eventType,
		Origin:    origin,
	}
}

func (r *Relay) post(ctx context.Context, payload models.WebhookPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: marshal payload: %v", ErrForward, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrForward, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrForward, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("%w: HTTP %d: %s", ErrForward, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
