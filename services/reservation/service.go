package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	reservationRepo "reservo/database/repository/reservation"
	"reservo/models"
	"reservo/utils"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Service is the store client. Every write path in the server goes through it.
type Service struct {
	Repo      reservationRepo.ReservationRepository
	Markers   MarkerSetter
	MarkerTTL time.Duration
}

// NewService wires a Service over the given repository and marker store.
func NewService(repo reservationRepo.ReservationRepository, markers MarkerSetter, markerTTL time.Duration) *Service {
	return &Service{Repo: repo, Markers: markers, MarkerTTL: markerTTL}
}

var _ ReservationService = (*Service)(nil)

func (s *Service) Create(ctx context.Context, input models.ReservationInput) Result {
	logger := utils.GetLogger()

	if err := validateInput(input); err != nil {
		return failure(err)
	}

	res := &models.Reservation{
		Name:     strings.TrimSpace(input.Name),
		Phone:    strings.TrimSpace(input.Phone),
		Date:     strings.TrimSpace(input.Date),
		TimeSlot: input.TimeSlot,
		// new bookings always start as Pending whatever the caller sent
		Status: models.StatusPending,
	}
	if err := s.Repo.Create(ctx, res); err != nil {
		logger.Error("Create: failed to insert reservation", zap.Error(err))
		return failure(storeErr(err))
	}

	logger.Info("reservation created", zap.String("id", res.ID), zap.String("date", res.Date), zap.String("timeSlot", res.TimeSlot))
	return Result{Success: true, ID: res.ID}
}

func (s *Service) List(ctx context.Context) ListResult {
	list, err := s.Repo.List(ctx)
	if err != nil {
		utils.GetLogger().Error("List: failed to fetch reservations", zap.Error(err))
		return ListResult{Success: false, Message: storeErr(err).Error()}
	}
	return ListResult{Success: true, Data: list}
}

func (s *Service) Get(ctx context.Context, id string) (*models.Reservation, Result) {
	res, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		if !errors.Is(err, reservationRepo.ErrNotFound) {
			utils.GetLogger().Error("Get: failed to fetch reservation", zap.String("id", id), zap.Error(err))
		}
		return nil, failure(classify(err))
	}
	return res, Result{Success: true, ID: res.ID}
}

// Update validates fields, sets the manual marker when the status changes,
// writes once (clearing the marker again if the write fails), then verifies the status and retries the write a single time
// on mismatch. The retry is not verified.
func (s *Service) Update(ctx context.Context, id string, fields models.ReservationUpdate) Result {
	logger := utils.GetLogger().With(zap.String("id", id))

	if strings.TrimSpace(id) == "" {
		return failure(&ValidationError{Field: "id", Reason: "is required"})
	}
	if err := validateUpdate(fields); err != nil {
		return failure(err)
	}

	if fields.HasStatus() && s.Markers != nil {
		if err := s.Markers.SetManual(ctx, id, s.MarkerTTL); err != nil {
			logger.Error("Update: failed to set manual marker", zap.Error(err))
			return failure(storeErr(err))
		}
	}

	if _, err := s.Repo.Update(ctx, id, fields); err != nil {
		if !errors.Is(err, reservationRepo.ErrNotFound) {
			logger.Error("Update: write failed", zap.Error(err))
		}
		if fields.HasStatus() && s.Markers != nil {
			// otherwise the next automated change is reported as a dashboard edit
			if cerr := s.Markers.ClearManual(ctx, id); cerr != nil {
				logger.Error("Update: failed to clear manual marker", zap.Error(cerr))
			}
		}
		return failure(classify(err))
	}

	if fields.HasStatus() {
		s.verifyStatus(ctx, id, fields)
	}

	return Result{Success: true, ID: id, Message: "reservation updated"}
}

func (s *Service) verifyStatus(ctx context.Context, id string, fields models.ReservationUpdate) {
	logger := utils.GetLogger().With(zap.String("id", id))

	observed, err := s.Repo.GetByID(ctx, id)
	if err == nil && observed.Status == *fields.Status {
		return
	}
	if err != nil {
		logger.Warn("Update: verification read failed, retrying write once", zap.Error(err))
	} else {
		logger.Warn("Update: status not persisted, retrying write once",
			zap.String("requested", *fields.Status), zap.String("observed", observed.Status))
	}

	if _, err := s.Repo.Update(ctx, id, fields); err != nil {
		logger.Error("Update: retry write failed", zap.Error(err))
	}
}

func (s *Service) Delete(ctx context.Context, id string) bool {
	if err := s.Repo.DeleteByID(ctx, id); err != nil {
		utils.GetLogger().Error("Delete: failed to delete reservation", zap.String("id", id), zap.Error(err))
		return false
	}
	return true
}

func failure(err error) Result {
	return Result{Success: false, Message: err.Error(), Err: err}
}

func classify(err error) error {
	if errors.Is(err, reservationRepo.ErrNotFound) {
		return ErrNotFound
	}
	return storeErr(err)
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %w", ErrStore, err)
}

func validateInput(input models.ReservationInput) error {
	required := []struct{ field, value string }{
		{"name", input.Name},
		{"phone", input.Phone},
		{"date", input.Date},
		{"timeSlot", input.TimeSlot},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Reason: "is required"}
		}
	}
	return nil
}

var fieldNames = map[string]string{
	"Status":   "status",
	"Name":     "name",
	"Phone":    "phone",
	"Date":     "date",
	"TimeSlot": "timeSlot",
}

var tagReasons = map[string]string{
	"reservation_status": "must be one of Pending, Confirmed, Canceled, Not Responding",
	"phone_digits":       "must be 9 to 10 digits",
	"ddmmyyyy":           "must match DD/MM/YYYY",
	"time_slot":          "must be one of " + strings.Join(models.TimeSlots, ", "),
	"min":                "must not be empty",
}

func validateUpdate(fields models.ReservationUpdate) error {
	if fields.IsEmpty() {
		return &ValidationError{Field: "fields", Reason: "no fields to update"}
	}
	err := utils.Validator().Struct(fields)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		name := fieldNames[fe.StructField()]
		if name == "" {
			name = fe.Field()
		}
		reason := tagReasons[fe.Tag()]
		if reason == "" {
			reason = "is invalid"
		}
		return &ValidationError{Field: name, Reason: reason}
	}
	return &ValidationError{Field: "fields", Reason: err.Error()}
}
