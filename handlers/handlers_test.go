package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"reservo/models"
	"reservo/services/reservation"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	created    []models.ReservationInput
	updates    map[string]models.ReservationUpdate
	list       []models.Reservation
	updateResp reservation.Result
	deleteOK   bool
	deletes    atomic.Int32
}

func (f *fakeService) Create(_ context.Context, in models.ReservationInput) reservation.Result {
	f.created = append(f.created, in)
	if in.Name == "" {
		return reservation.Result{Success: false, Message: "name: is required", Err: &reservation.ValidationError{Field: "name", Reason: "is required"}}
	}
	return reservation.Result{Success: true, ID: "new-id"}
}

func (f *fakeService) List(context.Context) reservation.ListResult {
	return reservation.ListResult{Success: true, Data: f.list}
}

func (f *fakeService) Get(_ context.Context, id string) (*models.Reservation, reservation.Result) {
	for _, r := range f.list {
		if r.ID == id {
			r := r
			return &r, reservation.Result{Success: true, ID: id}
		}
	}
	return nil, reservation.Result{Success: false, Message: "reservation not found", Err: reservation.ErrNotFound}
}

func (f *fakeService) Update(_ context.Context, id string, fields models.ReservationUpdate) reservation.Result {
	if f.updates == nil {
		f.updates = map[string]models.ReservationUpdate{}
	}
	f.updates[id] = fields
	return f.updateResp
}

func (f *fakeService) Delete(context.Context, string) bool {
	f.deletes.Add(1)
	return f.deleteOK
}

func do(r http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func reservationRouter(svc *fakeService) *gin.Engine {
	h := NewReservationHandler(svc)
	r := gin.New()
	r.POST("/api/reservations", h.CreateReservation)
	r.GET("/api/admin/reservations", h.ListReservations)
	r.GET("/api/admin/reservations/:id", h.GetReservation)
	r.PATCH("/api/admin/reservations/:id", h.UpdateReservation)
	r.DELETE("/api/admin/reservations/:id", h.DeleteReservation)
	r.POST("/api/legacy/reservations/update", h.LegacyUpdate)
	r.PUT("/api/legacy/reservations/update", h.LegacyUpdate)
	return r
}

func TestCreateReservation(t *testing.T) {
	svc := &fakeService{}
	r := reservationRouter(svc)

	w := do(r, http.MethodPost, "/api/reservations", map[string]string{
		"name": "Alice", "phone": "612345678", "date": "01/06/2025", "timeSlot": "8h00-11h00",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"success":true,"id":"new-id"}`, w.Body.String())
	assert.Equal(t, "8h00-11h00", svc.created[0].TimeSlot)

	w = do(r, http.MethodPost, "/api/reservations", map[string]string{"phone": "612345678"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}

func TestUpdateReservation_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		resp reservation.Result
		code int
	}{
		{"ok", reservation.Result{Success: true, ID: "r1", Message: "reservation updated"}, http.StatusOK},
		{"validation", reservation.Result{Success: false, Message: "phone: must be 9 to 10 digits", Err: &reservation.ValidationError{Field: "phone"}}, http.StatusBadRequest},
		{"not found", reservation.Result{Success: false, Message: "reservation not found", Err: reservation.ErrNotFound}, http.StatusNotFound},
		{"store", reservation.Result{Success: false, Message: "store error", Err: reservation.ErrStore}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{updateResp: tc.resp}
			r := reservationRouter(svc)

			w := do(r, http.MethodPatch, "/api/admin/reservations/r1", map[string]string{"status": "Confirmed"})
			assert.Equal(t, tc.code, w.Code)
			require.NotNil(t, svc.updates["r1"].Status)
			assert.Equal(t, "Confirmed", *svc.updates["r1"].Status)
		})
	}
}

func TestLegacyUpdate_UsesSamePath(t *testing.T) {
	for _, method := range []string{http.MethodPost, http.MethodPut} {
		svc := &fakeService{updateResp: reservation.Result{Success: false, Message: "reservation not found", Err: reservation.ErrNotFound}}
		r := reservationRouter(svc)

		w := do(r, method, "/api/legacy/reservations/update", map[string]string{"id": "r9", "status": "Canceled", "timeSlot": "11h00-14h00"})

		assert.Equal(t, http.StatusNotFound, w.Code, method)
		fields := svc.updates["r9"]
		require.NotNil(t, fields.Status)
		assert.Equal(t, "Canceled", *fields.Status)
		require.NotNil(t, fields.TimeSlot)
		assert.Equal(t, "11h00-14h00", *fields.TimeSlot)
	}
}

func TestGetListDelete(t *testing.T) {
	svc := &fakeService{list: []models.Reservation{{ID: "r1", Name: "Alice"}}, deleteOK: true}
	r := reservationRouter(svc)

	w := do(r, http.MethodGet, "/api/admin/reservations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Alice"`)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/admin/reservations/r1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/admin/reservations/zz", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodDelete, "/api/admin/reservations/r1", nil).Code)

	svc.deleteOK = false
	assert.Equal(t, http.StatusInternalServerError, do(r, http.MethodDelete, "/api/admin/reservations/r1", nil).Code)
}
