package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"reservo/models"

	"go.mongodb.org/mongo-driver/bson"
)

// ErrMalformedRecord marks payloads that cannot be mapped to a reservation.
var ErrMalformedRecord = errors.New("malformed reservation record")

// storeRecord is a row in the store's JSON wire format.
type storeRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Date      string    `json:"date"`
	TimeSlot  string    `json:"time_slot"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// DecodeRecord maps a raw row (a bson document or a JSON object with store
// column names) to a Reservation. Rows without an id or with an unknown
// status are rejected.
func DecodeRecord(raw []byte) (models.Reservation, error) {
	var res models.Reservation

	if len(raw) == 0 {
		return res, fmt.Errorf("%w: empty payload", ErrMalformedRecord)
	}

	if json.Valid(raw) {
		trimmed := bytes.TrimSpace(raw)
		if trimmed[0] != '{' {
			return res, fmt.Errorf("%w: not an object", ErrMalformedRecord)
		}
		var rec storeRecord
		if err := json.Unmarshal(trimmed, &rec); err != nil {
			return res, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		res = models.Reservation{
			ID:        rec.ID,
			Name:      rec.Name,
			Phone:     rec.Phone,
			Date:      rec.Date,
			TimeSlot:  rec.TimeSlot,
			Status:    rec.Status,
			CreatedAt: rec.CreatedAt,
			UpdatedAt: rec.UpdatedAt,
			Version:   rec.Version,
		}
	} else {
		doc := bson.Raw(raw)
		if err := doc.Validate(); err != nil {
			return res, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
		if err := bson.Unmarshal(doc, &res); err != nil {
			return res, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
		}
	}

	if res.ID == "" {
		return models.Reservation{}, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	if !models.IsValidStatus(res.Status) {
		return models.Reservation{}, fmt.Errorf("%w: unknown status %q", ErrMalformedRecord, res.Status)
	}
	return res, nil
}

// EncodeRecord renders r as a JSON object with store column names.
func EncodeRecord(r models.Reservation) ([]byte, error) {
	return json.Marshal(storeRecord{
		ID:        r.ID,
		Name:      r.Name,
		Phone:     r.Phone,
		Date:      r.Date,
		TimeSlot:  r.TimeSlot,
		Status:    r.Status,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		Version:   r.Version,
	})
}
