package models

import "time"

// Reservation statuses.
const (
	StatusPending       = "Pending"
	StatusConfirmed     = "Confirmed"
	StatusCanceled      = "Canceled"
	StatusNotResponding = "Not Responding"
)

// Statuses lists every valid reservation status.
var Statuses = []string{StatusPending, StatusConfirmed, StatusCanceled, StatusNotResponding}

// TimeSlots is the single set of bookable slots shared by every write path.
var TimeSlots = []string{"8h00-11h00", "11h00-14h00", "14h00-17h00"}

// DateLayout is the Go layout for reservation dates (DD/MM/YYYY).
const DateLayout = "02/01/2006"

// Reservation is a booking request. JSON tags are the application model,
// bson tags are the store's column names.
type Reservation struct {
	ID       string `bson:"id" json:"id"`
	Name     string `bson:"name" json:"name"`
	Phone    string `bson:"phone" json:"phone"`
	Date     string `bson:"date" json:"date"`
	TimeSlot string `bson:"time_slot" json:"timeSlot"`
	Status   string `bson:"status" json:"status"`
	// CreatedAt is assigned by the store; UpdatedAt and Version are bumped on every write.
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
	Version   int64     `bson:"version" json:"version"`
}

// ReservationInput is the public booking form payload.
type ReservationInput struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required"`
	Date     string `json:"date" validate:"required"`
	TimeSlot string `json:"timeSlot" validate:"required"`
	// Status is accepted on the wire but always overwritten with Pending.
	Status string `json:"status,omitempty"`
}

// ReservationUpdate is a partial field set for an admin edit. Nil fields are
// left untouched.
type ReservationUpdate struct {
	Status   *string `json:"status,omitempty" validate:"omitempty,reservation_status"`
	Name     *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Phone    *string `json:"phone,omitempty" validate:"omitempty,phone_digits"`
	Date     *string `json:"date,omitempty" validate:"omitempty,ddmmyyyy"`
	TimeSlot *string `json:"timeSlot,omitempty" validate:"omitempty,time_slot"`
}

// IsEmpty reports whether the update carries no fields.
func (u ReservationUpdate) IsEmpty() bool {
	return u.Status == nil && u.Name == nil && u.Phone == nil && u.Date == nil && u.TimeSlot == nil
}

// HasStatus reports whether the update changes the status.
func (u ReservationUpdate) HasStatus() bool {
	return u.Status != nil
}

// ApplyTo patches r in place with the non-nil fields of u.
func (u ReservationUpdate) ApplyTo(r *Reservation) {
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.Phone != nil {
		r.Phone = *u.Phone
	}
	if u.Date != nil {
		r.Date = *u.Date
	}
	if u.TimeSlot != nil {
		r.TimeSlot = *u.TimeSlot
	}
}

// IsValidStatus reports whether s is one of the four reservation statuses.
func IsValidStatus(s string) bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// IsValidTimeSlot reports whether s is a bookable slot.
func IsValidTimeSlot(s string) bool {
	for _, v := range TimeSlots {
		if v == s {
			return true
		}
	}
	return false
}

// NewerThan reports whether r should replace other under last-write-by-version.
// Ties on version fall back to the update timestamp.
func (r Reservation) NewerThan(other Reservation) bool {
	if r.Version != other.Version {
		return r.Version > other.Version
	}
	return !r.UpdatedAt.Before(other.UpdatedAt)
}
