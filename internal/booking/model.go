package booking

import (
	"time"

	"github.com/google/uuid"
)

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "PENDING"
	StatusConfirmed ReservationStatus = "CONFIRMED"
	StatusCancelled ReservationStatus = "CANCELLED"
	StatusExpired   ReservationStatus = "EXPIRED"
)

// Occupying reports whether the status blocks re-booking of the reservation's
// (date, studio, start time) triple. CANCELLED and EXPIRED are terminal and
// leave the slot free.
func (s ReservationStatus) Occupying() bool {
	return s == StatusPending || s == StatusConfirmed
}

type Studio struct {
	ID          uuid.UUID
	Name        string
	Description *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type User struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Reservation struct {
	ID        uuid.UUID
	Date      time.Time // UTC midnight, day granularity
	StartTime string    // "HH:MM", slot catalog start
	EndTime   string
	StudioID  uuid.UUID
	UserID    uuid.UUID
	Status    ReservationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	ReservationID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

type ReservationDetail struct {
	Reservation
	Studio *Studio
	User   *User
}

// EnrichedStudio is a studio decorated with display metadata for one
// availability slot. The extra fields are derived deterministically and carry
// no booking authority.
type EnrichedStudio struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Description    *string   `json:"description,omitempty"`
	ImageURL       string    `json:"imageUrl"`
	Amenities      []string  `json:"amenities"`
	SlotsAvailable int       `json:"slotsAvailable"`
}

// AvailabilitySlot is one catalog slot's availability for a given date.
// AvailableStudios is nil when availability was computed for a single studio.
type AvailabilitySlot struct {
	Start            string           `json:"start"`
	End              string           `json:"end"`
	Label            string           `json:"label"`
	Available        bool             `json:"available"`
	AvailableStudios []EnrichedStudio `json:"availableStudios,omitempty"`
}

// NormalizeDate truncates t to UTC midnight. Every reservation lookup and
// write uses the normalized value.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
