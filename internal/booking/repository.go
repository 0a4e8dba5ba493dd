package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrStudioNotFound      = errors.New("studio not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrSlotTaken is returned when an occupying reservation already holds the
	// requested (date, studio, start time) triple. The store's uniqueness
	// constraint makes this the authoritative conflict signal.
	ErrSlotTaken = errors.New("this time slot is no longer available")

	// ErrStoreUnavailable wraps transient store failures; callers may retry.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// OccupiedSlot identifies one booked (studio, start time) pair for a date.
type OccupiedSlot struct {
	StudioID  uuid.UUID
	StartTime string
}

// BookingSummary is the flattened row returned when listing a requester's
// reservations.
type BookingSummary struct {
	ID         uuid.UUID
	Date       time.Time
	StartTime  string
	StudioName string
	Status     ReservationStatus
}

// Repository contains all store interactions needed by the service.
type Repository interface {
	ListStudios(ctx context.Context) ([]Studio, error)
	GetStudioByID(ctx context.Context, id uuid.UUID) (*Studio, error)

	// ListOccupied returns the occupying (PENDING/CONFIRMED) slot pairs for a
	// normalized date. A zero studioID means all studios.
	ListOccupied(ctx context.Context, date time.Time, studioID uuid.UUID) ([]OccupiedSlot, error)

	GetReservationByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	// FindOccupyingReservation is the booking fast-path conflict check.
	FindOccupyingReservation(ctx context.Context, date time.Time, studioID uuid.UUID, startTime string) (*Reservation, error)

	// CreateConfirmedReservation inserts a CONFIRMED reservation. A concurrent
	// insert for the same occupied triple fails with ErrSlotTaken.
	CreateConfirmedReservation(ctx context.Context, date time.Time, startTime, endTime string, studioID, userID uuid.UUID) (*Reservation, error)

	// UpdateReservationStatus transitions id from one status to another,
	// compare-and-swap style; ErrReservationNotFound when id does not exist
	// with status from.
	UpdateReservationStatus(ctx context.Context, id uuid.UUID, from, to ReservationStatus) (*Reservation, error)

	// UpsertUser resolves an email to a durable user, creating or overwriting
	// name and phone (last write wins, absent phone clears).
	UpsertUser(ctx context.Context, name, email string, phone *string) (*User, error)

	GetReservationDetail(ctx context.Context, id uuid.UUID) (*ReservationDetail, error)
	ListReservationsByEmail(ctx context.Context, email string) ([]BookingSummary, error)

	// Expiry worker
	FindStalePending(ctx context.Context, olderThan time.Time) ([]Reservation, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
