package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/studio-booking/internal/booking"
)

// BookingPayload is the union-shaped POST /bookings body. A non-empty
// reservationId selects the confirm-existing path; everything else belongs to
// the new-booking path. The handler resolves the variant before calling the
// service.
type BookingPayload struct {
	ReservationID string `json:"reservationId,omitempty"`

	Date      string `json:"date,omitempty"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
	StudioID  string `json:"studioId,omitempty"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type BookingResponse struct {
	ReservationID uuid.UUID `json:"reservationId"`
	Status        string    `json:"status"`
}

type StudioResponse struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
}

type AvailabilityResponse struct {
	Date     string                     `json:"date"`
	StudioID string                     `json:"studioId,omitempty"`
	Slots    []booking.AvailabilitySlot `json:"slots"`
	Studios  []StudioResponse           `json:"studios,omitempty"`
}

type BookingSummaryResponse struct {
	ID         uuid.UUID `json:"id"`
	Date       string    `json:"date"`
	StartTime  string    `json:"startTime"`
	StudioName string    `json:"studioName"`
	Status     string    `json:"status"`
}

type BookingListResponse struct {
	Bookings []BookingSummaryResponse `json:"bookings"`
}

type ReservationDetailResponse struct {
	ID        uuid.UUID      `json:"id"`
	Date      string         `json:"date"`
	StartTime string         `json:"startTime"`
	EndTime   string         `json:"endTime"`
	Status    string         `json:"status"`
	Studio    StudioResponse `json:"studio"`
	UserName  string         `json:"userName"`
	UserEmail string         `json:"userEmail"`
	CreatedAt time.Time      `json:"createdAt"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
