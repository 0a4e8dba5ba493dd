package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atelierhq/studio-booking/internal/booking"
	redisclient "github.com/atelierhq/studio-booking/internal/redis"
)

const dateLayout = "2006-01-02"

// parseDate accepts a plain calendar date or a full RFC3339 timestamp; any
// time-of-day component is discarded downstream.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

func availabilityHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dateStr := r.URL.Query().Get("date")
		if dateStr == "" {
			writeError(w, http.StatusBadRequest, "invalid_date", "date parameter is required")
			return
		}

		date, err := parseDate(dateStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		studioID := uuid.Nil
		if s := r.URL.Query().Get("studioId"); s != "" {
			studioID, err = uuid.Parse(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_studio_id", "studioId must be a valid UUID")
				return
			}
		}

		slots, studios, err := svc.Availability(r.Context(), date, studioID)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := AvailabilityResponse{
			Date:  booking.NormalizeDate(date).Format(dateLayout),
			Slots: slots,
		}
		if studioID != uuid.Nil {
			resp.StudioID = studioID.String()
		} else {
			resp.Studios = make([]StudioResponse, 0, len(studios))
			for _, st := range studios {
				resp.Studios = append(resp.Studios, StudioResponse{
					ID:          st.ID,
					Name:        st.Name,
					Description: st.Description,
				})
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func createBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload BookingPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		// Confirm-existing path
		if payload.ReservationID != "" {
			id, err := uuid.Parse(payload.ReservationID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_reservation_id", "reservationId must be a valid UUID")
				return
			}

			res, err := svc.Confirm(r.Context(), id)
			if err != nil {
				handleServiceError(w, err)
				return
			}

			writeJSON(w, http.StatusOK, BookingResponse{
				ReservationID: res.ID,
				Status:        string(res.Status),
			})
			return
		}

		// New-booking path. Absent fields stay zero so the service can report
		// which one is missing; malformed values are rejected here.
		req := booking.BookingRequest{
			StartTime: payload.StartTime,
			EndTime:   payload.EndTime,
			Name:      payload.Name,
			Email:     payload.Email,
		}

		if payload.Date != "" {
			date, err := parseDate(payload.Date)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
				return
			}
			req.Date = date
		}

		if payload.StudioID != "" {
			studioID, err := uuid.Parse(payload.StudioID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_studio_id", "studioId must be a valid UUID")
				return
			}
			req.StudioID = studioID
		}

		if payload.Phone != "" {
			req.Phone = &payload.Phone
		}

		res, err := svc.Book(r.Context(), req)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, BookingResponse{
			ReservationID: res.ID,
			Status:        string(res.Status),
		})
	}
}

func listBookingsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")

		bookings, err := svc.ListBookings(r.Context(), email)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := BookingListResponse{Bookings: make([]BookingSummaryResponse, 0, len(bookings))}
		for _, b := range bookings {
			resp.Bookings = append(resp.Bookings, BookingSummaryResponse{
				ID:         b.ID,
				Date:       b.Date.Format(dateLayout),
				StartTime:  b.StartTime,
				StudioName: b.StudioName,
				Status:     string(b.Status),
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func getBookingHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_reservation_id", "id must be a valid UUID")
			return
		}

		detail, err := svc.GetReservation(r.Context(), id)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		resp := ReservationDetailResponse{
			ID:        detail.ID,
			Date:      detail.Date.Format(dateLayout),
			StartTime: detail.StartTime,
			EndTime:   detail.EndTime,
			Status:    string(detail.Status),
			Studio: StudioResponse{
				ID:          detail.Studio.ID,
				Name:        detail.Studio.Name,
				Description: detail.Studio.Description,
			},
			UserName:  detail.User.Name,
			UserEmail: detail.User.Email,
			CreatedAt: detail.CreatedAt,
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, booking.ErrReservationNotFound):
		writeError(w, http.StatusNotFound, "reservation_not_found", err.Error())
	case errors.Is(err, booking.ErrStudioNotFound):
		writeError(w, http.StatusNotFound, "studio_not_found", err.Error())
	case errors.Is(err, booking.ErrUserNotFound):
		writeError(w, http.StatusNotFound, "user_not_found", err.Error())
	case errors.Is(err, booking.ErrSlotTaken):
		writeError(w, http.StatusConflict, "slot_taken", "this time slot is no longer available")
	case errors.Is(err, booking.ErrReservationClosed):
		writeError(w, http.StatusConflict, "reservation_closed", err.Error())
	case errors.Is(err, booking.ErrSlotBeingBooked),
		errors.Is(err, redisclient.ErrLockNotAcquired):
		writeError(w, http.StatusConflict, "slot_being_booked", "slot is currently being booked, please retry shortly")
	case errors.Is(err, booking.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "store is temporarily unavailable, please retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}
