package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/atelierhq/studio-booking/internal/catalog"
	"github.com/atelierhq/studio-booking/internal/config"
	redisclient "github.com/atelierhq/studio-booking/internal/redis"
)

const (
	EventReservationCreated   = "RESERVATION_CREATED"
	EventReservationConfirmed = "RESERVATION_CONFIRMED"
	EventReservationExpired   = "RESERVATION_EXPIRED"
)

var (
	// ErrInvalidInput covers missing or malformed request fields. No store
	// access happens before the request passes validation.
	ErrInvalidInput = errors.New("invalid input")

	ErrSlotBeingBooked = errors.New("slot is currently being booked, please retry")

	// ErrReservationClosed is returned when confirming a CANCELLED or EXPIRED
	// reservation. Terminal reservations are never reopened.
	ErrReservationClosed = errors.New("reservation is closed and cannot be confirmed")
)

// BookingRequest is the new-booking variant of the write path. The transport
// layer resolves the confirm-existing variant before the service sees it.
type BookingRequest struct {
	Date      time.Time
	StartTime string
	EndTime   string
	StudioID  uuid.UUID
	Name      string
	Email     string
	Phone     *string
}

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
	}
}

func invalid(field string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
}

func (req BookingRequest) validate() error {
	switch {
	case req.Date.IsZero():
		return invalid("date")
	case req.StartTime == "":
		return invalid("startTime")
	case req.EndTime == "":
		return invalid("endTime")
	case req.StudioID == uuid.Nil:
		return invalid("studioId")
	case req.Name == "":
		return invalid("name")
	case req.Email == "":
		return invalid("email")
	}

	if _, ok := catalog.Find(req.StartTime, req.EndTime); !ok {
		return fmt.Errorf("%w: %s-%s is not a bookable time slot", ErrInvalidInput, req.StartTime, req.EndTime)
	}

	return nil
}

// Book reserves a studio slot for the requester. The per-slot Redis lock plus
// the store's active-slot uniqueness constraint guarantee that concurrent
// requests for the same (date, studio, start) triple produce at most one
// occupying reservation.
func (s *Service) Book(ctx context.Context, req BookingRequest) (*Reservation, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	day := NormalizeDate(req.Date)

	if _, err := s.repo.GetStudioByID(ctx, req.StudioID); err != nil {
		if errors.Is(err, ErrStudioNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load studio: %w", err)
	}

	var created *Reservation

	key := redisclient.SlotKey(day, req.StudioID, req.StartTime)
	err := s.locker.WithSlotLock(ctx, key, func(lockCtx context.Context) error {
		// Fast-path conflict check inside the critical section. The unique
		// index on the insert below is the authoritative guard.
		existing, err := s.repo.FindOccupyingReservation(lockCtx, day, req.StudioID, req.StartTime)
		if err != nil && !errors.Is(err, ErrReservationNotFound) {
			return fmt.Errorf("check occupying reservation: %w", err)
		}
		if existing != nil {
			return ErrSlotTaken
		}

		user, err := s.repo.UpsertUser(lockCtx, req.Name, req.Email, req.Phone)
		if err != nil {
			return fmt.Errorf("upsert user: %w", err)
		}

		res, err := s.repo.CreateConfirmedReservation(lockCtx, day, req.StartTime, req.EndTime, req.StudioID, user.ID)
		if err != nil {
			return fmt.Errorf("create reservation: %w", err)
		}

		created = res

		payload := map[string]any{
			"date":       day.Format("2006-01-02"),
			"start_time": req.StartTime,
			"studio_id":  req.StudioID.String(),
			"user_id":    user.ID.String(),
		}
		s.logEvent(lockCtx, res.ID, EventReservationCreated, payload)

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrSlotBeingBooked
		}
		return nil, err
	}

	return created, nil
}

// Confirm transitions a PENDING reservation to CONFIRMED. Confirming an
// already CONFIRMED reservation is a no-op returning the same reservation;
// CANCELLED and EXPIRED reservations stay closed.
func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	res, err := s.repo.GetReservationByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load reservation: %w", err)
	}

	switch res.Status {
	case StatusConfirmed:
		return res, nil
	case StatusCancelled, StatusExpired:
		return nil, ErrReservationClosed
	}

	updated, err := s.repo.UpdateReservationStatus(ctx, res.ID, StatusPending, StatusConfirmed)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			// Lost the CAS: someone else moved the status first. Re-read to
			// keep confirm idempotent under races.
			latest, readErr := s.repo.GetReservationByID(ctx, res.ID)
			if readErr == nil && latest.Status == StatusConfirmed {
				return latest, nil
			}
			return nil, ErrReservationClosed
		}
		return nil, fmt.Errorf("confirm reservation: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventReservationConfirmed, map[string]any{})

	return updated, nil
}

// GetReservation retrieves a reservation hydrated with its studio and user.
func (s *Service) GetReservation(ctx context.Context, id uuid.UUID) (*ReservationDetail, error) {
	detail, err := s.repo.GetReservationDetail(ctx, id)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return detail, nil
}

// ListBookings returns the requester's reservations, newest first.
func (s *Service) ListBookings(ctx context.Context, email string) ([]BookingSummary, error) {
	if email == "" {
		return nil, invalid("email")
	}

	bookings, err := s.repo.ListReservationsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}

// ExpireStalePending is called by the expiry worker. PENDING reservations
// older than the configured TTL move to EXPIRED; a concurrent confirm wins
// the status CAS.
func (s *Service) ExpireStalePending(ctx context.Context) error {
	cutoff := time.Now().Add(-s.cfg.PendingTTL)

	stale, err := s.repo.FindStalePending(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("find stale pending reservations: %w", err)
	}

	for _, res := range stale {
		_, err := s.repo.UpdateReservationStatus(ctx, res.ID, StatusPending, StatusExpired)
		if err != nil {
			if !errors.Is(err, ErrReservationNotFound) {
				log.Printf("failed to expire reservation %s: %v", res.ID, err)
			}
			continue
		}
		s.logEvent(ctx, res.ID, EventReservationExpired, map[string]any{
			"reason": "worker",
		})
	}

	return nil
}

func (s *Service) logEvent(ctx context.Context, reservationID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	resID := reservationID

	ev := EventLog{
		EventType:     eventType,
		ReservationID: &resID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for reservation %s: %v", eventType, reservationID, err)
	}
}
