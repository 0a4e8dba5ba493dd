package booking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atelierhq/studio-booking/internal/config"
	redisclient "github.com/atelierhq/studio-booking/internal/redis"
)

func testStudios() []Studio {
	desc := "Standard Pilates Studio"
	return []Studio{
		{ID: uuid.New(), Name: "Arethusa", Description: &desc},
		{ID: uuid.New(), Name: "Leander"},
		{ID: uuid.New(), Name: "Galatea"},
	}
}

func newTestService(repo *memRepo) *Service {
	return NewService(repo, passLocker{}, config.Config{PendingTTL: 15 * time.Minute})
}

func validRequest(studioID uuid.UUID) BookingRequest {
	return BookingRequest{
		Date:      time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		EndTime:   "10:00",
		StudioID:  studioID,
		Name:      "Maya Lindqvist",
		Email:     "maya@example.com",
	}
}

func TestBookCreatesConfirmedReservation(t *testing.T) {
	studios := testStudios()
	repo := newMemRepo(studios...)
	svc := newTestService(repo)

	res, err := svc.Book(context.Background(), validRequest(studios[0].ID))
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.ID)
	assert.Equal(t, StatusConfirmed, res.Status)
	assert.Equal(t, studios[0].ID, res.StudioID)
	assert.Equal(t, "09:00", res.StartTime)
	assert.Len(t, repo.events, 1)
	assert.Equal(t, EventReservationCreated, repo.events[0].EventType)
}

func TestBookSameSlotTwiceConflicts(t *testing.T) {
	studios := testStudios()
	repo := newMemRepo(studios...)
	svc := newTestService(repo)

	_, err := svc.Book(context.Background(), validRequest(studios[0].ID))
	require.NoError(t, err)

	second := validRequest(studios[0].ID)
	second.Email = "other@example.com"
	second.Name = "Jonas Petterson"

	_, err = svc.Book(context.Background(), second)
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.Equal(t, 1, repo.reservationCount())
}

func TestBookNormalizesDateToMidnight(t *testing.T) {
	studios := testStudios()
	repo := newMemRepo(studios...)
	svc := newTestService(repo)

	first := validRequest(studios[0].ID)
	first.Date = time.Date(2026, 9, 14, 14, 45, 12, 0, time.UTC)

	res, err := svc.Book(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC), res.Date)

	// Another time of day on the same date still collides.
	second := validRequest(studios[0].ID)
	second.Date = time.Date(2026, 9, 14, 7, 2, 0, 0, time.UTC)
	second.Email = "other@example.com"

	_, err = svc.Book(context.Background(), second)
	assert.ErrorIs(t, err, ErrSlotTaken)
}

func TestBookMissingFieldsTouchNoStore(t *testing.T) {
	studios := testStudios()

	cases := []struct {
		name   string
		mutate func(*BookingRequest)
	}{
		{"missing date", func(r *BookingRequest) { r.Date = time.Time{} }},
		{"missing start", func(r *BookingRequest) { r.StartTime = "" }},
		{"missing end", func(r *BookingRequest) { r.EndTime = "" }},
		{"missing studio", func(r *BookingRequest) { r.StudioID = uuid.Nil }},
		{"missing name", func(r *BookingRequest) { r.Name = "" }},
		{"missing email", func(r *BookingRequest) { r.Email = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemRepo(studios...)
			svc := newTestService(repo)

			req := validRequest(studios[0].ID)
			tc.mutate(&req)

			_, err := svc.Book(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Equal(t, 0, repo.userCount())
			assert.Equal(t, 0, repo.reservationCount())
		})
	}
}

func TestBookRejectsSlotOutsideCatalog(t *testing.T) {
	studios := testStudios()
	repo := newMemRepo(studios...)
	svc := newTestService(repo)

	req := validRequest(studios[0].ID)
	req.StartTime = "09:30"
	req.EndTime = "10:30"

	_, err := svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidInput)

	// A mismatched pair of two valid starts is also not a catalog slot.
	req = validRequest(studios[0].ID)
	req.EndTime = "11:00"

	_, err = svc.Book(context.Background(), req)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, 0, repo.reservationCount())
}

func TestBookUnknownStudio(t *testing.T) {
	repo := newMemRepo(testStudios()...)
	svc := newTestService(repo)

	_, err := svc.Book(context.Background(), validRequest(uuid.New()))
	assert.ErrorIs(t, err, ErrStudioNotFound)
}

func TestBookWhenLockHeld(t *testing.T) {
	studios := testStudios()
	repo := newMemRepo(studios...)
	svc := NewService(repo, deniedLocker{err: redisclient.ErrLockNotAcquired}, config.Config{})

	_, err := svc.Book(context.Background(), validRequest(studios[0].ID))
	assert.ErrorIs(t, err, ErrSlotBeingBooked)
	assert.Equal(t, 0, repo.reservationCount())
}

func TestConcurrentBookingSingleWinner(t *testing.T) {
	studios := testStudios()
	repo := newMemRepo(studios...)
	svc := newTestService(repo)

	const attempts = 32

	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := validRequest(studios[0].ID)
			_, errs[i] = svc.Book(context.Background(), req)
		}(i)
	}
	wg.Wait()

	var won, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrSlotTaken):
			conflicted++
		}
	}

	assert.Equal(t, 1, won)
	assert.Equal(t, attempts-1, conflicted)
	assert.Equal(t, 1, repo.reservationCount())
}

func TestConfirmPendingIsIdempotent(t *testing.T) {
	studios := testStudios()
	repo := newMemRepo(studios...)
	svc := newTestService(repo)

	pending := Reservation{
		ID:        uuid.New(),
		Date:      time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		StartTime: "10:00",
		EndTime:   "11:00",
		StudioID:  studios[1].ID,
		UserID:    uuid.New(),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	repo.addReservation(pending)

	first, err := svc.Confirm(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, first.ID)
	assert.Equal(t, StatusConfirmed, first.Status)

	second, err := svc.Confirm(context.Background(), pending.ID)
	require.NoError(t, err)
	assert.Equal(t, pending.ID, second.ID)
	assert.Equal(t, StatusConfirmed, second.Status)
}

func TestConfirmAfterConcurrentStatusChange(t *testing.T) {
	// The service reads a reservation as PENDING, but another caller moves
	// the status before the compare-and-swap lands. The outcome depends on
	// where the racer left it: CONFIRMED stays an idempotent success,
	// anything terminal is rejected.
	base := Reservation{
		ID:        uuid.New(),
		Date:      time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		StartTime: "11:00",
		EndTime:   "12:00",
		StudioID:  uuid.New(),
		UserID:    uuid.New(),
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}

	t.Run("racer confirmed first", func(t *testing.T) {
		stored := base
		stored.Status = StatusConfirmed

		mem := newMemRepo(testStudios()...)
		mem.addReservation(stored)
		repo := &staleReadRepo{memRepo: mem, staleID: base.ID, stale: base}
		svc := NewService(repo, passLocker{}, config.Config{PendingTTL: 15 * time.Minute})

		res, err := svc.Confirm(context.Background(), base.ID)
		require.NoError(t, err)
		assert.Equal(t, base.ID, res.ID)
		assert.Equal(t, StatusConfirmed, res.Status)
	})

	t.Run("racer cancelled first", func(t *testing.T) {
		stored := base
		stored.Status = StatusCancelled

		mem := newMemRepo(testStudios()...)
		mem.addReservation(stored)
		repo := &staleReadRepo{memRepo: mem, staleID: base.ID, stale: base}
		svc := NewService(repo, passLocker{}, config.Config{PendingTTL: 15 * time.Minute})

		_, err := svc.Confirm(context.Background(), base.ID)
		assert.ErrorIs(t, err, ErrReservationClosed)

		latest, err := mem.GetReservationByID(context.Background(), base.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCancelled, latest.Status)
	})
}

func TestConfirmUnknownReservation(t *testing.T) {
	svc := newTestService(newMemRepo(testStudios()...))

	_, err := svc.Confirm(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrReservationNotFound)
}

func TestConfirmClosedReservationStaysClosed(t *testing.T) {
	for _, status := range []ReservationStatus{StatusCancelled, StatusExpired} {
		t.Run(string(status), func(t *testing.T) {
			repo := newMemRepo(testStudios()...)
			svc := newTestService(repo)

			closed := Reservation{
				ID:        uuid.New(),
				Date:      time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
				StartTime: "13:00",
				EndTime:   "14:00",
				StudioID:  uuid.New(),
				UserID:    uuid.New(),
				Status:    status,
				CreatedAt: time.Now(),
			}
			repo.addReservation(closed)

			_, err := svc.Confirm(context.Background(), closed.ID)
			assert.ErrorIs(t, err, ErrReservationClosed)

			stored, err := repo.GetReservationByID(context.Background(), closed.ID)
			require.NoError(t, err)
			assert.Equal(t, status, stored.Status)
		})
	}
}

func TestUpsertUserLastWriteWins(t *testing.T) {
	studios := testStudios()
	repo := newMemRepo(studios...)
	svc := newTestService(repo)

	phone := "+46 70 123 45 67"
	first := validRequest(studios[0].ID)
	first.Name = "Maya L"
	first.Phone = &phone

	_, err := svc.Book(context.Background(), first)
	require.NoError(t, err)

	// Same email, different slot, new name, no phone.
	second := validRequest(studios[0].ID)
	second.StartTime = "11:00"
	second.EndTime = "12:00"
	second.Name = "Maya Lindqvist"
	second.Phone = nil

	_, err = svc.Book(context.Background(), second)
	require.NoError(t, err)

	assert.Equal(t, 1, repo.userCount())
	u := repo.usersByEmail["maya@example.com"]
	assert.Equal(t, "Maya Lindqvist", u.Name)
	assert.Nil(t, u.Phone, "absent phone on update clears the stored phone")
}

func TestExpireStalePending(t *testing.T) {
	studios := testStudios()
	repo := newMemRepo(studios...)
	svc := newTestService(repo)

	stale := Reservation{
		ID:        uuid.New(),
		Date:      time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC),
		StartTime: "07:00",
		EndTime:   "08:00",
		StudioID:  studios[0].ID,
		UserID:    uuid.New(),
		Status:    StatusPending,
		CreatedAt: time.Now().Add(-time.Hour),
	}
	fresh := stale
	fresh.ID = uuid.New()
	fresh.StartTime = "08:00"
	fresh.EndTime = "09:00"
	fresh.CreatedAt = time.Now()

	repo.addReservation(stale)
	repo.addReservation(fresh)

	require.NoError(t, svc.ExpireStalePending(context.Background()))

	got, err := repo.GetReservationByID(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, got.Status)

	got, err = repo.GetReservationByID(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestBookSurfacesStoreUnavailable(t *testing.T) {
	studios := testStudios()
	repo := newMemRepo(studios...)
	repo.failWith = ErrStoreUnavailable
	svc := newTestService(repo)

	_, err := svc.Book(context.Background(), validRequest(studios[0].ID))
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, _, err = svc.Availability(context.Background(), time.Now(), uuid.Nil)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestListBookingsRequiresEmail(t *testing.T) {
	svc := newTestService(newMemRepo(testStudios()...))

	_, err := svc.ListBookings(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
}
