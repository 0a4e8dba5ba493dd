package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository used by the service tests. It enforces
// the same active-slot uniqueness the Postgres partial index provides, so
// conflict behavior can be exercised without a database.
type memRepo struct {
	mu           sync.Mutex
	studios      []Studio
	usersByEmail map[string]*User
	reservations map[uuid.UUID]*Reservation
	events       []EventLog

	failWith error // when set, every store call fails with this error
}

func newMemRepo(studios ...Studio) *memRepo {
	return &memRepo{
		studios:      studios,
		usersByEmail: make(map[string]*User),
		reservations: make(map[uuid.UUID]*Reservation),
	}
}

func (m *memRepo) addReservation(r Reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := r
	m.reservations[r.ID] = &cp
}

func (m *memRepo) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.usersByEmail)
}

func (m *memRepo) reservationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.reservations)
}

func (m *memRepo) ListStudios(ctx context.Context) ([]Studio, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Studio, len(m.studios))
	copy(out, m.studios)
	return out, nil
}

func (m *memRepo) GetStudioByID(ctx context.Context, id uuid.UUID) (*Studio, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.studios {
		if s.ID == id {
			cp := s
			return &cp, nil
		}
	}
	return nil, ErrStudioNotFound
}

func (m *memRepo) ListOccupied(ctx context.Context, date time.Time, studioID uuid.UUID) ([]OccupiedSlot, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []OccupiedSlot
	for _, r := range m.reservations {
		if !r.Status.Occupying() || !r.Date.Equal(date) {
			continue
		}
		if studioID != uuid.Nil && r.StudioID != studioID {
			continue
		}
		out = append(out, OccupiedSlot{StudioID: r.StudioID, StartTime: r.StartTime})
	}
	return out, nil
}

func (m *memRepo) GetReservationByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok {
		return nil, ErrReservationNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) FindOccupyingReservation(ctx context.Context, date time.Time, studioID uuid.UUID, startTime string) (*Reservation, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.findOccupyingLocked(date, studioID, startTime)
	if r == nil {
		return nil, ErrReservationNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memRepo) findOccupyingLocked(date time.Time, studioID uuid.UUID, startTime string) *Reservation {
	for _, r := range m.reservations {
		if r.Status.Occupying() && r.Date.Equal(date) && r.StudioID == studioID && r.StartTime == startTime {
			return r
		}
	}
	return nil
}

func (m *memRepo) CreateConfirmedReservation(ctx context.Context, date time.Time, startTime, endTime string, studioID, userID uuid.UUID) (*Reservation, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findOccupyingLocked(date, studioID, startTime) != nil {
		return nil, ErrSlotTaken
	}

	now := time.Now()
	r := &Reservation{
		ID:        uuid.New(),
		Date:      date,
		StartTime: startTime,
		EndTime:   endTime,
		StudioID:  studioID,
		UserID:    userID,
		Status:    StatusConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.reservations[r.ID] = r
	cp := *r
	return &cp, nil
}

func (m *memRepo) UpdateReservationStatus(ctx context.Context, id uuid.UUID, from, to ReservationStatus) (*Reservation, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reservations[id]
	if !ok || r.Status != from {
		return nil, ErrReservationNotFound
	}
	r.Status = to
	r.UpdatedAt = time.Now()
	cp := *r
	return &cp, nil
}

func (m *memRepo) UpsertUser(ctx context.Context, name, email string, phone *string) (*User, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if u, ok := m.usersByEmail[email]; ok {
		u.Name = name
		u.Phone = phone
		u.UpdatedAt = time.Now()
		cp := *u
		return &cp, nil
	}

	now := time.Now()
	u := &User{
		ID:        uuid.New(),
		Name:      name,
		Email:     email,
		Phone:     phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.usersByEmail[email] = u
	cp := *u
	return &cp, nil
}

func (m *memRepo) GetReservationDetail(ctx context.Context, id uuid.UUID) (*ReservationDetail, error) {
	r, err := m.GetReservationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &ReservationDetail{Reservation: *r}

	studio, err := m.GetStudioByID(ctx, r.StudioID)
	if err != nil {
		return nil, err
	}
	detail.Studio = studio

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.usersByEmail {
		if u.ID == r.UserID {
			cp := *u
			detail.User = &cp
			break
		}
	}
	if detail.User == nil {
		return nil, ErrUserNotFound
	}
	return detail, nil
}

func (m *memRepo) ListReservationsByEmail(ctx context.Context, email string) ([]BookingSummary, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.usersByEmail[email]
	if !ok {
		return nil, nil
	}

	var out []BookingSummary
	for _, r := range m.reservations {
		if r.UserID != u.ID {
			continue
		}
		name := ""
		for _, s := range m.studios {
			if s.ID == r.StudioID {
				name = s.Name
			}
		}
		out = append(out, BookingSummary{
			ID:         r.ID,
			Date:       r.Date,
			StartTime:  r.StartTime,
			StudioName: name,
			Status:     r.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].StartTime > out[j].StartTime
	})
	return out, nil
}

func (m *memRepo) FindStalePending(ctx context.Context, olderThan time.Time) ([]Reservation, error) {
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Reservation
	for _, r := range m.reservations {
		if r.Status == StatusPending && r.CreatedAt.Before(olderThan) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memRepo) InsertEvent(ctx context.Context, ev EventLog) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// staleReadRepo serves one stale snapshot of a reservation before delegating
// to the underlying store, emulating another caller changing the status
// between the service's read and its compare-and-swap update.
type staleReadRepo struct {
	*memRepo
	staleID    uuid.UUID
	stale      Reservation
	servedOnce bool
	staleMu    sync.Mutex
}

func (r *staleReadRepo) GetReservationByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	r.staleMu.Lock()
	serveStale := !r.servedOnce && id == r.staleID
	r.servedOnce = true
	r.staleMu.Unlock()

	if serveStale {
		cp := r.stale
		return &cp, nil
	}
	return r.memRepo.GetReservationByID(ctx, id)
}

// passLocker runs the critical section without any locking. Conflict safety
// in the tests comes from memRepo's uniqueness check, mirroring production
// where the database constraint is the authoritative guard.
type passLocker struct{}

func (passLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// deniedLocker always reports the lock as held elsewhere.
type deniedLocker struct {
	err error
}

func (l deniedLocker) WithSlotLock(ctx context.Context, slotKey string, fn func(ctx context.Context) error) error {
	return l.err
}
