package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// The reservations table carries a partial unique index over
// (date, studio_id, start_time) WHERE status IN ('PENDING','CONFIRMED').
// Insert races for the same slot surface here as unique violations and are
// mapped to ErrSlotTaken.
const uniqueViolation = "23505"

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanStudio(row pgx.Row) (*Studio, error) {
	var s Studio
	var description *string

	err := row.Scan(
		&s.ID,
		&s.Name,
		&description,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStudioNotFound
		}
		return nil, storeErr("scan studio", err)
	}

	s.Description = description
	return &s, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var u User
	var phone *string

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&phone,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, storeErr("scan user", err)
	}

	u.Phone = phone
	return &u, nil
}

func scanReservation(row pgx.Row) (*Reservation, error) {
	var r Reservation

	err := row.Scan(
		&r.ID,
		&r.Date,
		&r.StartTime,
		&r.EndTime,
		&r.StudioID,
		&r.UserID,
		&r.Status,
		&r.CreatedAt,
		&r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, storeErr("scan reservation", err)
	}

	return &r, nil
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// Interface methods

func (r *PgRepository) ListStudios(ctx context.Context) ([]Studio, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM studios
		ORDER BY name
	`)
	if err != nil {
		return nil, storeErr("list studios", err)
	}
	defer rows.Close()

	var result []Studio
	for rows.Next() {
		s, err := scanStudio(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *s)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("list studios", err)
	}

	return result, nil
}

func (r *PgRepository) GetStudioByID(ctx context.Context, id uuid.UUID) (*Studio, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, description, created_at, updated_at
		FROM studios
		WHERE id = $1
	`, id)
	return scanStudio(row)
}

func (r *PgRepository) ListOccupied(ctx context.Context, date time.Time, studioID uuid.UUID) ([]OccupiedSlot, error) {
	query := `
		SELECT studio_id, start_time
		FROM reservations
		WHERE date = $1 AND status IN ('PENDING', 'CONFIRMED')
	`
	args := []any{date}
	if studioID != uuid.Nil {
		query += ` AND studio_id = $2`
		args = append(args, studioID)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list occupied slots", err)
	}
	defer rows.Close()

	var result []OccupiedSlot
	for rows.Next() {
		var o OccupiedSlot
		if err := rows.Scan(&o.StudioID, &o.StartTime); err != nil {
			return nil, storeErr("scan occupied slot", err)
		}
		result = append(result, o)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("list occupied slots", err)
	}

	return result, nil
}

func (r *PgRepository) GetReservationByID(ctx context.Context, id uuid.UUID) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, date, start_time, end_time, studio_id, user_id, status, created_at, updated_at
		FROM reservations
		WHERE id = $1
	`, id)
	return scanReservation(row)
}

func (r *PgRepository) FindOccupyingReservation(ctx context.Context, date time.Time, studioID uuid.UUID, startTime string) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, date, start_time, end_time, studio_id, user_id, status, created_at, updated_at
		FROM reservations
		WHERE date = $1 AND studio_id = $2 AND start_time = $3
		  AND status IN ('PENDING', 'CONFIRMED')
	`, date, studioID, startTime)
	return scanReservation(row)
}

func (r *PgRepository) CreateConfirmedReservation(ctx context.Context, date time.Time, startTime, endTime string, studioID, userID uuid.UUID) (*Reservation, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO reservations (id, date, start_time, end_time, studio_id, user_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'CONFIRMED', now(), now())
		RETURNING id, date, start_time, end_time, studio_id, user_id, status, created_at, updated_at
	`, id, date, startTime, endTime, studioID, userID)

	res, err := scanReservation(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrSlotTaken
		}
		return nil, err
	}

	return res, nil
}

func (r *PgRepository) UpdateReservationStatus(ctx context.Context, id uuid.UUID, from, to ReservationStatus) (*Reservation, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE reservations
		SET status = $2,
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING id, date, start_time, end_time, studio_id, user_id, status, created_at, updated_at
	`, id, to, from)

	return scanReservation(row)
}

func (r *PgRepository) UpsertUser(ctx context.Context, name, email string, phone *string) (*User, error) {
	id := uuid.New()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, name, email, phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (email) DO UPDATE
		SET name = EXCLUDED.name,
		    phone = EXCLUDED.phone,
		    updated_at = now()
		RETURNING id, name, email, phone, created_at, updated_at
	`, id, name, email, phone)

	return scanUser(row)
}

func (r *PgRepository) GetReservationDetail(ctx context.Context, id uuid.UUID) (*ReservationDetail, error) {
	res, err := r.GetReservationByID(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &ReservationDetail{Reservation: *res}

	studio, err := r.GetStudioByID(ctx, res.StudioID)
	if err != nil {
		return nil, err
	}
	detail.Studio = studio

	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM users
		WHERE id = $1
	`, res.UserID)
	user, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	detail.User = user

	return detail, nil
}

func (r *PgRepository) ListReservationsByEmail(ctx context.Context, email string) ([]BookingSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.date, r.start_time, s.name, r.status
		FROM reservations r
		JOIN users u ON u.id = r.user_id
		JOIN studios s ON s.id = r.studio_id
		WHERE u.email = $1
		ORDER BY r.date DESC, r.start_time DESC
	`, email)
	if err != nil {
		return nil, storeErr("list reservations by email", err)
	}
	defer rows.Close()

	var result []BookingSummary
	for rows.Next() {
		var b BookingSummary
		if err := rows.Scan(&b.ID, &b.Date, &b.StartTime, &b.StudioName, &b.Status); err != nil {
			return nil, storeErr("scan booking summary", err)
		}
		result = append(result, b)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("list reservations by email", err)
	}

	return result, nil
}

func (r *PgRepository) FindStalePending(ctx context.Context, olderThan time.Time) ([]Reservation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, date, start_time, end_time, studio_id, user_id, status, created_at, updated_at
		FROM reservations
		WHERE status = 'PENDING'
		  AND created_at < $1
	`, olderThan)
	if err != nil {
		return nil, storeErr("find stale pending", err)
	}
	defer rows.Close()

	var result []Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *res)
	}

	if err := rows.Err(); err != nil {
		return nil, storeErr("find stale pending", err)
	}

	return result, nil
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, reservation_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.ReservationID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
