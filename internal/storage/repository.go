package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/skycast/skycast/internal/forecast"
)

// ErrConstraint marks a write rejected because the record failed validation.
// The offending record is never partially written.
var ErrConstraint = errors.New("constraint violation")

// DB abstracts the subset of pgxpool.Pool used by Repository.
// This allows injection of a mock in tests.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Repository provides database access for cached forecast rows. The weather
// table holds exactly one row per normalized date and always represents the
// most recent successful sync, never a history.
type Repository struct {
	db DB
}

// NewRepository constructs a Repository backed by the given pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// NewRepositoryWithDB constructs a Repository with a custom DB (for tests).
func NewRepositoryWithDB(db DB) *Repository {
	return &Repository{db: db}
}

// insertSQL replaces any existing row for the same date. The conflict branch
// also advances the id sequence so a replaced row gets a fresh surrogate id:
// a replace is a logical delete+insert, not an in-place update, and ids are
// never reused.
const insertSQL = `
	INSERT INTO weather
		(forecast_date, condition_id, min_temp, max_temp, humidity, pressure, wind_speed, wind_degrees)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (forecast_date) DO UPDATE
	SET id           = nextval(pg_get_serial_sequence('weather', 'id')),
	    condition_id = EXCLUDED.condition_id,
	    min_temp     = EXCLUDED.min_temp,
	    max_temp     = EXCLUDED.max_temp,
	    humidity     = EXCLUDED.humidity,
	    pressure     = EXCLUDED.pressure,
	    wind_speed   = EXCLUDED.wind_speed,
	    wind_degrees = EXCLUDED.wind_degrees
	RETURNING id
`

const selectColumns = `
	SELECT id, forecast_date, condition_id, min_temp, max_temp, humidity, pressure, wind_speed, wind_degrees
	FROM weather
`

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertDay(ctx context.Context, q rowQuerier, day forecast.Day) (int64, error) {
	if err := day.Validate(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrConstraint, err)
	}

	var id int64
	err := q.QueryRow(ctx, insertSQL,
		forecast.DateToMillis(day.Date),
		day.ConditionID,
		day.MinTemp,
		day.MaxTemp,
		day.Humidity,
		day.Pressure,
		day.WindSpeed,
		day.WindDegrees,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting forecast for %s: %w", day.Date.Format(time.DateOnly), err)
	}
	return id, nil
}

// InsertOrReplace writes one forecast day, replacing any existing row for the
// same date, and returns the assigned surrogate id. Invalid records fail with
// ErrConstraint before any SQL runs.
func (r *Repository) InsertOrReplace(ctx context.Context, day forecast.Day) (int64, error) {
	return insertDay(ctx, r.db, day)
}

// BulkInsert applies InsertOrReplace for each record and returns the number
// of rows written. Records failing validation are skipped; a bad record never
// undoes rows already written in the batch. The first storage error aborts
// the remainder and is returned alongside the count so far.
func (r *Repository) BulkInsert(ctx context.Context, days []forecast.Day) (int, error) {
	written := 0
	for _, day := range days {
		_, err := insertDay(ctx, r.db, day)
		if err != nil {
			if errors.Is(err, ErrConstraint) {
				continue
			}
			return written, err
		}
		written++
	}
	return written, nil
}

// DeleteAll removes every cached row and returns the count deleted. The table
// itself remains.
func (r *Repository) DeleteAll(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM weather`)
	if err != nil {
		return 0, fmt.Errorf("deleting forecast rows: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ReplaceAll swaps the entire cached forecast for the given records inside a
// single transaction, so no concurrent reader ever observes the table empty
// between the delete and the insert. Records failing validation are skipped.
// Returns the number of rows written.
func (r *Repository) ReplaceAll(ctx context.Context, days []forecast.Day) (int, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning replace transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM weather`); err != nil {
		return 0, fmt.Errorf("clearing forecast rows: %w", err)
	}

	written := 0
	for _, day := range days {
		if _, err := insertDay(ctx, tx, day); err != nil {
			if errors.Is(err, ErrConstraint) {
				continue
			}
			return 0, err
		}
		written++
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing replace transaction: %w", err)
	}
	return written, nil
}

// QueryRange returns forecast rows with from <= date < to, ordered by date.
// A zero to means unbounded.
func (r *Repository) QueryRange(ctx context.Context, from, to time.Time, ascending bool) ([]forecast.Day, error) {
	order := "DESC"
	if ascending {
		order = "ASC"
	}

	var (
		rows pgx.Rows
		err  error
	)
	if to.IsZero() {
		q := selectColumns + `WHERE forecast_date >= $1 ORDER BY forecast_date ` + order
		rows, err = r.db.Query(ctx, q, forecast.DateToMillis(from))
	} else {
		q := selectColumns + `WHERE forecast_date >= $1 AND forecast_date < $2 ORDER BY forecast_date ` + order
		rows, err = r.db.Query(ctx, q, forecast.DateToMillis(from), forecast.DateToMillis(to))
	}
	if err != nil {
		return nil, fmt.Errorf("querying forecast range: %w", err)
	}
	defer rows.Close()

	var days []forecast.Day
	for rows.Next() {
		day, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating forecast rows: %w", err)
	}
	return days, nil
}

// GetByDate returns the cached row for a single normalized date.
// Returns nil, nil when no row exists.
func (r *Repository) GetByDate(ctx context.Context, date time.Time) (*forecast.Day, error) {
	q := selectColumns + `WHERE forecast_date = $1`

	var (
		day    forecast.Day
		millis int64
	)
	err := r.db.QueryRow(ctx, q, forecast.DateToMillis(forecast.NormalizeDate(date))).Scan(
		&day.ID,
		&millis,
		&day.ConditionID,
		&day.MinTemp,
		&day.MaxTemp,
		&day.Humidity,
		&day.Pressure,
		&day.WindSpeed,
		&day.WindDegrees,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying forecast for %s: %w", date.Format(time.DateOnly), err)
	}
	day.Date = forecast.DateFromMillis(millis)
	return &day, nil
}

// CountUpcoming reports how many cached rows exist for from onward. Used by
// the scheduler to decide whether an immediate sync is needed at startup.
func (r *Repository) CountUpcoming(ctx context.Context, from time.Time) (int64, error) {
	var n int64
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM weather WHERE forecast_date >= $1`,
		forecast.DateToMillis(from),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting upcoming forecast rows: %w", err)
	}
	return n, nil
}

func scanDay(rows pgx.Rows) (forecast.Day, error) {
	var (
		day    forecast.Day
		millis int64
	)
	if err := rows.Scan(
		&day.ID,
		&millis,
		&day.ConditionID,
		&day.MinTemp,
		&day.MaxTemp,
		&day.Humidity,
		&day.Pressure,
		&day.WindSpeed,
		&day.WindDegrees,
	); err != nil {
		return forecast.Day{}, fmt.Errorf("scanning forecast row: %w", err)
	}
	day.Date = forecast.DateFromMillis(millis)
	return day, nil
}
