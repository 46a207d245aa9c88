package chatbot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type appointmentRepo struct {
	db *sql.DB
}

// NewAppointmentStore returns the PostgreSQL-backed appointment store.
func NewAppointmentStore(db *sql.DB) AppointmentStore {
	return &appointmentRepo{db: db}
}

func (r *appointmentRepo) Save(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now().UTC()

	query, args, err := psql.Insert("appointments").
		Columns("id", "name", "date", "period", "user_id", "created_at").
		Values(a.ID, a.Name, a.Date, a.Period, a.UserID, a.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *appointmentRepo) ListAll(ctx context.Context) ([]Appointment, error) {
	return r.list(ctx, r.selectAppointments())
}

func (r *appointmentRepo) ListByUser(ctx context.Context, userID string) ([]Appointment, error) {
	return r.list(ctx, r.selectAppointments().Where(sq.Eq{"user_id": userID}))
}

func (r *appointmentRepo) selectAppointments() sq.SelectBuilder {
	return psql.Select("id", "name", "date", "period", "user_id", "created_at").
		From("appointments").
		OrderBy("created_at DESC")
}

func (r *appointmentRepo) list(ctx context.Context, builder sq.SelectBuilder) ([]Appointment, error) {
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	appointments := []Appointment{}
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.Name, &a.Date, &a.Period, &a.UserID, &a.CreatedAt); err != nil {
			return nil, err
		}
		appointments = append(appointments, a)
	}
	return appointments, rows.Err()
}

// Stats assembles the dashboard aggregates: total count, count per period,
// distinct users and the five most recent appointments.
func (r *appointmentRepo) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{ByPeriod: map[string]int{}}

	query, args, err := psql.Select("COUNT(*)", "COUNT(DISTINCT user_id)").
		From("appointments").
		ToSql()
	if err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&stats.TotalAppointments, &stats.DistinctUsers); err != nil {
		return nil, fmt.Errorf("count appointments: %w", err)
	}

	query, args, err = psql.Select("period", "COUNT(*)").
		From("appointments").
		GroupBy("period").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count by period: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var period string
		var count int
		if err := rows.Scan(&period, &count); err != nil {
			return nil, err
		}
		stats.ByPeriod[period] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	recent, err := r.list(ctx, r.selectAppointments().Limit(5))
	if err != nil {
		return nil, fmt.Errorf("recent appointments: %w", err)
	}
	stats.Recent = recent

	return stats, nil
}
