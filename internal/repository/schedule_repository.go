package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/autopost/internal/models"
)

type ScheduleRepository interface {
	Create(ctx context.Context, s *models.Schedule) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.Schedule, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Schedule, error)
	ListActive(ctx context.Context) ([]*models.Schedule, error)
	Update(ctx context.Context, s *models.Schedule) error
	SetActive(ctx context.Context, id int64, active bool) error
	Remove(ctx context.Context, id int64) error
}

type scheduleRepository struct {
	db *sql.DB
}

func NewScheduleRepository(db *sql.DB) ScheduleRepository {
	return &scheduleRepository{db: db}
}

const scheduleColumns = `id, user_id, name, schedule_type, slots, days_of_week, source_type,
	source_config, account_ids, template_id, max_posts_per_day, min_hours_between_posts,
	is_active, created_at, updated_at`

func scanSchedule(row interface{ Scan(...any) error }) (*models.Schedule, error) {
	var s models.Schedule
	var slots, sourceConfig []byte
	var days pq.Int64Array
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.ScheduleType, &slots, &days, &s.SourceType,
		&sourceConfig, &s.AccountIDs, &s.TemplateID, &s.MaxPostsPerDay, &s.MinHoursBetween,
		&s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(slots, &s.Slots); err != nil {
		return nil, err
	}
	if len(sourceConfig) > 0 {
		if err := json.Unmarshal(sourceConfig, &s.SourceConfig); err != nil {
			return nil, err
		}
	}
	s.DaysOfWeek = make([]int, 0, len(days))
	for _, d := range days {
		s.DaysOfWeek = append(s.DaysOfWeek, int(d))
	}
	return &s, nil
}

func scheduleArgs(s *models.Schedule) ([]byte, []byte, pq.Int64Array, error) {
	slots, err := json.Marshal(s.Slots)
	if err != nil {
		return nil, nil, nil, err
	}
	sourceConfig, err := json.Marshal(s.SourceConfig)
	if err != nil {
		return nil, nil, nil, err
	}
	days := make(pq.Int64Array, 0, len(s.DaysOfWeek))
	for _, d := range s.DaysOfWeek {
		days = append(days, int64(d))
	}
	return slots, sourceConfig, days, nil
}

func (r *scheduleRepository) Create(ctx context.Context, s *models.Schedule) (int64, error) {
	slots, sourceConfig, days, err := scheduleArgs(s)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	query := `
		INSERT INTO schedules (user_id, name, schedule_type, slots, days_of_week, source_type,
			source_config, account_ids, template_id, max_posts_per_day, min_hours_between_posts, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`

	var id int64
	err = r.db.QueryRowContext(ctx, query, s.UserID, s.Name, s.ScheduleType, slots, days,
		s.SourceType, sourceConfig, s.AccountIDs, s.TemplateID, s.MaxPostsPerDay,
		s.MinHoursBetween, s.IsActive).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *scheduleRepository) GetByID(ctx context.Context, id int64) (*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = $1`
	s, err := scanSchedule(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return s, nil
}

func (r *scheduleRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE user_id = $1 ORDER BY id ASC`
	return r.list(ctx, query, userID)
}

func (r *scheduleRepository) ListActive(ctx context.Context) ([]*models.Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE is_active = TRUE ORDER BY id ASC`
	return r.list(ctx, query)
}

func (r *scheduleRepository) list(ctx context.Context, query string, args ...any) ([]*models.Schedule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var schedules []*models.Schedule
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return schedules, nil
}

func (r *scheduleRepository) Update(ctx context.Context, s *models.Schedule) error {
	slots, sourceConfig, days, err := scheduleArgs(s)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	query := `
		UPDATE schedules
		SET name = $1,
			schedule_type = $2,
			slots = $3,
			days_of_week = $4,
			source_type = $5,
			source_config = $6,
			account_ids = $7,
			template_id = $8,
			max_posts_per_day = $9,
			min_hours_between_posts = $10,
			updated_at = $11
		WHERE id = $12
	`
	_, err = r.db.ExecContext(ctx, query, s.Name, s.ScheduleType, slots, days, s.SourceType,
		sourceConfig, s.AccountIDs, s.TemplateID, s.MaxPostsPerDay, s.MinHoursBetween,
		time.Now(), s.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *scheduleRepository) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE schedules SET is_active = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, active, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *scheduleRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM schedules WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
