package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/lib/pq"
	"github.com/maheshrc27/autopost/internal/models"
)

// DriveFileFilter narrows the candidate pool; empty fields do not restrict.
type DriveFileFilter struct {
	FileType string
}

type DriveFileRepository interface {
	Create(ctx context.Context, f *models.DriveFile) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.DriveFile, error)
	ListAvailable(ctx context.Context, userID int64, folderIDs []int64, filter *DriveFileFilter) ([]*models.DriveFile, error)
	SetBlacklisted(ctx context.Context, userID, id int64, blacklisted bool) error
	Remove(ctx context.Context, id int64) error
}

type driveFileRepository struct {
	db *sql.DB
}

func NewDriveFileRepository(db *sql.DB) DriveFileRepository {
	return &driveFileRepository{db: db}
}

const driveFileColumns = `id, user_id, folder_id, file_name, file_type, file_url,
	available, blacklisted, use_count, last_used_at, created_at`

func scanDriveFile(row interface{ Scan(...any) error }) (*models.DriveFile, error) {
	var f models.DriveFile
	err := row.Scan(&f.ID, &f.UserID, &f.FolderID, &f.FileName, &f.FileType, &f.FileURL,
		&f.Available, &f.Blacklisted, &f.UseCount, &f.LastUsedAt, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *driveFileRepository) Create(ctx context.Context, f *models.DriveFile) (int64, error) {
	query := `
		INSERT INTO drive_files (user_id, folder_id, file_name, file_type, file_url, available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query, f.UserID, f.FolderID, f.FileName, f.FileType,
		f.FileURL, f.Available).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *driveFileRepository) GetByID(ctx context.Context, id int64) (*models.DriveFile, error) {
	query := `SELECT ` + driveFileColumns + ` FROM drive_files WHERE id = $1`
	f, err := scanDriveFile(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return f, nil
}

func (r *driveFileRepository) ListAvailable(ctx context.Context, userID int64, folderIDs []int64, filter *DriveFileFilter) ([]*models.DriveFile, error) {
	query := `SELECT ` + driveFileColumns + ` FROM drive_files
		WHERE user_id = $1 AND folder_id = ANY($2) AND available = TRUE AND blacklisted = FALSE`
	args := []any{userID, pq.Int64Array(folderIDs)}

	if filter != nil && filter.FileType != "" {
		args = append(args, filter.FileType)
		query += ` AND file_type = $3`
	}

	query += ` ORDER BY folder_id ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var files []*models.DriveFile
	for rows.Next() {
		f, err := scanDriveFile(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return files, nil
}

func (r *driveFileRepository) SetBlacklisted(ctx context.Context, userID, id int64, blacklisted bool) error {
	query := `UPDATE drive_files SET blacklisted = $1 WHERE id = $2 AND user_id = $3`
	_, err := r.db.ExecContext(ctx, query, blacklisted, id, userID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *driveFileRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM drive_files WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
