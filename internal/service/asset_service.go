package service

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"

	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/internal/apperr"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/repository"
)

type AssetService interface {
	UploadFiles(ctx context.Context, userID, folderID int64, files []*multipart.FileHeader) ([]int64, error)
	BlacklistFile(ctx context.Context, userID, fileID int64, blacklisted bool) error
	RemoveFile(ctx context.Context, userID, fileID int64) error
}

type assetService struct {
	cfg config.Config
	df  repository.DriveFileRepository
	r2  *R2Service
}

func NewAssetService(cfg config.Config, df repository.DriveFileRepository, r2 *R2Service) AssetService {
	return &assetService{
		cfg: cfg,
		df:  df,
		r2:  r2,
	}
}

// UploadFiles validates and stores uploaded media, then registers each file as
// a selection candidate in the given folder. Returns the new file IDs.
func (s *assetService) UploadFiles(ctx context.Context, userID, folderID int64, files []*multipart.FileHeader) ([]int64, error) {
	if len(files) == 0 {
		return nil, apperr.Validation("no files to upload")
	}

	allowedTypes := map[string]struct{}{
		"mp4": {}, "mov": {}, "jpeg": {}, "png": {}, "jpg": {},
	}

	fileIDs := make([]int64, 0, len(files))

	for _, file := range files {
		fileContent, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("error opening file: %w", err)
		}
		defer fileContent.Close()

		fileBytes, err := io.ReadAll(fileContent)
		if err != nil {
			return nil, fmt.Errorf("error reading file content: %w", err)
		}

		fileType, err := filetype.Match(fileBytes)
		if err != nil || fileType == types.Unknown {
			return nil, apperr.Validation("unsupported file type")
		}
		if _, ok := allowedTypes[fileType.Extension]; !ok {
			return nil, apperr.Validation("file type %s is not allowed", fileType.Extension)
		}

		fileID, err := s.saveFile(ctx, userID, folderID, fileType.MIME.Value, fileBytes)
		if err != nil {
			return nil, fmt.Errorf("error uploading file: %w", err)
		}
		fileIDs = append(fileIDs, fileID)
	}

	return fileIDs, nil
}

func (s *assetService) saveFile(ctx context.Context, userID, folderID int64, fileType string, file []byte) (int64, error) {
	id, err := gonanoid.New()
	if err != nil {
		return 0, err
	}

	err = s.r2.UploadToR2(ctx, id, file, fileType)
	if err != nil {
		return 0, err
	}

	df := models.DriveFile{
		UserID:    userID,
		FolderID:  folderID,
		FileName:  id,
		FileType:  fileType,
		FileURL:   fmt.Sprintf("https://pub-%s.r2.dev/%s", s.cfg.R2.AccountID, id),
		Available: true,
	}

	fileID, err := s.df.Create(ctx, &df)
	if err != nil {
		return 0, err
	}

	return fileID, nil
}

func (s *assetService) BlacklistFile(ctx context.Context, userID, fileID int64, blacklisted bool) error {
	if fileID == 0 {
		return apperr.Validation("file id is not valid")
	}
	return s.df.SetBlacklisted(ctx, userID, fileID, blacklisted)
}

func (s *assetService) RemoveFile(ctx context.Context, userID, fileID int64) error {
	f, err := s.df.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if f == nil || f.UserID != userID {
		return apperr.NotFound("file %d", fileID)
	}
	return s.df.Remove(ctx, fileID)
}
