package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	config "github.com/maheshrc27/autopost/configs"
	"github.com/maheshrc27/autopost/internal/apperr"
	"github.com/maheshrc27/autopost/internal/models"
	"github.com/maheshrc27/autopost/internal/repository"
	"github.com/maheshrc27/autopost/internal/transfer"
	"github.com/maheshrc27/autopost/pkg/utils"
)

const tiktokTokenURL = "https://open.tiktokapis.com/v2/oauth/token/"

type TiktokService interface {
	TiktokCallback(ctx context.Context, code string, userID int64) error
	RefreshTiktokToken(ctx context.Context, userID int64, accessToken, refreshToken string) error
	PostContent(ctx context.Context, account *models.SocialAccount, content *PublishContent) (string, error)
}

type tiktokService struct {
	cfg config.Config
	sa  repository.SocialAccountRepository
}

func NewTiktokService(cfg config.Config, sa repository.SocialAccountRepository) TiktokService {
	return &tiktokService{
		cfg: cfg,
		sa:  sa,
	}
}

func (s *tiktokService) TiktokCallback(ctx context.Context, code string, userID int64) error {
	if code == "" {
		return apperr.Validation("code is empty")
	}

	tokenResponse, err := s.exchangeCodeForToken(code)
	if err != nil {
		return err
	}

	userInfo, err := TiktokUserInfo(tokenResponse.AccessToken)
	if err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	accountInfo := &models.SocialAccount{
		UserID:          userID,
		Platform:        "tiktok",
		AccountID:       userInfo.Data.User.OpenID,
		AccountName:     userInfo.Data.User.DisplayName,
		AccountUsername: userInfo.Data.User.Username,
		ProfilePicture:  userInfo.Data.User.AvatarURL,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedRefreshToken,
		TokenExpiresAt:  GetExpiresAt(tokenResponse.ExpiresIn),
	}

	_, err = s.sa.Create(ctx, nil, accountInfo)
	if err != nil {
		return err
	}

	return nil
}

func (s *tiktokService) exchangeCodeForToken(code string) (*transfer.TiktokTokenResponse, error) {
	data := url.Values{}
	data.Add("client_key", s.cfg.TiktokClientKey)
	data.Add("client_secret", s.cfg.TiktokClientSecret)
	data.Add("scopes", "user.info.basic,user.info.profile,video.publish,video.upload")
	data.Add("code", code)
	data.Add("grant_type", "authorization_code")
	data.Add("redirect_uri", s.cfg.TiktokRedirectURI)

	resp, err := http.Post(
		tiktokTokenURL,
		"application/x-www-form-urlencoded",
		strings.NewReader(data.Encode()),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Info("TikTok token endpoint returned non-200 status")
		return nil, errors.New("TikTok token endpoint returned non-200 status")
	}

	var tokenResponse transfer.TiktokTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return &tokenResponse, nil
}

func TiktokUserInfo(accessToken string) (*transfer.TikTokResponse, error) {
	url := "https://open.tiktokapis.com/v2/user/info/?fields=open_id,avatar_url,display_name,username"

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var result transfer.TikTokResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &result, nil
}

func (s *tiktokService) RefreshTiktokToken(ctx context.Context, userID int64, accessToken, refreshToken string) error {
	decryptedRefreshToken, err := utils.Decrypt(refreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	data := url.Values{}
	data.Set("client_key", s.cfg.TiktokClientKey)
	data.Set("client_secret", s.cfg.TiktokClientSecret)
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", decryptedRefreshToken)

	req, err := http.NewRequestWithContext(ctx, "POST", tiktokTokenURL, bytes.NewBufferString(data.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		slog.Info("TikTok token endpoint returned non-200 status")
		return errors.New("TikTok token endpoint returned non-200 status")
	}

	var tokenResponse transfer.TiktokTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		slog.Info(err.Error())
		return err
	}

	expiresAt := time.Now().Add(time.Second * time.Duration(tokenResponse.ExpiresIn))

	encryptedAccessToken, err := utils.Encrypt([]byte(tokenResponse.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	encryptedRefreshToken, err := utils.Encrypt([]byte(tokenResponse.RefreshToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	socialAccount := models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedRefreshToken,
		TokenExpiresAt: expiresAt,
	}

	err = s.sa.SetToken(ctx, userID, accessToken, &socialAccount)
	if err != nil {
		return err
	}

	return nil
}

// PostContent publishes the resolved content to TikTok. A single media URL is
// posted as a video, multiple URLs as a photo post. Returns the publish ID.
func (s *tiktokService) PostContent(ctx context.Context, account *models.SocialAccount, content *PublishContent) (string, error) {
	if len(content.MediaURLs) == 0 {
		return "", apperr.Fatal(account.ID, errors.New("tiktok post has no media"))
	}

	decryptedAccessToken, err := utils.Decrypt(account.AccessToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return "", apperr.Fatal(account.ID, err)
	}

	if len(content.MediaURLs) > 1 {
		return s.postPhotos(ctx, account, content, decryptedAccessToken)
	}
	return s.postVideo(ctx, account, content, decryptedAccessToken)
}

func (s *tiktokService) postVideo(ctx context.Context, account *models.SocialAccount, content *PublishContent, accessToken string) (string, error) {
	postInfo := transfer.VideoPostInfo{
		Title:                 content.Caption,
		PrivacyLevel:          "PUBLIC_TO_EVERYONE",
		DisableDuet:           false,
		DisableComment:        false,
		DisableStitch:         false,
		VideoCoverTimestampMs: 1000,
	}

	sourceInfo := transfer.VideoSourceInfo{
		Source:   "PULL_FROM_URL",
		VideoURL: content.MediaURLs[0],
	}

	videoUploadRequest := transfer.VideoUploadRequest{
		PostInfo:   postInfo,
		SourceInfo: sourceInfo,
	}

	jsonData, err := json.Marshal(videoUploadRequest)
	if err != nil {
		return "", apperr.Fatal(account.ID, err)
	}

	uploadURL := "https://open.tiktokapis.com/v2/post/publish/video/init/"
	return s.sendPublishRequest(ctx, account, uploadURL, jsonData, accessToken)
}

func (s *tiktokService) postPhotos(ctx context.Context, account *models.SocialAccount, content *PublishContent, accessToken string) (string, error) {
	postInfo := transfer.PhotoPostInfo{
		Title:                content.Caption,
		PrivacyLevel:         "PUBLIC_TO_EVERYONE",
		AutoAddMusic:         true,
		DisableComment:       false,
		BrandContentToggle:   false,
		Brand_Organic_Toggle: false,
	}

	sourceInfo := transfer.PhotoSourceInfo{
		Source:          "PULL_FROM_URL",
		PhotoCoverIndex: 1,
		PhotoImages:     content.MediaURLs,
	}

	photoUploadRequest := transfer.PhotUploadRequest{
		PostInfo:   postInfo,
		SourceInfo: sourceInfo,
		PostMode:   "DIRECT_POST",
		MediaType:  "PHOTO",
	}

	jsonData, err := json.Marshal(photoUploadRequest)
	if err != nil {
		return "", apperr.Fatal(account.ID, err)
	}

	uploadURL := "https://open.tiktokapis.com/v2/post/publish/content/init/"
	return s.sendPublishRequest(ctx, account, uploadURL, jsonData, accessToken)
}

func (s *tiktokService) sendPublishRequest(ctx context.Context, account *models.SocialAccount, uploadURL string, jsonData []byte, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", uploadURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", apperr.Fatal(account.ID, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", apperr.Retryable(account.ID, err)
	}
	defer resp.Body.Close()

	var result transfer.TikTokUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", apperr.Retryable(account.ID, err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("tiktok publish failed: %s", result.Error.Message)
		slog.Info(err.Error())
		return "", classifyStatus(account.ID, resp.StatusCode, err)
	}

	return result.Data.PublishID, nil
}

func RevokeTiktokAccess(openID, accessToken string) error {
	urlRevoke := "https://open-api.tiktok.com/oauth/revoke/"
	params := url.Values{}
	params.Add("open_id", openID)
	params.Add("access_token", accessToken)

	req, err := http.NewRequest("POST", urlRevoke, strings.NewReader(params.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result transfer.TiktokRevokeData
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to revoke token: %s", result.Description)
	}
	return nil
}
