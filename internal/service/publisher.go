package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/maheshrc27/autopost/internal/apperr"
	"github.com/maheshrc27/autopost/internal/models"
)

// PublishContent is the resolved payload handed to a platform publisher:
// pooled selection and templating have already happened by the time it is
// built.
type PublishContent struct {
	ContentType string
	Caption     string
	Title       string
	MediaURLs   []string
}

type PublishResult struct {
	PlatformPostID string
}

// Publisher performs the actual platform call for a single account. Failures
// must come back as *apperr.PublishError so the processor can tell retryable
// from fatal.
type Publisher interface {
	Publish(ctx context.Context, account *models.SocialAccount, content *PublishContent) (*PublishResult, error)
}

type platformPublisher struct {
	yt YoutubeService
	tt TiktokService
	ig InstagramService
}

func NewPlatformPublisher(yt YoutubeService, tt TiktokService, ig InstagramService) Publisher {
	return &platformPublisher{yt: yt, tt: tt, ig: ig}
}

func (p *platformPublisher) Publish(ctx context.Context, account *models.SocialAccount, content *PublishContent) (*PublishResult, error) {
	var postID string
	var err error

	switch account.Platform {
	case "youtube":
		postID, err = p.yt.PostVideo(ctx, account, content)
	case "tiktok":
		postID, err = p.tt.PostContent(ctx, account, content)
	case "instagram":
		postID, err = p.ig.PostContent(ctx, account, content)
	default:
		return nil, apperr.Fatal(account.ID, fmt.Errorf("unsupported platform %q", account.Platform))
	}

	if err != nil {
		return nil, err
	}
	return &PublishResult{PlatformPostID: postID}, nil
}

// classifyStatus maps a platform HTTP status onto the retry policy: rate
// limits and server-side failures are worth another attempt, everything else
// is final.
func classifyStatus(accountID int64, status int, err error) error {
	if status == http.StatusTooManyRequests || status >= 500 {
		return apperr.Retryable(accountID, err)
	}
	return apperr.Fatal(accountID, err)
}
