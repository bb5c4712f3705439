package publish

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/labstack/gommon/log"
	"uk.co.dudmesh.replybot/internal/metrics"
	"uk.co.dudmesh.replybot/internal/model"
	"uk.co.dudmesh.replybot/pkg/crypt"
	"uk.co.dudmesh.replybot/pkg/platform"
)

const (
	DefaultTimeout  = 10 * time.Second
	DefaultClaimTTL = 2 * time.Minute

	MessageEmptyContent    = "empty content"
	MessageCredentialError = "credential error"
	MessageAccountMissing  = "account not found"
	MessageInvalidToken    = "invalid or expired access token"
	MessageUnavailable     = "platform unavailable"
	MessageGeneric         = "publish failed"
)

type Trigger int

const (
	// TriggerManual is a user initiated publish or retry.
	TriggerManual Trigger = iota
	// TriggerAutomatic is a scheduled publish. Transient platform failures
	// leave the post untouched so the scheduler can try again.
	TriggerAutomatic
)

// PostStore is the persistence boundary. ClaimPost and FinishPost must be
// conditional updates so that at most one attempt per post can finish, and
// never once the post is published.
type PostStore interface {
	FetchPost(ctx context.Context, id model.PostID) (*model.Post, error)
	ClaimPost(ctx context.Context, id model.PostID, attemptID string, now time.Time, staleBefore time.Time) (bool, error)
	FinishPost(ctx context.Context, id model.PostID, attemptID string, transition *model.PostTransition, now time.Time) (bool, error)
	ReleasePost(ctx context.Context, id model.PostID, attemptID string) error
}

type AccountStore interface {
	FetchAccount(ctx context.Context, id model.AccountID) (*model.Account, error)
}

type Credentials interface {
	Token(ctx context.Context, account *model.Account) (string, error)
}

type Platform interface {
	GetIdentity(ctx context.Context, token string, fields []string) (*model.Identity, error)
	PublishText(ctx context.Context, token string, text string) (*platform.PublishResult, error)
}

// Error is a failed publish. Message is exactly what was stored on the post.
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

type service struct {
	posts       PostStore
	accounts    AccountStore
	credentials Credentials
	platform    Platform
	now         func() time.Time
	timeout     time.Duration
	claimTTL    time.Duration
}

func New(posts PostStore, accounts AccountStore, credentials Credentials, platform Platform) *service {
	return &service{
		posts:       posts,
		accounts:    accounts,
		credentials: credentials,
		platform:    platform,
		now:         time.Now,
		timeout:     DefaultTimeout,
		claimTTL:    DefaultClaimTTL,
	}
}

// Publish runs one publish attempt for the post. Published posts are
// rejected with model.ErrorConflict without being touched.
func (s *service) Publish(ctx context.Context, id model.PostID, trigger Trigger) (*model.Post, error) {
	post, err := s.posts.FetchPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if post.Status == model.PostStatusPublished {
		return post, model.ErrorPostAlreadyPublished
	}

	attemptID := model.CreateID()
	now := s.now().UTC()
	claimed, err := s.posts.ClaimPost(ctx, id, attemptID, now, now.Add(-s.claimTTL))
	if err != nil {
		return nil, err
	}
	if !claimed {
		return post, model.ErrorPublishInProgress
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	content, externalID, attemptErr := s.attempt(attemptCtx, post)

	if attemptErr != nil && trigger == TriggerAutomatic && isTransient(attemptErr) {
		if err := s.posts.ReleasePost(ctx, id, attemptID); err != nil {
			log.Errorf("publish: releasing post %s: %v", id, err)
		}
		log.Warnf("publish: post %s deferred: %v", id, attemptErr)
		return post, fmt.Errorf("%w: %s", model.ErrorUnavailable, sanitize(attemptErr))
	}

	transition := &model.PostTransition{Content: content}
	var publishErr *Error
	if attemptErr == nil {
		publishedAt := s.now().UTC()
		transition.Status = model.PostStatusPublished
		transition.ExternalID = &externalID
		transition.PublishedAt = &publishedAt
	} else {
		publishErr = &Error{Message: sanitize(attemptErr), Err: attemptErr}
		transition.Status = model.PostStatusFailed
		transition.ErrorMessage = &publishErr.Message
		log.Errorf("publish: post %s failed: %v", id, attemptErr)
	}

	finished, err := s.posts.FinishPost(ctx, id, attemptID, transition, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !finished {
		return post, model.ErrorPublishInProgress
	}
	metrics.PublishOutcomes.WithLabelValues(string(transition.Status)).Inc()

	updated, err := s.posts.FetchPost(ctx, id)
	if err != nil {
		return nil, err
	}
	if publishErr != nil {
		return updated, publishErr
	}
	return updated, nil
}

// attempt returns the content as sent and the external id. Content is only
// changed by truncation to the platform limit.
func (s *service) attempt(ctx context.Context, post *model.Post) (string, string, error) {
	content := post.Content

	account, err := s.accounts.FetchAccount(ctx, post.AccountID)
	if err != nil {
		return content, "", fmt.Errorf("loading account: %w", err)
	}

	token, err := s.credentials.Token(ctx, account)
	if err != nil {
		return content, "", err
	}

	if strings.TrimSpace(content) == "" {
		return content, "", model.ErrorEmptyContent
	}

	if _, err := s.platform.GetIdentity(ctx, token, nil); err != nil {
		return content, "", fmt.Errorf("validating token: %w", err)
	}

	content = platform.Truncate(content)
	result, err := s.platform.PublishText(ctx, token, content)
	if err != nil {
		return content, "", err
	}
	return content, result.ExternalID, nil
}

func isTransient(err error) bool {
	return errors.Is(err, model.ErrorUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

// sanitize turns an attempt error into a message safe to store and show.
func sanitize(err error) string {
	var platformErr *platform.Error
	switch {
	case errors.Is(err, model.ErrorEmptyContent):
		return MessageEmptyContent
	case crypt.IsCryptoError(err):
		return MessageCredentialError
	case errors.Is(err, model.ErrorNotFound):
		return MessageAccountMissing
	case errors.As(err, &platformErr) && platformErr.Message != "":
		return platformErr.Message
	case errors.Is(err, model.ErrorUnauthenticated):
		return MessageInvalidToken
	case isTransient(err):
		return MessageUnavailable
	}
	return MessageGeneric
}
