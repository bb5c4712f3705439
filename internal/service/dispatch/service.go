package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	"uk.co.dudmesh.replybot/internal/model"
	"uk.co.dudmesh.replybot/internal/webhook"
	"uk.co.dudmesh.replybot/pkg/platform"
)

const DefaultTimeout = 10 * time.Second

type AccountStore interface {
	FetchAccountByExternalID(ctx context.Context, externalUserID string) (*model.Account, error)
}

type JobStore interface {
	EnqueueReply(ctx context.Context, job *model.ReplyJob) error
}

type Credentials interface {
	Token(ctx context.Context, account *model.Account) (string, error)
}

type Replier interface {
	ReplyToComment(ctx context.Context, token string, commentID string, text string) (*platform.PublishResult, error)
}

// service sends replies straight away, or queues them for the scheduler
// when the matched rule asks for a delay.
type service struct {
	accounts    AccountStore
	jobs        JobStore
	credentials Credentials
	replier     Replier
	now         func() time.Time
}

func New(accounts AccountStore, jobs JobStore, credentials Credentials, replier Replier) *service {
	return &service{accounts, jobs, credentials, replier, time.Now}
}

func (s *service) Dispatch(ctx context.Context, reply webhook.Reply) error {
	account, err := s.accounts.FetchAccountByExternalID(ctx, reply.Comment.RecipientID)
	if err != nil {
		return fmt.Errorf("finding account for %s: %w", reply.Comment.RecipientID, err)
	}
	if account.WorkspaceID != reply.WorkspaceID {
		return fmt.Errorf("%w: account %s is not in workspace %s", model.ErrorUnauthorized, account.ID, reply.WorkspaceID)
	}
	if reply.Comment.AuthorID != "" && reply.Comment.AuthorID == account.ExternalUserID {
		log.Debugf("dispatch: not replying to own comment %s", reply.Comment.ID)
		return nil
	}

	if reply.Delay > 0 {
		now := s.now().UTC()
		return s.jobs.EnqueueReply(ctx, &model.ReplyJob{
			ID:          model.CreateID(),
			WorkspaceID: reply.WorkspaceID,
			RecipientID: reply.Comment.RecipientID,
			CommentID:   reply.Comment.ID,
			RuleID:      reply.RuleID,
			Text:        reply.Text,
			DueAt:       now.Add(reply.Delay),
			CreatedAt:   now,
		})
	}

	token, err := s.credentials.Token(ctx, account)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultTimeout)
	defer cancel()

	result, err := s.replier.ReplyToComment(ctx, token, reply.Comment.ID, reply.Text)
	if err != nil {
		return fmt.Errorf("replying to comment %s: %w", reply.Comment.ID, err)
	}
	log.Infof("dispatch: replied to comment %s as %s", reply.Comment.ID, result.ExternalID)
	return nil
}
