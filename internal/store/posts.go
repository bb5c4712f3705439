package store

import (
	"context"
	"fmt"
	"time"

	"uk.co.dudmesh.replybot/internal/model"
)

func (s *Store) FetchPost(ctx context.Context, id model.PostID) (*model.Post, error) {
	post := &model.Post{}
	if err := s.get(ctx, post, `select * from posts where id = ?`, id); err != nil {
		return nil, fmt.Errorf("fetching post: %w", err)
	}
	return post, nil
}

func (s *Store) CreatePost(ctx context.Context, post *model.Post) error {
	_, err := s.db.NamedExecContext(ctx, `insert into posts
		(id, workspace_id, account_id, content, status, scheduled_for, created_at)
		values(:id, :workspace_id, :account_id, :content, :status, :scheduled_for, :created_at)`, post)
	if err != nil {
		return fmt.Errorf("inserting post: %w", err)
	}
	return nil
}

// ClaimPost reserves the post for one publish attempt. It fails when the post
// is published or another attempt holds a claim newer than staleBefore.
func (s *Store) ClaimPost(ctx context.Context, id model.PostID, attemptID string, now time.Time, staleBefore time.Time) (bool, error) {
	rows, err := s.exec(ctx, `update posts set attempt_id = ?, attempt_at = ?
		where id = ? and status <> ? and (attempt_id is null or attempt_at < ?)`,
		attemptID, now, id, model.PostStatusPublished, staleBefore)
	if err != nil {
		return false, fmt.Errorf("claiming post: %w", err)
	}
	return rows == 1, nil
}

// FinishPost applies the outcome of the attempt holding the claim.
func (s *Store) FinishPost(ctx context.Context, id model.PostID, attemptID string, transition *model.PostTransition, now time.Time) (bool, error) {
	rows, err := s.exec(ctx, `update posts set
		content = ?, status = ?, external_id = ?, error_message = ?, published_at = ?,
		attempt_id = null, attempt_at = null, updated_at = ?
		where id = ? and attempt_id = ? and status <> ?`,
		transition.Content, transition.Status, transition.ExternalID, transition.ErrorMessage, transition.PublishedAt,
		now, id, attemptID, model.PostStatusPublished)
	if err != nil {
		return false, fmt.Errorf("finishing post: %w", err)
	}
	return rows == 1, nil
}

// ReleasePost drops a claim without changing the post.
func (s *Store) ReleasePost(ctx context.Context, id model.PostID, attemptID string) error {
	if _, err := s.exec(ctx, `update posts set attempt_id = null, attempt_at = null where id = ? and attempt_id = ?`, id, attemptID); err != nil {
		return fmt.Errorf("releasing post: %w", err)
	}
	return nil
}
