package store

import (
	"context"
	"fmt"
	"time"

	"uk.co.dudmesh.replybot/internal/model"
)

func (s *Store) MarkCommentProcessed(ctx context.Context, workspaceID model.WorkspaceID, commentID string) (bool, error) {
	rows, err := s.exec(ctx, `insert into processed_comments (workspace_id, comment_id, processed_at) values (?, ?, ?)
		on conflict do nothing`, workspaceID, commentID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("marking comment processed: %w", err)
	}
	return rows == 1, nil
}

// ForgetComment drops the processed marker of a comment whose reply failed.
func (s *Store) ForgetComment(ctx context.Context, workspaceID model.WorkspaceID, commentID string) error {
	if _, err := s.exec(ctx, `delete from processed_comments where workspace_id = ? and comment_id = ?`, workspaceID, commentID); err != nil {
		return fmt.Errorf("forgetting comment: %w", err)
	}
	return nil
}

func (s *Store) EnqueueReply(ctx context.Context, job *model.ReplyJob) error {
	_, err := s.db.NamedExecContext(ctx, `insert into reply_jobs
		(id, workspace_id, recipient_id, comment_id, rule_id, text, due_at, created_at)
		values(:id, :workspace_id, :recipient_id, :comment_id, :rule_id, :text, :due_at, :created_at)`, job)
	if err != nil {
		return fmt.Errorf("enqueueing reply: %w", err)
	}
	return nil
}

// DueReplies lists the workspace's jobs due at or before now, oldest first.
func (s *Store) DueReplies(ctx context.Context, workspaceID model.WorkspaceID, now time.Time, limit int) ([]model.ReplyJob, error) {
	jobs := []model.ReplyJob{}
	err := s.db.SelectContext(ctx, &jobs, s.db.Rebind(`select * from reply_jobs where workspace_id = ? and due_at <= ? order by due_at, id limit ?`),
		workspaceID, now, limit)
	if err != nil {
		return nil, fmt.Errorf("listing due replies: %w", err)
	}
	return jobs, nil
}

// CompleteReply removes a job once the scheduler has sent it, so it is not
// listed again.
func (s *Store) CompleteReply(ctx context.Context, workspaceID model.WorkspaceID, id string) error {
	if err := s.execOne(ctx, `delete from reply_jobs where workspace_id = ? and id = ?`, workspaceID, id); err != nil {
		return fmt.Errorf("completing reply job: %w", err)
	}
	return nil
}
