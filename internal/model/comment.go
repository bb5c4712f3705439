package model

import "time"

// CommentEvent is a normalized inbound comment. RecipientID is the external
// account the comment was delivered for.
type CommentEvent struct {
	ID             string    `json:"id"`
	RecipientID    string    `json:"recipientId"`
	Text           string    `json:"text"`
	AuthorID       string    `json:"authorId"`
	AuthorUsername string    `json:"authorUsername"`
	MediaID        string    `json:"mediaId"`
	ParentID       string    `json:"parentId,omitempty"`
	ReceivedAt     time.Time `json:"receivedAt"`
}

// ReplyJob is a reply waiting for its rule's delay to elapse. Jobs are
// drained by the external scheduler.
type ReplyJob struct {
	ID          string      `db:"id" json:"id"`
	WorkspaceID WorkspaceID `db:"workspace_id" json:"workspaceId"`
	RecipientID string      `db:"recipient_id" json:"recipientId"`
	CommentID   string      `db:"comment_id" json:"commentId"`
	RuleID      *RuleID     `db:"rule_id" json:"ruleId,omitempty"`
	Text        string      `db:"text" json:"text"`
	DueAt       time.Time   `db:"due_at" json:"dueAt"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
}
