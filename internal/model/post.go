package model

import "time"

type PostID string
type AccountID string

type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusScheduled PostStatus = "scheduled"
	PostStatusPublished PostStatus = "published"
	PostStatusFailed    PostStatus = "failed"
)

type Post struct {
	ID           PostID      `db:"id" json:"id"`
	WorkspaceID  WorkspaceID `db:"workspace_id" json:"workspaceId"`
	AccountID    AccountID   `db:"account_id" json:"accountId"`
	Content      string      `db:"content" json:"content"`
	Status       PostStatus  `db:"status" json:"status"`
	ExternalID   *string     `db:"external_id" json:"externalId,omitempty"`
	ErrorMessage *string     `db:"error_message" json:"errorMessage,omitempty"`
	ScheduledFor *time.Time  `db:"scheduled_for" json:"scheduledFor,omitempty"`
	AttemptID    *string     `db:"attempt_id" json:"-"`
	AttemptAt    *time.Time  `db:"attempt_at" json:"-"`
	PublishedAt  *time.Time  `db:"published_at" json:"publishedAt,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    *time.Time  `db:"updated_at" json:"updatedAt"`
}

// PostTransition is the terminal outcome of one publish attempt.
type PostTransition struct {
	Content      string
	Status       PostStatus
	ExternalID   *string
	ErrorMessage *string
	PublishedAt  *time.Time
}
