package model

import "time"

type WorkspaceID string
type RuleID string
type TemplateID string

type MatchMode string

const (
	MatchModeAny   MatchMode = "any"
	MatchModeAll   MatchMode = "all"
	MatchModeExact MatchMode = "exact"
)

func (m MatchMode) Valid() bool {
	switch m {
	case MatchModeAny, MatchModeAll, MatchModeExact:
		return true
	}
	return false
}

// Rule is a keyword trigger owned by a workspace. Higher Priority wins, ties
// are broken by CreatedAt.
type Rule struct {
	ID              RuleID      `db:"id" json:"id"`
	WorkspaceID     WorkspaceID `db:"workspace_id" json:"workspaceId"`
	Name            string      `db:"name" json:"name"`
	Priority        int         `db:"priority" json:"priority"`
	Active          bool        `db:"active" json:"active"`
	MatchMode       MatchMode   `db:"match_mode" json:"matchMode"`
	Keywords        StringList  `db:"keywords" json:"keywords"`
	ExcludeKeywords StringList  `db:"exclude_keywords" json:"excludeKeywords"`
	ReplyText       string      `db:"reply_text" json:"replyText,omitempty"`
	TemplateID      *TemplateID `db:"template_id" json:"templateId,omitempty"`
	ReplyDelay      int         `db:"reply_delay" json:"replyDelay"`
	CreatedAt       time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt       *time.Time  `db:"updated_at" json:"updatedAt"`
}

type RuleParams struct {
	Name            string      `json:"name"`
	Priority        int         `json:"priority"`
	Active          *bool       `json:"active"`
	MatchMode       MatchMode   `json:"matchMode"`
	Keywords        []string    `json:"keywords"`
	ExcludeKeywords []string    `json:"excludeKeywords"`
	ReplyText       string      `json:"replyText"`
	TemplateID      *TemplateID `json:"templateId"`
	ReplyDelay      int         `json:"replyDelay"`
}

type Template struct {
	ID          TemplateID  `db:"id" json:"id"`
	WorkspaceID WorkspaceID `db:"workspace_id" json:"workspaceId"`
	Name        string      `db:"name" json:"name"`
	Body        string      `db:"body" json:"body"`
	CreatedAt   time.Time   `db:"created_at" json:"createdAt"`
}
