package model

import "time"

// SealedToken is the at-rest form of an access token.
type SealedToken struct {
	Cipher string `json:"cipher"`
	IV     string `json:"iv"`
	Tag    string `json:"tag"`
}

// Account is a connected external platform account. Token holds the storage
// record: a JSON encoded SealedToken or, for legacy rows, plaintext.
type Account struct {
	ID             AccountID   `db:"id" json:"id"`
	WorkspaceID    WorkspaceID `db:"workspace_id" json:"workspaceId"`
	ExternalUserID string      `db:"external_user_id" json:"externalUserId"`
	Username       string      `db:"username" json:"username"`
	Token          string      `db:"token" json:"-"`
	TokenExpiresAt *time.Time  `db:"token_expires_at" json:"tokenExpiresAt"`
	CreatedAt      time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt      *time.Time  `db:"updated_at" json:"updatedAt"`
}

type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name,omitempty"`
}

type TokenInfo struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}
