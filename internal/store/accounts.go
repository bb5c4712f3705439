package store

import (
	"context"
	"fmt"
	"time"

	"uk.co.dudmesh.replybot/internal/model"
)

func (s *Store) FetchAccount(ctx context.Context, id model.AccountID) (*model.Account, error) {
	account := &model.Account{}
	if err := s.get(ctx, account, `select * from accounts where id = ?`, id); err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}
	return account, nil
}

func (s *Store) FetchAccountByExternalID(ctx context.Context, externalUserID string) (*model.Account, error) {
	account := &model.Account{}
	if err := s.get(ctx, account, `select * from accounts where external_user_id = ?`, externalUserID); err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}
	return account, nil
}

// UpsertAccount keeps a single credential per external account. Reconnecting
// an account replaces its token and moves it to the new workspace.
func (s *Store) UpsertAccount(ctx context.Context, account *model.Account) (*model.Account, error) {
	_, err := s.db.NamedExecContext(ctx, `insert into accounts
		(id, workspace_id, external_user_id, username, token, token_expires_at, created_at)
		values(:id, :workspace_id, :external_user_id, :username, :token, :token_expires_at, :created_at)
		on conflict (external_user_id) do update set
		workspace_id = excluded.workspace_id, username = excluded.username, token = excluded.token,
		token_expires_at = excluded.token_expires_at, updated_at = excluded.created_at`, account)
	if err != nil {
		return nil, fmt.Errorf("upserting account: %w", err)
	}
	return s.FetchAccountByExternalID(ctx, account.ExternalUserID)
}

func (s *Store) UpdateAccountToken(ctx context.Context, id model.AccountID, token string, expiresAt *time.Time) error {
	err := s.execOne(ctx, `update accounts set token = ?, token_expires_at = coalesce(?, token_expires_at), updated_at = ? where id = ?`,
		token, expiresAt, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating account token: %w", err)
	}
	return nil
}
