package credentials

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	"uk.co.dudmesh.replybot/internal/model"
)

// RefreshWindow is how close to expiry a long lived token gets refreshed.
const RefreshWindow = 7 * 24 * time.Hour

type Vault interface {
	Seal(plaintext string) (string, error)
	Open(record string) (string, bool, error)
	NeedsReseal(legacy bool) bool
}

type Platform interface {
	ExchangeCode(ctx context.Context, code string) (string, error)
	ExchangeForLongLivedToken(ctx context.Context, shortToken string) (*model.TokenInfo, error)
	RefreshToken(ctx context.Context, token string) (*model.TokenInfo, error)
	GetIdentity(ctx context.Context, token string, fields []string) (*model.Identity, error)
}

type AccountStore interface {
	UpsertAccount(ctx context.Context, account *model.Account) (*model.Account, error)
	UpdateAccountToken(ctx context.Context, id model.AccountID, token string, expiresAt *time.Time) error
}

type service struct {
	vault    Vault
	platform Platform
	accounts AccountStore
	now      func() time.Time
}

func New(vault Vault, platform Platform, accounts AccountStore) *service {
	return &service{vault, platform, accounts, time.Now}
}

// Connect completes the OAuth flow for a workspace and stores the sealed long
// lived token against the external account.
func (s *service) Connect(ctx context.Context, workspaceID model.WorkspaceID, code string) (*model.Account, error) {
	shortToken, err := s.platform.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	info, err := s.platform.ExchangeForLongLivedToken(ctx, shortToken)
	if err != nil {
		return nil, err
	}

	identity, err := s.platform.GetIdentity(ctx, info.AccessToken, nil)
	if err != nil {
		return nil, err
	}

	sealed, err := s.vault.Seal(info.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("sealing token: %w", err)
	}

	expiresAt := info.ExpiresAt
	account, err := s.accounts.UpsertAccount(ctx, &model.Account{
		ID:             model.AccountID(model.CreateID()),
		WorkspaceID:    workspaceID,
		ExternalUserID: identity.ID,
		Username:       identity.Username,
		Token:          sealed,
		TokenExpiresAt: &expiresAt,
		CreatedAt:      s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("storing account: %w", err)
	}

	log.Infof("credentials: connected account %s (@%s) to workspace %s", account.ID, account.Username, workspaceID)
	return account, nil
}

// Token opens the account's stored credential. Legacy plaintext records are
// rewritten sealed once a key is configured.
func (s *service) Token(ctx context.Context, account *model.Account) (string, error) {
	token, legacy, err := s.vault.Open(account.Token)
	if err != nil {
		return "", fmt.Errorf("opening credential: %w", err)
	}

	if s.vault.NeedsReseal(legacy) {
		sealed, err := s.vault.Seal(token)
		if err == nil {
			err = s.accounts.UpdateAccountToken(ctx, account.ID, sealed, nil)
		}
		if err != nil {
			log.Warnf("credentials: resealing legacy credential for account %s: %v", account.ID, err)
		} else {
			account.Token = sealed
			log.Infof("credentials: resealed legacy credential for account %s", account.ID)
		}
	}

	return token, nil
}

// Refresh renews the account's token when it expires within RefreshWindow.
func (s *service) Refresh(ctx context.Context, account *model.Account) (bool, error) {
	if account.TokenExpiresAt == nil || account.TokenExpiresAt.After(s.now().Add(RefreshWindow)) {
		return false, nil
	}

	token, err := s.Token(ctx, account)
	if err != nil {
		return false, err
	}

	info, err := s.platform.RefreshToken(ctx, token)
	if err != nil {
		return false, err
	}

	sealed, err := s.vault.Seal(info.AccessToken)
	if err != nil {
		return false, fmt.Errorf("sealing token: %w", err)
	}
	expiresAt := info.ExpiresAt
	if err := s.accounts.UpdateAccountToken(ctx, account.ID, sealed, &expiresAt); err != nil {
		return false, err
	}

	account.Token = sealed
	account.TokenExpiresAt = &expiresAt
	return true, nil
}
