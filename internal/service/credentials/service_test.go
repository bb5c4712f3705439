package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"uk.co.dudmesh.replybot/internal/model"
	"uk.co.dudmesh.replybot/pkg/crypt"
)

type fakePlatform struct {
	refreshed int
}

func (f *fakePlatform) ExchangeCode(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", model.ErrorInvalidInput
	}
	return "short-" + code, nil
}

func (f *fakePlatform) ExchangeForLongLivedToken(ctx context.Context, shortToken string) (*model.TokenInfo, error) {
	return &model.TokenInfo{AccessToken: "long-" + shortToken, ExpiresAt: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)}, nil
}

func (f *fakePlatform) RefreshToken(ctx context.Context, token string) (*model.TokenInfo, error) {
	f.refreshed++
	return &model.TokenInfo{AccessToken: "refreshed-" + token, ExpiresAt: time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC)}, nil
}

func (f *fakePlatform) GetIdentity(ctx context.Context, token string, fields []string) (*model.Identity, error) {
	return &model.Identity{ID: "ext-1", Username: "acme"}, nil
}

type accountStore struct {
	accounts map[model.AccountID]*model.Account
	updates  int
}

func (s *accountStore) UpsertAccount(ctx context.Context, account *model.Account) (*model.Account, error) {
	for _, existing := range s.accounts {
		if existing.ExternalUserID == account.ExternalUserID {
			existing.Token = account.Token
			existing.TokenExpiresAt = account.TokenExpiresAt
			return existing, nil
		}
	}
	s.accounts[account.ID] = account
	return account, nil
}

func (s *accountStore) UpdateAccountToken(ctx context.Context, id model.AccountID, token string, expiresAt *time.Time) error {
	account, ok := s.accounts[id]
	if !ok {
		return model.ErrorNotFound
	}
	s.updates++
	account.Token = token
	if expiresAt != nil {
		account.TokenExpiresAt = expiresAt
	}
	return nil
}

func newService(t *testing.T) (*service, *crypt.Vault, *accountStore, *fakePlatform) {
	vault, err := crypt.NewVault("credentials-test", true)
	if err != nil {
		t.Fatalf("creating vault: %v", err)
	}
	store := &accountStore{accounts: map[model.AccountID]*model.Account{}}
	platform := &fakePlatform{}
	svc := New(vault, platform, store)
	svc.now = func() time.Time { return time.Date(2026, 11, 28, 0, 0, 0, 0, time.UTC) }
	return svc, vault, store, platform
}

func TestConnect(t *testing.T) {
	assert := assert.New(t)
	svc, vault, store, _ := newService(t)

	account, err := svc.Connect(context.Background(), "ws", "code")
	assert.Nil(err)
	assert.Equal("ext-1", account.ExternalUserID)
	assert.Equal("acme", account.Username)
	assert.NotContains(account.Token, "long-short-code")

	token, legacy, err := vault.Open(account.Token)
	assert.Nil(err)
	assert.False(legacy)
	assert.Equal("long-short-code", token)

	again, err := svc.Connect(context.Background(), "ws", "other")
	assert.Nil(err)
	assert.Equal(account.ID, again.ID)
	assert.Len(store.accounts, 1)
}

func TestTokenResealsLegacyCredentials(t *testing.T) {
	assert := assert.New(t)
	svc, vault, store, _ := newService(t)

	account := &model.Account{ID: "a1", ExternalUserID: "ext-1", Token: "legacy-plaintext"}
	store.accounts[account.ID] = account

	token, err := svc.Token(context.Background(), account)
	assert.Nil(err)
	assert.Equal("legacy-plaintext", token)
	assert.Equal(1, store.updates)

	_, legacy, err := vault.Open(store.accounts["a1"].Token)
	assert.Nil(err)
	assert.False(legacy)

	token, err = svc.Token(context.Background(), account)
	assert.Nil(err)
	assert.Equal("legacy-plaintext", token)
	assert.Equal(1, store.updates)
}

func TestTokenRejectsTamperedCredential(t *testing.T) {
	svc, _, _, _ := newService(t)
	_, err := svc.Token(context.Background(), &model.Account{ID: "a1", Token: `{"cipher":"AAAA","iv":"AAAAAAAAAAAAAAAA","tag":"AAAAAAAAAAAAAAAAAAAAAA=="}`})
	assert.ErrorIs(t, err, model.ErrorCrypto)
}

func TestRefresh(t *testing.T) {
	assert := assert.New(t)
	svc, vault, store, platform := newService(t)

	far := time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC)
	sealed, _ := vault.Seal("current")
	account := &model.Account{ID: "a1", Token: sealed, TokenExpiresAt: &far}
	store.accounts[account.ID] = account

	refreshed, err := svc.Refresh(context.Background(), account)
	assert.Nil(err)
	assert.False(refreshed)
	assert.Equal(0, platform.refreshed)

	soon := time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)
	account.TokenExpiresAt = &soon
	refreshed, err = svc.Refresh(context.Background(), account)
	assert.Nil(err)
	assert.True(refreshed)
	assert.Equal(time.Date(2027, 2, 1, 0, 0, 0, 0, time.UTC), *account.TokenExpiresAt)

	token, _, err := vault.Open(account.Token)
	assert.Nil(err)
	assert.Equal("refreshed-current", token)
}
