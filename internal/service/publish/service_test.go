package publish

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"uk.co.dudmesh.replybot/internal/model"
	"uk.co.dudmesh.replybot/internal/service/credentials"
	"uk.co.dudmesh.replybot/internal/store"
	"uk.co.dudmesh.replybot/pkg/crypt"
	"uk.co.dudmesh.replybot/pkg/platform"
)

type fakePlatform struct {
	server     *httptest.Server
	calls      int32
	publishes  int32
	identity   int
	identityMs string
	publish    int
	published  string
	mu         sync.Mutex
	delay      time.Duration
}

func newFakePlatform(t *testing.T) *fakePlatform {
	f := &fakePlatform{identity: http.StatusOK, publish: http.StatusOK}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.calls, 1)
		time.Sleep(f.delay)
		switch r.URL.Path {
		case "/me":
			w.WriteHeader(f.identity)
			if f.identity != http.StatusOK {
				fmt.Fprintf(w, `{"error":{"message":%q,"code":190}}`, f.identityMs)
				return
			}
			w.Write([]byte(`{"id":"ext-user","username":"acme"}`))
		case "/me/threads":
			r.ParseForm()
			f.mu.Lock()
			f.published = r.PostForm.Get("text")
			f.mu.Unlock()
			w.Write([]byte(`{"id":"container"}`))
		case "/me/threads_publish":
			n := atomic.AddInt32(&f.publishes, 1)
			w.WriteHeader(f.publish)
			if f.publish != http.StatusOK {
				w.Write([]byte(`{}`))
				return
			}
			fmt.Fprintf(w, `{"id":"ext-post-%d"}`, n)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

type fixture struct {
	store    *store.Store
	platform *fakePlatform
	service  *service
	vault    *crypt.Vault
}

func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s, err := store.Open(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	vault, err := crypt.NewVault("publish-test-secret", true)
	if err != nil {
		t.Fatalf("creating vault: %v", err)
	}
	sealed, _ := vault.Seal("long-lived-token")
	if _, err := s.UpsertAccount(ctx, &model.Account{ID: "acct", WorkspaceID: "ws", ExternalUserID: "ext-user", Username: "acme", Token: sealed, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("creating account: %v", err)
	}

	fake := newFakePlatform(t)
	client := platform.New(platform.Config{BaseURL: fake.server.URL})
	svc := New(s, s, credentials.New(vault, client, s), client)

	return &fixture{s, fake, svc, vault}
}

func (f *fixture) post(t *testing.T, id string, content string, status model.PostStatus) {
	err := f.store.CreatePost(context.Background(), &model.Post{
		ID: model.PostID(id), WorkspaceID: "ws", AccountID: "acct", Content: content, Status: status, CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("creating post: %v", err)
	}
}

func TestPublishSuccess(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	f.post(t, "p1", "Hello world", model.PostStatusDraft)

	post, err := f.service.Publish(context.Background(), "p1", TriggerManual)
	assert.Nil(err)
	assert.Equal(model.PostStatusPublished, post.Status)
	assert.Equal("ext-post-1", *post.ExternalID)
	assert.NotNil(post.PublishedAt)
	assert.Nil(post.ErrorMessage)
	assert.Equal("Hello world", f.platform.published)
}

func TestPublishAlreadyPublishedIsUntouched(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	f.post(t, "p1", "Hello", model.PostStatusDraft)

	_, err := f.service.Publish(context.Background(), "p1", TriggerManual)
	assert.Nil(err)

	before, _ := f.store.FetchPost(context.Background(), "p1")
	calls := atomic.LoadInt32(&f.platform.calls)

	post, err := f.service.Publish(context.Background(), "p1", TriggerManual)
	assert.ErrorIs(err, model.ErrorConflict)
	assert.Equal(before, post)

	after, _ := f.store.FetchPost(context.Background(), "p1")
	assert.Equal(before, after)
	assert.Equal(calls, atomic.LoadInt32(&f.platform.calls))
}

func TestPublishEmptyContent(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	f.post(t, "p1", "  \n\t ", model.PostStatusDraft)

	post, err := f.service.Publish(context.Background(), "p1", TriggerManual)
	assert.ErrorIs(err, model.ErrorEmptyContent)
	assert.Equal(MessageEmptyContent, err.Error())
	assert.Equal(model.PostStatusFailed, post.Status)
	assert.Equal(MessageEmptyContent, *post.ErrorMessage)
	assert.Equal(int32(0), atomic.LoadInt32(&f.platform.calls))
}

func TestPublishInvalidToken(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	f.platform.identity = http.StatusBadRequest
	f.platform.identityMs = "Error validating access token: Session has expired"
	f.post(t, "p1", "Hello", model.PostStatusScheduled)

	post, err := f.service.Publish(context.Background(), "p1", TriggerManual)
	assert.NotNil(err)
	assert.Equal("Error validating access token: Session has expired", err.Error())
	assert.Equal(model.PostStatusFailed, post.Status)
	assert.Equal(err.Error(), *post.ErrorMessage)
	assert.Equal(int32(0), atomic.LoadInt32(&f.platform.publishes))
}

func TestPublishCredentialError(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)

	other, _ := crypt.NewVault("a different key", true)
	sealed, _ := other.Seal("token")
	_, err := f.store.UpsertAccount(context.Background(), &model.Account{ID: "x", WorkspaceID: "ws", ExternalUserID: "ext-user", Username: "acme", Token: sealed, CreatedAt: time.Now().UTC()})
	assert.Nil(err)
	f.post(t, "p1", "Hello", model.PostStatusDraft)

	post, err := f.service.Publish(context.Background(), "p1", TriggerManual)
	assert.Equal(MessageCredentialError, err.Error())
	assert.Equal(model.PostStatusFailed, post.Status)
	assert.Equal(MessageCredentialError, *post.ErrorMessage)
	assert.NotContains(*post.ErrorMessage, sealed)
	assert.Equal(int32(0), atomic.LoadInt32(&f.platform.calls))
}

func TestPublishRetryAfterFailure(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	f.platform.publish = http.StatusBadRequest
	f.post(t, "p1", "Hello", model.PostStatusDraft)

	post, err := f.service.Publish(context.Background(), "p1", TriggerManual)
	assert.NotNil(err)
	assert.Equal(model.PostStatusFailed, post.Status)
	assert.Equal("platform request failed", *post.ErrorMessage)

	f.platform.publish = http.StatusOK
	post, err = f.service.Publish(context.Background(), "p1", TriggerManual)
	assert.Nil(err)
	assert.Equal(model.PostStatusPublished, post.Status)
	assert.Nil(post.ErrorMessage)
}

func TestPublishTruncatesStoredContent(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	f.post(t, "p1", strings.Repeat("a", platform.MaxTextLength+100), model.PostStatusDraft)

	post, err := f.service.Publish(context.Background(), "p1", TriggerManual)
	assert.Nil(err)
	assert.Len(post.Content, platform.MaxTextLength)
	assert.Equal(post.Content, f.platform.published)
}

func TestPublishUnavailable(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	f.platform.delay = 100 * time.Millisecond
	f.service.timeout = 20 * time.Millisecond
	f.post(t, "p1", "Hello", model.PostStatusScheduled)

	t.Run("automatic leaves the post for a retry", func(t *testing.T) {
		post, err := f.service.Publish(context.Background(), "p1", TriggerAutomatic)
		assert.ErrorIs(err, model.ErrorUnavailable)
		assert.Equal(model.PostStatusScheduled, post.Status)

		stored, _ := f.store.FetchPost(context.Background(), "p1")
		assert.Equal(model.PostStatusScheduled, stored.Status)
		assert.Nil(stored.AttemptID)
	})

	t.Run("manual marks the post failed", func(t *testing.T) {
		post, err := f.service.Publish(context.Background(), "p1", TriggerManual)
		assert.NotNil(err)
		assert.Equal(model.PostStatusFailed, post.Status)
		assert.Equal(MessageUnavailable, *post.ErrorMessage)
	})
}

func TestConcurrentPublishSucceedsOnce(t *testing.T) {
	assert := assert.New(t)
	f := newFixture(t)
	f.platform.delay = 10 * time.Millisecond
	f.post(t, "p1", "Hello", model.PostStatusDraft)

	var wg sync.WaitGroup
	var successes int32
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.service.Publish(context.Background(), "p1", TriggerManual); err == nil {
				atomic.AddInt32(&successes, 1)
			} else {
				assert.ErrorIs(err, model.ErrorConflict)
			}
		}()
	}
	wg.Wait()

	assert.Equal(int32(1), successes)
	assert.Equal(int32(1), atomic.LoadInt32(&f.platform.publishes))
	post, _ := f.store.FetchPost(context.Background(), "p1")
	assert.Equal(model.PostStatusPublished, post.Status)
}

func TestPublishUnknownPost(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.Publish(context.Background(), "missing", TriggerManual)
	assert.ErrorIs(t, err, model.ErrorNotFound)
}
