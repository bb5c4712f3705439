package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"uk.co.dudmesh.replybot/internal/model"
)

const (
	DefaultBaseURL = "https://graph.threads.net/v1.0"
	DefaultTimeout = 10 * time.Second
	MaxTextLength  = 500
)

var DefaultIdentityFields = []string{"id", "username"}

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Timeout      time.Duration
}

type Client struct {
	config     Config
	httpClient *http.Client
	now        func() time.Time
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

func New(config Config, opts ...Option) *Client {
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultTimeout
	}
	c := &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type PublishResult struct {
	ExternalID string `json:"id"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// GetIdentity looks up the account that owns token.
func (c *Client) GetIdentity(ctx context.Context, token string, fields []string) (*model.Identity, error) {
	if len(fields) == 0 {
		fields = DefaultIdentityFields
	}
	params := url.Values{"fields": {strings.Join(fields, ",")}}

	identity := &model.Identity{}
	if err := c.do(ctx, http.MethodGet, "/me", token, params, identity); err != nil {
		return nil, fmt.Errorf("getting identity: %w", err)
	}
	return identity, nil
}

// ExchangeCode trades an OAuth authorization code for a short lived token.
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("%w: missing authorization code", model.ErrorInvalidInput)
	}
	params := url.Values{
		"client_id":     {c.config.ClientID},
		"client_secret": {c.config.ClientSecret},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {c.config.RedirectURI},
		"code":          {code},
	}

	res := &tokenResponse{}
	if err := c.send(ctx, http.MethodPost, "/oauth/access_token", params, res); err != nil {
		return "", fmt.Errorf("exchanging authorization code: %w", err)
	}
	if res.AccessToken == "" {
		return "", fmt.Errorf("exchanging authorization code: %w: no access token returned", model.ErrorUpstream)
	}
	return res.AccessToken, nil
}

func (c *Client) ExchangeForLongLivedToken(ctx context.Context, shortToken string) (*model.TokenInfo, error) {
	params := url.Values{
		"grant_type":    {"th_exchange_token"},
		"client_secret": {c.config.ClientSecret},
	}

	info, err := c.token(ctx, "/access_token", shortToken, params)
	if err != nil {
		return nil, fmt.Errorf("exchanging for long lived token: %w", err)
	}
	return info, nil
}

func (c *Client) RefreshToken(ctx context.Context, token string) (*model.TokenInfo, error) {
	params := url.Values{"grant_type": {"th_refresh_token"}}

	info, err := c.token(ctx, "/refresh_access_token", token, params)
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}
	return info, nil
}

// PublishText creates and publishes a text post. The text is truncated to
// MaxTextLength before anything is sent.
func (c *Client) PublishText(ctx context.Context, token string, text string) (*PublishResult, error) {
	return c.publish(ctx, token, Truncate(text), "")
}

// ReplyToComment publishes text as a reply to an existing comment.
func (c *Client) ReplyToComment(ctx context.Context, token string, commentID string, text string) (*PublishResult, error) {
	if commentID == "" {
		return nil, fmt.Errorf("%w: missing comment id", model.ErrorInvalidInput)
	}
	return c.publish(ctx, token, Truncate(text), commentID)
}

func (c *Client) publish(ctx context.Context, token string, text string, replyTo string) (*PublishResult, error) {
	if token == "" {
		return nil, model.ErrorUnauthenticated
	}
	if strings.TrimSpace(text) == "" {
		return nil, model.ErrorEmptyContent
	}

	params := url.Values{
		"media_type": {"TEXT"},
		"text":       {text},
	}
	if replyTo != "" {
		params.Set("reply_to_id", replyTo)
	}

	container := &PublishResult{}
	if err := c.do(ctx, http.MethodPost, "/me/threads", token, params, container); err != nil {
		return nil, fmt.Errorf("creating media container: %w", err)
	}

	published := &PublishResult{}
	params = url.Values{"creation_id": {container.ExternalID}}
	if err := c.do(ctx, http.MethodPost, "/me/threads_publish", token, params, published); err != nil {
		return nil, fmt.Errorf("publishing media container: %w", err)
	}
	if published.ExternalID == "" {
		return nil, fmt.Errorf("publishing media container: %w: no id returned", model.ErrorUpstream)
	}
	return published, nil
}

func (c *Client) token(ctx context.Context, path string, token string, params url.Values) (*model.TokenInfo, error) {
	res := &tokenResponse{}
	if err := c.do(ctx, http.MethodGet, path, token, params, res); err != nil {
		return nil, err
	}
	if res.AccessToken == "" {
		return nil, fmt.Errorf("%w: no access token returned", model.ErrorUpstream)
	}
	return &model.TokenInfo{
		AccessToken: res.AccessToken,
		TokenType:   res.TokenType,
		ExpiresAt:   c.now().UTC().Add(time.Duration(res.ExpiresIn) * time.Second),
	}, nil
}

func (c *Client) do(ctx context.Context, method string, path string, token string, params url.Values, out interface{}) error {
	if token == "" {
		return model.ErrorUnauthenticated
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("access_token", token)
	return c.send(ctx, method, path, params, out)
}

func (c *Client) send(ctx context.Context, method string, path string, params url.Values, out interface{}) error {
	endpoint := strings.TrimRight(c.config.BaseURL, "/") + path

	var body io.Reader
	if method == http.MethodGet {
		endpoint += "?" + params.Encode()
	} else {
		body = strings.NewReader(params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", model.ErrorUnavailable, transportMessage(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response", model.ErrorUnavailable)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", model.ErrorUpstream, err)
	}
	return nil
}

func transportMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return "platform request timed out"
		}
		return "platform request failed"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "platform request timed out"
	}
	return "platform request failed"
}

// Truncate limits text to MaxTextLength characters.
func Truncate(text string) string {
	if utf8.RuneCountInString(text) <= MaxTextLength {
		return text
	}
	return string([]rune(text)[:MaxTextLength])
}
