package boot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Env         string `env:"ENV,default=dev"`
	DatabaseURL string `env:"DATABASE_URL,default=replybot.db"`
	Server      struct {
		Port        string `env:"PORT,default=8080"`
		MetricsPort string `env:"METRICS_PORT,default=8081"`
		Origins     string `env:"ALLOWED_ORIGINS,default=*"`
	}
	Secrets struct {
		WebhookSecret      string `env:"WEBHOOK_SECRET"`
		WebhookVerifyToken string `env:"WEBHOOK_VERIFY_TOKEN"`
		CredentialKey      string `env:"CREDENTIAL_KEY"`
		AuthJWK            string `env:"AUTH_JWK"`
	}
	Platform struct {
		BaseURL      string `env:"PLATFORM_BASE_URL,default=https://graph.threads.net/v1.0"`
		ClientID     string `env:"PLATFORM_CLIENT_ID"`
		ClientSecret string `env:"PLATFORM_CLIENT_SECRET"`
		RedirectURI  string `env:"PLATFORM_REDIRECT_URI"`
	}
	AI struct {
		Enabled   bool   `env:"AI_FALLBACK_ENABLED,default=false"`
		APIKey    string `env:"GEMINI_API_KEY"`
		Model     string `env:"GEMINI_MODEL,default=gemini-2.5-flash"`
		Tone      string `env:"AI_TONE,default=friendly"`
		Prompt    string `env:"AI_PROMPT"`
		MaxLength int    `env:"AI_MAX_LENGTH,default=500"`
	}
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	config := &Config{}
	if err := envconfig.Process(context.Background(), config); err != nil {
		return nil, fmt.Errorf("parsing env vars: %w", err)
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	if !c.IsProduction() {
		return nil
	}
	switch {
	case c.Secrets.WebhookSecret == "":
		return fmt.Errorf("WEBHOOK_SECRET is required in production")
	case c.Secrets.CredentialKey == "":
		return fmt.Errorf("CREDENTIAL_KEY is required in production")
	case c.Secrets.AuthJWK == "":
		return fmt.Errorf("AUTH_JWK is required in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "prod"
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "dev"
}
