package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/nrednav/cuid2"
	"uk.co.dudmesh.replybot/internal/auth"
	"uk.co.dudmesh.replybot/internal/boot"
	"uk.co.dudmesh.replybot/internal/handlers"
	"uk.co.dudmesh.replybot/internal/reply"
	"uk.co.dudmesh.replybot/internal/service/credentials"
	"uk.co.dudmesh.replybot/internal/service/dispatch"
	"uk.co.dudmesh.replybot/internal/service/publish"
	"uk.co.dudmesh.replybot/internal/store"
	"uk.co.dudmesh.replybot/internal/webhook"
	"uk.co.dudmesh.replybot/pkg/crypt"
	"uk.co.dudmesh.replybot/pkg/platform"
)

func newResolver(ctx context.Context, config *boot.Config, templates reply.TemplateStore) (*reply.Resolver, *reply.AIRequest) {
	if !config.AI.Enabled {
		return reply.NewResolver(templates, nil, config.AI.MaxLength), nil
	}
	if config.AI.APIKey == "" {
		log.Warnf("AI fallback enabled without GEMINI_API_KEY, disabling it")
		return reply.NewResolver(templates, nil, config.AI.MaxLength), nil
	}

	generator, err := reply.NewGeminiGenerator(ctx, config.AI.APIKey, config.AI.Model)
	if err != nil {
		log.Fatalf("creating generator: %+v", err)
	}
	fallback := &reply.AIRequest{
		Tone:      reply.Tone(config.AI.Tone),
		Prompt:    config.AI.Prompt,
		MaxLength: config.AI.MaxLength,
	}
	return reply.NewResolver(templates, generator, config.AI.MaxLength), fallback
}

func main() {
	config, err := boot.Load()
	if err != nil {
		log.Fatalf("boot: %+v", err)
	}
	ctx := context.Background()

	vault, err := crypt.NewVault(config.Secrets.CredentialKey, config.IsProduction())
	if err != nil {
		log.Fatalf("creating vault: %+v", err)
	}

	db, err := store.Open(ctx, config.DatabaseURL)
	if err != nil {
		log.Fatalf("opening store: %+v", err)
	}
	defer db.Close()

	authorizer, err := auth.New(config.Secrets.AuthJWK)
	if err != nil {
		log.Fatalf("creating authorizer: %+v", err)
	}
	if !authorizer.Enforcing() {
		if config.IsProduction() {
			log.Fatalf("AUTH_JWK is required in production")
		}
		log.Warnf("no AUTH_JWK set, API requests are not authenticated")
	}

	client := platform.New(platform.Config{
		BaseURL:      config.Platform.BaseURL,
		ClientID:     config.Platform.ClientID,
		ClientSecret: config.Platform.ClientSecret,
		RedirectURI:  config.Platform.RedirectURI,
	})
	credentialService := credentials.New(vault, client, db)
	publishService := publish.New(db, db, credentialService, client)
	dispatchService := dispatch.New(db, db, credentialService, client)

	resolver, fallback := newResolver(ctx, config, db)
	ingress := webhook.NewIngress(db, db, resolver, dispatchService, fallback)

	server := echo.New()
	server.Use(middleware.BodyLimit("1M"))
	server.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string {
			return cuid2.Generate()
		},
	}))
	server.Use(echoprometheus.NewMiddleware("replybot"))
	server.Use(middleware.Recover())

	server.Logger.SetLevel(log.INFO)

	headers := []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization}
	server.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     strings.Split(config.Server.Origins, ","),
		AllowHeaders:     headers,
		AllowCredentials: true,
	}))

	server.POST("/webhooks/:workspaceID", handlers.Webhook(config.Secrets.WebhookSecret, ingress))
	server.GET("/webhooks/:workspaceID", handlers.WebhookChallenge(config.Secrets.WebhookVerifyToken))

	api := server.Group("", authorizer.Middleware())
	api.POST("/posts/:id/publish", handlers.PublishPost(db, publishService))
	api.GET("/workspaces/:id/rules", handlers.ListRules(db))
	api.POST("/workspaces/:id/rules", handlers.CreateRule(db))
	api.POST("/workspaces/:id/rules/test", handlers.TestRule(db, resolver))
	api.PUT("/workspaces/:id/rules/:ruleID", handlers.UpdateRule(db))
	api.DELETE("/workspaces/:id/rules/:ruleID", handlers.DeleteRule(db))
	api.POST("/workspaces/:id/accounts/connect", handlers.ConnectAccount(credentialService))
	api.POST("/workspaces/:id/accounts/:accountID/refresh", handlers.RefreshAccount(db, credentialService))
	api.GET("/workspaces/:id/reply-jobs/due", handlers.DueReplies(db))
	api.DELETE("/workspaces/:id/reply-jobs/:jobID", handlers.CompleteReply(db))

	go func() {
		metrics := echo.New()
		metrics.GET("/metrics", echoprometheus.NewHandler())
		if err := metrics.Start(":" + config.Server.MetricsPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	go func() {
		if err := server.Start(":" + config.Server.Port); err != nil && err != http.ErrServerClosed {
			server.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		server.Logger.Fatal(err)
	}
}
