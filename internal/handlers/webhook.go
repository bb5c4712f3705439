package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"uk.co.dudmesh.replybot/internal/metrics"
	"uk.co.dudmesh.replybot/internal/model"
	"uk.co.dudmesh.replybot/internal/webhook"
)

type Ingress interface {
	Handle(ctx context.Context, workspaceID model.WorkspaceID, events []model.CommentEvent) ([]webhook.Result, error)
}

type webhookResponse struct {
	Received  bool             `json:"received"`
	Delivery  string           `json:"delivery"`
	Processed int              `json:"processed"`
	Results   []webhook.Result `json:"results"`
}

// Webhook verifies the delivery signature over the raw body before anything
// is parsed.
func Webhook(secret string, ingress Ingress) echo.HandlerFunc {
	return func(c echo.Context) error {
		body := c.Request().Body
		defer body.Close()

		rawRequest, err := io.ReadAll(body)
		if err != nil {
			return fail(c, http.StatusBadRequest, "reading request body")
		}
		delivery := webhook.Fingerprint(rawRequest)

		if !webhook.Verify([]byte(secret), rawRequest, c.Request().Header.Get(webhook.SignatureHeader)) {
			metrics.WebhookDeliveries.WithLabelValues("invalid_signature").Inc()
			log.Warnf("webhook: delivery %s rejected: %v", delivery, model.ErrorSignatureInvalid)
			return fail(c, http.StatusUnauthorized, "invalid signature")
		}

		events, err := webhook.Parse(rawRequest)
		if err != nil {
			metrics.WebhookDeliveries.WithLabelValues("invalid_payload").Inc()
			return fail(c, http.StatusBadRequest, "invalid payload")
		}
		metrics.WebhookDeliveries.WithLabelValues("accepted").Inc()

		workspaceID := model.WorkspaceID(c.Param("workspaceID"))
		results, err := ingress.Handle(c.Request().Context(), workspaceID, events)
		if err != nil {
			return failWith(c, err)
		}

		log.Infof("webhook: delivery %s for workspace %s: %d comments", delivery, workspaceID, len(events))
		return c.JSON(http.StatusOK, webhookResponse{
			Received:  true,
			Delivery:  delivery,
			Processed: len(events),
			Results:   results,
		})
	}
}

// WebhookChallenge answers the subscription handshake.
func WebhookChallenge(verifyToken string) echo.HandlerFunc {
	return func(c echo.Context) error {
		challenge, ok := webhook.VerifyChallenge(
			c.QueryParam("hub.mode"),
			c.QueryParam("hub.verify_token"),
			c.QueryParam("hub.challenge"),
			verifyToken,
		)
		if !ok {
			return fail(c, http.StatusForbidden, "verification failed")
		}
		return c.String(http.StatusOK, challenge)
	}
}
