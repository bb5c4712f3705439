package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"uk.co.dudmesh.replybot/internal/auth"
	"uk.co.dudmesh.replybot/internal/model"
	"uk.co.dudmesh.replybot/internal/service/publish"
)

type PostStore interface {
	FetchPost(ctx context.Context, id model.PostID) (*model.Post, error)
}

type Publisher interface {
	Publish(ctx context.Context, id model.PostID, trigger publish.Trigger) (*model.Post, error)
}

// PublishPost runs a publish attempt. Schedulers pass trigger=automatic so
// that transient failures answer 503 instead of failing the post.
func PublishPost(posts PostStore, publisher Publisher) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		id := model.PostID(c.Param("id"))

		post, err := posts.FetchPost(ctx, id)
		if err != nil {
			return failWith(c, err)
		}
		if !auth.Authorized(c, post.WorkspaceID) {
			return fail(c, http.StatusForbidden, "forbidden")
		}

		trigger := publish.TriggerManual
		if c.QueryParam("trigger") == "automatic" {
			trigger = publish.TriggerAutomatic
		}

		post, err = publisher.Publish(ctx, id, trigger)
		var publishErr *publish.Error
		switch {
		case err == nil:
			return c.JSON(http.StatusOK, post)
		case errors.As(err, &publishErr):
			return fail(c, http.StatusInternalServerError, publishErr.Message)
		}
		return failWith(c, err)
	}
}
