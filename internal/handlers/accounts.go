package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"uk.co.dudmesh.replybot/internal/model"
)

type Connector interface {
	Connect(ctx context.Context, workspaceID model.WorkspaceID, code string) (*model.Account, error)
}

type connectRequest struct {
	Code string `json:"code"`
}

// ConnectAccount finishes the OAuth flow with the code the platform
// redirected back with.
func ConnectAccount(connector Connector) echo.HandlerFunc {
	return func(c echo.Context) error {
		workspaceID, ok := workspace(c)
		if !ok {
			return fail(c, http.StatusForbidden, "forbidden")
		}
		req := &connectRequest{}
		if err := c.Bind(req); err != nil || req.Code == "" {
			return fail(c, http.StatusBadRequest, "code is required")
		}

		account, err := connector.Connect(c.Request().Context(), workspaceID, req.Code)
		if err != nil {
			return failWith(c, err)
		}
		return c.JSON(http.StatusOK, account)
	}
}

type JobStore interface {
	DueReplies(ctx context.Context, workspaceID model.WorkspaceID, now time.Time, limit int) ([]model.ReplyJob, error)
	CompleteReply(ctx context.Context, workspaceID model.WorkspaceID, id string) error
}

// DueReplies lists delayed replies that the scheduler should now send.
func DueReplies(jobs JobStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		workspaceID, ok := workspace(c)
		if !ok {
			return fail(c, http.StatusForbidden, "forbidden")
		}
		limit, err := strconv.Atoi(c.QueryParam("limit"))
		if err != nil || limit <= 0 || limit > 500 {
			limit = 100
		}

		due, err := jobs.DueReplies(c.Request().Context(), workspaceID, time.Now().UTC(), limit)
		if err != nil {
			return failWith(c, err)
		}
		return c.JSON(http.StatusOK, due)
	}
}

// CompleteReply acknowledges a delayed reply the scheduler has sent.
func CompleteReply(jobs JobStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		workspaceID, ok := workspace(c)
		if !ok {
			return fail(c, http.StatusForbidden, "forbidden")
		}
		if err := jobs.CompleteReply(c.Request().Context(), workspaceID, c.Param("jobID")); err != nil {
			return failWith(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

type AccountStore interface {
	FetchAccount(ctx context.Context, id model.AccountID) (*model.Account, error)
}

type Refresher interface {
	Refresh(ctx context.Context, account *model.Account) (bool, error)
}

type refreshResponse struct {
	Refreshed bool           `json:"refreshed"`
	Account   *model.Account `json:"account"`
}

// RefreshAccount renews the account token if it is close to expiry.
func RefreshAccount(accounts AccountStore, refresher Refresher) echo.HandlerFunc {
	return func(c echo.Context) error {
		workspaceID, ok := workspace(c)
		if !ok {
			return fail(c, http.StatusForbidden, "forbidden")
		}
		ctx := c.Request().Context()

		account, err := accounts.FetchAccount(ctx, model.AccountID(c.Param("accountID")))
		if err != nil {
			return failWith(c, err)
		}
		if account.WorkspaceID != workspaceID {
			return fail(c, http.StatusNotFound, "not found")
		}

		refreshed, err := refresher.Refresh(ctx, account)
		if err != nil {
			return failWith(c, err)
		}
		return c.JSON(http.StatusOK, refreshResponse{refreshed, account})
	}
}
