package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/gommon/log"
	"uk.co.dudmesh.replybot/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

func fail(c echo.Context, status int, message string) error {
	return c.JSON(status, errorResponse{message})
}

// failWith maps a service error to a response. Unexpected errors are logged
// and reported without detail.
func failWith(c echo.Context, err error) error {
	switch {
	case errors.Is(err, model.ErrorNotFound):
		return fail(c, http.StatusNotFound, "not found")
	case errors.Is(err, model.ErrorConflict):
		return fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrorInvalidInput):
		return fail(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrorUnauthorized):
		return fail(c, http.StatusForbidden, "forbidden")
	case errors.Is(err, model.ErrorUnauthenticated):
		return fail(c, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, model.ErrorUnavailable):
		return fail(c, http.StatusServiceUnavailable, "platform unavailable")
	}
	log.Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
	return fail(c, http.StatusInternalServerError, "internal error")
}
