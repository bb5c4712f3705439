package platform

import (
	"encoding/json"
	"net/http"

	"uk.co.dudmesh.replybot/internal/model"
)

const genericErrorMessage = "platform request failed"

// Error is a non-2xx response from the platform.
type Error struct {
	StatusCode int
	Code       int
	Type       string
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	switch target {
	case model.ErrorUpstream:
		return true
	case model.ErrorUnauthenticated:
		return e.StatusCode == http.StatusUnauthorized || e.Code == 190
	case model.ErrorUnavailable:
		return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func parseError(statusCode int, raw []byte) error {
	e := &Error{StatusCode: statusCode, Message: genericErrorMessage}

	envelope := errorEnvelope{}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Error.Message != "" {
			e.Message = envelope.Error.Message
		}
		e.Type = envelope.Error.Type
		e.Code = envelope.Error.Code
	}
	return e
}
