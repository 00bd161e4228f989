package errorhandler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"geoauth/pkg/customerrors"

	"github.com/labstack/echo/v4"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// StatusOf maps an error kind to its HTTP status.
func StatusOf(kind customerrors.Kind) int {
	switch kind {
	case customerrors.KindValidation:
		return http.StatusBadRequest
	case customerrors.KindAuthentication:
		return http.StatusUnauthorized
	case customerrors.KindNotFound:
		return http.StatusNotFound
	case customerrors.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func HandleError(err error, c echo.Context) {
	code := StatusOf(customerrors.KindOf(err))
	message := customerrors.Public(err)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else {
			message = fmt.Sprint(he.Message)
		}
	}

	if code >= http.StatusInternalServerError {
		slog.Error("Internal Server Error",
			"err", err,
			"path", c.Path(),
			"method", c.Request().Method,
		)
		if he == nil && customerrors.KindOf(err) == customerrors.KindPersistence {
			message = "Internal Server Error"
		}
	} else {
		slog.Warn("Handled error",
			"err", err,
			"path", c.Path(),
			"method", c.Request().Method,
		)
	}

	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, ErrorResponse{Success: false, Error: message})
		}
		if err != nil {
			slog.Error("Failed to write error response", "err", err)
		}
	}
}
