// Package reqctx moves per-request values between middleware and handlers.
package reqctx

import (
	"geoauth/domain/entity"
	"geoauth/pkg/clientip"

	"github.com/labstack/echo/v4"
)

const (
	userKey  = "user"
	tokenKey = "token"
)

// SetSession stores the authenticated user and the token they presented.
func SetSession(c echo.Context, user entity.User, token string) {
	c.Set(userKey, user)
	c.Set(tokenKey, token)
}

// User returns the authenticated user, or the zero User outside AuthMiddleware.
func User(c echo.Context) entity.User {
	user, _ := c.Get(userKey).(entity.User)
	return user
}

func Token(c echo.Context) string {
	token, _ := c.Get(tokenKey).(string)
	return token
}

// Client collects the address sources of the request. Claimed is left empty
// for the handler to fill from the body.
func Client(c echo.Context) clientip.Context {
	req := c.Request()
	return clientip.Context{
		ForwardedFor: req.Header.Get(echo.HeaderXForwardedFor),
		RealIP:       req.Header.Get(echo.HeaderXRealIP),
		RemoteAddr:   req.RemoteAddr,
	}
}
