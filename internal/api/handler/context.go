package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/muusmart/iam-service/internal/core/service"
)

// Context keys populated by the Auth middleware.
const (
	CtxUsername = "username"
	CtxRoles    = "roles"
	CtxClaims   = "claims"
)

type identity struct {
	Username string
	Roles    []string
	Claims   *service.TokenClaims
}

// ctxIdentity reads what the Auth middleware stored. An empty username means
// the middleware did not run for this route.
func ctxIdentity(c echo.Context) (identity, error) {
	username, _ := c.Get(CtxUsername).(string)
	if username == "" {
		return identity{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	roles, _ := c.Get(CtxRoles).([]string)
	claims, _ := c.Get(CtxClaims).(*service.TokenClaims)
	return identity{Username: username, Roles: roles, Claims: claims}, nil
}
