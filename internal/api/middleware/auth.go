package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/muusmart/iam-service/internal/api/handler"
	"github.com/muusmart/iam-service/internal/api/metrics"
	"github.com/muusmart/iam-service/internal/core/domain"
	"github.com/muusmart/iam-service/internal/core/service"
)

// Auth authenticates the bearer token of each request. The token's subject
// must still resolve to a stored user, and the token must validate against
// that user. On success the username, the user's current roles and the token
// claims are stored in the context.
func Auth(tokens *service.TokenService, loader service.PrincipalLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				metrics.TokenValidationsTotal.WithLabelValues("missing").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				metrics.TokenValidationsTotal.WithLabelValues("malformed").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header")
			}
			raw := parts[1]

			claims, err := tokens.ExtractClaims(raw)
			if err != nil {
				metrics.TokenValidationsTotal.WithLabelValues("malformed").Inc()
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			principal, err := loader.LoadPrincipal(c.Request().Context(), claims.Subject)
			if err != nil {
				if errors.Is(err, domain.ErrUserNotFound) {
					metrics.TokenValidationsTotal.WithLabelValues("unknown_user").Inc()
					return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
				}
				return err
			}

			if err := tokens.Validate(raw, principal.Username); err != nil {
				metrics.TokenValidationsTotal.WithLabelValues(validationResult(err)).Inc()
				if errors.Is(err, domain.ErrTokenExpired) {
					return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			metrics.TokenValidationsTotal.WithLabelValues("valid").Inc()
			c.Set(handler.CtxUsername, principal.Username)
			c.Set(handler.CtxRoles, domain.RoleNames(principal.Roles))
			c.Set(handler.CtxClaims, claims)

			return next(c)
		}
	}
}

func validationResult(err error) string {
	switch {
	case errors.Is(err, domain.ErrTokenExpired):
		return "expired"
	case errors.Is(err, domain.ErrTokenSubjectMismatch):
		return "subject_mismatch"
	default:
		return "malformed"
	}
}
