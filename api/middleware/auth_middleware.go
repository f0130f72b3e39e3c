package middleware

import (
	"net/http"
	"strings"

	"mailauth/internal/repository"

	"github.com/labstack/echo/v4"
)

type AuthMiddleware struct {
	Tokens repository.AuthTokenRepository
}

func (m AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if m.Tokens == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		key := extractBearerToken(c.Request())
		if key == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		token, err := m.Tokens.FindByKey(c.Request().Context(), key)
		if err != nil || token == nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		if !token.User.IsActive {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		SetAuthContext(c, &token.User)
		return next(c)
	}
}

func extractBearerToken(r *http.Request) string {
	authorization := r.Header.Get("Authorization")
	if authorization == "" {
		return ""
	}
	parts := strings.SplitN(authorization, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
