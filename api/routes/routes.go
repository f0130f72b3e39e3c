package routes

import (
	"mailauth/api/handler"
	"mailauth/api/middleware"

	"github.com/labstack/echo/v4"
)

type Router struct {
	Echo           *echo.Echo
	Account        *handler.AccountHandler
	AuthMiddleware middleware.AuthMiddleware
}

func NewRouter(e *echo.Echo, accountHandler *handler.AccountHandler, authMiddleware middleware.AuthMiddleware) *Router {
	return &Router{
		Echo:           e,
		Account:        accountHandler,
		AuthMiddleware: authMiddleware,
	}
}

func (r *Router) RegisterRoutes() {
	e := r.Echo

	e.POST("/auth/signup", r.Account.Signup)
	e.GET("/auth/signup/verify", r.Account.SignupCodeCheck)
	e.POST("/auth/signup/verify", r.Account.SignupVerify)

	e.POST("/auth/password/reset", r.Account.PasswordReset)
	e.GET("/auth/password/reset/verify", r.Account.PasswordResetCodeCheck)
	e.POST("/auth/password/reset/verify", r.Account.PasswordResetVerify)

	e.POST("/auth/email/change", r.Account.EmailChange, r.AuthMiddleware.RequireAuth)
	e.GET("/auth/email/change/verify", r.Account.EmailChangeCodeCheck)
	e.POST("/auth/email/change/verify", r.Account.EmailChangeVerify)

	e.POST("/auth/password/change", r.Account.PasswordChange, r.AuthMiddleware.RequireAuth)

	e.POST("/auth/login", r.Account.Login)
	e.POST("/auth/logout", r.Account.Logout, r.AuthMiddleware.RequireAuth)
}
