package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"mailauth/api/middleware"
	"mailauth/internal/dto"
	"mailauth/internal/entity"
	"mailauth/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type AccountHandler struct {
	Service  *service.AccountService
	Validate *validator.Validate
}

func NewAccountHandler(svc *service.AccountService, validate *validator.Validate) *AccountHandler {
	return &AccountHandler{
		Service:  svc,
		Validate: validate,
	}
}

func (h *AccountHandler) Signup(c echo.Context) error {
	var req dto.SignupRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	input := service.SignupInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Link:      req.Link,
		IPAddr:    clientIP(c),
	}
	user, err := h.Service.RequestSignup(c.Request().Context(), input)
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, dto.UserResponseFromEntity(user))
}

func (h *AccountHandler) SignupCodeCheck(c echo.Context) error {
	return h.checkCode(c, entity.ActionSignup, "verify signup")
}

func (h *AccountHandler) SignupVerify(c echo.Context) error {
	if err := h.Service.VerifySignup(c.Request().Context(), c.QueryParam("code")); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.SuccessResponse{
		Success: "User email address has been verified.",
	})
}

func (h *AccountHandler) PasswordReset(c echo.Context) error {
	var req dto.PasswordResetRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	email, err := h.Service.RequestPasswordReset(c.Request().Context(), req.Email, req.Link, clientIP(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, dto.SuccessWithEmailResponse{
		Success: "The email with the password reset code will be sent soon.",
		Email:   email,
	})
}

func (h *AccountHandler) PasswordResetCodeCheck(c echo.Context) error {
	return h.checkCode(c, entity.ActionPasswordReset, "reset the password")
}

func (h *AccountHandler) PasswordResetVerify(c echo.Context) error {
	var req dto.PasswordResetVerifyRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.VerifyPasswordReset(c.Request().Context(), c.QueryParam("code"), req.Password); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.SuccessResponse{
		Success: "User password has been reset.",
	})
}

func (h *AccountHandler) EmailChange(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	var req dto.EmailChangeRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	email, err := h.Service.RequestEmailChange(c.Request().Context(), user.ID, req.Email, req.Link, clientIP(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, dto.SuccessWithEmailResponse{
		Success: "The email with the email change code will be sent soon.",
		Email:   email,
	})
}

func (h *AccountHandler) EmailChangeCodeCheck(c echo.Context) error {
	return h.checkCode(c, entity.ActionEmailChange, "change the email address")
}

func (h *AccountHandler) EmailChangeVerify(c echo.Context) error {
	if err := h.Service.VerifyEmailChange(c.Request().Context(), c.QueryParam("code")); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.SuccessResponse{
		Success: "Email address has been changed.",
	})
}

func (h *AccountHandler) PasswordChange(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	var req dto.PasswordChangeRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.Service.ChangePassword(c.Request().Context(), user.ID, req.Password, req.NewPassword); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.SuccessResponse{
		Success: "Password has been changed.",
	})
}

func (h *AccountHandler) Login(c echo.Context) error {
	var req dto.LoginRequest
	if err := decodeJSON(c, &req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	if err := h.validate(req); err != nil {
		return writeError(c, http.StatusBadRequest, err)
	}
	token, err := h.Service.Login(c.Request().Context(), req.Email, req.Password, clientIP(c))
	if err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.TokenResponse{Token: token})
}

func (h *AccountHandler) Logout(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return writeError(c, http.StatusUnauthorized, errors.New("unauthorized"))
	}
	if err := h.Service.Logout(c.Request().Context(), user.ID, clientIP(c)); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.SuccessResponse{
		Success: "User logged out.",
	})
}

func (h *AccountHandler) checkCode(c echo.Context, kind entity.ActionKind, proceedAction string) error {
	if err := h.Service.CheckCode(c.Request().Context(), kind, c.QueryParam("code")); err != nil {
		return writeServiceError(c, err)
	}
	return c.JSON(http.StatusOK, dto.SuccessResponse{
		Success: "The given `code` parameter is valid, can proceed to " + proceedAction + ".",
	})
}

func (h *AccountHandler) validate(payload any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(payload)
}

func decodeJSON(c echo.Context, target any) error {
	decoder := json.NewDecoder(c.Request().Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func clientIP(c echo.Context) string {
	ip := strings.TrimSpace(c.RealIP())
	if ip == "" {
		return entity.UnknownIPAddr
	}
	return ip
}

func writeError(c echo.Context, status int, err error) error {
	return c.JSON(status, map[string]string{"detail": err.Error()})
}

func writeServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidCode):
		// One generic message for not-found and expired alike; the precise
		// cause stays server-side.
		return writeError(c, http.StatusBadRequest, service.ErrInvalidCode)
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrPasswordMismatch):
		return writeError(c, http.StatusBadRequest, err)
	case errors.Is(err, service.ErrNotAllowed):
		return writeError(c, http.StatusBadRequest, errors.New("password reset not allowed"))
	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrNotVerified),
		errors.Is(err, service.ErrNotActive):
		return writeError(c, http.StatusUnauthorized, err)
	case errors.Is(err, service.ErrUserNotFound):
		return writeError(c, http.StatusNotFound, err)
	}
	return writeError(c, http.StatusInternalServerError, errors.New("internal server error"))
}
