package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"mailauth/api/handler"
	apiMiddleware "mailauth/api/middleware"
	"mailauth/api/routes"
	"mailauth/config"
	"mailauth/internal/repository"
	"mailauth/internal/service"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
)

func main() {
	db := config.ConnectionDb()
	validate := validator.New()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	var emailSender service.EmailSender
	if apiKey := os.Getenv("RESEND_API_KEY"); apiKey != "" {
		emailSender = service.NewResendEmailSender(
			apiKey,
			os.Getenv("EMAIL_FROM"),
			os.Getenv("APP_BASE_URL"),
		)
	} else {
		logger.Warn("RESEND_API_KEY not set, outbound email disabled")
	}

	accountService := service.NewAccountService(
		db,
		emailSender,
		service.BcryptPasswordHasher{},
		service.RealClock{},
		service.AccountConfig{
			SignupCodeTTL:        24 * time.Hour,
			PasswordResetCodeTTL: 30 * time.Minute,
			EmailChangeCodeTTL:   time.Hour,
		},
		logger,
	)

	accountHandler := handler.NewAccountHandler(accountService, validate)

	app := echo.New()
	app.HideBanner = true
	app.HidePort = true
	app.Use(echoMiddleware.Recover())
	app.Use(echoMiddleware.RequestLoggerWithConfig(echoMiddleware.RequestLoggerConfig{
		LogStatus:   true,
		LogMethod:   true,
		LogURI:      true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echoMiddleware.RequestLoggerValues) error {
			entry := logger.WithFields(logrus.Fields{
				"status": v.Status,
				"method": v.Method,
				"uri":    v.URI,
				"ip":     v.RemoteIP,
			})
			if v.Error != nil {
				entry.WithError(v.Error).Error("request")
				return nil
			}
			entry.Info("request")
			return nil
		},
	}))

	tokenRepo := repository.NewAuthTokenRepository(db)
	authMiddleware := apiMiddleware.AuthMiddleware{Tokens: tokenRepo}
	router := routes.NewRouter(app, accountHandler, authMiddleware)
	router.RegisterRoutes()

	// Expired codes are garbage once past expires_at; sweep them out of band.
	codeRepo := repository.NewActionCodeRepository(db)
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if err := codeRepo.CleanupExpired(context.Background(), time.Now()); err != nil {
				logger.WithError(err).Warn("cleanup expired action codes")
			}
		}
	}()

	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:              addr,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.WithField("addr", addr).Info("server started")
	if err := app.StartServer(server); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}
