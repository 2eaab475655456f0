package rest

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/labstack/echo/v4"
	echo_middleware "github.com/labstack/echo/v4/middleware"
	"github.com/pot-code/trilha/internal/catalogue"
	infra "github.com/pot-code/trilha/internal/infrastructure"
	"github.com/pot-code/trilha/internal/infrastructure/auth"
	"github.com/pot-code/trilha/internal/infrastructure/driver"
	"github.com/pot-code/trilha/internal/infrastructure/validate"
	"github.com/pot-code/trilha/internal/interfaces/rest/handler"
	"github.com/pot-code/trilha/internal/interfaces/rest/middleware"
	"go.elastic.co/apm/module/apmechov4"
	"go.uber.org/zap"
)

// NewServer create the http transport of the catalogue
func NewServer(
	option *infra.AppConfig,
	kv driver.KeyValueDB,
	CatalogueUseCase catalogue.CatalogueUseCase,
	logger *zap.Logger,
) *echo.Echo {
	var (
		app       = echo.New()
		validator = validate.NewValidator(option.Locale)
		jwtUtil   = auth.NewJWTUtil(option.Security.JWTMethod,
			option.Security.JWTSecret,
			option.Security.TokenName,
			option.SessionTimeout)
		authenticator = auth.NewAuthenticator(jwtUtil, kv, auth.AuthenticatorOption{
			AdminUser:         option.Security.AdminUser,
			AdminPasswordHash: option.Security.AdminPasswordHash,
			MaxAttempts:       option.Security.MaxLoginAttempts,
			RetryTimeout:      option.Security.RetryTimeout,
		})
		jwtMiddleware = middleware.VerifyToken(jwtUtil, &middleware.ValidateTokenOption{
			InBlackList: authenticator.Revoked,
		})
		refreshMiddleware = middleware.RefreshToken(jwtUtil, &middleware.RefreshTokenOption{
			Threshold: option.SessionRefresh,
		})
	)
	app.HideBanner = true
	app.HidePort = true

	registerLivenessProbe(app, kv)
	if option.Env == infra.EnvDevelopment {
		registerProfileEndpoints(app)
	}

	app.Use(echo_middleware.RequestID())
	app.Use(middleware.Logging(logger, &middleware.LoggingConfig{
		Skipper: func(e echo.Context) bool {
			return strings.HasPrefix(e.Request().RequestURI, "/healthz")
		},
	}))
	app.Use(middleware.ErrorHandling(&middleware.ErrorHandlingOption{Logger: logger}))
	app.Use(echo_middleware.Secure())
	if option.DevOP.APM {
		app.Use(apmechov4.Middleware())
	}
	app.Use(echo_middleware.CORS())

	var (
		SessionHandler   = handler.NewSessionHandler(jwtUtil, authenticator, validator)
		CatalogueHandler = handler.NewCatalogueHandler(CatalogueUseCase, validator)
		protected        = []echo.MiddlewareFunc{jwtMiddleware, refreshMiddleware}
	)

	createEndpoint(app,
		&endpoint{
			apiVersion:  "api/v1",
			middlewares: []echo.MiddlewareFunc{middleware.SetTraceLogger(logger)},
			groups: []*apiGroup{
				{
					prefix: "/session",
					routes: []*route{
						{"POST", "", SessionHandler.HandleSignIn, nil},
						{"GET", "", SessionHandler.HandleGetSession, nil},
						{"DELETE", "", SessionHandler.HandleSignOut, nil},
					},
				},
				{
					prefix: "",
					routes: []*route{
						{"GET", "/catalogue", CatalogueHandler.HandleGetCatalogue, protected},
						{"GET", "/progress", CatalogueHandler.HandleGetProgress, protected},
					},
				},
				{
					prefix:      "/modules",
					middlewares: protected,
					routes: []*route{
						{"POST", "", CatalogueHandler.HandleAddModule, nil},
						{"PUT", "/:module_id", CatalogueHandler.HandleEditModule, nil},
						{"DELETE", "/:module_id", CatalogueHandler.HandleDeleteModule, nil},
						{"PUT", "/:module_id/lock", CatalogueHandler.HandleSetModuleLock, nil},
						{"POST", "/:module_id/lessons", CatalogueHandler.HandleAddLesson, nil},
						{"DELETE", "/:module_id/lessons/:lesson_id", CatalogueHandler.HandleDeleteLesson, nil},
						{"PUT", "/:module_id/lessons/:lesson_id/watched", CatalogueHandler.HandleMarkWatched, nil},
						{"PUT", "/:module_id/lessons/:lesson_id/lock", CatalogueHandler.HandleSetLessonLock, nil},
					},
				},
			},
		})
	return app
}

// Serve start app and block until ctx is done, then shut it down
func Serve(ctx context.Context, app *echo.Echo, option *infra.AppConfig, logger *zap.Logger) error {
	printRoutes(app, logger)

	addr := fmt.Sprintf("%s:%d", option.Host, option.Port)
	errc := make(chan error, 1)
	go func() {
		logger.Info("http server started", zap.String("server.address", addr))
		errc <- app.Start(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down http server")
	if err := app.Shutdown(context.Background()); err != nil {
		return err
	}
	if err := <-errc; err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func printRoutes(app *echo.Echo, logger *zap.Logger) {
	for _, route := range app.Routes() {
		if !strings.HasPrefix(route.Name, "github.com/labstack/echo") {
			logger.Debug("Registered route", zap.String("method", route.Method), zap.String("path", route.Path))
		}
	}
}

func registerLivenessProbe(app *echo.Echo, kv driver.KeyValueDB) {
	app.GET("/healthz", func(c echo.Context) error {
		if kv.Ping(c.Request().Context()) == nil {
			return c.NoContent(http.StatusOK)
		}
		return c.NoContent(http.StatusServiceUnavailable)
	})
}

func registerProfileEndpoints(app *echo.Echo) {
	expvarHandler := expvar.Handler()
	app.GET("/debug/vars", func(c echo.Context) error {
		expvarHandler.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/", func(c echo.Context) error {
		pprof.Index(c.Response().Writer, c.Request())
		return nil
	})
	app.GET("/debug/pprof/:name", func(c echo.Context) error {
		switch c.Param("name") {
		case "cmdline":
			pprof.Cmdline(c.Response().Writer, c.Request())
		case "profile":
			pprof.Profile(c.Response().Writer, c.Request())
		case "symbol":
			pprof.Symbol(c.Response().Writer, c.Request())
		case "trace":
			pprof.Trace(c.Response().Writer, c.Request())
		default:
			pprof.Handler(c.Param("name")).ServeHTTP(c.Response().Writer, c.Request())
		}
		return nil
	})
}
