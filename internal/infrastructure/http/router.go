package http

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/muusmart/iam-service/docs" // registers the OpenAPI document served at /swagger
	"github.com/muusmart/iam-service/internal/infrastructure/http/handlers"
)

const serviceName = "iam-service"

// RegisterOps mounts the unauthenticated operational endpoints: health
// checks, Prometheus metrics and the Swagger UI.
func RegisterOps(e *echo.Echo, checks map[string]handlers.Check) {
	healthHandler := handlers.NewHealthHandler(serviceName)
	readinessHandler := handlers.NewReadinessHandler(checks)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", readinessHandler.Readiness) // readiness – are dependencies up?

	e.GET("/metrics", echoprometheus.NewHandler())
	e.GET("/swagger/*", echoSwagger.WrapHandler)
}
