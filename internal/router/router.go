package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/exam-go-api/internal/config"
	"github.com/noah-isme/exam-go-api/internal/handler"
	"github.com/noah-isme/exam-go-api/internal/middleware"
	"github.com/noah-isme/exam-go-api/internal/models"
	"github.com/noah-isme/exam-go-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler     *handler.AuthHandler
	QuestionHandler *handler.QuestionHandler
	ExamHandler     *handler.ExamHandler
	AdminHandler    *handler.AdminHandler
	MonitorHandler  *handler.MonitorHandler
	JWTMiddleware   fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	// Common v1 group for health & headers
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	// Use provided JWT middleware, or a no-op if nil
	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	// Auth
	if deps.AuthHandler != nil {
		auth := app.Group("/api/v1/auth", middleware.RateLimit("auth", 10, time.Minute))
		deps.AuthHandler.Register(auth)

		session := app.Group("/api/v1/auth", jwtMiddleware)
		deps.AuthHandler.RegisterProtected(session)
	}

	// Question catalog
	if deps.QuestionHandler != nil {
		questions := app.Group("/api/v1/questions", jwtMiddleware)
		deps.QuestionHandler.Register(questions)

		adminQuestions := app.Group("/api/v1/admin/questions", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
		deps.QuestionHandler.RegisterAdmin(adminQuestions)
	}

	// Exam sessions
	if deps.ExamHandler != nil {
		exams := app.Group("/api/v1/exams", jwtMiddleware, middleware.RateLimit("exams", 60, time.Minute))
		deps.ExamHandler.Register(exams)
	}

	// Administration
	if deps.AdminHandler != nil {
		admin := app.Group("/api/v1/admin", jwtMiddleware, middleware.RequireRole(models.RoleAdmin))
		deps.AdminHandler.Register(admin)

		if deps.MonitorHandler != nil {
			monitor := admin.Group("/monitor")
			deps.MonitorHandler.Register(monitor)
		}
	}
}
