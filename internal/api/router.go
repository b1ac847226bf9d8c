package api

import (
	"uni-counselor/docs"
	"uni-counselor/internal/api/handlers"
	"uni-counselor/pkg/auth"
	"uni-counselor/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

func SetupRouter(
	authHandler *handlers.AuthHandler,
	profileHandler *handlers.ProfileHandler,
	sessionHandler *handlers.SessionHandler,
	planHandler *handlers.PlanHandler,
	assessmentHandler *handlers.AssessmentHandler,
	indexHandler *handlers.IndexHandler,
	jwtManager *auth.JWTManager,
	appLogger *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	_ = docs.SwaggerInfo // importing docs registers the spec via init()
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// Auth routes (public)
	authGroup := app.Group("/user/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.RefreshToken)

	// Protected routes
	protected := app.Group("/api/v1", middleware.AuthMiddleware(jwtManager, appLogger))

	profile := protected.Group("/profile")
	profile.Get("", profileHandler.GetProfile)
	profile.Patch("", profileHandler.UpdateProfile)
	profile.Get("/documents", profileHandler.ListDocuments)
	profile.Post("/documents", profileHandler.AddDocument)

	sessions := protected.Group("/sessions")
	sessions.Post("", sessionHandler.CreateSession)
	sessions.Get("", sessionHandler.ListSessions)
	sessions.Patch("/:id", sessionHandler.RenameSession)
	sessions.Get("/:id/messages", sessionHandler.ListMessages)
	sessions.Post("/:id/messages", sessionHandler.PostMessage)

	plan := protected.Group("/plan")
	plan.Get("", planHandler.GetPlan)
	plan.Patch("/steps/:id", planHandler.UpdateStep)

	assessments := protected.Group("/assessments")
	assessments.Post("", assessmentHandler.RunAssessment)
	assessments.Get("", assessmentHandler.AssessmentHistory)
	assessments.Get("/latest", assessmentHandler.LatestAssessment)

	protected.Post("/index/rebuild", indexHandler.RebuildIndex)
	protected.Post("/search", indexHandler.Search)

	return app
}
