package api

import (
	"receipto/docs"
	"receipto/internal/api/handlers"
	"receipto/pkg/auth"
	"receipto/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func SetupRouter(
	appHandler *handlers.AppHandler,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	receiptHandler *handlers.ReceiptHandler,
	jwtManager *auth.JWTManager,
	appLogger *zap.Logger,
) (*fiber.App, error) {
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
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(logger.New())

	registry := prometheus.NewRegistry()
	promMiddleware, err := middleware.NewPrometheusMiddleware(registry)
	if err != nil {
		return nil, err
	}
	app.Use(promMiddleware.Handler())
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	// Importing docs registers the swagger documentation via init()
	_ = docs.SwaggerInfo
	app.Get("/swagger/*", swagger.HandlerDefault)

	api := app.Group("/api")

	api.Get("/status", appHandler.Status)
	api.Get("/stats", appHandler.Stats)

	// Auth routes (public)
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Post("/refresh", authHandler.RefreshToken)

	protected := middleware.AuthMiddleware(jwtManager, appLogger)

	// User routes
	users := api.Group("/users", protected)
	users.Get("/me", userHandler.GetProfile)
	users.Put("/me", userHandler.UpdateProfile)
	users.Delete("/me", userHandler.DeleteAccount)

	// Receipt routes
	receipts := api.Group("/receipts", protected)
	receipts.Post("", receiptHandler.UploadReceipt)
	receipts.Get("", receiptHandler.ListReceipts)
	receipts.Get("/category/:name", receiptHandler.GetReceiptsByCategory)
	receipts.Get("/:id/download", receiptHandler.DownloadReceipt)
	receipts.Get("/:id", receiptHandler.GetReceipt)
	receipts.Delete("/:id", receiptHandler.DeleteReceipt)

	return app, nil
}
