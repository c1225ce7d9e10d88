package api

import (
	"receipt-service/docs"
	"receipt-service/internal/api/handlers"
	"receipt-service/pkg/config"
	"receipt-service/pkg/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"go.uber.org/zap"
)

type Handlers struct {
	Receipt   *handlers.ReceiptHandler
	Chat      *handlers.ChatHandler
	Embedding *handlers.EmbeddingHandler
	Health    *handlers.HealthHandler
}

func SetupRouter(h Handlers, cfg *config.ServerConfig, appLogger *zap.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit:    cfg.BodyLimit,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
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
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept",
	}))
	app.Use(requestid.New())
	app.Use(middleware.RequestLogger(appLogger))

	_ = docs.SwaggerInfo // registers the OpenAPI document with swag
	app.Get("/swagger/*", swagger.HandlerDefault)

	app.Get("/health", h.Health.Health)

	app.Post("/upload", h.Receipt.Upload)
	app.Post("/review", h.Receipt.Review)
	app.Post("/chat", h.Chat.Chat)
	app.Post("/embed-receipt", h.Embedding.EmbedReceipt)
	app.Delete("/delete-embeddings/:receiptId", h.Embedding.DeleteEmbeddings)

	return app
}
