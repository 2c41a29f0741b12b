package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"
)

func SetupRoutes(app *fiber.App, handler *Handler, log *zap.Logger) {
	// Middleware
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,HEAD,DELETE",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} ${pid} ${locals:requestid} ${status} - ${method} ${path}\n",
		TimeFormat: time.RFC3339,
	}))

	// API v1 routes
	api := app.Group("/api/v1")

	api.Get("/health", handler.GetHealth)
	api.Get("/metrics", handler.GetMetrics)

	// Species lookups
	api.Get("/species", handler.GetSpecies)
	api.Get("/species/stream", handler.StreamSpecies)
	api.Get("/suggest", handler.GetSuggestion)
	api.Get("/autocomplete", handler.GetAutocomplete)

	// Lists
	api.Get("/related", handler.GetRelated)
	api.Get("/browse/:letter", handler.GetByLetter)
	api.Get("/featured", handler.GetFeatured)

	// Per-user state
	users := api.Group("/users/:userID")
	users.Get("/favorites", handler.ListFavorites)
	users.Post("/favorites", handler.SaveFavorite)
	users.Delete("/favorites/:name", handler.RemoveFavorite)
	users.Get("/history", handler.ListHistory)
	users.Delete("/history", handler.ClearHistory)

	log.Debug("Routes registered", zap.Int("handlers", int(app.HandlersCount())))

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
			"path":  c.Path(),
		})
	})
}
