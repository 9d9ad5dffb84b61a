package handlers

import (
	"github.com/gofiber/fiber/v2"

	"spec-dating-system/middleware"
	"spec-dating-system/services"
)

func SetupFeedRoutes(app *fiber.App, feedService *services.FeedService) {
	secured := app.Group("/", middleware.UserContextMiddleware())
	secured.Get("/feed", feedService.GetFeed)
}
