package handlers

import (
	"github.com/gofiber/fiber/v2"

	"spec-dating-system/middleware"
	"spec-dating-system/services"
)

func SetupSpecRoutes(app *fiber.App, specService *services.SpecService, applicationService *services.ApplicationService, feedService *services.FeedService) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Spec lifecycle
	secured.Post("/specs", specService.CreateSpec)
	secured.Get("/specs/mine", feedService.GetMySpecs)
	secured.Get("/specs/:id", specService.GetSpecByID)
	secured.Post("/specs/:id/close", specService.CloseSpec)
	secured.Post("/specs/:id/resolve/match", specService.ResolveSpecAsMatch)
	secured.Post("/specs/:id/resolve/extend", specService.ResolveSpecAsExtendSearch)
	secured.Delete("/specs/mine", specService.DeleteOwnSpecs)

	// Applications
	secured.Post("/specs/:id/join", applicationService.JoinSpec)
	secured.Get("/specs/:id/applications", applicationService.GetSpecApplications)
	secured.Patch("/specs/:id/applications/:application_id/approve", applicationService.ApproveApplication)
	secured.Patch("/specs/:id/applications/:application_id/reject", applicationService.RejectApplication)
	secured.Patch("/specs/:id/applications/:application_id/eliminate", applicationService.EliminateApplication)
	secured.Get("/applications/mine", applicationService.GetMyApplications)
}
