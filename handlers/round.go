package handlers

import (
	"github.com/gofiber/fiber/v2"

	"spec-dating-system/middleware"
	"spec-dating-system/services"
)

func SetupRoundRoutes(app *fiber.App, roundService *services.RoundService, mediaService *services.MediaService, hub *services.EventHub) {
	secured := app.Group("/", middleware.UserContextMiddleware())

	// Round state machine (owner)
	secured.Post("/specs/:id/rounds", roundService.StartRound)
	secured.Patch("/rounds/:id", roundService.UpdateRoundQuestion)
	secured.Post("/rounds/:id/close", roundService.CloseRound)
	secured.Post("/rounds/:id/complete", roundService.CompleteRound)
	secured.Post("/rounds/:id/eliminations", roundService.EliminateRoundUsers)
	secured.Get("/rounds/:id/unresponsive", roundService.GetUnresponsiveParticipants)

	// Answers (participants)
	secured.Post("/rounds/:id/answers", roundService.SubmitRoundAnswer)
	secured.Get("/rounds/:id/answers", roundService.GetRoundAnswers)
	secured.Post("/media", mediaService.UploadAnswerMedia)

	// Realtime round events
	secured.Get("/specs/:id/events", hub.StreamSpecEvents)
}
