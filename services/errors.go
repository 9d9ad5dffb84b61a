package services

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Domain error taxonomy. Every operation rejects with one of these before
// any write happens; callers can correct input and retry.
var (
	ErrUnauthorized         = errors.New("caller is not the spec owner")
	ErrNotFound             = errors.New("not found")
	ErrDuplicateApplication = errors.New("user already applied to this spec")
	ErrDuplicateAnswer      = errors.New("user already answered this round")
	ErrAlreadyOwner         = errors.New("owner cannot apply to their own spec")
	ErrRequirementNotMet    = errors.New("compulsory requirement not met")
	ErrRoundInProgress      = errors.New("a round is already in progress for this spec")
	ErrRoundNotActive       = errors.New("round is not active")
	ErrNotAccepted          = errors.New("caller has no accepted application on this spec")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInvalidTransition    = errors.New("application is no longer pending")
	ErrSpecClosed           = errors.New("spec is not open")
	ErrSpecFull             = errors.New("spec has reached its participant limit")
	ErrNoWinner             = errors.New("no winner application exists for this spec")
	ErrAlreadyResolved      = errors.New("spec tournament is already resolved")
)

func statusForError(err error) int {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return fiber.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, ErrDuplicateApplication),
		errors.Is(err, ErrDuplicateAnswer),
		errors.Is(err, ErrRoundInProgress),
		errors.Is(err, ErrInvalidTransition),
		errors.Is(err, ErrAlreadyResolved),
		errors.Is(err, ErrSpecFull):
		return fiber.StatusConflict
	case errors.Is(err, ErrAlreadyOwner),
		errors.Is(err, ErrRequirementNotMet),
		errors.Is(err, ErrRoundNotActive),
		errors.Is(err, ErrNotAccepted),
		errors.Is(err, ErrSpecClosed),
		errors.Is(err, ErrNoWinner),
		errors.Is(err, ErrInvalidInput):
		return fiber.StatusBadRequest
	}
	return fiber.StatusInternalServerError
}

// fail translates a domain error into the JSON error response shape used
// across all handlers.
func fail(c *fiber.Ctx, err error) error {
	return c.Status(statusForError(err)).JSON(fiber.Map{"error": err.Error()})
}
