package services

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"spec-dating-system/models"
	"spec-dating-system/utils"
)

type RoundService struct {
	DB       *gorm.DB
	Hub      *EventHub
	Notifier Notifier
	Media    utils.MediaStore
}

func NewRoundService(db *gorm.DB, hub *EventHub, notifier Notifier, media utils.MediaStore) *RoundService {
	return &RoundService{DB: db, Hub: hub, Notifier: notifier, Media: media}
}

// EliminationResult reports what a batch elimination did. Winner is non-nil
// when the last-man-standing rule fired; the owner should then resolve the
// tournament instead of starting another round.
type EliminationResult struct {
	Eliminated []string            `json:"eliminated"`
	Winner     *models.Application `json:"winner,omitempty"`
}

// Start creates the next round for a spec. Round numbers are contiguous
// from 1; a spec can hold only one active or reviewing round at a time,
// tracked structurally through Spec.CurrentRoundID under a row lock.
func (s *RoundService) Start(ownerID, specID, question string, eliminationCount int) (*models.Round, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question_text is required", ErrInvalidInput)
	}
	if eliminationCount < 0 {
		return nil, fmt.Errorf("%w: elimination_count cannot be negative", ErrInvalidInput)
	}

	var round *models.Round
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var spec models.Spec
		if err := lockForUpdate(tx).
			First(&spec, "id = ?", specID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: spec %s", ErrNotFound, specID)
			}
			return err
		}
		if spec.OwnerID != ownerID {
			return ErrUnauthorized
		}
		if spec.Resolved() {
			return ErrSpecClosed
		}
		if spec.CurrentRoundID != nil {
			return ErrRoundInProgress
		}

		var maxNumber int
		if err := tx.Model(&models.Round{}).
			Where("spec_id = ?", specID).
			Select("COALESCE(MAX(round_number), 0)").
			Scan(&maxNumber).Error; err != nil {
			return err
		}

		round = &models.Round{
			ID:               uuid.NewString(),
			SpecID:           specID,
			RoundNumber:      maxNumber + 1,
			QuestionText:     strings.TrimSpace(question),
			Status:           models.RoundStatusActive,
			EliminationCount: eliminationCount,
		}
		if err := tx.Create(round).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{"current_round_id": round.ID}
		if spec.Status == models.SpecStatusOpen {
			updates["status"] = models.SpecStatusActive
		}
		return tx.Model(&spec).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	s.Hub.Publish(Event{Type: EventRoundStarted, SpecID: specID, Round: round})
	log.Printf("▶️  Round %d started for spec %s", round.RoundNumber, specID)
	return round, nil
}

// SubmitAnswer records one participant's response to an active round.
func (s *RoundService) SubmitAnswer(userID, roundID, text string, mediaID *string) (*models.Answer, error) {
	if strings.TrimSpace(text) == "" && mediaID == nil {
		return nil, fmt.Errorf("%w: answer needs text or media", ErrInvalidInput)
	}

	var answer *models.Answer
	var specID string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		round, err := loadRound(tx, roundID)
		if err != nil {
			return err
		}
		specID = round.SpecID
		if round.Status != models.RoundStatusActive {
			return ErrRoundNotActive
		}

		var accepted int64
		if err := tx.Model(&models.Application{}).
			Where("spec_id = ? AND user_id = ? AND status = ?", round.SpecID, userID, models.ApplicationStatusAccepted).
			Count(&accepted).Error; err != nil {
			return err
		}
		if accepted == 0 {
			return ErrNotAccepted
		}

		var existing int64
		if err := tx.Model(&models.Answer{}).
			Where("round_id = ? AND user_id = ?", roundID, userID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrDuplicateAnswer
		}

		answer = &models.Answer{
			ID:         uuid.NewString(),
			RoundID:    roundID,
			UserID:     userID,
			AnswerText: text,
			MediaID:    mediaID,
		}
		return tx.Create(answer).Error
	})
	if err != nil {
		return nil, err
	}

	s.Hub.Publish(Event{Type: EventRoundAnswered, SpecID: specID, Answer: answer})
	return answer, nil
}

// Close moves an active round to reviewing. No answers are accepted past
// this point; nobody is eliminated yet.
func (s *RoundService) Close(ownerID, roundID string) (*models.Round, error) {
	var round *models.Round
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		r, err := s.ownedRound(tx, ownerID, roundID)
		if err != nil {
			return err
		}
		if r.Status != models.RoundStatusActive {
			return ErrRoundNotActive
		}
		if err := tx.Model(r).Update("status", models.RoundStatusReviewing).Error; err != nil {
			return err
		}
		r.Status = models.RoundStatusReviewing
		round = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return round, nil
}

// Complete finishes a reviewing round and clears the spec's current-round
// pointer so the next round can start.
func (s *RoundService) Complete(ownerID, roundID string) (*models.Round, error) {
	var round *models.Round
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		r, err := s.ownedRound(tx, ownerID, roundID)
		if err != nil {
			return err
		}
		if r.Status != models.RoundStatusReviewing {
			return fmt.Errorf("%w: round must be reviewing to complete", ErrInvalidTransition)
		}
		if err := tx.Model(r).Update("status", models.RoundStatusCompleted).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Spec{}).
			Where("id = ? AND current_round_id = ?", r.SpecID, r.ID).
			Update("current_round_id", nil).Error; err != nil {
			return err
		}
		r.Status = models.RoundStatusCompleted
		round = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return round, nil
}

// UpdateQuestion replaces the question text in place. Allowed only while
// the round is active; it never creates a new round.
func (s *RoundService) UpdateQuestion(ownerID, roundID, question string) (*models.Round, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("%w: question_text is required", ErrInvalidInput)
	}
	var round *models.Round
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		r, err := s.ownedRound(tx, ownerID, roundID)
		if err != nil {
			return err
		}
		if r.Status != models.RoundStatusActive {
			return ErrRoundNotActive
		}
		if err := tx.Model(r).Update("question_text", strings.TrimSpace(question)).Error; err != nil {
			return err
		}
		r.QuestionText = strings.TrimSpace(question)
		round = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return round, nil
}

// Eliminate removes the given participants in one transaction. Their
// applications become eliminated, their answers to this round (if any) are
// flagged, and the last-man-standing rule is recomputed afterwards.
func (s *RoundService) Eliminate(ownerID, roundID string, userIDs []string) (*EliminationResult, error) {
	if len(userIDs) == 0 {
		return nil, fmt.Errorf("%w: no user ids given", ErrInvalidInput)
	}

	result := &EliminationResult{}
	var specID string
	var eliminated []string
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		round, err := s.ownedRound(tx, ownerID, roundID)
		if err != nil {
			return err
		}
		if !round.InProgress() {
			return ErrRoundNotActive
		}
		specID = round.SpecID

		for _, userID := range userIDs {
			var app models.Application
			if err := lockForUpdate(tx).
				Where("spec_id = ? AND user_id = ? AND user_role = ?", round.SpecID, userID, models.RoleParticipant).
				First(&app).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: no participant application for user %s", ErrNotFound, userID)
				}
				return err
			}
			if app.Status == models.ApplicationStatusEliminated {
				continue
			}
			if err := tx.Model(&app).Update("status", models.ApplicationStatusEliminated).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Answer{}).
				Where("round_id = ? AND user_id = ?", roundID, userID).
				Update("is_eliminated", true).Error; err != nil {
				return err
			}
			eliminated = append(eliminated, userID)
		}

		winner, err := settleLastParticipant(tx, round.SpecID)
		if err != nil {
			return err
		}
		result.Winner = winner
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Eliminated = eliminated

	for _, userID := range eliminated {
		s.Notifier.Notify(userID, NotifyEliminated, map[string]interface{}{
			"spec_id":  specID,
			"round_id": roundID,
		})
	}
	if result.Winner != nil {
		log.Printf("🏆 Spec %s down to one participant: %s is the winner", specID, result.Winner.UserID)
	}
	return result, nil
}

// Unresponsive lists the accepted participants who never answered the
// round: the owner's elimination shortlist after closing.
func (s *RoundService) Unresponsive(ownerID, roundID string) ([]string, error) {
	round, err := s.ownedRound(s.DB, ownerID, roundID)
	if err != nil {
		return nil, err
	}

	var acceptedIDs []string
	if err := s.DB.Model(&models.Application{}).
		Where("spec_id = ? AND user_role = ? AND status = ?",
			round.SpecID, models.RoleParticipant, models.ApplicationStatusAccepted).
		Pluck("user_id", &acceptedIDs).Error; err != nil {
		return nil, err
	}

	var answeredIDs []string
	if err := s.DB.Model(&models.Answer{}).
		Where("round_id = ?", roundID).
		Pluck("user_id", &answeredIDs).Error; err != nil {
		return nil, err
	}

	answered := map[string]struct{}{}
	for _, id := range answeredIDs {
		answered[id] = struct{}{}
	}
	silent := []string{}
	for _, id := range acceptedIDs {
		if _, ok := answered[id]; !ok {
			silent = append(silent, id)
		}
	}
	return silent, nil
}

// Answers returns a round's answers with media URLs resolved. Visible to
// the owner and to accepted participants of the spec.
func (s *RoundService) Answers(callerUserID, roundID string) ([]models.Answer, error) {
	round, err := loadRound(s.DB, roundID)
	if err != nil {
		return nil, err
	}

	var spec models.Spec
	if err := s.DB.First(&spec, "id = ?", round.SpecID).Error; err != nil {
		return nil, err
	}
	if spec.OwnerID != callerUserID {
		var accepted int64
		if err := s.DB.Model(&models.Application{}).
			Where("spec_id = ? AND user_id = ? AND status IN ?",
				round.SpecID, callerUserID,
				[]string{models.ApplicationStatusAccepted, models.ApplicationStatusWinner, models.ApplicationStatusEliminated}).
			Count(&accepted).Error; err != nil {
			return nil, err
		}
		if accepted == 0 {
			return nil, ErrNotAccepted
		}
	}

	var answers []models.Answer
	if err := s.DB.Where("round_id = ?", roundID).
		Order("created_at ASC").
		Find(&answers).Error; err != nil {
		return nil, err
	}
	for i := range answers {
		if answers[i].MediaID != nil {
			answers[i].MediaURL = s.Media.Resolve(*answers[i].MediaID)
		}
	}
	return answers, nil
}

func loadRound(tx *gorm.DB, roundID string) (*models.Round, error) {
	var round models.Round
	if err := tx.First(&round, "id = ?", roundID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: round %s", ErrNotFound, roundID)
		}
		return nil, err
	}
	return &round, nil
}

// ownedRound loads a round and checks the caller owns its spec.
func (s *RoundService) ownedRound(tx *gorm.DB, ownerID, roundID string) (*models.Round, error) {
	round, err := loadRound(tx, roundID)
	if err != nil {
		return nil, err
	}
	var spec models.Spec
	if err := tx.First(&spec, "id = ?", round.SpecID).Error; err != nil {
		return nil, err
	}
	if spec.OwnerID != ownerID {
		return nil, ErrUnauthorized
	}
	return round, nil
}

// --- HTTP handlers ---

// StartRound handles POST /specs/:id/rounds.
func (s *RoundService) StartRound(c *fiber.Ctx) error {
	type Req struct {
		QuestionText     string `json:"question_text"`
		EliminationCount int    `json:"elimination_count"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	round, err := s.Start(callerID(c), c.Params("id"), req.QuestionText, req.EliminationCount)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(round)
}

// SubmitRoundAnswer handles POST /rounds/:id/answers.
func (s *RoundService) SubmitRoundAnswer(c *fiber.Ctx) error {
	type Req struct {
		AnswerText string  `json:"answer_text"`
		MediaID    *string `json:"media_id,omitempty"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	answer, err := s.SubmitAnswer(callerID(c), c.Params("id"), req.AnswerText, req.MediaID)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(answer)
}

// CloseRound handles POST /rounds/:id/close.
func (s *RoundService) CloseRound(c *fiber.Ctx) error {
	round, err := s.Close(callerID(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(round)
}

// CompleteRound handles POST /rounds/:id/complete.
func (s *RoundService) CompleteRound(c *fiber.Ctx) error {
	round, err := s.Complete(callerID(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(round)
}

// UpdateRoundQuestion handles PATCH /rounds/:id.
func (s *RoundService) UpdateRoundQuestion(c *fiber.Ctx) error {
	type Req struct {
		QuestionText string `json:"question_text"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	round, err := s.UpdateQuestion(callerID(c), c.Params("id"), req.QuestionText)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(round)
}

// EliminateRoundUsers handles POST /rounds/:id/eliminations.
func (s *RoundService) EliminateRoundUsers(c *fiber.Ctx) error {
	type Req struct {
		UserIDs []string `json:"user_ids"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	result, err := s.Eliminate(callerID(c), c.Params("id"), req.UserIDs)
	if err != nil {
		return fail(c, err)
	}
	resp := fiber.Map{"eliminated": result.Eliminated}
	if result.Winner != nil {
		resp["winner"] = result.Winner
		resp["resolve_required"] = true
	}
	return c.JSON(resp)
}

// GetRoundAnswers handles GET /rounds/:id/answers.
func (s *RoundService) GetRoundAnswers(c *fiber.Ctx) error {
	answers, err := s.Answers(callerID(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(answers)
}

// GetUnresponsiveParticipants handles GET /rounds/:id/unresponsive.
func (s *RoundService) GetUnresponsiveParticipants(c *fiber.Ctx) error {
	silent, err := s.Unresponsive(callerID(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"unresponsive": silent})
}
