package services

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"

	"spec-dating-system/models"
)

const (
	minDurationDays = 1
	maxDurationDays = 14

	dateCodeLength  = 6
	dateCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	dateCodeRetries = 10
)

type SpecService struct {
	DB       *gorm.DB
	Notifier Notifier
}

func NewSpecService(db *gorm.DB, notifier Notifier) *SpecService {
	return &SpecService{DB: db, Notifier: notifier}
}

// RequirementInput is one eligibility rule supplied at spec creation.
// Values is used with the "in" operator; Value with everything else.
type RequirementInput struct {
	Field        string   `json:"field"`
	Operator     string   `json:"operator"`
	Value        string   `json:"value"`
	Values       []string `json:"values,omitempty"`
	IsCompulsory bool     `json:"is_compulsory"`
}

type CreateSpecInput struct {
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	City            string             `json:"city"`
	Latitude        float64            `json:"latitude"`
	Longitude       float64            `json:"longitude"`
	DurationDays    int                `json:"duration_days"`
	MaxParticipants int                `json:"max_participants"`
	Requirements    []RequirementInput `json:"requirements"`
}

// Create persists the spec, the owner's accepted application and the whole
// requirement set as one transaction. Nothing persists if any part fails.
func (s *SpecService) Create(ownerID string, in CreateSpecInput) (*models.Spec, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner id required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if in.DurationDays < minDurationDays || in.DurationDays > maxDurationDays {
		return nil, fmt.Errorf("%w: duration_days must be between %d and %d", ErrInvalidInput, minDurationDays, maxDurationDays)
	}
	if in.MaxParticipants < 1 {
		return nil, fmt.Errorf("%w: max_participants must be at least 1", ErrInvalidInput)
	}

	now := time.Now()
	spec := &models.Spec{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		Title:           strings.TrimSpace(in.Title),
		Slug:            slug.Make(in.Title),
		Description:     in.Description,
		City:            in.City,
		Latitude:        in.Latitude,
		Longitude:       in.Longitude,
		MaxParticipants: in.MaxParticipants,
		Status:          models.SpecStatusOpen,
		ExpiresAt:       now.AddDate(0, 0, in.DurationDays),
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Requirements", "Applications", "Rounds").Create(spec).Error; err != nil {
			return err
		}

		ownerApp := models.Application{
			ID:       uuid.NewString(),
			SpecID:   spec.ID,
			UserID:   ownerID,
			UserRole: models.RoleOwner,
			Status:   models.ApplicationStatusAccepted,
		}
		if err := tx.Create(&ownerApp).Error; err != nil {
			return err
		}

		for _, rin := range in.Requirements {
			req, err := buildRequirement(spec.ID, rin)
			if err != nil {
				return err
			}
			if err := tx.Create(req).Error; err != nil {
				return err
			}
			spec.Requirements = append(spec.Requirements, *req)
		}
		spec.Applications = append(spec.Applications, ownerApp)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return spec, nil
}

// buildRequirement validates and encodes one rule. Called inside the create
// transaction so a bad rule rolls the whole spec back.
func buildRequirement(specID string, in RequirementInput) (*models.Requirement, error) {
	field := strings.TrimSpace(in.Field)
	if field == "" {
		return nil, fmt.Errorf("%w: requirement field is required", ErrInvalidInput)
	}
	if !models.ValidOperator(in.Operator) {
		return nil, fmt.Errorf("%w: unsupported operator %q", ErrInvalidInput, in.Operator)
	}

	value := strings.TrimSpace(in.Value)
	if in.Operator == models.OpIn {
		if len(in.Values) == 0 {
			return nil, fmt.Errorf("%w: operator \"in\" needs a value list", ErrInvalidInput)
		}
		members := make([]string, 0, len(in.Values))
		for _, v := range in.Values {
			if v = strings.TrimSpace(v); v != "" {
				members = append(members, v)
			}
		}
		value = strings.Join(members, ",")
	} else if value == "" {
		return nil, fmt.Errorf("%w: requirement value is required", ErrInvalidInput)
	}

	return &models.Requirement{
		ID:           uuid.NewString(),
		SpecID:       specID,
		Field:        field,
		Operator:     in.Operator,
		Value:        value,
		IsCompulsory: in.IsCompulsory,
	}, nil
}

// Get loads one spec with its requirement set, rounds and application
// counts.
func (s *SpecService) Get(specID string) (*models.Spec, error) {
	var spec models.Spec
	err := s.DB.
		Preload("Requirements").
		Preload("Rounds", func(db *gorm.DB) *gorm.DB {
			return db.Order("round_number ASC")
		}).
		First(&spec, "id = ?", specID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: spec %s", ErrNotFound, specID)
		}
		return nil, err
	}

	s.DB.Model(&models.Application{}).
		Where("spec_id = ? AND user_role = ?", specID, models.RoleParticipant).
		Count(&spec.ApplicationsCount)
	s.DB.Model(&models.Application{}).
		Where("spec_id = ? AND user_role = ? AND status = ?", specID, models.RoleParticipant, models.ApplicationStatusAccepted).
		Count(&spec.AcceptedCount)
	spec.AvailableSlots = int64(spec.MaxParticipants) - spec.AcceptedCount
	if spec.AvailableSlots < 0 {
		spec.AvailableSlots = 0
	}
	return &spec, nil
}

// ResolveAsMatch turns a finished tournament into a Date between the owner
// and the winner. Requires a winner application and no existing date.
func (s *SpecService) ResolveAsMatch(ownerID, specID string) (*models.Date, error) {
	var date *models.Date
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
			return ErrAlreadyResolved
		}

		var existing int64
		if err := tx.Model(&models.Date{}).Where("spec_id = ?", specID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyResolved
		}

		var winner models.Application
		if err := tx.Where("spec_id = ? AND user_role = ? AND status = ?",
			specID, models.RoleParticipant, models.ApplicationStatusWinner).
			First(&winner).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoWinner
			}
			return err
		}

		code, err := generateDateCode(tx)
		if err != nil {
			return err
		}
		date = &models.Date{
			ID:       uuid.NewString(),
			SpecID:   specID,
			OwnerID:  spec.OwnerID,
			WinnerID: winner.UserID,
			DateCode: code,
		}
		if err := tx.Create(date).Error; err != nil {
			return err
		}

		return tx.Model(&spec).Updates(map[string]interface{}{
			"status":           models.SpecStatusCompleted,
			"current_round_id": nil,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return date, nil
}

// ExtendSearch is the alternative to matching: the winner's application is
// reverted to accepted, the spec reopens for further applicants, and the
// owner's comment is forwarded to the winner.
func (s *SpecService) ExtendSearch(ownerID, specID, comment string) error {
	var winnerUserID string
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
			return ErrAlreadyResolved
		}

		var winner models.Application
		if err := tx.Where("spec_id = ? AND user_role = ? AND status = ?",
			specID, models.RoleParticipant, models.ApplicationStatusWinner).
			First(&winner).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNoWinner
			}
			return err
		}
		winnerUserID = winner.UserID

		if err := tx.Model(&winner).Update("status", models.ApplicationStatusAccepted).Error; err != nil {
			return err
		}

		// Close out any round still in review so the next one can start.
		if spec.CurrentRoundID != nil {
			if err := tx.Model(&models.Round{}).
				Where("id = ?", *spec.CurrentRoundID).
				Update("status", models.RoundStatusCompleted).Error; err != nil {
				return err
			}
		}

		return tx.Model(&spec).Updates(map[string]interface{}{
			"status":           models.SpecStatusOpen,
			"current_round_id": nil,
		}).Error
	})
	if err != nil {
		return err
	}

	s.Notifier.Notify(winnerUserID, NotifyExtendSearch, map[string]interface{}{
		"spec_id": specID,
		"comment": comment,
	})
	return nil
}

// Close is the explicit administrative close: the spec is marked expired
// regardless of its deadline. Owner-only. Completed specs stay completed.
func (s *SpecService) Close(ownerID, specID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
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
			return ErrAlreadyResolved
		}
		return tx.Model(&spec).Updates(map[string]interface{}{
			"status":           models.SpecStatusExpired,
			"current_round_id": nil,
		}).Error
	})
}

// DeleteUserSpecs cascades the deletion of every spec a user owns, in
// foreign-key order, inside one transaction. Invoked by account deletion;
// expiry alone never deletes anything.
func (s *SpecService) DeleteUserSpecs(userID string) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		var specIDs []string
		if err := tx.Model(&models.Spec{}).Where("owner_id = ?", userID).Pluck("id", &specIDs).Error; err != nil {
			return err
		}
		if len(specIDs) == 0 {
			return nil
		}

		roundIDs := tx.Model(&models.Round{}).Select("id").Where("spec_id IN ?", specIDs)
		if err := tx.Where("round_id IN (?)", roundIDs).Delete(&models.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("spec_id IN ?", specIDs).Delete(&models.Round{}).Error; err != nil {
			return err
		}
		if err := tx.Where("spec_id IN ?", specIDs).Delete(&models.Application{}).Error; err != nil {
			return err
		}
		if err := tx.Where("spec_id IN ?", specIDs).Delete(&models.Requirement{}).Error; err != nil {
			return err
		}
		if err := tx.Where("spec_id IN ?", specIDs).Delete(&models.Date{}).Error; err != nil {
			return err
		}
		return tx.Where("id IN ?", specIDs).Delete(&models.Spec{}).Error
	})
}

// generateDateCode draws 6-character alphanumeric codes until one is free.
func generateDateCode(tx *gorm.DB) (string, error) {
	buf := make([]byte, dateCodeLength)
	for attempt := 0; attempt < dateCodeRetries; attempt++ {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		code := make([]byte, dateCodeLength)
		for i, b := range buf {
			code[i] = dateCodeCharset[int(b)%len(dateCodeCharset)]
		}

		var taken int64
		if err := tx.Model(&models.Date{}).Where("date_code = ?", string(code)).Count(&taken).Error; err != nil {
			return "", err
		}
		if taken == 0 {
			return string(code), nil
		}
	}
	return "", fmt.Errorf("could not generate a unique date code after %d attempts", dateCodeRetries)
}

// --- HTTP handlers ---

// CreateSpec handles POST /specs.
func (s *SpecService) CreateSpec(c *fiber.Ctx) error {
	var in CreateSpecInput
	if err := c.BodyParser(&in); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON", "details": err.Error()})
	}
	spec, err := s.Create(callerID(c), in)
	if err != nil {
		return fail(c, err)
	}
	log.Printf("✅ Spec %s created by %s (expires %s)", spec.ID, spec.OwnerID, spec.ExpiresAt.Format(time.RFC3339))
	return c.Status(201).JSON(spec)
}

// GetSpecByID handles GET /specs/:id.
func (s *SpecService) GetSpecByID(c *fiber.Ctx) error {
	spec, err := s.Get(c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"spec":               spec,
		"requirement_groups": models.GroupRequirementsByField(spec.Requirements),
	})
}

// ResolveSpecAsMatch handles POST /specs/:id/resolve/match.
func (s *SpecService) ResolveSpecAsMatch(c *fiber.Ctx) error {
	date, err := s.ResolveAsMatch(callerID(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	log.Printf("💘 Spec %s resolved as match, date code %s", c.Params("id"), date.DateCode)
	return c.Status(201).JSON(fiber.Map{"message": "match resolved", "date": date})
}

// ResolveSpecAsExtendSearch handles POST /specs/:id/resolve/extend.
func (s *SpecService) ResolveSpecAsExtendSearch(c *fiber.Ctx) error {
	type Req struct {
		Comment string `json:"comment"`
	}
	var req Req
	if err := c.BodyParser(&req); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid JSON"})
	}
	if err := s.ExtendSearch(callerID(c), c.Params("id"), req.Comment); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "search extended, spec reopened"})
}

// CloseSpec handles POST /specs/:id/close.
func (s *SpecService) CloseSpec(c *fiber.Ctx) error {
	if err := s.Close(callerID(c), c.Params("id")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "spec closed"})
}

// DeleteOwnSpecs handles DELETE /specs/mine, the account-deletion cascade
// invoked by the profile service when a user is removed.
func (s *SpecService) DeleteOwnSpecs(c *fiber.Ctx) error {
	if err := s.DeleteUserSpecs(callerID(c)); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "specs deleted"})
}

// callerID extracts the gateway-authenticated user id set by the user
// context middleware.
func callerID(c *fiber.Ctx) string {
	if v, ok := c.Locals("user_id").(string); ok {
		return v
	}
	return ""
}
