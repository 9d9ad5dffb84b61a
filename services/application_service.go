package services

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"spec-dating-system/models"
)

// Approval policies for non-pending applications. "idempotent" lets the
// owner re-approve or re-reject without a guard; "strict" rejects any
// transition off a non-pending application.
const (
	ApprovalPolicyIdempotent = "idempotent"
	ApprovalPolicyStrict     = "strict"
)

type ApplicationService struct {
	DB       *gorm.DB
	Notifier Notifier
	// ApprovalPolicy controls re-approval of non-pending applications.
	ApprovalPolicy string
}

func NewApplicationService(db *gorm.DB, notifier Notifier) *ApplicationService {
	policy := strings.ToLower(os.Getenv("APPROVAL_POLICY"))
	if policy != ApprovalPolicyStrict {
		policy = ApprovalPolicyIdempotent
	}
	return &ApplicationService{DB: db, Notifier: notifier, ApprovalPolicy: policy}
}

// Join runs the requirement gate and creates a pending application. Every
// compulsory rule must match the applicant's current profile attributes;
// non-compulsory rules are informational and never block.
func (s *ApplicationService) Join(specID, userID string) (*models.Application, error) {
	var spec models.Spec
	if err := s.DB.First(&spec, "id = ?", specID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: spec %s", ErrNotFound, specID)
		}
		return nil, err
	}

	if spec.OwnerID == userID {
		return nil, ErrAlreadyOwner
	}
	now := time.Now()
	if spec.Status != models.SpecStatusOpen || spec.IsExpired(now) {
		return nil, ErrSpecClosed
	}

	var existing int64
	if err := s.DB.Model(&models.Application{}).
		Where("spec_id = ? AND user_id = ?", specID, userID).
		Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, ErrDuplicateApplication
	}

	var reqs []models.Requirement
	if err := s.DB.Where("spec_id = ? AND is_compulsory = ?", specID, true).Find(&reqs).Error; err != nil {
		return nil, err
	}
	if len(reqs) > 0 {
		attrs := map[string]string{}
		var profile models.MemberProfile
		err := s.DB.Where("external_user_id = ?", userID).First(&profile).Error
		if err == nil {
			attrs = profile.Attributes(now)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		for _, req := range reqs {
			if !Matches(req, attrs) {
				return nil, fmt.Errorf("%w: %s %s %s", ErrRequirementNotMet, req.Field, req.Operator, req.Value)
			}
		}
	}

	app := &models.Application{
		ID:       uuid.NewString(),
		SpecID:   specID,
		UserID:   userID,
		UserRole: models.RoleParticipant,
		Status:   models.ApplicationStatusPending,
	}
	if err := s.DB.Create(app).Error; err != nil {
		return nil, err
	}

	s.Notifier.Notify(spec.OwnerID, NotifyJoinRequest, map[string]interface{}{
		"spec_id":        specID,
		"application_id": app.ID,
		"user_id":        userID,
	})
	return app, nil
}

// Approve transitions a pending application to accepted, subject to the
// configured approval policy and the spec's participant cap.
func (s *ApplicationService) Approve(ownerID, specID, applicationID string) (*models.Application, error) {
	app, err := s.transition(ownerID, specID, applicationID, models.ApplicationStatusAccepted)
	if err != nil {
		return nil, err
	}
	s.Notifier.Notify(app.UserID, NotifyApplicationApproved, map[string]interface{}{"spec_id": specID})
	return app, nil
}

// Reject transitions a pending application to rejected.
func (s *ApplicationService) Reject(ownerID, specID, applicationID string) (*models.Application, error) {
	app, err := s.transition(ownerID, specID, applicationID, models.ApplicationStatusRejected)
	if err != nil {
		return nil, err
	}
	s.Notifier.Notify(app.UserID, NotifyApplicationRejected, map[string]interface{}{"spec_id": specID})
	return app, nil
}

func (s *ApplicationService) transition(ownerID, specID, applicationID, target string) (*models.Application, error) {
	var app *models.Application
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		spec, err := loadOwnedSpec(tx, ownerID, specID)
		if err != nil {
			return err
		}

		var row models.Application
		if err := lockForUpdate(tx).
			Where("id = ? AND spec_id = ?", applicationID, specID).
			First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: application %s", ErrNotFound, applicationID)
			}
			return err
		}
		if row.UserRole == models.RoleOwner {
			return fmt.Errorf("%w: owner application cannot be moderated", ErrInvalidInput)
		}
		if row.Status != models.ApplicationStatusPending && s.ApprovalPolicy == ApprovalPolicyStrict {
			return ErrInvalidTransition
		}

		if target == models.ApplicationStatusAccepted {
			var accepted int64
			if err := tx.Model(&models.Application{}).
				Where("spec_id = ? AND user_role = ? AND status = ? AND id <> ?",
					specID, models.RoleParticipant, models.ApplicationStatusAccepted, row.ID).
				Count(&accepted).Error; err != nil {
				return err
			}
			if accepted >= int64(spec.MaxParticipants) {
				return ErrSpecFull
			}
		}

		if err := tx.Model(&row).Update("status", target).Error; err != nil {
			return err
		}
		row.Status = target
		app = &row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return app, nil
}

// Eliminate is the owner's manual removal of a participant outside round
// review. Already-eliminated applications are left alone.
func (s *ApplicationService) Eliminate(ownerID, specID, applicationID string) (*models.Application, error) {
	var app models.Application
	var winner *models.Application
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if _, err := loadOwnedSpec(tx, ownerID, specID); err != nil {
			return err
		}
		if err := lockForUpdate(tx).
			Where("id = ? AND spec_id = ?", applicationID, specID).
			First(&app).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: application %s", ErrNotFound, applicationID)
			}
			return err
		}
		if app.UserRole == models.RoleOwner {
			return fmt.Errorf("%w: owner cannot be eliminated", ErrInvalidInput)
		}
		if app.Status == models.ApplicationStatusEliminated {
			return nil
		}
		if err := tx.Model(&app).Update("status", models.ApplicationStatusEliminated).Error; err != nil {
			return err
		}
		app.Status = models.ApplicationStatusEliminated

		var err error
		winner, err = settleLastParticipant(tx, specID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.Notifier.Notify(app.UserID, NotifyEliminated, map[string]interface{}{"spec_id": specID})
	if winner != nil {
		log.Printf("🏆 Spec %s down to one participant: %s is the winner", specID, winner.UserID)
	}
	return &app, nil
}

// ListForSpec returns every application on a spec, owner's moderation view.
func (s *ApplicationService) ListForSpec(ownerID, specID string) ([]models.Application, error) {
	if _, err := loadOwnedSpec(s.DB, ownerID, specID); err != nil {
		return nil, err
	}
	var apps []models.Application
	err := s.DB.Where("spec_id = ?", specID).
		Order("created_at ASC").
		Find(&apps).Error
	return apps, err
}

// ListForUser returns the user's own applications across specs.
func (s *ApplicationService) ListForUser(userID string) ([]models.Application, error) {
	var apps []models.Application
	err := s.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&apps).Error
	return apps, err
}

// loadOwnedSpec fetches a spec and enforces that the caller owns it.
func loadOwnedSpec(tx *gorm.DB, ownerID, specID string) (*models.Spec, error) {
	var spec models.Spec
	if err := tx.First(&spec, "id = ?", specID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: spec %s", ErrNotFound, specID)
		}
		return nil, err
	}
	if spec.OwnerID != ownerID {
		return nil, ErrUnauthorized
	}
	return &spec, nil
}

// settleLastParticipant applies the last-man-standing rule: when exactly one
// accepted non-owner participant remains, that application becomes the
// winner. Returns the winner when the rule fired, nil otherwise.
func settleLastParticipant(tx *gorm.DB, specID string) (*models.Application, error) {
	var remaining []models.Application
	if err := tx.Where("spec_id = ? AND user_role = ? AND status = ?",
		specID, models.RoleParticipant, models.ApplicationStatusAccepted).
		Find(&remaining).Error; err != nil {
		return nil, err
	}
	if len(remaining) != 1 {
		return nil, nil
	}
	winner := remaining[0]
	if err := tx.Model(&winner).Update("status", models.ApplicationStatusWinner).Error; err != nil {
		return nil, err
	}
	winner.Status = models.ApplicationStatusWinner
	return &winner, nil
}

// --- HTTP handlers ---

// JoinSpec handles POST /specs/:id/join.
func (s *ApplicationService) JoinSpec(c *fiber.Ctx) error {
	app, err := s.Join(c.Params("id"), callerID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(fiber.Map{"message": "application submitted", "application": app})
}

// ApproveApplication handles PATCH /specs/:id/applications/:application_id/approve.
func (s *ApplicationService) ApproveApplication(c *fiber.Ctx) error {
	app, err := s.Approve(callerID(c), c.Params("id"), c.Params("application_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "application approved", "application": app})
}

// RejectApplication handles PATCH /specs/:id/applications/:application_id/reject.
func (s *ApplicationService) RejectApplication(c *fiber.Ctx) error {
	app, err := s.Reject(callerID(c), c.Params("id"), c.Params("application_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "application rejected", "application": app})
}

// EliminateApplication handles PATCH /specs/:id/applications/:application_id/eliminate.
func (s *ApplicationService) EliminateApplication(c *fiber.Ctx) error {
	app, err := s.Eliminate(callerID(c), c.Params("id"), c.Params("application_id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "participant eliminated", "application": app})
}

// GetSpecApplications handles GET /specs/:id/applications.
func (s *ApplicationService) GetSpecApplications(c *fiber.Ctx) error {
	apps, err := s.ListForSpec(callerID(c), c.Params("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(apps)
}

// GetMyApplications handles GET /applications/mine.
func (s *ApplicationService) GetMyApplications(c *fiber.Ctx) error {
	apps, err := s.ListForUser(callerID(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(apps)
}
