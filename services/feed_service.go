package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"spec-dating-system/models"
)

// Feed modes. Filter values are case-insensitive; an absent filter means
// live.
const (
	FeedModeLive    = "live"
	FeedModePopular = "popular"
	FeedModeHottest = "hottest"
	FeedModeOngoing = "ongoing"
)

const (
	feedPageSize    = 10
	mySpecsPageSize = 20

	liveWindowDays    = 2
	hottestWindowDays = 3
	ongoingWindowDays = 2
)

type FeedService struct {
	DB *gorm.DB
}

func NewFeedService(db *gorm.DB) *FeedService {
	return &FeedService{DB: db}
}

// FeedItem is the listing projection of a spec, annotated with its
// participant application count.
type FeedItem struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"owner_id"`
	Title             string    `json:"title"`
	Slug              string    `json:"slug"`
	Description       string    `json:"description"`
	City              string    `json:"city"`
	Status            string    `json:"status"`
	MaxParticipants   int       `json:"max_participants"`
	ExpiresAt         time.Time `json:"expires_at"`
	CreatedAt         time.Time `json:"created_at"`
	ApplicationsCount int64     `json:"applications_count"`
}

// Browse returns one page of the feed for the given mode. Expired and
// non-open specs never appear, whatever the mode.
func (s *FeedService) Browse(requesterID, mode string, excludeOwn bool, page int) ([]FeedItem, error) {
	mode = strings.ToLower(strings.TrimSpace(mode))
	if mode == "" {
		mode = FeedModeLive
	}
	if page < 1 {
		page = 1
	}

	now := time.Now()
	q := s.baseQuery(now)
	if excludeOwn && requesterID != "" {
		q = q.Where("specs.owner_id <> ?", requesterID)
	}

	switch mode {
	case FeedModeLive:
		q = q.Where("specs.created_at >= ?", now.AddDate(0, 0, -liveWindowDays)).
			Order("specs.created_at DESC")
	case FeedModePopular:
		q = q.Order("applications_count DESC, specs.created_at DESC")
	case FeedModeHottest:
		q = q.Where("specs.created_at >= ?", now.AddDate(0, 0, -hottestWindowDays)).
			Order("applications_count DESC, specs.created_at DESC")
	case FeedModeOngoing:
		q = q.Where("specs.expires_at <= ?", now.AddDate(0, 0, ongoingWindowDays)).
			Order("specs.expires_at ASC")
	default:
		return nil, fmt.Errorf("%w: unknown feed filter %q", ErrInvalidInput, mode)
	}

	var items []FeedItem
	err := q.Limit(feedPageSize).
		Offset((page - 1) * feedPageSize).
		Scan(&items).Error
	return items, err
}

// MySpecs lists the requester's own specs, any status, newest first.
func (s *FeedService) MySpecs(ownerID string, page int) ([]FeedItem, error) {
	if page < 1 {
		page = 1
	}
	var items []FeedItem
	err := s.DB.Table("specs").
		Select(feedColumns).
		Joins("LEFT JOIN applications ON applications.spec_id = specs.id AND applications.user_role = ?", models.RoleParticipant).
		Where("specs.owner_id = ?", ownerID).
		Group("specs.id").
		Order("specs.created_at DESC").
		Limit(mySpecsPageSize).
		Offset((page - 1) * mySpecsPageSize).
		Scan(&items).Error
	return items, err
}

const feedColumns = "specs.id, specs.owner_id, specs.title, specs.slug, specs.description, specs.city, " +
	"specs.status, specs.max_participants, specs.expires_at, specs.created_at, " +
	"COUNT(applications.id) AS applications_count"

// baseQuery is the eligible-spec catalog every feed mode starts from: open
// specs whose deadline has not passed, joined with their application count.
func (s *FeedService) baseQuery(now time.Time) *gorm.DB {
	return s.DB.Table("specs").
		Select(feedColumns).
		Joins("LEFT JOIN applications ON applications.spec_id = specs.id AND applications.user_role = ?", models.RoleParticipant).
		Where("specs.status = ? AND specs.expires_at > ?", models.SpecStatusOpen, now).
		Group("specs.id")
}

// --- HTTP handlers ---

// GetFeed handles GET /feed?filter=&exclude_own=&page=.
func (s *FeedService) GetFeed(c *fiber.Ctx) error {
	items, err := s.Browse(
		callerID(c),
		c.Query("filter"),
		c.QueryBool("exclude_own", false),
		c.QueryInt("page", 1),
	)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"specs": items, "page": c.QueryInt("page", 1)})
}

// GetMySpecs handles GET /specs/mine.
func (s *FeedService) GetMySpecs(c *fiber.Ctx) error {
	items, err := s.MySpecs(callerID(c), c.QueryInt("page", 1))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"specs": items, "page": c.QueryInt("page", 1)})
}
