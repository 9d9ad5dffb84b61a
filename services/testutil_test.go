package services

import (
	"mime/multipart"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"spec-dating-system/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// In-memory SQLite is per-connection; keep everything on one.
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Spec{},
		&models.Requirement{},
		&models.Application{},
		&models.Round{},
		&models.Answer{},
		&models.Date{},
		&models.MemberProfile{},
	))
	return db
}

type notifyCall struct {
	UserID  string
	Type    string
	Payload map[string]interface{}
}

// recordingNotifier captures notifications for assertions.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *recordingNotifier) Notify(userID, notifType string, payload map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{UserID: userID, Type: notifType, Payload: payload})
}

func (n *recordingNotifier) byType(notifType string) []notifyCall {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifyCall
	for _, c := range n.calls {
		if c.Type == notifType {
			out = append(out, c)
		}
	}
	return out
}

// stubMedia satisfies utils.MediaStore without any remote storage.
type stubMedia struct{}

func (stubMedia) Upload(_ *multipart.FileHeader, key string) (string, error) {
	return "https://cdn.test/" + key, nil
}

func (stubMedia) Resolve(mediaID string) string {
	return "https://cdn.test/" + mediaID
}

type fixture struct {
	db     *gorm.DB
	notes  *recordingNotifier
	hub    *EventHub
	specs  *SpecService
	apps   *ApplicationService
	rounds *RoundService
	feed   *FeedService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	notes := &recordingNotifier{}
	hub := NewEventHub()
	return &fixture{
		db:     db,
		notes:  notes,
		hub:    hub,
		specs:  NewSpecService(db, notes),
		apps:   &ApplicationService{DB: db, Notifier: notes, ApprovalPolicy: ApprovalPolicyIdempotent},
		rounds: NewRoundService(db, hub, notes, stubMedia{}),
		feed:   NewFeedService(db),
	}
}

// createSpec makes a 7-day, 5-slot spec through the real create path.
func (f *fixture) createSpec(t *testing.T, ownerID string, reqs ...RequirementInput) *models.Spec {
	t.Helper()
	spec, err := f.specs.Create(ownerID, CreateSpecInput{
		Title:           "Coffee in Lagos",
		Description:     "Looking for someone to explore the city with",
		City:            "Lagos",
		DurationDays:    7,
		MaxParticipants: 5,
		Requirements:    reqs,
	})
	require.NoError(t, err)
	return spec
}

func (f *fixture) profile(t *testing.T, userID string, mutate func(*models.MemberProfile)) {
	t.Helper()
	p := models.MemberProfile{
		ID:             uuid.NewString(),
		ExternalUserID: userID,
		Username:       "user-" + userID,
	}
	if mutate != nil {
		mutate(&p)
	}
	require.NoError(t, f.db.Create(&p).Error)
}

// acceptedParticipant seeds an already-accepted application directly.
func (f *fixture) acceptedParticipant(t *testing.T, specID, userID string) *models.Application {
	t.Helper()
	app := &models.Application{
		ID:       uuid.NewString(),
		SpecID:   specID,
		UserID:   userID,
		UserRole: models.RoleParticipant,
		Status:   models.ApplicationStatusAccepted,
	}
	require.NoError(t, f.db.Create(app).Error)
	return app
}

func (f *fixture) applicationStatus(t *testing.T, appID string) string {
	t.Helper()
	var app models.Application
	require.NoError(t, f.db.First(&app, "id = ?", appID).Error)
	return app.Status
}

func (f *fixture) reloadSpec(t *testing.T, specID string) *models.Spec {
	t.Helper()
	var spec models.Spec
	require.NoError(t, f.db.First(&spec, "id = ?", specID).Error)
	return &spec
}

func bornYearsAgo(years int) *time.Time {
	t := time.Now().AddDate(-years, 0, -1)
	return &t
}

func floatPtr(v float64) *float64 { return &v }

func boolPtr(v bool) *bool { return &v }
