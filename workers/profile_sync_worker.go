package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"spec-dating-system/models"
)

// RemoteProfile matches the JSON the profile service returns for one user.
// Matching attributes are nullable so absent values stay absent locally and
// requirements over them fail closed.
type RemoteProfile struct {
	ExternalID    string     `json:"external_id"`
	Username      string     `json:"username"`
	DateOfBirth   *time.Time `json:"date_of_birth,omitempty"`
	HeightCM      *float64   `json:"height_cm,omitempty"`
	Sex           string     `json:"sex,omitempty"`
	Occupation    string     `json:"occupation,omitempty"`
	Qualification string     `json:"qualification,omitempty"`
	Smoker        *bool      `json:"smoker,omitempty"`
	City          string     `json:"city,omitempty"`
	Country       string     `json:"country,omitempty"`
	Genotype      string     `json:"genotype,omitempty"`
	AvatarURL     *string    `json:"avatar_url,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

type profileChangesResponse struct {
	Profiles []RemoteProfile `json:"profiles"`
}

// ProfileSyncWorker mirrors profile-service users into member_profiles so
// the requirement matcher can evaluate eligibility locally.
type ProfileSyncWorker struct {
	db           *gorm.DB
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
}

func NewProfileSyncWorker(db *gorm.DB, syncServiceBaseURL, endpointPath, serviceToken string) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		db:           db,
		baseURL:      syncServiceBaseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// StartScheduler runs an initial backfill and then an incremental sync
// every minute until ctx is cancelled.
func (w *ProfileSyncWorker) StartScheduler(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}

	if err := w.SyncBatch(ctx, time.Time{}); err != nil {
		log.Printf("⚠️ Initial profile sync failed: %v", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			since := w.lastSyncTime()
			if err := w.SyncBatch(ctx, since); err != nil {
				log.Printf("❌ Profile sync batch failed: %v", err)
			}
		}),
	)
	if err != nil {
		return err
	}
	sched.Start()

	go func() {
		<-ctx.Done()
		if err := sched.Shutdown(); err != nil {
			log.Printf("⚠️ Profile sync scheduler shutdown: %v", err)
		}
		log.Println("⏹️ Profile Sync Worker stopped")
	}()
	return nil
}

// lastSyncTime finds the most recent UpdatedAt in the local mirror.
func (w *ProfileSyncWorker) lastSyncTime() time.Time {
	var lastTime time.Time
	err := w.db.Raw("SELECT MAX(updated_at) FROM member_profiles WHERE deleted_at IS NULL").Scan(&lastTime).Error
	if err != nil || lastTime.IsZero() {
		return time.Unix(0, 0)
	}
	return lastTime
}

// SyncBatch fetches profile changes since the given instant and upserts
// them into the local mirror.
func (w *ProfileSyncWorker) SyncBatch(ctx context.Context, since time.Time) error {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return fmt.Errorf("invalid profile sync base URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("profile sync request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("profile sync service returned %d: %s", resp.StatusCode, body)
	}

	var changes profileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&changes); err != nil {
		return fmt.Errorf("failed to decode profile sync response: %w", err)
	}
	if len(changes.Profiles) == 0 {
		return nil
	}

	for _, remote := range changes.Profiles {
		if remote.ExternalID == "" {
			continue
		}
		profile := models.MemberProfile{
			ID:             uuid.NewString(),
			ExternalUserID: remote.ExternalID,
			Username:       remote.Username,
			DateOfBirth:    remote.DateOfBirth,
			HeightCM:       remote.HeightCM,
			Sex:            remote.Sex,
			Occupation:     remote.Occupation,
			Qualification:  remote.Qualification,
			Smoker:         remote.Smoker,
			City:           remote.City,
			Country:        remote.Country,
			Genotype:       remote.Genotype,
			AvatarURL:      remote.AvatarURL,
		}
		err := w.db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "external_user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"username", "date_of_birth", "height_cm", "sex", "occupation",
				"qualification", "smoker", "city", "country", "genotype",
				"avatar_url", "updated_at",
			}),
		}).Create(&profile).Error
		if err != nil {
			log.Printf("❌ Failed to upsert profile %s: %v", remote.ExternalID, err)
		}
	}

	log.Printf("[SYNC] ✅ Upserted %d profile change(s) since %s", len(changes.Profiles), since.UTC().Format(time.RFC3339))
	return nil
}
