package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Notification types forwarded to the notification service.
const (
	NotifyJoinRequest         = "join_request"
	NotifyApplicationApproved = "application_approved"
	NotifyApplicationRejected = "application_rejected"
	NotifyEliminated          = "eliminated"
	NotifyExtendSearch        = "extend_search"
)

// Notifier delivers out-of-band notifications to users. Delivery is
// best-effort and fire-and-forget: failures are logged and never retried,
// and never surfaced as the triggering operation's error.
type Notifier interface {
	Notify(userID, notifType string, payload map[string]interface{})
}

// HTTPNotifier posts notifications to the external notification service.
type HTTPNotifier struct {
	BaseURL      string
	ServiceToken string
	HTTPClient   *http.Client
}

// NewNotifierFromEnv builds an HTTPNotifier from NOTIFY_SERVICE_URL and
// SPEC_SERVICE_TOKEN, falling back to a log-only notifier when the URL is
// not configured (local development).
func NewNotifierFromEnv() Notifier {
	baseURL := os.Getenv("NOTIFY_SERVICE_URL")
	if baseURL == "" {
		log.Println("⚠️  NOTIFY_SERVICE_URL not set — notifications will only be logged")
		return LogNotifier{}
	}
	return &HTTPNotifier{
		BaseURL:      baseURL,
		ServiceToken: os.Getenv("SPEC_SERVICE_TOKEN"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (n *HTTPNotifier) Notify(userID, notifType string, payload map[string]interface{}) {
	go func() {
		body, err := json.Marshal(map[string]interface{}{
			"user_id": userID,
			"type":    notifType,
			"payload": payload,
		})
		if err != nil {
			log.Printf("[NOTIFY] ❌ marshal failed for %s/%s: %v", userID, notifType, err)
			return
		}

		req, err := http.NewRequest(http.MethodPost, fmt.Sprintf("%s/api/v1/notifications", n.BaseURL), bytes.NewReader(body))
		if err != nil {
			log.Printf("[NOTIFY] ❌ request build failed for %s/%s: %v", userID, notifType, err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		if n.ServiceToken != "" {
			req.Header.Set("Authorization", "Bearer "+n.ServiceToken)
		}

		resp, err := n.HTTPClient.Do(req)
		if err != nil {
			log.Printf("[NOTIFY] ❌ delivery failed for %s/%s: %v", userID, notifType, err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			log.Printf("[NOTIFY] ❌ notification service returned %d for %s/%s", resp.StatusCode, userID, notifType)
		}
	}()
}

// LogNotifier writes notifications to the service log instead of delivering
// them anywhere.
type LogNotifier struct{}

func (LogNotifier) Notify(userID, notifType string, payload map[string]interface{}) {
	log.Printf("[NOTIFY] 📣 user=%s type=%s payload=%v", userID, notifType, payload)
}
