// Package backend is the HTTP client for the record store service that owns
// civic report persistence, room safety logs and user safety keywords.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"urbanflow/internal/logging"
	"urbanflow/internal/report"
)

// Client talks to the record store service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a backend client.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// categoryRoutes maps a report category to its record store route segments.
type categoryRoutes struct {
	check  string
	save   string
	update string
}

var routesByCategory = map[report.Category]categoryRoutes{
	report.CategoryWater:          {check: "waterCheck", save: "waterReports", update: "updatewaterReports"},
	report.CategoryWaste:          {check: "wasteCheck", save: "wasteReports", update: "updatewasteReports"},
	report.CategoryInfrastructure: {check: "infraCheck", save: "infrastructureReports", update: "updateinfrastructureReports"},
	report.CategoryElectricity:    {check: "electricityCheck", save: "electricityReports", update: "updateelectricityReports"},
	report.CategoryUncertain:      {save: "uncertainReports"},
}

// LocalityResult is the duplicate lookup answer for one category and cell
// neighborhood.
type LocalityResult struct {
	DuplicateFound bool           `json:"duplicateFound"`
	Data           *LocalityMatch `json:"data,omitempty"`
}

// LocalityMatch describes the closest stored report within the proximity
// radius.
type LocalityMatch struct {
	ImageURL string  `json:"imageUrl"`
	UserID   string  `json:"userId"`
	ReportID string  `json:"reportId"`
	Email    string  `json:"locality_email"`
	Distance float64 `json:"distance"`
}

// CheckLocality asks the record store whether a nearby report of the same
// category already exists. Categories without a locality route (UNCERTAIN)
// report no duplicate.
func (c *Client) CheckLocality(ctx context.Context, category report.Category, fp report.GeoFingerprint) (*LocalityResult, error) {
	routes, ok := routesByCategory[category]
	if !ok || routes.check == "" {
		return &LocalityResult{DuplicateFound: false}, nil
	}

	reqBody := map[string]interface{}{
		"location": fp.Location,
		"geohash":  fp.Geohash,
	}

	var result LocalityResult
	if err := c.post(ctx, "/locality/"+routes.check, reqBody, &result); err != nil {
		return nil, err
	}

	logging.Dedup("locality check category=%s geohash=%s duplicate=%t", category, fp.Geohash, result.DuplicateFound)
	return &result, nil
}

// SaveResponse is the record store's answer to a save or update.
type SaveResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	ReportID string `json:"reportId"`
}

// ReportPayload is the full document stored for a new report.
type ReportPayload struct {
	UserID      string           `json:"userId"`
	Email       string           `json:"email"`
	ImageURL    string           `json:"imageUrl"`
	Description string           `json:"description"`
	Location    report.Location  `json:"location"`
	Geohash     string           `json:"geohash"`
	Address     string           `json:"address"`
	Title       string           `json:"title"`
	AIAnalysis  string           `json:"aiAnalysis"`
	Confidence  float64          `json:"confidence"`
	Severity    report.Severity  `json:"severity"`
	Category    report.Category  `json:"category"`
	Status      report.Status    `json:"status"`
	Interests   []string         `json:"interests"`
	Upvotes     int              `json:"upvotes"`
	Downvotes   int              `json:"downvotes"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// SaveReport stores a new report document and returns the assigned report ID.
func (c *Client) SaveReport(ctx context.Context, category report.Category, payload ReportPayload) (*SaveResponse, error) {
	routes, ok := routesByCategory[category]
	if !ok {
		routes = routesByCategory[report.CategoryUncertain]
	}

	var resp SaveResponse
	if err := c.post(ctx, "/reports/"+routes.save, payload, &resp); err != nil {
		return nil, err
	}
	if resp.ReportID == "" {
		return nil, fmt.Errorf("save returned no report id (status=%s)", resp.Status)
	}

	logging.Dispatch("saved report category=%s id=%s status=%s", category, resp.ReportID, resp.Status)
	return &resp, nil
}

// UpdatePayload references an existing report to fold a new sighting into.
type UpdatePayload struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email"`
	ReportID  string    `json:"reportId"`
	Geohash   string    `json:"geohash"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// UpdateReport registers the caller's interest in an existing report instead
// of creating a new document.
func (c *Client) UpdateReport(ctx context.Context, category report.Category, payload UpdatePayload) (*SaveResponse, error) {
	routes, ok := routesByCategory[category]
	if !ok || routes.update == "" {
		return nil, fmt.Errorf("category %s has no update route", category)
	}

	var resp SaveResponse
	if err := c.post(ctx, "/reports/"+routes.update, payload, &resp); err != nil {
		return nil, err
	}

	logging.Dispatch("updated report category=%s id=%s status=%s", category, payload.ReportID, resp.Status)
	return &resp, nil
}

// RoomEvent is a chat safety incident logged against a room.
type RoomEvent struct {
	RoomID   string  `json:"routeId"`
	UserID   string  `json:"userId"`
	Context  string  `json:"context"`
	Score    float64 `json:"score"`
	Severity string  `json:"severity"`
}

// LogSOS records a critical SOS event.
func (c *Client) LogSOS(ctx context.Context, ev RoomEvent) error {
	if ev.Severity == "" {
		ev.Severity = "CRITICAL"
	}
	return c.post(ctx, "/api/room/log-sos", ev, nil)
}

// LogSuspicious records a non-emergency suspicious behavior event.
func (c *Client) LogSuspicious(ctx context.Context, ev RoomEvent) error {
	if ev.Severity == "" {
		ev.Severity = "MODERATE"
	}
	return c.post(ctx, "/api/room/log-suspicious", ev, nil)
}

// ThrottleEvent records a manual emergency throttle press with its analysis.
type ThrottleEvent struct {
	TriggeredByUserID string    `json:"triggeredByUserId"`
	RoomID            string    `json:"routeId"`
	AIAnalysis        string    `json:"aiAnalysis"`
	AlertLevel        string    `json:"alertLevel"`
	Timestamp         time.Time `json:"timestamp"`
}

// ThrottleRoom escalates a room after an emergency throttle press.
func (c *Client) ThrottleRoom(ctx context.Context, ev ThrottleEvent) error {
	if ev.AlertLevel == "" {
		ev.AlertLevel = "HIGH"
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return c.post(ctx, "/api/room/throttle-room", ev, nil)
}

// FetchSafetyKeywords returns the user's configured safety trigger words.
// Errors are returned so callers can fall back to defaults.
func (c *Client) FetchSafetyKeywords(ctx context.Context, userID string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/api/users/"+userID+"/safety-keywords", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("keyword fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("keyword fetch failed with status %d", resp.StatusCode)
	}

	var body struct {
		SafetyKeywords []string `json:"safetyKeywords"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse keyword response: %w", err)
	}
	return body.SafetyKeywords, nil
}

// RaiseAudioAlert publishes a critical keyword alert for a user.
func (c *Client) RaiseAudioAlert(ctx context.Context, userID, keyword string) error {
	body := map[string]interface{}{
		"type":      "CRITICAL",
		"source":    "AUDIO_SENTINEL",
		"keyword":   keyword,
		"status":    "ACTIVE",
		"timestamp": time.Now().UTC(),
	}
	return c.post(ctx, "/api/users/"+userID+"/alerts", body, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend %s failed with status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return nil
}
