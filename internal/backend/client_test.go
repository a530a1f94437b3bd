package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urbanflow/internal/report"
)

func TestCheckLocalityDuplicateFound(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(LocalityResult{
			DuplicateFound: true,
			Data: &LocalityMatch{
				ImageURL: "https://img/prior.jpg",
				UserID:   "user-1",
				ReportID: "rep-9",
				Email:    "prior@example.com",
				Distance: 4.2,
			},
		})
	}))
	t.Cleanup(srv.Close)

	client := New(srv.URL, time.Second)
	fp := report.GeoFingerprint{
		Location: report.Location{Lat: 12.9716, Lng: 77.5946},
		Geohash:  "tdr1vc",
	}
	result, err := client.CheckLocality(context.Background(), report.CategoryWater, fp)
	require.NoError(t, err)

	assert.Equal(t, "/locality/waterCheck", gotPath)
	assert.Equal(t, "tdr1vc", gotBody["geohash"])
	require.True(t, result.DuplicateFound)
	assert.Equal(t, "rep-9", result.Data.ReportID)
	assert.Equal(t, "prior@example.com", result.Data.Email)
}

func TestCheckLocalityRoutesPerCategory(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(LocalityResult{DuplicateFound: false})
	}))
	t.Cleanup(srv.Close)

	client := New(srv.URL, time.Second)
	fp := report.GeoFingerprint{Geohash: "tdr1vc"}

	tests := []struct {
		category report.Category
		path     string
	}{
		{report.CategoryWaste, "/locality/wasteCheck"},
		{report.CategoryInfrastructure, "/locality/infraCheck"},
		{report.CategoryElectricity, "/locality/electricityCheck"},
	}
	for _, tt := range tests {
		_, err := client.CheckLocality(context.Background(), tt.category, fp)
		require.NoError(t, err)
		assert.Equal(t, tt.path, gotPath)
	}
}

func TestCheckLocalityUncertainSkipsLookup(t *testing.T) {
	// No server: UNCERTAIN has no locality route and must not hit the network.
	client := New("http://127.0.0.1:0", time.Second)
	result, err := client.CheckLocality(context.Background(), report.CategoryUncertain, report.GeoFingerprint{})
	require.NoError(t, err)
	assert.False(t, result.DuplicateFound)
}

func TestCheckLocalityNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := New(srv.URL, time.Second)
	_, err := client.CheckLocality(context.Background(), report.CategoryWater, report.GeoFingerprint{Geohash: "tdr1vc"})
	require.Error(t, err)
}

func TestSaveReport(t *testing.T) {
	var gotPath string
	var gotPayload ReportPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(SaveResponse{Status: "VERIFIED", Message: "saved", ReportID: "new-id"})
	}))
	t.Cleanup(srv.Close)

	client := New(srv.URL, time.Second)
	resp, err := client.SaveReport(context.Background(), report.CategoryInfrastructure, ReportPayload{
		UserID:   "user-1",
		Email:    "user@example.com",
		Severity: report.SeverityHigh,
		Status:   report.StatusVerified,
	})
	require.NoError(t, err)

	assert.Equal(t, "/reports/infrastructureReports", gotPath)
	assert.Equal(t, "new-id", resp.ReportID)
	assert.Equal(t, report.StatusVerified, gotPayload.Status)
}

func TestSaveReportMissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(SaveResponse{Status: "FAILED"})
	}))
	t.Cleanup(srv.Close)

	client := New(srv.URL, time.Second)
	_, err := client.SaveReport(context.Background(), report.CategoryWater, ReportPayload{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no report id")
}

func TestUpdateReport(t *testing.T) {
	var gotPath string
	var gotPayload UpdatePayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		json.NewEncoder(w).Encode(SaveResponse{Status: "VERIFIED", ReportID: gotPayload.ReportID})
	}))
	t.Cleanup(srv.Close)

	client := New(srv.URL, time.Second)
	resp, err := client.UpdateReport(context.Background(), report.CategoryWaste, UpdatePayload{
		UserID:    "owner-1",
		Email:     "new@example.com",
		ReportID:  "rep-7",
		Geohash:   "tdr1vc",
		UpdatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	assert.Equal(t, "/reports/updatewasteReports", gotPath)
	assert.Equal(t, "rep-7", resp.ReportID)
	assert.Equal(t, "new@example.com", gotPayload.Email)
}

func TestUpdateReportUncertainRejected(t *testing.T) {
	client := New("http://127.0.0.1:0", time.Second)
	_, err := client.UpdateReport(context.Background(), report.CategoryUncertain, UpdatePayload{ReportID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no update route")
}

func TestRoomEventDefaults(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)

	client := New(srv.URL, time.Second)

	require.NoError(t, client.LogSOS(context.Background(), RoomEvent{RoomID: "room-1", UserID: "u1", Score: 2.5}))
	assert.Equal(t, "/api/room/log-sos", gotPath)
	assert.Equal(t, "CRITICAL", gotBody["severity"])

	require.NoError(t, client.LogSuspicious(context.Background(), RoomEvent{RoomID: "room-1", UserID: "u2", Score: 6.0}))
	assert.Equal(t, "/api/room/log-suspicious", gotPath)
	assert.Equal(t, "MODERATE", gotBody["severity"])

	require.NoError(t, client.ThrottleRoom(context.Background(), ThrottleEvent{TriggeredByUserID: "u3", RoomID: "room-1"}))
	assert.Equal(t, "/api/room/throttle-room", gotPath)
	assert.Equal(t, "HIGH", gotBody["alertLevel"])
	assert.NotEmpty(t, gotBody["timestamp"])
}

func TestFetchSafetyKeywords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/users/user-1/safety-keywords", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"safetyKeywords": []string{`"bachao"`, "danger "},
		})
	}))
	t.Cleanup(srv.Close)

	client := New(srv.URL, time.Second)
	words, err := client.FetchSafetyKeywords(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, []string{`"bachao"`, "danger "}, words)
}

func TestFetchSafetyKeywordsError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	client := New(srv.URL, time.Second)
	_, err := client.FetchSafetyKeywords(context.Background(), "user-1")
	require.Error(t, err)
}
