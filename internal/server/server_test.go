package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"urbanflow/internal/chat"
	"urbanflow/internal/config"
	"urbanflow/internal/report"
)

type fakeAuth struct {
	identity Identity
	err      error
}

func (f *fakeAuth) Authenticate(r *http.Request) (Identity, error) {
	return f.identity, f.err
}

type fakeTriage struct {
	gotSub  report.Submission
	outcome report.Outcome
}

func (f *fakeTriage) Process(ctx context.Context, sub report.Submission) report.Outcome {
	f.gotSub = sub
	return f.outcome
}

type fakeChat struct {
	gotReq chat.Request
	result chat.Result
}

func (f *fakeChat) Score(ctx context.Context, req chat.Request) chat.Result {
	f.gotReq = req
	return f.result
}

type fakeThrottle struct {
	gotReq   chat.ThrottleRequest
	analysis string
}

func (f *fakeThrottle) Analyze(ctx context.Context, req chat.ThrottleRequest) string {
	f.gotReq = req
	return f.analysis
}

type fakeKeywords struct {
	keywords []string
	err      error
}

func (f *fakeKeywords) FetchSafetyKeywords(ctx context.Context, userID string) ([]string, error) {
	return f.keywords, f.err
}

type serverFixture struct {
	srv      *Server
	auth     *fakeAuth
	triage   *fakeTriage
	chat     *fakeChat
	throttle *fakeThrottle
}

func newFixture(t *testing.T) *serverFixture {
	t.Helper()
	f := &serverFixture{
		auth:     &fakeAuth{identity: Identity{UserID: "auth0|u1", Email: "u1@example.com"}},
		triage:   &fakeTriage{},
		chat:     &fakeChat{},
		throttle: &fakeThrottle{},
	}
	f.srv = New(config.DefaultConfig(), f.auth, f.triage, f.chat, f.throttle, &fakeKeywords{}, nil, nil)
	return f
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func validReportBody() map[string]interface{} {
	return map[string]interface{}{
		"imageUrl":    "https://cdn.example.com/leak.jpg",
		"description": "water gushing from the road",
		"location":    map[string]float64{"lat": 12.9716, "lng": 77.5946},
		"address":     "12 MG Road",
		"status":      "OPEN",
		"geohash":     "tdr1v9",
	}
}

func TestReportsSuccess(t *testing.T) {
	f := newFixture(t)
	f.triage.outcome = report.Outcome{
		RunID:     "run-1",
		Status:    report.OutcomeSuccess,
		Category:  report.CategoryWater,
		Title:     "Burst Water Main",
		Severity:  report.SeverityHigh,
		Reasoning: "visible pipe rupture",
		Action:    report.ActionCreate,
		ReportID:  "rep-7",
	}

	w := postJSON(t, f.srv.reportsHandler, "/reports", validReportBody())
	require.Equal(t, http.StatusOK, w.Code)

	var resp reportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, report.OutcomeSuccess, resp.Status)
	assert.Equal(t, "rep-7", resp.ReportID)
	assert.Equal(t, report.CategoryWater, resp.Category)
	assert.Equal(t, "Burst Water Main", resp.Title)
	assert.Equal(t, report.SeverityHigh, resp.Severity)
	assert.Equal(t, "visible pipe rupture", resp.AIAnalysis)
	assert.Equal(t, report.ActionCreate, resp.Action)

	// The submission carries the authenticated identity, never the body's.
	assert.Equal(t, "auth0|u1", f.triage.gotSub.UserID)
	assert.Equal(t, "u1@example.com", f.triage.gotSub.Email)
	assert.Equal(t, "tdr1v9", f.triage.gotSub.Fingerprint.Geohash)
}

func TestReportsPartialSuccess(t *testing.T) {
	f := newFixture(t)
	f.triage.outcome = report.Outcome{
		RunID:     "run-2",
		Status:    report.OutcomePartial,
		Category:  report.CategoryWaste,
		Reasoning: "overflowing bin",
	}

	w := postJSON(t, f.srv.reportsHandler, "/reports", validReportBody())
	require.Equal(t, http.StatusOK, w.Code)

	var resp reportResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, report.OutcomePartial, resp.Status)
	assert.Empty(t, resp.ReportID)
	assert.Equal(t, report.CategoryWaste, resp.Category)
	assert.Contains(t, resp.Message, "save might have failed")
}

func TestReportsUnauthorized(t *testing.T) {
	f := newFixture(t)
	f.auth.err = errors.New("bad token")

	w := postJSON(t, f.srv.reportsHandler, "/reports", validReportBody())
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestReportsRejectsBadFingerprint(t *testing.T) {
	f := newFixture(t)
	body := validReportBody()
	body["geohash"] = ""

	w := postJSON(t, f.srv.reportsHandler, "/reports", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestReportsRejectsMissingImage(t *testing.T) {
	f := newFixture(t)
	body := validReportBody()
	body["imageUrl"] = ""

	w := postJSON(t, f.srv.reportsHandler, "/reports", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatScore(t *testing.T) {
	f := newFixture(t)
	f.chat.result = chat.Result{
		FinalScore: 3.2,
		TriggerSOS: true,
		SOSContext: "user in danger",
		Analysis:   "distress signals in message",
		Decision:   chat.DecisionSOS,
	}

	w := postJSON(t, f.srv.chatHandler, "/chat/score", chat.Request{
		RoomID:             "room-1",
		CurrentUserMessage: "please someone help me",
		CurrentUserID:      "u1",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, 3.2, resp.FinalScore)
	assert.True(t, resp.TriggerSOS)
	assert.Equal(t, chat.DecisionSOS, resp.Decision)
	assert.Equal(t, "room-1", f.chat.gotReq.RoomID)
}

func TestChatScoreRejectsEmptyMessage(t *testing.T) {
	f := newFixture(t)

	w := postJSON(t, f.srv.chatHandler, "/chat/score", chat.Request{RoomID: "room-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestThrottle(t *testing.T) {
	f := newFixture(t)
	f.throttle.analysis = "panic language detected in recent messages"

	w := postJSON(t, f.srv.throttleHandler, "/throttle", chat.ThrottleRequest{
		UserID: "u1",
		RoomID: "route-9",
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp throttleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Emergency Marked", resp.Status)
	assert.Equal(t, "panic language detected in recent messages", resp.AIAnalysis)
	assert.Equal(t, "route-9", f.throttle.gotReq.RoomID)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	f.srv.healthHandler(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

func TestStaticAuthenticator(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/reports", nil)

	id, err := StaticAuthenticator{Identity: Identity{UserID: "dev", Email: "dev@example.com"}}.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "dev", id.UserID)

	_, err = StaticAuthenticator{}.Authenticate(req)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestUserInfoAuthenticator(t *testing.T) {
	idp := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{
			"sub":   "auth0|abc",
			"email": "abc@example.com",
		})
	}))
	defer idp.Close()

	auth := NewUserInfoAuthenticator(idp.URL)

	req := httptest.NewRequest(http.MethodPost, "/reports", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	id, err := auth.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "auth0|abc", id.UserID)
	assert.Equal(t, "abc@example.com", id.Email)

	req.Header.Set("Authorization", "Bearer bad-token")
	_, err = auth.Authenticate(req)
	assert.Error(t, err)

	req.Header.Del("Authorization")
	_, err = auth.Authenticate(req)
	assert.ErrorIs(t, err, ErrUnauthorized)
}
