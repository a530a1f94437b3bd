package server

import (
	"encoding/json"
	"net/http"

	"urbanflow/internal/chat"
	"urbanflow/internal/geo"
	"urbanflow/internal/logging"
	"urbanflow/internal/report"
)

type reportRequest struct {
	ImageURL    string          `json:"imageUrl"`
	Description string          `json:"description"`
	Location    report.Location `json:"location"`
	Address     string          `json:"address"`
	Status      string          `json:"status"`
	Geohash     string          `json:"geohash"`
}

type reportResponse struct {
	Status     report.OutcomeStatus `json:"status"`
	Message    string               `json:"message"`
	ReportID   string               `json:"reportId,omitempty"`
	Category   report.Category      `json:"category"`
	Title      string               `json:"title,omitempty"`
	Severity   report.Severity      `json:"severity,omitempty"`
	AIAnalysis string               `json:"ai_analysis"`
	Action     report.Action        `json:"action,omitempty"`
}

func (s *Server) reportsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identity, err := s.auth.Authenticate(r)
	if err != nil {
		logging.APIError("report auth failed: %v", err)
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.ImageURL == "" {
		http.Error(w, "imageUrl required", http.StatusBadRequest)
		return
	}

	fp := report.GeoFingerprint{Location: req.Location, Geohash: req.Geohash}
	if err := geo.ValidateFingerprint(fp); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	sub := report.Submission{
		UserID:      identity.UserID,
		Email:       identity.Email,
		ImageURL:    req.ImageURL,
		Description: req.Description,
		Address:     req.Address,
		Fingerprint: fp,
	}

	outcome := s.triage.Process(r.Context(), sub)

	resp := reportResponse{
		Status:     outcome.Status,
		Category:   outcome.Category,
		AIAnalysis: outcome.Reasoning,
	}
	switch outcome.Status {
	case report.OutcomeSuccess:
		resp.Message = "Report processed successfully"
		resp.ReportID = outcome.ReportID
		resp.Title = outcome.Title
		resp.Severity = outcome.Severity
		resp.Action = outcome.Action
	default:
		resp.Message = "Analysis complete, but save might have failed."
	}
	writeJSON(w, http.StatusOK, resp)
}

type chatResponse struct {
	Status     string        `json:"status"`
	FinalScore float64       `json:"final_score"`
	TriggerSOS bool          `json:"trigger_sos"`
	SOSContext string        `json:"sos_context"`
	Analysis   string        `json:"analysis"`
	Decision   chat.Decision `json:"decision"`
	Details    chat.AxisSet  `json:"details"`
}

func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chat.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.CurrentUserMessage == "" || req.RoomID == "" {
		http.Error(w, "roomId and currentUserMessage required", http.StatusBadRequest)
		return
	}

	result := s.chat.Score(r.Context(), req)

	writeJSON(w, http.StatusOK, chatResponse{
		Status:     "success",
		FinalScore: result.FinalScore,
		TriggerSOS: result.TriggerSOS,
		SOSContext: result.SOSContext,
		Analysis:   result.Analysis,
		Decision:   result.Decision,
		Details:    result.Details,
	})
}

type throttleResponse struct {
	Status     string `json:"status"`
	AIAnalysis string `json:"ai_analysis"`
}

func (s *Server) throttleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chat.ThrottleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.RoomID == "" {
		http.Error(w, "userId and routeId required", http.StatusBadRequest)
		return
	}

	analysis := s.throttle.Analyze(r.Context(), req)

	writeJSON(w, http.StatusOK, throttleResponse{
		Status:     "Emergency Marked",
		AIAnalysis: analysis,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
