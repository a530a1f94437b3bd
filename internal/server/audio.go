package server

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"urbanflow/internal/logging"
	"urbanflow/internal/metrics"
	"urbanflow/internal/sentinel"
)

// audioHandler upgrades /ws/audio/{userID} to a websocket, streams raw audio
// chunks into a sentinel session and pushes alert frames back to the client.
func (s *Server) audioHandler(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil || !s.cfg.Sentinel.Enabled {
		http.Error(w, "audio sentinel disabled", http.StatusServiceUnavailable)
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/ws/audio/")
	if userID == "" || strings.Contains(userID, "/") {
		http.Error(w, "user id required", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.ServerError("audio upgrade failed for %s: %v", userID, err)
		return
	}
	defer conn.Close()

	keywords := s.sessionKeywords(r, userID)
	session := sentinel.NewSession(userID, keywords, s.cfg.Sentinel.MinTranscriptLen, s.transcriber, s.alerts)
	logging.Sentinel("audio session open user=%s keywords=%d", userID, len(keywords))

	metrics.ActiveAudioSessions.Inc()
	defer metrics.ActiveAudioSessions.Dec()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.SentinelWarn("audio session user=%s read error: %v", userID, err)
			}
			return
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		alert, err := session.Ingest(r.Context(), data)
		if err != nil {
			logging.SentinelWarn("audio session user=%s ingest error: %v", userID, err)
			continue
		}
		if alert == nil {
			continue
		}

		if err := conn.WriteJSON(alert); err != nil {
			logging.SentinelWarn("audio session user=%s write error: %v", userID, err)
			return
		}
	}
}

// sessionKeywords merges the user's stored keywords with the defaults. Any
// backend failure falls back to defaults so the session still opens.
func (s *Server) sessionKeywords(r *http.Request, userID string) []string {
	userKeywords, err := s.keywords.FetchSafetyKeywords(r.Context(), userID)
	if err != nil {
		logging.SentinelWarn("keyword fetch failed for %s, using defaults: %v", userID, err)
		return sentinel.CleanKeywords(s.cfg.Sentinel.DefaultKeywords, nil)
	}
	return sentinel.CleanKeywords(s.cfg.Sentinel.DefaultKeywords, userKeywords)
}
