// Package server exposes the triage pipeline, chat safety scorer, throttle
// analyzer and audio sentinel over HTTP.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"urbanflow/internal/chat"
	"urbanflow/internal/config"
	"urbanflow/internal/logging"
	"urbanflow/internal/metrics"
	"urbanflow/internal/report"
	"urbanflow/internal/sentinel"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID string
	Email  string
}

// Authenticator resolves the caller's identity from an incoming request.
type Authenticator interface {
	Authenticate(r *http.Request) (Identity, error)
}

// Triage runs one report submission through the full pipeline.
type Triage interface {
	Process(ctx context.Context, sub report.Submission) report.Outcome
}

// ChatScorer scores one chat message for safety.
type ChatScorer interface {
	Score(ctx context.Context, req chat.Request) chat.Result
}

// ThrottleAnalyzer handles a throttle press and returns the analysis text.
type ThrottleAnalyzer interface {
	Analyze(ctx context.Context, req chat.ThrottleRequest) string
}

// KeywordSource fetches the per-user safety keywords for audio sessions.
type KeywordSource interface {
	FetchSafetyKeywords(ctx context.Context, userID string) ([]string, error)
}

// Server is the HTTP front for all four surfaces.
type Server struct {
	cfg         *config.Config
	auth        Authenticator
	triage      Triage
	chat        ChatScorer
	throttle    ThrottleAnalyzer
	keywords    KeywordSource
	transcriber sentinel.Transcriber
	alerts      sentinel.AlertSink
	upgrader    websocket.Upgrader
	httpServer  *http.Server
	startTime   time.Time
}

// New wires the server. transcriber may be nil, which disables audio
// sessions.
func New(cfg *config.Config, auth Authenticator, triage Triage, scorer ChatScorer, throttle ThrottleAnalyzer, keywords KeywordSource, transcriber sentinel.Transcriber, alerts sentinel.AlertSink) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        auth,
		triage:      triage,
		chat:        scorer,
		throttle:    throttle,
		keywords:    keywords,
		transcriber: transcriber,
		alerts:      alerts,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		startTime: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.instrument("/healthz", s.healthHandler))
	mux.HandleFunc("/reports", s.instrument("/reports", s.reportsHandler))
	mux.HandleFunc("/chat/score", s.instrument("/chat/score", s.chatHandler))
	mux.HandleFunc("/throttle", s.instrument("/throttle", s.throttleHandler))
	mux.HandleFunc("/ws/audio/", s.audioHandler)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	logging.Server("listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) instrument(endpoint string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		elapsed := time.Since(start)
		metrics.RequestCount.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, endpoint).Observe(elapsed.Seconds())
		logging.Server("%s %s -> %d in %v", r.Method, endpoint, rec.status, elapsed)
	}
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Version:   s.cfg.Version,
		Uptime:    time.Since(s.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
