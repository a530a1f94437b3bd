package sentinel

import (
	"context"
	"time"

	"urbanflow/internal/logging"
	"urbanflow/internal/metrics"
)

// Audio buffering: transcribe once enough PCM has accumulated, keeping a
// tail overlap so keywords spanning a chunk boundary are not lost.
const (
	chunkLimit           = 80000
	chunkOverlap         = 16000
	defaultMinTranscript = 2
)

// Transcriber converts raw PCM audio to text. External collaborator.
type Transcriber interface {
	Transcribe(ctx context.Context, pcm []byte) (string, error)
}

// AlertSink receives keyword alerts. *backend.Client satisfies it.
type AlertSink interface {
	RaiseAudioAlert(ctx context.Context, userID, keyword string) error
}

// Alert is raised when an active keyword is heard.
type Alert struct {
	Status  string `json:"status"`
	Keyword string `json:"keyword"`
}

// Session is one user's live audio watch. Not safe for concurrent use; each
// connection owns its session.
type Session struct {
	userID      string
	keywords    []string
	minLen      int
	buffer      []byte
	transcriber Transcriber
	alerts      AlertSink
}

// NewSession creates a session with the user's cleaned keyword set. minLen
// is the transcript length floor; zero or negative selects the default.
func NewSession(userID string, keywords []string, minLen int, transcriber Transcriber, alerts AlertSink) *Session {
	if minLen <= 0 {
		minLen = defaultMinTranscript
	}
	return &Session{
		userID:      userID,
		keywords:    keywords,
		minLen:      minLen,
		transcriber: transcriber,
		alerts:      alerts,
	}
}

// Keywords returns the active keyword set.
func (s *Session) Keywords() []string {
	return s.keywords
}

// Ingest appends an audio chunk and, once the buffer is full, transcribes it
// and scans for keywords. Returns a non-nil alert when a keyword was heard.
// Transcription failures are absorbed: the watch continues on the next chunk.
func (s *Session) Ingest(ctx context.Context, chunk []byte) (*Alert, error) {
	s.buffer = append(s.buffer, chunk...)
	if len(s.buffer) < chunkLimit {
		return nil, nil
	}

	timer := logging.StartTimer(logging.CategorySentinel, "transcription")
	transcript, err := s.transcriber.Transcribe(ctx, s.buffer)
	timer.StopWithThreshold(10 * time.Second)
	s.rollBuffer()
	if err != nil {
		logging.SentinelWarn("transcription failed for user %s: %v", s.userID, err)
		return nil, nil
	}

	transcript = FilterTranscript(transcript, s.minLen)
	if transcript == "" {
		return nil, nil
	}
	logging.Sentinel("user %s transcript: %q", s.userID, transcript)

	keyword := MatchKeyword(transcript, s.keywords)
	if keyword == "" {
		return nil, nil
	}

	logging.Sentinel("keyword match for user %s: %q", s.userID, keyword)
	metrics.SentinelAlerts.Inc()

	if s.alerts != nil {
		if err := s.alerts.RaiseAudioAlert(ctx, s.userID, keyword); err != nil {
			logging.SentinelWarn("failed to raise alert for user %s: %v", s.userID, err)
		}
	}
	return &Alert{Status: "ALERT_TRIGGERED", Keyword: keyword}, nil
}

func (s *Session) rollBuffer() {
	if len(s.buffer) > chunkOverlap {
		s.buffer = append([]byte(nil), s.buffer[len(s.buffer)-chunkOverlap:]...)
	}
}
