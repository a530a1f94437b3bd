// Package chat scores live room messages for emergency and harassment
// signals: three parallel axis scorers feed a final adjudicator whose
// decision conditionally logs SOS or suspicious events to the backend.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"urbanflow/internal/backend"
	"urbanflow/internal/logging"
	"urbanflow/internal/metrics"
	"urbanflow/internal/perception"
)

const adjudicatorPrompt = `ROLE: Senior Safety Operations Director.
GOAL: Synthesize expert reports to determine a Final Safety Score (1-10) and action triggers.

DECISION MATRIX:

CASE A: [SOS TRIGGER = TRUE]
- IF Urgency > 0.8 OR Severity > 0.9.
- IF Explicit plea for help ("Call police").
- SCORE MUST BE: 1.0 to 3.0.

CASE B: [SUSPICIOUS/HARASSMENT LOGGING]
- IF Severity > 0.5 OR Sentiment < 0.3.
- IF Persistence after rejection.
- SCORE MUST BE: 4.0 to 7.9.
- TRIGGER SOS: FALSE.

CASE C: [SAFE]
- Normal conversation.
- SCORE MUST BE: 8.0 to 10.0.
- TRIGGER SOS: FALSE.`

var adjudicationSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"final_safety_score": map[string]interface{}{"type": "number"},
		"trigger_sos":        map[string]interface{}{"type": "boolean"},
		"reason":             map[string]interface{}{"type": "string"},
		"sos_context":        map[string]interface{}{"type": "string"},
	},
	"required": []interface{}{"final_safety_score", "trigger_sos", "reason", "sos_context"},
}

// suspiciousThreshold: adjudicated scores below this (without an SOS
// trigger) are logged as suspicious activity.
const suspiciousThreshold = 8.0

// EventLogger receives the conditional side effects. *backend.Client
// satisfies it.
type EventLogger interface {
	LogSOS(ctx context.Context, ev backend.RoomEvent) error
	LogSuspicious(ctx context.Context, ev backend.RoomEvent) error
}

// Scorer runs the chat safety pipeline.
type Scorer struct {
	llm     perception.LLMClient
	events  EventLogger
	timeout time.Duration

	// Synchronous event logging for tests; production fires and forgets.
	syncEvents bool
}

// NewScorer creates the chat safety scorer.
func NewScorer(llm perception.LLMClient, events EventLogger, timeout time.Duration) *Scorer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Scorer{llm: llm, events: events, timeout: timeout}
}

// Score runs three parallel scorers, adjudicates, and triggers logging side
// effects off the critical path. Never returns an error: scorer failures are
// absorbed into neutral findings and a failed adjudication falls back to a
// deterministic matrix over the axis scores.
func (s *Scorer) Score(ctx context.Context, req Request) Result {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var axes AxisSet
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { axes.Sentiment = scoreAxis(gctx, s.llm, axisSentiment, req); return nil })
	g.Go(func() error { axes.Urgency = scoreAxis(gctx, s.llm, axisUrgency, req); return nil })
	g.Go(func() error { axes.Severity = scoreAxis(gctx, s.llm, axisSeverity, req); return nil })
	g.Wait()

	adj := s.adjudicate(ctx, req, axes)

	decision := DecisionClean
	switch {
	case adj.TriggerSOS:
		decision = DecisionSOS
	case adj.FinalScore < suspiciousThreshold:
		decision = DecisionSuspicious
	}
	metrics.ChatDecisions.WithLabelValues(string(decision)).Inc()
	logging.Chat("room=%s user=%s decision=%s score=%.1f", req.RoomID, req.CurrentUserID, decision, adj.FinalScore)

	s.logEvent(decision, req, adj)

	return Result{
		FinalScore: adj.FinalScore,
		TriggerSOS: adj.TriggerSOS,
		SOSContext: adj.SOSContext,
		Analysis:   adj.Reason,
		Decision:   decision,
		Details:    axes,
	}
}

func (s *Scorer) adjudicate(ctx context.Context, req Request, axes AxisSet) Adjudication {
	userPrompt := fmt.Sprintf(`--- LIVE DATA ---
CHAT HISTORY: %s
CURRENT MESSAGE: %q

--- EXPERT FINDINGS ---
1. SENTIMENT (0-1): %.2f -> %s
2. URGENCY (0-1): %.2f -> %s
3. SEVERITY (0-1): %.2f -> %s`,
		historyString(req.Messages), req.CurrentUserMessage,
		axes.Sentiment.Score, axes.Sentiment.Reason,
		axes.Urgency.Score, axes.Urgency.Reason,
		axes.Severity.Score, axes.Severity.Reason)

	raw, err := s.llm.CompleteWithSchema(ctx, adjudicatorPrompt, userPrompt, adjudicationSchema)
	if err != nil {
		logging.ChatWarn("adjudicator failed, using matrix fallback: %v", err)
		return fallbackAdjudication(axes)
	}

	var adj Adjudication
	if err := json.Unmarshal([]byte(perception.CleanJSON(raw)), &adj); err != nil {
		logging.ChatWarn("adjudicator output malformed, using matrix fallback: %v", err)
		return fallbackAdjudication(axes)
	}
	if adj.FinalScore < 1 {
		adj.FinalScore = 1
	}
	if adj.FinalScore > 10 {
		adj.FinalScore = 10
	}
	return adj
}

// fallbackAdjudication applies the decision matrix directly to the axis
// scores when the adjudicating call fails.
func fallbackAdjudication(axes AxisSet) Adjudication {
	switch {
	case axes.Urgency.Score > 0.8 || axes.Severity.Score > 0.9:
		return Adjudication{
			FinalScore: 2.0,
			TriggerSOS: true,
			Reason:     "Adjudicator unavailable; urgency/severity findings indicate immediate danger.",
			SOSContext: axes.Urgency.Reason,
		}
	case axes.Severity.Score > 0.5 || axes.Sentiment.Score < 0.3:
		return Adjudication{
			FinalScore: 5.0,
			Reason:     "Adjudicator unavailable; findings indicate harassment or hostility.",
			SOSContext: axes.Severity.Reason,
		}
	default:
		return Adjudication{
			FinalScore: 9.0,
			Reason:     "Adjudicator unavailable; findings indicate normal conversation.",
		}
	}
}

// logEvent fires the backend side effect. Not awaited by the critical path;
// failures are logged only.
func (s *Scorer) logEvent(decision Decision, req Request, adj Adjudication) {
	if s.events == nil || decision == DecisionClean {
		return
	}

	ev := backend.RoomEvent{
		RoomID:  req.RoomID,
		UserID:  req.CurrentUserID,
		Context: adj.SOSContext,
		Score:   adj.FinalScore,
	}

	send := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var err error
		if decision == DecisionSOS {
			err = s.events.LogSOS(ctx, ev)
		} else {
			err = s.events.LogSuspicious(ctx, ev)
		}
		if err != nil {
			logging.ChatWarn("failed to log %s event for room %s: %v", decision, req.RoomID, err)
		}
	}

	if s.syncEvents {
		send()
		return
	}
	go send()
}
