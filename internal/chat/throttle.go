package chat

import (
	"context"
	"fmt"
	"time"

	"urbanflow/internal/backend"
	"urbanflow/internal/logging"
	"urbanflow/internal/perception"
)

// ThrottleRequest is the manual emergency button press with recent history.
type ThrottleRequest struct {
	UserID   string    `json:"userId"`
	RoomID   string    `json:"routeId"`
	Messages []Message `json:"message"`
}

const throttleNoAnomaly = "No textual anomaly detected, but throttle pressed by user."

// RoomEscalator records throttle escalations. *backend.Client satisfies it.
type RoomEscalator interface {
	ThrottleRoom(ctx context.Context, ev backend.ThrottleEvent) error
}

// Throttler analyzes the chat context around an emergency throttle press and
// escalates the room.
type Throttler struct {
	llm       perception.LLMClient
	escalator RoomEscalator
	timeout   time.Duration
}

// NewThrottler creates a throttle analyzer.
func NewThrottler(llm perception.LLMClient, escalator RoomEscalator, timeout time.Duration) *Throttler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Throttler{llm: llm, escalator: escalator, timeout: timeout}
}

// Analyze summarizes the emergency context and escalates the room. The
// escalation call is best-effort: a backend failure is logged and the
// analysis is still returned to the caller.
func (t *Throttler) Analyze(ctx context.Context, req ThrottleRequest) string {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	prompt := fmt.Sprintf(`You are an emergency safety analysis AI.

CONTEXT:
A user (User ID: %s) has just pressed the EMERGENCY THROTTLE button.

CHAT HISTORY:
%s

INSTRUCTIONS:
1. If you see threats/distress, summarize the anomaly.
2. If normal, state: %q`, req.UserID, historyString(req.Messages), throttleNoAnomaly)

	analysis, err := t.llm.Complete(ctx, "", prompt)
	if err != nil {
		logging.ChatWarn("throttle analysis failed for room %s: %v", req.RoomID, err)
		analysis = throttleNoAnomaly
	}

	if t.escalator != nil {
		err := t.escalator.ThrottleRoom(ctx, backend.ThrottleEvent{
			TriggeredByUserID: req.UserID,
			RoomID:            req.RoomID,
			AIAnalysis:        analysis,
			AlertLevel:        "HIGH",
			Timestamp:         time.Now().UTC(),
		})
		if err != nil {
			logging.ChatWarn("throttle escalation failed for room %s: %v", req.RoomID, err)
		}
	}
	return analysis
}
