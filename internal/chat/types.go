package chat

// Message is one chat message in a room.
type Message struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// Request scores one new message against its room history.
type Request struct {
	RoomID             string    `json:"roomId"`
	Messages           []Message `json:"messages"`
	CurrentUserMessage string    `json:"currentUserMessage"`
	CurrentUserID      string    `json:"currentUserId"`
}

// AxisScore is one scorer's verdict on a single axis.
type AxisScore struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Adjudication is the final synthesized safety decision.
type Adjudication struct {
	FinalScore float64 `json:"final_safety_score"`
	TriggerSOS bool    `json:"trigger_sos"`
	Reason     string  `json:"reason"`
	SOSContext string  `json:"sos_context"`
}

// Decision buckets the adjudication for side effects and metrics.
type Decision string

const (
	DecisionSOS        Decision = "sos"
	DecisionSuspicious Decision = "suspicious"
	DecisionClean      Decision = "clean"
)

// Result is returned to the chat caller.
type Result struct {
	FinalScore float64   `json:"final_score"`
	TriggerSOS bool      `json:"trigger_sos"`
	SOSContext string    `json:"sos_context"`
	Analysis   string    `json:"analysis"`
	Decision   Decision  `json:"decision"`
	Details    AxisSet   `json:"details"`
}

// AxisSet carries the three per-axis scores for transparency.
type AxisSet struct {
	Sentiment AxisScore `json:"sentiment"`
	Urgency   AxisScore `json:"urgency"`
	Severity  AxisScore `json:"severity"`
}
