package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"urbanflow/internal/logging"
	"urbanflow/internal/perception"
)

// historyWindow bounds how much room history the scorers see.
const historyWindow = 6

type axis string

const (
	axisSentiment axis = "sentiment"
	axisUrgency   axis = "urgency"
	axisSeverity  axis = "severity"
)

var axisPrompts = map[axis]string{
	axisSentiment: `ROLE: Forensic Psycholinguist.
TASK: Analyze the emotional tone and intent of the CURRENT MESSAGE within the context of the chat.

RUBRIC (0.0 - 1.0):
- 0.0: Aggressive, Hateful, Predator-like, Manipulative.
- 0.5: Neutral, Transactional, Bored.
- 1.0: Supportive, Friendly, Respectful.

RULES:
- Ignore profanity if used playfully between friends (check history).
- Flag sudden shifts from friendly to aggressive as LOW score.`,

	axisUrgency: `ROLE: 911 Emergency Dispatcher AI.
TASK: Detect immediate time-sensitive threats in the CURRENT MESSAGE.

RUBRIC (0.0 - 1.0):
- 1.0 (CRITICAL): "Help", "Police", "Followed", "Scared", "Where are you taking me".
- 0.8 (HIGH): "Stop it", "Leave me alone" (repeatedly).
- 0.0 (NONE): Casual chat, "Call me later", "I'm running late".

RULES:
- Context is key. "I'm dying of laughter" is 0.0. "I'm dying, help" is 1.0.`,

	axisSeverity: `ROLE: Threat Intelligence Analyst.
TASK: Classify the specific category of harm in the CURRENT MESSAGE.

RUBRIC (0.0 - 1.0):
- 1.0 (DANGER): Physical threats, kidnapping, sexual assault implication, stalking.
- 0.6 (HARASSMENT): Slurs, persistent unwanted requests, sexual comments.
- 0.2 (RUDE): Insults, arguments.
- 0.0 (SAFE): Normal interaction.

RULES:
- If the user said "NO" or "STOP" in history and this message continues -> score > 0.7.`,
}

var axisSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"score":  map[string]interface{}{"type": "number"},
		"reason": map[string]interface{}{"type": "string"},
	},
	"required": []interface{}{"score", "reason"},
}

func historyString(messages []Message) string {
	if len(messages) == 0 {
		return "No history."
	}
	window := messages
	if len(window) > historyWindow {
		window = window[len(window)-historyWindow:]
	}
	lines := make([]string, 0, len(window))
	for _, m := range window {
		lines = append(lines, fmt.Sprintf("[%s]: %s", m.UserID, m.Message))
	}
	return strings.Join(lines, "\n")
}

// scoreAxis runs one scorer. Failures are absorbed into a neutral 0.5 so the
// adjudicator always sees three findings.
func scoreAxis(ctx context.Context, llm perception.LLMClient, a axis, req Request) AxisScore {
	userPrompt := fmt.Sprintf("CONTEXT (History):\n%s\n\nCURRENT MESSAGE:\n%q", historyString(req.Messages), req.CurrentUserMessage)

	raw, err := llm.CompleteWithSchema(ctx, axisPrompts[a], userPrompt, axisSchema)
	if err != nil {
		logging.ChatWarn("%s scorer failed, using neutral score: %v", a, err)
		return AxisScore{Score: 0.5, Reason: fmt.Sprintf("scorer unavailable: %v", err)}
	}

	var score AxisScore
	if err := json.Unmarshal([]byte(perception.CleanJSON(raw)), &score); err != nil {
		logging.ChatWarn("%s scorer returned malformed output, using neutral score: %v", a, err)
		return AxisScore{Score: 0.5, Reason: "scorer output malformed"}
	}
	if score.Score < 0 {
		score.Score = 0
	}
	if score.Score > 1 {
		score.Score = 1
	}
	return score
}
