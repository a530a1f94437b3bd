package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"urbanflow/internal/logging"
	"urbanflow/internal/metrics"
	"urbanflow/internal/perception"
	"urbanflow/internal/report"
)

// Evaluator is the single generic specialist implementation, parameterized
// by the category rules table. Four instances of the same code path run per
// submission, one per specialist category.
type Evaluator struct {
	llm     perception.LLMClient
	timeout time.Duration
}

// NewEvaluator creates an evaluator backed by the given model client.
func NewEvaluator(llm perception.LLMClient, timeout time.Duration) *Evaluator {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Evaluator{llm: llm, timeout: timeout}
}

// Evaluate runs one specialist over the submission image. It never returns
// an error: any model or parsing failure is absorbed into a sentinel verdict
// with confidence 0.0 and severity LOW, so the fan-in always receives exactly
// one result per invoked evaluator.
func (e *Evaluator) Evaluate(ctx context.Context, category report.Category, image perception.ImagePart, description string) report.SpecialistVerdict {
	rules, ok := categoryRules[category]
	if !ok {
		return sentinelVerdict(category, fmt.Sprintf("no rules registered for category %s", category))
	}

	// A failed image fetch upstream leaves nothing to analyze; don't burn a
	// model call on an empty part.
	if len(image.Data) == 0 {
		metrics.EvaluatorFailures.WithLabelValues(string(category)).Inc()
		return sentinelVerdict(category, "submission image unavailable")
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	systemPrompt := sharedContext + "\n\n" + rules + "\n\n" + calibrationRubric

	userPrompt := "Analyze this image according to your instructions."
	if description != "" {
		userPrompt += fmt.Sprintf("\n\nUSER REPORT DESCRIPTION: '%s'\n(Use this context to inform the title and reasoning, but prioritize visual evidence for the severity.)", description)
	}

	raw, err := e.llm.CompleteVision(ctx, systemPrompt, userPrompt, []perception.ImagePart{image}, evaluationSchema)
	if err != nil {
		logging.EvaluatorWarn("%s evaluator model call failed: %v", category, err)
		metrics.EvaluatorFailures.WithLabelValues(string(category)).Inc()
		return sentinelVerdict(category, fmt.Sprintf("model call failed: %v", err))
	}

	var result report.EvaluationResult
	if err := json.Unmarshal([]byte(perception.CleanJSON(raw)), &result); err != nil {
		logging.EvaluatorWarn("%s evaluator returned malformed verdict: %v", category, err)
		metrics.EvaluatorFailures.WithLabelValues(string(category)).Inc()
		return sentinelVerdict(category, fmt.Sprintf("malformed verdict: %v", err))
	}

	// Clamp and coerce: raw model output never leaks invalid values.
	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 1 {
		result.Confidence = 1
	}
	result.Severity = report.ParseSeverity(string(result.Severity))
	if result.Title == "" {
		result.Title = "Untitled Analysis"
	}
	if result.Reasoning == "" {
		result.Reasoning = "No reasoning provided"
	}

	logging.Evaluator("%s verdict: confidence=%.2f severity=%s title=%q", category, result.Confidence, result.Severity, result.Title)
	return report.SpecialistVerdict{Category: category, Result: result}
}

func sentinelVerdict(category report.Category, reason string) report.SpecialistVerdict {
	return report.SpecialistVerdict{
		Category: category,
		Result: report.EvaluationResult{
			Title:      "Analysis Error",
			Confidence: 0.0,
			Severity:   report.SeverityLow,
			Reasoning:  "Error during analysis: " + reason,
		},
	}
}
