package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"urbanflow/internal/logging"
	"urbanflow/internal/metrics"
	"urbanflow/internal/perception"
	"urbanflow/internal/report"
)

// FallbackMarker is appended to the reasoning of any arbitration decided by
// the deterministic fallback instead of the model, so consumers can tell the
// two apart.
const FallbackMarker = " [fallback arbitration]"

const uncertainReasoning = "The image provided does not clearly match any reportable category."

const judgeSystemPrompt = `You are the head arbitrator of a civic issue reporting system.
Four specialist departments (WATER, WASTE, INFRASTRUCTURE, ELECTRICITY) have each analyzed
the same citizen report and returned a confidence-scored verdict.

Pick exactly ONE winning category, or UNCERTAIN if no department clearly owns the issue.
Consolidate a final title and severity from the winning verdict, and write reasoning that
explicitly justifies the choice over the competing verdicts.`

// Judge reconciles the specialist verdicts into exactly one decision.
// The model arbitrates; a deterministic confidence ranking takes over when
// the model call fails.
type Judge struct {
	llm     perception.LLMClient
	timeout time.Duration
	floor   float64
}

// NewJudge creates the arbitration judge. floor is the participation floor:
// a winning verdict below it is forced to UNCERTAIN/LOW.
func NewJudge(llm perception.LLMClient, timeout time.Duration, floor float64) *Judge {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Judge{llm: llm, timeout: timeout, floor: floor}
}

// Arbitrate selects the winning category. It never returns an error; a failed
// model call degrades to the deterministic fallback, distinguishable by
// FallbackMarker in the reasoning.
func (j *Judge) Arbitrate(ctx context.Context, verdicts []report.SpecialistVerdict, description string) report.ArbitrationVerdict {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	raw, err := j.llm.CompleteWithSchema(ctx, judgeSystemPrompt, j.buildBrief(verdicts, description), arbitrationSchema)
	if err != nil {
		logging.JudgeWarn("arbitration model call failed, using fallback: %v", err)
		metrics.JudgeFallbacks.Inc()
		return j.fallback(verdicts)
	}

	var verdict report.ArbitrationVerdict
	if err := json.Unmarshal([]byte(perception.CleanJSON(raw)), &verdict); err != nil {
		logging.JudgeWarn("arbitration returned malformed decision, using fallback: %v", err)
		metrics.JudgeFallbacks.Inc()
		return j.fallback(verdicts)
	}

	// Coerce out-of-enum strings; never propagate raw model values.
	verdict.Category = report.ParseCategory(string(verdict.Category))
	verdict.Severity = report.ParseSeverity(string(verdict.Severity))

	// The winner must be one of the categories that actually produced a
	// verdict, or UNCERTAIN.
	winner := findVerdict(verdicts, verdict.Category)
	if verdict.Category != report.CategoryUncertain && winner == nil {
		logging.JudgeWarn("arbitration picked %s but no such verdict exists, coercing to UNCERTAIN", verdict.Category)
		return uncertainVerdict("")
	}

	// Participation floor: applied after validation, overriding the model's
	// stated category when the winning confidence is too low.
	if winner != nil && winner.Result.Confidence < j.floor {
		logging.Judge("winner %s confidence %.2f below floor %.2f, forcing UNCERTAIN", verdict.Category, winner.Result.Confidence, j.floor)
		return uncertainVerdict("")
	}

	// The decision carries the winning specialist's confidence, not anything
	// the arbitration model may have produced.
	verdict.Confidence = 0
	if winner != nil {
		verdict.Confidence = winner.Result.Confidence
	}

	logging.Judge("arbitration decided category=%s severity=%s confidence=%.2f title=%q", verdict.Category, verdict.Severity, verdict.Confidence, verdict.Title)
	return verdict
}

// buildBrief enumerates every specialist's verdict for the arbitration
// prompt. Categories that did not run are listed as such.
func (j *Judge) buildBrief(verdicts []report.SpecialistVerdict, description string) string {
	var b strings.Builder
	b.WriteString("SPECIALIST VERDICTS:\n")
	for _, cat := range report.SpecialistCategories {
		v := findVerdict(verdicts, cat)
		if v == nil {
			fmt.Fprintf(&b, "- %s: did not run\n", cat)
			continue
		}
		fmt.Fprintf(&b, "- %s: confidence=%.2f severity=%s title=%q reasoning=%s\n",
			cat, v.Result.Confidence, v.Result.Severity, v.Result.Title, v.Result.Reasoning)
	}
	if description != "" {
		fmt.Fprintf(&b, "\nCITIZEN DESCRIPTION: %s\n", description)
	}
	return b.String()
}

// fallback ranks verdicts by strict descending confidence, ties broken by
// the fixed category precedence order. Deterministic: identical input yields
// identical output.
func (j *Judge) fallback(verdicts []report.SpecialistVerdict) report.ArbitrationVerdict {
	if len(verdicts) == 0 {
		return uncertainVerdict("Could not identify any specific issue: system failure." + FallbackMarker)
	}

	ranked := make([]report.SpecialistVerdict, len(verdicts))
	copy(ranked, verdicts)
	sort.SliceStable(ranked, func(a, b int) bool {
		if ranked[a].Result.Confidence != ranked[b].Result.Confidence {
			return ranked[a].Result.Confidence > ranked[b].Result.Confidence
		}
		return ranked[a].Category.Precedence() < ranked[b].Category.Precedence()
	})

	winner := ranked[0]
	if winner.Result.Confidence < j.floor {
		return uncertainVerdict(uncertainReasoning + FallbackMarker)
	}

	return report.ArbitrationVerdict{
		Category:   winner.Category,
		Severity:   winner.Result.Severity,
		Title:      winner.Result.Title,
		Reasoning:  winner.Result.Reasoning + FallbackMarker,
		Confidence: winner.Result.Confidence,
	}
}

func findVerdict(verdicts []report.SpecialistVerdict, category report.Category) *report.SpecialistVerdict {
	for i := range verdicts {
		if verdicts[i].Category == category {
			return &verdicts[i]
		}
	}
	return nil
}

func uncertainVerdict(reasoning string) report.ArbitrationVerdict {
	if reasoning == "" {
		reasoning = uncertainReasoning
	}
	return report.ArbitrationVerdict{
		Category:  report.CategoryUncertain,
		Severity:  report.SeverityLow,
		Title:     "Unclassified Report",
		Reasoning: reasoning,
	}
}
