// Package report defines the domain types for civic-issue triage: categories,
// severities, specialist verdicts, arbitration results, and the routing
// decision that drives persistence. These types are shared by the pipeline,
// the backend client, and the HTTP server.
package report

import "time"

// Category identifies the municipal department responsible for an issue.
type Category string

const (
	CategoryWater          Category = "WATER"
	CategoryWaste          Category = "WASTE"
	CategoryInfrastructure Category = "INFRASTRUCTURE"
	CategoryElectricity    Category = "ELECTRICITY"
	CategoryUncertain      Category = "UNCERTAIN"
)

// SpecialistCategories lists the categories that have a specialist evaluator,
// in precedence order. The order doubles as the deterministic tie-break for
// fallback arbitration: when two verdicts carry equal confidence the earlier
// category here wins.
var SpecialistCategories = []Category{
	CategoryWater,
	CategoryWaste,
	CategoryInfrastructure,
	CategoryElectricity,
}

// ParseCategory maps a raw string to a known category. Anything outside the
// closed set coerces to UNCERTAIN; raw model output must never leak an
// invalid enum value downstream.
func ParseCategory(raw string) Category {
	switch Category(raw) {
	case CategoryWater, CategoryWaste, CategoryInfrastructure, CategoryElectricity, CategoryUncertain:
		return Category(raw)
	default:
		return CategoryUncertain
	}
}

// Precedence returns the tie-break rank of a category (lower wins).
// UNCERTAIN ranks below all specialists.
func (c Category) Precedence() int {
	for i, cat := range SpecialistCategories {
		if c == cat {
			return i
		}
	}
	return len(SpecialistCategories)
}

// Severity grades how urgent an issue is.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// ParseSeverity coerces a raw string to a known severity; unknown values
// coerce to LOW.
func ParseSeverity(raw string) Severity {
	switch Severity(raw) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(raw)
	default:
		return SeverityLow
	}
}

// Status tracks a report record's lifecycle in the backend store.
type Status string

const (
	StatusInitiated Status = "INITIATED"
	StatusVerified  Status = "VERIFIED"
	StatusAssigned  Status = "ASSIGNED"
	StatusResolved  Status = "RESOLVED"
)

// EvaluationResult is the structured verdict one specialist evaluator
// produces for a single image. Immutable once returned.
type EvaluationResult struct {
	Title      string   `json:"title"`
	Confidence float64  `json:"confidence"`
	Severity   Severity `json:"severity"`
	Reasoning  string   `json:"reasoning"`
}

// SpecialistVerdict tags an EvaluationResult with the category of the
// evaluator that produced it. A pipeline run yields zero to four of these;
// an evaluator that sees nothing in its jurisdiction still returns a result
// with near-zero confidence rather than being absent.
type SpecialistVerdict struct {
	Category Category
	Result   EvaluationResult
}

// ArbitrationVerdict is the judge's consolidated decision: exactly one per
// run. Category is always a member of the closed enum (UNCERTAIN when no
// specialist claimed the issue or the judge could not decide). Confidence is
// the winning specialist's confidence, 0.0 for UNCERTAIN.
type ArbitrationVerdict struct {
	Category   Category `json:"category"`
	Severity   Severity `json:"severity"`
	Title      string   `json:"title"`
	Reasoning  string   `json:"reasoning"`
	Confidence float64  `json:"confidence"`
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeoFingerprint is the dedup key: a location plus the geohash the caller
// computed for it. The two always travel together.
type GeoFingerprint struct {
	Location Location `json:"location"`
	Geohash  string   `json:"geohash"`
}

// Action selects the persistence path for a run.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
)

// MatchedRecord carries the identifying fields of a confirmed duplicate,
// needed to build the update payload.
type MatchedRecord struct {
	ReportID string `json:"reportId"`
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	ImageURL string `json:"imageUrl"`
}

// RoutingDecision is computed once per run by the duplicate resolver and
// consumed immediately by the dispatcher. Matched is non-nil only when the
// action is UPDATE; an unconfirmed candidate never leaks into a CREATE.
type RoutingDecision struct {
	Action  Action
	Matched *MatchedRecord
}

// Submission is the inbound report: an image plus optional text, anchored
// to a location. Identity fields come from the authentication collaborator
// and are trusted as given.
type Submission struct {
	UserID      string         `json:"userId"`
	Email       string         `json:"email"`
	ImageURL    string         `json:"imageUrl"`
	Description string         `json:"description,omitempty"`
	Address     string         `json:"address"`
	Fingerprint GeoFingerprint `json:"fingerprint"`
}

// OutcomeStatus discriminates the result returned to the inbound caller.
type OutcomeStatus string

const (
	// OutcomeSuccess means the report was analyzed and persisted.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomePartial means analysis completed but the save or update failed.
	// Callers can tell "we understood the report but didn't store it" apart
	// from a full success.
	OutcomePartial OutcomeStatus = "partial_success"
	// OutcomeFailed covers unexpected errors only.
	OutcomeFailed OutcomeStatus = "failed"
)

// Outcome is the pipeline's final answer for one submission.
type Outcome struct {
	RunID     string        `json:"runId"`
	Status    OutcomeStatus `json:"status"`
	Category  Category      `json:"category"`
	Title     string        `json:"title"`
	Severity  Severity      `json:"severity"`
	Reasoning string        `json:"reasoning"`
	Action    Action        `json:"action,omitempty"`
	ReportID  string        `json:"reportId,omitempty"`
	Elapsed   time.Duration `json:"-"`
}
