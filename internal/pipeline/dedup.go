package pipeline

import (
	"context"
	"strings"
	"time"

	"urbanflow/internal/backend"
	"urbanflow/internal/logging"
	"urbanflow/internal/metrics"
	"urbanflow/internal/perception"
	"urbanflow/internal/report"
)

// Terminal dedup states, labeled for metrics.
const (
	dedupNoCandidate  = "no_candidate"
	dedupLookupFailed = "lookup_failed"
	dedupImageFailed  = "image_failed"
	dedupConfirmed    = "confirmed"
	dedupRejected     = "rejected"
)

const similarityPrompt = `Compare these two images of a reported civic issue.
Do they depict the EXACT same physical incident at the same spot, ignoring differences
in lighting, angle, and time of day?

Answer with exactly one word: TRUE or FALSE.`

// LocalityChecker is the duplicate-candidate lookup collaborator.
type LocalityChecker interface {
	CheckLocality(ctx context.Context, category report.Category, fp report.GeoFingerprint) (*backend.LocalityResult, error)
}

// Resolver decides between creating a new record and updating an existing
// one. It is fail-open throughout: any lookup, image or model failure routes
// CREATE, because duplicate detection is an optimization and must never
// block ingestion.
type Resolver struct {
	checker LocalityChecker
	llm     perception.LLMClient
	timeout time.Duration

	// Swappable in tests.
	fetchImage func(ctx context.Context, url string) (perception.ImagePart, error)
}

// NewResolver creates a duplicate resolver.
func NewResolver(checker LocalityChecker, llm perception.LLMClient, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &Resolver{
		checker:    checker,
		llm:        llm,
		timeout:    timeout,
		fetchImage: perception.FetchImage,
	}
}

// Resolve runs the dedup state machine for one submission. newImage is the
// already-fetched submission image; a zero-length image counts as an image
// load failure. Never returns an error.
func (r *Resolver) Resolve(ctx context.Context, category report.Category, fp report.GeoFingerprint, newImage perception.ImagePart) report.RoutingDecision {
	result, err := r.checker.CheckLocality(ctx, category, fp)
	if err != nil {
		logging.DedupWarn("locality lookup failed, routing CREATE: %v", err)
		return r.terminal(dedupLookupFailed, report.RoutingDecision{Action: report.ActionCreate})
	}

	if !result.DuplicateFound || result.Data == nil {
		return r.terminal(dedupNoCandidate, report.RoutingDecision{Action: report.ActionCreate})
	}

	candidate := result.Data
	logging.Dedup("candidate found report=%s distance=%.1fm, running visual confirmation", candidate.ReportID, candidate.Distance)

	confirmed, state := r.visuallyConfirm(ctx, newImage, candidate.ImageURL)
	if !confirmed {
		// An unconfirmed candidate never leaks into the create path.
		return r.terminal(state, report.RoutingDecision{Action: report.ActionCreate})
	}

	return r.terminal(dedupConfirmed, report.RoutingDecision{
		Action: report.ActionUpdate,
		Matched: &report.MatchedRecord{
			ReportID: candidate.ReportID,
			UserID:   candidate.UserID,
			Email:    candidate.Email,
			ImageURL: candidate.ImageURL,
		},
	})
}

// visuallyConfirm asks the model the strict binary question. Any failure
// counts as not-confirmed.
func (r *Resolver) visuallyConfirm(ctx context.Context, newImage perception.ImagePart, candidateURL string) (bool, string) {
	if len(newImage.Data) == 0 {
		logging.DedupWarn("submission image unavailable, routing CREATE")
		return false, dedupImageFailed
	}

	candidateImage, err := r.fetchImage(ctx, candidateURL)
	if err != nil {
		logging.DedupWarn("candidate image fetch failed, routing CREATE: %v", err)
		return false, dedupImageFailed
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	answer, err := r.llm.CompleteVision(ctx, "", similarityPrompt, []perception.ImagePart{newImage, candidateImage}, nil)
	if err != nil {
		logging.DedupWarn("visual confirmation call failed, routing CREATE: %v", err)
		return false, dedupImageFailed
	}

	if strings.Contains(strings.ToUpper(strings.TrimSpace(answer)), "TRUE") {
		logging.Dedup("visual confirmation: same incident")
		return true, dedupConfirmed
	}
	logging.Dedup("visual confirmation: different incident")
	return false, dedupRejected
}

func (r *Resolver) terminal(state string, decision report.RoutingDecision) report.RoutingDecision {
	metrics.DedupOutcomes.WithLabelValues(state).Inc()
	logging.Dedup("dedup resolved state=%s action=%s", state, decision.Action)
	return decision
}
