package pipeline

import (
	"context"
	"time"

	"urbanflow/internal/backend"
	"urbanflow/internal/logging"
	"urbanflow/internal/report"
)

// ReportWriter is the persistence collaborator. The backend does not
// guarantee idempotent writes, so the dispatcher issues exactly one call and
// surfaces failure instead of retrying.
type ReportWriter interface {
	SaveReport(ctx context.Context, category report.Category, payload backend.ReportPayload) (*backend.SaveResponse, error)
	UpdateReport(ctx context.Context, category report.Category, payload backend.UpdatePayload) (*backend.SaveResponse, error)
}

// Dispatcher executes the routing decision against the record store.
type Dispatcher struct {
	writer ReportWriter
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(writer ReportWriter) *Dispatcher {
	return &Dispatcher{writer: writer}
}

// Dispatch performs the create or update. The returned error is a
// persistence failure the caller reports as partial success; analysis
// results stay valid either way.
func (d *Dispatcher) Dispatch(ctx context.Context, sub report.Submission, verdict report.ArbitrationVerdict, decision report.RoutingDecision) (string, error) {
	now := time.Now().UTC()

	if decision.Action == report.ActionUpdate && decision.Matched != nil {
		resp, err := d.writer.UpdateReport(ctx, verdict.Category, backend.UpdatePayload{
			UserID:    decision.Matched.UserID,
			Email:     sub.Email,
			ReportID:  decision.Matched.ReportID,
			Geohash:   sub.Fingerprint.Geohash,
			UpdatedAt: now,
		})
		if err != nil {
			logging.DispatchError("update failed for report %s: %v", decision.Matched.ReportID, err)
			return "", err
		}
		return resp.ReportID, nil
	}

	resp, err := d.writer.SaveReport(ctx, verdict.Category, backend.ReportPayload{
		UserID:      sub.UserID,
		Email:       sub.Email,
		ImageURL:    sub.ImageURL,
		Description: sub.Description,
		Location:    sub.Fingerprint.Location,
		Geohash:     sub.Fingerprint.Geohash,
		Address:     sub.Address,
		Title:       verdict.Title,
		AIAnalysis:  verdict.Reasoning,
		Confidence:  verdict.Confidence,
		Severity:    verdict.Severity,
		Category:    verdict.Category,
		Status:      report.StatusVerified,
		Interests:   []string{sub.Email},
		Upvotes:     0,
		Downvotes:   0,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		logging.DispatchError("save failed: %v", err)
		return "", err
	}
	return resp.ReportID, nil
}
