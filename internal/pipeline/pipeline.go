// Package pipeline implements the multi-agent triage core: four concurrent
// specialist evaluators fanning into an arbitration judge, followed by
// geospatial duplicate resolution and a create-or-update persistence
// dispatch.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"urbanflow/internal/config"
	"urbanflow/internal/logging"
	"urbanflow/internal/metrics"
	"urbanflow/internal/perception"
	"urbanflow/internal/report"
)

// RecordStore bundles the backend operations the pipeline needs.
type RecordStore interface {
	LocalityChecker
	ReportWriter
}

// AuditLog records completed runs for local inspection. Optional; a nil
// audit log disables recording.
type AuditLog interface {
	RecordRun(sub report.Submission, outcome report.Outcome) error
}

// Pipeline wires the four stages together for one submission at a time.
// Safe for concurrent runs: all per-run state lives on the stack.
type Pipeline struct {
	evaluator  *Evaluator
	judge      *Judge
	resolver   *Resolver
	dispatcher *Dispatcher
	audit      AuditLog

	fetchImage func(ctx context.Context, url string) (perception.ImagePart, error)
}

// New builds the triage pipeline from its collaborators.
func New(llm perception.LLMClient, store RecordStore, cfg *config.Config, audit AuditLog) *Pipeline {
	evalTimeout := cfg.Pipeline.GetEvaluatorTimeout()
	judgeTimeout := cfg.Pipeline.GetJudgeTimeout()
	logging.Pipeline("configured evaluator_timeout=%v judge_timeout=%v participation_floor=%.2f",
		evalTimeout, judgeTimeout, cfg.Pipeline.ParticipationFloor)
	return &Pipeline{
		evaluator:  NewEvaluator(llm, evalTimeout),
		judge:      NewJudge(llm, judgeTimeout, cfg.Pipeline.ParticipationFloor),
		resolver:   NewResolver(store, llm, judgeTimeout),
		dispatcher: NewDispatcher(store),
		audit:      audit,
		fetchImage: perception.FetchImage,
	}
}

// Process runs one submission through the full triage graph and always
// returns an outcome; persistence failure is the only failure class that
// reaches the caller, as a partial success.
func (p *Pipeline) Process(ctx context.Context, sub report.Submission) report.Outcome {
	runID := uuid.NewString()
	rlog := logging.WithRequestID(logging.CategoryPipeline, runID)
	start := time.Now()

	rlog.Info("run started user=%s geohash=%s", sub.UserID, sub.Fingerprint.Geohash)

	// The submission image is fetched once and shared by the evaluators and
	// the duplicate resolver. A failed fetch is not fatal: evaluators absorb
	// it into sentinel verdicts and the run lands on UNCERTAIN.
	image, err := p.fetchImage(ctx, sub.ImageURL)
	if err != nil {
		rlog.Warn("submission image fetch failed: %v", err)
		image = perception.ImagePart{}
	}

	// Fan-out: the specialists run concurrently and share no mutable state.
	// Evaluate never fails, so the join always sees four verdicts.
	evalStart := time.Now()
	verdicts := make([]report.SpecialistVerdict, len(report.SpecialistCategories))
	g, gctx := errgroup.WithContext(ctx)
	for i, category := range report.SpecialistCategories {
		g.Go(func() error {
			verdicts[i] = p.evaluator.Evaluate(gctx, category, image, sub.Description)
			return nil
		})
	}
	g.Wait()
	metrics.StageDuration.WithLabelValues("evaluate").Observe(time.Since(evalStart).Seconds())

	// Fan-in: the judge is the synchronization barrier.
	judgeStart := time.Now()
	verdict := p.judge.Arbitrate(ctx, verdicts, sub.Description)
	metrics.StageDuration.WithLabelValues("arbitrate").Observe(time.Since(judgeStart).Seconds())
	rlog.Info("arbitration: category=%s severity=%s", verdict.Category, verdict.Severity)

	dedupStart := time.Now()
	decision := p.resolver.Resolve(ctx, verdict.Category, sub.Fingerprint, image)
	metrics.StageDuration.WithLabelValues("dedup").Observe(time.Since(dedupStart).Seconds())
	rlog.Info("routing: action=%s", decision.Action)

	outcome := report.Outcome{
		RunID:     runID,
		Category:  verdict.Category,
		Title:     verdict.Title,
		Severity:  verdict.Severity,
		Reasoning: verdict.Reasoning,
		Action:    decision.Action,
	}

	dispatchStart := time.Now()
	reportID, err := p.dispatcher.Dispatch(ctx, sub, verdict, decision)
	metrics.StageDuration.WithLabelValues("dispatch").Observe(time.Since(dispatchStart).Seconds())
	if err != nil {
		outcome.Status = report.OutcomePartial
		outcome.Reasoning = verdict.Reasoning
		rlog.Error("analysis complete but persistence failed: %v", err)
	} else {
		outcome.Status = report.OutcomeSuccess
		outcome.ReportID = reportID
	}

	outcome.Elapsed = time.Since(start)
	metrics.RunOutcomes.WithLabelValues(string(outcome.Status)).Inc()
	rlog.Info("run finished status=%s report=%s elapsed=%v", outcome.Status, outcome.ReportID, outcome.Elapsed)

	if p.audit != nil {
		if err := p.audit.RecordRun(sub, outcome); err != nil {
			logging.StoreError("failed to record run %s: %v", runID, err)
		}
	}
	return outcome
}
