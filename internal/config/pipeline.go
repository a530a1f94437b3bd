package config

import "time"

// PipelineConfig tunes the triage pipeline.
type PipelineConfig struct {
	// EvaluatorTimeout bounds each specialist call. The judge barrier does
	// not start until every invoked evaluator has returned or timed out.
	EvaluatorTimeout string `yaml:"evaluator_timeout"`

	// JudgeTimeout bounds the arbitration call.
	JudgeTimeout string `yaml:"judge_timeout"`

	// ParticipationFloor is the minimum confidence below which a verdict is
	// treated as non-participating. Applied as a post-hoc override after
	// judge validation.
	ParticipationFloor float64 `yaml:"participation_floor"`
}

// DefaultPipelineConfig returns the default pipeline tuning.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		EvaluatorTimeout:   "45s",
		JudgeTimeout:       "45s",
		ParticipationFloor: 0.2,
	}
}

// GetEvaluatorTimeout returns the evaluator per-call timeout as a duration.
func (c PipelineConfig) GetEvaluatorTimeout() time.Duration {
	d, err := time.ParseDuration(c.EvaluatorTimeout)
	if err != nil {
		return 45 * time.Second
	}
	return d
}

// GetJudgeTimeout returns the judge call timeout as a duration.
func (c PipelineConfig) GetJudgeTimeout() time.Duration {
	d, err := time.ParseDuration(c.JudgeTimeout)
	if err != nil {
		return 45 * time.Second
	}
	return d
}
