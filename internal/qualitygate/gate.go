package qualitygate

// Stage names. Syntax and tests are binary; the rest score 0-100. The three
// spec-bound stages only appear when a specification document governs the
// task under review.
const (
	StageSyntax         = "syntax"
	StageTests          = "tests"
	StageArchitecture   = "architecture"
	StageSimplicity     = "simplicity"
	StageErrors         = "errors"
	StageCompleteness   = "completeness"
	StageSpecCompliance = "spec-compliance"
	StageTraceability   = "traceability"
	StageRolloutSafety  = "rollout-safety"
)

// StageResult holds one stage's outcome. Binary stages use Passed only;
// weighted stages use Score and Weight (a zero weight counts as 1).
type StageResult struct {
	Name   string  `json:"name" yaml:"name"`
	Binary bool    `json:"binary" yaml:"binary"`
	Passed bool    `json:"passed" yaml:"passed"`
	Score  float64 `json:"score" yaml:"score"`
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	Detail string  `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Disposition is the lifecycle outcome of a task's review pipeline.
type Disposition string

const (
	DispositionPending         Disposition = "pending"
	DispositionPassed          Disposition = "passed"
	DispositionRejected        Disposition = "rejected"
	DispositionEscalated       Disposition = "escalated"
	DispositionFailedMaxCycles Disposition = "failed-max-cycles"
)

// Result is the snapshot of one completed review cycle for a task.
type Result struct {
	TaskID      string        `json:"taskId" yaml:"task_id"`
	Passed      bool          `json:"passed" yaml:"passed"`
	Score       float64       `json:"score" yaml:"score"`
	Stages      []StageResult `json:"stages" yaml:"stages"`
	Cycle       int           `json:"cycle" yaml:"cycle"`
	MaxCycles   int           `json:"maxCycles" yaml:"max_cycles"`
	ReviewModel string        `json:"reviewModel,omitempty" yaml:"review_model,omitempty"`
	EscalatedTo string        `json:"escalatedTo,omitempty" yaml:"escalated_to,omitempty"`
	FeedbackTo  string        `json:"feedbackTo,omitempty" yaml:"feedback_to,omitempty"`
	Timestamp   string        `json:"timestamp" yaml:"timestamp"`
}

// Aggregate returns the weighted mean of the non-binary stage scores.
// Binary stages never contribute to the aggregate.
func Aggregate(stages []StageResult) float64 {
	var sum, weights float64
	for _, st := range stages {
		if st.Binary {
			continue
		}
		w := st.Weight
		if w == 0 {
			w = 1
		}
		sum += st.Score * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return sum / weights
}

// Evaluate computes the aggregate score and the overall pass flag. A failed
// binary stage fails the result regardless of the aggregate, even when the
// weighted mean clears the threshold.
func Evaluate(stages []StageResult, threshold float64) (float64, bool) {
	score := Aggregate(stages)
	passed := score >= threshold
	for _, st := range stages {
		if st.Binary && !st.Passed {
			passed = false
			break
		}
	}
	return score, passed
}
