package yolo

// Phase is one macro-phase of an autonomous execution run.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseSpecGeneration    Phase = "spec-generation"
	PhaseTaskDecomposition Phase = "task-decomposition"
	PhaseExecuting         Phase = "executing"
	PhaseReviewing         Phase = "reviewing"
	PhaseIntegrationCheck  Phase = "integration-check"
	PhaseRemediating       Phase = "remediating"
	PhaseSynthesizing      Phase = "synthesizing"
	PhaseCompleted         Phase = "completed"
	PhasePaused            Phase = "paused"
	PhaseAborted           Phase = "aborted"
)

type phaseDef struct {
	Order         int
	IsInitial     bool
	IsTerminal    bool
	TransitionsTo []Phase
}

// phases defines the forward transition graph. Paused and aborted are
// handled outside the table: paused is reachable from any non-terminal
// phase, aborted from any phase.
var phases = map[Phase]phaseDef{
	PhaseIdle:              {Order: 0, IsInitial: true, TransitionsTo: []Phase{PhaseSpecGeneration}},
	PhaseSpecGeneration:    {Order: 1, TransitionsTo: []Phase{PhaseTaskDecomposition}},
	PhaseTaskDecomposition: {Order: 2, TransitionsTo: []Phase{PhaseExecuting}},
	PhaseExecuting:         {Order: 3, TransitionsTo: []Phase{PhaseReviewing}},
	PhaseReviewing:         {Order: 4, TransitionsTo: []Phase{PhaseIntegrationCheck, PhaseRemediating}},
	PhaseIntegrationCheck:  {Order: 5, TransitionsTo: []Phase{PhaseSynthesizing, PhaseRemediating}},
	PhaseRemediating:       {Order: 6, TransitionsTo: []Phase{PhaseExecuting, PhaseReviewing, PhaseIntegrationCheck}},
	PhaseSynthesizing:      {Order: 7, TransitionsTo: []Phase{PhaseCompleted}},
	PhaseCompleted:         {Order: 8, IsTerminal: true},
	PhaseAborted:           {Order: 9, IsTerminal: true},
}

// Known reports whether p is a defined phase, including paused.
func Known(p Phase) bool {
	if p == PhasePaused {
		return true
	}
	_, ok := phases[p]
	return ok
}

// Terminal reports whether p permits no further transitions except abort.
func (p Phase) Terminal() bool {
	return phases[p].IsTerminal
}

func (p Phase) canTransitionTo(next Phase) bool {
	for _, t := range phases[p].TransitionsTo {
		if t == next {
			return true
		}
	}
	return false
}

// PauseReason is the closed set of causes for entering the paused phase.
// The reason always arrives in the pause event payload; the machine never
// re-derives which guard fired.
type PauseReason string

const (
	PauseCostCap              PauseReason = "cost-cap"
	PauseTimeout              PauseReason = "timeout"
	PauseApprovalRequired     PauseReason = "approval-required"
	PauseAllTeammatesInError  PauseReason = "all-teammates-in-error"
	PauseRemediationExhausted PauseReason = "remediation-exhausted"
	PauseUserRequest          PauseReason = "user-request"
)

// KnownPauseReason reports whether r belongs to the closed reason set.
func KnownPauseReason(r PauseReason) bool {
	switch r {
	case PauseCostCap, PauseTimeout, PauseApprovalRequired,
		PauseAllTeammatesInError, PauseRemediationExhausted, PauseUserRequest:
		return true
	}
	return false
}

// Mode selects how the run treats mid-execution spec discoveries.
type Mode string

const (
	// ModeFixed never generates spec-evolution proposals.
	ModeFixed Mode = "fixed"
	// ModeSmart queues proposals and, when approval is required, pauses the
	// run until each one is accepted or rejected.
	ModeSmart Mode = "smart"
)

// Config is the active configuration of a run. Cost cap and timeout are
// evaluated by the external orchestrator; they are carried here so the
// supervisor surface can display the limits that govern the run.
type Config struct {
	Mode                          Mode    `json:"mode" yaml:"mode"`
	CostCapUSD                    float64 `json:"costCapUSD" yaml:"cost_cap_usd"`
	TimeoutSeconds                int     `json:"timeoutSeconds" yaml:"timeout_seconds"`
	MaxConcurrent                 int     `json:"maxConcurrent" yaml:"max_concurrent"`
	MaxRemediationRounds          int     `json:"maxRemediationRounds" yaml:"max_remediation_rounds"`
	RequireApprovalForSpecChanges bool    `json:"requireApprovalForSpecChanges" yaml:"require_approval_for_spec_changes"`
}
