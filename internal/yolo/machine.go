package yolo

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition marks a phase-change event the transition graph does
// not permit. Callers log it and drop the event; it never aborts the run.
var ErrInvalidTransition = errors.New("invalid phase transition")

// State is the externally visible snapshot of a run.
type State struct {
	Phase            Phase       `json:"phase" yaml:"phase"`
	Objective        string      `json:"objective,omitempty" yaml:"objective,omitempty"`
	Config           Config      `json:"config" yaml:"config"`
	StartedAt        string      `json:"startedAt,omitempty" yaml:"started_at,omitempty"`
	CompletedAt      string      `json:"completedAt,omitempty" yaml:"completed_at,omitempty"`
	RemediationRound int         `json:"remediationRound" yaml:"remediation_round"`
	PauseReason      PauseReason `json:"pauseReason,omitempty" yaml:"pause_reason,omitempty"`
	PausedFrom       Phase       `json:"pausedFrom,omitempty" yaml:"paused_from,omitempty"`
	AbortReason      string      `json:"abortReason,omitempty" yaml:"abort_reason,omitempty"`
	Proposals        []Proposal  `json:"proposals,omitempty" yaml:"proposals,omitempty"`
}

// Machine folds inbound run events into a State. Transitions are driven
// exclusively by events; the machine never polls and never reads the clock.
// It is not safe for concurrent use; the owning session serializes calls.
type Machine struct {
	state State
}

func NewMachine(objective string, cfg Config) *Machine {
	if cfg.Mode == "" {
		cfg.Mode = ModeFixed
	}
	if cfg.MaxRemediationRounds < 0 {
		cfg.MaxRemediationRounds = 0
	}
	return &Machine{state: State{
		Phase:     PhaseIdle,
		Objective: objective,
		Config:    cfg,
	}}
}

// State returns a copy of the current run state.
func (m *Machine) State() State {
	st := m.state
	st.Proposals = append([]Proposal(nil), m.state.Proposals...)
	return st
}

// HandlePhaseChanged applies an orchestrator-driven phase transition.
// Entering remediating increments the remediation round; a round beyond the
// configured cap forces an abort instead.
func (m *Machine) HandlePhaseChanged(next Phase, ts string) error {
	if !Known(next) || next == PhasePaused || next == PhaseAborted {
		return fmt.Errorf("%w: %q is not a forward phase", ErrInvalidTransition, next)
	}
	cur := m.state.Phase
	if cur == PhasePaused {
		return fmt.Errorf("%w: paused runs resume before changing phase", ErrInvalidTransition)
	}
	if !cur.canTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur, next)
	}
	if next == PhaseRemediating {
		if m.state.RemediationRound >= m.state.Config.MaxRemediationRounds {
			m.abort("remediation rounds exhausted", ts)
			return nil
		}
		m.state.RemediationRound++
	}
	if cur == PhaseIdle {
		m.state.StartedAt = ts
	}
	m.state.Phase = next
	if next == PhaseCompleted {
		m.state.CompletedAt = ts
	}
	return nil
}

// HandlePaused enters the paused phase, remembering where the run paused
// from. The reason is taken from the event payload as-is.
func (m *Machine) HandlePaused(reason PauseReason, ts string) error {
	if !KnownPauseReason(reason) {
		return fmt.Errorf("%w: unknown pause reason %q", ErrInvalidTransition, reason)
	}
	cur := m.state.Phase
	if cur.Terminal() {
		return fmt.Errorf("%w: cannot pause terminal phase %s", ErrInvalidTransition, cur)
	}
	if cur == PhasePaused {
		m.state.PauseReason = reason
		return nil
	}
	m.state.PausedFrom = cur
	m.state.Phase = PhasePaused
	m.state.PauseReason = reason
	return nil
}

// HandleResumed re-enters the phase the run was paused from, never idle.
func (m *Machine) HandleResumed(ts string) error {
	if m.state.Phase != PhasePaused {
		return fmt.Errorf("%w: resume outside paused phase", ErrInvalidTransition)
	}
	m.state.Phase = m.state.PausedFrom
	m.state.PausedFrom = ""
	m.state.PauseReason = ""
	return nil
}

// HandleAborted terminates the run from any state.
func (m *Machine) HandleAborted(reason, ts string) error {
	m.abort(reason, ts)
	return nil
}

func (m *Machine) abort(reason, ts string) {
	m.state.Phase = PhaseAborted
	m.state.AbortReason = reason
	m.state.PausedFrom = ""
	m.state.PauseReason = ""
	m.state.CompletedAt = ts
}

// HandleProposalCreated queues a mid-execution spec-evolution proposal.
// Under fixed mode proposals are never generated, so one arriving is a
// protocol violation and is rejected. Under smart mode with approval
// required, the run pauses until the proposal is resolved.
func (m *Machine) HandleProposalCreated(p Proposal, ts string) error {
	if m.state.Config.Mode == ModeFixed {
		return fmt.Errorf("%w: spec-evolution proposal under fixed mode", ErrInvalidTransition)
	}
	if m.state.Phase.Terminal() {
		return fmt.Errorf("%w: proposal after run end", ErrInvalidTransition)
	}
	for _, existing := range m.state.Proposals {
		if existing.ID == p.ID {
			return nil
		}
	}
	p.Status = ProposalPending
	if p.CreatedAt == "" {
		p.CreatedAt = ts
	}
	m.state.Proposals = append(m.state.Proposals, p)

	if m.state.Config.RequireApprovalForSpecChanges && m.state.Phase != PhasePaused {
		return m.HandlePaused(PauseApprovalRequired, ts)
	}
	return nil
}

// HandleProposalResolved accepts or rejects a pending proposal. When the
// last pending proposal resolves while the run is paused for approval, the
// run resumes into the phase it paused from.
func (m *Machine) HandleProposalResolved(id string, accepted bool, ts string) error {
	var found *Proposal
	for i := range m.state.Proposals {
		if m.state.Proposals[i].ID == id {
			found = &m.state.Proposals[i]
			break
		}
	}
	if found == nil {
		return fmt.Errorf("%w: unknown proposal %q", ErrInvalidTransition, id)
	}
	if found.Status != ProposalPending {
		return nil
	}
	if accepted {
		found.Status = ProposalAccepted
	} else {
		found.Status = ProposalRejected
	}
	found.ResolvedAt = ts

	if m.PendingProposals() == 0 &&
		m.state.Phase == PhasePaused &&
		m.state.PauseReason == PauseApprovalRequired {
		return m.HandleResumed(ts)
	}
	return nil
}

// PendingProposals counts proposals still awaiting a decision.
func (m *Machine) PendingProposals() int {
	n := 0
	for _, p := range m.state.Proposals {
		if p.Status == ProposalPending {
			n++
		}
	}
	return n
}
