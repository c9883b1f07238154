package yolo

import (
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// ProposalStatus tracks the decision on one spec-evolution proposal.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalAccepted ProposalStatus = "accepted"
	ProposalRejected ProposalStatus = "rejected"
)

// Proposal is a mid-execution discovery that the governing spec should
// change. It carries both spec versions so the supervisor surface can render
// exactly what would change before deciding.
type Proposal struct {
	ID           string         `json:"id" yaml:"id"`
	Title        string         `json:"title" yaml:"title"`
	Rationale    string         `json:"rationale,omitempty" yaml:"rationale,omitempty"`
	CurrentSpec  string         `json:"currentSpec,omitempty" yaml:"current_spec,omitempty"`
	ProposedSpec string         `json:"proposedSpec,omitempty" yaml:"proposed_spec,omitempty"`
	Status       ProposalStatus `json:"status" yaml:"status"`
	CreatedAt    string         `json:"createdAt,omitempty" yaml:"created_at,omitempty"`
	ResolvedAt   string         `json:"resolvedAt,omitempty" yaml:"resolved_at,omitempty"`
}

// Diff renders the proposed spec change as a unified diff.
func (p Proposal) Diff() (string, error) {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(p.CurrentSpec),
		B:        difflib.SplitLines(p.ProposedSpec),
		FromFile: "spec/current",
		ToFile:   "spec/proposed",
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("failed to diff proposal %s: %w", p.ID, err)
	}
	return diff, nil
}
