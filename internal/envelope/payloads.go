package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/activity"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/health"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/message"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/qualitygate"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/task"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/team"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/yolo"
)

// TeamErrorPayload reports a team-scoped failure. TeammateID and TaskID are
// optional attributions.
type TeamErrorPayload struct {
	Message    string `json:"message"`
	TeammateID string `json:"teammateId,omitempty"`
	TaskID     string `json:"taskId,omitempty"`
}

// TeammateStatusPayload carries a single teammate status transition.
type TeammateStatusPayload struct {
	TeammateID string              `json:"teammateId"`
	Status     team.TeammateStatus `json:"status"`
	TaskID     string              `json:"taskId,omitempty"`
	Detail     string              `json:"detail,omitempty"`
}

// CostUsagePayload carries token and cost counters for one teammate.
type CostUsagePayload struct {
	TeammateID   string  `json:"teammateId"`
	InputTokens  int     `json:"inputTokens"`
	OutputTokens int     `json:"outputTokens"`
	CostUSD      float64 `json:"costUsd"`
	ContextPct   int     `json:"contextPct"`
}

// QualityGateStartedPayload announces a review cycle beginning for a task.
type QualityGateStartedPayload struct {
	TaskID      string `json:"taskId"`
	Cycle       int    `json:"cycle"`
	ReviewModel string `json:"reviewModel,omitempty"`
}

// IntegrationStartedPayload announces an integration check beginning.
type IntegrationStartedPayload struct {
	Detail string `json:"detail,omitempty"`
}

// IntegrationResultPayload carries the outcome of an integration check.
type IntegrationResultPayload struct {
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// YoloPhasePayload carries an autonomous-run phase transition.
type YoloPhasePayload struct {
	Phase  yolo.Phase `json:"phase"`
	Detail string     `json:"detail,omitempty"`
}

// YoloPausedPayload carries the reason an autonomous run paused.
type YoloPausedPayload struct {
	Reason yolo.PauseReason `json:"reason"`
	Detail string           `json:"detail,omitempty"`
}

// YoloResumedPayload signals a paused run resuming.
type YoloResumedPayload struct {
	Detail string `json:"detail,omitempty"`
}

// YoloAbortedPayload carries the reason an autonomous run aborted.
type YoloAbortedPayload struct {
	Reason string `json:"reason"`
}

// ProposalResolvedPayload records the user decision on a spec change
// proposal.
type ProposalResolvedPayload struct {
	ProposalID string `json:"proposalId"`
	Accepted   bool   `json:"accepted"`
	ResolvedAt string `json:"resolvedAt,omitempty"`
}

// HeartbeatBatchPayload carries periodic liveness telemetry for several
// teammates at once.
type HeartbeatBatchPayload struct {
	Heartbeats []health.HeartbeatSnapshot `json:"heartbeats"`
}

// payloadFactories maps each known kind to a constructor for its payload
// type. The map doubles as the closed-set membership check.
var payloadFactories = map[Kind]func() any{
	KindTeamUpdated:          func() any { return &team.Team{} },
	KindTeamError:            func() any { return &TeamErrorPayload{} },
	KindTeammateSpawned:      func() any { return &team.Teammate{} },
	KindTeammateStatus:       func() any { return &TeammateStatusPayload{} },
	KindTaskCreated:          func() any { return &task.Task{} },
	KindTaskUpdated:          func() any { return &task.Task{} },
	KindMessagePosted:        func() any { return &message.Message{} },
	KindActivityLogged:       func() any { return &activity.Event{} },
	KindCostUsage:            func() any { return &CostUsagePayload{} },
	KindQualityGateStarted:   func() any { return &QualityGateStartedPayload{} },
	KindQualityGateResult:    func() any { return &qualitygate.Result{} },
	KindIntegrationStarted:   func() any { return &IntegrationStartedPayload{} },
	KindIntegrationResult:    func() any { return &IntegrationResultPayload{} },
	KindYoloPhaseChanged:     func() any { return &YoloPhasePayload{} },
	KindYoloPaused:           func() any { return &YoloPausedPayload{} },
	KindYoloResumed:          func() any { return &YoloResumedPayload{} },
	KindYoloAborted:          func() any { return &YoloAbortedPayload{} },
	KindYoloProposalCreated:  func() any { return &yolo.Proposal{} },
	KindYoloProposalResolved: func() any { return &ProposalResolvedPayload{} },
	KindHeartbeatBatch:       func() any { return &HeartbeatBatchPayload{} },
}

// DecodePayload unmarshals the envelope payload into the concrete type for
// its kind. The returned value is a pointer to one of the closed union of
// payload types. Unknown kinds return ErrUnknownKind.
func (e *Envelope) DecodePayload() (any, error) {
	factory, ok := payloadFactories[e.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, e.Kind)
	}
	v := factory()
	if len(e.Payload) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return nil, fmt.Errorf("failed to decode %s payload: %w", e.Kind, err)
	}
	return v, nil
}
