package activity

// Type tags one activity feed entry. The set is closed; events carrying an
// unlisted type are rejected at the envelope boundary.
type Type string

const (
	TypeTeammateSpawned        Type = "teammate-spawned"
	TypeTeammateShutdown       Type = "teammate-shutdown"
	TypeStatusChanged          Type = "status-changed"
	TypeTaskCreated            Type = "task-created"
	TypeTaskUpdated            Type = "task-updated"
	TypeTaskCompleted          Type = "task-completed"
	TypeTaskFailed             Type = "task-failed"
	TypeMessageSent            Type = "message-sent"
	TypePlanSubmitted          Type = "plan-submitted"
	TypeQualityGatePassed      Type = "quality-gate-passed"
	TypeQualityGateFailed      Type = "quality-gate-failed"
	TypeReviewFeedbackSent     Type = "review-feedback-sent"
	TypeIntegrationCheckPassed Type = "integration-check-passed"
	TypeIntegrationCheckFailed Type = "integration-check-failed"
	TypePhaseChanged           Type = "phase-changed"
	TypeProposalCreated        Type = "proposal-created"
	TypeProposalResolved       Type = "proposal-resolved"
	TypeCostUpdate             Type = "cost-update"
	TypeHealthAlert            Type = "health-alert"
	TypeError                  Type = "error"
)

// Telemetry is the structured counterpart to the free-text Detail field.
// When Anomaly is set it takes precedence over keyword classification.
type Telemetry struct {
	Anomaly string             `json:"anomaly,omitempty" yaml:"anomaly,omitempty"`
	Metrics map[string]float64 `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// Event is one append-only, ring-buffered activity feed entry.
type Event struct {
	ID         string     `json:"id" yaml:"id"`
	Timestamp  string     `json:"timestamp" yaml:"timestamp"`
	Type       Type       `json:"type" yaml:"type"`
	Detail     string     `json:"detail,omitempty" yaml:"detail,omitempty"`
	TeammateID string     `json:"teammateId,omitempty" yaml:"teammate_id,omitempty"`
	TaskID     string     `json:"taskId,omitempty" yaml:"task_id,omitempty"`
	Telemetry  *Telemetry `json:"telemetry,omitempty" yaml:"telemetry,omitempty"`
}
