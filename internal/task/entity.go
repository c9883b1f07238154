package task

type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusCompleted  Status = "completed"
	StatusBlocked    Status = "blocked"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status permits no further mutation. Corrective
// work on a terminal task happens through a new remediation task, never by
// editing the finished one.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type Task struct {
	ID             string   `json:"id" yaml:"id"`
	Title          string   `json:"title" yaml:"title"`
	Description    string   `json:"description,omitempty" yaml:"description,omitempty"`
	Status         Status   `json:"status" yaml:"status"`
	AssigneeID     string   `json:"assigneeId,omitempty" yaml:"assignee_id,omitempty"`
	PhaseID        string   `json:"phaseId,omitempty" yaml:"phase_id,omitempty"`
	DependsOn      []string `json:"dependsOn,omitempty" yaml:"depends_on,omitempty"`
	RequirementIDs []string `json:"requirementIds,omitempty" yaml:"requirement_ids,omitempty"`
	CreatedAt      string   `json:"createdAt" yaml:"created_at"`
	UpdatedAt      string   `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
}

// PhaseStatus is the lifecycle state of a phase. Phases run sequentially in
// ascending Order; tasks within one phase may run concurrently.
type PhaseStatus string

const (
	PhasePending    PhaseStatus = "pending"
	PhaseInProgress PhaseStatus = "in-progress"
	PhaseCompleted  PhaseStatus = "completed"
	PhaseBlocked    PhaseStatus = "blocked"
)

type Phase struct {
	ID      string      `json:"id" yaml:"id"`
	Name    string      `json:"name" yaml:"name"`
	Order   int         `json:"order" yaml:"order"`
	Status  PhaseStatus `json:"status" yaml:"status"`
	TaskIDs []string    `json:"taskIds,omitempty" yaml:"task_ids,omitempty"`
}
