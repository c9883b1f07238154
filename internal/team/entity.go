package team

// Status is the lifecycle state of a team.
type Status string

const (
	StatusActive     Status = "active"
	StatusCleaningUp Status = "cleaning-up"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

// TeammateStatus is the lifecycle state of a single teammate. Teammates are
// never deleted; a stopped teammate transitions to StatusShutdown.
type TeammateStatus string

const (
	TeammateSpawning         TeammateStatus = "spawning"
	TeammateWorking          TeammateStatus = "working"
	TeammateIdle             TeammateStatus = "idle"
	TeammatePlanning         TeammateStatus = "planning"
	TeammateAwaitingApproval TeammateStatus = "awaiting-approval"
	TeammateError            TeammateStatus = "error"
	TeammateShutdown         TeammateStatus = "shutdown"
)

// Usage accumulates token and cost consumption for one teammate.
type Usage struct {
	InputTokens  int     `json:"inputTokens" yaml:"input_tokens"`
	OutputTokens int     `json:"outputTokens" yaml:"output_tokens"`
	CostUSD      float64 `json:"costUSD" yaml:"cost_usd"`
	ContextPct   int     `json:"contextPct" yaml:"context_pct"`
}

type Teammate struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Role      string         `json:"role,omitempty" yaml:"role,omitempty"`
	Model     string         `json:"model,omitempty" yaml:"model,omitempty"`
	Provider  string         `json:"provider,omitempty" yaml:"provider,omitempty"`
	Status    TeammateStatus `json:"status" yaml:"status"`
	IsLead    bool           `json:"isLead" yaml:"is_lead"`
	TaskID    string         `json:"taskId,omitempty" yaml:"task_id,omitempty"`
	Usage     Usage          `json:"usage" yaml:"usage"`
	CreatedAt string         `json:"createdAt" yaml:"created_at"`
}

type Team struct {
	ID           string     `json:"id" yaml:"id"`
	Name         string     `json:"name" yaml:"name"`
	Status       Status     `json:"status" yaml:"status"`
	DelegateMode bool       `json:"delegateMode" yaml:"delegate_mode"`
	CreatedAt    string     `json:"createdAt" yaml:"created_at"`
	Teammates    []Teammate `json:"teammates" yaml:"teammates"`
}

// Lead returns the teammate flagged as lead, or nil when none is flagged.
func (t *Team) Lead() *Teammate {
	for i := range t.Teammates {
		if t.Teammates[i].IsLead {
			return &t.Teammates[i]
		}
	}
	return nil
}

// Teammate returns the teammate with the given id, or nil.
func (t *Team) Teammate(id string) *Teammate {
	for i := range t.Teammates {
		if t.Teammates[i].ID == id {
			return &t.Teammates[i]
		}
	}
	return nil
}
