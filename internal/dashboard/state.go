package dashboard

import (
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/activity"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/message"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/task"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/team"
)

type Panel string

const (
	PanelOverview  Panel = "overview"
	PanelTasks     Panel = "tasks"
	PanelMessages  Panel = "messages"
	PanelActivity  Panel = "activity"
	PanelKnowledge Panel = "knowledge"
	PanelHealth    Panel = "health"
)

type ConnectionStatus string

const (
	ConnectionConnecting   ConnectionStatus = "connecting"
	ConnectionConnected    ConnectionStatus = "connected"
	ConnectionDisconnected ConnectionStatus = "disconnected"
)

// CostSummary is the team-level running total. Per-teammate usage lives on
// each Teammate.
type CostSummary struct {
	InputTokens  int     `json:"inputTokens" yaml:"input_tokens"`
	OutputTokens int     `json:"outputTokens" yaml:"output_tokens"`
	CostUSD      float64 `json:"costUsd" yaml:"cost_usd"`
	UpdatedAt    string  `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
}

const (
	DefaultMessageCap  = 200
	DefaultActivityCap = 300
)

// State is the whole dashboard tree for one team. It is owned exclusively by
// Reduce; everything else reads derived views of it.
type State struct {
	Team      *team.Team        `json:"team,omitempty"`
	Teammates []team.Teammate   `json:"teammates"`
	Tasks     []task.Task       `json:"tasks"`
	Activity  []activity.Event  `json:"activity"`
	Messages  []message.Message `json:"messages"`

	// Threads groups messages by the lexically sorted (from, to) pair so
	// lookup is symmetric regardless of direction.
	Threads map[string][]message.Message `json:"threads"`

	ActivePanel        Panel            `json:"activePanel"`
	SelectedTeammateID string           `json:"selectedTeammateId,omitempty"`
	TaskFilter         task.Status      `json:"taskFilter,omitempty"`
	ActivityFilter     activity.Type    `json:"activityFilter,omitempty"`
	ExpandedTasks      map[string]bool  `json:"expandedTasks"`
	CostSummary        CostSummary      `json:"costSummary"`
	SidebarVisible     bool             `json:"sidebarVisible"`
	DetailPanelVisible bool             `json:"detailPanelVisible"`
	Loading            bool             `json:"loading"`
	Err                string           `json:"error,omitempty"`
	Connection         ConnectionStatus `json:"connection"`
	PendingUpdates     int              `json:"pendingUpdates"`
	LastUpdate         string           `json:"lastUpdate,omitempty"`

	messageCap  int
	activityCap int
}

// NewState returns the initial tree: loading, connecting, sidebar open,
// overview panel. Caps below one fall back to the defaults.
func NewState(messageCap, activityCap int) State {
	if messageCap < 1 {
		messageCap = DefaultMessageCap
	}
	if activityCap < 1 {
		activityCap = DefaultActivityCap
	}
	return State{
		Threads:        map[string][]message.Message{},
		ActivePanel:    PanelOverview,
		ExpandedTasks:  map[string]bool{},
		SidebarVisible: true,
		Loading:        true,
		Connection:     ConnectionConnecting,
		messageCap:     messageCap,
		activityCap:    activityCap,
	}
}

// Visibility is the derived triage of State's teammates.
func (s State) Visibility() Visibility {
	return TriageVisibility(s.Teammates, s.Tasks, s.SelectedTeammateID)
}
