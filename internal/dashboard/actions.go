package dashboard

import (
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/activity"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/message"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/task"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/team"
)

// Action is the closed set of state mutations Reduce understands. The
// unexported marker keeps the union sealed to this package; adding a kind is
// a compile-time change here, not a new ad-hoc shape.
type Action interface {
	isAction()
}

type SetTeam struct {
	Team *team.Team
}

type SetActivePanel struct {
	Panel Panel
}

// SelectTeammate with an empty ID clears the selection.
type SelectTeammate struct {
	TeammateID string
}

type SetTaskFilter struct {
	Filter task.Status
}

type SetActivityFilter struct {
	Filter activity.Type
}

type ToggleTaskExpanded struct {
	TaskID string
}

type SetTasks struct {
	Tasks []task.Task
}

// UpdateTask replaces the task with a matching id in place. If no task
// matches, the action is a no-op; the task is not appended.
type UpdateTask struct {
	Task task.Task
}

type SetTeammates struct {
	Teammates []team.Teammate
}

// UpsertTeammate replaces the teammate with a matching id, or appends it
// when the id is new.
type UpsertTeammate struct {
	Teammate team.Teammate
}

type SetActivity struct {
	Events []activity.Event
}

type AddActivity struct {
	Event activity.Event
}

type SetMessages struct {
	Messages []message.Message
}

type AddMessage struct {
	Message message.Message
}

type UpdateCostSummary struct {
	Summary CostSummary
}

type ToggleSidebar struct{}

type ToggleDetailPanel struct{}

type SetLoading struct {
	Loading bool
}

type SetError struct {
	Err string
}

type SetConnectionStatus struct {
	Status ConnectionStatus
}

// MarkUpdateReceived zeroes the pending-update counter and stamps
// LastUpdate.
type MarkUpdateReceived struct {
	Timestamp string
}

type IncrementPendingUpdates struct{}

func (SetTeam) isAction()                 {}
func (SetActivePanel) isAction()          {}
func (SelectTeammate) isAction()          {}
func (SetTaskFilter) isAction()           {}
func (SetActivityFilter) isAction()       {}
func (ToggleTaskExpanded) isAction()      {}
func (SetTasks) isAction()                {}
func (UpdateTask) isAction()              {}
func (SetTeammates) isAction()            {}
func (UpsertTeammate) isAction()          {}
func (SetActivity) isAction()             {}
func (AddActivity) isAction()             {}
func (SetMessages) isAction()             {}
func (AddMessage) isAction()              {}
func (UpdateCostSummary) isAction()       {}
func (ToggleSidebar) isAction()           {}
func (ToggleDetailPanel) isAction()       {}
func (SetLoading) isAction()              {}
func (SetError) isAction()                {}
func (SetConnectionStatus) isAction()     {}
func (MarkUpdateReceived) isAction()      {}
func (IncrementPendingUpdates) isAction() {}
