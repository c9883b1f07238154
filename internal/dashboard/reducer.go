package dashboard

import (
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/activity"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/message"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/task"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/team"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/ring"
)

// Reduce is a pure fold of one action into the state tree. The input state
// is never mutated: every touched slice or map is rebuilt, so callers may
// hold references to prior states. Unknown actions return the input
// unchanged.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case SetTeam:
		s.Team = act.Team
		return s
	case SetActivePanel:
		s.ActivePanel = act.Panel
		return s
	case SelectTeammate:
		s.SelectedTeammateID = act.TeammateID
		return s
	case SetTaskFilter:
		s.TaskFilter = act.Filter
		return s
	case SetActivityFilter:
		s.ActivityFilter = act.Filter
		return s
	case ToggleTaskExpanded:
		expanded := make(map[string]bool, len(s.ExpandedTasks)+1)
		for id, v := range s.ExpandedTasks {
			expanded[id] = v
		}
		if expanded[act.TaskID] {
			delete(expanded, act.TaskID)
		} else {
			expanded[act.TaskID] = true
		}
		s.ExpandedTasks = expanded
		return s
	case SetTasks:
		s.Tasks = append([]task.Task(nil), act.Tasks...)
		return s
	case UpdateTask:
		for i := range s.Tasks {
			if s.Tasks[i].ID == act.Task.ID {
				tasks := append([]task.Task(nil), s.Tasks...)
				tasks[i] = act.Task
				s.Tasks = tasks
				return s
			}
		}
		// Unknown id: benign race between deletion and update.
		return s
	case SetTeammates:
		s.Teammates = append([]team.Teammate(nil), act.Teammates...)
		return s
	case UpsertTeammate:
		for i := range s.Teammates {
			if s.Teammates[i].ID == act.Teammate.ID {
				mates := append([]team.Teammate(nil), s.Teammates...)
				mates[i] = act.Teammate
				s.Teammates = mates
				return s
			}
		}
		s.Teammates = append(append([]team.Teammate(nil), s.Teammates...), act.Teammate)
		return s
	case SetActivity:
		s.Activity = ring.Tail(append([]activity.Event(nil), act.Events...), s.activityLimit())
		return s
	case AddActivity:
		events := append(append([]activity.Event(nil), s.Activity...), act.Event)
		s.Activity = ring.Tail(events, s.activityLimit())
		return s
	case SetMessages:
		msgs := ring.Tail(append([]message.Message(nil), act.Messages...), s.messageLimit())
		s.Messages = msgs
		s.Threads = buildThreads(msgs)
		return s
	case AddMessage:
		msgs := append(append([]message.Message(nil), s.Messages...), act.Message)
		msgs = ring.Tail(msgs, s.messageLimit())
		s.Messages = msgs
		s.Threads = buildThreads(msgs)
		return s
	case UpdateCostSummary:
		s.CostSummary = act.Summary
		return s
	case ToggleSidebar:
		s.SidebarVisible = !s.SidebarVisible
		return s
	case ToggleDetailPanel:
		s.DetailPanelVisible = !s.DetailPanelVisible
		return s
	case SetLoading:
		s.Loading = act.Loading
		return s
	case SetError:
		s.Err = act.Err
		return s
	case SetConnectionStatus:
		s.Connection = act.Status
		return s
	case MarkUpdateReceived:
		s.PendingUpdates = 0
		s.LastUpdate = act.Timestamp
		return s
	case IncrementPendingUpdates:
		s.PendingUpdates++
		return s
	default:
		return s
	}
}

func (s State) messageLimit() int {
	if s.messageCap < 1 {
		return DefaultMessageCap
	}
	return s.messageCap
}

func (s State) activityLimit() int {
	if s.activityCap < 1 {
		return DefaultActivityCap
	}
	return s.activityCap
}

func buildThreads(msgs []message.Message) map[string][]message.Message {
	threads := make(map[string][]message.Message)
	for _, m := range msgs {
		key := m.Thread()
		threads[key] = append(threads[key], m)
	}
	return threads
}
