package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/activity"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/message"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/task"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/team"
)

type bogusAction struct{}

func (bogusAction) isAction() {}

func TestUnknownActionReturnsStateUnchanged(t *testing.T) {
	s := NewState(0, 0)
	s = Reduce(s, SetTasks{Tasks: []task.Task{{ID: "t1"}}})

	next := Reduce(s, bogusAction{})
	assert.Equal(t, s, next)
}

func TestUpdateTaskUnknownIDLeavesListUntouched(t *testing.T) {
	s := NewState(0, 0)
	s = Reduce(s, SetTasks{Tasks: []task.Task{{ID: "t1", Title: "one"}, {ID: "t2", Title: "two"}}})

	next := Reduce(s, UpdateTask{Task: task.Task{ID: "ghost", Title: "nope"}})

	require.Len(t, next.Tasks, 2)
	assert.Equal(t, s.Tasks, next.Tasks)
	assert.True(t, &s.Tasks[0] == &next.Tasks[0], "task list should be reference-unchanged")
}

func TestUpdateTaskReplacesInPlaceWithoutReordering(t *testing.T) {
	s := NewState(0, 0)
	s = Reduce(s, SetTasks{Tasks: []task.Task{
		{ID: "t1", Status: task.StatusPending},
		{ID: "t2", Status: task.StatusPending},
		{ID: "t3", Status: task.StatusPending},
	}})

	next := Reduce(s, UpdateTask{Task: task.Task{ID: "t2", Status: task.StatusInProgress}})

	require.Len(t, next.Tasks, 3)
	assert.Equal(t, []string{"t1", "t2", "t3"}, []string{next.Tasks[0].ID, next.Tasks[1].ID, next.Tasks[2].ID})
	assert.Equal(t, task.StatusInProgress, next.Tasks[1].Status)
	assert.Equal(t, task.StatusPending, s.Tasks[1].Status, "input state must stay untouched")
}

func TestUpsertTeammateReplacesOrAppends(t *testing.T) {
	s := NewState(0, 0)
	s = Reduce(s, SetTeammates{Teammates: []team.Teammate{{ID: "m1", Status: team.TeammateIdle}}})

	s = Reduce(s, UpsertTeammate{Teammate: team.Teammate{ID: "m1", Status: team.TeammateWorking}})
	require.Len(t, s.Teammates, 1)
	assert.Equal(t, team.TeammateWorking, s.Teammates[0].Status)

	s = Reduce(s, UpsertTeammate{Teammate: team.Teammate{ID: "m2", Status: team.TeammateSpawning}})
	require.Len(t, s.Teammates, 2)
	assert.Equal(t, "m2", s.Teammates[1].ID)
}

func TestAddMessageBuildsSymmetricThreads(t *testing.T) {
	s := NewState(0, 0)
	s = Reduce(s, AddMessage{Message: message.Message{ID: "m1", From: "alice", To: "bob", Timestamp: "1"}})
	s = Reduce(s, AddMessage{Message: message.Message{ID: "m2", From: "bob", To: "alice", Timestamp: "2"}})

	key := message.ThreadKey("alice", "bob")
	require.Contains(t, s.Threads, key)
	assert.Len(t, s.Threads[key], 2, "both directions must land in one thread")
	assert.Len(t, s.Threads, 1)
}

func TestAddMessageCapsAtLimit(t *testing.T) {
	s := NewState(2, 0)
	for _, id := range []string{"m1", "m2", "m3"} {
		s = Reduce(s, AddMessage{Message: message.Message{ID: id, From: "a", To: "b"}})
	}

	require.Len(t, s.Messages, 2)
	assert.Equal(t, "m2", s.Messages[0].ID)
	assert.Equal(t, "m3", s.Messages[1].ID)

	key := message.ThreadKey("a", "b")
	assert.Len(t, s.Threads[key], 2, "threads are rebuilt from the capped list")
}

func TestSetMessagesReplacesAndRethreads(t *testing.T) {
	s := NewState(0, 0)
	s = Reduce(s, AddMessage{Message: message.Message{ID: "old", From: "a", To: "b"}})

	s = Reduce(s, SetMessages{Messages: []message.Message{
		{ID: "m1", From: "a", To: "c"},
		{ID: "m2", From: "c", To: "a"},
	}})

	require.Len(t, s.Messages, 2)
	assert.NotContains(t, s.Threads, message.ThreadKey("a", "b"))
	assert.Len(t, s.Threads[message.ThreadKey("a", "c")], 2)
}

func TestAddActivityCapsAtLimit(t *testing.T) {
	s := NewState(0, 3)
	for _, id := range []string{"a1", "a2", "a3", "a4"} {
		s = Reduce(s, AddActivity{Event: activity.Event{ID: id, Type: activity.TypeMessageSent}})
	}

	require.Len(t, s.Activity, 3)
	assert.Equal(t, "a2", s.Activity[0].ID)
	assert.Equal(t, "a4", s.Activity[2].ID)
}

func TestReduceDoesNotMutateInputState(t *testing.T) {
	s := NewState(0, 0)
	s = Reduce(s, AddMessage{Message: message.Message{ID: "m1", From: "a", To: "b"}})

	_ = Reduce(s, AddMessage{Message: message.Message{ID: "m2", From: "a", To: "b"}})
	_ = Reduce(s, ToggleTaskExpanded{TaskID: "t1"})

	assert.Len(t, s.Messages, 1)
	assert.Len(t, s.Threads[message.ThreadKey("a", "b")], 1)
	assert.Empty(t, s.ExpandedTasks)
}

func TestToggleTaskExpanded(t *testing.T) {
	s := NewState(0, 0)
	s = Reduce(s, ToggleTaskExpanded{TaskID: "t1"})
	assert.True(t, s.ExpandedTasks["t1"])

	s = Reduce(s, ToggleTaskExpanded{TaskID: "t1"})
	assert.NotContains(t, s.ExpandedTasks, "t1")
}

func TestPendingUpdateCounter(t *testing.T) {
	s := NewState(0, 0)
	s = Reduce(s, IncrementPendingUpdates{})
	s = Reduce(s, IncrementPendingUpdates{})
	assert.Equal(t, 2, s.PendingUpdates)

	s = Reduce(s, MarkUpdateReceived{Timestamp: "2026-01-02T03:04:05.000Z"})
	assert.Equal(t, 0, s.PendingUpdates)
	assert.Equal(t, "2026-01-02T03:04:05.000Z", s.LastUpdate)
}

func TestUIFieldActions(t *testing.T) {
	s := NewState(0, 0)
	assert.True(t, s.Loading)
	assert.Equal(t, ConnectionConnecting, s.Connection)
	assert.Equal(t, PanelOverview, s.ActivePanel)

	s = Reduce(s, SetActivePanel{Panel: PanelMessages})
	s = Reduce(s, SelectTeammate{TeammateID: "m1"})
	s = Reduce(s, SetTaskFilter{Filter: task.StatusInProgress})
	s = Reduce(s, SetActivityFilter{Filter: activity.TypeTaskCompleted})
	s = Reduce(s, ToggleSidebar{})
	s = Reduce(s, ToggleDetailPanel{})
	s = Reduce(s, SetLoading{Loading: false})
	s = Reduce(s, SetError{Err: "stream closed"})
	s = Reduce(s, SetConnectionStatus{Status: ConnectionDisconnected})

	assert.Equal(t, PanelMessages, s.ActivePanel)
	assert.Equal(t, "m1", s.SelectedTeammateID)
	assert.Equal(t, task.StatusInProgress, s.TaskFilter)
	assert.Equal(t, activity.TypeTaskCompleted, s.ActivityFilter)
	assert.False(t, s.SidebarVisible)
	assert.True(t, s.DetailPanelVisible)
	assert.False(t, s.Loading)
	assert.Equal(t, "stream closed", s.Err)
	assert.Equal(t, ConnectionDisconnected, s.Connection)

	s = Reduce(s, SelectTeammate{TeammateID: ""})
	assert.Empty(t, s.SelectedTeammateID)
}

func TestSetTeam(t *testing.T) {
	s := NewState(0, 0)
	tm := &team.Team{ID: "team-1", Name: "payments", Status: team.StatusActive}
	s = Reduce(s, SetTeam{Team: tm})
	require.NotNil(t, s.Team)
	assert.Equal(t, "payments", s.Team.Name)
}

func TestUpdateCostSummary(t *testing.T) {
	s := NewState(0, 0)
	s = Reduce(s, UpdateCostSummary{Summary: CostSummary{InputTokens: 1200, OutputTokens: 800, CostUSD: 0.42}})
	assert.Equal(t, 1200, s.CostSummary.InputTokens)
	assert.InDelta(t, 0.42, s.CostSummary.CostUSD, 1e-9)
}
