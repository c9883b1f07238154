package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/task"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/team"
)

func ids(mates []team.Teammate) []string {
	out := make([]string, len(mates))
	for i, m := range mates {
		out[i] = m.ID
	}
	return out
}

func TestTriageMinimizesOlderIdleTeammate(t *testing.T) {
	mates := []team.Teammate{
		{ID: "lead", IsLead: true, Status: team.TeammateIdle, CreatedAt: "2026-01-01T00:00:50.000Z"},
		{ID: "a", Status: team.TeammateIdle, CreatedAt: "2026-01-01T00:01:40.000Z"},
		{ID: "b", Status: team.TeammateWorking, CreatedAt: "2026-01-01T00:05:00.000Z"},
	}
	tasks := []task.Task{{ID: "t1", Status: task.StatusInProgress, AssigneeID: "b"}}

	vis := TriageVisibility(mates, tasks, "")

	assert.Equal(t, []string{"lead", "b"}, ids(vis.Visible))
	assert.Equal(t, []string{"a"}, ids(vis.Minimized))
}

func TestSelectionForcesVisibility(t *testing.T) {
	mates := []team.Teammate{
		{ID: "lead", IsLead: true, Status: team.TeammateIdle, CreatedAt: "2026-01-01T00:00:50.000Z"},
		{ID: "a", Status: team.TeammateIdle, CreatedAt: "2026-01-01T00:01:40.000Z"},
		{ID: "b", Status: team.TeammateWorking, CreatedAt: "2026-01-01T00:05:00.000Z"},
	}

	vis := TriageVisibility(mates, nil, "a")

	assert.Equal(t, []string{"lead", "a", "b"}, ids(vis.Visible))
	assert.Empty(t, vis.Minimized)
}

func TestNoActiveCohortKeepsEveryoneVisible(t *testing.T) {
	mates := []team.Teammate{
		{ID: "lead", IsLead: true, Status: team.TeammateIdle, CreatedAt: "2026-01-01T00:00:50.000Z"},
		{ID: "a", Status: team.TeammateIdle, CreatedAt: "2026-01-01T00:01:40.000Z"},
		{ID: "b", Status: team.TeammateShutdown, CreatedAt: "2026-01-01T00:05:00.000Z"},
	}

	vis := TriageVisibility(mates, nil, "")

	assert.Len(t, vis.Visible, 3)
	assert.Empty(t, vis.Minimized)
}

func TestInProgressTaskMakesTeammateActiveLike(t *testing.T) {
	mates := []team.Teammate{
		{ID: "a", Status: team.TeammateIdle, CreatedAt: "2026-01-01T00:01:40.000Z", TaskID: "t1"},
		{ID: "b", Status: team.TeammateWorking, CreatedAt: "2026-01-01T00:05:00.000Z"},
	}
	tasks := []task.Task{{ID: "t1", Status: task.StatusInProgress}}

	vis := TriageVisibility(mates, tasks, "")

	assert.Equal(t, []string{"a", "b"}, ids(vis.Visible))
	assert.Empty(t, vis.Minimized)
}

func TestNewerIdleTeammateStaysVisible(t *testing.T) {
	mates := []team.Teammate{
		{ID: "b", Status: team.TeammateWorking, CreatedAt: "2026-01-01T00:05:00.000Z"},
		{ID: "c", Status: team.TeammateIdle, CreatedAt: "2026-01-01T00:06:40.000Z"},
	}

	vis := TriageVisibility(mates, nil, "")

	assert.Equal(t, []string{"b", "c"}, ids(vis.Visible), "not strictly older than the cohort")
	assert.Empty(t, vis.Minimized)
}

func TestSpawningTeammateIsNeverMinimized(t *testing.T) {
	mates := []team.Teammate{
		{ID: "a", Status: team.TeammateSpawning, CreatedAt: "2026-01-01T00:01:40.000Z"},
		{ID: "b", Status: team.TeammateWorking, CreatedAt: "2026-01-01T00:05:00.000Z"},
	}

	vis := TriageVisibility(mates, nil, "")

	assert.Equal(t, []string{"a", "b"}, ids(vis.Visible))
	assert.Empty(t, vis.Minimized)
}

func TestLeadSortsFirstRegardlessOfInputOrder(t *testing.T) {
	mates := []team.Teammate{
		{ID: "a", Status: team.TeammateWorking, CreatedAt: "2026-01-01T00:01:40.000Z"},
		{ID: "lead", IsLead: true, Status: team.TeammateIdle, CreatedAt: "2026-01-01T00:00:50.000Z"},
		{ID: "b", Status: team.TeammateWorking, CreatedAt: "2026-01-01T00:05:00.000Z"},
	}

	vis := TriageVisibility(mates, nil, "")

	require.NotEmpty(t, vis.Visible)
	assert.Equal(t, "lead", vis.Visible[0].ID)
	assert.Equal(t, []string{"lead", "a", "b"}, ids(vis.Visible))
}

func TestErrorStatusCountsAsActive(t *testing.T) {
	mates := []team.Teammate{
		{ID: "a", Status: team.TeammateIdle, CreatedAt: "2026-01-01T00:01:40.000Z"},
		{ID: "b", Status: team.TeammateError, CreatedAt: "2026-01-01T00:05:00.000Z"},
	}

	vis := TriageVisibility(mates, nil, "")

	assert.Equal(t, []string{"b"}, ids(vis.Visible))
	assert.Equal(t, []string{"a"}, ids(vis.Minimized))
}
