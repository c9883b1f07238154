package dashboard

import (
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/task"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/team"
)

// Visibility partitions a team's roster into the cards shown prominently and
// the ones collapsed into a minimized bucket.
type Visibility struct {
	Visible   []team.Teammate `json:"visible"`
	Minimized []team.Teammate `json:"minimized"`
}

// TriageVisibility decides which teammate cards stay prominent. A teammate
// is active-like when it owns an in-progress task or its status is working,
// planning, or error. When an active cohort exists, teammates that are
// inactive (idle or shutdown, no in-progress task) and strictly older than
// the newest active teammate are minimized. The lead is always visible, and
// an explicitly selected teammate is forced visible regardless of age or
// activity. With no active cohort at all, everyone stays visible.
//
// Visible is ordered lead first, then input order.
func TriageVisibility(mates []team.Teammate, tasks []task.Task, selectedID string) Visibility {
	inProgress := make(map[string]struct{})
	owners := make(map[string]struct{})
	for _, t := range tasks {
		if t.Status != task.StatusInProgress {
			continue
		}
		inProgress[t.ID] = struct{}{}
		if t.AssigneeID != "" {
			owners[t.AssigneeID] = struct{}{}
		}
	}

	hasActiveTask := func(m team.Teammate) bool {
		if _, ok := owners[m.ID]; ok {
			return true
		}
		if m.TaskID == "" {
			return false
		}
		_, ok := inProgress[m.TaskID]
		return ok
	}
	activeLike := func(m team.Teammate) bool {
		switch m.Status {
		case team.TeammateWorking, team.TeammatePlanning, team.TeammateError:
			return true
		}
		return hasActiveTask(m)
	}

	newestActive := ""
	anyActive := false
	for _, m := range mates {
		if activeLike(m) {
			anyActive = true
			if m.CreatedAt > newestActive {
				newestActive = m.CreatedAt
			}
		}
	}

	var vis Visibility
	if !anyActive {
		vis.Visible = leadFirst(mates)
		return vis
	}

	for _, m := range mates {
		switch {
		case m.IsLead || m.ID == selectedID || activeLike(m):
			vis.Visible = append(vis.Visible, m)
		case inactiveStatus(m.Status) && m.CreatedAt < newestActive:
			vis.Minimized = append(vis.Minimized, m)
		default:
			vis.Visible = append(vis.Visible, m)
		}
	}
	vis.Visible = leadFirst(vis.Visible)
	return vis
}

func inactiveStatus(s team.TeammateStatus) bool {
	return s == team.TeammateIdle || s == team.TeammateShutdown
}

func leadFirst(mates []team.Teammate) []team.Teammate {
	if len(mates) == 0 {
		return nil
	}
	out := make([]team.Teammate, 0, len(mates))
	var rest []team.Teammate
	for _, m := range mates {
		if m.IsLead {
			out = append(out, m)
		} else {
			rest = append(rest, m)
		}
	}
	return append(out, rest...)
}
