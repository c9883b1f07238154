package coordinator

import (
	"fmt"
	"log/slog"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/activity"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/dashboard"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/envelope"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/message"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/qualitygate"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/task"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/team"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/yolo"
)

// fold applies one envelope to the session. Protocol errors (unknown kind,
// malformed payload) are logged and dropped; they never propagate. Dedup by
// envelope id and the per-team sequence check run before anything mutates.
func (s *Session) fold(env *envelope.Envelope) {
	if env.ID != "" && !s.seen.Add(env.ID) {
		return
	}
	if !s.reconciler.AcceptSeq(env.Seq) {
		slog.Debug("dropping stale envelope", "team_id", s.teamID, "seq", env.Seq)
		return
	}

	decoded, err := env.DecodePayload()
	if err != nil {
		slog.Warn("dropping malformed envelope",
			"team_id", s.teamID, "kind", string(env.Kind), "error", err)
		return
	}

	applied := false
	switch p := decoded.(type) {
	case *team.Team:
		applied = s.foldTeamUpdated(p)
	case *envelope.TeamErrorPayload:
		applied = s.foldTeamError(p, env)
	case *team.Teammate:
		applied = s.foldTeammateSpawned(p, env)
	case *envelope.TeammateStatusPayload:
		applied = s.foldTeammateStatus(p, env)
	case *task.Task:
		applied = s.foldTask(p, env)
	case *message.Message:
		applied = s.foldMessage(p, env)
	case *activity.Event:
		applied = s.foldActivity(p, env)
	case *envelope.CostUsagePayload:
		applied = s.foldCostUsage(p, env)
	case *envelope.QualityGateStartedPayload:
		applied = s.foldGateStarted(p)
	case *qualitygate.Result:
		applied = s.foldGateResult(p, env)
	case *envelope.IntegrationStartedPayload:
		applied = s.foldIntegrationStarted(p, env)
	case *envelope.IntegrationResultPayload:
		applied = s.foldIntegrationResult(p, env)
	case *envelope.YoloPhasePayload:
		applied = s.foldPhaseChanged(p, env)
	case *envelope.YoloPausedPayload:
		applied = s.foldPaused(p, env)
	case *envelope.YoloResumedPayload:
		applied = s.foldResumed(p, env)
	case *envelope.YoloAbortedPayload:
		applied = s.foldAborted(p, env)
	case *yolo.Proposal:
		applied = s.foldProposalCreated(p, env)
	case *envelope.ProposalResolvedPayload:
		applied = s.foldProposalResolved(p, env)
	case *envelope.HeartbeatBatchPayload:
		applied = s.foldHeartbeats(p, env)
	default:
		slog.Warn("dropping envelope with unhandled payload",
			"team_id", s.teamID, "kind", string(env.Kind))
	}

	if applied {
		s.dash = dashboard.Reduce(s.dash, dashboard.IncrementPendingUpdates{})
	}
}

func (s *Session) foldTeamUpdated(t *team.Team) bool {
	s.dash = dashboard.Reduce(s.dash, dashboard.SetTeam{Team: t})
	if len(t.Teammates) > 0 {
		s.dash = dashboard.Reduce(s.dash, dashboard.SetTeammates{Teammates: t.Teammates})
	}
	return true
}

func (s *Session) foldTeamError(p *envelope.TeamErrorPayload, env *envelope.Envelope) bool {
	s.addActivity(activity.Event{
		ID:         synthID(env, "error"),
		Timestamp:  env.Timestamp,
		Type:       activity.TypeError,
		Detail:     p.Message,
		TeammateID: p.TeammateID,
		TaskID:     p.TaskID,
	})
	if p.TeammateID != "" {
		if mate, ok := s.findTeammate(p.TeammateID); ok {
			mate.Status = team.TeammateError
			s.dash = dashboard.Reduce(s.dash, dashboard.UpsertTeammate{Teammate: mate})
		}
	}
	return true
}

func (s *Session) foldTeammateSpawned(mate *team.Teammate, env *envelope.Envelope) bool {
	if mate.ID == "" {
		slog.Warn("dropping teammate spawn without id", "team_id", s.teamID)
		return false
	}
	if mate.CreatedAt == "" {
		mate.CreatedAt = env.Timestamp
	}
	if mate.Status == "" {
		mate.Status = team.TeammateSpawning
	}
	s.dash = dashboard.Reduce(s.dash, dashboard.UpsertTeammate{Teammate: *mate})
	s.addActivity(activity.Event{
		ID:         synthID(env, "spawned"),
		Timestamp:  env.Timestamp,
		Type:       activity.TypeTeammateSpawned,
		Detail:     fmt.Sprintf("%s joined the team", teammateLabel(*mate)),
		TeammateID: mate.ID,
	})
	return true
}

func (s *Session) foldTeammateStatus(p *envelope.TeammateStatusPayload, env *envelope.Envelope) bool {
	if p.TeammateID == "" {
		return false
	}
	mate, ok := s.findTeammate(p.TeammateID)
	if !ok {
		// Status can race ahead of the spawn event; keep it as a stub the
		// spawn will fill in.
		mate = team.Teammate{ID: p.TeammateID, CreatedAt: env.Timestamp}
	}
	mate.Status = p.Status
	mate.TaskID = p.TaskID
	s.dash = dashboard.Reduce(s.dash, dashboard.UpsertTeammate{Teammate: mate})

	typ := activity.TypeStatusChanged
	detail := p.Detail
	if p.Status == team.TeammateShutdown {
		typ = activity.TypeTeammateShutdown
		if detail == "" {
			detail = fmt.Sprintf("%s shut down", teammateLabel(mate))
		}
	} else if detail == "" {
		detail = fmt.Sprintf("%s is now %s", teammateLabel(mate), p.Status)
	}
	s.addActivity(activity.Event{
		ID:         synthID(env, "status"),
		Timestamp:  env.Timestamp,
		Type:       typ,
		Detail:     detail,
		TeammateID: p.TeammateID,
		TaskID:     p.TaskID,
	})
	return true
}

func (s *Session) foldTask(t *task.Task, env *envelope.Envelope) bool {
	if env.Kind == envelope.KindTaskCreated {
		if !s.reconciler.AddTask(*t) {
			return false
		}
		s.dash = dashboard.Reduce(s.dash, dashboard.SetTasks{Tasks: s.reconciler.Tasks()})
		s.addActivity(activity.Event{
			ID:         synthID(env, "task"),
			Timestamp:  env.Timestamp,
			Type:       activity.TypeTaskCreated,
			Detail:     t.Title,
			TeammateID: t.AssigneeID,
			TaskID:     t.ID,
		})
		return true
	}

	// A task update for an id we never saw is a benign race between
	// deletion and update: no-op.
	if !s.reconciler.UpdateTask(*t) {
		return false
	}
	s.dash = dashboard.Reduce(s.dash, dashboard.UpdateTask{Task: *t})

	typ := activity.TypeTaskUpdated
	switch t.Status {
	case task.StatusCompleted:
		typ = activity.TypeTaskCompleted
	case task.StatusFailed:
		typ = activity.TypeTaskFailed
	}
	s.addActivity(activity.Event{
		ID:         synthID(env, "task"),
		Timestamp:  env.Timestamp,
		Type:       typ,
		Detail:     t.Title,
		TeammateID: t.AssigneeID,
		TaskID:     t.ID,
	})
	return true
}

func (s *Session) foldMessage(m *message.Message, env *envelope.Envelope) bool {
	if m.Timestamp == "" {
		m.Timestamp = env.Timestamp
	}
	if !s.reconciler.AddMessage(*m) {
		return false
	}
	s.dash = dashboard.Reduce(s.dash, dashboard.AddMessage{Message: *m})
	if m.Kind == message.KindPlanSubmission {
		s.addActivity(activity.Event{
			ID:         synthID(env, "plan"),
			Timestamp:  env.Timestamp,
			Type:       activity.TypePlanSubmitted,
			Detail:     "plan submitted for review",
			TeammateID: m.From,
		})
	}
	return true
}

func (s *Session) foldActivity(ev *activity.Event, env *envelope.Envelope) bool {
	if ev.ID == "" {
		ev.ID = synthID(env, "activity")
	}
	if ev.Timestamp == "" {
		ev.Timestamp = env.Timestamp
	}
	return s.addActivity(*ev)
}

func (s *Session) foldCostUsage(p *envelope.CostUsagePayload, env *envelope.Envelope) bool {
	if p.TeammateID == "" {
		return false
	}
	mate, ok := s.findTeammate(p.TeammateID)
	if !ok {
		mate = team.Teammate{ID: p.TeammateID, CreatedAt: env.Timestamp}
	}
	mate.Usage = team.Usage{
		InputTokens:  p.InputTokens,
		OutputTokens: p.OutputTokens,
		CostUSD:      p.CostUSD,
		ContextPct:   p.ContextPct,
	}
	s.dash = dashboard.Reduce(s.dash, dashboard.UpsertTeammate{Teammate: mate})

	var sum dashboard.CostSummary
	for _, m := range s.dash.Teammates {
		sum.InputTokens += m.Usage.InputTokens
		sum.OutputTokens += m.Usage.OutputTokens
		sum.CostUSD += m.Usage.CostUSD
	}
	sum.UpdatedAt = env.Timestamp
	s.dash = dashboard.Reduce(s.dash, dashboard.UpdateCostSummary{Summary: sum})
	return true
}

func (s *Session) foldGateStarted(p *envelope.QualityGateStartedPayload) bool {
	if p.TaskID == "" {
		return false
	}
	s.gates.Begin(p.TaskID)
	return true
}

func (s *Session) foldGateResult(res *qualitygate.Result, env *envelope.Envelope) bool {
	if res.TaskID == "" {
		return false
	}
	events, _ := s.gates.Apply(*res, env.Timestamp)
	for i, ev := range events {
		ev.ID = fmt.Sprintf("%s:%d", synthID(env, "gate"), i)
		s.addActivity(ev)
	}
	return true
}

func (s *Session) foldIntegrationStarted(p *envelope.IntegrationStartedPayload, env *envelope.Envelope) bool {
	s.integration = IntegrationStatus{
		Running:   true,
		Detail:    p.Detail,
		UpdatedAt: env.Timestamp,
	}
	return true
}

func (s *Session) foldIntegrationResult(p *envelope.IntegrationResultPayload, env *envelope.Envelope) bool {
	s.integration = IntegrationStatus{
		Passed:    p.Passed,
		Detail:    p.Detail,
		UpdatedAt: env.Timestamp,
	}
	typ := activity.TypeIntegrationCheckPassed
	detail := p.Detail
	if !p.Passed {
		typ = activity.TypeIntegrationCheckFailed
		if detail == "" {
			detail = "integration check failed"
		}
	} else if detail == "" {
		detail = "integration check passed"
	}
	s.addActivity(activity.Event{
		ID:        synthID(env, "integration"),
		Timestamp: env.Timestamp,
		Type:      typ,
		Detail:    detail,
	})
	return true
}

func (s *Session) foldPhaseChanged(p *envelope.YoloPhasePayload, env *envelope.Envelope) bool {
	if err := s.machine.HandlePhaseChanged(p.Phase, env.Timestamp); err != nil {
		slog.Warn("dropping phase change", "team_id", s.teamID, "error", err)
		return false
	}
	detail := p.Detail
	if detail == "" {
		detail = fmt.Sprintf("run entered %s", s.machine.State().Phase)
	}
	s.addActivity(activity.Event{
		ID:        synthID(env, "phase"),
		Timestamp: env.Timestamp,
		Type:      activity.TypePhaseChanged,
		Detail:    detail,
	})
	return true
}

func (s *Session) foldPaused(p *envelope.YoloPausedPayload, env *envelope.Envelope) bool {
	if err := s.machine.HandlePaused(p.Reason, env.Timestamp); err != nil {
		slog.Warn("dropping pause", "team_id", s.teamID, "error", err)
		return false
	}
	detail := fmt.Sprintf("run paused: %s", p.Reason)
	if p.Detail != "" {
		detail = fmt.Sprintf("run paused: %s (%s)", p.Reason, p.Detail)
	}
	s.addActivity(activity.Event{
		ID:        synthID(env, "paused"),
		Timestamp: env.Timestamp,
		Type:      activity.TypePhaseChanged,
		Detail:    detail,
	})
	return true
}

func (s *Session) foldResumed(p *envelope.YoloResumedPayload, env *envelope.Envelope) bool {
	if err := s.machine.HandleResumed(env.Timestamp); err != nil {
		slog.Warn("dropping resume", "team_id", s.teamID, "error", err)
		return false
	}
	s.addActivity(activity.Event{
		ID:        synthID(env, "resumed"),
		Timestamp: env.Timestamp,
		Type:      activity.TypePhaseChanged,
		Detail:    fmt.Sprintf("run resumed into %s", s.machine.State().Phase),
	})
	return true
}

func (s *Session) foldAborted(p *envelope.YoloAbortedPayload, env *envelope.Envelope) bool {
	if err := s.machine.HandleAborted(p.Reason, env.Timestamp); err != nil {
		slog.Warn("dropping abort", "team_id", s.teamID, "error", err)
		return false
	}
	detail := "run aborted"
	if p.Reason != "" {
		detail = fmt.Sprintf("run aborted: %s", p.Reason)
	}
	s.addActivity(activity.Event{
		ID:        synthID(env, "aborted"),
		Timestamp: env.Timestamp,
		Type:      activity.TypePhaseChanged,
		Detail:    detail,
	})
	return true
}

func (s *Session) foldProposalCreated(p *yolo.Proposal, env *envelope.Envelope) bool {
	if p.ID == "" {
		slog.Warn("dropping proposal without id", "team_id", s.teamID)
		return false
	}
	if err := s.machine.HandleProposalCreated(*p, env.Timestamp); err != nil {
		slog.Warn("dropping proposal", "team_id", s.teamID, "error", err)
		return false
	}
	detail := p.Title
	if detail == "" {
		detail = "spec change proposed"
	}
	s.addActivity(activity.Event{
		ID:        synthID(env, "proposal"),
		Timestamp: env.Timestamp,
		Type:      activity.TypeProposalCreated,
		Detail:    detail,
	})
	return true
}

func (s *Session) foldProposalResolved(p *envelope.ProposalResolvedPayload, env *envelope.Envelope) bool {
	ts := p.ResolvedAt
	if ts == "" {
		ts = env.Timestamp
	}
	if err := s.machine.HandleProposalResolved(p.ProposalID, p.Accepted, ts); err != nil {
		slog.Warn("dropping proposal resolution", "team_id", s.teamID, "error", err)
		return false
	}
	decision := "rejected"
	if p.Accepted {
		decision = "accepted"
	}
	s.addActivity(activity.Event{
		ID:        synthID(env, "proposal"),
		Timestamp: ts,
		Type:      activity.TypeProposalResolved,
		Detail:    fmt.Sprintf("spec change proposal %s", decision),
	})
	return true
}

func (s *Session) foldHeartbeats(p *envelope.HeartbeatBatchPayload, env *envelope.Envelope) bool {
	if len(p.Heartbeats) == 0 {
		return false
	}
	for _, hb := range p.Heartbeats {
		s.monitor.ObserveHeartbeat(hb)
		if mate, ok := s.findTeammate(hb.TeammateID); ok {
			mate.Usage.ContextPct = hb.ContextPct
			s.dash = dashboard.Reduce(s.dash, dashboard.UpsertTeammate{Teammate: mate})
		}
	}
	return true
}

// addActivity routes one feed entry through the reconciler (dedup), the
// dashboard, and the health monitor. Returns false for a duplicate id.
func (s *Session) addActivity(ev activity.Event) bool {
	if !s.reconciler.AddActivity(ev) {
		return false
	}
	s.dash = dashboard.Reduce(s.dash, dashboard.AddActivity{Event: ev})
	if ev.TeammateID != "" {
		anomaly := ""
		if ev.Telemetry != nil {
			anomaly = ev.Telemetry.Anomaly
		}
		s.monitor.ObserveActivity(ev.TeammateID, ev.Detail, anomaly, ev.Timestamp)
	}
	return true
}

func (s *Session) findTeammate(id string) (team.Teammate, bool) {
	for _, mate := range s.dash.Teammates {
		if mate.ID == id {
			return mate, true
		}
	}
	return team.Teammate{}, false
}

func teammateLabel(mate team.Teammate) string {
	if mate.Name != "" {
		return mate.Name
	}
	return mate.ID
}

func synthID(env *envelope.Envelope, suffix string) string {
	if env.ID == "" {
		return envelope.NewID() + ":" + suffix
	}
	return env.ID + ":" + suffix
}
