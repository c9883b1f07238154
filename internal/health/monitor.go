package health

import (
	"sort"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/ring"
)

// DefaultIssueCap bounds the per-teammate issue history.
const DefaultIssueCap = 3

// contextExhaustionPct is the context-window utilization above which a
// teammate is flagged as running out of context.
const contextExhaustionPct = 90

// HeartbeatSnapshot is a periodic per-teammate liveness record, emitted
// independently of task-completion events.
type HeartbeatSnapshot struct {
	TeammateID string `json:"teammateId" yaml:"teammate_id"`
	ToolCalls  int    `json:"toolCalls" yaml:"tool_calls"`
	LastTool   string `json:"lastTool,omitempty" yaml:"last_tool,omitempty"`
	Summary    string `json:"summary,omitempty" yaml:"summary,omitempty"`
	Progress   int    `json:"progress" yaml:"progress"`
	ContextPct int    `json:"contextPct" yaml:"context_pct"`
	Stalled    bool   `json:"stalled,omitempty" yaml:"stalled,omitempty"`
	Timestamp  string `json:"timestamp" yaml:"timestamp"`
}

// Issue is one classified health alert for a teammate.
type Issue struct {
	Category   Category `json:"category"`
	Detail     string   `json:"detail,omitempty"`
	TeammateID string   `json:"teammateId"`
	Timestamp  string   `json:"timestamp"`
}

// Summary aggregates all currently-held alerts for the badge view.
type Summary struct {
	Stalls           int      `json:"stalls"`
	ErrorLoops       int      `json:"errorLoops"`
	RetryStorms      int      `json:"retryStorms"`
	Recent           []Issue  `json:"recent"`
	ContextExhausted []string `json:"contextExhausted,omitempty"`
}

// Total returns the number of alerts across all categories.
func (s Summary) Total() int {
	return s.Stalls + s.ErrorLoops + s.RetryStorms
}

// Monitor classifies activity signals and keeps a small ring of issues per
// teammate plus the latest heartbeat. It is driven synchronously by the
// session loop and holds no locks of its own.
type Monitor struct {
	issueCap   int
	issues     map[string]*ring.Buffer[Issue]
	heartbeats map[string]HeartbeatSnapshot
}

func NewMonitor(issueCap int) *Monitor {
	if issueCap < 1 {
		issueCap = DefaultIssueCap
	}
	return &Monitor{
		issueCap:   issueCap,
		issues:     make(map[string]*ring.Buffer[Issue]),
		heartbeats: make(map[string]HeartbeatSnapshot),
	}
}

// ObserveActivity classifies one activity entry and records an issue when a
// category other than none results. The anomaly argument carries the
// structured telemetry kind when present, empty otherwise.
func (m *Monitor) ObserveActivity(teammateID, detail, anomaly, timestamp string) Category {
	cat := ClassifyWithTelemetry(detail, anomaly)
	if cat == CategoryNone || teammateID == "" {
		return cat
	}
	m.record(Issue{
		Category:   cat,
		Detail:     detail,
		TeammateID: teammateID,
		Timestamp:  timestamp,
	})
	return cat
}

// ObserveHeartbeat stores the latest heartbeat. An explicit stalled flag
// classifies as a stall without consulting the summary text.
func (m *Monitor) ObserveHeartbeat(hb HeartbeatSnapshot) Category {
	if hb.TeammateID == "" {
		return CategoryNone
	}
	m.heartbeats[hb.TeammateID] = hb
	if hb.Stalled {
		m.record(Issue{
			Category:   CategoryStall,
			Detail:     hb.Summary,
			TeammateID: hb.TeammateID,
			Timestamp:  hb.Timestamp,
		})
		return CategoryStall
	}
	return m.ObserveActivity(hb.TeammateID, hb.Summary, "", hb.Timestamp)
}

func (m *Monitor) record(issue Issue) {
	buf, ok := m.issues[issue.TeammateID]
	if !ok {
		buf = ring.New[Issue](m.issueCap)
		m.issues[issue.TeammateID] = buf
	}
	buf.Push(issue)
}

// Issues returns the held alerts for one teammate, newest first.
func (m *Monitor) Issues(teammateID string) []Issue {
	buf, ok := m.issues[teammateID]
	if !ok {
		return nil
	}
	return buf.NewestFirst()
}

// Heartbeat returns the latest heartbeat for one teammate.
func (m *Monitor) Heartbeat(teammateID string) (HeartbeatSnapshot, bool) {
	hb, ok := m.heartbeats[teammateID]
	return hb, ok
}

// Summarize aggregates category counts across every teammate's current
// alerts and returns the most recent limit alerts, newest first.
func (m *Monitor) Summarize(limit int) Summary {
	var sum Summary
	var all []Issue
	for _, buf := range m.issues {
		for _, issue := range buf.Items() {
			switch issue.Category {
			case CategoryStall:
				sum.Stalls++
			case CategoryErrorLoop:
				sum.ErrorLoops++
			case CategoryRetryStorm:
				sum.RetryStorms++
			}
			all = append(all, issue)
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp > all[j].Timestamp
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	sum.Recent = all

	var exhausted []string
	for id, hb := range m.heartbeats {
		if hb.ContextPct >= contextExhaustionPct {
			exhausted = append(exhausted, id)
		}
	}
	sort.Strings(exhausted)
	sum.ContextExhausted = exhausted
	return sum
}
