package qualitygate

import (
	"fmt"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/activity"
)

// Config governs cycle counting and escalation for every task a tracker
// sees. An empty EscalationModel means escalation is not configured.
type Config struct {
	MaxCycles       int
	PassThreshold   float64
	EscalationModel string
}

// TaskGates carries the review state of one task: the latest result plus the
// ordered history of prior cycles.
type TaskGates struct {
	TaskID      string      `json:"taskId"`
	Latest      *Result     `json:"latest,omitempty"`
	History     []Result    `json:"history,omitempty"`
	Disposition Disposition `json:"disposition"`
	Cycle       int         `json:"cycle"`
	EscalatedTo string      `json:"escalatedTo,omitempty"`
}

// Tracker aggregates review cycles per task. It is pure state folding: Apply
// never blocks and never reads the clock; timestamps come from the caller.
type Tracker struct {
	cfg   Config
	tasks map[string]*TaskGates
}

func NewTracker(cfg Config) *Tracker {
	if cfg.MaxCycles < 1 {
		cfg.MaxCycles = 1
	}
	return &Tracker{
		cfg:   cfg,
		tasks: make(map[string]*TaskGates),
	}
}

// Begin marks a review cycle as started for the task. Safe to call for an
// unknown task; it creates the tracking slot.
func (t *Tracker) Begin(taskID string) *TaskGates {
	tg, ok := t.tasks[taskID]
	if !ok {
		tg = &TaskGates{TaskID: taskID, Disposition: DispositionPending}
		t.tasks[taskID] = tg
	}
	return tg
}

// Apply folds one completed review cycle into the task's gate state and
// returns the activity events the cycle produced. Passed and Score on the
// inbound result are recomputed here; the external reviewer only reports
// per-stage outcomes.
//
// A rejection increments the cycle count and emits review feedback. At the
// cycle cap without a pass, the disposition becomes failed-max-cycles unless
// an escalation model is configured, in which case the task is re-attempted
// at that model exactly once and EscalatedTo is recorded without resetting
// the count.
func (t *Tracker) Apply(res Result, now string) ([]activity.Event, Disposition) {
	tg := t.Begin(res.TaskID)

	res.Score, res.Passed = Evaluate(res.Stages, t.cfg.PassThreshold)
	res.MaxCycles = t.cfg.MaxCycles
	if tg.Cycle < t.cfg.MaxCycles {
		tg.Cycle++
	}
	res.Cycle = tg.Cycle
	if res.Timestamp == "" {
		res.Timestamp = now
	}

	var events []activity.Event
	if res.Passed {
		tg.Disposition = DispositionPassed
		events = append(events, activity.Event{
			Timestamp: now,
			Type:      activity.TypeQualityGatePassed,
			Detail:    fmt.Sprintf("quality gate passed with score %.1f on cycle %d/%d", res.Score, res.Cycle, res.MaxCycles),
			TaskID:    res.TaskID,
		})
	} else {
		tg.Disposition = DispositionRejected
		events = append(events, activity.Event{
			Timestamp: now,
			Type:      activity.TypeQualityGateFailed,
			Detail:    fmt.Sprintf("quality gate failed with score %.1f on cycle %d/%d", res.Score, res.Cycle, res.MaxCycles),
			TaskID:    res.TaskID,
		})
		events = append(events, activity.Event{
			Timestamp:  now,
			Type:       activity.TypeReviewFeedbackSent,
			Detail:     "review feedback sent to assignee",
			TeammateID: res.FeedbackTo,
			TaskID:     res.TaskID,
		})
		if tg.Cycle >= t.cfg.MaxCycles {
			if t.cfg.EscalationModel != "" && tg.EscalatedTo == "" {
				tg.EscalatedTo = t.cfg.EscalationModel
				res.EscalatedTo = t.cfg.EscalationModel
				tg.Disposition = DispositionEscalated
			} else {
				tg.Disposition = DispositionFailedMaxCycles
			}
		}
	}

	tg.History = append(tg.History, res)
	tg.Latest = &tg.History[len(tg.History)-1]
	return events, tg.Disposition
}

// Gates returns the tracked state for one task, or nil when unseen.
func (t *Tracker) Gates(taskID string) *TaskGates {
	return t.tasks[taskID]
}

// All returns every tracked task's gate state keyed by task id.
func (t *Tracker) All() map[string]*TaskGates {
	out := make(map[string]*TaskGates, len(t.tasks))
	for id, tg := range t.tasks {
		out[id] = tg
	}
	return out
}
