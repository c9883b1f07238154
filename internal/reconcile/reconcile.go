// Package reconcile folds two sources into one consistent set of per-team
// collections: a one-shot persisted snapshot fetched when a client attaches,
// and the continuous live envelope stream. Dedup is by entity id over a
// bounded horizon several ring caps deep: an id retired from the horizon is
// far older than the oldest ring entry, so a late snapshot re-introducing it
// is sorted to the front and capped straight back out.
package reconcile

import (
	"sort"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/activity"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/message"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/snapshot"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/task"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/ring"
)

// seenHorizon sizes the message and activity dedup sets as a multiple of
// their ring caps. The task set stays an ordinary map: tasks are never
// ring-evicted, so it only ever holds one id per task in the collection.
const seenHorizon = 4

type Reconciler struct {
	lastSeq int64

	seenMessages *ring.Set
	seenTasks    map[string]struct{}
	seenActivity *ring.Set

	messages  *ring.Buffer[message.Message]
	tasks     []task.Task
	activity  *ring.Buffer[activity.Event]
	knowledge []snapshot.KnowledgeEntry
}

func New(messageCap, activityCap int) *Reconciler {
	return &Reconciler{
		seenMessages: ring.NewSet(seenHorizon * messageCap),
		seenTasks:    make(map[string]struct{}),
		seenActivity: ring.NewSet(seenHorizon * activityCap),
		messages:     ring.New[message.Message](messageCap),
		activity:     ring.New[activity.Event](activityCap),
	}
}

// AcceptSeq reports whether an envelope carrying seq should be applied. Zero
// means the sender did not stamp a sequence and is always accepted; otherwise
// the sequence must advance monotonically within the team's stream.
func (r *Reconciler) AcceptSeq(seq int64) bool {
	if seq == 0 {
		return true
	}
	if seq <= r.lastSeq {
		return false
	}
	r.lastSeq = seq
	return true
}

// AddMessage appends a live message. It returns false for a duplicate id.
func (r *Reconciler) AddMessage(m message.Message) bool {
	if m.ID != "" && !r.seenMessages.Add(m.ID) {
		return false
	}
	r.messages.Push(m)
	return true
}

// AddTask appends a newly created task. It returns false for a duplicate id.
func (r *Reconciler) AddTask(t task.Task) bool {
	if t.ID != "" {
		if _, dup := r.seenTasks[t.ID]; dup {
			return false
		}
		r.seenTasks[t.ID] = struct{}{}
	}
	r.tasks = append(r.tasks, t)
	return true
}

// UpdateTask replaces the task with a matching id in place, keeping order.
// An unknown id is a benign race between deletion and update: no-op, false.
func (r *Reconciler) UpdateTask(t task.Task) bool {
	for i := range r.tasks {
		if r.tasks[i].ID == t.ID {
			r.tasks[i] = t
			return true
		}
	}
	return false
}

// AddActivity appends a live activity event. It returns false for a
// duplicate id.
func (r *Reconciler) AddActivity(ev activity.Event) bool {
	if ev.ID != "" && !r.seenActivity.Add(ev.ID) {
		return false
	}
	r.activity.Push(ev)
	return true
}

// MergeSnapshot folds a persisted snapshot into the live collections.
// Entries already present live are kept (live is assumed newer); entries
// present only in the snapshot are prepended. Messages are then re-sorted by
// timestamp ascending (fixed-width strings, lexical compare) and capped so
// the newest survive even when the snapshot lands after live traffic.
//
// cancelled is consulted before every collection mutation, not once at the
// top: a stale fetch resolving after its session moved on must not be
// half-applied across collections.
func (r *Reconciler) MergeSnapshot(snap *snapshot.Snapshot, cancelled func() bool) {
	if snap == nil {
		return
	}
	if cancelled == nil {
		cancelled = func() bool { return false }
	}

	if cancelled() {
		return
	}
	r.mergeMessages(snap.Messages)
	if cancelled() {
		return
	}
	r.mergeTasks(snap.Tasks)
	if cancelled() {
		return
	}
	r.mergeActivity(snap.Activity)
	if cancelled() {
		return
	}
	// Knowledge has no live event source, so the latest snapshot is
	// authoritative.
	r.knowledge = append([]snapshot.KnowledgeEntry(nil), snap.Knowledge...)
}

func (r *Reconciler) mergeMessages(snapMsgs []message.Message) {
	var snapOnly []message.Message
	for _, m := range snapMsgs {
		if m.ID != "" && !r.seenMessages.Add(m.ID) {
			continue
		}
		snapOnly = append(snapOnly, m)
	}
	if len(snapOnly) == 0 {
		return
	}
	combined := append(snapOnly, r.messages.Items()...)
	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Timestamp < combined[j].Timestamp
	})
	r.messages.Fill(combined)
}

func (r *Reconciler) mergeTasks(snapTasks []task.Task) {
	var snapOnly []task.Task
	for _, t := range snapTasks {
		if t.ID != "" {
			if _, dup := r.seenTasks[t.ID]; dup {
				continue
			}
			r.seenTasks[t.ID] = struct{}{}
		}
		snapOnly = append(snapOnly, t)
	}
	if len(snapOnly) == 0 {
		return
	}
	r.tasks = append(snapOnly, r.tasks...)
}

func (r *Reconciler) mergeActivity(snapEvents []activity.Event) {
	var snapOnly []activity.Event
	for _, ev := range snapEvents {
		if ev.ID != "" && !r.seenActivity.Add(ev.ID) {
			continue
		}
		snapOnly = append(snapOnly, ev)
	}
	if len(snapOnly) == 0 {
		return
	}
	r.activity.Fill(append(snapOnly, r.activity.Items()...))
}

func (r *Reconciler) Messages() []message.Message { return r.messages.Items() }

func (r *Reconciler) Tasks() []task.Task {
	return append([]task.Task(nil), r.tasks...)
}

func (r *Reconciler) Activity() []activity.Event { return r.activity.Items() }

func (r *Reconciler) Knowledge() []snapshot.KnowledgeEntry {
	return append([]snapshot.KnowledgeEntry(nil), r.knowledge...)
}
