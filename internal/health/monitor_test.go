package health

import "testing"

func TestMonitorIssueCap(t *testing.T) {
	m := NewMonitor(3)
	for i, ts := range []string{"t1", "t2", "t3", "t4"} {
		_ = i
		m.ObserveActivity("tm-1", "error loop", "", ts)
	}
	issues := m.Issues("tm-1")
	if len(issues) != 3 {
		t.Fatalf("got %d issues, want 3", len(issues))
	}
	// Newest first; the oldest (t1) was evicted.
	if issues[0].Timestamp != "t4" || issues[2].Timestamp != "t2" {
		t.Errorf("unexpected eviction order: %+v", issues)
	}
}

func TestMonitorIgnoresCleanActivity(t *testing.T) {
	m := NewMonitor(3)
	if got := m.ObserveActivity("tm-1", "running tests", "", "t1"); got != CategoryNone {
		t.Fatalf("got %q, want none", got)
	}
	if len(m.Issues("tm-1")) != 0 {
		t.Fatal("clean activity must not record an issue")
	}
}

func TestMonitorHeartbeatStalledFlag(t *testing.T) {
	m := NewMonitor(3)
	cat := m.ObserveHeartbeat(HeartbeatSnapshot{
		TeammateID: "tm-1",
		Summary:    "no keyword here",
		Stalled:    true,
		Timestamp:  "t1",
	})
	if cat != CategoryStall {
		t.Fatalf("got %q, want stall", cat)
	}
	if len(m.Issues("tm-1")) != 1 {
		t.Fatal("stalled heartbeat must record an issue")
	}
}

func TestSummarize(t *testing.T) {
	m := NewMonitor(3)
	m.ObserveActivity("tm-1", "error loop", "", "2026-01-01T00:00:01.000Z")
	m.ObserveActivity("tm-1", "retry storm", "", "2026-01-01T00:00:02.000Z")
	m.ObserveActivity("tm-2", "stalled", "", "2026-01-01T00:00:03.000Z")
	m.ObserveHeartbeat(HeartbeatSnapshot{TeammateID: "tm-2", ContextPct: 95, Timestamp: "2026-01-01T00:00:04.000Z"})

	sum := m.Summarize(2)
	if sum.ErrorLoops != 1 || sum.RetryStorms != 1 || sum.Stalls != 1 {
		t.Fatalf("unexpected counts: %+v", sum)
	}
	if sum.Total() != 3 {
		t.Fatalf("Total() = %d, want 3", sum.Total())
	}
	if len(sum.Recent) != 2 {
		t.Fatalf("got %d recent alerts, want 2", len(sum.Recent))
	}
	if sum.Recent[0].Category != CategoryStall {
		t.Errorf("newest alert should be the stall, got %+v", sum.Recent[0])
	}
	if len(sum.ContextExhausted) != 1 || sum.ContextExhausted[0] != "tm-2" {
		t.Errorf("context exhaustion not detected: %+v", sum.ContextExhausted)
	}
}
