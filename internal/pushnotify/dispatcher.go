package pushnotify

import (
	"context"
	"log/slog"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/envelope"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/eventbus"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/yolo"
)

// notifier is the sending seam so the dispatch filter can be tested
// without real web push traffic.
type notifier interface {
	SendToAll(ctx context.Context, payload *NotificationPayload)
}

// Dispatcher watches the event bus and turns attention-worthy envelopes
// into push notifications. Only events that need a human decision are
// forwarded: autonomous-run pauses that block on approval and new spec
// change proposals. Everything else stays on the dashboard.
type Dispatcher struct {
	bus    *eventbus.Bus
	sender notifier
}

func NewDispatcher(bus *eventbus.Bus, sender *Sender) *Dispatcher {
	return &Dispatcher{
		bus:    bus,
		sender: sender,
	}
}

// Start subscribes to the bus and dispatches until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	subID, ch := d.bus.Subscribe(256)
	defer d.bus.Unsubscribe(subID)

	slog.Info("push notification dispatcher started")

	for {
		select {
		case <-ctx.Done():
			slog.Info("push notification dispatcher stopped")
			return
		case env, ok := <-ch:
			if !ok {
				return
			}
			d.dispatch(ctx, env)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, env *envelope.Envelope) {
	payload := buildNotification(env)
	if payload == nil {
		return
	}
	d.sender.SendToAll(ctx, payload)
}

// buildNotification maps an envelope to a push payload, or nil when the
// event does not warrant one.
func buildNotification(env *envelope.Envelope) *NotificationPayload {
	switch env.Kind {
	case envelope.KindYoloPaused:
		decoded, err := env.DecodePayload()
		if err != nil {
			slog.Warn("push notification: failed to decode pause payload", "error", err)
			return nil
		}
		paused, ok := decoded.(*envelope.YoloPausedPayload)
		if !ok {
			return nil
		}
		switch paused.Reason {
		case yolo.PauseApprovalRequired:
			return &NotificationPayload{
				Title: "Approval required",
				Body:  pauseBody(paused.Detail, "An autonomous run is waiting for your approval."),
				URL:   teamURL(env.TeamID),
				Tag:   env.ID,
			}
		case yolo.PauseAllTeammatesInError:
			return &NotificationPayload{
				Title: "Run paused",
				Body:  pauseBody(paused.Detail, "All teammates hit errors; the run is paused."),
				URL:   teamURL(env.TeamID),
				Tag:   env.ID,
			}
		default:
			return nil
		}
	case envelope.KindYoloProposalCreated:
		decoded, err := env.DecodePayload()
		if err != nil {
			slog.Warn("push notification: failed to decode proposal payload", "error", err)
			return nil
		}
		proposal, ok := decoded.(*yolo.Proposal)
		if !ok {
			return nil
		}
		body := proposal.Title
		if body == "" {
			body = "A teammate proposed a change to the run's spec."
		}
		return &NotificationPayload{
			Title: "Spec change proposed",
			Body:  body,
			URL:   teamURL(env.TeamID),
			Tag:   env.ID,
		}
	default:
		return nil
	}
}

func pauseBody(detail, fallback string) string {
	if detail != "" {
		return detail
	}
	return fallback
}

func teamURL(teamID string) string {
	return "/teams/" + teamID
}
