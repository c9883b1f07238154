// Package pushnotify delivers attention-worthy team events to browsers
// registered for web push.
package pushnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/sourcegraph/conc"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/config"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/pushsubscription"
)

// notificationTTL is how long a push service may hold an undelivered
// notification. Approval requests are stale after a day anyway.
const notificationTTL = 24 * time.Hour

// NotificationPayload is the JSON document the service worker receives.
type NotificationPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

// Sender delivers payloads to every registered subscription. Delivery is
// best effort: failures are logged, and subscriptions the push service
// reports as gone are pruned from the repository.
type Sender struct {
	vapid *config.VAPIDEnv
	repo  pushsubscription.Repository
}

func NewSender(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository) *Sender {
	return &Sender{
		vapid: vapidEnv,
		repo:  repo,
	}
}

// SendToAll fans the payload out to all subscriptions in parallel and
// returns once every delivery attempt has finished. Without VAPID keys
// it is a no-op.
func (s *Sender) SendToAll(ctx context.Context, payload *NotificationPayload) {
	if s.vapid.VAPIDPrivateKey == "" || s.vapid.VAPIDPublicKey == "" {
		slog.Warn("push notification: VAPID keys not configured, skipping")
		return
	}

	subs, err := s.repo.List(ctx)
	if err != nil {
		slog.Error("push notification: failed to list subscriptions", "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("push notification: failed to marshal payload", "error", err)
		return
	}

	wg := conc.NewWaitGroup()
	for _, sub := range subs {
		wg.Go(func() {
			s.deliver(ctx, sub, data)
		})
	}
	if r := wg.WaitAndRecover(); r != nil {
		slog.Error("push notification: send panicked", "panic", r.Value)
	}
}

func (s *Sender) deliver(ctx context.Context, sub *pushsubscription.Subscription, data []byte) {
	gone, err := s.send(sub, data)
	switch {
	case err != nil:
		slog.Error("push notification: delivery failed", "endpoint", sub.Endpoint, "error", err)
	case gone:
		slog.Info("push notification: subscription expired, pruning", "endpoint", sub.Endpoint)
		if err := s.repo.Delete(ctx, sub.ID); err != nil {
			slog.Error("push notification: failed to prune subscription", "id", sub.ID, "error", err)
		}
	}
}

// send performs one web push request. It reports gone=true when the push
// service answered 404 or 410, meaning the browser dropped the subscription.
func (s *Sender) send(sub *pushsubscription.Subscription, data []byte) (bool, error) {
	resp, err := webpush.SendNotification(data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}, &webpush.Options{
		VAPIDPublicKey:  s.vapid.VAPIDPublicKey,
		VAPIDPrivateKey: s.vapid.VAPIDPrivateKey,
		Subscriber:      s.vapid.VAPIDContact,
		TTL:             int(notificationTTL / time.Second),
	})
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return true, nil
	case resp.StatusCode >= 400:
		return false, fmt.Errorf("push service returned status %d", resp.StatusCode)
	}
	return false, nil
}
