package pushnotification

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/kazz187/timeguild/internal/config"
	"github.com/kazz187/timeguild/internal/metrics"
	"github.com/kazz187/timeguild/internal/pushsubscription"
)

type NotificationPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"url,omitempty"`
	Tag   string `json:"tag,omitempty"`
}

type sendFunc func(message []byte, s *webpush.Subscription, options *webpush.Options) (*http.Response, error)

type Sender struct {
	vapidEnv *config.VAPIDEnv
	repo     pushsubscription.Repository
	metrics  *metrics.Metrics
	send     sendFunc
}

func NewSender(vapidEnv *config.VAPIDEnv, repo pushsubscription.Repository, m *metrics.Metrics) *Sender {
	return &Sender{
		vapidEnv: vapidEnv,
		repo:     repo,
		metrics:  m,
		send:     webpush.SendNotification,
	}
}

// SendToUsers pushes payload to every subscription of userIDs. Delivery is
// best effort; failures are logged and counted.
func (s *Sender) SendToUsers(ctx context.Context, userIDs []string, payload *NotificationPayload) {
	if !s.vapidEnv.Enabled() {
		slog.DebugContext(ctx, "push notification: VAPID keys not configured, skipping")
		return
	}
	if len(userIDs) == 0 {
		return
	}

	subs, err := s.repo.ListByUsers(ctx, userIDs)
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to list subscriptions", "error", err)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "push notification: failed to marshal payload", "error", err)
		return
	}

	for _, sub := range subs {
		s.sendToSubscription(ctx, sub, data)
	}
}

func (s *Sender) sendToSubscription(ctx context.Context, sub *pushsubscription.Subscription, data []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dhKey,
			Auth:   sub.AuthKey,
		},
	}

	resp, err := s.send(data, wpSub, &webpush.Options{
		VAPIDPublicKey:  s.vapidEnv.PublicKey,
		VAPIDPrivateKey: s.vapidEnv.PrivateKey,
		Subscriber:      s.vapidEnv.Contact,
		TTL:             86400,
	})
	if err != nil {
		s.metrics.PushFailures.Inc()
		slog.ErrorContext(ctx, "push notification: failed to send", "endpoint", sub.Endpoint, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		slog.InfoContext(ctx, "push notification: subscription expired, removing", "endpoint", sub.Endpoint)
		if err := s.repo.Delete(ctx, sub.ID); err != nil {
			slog.ErrorContext(ctx, "push notification: failed to delete expired subscription", "id", sub.ID, "error", err)
		}
		return
	}

	if resp.StatusCode >= 400 {
		s.metrics.PushFailures.Inc()
		slog.WarnContext(ctx, "push notification: unexpected status", "endpoint", sub.Endpoint, "status", resp.StatusCode)
	}
}
