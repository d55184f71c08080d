package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"golang.org/x/sync/errgroup"

	"laundry-reservation-backend/internal/model"
	"laundry-reservation-backend/internal/store"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Notifier delivers messages to every device a user registered.
type Notifier struct {
	subs    store.SubscriptionStore
	webpush *webpush.Options
	sender  NotificationSender
	fanout  int
}

// NewNotifier creates a Notifier that sends at most fanout pushes at once
// per user.
func NewNotifier(subs store.SubscriptionStore, webpushOptions *webpush.Options, fanout int) *Notifier {
	if fanout <= 0 {
		fanout = 1
	}
	return &Notifier{
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		fanout:  fanout,
	}
}

// WithSender replaces the push transport.
func (n *Notifier) WithSender(sender NotificationSender) *Notifier {
	n.sender = sender
	return n
}

// NotifyUser sends msg to each of the user's subscriptions. A user with no
// subscriptions is a no-op. Failed sends are returned joined; successful
// ones are not rolled back.
func (n *Notifier) NotifyUser(ctx context.Context, userID string, msg Message) error {
	subscriptions, err := n.subs.UserSubscriptions(ctx, userID)
	if err != nil {
		return err
	}
	if len(subscriptions) == 0 {
		return nil
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	log.Printf("Sending %d notifications to user %s", len(subscriptions), userID)

	errs := make([]error, len(subscriptions))
	var g errgroup.Group
	g.SetLimit(n.fanout)
	for i, sub := range subscriptions {
		g.Go(func() error {
			errs[i] = n.sendNotification(ctx, sub, payload)
			return nil
		})
	}
	g.Wait()

	return errors.Join(errs...)
}

// sendNotification sends a single web push notification.
func (n *Notifier) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) error {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := n.sender.Send(payload, wpSub, n.webpush)
	if err != nil {
		return fmt.Errorf("error sending notification to %s: %w", sub.Endpoint, err)
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := n.subs.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
		return nil
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push service rejected notification to %s: status %d", sub.Endpoint, resp.StatusCode)
	}
	return nil
}
