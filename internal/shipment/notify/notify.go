package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"

	"riderBack/internal/shipment/lifecycle"
)

// Logger provides minimal logging for notifiers.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Offer is the push payload for a new shipment offer.
type Offer struct {
	OfferID    string
	ShipmentID string
	OrderNo    string
	VendorName string
	EtaSeconds int
	DistanceM  int
	ExpiresIn  int
}

// Notifier sends rider push notifications.
type Notifier interface {
	NotifyOffer(ctx context.Context, token string, offer Offer) error
	NotifyStatus(ctx context.Context, token, shipmentID, orderNo string, status lifecycle.Status) error
}

// Sender is the subset of *messaging.Client used by FCM.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// FCM delivers notifications through Firebase Cloud Messaging.
type FCM struct {
	client Sender
	logger Logger
}

// NewFCM initializes a Firebase app from a service account file.
func NewFCM(ctx context.Context, credentialsFile string, logger Logger) (*FCM, error) {
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return NewFCMWithSender(client, logger), nil
}

// NewFCMWithSender allows injecting a test sender.
func NewFCMWithSender(client Sender, logger Logger) *FCM {
	return &FCM{client: client, logger: logger}
}

func (f *FCM) NotifyOffer(ctx context.Context, token string, offer Offer) error {
	body := fmt.Sprintf("%s, order %s", offer.VendorName, offer.OrderNo)
	if offer.DistanceM > 0 {
		body += fmt.Sprintf(", %.1f km away", float64(offer.DistanceM)/1000)
	}
	return f.send(ctx, token, "New shipment offer", body, map[string]string{
		"type":       "offer_created",
		"offerId":    offer.OfferID,
		"shipmentId": offer.ShipmentID,
		"expiresIn":  strconv.Itoa(offer.ExpiresIn),
	})
}

func (f *FCM) NotifyStatus(ctx context.Context, token, shipmentID, orderNo string, status lifecycle.Status) error {
	return f.send(ctx, token, "Shipment "+orderNo, lifecycle.StatusLabel(status), map[string]string{
		"type":       "shipment_status",
		"shipmentId": shipmentID,
		"status":     string(status),
	})
}

func (f *FCM) send(ctx context.Context, token, title, body string, data map[string]string) error {
	if strings.TrimSpace(token) == "" {
		return nil
	}
	message := &messaging.Message{
		Token:        token,
		Notification: &messaging.Notification{Title: title, Body: body},
		Data:         data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				ChannelID: "high_priority_channel",
			},
		},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{Title: title, Body: body},
					Sound: "default",
				},
			},
		},
	}
	id, err := f.client.Send(ctx, message)
	if err != nil {
		f.logger.Errorf("fcm: send %s failed: %v", data["type"], err)
		return err
	}
	f.logger.Infof("fcm: sent %s (%s)", data["type"], id)
	return nil
}

// Noop drops every notification. It is used when Firebase is not configured.
type Noop struct{}

func (Noop) NotifyOffer(context.Context, string, Offer) error { return nil }

func (Noop) NotifyStatus(context.Context, string, string, string, lifecycle.Status) error {
	return nil
}
