package events

import (
	"context"
	"time"

	"riderBack/internal/shipment/lifecycle"
)

// Logger provides minimal logging for publishers.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// StatusChanged is emitted after a shipment transition is committed.
type StatusChanged struct {
	ShipmentID string           `json:"shipmentId"`
	OrderNo    string           `json:"orderNo"`
	RiderID    string           `json:"riderId"`
	From       lifecycle.Status `json:"from"`
	To         lifecycle.Status `json:"to"`
	AtStopID   string           `json:"atStopId,omitempty"`
	Note       string           `json:"note,omitempty"`
	Final      bool             `json:"final"`
	OccurredAt time.Time        `json:"occurredAt"`
}

// Publisher delivers status-change events to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ev StatusChanged) error
	Close() error
}

// LogPublisher only writes events to the log. It is used when no broker is configured.
type LogPublisher struct {
	logger Logger
}

// NewLogPublisher constructs a LogPublisher.
func NewLogPublisher(logger Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, ev StatusChanged) error {
	p.logger.Infof("shipment event: %s %s -> %s rider=%s stop=%s", ev.ShipmentID, ev.From, ev.To, ev.RiderID, ev.AtStopID)
	return nil
}

func (p *LogPublisher) Close() error { return nil }
