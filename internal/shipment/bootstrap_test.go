package shipment

import (
	"context"
	"testing"

	"riderBack/internal/shipment/events"
	"riderBack/internal/shipment/notify"
)

type testLogger struct{}

func (testLogger) Infof(string, ...interface{})  {}
func (testLogger) Errorf(string, ...interface{}) {}

func TestNewPublisher(t *testing.T) {
	cases := []struct {
		name    string
		cfg     EventsConfig
		wantErr bool
		check   func(events.Publisher) bool
	}{
		{name: "default log", cfg: EventsConfig{}, check: func(p events.Publisher) bool { _, ok := p.(*events.LogPublisher); return ok }},
		{name: "kafka", cfg: EventsConfig{Driver: "Kafka", Brokers: "localhost:9092"}, check: func(p events.Publisher) bool { _, ok := p.(*events.KafkaPublisher); return ok }},
		{name: "kafka without brokers", cfg: EventsConfig{Driver: "kafka"}, wantErr: true},
		{name: "rabbit without url", cfg: EventsConfig{Driver: "rabbitmq"}, wantErr: true},
		{name: "unknown", cfg: EventsConfig{Driver: "nats"}, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := NewPublisher(tc.cfg, testLogger{})
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer p.Close()
			if !tc.check(p) {
				t.Fatalf("unexpected publisher %T", p)
			}
		})
	}
}

func TestNewNotifierWithoutCredentials(t *testing.T) {
	n, err := NewNotifier(context.Background(), " ", testLogger{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := n.(notify.Noop); !ok {
		t.Fatalf("expected noop notifier, got %T", n)
	}
}

func TestDepsValidate(t *testing.T) {
	var nilDeps *Deps
	if err := nilDeps.Validate(); err == nil {
		t.Fatal("expected error for nil deps")
	}
	if err := (&Deps{Logger: testLogger{}}).Validate(); err == nil {
		t.Fatal("expected error without DB")
	}
	if _, err := Bootstrap(&Deps{}); err == nil {
		t.Fatal("expected bootstrap to fail validation")
	}
}
