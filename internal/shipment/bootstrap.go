package shipment

import (
	"context"
	"fmt"
	"strings"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"riderBack/internal/shipment/directions"
	"riderBack/internal/shipment/dispatch"
	"riderBack/internal/shipment/events"
	"riderBack/internal/shipment/geo"
	"riderBack/internal/shipment/guard"
	shiphttp "riderBack/internal/shipment/http"
	"riderBack/internal/shipment/notify"
	"riderBack/internal/shipment/repo"
	"riderBack/internal/shipment/ws"
)

// Module is the wired shipment backend: REST server, rider hub and dispatcher.
type Module struct {
	server     *shiphttp.Server
	hub        *ws.RiderHub
	dispatcher *dispatch.Dispatcher
	publisher  events.Publisher
}

// Bootstrap constructs repositories and services from deps.
func Bootstrap(deps *Deps) (*Module, error) {
	if err := deps.Validate(); err != nil {
		return nil, err
	}
	cfg := deps.Config

	shipmentsRepo := repo.NewShipmentsRepo(deps.DB)
	offersRepo := repo.NewOffersRepo(deps.DB)
	ridersRepo := repo.NewRidersRepo(deps.DB)

	var locator *geo.RiderLocator
	if deps.Redis != nil {
		locator = geo.NewRiderLocator(deps.Redis, cfg.LiveTTL)
	}
	throttle := geo.NewThrottle(cfg.ThrottleInterval, float64(cfg.ThrottleDistanceM))

	var sink ws.LocationSink
	var positions directions.PositionSource
	if locator != nil {
		sink, positions = locator, locator
	}
	hub := ws.NewRiderHub(deps.Logger, deps.VerifyToken, sink, throttle, cfg.RedisCity)

	var (
		router   directions.Router
		geocoder shiphttp.Geocoder
	)
	if deps.DGISKey != "" {
		dgis := geo.NewDGISClient(deps.HTTPClient, deps.DGISKey, deps.DGISRegion)
		router, geocoder = dgis, dgis
	}
	dirs := directions.New(shipmentsRepo, positions, router, deps.Logger, directions.Config{
		AverageSpeedKmh: float64(cfg.AverageSpeedKmh),
		Location:        cfg.Location,
	})

	server := shiphttp.NewServer(deps.HTTP, deps.Logger, shiphttp.Deps{
		Shipments:  shipmentsRepo,
		Offers:     offersRepo,
		Riders:     ridersRepo,
		Directions: dirs,
		Guard:      guard.New(deps.Redis, cfg.GuardTTL),
		Publisher:  deps.Publisher,
		Push:       deps.Push,
		Pusher:     hub,
		Tokens:     deps.Tokens,
		Uploader:   deps.Uploader,
		Geocoder:   geocoder,
		WS:         hub.ServeWS,
	})

	m := &Module{server: server, hub: hub, publisher: deps.Publisher}
	if locator != nil {
		m.dispatcher = dispatch.New(shipmentsRepo, offersRepo, ridersRepo, locator, hub, deps.Push, deps.Logger, dispatch.ConfigAdapter{
			SearchRadiusStart: cfg.SearchRadiusStart,
			SearchRadiusStep:  cfg.SearchRadiusStep,
			SearchRadiusMax:   cfg.SearchRadiusMax,
			DispatchTick:      cfg.DispatchTick,
			OfferTTL:          cfg.OfferTTL,
			BatchSize:         cfg.BatchSize,
			AverageSpeedKmh:   float64(cfg.AverageSpeedKmh),
			RegionKey:         cfg.RedisCity,
		})
	} else {
		deps.Logger.Infof("shipment: redis not configured, dispatcher and live locations disabled")
	}
	return m, nil
}

// RegisterRoutes wires the HTTP handlers into the provided mux.
func (m *Module) RegisterRoutes(mux *pat.PatternServeMux, public, rider, ops alice.Chain) {
	m.server.Register(mux, public, rider, ops)
}

// StartBackground launches the offer dispatcher until ctx is cancelled.
func (m *Module) StartBackground(ctx context.Context) {
	if m.dispatcher != nil {
		go m.dispatcher.Run(ctx)
	}
}

// Close releases the event publisher.
func (m *Module) Close() error {
	return m.publisher.Close()
}

// EventsConfig selects the status-change event transport.
type EventsConfig struct {
	Driver   string
	Brokers  string
	Topic    string
	AMQPURL  string
	Exchange string
}

// NewPublisher opens the publisher named by c.Driver: kafka, rabbitmq or log (default).
func NewPublisher(c EventsConfig, logger Logger) (events.Publisher, error) {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case "", "log":
		return events.NewLogPublisher(logger), nil
	case "kafka":
		if c.Brokers == "" {
			return nil, fmt.Errorf("kafka brokers are required")
		}
		topic := c.Topic
		if topic == "" {
			topic = "shipment.status"
		}
		return events.NewKafkaPublisher(c.Brokers, topic), nil
	case "rabbitmq", "amqp":
		if c.AMQPURL == "" {
			return nil, fmt.Errorf("amqp url is required")
		}
		p, err := events.DialRabbit(c.AMQPURL, c.Exchange)
		if err != nil {
			return nil, fmt.Errorf("dial rabbitmq: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown events driver %q", c.Driver)
	}
}

// NewNotifier returns an FCM notifier, or a no-op one when no credentials file is set.
func NewNotifier(ctx context.Context, credentialsFile string, logger Logger) (notify.Notifier, error) {
	if strings.TrimSpace(credentialsFile) == "" {
		return notify.Noop{}, nil
	}
	return notify.NewFCM(ctx, credentialsFile, logger)
}
