package http

import (
	"context"
	"net/http"
	"time"

	"github.com/bmizerany/pat"
	"github.com/justinas/alice"

	"riderBack/internal/shipment/events"
	"riderBack/internal/shipment/lifecycle"
	"riderBack/internal/shipment/notify"
	"riderBack/internal/shipment/repo"
	"riderBack/internal/shipment/ws"
)

// Logger captures the logging contract required by the server.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// ShipmentStore is the shipment persistence used by the handlers.
type ShipmentStore interface {
	Create(ctx context.Context, s repo.Shipment) (repo.Shipment, error)
	Get(ctx context.Context, id string) (repo.Shipment, error)
	ListForRider(ctx context.Context, riderID string, lq repo.ListQuery) (repo.Page, error)
	UpdateStatus(ctx context.Context, id string, from, to lifecycle.Status, atStopID, note string) error
	History(ctx context.Context, id string) ([]repo.HistoryEntry, error)
}

// OfferStore accepts dispatch offers.
type OfferStore interface {
	Get(ctx context.Context, id string) (repo.Offer, error)
	PendingFor(ctx context.Context, shipmentID, riderID string, now time.Time) (repo.Offer, error)
	Accept(ctx context.Context, offerID, riderID string, now time.Time) (repo.Offer, error)
}

// RiderStore is the rider account persistence.
type RiderStore interface {
	Get(ctx context.Context, id string) (repo.Rider, error)
	GetByLogin(ctx context.Context, login string) (repo.Rider, error)
	UpdatePassword(ctx context.Context, id, hash string) error
	UpdateProfile(ctx context.Context, id string, p repo.Profile) error
	UpdateFCMToken(ctx context.Context, id, token string) error
	UpdateAvatar(ctx context.Context, id, url string) error
}

// DirectionsResolver computes the current leg of a loaded shipment.
type DirectionsResolver interface {
	ForShipment(ctx context.Context, sh repo.Shipment, riderID string) (lifecycle.Directions, error)
}

// TransitionGuard serializes status changes per shipment.
type TransitionGuard interface {
	Acquire(ctx context.Context, shipmentID string) (func(), error)
}

// StatusPusher delivers status changes to a connected rider.
type StatusPusher interface {
	PushStatus(riderID string, payload ws.StatusPayload)
}

// TokenIssuer signs access tokens.
type TokenIssuer interface {
	NewJWT(riderID, role string, ttl time.Duration) (string, error)
}

// Uploader stores media files and returns their public URL.
type Uploader interface {
	Upload(ctx context.Context, data []byte, name, contentType string) (string, error)
}

// Geocoder resolves an address to lon, lat.
type Geocoder interface {
	Geocode(ctx context.Context, query string) (float64, float64, error)
}

// Config is the subset of runtime configuration required by the HTTP handlers.
type Config struct {
	TokenTTL      time.Duration
	DefaultLimit  int
	MaxLimit      int
	MaxUploadSize int64
}

// Deps groups the collaborators of the server. Publisher, Push, Pusher, Uploader and
// Geocoder are optional.
type Deps struct {
	Shipments  ShipmentStore
	Offers     OfferStore
	Riders     RiderStore
	Directions DirectionsResolver
	Guard      TransitionGuard
	Publisher  events.Publisher
	Push       notify.Notifier
	Pusher     StatusPusher
	Tokens     TokenIssuer
	Uploader   Uploader
	Geocoder   Geocoder
	WS         http.HandlerFunc
}

// Server provides HTTP handlers for the rider shipment contract.
type Server struct {
	cfg    Config
	logger Logger
	deps   Deps
	now    func() time.Time
}

// NewServer constructs a Server instance.
func NewServer(cfg Config, logger Logger, deps Deps) *Server {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 10 << 20
	}
	if deps.Push == nil {
		deps.Push = notify.Noop{}
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NewLogPublisher(logger)
	}
	return &Server{cfg: cfg, logger: logger, deps: deps, now: time.Now}
}

// Register mounts the rider routes on the mux. public wraps unauthenticated routes,
// rider and ops wrap routes that need an Identity with the respective role.
func (s *Server) Register(mux *pat.PatternServeMux, public, rider, ops alice.Chain) {
	mux.Post("/auth/login", public.ThenFunc(s.handleLogin))

	mux.Get("/user/me", rider.ThenFunc(s.handleMe))
	mux.Add("PATCH", "/user/me", rider.ThenFunc(s.handleUpdateProfile))
	mux.Add("PATCH", "/user/me/password", rider.ThenFunc(s.handleChangePassword))
	mux.Put("/user/me/fcm-token", rider.ThenFunc(s.handleFCMToken))
	mux.Post("/media/upload", rider.ThenFunc(s.handleUpload))

	mux.Get("/me/shipments", rider.ThenFunc(s.handleListShipments))
	mux.Get("/me/shipments/:id/directions", rider.ThenFunc(s.handleDirections))
	mux.Get("/me/shipments/:id/history", rider.ThenFunc(s.handleHistory))
	mux.Post("/me/shipments/:id/assign/accept", rider.ThenFunc(s.handleAcceptOffer))
	mux.Add("PATCH", "/me/shipments/:id/status", rider.ThenFunc(s.handleUpdateStatus))

	mux.Post("/ops/shipments", ops.ThenFunc(s.handleCreateShipment))

	if s.deps.WS != nil {
		mux.Get("/ws/rider", s.deps.WS)
	}
}
