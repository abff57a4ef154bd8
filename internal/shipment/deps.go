package shipment

import (
	"fmt"
	"net/http"

	"github.com/redis/go-redis/v9"

	"riderBack/internal/shipment/events"
	shiphttp "riderBack/internal/shipment/http"
	"riderBack/internal/shipment/notify"
	"riderBack/internal/shipment/ws"
	"riderBack/internal/storage"
)

// Logger is the minimal logging interface required by the shipment module.
type Logger interface {
	Infof(string, ...interface{})
	Errorf(string, ...interface{})
}

// Deps aggregates runtime dependencies for the shipment module.
type Deps struct {
	DB          *storage.DB
	Redis       *redis.Client
	Logger      Logger
	Config      Config
	HTTPClient  *http.Client
	Tokens      shiphttp.TokenIssuer
	VerifyToken ws.TokenVerifier
	HTTP        shiphttp.Config
	Publisher   events.Publisher
	Push        notify.Notifier
	Uploader    shiphttp.Uploader
	DGISKey     string
	DGISRegion  string
}

// Validate ensures that the deps struct contains the essentials before bootstrapping services.
func (d *Deps) Validate() error {
	if d == nil {
		return fmt.Errorf("shipment deps are nil")
	}
	if d.DB == nil {
		return fmt.Errorf("shipment deps DB is required")
	}
	if d.Logger == nil {
		return fmt.Errorf("shipment deps Logger is required")
	}
	if d.Tokens == nil || d.VerifyToken == nil {
		return fmt.Errorf("shipment deps token issuer and verifier are required")
	}
	if d.HTTPClient == nil {
		d.HTTPClient = &http.Client{}
	}
	if d.Publisher == nil {
		d.Publisher = events.NewLogPublisher(d.Logger)
	}
	if d.Push == nil {
		d.Push = notify.Noop{}
	}
	return nil
}
