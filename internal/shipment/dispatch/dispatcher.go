package dispatch

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"

	"riderBack/internal/shipment/geo"
	"riderBack/internal/shipment/lifecycle"
	"riderBack/internal/shipment/notify"
	"riderBack/internal/shipment/repo"
	"riderBack/internal/shipment/ws"
)

// Logger provides minimal logging for the shipment dispatcher.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// Config exposes dispatcher configuration knobs.
type Config interface {
	GetSearchRadiusStart() int
	GetSearchRadiusStep() int
	GetSearchRadiusMax() int
	GetDispatchTick() time.Duration
	GetOfferTTL() time.Duration
	GetBatchSize() int
	GetAverageSpeedKmh() float64
	GetRegionKey() string
}

// ShipmentsRepository lists shipments waiting for a rider.
type ShipmentsRepository interface {
	ListUnoffered(ctx context.Context, after *repo.Cursor, limit int) ([]repo.Shipment, error)
	StillCreated(ctx context.Context, ids []string) ([]string, error)
}

// OffersRepository persists offers.
type OffersRepository interface {
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
	OfferedRiders(ctx context.Context, shipmentID string) ([]string, error)
	Create(ctx context.Context, o repo.Offer) (repo.Offer, error)
}

// RidersRepository resolves push tokens.
type RidersRepository interface {
	Get(ctx context.Context, id string) (repo.Rider, error)
}

// OfferNotifier pushes offers to connected riders.
type OfferNotifier interface {
	SendOffer(riderID string, payload ws.OfferPayload)
}

type riderLocator interface {
	Nearby(ctx context.Context, lon, lat float64, radiusMeters float64, limit int, city string) ([]geo.NearbyRider, error)
}

// Dispatcher periodically offers CREATED shipments to the nearest live rider.
// One pending offer exists per shipment at a time; an expired offer moves the
// shipment on to the next rider.
type Dispatcher struct {
	shipments ShipmentsRepository
	offers    OffersRepository
	riders    RidersRepository
	locator   riderLocator
	riderWS   OfferNotifier
	push      notify.Notifier
	logger    Logger
	cfg       Config
	now       func() time.Time

	mu      sync.Mutex
	radius  map[string]int
	backlog *repo.Cursor
}

// New constructs a dispatcher instance.
func New(shipments ShipmentsRepository, offers OffersRepository, riders RidersRepository, locator riderLocator, riderWS OfferNotifier, push notify.Notifier, logger Logger, cfg Config) *Dispatcher {
	if push == nil {
		push = notify.Noop{}
	}
	return &Dispatcher{
		shipments: shipments,
		offers:    offers,
		riders:    riders,
		locator:   locator,
		riderWS:   riderWS,
		push:      push,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
		radius:    make(map[string]int),
	}
}

// Run launches the dispatcher loop until the context is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.GetDispatchTick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) {
	now := d.now()
	if n, err := d.offers.ExpireDue(ctx, now); err != nil {
		d.logger.Errorf("shipment dispatch: expire offers failed: %v", err)
	} else if n > 0 {
		d.logger.Infof("shipment dispatch: expired %d offers", n)
	}

	batch := d.cfg.GetBatchSize()
	if batch <= 0 {
		batch = 50
	}
	pending, err := d.shipments.ListUnoffered(ctx, d.backlog, batch)
	if err != nil {
		d.logger.Errorf("shipment dispatch: list unoffered failed: %v", err)
		return
	}
	if len(pending) < batch {
		// End of the backlog: start over next tick.
		d.backlog = nil
		d.forgetRadii(ctx)
	} else {
		last := pending[len(pending)-1]
		d.backlog = &repo.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	for _, sh := range pending {
		if err := d.offerShipment(ctx, sh, now); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			d.logger.Errorf("shipment dispatch: shipment %s failed: %v", sh.ID, err)
		}
	}
}

func (d *Dispatcher) offerShipment(ctx context.Context, sh repo.Shipment, now time.Time) error {
	if sh.Status != lifecycle.StatusCreated {
		return nil
	}
	origin, ok := sh.StopBySeq(lifecycle.StopSeqVendor)
	if !ok {
		d.logger.Errorf("shipment dispatch: shipment %s has no vendor stop", sh.ID)
		return nil
	}

	city := strings.TrimSpace(origin.City.String)
	if city == "" {
		city = d.cfg.GetRegionKey()
	}
	radius := d.currentRadius(sh.ID)

	candidates, err := d.locator.Nearby(ctx, origin.Lon, origin.Lat, float64(radius), 20, city)
	if err != nil {
		return err
	}
	offered, err := d.offers.OfferedRiders(ctx, sh.ID)
	if err != nil {
		return err
	}
	fresh := lo.Filter(candidates, func(c geo.NearbyRider, _ int) bool {
		return !lo.Contains(offered, c.ID)
	})
	if len(fresh) == 0 {
		next := d.expand(sh.ID, radius)
		d.logger.Infof("shipment dispatch: %s no new riders within %dm; radius -> %d", sh.ID, radius, next)
		return nil
	}

	// Candidates come back sorted by distance, so the first is the nearest.
	target := fresh[0]
	ttl := d.cfg.GetOfferTTL()
	offer, err := d.offers.Create(ctx, repo.Offer{
		ShipmentID: sh.ID,
		RiderID:    target.ID,
		DistanceM:  int(math.Round(target.Dist)),
		EtaSeconds: d.etaSeconds(target.Dist),
		ExpiresAt:  now.Add(ttl),
	})
	if err != nil {
		return err
	}

	d.riderWS.SendOffer(target.ID, ws.OfferPayload{
		OfferID:      offer.ID,
		ShipmentID:   sh.ID,
		OrderNo:      sh.OrderNo,
		VendorName:   sh.VendorName,
		EtaSeconds:   offer.EtaSeconds,
		DistanceM:    offer.DistanceM,
		ExpiresAt:    offer.ExpiresAt,
		ExpiresInSec: int(ttl.Seconds()),
	})
	d.pushOffer(ctx, sh, offer, int(ttl.Seconds()))
	d.logger.Infof("shipment dispatch: offer %s sent shipment=%s rider=%s dist=%dm", offer.ID, sh.ID, target.ID, offer.DistanceM)
	return nil
}

func (d *Dispatcher) pushOffer(ctx context.Context, sh repo.Shipment, offer repo.Offer, expiresIn int) {
	if d.riders == nil {
		return
	}
	rider, err := d.riders.Get(ctx, offer.RiderID)
	if err != nil || !rider.FCMToken.Valid {
		return
	}
	err = d.push.NotifyOffer(ctx, rider.FCMToken.String, notify.Offer{
		OfferID:    offer.ID,
		ShipmentID: sh.ID,
		OrderNo:    sh.OrderNo,
		VendorName: sh.VendorName,
		EtaSeconds: offer.EtaSeconds,
		DistanceM:  offer.DistanceM,
		ExpiresIn:  expiresIn,
	})
	if err != nil {
		d.logger.Errorf("shipment dispatch: push offer %s failed: %v", offer.ID, err)
	}
}

func (d *Dispatcher) etaSeconds(distM float64) int {
	speed := d.cfg.GetAverageSpeedKmh()
	if speed <= 0 {
		speed = 25
	}
	return int(math.Round(distM / (speed * 1000 / 3600)))
}

func (d *Dispatcher) currentRadius(shipmentID string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if r, ok := d.radius[shipmentID]; ok {
		return r
	}
	return d.cfg.GetSearchRadiusStart()
}

func (d *Dispatcher) expand(shipmentID string, radius int) int {
	next := radius + d.cfg.GetSearchRadiusStep()
	if limit := d.cfg.GetSearchRadiusMax(); next > limit {
		next = limit
	}
	d.mu.Lock()
	d.radius[shipmentID] = next
	d.mu.Unlock()
	return next
}

// forgetRadii drops radius state for shipments that are no longer CREATED.
func (d *Dispatcher) forgetRadii(ctx context.Context) {
	d.mu.Lock()
	ids := lo.Keys(d.radius)
	d.mu.Unlock()
	if len(ids) == 0 {
		return
	}

	live, err := d.shipments.StillCreated(ctx, ids)
	if err != nil {
		d.logger.Errorf("shipment dispatch: check waiting shipments failed: %v", err)
		return
	}
	gone, _ := lo.Difference(ids, live)

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range gone {
		delete(d.radius, id)
	}
}
