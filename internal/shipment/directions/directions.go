package directions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"riderBack/internal/shipment/geo"
	"riderBack/internal/shipment/lifecycle"
	"riderBack/internal/shipment/repo"
)

var (
	// ErrStopMissing is returned when the shipment has no stop for the leg its status points to.
	ErrStopMissing = errors.New("directions: target stop missing")
	// ErrNoLeg is returned for statuses with no routing leg (unknown tokens).
	ErrNoLeg = errors.New("directions: status has no leg")
)

// Logger provides minimal logging for the service.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// ShipmentGetter loads a shipment with its stops.
type ShipmentGetter interface {
	Get(ctx context.Context, id string) (repo.Shipment, error)
}

// PositionSource reports a rider's last live position.
type PositionSource interface {
	Position(ctx context.Context, riderID string) (geo.Point, bool, error)
}

// Router computes road distance (m) and duration (s) between two points.
type Router interface {
	RouteMatrix(ctx context.Context, fromLon, fromLat, toLon, toLat float64) (int, int, error)
}

// Config tunes the fallback estimate and arrival time rendering.
type Config struct {
	AverageSpeedKmh float64
	Location        *time.Location
}

// Service resolves the current leg of a shipment for a rider.
type Service struct {
	shipments ShipmentGetter
	positions PositionSource
	router    Router
	logger    Logger
	cfg       Config
	now       func() time.Time
}

// New constructs a Service. positions and router may be nil.
func New(shipments ShipmentGetter, positions PositionSource, router Router, logger Logger, cfg Config) *Service {
	if cfg.AverageSpeedKmh <= 0 {
		cfg.AverageSpeedKmh = 25
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{shipments: shipments, positions: positions, router: router, logger: logger, cfg: cfg, now: time.Now}
}

// Resolve loads the shipment and returns directions for its current leg. A shipment
// assigned to another rider is reported as repo.ErrNotFound.
func (s *Service) Resolve(ctx context.Context, shipmentID, riderID string) (lifecycle.Directions, error) {
	sh, err := s.shipments.Get(ctx, shipmentID)
	if err != nil {
		return lifecycle.Directions{}, err
	}
	if sh.RiderID.Valid && sh.RiderID.String != riderID {
		return lifecycle.Directions{}, repo.ErrNotFound
	}
	return s.ForShipment(ctx, sh, riderID)
}

// ExpectedStop returns the stop a status update from the shipment's current status must carry.
func ExpectedStop(sh repo.Shipment) (repo.Stop, error) {
	seq, ok := lifecycle.TargetStopSeq(sh.Status)
	if !ok {
		return repo.Stop{}, fmt.Errorf("%w: %s", ErrNoLeg, sh.Status)
	}
	stop, ok := sh.StopBySeq(seq)
	if !ok {
		return repo.Stop{}, fmt.Errorf("%w: seq %d", ErrStopMissing, seq)
	}
	return stop, nil
}

// ForShipment builds directions for an already loaded shipment.
func (s *Service) ForShipment(ctx context.Context, sh repo.Shipment, riderID string) (lifecycle.Directions, error) {
	to, err := ExpectedStop(sh)
	if err != nil {
		return lifecycle.Directions{}, err
	}
	segment, _ := lifecycle.ExpectedSegment(sh.Status)

	d := lifecycle.Directions{
		ShipmentID:  sh.ID,
		OrderNo:     sh.OrderNo,
		Status:      sh.Status,
		Segment:     segment,
		ToStopID:    to.ID,
		ToLatitude:  to.Lat,
		ToLongitude: to.Lon,
		ToLabel:     to.Label,
		ToAddress:   to.Address,
	}

	from, fromStop, ok := s.origin(ctx, sh, to, riderID)
	d.FromLatitude, d.FromLongitude = from.Lat, from.Lon
	if ok {
		d.FromStopID = fromStop.ID
		d.FromLabel = fromStop.Label
	} else {
		d.FromLabel = "Current location"
	}

	distM, durS := s.estimate(ctx, from, geo.Point{Lon: to.Lon, Lat: to.Lat})
	arrival := s.now().Add(time.Duration(durS) * time.Second)

	d.DistanceKm = math.Round(float64(distM)/10) / 100
	d.EtaSeconds = durS
	d.EtaText = FormatETA(durS)
	d.ArrivalTimeISO = arrival.UTC().Format(time.RFC3339)
	d.ArrivalTimeLocal = arrival.In(s.cfg.Location).Format("15:04")
	d.Polyline = geo.EncodePolyline([]geo.Point{from, {Lon: to.Lon, Lat: to.Lat}})
	return d, nil
}

// origin picks the leg start: the previous stop, or for the first leg the rider's live
// position, falling back to the vendor stop. ok is false when the origin is the rider.
func (s *Service) origin(ctx context.Context, sh repo.Shipment, to repo.Stop, riderID string) (geo.Point, repo.Stop, bool) {
	if to.Seq > lifecycle.StopSeqVendor {
		if prev, ok := sh.StopBySeq(to.Seq - 1); ok {
			return geo.Point{Lon: prev.Lon, Lat: prev.Lat}, prev, true
		}
	}
	if s.positions != nil && riderID != "" {
		p, ok, err := s.positions.Position(ctx, riderID)
		if err != nil {
			s.logger.Errorf("directions: rider %s position: %v", riderID, err)
		} else if ok {
			return p, repo.Stop{}, false
		}
	}
	return geo.Point{Lon: to.Lon, Lat: to.Lat}, to, true
}

func (s *Service) estimate(ctx context.Context, from, to geo.Point) (int, int) {
	if s.router != nil {
		dist, dur, err := s.router.RouteMatrix(ctx, from.Lon, from.Lat, to.Lon, to.Lat)
		if err == nil {
			return dist, dur
		}
		s.logger.Errorf("directions: route matrix failed, using straight line: %v", err)
	}
	dist := geo.Haversine(from.Lat, from.Lon, to.Lat, to.Lon)
	speed := s.cfg.AverageSpeedKmh * 1000 / 3600
	return int(math.Round(dist)), int(math.Round(dist / speed))
}

// FormatETA renders seconds as "1 min", "12 min" or "1 h 5 min".
func FormatETA(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	minutes := (seconds + 59) / 60
	if minutes == 0 {
		minutes = 1
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}
	h, m := minutes/60, minutes%60
	if m == 0 {
		return fmt.Sprintf("%d h", h)
	}
	return fmt.Sprintf("%d h %d min", h, m)
}
