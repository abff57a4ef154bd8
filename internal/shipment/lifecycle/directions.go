package lifecycle

import "time"

// Directions is the routing record for a shipment's current leg.
type Directions struct {
	ShipmentID       string  `json:"id"`
	OrderNo          string  `json:"orderNo"`
	Status           Status  `json:"status"`
	Segment          Segment `json:"segment"`
	FromStopID       string  `json:"fromStopId"`
	ToStopID         string  `json:"toStopId"`
	FromLatitude     float64 `json:"fromLatitude"`
	FromLongitude    float64 `json:"fromLongitude"`
	ToLatitude       float64 `json:"toLatitude"`
	ToLongitude      float64 `json:"toLongitude"`
	FromLabel        string  `json:"fromLabel"`
	ToLabel          string  `json:"toLabel,omitempty"`
	ToAddress        string  `json:"toAddress"`
	DistanceKm       float64 `json:"distanceKm"`
	EtaSeconds       int     `json:"etaSeconds"`
	EtaText          string  `json:"etaText"`
	ArrivalTimeISO   string  `json:"arrivalTimeIso"`
	ArrivalTimeLocal string  `json:"arrivalTimeLocal"`
	Polyline         string  `json:"polyline"`
}

// FreshDirections is a Directions record stamped with the moment it was fetched.
// Status updates only accept this type, so a caller has to go through a fetch first.
type FreshDirections struct {
	d         Directions
	fetchedAt time.Time
}

// NewFreshDirections stamps d as fetched at fetchedAt.
func NewFreshDirections(d Directions, fetchedAt time.Time) *FreshDirections {
	return &FreshDirections{d: d, fetchedAt: fetchedAt}
}

// Directions returns the wrapped record.
func (f *FreshDirections) Directions() Directions {
	if f == nil {
		return Directions{}
	}
	return f.d
}

// FetchedAt returns the fetch timestamp.
func (f *FreshDirections) FetchedAt() time.Time {
	if f == nil {
		return time.Time{}
	}
	return f.fetchedAt
}

// Age returns how long ago the record was fetched.
func (f *FreshDirections) Age(now time.Time) time.Duration {
	return now.Sub(f.FetchedAt())
}

// Stale reports whether the record is older than maxAge. A nil record is always stale.
func (f *FreshDirections) Stale(now time.Time, maxAge time.Duration) bool {
	if f == nil || f.fetchedAt.IsZero() {
		return true
	}
	return f.Age(now) > maxAge
}

// StopIDForStatusUpdate returns the stop id that must accompany a transition to next.
// The backend always reports the stop of the current action as toStopId, including the
// two distinct warehouse stops that share the TO_WAREHOUSE segment, so the value is
// passed through unchanged. The target status is accepted so callers state which
// transition they are resolving for.
func StopIDForStatusUpdate(fresh *FreshDirections, _ Status) (string, error) {
	if fresh == nil || fresh.d.ToStopID == "" {
		return "", ErrMissingDirections
	}
	return fresh.d.ToStopID, nil
}
