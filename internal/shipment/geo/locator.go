package geo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrInvalidCoords is returned for out-of-range or null-island coordinates.
var ErrInvalidCoords = errors.New("geo: invalid coordinates")

// Point is a WGS84 coordinate.
type Point struct {
	Lon float64
	Lat float64
}

// NearbyRider represents a live rider returned from Redis GEO queries.
type NearbyRider struct {
	ID   string
	Dist float64
	Lon  float64
	Lat  float64
}

// RiderLocator keeps live rider positions in per-city Redis GEO sets. A rider counts
// as live while its presence key has not expired.
type RiderLocator struct {
	rdb     *redis.Client
	liveTTL time.Duration
}

// NewRiderLocator creates a locator. liveTTL bounds how long a silent rider stays live.
func NewRiderLocator(rdb *redis.Client, liveTTL time.Duration) *RiderLocator {
	if liveTTL <= 0 {
		liveTTL = 2 * time.Minute
	}
	return &RiderLocator{rdb: rdb, liveTTL: liveTTL}
}

func geoKey(city string) string {
	return fmt.Sprintf("riders:%s:live", normalizeCity(city))
}

func presenceKey(riderID string) string {
	return fmt.Sprintf("rider:%s:city", riderID)
}

func memberName(riderID string) string {
	return "rider:" + riderID
}

func parseRiderMember(member string) (string, error) {
	id, ok := strings.CutPrefix(member, "rider:")
	if !ok || id == "" {
		return "", fmt.Errorf("invalid member %q", member)
	}
	return id, nil
}

func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

// ValidCoords reports whether lon/lat are in range and away from the null island.
func ValidCoords(lon, lat float64) bool {
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return false
	}
	return math.Abs(lon) >= 1e-4 || math.Abs(lat) >= 1e-4
}

// Update stores the rider position and refreshes its presence.
func (l *RiderLocator) Update(ctx context.Context, riderID string, lon, lat float64, city string) error {
	city = normalizeCity(city)
	if city == "" {
		return fmt.Errorf("geo: empty city for rider %s", riderID)
	}
	if !ValidCoords(lon, lat) {
		return fmt.Errorf("%w: lon=%.8f lat=%.8f", ErrInvalidCoords, lon, lat)
	}

	prev, err := l.rdb.Get(ctx, presenceKey(riderID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	pipe := l.rdb.TxPipeline()
	if prev != "" && prev != city {
		pipe.ZRem(ctx, geoKey(prev), memberName(riderID))
	}
	pipe.GeoAdd(ctx, geoKey(city), &redis.GeoLocation{Name: memberName(riderID), Longitude: lon, Latitude: lat})
	pipe.Set(ctx, presenceKey(riderID), city, l.liveTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Position returns the last known live position of the rider.
func (l *RiderLocator) Position(ctx context.Context, riderID string) (Point, bool, error) {
	city, err := l.rdb.Get(ctx, presenceKey(riderID)).Result()
	if errors.Is(err, redis.Nil) {
		return Point{}, false, nil
	}
	if err != nil {
		return Point{}, false, err
	}
	pos, err := l.rdb.GeoPos(ctx, geoKey(city), memberName(riderID)).Result()
	if err != nil {
		return Point{}, false, err
	}
	if len(pos) == 0 || pos[0] == nil {
		return Point{}, false, nil
	}
	return Point{Lon: pos[0].Longitude, Lat: pos[0].Latitude}, true, nil
}

// GoOffline removes the rider from its city set and drops its presence.
func (l *RiderLocator) GoOffline(ctx context.Context, riderID string) error {
	city, err := l.rdb.Get(ctx, presenceKey(riderID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	pipe := l.rdb.TxPipeline()
	pipe.ZRem(ctx, geoKey(city), memberName(riderID))
	pipe.Del(ctx, presenceKey(riderID))
	_, err = pipe.Exec(ctx)
	return err
}

// Nearby returns live riders within radius sorted by distance. Members whose presence
// expired are skipped and pruned from the set.
func (l *RiderLocator) Nearby(ctx context.Context, lon, lat float64, radiusMeters float64, limit int, city string) ([]NearbyRider, error) {
	key := geoKey(city)
	res, err := l.rdb.GeoSearchLocation(ctx, key, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  lon,
			Latitude:   lat,
			Radius:     radiusMeters,
			RadiusUnit: "m",
			Sort:       "ASC",
			Count:      limit,
		},
		WithCoord: true,
		WithDist:  true,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	candidates := make([]NearbyRider, 0, len(res))
	for _, item := range res {
		id, err := parseRiderMember(item.Name)
		if err != nil {
			continue
		}
		candidates = append(candidates, NearbyRider{ID: id, Dist: item.Dist, Lon: item.Longitude, Lat: item.Latitude})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	pipe := l.rdb.Pipeline()
	checks := make([]*redis.IntCmd, len(candidates))
	for i, c := range candidates {
		checks[i] = pipe.Exists(ctx, presenceKey(c.ID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	riders := candidates[:0]
	var stale []any
	for i, c := range candidates {
		if checks[i].Val() == 0 {
			stale = append(stale, memberName(c.ID))
			continue
		}
		riders = append(riders, c)
	}
	if len(stale) > 0 {
		_ = l.rdb.ZRem(ctx, key, stale...).Err()
	}
	return riders, nil
}
