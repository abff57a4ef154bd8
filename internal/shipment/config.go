package shipment

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

const (
	defaultOfferTTL          = 45 * time.Second
	defaultSearchRadiusStart = 1000
	defaultSearchRadiusStep  = 1000
	defaultSearchRadiusMax   = 8000
	defaultDispatchTick      = 5 * time.Second
	defaultBatchSize         = 50
	defaultAverageSpeedKmh   = 25
	defaultRedisCity         = "almaty"
	defaultGuardTTL          = 15 * time.Second
	defaultLiveTTL           = 2 * time.Minute
	defaultThrottleInterval  = 5 * time.Second
	defaultThrottleDistanceM = 10
	defaultTimezone          = "Asia/Almaty"
)

// Config holds runtime configuration for the shipment module.
type Config struct {
	OfferTTL          time.Duration
	SearchRadiusStart int
	SearchRadiusStep  int
	SearchRadiusMax   int
	DispatchTick      time.Duration
	BatchSize         int
	AverageSpeedKmh   int
	RedisCity         string
	GuardTTL          time.Duration
	LiveTTL           time.Duration
	ThrottleInterval  time.Duration
	ThrottleDistanceM int
	Location          *time.Location
}

// LoadConfig reads SHIPMENT_* environment variables and applies defaults. Every
// invalid value is reported, not only the first one.
func LoadConfig() (Config, error) {
	cfg := Config{
		OfferTTL:          defaultOfferTTL,
		SearchRadiusStart: defaultSearchRadiusStart,
		SearchRadiusStep:  defaultSearchRadiusStep,
		SearchRadiusMax:   defaultSearchRadiusMax,
		DispatchTick:      defaultDispatchTick,
		BatchSize:         defaultBatchSize,
		AverageSpeedKmh:   defaultAverageSpeedKmh,
		RedisCity:         defaultRedisCity,
		GuardTTL:          defaultGuardTTL,
		LiveTTL:           defaultLiveTTL,
		ThrottleInterval:  defaultThrottleInterval,
		ThrottleDistanceM: defaultThrottleDistanceM,
	}

	var result *multierror.Error
	readInt := func(name string, dst *int) {
		if v, err := readIntEnv(name); err != nil {
			result = multierror.Append(result, fmt.Errorf("parse %s: %w", name, err))
		} else if v != nil {
			*dst = *v
		}
	}
	readSeconds := func(name string, dst *time.Duration) {
		if v, err := readIntEnv(name); err != nil {
			result = multierror.Append(result, fmt.Errorf("parse %s: %w", name, err))
		} else if v != nil {
			*dst = time.Duration(*v) * time.Second
		}
	}

	readSeconds("SHIPMENT_OFFER_TTL_SECONDS", &cfg.OfferTTL)
	readInt("SHIPMENT_SEARCH_RADIUS_START", &cfg.SearchRadiusStart)
	readInt("SHIPMENT_SEARCH_RADIUS_STEP", &cfg.SearchRadiusStep)
	readInt("SHIPMENT_SEARCH_RADIUS_MAX", &cfg.SearchRadiusMax)
	readSeconds("SHIPMENT_DISPATCH_TICK_SECONDS", &cfg.DispatchTick)
	readInt("SHIPMENT_DISPATCH_BATCH", &cfg.BatchSize)
	readInt("SHIPMENT_AVG_SPEED_KMH", &cfg.AverageSpeedKmh)
	readSeconds("SHIPMENT_GUARD_TTL_SECONDS", &cfg.GuardTTL)
	readSeconds("SHIPMENT_LIVE_TTL_SECONDS", &cfg.LiveTTL)
	readSeconds("SHIPMENT_THROTTLE_SECONDS", &cfg.ThrottleInterval)
	readInt("SHIPMENT_THROTTLE_METERS", &cfg.ThrottleDistanceM)

	if v := os.Getenv("SHIPMENT_REDIS_CITY"); strings.TrimSpace(v) != "" {
		cfg.RedisCity = strings.ToLower(strings.TrimSpace(v))
	}

	tz := defaultTimezone
	if v := strings.TrimSpace(os.Getenv("SHIPMENT_TIMEZONE")); v != "" {
		tz = v
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		result = multierror.Append(result, fmt.Errorf("load SHIPMENT_TIMEZONE %q: %w", tz, err))
	}
	cfg.Location = loc

	positive := []struct {
		name string
		ok   bool
	}{
		{"SHIPMENT_OFFER_TTL_SECONDS", cfg.OfferTTL > 0},
		{"SHIPMENT_SEARCH_RADIUS_START", cfg.SearchRadiusStart > 0},
		{"SHIPMENT_SEARCH_RADIUS_STEP", cfg.SearchRadiusStep > 0},
		{"SHIPMENT_SEARCH_RADIUS_MAX", cfg.SearchRadiusMax > 0},
		{"SHIPMENT_DISPATCH_TICK_SECONDS", cfg.DispatchTick > 0},
		{"SHIPMENT_DISPATCH_BATCH", cfg.BatchSize > 0},
		{"SHIPMENT_AVG_SPEED_KMH", cfg.AverageSpeedKmh > 0},
		{"SHIPMENT_GUARD_TTL_SECONDS", cfg.GuardTTL > 0},
		{"SHIPMENT_LIVE_TTL_SECONDS", cfg.LiveTTL > 0},
	}
	for _, p := range positive {
		if !p.ok {
			result = multierror.Append(result, fmt.Errorf("%s must be positive", p.name))
		}
	}
	if cfg.SearchRadiusStart > cfg.SearchRadiusMax {
		result = multierror.Append(result, fmt.Errorf("SHIPMENT_SEARCH_RADIUS_START must be <= SHIPMENT_SEARCH_RADIUS_MAX"))
	}
	if cfg.ThrottleInterval < 0 || cfg.ThrottleDistanceM < 0 {
		result = multierror.Append(result, fmt.Errorf("SHIPMENT_THROTTLE_* must not be negative"))
	}

	if err := result.ErrorOrNil(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func readIntEnv(name string) (*int, error) {
	val := strings.TrimSpace(os.Getenv(name))
	if val == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(val)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
