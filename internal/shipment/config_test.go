package shipment

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("SHIPMENT_TIMEZONE", "UTC")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OfferTTL != defaultOfferTTL || cfg.SearchRadiusMax != defaultSearchRadiusMax {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.Location != time.UTC {
		t.Fatalf("expected UTC location, got %v", cfg.Location)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SHIPMENT_TIMEZONE", "UTC")
	t.Setenv("SHIPMENT_OFFER_TTL_SECONDS", "30")
	t.Setenv("SHIPMENT_REDIS_CITY", " Astana ")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OfferTTL != 30*time.Second || cfg.RedisCity != "astana" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadConfigReportsAllErrors(t *testing.T) {
	t.Setenv("SHIPMENT_TIMEZONE", "UTC")
	t.Setenv("SHIPMENT_OFFER_TTL_SECONDS", "abc")
	t.Setenv("SHIPMENT_SEARCH_RADIUS_STEP", "0")
	t.Setenv("SHIPMENT_SEARCH_RADIUS_START", "9000")
	_, err := LoadConfig()
	if err == nil {
		t.Fatal("expected error")
	}
	msg := err.Error()
	for _, want := range []string{"SHIPMENT_OFFER_TTL_SECONDS", "SHIPMENT_SEARCH_RADIUS_STEP must be positive", "SHIPMENT_SEARCH_RADIUS_START must be <="} {
		if !strings.Contains(msg, want) {
			t.Fatalf("expected %q in %q", want, msg)
		}
	}
}
