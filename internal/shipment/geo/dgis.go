package geo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	catalogBaseURL = "https://catalog.api.2gis.com"
	routingBaseURL = "https://routing.api.2gis.com"
)

// ErrRouteNotFound is returned when 2GIS cannot build a route between the points.
var ErrRouteNotFound = errors.New("2gis: route not found")

// DGISClient provides access to 2GIS routing and geocoding.
type DGISClient struct {
	httpClient *http.Client
	apiKey     string
	regionID   string
}

// NewDGISClient constructs a new 2GIS client.
func NewDGISClient(httpClient *http.Client, apiKey, regionID string) *DGISClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &DGISClient{httpClient: httpClient, apiKey: apiKey, regionID: regionID}
}

type matrixPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type matrixRequest struct {
	Points    []matrixPoint `json:"points"`
	Sources   []int         `json:"sources"`
	Targets   []int         `json:"targets"`
	Transport string        `json:"transport,omitempty"`
	Type      string        `json:"type,omitempty"`
}

// RouteMatrix returns driving distance in metres and duration in seconds between two points.
func (c *DGISClient) RouteMatrix(ctx context.Context, fromLon, fromLat, toLon, toLat float64) (int, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	body, err := json.Marshal(matrixRequest{
		Points:    []matrixPoint{{Lat: fromLat, Lon: fromLon}, {Lat: toLat, Lon: toLon}},
		Sources:   []int{0},
		Targets:   []int{1},
		Transport: "driving",
		Type:      "jam",
	})
	if err != nil {
		return 0, 0, err
	}

	q := url.Values{}
	q.Set("key", c.apiKey)
	q.Set("version", "2.0")
	q.Set("response_format", "json")
	currentURL := fmt.Sprintf("%s/get_dist_matrix?%s", routingBaseURL, q.Encode())

	// 2GIS answers with redirects to regional hosts; follow them with the same POST body.
	clone := *c.httpClient
	clone.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	client := &clone

	const maxRedirects = 3
	for redirects := 0; redirects <= maxRedirects; redirects++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, currentURL, bytes.NewReader(body))
		if err != nil {
			return 0, 0, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return 0, 0, err
		}

		switch {
		case resp.StatusCode == http.StatusNoContent:
			resp.Body.Close()
			return 0, 0, ErrRouteNotFound
		case resp.StatusCode >= 300 && resp.StatusCode < 400:
			location, err := resp.Location()
			resp.Body.Close()
			if err != nil {
				return 0, 0, fmt.Errorf("2gis: redirect: %w", err)
			}
			currentURL = location.String()
			continue
		case resp.StatusCode >= 300:
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
			resp.Body.Close()
			return 0, 0, fmt.Errorf("2gis: %s: %s", resp.Status, strings.TrimSpace(string(data)))
		}

		var out struct {
			Routes []struct {
				Status   string `json:"status"`
				Distance int    `json:"distance"`
				Duration int    `json:"duration"`
			} `json:"routes"`
		}
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			return 0, 0, fmt.Errorf("2gis: decode: %w", err)
		}
		if len(out.Routes) == 0 {
			return 0, 0, errors.New("2gis: empty routes")
		}
		route := out.Routes[0]
		if !strings.EqualFold(route.Status, "OK") {
			return 0, 0, fmt.Errorf("%w: status=%s", ErrRouteNotFound, route.Status)
		}
		return route.Distance, route.Duration, nil
	}
	return 0, 0, errors.New("2gis: too many redirects")
}

// Geocode resolves an address to lon, lat using the 2GIS catalog.
func (c *DGISClient) Geocode(ctx context.Context, query string) (float64, float64, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return 0, 0, errors.New("geocode: empty query")
	}

	ctx, cancel := context.WithTimeout(ctx, 7*time.Second)
	defer cancel()

	var lastErr error
	for _, typed := range []bool{true, false} {
		params := url.Values{}
		params.Set("q", query)
		params.Set("key", c.apiKey)
		params.Set("fields", "items.point")
		params.Set("search_is_query_text_complete", "true")
		if typed {
			params.Set("type", "building,street")
		}
		if c.regionID != "" {
			params.Set("region_id", c.regionID)
		}

		lon, lat, err := c.geocodeOnce(ctx, fmt.Sprintf("%s/3.0/items/geocode?%s", catalogBaseURL, params.Encode()))
		if err == nil {
			return lon, lat, nil
		}
		lastErr = err
	}
	return 0, 0, lastErr
}

func (c *DGISClient) geocodeOnce(ctx context.Context, endpoint string) (float64, float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode: build request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode: do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return 0, 0, fmt.Errorf("geocode: http %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}

	var payload struct {
		Result struct {
			Items []struct {
				Point struct {
					Lon float64 `json:"lon"`
					Lat float64 `json:"lat"`
				} `json:"point"`
			} `json:"items"`
		} `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, 0, fmt.Errorf("geocode: decode: %w", err)
	}
	if len(payload.Result.Items) == 0 {
		return 0, 0, errors.New("geocode: no results")
	}
	p := payload.Result.Items[0].Point
	if !ValidCoords(p.Lon, p.Lat) {
		return 0, 0, ErrInvalidCoords
	}
	return p.Lon, p.Lat, nil
}
