// Package client talks to the rider REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"riderBack/internal/shipment/lifecycle"
)

// ErrUnauthorized is matched by APIError values for 401 responses.
var ErrUnauthorized = errors.New("client: unauthorized")

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode     int
	Message        string
	ExpectedStopID string
}

func (e *APIError) Error() string {
	if e.ExpectedStopID != "" {
		return fmt.Sprintf("api %d: %s (expected stop %s)", e.StatusCode, e.Message, e.ExpectedStopID)
	}
	return fmt.Sprintf("api %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Rider is the authenticated account.
type Rider struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Email     string  `json:"email"`
	Phone     string  `json:"phone"`
	Role      string  `json:"role"`
	AvatarURL *string `json:"avatarUrl"`
}

// Stop is one route waypoint of a shipment.
type Stop struct {
	ID        string  `json:"id"`
	Seq       int     `json:"seq"`
	Kind      string  `json:"kind"`
	Label     string  `json:"label"`
	Address   string  `json:"address"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Location is where the rider is currently heading.
type Location struct {
	Address   string  `json:"address"`
	City      *string `json:"city"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Type      string  `json:"type"`
}

// Shipment is a list entry as returned by GET /me/shipments.
type Shipment struct {
	ID                  string           `json:"id"`
	OrderNo             string           `json:"orderNo"`
	VendorName          string           `json:"vendorName"`
	Status              lifecycle.Status `json:"status"`
	StatusLabel         string           `json:"statusLabel"`
	CreatedAt           time.Time        `json:"createdAt"`
	OfferID             *string          `json:"offerId"`
	OfferStatus         *string          `json:"offerStatus"`
	OfferEtaSeconds     *int             `json:"offerEtaSeconds"`
	OfferDistanceM      *int             `json:"offerDistanceM"`
	OfferExpiresAt      *time.Time       `json:"offerExpiresAt"`
	DestinationLocation *Location        `json:"destinationLocation"`
	Stops               []Stop           `json:"stops"`
}

// Query selects a page of shipments.
type Query struct {
	Tab    string
	Limit  int
	Cursor string
}

// Page is one page of shipments.
type Page struct {
	Items      []Shipment
	NextCursor string
	Limit      int
}

// StatusUpdate is the body of a status change.
type StatusUpdate struct {
	Status   lifecycle.Status `json:"status"`
	AtStopID string           `json:"atStopId,omitempty"`
	Note     string           `json:"note,omitempty"`
}

// StatusResult is the server acknowledgement of a transition.
type StatusResult struct {
	ShipmentID string           `json:"shipmentId"`
	Status     lifecycle.Status `json:"status"`
}

type envelope struct {
	Success        bool            `json:"success"`
	Message        string          `json:"message"`
	Data           json.RawMessage `json:"data"`
	ExpectedStopID string          `json:"expectedStopId"`
	Pagination     *struct {
		NextCursor *string `json:"nextCursor"`
		Limit      int     `json:"limit"`
	} `json:"pagination"`
}

// Client is a rider API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// New returns a client for baseURL. httpClient may be nil.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// SetToken sets the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Login authenticates and keeps the returned token.
func (c *Client) Login(ctx context.Context, login, password string) (Rider, error) {
	var out struct {
		Token string `json:"token"`
		Rider Rider  `json:"rider"`
	}
	body := map[string]string{"login": login, "password": password}
	if _, err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return Rider{}, err
	}
	c.SetToken(out.Token)
	return out.Rider, nil
}

// Shipments lists the rider's shipments for a tab.
func (c *Client) Shipments(ctx context.Context, q Query) (Page, error) {
	params := url.Values{}
	if q.Tab != "" {
		params.Set("tab", string(FilterToTab(q.Tab)))
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	path := "/me/shipments"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var items []Shipment
	env, err := c.do(ctx, http.MethodGet, path, nil, &items)
	if err != nil {
		return Page{}, err
	}
	page := Page{Items: items, Limit: q.Limit}
	if env.Pagination != nil {
		page.Limit = env.Pagination.Limit
		if env.Pagination.NextCursor != nil {
			page.NextCursor = *env.Pagination.NextCursor
		}
	}
	return page, nil
}

// Directions fetches the current leg of a shipment.
func (c *Client) Directions(ctx context.Context, shipmentID string) (lifecycle.Directions, error) {
	var d lifecycle.Directions
	_, err := c.do(ctx, http.MethodGet, "/me/shipments/"+url.PathEscape(shipmentID)+"/directions", nil, &d)
	return d, err
}

// AcceptOffer accepts a pending offer for the shipment.
func (c *Client) AcceptOffer(ctx context.Context, shipmentID, offerID string) (StatusResult, error) {
	var res StatusResult
	body := map[string]string{"offerId": offerID}
	_, err := c.do(ctx, http.MethodPost, "/me/shipments/"+url.PathEscape(shipmentID)+"/assign/accept", body, &res)
	return res, err
}

// UpdateStatus submits a status transition.
func (c *Client) UpdateStatus(ctx context.Context, shipmentID string, upd StatusUpdate) (StatusResult, error) {
	var res StatusResult
	_, err := c.do(ctx, http.MethodPatch, "/me/shipments/"+url.PathEscape(shipmentID)+"/status", upd, &res)
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) (envelope, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return envelope{}, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return envelope{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.Token(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return envelope{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return envelope{}, fmt.Errorf("read response: %w", err)
	}
	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: env.Message, ExpectedStopID: env.ExpectedStopID}
		if decodeErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
			if apiErr.Message == "" {
				apiErr.Message = http.StatusText(resp.StatusCode)
			}
		}
		return env, apiErr
	}
	if decodeErr != nil {
		return envelope{}, fmt.Errorf("decode response: %w", decodeErr)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return envelope{}, fmt.Errorf("decode data: %w", err)
		}
	}
	return env, nil
}
