package actions

import (
	"context"
	"errors"
	"sync"
	"testing"

	"riderBack/internal/rider/client"
	"riderBack/internal/shipment/lifecycle"
)

type stubAPI struct {
	mu         sync.Mutex
	directions lifecycle.Directions
	dirErr     error
	dirCalls   int
	echo       lifecycle.Status
	updates    []client.StatusUpdate
	accepted   []string

	block   chan struct{}
	entered chan struct{}
}

func (s *stubAPI) Directions(ctx context.Context, shipmentID string) (lifecycle.Directions, error) {
	s.mu.Lock()
	s.dirCalls++
	s.mu.Unlock()
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	return s.directions, s.dirErr
}

func (s *stubAPI) AcceptOffer(ctx context.Context, shipmentID, offerID string) (client.StatusResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted = append(s.accepted, offerID)
	return client.StatusResult{ShipmentID: shipmentID, Status: lifecycle.StatusAssigned}, nil
}

func (s *stubAPI) UpdateStatus(ctx context.Context, shipmentID string, upd client.StatusUpdate) (client.StatusResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, upd)
	status := upd.Status
	if s.echo != "" {
		status = s.echo
	}
	return client.StatusResult{ShipmentID: shipmentID, Status: status}, nil
}

func strPtr(s string) *string { return &s }

func TestAffordance(t *testing.T) {
	cases := []struct {
		status   lifecycle.Status
		text     string
		next     lifecycle.Status
		disabled bool
	}{
		{lifecycle.StatusCreated, "Accept Offer", lifecycle.StatusAssigned, false},
		{lifecycle.StatusDroppedWarehouse, "Picked from Warehouse", lifecycle.StatusPickedWarehouse, false},
		{lifecycle.StatusInTransit, "Complete Delivery", lifecycle.StatusCompleted, false},
		{lifecycle.StatusDelivered, "", "", true},
		{lifecycle.Status("RETURNED"), "", "", true},
	}
	for _, tc := range cases {
		t.Run(string(tc.status), func(t *testing.T) {
			b := Affordance(tc.status, lifecycle.SegmentToWarehouse)
			if b.Text != tc.text || b.Status != tc.next || b.Disabled != tc.disabled {
				t.Fatalf("unexpected button %+v", b)
			}
		})
	}
}

func TestAdvanceSendsFreshStop(t *testing.T) {
	api := &stubAPI{directions: lifecycle.Directions{Segment: lifecycle.SegmentToWarehouse, ToStopID: "st3"}}
	r := New(api)

	res, err := r.Advance(context.Background(), client.Shipment{ID: "s1", Status: lifecycle.StatusDroppedWarehouse})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if api.dirCalls != 1 {
		t.Fatalf("expected one directions fetch, got %d", api.dirCalls)
	}
	if len(api.updates) != 1 || api.updates[0].Status != lifecycle.StatusPickedWarehouse || api.updates[0].AtStopID != "st3" {
		t.Fatalf("unexpected updates %+v", api.updates)
	}
	want := lifecycle.TransitionResult{ShipmentID: "s1", Previous: lifecycle.StatusDroppedWarehouse,
		Applied: lifecycle.StatusPickedWarehouse, AtStopID: "st3", ConfirmedByServer: true}
	if res != want {
		t.Fatalf("expected %+v got %+v", want, res)
	}
	if r.InFlight("s1") {
		t.Fatalf("in-flight marker not released")
	}
}

func TestAdvanceUnconfirmed(t *testing.T) {
	api := &stubAPI{directions: lifecycle.Directions{ToStopID: "st1"}, echo: lifecycle.StatusAssigned}
	r := New(api)

	res, err := r.Advance(context.Background(), client.Shipment{ID: "s1", Status: lifecycle.StatusAssigned})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if res.ConfirmedByServer || res.Applied != lifecycle.StatusPickedVendor {
		t.Fatalf("unexpected result %+v", res)
	}
	if got := Reconcile(res, lifecycle.StatusAssigned); got != lifecycle.StatusAssigned {
		t.Fatalf("server status must win, got %s", got)
	}
	if got := Reconcile(res, ""); got != lifecycle.StatusPickedVendor {
		t.Fatalf("optimistic status expected without server status, got %s", got)
	}
}

func TestAdvanceErrors(t *testing.T) {
	fetchErr := errors.New("boom")
	cases := []struct {
		name string
		api  *stubAPI
		sh   client.Shipment
		want error
	}{
		{"missing stop", &stubAPI{}, client.Shipment{ID: "s1", Status: lifecycle.StatusPickedVendor}, lifecycle.ErrMissingDirections},
		{"fetch fails", &stubAPI{dirErr: fetchErr}, client.Shipment{ID: "s1", Status: lifecycle.StatusPickedVendor}, fetchErr},
		{"final", &stubAPI{}, client.Shipment{ID: "s1", Status: lifecycle.StatusDelivered}, ErrFinal},
		{"unknown", &stubAPI{}, client.Shipment{ID: "s1", Status: "RETURNED"}, lifecycle.ErrUnknownStatus},
		{"no offer", &stubAPI{}, client.Shipment{ID: "s1", Status: lifecycle.StatusCreated}, ErrNoOffer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.api).Advance(context.Background(), tc.sh)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v got %v", tc.want, err)
			}
			if len(tc.api.updates) != 0 {
				t.Fatalf("no update expected, got %+v", tc.api.updates)
			}
		})
	}
}

func TestAdvanceAcceptsOffer(t *testing.T) {
	api := &stubAPI{}
	r := New(api)

	res, err := r.Advance(context.Background(), client.Shipment{ID: "s1", Status: lifecycle.StatusCreated, OfferID: strPtr("o1")})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if len(api.accepted) != 1 || api.accepted[0] != "o1" || api.dirCalls != 0 {
		t.Fatalf("unexpected calls accepted=%v dir=%d", api.accepted, api.dirCalls)
	}
	if res.Applied != lifecycle.StatusAssigned || !res.ConfirmedByServer {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestAdvanceRejectsConcurrentCall(t *testing.T) {
	api := &stubAPI{
		directions: lifecycle.Directions{ToStopID: "st1"},
		block:      make(chan struct{}),
		entered:    make(chan struct{}, 1),
	}
	r := New(api)
	sh := client.Shipment{ID: "s1", Status: lifecycle.StatusAssigned}

	done := make(chan error, 1)
	go func() {
		_, err := r.Advance(context.Background(), sh)
		done <- err
	}()
	<-api.entered

	if !r.InFlight("s1") || !r.Affordance(sh, lifecycle.SegmentToVendor).Disabled {
		t.Fatalf("shipment should be marked in flight")
	}
	if _, err := r.Advance(context.Background(), sh); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}

	close(api.block)
	if err := <-done; err != nil {
		t.Fatalf("first advance: %v", err)
	}
	if len(api.updates) != 1 {
		t.Fatalf("expected a single update, got %d", len(api.updates))
	}
}

func TestAbort(t *testing.T) {
	api := &stubAPI{}
	r := New(api)
	sh := client.Shipment{ID: "s1", Status: lifecycle.StatusPickedVendor}

	if _, err := r.Abort(context.Background(), sh, lifecycle.StatusCancelled, ""); !errors.Is(err, lifecycle.ErrIllegalTransition) {
		t.Fatalf("expected illegal transition, got %v", err)
	}
	if _, err := r.Abort(context.Background(), sh, lifecycle.StatusDroppedWarehouse, ""); !errors.Is(err, lifecycle.ErrIllegalTransition) {
		t.Fatalf("forward move is not an abort, got %v", err)
	}
	res, err := r.Abort(context.Background(), sh, lifecycle.StatusFailed, "customer absent")
	if err != nil {
		t.Fatalf("abort: %v", err)
	}
	if res.Applied != lifecycle.StatusFailed || !res.ConfirmedByServer {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(api.updates) != 1 || api.updates[0].Note != "customer absent" || api.updates[0].AtStopID != "" {
		t.Fatalf("unexpected updates %+v", api.updates)
	}
}
