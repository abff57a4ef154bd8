// Package actions drives shipment transitions from the rider side: one request in
// flight per shipment, directions re-fetched before every submit.
package actions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"

	"riderBack/internal/rider/client"
	"riderBack/internal/shipment/lifecycle"
)

var (
	// ErrInFlight is returned when a transition for the same shipment is still running.
	ErrInFlight = errors.New("actions: transition already in flight")
	// ErrFinal is returned for shipments that have no further transitions.
	ErrFinal = errors.New("actions: shipment is in a final state")
	// ErrNoOffer is returned when a CREATED shipment carries no offer to accept.
	ErrNoOffer = errors.New("actions: shipment has no pending offer")
)

// API is the subset of the rider client the runner needs.
type API interface {
	Directions(ctx context.Context, shipmentID string) (lifecycle.Directions, error)
	AcceptOffer(ctx context.Context, shipmentID, offerID string) (client.StatusResult, error)
	UpdateStatus(ctx context.Context, shipmentID string, upd client.StatusUpdate) (client.StatusResult, error)
}

// Button is what the rider sees for a shipment.
type Button struct {
	Text     string
	Disabled bool
	Status   lifecycle.Status
}

// Affordance returns the primary action for a shipment in status on segment.
// Final and unknown statuses get a disabled button without text.
func Affordance(status lifecycle.Status, segment lifecycle.Segment) Button {
	text, ok := lifecycle.ButtonText(status, segment)
	if !ok {
		return Button{Disabled: true}
	}
	next, _ := lifecycle.NextStatus(status)
	return Button{Text: text, Status: next}
}

// Runner submits transitions.
type Runner struct {
	api API
	now func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New constructs a Runner.
func New(api API) *Runner {
	return &Runner{api: api, now: time.Now, inFlight: make(map[string]struct{})}
}

// Affordance is the package-level Affordance with the button disabled while a
// transition for the shipment is running.
func (r *Runner) Affordance(sh client.Shipment, segment lifecycle.Segment) Button {
	b := Affordance(sh.Status, segment)
	if r.InFlight(sh.ID) {
		b.Disabled = true
	}
	return b
}

// InFlight reports whether a transition for shipmentID is running.
func (r *Runner) InFlight(shipmentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.inFlight[shipmentID]
	return ok
}

func (r *Runner) begin(shipmentID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.inFlight[shipmentID]; ok {
		return false
	}
	r.inFlight[shipmentID] = struct{}{}
	return true
}

func (r *Runner) end(shipmentID string) {
	r.mu.Lock()
	delete(r.inFlight, shipmentID)
	r.mu.Unlock()
}

// Advance moves the shipment one step along the happy path. A CREATED shipment is
// advanced by accepting its offer. Every other step fetches directions right before
// submitting so the stop id matches the current leg.
func (r *Runner) Advance(ctx context.Context, sh client.Shipment) (lifecycle.TransitionResult, error) {
	if lifecycle.IsFinalState(sh.Status) {
		return lifecycle.TransitionResult{}, ErrFinal
	}
	next, ok := lifecycle.NextStatus(sh.Status)
	if !ok {
		return lifecycle.TransitionResult{}, fmt.Errorf("%w: %q", lifecycle.ErrUnknownStatus, sh.Status)
	}
	if !r.begin(sh.ID) {
		return lifecycle.TransitionResult{}, ErrInFlight
	}
	defer r.end(sh.ID)

	if sh.Status == lifecycle.StatusCreated {
		return r.accept(ctx, sh, next)
	}
	return r.submit(ctx, sh, next)
}

// Abort moves the shipment to one of its failure or cancellation statuses.
func (r *Runner) Abort(ctx context.Context, sh client.Shipment, target lifecycle.Status, note string) (lifecycle.TransitionResult, error) {
	if err := lifecycle.Validate(sh.Status, target); err != nil {
		return lifecycle.TransitionResult{}, err
	}
	if !lo.Contains(lifecycle.AbortTargets(sh.Status), target) {
		return lifecycle.TransitionResult{}, fmt.Errorf("%w: %s is not an abort from %s", lifecycle.ErrIllegalTransition, target, sh.Status)
	}
	if !r.begin(sh.ID) {
		return lifecycle.TransitionResult{}, ErrInFlight
	}
	defer r.end(sh.ID)

	res, err := r.api.UpdateStatus(ctx, sh.ID, client.StatusUpdate{Status: target, Note: note})
	if err != nil {
		return lifecycle.TransitionResult{}, err
	}
	return lifecycle.TransitionResult{
		ShipmentID:        sh.ID,
		Previous:          sh.Status,
		Applied:           target,
		ConfirmedByServer: res.Status == target,
	}, nil
}

func (r *Runner) accept(ctx context.Context, sh client.Shipment, next lifecycle.Status) (lifecycle.TransitionResult, error) {
	if sh.OfferID == nil || *sh.OfferID == "" {
		return lifecycle.TransitionResult{}, ErrNoOffer
	}
	res, err := r.api.AcceptOffer(ctx, sh.ID, *sh.OfferID)
	if err != nil {
		return lifecycle.TransitionResult{}, err
	}
	return lifecycle.TransitionResult{
		ShipmentID:        sh.ID,
		Previous:          sh.Status,
		Applied:           next,
		ConfirmedByServer: res.Status == next,
	}, nil
}

func (r *Runner) submit(ctx context.Context, sh client.Shipment, next lifecycle.Status) (lifecycle.TransitionResult, error) {
	d, err := r.api.Directions(ctx, sh.ID)
	if err != nil {
		return lifecycle.TransitionResult{}, fmt.Errorf("fetch directions: %w", err)
	}
	fresh := lifecycle.NewFreshDirections(d, r.now())
	stopID, err := lifecycle.StopIDForStatusUpdate(fresh, next)
	if err != nil {
		return lifecycle.TransitionResult{}, err
	}
	res, err := r.api.UpdateStatus(ctx, sh.ID, client.StatusUpdate{Status: next, AtStopID: stopID})
	if err != nil {
		return lifecycle.TransitionResult{}, err
	}
	return lifecycle.TransitionResult{
		ShipmentID:        sh.ID,
		Previous:          sh.Status,
		Applied:           next,
		AtStopID:          stopID,
		ConfirmedByServer: res.Status == next,
	}, nil
}

// Reconcile returns the status to show once the server status is known again.
func Reconcile(local lifecycle.TransitionResult, server lifecycle.Status) lifecycle.Status {
	return local.Reconcile(server)
}
