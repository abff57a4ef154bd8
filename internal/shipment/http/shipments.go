package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/samber/lo"

	"riderBack/internal/shipment/directions"
	"riderBack/internal/shipment/events"
	"riderBack/internal/shipment/guard"
	"riderBack/internal/shipment/lifecycle"
	"riderBack/internal/shipment/repo"
	"riderBack/internal/shipment/ws"
)

func (s *Server) handleListShipments(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	tab, err := repo.ParseTab(r.URL.Query().Get("tab"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "tab must be one of all, offers, active, history")
		return
	}
	limit, cursor, err := s.parsePaging(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	page, err := s.deps.Shipments.ListForRider(ctx, id.RiderID, repo.ListQuery{Tab: tab, Limit: limit, Cursor: cursor, Now: s.now()})
	if err != nil {
		s.logger.Errorf("shipment: list shipments for %s failed: %v", id.RiderID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to load shipments")
		return
	}

	items := lo.Map(page.Items, func(sh repo.Shipment, _ int) shipmentResponse { return toShipmentResponse(sh) })
	pg := pagination{Cursor: optionalString(strings.TrimSpace(r.URL.Query().Get("cursor"))), Limit: limit}
	if page.NextCursor != nil {
		pg.NextCursor = optionalString(repo.EncodeCursor(*page.NextCursor))
	}
	s.writePage(w, items, pg)
}

func (s *Server) handleDirections(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	sh, ok := s.loadVisible(ctx, w, pathID(r), id.RiderID)
	if !ok {
		return
	}
	d, err := s.deps.Directions.ForShipment(ctx, sh, id.RiderID)
	if err != nil {
		if errors.Is(err, directions.ErrStopMissing) || errors.Is(err, directions.ErrNoLeg) {
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.logger.Errorf("shipment: directions for %s failed: %v", sh.ID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to build directions")
		return
	}
	s.writeData(w, http.StatusOK, d)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	sh, ok := s.loadVisible(ctx, w, pathID(r), id.RiderID)
	if !ok {
		return
	}
	entries, err := s.deps.Shipments.History(ctx, sh.ID)
	if err != nil {
		s.logger.Errorf("shipment: history for %s failed: %v", sh.ID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	s.writeData(w, http.StatusOK, lo.Map(entries, func(h repo.HistoryEntry, _ int) historyResponse { return toHistoryResponse(h) }))
}

func (s *Server) handleAcceptOffer(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	shipmentID := pathID(r)
	var req struct {
		OfferID string `json:"offerId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(req.OfferID) == "" {
		s.writeError(w, http.StatusBadRequest, "offerId is required")
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	release, err := s.deps.Guard.Acquire(ctx, shipmentID)
	if err != nil {
		s.guardError(w, shipmentID, err)
		return
	}
	defer release()

	offer, err := s.deps.Offers.Get(ctx, req.OfferID)
	if err != nil || offer.ShipmentID != shipmentID || offer.RiderID != id.RiderID {
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			s.logger.Errorf("shipment: load offer %s failed: %v", req.OfferID, err)
			s.writeError(w, http.StatusInternalServerError, "failed to accept offer")
			return
		}
		s.writeError(w, http.StatusNotFound, "offer not found")
		return
	}

	if _, err := s.deps.Offers.Accept(ctx, offer.ID, id.RiderID, s.now()); err != nil {
		switch {
		case errors.Is(err, repo.ErrOfferUnavailable):
			s.writeError(w, http.StatusConflict, "offer is no longer available")
		case errors.Is(err, repo.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "offer not found")
		default:
			s.logger.Errorf("shipment: accept offer %s failed: %v", offer.ID, err)
			s.writeError(w, http.StatusInternalServerError, "failed to accept offer")
		}
		return
	}

	sh, err := s.deps.Shipments.Get(ctx, shipmentID)
	if err != nil {
		s.logger.Errorf("shipment: reload %s after accept failed: %v", shipmentID, err)
		sh = repo.Shipment{ID: shipmentID}
	}
	s.afterTransition(ctx, sh, id.RiderID, lifecycle.StatusCreated, lifecycle.StatusAssigned, "", "")
	s.writeData(w, http.StatusOK, transitionResponse{ShipmentID: shipmentID, Status: lifecycle.StatusAssigned})
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := IdentityFrom(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	shipmentID := pathID(r)
	var req struct {
		Status   string `json:"status"`
		AtStopID string `json:"atStopId"`
		Note     string `json:"note"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	target, err := lifecycle.ParseStatus(req.Status)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unknown status")
		return
	}
	req.AtStopID = strings.TrimSpace(req.AtStopID)
	req.Note = strings.TrimSpace(req.Note)

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	release, err := s.deps.Guard.Acquire(ctx, shipmentID)
	if err != nil {
		s.guardError(w, shipmentID, err)
		return
	}
	defer release()

	sh, ok := s.loadOwned(ctx, w, shipmentID, id.RiderID)
	if !ok {
		return
	}
	if !lifecycle.IsTransitionAllowed(sh.Status, target) {
		s.writeErrorWith(w, http.StatusConflict, "illegal transition", map[string]interface{}{
			"currentStatus":   sh.Status,
			"allowedStatuses": lifecycle.NextStatuses(sh.Status),
		})
		return
	}
	if expected, err := checkStop(sh, target, req.AtStopID); err != nil {
		extra := map[string]interface{}{}
		if expected != "" {
			extra["expectedStopId"] = expected
		}
		s.writeErrorWith(w, http.StatusUnprocessableEntity, err.Error(), extra)
		return
	}

	if err := s.deps.Shipments.UpdateStatus(ctx, sh.ID, sh.Status, target, req.AtStopID, req.Note); err != nil {
		switch {
		case errors.Is(err, repo.ErrStatusConflict):
			s.writeError(w, http.StatusConflict, "shipment status changed, reload and retry")
		case errors.Is(err, repo.ErrNotFound):
			s.writeError(w, http.StatusNotFound, "shipment not found")
		case errors.Is(err, lifecycle.ErrIllegalTransition):
			s.writeError(w, http.StatusConflict, "illegal transition")
		default:
			s.logger.Errorf("shipment: update status of %s failed: %v", sh.ID, err)
			s.writeError(w, http.StatusInternalServerError, "failed to update status")
		}
		return
	}

	s.afterTransition(ctx, sh, id.RiderID, sh.Status, target, req.AtStopID, req.Note)
	s.writeData(w, http.StatusOK, transitionResponse{ShipmentID: sh.ID, Status: target})
}

var (
	errStopMismatch = errors.New("atStopId does not match the current stop")
	errStopUnknown  = errors.New("atStopId does not belong to the shipment")
)

// checkStop verifies the stop carried by a status update. Forward moves must name the
// stop of the current leg; aborts may omit it. expected is set when it is known.
func checkStop(sh repo.Shipment, target lifecycle.Status, atStopID string) (string, error) {
	if lo.Contains(lifecycle.AbortTargets(sh.Status), target) {
		if atStopID == "" {
			return "", nil
		}
		if _, ok := sh.StopByID(atStopID); !ok {
			return "", errStopUnknown
		}
		return "", nil
	}
	stop, err := directions.ExpectedStop(sh)
	if err != nil {
		return "", err
	}
	if stop.ID != atStopID {
		return stop.ID, errStopMismatch
	}
	return stop.ID, nil
}

// afterTransition fans a committed status change out to the event stream, the rider's
// socket and the rider's device. Failures are logged; the change is already stored.
func (s *Server) afterTransition(ctx context.Context, sh repo.Shipment, riderID string, from, to lifecycle.Status, atStopID, note string) {
	ctx = context.WithoutCancel(ctx)
	ev := events.StatusChanged{
		ShipmentID: sh.ID,
		OrderNo:    sh.OrderNo,
		RiderID:    riderID,
		From:       from,
		To:         to,
		AtStopID:   atStopID,
		Note:       note,
		Final:      lifecycle.IsFinalState(to),
		OccurredAt: s.now().UTC(),
	}
	if err := s.deps.Publisher.Publish(ctx, ev); err != nil {
		s.logger.Errorf("shipment: publish %s -> %s for %s failed: %v", from, to, sh.ID, err)
	}
	if s.deps.Pusher != nil {
		s.deps.Pusher.PushStatus(riderID, ws.StatusPayload{
			ShipmentID: sh.ID,
			Status:     string(to),
			Label:      lifecycle.StatusLabel(to),
			Final:      lifecycle.IsFinalState(to),
		})
	}
	rider, err := s.deps.Riders.Get(ctx, riderID)
	if err != nil || !rider.FCMToken.Valid {
		return
	}
	if err := s.deps.Push.NotifyStatus(ctx, rider.FCMToken.String, sh.ID, sh.OrderNo, to); err != nil {
		s.logger.Errorf("shipment: push status for %s failed: %v", sh.ID, err)
	}
}

func (s *Server) guardError(w http.ResponseWriter, shipmentID string, err error) {
	if errors.Is(err, guard.ErrBusy) {
		s.writeError(w, http.StatusConflict, "another update for this shipment is in progress")
		return
	}
	s.logger.Errorf("shipment: acquire guard for %s failed: %v", shipmentID, err)
	s.writeError(w, http.StatusServiceUnavailable, "failed to lock shipment")
}

// loadOwned returns the shipment only when it is assigned to riderID.
func (s *Server) loadOwned(ctx context.Context, w http.ResponseWriter, shipmentID, riderID string) (repo.Shipment, bool) {
	sh, ok := s.loadShipment(ctx, w, shipmentID)
	if !ok {
		return repo.Shipment{}, false
	}
	if !sh.RiderID.Valid || sh.RiderID.String != riderID {
		s.writeError(w, http.StatusNotFound, "shipment not found")
		return repo.Shipment{}, false
	}
	return sh, true
}

// loadVisible also admits an unassigned shipment while riderID holds a pending,
// unexpired offer for it.
func (s *Server) loadVisible(ctx context.Context, w http.ResponseWriter, shipmentID, riderID string) (repo.Shipment, bool) {
	sh, ok := s.loadShipment(ctx, w, shipmentID)
	if !ok {
		return repo.Shipment{}, false
	}
	if sh.RiderID.Valid {
		if sh.RiderID.String != riderID {
			s.writeError(w, http.StatusNotFound, "shipment not found")
			return repo.Shipment{}, false
		}
		return sh, true
	}

	_, err := s.deps.Offers.PendingFor(ctx, sh.ID, riderID, s.now())
	if errors.Is(err, repo.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "shipment not found")
		return repo.Shipment{}, false
	}
	if err != nil {
		s.logger.Errorf("shipment: load offer for %s rider %s failed: %v", sh.ID, riderID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to load shipment")
		return repo.Shipment{}, false
	}
	return sh, true
}

func (s *Server) loadShipment(ctx context.Context, w http.ResponseWriter, shipmentID string) (repo.Shipment, bool) {
	if shipmentID == "" {
		s.writeError(w, http.StatusBadRequest, "shipment id is required")
		return repo.Shipment{}, false
	}
	sh, err := s.deps.Shipments.Get(ctx, shipmentID)
	if errors.Is(err, repo.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "shipment not found")
		return repo.Shipment{}, false
	}
	if err != nil {
		s.logger.Errorf("shipment: load %s failed: %v", shipmentID, err)
		s.writeError(w, http.StatusInternalServerError, "failed to load shipment")
		return repo.Shipment{}, false
	}
	return sh, true
}
