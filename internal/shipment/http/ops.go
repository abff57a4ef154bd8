package http

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"riderBack/internal/shipment/repo"
)

type createStopRequest struct {
	Seq       int      `json:"seq"`
	Kind      string   `json:"kind"`
	Label     string   `json:"label"`
	Address   string   `json:"address"`
	PlaceID   string   `json:"placeId"`
	City      string   `json:"city"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type createShipmentRequest struct {
	OrderNo     string              `json:"orderNo"`
	VendorName  string              `json:"vendorName"`
	WarehouseID string              `json:"warehouseId"`
	Stops       []createStopRequest `json:"stops"`
}

// handleCreateShipment lets operations staff register a shipment with its four stops.
// Stops without coordinates are geocoded from their address when a geocoder is set.
func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	var req createShipmentRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.VendorName = strings.TrimSpace(req.VendorName)
	if req.VendorName == "" {
		s.writeError(w, http.StatusBadRequest, "vendorName is required")
		return
	}

	ctx, cancel := contextWithTimeout(r)
	defer cancel()

	stops := make([]repo.Stop, 0, len(req.Stops))
	for _, in := range req.Stops {
		st := repo.Stop{
			Seq:     in.Seq,
			Kind:    strings.ToUpper(strings.TrimSpace(in.Kind)),
			Label:   strings.TrimSpace(in.Label),
			Address: strings.TrimSpace(in.Address),
			PlaceID: nullString(in.PlaceID),
			City:    nullString(strings.ToLower(in.City)),
		}
		if st.Kind == "" {
			st.Kind = repo.KindForSeq(st.Seq)
		}
		switch {
		case in.Latitude != nil && in.Longitude != nil:
			st.Lat, st.Lon = *in.Latitude, *in.Longitude
		case s.deps.Geocoder != nil && st.Address != "":
			lon, lat, err := s.deps.Geocoder.Geocode(ctx, st.Address)
			if err != nil {
				s.writeError(w, http.StatusUnprocessableEntity, "cannot geocode stop "+st.Address)
				return
			}
			st.Lat, st.Lon = lat, lon
		default:
			s.writeError(w, http.StatusBadRequest, "stop coordinates are required")
			return
		}
		stops = append(stops, st)
	}

	sh, err := s.deps.Shipments.Create(ctx, repo.Shipment{
		OrderNo:     strings.TrimSpace(req.OrderNo),
		VendorName:  req.VendorName,
		WarehouseID: nullString(req.WarehouseID),
		Stops:       stops,
	})
	if err != nil {
		if errors.Is(err, repo.ErrInvalidStops) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Errorf("shipment: create failed: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to create shipment")
		return
	}
	s.logger.Infof("shipment: created %s order=%s", sh.ID, sh.OrderNo)
	s.writeData(w, http.StatusCreated, toShipmentResponse(sh))
}

func nullString(v string) sql.NullString {
	v = strings.TrimSpace(v)
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}
