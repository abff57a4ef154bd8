package http

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"riderBack/internal/shipment/directions"
	"riderBack/internal/shipment/lifecycle"
	"riderBack/internal/shipment/repo"
)

type warehouseResponse struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	PlaceID   *string `json:"placeId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	IsDefault bool    `json:"isDefault"`
	IsActive  bool    `json:"isActive"`
}

type locationResponse struct {
	Address   string  `json:"address"`
	City      *string `json:"city"`
	PlaceID   *string `json:"placeId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Type      string  `json:"type"`
}

type stopResponse struct {
	ID        string  `json:"id"`
	Seq       int     `json:"seq"`
	Kind      string  `json:"kind"`
	Label     string  `json:"label"`
	Address   string  `json:"address"`
	City      *string `json:"city"`
	PlaceID   *string `json:"placeId"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type shipmentResponse struct {
	ID                  string             `json:"id"`
	OrderNo             string             `json:"orderNo"`
	VendorName          string             `json:"vendorName"`
	Status              lifecycle.Status   `json:"status"`
	StatusLabel         string             `json:"statusLabel"`
	CreatedAt           time.Time          `json:"createdAt"`
	OfferID             *string            `json:"offerId,omitempty"`
	OfferStatus         *string            `json:"offerStatus,omitempty"`
	OfferEtaSeconds     *int               `json:"offerEtaSeconds,omitempty"`
	OfferDistanceM      *int               `json:"offerDistanceM,omitempty"`
	OfferExpiresAt      *time.Time         `json:"offerExpiresAt,omitempty"`
	OfferCreatedAt      *time.Time         `json:"offerCreatedAt,omitempty"`
	Warehouse           *warehouseResponse `json:"warehouse,omitempty"`
	DestinationLocation *locationResponse  `json:"destinationLocation,omitempty"`
	Stops               []stopResponse     `json:"stops"`
}

type riderResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Phone           string  `json:"phone"`
	PhoneNo         string  `json:"phoneNo"`
	UserName        *string `json:"userName"`
	FirstName       *string `json:"firstName"`
	LastName        *string `json:"lastName"`
	Role            string  `json:"role"`
	AvatarURL       *string `json:"avatarUrl"`
	ProfileImageURL *string `json:"profileImageUrl"`
}

type historyResponse struct {
	Status    lifecycle.Status `json:"status"`
	Label     string           `json:"label"`
	AtStopID  *string          `json:"atStopId"`
	Note      *string          `json:"note"`
	CreatedAt time.Time        `json:"createdAt"`
}

type transitionResponse struct {
	ShipmentID string           `json:"shipmentId"`
	Status     lifecycle.Status `json:"status"`
}

func toStopResponse(st repo.Stop) stopResponse {
	return stopResponse{
		ID:        st.ID,
		Seq:       st.Seq,
		Kind:      st.Kind,
		Label:     st.Label,
		Address:   st.Address,
		City:      nullToPtr(st.City.String, st.City.Valid),
		PlaceID:   nullToPtr(st.PlaceID.String, st.PlaceID.Valid),
		Latitude:  st.Lat,
		Longitude: st.Lon,
	}
}

func toShipmentResponse(sh repo.Shipment) shipmentResponse {
	out := shipmentResponse{
		ID:          sh.ID,
		OrderNo:     sh.OrderNo,
		VendorName:  sh.VendorName,
		Status:      sh.Status,
		StatusLabel: lifecycle.StatusLabel(sh.Status),
		CreatedAt:   sh.CreatedAt,
		Stops:       lo.Map(sh.Stops, func(st repo.Stop, _ int) stopResponse { return toStopResponse(st) }),
	}
	if o := sh.Offer; o != nil && sh.Status == lifecycle.StatusCreated {
		out.OfferID = &o.ID
		out.OfferStatus = &o.Status
		out.OfferEtaSeconds = &o.EtaSeconds
		out.OfferDistanceM = &o.DistanceM
		out.OfferExpiresAt = &o.ExpiresAt
		out.OfferCreatedAt = &o.CreatedAt
	}
	if wh := sh.Warehouse; wh != nil {
		out.Warehouse = &warehouseResponse{
			ID:        wh.ID,
			Name:      wh.Name,
			Address:   wh.Address,
			PlaceID:   nullToPtr(wh.PlaceID.String, wh.PlaceID.Valid),
			Latitude:  wh.Lat,
			Longitude: wh.Lon,
			IsDefault: wh.IsDefault,
			IsActive:  wh.IsActive,
		}
	}
	if st, err := directions.ExpectedStop(sh); err == nil {
		out.DestinationLocation = &locationResponse{
			Address:   st.Address,
			City:      nullToPtr(st.City.String, st.City.Valid),
			PlaceID:   nullToPtr(st.PlaceID.String, st.PlaceID.Valid),
			Latitude:  st.Lat,
			Longitude: st.Lon,
			Type:      strings.ToLower(st.Kind),
		}
	}
	return out
}

func toRiderResponse(r repo.Rider) riderResponse {
	return riderResponse{
		ID:              r.ID,
		Name:            r.Name,
		Email:           r.Email,
		Phone:           r.Phone,
		PhoneNo:         r.Phone,
		UserName:        nullToPtr(r.UserName.String, r.UserName.Valid),
		FirstName:       nullToPtr(r.FirstName.String, r.FirstName.Valid),
		LastName:        nullToPtr(r.LastName.String, r.LastName.Valid),
		Role:            r.Role,
		AvatarURL:       nullToPtr(r.AvatarURL.String, r.AvatarURL.Valid),
		ProfileImageURL: nullToPtr(r.AvatarURL.String, r.AvatarURL.Valid),
	}
}

func toHistoryResponse(h repo.HistoryEntry) historyResponse {
	return historyResponse{
		Status:    h.Status,
		Label:     lifecycle.StatusLabel(h.Status),
		AtStopID:  nullToPtr(h.AtStopID.String, h.AtStopID.Valid),
		Note:      nullToPtr(h.Note.String, h.Note.Valid),
		CreatedAt: h.CreatedAt,
	}
}

func nullToPtr(val string, valid bool) *string {
	if !valid {
		return nil
	}
	return &val
}
