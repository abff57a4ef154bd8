package repo

import "errors"

var (
	// ErrNotFound indicates missing entities in the shipment repositories.
	ErrNotFound = errors.New("shipment: not found")
	// ErrStatusConflict means the stored status changed between read and write.
	ErrStatusConflict = errors.New("shipment: status changed concurrently")
	// ErrOfferUnavailable is returned for offers that are not pending, expired or belong to another rider.
	ErrOfferUnavailable = errors.New("shipment: offer unavailable")
	// ErrInvalidStops is returned when a shipment is created without the four ordered stops.
	ErrInvalidStops = errors.New("shipment: stops must cover sequences 1 to 4")
)
