package lifecycle

import (
	"errors"
	"strings"

	"golang.org/x/exp/slices"
)

// Status is a shipment status token as stored by the backend.
type Status string

// Canonical shipment statuses.
const (
	StatusCreated          Status = "CREATED"
	StatusAssigned         Status = "ASSIGNED"
	StatusPickedVendor     Status = "PICKED_VENDOR"
	StatusDroppedWarehouse Status = "DROPPED_WAREHOUSE"
	StatusPickedWarehouse  Status = "PICKED_WAREHOUSE"
	StatusDelivered        Status = "DELIVERED"
	StatusFailed           Status = "FAILED"
	StatusCancelled        Status = "CANCELLED"
)

// Legacy statuses still found on older shipments.
const (
	StatusWaiting   Status = "waiting"
	StatusInTransit Status = "in_transit"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

// Segment is the active leg of the rider's route.
type Segment string

const (
	SegmentToVendor    Segment = "TO_VENDOR"
	SegmentToWarehouse Segment = "TO_WAREHOUSE"
	SegmentToCustomer  Segment = "TO_CUSTOMER"
)

// Phase groups canonical and legacy statuses with the same meaning.
type Phase string

const (
	PhaseOffer     Phase = "offer"
	PhaseActive    Phase = "active"
	PhaseDelivered Phase = "delivered"
	PhaseAborted   Phase = "aborted"
)

// Stop sequence numbers of a shipment route.
const (
	StopSeqVendor        = 1
	StopSeqWarehouseDrop = 2
	StopSeqWarehousePick = 3
	StopSeqCustomer      = 4
)

var (
	// ErrUnknownStatus is returned when a status token is not part of the lifecycle.
	ErrUnknownStatus = errors.New("lifecycle: unknown status")
	// ErrIllegalTransition is returned when the target status is not reachable from the current one.
	ErrIllegalTransition = errors.New("lifecycle: illegal transition")
	// ErrMissingDirections is returned when no usable stop id can be taken from directions.
	ErrMissingDirections = errors.New("lifecycle: missing directions or stop id")
	// ErrUnknownSegment is returned for segment tokens outside TO_VENDOR, TO_WAREHOUSE, TO_CUSTOMER.
	ErrUnknownSegment = errors.New("lifecycle: unknown segment")
)

// ParseStatus validates a raw status token. Canonical tokens are matched case-insensitively,
// legacy tokens must be lowercase as the backend emits them.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if _, ok := table[s]; ok {
		return s, nil
	}
	upper := Status(strings.ToUpper(string(s)))
	if row, ok := table[upper]; ok && !row.legacy {
		return upper, nil
	}
	return s, ErrUnknownStatus
}

// Known reports whether the status is part of the lifecycle table.
func (s Status) Known() bool {
	_, ok := table[s]
	return ok
}

func (s Status) String() string { return string(s) }

// ParseSegment validates a raw segment token.
func ParseSegment(raw string) (Segment, error) {
	seg := Segment(strings.ToUpper(strings.TrimSpace(raw)))
	switch seg {
	case SegmentToVendor, SegmentToWarehouse, SegmentToCustomer:
		return seg, nil
	}
	return seg, ErrUnknownSegment
}

// Statuses returns every status known to the lifecycle, canonical first.
func Statuses() []Status {
	return slices.Clone(order)
}
