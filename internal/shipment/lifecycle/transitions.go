package lifecycle

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// row describes everything derived from a single status. Legacy tokens live in the
// same table so canonical and legacy behaviour never drift apart.
type row struct {
	label   string
	button  string
	next    []Status
	final   bool
	abort   bool
	legacy  bool
	phase   Phase
	segment Segment
	stopSeq int
}

// order is the iteration order used by Statuses and Transitions.
var order = []Status{
	StatusCreated,
	StatusAssigned,
	StatusPickedVendor,
	StatusDroppedWarehouse,
	StatusPickedWarehouse,
	StatusDelivered,
	StatusFailed,
	StatusCancelled,
	StatusWaiting,
	StatusInTransit,
	StatusCompleted,
	StatusCanceled,
}

// Happy-path transitions are listed before abort transitions; NextStatus relies on it.
var table = map[Status]row{
	StatusCreated: {
		label:   "Created",
		button:  "Accept Offer",
		next:    []Status{StatusAssigned, StatusCancelled},
		phase:   PhaseOffer,
		segment: SegmentToVendor,
		stopSeq: StopSeqVendor,
	},
	StatusAssigned: {
		label:   "Assigned",
		button:  "Picked from Vendor",
		next:    []Status{StatusPickedVendor, StatusCancelled},
		phase:   PhaseActive,
		segment: SegmentToVendor,
		stopSeq: StopSeqVendor,
	},
	StatusPickedVendor: {
		label:   "Picked from Vendor",
		button:  "Delivered to Warehouse",
		next:    []Status{StatusDroppedWarehouse, StatusFailed},
		phase:   PhaseActive,
		segment: SegmentToWarehouse,
		stopSeq: StopSeqWarehouseDrop,
	},
	StatusDroppedWarehouse: {
		label:   "Dropped at Warehouse",
		button:  "Picked from Warehouse",
		next:    []Status{StatusPickedWarehouse, StatusFailed},
		phase:   PhaseActive,
		segment: SegmentToWarehouse,
		stopSeq: StopSeqWarehousePick,
	},
	StatusPickedWarehouse: {
		label:   "Picked from Warehouse",
		button:  "Delivered",
		next:    []Status{StatusDelivered, StatusFailed},
		phase:   PhaseActive,
		segment: SegmentToCustomer,
		stopSeq: StopSeqCustomer,
	},
	StatusDelivered: {
		label:   "Delivered",
		final:   true,
		phase:   PhaseDelivered,
		segment: SegmentToCustomer,
		stopSeq: StopSeqCustomer,
	},
	StatusFailed: {
		label:   "Failed",
		final:   true,
		abort:   true,
		phase:   PhaseAborted,
		segment: SegmentToCustomer,
		stopSeq: StopSeqCustomer,
	},
	StatusCancelled: {
		label:   "Cancelled",
		final:   true,
		abort:   true,
		phase:   PhaseAborted,
		segment: SegmentToCustomer,
		stopSeq: StopSeqCustomer,
	},

	StatusWaiting: {
		label:   "Waiting",
		button:  "Start Delivery",
		next:    []Status{StatusInTransit, StatusCanceled},
		legacy:  true,
		phase:   PhaseActive,
		segment: SegmentToVendor,
		stopSeq: StopSeqVendor,
	},
	StatusInTransit: {
		label:   "In Transit",
		button:  "Complete Delivery",
		next:    []Status{StatusCompleted, StatusCanceled},
		legacy:  true,
		phase:   PhaseActive,
		segment: SegmentToCustomer,
		stopSeq: StopSeqCustomer,
	},
	StatusCompleted: {
		label:   "Completed",
		final:   true,
		legacy:  true,
		phase:   PhaseDelivered,
		segment: SegmentToCustomer,
		stopSeq: StopSeqCustomer,
	},
	StatusCanceled: {
		label:   "Canceled",
		final:   true,
		abort:   true,
		legacy:  true,
		phase:   PhaseAborted,
		segment: SegmentToCustomer,
		stopSeq: StopSeqCustomer,
	},
}

// NextStatuses returns the statuses reachable from s. Terminal and unknown statuses yield nil.
func NextStatuses(s Status) []Status {
	return slices.Clone(table[s].next)
}

// IsTransitionAllowed reports whether target is a direct successor of current.
func IsTransitionAllowed(current, target Status) bool {
	return slices.Contains(table[current].next, target)
}

// Validate is IsTransitionAllowed with an error describing both ends.
func Validate(current, target Status) error {
	if !current.Known() {
		return fmt.Errorf("%w: %q", ErrUnknownStatus, current)
	}
	if !IsTransitionAllowed(current, target) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, target)
	}
	return nil
}

// NextStatus returns the happy-path successor of current. Abort statuses are skipped
// unless they are the only option.
func NextStatus(current Status) (Status, bool) {
	next := table[current].next
	if len(next) == 0 {
		return "", false
	}
	for _, s := range next {
		if !table[s].abort {
			return s, true
		}
	}
	return next[0], true
}

// AbortTargets returns the failure or cancellation statuses reachable from current.
func AbortTargets(current Status) []Status {
	var out []Status
	for _, s := range table[current].next {
		if table[s].abort {
			out = append(out, s)
		}
	}
	return out
}

// IsFinalState reports whether no transition leaves s. Unknown statuses are not final.
func IsFinalState(s Status) bool {
	return table[s].final
}

// IsLegacy reports whether s belongs to the old four-step lifecycle.
func IsLegacy(s Status) bool {
	return table[s].legacy
}

// PhaseOf returns the phase shared by s and its legacy or canonical equivalents.
func PhaseOf(s Status) (Phase, bool) {
	r, ok := table[s]
	return r.phase, ok
}

// ExpectedSegment returns the route leg the rider travels while the shipment is in s.
func ExpectedSegment(s Status) (Segment, bool) {
	r, ok := table[s]
	return r.segment, ok
}

// TargetStopSeq returns the sequence number of the stop the next transition out of s happens at.
func TargetStopSeq(s Status) (int, bool) {
	r, ok := table[s]
	return r.stopSeq, ok
}

// Transitions returns a copy of the full transition table.
func Transitions() map[Status][]Status {
	out := make(map[Status][]Status, len(table))
	for s, r := range table {
		out[s] = slices.Clone(r.next)
	}
	return out
}
