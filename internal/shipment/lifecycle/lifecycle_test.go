package lifecycle

import (
	"errors"
	"testing"
	"time"
)

func TestNextStatusesEmptyIffFinal(t *testing.T) {
	for _, s := range Statuses() {
		empty := len(NextStatuses(s)) == 0
		if empty != IsFinalState(s) {
			t.Fatalf("%s: empty next=%v final=%v", s, empty, IsFinalState(s))
		}
	}
}

func TestNextStatusIsMemberAndPrefersHappyPath(t *testing.T) {
	for _, s := range Statuses() {
		if IsFinalState(s) {
			if _, ok := NextStatus(s); ok {
				t.Fatalf("%s: expected no next status for final state", s)
			}
			continue
		}
		next, ok := NextStatus(s)
		if !ok {
			t.Fatalf("%s: expected a next status", s)
		}
		if !IsTransitionAllowed(s, next) {
			t.Fatalf("%s: next %s not in allowed set", s, next)
		}
		if next == StatusCancelled || next == StatusFailed || next == StatusCanceled {
			t.Fatalf("%s: happy path picked abort status %s", s, next)
		}
	}
}

func TestIsTransitionAllowedMatchesTable(t *testing.T) {
	all := Statuses()
	for _, from := range all {
		allowed := NextStatuses(from)
		for _, to := range all {
			want := false
			for _, a := range allowed {
				if a == to {
					want = true
				}
			}
			if got := IsTransitionAllowed(from, to); got != want {
				t.Fatalf("%s -> %s: got %v want %v", from, to, got, want)
			}
			if IsFinalState(from) && IsTransitionAllowed(from, to) {
				t.Fatalf("final %s allows %s", from, to)
			}
		}
	}
}

func TestButtonTextNilExactlyForTerminal(t *testing.T) {
	for _, s := range Statuses() {
		text, ok := ButtonText(s, "")
		if IsFinalState(s) {
			if ok || text != "" {
				t.Fatalf("%s: expected no button, got %q", s, text)
			}
			continue
		}
		if !ok || text == "" {
			t.Fatalf("%s: expected button text", s)
		}
	}
}

func TestButtonTextIgnoresSegment(t *testing.T) {
	for _, seg := range []Segment{"", SegmentToVendor, SegmentToWarehouse, SegmentToCustomer} {
		text, _ := ButtonText(StatusPickedVendor, seg)
		if text != "Delivered to Warehouse" {
			t.Fatalf("segment %q changed text to %q", seg, text)
		}
	}
}

func TestHappyPathReachesDelivered(t *testing.T) {
	want := []Status{StatusAssigned, StatusPickedVendor, StatusDroppedWarehouse, StatusPickedWarehouse, StatusDelivered}
	cur := StatusCreated
	for i, expected := range want {
		next, ok := NextStatus(cur)
		if !ok {
			t.Fatalf("step %d: no next status from %s", i, cur)
		}
		if next != expected {
			t.Fatalf("step %d: expected %s got %s", i, expected, next)
		}
		cur = next
	}
	if !IsFinalState(cur) {
		t.Fatalf("expected final state, got %s", cur)
	}
}

func TestScenarios(t *testing.T) {
	t.Run("dropped warehouse", func(t *testing.T) {
		if text, _ := ButtonText(StatusDroppedWarehouse, ""); text != "Picked from Warehouse" {
			t.Fatalf("unexpected button %q", text)
		}
		if next, _ := NextStatus(StatusDroppedWarehouse); next != StatusPickedWarehouse {
			t.Fatalf("unexpected next %s", next)
		}
		if IsFinalState(StatusDroppedWarehouse) {
			t.Fatal("dropped warehouse must not be final")
		}
	})

	t.Run("delivered", func(t *testing.T) {
		if _, ok := ButtonText(StatusDelivered, ""); ok {
			t.Fatal("delivered must have no button")
		}
		if !IsFinalState(StatusDelivered) {
			t.Fatal("delivered must be final")
		}
		if n := NextStatuses(StatusDelivered); len(n) != 0 {
			t.Fatalf("expected no transitions, got %v", n)
		}
	})

	t.Run("legacy in transit", func(t *testing.T) {
		if text, _ := ButtonText(StatusInTransit, ""); text != "Complete Delivery" {
			t.Fatalf("unexpected button %q", text)
		}
		if next, _ := NextStatus(StatusInTransit); next != StatusCompleted {
			t.Fatalf("unexpected next %s", next)
		}
		if text, _ := ButtonText(StatusWaiting, ""); text != "Start Delivery" {
			t.Fatalf("unexpected waiting button %q", text)
		}
	})
}

func TestUnknownStatusDegrades(t *testing.T) {
	unknown := Status("RETURNED_TO_SENDER")
	if n := NextStatuses(unknown); len(n) != 0 {
		t.Fatalf("expected empty set, got %v", n)
	}
	if _, ok := NextStatus(unknown); ok {
		t.Fatal("expected no next status")
	}
	if _, ok := ButtonText(unknown, ""); ok {
		t.Fatal("expected no button")
	}
	if IsFinalState(unknown) {
		t.Fatal("unknown status must not be final")
	}
	if got := StatusLabel(unknown); got != "RETURNED_TO_SENDER" {
		t.Fatalf("expected raw token label, got %q", got)
	}
	if err := Validate(unknown, StatusDelivered); !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestStatusLabels(t *testing.T) {
	cases := map[Status]string{
		StatusCreated:          "Created",
		StatusDroppedWarehouse: "Dropped at Warehouse",
		StatusCancelled:        "Cancelled",
		StatusInTransit:        "In Transit",
		StatusCanceled:         "Canceled",
	}
	for s, want := range cases {
		if got := StatusLabel(s); got != want {
			t.Fatalf("%s: expected %q got %q", s, want, got)
		}
	}
}

func TestParseStatus(t *testing.T) {
	cases := []struct {
		raw     string
		want    Status
		wantErr bool
	}{
		{"PICKED_VENDOR", StatusPickedVendor, false},
		{" picked_vendor ", StatusPickedVendor, false},
		{"in_transit", StatusInTransit, false},
		{"IN_TRANSIT", "", true},
		{"nope", "", true},
	}
	for _, tc := range cases {
		got, err := ParseStatus(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrUnknownStatus) {
				t.Fatalf("%q: expected ErrUnknownStatus, got %v", tc.raw, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %s, %v", tc.raw, got, err)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := Validate(StatusAssigned, StatusPickedVendor); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(StatusAssigned, StatusDelivered); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	if err := Validate(StatusDelivered, StatusFailed); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
}

func TestAbortTargets(t *testing.T) {
	if got := AbortTargets(StatusCreated); len(got) != 1 || got[0] != StatusCancelled {
		t.Fatalf("unexpected abort targets %v", got)
	}
	if got := AbortTargets(StatusPickedWarehouse); len(got) != 1 || got[0] != StatusFailed {
		t.Fatalf("unexpected abort targets %v", got)
	}
	if got := AbortTargets(StatusDelivered); len(got) != 0 {
		t.Fatalf("unexpected abort targets %v", got)
	}
}

func TestTransitionsReturnsCopy(t *testing.T) {
	tr := Transitions()
	tr[StatusCreated][0] = StatusDelivered
	if next, _ := NextStatus(StatusCreated); next != StatusAssigned {
		t.Fatalf("table mutated through copy: %s", next)
	}
	n := NextStatuses(StatusAssigned)
	n[0] = StatusFailed
	if !IsTransitionAllowed(StatusAssigned, StatusPickedVendor) {
		t.Fatal("table mutated through NextStatuses")
	}
}

func TestWarehouseStopsShareSegment(t *testing.T) {
	segDrop, _ := ExpectedSegment(StatusPickedVendor)
	segPick, _ := ExpectedSegment(StatusDroppedWarehouse)
	if segDrop != SegmentToWarehouse || segPick != SegmentToWarehouse {
		t.Fatalf("expected TO_WAREHOUSE for both, got %s and %s", segDrop, segPick)
	}
	drop, _ := TargetStopSeq(StatusPickedVendor)
	pick, _ := TargetStopSeq(StatusDroppedWarehouse)
	if drop != StopSeqWarehouseDrop || pick != StopSeqWarehousePick {
		t.Fatalf("unexpected stop seqs %d %d", drop, pick)
	}
}

func TestPhaseEquivalence(t *testing.T) {
	cases := map[Status]Phase{
		StatusCreated:   PhaseOffer,
		StatusWaiting:   PhaseActive,
		StatusInTransit: PhaseActive,
		StatusCompleted: PhaseDelivered,
		StatusDelivered: PhaseDelivered,
		StatusCanceled:  PhaseAborted,
		StatusFailed:    PhaseAborted,
	}
	for s, want := range cases {
		if got, _ := PhaseOf(s); got != want {
			t.Fatalf("%s: expected %s got %s", s, want, got)
		}
	}
}

func TestLegacyAndSegmentTokens(t *testing.T) {
	for _, s := range []Status{StatusWaiting, StatusInTransit, StatusCompleted, StatusCanceled} {
		if !IsLegacy(s) {
			t.Fatalf("%s should be legacy", s)
		}
	}
	if IsLegacy(StatusCreated) || IsLegacy("RETURNED") {
		t.Fatalf("canonical and unknown statuses are not legacy")
	}
	if seg, err := ParseSegment(" to_warehouse "); err != nil || seg != SegmentToWarehouse {
		t.Fatalf("unexpected segment %q %v", seg, err)
	}
	if _, err := ParseSegment("TO_MOON"); !errors.Is(err, ErrUnknownSegment) {
		t.Fatalf("expected ErrUnknownSegment, got %v", err)
	}
}

func TestStopIDForStatusUpdate(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if _, err := StopIDForStatusUpdate(nil, StatusPickedVendor); !errors.Is(err, ErrMissingDirections) {
		t.Fatalf("expected ErrMissingDirections for nil, got %v", err)
	}

	empty := NewFreshDirections(Directions{Segment: SegmentToVendor}, now)
	if _, err := StopIDForStatusUpdate(empty, StatusPickedVendor); !errors.Is(err, ErrMissingDirections) {
		t.Fatalf("expected ErrMissingDirections for empty stop, got %v", err)
	}

	fresh := NewFreshDirections(Directions{Segment: SegmentToWarehouse, ToStopID: "stop-3"}, now)
	got, err := StopIDForStatusUpdate(fresh, StatusPickedWarehouse)
	if err != nil || got != "stop-3" {
		t.Fatalf("expected stop-3, got %q %v", got, err)
	}
}

func TestFreshDirectionsStale(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewFreshDirections(Directions{ToStopID: "x"}, now.Add(-10*time.Second))
	if f.Stale(now, 30*time.Second) {
		t.Fatal("expected fresh")
	}
	if !f.Stale(now, 5*time.Second) {
		t.Fatal("expected stale")
	}
	var missing *FreshDirections
	if !missing.Stale(now, time.Hour) {
		t.Fatal("nil must be stale")
	}
}

func TestTransitionResultReconcile(t *testing.T) {
	r := TransitionResult{ShipmentID: "s1", Previous: StatusAssigned, Applied: StatusPickedVendor}
	if got := r.Reconcile(""); got != StatusPickedVendor {
		t.Fatalf("expected optimistic status, got %s", got)
	}
	if got := r.Reconcile(StatusAssigned); got != StatusAssigned {
		t.Fatalf("expected server status, got %s", got)
	}
	if got := r.Effective("s2", StatusCreated); got != StatusCreated {
		t.Fatalf("expected fallback for other shipment, got %s", got)
	}
}
