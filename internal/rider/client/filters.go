package client

import (
	"strings"

	"github.com/samber/lo"

	"riderBack/internal/shipment/lifecycle"
)

// Tab is a server-side list partition.
type Tab string

const (
	TabAll     Tab = "all"
	TabOffers  Tab = "offers"
	TabActive  Tab = "active"
	TabHistory Tab = "history"
)

// Status filter values offered by the rider app next to the four tabs.
const (
	FilterAll       = "all"
	FilterOffers    = "offers"
	FilterInTransit = "in_transit"
	FilterCompleted = "completed"
	FilterCanceled  = "canceled"
)

var filterStatuses = map[string][]lifecycle.Status{
	FilterInTransit: {
		lifecycle.StatusAssigned,
		lifecycle.StatusPickedVendor,
		lifecycle.StatusDroppedWarehouse,
		lifecycle.StatusPickedWarehouse,
		lifecycle.StatusInTransit,
	},
	FilterCompleted: {lifecycle.StatusDelivered, lifecycle.StatusCompleted},
	FilterCanceled:  {lifecycle.StatusCancelled, lifecycle.StatusFailed, lifecycle.StatusCanceled},
}

// FilterToTab maps a rider-facing filter to the server tab that contains its shipments.
// Unknown filters fall back to the all tab.
func FilterToTab(filter string) Tab {
	switch strings.ToLower(strings.TrimSpace(filter)) {
	case FilterOffers:
		return TabOffers
	case FilterInTransit, FilterCanceled, string(TabActive):
		return TabActive
	case FilterCompleted, string(TabHistory):
		return TabHistory
	default:
		return TabAll
	}
}

// FilterByStatus narrows a page fetched for FilterToTab(filter) to the filter's statuses.
// all and offers keep everything; any other value matches the status token exactly.
func FilterByStatus(items []Shipment, filter string) []Shipment {
	filter = strings.TrimSpace(filter)
	switch strings.ToLower(filter) {
	case "", FilterAll, FilterOffers, string(TabActive), string(TabHistory):
		return items
	}
	if statuses, ok := filterStatuses[strings.ToLower(filter)]; ok {
		return lo.Filter(items, func(s Shipment, _ int) bool { return lo.Contains(statuses, s.Status) })
	}
	return lo.Filter(items, func(s Shipment, _ int) bool { return string(s.Status) == filter })
}
