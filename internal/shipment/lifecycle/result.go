package lifecycle

// TransitionResult is the outcome of a submitted transition. Callers merge it into
// their own state instead of keeping a separate local override.
type TransitionResult struct {
	ShipmentID        string `json:"shipmentId"`
	Previous          Status `json:"previous"`
	Applied           Status `json:"applied"`
	AtStopID          string `json:"atStopId,omitempty"`
	ConfirmedByServer bool   `json:"confirmedByServer"`
}

// Reconcile picks the status to display once the server status is known again.
// An empty server status keeps the optimistic value.
func (r TransitionResult) Reconcile(server Status) Status {
	if server == "" {
		return r.Applied
	}
	return server
}

// Effective returns the applied status when the result concerns shipmentID, otherwise fallback.
func (r TransitionResult) Effective(shipmentID string, fallback Status) Status {
	if r.ShipmentID != shipmentID || r.Applied == "" {
		return fallback
	}
	return r.Applied
}
