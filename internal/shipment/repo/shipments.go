package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"riderBack/internal/shipment/lifecycle"
	"riderBack/internal/storage"
)

// Stop kinds stored in shipment_stops.kind.
const (
	StopKindVendor    = "VENDOR"
	StopKindWarehouse = "WAREHOUSE"
	StopKindCustomer  = "CUSTOMER"
)

// Shipment is a delivery job together with its four ordered stops.
type Shipment struct {
	ID          string
	OrderNo     string
	VendorName  string
	RiderID     sql.NullString
	WarehouseID sql.NullString
	Status      lifecycle.Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Stops       []Stop
	Warehouse   *Warehouse
	// Offer is the rider's own offer row, set by ListForRider only.
	Offer *Offer
}

// Stop is one physical location on the shipment route.
type Stop struct {
	ID         string
	ShipmentID string
	Seq        int
	Kind       string
	Label      string
	Address    string
	PlaceID    sql.NullString
	City       sql.NullString
	Lat        float64
	Lon        float64
}

// Warehouse is the hub a shipment passes through between vendor and customer.
type Warehouse struct {
	ID        string
	Name      string
	Address   string
	PlaceID   sql.NullString
	Lat       float64
	Lon       float64
	IsDefault bool
	IsActive  bool
}

// StopBySeq returns the stop with the given sequence number.
func (s Shipment) StopBySeq(seq int) (Stop, bool) {
	return lo.Find(s.Stops, func(st Stop) bool { return st.Seq == seq })
}

// StopByID returns the stop with the given identifier.
func (s Shipment) StopByID(id string) (Stop, bool) {
	return lo.Find(s.Stops, func(st Stop) bool { return st.ID == id })
}

// HistoryEntry captures a lifecycle change for auditing.
type HistoryEntry struct {
	ID         string
	ShipmentID string
	Status     lifecycle.Status
	AtStopID   sql.NullString
	Note       sql.NullString
	CreatedAt  time.Time
}

// Tab is the rider-facing list filter.
type Tab string

const (
	TabAll     Tab = "all"
	TabOffers  Tab = "offers"
	TabActive  Tab = "active"
	TabHistory Tab = "history"
)

// ParseTab maps a query value to a Tab, defaulting to TabAll.
func ParseTab(raw string) (Tab, error) {
	switch Tab(strings.ToLower(strings.TrimSpace(raw))) {
	case "", TabAll:
		return TabAll, nil
	case TabOffers:
		return TabOffers, nil
	case TabActive:
		return TabActive, nil
	case TabHistory:
		return TabHistory, nil
	default:
		return "", fmt.Errorf("unknown tab %q", raw)
	}
}

// tabStatuses lists the statuses a rider-owned shipment may have to appear on tab.
// The active tab also carries aborted shipments so clients can split them out locally.
func tabStatuses(tab Tab) []lifecycle.Status {
	var phases []lifecycle.Phase
	switch tab {
	case TabActive:
		phases = []lifecycle.Phase{lifecycle.PhaseActive, lifecycle.PhaseAborted}
	case TabHistory:
		phases = []lifecycle.Phase{lifecycle.PhaseDelivered}
	default:
		return nil
	}
	return lo.Filter(lifecycle.Statuses(), func(s lifecycle.Status, _ int) bool {
		p, _ := lifecycle.PhaseOf(s)
		return lo.Contains(phases, p)
	})
}

// ListQuery selects a page of a rider's shipments.
type ListQuery struct {
	Tab    Tab
	Limit  int
	Cursor *Cursor
	Now    time.Time
}

// Page is one keyset page of shipments.
type Page struct {
	Items      []Shipment
	NextCursor *Cursor
}

// ShipmentsRepo provides persistence for shipments, their stops and status history.
type ShipmentsRepo struct {
	db *storage.DB
	q  boundDB
}

// NewShipmentsRepo constructs a ShipmentsRepo.
func NewShipmentsRepo(db *storage.DB) *ShipmentsRepo {
	return &ShipmentsRepo{db: db, q: boundDB{db: db}}
}

const shipmentColumns = `s.id, s.order_no, s.vendor_name, s.rider_id, s.warehouse_id, s.status, s.created_at, s.updated_at`

// Create inserts a new CREATED shipment with its stops and first history row.
func (r *ShipmentsRepo) Create(ctx context.Context, s Shipment) (Shipment, error) {
	if err := validateStops(s.Stops); err != nil {
		return Shipment{}, err
	}
	now := time.Now().UTC()
	s.ID = uuid.NewString()
	s.Status = lifecycle.StatusCreated
	s.CreatedAt, s.UpdatedAt = now, now
	if strings.TrimSpace(s.OrderNo) == "" {
		s.OrderNo = "SH-" + strings.ToUpper(s.ID[:8])
	}
	for i := range s.Stops {
		s.Stops[i].ID = uuid.NewString()
		s.Stops[i].ShipmentID = s.ID
	}
	sort.Slice(s.Stops, func(i, j int) bool { return s.Stops[i].Seq < s.Stops[j].Seq })

	err := withTx(ctx, r.db, func(q execer) error {
		if _, err := q.ExecContext(ctx, `INSERT INTO shipments (id, order_no, vendor_name, rider_id, warehouse_id, status, created_at, updated_at) VALUES (?,?,?,?,?,?,?,?)`,
			s.ID, s.OrderNo, s.VendorName, nullOrString(s.RiderID), nullOrString(s.WarehouseID), s.Status, s.CreatedAt, s.UpdatedAt); err != nil {
			return err
		}
		for _, st := range s.Stops {
			if _, err := q.ExecContext(ctx, `INSERT INTO shipment_stops (id, shipment_id, seq, kind, label, address, place_id, city, lat, lon) VALUES (?,?,?,?,?,?,?,?,?,?)`,
				st.ID, st.ShipmentID, st.Seq, st.Kind, st.Label, st.Address, nullOrString(st.PlaceID), nullOrString(st.City), st.Lat, st.Lon); err != nil {
				return err
			}
		}
		return insertHistory(ctx, q, HistoryEntry{ShipmentID: s.ID, Status: s.Status, CreatedAt: now})
	})
	if err != nil {
		return Shipment{}, err
	}
	return s, nil
}

// Get returns a shipment with its stops and warehouse by identifier.
func (r *ShipmentsRepo) Get(ctx context.Context, id string) (Shipment, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+shipmentColumns+` FROM shipments s WHERE s.id = ?`, id)
	var s Shipment
	err := row.Scan(&s.ID, &s.OrderNo, &s.VendorName, &s.RiderID, &s.WarehouseID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Shipment{}, ErrNotFound
	}
	if err != nil {
		return Shipment{}, err
	}
	list := []Shipment{s}
	if err := r.attachStops(ctx, list); err != nil {
		return Shipment{}, err
	}
	if err := r.attachWarehouses(ctx, list); err != nil {
		return Shipment{}, err
	}
	return list[0], nil
}

// ListForRider returns one page of shipments visible to the rider on the given tab,
// newest first. Offers are the rider's pending, unexpired offers on CREATED shipments.
func (r *ShipmentsRepo) ListForRider(ctx context.Context, riderID string, lq ListQuery) (Page, error) {
	if lq.Limit <= 0 {
		lq.Limit = 20
	}
	if lq.Now.IsZero() {
		lq.Now = time.Now().UTC()
	}

	var (
		where []string
		args  = []any{riderID}
	)
	offerCond := `(o.status = ? AND o.expires_at > ? AND s.status = ?)`
	offerArgs := []any{OfferStatusPending, lq.Now, lifecycle.StatusCreated}

	switch lq.Tab {
	case TabOffers:
		where = append(where, offerCond)
		args = append(args, offerArgs...)
	case TabActive, TabHistory:
		statuses := tabStatuses(lq.Tab)
		where = append(where, `s.rider_id = ?`, `s.status IN (`+placeholders(len(statuses))+`)`)
		args = append(args, riderID)
		args = append(args, lo.ToAnySlice(statuses)...)
	default:
		where = append(where, `(s.rider_id = ? OR `+offerCond+`)`)
		args = append(args, riderID)
		args = append(args, offerArgs...)
	}
	if lq.Cursor != nil {
		where = append(where, `(s.created_at < ? OR (s.created_at = ? AND s.id < ?))`)
		args = append(args, lq.Cursor.CreatedAt, lq.Cursor.CreatedAt, lq.Cursor.ID)
	}
	args = append(args, lq.Limit+1)

	query := `SELECT ` + shipmentColumns + `, o.id, o.status, o.eta_seconds, o.distance_m, o.expires_at, o.created_at
        FROM shipments s
        LEFT JOIN shipment_offers o ON o.shipment_id = s.id AND o.rider_id = ?
        WHERE ` + strings.Join(where, " AND ") + `
        ORDER BY s.created_at DESC, s.id DESC LIMIT ?`

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return Page{}, err
	}
	defer rows.Close()

	var items []Shipment
	for rows.Next() {
		var (
			s                     Shipment
			offerID, offerStatus  sql.NullString
			offerEta, offerDist   sql.NullInt64
			offerExp, offerCreate sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.OrderNo, &s.VendorName, &s.RiderID, &s.WarehouseID, &s.Status, &s.CreatedAt, &s.UpdatedAt,
			&offerID, &offerStatus, &offerEta, &offerDist, &offerExp, &offerCreate); err != nil {
			return Page{}, err
		}
		if offerID.Valid {
			s.Offer = &Offer{
				ID:         offerID.String,
				ShipmentID: s.ID,
				RiderID:    riderID,
				Status:     offerStatus.String,
				EtaSeconds: int(offerEta.Int64),
				DistanceM:  int(offerDist.Int64),
				ExpiresAt:  offerExp.Time,
				CreatedAt:  offerCreate.Time,
			}
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}

	var page Page
	if len(items) > lq.Limit {
		items = items[:lq.Limit]
		last := items[len(items)-1]
		page.NextCursor = &Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	if err := r.attachStops(ctx, items); err != nil {
		return Page{}, err
	}
	if err := r.attachWarehouses(ctx, items); err != nil {
		return Page{}, err
	}
	page.Items = items
	return page, nil
}

// UpdateStatus moves a shipment from -> to if the stored status still equals from,
// and records the change in the status history.
func (r *ShipmentsRepo) UpdateStatus(ctx context.Context, id string, from, to lifecycle.Status, atStopID, note string) error {
	if err := lifecycle.Validate(from, to); err != nil {
		return err
	}
	now := time.Now().UTC()
	return withTx(ctx, r.db, func(q execer) error {
		var current lifecycle.Status
		if err := q.QueryRowContext(ctx, `SELECT status FROM shipments WHERE id = ? FOR UPDATE`, id).Scan(&current); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}
		if current != from {
			return fmt.Errorf("%w: expected %s, found %s", ErrStatusConflict, from, current)
		}
		res, err := q.ExecContext(ctx, `UPDATE shipments SET status = ?, updated_at = ? WHERE id = ? AND status = ?`, to, now, id, from)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrStatusConflict
		}
		return insertHistory(ctx, q, HistoryEntry{
			ShipmentID: id,
			Status:     to,
			AtStopID:   nullIfEmpty(atStopID),
			Note:       nullIfEmpty(note),
			CreatedAt:  now,
		})
	})
}

// assignTx links a rider to a CREATED shipment and moves it to ASSIGNED.
func assignTx(ctx context.Context, q execer, id, riderID string, now time.Time) error {
	var current lifecycle.Status
	if err := q.QueryRowContext(ctx, `SELECT status FROM shipments WHERE id = ? FOR UPDATE`, id).Scan(&current); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if err := lifecycle.Validate(current, lifecycle.StatusAssigned); err != nil {
		return fmt.Errorf("%w: %v", ErrStatusConflict, err)
	}
	if _, err := q.ExecContext(ctx, `UPDATE shipments SET rider_id = ?, status = ?, updated_at = ? WHERE id = ?`,
		riderID, lifecycle.StatusAssigned, now, id); err != nil {
		return err
	}
	return insertHistory(ctx, q, HistoryEntry{ShipmentID: id, Status: lifecycle.StatusAssigned, CreatedAt: now})
}

// ListUnoffered returns CREATED shipments that have no pending offer, oldest
// first, starting strictly after the given cursor.
func (r *ShipmentsRepo) ListUnoffered(ctx context.Context, after *Cursor, limit int) ([]Shipment, error) {
	where := []string{`s.status = ?`, `NOT EXISTS (SELECT 1 FROM shipment_offers o WHERE o.shipment_id = s.id AND o.status = ?)`}
	args := []interface{}{lifecycle.StatusCreated, OfferStatusPending}
	if after != nil {
		where = append(where, `(s.created_at > ? OR (s.created_at = ? AND s.id > ?))`)
		args = append(args, after.CreatedAt, after.CreatedAt, after.ID)
	}
	args = append(args, limit)

	rows, err := r.q.QueryContext(ctx, `SELECT `+shipmentColumns+` FROM shipments s WHERE `+
		strings.Join(where, " AND ")+` ORDER BY s.created_at ASC, s.id ASC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Shipment
	for rows.Next() {
		var s Shipment
		if err := rows.Scan(&s.ID, &s.OrderNo, &s.VendorName, &s.RiderID, &s.WarehouseID, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachStops(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}

// StillCreated returns the subset of ids whose shipment is still CREATED.
func (r *ShipmentsRepo) StillCreated(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := append([]interface{}{lifecycle.StatusCreated}, lo.ToAnySlice(ids)...)
	rows, err := r.q.QueryContext(ctx, `SELECT id FROM shipments WHERE status = ? AND id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// History returns the status history of a shipment, oldest first.
func (r *ShipmentsRepo) History(ctx context.Context, id string) ([]HistoryEntry, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT id, shipment_id, status, at_stop_id, note, created_at FROM shipment_status_history WHERE shipment_id = ? ORDER BY created_at ASC, id ASC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.ShipmentID, &h.Status, &h.AtStopID, &h.Note, &h.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

func (r *ShipmentsRepo) attachStops(ctx context.Context, items []Shipment) error {
	if len(items) == 0 {
		return nil
	}
	index := make(map[string]int, len(items))
	ids := make([]any, 0, len(items))
	for i, s := range items {
		index[s.ID] = i
		ids = append(ids, s.ID)
	}
	rows, err := r.q.QueryContext(ctx, `SELECT id, shipment_id, seq, kind, label, address, place_id, city, lat, lon FROM shipment_stops WHERE shipment_id IN (`+placeholders(len(ids))+`) ORDER BY shipment_id, seq`, ids...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var st Stop
		if err := rows.Scan(&st.ID, &st.ShipmentID, &st.Seq, &st.Kind, &st.Label, &st.Address, &st.PlaceID, &st.City, &st.Lat, &st.Lon); err != nil {
			return err
		}
		if i, ok := index[st.ShipmentID]; ok {
			items[i].Stops = append(items[i].Stops, st)
		}
	}
	return rows.Err()
}

func (r *ShipmentsRepo) attachWarehouses(ctx context.Context, items []Shipment) error {
	ids := lo.Uniq(lo.FilterMap(items, func(s Shipment, _ int) (string, bool) {
		return s.WarehouseID.String, s.WarehouseID.Valid
	}))
	if len(ids) == 0 {
		return nil
	}
	rows, err := r.q.QueryContext(ctx, `SELECT id, name, address, place_id, lat, lon, is_default, is_active FROM warehouses WHERE id IN (`+placeholders(len(ids))+`)`, lo.ToAnySlice(ids)...)
	if err != nil {
		return err
	}
	defer rows.Close()

	byID := make(map[string]*Warehouse, len(ids))
	for rows.Next() {
		var w Warehouse
		if err := rows.Scan(&w.ID, &w.Name, &w.Address, &w.PlaceID, &w.Lat, &w.Lon, &w.IsDefault, &w.IsActive); err != nil {
			return err
		}
		byID[w.ID] = &w
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range items {
		if w, ok := byID[items[i].WarehouseID.String]; ok {
			items[i].Warehouse = w
		}
	}
	return nil
}

func insertHistory(ctx context.Context, q execer, entry HistoryEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	_, err := q.ExecContext(ctx, `INSERT INTO shipment_status_history (id, shipment_id, status, at_stop_id, note, created_at) VALUES (?,?,?,?,?,?)`,
		entry.ID, entry.ShipmentID, entry.Status, nullOrString(entry.AtStopID), nullOrString(entry.Note), entry.CreatedAt)
	return err
}

func validateStops(stops []Stop) error {
	seqs := lo.Map(stops, func(s Stop, _ int) int { return s.Seq })
	want := []int{lifecycle.StopSeqVendor, lifecycle.StopSeqWarehouseDrop, lifecycle.StopSeqWarehousePick, lifecycle.StopSeqCustomer}
	if len(seqs) != len(want) || !lo.Every(seqs, want) || len(lo.Uniq(seqs)) != len(want) {
		return ErrInvalidStops
	}
	for _, st := range stops {
		if st.Kind != KindForSeq(st.Seq) {
			return fmt.Errorf("%w: stop %d must be %s", ErrInvalidStops, st.Seq, KindForSeq(st.Seq))
		}
	}
	return nil
}

// KindForSeq returns the stop kind required at sequence seq.
func KindForSeq(seq int) string {
	switch seq {
	case lifecycle.StopSeqVendor:
		return StopKindVendor
	case lifecycle.StopSeqCustomer:
		return StopKindCustomer
	default:
		return StopKindWarehouse
	}
}
