package repo

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"riderBack/internal/shipment/lifecycle"
	"riderBack/internal/storage"
)

func newMockDB(t *testing.T, dialect storage.Dialect) (*storage.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &storage.DB{DB: db, Dialect: dialect}, mock
}

// sqlLike builds a pattern matching the given fragments in order.
func sqlLike(fragments ...string) string {
	p := "(?s)"
	for i, f := range fragments {
		if i > 0 {
			p += ".*"
		}
		p += regexp.QuoteMeta(f)
	}
	return p
}

func checkMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}

var offerRowColumns = []string{"id", "shipment_id", "rider_id", "status", "eta_seconds", "distance_m", "expires_at", "created_at", "updated_at"}

func TestUpdateStatusWritesHistory(t *testing.T) {
	db, mock := newMockDB(t, storage.DialectMySQL)
	mock.ExpectBegin()
	mock.ExpectQuery(sqlLike("SELECT status FROM shipments WHERE id = ? FOR UPDATE")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("ASSIGNED"))
	mock.ExpectExec(sqlLike("UPDATE shipments SET status = ?, updated_at = ? WHERE id = ? AND status = ?")).
		WithArgs("PICKED_VENDOR", sqlmock.AnyArg(), "s1", "ASSIGNED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlLike("INSERT INTO shipment_status_history")).
		WithArgs(sqlmock.AnyArg(), "s1", "PICKED_VENDOR", "stop-1", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := NewShipmentsRepo(db).UpdateStatus(context.Background(), "s1", lifecycle.StatusAssigned, lifecycle.StatusPickedVendor, "stop-1", "")
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	checkMock(t, mock)
}

func TestUpdateStatusLostRace(t *testing.T) {
	cases := []struct {
		name  string
		setup func(mock sqlmock.Sqlmock)
	}{
		{
			name: "stored status moved on",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(sqlLike("SELECT status FROM shipments WHERE id = ? FOR UPDATE")).
					WithArgs("s1").
					WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("PICKED_VENDOR"))
			},
		},
		{
			name: "compare and set matched no row",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(sqlLike("SELECT status FROM shipments WHERE id = ? FOR UPDATE")).
					WithArgs("s1").
					WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("ASSIGNED"))
				mock.ExpectExec(sqlLike("UPDATE shipments SET status = ?")).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t, storage.DialectMySQL)
			mock.ExpectBegin()
			tc.setup(mock)
			mock.ExpectRollback()

			err := NewShipmentsRepo(db).UpdateStatus(context.Background(), "s1", lifecycle.StatusAssigned, lifecycle.StatusPickedVendor, "stop-1", "")
			if !errors.Is(err, ErrStatusConflict) {
				t.Fatalf("expected ErrStatusConflict, got %v", err)
			}
			checkMock(t, mock)
		})
	}
}

func TestUpdateStatusMissingAndIllegal(t *testing.T) {
	db, mock := newMockDB(t, storage.DialectMySQL)
	mock.ExpectBegin()
	mock.ExpectQuery(sqlLike("SELECT status FROM shipments")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectRollback()

	repo := NewShipmentsRepo(db)
	err := repo.UpdateStatus(context.Background(), "nope", lifecycle.StatusAssigned, lifecycle.StatusPickedVendor, "", "")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Illegal transitions are refused before any statement runs.
	err = repo.UpdateStatus(context.Background(), "s1", lifecycle.StatusAssigned, lifecycle.StatusDelivered, "", "")
	if !errors.Is(err, lifecycle.ErrIllegalTransition) {
		t.Fatalf("expected ErrIllegalTransition, got %v", err)
	}
	checkMock(t, mock)
}

func TestUpdateStatusRebindsForPostgres(t *testing.T) {
	db, mock := newMockDB(t, storage.DialectPostgres)
	mock.ExpectBegin()
	mock.ExpectQuery(sqlLike("SELECT status FROM shipments WHERE id = $1 FOR UPDATE")).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("ASSIGNED"))
	mock.ExpectExec(sqlLike("UPDATE shipments SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4")).
		WithArgs("PICKED_VENDOR", sqlmock.AnyArg(), "s1", "ASSIGNED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(sqlLike("INSERT INTO shipment_status_history (id, shipment_id, status, at_stop_id, note, created_at) VALUES ($1,$2,$3,$4,$5,$6)")).
		WithArgs(sqlmock.AnyArg(), "s1", "PICKED_VENDOR", nil, "left at door", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := NewShipmentsRepo(db).UpdateStatus(context.Background(), "s1", lifecycle.StatusAssigned, lifecycle.StatusPickedVendor, "", "left at door")
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	checkMock(t, mock)
}

func TestAcceptOffer(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	offerRow := func(riderID, status string, expires time.Time) *sqlmock.Rows {
		return sqlmock.NewRows(offerRowColumns).
			AddRow("o1", "s1", riderID, status, int64(300), int64(1200), expires, now.Add(-time.Minute), now.Add(-time.Minute))
	}
	selectOffer := sqlLike("SELECT id, shipment_id, rider_id", "FROM shipment_offers WHERE id = ? FOR UPDATE")

	t.Run("assigns shipment and rejects siblings", func(t *testing.T) {
		db, mock := newMockDB(t, storage.DialectMySQL)
		mock.ExpectBegin()
		mock.ExpectQuery(selectOffer).WithArgs("o1").WillReturnRows(offerRow("r1", OfferStatusPending, now.Add(time.Minute)))
		mock.ExpectExec(sqlLike("UPDATE shipment_offers SET status = ?, updated_at = ? WHERE id = ?")).
			WithArgs(OfferStatusAccepted, now, "o1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(sqlLike("UPDATE shipment_offers SET status = ?, updated_at = ? WHERE shipment_id = ? AND id <> ? AND status = ?")).
			WithArgs(OfferStatusRejected, now, "s1", "o1", OfferStatusPending).
			WillReturnResult(sqlmock.NewResult(0, 2))
		mock.ExpectQuery(sqlLike("SELECT status FROM shipments WHERE id = ? FOR UPDATE")).
			WithArgs("s1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("CREATED"))
		mock.ExpectExec(sqlLike("UPDATE shipments SET rider_id = ?, status = ?, updated_at = ? WHERE id = ?")).
			WithArgs("r1", "ASSIGNED", now, "s1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(sqlLike("INSERT INTO shipment_status_history")).
			WithArgs(sqlmock.AnyArg(), "s1", "ASSIGNED", nil, nil, now).
			WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		o, err := NewOffersRepo(db).Accept(context.Background(), "o1", "r1", now)
		if err != nil {
			t.Fatalf("accept: %v", err)
		}
		if o.Status != OfferStatusAccepted || o.ShipmentID != "s1" {
			t.Fatalf("unexpected offer %+v", o)
		}
		checkMock(t, mock)
	})

	unavailable := []struct {
		name string
		rows *sqlmock.Rows
	}{
		{"foreign rider", offerRow("r2", OfferStatusPending, now.Add(time.Minute))},
		{"expired", offerRow("r1", OfferStatusPending, now.Add(-time.Second))},
		{"already rejected", offerRow("r1", OfferStatusRejected, now.Add(time.Minute))},
	}
	for _, tc := range unavailable {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMockDB(t, storage.DialectMySQL)
			mock.ExpectBegin()
			mock.ExpectQuery(selectOffer).WithArgs("o1").WillReturnRows(tc.rows)
			mock.ExpectRollback()

			if _, err := NewOffersRepo(db).Accept(context.Background(), "o1", "r1", now); !errors.Is(err, ErrOfferUnavailable) {
				t.Fatalf("expected ErrOfferUnavailable, got %v", err)
			}
			checkMock(t, mock)
		})
	}

	t.Run("shipment already taken", func(t *testing.T) {
		db, mock := newMockDB(t, storage.DialectMySQL)
		mock.ExpectBegin()
		mock.ExpectQuery(selectOffer).WithArgs("o1").WillReturnRows(offerRow("r1", OfferStatusPending, now.Add(time.Minute)))
		mock.ExpectExec(sqlLike("UPDATE shipment_offers SET status = ?")).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(sqlLike("UPDATE shipment_offers SET status = ?")).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery(sqlLike("SELECT status FROM shipments WHERE id = ? FOR UPDATE")).
			WithArgs("s1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("ASSIGNED"))
		mock.ExpectRollback()

		if _, err := NewOffersRepo(db).Accept(context.Background(), "o1", "r1", now); !errors.Is(err, ErrOfferUnavailable) {
			t.Fatalf("expected ErrOfferUnavailable, got %v", err)
		}
		checkMock(t, mock)
	})
}

func TestExpireDue(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	db, mock := newMockDB(t, storage.DialectMySQL)
	mock.ExpectExec(sqlLike("UPDATE shipment_offers SET status = ?, updated_at = ? WHERE status = ? AND expires_at <= ?")).
		WithArgs(OfferStatusExpired, now, OfferStatusPending, now).
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := NewOffersRepo(db).ExpireDue(context.Background(), now)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 expired, got %d %v", n, err)
	}
	checkMock(t, mock)
}

func TestListForRiderOffersTab(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	db, mock := newMockDB(t, storage.DialectMySQL)

	cols := []string{"id", "order_no", "vendor_name", "rider_id", "warehouse_id", "status", "created_at", "updated_at",
		"o_id", "o_status", "o_eta", "o_dist", "o_expires", "o_created"}
	rows := sqlmock.NewRows(cols).
		AddRow("s2", "A-2", "Cafe", nil, nil, "CREATED", now.Add(-time.Minute), now, "o2", OfferStatusPending, int64(240), int64(900), now.Add(30*time.Second), now).
		AddRow("s1", "A-1", "Cafe", nil, nil, "CREATED", now.Add(-2*time.Minute), now, "o1", OfferStatusPending, int64(300), int64(1200), now.Add(20*time.Second), now)
	mock.ExpectQuery(sqlLike(
		"LEFT JOIN shipment_offers o ON o.shipment_id = s.id AND o.rider_id = ?",
		"WHERE (o.status = ? AND o.expires_at > ? AND s.status = ?)",
		"ORDER BY s.created_at DESC, s.id DESC LIMIT ?",
	)).
		WithArgs("r1", OfferStatusPending, now, "CREATED", int64(2)).
		WillReturnRows(rows)
	mock.ExpectQuery(sqlLike("FROM shipment_stops WHERE shipment_id IN (?)")).
		WithArgs("s2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "shipment_id", "seq", "kind", "label", "address", "place_id", "city", "lat", "lon"}).
			AddRow("s2-1", "s2", int64(1), StopKindVendor, "Cafe", "Abay 1", nil, "almaty", 43.2, 76.9))

	page, err := NewShipmentsRepo(db).ListForRider(context.Background(), "r1", ListQuery{Tab: TabOffers, Limit: 1, Now: now})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "s2" {
		t.Fatalf("unexpected items %+v", page.Items)
	}
	got := page.Items[0]
	if got.Offer == nil || got.Offer.ID != "o2" || got.Offer.EtaSeconds != 240 {
		t.Fatalf("offer not attached: %+v", got.Offer)
	}
	if len(got.Stops) != 1 || got.Stops[0].City.String != "almaty" {
		t.Fatalf("stops not attached: %+v", got.Stops)
	}
	if page.NextCursor == nil || page.NextCursor.ID != "s2" {
		t.Fatalf("expected next cursor at s2, got %+v", page.NextCursor)
	}
	checkMock(t, mock)
}

func TestListUnofferedResumesAfterCursor(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	db, mock := newMockDB(t, storage.DialectPostgres)
	mock.ExpectQuery(sqlLike(
		"WHERE s.status = $1 AND NOT EXISTS",
		"(s.created_at > $3 OR (s.created_at = $4 AND s.id > $5))",
		"ORDER BY s.created_at ASC, s.id ASC LIMIT $6",
	)).
		WithArgs("CREATED", OfferStatusPending, at, at, "s4", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_no", "vendor_name", "rider_id", "warehouse_id", "status", "created_at", "updated_at"}))

	items, err := NewShipmentsRepo(db).ListUnoffered(context.Background(), &Cursor{CreatedAt: at, ID: "s4"}, 2)
	if err != nil || len(items) != 0 {
		t.Fatalf("expected empty page, got %v %v", items, err)
	}
	checkMock(t, mock)
}

func TestStillCreated(t *testing.T) {
	db, mock := newMockDB(t, storage.DialectMySQL)
	mock.ExpectQuery(sqlLike("SELECT id FROM shipments WHERE status = ? AND id IN (?,?)")).
		WithArgs("CREATED", "s1", "s2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s2"))

	ids, err := NewShipmentsRepo(db).StillCreated(context.Background(), []string{"s1", "s2"})
	if err != nil || len(ids) != 1 || ids[0] != "s2" {
		t.Fatalf("unexpected ids %v %v", ids, err)
	}
	checkMock(t, mock)
}
