package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"riderBack/internal/storage"
)

const (
	OfferStatusPending  = "PENDING"
	OfferStatusAccepted = "ACCEPTED"
	OfferStatusExpired  = "EXPIRED"
	OfferStatusRejected = "REJECTED"
)

// Offer is a time-limited proposal of a CREATED shipment to one rider.
type Offer struct {
	ID         string
	ShipmentID string
	RiderID    string
	Status     string
	EtaSeconds int
	DistanceM  int
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// OffersRepo manages shipment offer persistence.
type OffersRepo struct {
	db *storage.DB
	q  boundDB
}

// NewOffersRepo constructs the repository.
func NewOffersRepo(db *storage.DB) *OffersRepo {
	return &OffersRepo{db: db, q: boundDB{db: db}}
}

const offerColumns = `id, shipment_id, rider_id, status, eta_seconds, distance_m, expires_at, created_at, updated_at`

// Create inserts a PENDING offer. ID and timestamps are filled in when empty.
func (r *OffersRepo) Create(ctx context.Context, o Offer) (Offer, error) {
	now := time.Now().UTC()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.Status = OfferStatusPending
	o.CreatedAt, o.UpdatedAt = now, now
	_, err := r.q.ExecContext(ctx, `INSERT INTO shipment_offers (`+offerColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		o.ID, o.ShipmentID, o.RiderID, o.Status, o.EtaSeconds, o.DistanceM, o.ExpiresAt.UTC(), o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return Offer{}, err
	}
	return o, nil
}

// Get returns an offer by identifier.
func (r *OffersRepo) Get(ctx context.Context, id string) (Offer, error) {
	o, err := scanOffer(r.q.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM shipment_offers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Offer{}, ErrNotFound
	}
	return o, err
}

// PendingFor returns the rider's newest pending offer for the shipment that has not
// expired at now. ErrNotFound means the rider has no live offer.
func (r *OffersRepo) PendingFor(ctx context.Context, shipmentID, riderID string, now time.Time) (Offer, error) {
	o, err := scanOffer(r.q.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM shipment_offers
        WHERE shipment_id = ? AND rider_id = ? AND status = ? AND expires_at > ?
        ORDER BY created_at DESC LIMIT 1`, shipmentID, riderID, OfferStatusPending, now.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return Offer{}, ErrNotFound
	}
	return o, err
}

// OfferedRiders lists every rider that already received an offer for the shipment.
func (r *OffersRepo) OfferedRiders(ctx context.Context, shipmentID string) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT rider_id FROM shipment_offers WHERE shipment_id = ?`, shipmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Accept marks the rider's pending offer as ACCEPTED, rejects the other offers for the
// same shipment and assigns the shipment to the rider, all in one transaction.
func (r *OffersRepo) Accept(ctx context.Context, offerID, riderID string, now time.Time) (Offer, error) {
	now = now.UTC()
	var accepted Offer
	err := withTx(ctx, r.db, func(q execer) error {
		o, err := scanOffer(q.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM shipment_offers WHERE id = ? FOR UPDATE`, offerID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if o.RiderID != riderID || o.Status != OfferStatusPending || !o.ExpiresAt.After(now) {
			return ErrOfferUnavailable
		}
		if _, err := q.ExecContext(ctx, `UPDATE shipment_offers SET status = ?, updated_at = ? WHERE id = ?`, OfferStatusAccepted, now, o.ID); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, `UPDATE shipment_offers SET status = ?, updated_at = ? WHERE shipment_id = ? AND id <> ? AND status = ?`,
			OfferStatusRejected, now, o.ShipmentID, o.ID, OfferStatusPending); err != nil {
			return err
		}
		if err := assignTx(ctx, q, o.ShipmentID, riderID, now); err != nil {
			if errors.Is(err, ErrStatusConflict) {
				return ErrOfferUnavailable
			}
			return err
		}
		o.Status = OfferStatusAccepted
		o.UpdatedAt = now
		accepted = o
		return nil
	})
	if err != nil {
		return Offer{}, err
	}
	return accepted, nil
}

// ExpireDue flips every pending offer past its deadline to EXPIRED.
func (r *OffersRepo) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `UPDATE shipment_offers SET status = ?, updated_at = ? WHERE status = ? AND expires_at <= ?`,
		OfferStatusExpired, now.UTC(), OfferStatusPending, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOffer(row rowScanner) (Offer, error) {
	var o Offer
	err := row.Scan(&o.ID, &o.ShipmentID, &o.RiderID, &o.Status, &o.EtaSeconds, &o.DistanceM, &o.ExpiresAt, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}
