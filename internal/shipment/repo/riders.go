package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"riderBack/internal/storage"
)

// Rider is a courier account.
type Rider struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Role         string
	FirstName    sql.NullString
	LastName     sql.NullString
	UserName     sql.NullString
	AvatarURL    sql.NullString
	FCMToken     sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RidersRepo provides access to rider accounts.
type RidersRepo struct {
	q boundDB
}

// NewRidersRepo constructs a RidersRepo.
func NewRidersRepo(db *storage.DB) *RidersRepo {
	return &RidersRepo{q: boundDB{db: db}}
}

// Profile holds the rider-editable account fields. Empty strings clear the optional ones.
type Profile struct {
	Name      string
	FirstName string
	LastName  string
	UserName  string
	Phone     string
	AvatarURL string
}

const riderColumns = `id, name, email, phone, password_hash, role, first_name, last_name, user_name, avatar_url, fcm_token, created_at, updated_at`

// Get retrieves a rider by identifier.
func (r *RidersRepo) Get(ctx context.Context, id string) (Rider, error) {
	return r.one(ctx, `SELECT `+riderColumns+` FROM riders WHERE id = ?`, id)
}

// GetByLogin retrieves a rider by email (case-insensitive) or phone.
func (r *RidersRepo) GetByLogin(ctx context.Context, login string) (Rider, error) {
	login = strings.TrimSpace(login)
	if strings.Contains(login, "@") {
		return r.one(ctx, `SELECT `+riderColumns+` FROM riders WHERE LOWER(email) = ?`, strings.ToLower(login))
	}
	return r.one(ctx, `SELECT `+riderColumns+` FROM riders WHERE phone = ?`, login)
}

// UpdatePassword stores a new bcrypt hash.
func (r *RidersRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	return r.exec(ctx, `UPDATE riders SET password_hash = ?, updated_at = ? WHERE id = ?`, hash, time.Now().UTC(), id)
}

// UpdateProfile overwrites the editable profile fields.
func (r *RidersRepo) UpdateProfile(ctx context.Context, id string, p Profile) error {
	return r.exec(ctx, `UPDATE riders SET name = ?, first_name = ?, last_name = ?, user_name = ?, phone = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
		p.Name, nullOrString(nullIfEmpty(p.FirstName)), nullOrString(nullIfEmpty(p.LastName)), nullOrString(nullIfEmpty(p.UserName)),
		p.Phone, nullOrString(nullIfEmpty(p.AvatarURL)), time.Now().UTC(), id)
}

// UpdateFCMToken stores the device push token. An empty token clears it.
func (r *RidersRepo) UpdateFCMToken(ctx context.Context, id, token string) error {
	return r.exec(ctx, `UPDATE riders SET fcm_token = ?, updated_at = ? WHERE id = ?`, nullOrString(nullIfEmpty(token)), time.Now().UTC(), id)
}

// UpdateAvatar stores the uploaded avatar URL.
func (r *RidersRepo) UpdateAvatar(ctx context.Context, id, url string) error {
	return r.exec(ctx, `UPDATE riders SET avatar_url = ?, updated_at = ? WHERE id = ?`, nullOrString(nullIfEmpty(url)), time.Now().UTC(), id)
}

func (r *RidersRepo) one(ctx context.Context, query string, args ...any) (Rider, error) {
	var rd Rider
	err := r.q.QueryRowContext(ctx, query, args...).Scan(&rd.ID, &rd.Name, &rd.Email, &rd.Phone, &rd.PasswordHash, &rd.Role,
		&rd.FirstName, &rd.LastName, &rd.UserName, &rd.AvatarURL, &rd.FCMToken, &rd.CreatedAt, &rd.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Rider{}, ErrNotFound
	}
	if err != nil {
		return Rider{}, err
	}
	return rd, nil
}

func (r *RidersRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.q.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
