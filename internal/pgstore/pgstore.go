// Package pgstore holds the hand-written pgx queries for users, dashboard
// profiles and layout snapshots.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool connects to Postgres and verifies the connection.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

type Queries struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

type User struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
	CreatedAt    pgtype.Timestamptz
}

type Profile struct {
	ID        string
	Name      string
	OwnerID   string
	CreatedAt pgtype.Timestamptz
	UpdatedAt pgtype.Timestamptz
}

type Snapshot struct {
	ID        string
	ProfileID string
	Version   int32
	Document  json.RawMessage
	CreatedAt pgtype.Timestamptz
}

// --- Users ---

type CreateUserParams struct {
	ID           string
	Email        string
	PasswordHash string
	DisplayName  string
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, password_hash, display_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password_hash, display_name, created_at`,
		arg.ID, arg.Email, arg.PasswordHash, arg.DisplayName)

	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt)
	return u, err
}

func (q *Queries) GetUser(ctx context.Context, id string) (User, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, display_name, created_at
		FROM users WHERE id = $1`, id)

	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt)
	return u, err
}

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, display_name, created_at
		FROM users WHERE email = $1`, email)

	var u User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.DisplayName, &u.CreatedAt)
	return u, err
}

// --- Profiles ---

type CreateProfileParams struct {
	ID      string
	Name    string
	OwnerID string
}

func (q *Queries) CreateProfile(ctx context.Context, arg CreateProfileParams) (Profile, error) {
	row := q.pool.QueryRow(ctx, `
		INSERT INTO profiles (id, name, owner_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, owner_id, created_at, updated_at`,
		arg.ID, arg.Name, arg.OwnerID)

	var p Profile
	err := row.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (q *Queries) GetProfile(ctx context.Context, id string) (Profile, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT id, name, owner_id, created_at, updated_at
		FROM profiles WHERE id = $1`, id)

	var p Profile
	err := row.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (q *Queries) ListProfilesForUser(ctx context.Context, ownerID string) ([]Profile, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, name, owner_id, created_at, updated_at
		FROM profiles WHERE owner_id = $1
		ORDER BY updated_at DESC`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.OwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

func (q *Queries) RenameProfile(ctx context.Context, id, name string) error {
	_, err := q.pool.Exec(ctx, `
		UPDATE profiles SET name = $2, updated_at = now() WHERE id = $1`, id, name)
	return err
}

func (q *Queries) DeleteProfile(ctx context.Context, id string) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	return err
}

// --- Snapshots ---

type CreateSnapshotParams struct {
	ID        string
	ProfileID string
	Version   int32
	Document  json.RawMessage
}

func (q *Queries) CreateSnapshot(ctx context.Context, arg CreateSnapshotParams) (Snapshot, error) {
	row := q.pool.QueryRow(ctx, `
		INSERT INTO snapshots (id, profile_id, version, document)
		VALUES ($1, $2, $3, $4)
		RETURNING id, profile_id, version, document, created_at`,
		arg.ID, arg.ProfileID, arg.Version, arg.Document)

	var s Snapshot
	err := row.Scan(&s.ID, &s.ProfileID, &s.Version, &s.Document, &s.CreatedAt)
	return s, err
}

func (q *Queries) GetLatestSnapshot(ctx context.Context, profileID string) (Snapshot, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT id, profile_id, version, document, created_at
		FROM snapshots WHERE profile_id = $1
		ORDER BY version DESC LIMIT 1`, profileID)

	var s Snapshot
	err := row.Scan(&s.ID, &s.ProfileID, &s.Version, &s.Document, &s.CreatedAt)
	return s, err
}

func (q *Queries) ListSnapshots(ctx context.Context, profileID string, limit int32) ([]Snapshot, error) {
	rows, err := q.pool.Query(ctx, `
		SELECT id, profile_id, version, document, created_at
		FROM snapshots WHERE profile_id = $1
		ORDER BY version DESC LIMIT $2`, profileID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.ProfileID, &s.Version, &s.Document, &s.CreatedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, s)
	}
	return snaps, rows.Err()
}

// PruneSnapshots deletes all but the newest keep snapshots for a profile.
func (q *Queries) PruneSnapshots(ctx context.Context, profileID string, keep int32) error {
	_, err := q.pool.Exec(ctx, `
		DELETE FROM snapshots
		WHERE profile_id = $1 AND id NOT IN (
			SELECT id FROM snapshots WHERE profile_id = $1
			ORDER BY version DESC LIMIT $2
		)`, profileID, keep)
	return err
}
