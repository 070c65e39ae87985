package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/AryanRai/AriesUI-sub001/internal/document"
	"github.com/AryanRai/AriesUI-sub001/internal/pgstore"
	"github.com/AryanRai/AriesUI-sub001/internal/typeid"
)

var (
	ErrNotFound  = errors.New("profile not found")
	ErrForbidden = errors.New("forbidden")
)

// snapshotKeep is how many layout versions are retained per profile.
const snapshotKeep = 20

type Service struct {
	queries *pgstore.Queries
}

func NewService(queries *pgstore.Queries) *Service {
	return &Service{queries: queries}
}

type Profile struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	OwnerID   string `json:"ownerId"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

func (s *Service) Create(ctx context.Context, name, ownerID string) (*Profile, error) {
	profileID := typeid.NewProfileID()

	dbProf, err := s.queries.CreateProfile(ctx, pgstore.CreateProfileParams{
		ID:      profileID,
		Name:    name,
		OwnerID: ownerID,
	})
	if err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	// Seed an empty layout snapshot
	docJSON, err := json.Marshal(document.NewEmptyDocument())
	if err != nil {
		return nil, fmt.Errorf("marshal empty document: %w", err)
	}

	_, err = s.queries.CreateSnapshot(ctx, pgstore.CreateSnapshotParams{
		ID:        typeid.NewSnapshotID(),
		ProfileID: profileID,
		Version:   1,
		Document:  docJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("create initial snapshot: %w", err)
	}

	return dbProfileToProfile(dbProf), nil
}

func (s *Service) Get(ctx context.Context, profileID, userID string) (*Profile, error) {
	dbProf, err := s.getOwned(ctx, profileID, userID)
	if err != nil {
		return nil, err
	}
	return dbProfileToProfile(dbProf), nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Profile, error) {
	dbProfiles, err := s.queries.ListProfilesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	profiles := make([]Profile, len(dbProfiles))
	for i, p := range dbProfiles {
		profiles[i] = *dbProfileToProfile(p)
	}
	return profiles, nil
}

func (s *Service) Rename(ctx context.Context, profileID, userID, name string) error {
	if _, err := s.getOwned(ctx, profileID, userID); err != nil {
		return err
	}
	return s.queries.RenameProfile(ctx, profileID, name)
}

func (s *Service) Delete(ctx context.Context, profileID, userID string) error {
	if _, err := s.getOwned(ctx, profileID, userID); err != nil {
		return err
	}
	return s.queries.DeleteProfile(ctx, profileID)
}

// SaveSnapshot stores a new layout version for the profile and prunes old
// versions past the retention window.
func (s *Service) SaveSnapshot(ctx context.Context, profileID, userID string, doc json.RawMessage) (int32, error) {
	if _, err := s.getOwned(ctx, profileID, userID); err != nil {
		return 0, err
	}
	if !json.Valid(doc) {
		return 0, errors.New("invalid document")
	}

	nextVersion := int32(1)
	current, err := s.queries.GetLatestSnapshot(ctx, profileID)
	if err == nil {
		nextVersion = current.Version + 1
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("get latest snapshot: %w", err)
	}

	snap, err := s.queries.CreateSnapshot(ctx, pgstore.CreateSnapshotParams{
		ID:        typeid.NewSnapshotID(),
		ProfileID: profileID,
		Version:   nextVersion,
		Document:  doc,
	})
	if err != nil {
		return 0, fmt.Errorf("create snapshot: %w", err)
	}

	if err := s.queries.PruneSnapshots(ctx, profileID, snapshotKeep); err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}

	return snap.Version, nil
}

func (s *Service) GetLatestSnapshot(ctx context.Context, profileID, userID string) (json.RawMessage, error) {
	if _, err := s.getOwned(ctx, profileID, userID); err != nil {
		return nil, err
	}

	snap, err := s.queries.GetLatestSnapshot(ctx, profileID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return snap.Document, nil
}

func (s *Service) getOwned(ctx context.Context, profileID, userID string) (pgstore.Profile, error) {
	dbProf, err := s.queries.GetProfile(ctx, profileID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgstore.Profile{}, ErrNotFound
		}
		return pgstore.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	if dbProf.OwnerID != userID {
		return pgstore.Profile{}, ErrForbidden
	}
	return dbProf, nil
}

func dbProfileToProfile(p pgstore.Profile) *Profile {
	return &Profile{
		ID:        p.ID,
		Name:      p.Name,
		OwnerID:   p.OwnerID,
		CreatedAt: p.CreatedAt.Time.Format(document.TimeFormat),
		UpdatedAt: p.UpdatedAt.Time.Format(document.TimeFormat),
	}
}
