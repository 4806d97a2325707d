package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"stuga/internal/cache"
	"stuga/internal/metrics"
	"stuga/internal/models"
	"stuga/internal/remote"
)

// UserStore reads the family member list, remote-first with the same
// snapshot fallback as bookings. Members change rarely; the cache covers
// most outages entirely.
type UserStore struct {
	client TableClient
	cache  Snapshots
	logger zerolog.Logger
}

func NewUserStore(client TableClient, snapshots Snapshots, logger *zerolog.Logger) *UserStore {
	return &UserStore{
		client: client,
		cache:  snapshots,
		logger: logger.With().Str("component", "user_store").Logger(),
	}
}

// List returns all family members sorted by name.
func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.client.Select(ctx, CollectionUsers, remote.SelectParams{
		OrderBy:   "name",
		Ascending: true,
	}, &users)
	if err != nil {
		if !errors.Is(err, remote.ErrUnavailable) {
			return nil, err
		}
		metrics.IncRemoteFailure("list_users")
		metrics.IncCacheFallback()
		s.logger.Warn().Err(err).Msg("remote user list failed, serving cached snapshot")
		return s.readSnapshot(ctx)
	}

	payload, marshalErr := json.Marshal(users)
	if marshalErr == nil {
		if putErr := s.cache.Put(ctx, CollectionUsers, payload); putErr != nil {
			s.logger.Error().Err(putErr).Msg("failed to overwrite users snapshot")
		}
	}
	return users, nil
}

// Get returns one family member by id.
func (s *UserStore) Get(ctx context.Context, id string) (*models.User, error) {
	users, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].ID == id {
			return &users[i], nil
		}
	}
	return nil, fmt.Errorf("user %s not found", id)
}

func (s *UserStore) readSnapshot(ctx context.Context) ([]models.User, error) {
	payload, _, err := s.cache.Get(ctx, CollectionUsers)
	if errors.Is(err, cache.ErrNoSnapshot) {
		return nil, ErrRemoteUnavailable
	}
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := json.Unmarshal(payload, &users); err != nil {
		return nil, err
	}
	return users, nil
}
