// Package store layers booking persistence over the remote table store
// with a local snapshot cache for offline reads. The remote store is the
// source of truth whenever it is reachable; the cache is overwritten with
// every successful remote read.
package store

import (
	"context"
	"errors"
	"time"

	"stuga/internal/remote"
)

// Collection names in the remote store and the snapshot cache.
const (
	CollectionBookings        = "bookings"
	CollectionBookingsPending = "bookings_pending"
	CollectionUsers           = "users"
)

// ErrRemoteUnavailable is surfaced to callers as a retryable warning when
// the remote store cannot be reached. For creates it accompanies a locally
// acknowledged booking, not a rollback.
var ErrRemoteUnavailable = remote.ErrUnavailable

// ErrNotFound is returned when a booking id matches nothing.
var ErrNotFound = errors.New("booking not found")

// TableClient is the slice of the remote client the stores need.
type TableClient interface {
	Select(ctx context.Context, table string, params remote.SelectParams, out interface{}) error
	Insert(ctx context.Context, table string, record, out interface{}) error
	Delete(ctx context.Context, table, id string) error
}

// Snapshots is the slice of the cache the stores need.
type Snapshots interface {
	Get(ctx context.Context, collection string) (payload []byte, savedAt time.Time, err error)
	Put(ctx context.Context, collection string, payload []byte) error
}
