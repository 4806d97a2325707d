package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"stuga/internal/access"
	"stuga/internal/cache"
	"stuga/internal/events"
	"stuga/internal/metrics"
	"stuga/internal/models"
	"stuga/internal/remote"
)

// BookingStore persists bookings remote-first with a read-through snapshot
// cache. Create follows the local-first acknowledge policy: a booking that
// cannot reach the remote store is kept as a pending local copy and the
// failure is surfaced as a retryable warning.
//
// Known race, by design of the system: two clients can create overlapping
// bookings concurrently. Nothing here prevents that; each client detects
// the overlap on its own next refresh.
type BookingStore struct {
	client TableClient
	cache  Snapshots
	bus    *events.Bus
	feed   *Feed // nil when Redis is not configured
	logger zerolog.Logger

	mu sync.Mutex // serializes snapshot rewrites
}

func NewBookingStore(client TableClient, snapshots Snapshots, bus *events.Bus, feed *Feed, logger *zerolog.Logger) *BookingStore {
	return &BookingStore{
		client: client,
		cache:  snapshots,
		bus:    bus,
		feed:   feed,
		logger: logger.With().Str("component", "booking_store").Logger(),
	}
}

// List returns all bookings sorted by start date ascending. The remote
// store is tried first; on failure the last cached snapshot is returned
// with stale=true. Pending local writes are merged into either result and
// dropped once the remote copy is observed.
func (s *BookingStore) List(ctx context.Context) (bookings []models.Booking, stale bool, err error) {
	var fetched []models.Booking
	err = s.client.Select(ctx, CollectionBookings, remote.SelectParams{
		OrderBy:   "start_date",
		Ascending: true,
	}, &fetched)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		if !errors.Is(err, remote.ErrUnavailable) {
			return nil, false, err
		}
		metrics.IncRemoteFailure("list")
		metrics.IncCacheFallback()
		s.logger.Warn().Err(err).Msg("remote list failed, serving cached snapshot")

		cached, readErr := s.readSnapshot(ctx, CollectionBookings)
		if readErr != nil && !errors.Is(readErr, cache.ErrNoSnapshot) {
			return nil, false, readErr
		}
		merged := mergeBookings(cached, s.readPending(ctx))
		return merged, true, nil
	}

	pending := s.dropAcknowledged(ctx, fetched)
	merged := mergeBookings(fetched, pending)

	if err := s.writeSnapshot(ctx, CollectionBookings, merged); err != nil {
		s.logger.Error().Err(err).Msg("failed to overwrite bookings snapshot")
	}
	return merged, false, nil
}

// Create persists the booking. The ID and creation timestamp are assigned
// here; client-supplied identifiers are ignored so every booking carries a
// UUIDv4. Dates are normalized to calendar days before storage.
//
// On remote failure the booking is acknowledged locally (Pending=true) and
// ErrRemoteUnavailable is returned alongside it; the caller decides whether
// to prompt for a retry.
func (s *BookingStore) Create(ctx context.Context, booking models.Booking) (*models.Booking, error) {
	booking.ID = uuid.NewString()
	booking.StartDate = models.NormalizeDate(booking.StartDate)
	booking.EndDate = models.NormalizeDate(booking.EndDate)
	booking.CreatedAt = time.Now().UTC()
	booking.Pending = false

	if !booking.Range().IsValid() {
		return nil, fmt.Errorf("invalid date range: start %s after end %s",
			booking.StartDate.Format("2006-01-02"), booking.EndDate.Format("2006-01-02"))
	}

	var stored []models.Booking
	err := s.client.Insert(ctx, CollectionBookings, booking, &stored)
	if err != nil {
		if !errors.Is(err, remote.ErrUnavailable) {
			return nil, err
		}
		metrics.IncRemoteFailure("create")
		booking.Pending = true

		s.mu.Lock()
		s.appendPending(ctx, booking)
		s.appendToSnapshot(ctx, booking)
		s.mu.Unlock()

		s.logger.Warn().Str("id", booking.ID).Msg("remote create failed, booking kept locally")
		metrics.IncBookingCreated(booking.IsDoubleBooking)
		s.publish(events.NewEvent(events.TypeCreated, CollectionBookings, booking, nil))
		return &booking, fmt.Errorf("booking saved locally: %w", ErrRemoteUnavailable)
	}

	if len(stored) > 0 {
		booking = stored[0]
	}

	s.mu.Lock()
	s.appendToSnapshot(ctx, booking)
	s.mu.Unlock()

	metrics.IncBookingCreated(booking.IsDoubleBooking)
	s.logger.Info().
		Str("id", booking.ID).
		Str("user_id", booking.UserID).
		Str("start", booking.StartDate.Format("2006-01-02")).
		Str("end", booking.EndDate.Format("2006-01-02")).
		Bool("double_booking", booking.IsDoubleBooking).
		Msg("booking created")

	s.publish(events.NewEvent(events.TypeCreated, CollectionBookings, booking, nil))
	return &booking, nil
}

// Get returns the booking with the given id, consulting the remote store
// first and the cached snapshot on failure.
func (s *BookingStore) Get(ctx context.Context, id string) (*models.Booking, error) {
	bookings, _, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range bookings {
		if bookings[i].ID == id {
			return &bookings[i], nil
		}
	}
	return nil, ErrNotFound
}

// Delete removes a booking. Permitted only for the owner or a user with an
// elevated role; otherwise a PermissionDeniedError is returned and neither
// the remote store nor the cache is touched.
func (s *BookingStore) Delete(ctx context.Context, id string, requester *models.User) error {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := access.CheckDeleteBooking(requester, booking); err != nil {
		metrics.IncPermissionDenied()
		return err
	}

	if booking.Pending {
		// Never reached the remote store; drop the local copies only.
		s.mu.Lock()
		s.removePending(ctx, id)
		s.removeFromSnapshot(ctx, id)
		s.mu.Unlock()
	} else {
		if err := s.client.Delete(ctx, CollectionBookings, id); err != nil {
			if errors.Is(err, remote.ErrUnavailable) {
				metrics.IncRemoteFailure("delete")
			}
			return err
		}
		s.mu.Lock()
		s.removeFromSnapshot(ctx, id)
		s.mu.Unlock()
	}

	metrics.IncBookingDeleted()
	s.logger.Info().Str("id", id).Str("requested_by", requester.ID).Msg("booking deleted")
	s.publish(events.NewEvent(events.TypeDeleted, CollectionBookings, nil, booking))
	return nil
}

// Subscribe registers fn for booking change events and returns an
// unsubscribe function. Delivery is at-least-once; subscribers are
// expected to re-fetch via List rather than trust event payloads.
func (s *BookingStore) Subscribe(fn events.Handler) (unsubscribe func()) {
	return s.bus.Subscribe(CollectionBookings, fn)
}

// Refresh reconciles the cached snapshot against the remote store and
// publishes a refreshed event when the data changed. It is the single
// reconciliation entry point: the poller, the Redis feed and any external
// trigger all land here.
func (s *BookingStore) Refresh(ctx context.Context, trigger string) {
	metrics.IncRefresh(trigger)

	s.mu.Lock()
	before, _ := s.readSnapshot(ctx, CollectionBookings)
	s.mu.Unlock()

	after, stale, err := s.List(ctx)
	if err != nil || stale {
		return
	}
	if bookingsEqual(before, after) {
		return
	}

	s.logger.Debug().Str("trigger", trigger).Int("bookings", len(after)).Msg("snapshot reconciled")
	s.bus.Publish(events.NewEvent(events.TypeRefreshed, CollectionBookings, nil, nil))
}

// StartPolling reconciles every interval until ctx is done. Together with
// the Redis feed this is what converges divergent caches; convergence is
// eventual, not immediate.
func (s *BookingStore) StartPolling(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Refresh(ctx, "poll")
		}
	}
}

// publish fans an event out in-process and, when configured, across
// instances through the Redis feed.
func (s *BookingStore) publish(ev events.Event) {
	s.bus.Publish(ev)
	if s.feed != nil {
		s.feed.Publish(context.Background(), ev)
	}
}

func (s *BookingStore) readSnapshot(ctx context.Context, collection string) ([]models.Booking, error) {
	payload, _, err := s.cache.Get(ctx, collection)
	if err != nil {
		return nil, err
	}
	var bookings []models.Booking
	if err := json.Unmarshal(payload, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (s *BookingStore) writeSnapshot(ctx context.Context, collection string, bookings []models.Booking) error {
	if bookings == nil {
		bookings = []models.Booking{}
	}
	payload, err := json.Marshal(bookings)
	if err != nil {
		return err
	}
	return s.cache.Put(ctx, collection, payload)
}

func (s *BookingStore) readPending(ctx context.Context) []models.Booking {
	pending, err := s.readSnapshot(ctx, CollectionBookingsPending)
	if err != nil && !errors.Is(err, cache.ErrNoSnapshot) {
		s.logger.Error().Err(err).Msg("failed to read pending bookings")
	}
	return pending
}

func (s *BookingStore) appendPending(ctx context.Context, booking models.Booking) {
	pending := append(s.readPending(ctx), booking)
	if err := s.writeSnapshot(ctx, CollectionBookingsPending, pending); err != nil {
		s.logger.Error().Err(err).Msg("failed to persist pending booking")
	}
}

func (s *BookingStore) removePending(ctx context.Context, id string) {
	pending := s.readPending(ctx)
	kept := pending[:0]
	for _, b := range pending {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	if err := s.writeSnapshot(ctx, CollectionBookingsPending, kept); err != nil {
		s.logger.Error().Err(err).Msg("failed to rewrite pending bookings")
	}
}

// dropAcknowledged removes pending entries whose IDs now appear in the
// remote result and returns the ones still waiting.
func (s *BookingStore) dropAcknowledged(ctx context.Context, fetched []models.Booking) []models.Booking {
	pending := s.readPending(ctx)
	if len(pending) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(fetched))
	for _, b := range fetched {
		seen[b.ID] = true
	}

	kept := pending[:0]
	for _, b := range pending {
		if !seen[b.ID] {
			kept = append(kept, b)
		}
	}
	if len(kept) != len(pending) {
		if err := s.writeSnapshot(ctx, CollectionBookingsPending, kept); err != nil {
			s.logger.Error().Err(err).Msg("failed to rewrite pending bookings")
		}
	}
	return kept
}

func (s *BookingStore) appendToSnapshot(ctx context.Context, booking models.Booking) {
	snapshot, err := s.readSnapshot(ctx, CollectionBookings)
	if err != nil && !errors.Is(err, cache.ErrNoSnapshot) {
		s.logger.Error().Err(err).Msg("failed to read bookings snapshot")
		return
	}
	snapshot = mergeBookings(snapshot, []models.Booking{booking})
	if err := s.writeSnapshot(ctx, CollectionBookings, snapshot); err != nil {
		s.logger.Error().Err(err).Msg("failed to update bookings snapshot")
	}
}

func (s *BookingStore) removeFromSnapshot(ctx context.Context, id string) {
	snapshot, err := s.readSnapshot(ctx, CollectionBookings)
	if err != nil {
		return
	}
	kept := snapshot[:0]
	for _, b := range snapshot {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	if err := s.writeSnapshot(ctx, CollectionBookings, kept); err != nil {
		s.logger.Error().Err(err).Msg("failed to update bookings snapshot")
	}
}

// mergeBookings combines two booking lists, deduplicating by ID (first
// occurrence wins) and sorting by start date ascending.
func mergeBookings(a, b []models.Booking) []models.Booking {
	out := make([]models.Booking, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, list := range [][]models.Booking{a, b} {
		for _, booking := range list {
			if seen[booking.ID] {
				continue
			}
			seen[booking.ID] = true
			out = append(out, booking)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out
}

func bookingsEqual(a, b []models.Booking) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Pending != b[i].Pending {
			return false
		}
	}
	return true
}
