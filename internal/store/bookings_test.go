package store

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"stuga/internal/access"
	"stuga/internal/cache"
	"stuga/internal/events"
	"stuga/internal/models"
	"stuga/internal/remote"
)

type mockClient struct {
	mock.Mock
}

func (m *mockClient) Select(ctx context.Context, table string, params remote.SelectParams, out interface{}) error {
	args := m.Called(ctx, table, params, out)
	return args.Error(0)
}

func (m *mockClient) Insert(ctx context.Context, table string, record, out interface{}) error {
	args := m.Called(ctx, table, record, out)
	return args.Error(0)
}

func (m *mockClient) Delete(ctx context.Context, table, id string) error {
	args := m.Called(ctx, table, id)
	return args.Error(0)
}

// selectReturns makes a Select expectation fill the out slice.
func selectReturns(m *mockClient, table string, bookings []models.Booking, err error) *mock.Call {
	return m.On("Select", mock.Anything, table, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			if err != nil {
				return
			}
			ptr := args.Get(3).(*[]models.Booking)
			*ptr = append([]models.Booking(nil), bookings...)
		}).
		Return(err)
}

func day(year int, month time.Month, d int) time.Time {
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}

func newTestCache(t *testing.T) *cache.Store {
	t.Helper()
	logger := zerolog.New(io.Discard)
	store, err := cache.Open(filepath.Join(t.TempDir(), "cache.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newTestStore(t *testing.T, client TableClient) (*BookingStore, *events.Bus) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	bus := events.NewBus()
	return NewBookingStore(client, newTestCache(t), bus, nil, &logger), bus
}

func TestBookingStore_List(t *testing.T) {
	ctx := context.Background()

	t.Run("remote success overwrites cache", func(t *testing.T) {
		client := new(mockClient)
		store, _ := newTestStore(t, client)

		remoteBookings := []models.Booking{
			{ID: "b1", Name: "Anna", StartDate: day(2024, 7, 1), EndDate: day(2024, 7, 10)},
			{ID: "b2", Name: "Erik", StartDate: day(2024, 7, 15), EndDate: day(2024, 7, 20)},
		}
		selectReturns(client, CollectionBookings, remoteBookings, nil).Twice()

		got, stale, err := store.List(ctx)
		require.NoError(t, err)
		assert.False(t, stale)
		assert.Len(t, got, 2)

		// Idempotent: a second list with no writes returns the same set.
		again, _, err := store.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, got, again)
		client.AssertExpectations(t)
	})

	t.Run("remote failure falls back to cached snapshot", func(t *testing.T) {
		client := new(mockClient)
		store, _ := newTestStore(t, client)

		remoteBookings := []models.Booking{
			{ID: "b1", Name: "Anna", StartDate: day(2024, 7, 1), EndDate: day(2024, 7, 10)},
		}
		selectReturns(client, CollectionBookings, remoteBookings, nil).Once()
		_, _, err := store.List(ctx)
		require.NoError(t, err)

		selectReturns(client, CollectionBookings, nil, remote.ErrUnavailable).Once()
		got, stale, err := store.List(ctx)
		require.NoError(t, err)
		assert.True(t, stale)
		require.Len(t, got, 1)
		assert.Equal(t, "b1", got[0].ID)
	})

	t.Run("sorted by start date ascending", func(t *testing.T) {
		client := new(mockClient)
		store, _ := newTestStore(t, client)

		// Remote ordering is not trusted.
		selectReturns(client, CollectionBookings, []models.Booking{
			{ID: "late", StartDate: day(2024, 8, 1), EndDate: day(2024, 8, 2)},
			{ID: "early", StartDate: day(2024, 7, 1), EndDate: day(2024, 7, 2)},
		}, nil).Once()

		got, _, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "early", got[0].ID)
		assert.Equal(t, "late", got[1].ID)
	})
}

func TestBookingStore_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("assigns uuid and publishes event", func(t *testing.T) {
		client := new(mockClient)
		store, bus := newTestStore(t, client)

		var got []events.Event
		bus.Subscribe(CollectionBookings, func(ev events.Event) { got = append(got, ev) })

		client.On("Insert", mock.Anything, CollectionBookings, mock.Anything, mock.Anything).Return(nil).Once()

		created, err := store.Create(ctx, models.Booking{
			ID:        "client-supplied-ignored",
			Name:      "Anna",
			StartDate: day(2024, 8, 1),
			EndDate:   day(2024, 8, 1),
			Guests:    2,
			UserID:    "anna",
			UserColor: "#aa3355",
		})
		require.NoError(t, err)

		assert.NotEqual(t, "client-supplied-ignored", created.ID)
		assert.Len(t, created.ID, 36) // UUIDv4
		assert.False(t, created.CreatedAt.IsZero())
		assert.False(t, created.IsDoubleBooking)
		assert.False(t, created.Pending)

		require.Len(t, got, 1)
		assert.Equal(t, events.TypeCreated, got[0].Type)
	})

	t.Run("round-trips through list", func(t *testing.T) {
		client := new(mockClient)
		store, _ := newTestStore(t, client)

		var inserted models.Booking
		client.On("Insert", mock.Anything, CollectionBookings, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { inserted = args.Get(2).(models.Booking) }).
			Return(nil).Once()

		created, err := store.Create(ctx, models.Booking{
			Name:        "Anna",
			StartDate:   day(2024, 7, 1),
			EndDate:     day(2024, 7, 10),
			ArrivalTime: "15:00",
			Guests:      4,
			UserID:      "anna",
		})
		require.NoError(t, err)

		// Remote now returns what was inserted.
		selectReturns(client, CollectionBookings, []models.Booking{inserted}, nil).Once()
		listed, _, err := store.List(ctx)
		require.NoError(t, err)
		require.Len(t, listed, 1)
		assert.Equal(t, *created, listed[0])
	})

	t.Run("rejects inverted range", func(t *testing.T) {
		client := new(mockClient)
		store, _ := newTestStore(t, client)

		_, err := store.Create(ctx, models.Booking{
			Name:      "Anna",
			StartDate: day(2024, 7, 10),
			EndDate:   day(2024, 7, 1),
		})
		assert.Error(t, err)
		client.AssertNotCalled(t, "Insert")
	})

	t.Run("local-first acknowledge on remote failure", func(t *testing.T) {
		client := new(mockClient)
		store, _ := newTestStore(t, client)

		client.On("Insert", mock.Anything, CollectionBookings, mock.Anything, mock.Anything).
			Return(remote.ErrUnavailable).Once()

		created, err := store.Create(ctx, models.Booking{
			Name:      "Erik",
			StartDate: day(2024, 9, 1),
			EndDate:   day(2024, 9, 3),
			UserID:    "erik",
		})

		// Soft success: booking returned alongside a retryable warning.
		require.NotNil(t, created)
		assert.ErrorIs(t, err, ErrRemoteUnavailable)
		assert.True(t, created.Pending)

		// The cache reflects the attempted booking while remote is down.
		selectReturns(client, CollectionBookings, nil, remote.ErrUnavailable).Once()
		listed, stale, err := store.List(ctx)
		require.NoError(t, err)
		assert.True(t, stale)
		require.Len(t, listed, 1)
		assert.Equal(t, created.ID, listed[0].ID)

		// Remote recovers and now holds the booking: the pending copy is
		// dropped and the remote row wins.
		acknowledged := *created
		acknowledged.Pending = false
		selectReturns(client, CollectionBookings, []models.Booking{acknowledged}, nil).Once()
		listed, stale, err = store.List(ctx)
		require.NoError(t, err)
		assert.False(t, stale)
		require.Len(t, listed, 1)
		assert.False(t, listed[0].Pending)
	})
}

func TestBookingStore_Delete(t *testing.T) {
	ctx := context.Background()
	anna := &models.User{ID: "anna", Name: "Anna"}

	seed := func(t *testing.T, client *mockClient) (*BookingStore, *events.Bus, models.Booking) {
		store, bus := newTestStore(t, client)
		booking := models.Booking{
			ID: "b1", Name: "Anna", UserID: "anna",
			StartDate: day(2024, 7, 1), EndDate: day(2024, 7, 10),
		}
		selectReturns(client, CollectionBookings, []models.Booking{booking}, nil)
		return store, bus, booking
	}

	t.Run("owner can delete", func(t *testing.T) {
		client := new(mockClient)
		store, bus, booking := seed(t, client)

		var got []events.Event
		bus.Subscribe(CollectionBookings, func(ev events.Event) { got = append(got, ev) })

		client.On("Delete", mock.Anything, CollectionBookings, booking.ID).Return(nil).Once()
		require.NoError(t, store.Delete(ctx, booking.ID, anna))

		require.Len(t, got, 1)
		assert.Equal(t, events.TypeDeleted, got[0].Type)
	})

	t.Run("manager can delete someone else's booking", func(t *testing.T) {
		client := new(mockClient)
		store, _, booking := seed(t, client)

		client.On("Delete", mock.Anything, CollectionBookings, booking.ID).Return(nil).Once()
		admin := &models.User{ID: "mamma", IsAdmin: true}
		assert.NoError(t, store.Delete(ctx, booking.ID, admin))
	})

	t.Run("non-owner is denied and nothing is removed", func(t *testing.T) {
		client := new(mockClient)
		store, _, booking := seed(t, client)

		erik := &models.User{ID: "erik"}
		err := store.Delete(ctx, booking.ID, erik)
		assert.True(t, access.IsPermissionDenied(err))
		client.AssertNotCalled(t, "Delete")

		// Booking still present, both remote-backed and cached.
		listed, _, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, listed, 1)
	})

	t.Run("unknown id", func(t *testing.T) {
		client := new(mockClient)
		store, _, _ := seed(t, client)

		err := store.Delete(ctx, "nope", anna)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestBookingStore_Refresh(t *testing.T) {
	ctx := context.Background()
	client := new(mockClient)
	store, bus := newTestStore(t, client)

	refreshed := 0
	bus.Subscribe(CollectionBookings, func(ev events.Event) {
		if ev.Type == events.TypeRefreshed {
			refreshed++
		}
	})

	booking := models.Booking{ID: "b1", StartDate: day(2024, 7, 1), EndDate: day(2024, 7, 2)}

	// First refresh sees new data and notifies.
	selectReturns(client, CollectionBookings, []models.Booking{booking}, nil).Once()
	store.Refresh(ctx, "poll")
	assert.Equal(t, 1, refreshed)

	// Second refresh sees the same data: no notification.
	selectReturns(client, CollectionBookings, []models.Booking{booking}, nil).Once()
	store.Refresh(ctx, "feed")
	assert.Equal(t, 1, refreshed)
}

func TestBookingStore_SubscribeUnsubscribe(t *testing.T) {
	client := new(mockClient)
	store, bus := newTestStore(t, client)

	calls := 0
	unsubscribe := store.Subscribe(func(events.Event) { calls++ })

	bus.Publish(events.NewEvent(events.TypeCreated, CollectionBookings, nil, nil))
	unsubscribe()
	bus.Publish(events.NewEvent(events.TypeCreated, CollectionBookings, nil, nil))

	assert.Equal(t, 1, calls)
}
