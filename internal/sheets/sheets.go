// Package sheets mirrors the booking calendar into a shared Google
// spreadsheet for relatives who prefer reading it there.
package sheets

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"stuga/internal/events"
	"stuga/internal/models"
)

const calendarSheet = "Calendar"

// BookingSource lists the current bookings.
type BookingSource interface {
	List(ctx context.Context) ([]models.Booking, bool, error)
}

// Subscriber registers for change events.
type Subscriber interface {
	Subscribe(fn events.Handler) func()
}

// Mirror keeps the spreadsheet in step with the booking store. The sheet is
// rewritten wholesale on every sync; row-level edits are not worth the
// bookkeeping at family scale.
type Mirror struct {
	service       *sheetsapi.Service
	spreadsheetID string
	bookings      BookingSource
	logger        zerolog.Logger
	dirty         chan struct{}
}

// New authenticates with a service-account credentials file and returns a
// mirror ready to Run.
func New(ctx context.Context, credentialsFile, spreadsheetID string, bookings BookingSource, logger *zerolog.Logger) (*Mirror, error) {
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	config, err := google.JWTConfigFromJSON(credentialsJSON, sheetsapi.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	srv, err := sheetsapi.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Mirror{
		service:       srv,
		spreadsheetID: spreadsheetID,
		bookings:      bookings,
		logger:        logger.With().Str("component", "sheets").Logger(),
		dirty:         make(chan struct{}, 1),
	}, nil
}

// TestConnection reads one cell to verify the account can see the sheet.
func (m *Mirror) TestConnection() error {
	_, err := m.service.Spreadsheets.Values.Get(m.spreadsheetID, calendarSheet+"!A1").Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

// Run subscribes to booking changes and syncs until ctx is done. Bursts of
// changes are coalesced into one rewrite.
func (m *Mirror) Run(ctx context.Context, store Subscriber) {
	unsubscribe := store.Subscribe(func(events.Event) {
		select {
		case m.dirty <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	m.logger.Info().Str("spreadsheet_id", m.spreadsheetID).Msg("sheets mirror started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.dirty:
			// Let a burst of events settle before rewriting.
			time.Sleep(2 * time.Second)
			if err := m.Sync(ctx); err != nil {
				m.logger.Error().Err(err).Msg("calendar sync failed")
			}
		}
	}
}

// Sync rewrites the Calendar sheet from the current booking list.
func (m *Mirror) Sync(ctx context.Context) error {
	bookings, stale, err := m.bookings.List(ctx)
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	if stale {
		m.logger.Warn().Msg("syncing calendar from a stale snapshot")
	}

	values := calendarValues(bookings)

	clearRange := calendarSheet + "!A1:H1000"
	if _, err := m.service.Spreadsheets.Values.Clear(m.spreadsheetID, clearRange, &sheetsapi.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear calendar sheet: %w", err)
	}

	writeRange := fmt.Sprintf("%s!A1:H%d", calendarSheet, len(values))
	_, err = m.service.Spreadsheets.Values.Update(m.spreadsheetID, writeRange, &sheetsapi.ValueRange{Values: values}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update calendar sheet: %w", err)
	}

	m.logger.Info().Int("bookings", len(bookings)).Msg("calendar sheet updated")
	return nil
}

func calendarValues(bookings []models.Booking) [][]interface{} {
	values := [][]interface{}{
		{"Who", "From", "To", "Arrival", "Departure", "Guests", "Double booking", "Created"},
	}
	for _, b := range bookings {
		double := ""
		if b.IsDoubleBooking {
			double = "yes"
		}
		values = append(values, []interface{}{
			b.Name,
			b.StartDate.Format("2006-01-02"),
			b.EndDate.Format("2006-01-02"),
			b.ArrivalTime,
			b.DepartureTime,
			b.Guests,
			double,
			b.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
	return values
}
