// Package export renders the season's bookings as an Excel workbook, one
// sheet per month plus a season summary.
package export

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"stuga/internal/models"
)

// BookingSource lists the current bookings.
type BookingSource interface {
	List(ctx context.Context) ([]models.Booking, bool, error)
}

// Service builds season workbooks from the booking store.
type Service struct {
	bookings BookingSource
	logger   zerolog.Logger
}

func New(bookings BookingSource, logger *zerolog.Logger) *Service {
	return &Service{
		bookings: bookings,
		logger:   logger.With().Str("component", "export").Logger(),
	}
}

var bookingColumns = []string{"Who", "From", "To", "Nights", "Arrival", "Departure", "Guests", "Double booking"}

// SeasonWorkbook renders every booking touching the given year into an
// xlsx workbook and returns the serialized bytes.
func (s *Service) SeasonWorkbook(ctx context.Context, year int) ([]byte, error) {
	bookings, stale, err := s.bookings.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	if stale {
		s.logger.Warn().Int("year", year).Msg("exporting from a stale snapshot")
	}

	season := filterYear(bookings, year)

	f := excelize.NewFile()
	defer f.Close()

	if err := writeSummarySheet(f, year, season); err != nil {
		return nil, err
	}
	for month := time.January; month <= time.December; month++ {
		monthly := filterMonth(season, year, month)
		if len(monthly) == 0 {
			continue
		}
		if err := writeMonthSheet(f, month, monthly); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}

	s.logger.Info().Int("year", year).Int("bookings", len(season)).Msg("season workbook built")
	return buf.Bytes(), nil
}

func writeSummarySheet(f *excelize.File, year int, season []models.Booking) error {
	sheet := fmt.Sprintf("Season %d", year)
	f.SetSheetName("Sheet1", sheet)

	if err := writeHeader(f, sheet, bookingColumns); err != nil {
		return err
	}
	for i, b := range season {
		if err := writeBookingRow(f, sheet, i+2, b); err != nil {
			return err
		}
	}
	return nil
}

func writeMonthSheet(f *excelize.File, month time.Month, bookings []models.Booking) error {
	sheet := month.String()
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}

	if err := writeHeader(f, sheet, bookingColumns); err != nil {
		return err
	}
	for i, b := range bookings {
		if err := writeBookingRow(f, sheet, i+2, b); err != nil {
			return err
		}
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, columns []string) error {
	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, col); err != nil {
			return err
		}
	}

	style, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err == nil {
		startCell, _ := excelize.CoordinatesToCellName(1, 1)
		endCell, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = f.SetCellStyle(sheet, startCell, endCell, style)
	}
	return nil
}

func writeBookingRow(f *excelize.File, sheet string, row int, b models.Booking) error {
	double := ""
	if b.IsDoubleBooking {
		double = "yes"
	}
	values := []interface{}{
		b.Name,
		b.StartDate.Format("2006-01-02"),
		b.EndDate.Format("2006-01-02"),
		b.Range().Days() - 1,
		b.ArrivalTime,
		b.DepartureTime,
		b.Guests,
		double,
	}
	for i, val := range values {
		cell, err := excelize.CoordinatesToCellName(i+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, val); err != nil {
			return err
		}
	}
	return nil
}

// filterYear keeps bookings whose range touches the given year, sorted by
// start date.
func filterYear(bookings []models.Booking, year int) []models.Booking {
	var out []models.Booking
	for _, b := range bookings {
		if b.StartDate.Year() <= year && b.EndDate.Year() >= year {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

// filterMonth keeps bookings overlapping the given month.
func filterMonth(bookings []models.Booking, year int, month time.Month) []models.Booking {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	window := models.DateRange{Start: first, End: last}

	var out []models.Booking
	for _, b := range bookings {
		if b.Range().Overlaps(window) {
			out = append(out, b)
		}
	}
	return out
}
