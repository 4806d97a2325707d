package notify

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"stuga/internal/models"
)

// BookingSource lists the current bookings. The scheduler tolerates stale
// data: a reminder built from yesterday's snapshot is better than none.
type BookingSource interface {
	List(ctx context.Context) ([]models.Booking, bool, error)
}

// SchedulerConfig controls when the daily arrival digest goes out.
type SchedulerConfig struct {
	Timezone      string
	DailyHour     int // 0-23, local to Timezone
	CheckInterval time.Duration
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Timezone:      "Europe/Stockholm",
		DailyHour:     18,
		CheckInterval: 1 * time.Minute,
	}
}

// Scheduler posts a digest of tomorrow's arrivals to the family chat once
// per day.
type Scheduler struct {
	config   SchedulerConfig
	bookings BookingSource
	notifier Notifier
	location *time.Location
	logger   zerolog.Logger

	mu         sync.Mutex
	lastRunDay string // YYYY-MM-DD of the last completed run
}

func NewScheduler(config SchedulerConfig, bookings BookingSource, notifier Notifier, logger *zerolog.Logger) (*Scheduler, error) {
	if config.CheckInterval <= 0 {
		config.CheckInterval = 1 * time.Minute
	}
	loc, err := time.LoadLocation(config.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", config.Timezone, err)
	}
	return &Scheduler{
		config:   config,
		bookings: bookings,
		notifier: notifier,
		location: loc,
		logger:   logger.With().Str("component", "reminder_scheduler").Logger(),
	}, nil
}

// Start runs the check loop until ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().
		Str("timezone", s.config.Timezone).
		Int("hour", s.config.DailyHour).
		Msg("reminder scheduler started")

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("reminder scheduler stopped")
			return
		case now := <-ticker.C:
			if s.shouldRun(now) {
				if err := s.RunOnce(ctx, now); err != nil {
					s.logger.Error().Err(err).Msg("daily reminder run failed")
				}
			}
		}
	}
}

// shouldRun reports whether the daily digest is due: past the configured
// hour, and not yet sent today.
func (s *Scheduler) shouldRun(now time.Time) bool {
	local := now.In(s.location)
	if local.Hour() < s.config.DailyHour {
		return false
	}
	today := local.Format("2006-01-02")

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRunDay != today
}

// RunOnce builds and sends the digest for arrivals on the day after now.
// A day with no arrivals sends nothing but still counts as a completed run.
func (s *Scheduler) RunOnce(ctx context.Context, now time.Time) error {
	local := now.In(s.location)
	tomorrow := models.NormalizeDate(local.AddDate(0, 0, 1))

	bookings, stale, err := s.bookings.List(ctx)
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	if stale {
		s.logger.Warn().Msg("building reminder digest from a stale snapshot")
	}

	arrivals := arrivalsOn(bookings, tomorrow)
	if len(arrivals) > 0 {
		if err := s.notifier.Send(ctx, digestMessage(tomorrow, arrivals)); err != nil {
			return fmt.Errorf("send digest: %w", err)
		}
		s.logger.Info().
			Int("arrivals", len(arrivals)).
			Str("date", tomorrow.Format("2006-01-02")).
			Msg("arrival digest sent")
	}

	s.mu.Lock()
	s.lastRunDay = local.Format("2006-01-02")
	s.mu.Unlock()
	return nil
}

// arrivalsOn returns bookings starting on the given day, earliest arrival
// time first.
func arrivalsOn(bookings []models.Booking, day time.Time) []models.Booking {
	var out []models.Booking
	for _, b := range bookings {
		if models.NormalizeDate(b.StartDate).Equal(day) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ArrivalTime != out[j].ArrivalTime {
			return out[i].ArrivalTime < out[j].ArrivalTime
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func digestMessage(day time.Time, arrivals []models.Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏡 <b>Arrivals tomorrow, %s</b>\n", day.Format("Monday 2 January"))
	for _, b := range arrivals {
		sb.WriteString("\n• " + b.Name)
		if b.ArrivalTime != "" {
			sb.WriteString(" — around " + b.ArrivalTime)
		}
		if b.Guests > 1 {
			fmt.Fprintf(&sb, " (%d guests)", b.Guests)
		}
		fmt.Fprintf(&sb, ", until %s", b.EndDate.Format("2 Jan"))
	}
	return sb.String()
}
