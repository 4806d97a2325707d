// Package notify sends arrival reminders to the family Telegram chat.
package notify

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Notifier delivers a message to the shared family chat.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

// RetryConfig controls resends after transient Telegram failures.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

// TelegramNotifier sends messages through the Bot API, rate limited to stay
// under Telegram's per-chat limits.
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	limiter *rate.Limiter
	retry   RetryConfig
	logger  zerolog.Logger
}

func NewTelegramNotifier(botToken string, chatID int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramNotifier{
		bot:    bot,
		chatID: chatID,
		// Telegram allows ~20 messages/min to the same group.
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 5),
		retry:   DefaultRetryConfig(),
		logger:  logger.With().Str("component", "notify").Logger(),
	}, nil
}

// Send delivers text as HTML, retrying transient failures with backoff.
func (n *TelegramNotifier) Send(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	var lastErr error
	for attempt := 0; attempt <= n.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := n.retry.RetryDelays[min(attempt-1, len(n.retry.RetryDelays)-1)]
			n.logger.Warn().
				Err(lastErr).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("resending telegram message")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := n.bot.Send(msg); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("telegram send failed after %d retries: %w", n.retry.MaxRetries, lastErr)
}
