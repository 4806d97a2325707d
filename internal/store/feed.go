package store

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"stuga/internal/events"
)

// Feed relays change events between service instances over a Redis pub/sub
// channel. Delivery is at-least-once from the subscriber's point of view:
// receivers re-fetch from the remote store rather than apply payloads, so
// duplicates are harmless.
type Feed struct {
	rdb     *redis.Client
	channel string
	logger  zerolog.Logger
}

func NewFeed(rdb *redis.Client, channel string, logger *zerolog.Logger) *Feed {
	return &Feed{
		rdb:     rdb,
		channel: channel,
		logger:  logger.With().Str("component", "change_feed").Logger(),
	}
}

// Publish sends the event to the channel. Failures are logged and dropped;
// the 30-second poller covers any instance that missed a message.
func (f *Feed) Publish(ctx context.Context, ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		f.logger.Error().Err(err).Msg("failed to encode change event")
		return
	}
	if err := f.rdb.Publish(ctx, f.channel, payload).Err(); err != nil {
		f.logger.Warn().Err(err).Msg("failed to publish change event")
	}
}

// Listen consumes the channel until ctx is done, handing each decoded
// event to onEvent. Undecodable messages still trigger onEvent with a bare
// refreshed event, since a notification of unknown shape is still a reason
// to re-fetch.
func (f *Feed) Listen(ctx context.Context, onEvent func(events.Event)) {
	pubsub := f.rdb.Subscribe(ctx, f.channel)
	defer pubsub.Close()

	f.logger.Info().Str("channel", f.channel).Msg("change feed listening")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev events.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				f.logger.Warn().Err(err).Msg("undecodable change event, forcing refresh")
				ev = events.NewEvent(events.TypeRefreshed, CollectionBookings, nil, nil)
			}
			onEvent(ev)
		}
	}
}
