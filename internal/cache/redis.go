// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/tambola/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// WaitingGamesKey holds the JSON encoded waiting-games listing.
	WaitingGamesKey = "tambola:games:waiting"

	// WaitingGamesGenKey counts invalidations of WaitingGamesKey.
	WaitingGamesGenKey = "tambola:games:waiting:gen"

	// GameCreatedChannel carries a GameCreatedEvent for every new game.
	GameCreatedChannel = "tambola:games:created"

	// DefaultQueueName is the Redis list the game engine pops new games from.
	DefaultQueueName = "tambola_games"

	EventGameCreated = "game_created"
)

// Connect opens a Redis client and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// WaitingGames caches the dashboard listing under WaitingGamesKey.
type WaitingGames struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewWaitingGames returns a cache whose listings expire after ttl.
func NewWaitingGames(rdb *redis.Client, ttl time.Duration) *WaitingGames {
	return &WaitingGames{rdb: rdb, ttl: ttl}
}

// GetWaitingGames returns the cached listing; ok is false on a miss.
func (w *WaitingGames) GetWaitingGames(ctx context.Context) ([]*models.Game, bool, error) {
	data, err := w.rdb.Get(ctx, WaitingGamesKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to GET '%s': %w", WaitingGamesKey, err)
	}

	var games []*models.Game
	if err := json.Unmarshal(data, &games); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached games: %w", err)
	}
	return games, true, nil
}

// WaitingGamesGeneration returns the invalidation counter, 0 before the first one.
func (w *WaitingGames) WaitingGamesGeneration(ctx context.Context) (int64, error) {
	return generation(ctx, w.rdb)
}

// SetWaitingGames stores games unless the generation moved past gen. The check and
// the write run under WATCH, so a concurrent invalidation aborts the write.
func (w *WaitingGames) SetWaitingGames(ctx context.Context, gen int64, games []*models.Game) (bool, error) {
	if games == nil {
		games = []*models.Game{}
	}
	data, err := json.Marshal(games)
	if err != nil {
		return false, fmt.Errorf("failed to marshal games: %w", err)
	}

	stored := false
	err = w.rdb.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := generation(ctx, tx)
		if err != nil || cur != gen {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, WaitingGamesKey, data, w.ttl)
			return nil
		})
		stored = err == nil
		return err
	}, WaitingGamesGenKey)
	if errors.Is(err, redis.TxFailedErr) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to SET '%s': %w", WaitingGamesKey, err)
	}
	return stored, nil
}

// InvalidateWaitingGames bumps the generation and drops the listing in one transaction.
func (w *WaitingGames) InvalidateWaitingGames(ctx context.Context) error {
	_, err := w.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, WaitingGamesGenKey)
		pipe.Del(ctx, WaitingGamesKey)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to invalidate '%s': %w", WaitingGamesKey, err)
	}
	return nil
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func generation(ctx context.Context, c stringGetter) (int64, error) {
	gen, err := c.Get(ctx, WaitingGamesGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to GET '%s': %w", WaitingGamesGenKey, err)
	}
	return gen, nil
}

// GameCreatedEvent holds the minimal info the game engine and live dashboards need.
type GameCreatedEvent struct {
	Type           string  `json:"type"`
	GameID         string  `json:"game_id"`
	HostID         string  `json:"host_id"`
	Name           string  `json:"name"`
	TicketPrice    float64 `json:"ticket_price"`
	TicketCurrency string  `json:"ticket_currency"`
	TicketLimit    int     `json:"ticket_limit"`
	StartTime      int64   `json:"start_time"`
	Timestamp      int64   `json:"timestamp"`
}

// NewGameCreatedEvent summarises g for the queue and the live feed.
func NewGameCreatedEvent(g *models.Game) GameCreatedEvent {
	return GameCreatedEvent{
		Type:           EventGameCreated,
		GameID:         g.ID,
		HostID:         g.HostID,
		Name:           g.Name,
		TicketPrice:    g.TicketPrice,
		TicketCurrency: g.TicketCurrency,
		TicketLimit:    g.TicketLimit,
		StartTime:      g.StartTime.UnixMilli(),
		Timestamp:      g.CreatedAt.UnixMilli(),
	}
}

// EventBus pushes new games onto the engine queue and fans them out over pub/sub.
type EventBus struct {
	rdb    *redis.Client
	queue  string
	logger *logrus.Logger
}

// NewEventBus publishes onto queue, or DefaultQueueName when queue is empty.
func NewEventBus(rdb *redis.Client, queue string, logger *logrus.Logger) *EventBus {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &EventBus{rdb: rdb, queue: queue, logger: logger}
}

// PublishGameCreated RPUSHes the event to the queue and PUBLISHes it in one pipeline.
func (b *EventBus) PublishGameCreated(ctx context.Context, g *models.Game) error {
	data, err := json.Marshal(NewGameCreatedEvent(g))
	if err != nil {
		return fmt.Errorf("failed to marshal GameCreatedEvent: %w", err)
	}

	_, err = b.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, b.queue, data)
		pipe.Publish(ctx, GameCreatedChannel, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish game %s to '%s': %w", g.ID, b.queue, err)
	}
	return nil
}

// Subscribe streams GameCreatedEvents until ctx is done. The returned channel is
// closed when the subscription ends.
func (b *EventBus) Subscribe(ctx context.Context) (<-chan GameCreatedEvent, error) {
	sub := b.rdb.Subscribe(ctx, GameCreatedChannel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to '%s': %w", GameCreatedChannel, err)
	}

	out := make(chan GameCreatedEvent, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev GameCreatedEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					b.logger.WithError(err).Warn("dropping malformed game event")
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
