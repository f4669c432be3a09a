package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/usecase"
)

type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(redisClient *redis.Client) *SignalService {
	return &SignalService{
		rdb: redisClient,
	}
}

func (s *SignalService) Publish(ctx context.Context, event domain.Event) error {

	jsonstr, err := json.Marshal(event)
	if err != nil {
		return err
	}

	err = s.rdb.Publish(ctx, event.Channel(), jsonstr).Err()
	if err != nil {
		return err
	}

	return nil
}

// Realtime forwards events of the complaints last received on input to
// output. It returns, closing output, when ctx ends or input is closed.
func (s *SignalService) Realtime(ctx context.Context, input <-chan []int64, output chan<- domain.Event) {
	defer close(output)

	pubsub := s.rdb.Subscribe(ctx)
	defer pubsub.Close()
	messages := pubsub.Channel()

	var current []string
	for {
		select {
		case <-ctx.Done():
			return
		case ids, ok := <-input:
			if !ok {
				return
			}
			if len(current) > 0 {
				if err := pubsub.Unsubscribe(ctx, current...); err != nil {
					slog.ErrorContext(
						ctx, "unsubscribe failed",
						slog.String("error", err.Error()),
						slog.String("module", "signal"),
					)
				}
			}
			current = complaintChannels(ids)
			if len(current) > 0 {
				if err := pubsub.Subscribe(ctx, current...); err != nil {
					slog.ErrorContext(
						ctx, "subscribe failed",
						slog.String("error", err.Error()),
						slog.String("module", "signal"),
					)
				}
			}
		case msg, ok := <-messages:
			if !ok {
				return
			}
			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.WarnContext(
					ctx, "malformed event",
					slog.String("channel", msg.Channel),
					slog.String("module", "signal"),
				)
				continue
			}
			select {
			case output <- event:
			case <-ctx.Done():
				return
			}
		}
	}
}

func complaintChannels(ids []int64) []string {
	seen := make(map[int64]bool, len(ids))
	channels := make([]string, 0, len(ids))
	for _, id := range ids {
		if id <= 0 || seen[id] {
			continue
		}
		seen[id] = true
		channels = append(channels, domain.ComplaintChannel(id))
	}
	return channels
}

var _ usecase.EventPublisher = (*SignalService)(nil)
