package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultChannelPrefix namespaces the pub/sub channels, one per collection.
const DefaultChannelPrefix = "familyhub:changes:"

// Redis is a Bus backed by Redis pub/sub, so every server instance sees
// the writes committed by every other instance.
type Redis struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

func NewRedis(client *redis.Client, logger *zap.Logger) *Redis {
	return &Redis{client: client, prefix: DefaultChannelPrefix, logger: logger}
}

func (r *Redis) channel(collection string) string {
	return r.prefix + collection
}

func (r *Redis) Publish(ctx context.Context, changes ...Change) error {
	for _, c := range changes {
		payload, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal change: %w", err)
		}
		if err := r.client.Publish(ctx, r.channel(c.Collection), payload).Err(); err != nil {
			return fmt.Errorf("publish change: %w", err)
		}
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, collection string) (Subscription, error) {
	ps := r.client.Subscribe(ctx, r.channel(collection))

	// Wait for the subscription confirmation; otherwise a write committed
	// right after Subscribe returns could be published before Redis
	// registered us.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", collection, err)
	}

	s := &redisSub{ps: ps, out: make(chan Change, 1), logger: r.logger}
	go s.pump()
	return s, nil
}

type redisSub struct {
	ps     *redis.PubSub
	out    chan Change
	logger *zap.Logger
	once   sync.Once
	err    error
}

func (s *redisSub) pump() {
	defer close(s.out)
	for msg := range s.ps.Channel() {
		var c Change
		if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
			s.logger.Warn("dropping malformed change notification",
				zap.String("channel", msg.Channel),
				zap.Error(err),
			)
			continue
		}
		offer(s.out, c)
	}
}

func (s *redisSub) C() <-chan Change { return s.out }

func (s *redisSub) Close() error {
	s.once.Do(func() {
		s.err = s.ps.Close()
	})
	return s.err
}
