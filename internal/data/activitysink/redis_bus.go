package activitysink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/promptchain-backend/internal/domain/activity"
	"github.com/yungbote/promptchain-backend/internal/pkg/logger"
)

const DefaultChannel = "promptchain.activity"

// RedisBus publishes events as JSON on a pub/sub channel and can forward
// received events to a handler.
type RedisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

var _ activity.Recorder = (*RedisBus)(nil)

// DialRedis opens a client and checks it with a ping.
func DialRedis(ctx context.Context, addr string) (*goredis.Client, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis addr")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewRedisBus(rdb *goredis.Client, channel string, baseLog *logger.Logger) (*RedisBus, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{
		log:     baseLog.With("service", "RedisActivityBus", "channel", channel),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *RedisBus) Channel() string { return b.channel }

func (b *RedisBus) Client() *goredis.Client { return b.rdb }

// Record publishes ev. Delivery is at-most-once; subscribers that are not
// connected miss the event, the audit table does not.
func (b *RedisBus) Record(ctx context.Context, ev activity.Event) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis activity bus not initialized")
	}
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

// StartForwarder subscribes and calls onEvent for every decoded event until
// ctx ends. It returns once the subscription is confirmed.
func (b *RedisBus) StartForwarder(ctx context.Context, onEvent func(context.Context, activity.Event)) error {
	if b == nil || b.rdb == nil {
		return fmt.Errorf("redis activity bus not initialized")
	}
	if onEvent == nil {
		return fmt.Errorf("onEvent callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev activity.Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.log.Warn("bad activity payload", "error", err)
					continue
				}
				onEvent(ctx, ev)
			}
		}
	}()
	return nil
}

func (b *RedisBus) Close() error {
	if b == nil || b.rdb == nil {
		return nil
	}
	return b.rdb.Close()
}
