package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisPublishTimeout = 2 * time.Second
	redisQueueSize      = 1024
)

// RedisOptions - параметры подключения к Redis.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

// NewRedisClient создает клиента и проверяет соединение коротким PING.
func NewRedisClient(ctx context.Context, opts RedisOptions) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, redisPublishTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}

// RedisPublisher публикует события в канал Redis, чтобы их получили все экземпляры сервиса.
// Publish не блокирует: события буферизуются и отправляются из Run.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	queue   chan Event
}

func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	return &RedisPublisher{
		client:  client,
		channel: channel,
		queue:   make(chan Event, redisQueueSize),
	}
}

func (p *RedisPublisher) Publish(_ context.Context, event Event) {
	select {
	case p.queue <- event:
	default:
		log.Printf("redis: queue full, dropping event %s", event.Type)
	}
}

// Run отправляет накопленные события до отмены ctx.
func (p *RedisPublisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-p.queue:
			if err := p.send(ctx, event); err != nil {
				log.Printf("redis: publish %s to %s failed: %v", event.Type, p.channel, err)
			}
		}
	}
}

func (p *RedisPublisher) send(ctx context.Context, event Event) error {
	payload, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	pubCtx, cancel := context.WithTimeout(ctx, redisPublishTimeout)
	defer cancel()
	return p.client.Publish(pubCtx, p.channel, payload).Err()
}

// RedisRelay читает канал Redis и передает события в локальный Hub.
type RedisRelay struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
}

func NewRedisRelay(client redis.UniversalClient, channel string, hub *Hub) *RedisRelay {
	return &RedisRelay{client: client, channel: channel, hub: hub}
}

// Run блокируется до отмены ctx.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", r.channel, err)
	}
	log.Printf("redis: relaying channel %s to websocket hub", r.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			r.forward([]byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) forward(payload []byte) {
	var envelope struct {
		TournamentID int `json:"tournament_id"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		log.Printf("redis: dropping malformed event: %v", err)
		return
	}
	r.hub.PublishRaw(envelope.TournamentID, payload)
}
