package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	outboxSize     = 256
	publishTimeout = 2 * time.Second
	maxFailures    = 5
)

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	DialTimeout   time.Duration
	ChannelPrefix string
}

type outgoing struct {
	eventType EventType
	payload   Payload
	at        time.Time
}

// RedisBus delivers locally through a Bus and forwards every event to Redis
// from a background goroutine. After repeated Redis failures it stays local.
type RedisBus struct {
	local  *Bus
	client *redis.Client
	prefix string
	nodeID string
	log    zerolog.Logger

	outbox chan outgoing
	done   chan struct{}
	once   sync.Once

	mu          sync.Mutex
	failCount   int
	useFallback bool
}

// message is the JSON document published to Redis.
type message struct {
	EventType EventType `json:"event_type"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
	NodeID    string    `json:"node_id"`
	MessageID string    `json:"message_id"`
}

// NewRedisBus connects to Redis. A failed ping is returned as an error so the
// caller can fall back to a plain Bus.
func NewRedisBus(ctx context.Context, cfg RedisConfig, log zerolog.Logger) (*RedisBus, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	rb := newRedisBus(client, cfg.ChannelPrefix, log)
	go rb.forward()

	log.Info().Str("addr", cfg.Addr).Str("prefix", cfg.ChannelPrefix).Msg("Redis event bus initialized")
	return rb, nil
}

func newRedisBus(client *redis.Client, prefix string, log zerolog.Logger) *RedisBus {
	host, _ := os.Hostname()
	return &RedisBus{
		local:  NewBus(),
		client: client,
		prefix: prefix,
		nodeID: fmt.Sprintf("%s-%s", host, uuid.NewString()[:8]),
		log:    log,
		outbox: make(chan outgoing, outboxSize),
		done:   make(chan struct{}),
	}
}

// Subscribe registers a local subscriber.
func (rb *RedisBus) Subscribe(eventType EventType) Subscriber {
	return rb.local.Subscribe(eventType)
}

// Publish delivers locally and queues the event for Redis.
func (rb *RedisBus) Publish(eventType EventType, payload Payload) {
	rb.local.Publish(eventType, payload)

	rb.mu.Lock()
	fallback := rb.useFallback
	rb.mu.Unlock()
	if fallback {
		return
	}

	select {
	case rb.outbox <- outgoing{eventType: eventType, payload: payload, at: time.Now().UTC()}:
	default:
		rb.log.Warn().Str("event_type", string(eventType)).Msg("Redis outbox full, dropping event")
	}
}

// Channel returns the Redis channel name for an event type.
func (rb *RedisBus) Channel(eventType EventType) string {
	if rb.prefix == "" {
		return string(eventType)
	}
	return rb.prefix + "." + string(eventType)
}

func (rb *RedisBus) forward() {
	for {
		select {
		case <-rb.done:
			return
		case ev := <-rb.outbox:
			rb.send(ev)
		}
	}
}

func (rb *RedisBus) send(ev outgoing) {
	data, err := rb.marshal(ev)
	if err != nil {
		rb.log.Error().Err(err).Msg("Failed to marshal event")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := rb.client.Publish(ctx, rb.Channel(ev.eventType), data).Err(); err != nil {
		rb.log.Error().Err(err).Str("event_type", string(ev.eventType)).Msg("Failed to publish to Redis")
		rb.handleFailure()
		return
	}

	rb.mu.Lock()
	rb.failCount = 0
	rb.mu.Unlock()
}

func (rb *RedisBus) marshal(ev outgoing) ([]byte, error) {
	return json.Marshal(message{
		EventType: ev.eventType,
		Payload:   ev.payload,
		Timestamp: ev.at,
		NodeID:    rb.nodeID,
		MessageID: uuid.NewString(),
	})
}

func (rb *RedisBus) handleFailure() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.failCount++
	if rb.failCount >= maxFailures && !rb.useFallback {
		rb.useFallback = true
		rb.log.Warn().Int("fail_count", rb.failCount).Msg("Redis failure threshold reached, events stay in process")
	}
}

// Close stops forwarding and closes the Redis client.
func (rb *RedisBus) Close() error {
	var err error
	rb.once.Do(func() {
		close(rb.done)
		if rb.client != nil {
			err = rb.client.Close()
		}
	})
	return err
}
