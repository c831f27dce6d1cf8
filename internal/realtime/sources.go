package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/civicdesk/triage-service/internal/events"
)

// DefaultChannel is the channel both the NOTIFY trigger and the Redis publisher use.
const DefaultChannel = "report_changes"

type changePayload struct {
	Op       string `json:"op"`
	ID       string `json:"id"`
	ReportID string `json:"report_id"`
	Type     string `json:"type"`
}

func decodeChange(source string, raw string) ChangeEvent {
	event := ChangeEvent{Source: source}
	var payload changePayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		// An unreadable payload still means something changed.
		return event
	}
	event.Op = payload.Op
	if event.Op == "" {
		event.Op = payload.Type
	}
	event.ReportID = payload.ID
	if payload.ReportID != "" {
		event.ReportID = payload.ReportID
	}
	return event
}

// Acquirer hands out a dedicated connection. *pgxpool.Pool satisfies it.
type Acquirer interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

// PostgresSource listens for NOTIFY messages sent by the reports change trigger.
type PostgresSource struct {
	pool    Acquirer
	channel string
}

// NewPostgresSource listens on channel, or DefaultChannel when empty.
func NewPostgresSource(pool Acquirer, channel string) *PostgresSource {
	if channel == "" {
		channel = DefaultChannel
	}
	return &PostgresSource{pool: pool, channel: channel}
}

func (s *PostgresSource) Name() string { return "postgres" }

// Channel is the channel passed to LISTEN.
func (s *PostgresSource) Channel() string { return s.channel }

func (s *PostgresSource) Listen(ctx context.Context, emit func(ChangeEvent)) error {
	if s.pool == nil {
		return errors.New("postgres pool not configured")
	}
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire listen connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{s.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", s.channel, err)
	}
	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			// The connection state is unknown after a failed wait.
			_ = conn.Conn().Close(context.Background())
			return fmt.Errorf("wait for notification: %w", err)
		}
		emit(decodeChange(s.Name(), notification.Payload))
	}
}

// RedisSource receives change events published on a Redis channel.
type RedisSource struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisSource subscribes to channel, or DefaultChannel when empty.
func NewRedisSource(client redis.UniversalClient, channel string) *RedisSource {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisSource{client: client, channel: channel}
}

func (s *RedisSource) Name() string { return "redis" }

func (s *RedisSource) Listen(ctx context.Context, emit func(ChangeEvent)) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return errors.New("redis subscription closed")
			}
			emit(decodeChange(s.Name(), msg.Payload))
		}
	}
}

// DispatcherSource forwards in-process domain events. It covers writes made by this
// instance when no shared backend channel is configured. Events published while no Listen
// is attached collapse into one pending event, delivered when Listen attaches.
type DispatcherSource struct {
	mu      sync.Mutex
	emit    func(ChangeEvent)
	pending *ChangeEvent
}

// NewDispatcherSource registers on every event type of dispatcher.
func NewDispatcherSource(dispatcher events.Dispatcher) *DispatcherSource {
	src := &DispatcherSource{}
	dispatcher.Subscribe(events.EventAny, src.handle)
	return src
}

func (s *DispatcherSource) Name() string { return "local" }

func (s *DispatcherSource) Listen(ctx context.Context, emit func(ChangeEvent)) error {
	s.mu.Lock()
	s.emit = emit
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if pending != nil {
		emit(*pending)
	}

	<-ctx.Done()

	s.mu.Lock()
	s.emit = nil
	s.mu.Unlock()
	return nil
}

func (s *DispatcherSource) handle(_ context.Context, event events.Event) error {
	change := ChangeEvent{Source: s.Name(), Op: string(event.Type), ReportID: event.ReportID}

	s.mu.Lock()
	emit := s.emit
	if emit == nil {
		if s.pending != nil && s.pending.ReportID != change.ReportID {
			// Different reports merged: report-scoped subscribers all need a refresh.
			change.ReportID = ""
		}
		s.pending = &change
	}
	s.mu.Unlock()

	if emit != nil {
		emit(change)
	}
	return nil
}

// RedisPublisher forwards domain events to a Redis channel so other instances observe them.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
}

// NewRedisPublisher publishes on channel, or DefaultChannel when empty.
func NewRedisPublisher(client redis.UniversalClient, channel string) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel}
}

// Register forwards every event published on dispatcher.
func (p *RedisPublisher) Register(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventAny, p.Publish)
}

// Publish sends one event.
func (p *RedisPublisher) Publish(ctx context.Context, event events.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, body).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", p.channel, err)
	}
	return nil
}
