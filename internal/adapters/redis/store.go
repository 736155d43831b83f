package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Source implements ports.Source, ports.Sink, ports.Updater and
// ports.Watchable on top of a Redis key holding a JSON document. Every save
// is announced on a pub/sub channel so that other processes can reload.
type Source struct {
	client   backend.UniversalClient
	prefix   string
	document string
	ttl      time.Duration
	lockTTL  time.Duration
	locker   *Locker
	logger   *slog.Logger
}

type Option func(*Source)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Source) {
		s.prefix = prefix
	}
}

// WithDocument selects which document under the prefix is used.
func WithDocument(name string) Option {
	return func(s *Source) {
		s.document = name
	}
}

// WithTTL sets the expiration of the stored document.
func WithTTL(ttl time.Duration) Option {
	return func(s *Source) {
		s.ttl = ttl
	}
}

// WithLockTTL bounds how long an Update may hold the document lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Source) {
		s.lockTTL = ttl
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// New creates a new Redis source with options.
func New(address, password string, db int, opts ...Option) *Source {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis source from an existing client.
func NewFromClient(client backend.UniversalClient, opts ...Option) *Source {
	s := &Source{
		client:   client,
		prefix:   "arbor:",
		document: "state",
		ttl:      0, // No expiration by default
		lockTTL:  5 * time.Second,
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.locker = NewLocker(client, s.prefix)
	return s
}

func (s *Source) key() string {
	return s.prefix + "doc:" + s.document
}

func (s *Source) channel() string {
	return s.prefix + "changed:" + s.document
}

// Load retrieves the document from Redis.
func (s *Source) Load(ctx context.Context) (map[string]any, error) {
	val, err := s.client.Get(ctx, s.key()).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrSourceNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(val), &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// Save persists the document and publishes a change notification.
func (s *Source) Save(ctx context.Context, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	pipe := s.client.Pipeline()
	// Use 0 for no expiration if ttl is not set.
	pipe.Set(ctx, s.key(), payload, s.ttl)
	pipe.Publish(ctx, s.channel(), s.document)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Update applies fn to the stored document while holding the document lock.
func (s *Source) Update(ctx context.Context, fn func(doc map[string]any) error) error {
	unlock, err := s.locker.Lock(ctx, s.document, s.lockTTL)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release document lock", "document", s.document, "err", err)
		}
	}()

	doc, err := s.Load(ctx)
	if errors.Is(err, domain.ErrSourceNotFound) {
		doc, err = map[string]any{}, nil
	}
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.Save(ctx, doc)
}

// Watch subscribes to change notifications. The channel is closed when ctx
// is done.
func (s *Source) Watch(ctx context.Context) (<-chan struct{}, error) {
	pubsub := s.client.Subscribe(ctx, s.channel())
	// Wait for the subscription to be confirmed so no save is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", s.channel(), err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer pubsub.Close()

		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-messages:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

// Close closes the redis client.
func (s *Source) Close() error {
	return s.client.Close()
}
