// Package drafts keeps report trees that are being edited in Redis, together
// with the bytes of photos attached but not yet uploaded.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/saluran/fieldreport-server/internal/media"
	"github.com/saluran/fieldreport-server/internal/models"
)

// ErrNotFound is returned for unknown or expired drafts
var ErrNotFound = errors.New("draft not found or expired")

// Draft is a report tree under edit
type Draft struct {
	ID        string        `json:"id"`
	Owner     string        `json:"owner"`
	Report    models.Report `json:"report"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Store implements draft storage using Redis
type Store struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewStore connects to Redis and creates a draft store
func NewStore(redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewStoreWithClient(client, ttl), nil
}

// NewStoreWithClient creates a store from an existing Redis client
func NewStoreWithClient(client *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &Store{client: client, prefix: "draft:", ttl: ttl}
}

func (s *Store) key(id string) string { return s.prefix + id }

func (s *Store) blobSetKey(id string) string { return s.prefix + id + ":blobs" }

func (s *Store) blobKey(id, handle string) string { return s.prefix + id + ":blob:" + handle }

// Create stores a new draft for the report
func (s *Store) Create(ctx context.Context, owner string, r models.Report) (*Draft, error) {
	d := &Draft{ID: uuid.NewString(), Owner: owner, Report: r}
	if err := s.Put(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Get loads a draft
func (s *Store) Get(ctx context.Context, id string) (*Draft, error) {
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}

	var d Draft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("unmarshal draft: %w", err)
	}
	return &d, nil
}

// Put writes the draft and extends the lifetime of the draft and its blobs
func (s *Store) Put(ctx context.Context, d *Draft) error {
	d.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}

	handles, err := s.client.SMembers(ctx, s.blobSetKey(d.ID)).Result()
	if err != nil {
		return fmt.Errorf("list draft blobs: %w", err)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(d.ID), data, s.ttl)
		pipe.Expire(ctx, s.blobSetKey(d.ID), s.ttl)
		for _, h := range handles {
			pipe.Expire(ctx, s.blobKey(d.ID, h), s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// Delete removes the draft and all of its blobs
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.DropBlobs(ctx, id); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	return nil
}

// PutBlob stores attachment bytes and returns their handle
func (s *Store) PutBlob(ctx context.Context, id string, data []byte) (string, error) {
	handle := uuid.NewString()
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.blobKey(id, handle), data, s.ttl)
		pipe.SAdd(ctx, s.blobSetKey(id), handle)
		pipe.Expire(ctx, s.blobSetKey(id), s.ttl)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("save draft blob: %w", err)
	}
	return handle, nil
}

// Blob returns attachment bytes
func (s *Store) Blob(ctx context.Context, id, handle string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.blobKey(id, handle)).Bytes()
	if err == redis.Nil {
		return nil, media.ErrMissingBlob
	}
	if err != nil {
		return nil, fmt.Errorf("get draft blob: %w", err)
	}
	return data, nil
}

// DropBlobs removes every blob of a draft
func (s *Store) DropBlobs(ctx context.Context, id string) error {
	handles, err := s.client.SMembers(ctx, s.blobSetKey(id)).Result()
	if err != nil {
		return fmt.Errorf("list draft blobs: %w", err)
	}
	keys := make([]string, 0, len(handles)+1)
	for _, h := range handles {
		keys = append(keys, s.blobKey(id, h))
	}
	keys = append(keys, s.blobSetKey(id))
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete draft blobs: %w", err)
	}
	return nil
}

// DropBlob removes the given blobs of a draft
func (s *Store) DropBlob(ctx context.Context, id string, handles ...string) error {
	if len(handles) == 0 {
		return nil
	}
	keys := make([]string, len(handles))
	members := make([]interface{}, len(handles))
	for i, h := range handles {
		keys[i] = s.blobKey(id, h)
		members[i] = h
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.SRem(ctx, s.blobSetKey(id), members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete draft blob: %w", err)
	}
	return nil
}

// Blobs returns the blob source of one draft
func (s *Store) Blobs(id string) media.BlobSource {
	return draftBlobs{store: s, id: id}
}

type draftBlobs struct {
	store *Store
	id    string
}

func (b draftBlobs) Blob(ctx context.Context, handle string) ([]byte, error) {
	return b.store.Blob(ctx, b.id, handle)
}

// Client returns the underlying Redis client
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
