package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/ztforge/ztforge/pkg/device"
	"github.com/ztforge/ztforge/pkg/identity"
	"github.com/ztforge/ztforge/pkg/netseg"
	"github.com/ztforge/ztforge/pkg/zterr"
)

// RedisConfig configures the Redis snapshot store
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	KeyPrefix    string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisStore persists records as JSON snapshots in Redis. Identity
// updates use an optimistic WATCH transaction with retry so concurrent
// mutations of the same identity never interleave.
type RedisStore struct {
	client *redis.Client
	config RedisConfig
}

const updateRetries = 5

// NewRedisStore creates a Redis snapshot store and verifies connectivity
func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	if config.PoolSize <= 0 {
		config.PoolSize = 10
	}
	if config.DialTimeout <= 0 {
		config.DialTimeout = 5 * time.Second
	}
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 3 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 3 * time.Second
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "ztforge:"
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, config: config}, nil
}

func (s *RedisStore) identityKey(id string) string {
	return s.config.KeyPrefix + "identity:" + id
}

func (s *RedisStore) deviceKey(id string) string {
	return s.config.KeyPrefix + "device:" + id
}

func (s *RedisStore) segmentKey(id string) string {
	return s.config.KeyPrefix + "segment:" + id
}

func (s *RedisStore) getJSON(ctx context.Context, key string, out interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("corrupt snapshot at %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) putJSON(ctx context.Context, key string, record interface{}) error {
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, 0).Err()
}

// GetIdentity loads an identity snapshot
func (s *RedisStore) GetIdentity(ctx context.Context, id string) (*identity.Identity, error) {
	record := &identity.Identity{}
	found, err := s.getJSON(ctx, s.identityKey(id), record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, zterr.NotFound("identity", id)
	}
	return record, nil
}

// PutIdentity stores an identity snapshot
func (s *RedisStore) PutIdentity(ctx context.Context, record *identity.Identity) error {
	if record.ID == "" {
		return zterr.Validation("identity_id", "required")
	}
	return s.putJSON(ctx, s.identityKey(record.ID), record)
}

// UpdateIdentity applies mutate in a WATCH transaction, retrying on
// concurrent modification. The caller's mutation commits atomically
// with the snapshot write or not at all.
func (s *RedisStore) UpdateIdentity(ctx context.Context, id string, mutate func(*identity.Identity) error) (*identity.Identity, error) {
	key := s.identityKey(id)
	var updated *identity.Identity

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return zterr.NotFound("identity", id)
		}
		if err != nil {
			return err
		}

		record := &identity.Identity{}
		if err := json.Unmarshal(data, record); err != nil {
			return fmt.Errorf("corrupt snapshot at %s: %w", key, err)
		}

		if err := ctx.Err(); err != nil {
			return err
		}
		if err := mutate(record); err != nil {
			return err
		}

		out, err := json.Marshal(record)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, 0)
			return nil
		})
		if err == nil {
			updated = record
		}
		return err
	}

	for attempt := 0; attempt < updateRetries; attempt++ {
		err := s.client.Watch(ctx, txn, key)
		if err == nil {
			return updated, nil
		}
		if err == redis.TxFailedErr {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("identity %s update contended after %d attempts", id, updateRetries)
}

// ListIdentities loads all identity snapshots under the key prefix
func (s *RedisStore) ListIdentities(ctx context.Context) ([]*identity.Identity, error) {
	out := make([]*identity.Identity, 0)
	err := s.scan(ctx, s.config.KeyPrefix+"identity:*", func(data []byte) error {
		record := &identity.Identity{}
		if err := json.Unmarshal(data, record); err != nil {
			return err
		}
		out = append(out, record)
		return nil
	})
	return out, err
}

// GetDevice loads a device snapshot
func (s *RedisStore) GetDevice(ctx context.Context, id string) (*device.Device, error) {
	record := &device.Device{}
	found, err := s.getJSON(ctx, s.deviceKey(id), record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, zterr.NotFound("device", id)
	}
	return record, nil
}

// PutDevice stores a device snapshot after verifying the owning
// identity exists and the owner reference is unchanged
func (s *RedisStore) PutDevice(ctx context.Context, record *device.Device) error {
	if record.ID == "" {
		return zterr.Validation("device_id", "required")
	}
	if _, err := s.GetIdentity(ctx, record.IdentityID); err != nil {
		return err
	}
	if existing, err := s.GetDevice(ctx, record.ID); err == nil && existing.IdentityID != record.IdentityID {
		return zterr.Validation("identity_id", "device owner is immutable")
	}
	return s.putJSON(ctx, s.deviceKey(record.ID), record)
}

// ListDevices loads all device snapshots under the key prefix
func (s *RedisStore) ListDevices(ctx context.Context) ([]*device.Device, error) {
	out := make([]*device.Device, 0)
	err := s.scan(ctx, s.config.KeyPrefix+"device:*", func(data []byte) error {
		record := &device.Device{}
		if err := json.Unmarshal(data, record); err != nil {
			return err
		}
		out = append(out, record)
		return nil
	})
	return out, err
}

// GetSegment loads a segment snapshot
func (s *RedisStore) GetSegment(ctx context.Context, id string) (*netseg.Segment, error) {
	record := &netseg.Segment{}
	found, err := s.getJSON(ctx, s.segmentKey(id), record)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, zterr.NotFound("segment", id)
	}
	return record, nil
}

// PutSegment stores a segment snapshot
func (s *RedisStore) PutSegment(ctx context.Context, record *netseg.Segment) error {
	if record.ID == "" {
		return zterr.Validation("segment_id", "required")
	}
	return s.putJSON(ctx, s.segmentKey(record.ID), record)
}

// ListSegments loads all segment snapshots under the key prefix
func (s *RedisStore) ListSegments(ctx context.Context) ([]*netseg.Segment, error) {
	out := make([]*netseg.Segment, 0)
	err := s.scan(ctx, s.config.KeyPrefix+"segment:*", func(data []byte) error {
		record := &netseg.Segment{}
		if err := json.Unmarshal(data, record); err != nil {
			return err
		}
		out = append(out, record)
		return nil
	})
	return out, err
}

func (s *RedisStore) scan(ctx context.Context, pattern string, visit func([]byte) error) error {
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		data, err := s.client.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return err
		}
		if err := visit(data); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Close releases the Redis client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
