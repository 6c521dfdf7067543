package storage

import (
	"context"
	"encoding/json"
	"hash/fnv"
	"sync"

	"github.com/ztforge/ztforge/pkg/device"
	"github.com/ztforge/ztforge/pkg/identity"
	"github.com/ztforge/ztforge/pkg/netseg"
	"github.com/ztforge/ztforge/pkg/zterr"
)

const shardCount = 16

type identityShard struct {
	mu      sync.RWMutex
	records map[string]*identity.Identity
}

// MemoryStore is an in-memory snapshot store. Identity records are
// sharded by id; updates to one identity are serialized by its shard
// lock while reads and updates for other identities proceed in parallel.
type MemoryStore struct {
	identityShards [shardCount]*identityShard

	deviceMu sync.RWMutex
	devices  map[string]*device.Device

	segmentMu sync.RWMutex
	segments  map[string]*netseg.Segment
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{
		devices:  make(map[string]*device.Device),
		segments: make(map[string]*netseg.Segment),
	}
	for i := range store.identityShards {
		store.identityShards[i] = &identityShard{records: make(map[string]*identity.Identity)}
	}
	return store
}

func (s *MemoryStore) shardFor(id string) *identityShard {
	h := fnv.New32a()
	h.Write([]byte(id))
	return s.identityShards[h.Sum32()%shardCount]
}

// cloneIdentity deep-copies a record so callers never share mutable
// state with the store.
func cloneIdentity(record *identity.Identity) *identity.Identity {
	data, _ := json.Marshal(record)
	clone := &identity.Identity{}
	json.Unmarshal(data, clone)
	return clone
}

func cloneDevice(record *device.Device) *device.Device {
	data, _ := json.Marshal(record)
	clone := &device.Device{}
	json.Unmarshal(data, clone)
	return clone
}

func cloneSegment(record *netseg.Segment) *netseg.Segment {
	data, _ := json.Marshal(record)
	clone := &netseg.Segment{}
	json.Unmarshal(data, clone)
	return clone
}

// GetIdentity returns a copy of the identity record
func (s *MemoryStore) GetIdentity(_ context.Context, id string) (*identity.Identity, error) {
	shard := s.shardFor(id)
	shard.mu.RLock()
	defer shard.mu.RUnlock()

	record, ok := shard.records[id]
	if !ok {
		return nil, zterr.NotFound("identity", id)
	}
	return cloneIdentity(record), nil
}

// PutIdentity stores an identity record
func (s *MemoryStore) PutIdentity(_ context.Context, record *identity.Identity) error {
	if record.ID == "" {
		return zterr.Validation("identity_id", "required")
	}
	shard := s.shardFor(record.ID)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	shard.records[record.ID] = cloneIdentity(record)
	return nil
}

// UpdateIdentity applies mutate under the identity's shard lock. The
// mutation either commits whole or, if mutate or the context fails,
// leaves the stored record untouched.
func (s *MemoryStore) UpdateIdentity(ctx context.Context, id string, mutate func(*identity.Identity) error) (*identity.Identity, error) {
	shard := s.shardFor(id)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	record, ok := shard.records[id]
	if !ok {
		return nil, zterr.NotFound("identity", id)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	working := cloneIdentity(record)
	if err := mutate(working); err != nil {
		return nil, err
	}

	shard.records[id] = working
	return cloneIdentity(working), nil
}

// ListIdentities returns copies of all identity records
func (s *MemoryStore) ListIdentities(_ context.Context) ([]*identity.Identity, error) {
	out := make([]*identity.Identity, 0)
	for _, shard := range s.identityShards {
		shard.mu.RLock()
		for _, record := range shard.records {
			out = append(out, cloneIdentity(record))
		}
		shard.mu.RUnlock()
	}
	return out, nil
}

// GetDevice returns a copy of the device record
func (s *MemoryStore) GetDevice(_ context.Context, id string) (*device.Device, error) {
	s.deviceMu.RLock()
	defer s.deviceMu.RUnlock()

	record, ok := s.devices[id]
	if !ok {
		return nil, zterr.NotFound("device", id)
	}
	return cloneDevice(record), nil
}

// PutDevice stores a device record after checking that the owning
// identity exists and that an existing record's owner is not changing.
func (s *MemoryStore) PutDevice(ctx context.Context, record *device.Device) error {
	if record.ID == "" {
		return zterr.Validation("device_id", "required")
	}
	if _, err := s.GetIdentity(ctx, record.IdentityID); err != nil {
		return err
	}

	s.deviceMu.Lock()
	defer s.deviceMu.Unlock()

	if existing, ok := s.devices[record.ID]; ok && existing.IdentityID != record.IdentityID {
		return zterr.Validation("identity_id", "device owner is immutable")
	}

	s.devices[record.ID] = cloneDevice(record)
	return nil
}

// ListDevices returns copies of all device records
func (s *MemoryStore) ListDevices(_ context.Context) ([]*device.Device, error) {
	s.deviceMu.RLock()
	defer s.deviceMu.RUnlock()

	out := make([]*device.Device, 0, len(s.devices))
	for _, record := range s.devices {
		out = append(out, cloneDevice(record))
	}
	return out, nil
}

// GetSegment returns a copy of the segment configuration
func (s *MemoryStore) GetSegment(_ context.Context, id string) (*netseg.Segment, error) {
	s.segmentMu.RLock()
	defer s.segmentMu.RUnlock()

	record, ok := s.segments[id]
	if !ok {
		return nil, zterr.NotFound("segment", id)
	}
	return cloneSegment(record), nil
}

// PutSegment stores a segment configuration
func (s *MemoryStore) PutSegment(_ context.Context, record *netseg.Segment) error {
	if record.ID == "" {
		return zterr.Validation("segment_id", "required")
	}
	s.segmentMu.Lock()
	defer s.segmentMu.Unlock()

	s.segments[record.ID] = cloneSegment(record)
	return nil
}

// ListSegments returns copies of all segment configurations
func (s *MemoryStore) ListSegments(_ context.Context) ([]*netseg.Segment, error) {
	s.segmentMu.RLock()
	defer s.segmentMu.RUnlock()

	out := make([]*netseg.Segment, 0, len(s.segments))
	for _, record := range s.segments {
		out = append(out, cloneSegment(record))
	}
	return out, nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error { return nil }
