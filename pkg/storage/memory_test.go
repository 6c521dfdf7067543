package storage

import (
	"context"
	"sync"
	"testing"

	"github.com/ztforge/ztforge/pkg/device"
	"github.com/ztforge/ztforge/pkg/identity"
	"github.com/ztforge/ztforge/pkg/netseg"
	"github.com/ztforge/ztforge/pkg/zterr"
)

func storedIdentity(t *testing.T, store *MemoryStore, id string) *identity.Identity {
	t.Helper()
	record := &identity.Identity{
		ID:                id,
		Role:              "user",
		Permissions:       []string{"read"},
		BaselineTrust:     0.5,
		Status:            identity.StatusActive,
		KnownFingerprints: []string{},
		SessionHistory:    []string{},
	}
	if err := store.PutIdentity(context.Background(), record); err != nil {
		t.Fatalf("put identity: %v", err)
	}
	return record
}

func TestGetIdentityNotFound(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.GetIdentity(context.Background(), "missing")
	if !zterr.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}

func TestGetIdentityReturnsCopy(t *testing.T) {
	store := NewMemoryStore()
	storedIdentity(t, store, "alice")

	first, _ := store.GetIdentity(context.Background(), "alice")
	first.SessionHistory = append(first.SessionHistory, "evt-1")

	second, _ := store.GetIdentity(context.Background(), "alice")
	if len(second.SessionHistory) != 0 {
		t.Error("mutating a returned record must not affect the store")
	}
}

func TestUpdateIdentitySerializedPerIdentity(t *testing.T) {
	store := NewMemoryStore()
	storedIdentity(t, store, "alice")

	const writers = 50
	var wg sync.WaitGroup
	wg.Add(writers)

	for i := 0; i < writers; i++ {
		go func(n int) {
			defer wg.Done()
			store.UpdateIdentity(context.Background(), "alice", func(record *identity.Identity) error {
				record.SessionHistory = append(record.SessionHistory, "evt")
				return nil
			})
		}(i)
	}
	wg.Wait()

	record, err := store.GetIdentity(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get identity: %v", err)
	}
	if len(record.SessionHistory) != writers {
		t.Errorf("expected %d history entries, got %d (lost update)", writers, len(record.SessionHistory))
	}
}

func TestUpdateIdentityMutationErrorRollsBack(t *testing.T) {
	store := NewMemoryStore()
	storedIdentity(t, store, "alice")

	_, err := store.UpdateIdentity(context.Background(), "alice", func(record *identity.Identity) error {
		record.SessionHistory = append(record.SessionHistory, "evt")
		return zterr.PolicyEvaluation("test", context.Canceled)
	})
	if err == nil {
		t.Fatal("expected mutation error to propagate")
	}

	record, _ := store.GetIdentity(context.Background(), "alice")
	if len(record.SessionHistory) != 0 {
		t.Error("failed mutation must not leave partial state")
	}
}

func TestUpdateIdentityCancelledContextNoMutation(t *testing.T) {
	store := NewMemoryStore()
	storedIdentity(t, store, "alice")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.UpdateIdentity(ctx, "alice", func(record *identity.Identity) error {
		record.SessionHistory = append(record.SessionHistory, "evt")
		return nil
	})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}

	record, _ := store.GetIdentity(context.Background(), "alice")
	if len(record.SessionHistory) != 0 {
		t.Error("cancelled update must not mutate the record")
	}
}

func TestPutDeviceRequiresOwner(t *testing.T) {
	store := NewMemoryStore()

	err := store.PutDevice(context.Background(), &device.Device{ID: "dev-1", IdentityID: "ghost"})
	if !zterr.IsNotFound(err) {
		t.Errorf("expected NotFoundError for unknown owner, got %v", err)
	}
}

func TestPutDeviceOwnerImmutable(t *testing.T) {
	store := NewMemoryStore()
	storedIdentity(t, store, "alice")
	storedIdentity(t, store, "bob")

	record := &device.Device{ID: "dev-1", IdentityID: "alice", Fingerprint: "fp-1"}
	if err := store.PutDevice(context.Background(), record); err != nil {
		t.Fatalf("put device: %v", err)
	}

	hijacked := &device.Device{ID: "dev-1", IdentityID: "bob", Fingerprint: "fp-1"}
	if err := store.PutDevice(context.Background(), hijacked); err == nil {
		t.Error("expected error when changing device owner")
	}
}

func TestSegmentRoundTrip(t *testing.T) {
	store := NewMemoryStore()

	seg, err := netseg.NewSegment("dmz", netseg.LevelHigh, []string{"https"}, []string{"telnet"})
	if err != nil {
		t.Fatalf("new segment: %v", err)
	}
	if err := store.PutSegment(context.Background(), seg); err != nil {
		t.Fatalf("put segment: %v", err)
	}

	loaded, err := store.GetSegment(context.Background(), "dmz")
	if err != nil {
		t.Fatalf("get segment: %v", err)
	}
	if !loaded.Allowed["https"] || !loaded.Blocked["telnet"] {
		t.Errorf("segment lists not preserved: %+v", loaded)
	}

	if _, err := store.GetSegment(context.Background(), "missing"); !zterr.IsNotFound(err) {
		t.Errorf("expected NotFoundError, got %v", err)
	}
}
