// Package storage provides snapshot stores for identities, devices,
// and network segments.
package storage

import (
	"context"

	"github.com/ztforge/ztforge/pkg/device"
	"github.com/ztforge/ztforge/pkg/identity"
	"github.com/ztforge/ztforge/pkg/netseg"
)

// IdentityStore persists identity records. Update serializes mutations
// per identity: concurrent updates to the same identity never interleave.
type IdentityStore interface {
	GetIdentity(ctx context.Context, id string) (*identity.Identity, error)
	PutIdentity(ctx context.Context, record *identity.Identity) error
	UpdateIdentity(ctx context.Context, id string, mutate func(*identity.Identity) error) (*identity.Identity, error)
	ListIdentities(ctx context.Context) ([]*identity.Identity, error)
}

// DeviceStore persists device records. The owning identity must exist
// when a device is stored; the reference is immutable afterwards.
type DeviceStore interface {
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	PutDevice(ctx context.Context, record *device.Device) error
	ListDevices(ctx context.Context) ([]*device.Device, error)
}

// SegmentStore persists network segment configuration
type SegmentStore interface {
	GetSegment(ctx context.Context, id string) (*netseg.Segment, error)
	PutSegment(ctx context.Context, record *netseg.Segment) error
	ListSegments(ctx context.Context) ([]*netseg.Segment, error)
}

// Store is the combined persistence interface consumed by the core
type Store interface {
	IdentityStore
	DeviceStore
	SegmentStore
	Close() error
}
