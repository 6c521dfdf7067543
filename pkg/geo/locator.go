// Package geo resolves request IPs to coarse regions for the risk engine.
package geo

import (
	"context"
	"net"
	"time"

	"github.com/oschwald/geoip2-golang"

	"github.com/ztforge/ztforge/pkg/zterr"
)

// Locator resolves a location signal (an IP address or a region label)
// to an ISO country code. Implementations must honor context deadlines;
// callers treat an unresolvable location conservatively.
type Locator interface {
	Locate(ctx context.Context, location string) (string, error)
}

// MaxMindLocator resolves IPs against a local MaxMind City database.
type MaxMindLocator struct {
	reader  *geoip2.Reader
	timeout time.Duration
}

// NewMaxMindLocator opens the database at path. lookupTimeout bounds
// each Locate call.
func NewMaxMindLocator(path string, lookupTimeout time.Duration) (*MaxMindLocator, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	if lookupTimeout <= 0 {
		lookupTimeout = 2 * time.Second
	}
	return &MaxMindLocator{reader: reader, timeout: lookupTimeout}, nil
}

// Locate resolves an IP to its ISO country code. A non-IP location
// string is assumed to already be a region label and passes through.
func (l *MaxMindLocator) Locate(ctx context.Context, location string) (string, error) {
	ip := net.ParseIP(location)
	if ip == nil {
		return location, nil
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	type lookup struct {
		region string
		err    error
	}
	done := make(chan lookup, 1)

	go func() {
		record, err := l.reader.City(ip)
		if err != nil {
			done <- lookup{err: err}
			return
		}
		done <- lookup{region: record.Country.IsoCode}
	}()

	select {
	case result := <-done:
		if result.err != nil {
			return "", zterr.PolicyEvaluation("geo", result.err)
		}
		return result.region, nil
	case <-ctx.Done():
		return "", zterr.Timeout("geolocation", l.timeout)
	}
}

// Close releases the underlying database reader
func (l *MaxMindLocator) Close() error {
	return l.reader.Close()
}

// StaticLocator maps location strings through a fixed table. Unmapped
// values pass through unchanged. Used when no MaxMind database is
// configured, and in tests.
type StaticLocator struct {
	Regions map[string]string
}

// Locate resolves a location via the static table
func (l *StaticLocator) Locate(_ context.Context, location string) (string, error) {
	if region, ok := l.Regions[location]; ok {
		return region, nil
	}
	return location, nil
}
