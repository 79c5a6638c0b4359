package location

import (
	"context"
	"sync"

	"github.com/cmlabs-hris/attendance-agent/internal/domain/attendance"
)

// Provider produces the current device coordinate. Implementations may block
// (a GPS receiver warming up) and must honour ctx.
type Provider interface {
	Locate(ctx context.Context) (attendance.Location, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (attendance.Location, error)

func (f ProviderFunc) Locate(ctx context.Context) (attendance.Location, error) {
	return f(ctx)
}

// Reporter is implemented by providers that accept fixes pushed by the UI shell.
type Reporter interface {
	Report(loc attendance.Location) error
}

// DeviceProvider holds the last fix known for this device: a fixed kiosk
// coordinate from configuration, or whatever the shell last reported.
type DeviceProvider struct {
	mu  sync.RWMutex
	fix *attendance.Location
}

// NewDeviceProvider returns a provider seeded with fix (nil means no fix yet).
func NewDeviceProvider(fix *attendance.Location) *DeviceProvider {
	p := &DeviceProvider{}
	if fix != nil {
		copied := *fix
		p.fix = &copied
	}
	return p
}

func (p *DeviceProvider) Locate(ctx context.Context) (attendance.Location, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Location{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.fix == nil {
		return attendance.Location{}, attendance.ErrNoFix
	}
	return *p.fix, nil
}

// Report replaces the stored fix.
func (p *DeviceProvider) Report(loc attendance.Location) error {
	if loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 || loc.Accuracy < 0 {
		return attendance.ErrCoordinatesInvalid
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fix = &loc
	return nil
}
