package skims

import (
	"context"
	"daysim/internal/domain"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"
)

var testParcels = []domain.Parcel{
	{ParcelID: 1, ZoneID: 1, Location: domain.Coordinates{X: 0, Y: 0}},
	{ParcelID: 2, ZoneID: 1, Location: domain.Coordinates{X: 200, Y: 0}},
	{ParcelID: 3, ZoneID: 2, Location: domain.Coordinates{X: 8000, Y: 0}},
	{ParcelID: 4, ZoneID: 3, Location: domain.Coordinates{X: 40000, Y: 0}},
}

// countingCache is an in-memory ports.SkimCache.
type countingCache struct {
	mu   sync.Mutex
	rows map[skimKey]domain.ZoneSkim
	puts int
}

func (c *countingCache) GetMany(_ context.Context, mode domain.Mode, origin int, dests []int) (map[int]domain.ZoneSkim, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := map[int]domain.ZoneSkim{}
	for _, d := range dests {
		if s, ok := c.rows[skimKey{mode, origin, d}]; ok {
			out[d] = s
		}
	}
	return out, nil
}

func (c *countingCache) PutMany(_ context.Context, skims []domain.ZoneSkim) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rows == nil {
		c.rows = map[skimKey]domain.ZoneSkim{}
	}
	for _, s := range skims {
		c.rows[skimKey{s.Mode, s.OriginZone, s.DestinationZone}] = s
		c.puts++
	}
	return nil
}

func TestZoneSkimProviderPaths(t *testing.T) {
	p, err := NewZoneSkimProvider(context.Background(), zaptest.NewLogger(t), testParcels, DefaultSpeeds(), nil)
	if err != nil {
		t.Fatalf("NewZoneSkimProvider: %v", err)
	}

	walk := p.Path(domain.ModeWalk, 1, 2, 600)
	if !walk.Available() || walk.Distance() != DefaultSpeeds().IntrazonalMiles {
		t.Fatalf("intrazonal walk = %+v", walk)
	}
	if p.Path(domain.ModeWalk, 1, 4, 600).Available() {
		t.Fatalf("walk to a zone 40km away should be unavailable")
	}
	if p.Path(domain.ModeTransit, 1, 2, 600).Available() {
		t.Fatalf("intrazonal transit should be unavailable")
	}
	if !p.Path(domain.ModeTransit, 1, 3, 600).Available() {
		t.Fatalf("transit to zone 2 should be available")
	}

	offPeak := p.Path(domain.ModeSOV, 1, 3, 600)
	peak := p.Path(domain.ModeSOV, 1, 3, 8*60+1)
	if peak.Time() <= offPeak.Time() {
		t.Fatalf("peak time %v not above off-peak %v", peak.Time(), offPeak.Time())
	}
	if _, ok := offPeak.(domain.RoadPath); !ok {
		t.Fatalf("sov path is %T, want domain.RoadPath", offPeak)
	}

	hov := p.Path(domain.ModeHOV, 1, 3, 600)
	if hov.GeneralizedTime() >= offPeak.GeneralizedTime() {
		t.Fatalf("hov generalized time %v should be below sov %v", hov.GeneralizedTime(), offPeak.GeneralizedTime())
	}

	if p.Path(domain.ModeSOV, 1, 99, 600).Available() {
		t.Fatalf("unknown parcel should be unavailable")
	}
	if z, ok := p.Zone(3); !ok || z != 2 {
		t.Fatalf("Zone(3) = %d, %v", z, ok)
	}
}

func TestZoneSkimProviderUsesCache(t *testing.T) {
	cache := &countingCache{}
	ctx := context.Background()
	logger := zaptest.NewLogger(t)

	first, err := NewZoneSkimProvider(ctx, logger, testParcels, DefaultSpeeds(), cache)
	if err != nil {
		t.Fatalf("first build: %v", err)
	}
	// 3 zones, 5 modes.
	if cache.puts != 45 {
		t.Fatalf("puts = %d, want 45", cache.puts)
	}

	second, err := NewZoneSkimProvider(ctx, logger, testParcels, DefaultSpeeds(), cache)
	if err != nil {
		t.Fatalf("second build: %v", err)
	}
	if cache.puts != 45 {
		t.Fatalf("second build wrote %d rows, want none", cache.puts-45)
	}
	if first.Path(domain.ModeBike, 1, 3, 600) != second.Path(domain.ModeBike, 1, 3, 600) {
		t.Fatalf("cached path differs from built path")
	}
}

func TestMockSkimProvider(t *testing.T) {
	p := NewMockSkimProvider([]MockPath{
		{From: 1, To: 2, Result: domain.NonMotorizedPath{PathMode: domain.ModeWalk, OK: true, Minutes: 12, Miles: 0.6}},
	})

	if got := p.Path(domain.ModeWalk, 1, 2, 0); !got.Available() || got.Time() != 12 {
		t.Fatalf("walk 1->2 = %+v", got)
	}
	if got := p.Path(domain.ModeBike, 1, 2, 0); got.Available() {
		t.Fatalf("bike 1->2 should be unavailable")
	}
	if got := p.Path(domain.ModeTransit, 1, 2, 0); got.Mode() != domain.ModeTransit {
		t.Fatalf("unavailable transit path mode = %v", got.Mode())
	}
}
