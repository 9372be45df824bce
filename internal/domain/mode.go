package domain

import "fmt"

type Mode int

const (
	ModeNone Mode = iota
	ModeWalk
	ModeBike
	ModeSOV
	ModeHOV
	ModeTransit
)

var modeNames = map[Mode]string{
	ModeNone:    "none",
	ModeWalk:    "walk",
	ModeBike:    "bike",
	ModeSOV:     "sov",
	ModeHOV:     "hov",
	ModeTransit: "transit",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("mode(%d)", int(m))
}

func ParseMode(s string) (Mode, error) {
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return ModeNone, fmt.Errorf("parse mode: unknown mode %q", s)
}

// Modes lists the travel modes (ModeNone excluded) in alternative order.
func Modes() []Mode {
	return []Mode{ModeWalk, ModeBike, ModeSOV, ModeHOV, ModeTransit}
}

// PathResult is the level-of-service for one origin/destination/time/mode.
// The set of implementations is closed: each mode family has its own type,
// selected by Mode rather than discovered at runtime.
type PathResult interface {
	Mode() Mode
	Available() bool
	// Minutes of in-vehicle (or walking/cycling) time.
	Time() float64
	// Distance in miles.
	Distance() float64
	// Time plus monetized cost and out-of-vehicle penalties, in minutes.
	GeneralizedTime() float64
	isPathResult()
}

// Walk and bike paths.
type NonMotorizedPath struct {
	PathMode Mode
	OK       bool
	Minutes  float64
	Miles    float64
}

func (p NonMotorizedPath) Mode() Mode               { return p.PathMode }
func (p NonMotorizedPath) Available() bool          { return p.OK }
func (p NonMotorizedPath) Time() float64            { return p.Minutes }
func (p NonMotorizedPath) Distance() float64        { return p.Miles }
func (p NonMotorizedPath) GeneralizedTime() float64 { return p.Minutes }
func (NonMotorizedPath) isPathResult()              {}

// Drive-alone and shared-ride paths.
type RoadPath struct {
	PathMode    Mode
	OK          bool
	Minutes     float64
	Miles       float64
	CostCents   float64
	Occupancy   float64
	ValueOfTime float64 // cents per minute
}

func (p RoadPath) Mode() Mode        { return p.PathMode }
func (p RoadPath) Available() bool   { return p.OK }
func (p RoadPath) Time() float64     { return p.Minutes }
func (p RoadPath) Distance() float64 { return p.Miles }

func (p RoadPath) GeneralizedTime() float64 {
	occ := p.Occupancy
	if occ < 1 {
		occ = 1
	}
	if p.ValueOfTime <= 0 {
		return p.Minutes
	}
	return p.Minutes + p.CostCents/occ/p.ValueOfTime
}
func (RoadPath) isPathResult() {}

// Walk-access transit paths.
type TransitPath struct {
	OK             bool
	InVehicle      float64
	Wait           float64
	Access         float64
	Miles          float64
	FareCents      float64
	ValueOfTime    float64
	WaitMultiplier float64
}

func (p TransitPath) Mode() Mode        { return ModeTransit }
func (p TransitPath) Available() bool   { return p.OK }
func (p TransitPath) Time() float64     { return p.InVehicle }
func (p TransitPath) Distance() float64 { return p.Miles }

func (p TransitPath) GeneralizedTime() float64 {
	mult := p.WaitMultiplier
	if mult <= 0 {
		mult = 1
	}
	g := p.InVehicle + mult*(p.Wait+p.Access)
	if p.ValueOfTime > 0 {
		g += p.FareCents / p.ValueOfTime
	}
	return g
}
func (TransitPath) isPathResult() {}

// UnavailablePath is returned when no path exists for a mode.
func UnavailablePath(m Mode) PathResult {
	switch m {
	case ModeTransit:
		return TransitPath{}
	case ModeSOV, ModeHOV:
		return RoadPath{PathMode: m}
	default:
		return NonMotorizedPath{PathMode: m}
	}
}
