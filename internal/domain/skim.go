package domain

// ZoneSkim is the free-flow level of service between two zone centroids for
// one mode. Peak factors and costs are applied when a path is requested.
type ZoneSkim struct {
	Mode            Mode
	OriginZone      int
	DestinationZone int
	Minutes         float64
	Miles           float64
}
