package services

import (
	"daysim/internal/adapters/skims"
	"daysim/internal/domain"
	"daysim/internal/sampling"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildUniverseSegments(t *testing.T) {
	u, err := BuildUniverse(testParcels(), 0)
	require.NoError(t, err)
	assert.Equal(t, len(domain.Purposes()), u.Len())

	school, err := u.Stratum(sampling.StratumKey{Segment: int(domain.PurposeSchool)})
	require.NoError(t, err)
	assert.InDelta(t, 700, school.Total(), 1e-9)
	assert.Zero(t, school.Probability(5))
	assert.InDelta(t, 500.0/700, school.Probability(3), 1e-12)
}

func TestBuildUniverseDistanceDecay(t *testing.T) {
	u, err := BuildUniverse(testParcels(), 0.5)
	require.NoError(t, err)
	// Four purposes, each with a segment stratum and three zone strata.
	assert.Equal(t, 16, u.Len())

	near, err := u.Stratum(sampling.StratumKey{Segment: int(domain.PurposeWork), OriginZone: 1})
	require.NoError(t, err)
	far, err := u.Stratum(sampling.StratumKey{Segment: int(domain.PurposeWork), OriginZone: 3})
	require.NoError(t, err)

	// Parcel 2 sits in zone 1, parcel 5 in zone 3.
	assert.Greater(t, near.Probability(2), far.Probability(2))
	assert.Greater(t, far.Probability(5), near.Probability(5))

	// Unknown zones fall back to the segment stratum.
	fallback, err := u.Stratum(sampling.StratumKey{Segment: int(domain.PurposeWork), OriginZone: 99})
	require.NoError(t, err)
	assert.InDelta(t, 1260, fallback.Total(), 1e-9)
}

func TestNewEnvironmentValidates(t *testing.T) {
	provider := skims.NewMockSkimProvider(nil)

	_, err := NewEnvironment(ModelTables{}, testParcels(), provider, Options{SampleSize: 5})
	assert.Error(t, err)

	_, err = NewEnvironment(testTables(nil), testParcels(), nil, Options{SampleSize: 5})
	assert.Error(t, err)

	_, err = NewEnvironment(testTables(nil), testParcels(), provider, Options{})
	assert.Error(t, err)

	env, err := NewEnvironment(testTables(nil), testParcels(), provider, Options{SampleSize: 5})
	require.NoError(t, err)
	assert.Equal(t, 0.7, env.nonMotorizedTheta)
	assert.Equal(t, 0.6, env.autoTheta)
	assert.Len(t, env.Parcels, 6)
}

func TestTimeAlternatives(t *testing.T) {
	if len(timeAlternatives) != 300 {
		t.Fatalf("len(timeAlternatives) = %d, want 300", len(timeAlternatives))
	}

	id := timeAlternativeID(481, 1020)
	hp := timeAlternatives[id]
	if hp.arrive != 8 || hp.depart != 16 {
		t.Fatalf("alternative %d = %+v, want 8..16", id, hp)
	}
	if hp.arrivalMinute() != 481 || hp.departureMinute() != 1020 {
		t.Fatalf("minutes = %d..%d, want 481..1020", hp.arrivalMinute(), hp.departureMinute())
	}
	if got := timeAlternativeID(1020, 481); got != -1 {
		t.Fatalf("reversed span id = %d, want -1", got)
	}
}
