package services

import (
	"context"
	"daysim/internal/domain"
	"daysim/internal/platform/obs"
	"daysim/internal/ports"
	"errors"
	"fmt"
	"math"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// maxShadowPrice bounds the absolute price of any parcel.
const maxShadowPrice = 5.0

// DestinationTargets spreads total tours of purpose over parcels in
// proportion to their size.
func DestinationTargets(parcels []domain.Parcel, purpose domain.Purpose, total int) map[int]float64 {
	sum := 0.0
	for _, p := range parcels {
		sum += p.Size(purpose)
	}
	out := make(map[int]float64, len(parcels))
	if sum <= 0 {
		return out
	}
	for _, p := range parcels {
		if s := p.Size(purpose); s > 0 {
			out[p.ParcelID] = float64(total) * s / sum
		}
	}
	return out
}

// UpdateShadowPrices moves each price by step*ln(target/simulated). A parcel
// that attracted nothing counts as half a tour so the log stays finite.
func UpdateShadowPrices(prices map[int]float64, targets map[int]float64, simulated map[int]int, step float64) map[int]float64 {
	out := make(map[int]float64, len(targets))
	for parcel, target := range targets {
		n := float64(simulated[parcel])
		if n == 0 {
			n = 0.5
		}
		p := prices[parcel] + step*math.Log(target/n)
		out[parcel] = math.Max(-maxShadowPrice, math.Min(maxShadowPrice, p))
	}
	return out
}

// ShadowPriceBalancer carries destination shadow prices from pass to pass so
// simulated destination totals approach parcel-size targets.
type ShadowPriceBalancer struct {
	store  ports.ShadowPriceStore
	step   float64
	logger *zap.Logger
}

func NewShadowPriceBalancer(store ports.ShadowPriceStore, step float64, logger *zap.Logger) (*ShadowPriceBalancer, error) {
	if store == nil {
		return nil, errors.New("new shadow price balancer: store is nil")
	}
	if step <= 0 || math.IsNaN(step) {
		return nil, fmt.Errorf("new shadow price balancer: step %v must be positive", step)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShadowPriceBalancer{store: store, step: step, logger: logger}, nil
}

// LoadShadowPrices copies stored prices of every purpose into env.
func LoadShadowPrices(ctx context.Context, store ports.ShadowPriceStore, env *Environment) error {
	for _, purpose := range domain.Purposes() {
		prices, err := store.LoadShadowPrices(ctx, purpose)
		if err != nil {
			return fmt.Errorf("load shadow prices: purpose=%s: %w", purpose, err)
		}
		env.SetShadowPrices(purpose, prices)
	}
	return nil
}

// Rebalance updates env's prices from a simulation pass and saves them.
// Every purpose is attempted; failures are combined.
func (b *ShadowPriceBalancer) Rebalance(ctx context.Context, env *Environment, parcels []domain.Parcel, res PassResult) (err error) {
	defer obs.Time(ctx, b.logger, "shadow_prices.rebalance")(&err)

	for _, purpose := range domain.Purposes() {
		counts := res.DestinationCounts[purpose]
		total := 0
		for _, n := range counts {
			total += n
		}
		if total == 0 {
			continue
		}

		targets := DestinationTargets(parcels, purpose, total)
		prices := UpdateShadowPrices(env.ShadowPrices[purpose], targets, counts, b.step)
		env.SetShadowPrices(purpose, prices)

		if saveErr := b.store.SaveShadowPrices(ctx, purpose, prices); saveErr != nil {
			err = multierr.Append(err, fmt.Errorf("rebalance: purpose=%s: %w", purpose, saveErr))
		}
	}
	return err
}
