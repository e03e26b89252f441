// Package settings reads the global default rates used by the costing
// engine. Values live in the key-value setting store as JSON-encoded
// strings. A missing or malformed value degrades to zero with a warning;
// costing must stay usable no matter what is stored here.
package settings

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/spooldash/spooldash/internal/costing"
)

// Keys consumed from the setting store.
const (
	KeyEnergyCostPerKwh   = "energy_cost_per_kwh"
	KeyLaborCostPerHour   = "labor_cost_per_hour"
	KeyFailureRate        = "failure_rate"
	KeyMarkupRate         = "markup_default_rate"
	KeyConsumablesDefault = "consumables_default"
)

// Store is the key-value collaborator the accessor reads from.
type Store interface {
	GetSetting(ctx context.Context, key string) (value string, ok bool, err error)
}

// Settings exposes typed getters over the store.
type Settings struct {
	store Store
	log   *zap.Logger
}

// New returns an accessor reading from store.
func New(store Store, log *zap.Logger) *Settings {
	return &Settings{store: store, log: log}
}

// EnergyCostPerKwh returns the default energy rate in currency per kWh.
func (s *Settings) EnergyCostPerKwh(ctx context.Context) float64 {
	return s.number(ctx, KeyEnergyCostPerKwh)
}

// LaborCostPerHour returns the default labor rate in currency per hour.
func (s *Settings) LaborCostPerHour(ctx context.Context) float64 {
	return s.number(ctx, KeyLaborCostPerHour)
}

// FailureRate returns the default failure rate as a factor (0.05 = 5%).
func (s *Settings) FailureRate(ctx context.Context) float64 {
	return s.number(ctx, KeyFailureRate)
}

// MarkupRate returns the default markup rate as a factor.
func (s *Settings) MarkupRate(ctx context.Context) float64 {
	return s.number(ctx, KeyMarkupRate)
}

// ConsumablesCost returns the default consumables cost. The stored value is
// either a flat number or an array whose elements are numbers or objects
// with a "cost" field; the total is the sum of all resolved costs. Elements
// that resolve to neither count as zero.
func (s *Settings) ConsumablesCost(ctx context.Context) float64 {
	raw, ok := s.fetch(ctx, KeyConsumablesDefault)
	if !ok {
		return 0
	}

	var flat float64
	if err := json.Unmarshal([]byte(raw), &flat); err == nil {
		return flat
	}

	var list []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		s.log.Warn("malformed consumables setting, using 0",
			zap.String("key", KeyConsumablesDefault), zap.String("value", raw))
		return 0
	}

	total := 0.0
	for i, item := range list {
		var n float64
		if err := json.Unmarshal(item, &n); err == nil {
			total += n
			continue
		}
		var obj struct {
			Cost *float64 `json:"cost"`
		}
		if err := json.Unmarshal(item, &obj); err == nil && obj.Cost != nil {
			total += *obj.Cost
			continue
		}
		s.log.Warn("unparseable consumables entry, counting as 0",
			zap.String("key", KeyConsumablesDefault), zap.Int("index", i))
	}
	return total
}

// Defaults bundles all default rates for one engine run.
func (s *Settings) Defaults(ctx context.Context) costing.Rates {
	return costing.Rates{
		EnergyCostPerKwh: s.EnergyCostPerKwh(ctx),
		LaborCostPerHour: s.LaborCostPerHour(ctx),
		ConsumablesCost:  s.ConsumablesCost(ctx),
		FailureRate:      s.FailureRate(ctx),
		MarkupRate:       s.MarkupRate(ctx),
	}
}

func (s *Settings) number(ctx context.Context, key string) float64 {
	raw, ok := s.fetch(ctx, key)
	if !ok {
		return 0
	}
	var v float64
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		s.log.Warn("malformed numeric setting, using 0",
			zap.String("key", key), zap.String("value", raw))
		return 0
	}
	return v
}

func (s *Settings) fetch(ctx context.Context, key string) (string, bool) {
	raw, ok, err := s.store.GetSetting(ctx, key)
	if err != nil {
		s.log.Warn("failed to read setting, using 0", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return raw, ok
}
