package fairness

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/gig-earnings-audit/constants"
)

// Baseline holds the thresholds a statement is judged against.
type Baseline struct {
	MinPayout           decimal.Decimal // 0 disables the check
	MaxPenaltyRatio     decimal.Decimal // penalties / gross pay
	MaxSinglePenalty    decimal.Decimal // 0 disables the check
	MinRating           decimal.Decimal
	RatingDropThreshold decimal.Decimal // first rating minus last rating
	Tolerance           decimal.Decimal // shortfalls up to this are ignored
}

// DefaultBaseline applies to platforms with no entry of their own.
func DefaultBaseline() Baseline {
	return Baseline{
		MinPayout:           decimal.Zero,
		MaxPenaltyRatio:     decimal.RequireFromString("0.25"),
		MaxSinglePenalty:    decimal.Zero,
		MinRating:           decimal.RequireFromString("4.0"),
		RatingDropThreshold: decimal.RequireFromString("0.5"),
		Tolerance:           decimal.RequireFromString("1.00"),
	}
}

// Baselines maps canonical platforms to thresholds.
type Baselines struct {
	Default   Baseline
	Platforms map[constants.Platform]Baseline
}

// DefaultBaselines ships a few per-platform limits in each platform's home currency.
func DefaultBaselines() Baselines {
	def := DefaultBaseline()
	with := func(f func(*Baseline)) Baseline {
		b := def
		f(&b)
		return b
	}
	return Baselines{
		Default: def,
		Platforms: map[constants.Platform]Baseline{
			constants.Uber: with(func(b *Baseline) {
				b.MaxPenaltyRatio = decimal.RequireFromString("0.20")
			}),
			constants.Deliveroo: with(func(b *Baseline) {
				b.MaxSinglePenalty = decimal.NewFromInt(50)
			}),
			constants.DoorDash: with(func(b *Baseline) {
				b.MaxSinglePenalty = decimal.NewFromInt(50)
			}),
			constants.Swiggy: with(func(b *Baseline) {
				b.MaxSinglePenalty = decimal.NewFromInt(500)
			}),
			constants.Zomato: with(func(b *Baseline) {
				b.MaxSinglePenalty = decimal.NewFromInt(500)
			}),
		},
	}
}

// For returns the baseline for a free-text platform name.
func (b Baselines) For(platform string) Baseline {
	p, ok := constants.CanonicalizePlatform(platform)
	if !ok {
		return b.Default
	}
	if bl, ok := b.Platforms[p]; ok {
		return bl
	}
	return b.Default
}

type baselineFile struct {
	Defaults  baselineOverride            `yaml:"defaults"`
	Platforms map[string]baselineOverride `yaml:"platforms"`
}

type baselineOverride struct {
	MinPayout           *float64 `yaml:"min_payout"`
	MaxPenaltyRatio     *float64 `yaml:"max_penalty_ratio"`
	MaxSinglePenalty    *float64 `yaml:"max_single_penalty"`
	MinRating           *float64 `yaml:"min_rating"`
	RatingDropThreshold *float64 `yaml:"rating_drop_threshold"`
	Tolerance           *float64 `yaml:"tolerance"`
}

func (o baselineOverride) applyTo(b Baseline) Baseline {
	set := func(dst *decimal.Decimal, v *float64) {
		if v != nil {
			*dst = decimal.NewFromFloat(*v)
		}
	}
	set(&b.MinPayout, o.MinPayout)
	set(&b.MaxPenaltyRatio, o.MaxPenaltyRatio)
	set(&b.MaxSinglePenalty, o.MaxSinglePenalty)
	set(&b.MinRating, o.MinRating)
	set(&b.RatingDropThreshold, o.RatingDropThreshold)
	set(&b.Tolerance, o.Tolerance)
	return b
}

// ParseBaselines overlays YAML overrides on DefaultBaselines. Platform keys
// are canonicalised, so "Uber Eats" configures uber. Fields left out keep
// their defaults.
func ParseBaselines(data []byte) (Baselines, error) {
	var f baselineFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Baselines{}, fmt.Errorf("parse baselines: %w", err)
	}
	out := DefaultBaselines()
	oldDefault := out.Default
	out.Default = f.Defaults.applyTo(out.Default)
	// built-in platform entries inherit changed defaults for fields they don't set themselves
	for p, bl := range out.Platforms {
		out.Platforms[p] = rebase(bl, oldDefault, out.Default)
	}
	for name, o := range f.Platforms {
		p, ok := constants.CanonicalizePlatform(name)
		if !ok && !strings.EqualFold(strings.TrimSpace(name), string(constants.Other)) {
			return Baselines{}, fmt.Errorf("parse baselines: unknown platform %q (known: %s)",
				name, strings.Join(constants.PlatformsAsStringSlice(), ", "))
		}
		base, exists := out.Platforms[p]
		if !exists {
			base = out.Default
		}
		out.Platforms[p] = o.applyTo(base)
	}
	return out, nil
}

// LoadBaselines reads a YAML file; an empty path yields the defaults.
func LoadBaselines(path string) (Baselines, error) {
	if path == "" {
		return DefaultBaselines(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Baselines{}, fmt.Errorf("read baselines %s: %w", path, err)
	}
	return ParseBaselines(data)
}

func rebase(bl, oldDef, newDef Baseline) Baseline {
	pick := func(v, o, n decimal.Decimal) decimal.Decimal {
		if v.Equal(o) {
			return n
		}
		return v
	}
	bl.MinPayout = pick(bl.MinPayout, oldDef.MinPayout, newDef.MinPayout)
	bl.MaxPenaltyRatio = pick(bl.MaxPenaltyRatio, oldDef.MaxPenaltyRatio, newDef.MaxPenaltyRatio)
	bl.MaxSinglePenalty = pick(bl.MaxSinglePenalty, oldDef.MaxSinglePenalty, newDef.MaxSinglePenalty)
	bl.MinRating = pick(bl.MinRating, oldDef.MinRating, newDef.MinRating)
	bl.RatingDropThreshold = pick(bl.RatingDropThreshold, oldDef.RatingDropThreshold, newDef.RatingDropThreshold)
	bl.Tolerance = pick(bl.Tolerance, oldDef.Tolerance, newDef.Tolerance)
	return bl
}
