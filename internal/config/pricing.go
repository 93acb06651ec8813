package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ModelPricing holds per-million-token prices for a provider or model.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// AveragePerMTok returns the mean of the input and output rates. Generation
// events carry a single token count, so cost is computed at this average.
func (p ModelPricing) AveragePerMTok() float64 {
	return (p.InputPerMTok + p.OutputPerMTok) / 2
}

type modelPricingVersion struct {
	EffectiveFrom time.Time
	Pricing       ModelPricing
}

// DefaultProvider is used when a provider has no entry in the rate table.
const DefaultProvider = "gemini"

// defaultProviderPricing maps provider names to the rates used when a
// model has no entry of its own.
var defaultProviderPricing = map[string]ModelPricing{
	"gemini":    {InputPerMTok: 0.10, OutputPerMTok: 0.20},
	"openai":    {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"anthropic": {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	"local":     {},
}

// defaultModelPricing maps model base names to their pricing.
var defaultModelPricing = map[string]ModelPricing{
	"gemini-2.0-flash-lite": {InputPerMTok: 0.10, OutputPerMTok: 0.20},
	"gemini-2.0-flash":      {InputPerMTok: 0.10, OutputPerMTok: 0.40},
	"gemini-1.5-flash":      {InputPerMTok: 0.075, OutputPerMTok: 0.30},
	"gemini-1.5-pro":        {InputPerMTok: 1.25, OutputPerMTok: 5.00},
	"gpt-4o-mini":           {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"gpt-4o":                {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"claude-3-5-haiku":      {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	"claude-sonnet-4":       {InputPerMTok: 3.00, OutputPerMTok: 15.00},
}

// RateTable resolves provider and model rates. It is immutable once built
// and safe for concurrent use.
type RateTable struct {
	providers map[string]ModelPricing
	// models holds effective-dated versions sorted by EffectiveFrom
	// ascending. The first version of a built-in model has a zero date.
	models map[string][]modelPricingVersion
}

var builtinRates = DefaultRates()

// DefaultRates returns a rate table holding the built-in rates.
func DefaultRates() *RateTable {
	r := &RateTable{
		providers: make(map[string]ModelPricing, len(defaultProviderPricing)),
		models:    make(map[string][]modelPricingVersion, len(defaultModelPricing)),
	}
	for name, p := range defaultProviderPricing {
		r.providers[name] = p
	}
	for name, p := range defaultModelPricing {
		r.models[name] = []modelPricingVersion{{Pricing: p}}
	}
	return r
}

// NewRateTable builds the built-in rates with user overrides applied.
// A provider override replaces that provider's rates. A model override
// without effective_from replaces every version of the model; with one,
// it takes effect from that date and earlier events keep the rates they
// were priced at. A model with no built-in rates has nothing to keep, so a
// dated override of it applies to every date.
func NewRateTable(p PricingOverrides) (*RateTable, error) {
	r := DefaultRates()
	for name, o := range p.Providers {
		key := strings.ToLower(strings.TrimSpace(name))
		r.providers[key] = o.apply(r.providers[key])
	}

	for name, o := range p.Overrides {
		key := r.NormalizeModelName(name)
		versions := r.models[key]
		if o.EffectiveFrom == "" {
			if len(versions) == 0 {
				versions = []modelPricingVersion{{}}
			}
			for i := range versions {
				versions[i].Pricing = o.apply(versions[i].Pricing)
			}
			r.models[key] = versions
			continue
		}

		from, err := time.ParseInLocation("2006-01-02", o.EffectiveFrom, time.Local)
		if err != nil {
			return nil, fmt.Errorf("pricing override %q: invalid effective_from %q: %w", name, o.EffectiveFrom, err)
		}
		var base ModelPricing
		if len(versions) > 0 {
			base = selectVersion(versions, from)
		}
		versions = append(versions, modelPricingVersion{EffectiveFrom: from, Pricing: o.apply(base)})
		sort.SliceStable(versions, func(i, j int) bool {
			return versions[i].EffectiveFrom.Before(versions[j].EffectiveFrom)
		})
		r.models[key] = versions
	}
	return r, nil
}

func (r *RateTable) hasModel(model string) bool {
	_, ok := r.models[model]
	return ok
}

// NormalizeModelName lowercases a model identifier and strips version or
// date suffixes the rate table does not know about.
// e.g., "gemini-2.0-flash-lite-001" -> "gemini-2.0-flash-lite"
// e.g., "claude-sonnet-4-20250514" -> "claude-sonnet-4"
func (r *RateTable) NormalizeModelName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.TrimPrefix(name, "models/")
	if r.hasModel(name) {
		return name
	}

	parts := strings.Split(name, "-")
	if len(parts) >= 2 {
		last := parts[len(parts)-1]
		if isAllDigits(last) || last == "latest" {
			candidate := strings.Join(parts[:len(parts)-1], "-")
			if r.hasModel(candidate) {
				return candidate
			}
		}
	}

	return name
}

// NormalizeModelName normalizes against the built-in rates.
func NormalizeModelName(raw string) string {
	return builtinRates.NormalizeModelName(raw)
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Lookup resolves rates at the given time. Model entries win over provider
// entries; unknown providers fall back to DefaultProvider, reported by a
// false second value. A zero at selects the latest version.
func (r *RateTable) Lookup(provider, model string, at time.Time) (ModelPricing, bool) {
	if model != "" {
		if versions, ok := r.models[r.NormalizeModelName(model)]; ok && len(versions) > 0 {
			return selectVersion(versions, at), true
		}
	}

	if p, ok := r.providers[strings.ToLower(strings.TrimSpace(provider))]; ok {
		return p, true
	}
	return r.providers[DefaultProvider], false
}

func selectVersion(versions []modelPricingVersion, at time.Time) ModelPricing {
	if at.IsZero() {
		return versions[len(versions)-1].Pricing
	}
	selected := versions[0].Pricing
	for _, v := range versions {
		if v.EffectiveFrom.IsZero() || !at.Before(v.EffectiveFrom) {
			selected = v.Pricing
			continue
		}
		break
	}
	return selected
}

// Cost computes the estimated cost in USD of one generation call made at
// the given time. Input and output tokens are not tracked separately, so
// the average of the two rates is applied to the total.
func (r *RateTable) Cost(provider, model string, at time.Time, tokensUsed int64) float64 {
	if tokensUsed <= 0 {
		return 0
	}
	pricing, _ := r.Lookup(provider, model, at)
	cost := float64(tokensUsed) * pricing.AveragePerMTok() / 1_000_000
	if cost < 0 {
		return 0
	}
	return cost
}

// LookupPricing returns the latest built-in rates for a provider/model pair.
func LookupPricing(provider, model string) (ModelPricing, bool) {
	return builtinRates.Lookup(provider, model, time.Time{})
}

// CalculateGenerationCost computes the cost of one call at the latest
// built-in rates.
func CalculateGenerationCost(provider, model string, tokensUsed int64) float64 {
	return builtinRates.Cost(provider, model, time.Time{}, tokensUsed)
}

func (o ModelPricingOverride) apply(base ModelPricing) ModelPricing {
	if o.InputPerMTok != nil {
		base.InputPerMTok = *o.InputPerMTok
	}
	if o.OutputPerMTok != nil {
		base.OutputPerMTok = *o.OutputPerMTok
	}
	return base
}
