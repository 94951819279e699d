// Package policy maps subscription tiers to the set of models a tier may use.
// Higher tiers inherit every lower tier's models.
package policy

import (
	"context"
	"sort"
	"strings"
)

// Tier is a subscription level. The order of tiers is static configuration;
// it is never mutated at runtime.
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// DefaultTierOrder lists tiers from lowest to highest.
var DefaultTierOrder = []Tier{TierFree, TierBasic, TierPro, TierEnterprise}

// AccessPolicy resolves which model identifiers a tier may use.
type AccessPolicy struct {
	order  []Tier
	rank   map[Tier]int
	curate map[Tier][]string
}

// NewAccessPolicy builds a policy from the tier order and each tier's curated
// model list. Unknown tiers resolve to an empty set.
func NewAccessPolicy(order []Tier, curated map[Tier][]string) *AccessPolicy {
	if len(order) == 0 {
		order = DefaultTierOrder
	}
	rank := make(map[Tier]int, len(order))
	for i, t := range order {
		rank[t] = i
	}
	curate := make(map[Tier][]string, len(curated))
	for t, models := range curated {
		curate[t] = append([]string(nil), models...)
	}
	return &AccessPolicy{order: order, rank: rank, curate: curate}
}

// PermittedModels flattens the hierarchy: the union of the tier's own curated
// list and every strictly-lower tier's list, sorted and de-duplicated.
func (p *AccessPolicy) PermittedModels(tier Tier) []string {
	level, ok := p.rank[normalizeTier(tier)]
	if !ok {
		return nil
	}

	seen := make(map[string]struct{})
	for _, t := range p.order[:level+1] {
		for _, m := range p.curate[t] {
			seen[m] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Allowed reports whether the tier may use the given model.
func (p *AccessPolicy) Allowed(tier Tier, modelID string) bool {
	level, ok := p.rank[normalizeTier(tier)]
	if !ok {
		return false
	}
	for _, t := range p.order[:level+1] {
		for _, m := range p.curate[t] {
			if m == modelID {
				return true
			}
		}
	}
	return false
}

// Lowest returns the bottom tier of the hierarchy.
func (p *AccessPolicy) Lowest() Tier {
	return p.order[0]
}

// MinTierFor returns the lowest tier whose flattened set contains the model.
func (p *AccessPolicy) MinTierFor(modelID string) (Tier, bool) {
	for _, t := range p.order {
		for _, m := range p.curate[t] {
			if m == modelID {
				return t, true
			}
		}
	}
	return "", false
}

func normalizeTier(t Tier) Tier {
	return Tier(strings.ToLower(strings.TrimSpace(string(t))))
}

// Directory resolves an owner's current subscription tier. Billing is an
// external collaborator; owners without an active subscription resolve to
// the lowest tier.
type Directory interface {
	TierOf(ctx context.Context, ownerID string) (Tier, error)
}

// StaticDirectory is an in-process Directory backed by a fixed map.
type StaticDirectory struct {
	tiers  map[string]Tier
	lowest Tier
}

func NewStaticDirectory(tiers map[string]Tier, lowest Tier) *StaticDirectory {
	cp := make(map[string]Tier, len(tiers))
	for k, v := range tiers {
		cp[k] = normalizeTier(v)
	}
	return &StaticDirectory{tiers: cp, lowest: lowest}
}

func (d *StaticDirectory) TierOf(_ context.Context, ownerID string) (Tier, error) {
	if t, ok := d.tiers[ownerID]; ok {
		return t, nil
	}
	return d.lowest, nil
}
