package policy

import (
	"context"
	"reflect"
	"testing"
)

func testPolicy() *AccessPolicy {
	return NewAccessPolicy(DefaultTierOrder, map[Tier][]string{
		TierFree:       {"gpt-4o-mini"},
		TierBasic:      {"gpt-4o", "claude-haiku"},
		TierPro:        {"claude-sonnet", "gemini-pro"},
		TierEnterprise: {"claude-opus"},
	})
}

func TestPermittedModelsFlattensLowerTiers(t *testing.T) {
	p := testPolicy()

	cases := []struct {
		tier Tier
		want []string
	}{
		{TierFree, []string{"gpt-4o-mini"}},
		{TierBasic, []string{"claude-haiku", "gpt-4o", "gpt-4o-mini"}},
		{TierPro, []string{"claude-haiku", "claude-sonnet", "gemini-pro", "gpt-4o", "gpt-4o-mini"}},
		{TierEnterprise, []string{"claude-haiku", "claude-opus", "claude-sonnet", "gemini-pro", "gpt-4o", "gpt-4o-mini"}},
	}
	for _, tc := range cases {
		got := p.PermittedModels(tc.tier)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("PermittedModels(%s) = %v, want %v", tc.tier, got, tc.want)
		}
	}
}

func TestPermittedModelsUnknownTier(t *testing.T) {
	p := testPolicy()
	if got := p.PermittedModels("platinum"); got != nil {
		t.Fatalf("PermittedModels(platinum) = %v, want nil", got)
	}
}

func TestAllowed(t *testing.T) {
	p := testPolicy()
	if !p.Allowed(TierBasic, "gpt-4o-mini") {
		t.Fatalf("basic should inherit free models")
	}
	if p.Allowed(TierBasic, "claude-opus") {
		t.Fatalf("basic must not reach enterprise models")
	}
	if !p.Allowed("  ENTERPRISE ", "claude-opus") {
		t.Fatalf("tier comparison should be case and whitespace tolerant")
	}
}

func TestMinTierFor(t *testing.T) {
	p := testPolicy()
	tier, ok := p.MinTierFor("claude-sonnet")
	if !ok || tier != TierPro {
		t.Fatalf("MinTierFor(claude-sonnet) = %v %v, want pro true", tier, ok)
	}
	if _, ok := p.MinTierFor("nonexistent"); ok {
		t.Fatalf("MinTierFor(nonexistent) should report false")
	}
}

func TestStaticDirectoryDefaultsToLowest(t *testing.T) {
	d := NewStaticDirectory(map[string]Tier{"u1": TierPro}, TierFree)

	tier, err := d.TierOf(context.Background(), "u1")
	if err != nil || tier != TierPro {
		t.Fatalf("TierOf(u1) = %v %v, want pro", tier, err)
	}
	tier, err = d.TierOf(context.Background(), "unknown")
	if err != nil || tier != TierFree {
		t.Fatalf("TierOf(unknown) = %v %v, want free", tier, err)
	}
}
