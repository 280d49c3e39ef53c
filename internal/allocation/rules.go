// Package allocation is the business-rule layer: it converts parsed
// export users and canonical invoice lines into per-branch monetary
// rows under per-vendor policies, emitting structured prompts when a
// charge cannot be attributed without a human decision.
package allocation

import (
	_ "embed"
	"fmt"

	"apalloc_backend/internal/money"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

// PolicyKind tags the allocation variant for a canonical charge name.
type PolicyKind string

const (
	// FixedBranch posts the whole amount to one designated branch.
	FixedBranch PolicyKind = "fixed_branch"
	// DynamicMatch posts one unit to each export user whose license
	// tokens satisfy the policy's predicate.
	DynamicMatch PolicyKind = "dynamic_match"
	// Sequential assigns one unit to each branch of an ordered list;
	// overflow units become branch prompts.
	Sequential PolicyKind = "sequential"
	// SplitThreshold carves a fixed baseline out for one branch and
	// posts the remainder to the home office.
	SplitThreshold PolicyKind = "split_threshold"
	// Unmapped is the fallback for canonical names with no policy:
	// home office, always with a warning.
	Unmapped PolicyKind = "unmapped"
)

// Policy is one tagged allocation rule. Only the fields of its Kind
// are meaningful.
type Policy struct {
	Kind            PolicyKind `yaml:"kind"`
	Branch          string     `yaml:"branch"`
	Branches        []string   `yaml:"branches"`
	Threshold       string     `yaml:"threshold"`
	ThresholdBranch string     `yaml:"threshold_branch"`
	AnyOf           []string   `yaml:"any_of"`

	threshold decimal.Decimal
}

// Rules is the startup-loaded vendor rule table.
type Rules struct {
	HomeOffice        string            `yaml:"home_office"`
	AdjustmentLicense string            `yaml:"adjustment_license"`
	BranchAliases     map[string]string `yaml:"branch_aliases"`
	KnownBranches     []string          `yaml:"known_branches"`
	Policies          map[string]Policy `yaml:"policies"`
}

// LoadRules parses and validates the embedded rule table.
func LoadRules() (*Rules, error) {
	var r Rules
	if err := yaml.Unmarshal(rulesYAML, &r); err != nil {
		return nil, fmt.Errorf("allocation: parse rules: %w", err)
	}
	if r.HomeOffice == "" {
		return nil, fmt.Errorf("allocation: rules missing home_office")
	}
	for name, p := range r.Policies {
		switch p.Kind {
		case FixedBranch:
			if p.Branch == "" {
				return nil, fmt.Errorf("allocation: policy %q missing branch", name)
			}
		case Sequential:
			if len(p.Branches) == 0 {
				return nil, fmt.Errorf("allocation: policy %q missing branches", name)
			}
		case SplitThreshold:
			threshold, ok := money.Parse(p.Threshold)
			if !ok || p.ThresholdBranch == "" {
				return nil, fmt.Errorf("allocation: policy %q needs threshold and threshold_branch", name)
			}
			p.threshold = threshold
			r.Policies[name] = p
		case DynamicMatch:
			if len(p.AnyOf) == 0 {
				return nil, fmt.Errorf("allocation: policy %q missing any_of tokens", name)
			}
		default:
			return nil, fmt.Errorf("allocation: policy %q has unknown kind %q", name, p.Kind)
		}
	}
	return &r, nil
}

// MustLoadRules is LoadRules for composition roots.
func MustLoadRules() *Rules {
	r, err := LoadRules()
	if err != nil {
		panic(err)
	}
	return r
}

// PolicyFor returns the policy for a canonical name, or the Unmapped
// fallback when none is configured.
func (r *Rules) PolicyFor(canonicalName string) Policy {
	if p, ok := r.Policies[canonicalName]; ok {
		return p
	}
	return Policy{Kind: Unmapped, Branch: r.HomeOffice}
}

// ResolveBranch folds an export office value through the alias table;
// an unknown value passes through, an empty one falls back to the
// home office.
func (r *Rules) ResolveBranch(office string) string {
	raw := money.NormalizeText(office)
	if mapped, ok := r.BranchAliases[raw]; ok {
		return mapped
	}
	if raw == "" {
		return r.HomeOffice
	}
	return raw
}
