// Package canonical maps raw product and line descriptions onto the
// small fixed vocabulary of canonical charge names that joins exports,
// invoices, and allocation rows. The vocabulary is data, not code:
// per-vendor alias tables and ordered substring heuristics loaded from
// an embedded file at startup.
package canonical

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"apalloc_backend/internal/money"

	"gopkg.in/yaml.v3"
)

//go:embed vocab.yaml
var vocabYAML []byte

// Heuristic is one ordered fuzzy rule: the normalized token must
// contain every Contains fragment and none of the Excludes fragments.
// Equals, when set, requires the whole token to match.
type Heuristic struct {
	Name     string   `yaml:"name"`
	Contains []string `yaml:"contains"`
	Excludes []string `yaml:"excludes"`
	Equals   string   `yaml:"equals"`
}

type vendorVocab struct {
	Aliases    map[string]string `yaml:"aliases"`
	Heuristics []Heuristic       `yaml:"heuristics"`
}

type vocabFile struct {
	Vendors map[string]vendorVocab `yaml:"vendors"`
}

// Vocabulary resolves raw tokens per vendor.
type Vocabulary struct {
	vendors map[string]vendorVocab
}

var directSuffixRe = regexp.MustCompile(`(?i)\s*\(direct[^)]*\)\s*`)

// Load parses the embedded vocabulary. Called once at startup.
func Load() (*Vocabulary, error) {
	var f vocabFile
	if err := yaml.Unmarshal(vocabYAML, &f); err != nil {
		return nil, fmt.Errorf("canonical: parse vocabulary: %w", err)
	}
	return &Vocabulary{vendors: f.Vendors}, nil
}

// MustLoad is Load for composition roots that cannot continue without
// a vocabulary.
func MustLoad() *Vocabulary {
	v, err := Load()
	if err != nil {
		panic(err)
	}
	return v
}

// NormalizeToken folds a raw product token for lookup: the export
// variants carry a "(DIRECT ...)" channel suffix that never appears in
// invoice wording.
func NormalizeToken(raw string) string {
	cleaned := directSuffixRe.ReplaceAllString(raw, " ")
	return strings.ToLower(money.NormalizeText(cleaned))
}

// Canonicalize maps a raw token to its canonical charge name. Exact
// alias lookup wins; the heuristics run in declaration order. ok is
// false when nothing matches — callers surface that as a deduplicated
// warning and exclude the charge from totals, never drop it silently.
func (v *Vocabulary) Canonicalize(vendor, raw string) (string, bool) {
	normalized := NormalizeToken(raw)
	if normalized == "" {
		return "", false
	}

	vocab, ok := v.vendors[vendor]
	if !ok {
		return "", false
	}
	if name, ok := vocab.Aliases[normalized]; ok {
		return name, true
	}

	for _, h := range vocab.Heuristics {
		if h.Equals != "" {
			if normalized == h.Equals {
				return h.Name, true
			}
			continue
		}
		matched := true
		for _, frag := range h.Contains {
			if !strings.Contains(normalized, frag) {
				matched = false
				break
			}
		}
		if !matched {
			continue
		}
		for _, frag := range h.Excludes {
			if strings.Contains(normalized, frag) {
				matched = false
				break
			}
		}
		if matched {
			return h.Name, true
		}
	}
	return "", false
}
