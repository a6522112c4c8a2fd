package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// TotalKey is the oracle key that targets the overall finding count.
const TotalKey = "total"

// Classification tags a fixture as expected to contain defects or not.
type Classification string

const (
	// Buggy fixtures must reach their expected minimum counts.
	Buggy Classification = "buggy"
	// Clean fixtures must also stay free of critical and warning findings.
	Clean Classification = "clean"
)

// CompareMode selects how observed counts are checked against expectations.
type CompareMode string

const (
	// ModeAtLeast passes when observed >= expected.
	ModeAtLeast CompareMode = "at-least"
	// ModeExact passes only when observed == expected.
	ModeExact CompareMode = "exact"
)

// ParseCompareMode converts a config value into a CompareMode.
func ParseCompareMode(value string) (CompareMode, error) {
	switch m := CompareMode(strings.ToLower(strings.TrimSpace(value))); m {
	case "", "minimum", ModeAtLeast:
		return ModeAtLeast, nil
	case ModeExact:
		return m, nil
	default:
		return "", fmt.Errorf("unknown compare mode %q", value)
	}
}

// ExpectedOracle is the labeled expectation for one source unit.
type ExpectedOracle struct {
	Unit           string         `json:"unit"           yaml:"-"`
	Classification Classification `json:"classification" yaml:"classification"`
	Expect         map[string]int `json:"expect"         yaml:"expect"`
}

// Validate checks the entry is usable by the comparator.
func (o ExpectedOracle) Validate() error {
	var errs []error

	if o.Classification != Buggy && o.Classification != Clean {
		errs = append(errs, fmt.Errorf("classification %q is neither buggy nor clean", o.Classification))
	}

	for key, n := range o.Expect {
		if n < 0 {
			errs = append(errs, fmt.Errorf("expected count for %q is negative", key))
		}

		if strings.EqualFold(key, TotalKey) {
			continue
		}

		if _, err := ParseCategory(key); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Keys returns the expectation keys in a stable order with "total" last.
func (o ExpectedOracle) Keys() []string {
	keys := make([]string, 0, len(o.Expect))
	for k := range o.Expect {
		keys = append(keys, k)
	}

	sort.Slice(keys, func(i, j int) bool {
		ti, tj := strings.EqualFold(keys[i], TotalKey), strings.EqualFold(keys[j], TotalKey)
		if ti != tj {
			return tj
		}

		return keys[i] < keys[j]
	})

	return keys
}

// OracleManifest is the fixture metadata file keyed by unit id.
type OracleManifest struct {
	Version  int                       `yaml:"version"`
	Mode     CompareMode               `yaml:"mode,omitempty"`
	Fixtures map[string]ExpectedOracle `yaml:"fixtures"`
}

// Lookup returns the oracle entry for a unit, or nil when none exists.
func (m OracleManifest) Lookup(unit string) *ExpectedOracle {
	entry, ok := m.Fixtures[unit]
	if !ok {
		return nil
	}

	entry.Unit = unit

	return &entry
}

// MismatchKind classifies why a verdict failed.
type MismatchKind string

const (
	// MismatchMissing means fewer detections than expected.
	MismatchMissing MismatchKind = "missing-detections"
	// MismatchExcess means more detections than expected in exact mode.
	MismatchExcess MismatchKind = "excess-detections"
	// MismatchUnexpected is a blocking finding on a clean fixture.
	MismatchUnexpected MismatchKind = "unexpected-finding"
	// MismatchMissingOracle means the unit had no usable oracle entry.
	MismatchMissingOracle MismatchKind = "missing-oracle"
)

// Mismatch is one reason a verdict failed.
type Mismatch struct {
	Kind     MismatchKind `json:"kind"`
	Category string       `json:"category,omitempty"`
	Expected int          `json:"expected"`
	Observed int          `json:"observed"`
	RuleID   string       `json:"rule_id,omitempty"`
	Span     *Span        `json:"span,omitempty"`
	Detail   string       `json:"detail,omitempty"`
}

// CategoryDelta compares observed and expected counts for one key.
type CategoryDelta struct {
	Category string `json:"category"`
	Expected int    `json:"expected"`
	Observed int    `json:"observed"`
	Delta    int    `json:"delta"`
	// Tracked is false for categories the oracle does not mention.
	Tracked bool `json:"tracked"`
}

// Verdict is the regression result for one unit.
type Verdict struct {
	Unit           string          `json:"unit"`
	Classification Classification  `json:"classification,omitempty"`
	Pass           bool            `json:"pass"`
	Deltas         []CategoryDelta `json:"deltas"`
	Mismatches     []Mismatch      `json:"mismatches"`
}
