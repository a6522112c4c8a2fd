package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	m "snare.dev/pkg/snare/internal/model"
)

var (
	// ErrDuplicateRuleID is returned when a rule id is registered twice.
	ErrDuplicateRuleID = errors.New("duplicate rule id")
	// ErrInvalidRule is returned for rules missing an id, kinds or check.
	ErrInvalidRule = errors.New("invalid rule")
	// ErrRegistryFrozen is returned when registering after Freeze.
	ErrRegistryFrozen = errors.New("rule registry is frozen")
	// ErrRegistryNotFrozen is returned when matching starts before Freeze.
	ErrRegistryNotFrozen = errors.New("rule registry is not frozen")
)

// Registry indexes rules by the node kinds they target. It is filled once,
// frozen, and then shared read-only by every scan.
type Registry struct {
	mu     sync.Mutex
	frozen atomic.Bool
	rules  []Rule
	byID   map[string]int
	byKind map[m.NodeKind][]Rule
}

// NewRegistry creates an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]int),
		byKind: make(map[m.NodeKind][]Rule),
	}
}

// Register adds a rule. Rules keep their registration order per node kind.
func (r *Registry) Register(rule Rule) error {
	if err := rule.validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return fmt.Errorf("%w: cannot register %s", ErrRegistryFrozen, rule.ID)
	}

	if _, ok := r.byID[rule.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateRuleID, rule.ID)
	}

	rule.Kinds = dedupKinds(rule.Kinds)

	r.byID[rule.ID] = len(r.rules)
	r.rules = append(r.rules, rule)

	for _, k := range rule.Kinds {
		r.byKind[k] = append(r.byKind[k], rule)
	}

	slog.Debug("registered rule", "rule", rule.ID, "category", rule.Category, "severity", rule.Severity)

	return nil
}

// MustRegister registers every rule and panics on the first error.
func (r *Registry) MustRegister(rules ...Rule) {
	for _, rule := range rules {
		if err := r.Register(rule); err != nil {
			panic(err)
		}
	}
}

// Freeze ends the registration phase. It is safe to call more than once.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.CompareAndSwap(false, true) {
		slog.Debug("rule registry frozen", "rules", len(r.rules))
	}
}

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// RulesFor returns the rules targeting kind in registration order. The
// returned slice is shared and must not be modified.
func (r *Registry) RulesFor(kind m.NodeKind) []Rule {
	return r.byKind[kind]
}

// Rules returns every rule in registration order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	copy(out, r.rules)

	return out
}

// Get returns the rule registered under id.
func (r *Registry) Get(id string) (Rule, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Rule{}, false
	}

	return r.rules[idx], true
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	return len(r.rules)
}

// Infos returns listing metadata for every rule in registration order.
func (r *Registry) Infos() []m.RuleInfo {
	out := make([]m.RuleInfo, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule.Info())
	}

	return out
}

func dedupKinds(kinds []m.NodeKind) []m.NodeKind {
	seen := make(map[m.NodeKind]struct{}, len(kinds))
	out := make([]m.NodeKind, 0, len(kinds))

	for _, k := range kinds {
		if _, ok := seen[k]; ok {
			continue
		}

		seen[k] = struct{}{}
		out = append(out, k)
	}

	return out
}
