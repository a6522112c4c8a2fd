package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "snare.dev/pkg/snare/internal/model"
)

func TestRegistry_Register(t *testing.T) {
	t.Run("indexes rules by kind in registration order", func(t *testing.T) {
		reg := NewRegistry()
		first := callRule("first", m.SeverityWarning, "a")
		second := callRule("second", m.SeverityInfo, "b")
		second.Kinds = append(second.Kinds, m.KindAwait, m.KindCallExpression)

		require.NoError(t, reg.Register(first))
		require.NoError(t, reg.Register(second))

		calls := reg.RulesFor(m.KindCallExpression)
		require.Len(t, calls, 2)
		assert.Equal(t, "first", calls[0].ID)
		assert.Equal(t, "second", calls[1].ID)

		awaits := reg.RulesFor(m.KindAwait)
		require.Len(t, awaits, 1)
		assert.Equal(t, "second", awaits[0].ID)

		assert.Empty(t, reg.RulesFor(m.KindBlock))
		assert.Equal(t, 2, reg.Len())

		got, ok := reg.Get("second")
		require.True(t, ok)
		assert.Equal(t, []m.NodeKind{m.KindCallExpression, m.KindAwait}, got.Kinds)
	})

	t.Run("rejects duplicate ids", func(t *testing.T) {
		reg := NewRegistry()
		require.NoError(t, reg.Register(callRule("dup", m.SeverityWarning, "a")))

		err := reg.Register(callRule("dup", m.SeverityCritical, "b"))
		require.ErrorIs(t, err, ErrDuplicateRuleID)
		assert.Equal(t, 1, reg.Len())
	})

	t.Run("rejects registration after freeze", func(t *testing.T) {
		reg := NewRegistry()
		reg.Freeze()
		reg.Freeze()

		err := reg.Register(callRule("late", m.SeverityWarning, "a"))
		require.ErrorIs(t, err, ErrRegistryFrozen)
		assert.True(t, reg.Frozen())
	})

	t.Run("rejects invalid rules", func(t *testing.T) {
		valid := callRule("ok", m.SeverityWarning, "a")

		tests := []struct {
			name   string
			mutate func(r *Rule)
		}{
			{name: "empty id", mutate: func(r *Rule) { r.ID = "" }},
			{name: "no kinds", mutate: func(r *Rule) { r.Kinds = nil }},
			{name: "unknown kind", mutate: func(r *Rule) { r.Kinds = []m.NodeKind{"Lambda"} }},
			{name: "no check", mutate: func(r *Rule) { r.Check = nil }},
			{name: "unknown severity", mutate: func(r *Rule) { r.Severity = "fatal" }},
			{name: "internal category", mutate: func(r *Rule) { r.Category = m.CategoryInternal }},
			{name: "unknown category", mutate: func(r *Rule) { r.Category = "cosmetic" }},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rule := valid
				tt.mutate(&rule)

				require.ErrorIs(t, NewRegistry().Register(rule), ErrInvalidRule)
			})
		}
	})
}

func TestRegistry_MustRegisterPanicsOnDuplicate(t *testing.T) {
	reg := NewRegistry()

	assert.Panics(t, func() {
		reg.MustRegister(callRule("x", m.SeverityInfo, "a"), callRule("x", m.SeverityInfo, "b"))
	})
}

func TestRegistry_Infos(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(callRule("one", m.SeverityCritical, "a"))

	infos := reg.Infos()
	require.Len(t, infos, 1)
	assert.Equal(t, m.RuleInfo{
		ID:       "one",
		Category: m.CategoryCorrectness,
		Severity: m.SeverityCritical,
		Kinds:    []m.NodeKind{m.KindCallExpression},
		Summary:  "one fired",
	}, infos[0])

	rules := reg.Rules()
	rules[0].ID = "mutated"

	got, ok := reg.Get("one")
	require.True(t, ok)
	assert.Equal(t, "one", got.ID)
}
