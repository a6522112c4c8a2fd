package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"snare.dev/pkg/snare/internal/domain"
	m "snare.dev/pkg/snare/internal/model"
)

func TestCatalog(t *testing.T) {
	catalog := Catalog()

	ids := make(map[string]bool, len(catalog))
	categories := make(map[m.Category]int)

	for _, rule := range catalog {
		assert.False(t, ids[rule.ID], "duplicate rule id %s", rule.ID)
		ids[rule.ID] = true
		categories[rule.Category]++

		assert.NotEmpty(t, rule.Summary, rule.ID)
		assert.NotEqual(t, m.CategoryInternal, rule.Category, rule.ID)
	}

	assert.Len(t, catalog, 25)

	for _, c := range []m.Category{m.CategorySecurity, m.CategoryCorrectness, m.CategoryPerformance, m.CategoryReliability, m.CategoryStyle} {
		assert.Positive(t, categories[c], "no rule in category %s", c)
	}

	reg, err := NewRegistry(Settings{})
	require.NoError(t, err)
	assert.True(t, reg.Frozen())
	assert.Equal(t, len(catalog), reg.Len())
}

func TestRegister_Settings(t *testing.T) {
	t.Run("disabled rules are skipped", func(t *testing.T) {
		reg, err := NewRegistry(Settings{Disabled: map[string]bool{"legacy-var-declaration": true}})
		require.NoError(t, err)

		_, ok := reg.Get("legacy-var-declaration")
		assert.False(t, ok)
		assert.Equal(t, len(Catalog())-1, reg.Len())
	})

	t.Run("threshold drops lower severities", func(t *testing.T) {
		reg, err := NewRegistry(Settings{Threshold: m.SeverityCritical})
		require.NoError(t, err)

		for _, info := range reg.Infos() {
			assert.Equal(t, m.SeverityCritical, info.Severity, info.ID)
		}
	})

	t.Run("overrides apply before the threshold", func(t *testing.T) {
		reg, err := NewRegistry(Settings{
			Threshold: m.SeverityWarning,
			Overrides: map[string]m.Severity{
				"unchecked-unwrap": m.SeverityCritical,
				"sql-injection":    m.SeverityInfo,
			},
		})
		require.NoError(t, err)

		unwrap, ok := reg.Get("unchecked-unwrap")
		require.True(t, ok)
		assert.Equal(t, m.SeverityCritical, unwrap.Severity)

		_, ok = reg.Get("sql-injection")
		assert.False(t, ok)
	})

	t.Run("custom rules can join before freezing", func(t *testing.T) {
		reg := domain.NewRegistry()
		require.NoError(t, Register(reg, Settings{}))

		custom := domain.Rule{
			ID:       "no-console",
			Category: m.CategoryStyle,
			Severity: m.SeverityInfo,
			Kinds:    []m.NodeKind{m.KindCallExpression},
			Check:    domain.Fire(domain.Self(domain.CalleeIs("console.log")), "remove console output"),
		}
		require.NoError(t, reg.Register(custom))

		err := Register(reg, Settings{})
		require.ErrorIs(t, err, domain.ErrDuplicateRuleID)
	})
}

func TestScanIsDeterministicAcrossRuns(t *testing.T) {
	unit := unitOf("javascript", m.DialectServerHandler,
		decl("cache", "let", n(m.KindLiteral, attrs{m.AttrLiteral: "object"})),
		handler(
			call("res.json", ident("user")),
			call("db.query", n(m.KindTemplateString, nil, ident("id"))),
			n(m.KindAssignmentStatement, attrs{m.AttrTarget: "cache.last", m.AttrOperator: "="}, ident("id")),
			call("res.send", str("done")),
		),
	)

	first := scan(t, unit)
	require.NotEmpty(t, first)

	for i := 0; i < 5; i++ {
		assert.Equal(t, first, scan(t, unit))
	}
}
