package controller

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	m "snare.dev/pkg/snare/internal/model"
)

func TestTUI_DisplayRunInfoAndProgress(t *testing.T) {
	var buf bytes.Buffer

	tui := NewTUI(&buf)
	ctx := context.Background()
	report := sampleCheckReport()

	require.NoError(t, tui.Start(ctx, WithCheckMode()))
	tui.DisplayRunInfo(ctx, RunInfo{Units: 2, Threads: 3, Mode: m.RunCheck, Compare: m.ModeAtLeast})
	tui.DisplayUnitResult(ctx, report.Units[0])
	tui.DisplayUnitResult(ctx, report.Units[1])

	out := buf.String()
	assert.Contains(t, out, headerTitle)
	assert.Contains(t, out, "Checking 2 units with 3 worker(s)")
	assert.Contains(t, out, "compare: at-least")
	assert.Contains(t, out, "[1/2] api/users")
	assert.Contains(t, out, "[2/2] ui/cart 2 finding(s) PASS")
}

func TestTUI_DisplayReport_SmallPrintsDirectly(t *testing.T) {
	var buf bytes.Buffer

	require.NoError(t, NewTUI(&buf).DisplayReport(context.Background(), sampleCheckReport()))

	out := buf.String()
	assert.Contains(t, out, "Run run-42 (check)")
	assert.Contains(t, out, "missing-key: list item without key")
	assert.Contains(t, out, "missing-detections security: expected 2, observed 0")
	assert.Contains(t, out, "Units: 2 | Findings: 2 | Failed: 1")
	assert.NotContains(t, out, "Lines ")
}

func TestTUI_DisplayRulesAndDiff(t *testing.T) {
	var buf bytes.Buffer

	tui := NewTUI(&buf)

	require.NoError(t, tui.DisplayRules(context.Background(), nil))
	assert.Contains(t, buf.String(), "No rules registered")

	buf.Reset()
	require.NoError(t, tui.DisplayDiff(context.Background(), ""))
	assert.Contains(t, buf.String(), "No differences")

	buf.Reset()
	require.NoError(t, tui.DisplayDiff(context.Background(), "--- a\n+++ b\n-x\n+y\n"))
	assert.Contains(t, buf.String(), "+y")
}

func longPager(n int) pagerModel {
	model := newPagerModel("lines")
	for i := 0; i < n; i++ {
		model.lines = append(model.lines, fmt.Sprintf("  line %02d", i))
	}

	model.summary = []string{"  summary"}
	model.height = 20

	return model
}

func press(t *testing.T, model pagerModel, keys ...string) pagerModel {
	t.Helper()

	for _, k := range keys {
		var msg tea.KeyMsg

		switch k {
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "pgdown":
			msg = tea.KeyMsg{Type: tea.KeyPgDown}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}

		updated, _ := model.Update(msg)
		model = updated.(pagerModel)
	}

	return model
}

func TestPagerModel_Pagination(t *testing.T) {
	model := longPager(30)

	// 20 rows minus 10 reserved lines leaves 10 visible items.
	assert.True(t, model.needsPagination())
	assert.Equal(t, 10, model.itemsPerPage())
	assert.Equal(t, 20, model.maxOffset())

	view := model.View()
	assert.Contains(t, view, "line 00")
	assert.NotContains(t, view, "line 10")
	assert.Contains(t, view, "Lines 1-10 of 30")

	model = press(t, model, "j", "j")
	assert.Equal(t, 2, model.offset)

	model = press(t, model, "k", "k", "k")
	assert.Equal(t, 0, model.offset)

	model = press(t, model, "G")
	assert.Equal(t, 20, model.offset)
	assert.Contains(t, model.View(), "line 29")

	model = press(t, model, "g", "pgdown")
	assert.Equal(t, 10, model.offset)

	model = press(t, model, "d", "d")
	assert.Equal(t, 20, model.offset)

	model = press(t, model, "u")
	assert.Equal(t, 10, model.offset)
}

func TestPagerModel_Quit(t *testing.T) {
	tests := []struct {
		name string
		msg  tea.KeyMsg
	}{
		{name: "q", msg: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}},
		{name: "esc", msg: tea.KeyMsg{Type: tea.KeyEsc}},
		{name: "ctrl+c", msg: tea.KeyMsg{Type: tea.KeyCtrlC}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			updated, cmd := longPager(30).Update(tt.msg)

			model := updated.(pagerModel)
			assert.True(t, model.quitting)
			require.NotNil(t, cmd)
			assert.Empty(t, model.View())
		})
	}
}

func TestPagerModel_WindowResize(t *testing.T) {
	model := longPager(30)

	updated, _ := model.Update(tea.WindowSizeMsg{Width: 100, Height: 60})
	model = updated.(pagerModel)

	assert.Equal(t, 100, model.width)
	assert.False(t, model.needsPagination())
	assert.Equal(t, 0, model.maxOffset())
	assert.Equal(t, 30, strings.Count(model.View(), "line "))
}
