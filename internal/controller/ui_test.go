package controller

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	m "snare.dev/pkg/snare/internal/model"
)

func TestNewUI(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetOut(&bytes.Buffer{})

	assert.IsType(t, &TUI{}, NewUI(cmd, true))
	assert.IsType(t, &SimpleUI{}, NewUI(cmd, false))
}

func TestIsTTY(t *testing.T) {
	assert.False(t, IsTTY(nil))

	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	assert.False(t, IsTTY(f))
}

func TestStartOptions(t *testing.T) {
	tests := []struct {
		option StartOption
		want   StartMode
		name   string
	}{
		{option: WithScanMode(), want: ModeScan, name: "scan"},
		{option: WithCheckMode(), want: ModeCheck, name: "check"},
		{option: WithListMode(), want: ModeList, name: "rules"},
		{option: WithDiffMode(), want: ModeDiff, name: "diff"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newStartConfig([]StartOption{tt.option})
			assert.Equal(t, tt.want, cfg.Mode())
			assert.Equal(t, tt.name, cfg.Mode().String())
		})
	}

	assert.Equal(t, ModeScan, newStartConfig(nil).Mode())
	assert.Equal(t, "unknown", StartMode(99).String())
}

func TestFormatMismatch(t *testing.T) {
	report := sampleCheckReport()
	span := report.Units[1].Findings[0].Span

	assert.Equal(t, "excess-detections total: expected 1, observed 3",
		formatMismatch(m.Mismatch{Kind: m.MismatchExcess, Category: "total", Expected: 1, Observed: 3}))
	assert.Equal(t, "unexpected-finding missing-key at 12:3-12:8: list item without key",
		formatMismatch(m.Mismatch{Kind: m.MismatchUnexpected, RuleID: "missing-key", Span: &span, Detail: "list item without key"}))
	assert.Equal(t, "missing-oracle: no oracle entry for unit",
		formatMismatch(m.Mismatch{Kind: m.MismatchMissingOracle, Detail: "no oracle entry for unit"}))
}
