package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"snare.dev/pkg/snare/internal/domain"
	domainmocks "snare.dev/pkg/snare/internal/domain/mocks"
	m "snare.dev/pkg/snare/internal/model"
)

func TestDiffCmd_HeadDefaultsToOutputDir(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newDiffCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	mockWorkflow.On("Diff", mock.Anything, domain.DiffArgs{
		Base: m.Path("baseline/run-1.json"),
		Head: m.Path(".snare"),
	}).Return(nil)

	cmd.SetArgs([]string{"diff", "baseline/run-1.json"})
	err := cmd.Execute()
	require.NoError(t, err)

	mockWorkflow.AssertExpectations(t)
}

func TestDiffCmd_ExplicitHead(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newDiffCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	mockWorkflow.On("Diff", mock.Anything, domain.DiffArgs{
		Base: m.Path("main"),
		Head: m.Path("branch"),
	}).Return(nil)

	cmd.SetArgs([]string{"diff", "main", "branch"})
	err := cmd.Execute()
	require.NoError(t, err)

	mockWorkflow.AssertExpectations(t)
}

func TestDiffCmd_RequiresBase(t *testing.T) {
	mockWorkflow := domainmocks.NewMockWorkflow(t)

	cmd := newRootCmd()
	cmd.AddCommand(newDiffCmd())
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	originalWorkflow := workflow
	workflow = mockWorkflow
	defer func() { workflow = originalWorkflow }()

	cmd.SetArgs([]string{"diff"})
	err := cmd.Execute()
	require.Error(t, err)

	mockWorkflow.AssertNotCalled(t, "Diff", mock.Anything, mock.Anything)
}
