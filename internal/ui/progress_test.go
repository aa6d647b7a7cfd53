package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tephra/internal/driver"
)

func TestStageEventsAdvanceActiveFiles(t *testing.T) {
	m, ok := NewProgressModel("analyzing", []string{"a.yaml", "b.yaml"}, nil).(*progressModel)
	require.True(t, ok)

	m.applyEvent(driver.Event{File: "a.yaml", Stage: driver.StageLoad, Status: driver.StatusWorking})
	m.applyEvent(driver.Event{File: "b.yaml", Stage: driver.StageDecode, Status: driver.StatusError})
	assert.Equal(t, "loading", m.items[0].status)
	assert.Equal(t, "error", m.items[1].status)

	m.applyEvent(driver.Event{Stage: driver.StageAnalyze, Status: driver.StatusWorking})
	assert.Equal(t, "analyzing", m.stageLabel)
	assert.Equal(t, "analyzing", m.items[0].status)
	assert.Equal(t, "error", m.items[1].status, "failed files stay failed")
	assert.InDelta(t, (0.8+1.0)/2, m.percent(), 1e-9)

	m.applyEvent(driver.Event{File: "a.yaml", Stage: driver.StageSave, Status: driver.StatusDone})
	assert.Equal(t, "done", m.items[0].status)
	assert.InDelta(t, 1.0, m.percent(), 1e-9)
}

func TestUnknownFileIsIgnored(t *testing.T) {
	m, ok := NewProgressModel("analyzing", []string{"a.yaml"}, nil).(*progressModel)
	require.True(t, ok)
	assert.Nil(t, m.applyEvent(driver.Event{File: "zzz.yaml", Stage: driver.StageLoad, Status: driver.StatusWorking}))
	assert.Equal(t, "queued", m.items[0].status)
}

func TestViewListsFiles(t *testing.T) {
	m := NewProgressModel("analyzing", []string{"stubs/a.yaml"}, nil)
	assert.Contains(t, m.View(), "stubs/a.yaml")
	assert.Contains(t, m.View(), "queued")
	assert.Empty(t, NewProgressModel("analyzing", nil, nil).View())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd...", truncate("abcdefghijkl", 7))
	assert.Equal(t, "ab", truncate("abcdef", 2))
}
