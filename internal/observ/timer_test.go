package observ

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimerReport(t *testing.T) {
	tm := NewTimer()
	assert.Equal(t, Report{}, tm.Report())

	load := tm.Begin("load")
	time.Sleep(time.Millisecond)
	tm.End(load, "2 files")
	scan := tm.Begin("scan")
	tm.End(scan, "")
	tm.End(42, "ignored")

	r := tm.Report()
	require.Len(t, r.Phases, 2)
	assert.Equal(t, "load", r.Phases[0].Name)
	assert.Equal(t, "2 files", r.Phases[0].Note)
	assert.GreaterOrEqual(t, tm.Elapsed(load), time.Millisecond)
	assert.Zero(t, tm.Elapsed(-1))
	assert.InDelta(t, r.Phases[0].DurationMS+r.Phases[1].DurationMS, r.TotalMS, 1e-6)

	s := tm.Summary()
	assert.True(t, strings.HasPrefix(s, "timings:\n"))
	assert.Contains(t, s, "// 2 files")
	assert.Contains(t, s, "total")
}
