package aggregate

import (
	"bytes"
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/psantana5/nodeend/internal/jobs"
	"github.com/psantana5/nodeend/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, end, id, nodes string) jobs.Record {
	t.Helper()
	et, err := jobs.ParseEndTime(end, time.UTC)
	require.NoError(t, err)
	return jobs.Record{EndTime: et, JobID: id, NodeSpec: nodes, Aux: "aux-" + id}
}

func TestAggregateSingleRecord(t *testing.T) {
	state := New(nil).Aggregate([]jobs.Record{
		record(t, "2021-06-26T11:52:00", "3640405", "bell-b000"),
	})

	require.Len(t, state.Nodes, 1)
	entry, ok := state.Lookup("bell-b000")
	require.True(t, ok)
	assert.Equal(t, "3640405", entry.JobID)
	assert.Equal(t, "2021-06-26T11:52:00", entry.EndTime.String())
	assert.Equal(t, "aux-3640405", entry.Aux)
}

func TestAggregateLaterEndWins(t *testing.T) {
	state := New(nil).Aggregate([]jobs.Record{
		record(t, "2021-06-27T00:00:00", "2", "n01"),
		record(t, "2021-06-26T00:00:00", "1", "n01"),
	})

	entry, _ := state.Lookup("n01")
	assert.Equal(t, "2", entry.JobID)
	assert.Equal(t, "2021-06-27T00:00:00", entry.EndTime.String())
	assert.Equal(t, "aux-2", entry.Aux)
}

func TestAggregateExpandsRanges(t *testing.T) {
	state := New(nil).Aggregate([]jobs.Record{
		record(t, "2021-06-26T11:52:00", "77", "bell-a[001-002]"),
	})

	assert.Equal(t, []string{"bell-a001", "bell-a002"}, state.Names())
	a, _ := state.Lookup("bell-a001")
	b, _ := state.Lookup("bell-a002")
	assert.Equal(t, a, b)
	assert.Equal(t, "77", a.JobID)
}

func TestAggregateUnknownEndDominates(t *testing.T) {
	state := New(nil).Aggregate([]jobs.Record{
		record(t, "Unknown", "5", "n01"),
		record(t, "2030-01-01T00:00:00", "6", "n01"),
	})

	entry, _ := state.Lookup("n01")
	assert.Equal(t, "5", entry.JobID)
	assert.False(t, entry.EndTime.Known)
}

func TestAggregateTieBreaksOnJobID(t *testing.T) {
	forward := New(nil).Aggregate([]jobs.Record{
		record(t, "2021-06-26T11:52:00", "9", "n01"),
		record(t, "2021-06-26T11:52:00", "10", "n01"),
	})
	backward := New(nil).Aggregate([]jobs.Record{
		record(t, "2021-06-26T11:52:00", "10", "n01"),
		record(t, "2021-06-26T11:52:00", "9", "n01"),
	})

	f, _ := forward.Lookup("n01")
	b, _ := backward.Lookup("n01")
	assert.Equal(t, "10", f.JobID)
	assert.Equal(t, f, b)
}

func TestAggregateSkipsBadNodeSpec(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.NewLogger(logging.WARN, false)
	logger.SetOutput(&logs)

	state := New(logger).Aggregate([]jobs.Record{
		record(t, "2021-06-26T11:52:00", "1", "n[01-"),
		record(t, "2021-06-26T11:52:00", "2", "n02"),
	})

	assert.Equal(t, 1, state.Skipped)
	assert.Equal(t, []string{"n02"}, state.Names())
	assert.Contains(t, logs.String(), "skipping job with unreadable node list")
	assert.Contains(t, logs.String(), "job_id=1")
	assert.Contains(t, logs.String(), "component=aggregate")
}

func TestAggregateDoesNotReadNodeFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes")
	require.NoError(t, os.WriteFile(path, []byte("n01\n"), 0644))

	state := New(nil).Aggregate([]jobs.Record{
		record(t, "2021-06-26T11:52:00", "1", path),
	})
	assert.Equal(t, []string{path}, state.Names())
	_, ok := state.Lookup("n01")
	assert.False(t, ok)
}

func TestAggregateCustomExpander(t *testing.T) {
	agg := &Aggregator{Expand: func(spec string) ([]string, error) {
		if spec == "boom" {
			return nil, errors.New("boom")
		}
		return strings.Split(spec, "+"), nil
	}}

	state := agg.Aggregate([]jobs.Record{
		record(t, "2021-06-26T11:52:00", "1", "x+y"),
		record(t, "2021-06-26T11:52:00", "2", "boom"),
	})
	assert.Equal(t, []string{"x", "y"}, state.Names())
	assert.Equal(t, 1, state.Skipped)
}

func TestAggregateEmpty(t *testing.T) {
	state := New(nil).Aggregate(nil)
	assert.Empty(t, state.Nodes)
	assert.Empty(t, state.Names())
}

func TestAggregateOrderIndependent(t *testing.T) {
	records := []jobs.Record{
		record(t, "2021-06-26T10:00:00", "100", "n[01-04]"),
		record(t, "2021-06-26T12:00:00", "101", "n[03-05]"),
		record(t, "2021-06-26T12:00:00", "102", "n05"),
		record(t, "2021-06-26T09:00:00", "103", "n01,n06"),
		record(t, "Unknown", "104", "n06"),
		record(t, "2021-06-26T11:00:00", "105", "n02"),
		record(t, "2021-06-26T11:00:00", "105", "n02"),
	}
	want := New(nil).Aggregate(records).Nodes

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		shuffled := append([]jobs.Record(nil), records...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })

		got := New(nil).Aggregate(shuffled).Nodes
		require.Equal(t, want, got, "permutation %d", i)
	}

	assert.Equal(t, "100", want["n01"].JobID)
	assert.Equal(t, "105", want["n02"].JobID)
	assert.Equal(t, "101", want["n03"].JobID)
	assert.Equal(t, "102", want["n05"].JobID)
	assert.Equal(t, "104", want["n06"].JobID)
}
