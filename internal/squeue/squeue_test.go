package squeue

import (
	"bytes"
	"context"
	"errors"
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

const sampleOutput = `2021-06-26T11:52:00 3640405 bell-b000 alice      lab        train model      1     8    4-00:00:00  RUNNING  1-02:03:04
2021-06-27T08:00:00 3640406 bell-a[001-002] bob        physics    sim               2    256  2-00:00:00  RUNNING    10:00:00
`

type fakeRunner struct {
	name   string
	args   []string
	stdout string
	stderr string
	err    error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name = name
	f.args = args
	return []byte(f.stdout), []byte(f.stderr), f.err
}

func TestParse(t *testing.T) {
	p := &Parser{Location: time.UTC}
	records, err := p.Parse(strings.NewReader(sampleOutput))
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "3640405", first.JobID)
	assert.Equal(t, "bell-b000", first.NodeSpec)
	assert.Equal(t, "2021-06-26T11:52:00", first.EndTime.Raw)
	assert.True(t, first.EndTime.Known)
	assert.Equal(t, "alice      lab        train model      1     8    4-00:00:00  RUNNING  1-02:03:04", first.Aux)

	assert.Equal(t, "bell-a[001-002]", records[1].NodeSpec)
}

func TestParseSkipsBannersAndBadLines(t *testing.T) {
	input := "CLUSTER: bell\n\n" +
		"2021-06-26T11:52:00 1 n01\n" +
		"only-two fields\n" +
		"whenever 2 n02 alice\n" +
		"Unknown 3 n03 bob\n"

	var logs bytes.Buffer
	logger := logging.NewLogger(logging.WARN, false)
	logger.SetOutput(&logs)

	p := &Parser{Location: time.UTC, Logger: logger}
	records, err := p.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "1", records[0].JobID)
	assert.Empty(t, records[0].Aux)
	assert.Equal(t, "3", records[1].JobID)
	assert.False(t, records[1].EndTime.Known)

	assert.Equal(t, 2, strings.Count(logs.String(), "dropping unreadable squeue line"))
}

func TestLeadingFields(t *testing.T) {
	fields, rest := leadingFields("  a\tb  c   d  e ", 3)
	assert.Equal(t, []string{"a", "b", "c"}, fields)
	assert.Equal(t, "d  e ", rest)

	fields, rest = leadingFields("a b", 3)
	assert.Equal(t, []string{"a", "b"}, fields)
	assert.Empty(t, rest)
}

func TestArgs(t *testing.T) {
	args := Args(jobs.Filter{
		Account:   "lab",
		Partition: "gpu",
		User:      " alice ",
		Nodelist:  "bell-a[001-002]",
	})

	assert.Equal(t, []string{
		"--noheader",
		"--states=RUNNING",
		"--format=" + Format,
		"--account=lab",
		"--partition=gpu",
		"--user=alice",
		"--nodelist=bell-a[001-002]",
	}, args)
}

func TestCommandJobs(t *testing.T) {
	runner := &fakeRunner{stdout: sampleOutput}
	cmd := NewCommand("/usr/bin/squeue", nil)
	cmd.Runner = runner
	cmd.Parser.Location = time.UTC

	records, err := cmd.Jobs(context.Background(), jobs.Filter{QOS: "normal"})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, "/usr/bin/squeue", runner.name)
	assert.Contains(t, runner.args, "--qos=normal")
}

func TestCommandLogsCarryComponent(t *testing.T) {
	var logs bytes.Buffer
	logger := logging.NewLogger(logging.DEBUG, false)
	logger.SetOutput(&logs)

	cmd := NewCommand("", logger)
	cmd.Runner = &fakeRunner{stdout: sampleOutput}
	cmd.Parser.Location = time.UTC

	_, err := cmd.Jobs(context.Background(), jobs.Filter{})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "running squeue")
	assert.Contains(t, logs.String(), "component=squeue")
}

func TestCommandJobsFailure(t *testing.T) {
	runner := &fakeRunner{
		stderr: "squeue: error: Invalid user: nobody\nmore detail\n",
		err:    errors.New("exit status 1"),
	}
	cmd := NewCommand("", nil)
	cmd.Runner = runner

	records, err := cmd.Jobs(context.Background(), jobs.Filter{User: "nobody"})
	require.Error(t, err)
	assert.Nil(t, records)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, "squeue", cmdErr.Path)
	assert.Equal(t, "squeue: error: Invalid user: nobody", cmdErr.Stderr)
	assert.Equal(t, "squeue failed: exit status 1: squeue: error: Invalid user: nobody", err.Error())
}

func TestCommandJobsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cmd := NewCommand("", nil)
	cmd.Runner = &fakeRunner{stdout: sampleOutput}

	_, err := cmd.Jobs(ctx, jobs.Filter{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileJobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "squeue.out")
	require.NoError(t, os.WriteFile(path, []byte(sampleOutput), 0644))

	src := &File{Path: path, Parser: Parser{Location: time.UTC}}
	records, err := src.Jobs(context.Background(), jobs.Filter{})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	stdin := &File{Path: "-", Stdin: strings.NewReader(sampleOutput)}
	records, err = stdin.Jobs(context.Background(), jobs.Filter{Partition: "ignored"})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	missing := &File{Path: filepath.Join(t.TempDir(), "nope")}
	_, err = missing.Jobs(context.Background(), jobs.Filter{})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestAuxHeaderMatchesFormatWidths(t *testing.T) {
	// USER(10) ACCOUNT(10) NAME(16) NODES(5) CPUS(5) TIME_LIMIT(11) STATE(8) TIME(11) plus separators.
	assert.Equal(t, 10+10+16+5+5+11+8+11+7, len(AuxHeader))
}
