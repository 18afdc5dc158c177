// Package squeue fetches running jobs from Slurm's squeue command.
package squeue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/psantana5/nodeend/internal/jobs"
	"github.com/psantana5/nodeend/internal/logging"
)

// Format is the squeue output format. The first three fields are parsed;
// the fixed widths of the rest line up with AuxHeader.
const Format = "%e %i %N %-10u %-10a %-16j %5D %5C %11l %8T %11M"

// AuxHeader labels the auxiliary columns produced by Format.
var AuxHeader = fmt.Sprintf("%-10s %-10s %-16s %5s %5s %11s %8s %11s",
	"USER", "ACCOUNT", "NAME", "NODES", "CPUS", "TIME_LIMIT", "STATE", "TIME")

// DefaultPath is the squeue binary looked up on PATH.
const DefaultPath = "squeue"

// Source produces the running jobs matching a filter.
type Source interface {
	Jobs(ctx context.Context, filter jobs.Filter) ([]jobs.Record, error)
}

// Runner executes an external command and returns its stdout and stderr.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.Bytes(), stderr.Bytes(), err
}

// CommandError reports a failed squeue invocation.
type CommandError struct {
	Path   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s failed: %v: %s", e.Path, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s failed: %v", e.Path, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Command queries squeue once per call.
type Command struct {
	Path   string
	Runner Runner
	Parser Parser
	Logger *logging.Logger
}

// NewCommand creates a Command running the squeue binary at path.
func NewCommand(path string, logger *logging.Logger) *Command {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithField("component", "squeue")
	return &Command{
		Path:   path,
		Runner: ExecRunner{},
		Parser: Parser{Logger: logger},
		Logger: logger,
	}
}

// Args builds the squeue arguments for filter. Only running jobs are asked for.
func Args(filter jobs.Filter) []string {
	args := []string{"--noheader", "--states=RUNNING", "--format=" + Format}

	add := func(flag, value string) {
		if value = strings.TrimSpace(value); value != "" {
			args = append(args, flag+"="+value)
		}
	}
	add("--account", filter.Account)
	add("--jobs", filter.JobIDs)
	add("--licenses", filter.Licenses)
	add("--clusters", filter.Clusters)
	add("--name", filter.Name)
	add("--partition", filter.Partition)
	add("--qos", filter.QOS)
	add("--reservation", filter.Reservation)
	add("--user", filter.User)
	add("--nodelist", filter.Nodelist)
	return args
}

// Jobs implements Source.
func (c *Command) Jobs(ctx context.Context, filter jobs.Filter) ([]jobs.Record, error) {
	args := Args(filter)
	c.Logger.Debug("running squeue", map[string]interface{}{"path": c.Path, "args": strings.Join(args, " ")})

	stdout, stderr, err := c.Runner.Run(ctx, c.Path, args...)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if err != nil {
		return nil, &CommandError{
			Path:   c.Path,
			Args:   args,
			Stderr: firstLine(string(stderr)),
			Err:    err,
		}
	}

	records, err := c.Parser.Parse(bytes.NewReader(stdout))
	if err != nil {
		return nil, err
	}
	c.Logger.Debug("squeue returned", map[string]interface{}{"records": len(records)})
	return records, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// File replays saved squeue output, produced with Format, instead of asking
// the scheduler. Path "-" reads Stdin. Filters are not applied to replayed
// data.
type File struct {
	Path   string
	Stdin  io.Reader
	Parser Parser
	Logger *logging.Logger
}

// Jobs implements Source.
func (f *File) Jobs(ctx context.Context, filter jobs.Filter) ([]jobs.Record, error) {
	logger := f.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	if filter != (jobs.Filter{}) {
		logger.Debug("job filters are ignored when replaying squeue output", map[string]interface{}{"input": f.Path})
	}

	var r io.Reader
	if f.Path == "-" {
		if f.Stdin == nil {
			return nil, errors.New("no stdin to read squeue output from")
		}
		r = f.Stdin
	} else {
		file, err := os.Open(f.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open squeue output: %w", err)
		}
		defer file.Close()
		r = file
	}

	records, err := f.Parser.Parse(r)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
