package cmd

import (
	"bytes"
	"context"
	"strings"

	"github.com/psantana5/nodeend/internal/aggregate"
	"github.com/psantana5/nodeend/internal/hostlist"
	"github.com/psantana5/nodeend/internal/logging"
	"github.com/psantana5/nodeend/internal/report"
	"github.com/psantana5/nodeend/internal/squeue"
)

func (o *options) verbosity() report.Verbosity {
	switch {
	case o.quiet:
		return report.Quiet
	case o.verbose:
		return report.Verbose
	}
	return report.Normal
}

func (o *options) logger(env *Env) (*logging.Logger, error) {
	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return nil, usageError("invalid --log-level: %w", err)
	}
	logger := logging.NewLogger(level, o.logJSON)
	logger.SetOutput(env.Stderr)
	return logger, nil
}

// reportNodes resolves the node filter into the requested names and the
// compressed form handed to squeue. Positional nodes replace --nodelist;
// --this-node adds the local host. Nil names mean no node filter.
func (o *options) reportNodes(ctx context.Context, env *Env, args []string) ([]string, string, error) {
	exprs := append([]string(nil), args...)
	if len(exprs) == 0 && strings.TrimSpace(o.filter.Nodelist) != "" {
		exprs = []string{o.filter.Nodelist}
	}

	if o.thisNode {
		if env.Hostname == nil {
			return nil, "", runtimeError("cannot determine the local node name")
		}
		hostname, err := env.Hostname(ctx)
		if err != nil {
			return nil, "", runtimeError("failed to determine the local node name: %w", err)
		}
		short, _, _ := strings.Cut(hostname, ".")
		exprs = append(exprs, short)
	}

	names, err := hostlist.ExpandAll(exprs)
	if err != nil {
		return nil, "", usageError("%w", err)
	}
	nodelist, err := hostlist.Merge(exprs)
	if err != nil {
		return nil, "", usageError("%w", err)
	}
	return names, nodelist, nil
}

func (o *options) source(env *Env, logger *logging.Logger) squeue.Source {
	if o.input != "" {
		parser := squeue.Parser{Location: env.Location, Logger: logger}
		return &squeue.File{Path: o.input, Stdin: env.Stdin, Parser: parser, Logger: logger}
	}

	command := squeue.NewCommand(o.squeuePath, logger)
	command.Parser.Location = env.Location
	if env.Runner != nil {
		command.Runner = env.Runner
	}
	return command
}

func (o *options) run(ctx context.Context, env *Env, args []string) error {
	logger, err := o.logger(env)
	if err != nil {
		return err
	}

	renderer, err := report.NewRenderer(o.output, o.verbosity())
	if err != nil {
		return usageError("invalid --output: %w", err)
	}

	nodes, nodelist, err := o.reportNodes(ctx, env, args)
	if err != nil {
		return err
	}

	filter := o.filter
	filter.Nodelist = nodelist

	records, err := o.source(env, logger).Jobs(ctx, filter)
	if err != nil {
		return runtimeError("failed to fetch running jobs: %w", err)
	}

	state := aggregate.New(logger).Aggregate(records)
	logger.Debug("aggregated running jobs", map[string]interface{}{
		"records": len(records),
		"nodes":   len(state.Nodes),
		"skipped": state.Skipped,
	})

	sortBy := report.SortByNode
	if o.byTime {
		sortBy = report.SortByTime
	}
	rows := report.Rows(state, report.Options{Nodes: nodes, SortBy: sortBy})

	var out bytes.Buffer
	if err := renderer.Render(&out, rows); err != nil {
		return runtimeError("failed to render report: %w", err)
	}

	// Nothing is written once the run has been interrupted.
	if err := ctx.Err(); err != nil {
		return runtimeError("interrupted: %w", err)
	}
	if o.textfile != "" {
		if err := report.WriteTextfile(o.textfile, rows); err != nil {
			return runtimeError("%w", err)
		}
		logger.Info("wrote textfile", map[string]interface{}{"path": o.textfile, "rows": len(rows)})
	}
	if _, err := env.Stdout.Write(out.Bytes()); err != nil {
		return runtimeError("failed to write report: %w", err)
	}
	return nil
}
