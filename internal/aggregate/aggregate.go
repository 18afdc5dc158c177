// Package aggregate folds running jobs into a per-node high-water mark: for
// every node, the job that will finish last.
package aggregate

import (
	"sort"

	"github.com/psantana5/nodeend/internal/hostlist"
	"github.com/psantana5/nodeend/internal/jobs"
	"github.com/psantana5/nodeend/internal/logging"
)

// ExpandFunc turns a job's node list into node names.
type ExpandFunc func(spec string) ([]string, error)

// Entry is the latest-ending job seen on a node.
type Entry struct {
	JobID   string
	EndTime jobs.EndTime
	Aux     string
}

// State maps node names to their latest-ending job.
type State struct {
	Nodes map[string]Entry
	// Skipped counts records whose node list could not be expanded.
	Skipped int
}

// Lookup returns the entry for node.
func (s *State) Lookup(node string) (Entry, bool) {
	e, ok := s.Nodes[node]
	return e, ok
}

// Names returns the nodes with an entry, sorted.
func (s *State) Names() []string {
	names := make([]string, 0, len(s.Nodes))
	for name := range s.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Aggregator builds a State from job records.
type Aggregator struct {
	Expand ExpandFunc
	Logger *logging.Logger
}

// New returns an Aggregator expanding node lists with hostlist.ExpandExpr.
// Its log lines carry component=aggregate.
func New(logger *logging.Logger) *Aggregator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Aggregator{Expand: hostlist.ExpandExpr, Logger: logger.WithField("component", "aggregate")}
}

// Aggregate folds records into a State. A record whose node list fails to
// expand is skipped; the rest are still folded.
//
// A node keeps the record with the greatest (end time, job id). The job id
// only matters for equal end times and makes the result independent of
// record order.
func (a *Aggregator) Aggregate(records []jobs.Record) *State {
	expand := a.Expand
	if expand == nil {
		expand = hostlist.ExpandExpr
	}
	logger := a.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	state := &State{Nodes: make(map[string]Entry)}
	for _, record := range records {
		nodes, err := expand(record.NodeSpec)
		if err != nil {
			state.Skipped++
			logger.Warn("skipping job with unreadable node list", map[string]interface{}{
				"job_id":    record.JobID,
				"node_spec": record.NodeSpec,
				"error":     err.Error(),
			})
			continue
		}

		for _, node := range nodes {
			current, ok := state.Nodes[node]
			if ok && !supersedes(record, current) {
				continue
			}
			state.Nodes[node] = Entry{
				JobID:   record.JobID,
				EndTime: record.EndTime,
				Aux:     record.Aux,
			}
		}
	}
	return state
}

func supersedes(record jobs.Record, current Entry) bool {
	if c := record.EndTime.Compare(current.EndTime); c != 0 {
		return c > 0
	}
	return jobs.CompareJobIDs(record.JobID, current.JobID) > 0
}
