// Package report selects, orders and renders per-node end times.
package report

import (
	"fmt"
	"slices"
	"strings"

	"github.com/psantana5/nodeend/internal/aggregate"
	"github.com/psantana5/nodeend/internal/jobs"
)

// SortBy selects the row order.
type SortBy int

const (
	SortByNode SortBy = iota
	SortByTime
)

// ParseSortBy accepts "node" or "time".
func ParseSortBy(s string) (SortBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "node", "name":
		return SortByNode, nil
	case "time", "end", "end_time":
		return SortByTime, nil
	default:
		return SortByNode, fmt.Errorf("unknown sort order %q (want node or time)", s)
	}
}

func (s SortBy) String() string {
	if s == SortByTime {
		return "time"
	}
	return "node"
}

// Verbosity controls the header and the auxiliary column.
type Verbosity int

const (
	Normal Verbosity = iota
	// Quiet drops the header line.
	Quiet
	// Verbose adds the auxiliary job fields.
	Verbose
)

// Options selects and orders rows.
type Options struct {
	// Nodes restricts the report to these nodes. Empty means every node
	// that has a running job.
	Nodes  []string
	SortBy SortBy
}

// Row is one line of the report.
type Row struct {
	Node    string
	JobID   string
	EndTime jobs.EndTime
	Aux     string
}

// Rows picks the nodes to report from state and orders them. Requested
// nodes without a running job produce no row.
func Rows(state *aggregate.State, opts Options) []Row {
	names := opts.Nodes
	if len(names) == 0 {
		names = state.Names()
	}

	seen := make(map[string]bool, len(names))
	rows := make([]Row, 0, len(names))
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true

		entry, ok := state.Lookup(name)
		if !ok || entry.JobID == "" {
			continue
		}
		rows = append(rows, Row{
			Node:    name,
			JobID:   entry.JobID,
			EndTime: entry.EndTime,
			Aux:     entry.Aux,
		})
	}

	Sort(rows, opts.SortBy)
	return rows
}

// Sort orders rows in place. Node names compare bytewise; by time, rows
// with equal end times fall back to the node name.
func Sort(rows []Row, by SortBy) {
	slices.SortStableFunc(rows, func(a, b Row) int {
		if by == SortByTime {
			if c := a.EndTime.Compare(b.EndTime); c != 0 {
				return c
			}
		}
		return strings.Compare(a.Node, b.Node)
	})
}
