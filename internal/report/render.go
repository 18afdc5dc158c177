package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/psantana5/nodeend/internal/squeue"
)

// Column headers.
const (
	HeaderNode    = "NODE"
	HeaderJobID   = "JOBID"
	HeaderEndTime = "END_TIME"
)

// columnSep separates text columns.
const columnSep = "  "

// Renderer writes rows to w.
type Renderer interface {
	Render(w io.Writer, rows []Row) error
}

// NewRenderer returns the renderer for an output name: text, table or prom.
func NewRenderer(output string, verbosity Verbosity) (Renderer, error) {
	switch strings.ToLower(strings.TrimSpace(output)) {
	case "", "text":
		return &Text{Verbosity: verbosity}, nil
	case "table":
		return &Table{Verbosity: verbosity}, nil
	case "prom", "prometheus":
		return &Prom{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want text, table or prom)", output)
	}
}

func headers(verbosity Verbosity, auxHeader string) []string {
	h := []string{HeaderNode, HeaderJobID, HeaderEndTime}
	if verbosity == Verbose {
		h = append(h, auxHeader)
	}
	return h
}

func cells(row Row, verbosity Verbosity) []string {
	c := []string{row.Node, row.JobID, row.EndTime.String()}
	if verbosity == Verbose {
		c = append(c, row.Aux)
	}
	return c
}

// Text renders left-justified fixed-width columns separated by two spaces.
// Each column is as wide as its longest printed value, header included.
type Text struct {
	Verbosity Verbosity
	// AuxHeader labels the verbose column; defaults to squeue.AuxHeader.
	AuxHeader string
}

// Render implements Renderer.
func (t *Text) Render(w io.Writer, rows []Row) error {
	auxHeader := t.AuxHeader
	if auxHeader == "" {
		auxHeader = squeue.AuxHeader
	}

	var buf bytes.Buffer
	table := tablewriter.NewTable(&buf,
		tablewriter.WithRenderer(renderer.NewBlueprint(tw.Rendition{
			Borders: tw.BorderNone,
			Symbols: tw.NewSymbolCustom("plain").WithColumn(columnSep),
			Settings: tw.Settings{
				Separators: tw.Separators{BetweenRows: tw.Off, BetweenColumns: tw.On},
				Lines:      tw.Lines{ShowHeaderLine: tw.Off},
			},
		})),
		tablewriter.WithHeaderAutoFormat(tw.Off),
		tablewriter.WithHeaderAlignment(tw.AlignLeft),
		tablewriter.WithRowAlignment(tw.AlignLeft),
		tablewriter.WithPadding(tw.Padding{Overwrite: true}),
	)
	if t.Verbosity != Quiet {
		table.Header(anySlice(headers(t.Verbosity, auxHeader))...)
	}
	for _, row := range rows {
		if err := table.Append(cells(row, t.Verbosity)); err != nil {
			return fmt.Errorf("failed to add row for %s: %w", row.Node, err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	// Padding to the column width leaves trailing blanks on short last cells.
	var b strings.Builder
	for _, line := range strings.Split(buf.String(), "\n") {
		line = strings.TrimRight(line, " ")
		if line == "" {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func anySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Table renders a boxed table.
type Table struct {
	Verbosity Verbosity
}

// Render implements Renderer.
func (t *Table) Render(w io.Writer, rows []Row) error {
	table := tablewriter.NewWriter(w)
	if t.Verbosity != Quiet {
		table.Header(anySlice(headers(t.Verbosity, "AUX"))...)
	}
	for _, row := range rows {
		if err := table.Append(cells(row, t.Verbosity)); err != nil {
			return fmt.Errorf("failed to add row for %s: %w", row.Node, err)
		}
	}
	return table.Render()
}

// FreeTimeMetric is the gauge holding each node's projected free time.
const FreeTimeMetric = "slurm_node_free_timestamp_seconds"

// Registry builds a Prometheus registry with one sample per row. Rows with
// an unknown end time have no sample.
func Registry(rows []Row) (*prometheus.Registry, error) {
	reg := prometheus.NewRegistry()
	freeAt := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: FreeTimeMetric,
			Help: "Unix time at which the last running job on the node is projected to end.",
		},
		[]string{"node", "job_id"},
	)
	if err := reg.Register(freeAt); err != nil {
		return nil, err
	}

	for _, row := range rows {
		if !row.EndTime.Known {
			continue
		}
		freeAt.WithLabelValues(row.Node, row.JobID).Set(float64(row.EndTime.Time.Unix()))
	}
	return reg, nil
}

// Prom renders rows in the Prometheus text exposition format.
type Prom struct{}

// Render implements Renderer.
func (p *Prom) Render(w io.Writer, rows []Row) error {
	reg, err := Registry(rows)
	if err != nil {
		return err
	}
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	encoder := expfmt.NewEncoder(w, expfmt.FmtText)
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// WriteTextfile writes the rows for node_exporter's textfile collector.
// The file is replaced atomically.
func WriteTextfile(path string, rows []Row) error {
	reg, err := Registry(rows)
	if err != nil {
		return err
	}
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return fmt.Errorf("failed to write textfile %s: %w", path, err)
	}
	return nil
}
