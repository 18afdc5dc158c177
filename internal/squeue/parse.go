package squeue

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/psantana5/nodeend/internal/jobs"
	"github.com/psantana5/nodeend/internal/logging"
)

// ParseError describes a squeue output line that could not be read.
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}

// Parser turns squeue output into records. Lines are
// "<end> <jobid> <nodes> <aux...>". Only the first three fields are parsed;
// everything after them is kept verbatim as the auxiliary text.
type Parser struct {
	Location *time.Location
	Logger   *logging.Logger
}

// Parse reads all records from r. Unreadable lines are logged and dropped;
// only a read failure is returned as an error.
func (p *Parser) Parse(r io.Reader) ([]jobs.Record, error) {
	logger := p.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	var records []jobs.Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), " \t\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "CLUSTER:") {
			continue
		}

		record, err := p.parseLine(lineNo, line)
		if err != nil {
			logger.Warn("dropping unreadable squeue line", map[string]interface{}{"error": err.Error()})
			continue
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read squeue output: %w", err)
	}
	return records, nil
}

func (p *Parser) parseLine(lineNo int, line string) (jobs.Record, error) {
	fields, rest := leadingFields(line, 3)
	if len(fields) < 3 {
		return jobs.Record{}, &ParseError{Line: lineNo, Text: line, Reason: "expected end time, job id and node list"}
	}

	end, err := jobs.ParseEndTime(fields[0], p.Location)
	if err != nil {
		return jobs.Record{}, &ParseError{Line: lineNo, Text: line, Reason: err.Error()}
	}

	return jobs.Record{
		EndTime:  end,
		JobID:    fields[1],
		NodeSpec: fields[2],
		Aux:      rest,
	}, nil
}

// leadingFields splits off up to n whitespace separated fields and returns
// the remainder with its internal spacing intact.
func leadingFields(line string, n int) ([]string, string) {
	fields := make([]string, 0, n)
	rest := line
	for len(fields) < n {
		rest = strings.TrimLeft(rest, " \t")
		if rest == "" {
			break
		}
		end := strings.IndexAny(rest, " \t")
		if end < 0 {
			fields = append(fields, rest)
			rest = ""
			break
		}
		fields = append(fields, rest[:end])
		rest = rest[end:]
	}
	return fields, strings.TrimLeft(rest, " \t")
}
