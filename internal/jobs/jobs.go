// Package jobs holds the running-job records nodeend works on.
package jobs

import (
	"strconv"
	"strings"
	"time"
)

// EndTimeLayout is the timestamp format squeue prints for %e.
const EndTimeLayout = "2006-01-02T15:04:05"

// EndTime is a job's projected end. Raw keeps the text as the scheduler
// printed it; comparisons only ever use the parsed time.
type EndTime struct {
	Raw   string
	Time  time.Time
	Known bool
}

// ParseEndTime parses an squeue end time in loc. Values the scheduler uses
// for "no end" (Unknown, N/A, NONE, empty) give an unknown EndTime. Any other
// unparseable value is an error.
func ParseEndTime(raw string, loc *time.Location) (EndTime, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToUpper(raw) {
	case "", "UNKNOWN", "N/A", "NONE", "INVALID":
		return EndTime{Raw: raw}, nil
	}

	if loc == nil {
		loc = time.Local
	}
	if t, err := time.ParseInLocation(EndTimeLayout, raw, loc); err == nil {
		return EndTime{Raw: raw, Time: t, Known: true}, nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return EndTime{Raw: raw, Time: time.Unix(secs, 0).In(loc), Known: true}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return EndTime{Raw: raw, Time: t, Known: true}, nil
	}
	return EndTime{}, &TimeError{Raw: raw}
}

// TimeError reports an end time in no recognised format.
type TimeError struct {
	Raw string
}

func (e *TimeError) Error() string {
	return "unrecognised end time " + strconv.Quote(e.Raw)
}

// Compare orders end times chronologically. An unknown end sorts after every
// known one and two unknown ends are equal.
func (e EndTime) Compare(other EndTime) int {
	switch {
	case !e.Known && !other.Known:
		return 0
	case !e.Known:
		return 1
	case !other.Known:
		return -1
	}
	return e.Time.Compare(other.Time)
}

// After reports whether e is strictly later than other.
func (e EndTime) After(other EndTime) bool {
	return e.Compare(other) > 0
}

func (e EndTime) String() string {
	if e.Raw != "" {
		return e.Raw
	}
	if e.Known {
		return e.Time.Format(EndTimeLayout)
	}
	return "Unknown"
}

// Record is one running job as reported by the scheduler.
type Record struct {
	EndTime  EndTime
	JobID    string
	NodeSpec string
	// Aux is the rest of the squeue line, kept verbatim for verbose output.
	Aux string
}

// CompareJobIDs orders job ids numerically when both are plain decimal
// numbers and lexically otherwise.
func CompareJobIDs(a, b string) int {
	if isDecimal(a) && isDecimal(b) {
		a = strings.TrimLeft(a, "0")
		b = strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			if len(a) < len(b) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(a, b)
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// Filter narrows the running jobs a source returns. Empty fields do not
// filter; set fields are AND-combined.
type Filter struct {
	Account     string
	JobIDs      string
	Licenses    string
	Clusters    string
	Name        string
	Partition   string
	QOS         string
	Reservation string
	User        string
	Nodelist    string
}
