// Package hostlist expands and compresses Slurm-style node lists such as
// "bell-a[001-004],bell-b007".
package hostlist

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// maxRange bounds a single bracket range so a typo like [1-999999999]
// fails instead of allocating the world.
const maxRange = 1 << 16

// SyntaxError reports a malformed node list expression.
type SyntaxError struct {
	Expr   string
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid node list %q: %s", e.Expr, e.Reason)
}

// Expand turns a node list expression into individual node names. The
// expression is a comma separated list of names with optional bracket
// ranges, or an absolute path to a file with one expression per line.
// Order and duplicates are kept as written.
func Expand(expr string) ([]string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, &SyntaxError{Expr: expr, Reason: "empty expression"}
	}
	if strings.HasPrefix(expr, "/") {
		return expandFile(expr)
	}
	return expandList(expr)
}

// ExpandExpr is Expand without node file support. It is meant for node
// lists that come from the scheduler rather than the user.
func ExpandExpr(expr string) ([]string, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, &SyntaxError{Expr: expr, Reason: "empty expression"}
	}
	return expandList(expr)
}

// ExpandAll expands each expression and concatenates the results.
func ExpandAll(exprs []string) ([]string, error) {
	var names []string
	for _, expr := range exprs {
		expanded, err := Expand(expr)
		if err != nil {
			return nil, err
		}
		names = append(names, expanded...)
	}
	return names, nil
}

// Merge canonicalizes a list of names, ranges and node files into a single
// compressed expression.
func Merge(exprs []string) (string, error) {
	names, err := ExpandAll(exprs)
	if err != nil {
		return "", err
	}
	return Compress(names), nil
}

func expandFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read node file: %w", err)
	}

	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		expanded, err := expandList(line)
		if err != nil {
			return nil, fmt.Errorf("node file %s: %w", path, err)
		}
		names = append(names, expanded...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read node file %s: %w", path, err)
	}
	return names, nil
}

func expandList(expr string) ([]string, error) {
	items, err := splitTopLevel(expr)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, item := range items {
		expanded, err := expandItem(item, expr)
		if err != nil {
			return nil, err
		}
		names = append(names, expanded...)
	}
	return names, nil
}

// splitTopLevel splits on commas that are not inside brackets.
func splitTopLevel(expr string) ([]string, error) {
	var items []string
	depth, start := 0, 0
	for i := 0; i < len(expr); i++ {
		switch expr[i] {
		case '[':
			depth++
			if depth > 1 {
				return nil, &SyntaxError{Expr: expr, Reason: "nested brackets"}
			}
		case ']':
			depth--
			if depth < 0 {
				return nil, &SyntaxError{Expr: expr, Reason: "unbalanced ']'"}
			}
		case ',':
			if depth == 0 {
				items = append(items, expr[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, &SyntaxError{Expr: expr, Reason: "unbalanced '['"}
	}
	items = append(items, expr[start:])

	for i, item := range items {
		items[i] = strings.TrimSpace(item)
		if items[i] == "" {
			return nil, &SyntaxError{Expr: expr, Reason: "empty item"}
		}
	}
	return items, nil
}

// expandItem expands one name that may carry several bracket groups. Groups
// multiply left to right, so r[1-2]n[1-2] gives r1n1 r1n2 r2n1 r2n2.
func expandItem(item, expr string) ([]string, error) {
	results := []string{""}
	rest := item
	for rest != "" {
		open := strings.IndexByte(rest, '[')
		if open < 0 {
			results = appendSuffix(results, []string{rest})
			break
		}
		closing := strings.IndexByte(rest, ']')
		if closing < open {
			return nil, &SyntaxError{Expr: expr, Reason: "unbalanced ']'"}
		}
		if open > 0 {
			results = appendSuffix(results, []string{rest[:open]})
		}
		values, err := expandGroup(rest[open+1:closing], expr)
		if err != nil {
			return nil, err
		}
		results = appendSuffix(results, values)
		rest = rest[closing+1:]
	}
	return results, nil
}

func appendSuffix(prefixes, suffixes []string) []string {
	out := make([]string, 0, len(prefixes)*len(suffixes))
	for _, p := range prefixes {
		for _, s := range suffixes {
			out = append(out, p+s)
		}
	}
	return out
}

// expandGroup expands the body of a bracket, e.g. "001-003,007".
func expandGroup(body, expr string) ([]string, error) {
	if strings.TrimSpace(body) == "" {
		return nil, &SyntaxError{Expr: expr, Reason: "empty range"}
	}

	var values []string
	for _, part := range strings.Split(body, ",") {
		part = strings.TrimSpace(part)
		lo, hi, found := strings.Cut(part, "-")
		if !found {
			hi = lo
		}
		if !isDigits(lo) || !isDigits(hi) {
			return nil, &SyntaxError{Expr: expr, Reason: fmt.Sprintf("bad range %q", part)}
		}

		from, err := strconv.ParseUint(lo, 10, 64)
		if err != nil {
			return nil, &SyntaxError{Expr: expr, Reason: fmt.Sprintf("bad range %q", part)}
		}
		to, err := strconv.ParseUint(hi, 10, 64)
		if err != nil {
			return nil, &SyntaxError{Expr: expr, Reason: fmt.Sprintf("bad range %q", part)}
		}
		if to < from {
			return nil, &SyntaxError{Expr: expr, Reason: fmt.Sprintf("range %q is descending", part)}
		}
		if to-from >= maxRange {
			return nil, &SyntaxError{Expr: expr, Reason: fmt.Sprintf("range %q is too large", part)}
		}

		width := len(lo)
		for n := from; n <= to; n++ {
			values = append(values, fmt.Sprintf("%0*d", width, n))
		}
	}
	return values, nil
}

func isDigits(s string) bool {
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
