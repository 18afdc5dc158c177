package hostlist

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type hostname struct {
	prefix string
	digits string
	value  uint64
	// numbered is false when the name has no usable trailing number.
	numbered bool
}

func splitHostname(name string) hostname {
	i := len(name)
	for i > 0 && name[i-1] >= '0' && name[i-1] <= '9' {
		i--
	}
	if i == len(name) {
		return hostname{prefix: name}
	}
	value, err := strconv.ParseUint(name[i:], 10, 64)
	if err != nil {
		return hostname{prefix: name}
	}
	return hostname{prefix: name[:i], digits: name[i:], value: value, numbered: true}
}

func (h hostname) padded() bool {
	return len(h.digits) > 1 && h.digits[0] == '0'
}

// follows reports whether h can extend a range that currently ends at prev.
// A range keeps the width of its lower bound, so padded numbers only join
// neighbours of the same width.
func (h hostname) follows(prev hostname) bool {
	if h.value != prev.value+1 {
		return false
	}
	if h.padded() || prev.padded() {
		return len(h.digits) == len(prev.digits)
	}
	return true
}

// Compress folds node names into a compressed expression such as
// "a[001-003],b007". Duplicates are dropped and the result is ordered by
// prefix and then by number.
func Compress(names []string) string {
	seen := make(map[string]bool, len(names))
	var hosts []hostname
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		hosts = append(hosts, splitHostname(name))
	}

	sort.SliceStable(hosts, func(i, j int) bool {
		a, b := hosts[i], hosts[j]
		if a.prefix != b.prefix {
			return a.prefix < b.prefix
		}
		if a.numbered != b.numbered {
			return !a.numbered
		}
		if a.value != b.value {
			return a.value < b.value
		}
		return len(a.digits) < len(b.digits)
	})

	var items []string
	for i := 0; i < len(hosts); {
		h := hosts[i]
		if !h.numbered {
			items = append(items, h.prefix)
			i++
			continue
		}

		j := i
		for j < len(hosts) && hosts[j].numbered && hosts[j].prefix == h.prefix {
			j++
		}
		items = append(items, compressGroup(hosts[i:j]))
		i = j
	}
	return strings.Join(items, ",")
}

// compressGroup renders names sharing one prefix.
func compressGroup(group []hostname) string {
	prefix := group[0].prefix
	if len(group) == 1 {
		return prefix + group[0].digits
	}

	var ranges []string
	start := 0
	for i := 1; i <= len(group); i++ {
		if i < len(group) && group[i].follows(group[i-1]) {
			continue
		}
		if i-1 == start {
			ranges = append(ranges, group[start].digits)
		} else {
			ranges = append(ranges, fmt.Sprintf("%s-%s", group[start].digits, group[i-1].digits))
		}
		start = i
	}
	return prefix + "[" + strings.Join(ranges, ",") + "]"
}
