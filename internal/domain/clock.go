package domain

import (
	"sort"
	"strconv"
	"strings"
)

// Ordering is the causal relation between two vector clocks.
type Ordering int

const (
	Equal Ordering = iota
	Before
	After
	Concurrent
)

func (o Ordering) String() string {
	switch o {
	case Equal:
		return "equal"
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "concurrent"
	}
}

// VectorClock maps a device id to the number of writes that device has made.
// A missing entry counts as zero.
type VectorClock map[string]uint64

func (c VectorClock) Clone() VectorClock {
	out := make(VectorClock, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Increment returns a copy of c with the counter for device bumped by one.
func (c VectorClock) Increment(device string) VectorClock {
	out := c.Clone()
	out[device]++
	return out
}

// Merge returns the component-wise maximum of c and other.
func (c VectorClock) Merge(other VectorClock) VectorClock {
	out := c.Clone()
	for k, v := range other {
		if v > out[k] {
			out[k] = v
		}
	}
	return out
}

func (c VectorClock) Compare(other VectorClock) Ordering {
	less, greater := false, false

	for k, v := range c {
		o := other[k]
		if v > o {
			greater = true
		} else if v < o {
			less = true
		}
	}
	for k, o := range other {
		if _, ok := c[k]; ok {
			continue
		}
		if o > 0 {
			less = true
		}
	}

	switch {
	case less && greater:
		return Concurrent
	case greater:
		return After
	case less:
		return Before
	default:
		return Equal
	}
}

// Dominates reports whether c is strictly after other.
func (c VectorClock) Dominates(other VectorClock) bool {
	return c.Compare(other) == After
}

func (c VectorClock) Equal(other VectorClock) bool {
	return c.Compare(other) == Equal
}

func (c VectorClock) String() string {
	keys := make([]string, 0, len(c))
	for k, v := range c {
		if v > 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(c[k], 10))
	}
	b.WriteByte('}')
	return b.String()
}
