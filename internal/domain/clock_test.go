package domain

import "testing"

func TestVectorClock_Compare(t *testing.T) {
	tests := []struct {
		name string
		a, b VectorClock
		want Ordering
	}{
		{name: "both empty", a: VectorClock{}, b: nil, want: Equal},
		{name: "zero entries ignored", a: VectorClock{"d1": 0}, b: VectorClock{}, want: Equal},
		{name: "strictly after", a: VectorClock{"d1": 2}, b: VectorClock{"d1": 1}, want: After},
		{name: "strictly before", a: VectorClock{"d1": 1}, b: VectorClock{"d1": 1, "d2": 1}, want: Before},
		{name: "concurrent", a: VectorClock{"d1": 2}, b: VectorClock{"d1": 1, "d2": 1}, want: Concurrent},
		{name: "equal", a: VectorClock{"d1": 1, "d2": 3}, b: VectorClock{"d2": 3, "d1": 1}, want: Equal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Compare(tt.b); got != tt.want {
				t.Errorf("Compare() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVectorClock_IncrementDoesNotMutate(t *testing.T) {
	c := VectorClock{"d1": 1}
	next := c.Increment("d1")

	if c["d1"] != 1 {
		t.Errorf("original clock mutated: %v", c)
	}
	if next["d1"] != 2 {
		t.Errorf("Increment() = %v, want d1:2", next)
	}
	if !next.Dominates(c) {
		t.Error("incremented clock should dominate the original")
	}
}

func TestVectorClock_Merge(t *testing.T) {
	a := VectorClock{"d1": 3, "d2": 1}
	b := VectorClock{"d2": 4, "d3": 1}

	got := a.Merge(b)
	want := VectorClock{"d1": 3, "d2": 4, "d3": 1}
	if !got.Equal(want) {
		t.Errorf("Merge() = %v, want %v", got, want)
	}

	var empty VectorClock
	if merged := empty.Merge(nil); merged == nil {
		t.Error("Merge() of nil clocks should return an empty, non-nil clock")
	}
}

func TestVectorClock_String(t *testing.T) {
	c := VectorClock{"d2": 1, "d1": 2, "d3": 0}
	if got := c.String(); got != "{d1:2,d2:1}" {
		t.Errorf("String() = %q", got)
	}
}
