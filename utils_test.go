package lttbplot

import (
	"math"
	"reflect"
	"testing"
)

func TestFilter(t *testing.T) {
	t.Run("empty slice", func(t *testing.T) {
		var input []int = nil
		pred := func(int) bool { return true }
		got := Filter(input, pred)
		want := []int{}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Filter(%v) = %v, want %v", input, got, want)
		}
	})

	t.Run("no matches", func(t *testing.T) {
		input := []int{1, 2, 3}
		pred := func(x int) bool { return x > 10 }
		got := Filter(input, pred)
		want := []int{}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Filter(%v) = %v, want %v", input, got, want)
		}
	})

	t.Run("all match", func(t *testing.T) {
		input := []int{1, 2, 3}
		pred := func(x int) bool { return x > 0 }
		got := Filter(input, pred)
		want := []int{1, 2, 3}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Filter(%v) = %v, want %v", input, got, want)
		}
	})

	t.Run("partial match", func(t *testing.T) {
		input := []int{1, 2, 3}
		pred := func(x int) bool { return x%2 == 1 }
		got := Filter(input, pred)
		want := []int{1, 3}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Filter(%v) = %v, want %v", input, got, want)
		}
	})
}

func TestMin(t *testing.T) {
	if got := Min(5, 3); got != 3 {
		t.Fatalf("Min(5,3) = %v, want 3", got)
	}

	if got := Min(4, 4); got != 4 {
		t.Fatalf("Min(4,4) = %v, want 4", got)
	}

	a := math.NaN()
	if got := Min(a, 1.0); !math.IsNaN(got) {
		t.Fatalf("Min(NaN,1.0) = %v, want NaN", got)
	}

	if got := Min(1.0, a); got != 1.0 {
		t.Fatalf("Min(1.0,NaN) = %v, want 1.0", got)
	}
}

func TestMax(t *testing.T) {
	if got := Max(5, 3); got != 5 {
		t.Fatalf("Max(5,3) = %v, want 5", got)
	}

	if got := Max(-2.5, -1.5); got != -1.5 {
		t.Fatalf("Max(-2.5,-1.5) = %v, want -1.5", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name string
		v    int
		want int
	}{
		{"below", -5, 0},
		{"inside", 4, 4},
		{"lower bound", 0, 0},
		{"upper bound", 10, 10},
		{"above", 15, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.v, 0, 10); got != tt.want {
				t.Fatalf("Clamp(%d, 0, 10) = %d, want %d", tt.v, got, tt.want)
			}
		})
	}
}

func TestMap(t *testing.T) {
	t.Run("nil slice", func(t *testing.T) {
		got := Map([]int(nil), func(x int) int { return x })
		if got == nil || len(got) != 0 {
			t.Fatalf("Map(nil) = %#v, want empty non-nil slice", got)
		}
	})

	t.Run("series lengths", func(t *testing.T) {
		dataset := []Series{
			{Data: make([]Point, 3)},
			{Data: nil},
		}
		got := Map(dataset, func(s Series) int { return len(s.Data) })
		want := []int{3, 0}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("Map() = %v, want %v", got, want)
		}
	})
}
