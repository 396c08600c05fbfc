package proximity

import (
	"testing"

	"github.com/korobochka/social/pkg/api"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		a, b api.Vector
		d    float64
	}{
		{api.Vector{}, api.Vector{}, 0},
		{api.Vector{X: 3}, api.Vector{Y: 4}, 5},
		{api.Vector{X: 100, Y: 100}, api.Vector{X: 100, Y: 700}, 600},
	}
	for _, test := range tests {
		if d := Distance(test.a, test.b); d != test.d {
			t.Errorf("distance %v-%v is %v, but should be %v", test.a, test.b, d, test.d)
		}
		if Distance(test.a, test.b) != Distance(test.b, test.a) {
			t.Errorf("distance %v-%v is not symmetric", test.a, test.b)
		}
	}
}

func TestCloseness(t *testing.T) {
	const min, max = 100.0, 600.0
	tests := []struct {
		distance float64
		c        float64
	}{
		{0, 1},
		{min, 1},
		{350, 0.5},
		{max, 0},
		{10000, 0},
	}
	for _, test := range tests {
		if c := Closeness(test.distance, min, max); c != test.c {
			t.Errorf("closeness at %v is %v, but should be %v", test.distance, c, test.c)
		}
	}
}

func TestShouldConnect(t *testing.T) {
	const connect = 2000.0
	if !ShouldConnect(1999.999, connect) {
		t.Errorf("no connection just inside the radius, but should be")
	}
	if ShouldConnect(connect, connect) {
		t.Errorf("a connection at the radius boundary, but should not be")
	}
}
