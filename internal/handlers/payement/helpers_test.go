package payement

import "testing"

func TestCentimes(t *testing.T) {
	cases := []struct {
		price float64
		want  int64
	}{
		{19.99, 1999},
		{0.1, 10},
		{29.95, 2995},
		{10, 1000},
		{0, 0},
	}

	for _, tc := range cases {
		if got := centimes(tc.price); got != tc.want {
			t.Errorf("centimes(%v) = %d, want %d", tc.price, got, tc.want)
		}
	}
}
