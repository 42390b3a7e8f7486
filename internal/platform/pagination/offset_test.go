package pagination

import "testing"

func TestParseOffsetNormalizesToZero(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		raw  string
		want int
	}{
		{raw: "", want: 0},
		{raw: "0", want: 0},
		{raw: "50", want: 50},
		{raw: " 100 ", want: 100},
		{raw: "-5", want: 0},
		{raw: "abc", want: 0},
		{raw: "12abc", want: 0},
		{raw: "1.5", want: 0},
		{raw: "99999999999999999999999", want: 0},
	}
	for _, tc := range testCases {
		if got := ParseOffset(tc.raw); got != tc.want {
			t.Fatalf("ParseOffset(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}
