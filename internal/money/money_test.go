package money

import "testing"

func TestParseCoins(t *testing.T) {
	cases := []struct {
		input string
		want  int64
	}{
		{"150", 15000},
		{"99.50", 9950},
		{"0.5", 50},
		{"0.05", 5},
		{" 49 ", 4900},
		{"-10", -1000},
		{"+1.25", 125},
	}
	for _, tc := range cases {
		got, err := ParseCoins(tc.input)
		if err != nil {
			t.Fatalf("ParseCoins(%q): unexpected error %v", tc.input, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCoins(%q): expected %d, got %d", tc.input, tc.want, got)
		}
	}
}

func TestParseCoinsInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "1.2.3", "1,50"} {
		if _, err := ParseCoins(input); err == nil {
			t.Fatalf("ParseCoins(%q): expected error", input)
		}
	}
	if _, err := ParseCoins("1.505"); err != ErrTooManyDecimals {
		t.Fatalf("expected ErrTooManyDecimals, got %v", err)
	}
}

func TestFormatCoins(t *testing.T) {
	cases := []struct {
		coins int64
		want  string
	}{
		{15000, "150.00"},
		{9950, "99.50"},
		{5, "0.05"},
		{0, "0.00"},
		{-1000, "-10.00"},
	}
	for _, tc := range cases {
		if got := FormatCoins(tc.coins); got != tc.want {
			t.Fatalf("FormatCoins(%d): expected %s, got %s", tc.coins, tc.want, got)
		}
	}
}
