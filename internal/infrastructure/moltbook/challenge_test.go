package moltbook

import "testing"

func TestSolveChallenge(t *testing.T) {
	tests := []struct {
		name      string
		challenge string
		want      string
	}{
		{
			"obfuscated subtraction",
			"A] lO^bSt-Er SwImS aT tWeNtY aNd SlOwS bY fIvE",
			"15.00",
		},
		{
			"addition with digits",
			"A lobster has 12 legs and gains 3 more",
			"15.00",
		},
		{
			"multiplication",
			"Four lobsters times five claws each",
			"20.00",
		},
		{
			"division",
			"Sixty shrimp divided among six pots",
			"10.00",
		},
		{
			"number words",
			"seventeen minus nine",
			"8.00",
		},
		{
			"default is addition",
			"two lobsters meet three crabs",
			"5.00",
		},
		{
			"not enough numbers",
			"a lobster swims alone",
			"0.00",
		},
	}
	for _, tt := range tests {
		if got := SolveChallenge(tt.challenge); got != tt.want {
			t.Errorf("%s: SolveChallenge(%q) = %q, want %q", tt.name, tt.challenge, got, tt.want)
		}
	}
}

func TestSolveChallenge_DivisionByZero(t *testing.T) {
	if got := SolveChallenge("ten divided by zero"); got != "0.00" {
		t.Errorf("division by zero should yield 0.00, got %q", got)
	}
}
