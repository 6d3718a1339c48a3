package labextract

import "testing"

func TestScore(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want float64
	}{
		{"empty", Candidate{}, 0},
		{"result only", Candidate{Value: "POSITIVE"}, 0.4},
		{"result and unit", Candidate{Value: "0.6", Unit: "%"}, 0.7},
		{"result unit range", Candidate{Value: "2.8", Unit: "mg/L", ReferenceRange: "0.1 - 5.0"}, 0.9},
		{"all fields", Candidate{Value: "2.1", Unit: "10^9/L", ReferenceRange: "4.0 - 11.0", Flag: FlagLow}, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Score(tt.c); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestScore_Monotonic(t *testing.T) {
	base := []Candidate{
		{Value: "1"},
		{Value: "1", Unit: "%"},
		{Value: "1", ReferenceRange: "0 - 2"},
		{Value: "1", Flag: FlagHigh},
		{Value: "1", Unit: "%", ReferenceRange: "0 - 2"},
	}
	add := []func(Candidate) Candidate{
		func(c Candidate) Candidate { c.Unit = "%"; return c },
		func(c Candidate) Candidate { c.ReferenceRange = "0 - 2"; return c },
		func(c Candidate) Candidate { c.Flag = FlagLow; return c },
	}
	for _, c := range base {
		for _, f := range add {
			if after := f(c); Score(after) < Score(c) {
				t.Errorf("adding a field lowered the score: %v -> %v", c, after)
			}
		}
	}
}

func TestOverallConfidence(t *testing.T) {
	if got := overallConfidence(nil); got != 0 {
		t.Errorf("expected 0 for no values, got %v", got)
	}
	got := overallConfidence([]Candidate{{Confidence: 0.4}, {Confidence: 1.0}})
	if got < 0.6999 || got > 0.7001 {
		t.Errorf("expected 0.7, got %v", got)
	}
}
