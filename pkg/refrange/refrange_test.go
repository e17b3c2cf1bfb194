package refrange

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
		lo   float64
		hi   float64
	}{
		{"< 5.7", UpperBound, 0, 5.7},
		{"<5.7%", UpperBound, 0, 5.7},
		{"> 40", LowerBound, 40, 0},
		{"70-100", Between, 70, 100},
		{"0.35 - 5.50", Between, 0.35, 5.50},
		{"4,000-11,000", Between, 4000, 11000},
	}
	for _, tt := range tests {
		r, ok := Parse(tt.in)
		if !ok {
			t.Fatalf("Parse(%q) failed", tt.in)
		}
		if r.Kind != tt.kind || r.Low != tt.lo || r.High != tt.hi {
			t.Errorf("Parse(%q) = %+v, want kind=%d lo=%v hi=%v", tt.in, r, tt.kind, tt.lo, tt.hi)
		}
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "Negative", "normal", "see report"} {
		if _, ok := Parse(in); ok {
			t.Errorf("Parse(%q) should fail", in)
		}
	}
}

func TestClassify(t *testing.T) {
	upper, _ := Parse("< 5.7")
	if upper.Classify(5.6) != Normal {
		t.Error("5.6 should be normal for < 5.7")
	}
	if upper.Classify(5.7) != High {
		t.Error("5.7 should be high for < 5.7")
	}

	lower, _ := Parse("> 40")
	if lower.Classify(38) != Low {
		t.Error("38 should be low for > 40")
	}
	if lower.Abnormal(41) {
		t.Error("41 should not be abnormal for > 40")
	}

	between, _ := Parse("70-100")
	if between.Classify(69) != Low || between.Classify(156) != High || between.Classify(100) != Normal {
		t.Error("unexpected classification for 70-100")
	}
}

func TestParseNumber(t *testing.T) {
	v, err := ParseNumber("245,000")
	if err != nil || v != 245000 {
		t.Errorf("ParseNumber(245,000) = %v, %v", v, err)
	}
	if _, err := ParseNumber("1.2.3"); err == nil {
		t.Error("expected error for 1.2.3")
	}
}
