package scoring

import (
	"math"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	w, err := DefaultWeights()
	if err != nil {
		t.Fatalf("default weights: %v", err)
	}
	return NewEngine(w)
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestClassifyComplexity_ClampedComplex(t *testing.T) {
	e := newTestEngine(t)
	r := e.ClassifyComplexity(NewFeatureVector("age_over_65", "condition_cardiac", "sum_very_high"))

	if !approx(r.RawScore, 1.45) {
		t.Errorf("expected raw 1.45, got %v", r.RawScore)
	}
	if r.Score != 1.0 {
		t.Errorf("expected clamped score 1.0, got %v", r.Score)
	}
	if r.Tier != TierComplex {
		t.Errorf("expected Complex, got %s", r.Tier)
	}
	if r.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %v", r.Confidence)
	}
	want := []string{"age_over_65", "condition_cardiac", "sum_very_high"}
	if len(r.Factors) != len(want) {
		t.Fatalf("expected %d factors, got %d", len(want), len(r.Factors))
	}
	for i, f := range r.Factors {
		if f.Feature != want[i] {
			t.Errorf("factor %d: expected %s, got %s", i, want[i], f.Feature)
		}
		if f.Direction != IncreasesComplexity {
			t.Errorf("factor %d: expected increases direction, got %s", i, f.Direction)
		}
	}
	if r.ModelVersion != "rules-v1" {
		t.Errorf("expected rules-v1, got %s", r.ModelVersion)
	}
}

func TestClassifyComplexity_TierBoundaries(t *testing.T) {
	e := newTestEngine(t)
	tests := []struct {
		name     string
		features []string
		score    float64
		tier     Tier
		conf     float64
	}{
		{"empty", nil, 0, TierRoutine, 0.95},
		{"exactly 0.30", []string{"condition_diabetes"}, 0.30, TierModerate, 0.5},
		{"0.30 from decimal sum", []string{"condition_hypertension", "smoker_former"}, 0.30, TierModerate, 0.5},
		{"just below 0.30", []string{"age_55_65"}, 0.25, TierRoutine, 0.575},
		{"exactly 0.60", []string{"condition_diabetes", "smoker_current", "family_diabetes"}, 0.60, TierComplex, 0.5},
		{"mid moderate", []string{"condition_cardiac", "bmi_normal"}, 0.45, TierModerate, 0.725},
		{"negative clamps to zero", []string{"age_under_30", "bmi_normal"}, 0, TierRoutine, 0.95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := e.ClassifyComplexity(NewFeatureVector(tt.features...))
			if !approx(r.Score, tt.score) {
				t.Errorf("expected score %v, got %v", tt.score, r.Score)
			}
			if r.Tier != tt.tier {
				t.Errorf("expected %s, got %s", tt.tier, r.Tier)
			}
			if !approx(r.Confidence, tt.conf) {
				t.Errorf("expected confidence %v, got %v", tt.conf, r.Confidence)
			}
		})
	}
}

func TestClassifyComplexity_DecreasingFactor(t *testing.T) {
	e := newTestEngine(t)
	r := e.ClassifyComplexity(NewFeatureVector("age_under_30"))
	if len(r.Factors) != 1 || r.Factors[0].Direction != DecreasesComplexity {
		t.Errorf("expected one decreasing factor, got %+v", r.Factors)
	}
}

func TestClassifyComplexity_ZeroWeightNotReported(t *testing.T) {
	e := newTestEngine(t)
	r := e.ClassifyComplexity(NewFeatureVector("age_30_44", "sum_standard"))
	if len(r.Factors) != 0 {
		t.Errorf("expected no factors for zero weights, got %+v", r.Factors)
	}
}

func TestClassifyComplexity_TopFive(t *testing.T) {
	e := newTestEngine(t)
	r := e.ClassifyComplexity(NewFeatureVector(
		"age_over_65", "sum_very_high", "condition_cancer", "condition_cardiac",
		"condition_renal", "bmi_morbid", "smoker_current", "family_cancer",
	))
	if len(r.Factors) != 5 {
		t.Fatalf("expected 5 factors, got %d", len(r.Factors))
	}
	want := []string{"condition_cancer", "age_over_65", "condition_cardiac", "sum_very_high", "condition_renal"}
	for i, f := range r.Factors {
		if f.Feature != want[i] {
			t.Errorf("factor %d: expected %s, got %s", i, want[i], f.Feature)
		}
	}
}

func TestClassifyComplexity_Monotonic(t *testing.T) {
	e := newTestEngine(t)
	bases := []FeatureVector{
		NewFeatureVector(),
		NewFeatureVector("age_under_30", "bmi_normal"),
		NewFeatureVector("condition_diabetes", "smoker_current"),
		NewFeatureVector("age_over_65", "condition_cardiac", "sum_very_high"),
	}
	for _, base := range bases {
		before := e.ClassifyComplexity(base).Score
		for _, w := range e.weights.Complexity {
			if w.Value <= 0 || base.Has(w.Feature) {
				continue
			}
			after := e.ClassifyComplexity(base.With(w.Feature)).Score
			if after < before {
				t.Errorf("adding %s to %v decreased score %v -> %v", w.Feature, base.Names(), before, after)
			}
		}
	}
}

func TestClassifyComplexity_Deterministic(t *testing.T) {
	e := newTestEngine(t)
	fv := NewFeatureVector("condition_diabetes", "condition_hypertension", "conditions_two", "bmi_obese")
	a := e.ClassifyComplexity(fv)
	b := e.ClassifyComplexity(fv)
	if a.Score != b.Score || a.Tier != b.Tier || len(a.Factors) != len(b.Factors) {
		t.Fatal("expected identical results")
	}
	for i := range a.Factors {
		if a.Factors[i] != b.Factors[i] {
			t.Errorf("factor %d differs: %+v vs %+v", i, a.Factors[i], b.Factors[i])
		}
	}
}

func TestScoreYield_HbA1cDiabetic(t *testing.T) {
	e := newTestEngine(t)
	r := e.ScoreYield(NormalizeTestCode("HBA1C"), NewFeatureVector("has_diabetes", "age_over_45"))
	if r.TestPanel != PanelHbA1c {
		t.Errorf("expected hba1c panel, got %s", r.TestPanel)
	}
	if !approx(r.Probability, 0.825) {
		t.Errorf("expected 0.825, got %v", r.Probability)
	}
	if r.Category != YieldHigh || r.Recommendation != "recommended" {
		t.Errorf("expected High/recommended, got %s/%s", r.Category, r.Recommendation)
	}
	if len(r.Factors) != 2 || r.Factors[0].Feature != "has_diabetes" || r.Factors[1].Feature != "age_over_45" {
		t.Errorf("unexpected factors %+v", r.Factors)
	}
}

func TestScoreYield_DefaultPanel(t *testing.T) {
	e := newTestEngine(t)
	r := e.ScoreYield(NormalizeTestCode("CBC"), NewFeatureVector("has_diabetes", "smoker"))
	if r.TestPanel != PanelDefault {
		t.Errorf("expected default panel, got %s", r.TestPanel)
	}
	if !approx(r.Probability, 0.30) || r.Category != YieldLow || r.Recommendation != "low_yield" {
		t.Errorf("unexpected result %+v", r)
	}
	if len(r.Factors) != 0 {
		t.Errorf("expected no factors, got %+v", r.Factors)
	}
}

func TestScoreYield_Clamped(t *testing.T) {
	e := newTestEngine(t)
	r := e.ScoreYield(PanelLFT, NewFeatureVector("has_liver", "alcohol_heavy", "on_hepatotoxic_meds", "bmi_over_30"))
	if r.Probability != maxYield {
		t.Errorf("expected clamp to %v, got %v", maxYield, r.Probability)
	}
	if len(r.Factors) != 3 {
		t.Errorf("expected top 3 factors, got %d", len(r.Factors))
	}
}

func TestScoreYield_Categories(t *testing.T) {
	e := newTestEngine(t)
	tests := []struct {
		panel    TestPanel
		features []string
		prob     float64
		category YieldCategory
	}{
		{PanelECG, nil, 0.20, YieldLow},
		{PanelECG, []string{"has_hypertension", "family_cardiac"}, 0.525, YieldModerate},
		{PanelRFT, []string{"has_renal"}, 0.575, YieldModerate},
		{PanelLipid, []string{"has_cardiac", "on_statins"}, 0.75, YieldHigh},
		{PanelLipid, []string{"has_cardiac"}, 0.55, YieldModerate},
	}
	for _, tt := range tests {
		r := e.ScoreYield(tt.panel, NewFeatureVector(tt.features...))
		if !approx(r.Probability, tt.prob) || r.Category != tt.category {
			t.Errorf("%s %v: expected %v/%s, got %v/%s", tt.panel, tt.features, tt.prob, tt.category, r.Probability, r.Category)
		}
	}
}

func TestNormalizeTestCode(t *testing.T) {
	tests := map[string]TestPanel{
		"HBA1C":             PanelHbA1c,
		"Glycosylated Hb":   PanelHbA1c,
		"Lipid Profile":     PanelLipid,
		"Serum Cholesterol": PanelLipid,
		"LFT":               PanelLFT,
		"Liver function":    PanelLFT,
		"KFT":               PanelRFT,
		"Serum Creatinine":  PanelRFT,
		"EKG":               PanelECG,
		"Resting ECG":       PanelECG,
		"Electrocardiogram": PanelECG,
		"CBC":               PanelDefault,
		"ECHO":              PanelDefault,
		"":                  PanelDefault,
	}
	for code, want := range tests {
		if got := NormalizeTestCode(code); got != want {
			t.Errorf("NormalizeTestCode(%q) = %s, want %s", code, got, want)
		}
	}
}

func TestAssessComplexity_FromSnapshot(t *testing.T) {
	e := newTestEngine(t)
	snap := &CaseSnapshot{
		Applicant:  Applicant{Age: intPtr(52), SmokingStatus: "never"},
		SumAssured: 5000000,
		Disclosures: []Disclosure{
			{DisclosureType: "condition", ConditionName: "Type 2 Diabetes Mellitus"},
		},
		RiskFactors: []RiskFactor{
			{ImpactDirection: "adverse", FactorDescription: "Elevated HbA1c"},
			{ImpactDirection: "favourable", FactorDescription: "Well controlled"},
		},
	}
	r := e.AssessComplexity(snap)
	// age_45_54 0.10 + sum_elevated 0.05 + condition_diabetes 0.30
	if !approx(r.Score, 0.45) || r.Tier != TierModerate {
		t.Errorf("expected 0.45 Moderate, got %v %s", r.Score, r.Tier)
	}
	if r.AdverseRiskFactorCount != 1 {
		t.Errorf("expected 1 adverse risk factor, got %d", r.AdverseRiskFactorCount)
	}
}

func TestPredictYield_FromSnapshot(t *testing.T) {
	e := newTestEngine(t)
	snap := &CaseSnapshot{
		Applicant: Applicant{Age: intPtr(48), BMI: floatPtr(27), SmokingStatus: "never"},
		Disclosures: []Disclosure{
			{DisclosureType: "condition", ConditionName: "Diabetes"},
			{DisclosureType: "medication", DrugName: "Metformin 500mg"},
		},
	}
	r := e.PredictYield("HBA1C", snap)
	// 0.20 + 0.5 * (0.85 + 0.45 + 0.40) = 1.05 -> 0.95
	if r.Probability != 0.95 {
		t.Errorf("expected 0.95, got %v", r.Probability)
	}
	if r.TestCode != "HBA1C" || r.TestPanel != PanelHbA1c {
		t.Errorf("unexpected code/panel %s/%s", r.TestCode, r.TestPanel)
	}
	if !approx(r.Confidence, 0.9) {
		t.Errorf("expected coverage confidence 0.9, got %v", r.Confidence)
	}
}
