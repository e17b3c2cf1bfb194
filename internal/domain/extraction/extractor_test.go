package extraction

import (
	"math"
	"reflect"
	"testing"
)

func mustDefault(t *testing.T) *Dictionary {
	t.Helper()
	d, err := DefaultDictionary()
	if err != nil {
		t.Fatalf("default dictionary: %v", err)
	}
	return d
}

func findByName(fs []Finding, name string) *Finding {
	for i := range fs {
		if fs[i].CanonicalName == name {
			return &fs[i]
		}
	}
	return nil
}

func TestExtract_DeniedConditionWithContrastClause(t *testing.T) {
	dict := mustDefault(t)
	r := Extract("Patient denies diabetes but has hypertension since 2015, on Amlodipine 5mg OD", dict)

	if len(r.Conditions) != 1 || r.Conditions[0].CanonicalName != "Hypertension" {
		t.Fatalf("expected only Hypertension, got %+v", r.Conditions)
	}
	if r.Conditions[0].Confidence != 0.95 {
		t.Errorf("expected exact-match confidence 0.95, got %v", r.Conditions[0].Confidence)
	}
	if r.Conditions[0].ICDCode != "I10" {
		t.Errorf("expected I10, got %q", r.Conditions[0].ICDCode)
	}
	if len(r.Medications) != 1 {
		t.Fatalf("expected 1 medication, got %d", len(r.Medications))
	}
	med := r.Medications[0]
	if med.CanonicalName != "Amlodipine" || med.Dosage != "5mg" || med.Frequency != "OD" {
		t.Errorf("unexpected medication %+v", med)
	}
	if math.Abs(r.OverallConfidence-0.95) > 1e-9 {
		t.Errorf("expected overall confidence 0.95, got %v", r.OverallConfidence)
	}
	if r.Language != "en" {
		t.Errorf("expected en, got %q", r.Language)
	}
}

func TestExtract_Negation(t *testing.T) {
	dict := mustDefault(t)
	tests := []string{
		"No history of diabetes.",
		"Patient denies diabetes.",
		"Ruled out diabetes after GTT.",
		"Applicant is negative for diabetes.",
		"Never had diabetes in the past.",
	}
	for _, text := range tests {
		r := Extract(text, dict)
		if f := findByName(r.Conditions, "Diabetes Mellitus"); f != nil {
			t.Errorf("%q: expected diabetes to be suppressed, got %+v", text, f)
		}
	}
}

func TestExtract_NegationDoesNotCrossSentence(t *testing.T) {
	dict := mustDefault(t)
	r := Extract("No surgeries. Diabetes for 5 years.", dict)
	if findByName(r.Conditions, "Diabetes Mellitus") == nil {
		t.Error("expected diabetes in a new sentence to be extracted")
	}
}

func TestExtract_NegationSpansAbbreviations(t *testing.T) {
	dict := mustDefault(t)
	r := Extract("No hx of e.g. diabetes or asthma.", dict)
	if findByName(r.Conditions, "Diabetes Mellitus") != nil {
		t.Errorf("expected diabetes to stay negated, got %+v", r.Conditions)
	}
}

func TestExtract_InvalidUTF8(t *testing.T) {
	dict := mustDefault(t)
	text := "\xff\xfe\xfd\xfc\xfb\xfa\xf9\xf8 has hypertension, HbA1c \xe9 7.1 %"
	r := Extract(text, dict)
	htn := findByName(r.Conditions, "Hypertension")
	if htn == nil {
		t.Fatalf("expected hypertension, got %+v", r.Conditions)
	}
	if htn.MatchedTerm != "hypertension" {
		t.Errorf("expected matched term hypertension, got %q", htn.MatchedTerm)
	}
	if findByName(r.LabValues, "HbA1c") == nil {
		t.Error("expected HbA1c after invalid byte")
	}
}

func TestLowerSameLen_KeepsOffsets(t *testing.T) {
	for _, s := range []string{"ABC", "Ünïcode Text", "\xffHTN\xfe", "İstanbul"} {
		if got := lowerSameLen(s); len(got) != len(s) {
			t.Errorf("lowerSameLen(%q) changed length %d -> %d", s, len(s), len(got))
		}
	}
}

func TestExtract_AffirmationBoost(t *testing.T) {
	dict := mustDefault(t)
	tests := []struct {
		text string
		want float64
	}{
		{"Known case of hypertension on treatment.", 0.98},
		{"K/c/o HTN for 3 years.", 0.90},
		{"Blood pressure readings suggest htn.", 0.80},
	}
	for _, tt := range tests {
		r := Extract(tt.text, dict)
		f := findByName(r.Conditions, "Hypertension")
		if f == nil {
			t.Errorf("%q: expected hypertension", tt.text)
			continue
		}
		if f.Confidence != tt.want {
			t.Errorf("%q: expected confidence %v, got %v", tt.text, tt.want, f.Confidence)
		}
	}
}

func TestExtract_WordBoundary(t *testing.T) {
	dict := &Dictionary{Conditions: []ConditionEntry{
		{CanonicalName: "Asthma", Synonyms: []string{"wheeze"}, Category: "respiratory"},
	}}
	r := Extract("Non-asthmatic wheezes reported", dict)
	if len(r.Conditions) != 0 {
		t.Errorf("expected no match inside longer words, got %+v", r.Conditions)
	}
}

func TestExtract_ShortTermsSkipped(t *testing.T) {
	dict := &Dictionary{Conditions: []ConditionEntry{
		{CanonicalName: "Diabetes Mellitus", Synonyms: []string{"dm"}},
	}}
	r := Extract("DM on diet control", dict)
	if len(r.Conditions) != 0 {
		t.Errorf("expected 2-letter synonym to be ignored, got %+v", r.Conditions)
	}
}

func TestExtract_DedupByCanonicalName(t *testing.T) {
	dict := &Dictionary{Conditions: []ConditionEntry{
		{CanonicalName: "Hypertension", Synonyms: []string{"htn"}, Category: "cv"},
		{CanonicalName: "Hypertension", Synonyms: []string{"high blood pressure"}, Category: "cv"},
	}}
	r := Extract("HTN and high blood pressure noted", dict)
	if len(r.Conditions) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(r.Conditions))
	}
	if r.Conditions[0].MatchedTerm != "HTN" {
		t.Errorf("expected first entry to win, got %q", r.Conditions[0].MatchedTerm)
	}
}

func TestExtract_NilAndEmptyDictionary(t *testing.T) {
	r := Extract("Hypertension since 2010", nil)
	if len(r.Conditions) != 0 || len(r.Medications) != 0 || len(r.Procedures) != 0 {
		t.Errorf("expected no dictionary findings, got %+v", r)
	}
	if r.Conditions == nil || r.Medications == nil {
		t.Error("expected empty, non-nil finding lists")
	}
	if r.OverallConfidence != 0 {
		t.Errorf("expected overall 0, got %v", r.OverallConfidence)
	}
}

func TestExtract_Idempotent(t *testing.T) {
	dict := mustDefault(t)
	text := "K/c/o T2DM on Metformin 500mg BD. HbA1c: 7.8%, FBS 142 mg/dL. Underwent appendectomy in March 2015."
	a := Extract(text, dict)
	b := Extract(text, dict)
	if !reflect.DeepEqual(a, b) {
		t.Error("expected identical results for identical input")
	}
}

func TestExtract_LabValues(t *testing.T) {
	r := Extract("HbA1c: 7.8%, FBS 92 mg/dL, Urine sugar: Nil, Urine albumin: trace", nil)

	hba1c := findByName(r.LabValues, "HbA1c")
	if hba1c == nil {
		t.Fatal("expected HbA1c")
	}
	if hba1c.NumericValue == nil || *hba1c.NumericValue != 7.8 {
		t.Errorf("expected 7.8, got %v", hba1c.NumericValue)
	}
	if !hba1c.Abnormal || hba1c.Interpretation != "high" || hba1c.Confidence != 0.90 {
		t.Errorf("unexpected HbA1c classification %+v", hba1c)
	}

	fbs := findByName(r.LabValues, "Fasting Blood Sugar")
	if fbs == nil || fbs.Abnormal || fbs.Interpretation != "normal" {
		t.Errorf("expected normal FBS, got %+v", fbs)
	}

	sugar := findByName(r.LabValues, "Urine Sugar")
	if sugar == nil || sugar.Abnormal || sugar.Confidence != 0.80 {
		t.Errorf("expected normal qualitative urine sugar, got %+v", sugar)
	}
	albumin := findByName(r.LabValues, "Urine Albumin")
	if albumin == nil || !albumin.Abnormal {
		t.Errorf("expected abnormal urine albumin, got %+v", albumin)
	}
}

func TestExtract_LabDedupFirstMatchWins(t *testing.T) {
	r := Extract("TSH 3.2 on 2020 report; repeat TSH 8.9", nil)
	var count int
	for _, f := range r.LabValues {
		if f.CanonicalName == "TSH" {
			count++
			if f.Value != "3.2" {
				t.Errorf("expected first TSH value, got %q", f.Value)
			}
		}
	}
	if count != 1 {
		t.Errorf("expected 1 TSH finding, got %d", count)
	}
}

func TestExtract_Dates(t *testing.T) {
	r := Extract("Diagnosed with diabetes on 12/03/2018. Admitted on 5 Jan 2020. Review on 1 Feb 2021 and review again on 3 Mar 2022.", nil)
	want := map[string][]string{
		"diagnosis_date":  {"2018-03-12"},
		"hospitalization": {"2020-01-05"},
		"follow_up":       {"2021-02-01", "2022-03-03"},
	}
	got := map[string][]string{}
	for _, f := range r.Dates {
		got[f.DateType] = append(got[f.DateType], f.Normalized)
		if f.Confidence != 0.85 {
			t.Errorf("expected date confidence 0.85, got %v", f.Confidence)
		}
	}
	for k, v := range want {
		if !reflect.DeepEqual(got[k], v) {
			t.Errorf("%s: expected %v, got %v", k, v, got[k])
		}
	}
}

func TestExtract_ProcedureDate(t *testing.T) {
	dict := mustDefault(t)
	tests := []struct {
		text string
		want string
	}{
		{"Underwent appendectomy in March 2015.", "March 2015"},
		{"Appendectomy (2012), uneventful.", "2012"},
		{"Appendectomy done long ago.", ""},
	}
	for _, tt := range tests {
		r := Extract(tt.text, dict)
		f := findByName(r.Procedures, "Appendectomy")
		if f == nil {
			t.Errorf("%q: expected appendectomy", tt.text)
			continue
		}
		if f.Date != tt.want {
			t.Errorf("%q: expected date %q, got %q", tt.text, tt.want, f.Date)
		}
	}
}

func TestExtract_ProcedureNegated(t *testing.T) {
	r := Extract("No appendectomy or other surgery.", mustDefault(t))
	if findByName(r.Procedures, "Appendectomy") != nil {
		t.Error("expected negated procedure to be suppressed")
	}
}

func TestExtract_FullWidthDigits(t *testing.T) {
	r := Extract("HbA1c ７.２", nil)
	f := findByName(r.LabValues, "HbA1c")
	if f == nil || f.Value != "7.2" {
		t.Errorf("expected NFKC-normalized value 7.2, got %+v", f)
	}
}

func TestExtract_Language(t *testing.T) {
	r := Extract("मधुमेह है diabetes", nil)
	if r.Language != "hi-en" {
		t.Errorf("expected hi-en, got %q", r.Language)
	}
}

func TestExtractor_Override(t *testing.T) {
	x := NewExtractor(mustDefault(t))
	custom := &Dictionary{Conditions: []ConditionEntry{{CanonicalName: "Gout"}}}
	r := x.Extract("gout and hypertension", custom)
	if len(r.Conditions) != 1 || r.Conditions[0].CanonicalName != "Gout" {
		t.Errorf("expected override dictionary to be used, got %+v", r.Conditions)
	}
	r = x.Extract("gout and hypertension", nil)
	if findByName(r.Conditions, "Hypertension") == nil {
		t.Error("expected default dictionary to be used")
	}
}
