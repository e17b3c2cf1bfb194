package extraction

// Kind identifies the type of clinical entity a Finding describes.
type Kind string

const (
	KindCondition  Kind = "condition"
	KindMedication Kind = "medication"
	KindLabValue   Kind = "lab_value"
	KindDate       Kind = "date"
	KindProcedure  Kind = "procedure"
)

// Finding is one structured, confidence-scored entity found in clinical text.
// Fields after SourceSpan are populated only for the kinds that use them.
type Finding struct {
	Kind          Kind    `json:"kind"`
	CanonicalName string  `json:"canonical_name"`
	MatchedTerm   string  `json:"matched_term,omitempty"`
	Confidence    float64 `json:"confidence"`
	Offset        int     `json:"offset"`
	SourceSpan    string  `json:"source_span"`
	Category      string  `json:"category,omitempty"`

	// condition / procedure
	ICDCode string `json:"icd_code,omitempty"`
	Date    string `json:"date,omitempty"`

	// medication
	Dosage    string `json:"dosage,omitempty"`
	Frequency string `json:"frequency,omitempty"`

	// lab_value
	Value          string   `json:"value,omitempty"`
	NumericValue   *float64 `json:"numeric_value,omitempty"`
	Unit           string   `json:"unit,omitempty"`
	ReferenceRange string   `json:"reference_range,omitempty"`
	Abnormal       bool     `json:"abnormal"`
	Interpretation string   `json:"interpretation,omitempty"`

	// date
	DateType   string `json:"date_type,omitempty"`
	Normalized string `json:"normalized,omitempty"`
}

// Result is the output of one extraction call.
type Result struct {
	Conditions        []Finding `json:"conditions"`
	Medications       []Finding `json:"medications"`
	LabValues         []Finding `json:"lab_values"`
	Dates             []Finding `json:"dates"`
	Procedures        []Finding `json:"procedures"`
	OverallConfidence float64   `json:"overall_confidence"`
	Language          string    `json:"language"`
}

// All returns every finding in kind order: conditions, medications, lab
// values, dates, procedures.
func (r *Result) All() []Finding {
	out := make([]Finding, 0, len(r.Conditions)+len(r.Medications)+len(r.LabValues)+len(r.Dates)+len(r.Procedures))
	out = append(out, r.Conditions...)
	out = append(out, r.Medications...)
	out = append(out, r.LabValues...)
	out = append(out, r.Dates...)
	out = append(out, r.Procedures...)
	return out
}

// ConditionEntry is one dictionary entry for a condition or procedure.
type ConditionEntry struct {
	CanonicalName string   `json:"canonical_name" yaml:"canonical_name"`
	Synonyms      []string `json:"synonyms" yaml:"synonyms"`
	Codes         []string `json:"codes" yaml:"codes"`
	Category      string   `json:"category" yaml:"category"`
}

// MedicationEntry is one dictionary entry for a medication.
type MedicationEntry struct {
	Name         string   `json:"name" yaml:"name"`
	GenericNames []string `json:"generic_names" yaml:"generic_names"`
	Category     string   `json:"category" yaml:"category"`
}

// Dictionary holds the synonym lists the extractor matches against. Missing
// fields are treated as empty lists.
type Dictionary struct {
	Version     string            `json:"version,omitempty" yaml:"version"`
	Conditions  []ConditionEntry  `json:"conditions" yaml:"conditions"`
	Medications []MedicationEntry `json:"medications" yaml:"medications"`
	Procedures  []ConditionEntry  `json:"procedures" yaml:"procedures"`
}
