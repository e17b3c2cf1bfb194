package scoring

import (
	"fmt"
	"strings"
)

// Applicant carries the demographic and lifestyle fields scoring reads.
// Pointer fields are optional; a missing age or BMI sets no band feature.
type Applicant struct {
	Age                 *int     `json:"age,omitempty"`
	Gender              string   `json:"gender,omitempty"`
	BMI                 *float64 `json:"bmi,omitempty"`
	HeightCm            *float64 `json:"height_cm,omitempty"`
	WeightKg            *float64 `json:"weight_kg,omitempty"`
	SmokingStatus       string   `json:"smoking_status,omitempty"` // never | former | current
	AlcoholStatus       string   `json:"alcohol_status,omitempty"` // none | occasional | regular | heavy
	HazardousActivities []string `json:"hazardous_activities,omitempty"`
}

// Disclosure types recognized by feature derivation.
const (
	DisclosureCondition     = "condition"
	DisclosureMedication    = "medication"
	DisclosureFamilyHistory = "family_history"
	DisclosureSurgery       = "surgery"
)

type Disclosure struct {
	DisclosureType  string `json:"disclosure_type"`
	ConditionName   string `json:"condition_name,omitempty"`
	ConditionStatus string `json:"condition_status,omitempty"`
	DiagnosisDate   string `json:"diagnosis_date,omitempty"`
	FamilyCondition string `json:"family_condition,omitempty"`
	FamilyRelation  string `json:"family_relationship,omitempty"`
	DrugName        string `json:"drug_name,omitempty"`
	Dosage          string `json:"dosage,omitempty"`
}

func (d Disclosure) is(kind string) bool {
	return strings.EqualFold(strings.TrimSpace(d.DisclosureType), kind)
}

// RiskFactor is produced by the external rule engine. Scoring echoes the
// adverse count but does not weight risk factors.
type RiskFactor struct {
	Severity          string `json:"severity,omitempty"`
	ImpactDirection   string `json:"impact_direction,omitempty"`
	FactorDescription string `json:"factor_description,omitempty"`
}

// CaseSnapshot is the case data one scoring call works from. SumAssured is
// in rupees.
type CaseSnapshot struct {
	CaseID      string       `json:"case_id,omitempty"`
	Applicant   Applicant    `json:"applicant"`
	SumAssured  float64      `json:"sum_assured"`
	Disclosures []Disclosure `json:"disclosures"`
	RiskFactors []RiskFactor `json:"risk_factors,omitempty"`
}

// Tier is the complexity classification.
type Tier string

const (
	TierRoutine  Tier = "Routine"
	TierModerate Tier = "Moderate"
	TierComplex  Tier = "Complex"
)

// Tier thresholds; each lower bound is inclusive.
const (
	ModerateThreshold = 0.30
	ComplexThreshold  = 0.60
)

// YieldCategory is the bucketed test-yield probability.
type YieldCategory string

const (
	YieldHigh     YieldCategory = "High"
	YieldModerate YieldCategory = "Moderate"
	YieldLow      YieldCategory = "Low"
)

// Direction tags attached to contributing factors.
const (
	IncreasesComplexity = "increases_complexity"
	DecreasesComplexity = "decreases_complexity"
	IncreasesYield      = "increases_yield"
	DecreasesYield      = "decreases_yield"
)

// Factor is one true feature that contributed to a score.
type Factor struct {
	Feature   string  `json:"factor"`
	Label     string  `json:"label"`
	Weight    float64 `json:"weight"`
	Direction string  `json:"direction"`
}

type ComplexityResult struct {
	Tier                   Tier          `json:"tier"`
	Confidence             float64       `json:"confidence"`
	Score                  float64       `json:"score"`
	RawScore               float64       `json:"raw_score"`
	Factors                []Factor      `json:"factors"`
	Features               FeatureVector `json:"features"`
	AdverseRiskFactorCount int           `json:"adverse_risk_factor_count"`
	ModelVersion           string        `json:"model_version"`
}

type YieldResult struct {
	TestCode       string        `json:"test_code"`
	TestPanel      TestPanel     `json:"test_panel"`
	Probability    float64       `json:"probability"`
	Category       YieldCategory `json:"category"`
	Recommendation string        `json:"recommendation"`
	Confidence     float64       `json:"confidence"`
	Factors        []Factor      `json:"factors"`
	ModelVersion   string        `json:"model_version"`
}

// Validate rejects values outside plausible applicant ranges.
func (s *CaseSnapshot) Validate() error {
	if s.SumAssured < 0 {
		return fmt.Errorf("sum_assured must not be negative")
	}
	if s.Applicant.Age != nil && (*s.Applicant.Age < 0 || *s.Applicant.Age > 120) {
		return fmt.Errorf("applicant.age must be within 0-120")
	}
	if s.Applicant.BMI != nil && (*s.Applicant.BMI < 10 || *s.Applicant.BMI > 80) {
		return fmt.Errorf("applicant.bmi must be within 10-80")
	}
	return nil
}
