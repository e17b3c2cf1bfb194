package narrative

import (
	"encoding/json"
	"strings"

	"github.com/uwdesk/decisioncore/internal/platform/provenance"
)

// CommunicationType selects the letter being assembled.
type CommunicationType string

const (
	StandardAcceptance CommunicationType = "standard_acceptance"
	ModifiedAcceptance CommunicationType = "modified_acceptance"
	RequirementsLetter CommunicationType = "requirements_letter"
	DeclineNotice      CommunicationType = "decline_notice"
	PostponementNotice CommunicationType = "postponement_notice"
)

var AllCommunicationTypes = []CommunicationType{
	StandardAcceptance, ModifiedAcceptance, RequirementsLetter, DeclineNotice, PostponementNotice,
}

// Normalize maps unknown types to StandardAcceptance.
func (t CommunicationType) Normalize() CommunicationType {
	switch CommunicationType(strings.ToLower(strings.TrimSpace(string(t)))) {
	case StandardAcceptance:
		return StandardAcceptance
	case ModifiedAcceptance:
		return ModifiedAcceptance
	case RequirementsLetter:
		return RequirementsLetter
	case DeclineNotice:
		return DeclineNotice
	case PostponementNotice:
		return PostponementNotice
	default:
		return StandardAcceptance
	}
}

// Variant names an assembler implementation.
type Variant string

const (
	VariantTemplate    Variant = "template"
	VariantPhraseBlock Variant = "phrase_block"
)

func (v Variant) Valid() bool {
	return v == VariantTemplate || v == VariantPhraseBlock
}

type CaseContext struct {
	ApplicantName   string  `json:"applicant_name"`
	ApplicantAge    int     `json:"applicant_age,omitempty"`
	ApplicantGender string  `json:"applicant_gender,omitempty"`
	CaseReference   string  `json:"case_reference"`
	ProductName     string  `json:"product_name"`
	SumAssured      float64 `json:"sum_assured"`
}

// LabResult is one laboratory value attached to a condition. Status may be
// left empty, in which case it is derived from ReferenceRange.
type LabResult struct {
	TestName       string `json:"test_name"`
	Value          string `json:"value"`
	Unit           string `json:"unit,omitempty"`
	ReferenceRange string `json:"reference_range,omitempty"`
	Status         string `json:"status,omitempty"` // high | low | normal
}

// MedicalCondition is a disclosed condition as the template variant renders it.
type MedicalCondition struct {
	Code          string      `json:"code,omitempty"`
	Name          string      `json:"name"`
	Category      string      `json:"category,omitempty"`
	Duration      string      `json:"duration,omitempty"`
	DiagnosisYear int         `json:"diagnosis_year,omitempty"`
	ControlStatus string      `json:"control_status,omitempty"`
	Severity      string      `json:"severity,omitempty"`
	Medications   []string    `json:"medications,omitempty"`
	LabResults    []LabResult `json:"lab_results,omitempty"`
}

type ReasonType string

const (
	ReasonCondition       ReasonType = "condition"
	ReasonModification    ReasonType = "modification"
	ReasonTestRequirement ReasonType = "test_requirement"
	ReasonRiskFactor      ReasonType = "risk_factor"
	ReasonPositiveFactor  ReasonType = "positive_factor"
)

// ReasonRecord is a structured underwriting reason produced by the rule
// engine.
type ReasonRecord struct {
	Type        ReasonType        `json:"type"`
	Code        string            `json:"code"`
	Description string            `json:"description"`
	Severity    string            `json:"severity,omitempty"`
	Details     map[string]string `json:"details,omitempty"`
}

// Modification is one change to standard terms: an exclusion, loading,
// waiting period or reduced cover.
type Modification struct {
	Code             string `json:"code,omitempty"`
	Kind             string `json:"kind,omitempty"`
	What             string `json:"what"`
	Why              string `json:"why"`
	Duration         string `json:"duration,omitempty"`
	ReviewPeriod     string `json:"review_period,omitempty"`
	RelatedCondition string `json:"related_condition,omitempty"`
}

// Urgency levels for test requirements, in rendering order.
const (
	UrgencyUrgent   = "urgent"
	UrgencyStandard = "standard"
	UrgencyRoutine  = "routine"
)

type TestRequirement struct {
	Code             string `json:"code,omitempty"`
	What             string `json:"what"`
	Why              string `json:"why"`
	Urgency          string `json:"urgency,omitempty"`
	RelatedCondition string `json:"related_condition,omitempty"`
}

// DeclineReason explains a decline or a postponement.
type DeclineReason struct {
	Code        string `json:"code,omitempty"`
	Description string `json:"description"`
}

// AssemblyRequest is everything one assembly call needs.
type AssemblyRequest struct {
	Type               CommunicationType  `json:"communication_type"`
	Context            CaseContext        `json:"case_context"`
	Conditions         []MedicalCondition `json:"conditions,omitempty"`
	Reasons            []ReasonRecord     `json:"reasons,omitempty"`
	Modifications      []Modification     `json:"modifications,omitempty"`
	TestRequirements   []TestRequirement  `json:"test_requirements,omitempty"`
	DeclineReasons     []DeclineReason    `json:"decline_reasons,omitempty"`
	PostponementPeriod string             `json:"postponement_period,omitempty"`
	Rationale          string             `json:"rationale,omitempty"`
}

// SectionType classifies a section.
type SectionType string

const (
	SectionSalutation SectionType = "salutation"
	SectionBody       SectionType = "body"
	SectionCompliance SectionType = "compliance"
	SectionClosing    SectionType = "closing"
	SectionSignature  SectionType = "signature"
)

// Stable section ids.
const (
	IDSalutation            = "salutation"
	IDOpening               = "opening"
	IDPositiveFactors       = "positive_factors"
	IDMedicalAssessment     = "medical_assessment"
	IDModifications         = "modifications"
	IDRequirements          = "requirements"
	IDDeclineRationale      = "decline_rationale"
	IDPostponementRationale = "postponement_rationale"
	IDDecisionSummary       = "decision_summary"
	IDClosing               = "closing"
	IDCompliance            = "compliance"
	IDSignature             = "signature"
)

// Section is one block of a communication. Locked is fixed at creation.
type Section struct {
	ID         string           `json:"id"`
	Type       SectionType      `json:"type"`
	Content    string           `json:"content"`
	Locked     bool             `json:"is_locked"`
	Provenance provenance.Trail `json:"provenance"`
}

// Editable reports whether the section content may be replaced.
func (s Section) Editable() bool {
	return !s.Locked
}

func (s Section) clone() Section {
	s.Provenance = s.Provenance.Clone()
	return s
}

func (s Section) MarshalJSON() ([]byte, error) {
	type alias Section
	return json.Marshal(struct {
		alias
		Editable bool `json:"is_editable"`
	}{alias(s), s.Editable()})
}
