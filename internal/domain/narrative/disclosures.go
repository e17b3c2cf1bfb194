package narrative

import "strings"

// RequiredDisclosure is a statement a communication must contain before it
// can be approved. It is present when Marker occurs in the composed body,
// ignoring case.
type RequiredDisclosure struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Marker      string `json:"marker"`
}

type DisclosureCheck struct {
	RequiredDisclosure
	Present bool `json:"present"`
}

var baseDisclosures = []RequiredDisclosure{
	{ID: "grievance_redressal", Description: "Grievance redressal and ombudsman reference", Marker: "grievance"},
}

var typeDisclosures = map[CommunicationType][]RequiredDisclosure{
	StandardAcceptance: {
		{ID: "free_look_period", Description: "Free look period statement", Marker: "free look"},
	},
	ModifiedAcceptance: {
		{ID: "consent_to_modified_terms", Description: "Request for consent to the modified terms", Marker: "your consent"},
	},
	RequirementsLetter: {
		{ID: "submission_window", Description: "Thirty-day window for submitting requirements", Marker: "within 30 days"},
	},
	DeclineNotice: {
		{ID: "reconsideration_right", Description: "Right to request reconsideration", Marker: "reconsideration"},
		{ID: "medical_practitioner_disclosure", Description: "Disclosure of medical reasons to a nominated medical practitioner", Marker: "medical practitioner"},
	},
	PostponementNotice: {
		{ID: "reapplication_eligibility", Description: "Eligibility to reapply after the postponement period", Marker: "reapply"},
	},
}

// RequiredDisclosures returns the disclosures a communication of type t must
// contain, base entries first.
func RequiredDisclosures(t CommunicationType) []RequiredDisclosure {
	specific := typeDisclosures[t.Normalize()]
	out := make([]RequiredDisclosure, 0, len(baseDisclosures)+len(specific))
	out = append(out, baseDisclosures...)
	return append(out, specific...)
}

// CheckDisclosures reports, for each required disclosure of t, whether body
// contains it.
func CheckDisclosures(t CommunicationType, body string) []DisclosureCheck {
	lower := strings.ToLower(body)
	required := RequiredDisclosures(t)
	out := make([]DisclosureCheck, len(required))
	for i, d := range required {
		out[i] = DisclosureCheck{
			RequiredDisclosure: d,
			Present:            strings.Contains(lower, strings.ToLower(d.Marker)),
		}
	}
	return out
}
