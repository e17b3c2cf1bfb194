package narrative

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/uwdesk/decisioncore/pkg/refrange"
)

// ConditionCategory is the closed set of condition groups with their own
// assessment phrase. Anything unmatched renders with CategoryGeneric.
type ConditionCategory string

const (
	CategoryDiabetes     ConditionCategory = "diabetes"
	CategoryHypertension ConditionCategory = "hypertension"
	CategoryCardiac      ConditionCategory = "cardiac"
	CategoryRespiratory  ConditionCategory = "respiratory"
	CategoryLipid        ConditionCategory = "lipid"
	CategoryThyroid      ConditionCategory = "thyroid"
	CategoryLiver        ConditionCategory = "liver"
	CategoryRenal        ConditionCategory = "renal"
	CategoryGeneric      ConditionCategory = "generic"
)

var categoryKeywords = []struct {
	category ConditionCategory
	keywords []string
}{
	{CategoryDiabetes, []string{"diabet", " t2dm ", " t1dm ", "hyperglyc"}},
	{CategoryHypertension, []string{"hypertens", " htn ", "blood pressure"}},
	{CategoryCardiac, []string{"cardiac", "heart", "coronary", "myocard", "angina", "arrhythm", " mi ", " cad "}},
	{CategoryRespiratory, []string{"asthma", " copd ", "bronch", "respirat", "pulmonar", "tubercul"}},
	{CategoryLipid, []string{"lipid", "cholesterol", "triglycerid"}},
	{CategoryThyroid, []string{"thyroid", "hashimoto", "graves"}},
	{CategoryLiver, []string{"liver", "hepat", "cirrho", "nafld"}},
	{CategoryRenal, []string{"renal", "kidney", "nephr", " ckd "}},
}

// ResolveCategory picks the formatter category for a condition. An explicit
// known Category wins; otherwise the name is keyword-matched in a fixed order.
func ResolveCategory(c MedicalCondition) ConditionCategory {
	explicit := ConditionCategory(strings.ToLower(strings.TrimSpace(c.Category)))
	for _, ck := range categoryKeywords {
		if ck.category == explicit {
			return explicit
		}
	}
	text := padWords(c.Name)
	for _, ck := range categoryKeywords {
		for _, kw := range ck.keywords {
			if strings.Contains(text, kw) {
				return ck.category
			}
		}
	}
	return CategoryGeneric
}

func padWords(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return " " + strings.Join(strings.Fields(s), " ") + " "
}

// FormatCondition renders one medical-assessment paragraph. assessment is the
// category sentence chosen from the phrase library; it closes the paragraph.
func FormatCondition(c MedicalCondition, assessment string) string {
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = "Disclosed condition"
	}
	var parts []string

	lead := name
	switch {
	case c.Duration != "":
		lead += ", diagnosed " + strings.TrimSpace(c.Duration) + " ago"
	case c.DiagnosisYear > 0:
		lead += fmt.Sprintf(", diagnosed in %d", c.DiagnosisYear)
	}
	if meds := nonEmpty(c.Medications); len(meds) > 0 {
		lead += " and managed with " + joinAnd(meds)
	}
	parts = append(parts, lead+".")

	if s := humanize(c.ControlStatus); s != "" {
		parts = append(parts, "The condition is reported as "+s+".")
	}
	if s := humanize(c.Severity); s != "" {
		parts = append(parts, "Severity is recorded as "+s+".")
	}
	for _, lab := range c.LabResults {
		if s := labSentence(lab); s != "" {
			parts = append(parts, s)
		}
	}
	if assessment = strings.TrimSpace(assessment); assessment != "" {
		parts = append(parts, assessment)
	}
	return strings.Join(parts, " ")
}

// labStatus returns the supplied status, or classifies the value against the
// reference range. It returns "" when neither is possible.
func labStatus(lab LabResult) string {
	if s := strings.ToLower(strings.TrimSpace(lab.Status)); s != "" {
		switch s {
		case "elevated", "raised":
			return string(refrange.High)
		case "reduced":
			return string(refrange.Low)
		}
		return s
	}
	v, err := refrange.ParseNumber(lab.Value)
	if err != nil {
		return ""
	}
	r, ok := refrange.Parse(lab.ReferenceRange)
	if !ok {
		return ""
	}
	return string(r.Classify(v))
}

func labSentence(lab LabResult) string {
	name := strings.TrimSpace(lab.TestName)
	value := strings.TrimSpace(lab.Value)
	if name == "" || value == "" {
		return ""
	}
	reading := value
	if u := strings.TrimSpace(lab.Unit); u != "" {
		if u == "%" {
			reading += u
		} else {
			reading += " " + u
		}
	}
	var verdict string
	switch labStatus(lab) {
	case string(refrange.High):
		verdict = "is elevated"
	case string(refrange.Low):
		verdict = "is below the reference range"
	case string(refrange.Normal):
		verdict = "is within the normal range"
	default:
		verdict = "has been noted"
	}
	s := fmt.Sprintf("Your %s of %s %s", name, reading, verdict)
	if rr := strings.TrimSpace(lab.ReferenceRange); rr != "" {
		s += " (reference " + rr + ")"
	}
	return s + "."
}

func humanize(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(strings.ToLower(s), "_", " "))
}

func nonEmpty(items []string) []string {
	var out []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			out = append(out, it)
		}
	}
	return out
}

// joinAnd joins items as "a", "a and b", or "a, b and c".
func joinAnd(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	default:
		return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
	}
}

var indianEnglish = language.MustParse("en-IN")

// FormatSumAssured renders a rupee amount with Indian digit grouping, e.g.
// 5000000 as "₹50,00,000". The locale is fixed so output never depends on the
// host.
func FormatSumAssured(amount float64) string {
	if amount <= 0 {
		return "the amount applied for"
	}
	return "₹" + message.NewPrinter(indianEnglish).Sprintf("%d", int64(math.Round(amount)))
}
