package scoring

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"unicode"
)

// FeatureVector is an immutable set of true boolean features. Features not
// in the set are false.
type FeatureVector struct {
	flags map[string]bool
}

func NewFeatureVector(names ...string) FeatureVector {
	flags := make(map[string]bool, len(names))
	for _, n := range names {
		flags[n] = true
	}
	return FeatureVector{flags: flags}
}

// Has reports whether the named feature is true.
func (v FeatureVector) Has(name string) bool {
	return v.flags[name]
}

// With returns a copy of v with the named feature set to true.
func (v FeatureVector) With(name string) FeatureVector {
	return NewFeatureVector(append(v.Names(), name)...)
}

// Names returns the true features in sorted order.
func (v FeatureVector) Names() []string {
	out := make([]string, 0, len(v.flags))
	for n, ok := range v.flags {
		if ok {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

func (v FeatureVector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Names())
}

func (v *FeatureVector) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*v = NewFeatureVector(names...)
	return nil
}

// conditionCategory is one keyword group for condition-name matching. Keywords
// are matched against space-padded, punctuation-free lower-case text, so a
// keyword such as " mi " only matches the whole word.
type conditionCategory struct {
	name     string
	keywords []string
}

var conditionCategories = []conditionCategory{
	{"diabetes", []string{"diabet", " t2dm ", " t1dm ", " dm ", "niddm", "iddm"}},
	{"hypertension", []string{"hypertension", "blood pressure", " htn "}},
	{"cardiac", []string{"cardiac", "heart", "coronary", " mi ", "myocardial", "angina", "arrhythmia", "cabg", "angioplasty", " cad "}},
	{"renal", []string{"kidney", "renal", " ckd ", "nephro"}},
	{"cancer", []string{"cancer", "malignan", "tumor", "tumour", "carcinoma", "lymphoma", "leukemia", "leukaemia"}},
	{"respiratory", []string{"asthma", " copd ", "respiratory", "pulmonary", "bronch", "tuberculosis"}},
	{"neurological", []string{"stroke", "epilepsy", "seizure", "parkinson", "alzheimer", "multiple sclerosis"}},
	{"mental_health", []string{"depress", "anxiety", "bipolar", "schizophren", "psychiat", "mental"}},
	{"liver", []string{"liver", "hepat", "cirrhosis", "nafld"}},
}

var familyCategories = []conditionCategory{
	{"cardiac", []string{"cardiac", "heart", "coronary"}},
	{"diabetes", []string{"diabet"}},
	{"cancer", []string{"cancer", "malignan"}},
}

var (
	diabetesDrugs    = []string{"metformin", "glimepiride", "gliclazide", "glipizide", "sitagliptin", "vildagliptin", "teneligliptin", "dapagliflozin", "empagliflozin", "pioglitazone", "insulin"}
	statinDrugs      = []string{"statin"}
	nephrotoxicDrugs = []string{"nsaid", "ibuprofen", "diclofenac", "naproxen", "aceclofenac", "lithium", "tacrolimus", "cyclosporin", "gentamicin", "amphotericin", "methotrexate", "tenofovir"}
	hepatotoxicDrugs = []string{"methotrexate", "isoniazid", "rifampicin", "valpro", "amiodarone", "ketoconazole", "leflunomide", "acetaminophen", "paracetamol"}
)

// keywordText lower-cases and space-pads the joined values, replacing
// punctuation with spaces.
func keywordText(values []string) string {
	joined := strings.ToLower(strings.Join(values, " "))
	joined = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, joined)
	return " " + strings.Join(strings.Fields(joined), " ") + " "
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// caseFacts are the intermediate facts shared by both feature sets.
type caseFacts struct {
	age            *int
	bmi            *float64
	conditions     map[string]bool
	family         map[string]bool
	conditionCount int
	medText        string
	smoking        string
	alcohol        string
	hazardous      bool
}

func deriveFacts(snap *CaseSnapshot) caseFacts {
	f := caseFacts{
		age:        snap.Applicant.Age,
		bmi:        EffectiveBMI(snap.Applicant),
		conditions: map[string]bool{},
		family:     map[string]bool{},
		smoking:    strings.ToLower(strings.TrimSpace(snap.Applicant.SmokingStatus)),
		alcohol:    strings.ToLower(strings.TrimSpace(snap.Applicant.AlcoholStatus)),
	}
	var condNames, familyNames, drugNames []string
	for _, d := range snap.Disclosures {
		switch {
		case d.is(DisclosureCondition):
			f.conditionCount++
			condNames = append(condNames, d.ConditionName)
		case d.is(DisclosureFamilyHistory):
			familyNames = append(familyNames, d.FamilyCondition, d.ConditionName)
		case d.is(DisclosureMedication):
			drugNames = append(drugNames, d.DrugName)
		}
	}
	condText := keywordText(condNames)
	for _, c := range conditionCategories {
		f.conditions[c.name] = containsAny(condText, c.keywords)
	}
	famText := keywordText(familyNames)
	for _, c := range familyCategories {
		f.family[c.name] = containsAny(famText, c.keywords)
	}
	f.medText = keywordText(drugNames)
	for _, a := range snap.Applicant.HazardousActivities {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" && a != "none" {
			f.hazardous = true
		}
	}
	return f
}

// EffectiveBMI returns the stated BMI, or derives it from height and weight
// rounded to one decimal. It returns nil when neither is available.
func EffectiveBMI(a Applicant) *float64 {
	if a.BMI != nil && *a.BMI > 0 {
		return a.BMI
	}
	if a.HeightCm == nil || a.WeightKg == nil || *a.HeightCm <= 0 || *a.WeightKg <= 0 {
		return nil
	}
	m := *a.HeightCm / 100
	bmi := math.Round(*a.WeightKg/(m*m)*10) / 10
	return &bmi
}

// ComplexityFeatures derives the complexity feature set from a case.
func ComplexityFeatures(snap *CaseSnapshot) FeatureVector {
	f := deriveFacts(snap)
	var names []string

	if f.age != nil {
		switch age := *f.age; {
		case age < 30:
			names = append(names, "age_under_30")
		case age < 45:
			names = append(names, "age_30_44")
		case age < 55:
			names = append(names, "age_45_54")
		case age <= 65:
			names = append(names, "age_55_65")
		default:
			names = append(names, "age_over_65")
		}
	}

	if snap.SumAssured > 0 {
		switch lakhs := snap.SumAssured / 100000; {
		case lakhs < 25:
			names = append(names, "sum_standard")
		case lakhs < 75:
			names = append(names, "sum_elevated")
		case lakhs <= 100:
			names = append(names, "sum_high")
		default:
			names = append(names, "sum_very_high")
		}
	}

	for _, c := range []string{"diabetes", "hypertension", "cardiac", "renal", "cancer", "respiratory", "neurological", "mental_health"} {
		if f.conditions[c] {
			names = append(names, "condition_"+c)
		}
	}

	switch f.smoking {
	case "current":
		names = append(names, "smoker_current")
	case "former":
		names = append(names, "smoker_former")
	}
	switch f.alcohol {
	case "heavy":
		names = append(names, "alcohol_heavy")
	case "regular", "moderate":
		names = append(names, "alcohol_regular")
	}
	if f.hazardous {
		names = append(names, "hazardous_activity")
	}

	if f.bmi != nil {
		switch bmi := *f.bmi; {
		case bmi < 18.5:
			names = append(names, "bmi_underweight")
		case bmi < 25:
			names = append(names, "bmi_normal")
		case bmi < 30:
			names = append(names, "bmi_overweight")
		case bmi < 35:
			names = append(names, "bmi_obese")
		default:
			names = append(names, "bmi_morbid")
		}
	}

	switch {
	case f.conditionCount == 2:
		names = append(names, "conditions_two")
	case f.conditionCount >= 3:
		names = append(names, "conditions_three_plus")
	}

	for _, c := range []string{"cardiac", "diabetes", "cancer"} {
		if f.family[c] {
			names = append(names, "family_"+c)
		}
	}
	return NewFeatureVector(names...)
}

// YieldFeatures derives the test-yield feature set from a case.
func YieldFeatures(snap *CaseSnapshot) FeatureVector {
	f := deriveFacts(snap)
	var names []string

	for _, c := range []string{"diabetes", "hypertension", "cardiac", "renal", "liver"} {
		if f.conditions[c] {
			names = append(names, "has_"+c)
		}
	}
	if containsAny(f.medText, diabetesDrugs) {
		names = append(names, "on_diabetes_meds")
	}
	if containsAny(f.medText, statinDrugs) {
		names = append(names, "on_statins")
	}
	if containsAny(f.medText, nephrotoxicDrugs) {
		names = append(names, "on_nephrotoxic_meds")
	}
	if containsAny(f.medText, hepatotoxicDrugs) {
		names = append(names, "on_hepatotoxic_meds")
	}
	if f.age != nil && *f.age >= 45 {
		names = append(names, "age_over_45")
	}
	if f.age != nil && *f.age >= 60 {
		names = append(names, "age_over_60")
	}
	if f.bmi != nil && *f.bmi >= 30 {
		names = append(names, "bmi_over_30")
	}
	if f.family["diabetes"] {
		names = append(names, "family_diabetes")
	}
	if f.family["cardiac"] {
		names = append(names, "family_cardiac")
	}
	if f.smoking == "current" {
		names = append(names, "smoker")
	}
	switch f.alcohol {
	case "heavy":
		names = append(names, "alcohol_heavy")
	case "regular", "moderate":
		names = append(names, "alcohol_regular")
	}
	return NewFeatureVector(names...)
}

// dataCoverage measures how much of the yield-relevant applicant data was
// supplied: 0.5 base, 0.15 each for age and BMI, 0.05 each for smoking
// status and any disclosure, capped at 0.95.
func dataCoverage(snap *CaseSnapshot) float64 {
	c := 0.5
	if snap.Applicant.Age != nil {
		c += 0.15
	}
	if EffectiveBMI(snap.Applicant) != nil {
		c += 0.15
	}
	if strings.TrimSpace(snap.Applicant.SmokingStatus) != "" {
		c += 0.05
	}
	if len(snap.Disclosures) > 0 {
		c += 0.05
	}
	return math.Min(0.95, round6(c))
}
