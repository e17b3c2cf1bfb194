package extraction

import (
	"regexp"
	"strings"
)

const (
	minTermLength     = 3
	contextWindow     = 50
	dosageWindow      = 30
	frequencyWindow   = 100
	procedureDateSpan = 60
	spanPadding       = 40

	baseConfidence     = 0.80
	exactConfidence    = 0.95
	affirmationBoost   = 0.10
	maxConfidence      = 0.98
	numericLabConf     = 0.90
	qualitativeLabConf = 0.80
	dateConfidence     = 0.85
)

// negationPhrases suppress a condition or procedure when found in the clause
// immediately preceding it.
var negationPhrases = []string{
	"no ",
	"not ",
	"denies ",
	"denied ",
	"ruled out ",
	"r/o ",
	"without ",
	"negative for ",
	"free of ",
	"no history of ",
	"no h/o ",
	"no evidence of ",
	"absence of ",
	"never had ",
}

var affirmationPhrases = []string{
	"diagnosed with ",
	"diagnosed as ",
	"history of ",
	"h/o ",
	"c/o ",
	"k/c/o ",
	"known case of ",
	"suffering from ",
	"treated for ",
	"on treatment for ",
	"complains of ",
	"presented with ",
}

// clauseTerminators end the scope of a preceding negation or affirmation. A
// full stop also ends it; see sentenceEnd.
var clauseTerminators = []string{
	";",
	"\n",
	" but ",
	" however ",
	" although ",
	" though ",
	" except ",
	" apart from ",
	" aside from ",
	" yet ",
	" whereas ",
	" which ",
}

// abbreviations are words whose trailing full stop does not end a sentence.
// Single letters and dotted forms such as "e.g." are handled separately.
var abbreviations = map[string]bool{
	"dr":     true,
	"mr":     true,
	"mrs":    true,
	"ms":     true,
	"vs":     true,
	"viz":    true,
	"approx": true,
	"hx":     true,
	"pt":     true,
}

var (
	dosageRe    = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(mcg|µg|μg|mg|ml|iu|units?|g)\b`)
	frequencyRe = regexp.MustCompile(`(?i)\b(once daily|twice daily|thrice daily|once a day|twice a day|three times a day|three times daily|four times a day|every \d+ hours|at bedtime|at night|once weekly|weekly|daily|o\.d|b\.d|t\.d\.s|q\.i\.d|od|bd|bid|tds|tid|qid|qds|hs|prn|sos|stat)\b`)
)

const monthNames = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

// dateToken matches a numeric (d/m/y) or month-name date.
const dateToken = `(?:\d{1,2}(?:st|nd|rd|th)?[\s\-/]*(?:` + monthNames + `)\.?[\s\-/,]*\d{4}` +
	`|(?:` + monthNames + `)\.?\s+\d{1,2}(?:st|nd|rd|th)?,?\s+\d{4}` +
	`|(?:` + monthNames + `)\.?[\s\-,]*\d{4}` +
	`|\d{1,2}[/.\-]\d{1,2}[/.\-](?:\d{4}|\d{2}))`

var (
	dateTokenRe = regexp.MustCompile(`(?i)\b(` + dateToken + `)\b`)
	yearTokenRe = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
)

// LabTest is one entry of the laboratory catalog. Pattern captures the
// reported value in its first group.
type LabTest struct {
	Name           string
	Pattern        *regexp.Regexp
	Unit           string
	ReferenceRange string
}

const labValue = `(\d[\d,]*(?:\.\d+)?|(?:trace|positive|negative|nil|absent|present)\b|\+{1,3})`

func labPattern(aliases ...string) *regexp.Regexp {
	quoted := make([]string, len(aliases))
	for i, a := range aliases {
		quoted[i] = regexp.QuoteMeta(a)
	}
	return regexp.MustCompile(`(?i)(?:^|[^a-z0-9])(?:` + strings.Join(quoted, "|") + `)(?:[^a-z0-9]|$)[^\d\n]{0,25}?` + labValue)
}

// LabCatalog is the fixed laboratory test catalog.
var LabCatalog = []LabTest{
	{"HbA1c", labPattern("hba1c", "glycated haemoglobin", "glycated hemoglobin", "glycosylated hemoglobin", "a1c"), "%", "< 5.7"},
	{"Fasting Blood Sugar", labPattern("fasting blood sugar", "fasting blood glucose", "fasting plasma glucose", "fbs", "fbg", "fpg"), "mg/dL", "70-100"},
	{"Postprandial Blood Sugar", labPattern("postprandial blood sugar", "post prandial blood sugar", "ppbs", "pp blood sugar"), "mg/dL", "< 140"},
	{"Random Blood Sugar", labPattern("random blood sugar", "random blood glucose", "rbs"), "mg/dL", "< 200"},
	{"Total Cholesterol", labPattern("total cholesterol", "serum cholesterol", "s. cholesterol"), "mg/dL", "< 200"},
	{"LDL Cholesterol", labPattern("ldl cholesterol", "ldl-c", "ldl"), "mg/dL", "< 100"},
	{"HDL Cholesterol", labPattern("hdl cholesterol", "hdl-c", "hdl"), "mg/dL", "> 40"},
	{"VLDL Cholesterol", labPattern("vldl cholesterol", "vldl"), "mg/dL", "< 30"},
	{"Triglycerides", labPattern("triglycerides", "triglyceride", "tg"), "mg/dL", "< 150"},
	{"Serum Creatinine", labPattern("serum creatinine", "s. creatinine", "creatinine"), "mg/dL", "0.6-1.2"},
	{"Blood Urea", labPattern("blood urea", "serum urea", "urea"), "mg/dL", "15-40"},
	{"BUN", labPattern("blood urea nitrogen", "bun"), "mg/dL", "7-20"},
	{"Uric Acid", labPattern("uric acid", "serum uric acid"), "mg/dL", "3.5-7.2"},
	{"eGFR", labPattern("egfr", "estimated gfr"), "mL/min/1.73m2", "> 90"},
	{"Sodium", labPattern("serum sodium", "sodium", "na+"), "mmol/L", "135-145"},
	{"Potassium", labPattern("serum potassium", "potassium", "k+"), "mmol/L", "3.5-5.1"},
	{"ALT", labPattern("sgpt (alt)", "sgpt", "alt"), "U/L", "7-35"},
	{"AST", labPattern("sgot (ast)", "sgot", "ast"), "U/L", "8-33"},
	{"GGT", labPattern("gamma gt", "ggt", "ggtp"), "U/L", "5-36"},
	{"Alkaline Phosphatase", labPattern("alkaline phosphatase", "alp"), "U/L", "44-147"},
	{"Total Bilirubin", labPattern("total bilirubin", "serum bilirubin", "bilirubin"), "mg/dL", "0.1-1.2"},
	{"Albumin", labPattern("serum albumin", "albumin"), "g/dL", "3.5-5.0"},
	{"Hemoglobin", labPattern("haemoglobin", "hemoglobin", "hb", "hgb"), "g/dL", "12.0-16.0"},
	{"WBC Count", labPattern("wbc count", "total leucocyte count", "total leukocyte count", "tlc", "wbc"), "/cumm", "4,000-11,000"},
	{"Platelet Count", labPattern("platelet count", "platelets"), "/cumm", "150,000-400,000"},
	{"RBC Count", labPattern("rbc count", "red cell count", "rbc"), "million/cumm", "4.0-5.5"},
	{"ESR", labPattern("esr", "erythrocyte sedimentation rate"), "mm/hr", "0-20"},
	{"TSH", labPattern("tsh", "thyroid stimulating hormone"), "mIU/L", "0.35-5.50"},
	{"Free T4", labPattern("free t4", "ft4"), "ng/dL", "0.89-1.76"},
	{"Free T3", labPattern("free t3", "ft3"), "pg/mL", "2.3-4.2"},
	{"Anti-TPO Antibodies", labPattern("anti-tpo antibodies", "anti-tpo", "anti tpo"), "IU/mL", "< 35"},
	{"Urine Albumin", labPattern("urine albumin", "urine protein", "proteinuria"), "", "Nil"},
	{"Urine Sugar", labPattern("urine sugar", "urine glucose", "glycosuria"), "", "Nil"},
	{"Urine Ketones", labPattern("urine ketones", "ketones"), "", "Negative"},
	{"Microalbumin", labPattern("microalbumin", "urine microalbumin"), "mg/L", "< 30"},
	{"PSA", labPattern("psa", "prostate specific antigen"), "ng/mL", "< 4"},
	{"Vitamin D", labPattern("vitamin d", "25-oh vitamin d", "vit d"), "ng/mL", "30-100"},
	{"Vitamin B12", labPattern("vitamin b12", "vit b12", "b12"), "pg/mL", "200-900"},
	{"hs-CRP", labPattern("hs-crp", "hscrp", "c-reactive protein", "crp"), "mg/L", "< 3"},
	{"NT-proBNP", labPattern("nt-probnp", "nt probnp"), "pg/mL", "< 125"},
	{"BMI", labPattern("bmi", "body mass index"), "kg/m2", "18.5-24.9"},
}

// qualitativeRule classifies a non-numeric laboratory result.
type qualitativeRule struct {
	abnormal       bool
	interpretation string
}

var qualitativeRules = map[string]qualitativeRule{
	"trace":    {abnormal: true, interpretation: "abnormal"},
	"positive": {abnormal: true, interpretation: "abnormal"},
	"present":  {abnormal: true, interpretation: "abnormal"},
	"+":        {abnormal: true, interpretation: "abnormal"},
	"++":       {abnormal: true, interpretation: "abnormal"},
	"+++":      {abnormal: true, interpretation: "abnormal"},
	"negative": {abnormal: false, interpretation: "normal"},
	"nil":      {abnormal: false, interpretation: "normal"},
	"absent":   {abnormal: false, interpretation: "normal"},
}

// DatePattern is one context-anchored date pattern. Pattern captures the date
// token in its first group.
type DatePattern struct {
	DateType string
	Pattern  *regexp.Regexp
}

func datePattern(anchor string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + anchor + `)\b[^\n]{0,40}?\b(` + dateToken + `)\b`)
}

// DateCatalog is the fixed set of context-anchored date patterns.
var DateCatalog = []DatePattern{
	{"diagnosis_date", datePattern(`diagnosed|diagnosis|detected`)},
	{"condition_start", datePattern(`since|onset|known since|suffering since`)},
	{"hospitalization", datePattern(`admitted|hospitali[sz]ed|hospitali[sz]ation|admission`)},
	{"surgery", datePattern(`operated|surgery|underwent|surgical`)},
	{"follow_up", datePattern(`follow[\s\-]?up|review|next visit|revisit`)},
	{"treatment_start", datePattern(`treatment started|started on|initiated|commenced`)},
	{"report_date", datePattern(`report date|date of report|exam date|examination date|reported on|collected on|dated`)},
}
