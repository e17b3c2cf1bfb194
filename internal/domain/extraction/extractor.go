// Package extraction turns free-form clinical notes into structured,
// confidence-scored findings: conditions, medications, laboratory values,
// dates and procedures.
//
// Extraction is a pure function of the text and the dictionary. It never
// fails: missing dictionary fields behave as empty lists and unparsable
// numbers fall back to qualitative handling.
package extraction

import (
	"math"
	"strings"

	"github.com/uwdesk/decisioncore/pkg/refrange"
)

// Extractor binds a default dictionary to the pure Extract function. It holds
// no mutable state and is safe for concurrent use.
type Extractor struct {
	dict *Dictionary
}

func NewExtractor(dict *Dictionary) *Extractor {
	if dict == nil {
		dict = &Dictionary{}
	}
	return &Extractor{dict: dict}
}

// Dictionary returns the default dictionary.
func (e *Extractor) Dictionary() *Dictionary {
	return e.dict
}

// Extract runs extraction with override when it is non-nil, otherwise with the
// extractor's default dictionary.
func (e *Extractor) Extract(text string, override *Dictionary) *Result {
	if override != nil {
		return Extract(text, override)
	}
	return Extract(text, e.dict)
}

// Extract scans text against dict and returns every finding together with the
// mean confidence of all findings (0 when nothing was found).
func Extract(text string, dict *Dictionary) *Result {
	if dict == nil {
		dict = &Dictionary{}
	}
	normalized := normalizeText(text)
	lower := lowerSameLen(normalized)

	r := &Result{
		Conditions:  extractTerms(normalized, lower, KindCondition, dict.Conditions),
		Medications: extractMedications(normalized, lower, dict.Medications),
		LabValues:   extractLabValues(normalized),
		Dates:       extractDates(normalized),
		Procedures:  extractTerms(normalized, lower, KindProcedure, dict.Procedures),
		Language:    detectLanguage(normalized),
	}
	r.OverallConfidence = meanConfidence(r.All())
	return r
}

func termList(primary string, others []string) []string {
	terms := make([]string, 0, len(others)+1)
	for _, t := range append([]string{primary}, others...) {
		t = strings.TrimSpace(t)
		if len(t) < minTermLength {
			continue
		}
		terms = append(terms, t)
	}
	return terms
}

func dedupKey(kind Kind, name, category string) string {
	return string(kind) + "\x00" + strings.ToLower(name) + "\x00" + strings.ToLower(category)
}

// extractTerms handles conditions and procedures: dictionary lookup with
// negation suppression and exact-match / affirmation confidence boosts.
func extractTerms(text, lower string, kind Kind, entries []ConditionEntry) []Finding {
	out := []Finding{}
	seen := make(map[string]bool)
	for _, entry := range entries {
		key := dedupKey(kind, entry.CanonicalName, entry.Category)
		if entry.CanonicalName == "" || seen[key] {
			continue
		}
		for _, term := range termList(entry.CanonicalName, entry.Synonyms) {
			needle := lowerSameLen(normalizeText(term))
			idx := indexWord(lower, needle)
			if idx < 0 {
				continue
			}
			// first hit decides the entry, even when it is negated
			seen[key] = true
			window := precedingWindow(lower, idx, contextWindow)
			if hasAnyPhrase(window, negationPhrases) {
				break
			}
			conf := baseConfidence
			if strings.EqualFold(term, entry.CanonicalName) {
				conf = exactConfidence
			}
			if hasAnyPhrase(window, affirmationPhrases) {
				conf = math.Min(conf+affirmationBoost, maxConfidence)
			}
			end := idx + len(needle)
			f := Finding{
				Kind:          kind,
				CanonicalName: entry.CanonicalName,
				MatchedTerm:   text[idx:end],
				Confidence:    roundConfidence(conf),
				Offset:        idx,
				SourceSpan:    sourceSpan(text, idx, end),
				Category:      entry.Category,
			}
			if len(entry.Codes) > 0 {
				f.ICDCode = entry.Codes[0]
			}
			if kind == KindProcedure {
				f.Date = nearbyDate(text, idx, end)
			}
			out = append(out, f)
			break
		}
	}
	return out
}

func extractMedications(text, lower string, entries []MedicationEntry) []Finding {
	out := []Finding{}
	seen := make(map[string]bool)
	for _, entry := range entries {
		key := dedupKey(KindMedication, entry.Name, entry.Category)
		if entry.Name == "" || seen[key] {
			continue
		}
		for _, term := range termList(entry.Name, entry.GenericNames) {
			needle := lowerSameLen(normalizeText(term))
			idx := indexWord(lower, needle)
			if idx < 0 {
				continue
			}
			seen[key] = true
			end := idx + len(needle)
			conf := baseConfidence
			if strings.EqualFold(term, entry.Name) {
				conf = exactConfidence
			}
			f := Finding{
				Kind:          KindMedication,
				CanonicalName: entry.Name,
				MatchedTerm:   text[idx:end],
				Confidence:    roundConfidence(conf),
				Offset:        idx,
				SourceSpan:    sourceSpan(text, idx, end),
				Category:      entry.Category,
			}
			if m := dosageRe.FindStringSubmatch(followingWindow(text, end, dosageWindow)); m != nil {
				f.Dosage = m[1] + normalizeUnit(m[2])
			}
			if m := frequencyRe.FindString(followingWindow(text, end, frequencyWindow)); m != "" {
				f.Frequency = m
			}
			out = append(out, f)
			break
		}
	}
	return out
}

func normalizeUnit(u string) string {
	u = strings.ToLower(u)
	switch u {
	case "µg", "μg":
		return "mcg"
	case "unit":
		return "units"
	}
	return u
}

// extractLabValues applies every catalog pattern to the full text and keeps
// the first match per test name.
// extractLabValues applies every catalog pattern in order. A reported value
// belongs to the first test that claims it, so "glycated haemoglobin 7.2" is
// not read again as a haemoglobin result.
func extractLabValues(text string) []Finding {
	out := []Finding{}
	seen := make(map[string]bool)
	var claimed [][2]int
	for _, lt := range LabCatalog {
		for _, m := range lt.Pattern.FindAllStringSubmatchIndex(text, -1) {
			if seen[lt.Name] || overlapsAny(claimed, m[2], m[3]) {
				continue
			}
			raw := strings.TrimRight(text[m[2]:m[3]], ",")
			f := Finding{
				Kind:           KindLabValue,
				CanonicalName:  lt.Name,
				Value:          raw,
				Unit:           lt.Unit,
				ReferenceRange: lt.ReferenceRange,
				Offset:         m[2],
				SourceSpan:     sourceSpan(text, m[0], m[3]),
			}
			classifyLab(&f, raw, lt.ReferenceRange)
			seen[lt.Name] = true
			claimed = append(claimed, [2]int{m[2], m[3]})
			out = append(out, f)
		}
	}
	return out
}

func overlapsAny(spans [][2]int, start, end int) bool {
	for _, sp := range spans {
		if start < sp[1] && sp[0] < end {
			return true
		}
	}
	return false
}

func classifyLab(f *Finding, raw, referenceRange string) {
	if raw != "" && raw[0] >= '0' && raw[0] <= '9' {
		if v, err := refrange.ParseNumber(raw); err == nil {
			f.NumericValue = &v
			f.Confidence = numericLabConf
			rng, ok := refrange.Parse(referenceRange)
			if !ok {
				f.Interpretation = "indeterminate"
				return
			}
			f.Abnormal = rng.Abnormal(v)
			f.Interpretation = string(rng.Classify(v))
			return
		}
	}
	f.Confidence = qualitativeLabConf
	rule, ok := qualitativeRules[strings.ToLower(raw)]
	if !ok {
		f.Interpretation = "indeterminate"
		return
	}
	f.Abnormal = rule.abnormal
	f.Interpretation = rule.interpretation
}

// extractDates returns every context-anchored date, in catalog order and then
// text order. Several dates of the same type are all kept.
func extractDates(text string) []Finding {
	out := []Finding{}
	for _, dp := range DateCatalog {
		for _, m := range dp.Pattern.FindAllStringSubmatchIndex(text, -1) {
			token := text[m[2]:m[3]]
			out = append(out, Finding{
				Kind:          KindDate,
				CanonicalName: dp.DateType,
				DateType:      dp.DateType,
				Value:         token,
				Normalized:    normalizeDate(token),
				Confidence:    dateConfidence,
				Offset:        m[2],
				SourceSpan:    sourceSpan(text, m[0], m[3]),
			})
		}
	}
	return out
}

// nearbyDate looks for a date token after the match, then before it, and
// finally for a bare year on either side.
func nearbyDate(text string, start, end int) string {
	after := followingWindow(text, end, procedureDateSpan)
	from := runeStart(text, start-procedureDateSpan)
	before := text[from:start]
	if m := dateTokenRe.FindStringSubmatch(after); m != nil {
		return m[1]
	}
	if all := dateTokenRe.FindAllStringSubmatch(before, -1); len(all) > 0 {
		return all[len(all)-1][1]
	}
	if m := yearTokenRe.FindStringSubmatch(after); m != nil {
		return m[1]
	}
	if all := yearTokenRe.FindAllStringSubmatch(before, -1); len(all) > 0 {
		return all[len(all)-1][1]
	}
	return ""
}

func hasAnyPhrase(window string, phrases []string) bool {
	for _, p := range phrases {
		if containsPhrase(window, p) {
			return true
		}
	}
	return false
}

func roundConfidence(c float64) float64 {
	c = math.Round(c*100) / 100
	return math.Max(0, math.Min(1, c))
}

func meanConfidence(findings []Finding) float64 {
	if len(findings) == 0 {
		return 0
	}
	var sum float64
	for _, f := range findings {
		sum += f.Confidence
	}
	return sum / float64(len(findings))
}
