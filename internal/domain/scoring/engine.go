// Package scoring implements explainable weighted-feature scoring: case
// complexity tiers and per-test diagnostic yield. Every score is the sum of
// fixed weights over true boolean features, so each result can be explained
// by listing the features that fired.
package scoring

import (
	"math"
	"sort"
	"strings"
)

const (
	complexityFactorLimit = 5
	yieldFactorLimit      = 3

	minYield = 0.05
	maxYield = 0.95

	highYieldThreshold     = 0.65
	moderateYieldThreshold = 0.40
)

// TestPanel is the closed set of test panels with their own yield tables.
type TestPanel string

const (
	PanelHbA1c   TestPanel = "hba1c"
	PanelLipid   TestPanel = "lipid"
	PanelLFT     TestPanel = "lft"
	PanelRFT     TestPanel = "rft"
	PanelECG     TestPanel = "ecg"
	PanelDefault TestPanel = "default"
)

var AllPanels = []TestPanel{PanelHbA1c, PanelLipid, PanelLFT, PanelRFT, PanelECG, PanelDefault}

var panelKeywords = []struct {
	panel    TestPanel
	keywords []string
}{
	{PanelHbA1c, []string{"hba1c", "a1c", "glyc"}},
	{PanelLipid, []string{"lipid", "cholesterol"}},
	{PanelLFT, []string{"lft", "liver"}},
	{PanelRFT, []string{"rft", "kft", "renal", "kidney", "creatinine"}},
	{PanelECG, []string{"ecg", "ekg", "electrocardio"}},
}

// NormalizeTestCode maps a test code or name to its panel by substring
// match, checked in a fixed order. Unknown codes map to PanelDefault.
func NormalizeTestCode(code string) TestPanel {
	c := strings.ToLower(code)
	for _, pk := range panelKeywords {
		if containsAny(c, pk.keywords) {
			return pk.panel
		}
	}
	return PanelDefault
}

// Engine scores cases against one immutable set of weight tables. It is safe
// for concurrent use.
type Engine struct {
	weights *Weights
}

func NewEngine(w *Weights) *Engine {
	return &Engine{weights: w}
}

func (e *Engine) ModelVersion() string {
	return e.weights.Version
}

// ModelInfo describes one loaded weight table.
type ModelInfo struct {
	ModelType string    `json:"model_type"`
	Version   string    `json:"version"`
	TestPanel TestPanel `json:"test_panel,omitempty"`
	Base      *float64  `json:"base,omitempty"`
	Features  []string  `json:"features"`
}

// Models lists the complexity table and one entry per yield panel, keyed
// "complexity" and "test_yield_<panel>".
func (e *Engine) Models() map[string]ModelInfo {
	out := map[string]ModelInfo{
		"complexity": {
			ModelType: "complexity",
			Version:   e.weights.Version,
			Features:  featureNames(e.weights.Complexity),
		},
	}
	for _, p := range AllPanels {
		t := e.weights.Yield.For(p)
		base := t.Base
		out["test_yield_"+string(p)] = ModelInfo{
			ModelType: "test_yield",
			Version:   e.weights.Version,
			TestPanel: p,
			Base:      &base,
			Features:  featureNames(t.Weights),
		}
	}
	return out
}

func featureNames(ws []Weight) []string {
	names := make([]string, 0, len(ws))
	for _, w := range ws {
		names = append(names, w.Feature)
	}
	return names
}

// AssessComplexity derives complexity features from snap and classifies them.
func (e *Engine) AssessComplexity(snap *CaseSnapshot) *ComplexityResult {
	r := e.ClassifyComplexity(ComplexityFeatures(snap))
	r.AdverseRiskFactorCount = countAdverse(snap.RiskFactors)
	return r
}

// ClassifyComplexity scores a feature vector and maps it to a tier.
func (e *Engine) ClassifyComplexity(fv FeatureVector) *ComplexityResult {
	raw, factors := weigh(fv, e.weights.Complexity, IncreasesComplexity, DecreasesComplexity)
	score := clamp(raw, 0, 1)
	tier := tierFor(score)
	return &ComplexityResult{
		Tier:         tier,
		Confidence:   tierConfidence(tier, score),
		Score:        score,
		RawScore:     raw,
		Factors:      topFactors(factors, complexityFactorLimit),
		Features:     fv,
		ModelVersion: e.weights.Version,
	}
}

// PredictYield derives yield features from snap and scores them against the
// table for testCode.
func (e *Engine) PredictYield(testCode string, snap *CaseSnapshot) *YieldResult {
	r := e.ScoreYield(NormalizeTestCode(testCode), YieldFeatures(snap))
	r.TestCode = testCode
	r.Confidence = dataCoverage(snap)
	return r
}

// ScoreYield computes base + 0.5 * sum(weights) for panel, clamped to
// [0.05, 0.95].
func (e *Engine) ScoreYield(panel TestPanel, fv FeatureVector) *YieldResult {
	table := e.weights.Yield.For(panel)
	sum, factors := weigh(fv, table.Weights, IncreasesYield, DecreasesYield)
	p := clamp(round6(table.Base+0.5*sum), minYield, maxYield)
	category := yieldCategory(p)
	return &YieldResult{
		TestCode:       string(panel),
		TestPanel:      panel,
		Probability:    p,
		Category:       category,
		Recommendation: recommendation(category),
		Factors:        topFactors(factors, yieldFactorLimit),
		ModelVersion:   e.weights.Version,
	}
}

// weigh sums the weights of true features, rounded to 6 decimals, and
// returns the non-zero contributors in table order.
func weigh(fv FeatureVector, table []Weight, up, down string) (float64, []Factor) {
	var sum float64
	var factors []Factor
	for _, w := range table {
		if !fv.Has(w.Feature) {
			continue
		}
		sum += w.Value
		if w.Value == 0 {
			continue
		}
		dir := up
		if w.Value < 0 {
			dir = down
		}
		factors = append(factors, Factor{Feature: w.Feature, Label: w.Label, Weight: w.Value, Direction: dir})
	}
	return round6(sum), factors
}

func topFactors(factors []Factor, n int) []Factor {
	sort.SliceStable(factors, func(i, j int) bool {
		return math.Abs(factors[i].Weight) > math.Abs(factors[j].Weight)
	})
	if len(factors) > n {
		factors = factors[:n]
	}
	if factors == nil {
		factors = []Factor{}
	}
	return factors
}

func tierFor(score float64) Tier {
	switch {
	case score >= ComplexThreshold:
		return TierComplex
	case score >= ModerateThreshold:
		return TierModerate
	default:
		return TierRoutine
	}
}

// tierConfidence grows with the distance from the nearest relevant
// threshold: 0.5 on a boundary, 0.95 at 0.30 or more away.
func tierConfidence(tier Tier, score float64) float64 {
	var d float64
	switch tier {
	case TierRoutine:
		d = ModerateThreshold - score
	case TierModerate:
		d = math.Min(score-ModerateThreshold, ComplexThreshold-score)
	case TierComplex:
		d = score - ComplexThreshold
	}
	c := 0.5 + math.Min(1, d/0.30)*0.45
	return clamp(round6(c), 0.5, 0.95)
}

func yieldCategory(p float64) YieldCategory {
	switch {
	case p >= highYieldThreshold:
		return YieldHigh
	case p >= moderateYieldThreshold:
		return YieldModerate
	default:
		return YieldLow
	}
}

func recommendation(c YieldCategory) string {
	switch c {
	case YieldHigh:
		return "recommended"
	case YieldModerate:
		return "optional"
	default:
		return "low_yield"
	}
}

func countAdverse(rfs []RiskFactor) int {
	n := 0
	for _, rf := range rfs {
		switch strings.ToLower(strings.TrimSpace(rf.ImpactDirection)) {
		case "adverse", "negative", "increases", "increase":
			n++
		}
	}
	return n
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
