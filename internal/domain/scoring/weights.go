package scoring

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed weights.yaml
var defaultWeightsYAML []byte

// Weight is one named feature weight. Tables are ordered; ties in factor
// ranking keep table order.
type Weight struct {
	Feature string  `yaml:"feature" json:"feature"`
	Label   string  `yaml:"label" json:"label"`
	Value   float64 `yaml:"weight" json:"weight"`
}

// YieldTable is the weight table of one test panel.
type YieldTable struct {
	Base    float64  `yaml:"base" json:"base"`
	Weights []Weight `yaml:"weights" json:"weights"`
}

// YieldTables holds one table per known test panel.
type YieldTables struct {
	HbA1c   YieldTable `yaml:"hba1c" json:"hba1c"`
	Lipid   YieldTable `yaml:"lipid" json:"lipid"`
	LFT     YieldTable `yaml:"lft" json:"lft"`
	RFT     YieldTable `yaml:"rft" json:"rft"`
	ECG     YieldTable `yaml:"ecg" json:"ecg"`
	Default YieldTable `yaml:"default" json:"default"`
}

// For returns the table of panel p.
func (t *YieldTables) For(p TestPanel) *YieldTable {
	switch p {
	case PanelHbA1c:
		return &t.HbA1c
	case PanelLipid:
		return &t.Lipid
	case PanelLFT:
		return &t.LFT
	case PanelRFT:
		return &t.RFT
	case PanelECG:
		return &t.ECG
	case PanelDefault:
		return &t.Default
	default:
		return &t.Default
	}
}

// Weights is the complete scoring configuration. It is loaded once and must
// not be modified afterwards.
type Weights struct {
	Version    string      `yaml:"version" json:"version"`
	Complexity []Weight    `yaml:"complexity" json:"complexity"`
	Yield      YieldTables `yaml:"yield" json:"yield"`
}

// DefaultWeights decodes the built-in weight tables.
func DefaultWeights() (*Weights, error) {
	return ParseWeights(defaultWeightsYAML)
}

// LoadWeights reads weight tables from a YAML file. An empty path yields the
// built-in tables.
func LoadWeights(path string) (*Weights, error) {
	if path == "" {
		return DefaultWeights()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read weights %s: %w", path, err)
	}
	return ParseWeights(data)
}

func ParseWeights(data []byte) (*Weights, error) {
	var w Weights
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode weights: %w", err)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

func (w *Weights) Validate() error {
	var errs []string
	if strings.TrimSpace(w.Version) == "" {
		errs = append(errs, "version is required")
	}
	if len(w.Complexity) == 0 {
		errs = append(errs, "complexity table is empty")
	}
	errs = append(errs, checkDuplicates("complexity", w.Complexity)...)
	for _, p := range AllPanels {
		t := w.Yield.For(p)
		if t.Base < 0 || t.Base > 1 {
			errs = append(errs, fmt.Sprintf("yield.%s.base must be within [0,1]", p))
		}
		errs = append(errs, checkDuplicates("yield."+string(p), t.Weights)...)
	}
	if len(errs) > 0 {
		return errors.New("invalid weights: " + strings.Join(errs, "; "))
	}
	return nil
}

func checkDuplicates(table string, ws []Weight) []string {
	var errs []string
	seen := make(map[string]bool, len(ws))
	for _, w := range ws {
		if w.Feature == "" {
			errs = append(errs, table+": feature name is required")
			continue
		}
		if seen[w.Feature] {
			errs = append(errs, fmt.Sprintf("%s: duplicate feature %s", table, w.Feature))
		}
		seen[w.Feature] = true
	}
	return errs
}
