package narrative

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed phrases.yaml
var defaultPhrasesYAML []byte

// Phrase is one pre-approved text fragment. Text may contain {placeholder}
// tokens.
type Phrase struct {
	ID       string   `yaml:"id" json:"id"`
	Text     string   `yaml:"text" json:"text"`
	Category string   `yaml:"category" json:"category"`
	Tags     []string `yaml:"tags" json:"tags,omitempty"`
}

func (p Phrase) hasTags(tags []string) bool {
	for _, want := range tags {
		found := false
		for _, have := range p.Tags {
			if strings.EqualFold(have, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// PhraseLibrary is a versioned, ordered set of phrases. It is loaded once and
// read concurrently; nothing mutates it after ParsePhraseLibrary returns.
type PhraseLibrary struct {
	Version string   `yaml:"version" json:"version"`
	Phrases []Phrase `yaml:"phrases" json:"phrases"`

	byID map[string]int
}

func DefaultPhraseLibrary() (*PhraseLibrary, error) {
	return ParsePhraseLibrary(defaultPhrasesYAML)
}

// LoadPhraseLibrary reads a library from a YAML file. An empty path yields the
// built-in library.
func LoadPhraseLibrary(path string) (*PhraseLibrary, error) {
	if path == "" {
		return DefaultPhraseLibrary()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read phrase library %s: %w", path, err)
	}
	return ParsePhraseLibrary(data)
}

func ParsePhraseLibrary(data []byte) (*PhraseLibrary, error) {
	var lib PhraseLibrary
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("decode phrase library: %w", err)
	}
	lib.byID = make(map[string]int, len(lib.Phrases))
	for i, p := range lib.Phrases {
		if _, dup := lib.byID[p.ID]; !dup {
			lib.byID[p.ID] = i
		}
	}
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	return &lib, nil
}

// ByID returns the phrase with the given id.
func (l *PhraseLibrary) ByID(id string) (Phrase, bool) {
	i, ok := l.byID[id]
	if !ok {
		return Phrase{}, false
	}
	return l.Phrases[i], true
}

// Match returns the first phrase of category carrying every tag of the first
// tag set that matches anything. An empty tag set matches the first phrase of
// the category.
func (l *PhraseLibrary) Match(category string, tagSets ...[]string) (Phrase, bool) {
	if len(tagSets) == 0 {
		tagSets = [][]string{nil}
	}
	for _, tags := range tagSets {
		for _, p := range l.Phrases {
			if p.Category == category && p.hasTags(tags) {
				return p, true
			}
		}
	}
	return Phrase{}, false
}

// requiredSelections lists every (category, tags) lookup the assemblers make
// without a fallback.
func requiredSelections() [][2]string {
	sel := [][2]string{
		{"salutation", ""},
		{"positive", "intro"},
		{"medical", "intro"},
		{"condition", "reason:condition"},
		{"risk_factor", "reason:risk_factor"},
		{"modification", "intro"},
		{"modification", "consent"},
		{"requirement", "intro"},
		{"requirement", "deadline"},
		{"requirement", "urgency:" + UrgencyUrgent},
		{"requirement", "urgency:" + UrgencyStandard},
		{"requirement", "urgency:" + UrgencyRoutine},
		{"decline", "intro"},
		{"postponement", "intro"},
		{"compliance", "base"},
		{"signature", ""},
	}
	for _, ck := range categoryKeywords {
		sel = append(sel, [2]string{"formatter", "category:" + string(ck.category)})
	}
	sel = append(sel, [2]string{"formatter", "category:" + string(CategoryGeneric)})
	for _, t := range AllCommunicationTypes {
		for _, cat := range []string{"opening", "summary", "closing", "compliance"} {
			sel = append(sel, [2]string{cat, "type:" + string(t)})
		}
	}
	return sel
}

// Validate checks ids are present and unique and that every phrase the
// assemblers depend on can be selected.
func (l *PhraseLibrary) Validate() error {
	var errs []string
	if strings.TrimSpace(l.Version) == "" {
		errs = append(errs, "version is required")
	}
	seen := make(map[string]bool, len(l.Phrases))
	for i, p := range l.Phrases {
		switch {
		case p.ID == "":
			errs = append(errs, fmt.Sprintf("phrase %d: id is required", i))
		case seen[p.ID]:
			errs = append(errs, fmt.Sprintf("duplicate phrase id %s", p.ID))
		}
		seen[p.ID] = true
		if strings.TrimSpace(p.Text) == "" {
			errs = append(errs, fmt.Sprintf("phrase %s: text is required", p.ID))
		}
	}
	for _, sel := range requiredSelections() {
		var tags []string
		if sel[1] != "" {
			tags = []string{sel[1]}
		}
		if _, ok := l.Match(sel[0], tags); !ok {
			errs = append(errs, fmt.Sprintf("no %s phrase tagged %q", sel[0], sel[1]))
		}
	}
	if len(errs) > 0 {
		return errors.New("invalid phrase library: " + strings.Join(errs, "; "))
	}
	return nil
}

// interpolate replaces {name} tokens with vars[name]. Unknown tokens are left
// as they are.
func interpolate(text string, vars map[string]string) string {
	var b strings.Builder
	b.Grow(len(text))
	for {
		open := strings.IndexByte(text, '{')
		if open < 0 {
			b.WriteString(text)
			return b.String()
		}
		end := strings.IndexByte(text[open:], '}')
		if end < 0 {
			b.WriteString(text)
			return b.String()
		}
		end += open
		key := text[open+1 : end]
		b.WriteString(text[:open])
		if v, ok := vars[key]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(text[open : end+1])
		}
		text = text[end+1:]
	}
}
