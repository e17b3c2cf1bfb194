// Package narrative assembles underwriting communications from structured
// reasons and case context. Output is built only from the approved phrase
// library and the caller's data; every section records the phrase ids and
// reason codes it came from.
package narrative

import (
	"fmt"
	"strings"

	"github.com/uwdesk/decisioncore/internal/platform/provenance"
)

const DefaultAssemblyVersion = "narrative-2.1.0"

// Assembler renders an AssemblyRequest into a draft Communication. Assemble
// never fails: unknown communication types render as standard acceptance.
// Identical requests yield identical sections and provenance; only the
// generation timestamp may differ.
type Assembler interface {
	Variant() Variant
	Assemble(req *AssemblyRequest) *Communication
}

type Options struct {
	Phrases         *PhraseLibrary
	Clock           provenance.Clock
	AssemblyVersion string
}

// NewAssembler returns the assembler for variant v.
func NewAssembler(v Variant, opts Options) (Assembler, error) {
	if opts.Phrases == nil {
		return nil, fmt.Errorf("phrase library is required")
	}
	if opts.Clock == nil {
		opts.Clock = provenance.SystemClock{}
	}
	if opts.AssemblyVersion == "" {
		opts.AssemblyVersion = DefaultAssemblyVersion
	}
	switch v {
	case VariantTemplate:
		return &TemplateAssembler{pipeline{opts: opts, variant: v}}, nil
	case VariantPhraseBlock:
		return &PhraseBlockAssembler{pipeline{opts: opts, variant: v}}, nil
	default:
		return nil, fmt.Errorf("unknown narrative variant %q", v)
	}
}

// TemplateAssembler renders conditions with the category formatters.
type TemplateAssembler struct {
	pipeline
}

func (a *TemplateAssembler) Variant() Variant { return VariantTemplate }

func (a *TemplateAssembler) Assemble(req *AssemblyRequest) *Communication {
	return a.assemble(req, templateMedical)
}

// PhraseBlockAssembler renders conditions and risk factors from phrase
// blocks selected by reason code, then by reason type.
type PhraseBlockAssembler struct {
	pipeline
}

func (a *PhraseBlockAssembler) Variant() Variant { return VariantPhraseBlock }

func (a *PhraseBlockAssembler) Assemble(req *AssemblyRequest) *Communication {
	return a.assemble(req, phraseBlockMedical)
}

// medicalRenderer produces the medical assessment paragraphs, or "" when
// there is nothing to assess.
type medicalRenderer func(b *builder, req *AssemblyRequest, trail *provenance.Trail) string

type pipeline struct {
	opts    Options
	variant Variant
}

func (p *pipeline) assemble(req *AssemblyRequest, medical medicalRenderer) *Communication {
	if req == nil {
		req = &AssemblyRequest{}
	}
	t := req.Type.Normalize()
	b := newBuilder(p.opts.Phrases, req)
	byType := []string{"type:" + string(t)}

	b.stage(IDSalutation, SectionSalutation, false, func(tr *provenance.Trail) string {
		return b.text(tr, "salutation")
	})
	b.stage(IDOpening, SectionBody, false, func(tr *provenance.Trail) string {
		return b.text(tr, "opening", byType)
	})
	b.stage(IDPositiveFactors, SectionBody, false, func(tr *provenance.Trail) string {
		return positiveFactors(b, req, tr)
	})
	b.stage(IDMedicalAssessment, SectionBody, false, func(tr *provenance.Trail) string {
		return medical(b, req, tr)
	})

	switch t {
	case ModifiedAcceptance:
		b.stage(IDModifications, SectionBody, false, func(tr *provenance.Trail) string {
			return modificationsSection(b, req, tr)
		})
	case RequirementsLetter:
		b.stage(IDRequirements, SectionBody, false, func(tr *provenance.Trail) string {
			return requirementsSection(b, req, tr)
		})
	case DeclineNotice:
		b.stage(IDDeclineRationale, SectionBody, false, func(tr *provenance.Trail) string {
			return reasonList(b, "decline", req.DeclineReasons, tr)
		})
	case PostponementNotice:
		b.stage(IDPostponementRationale, SectionBody, false, func(tr *provenance.Trail) string {
			return reasonList(b, "postponement", req.DeclineReasons, tr)
		})
	case StandardAcceptance:
	}

	b.stage(IDDecisionSummary, SectionBody, false, func(tr *provenance.Trail) string {
		summary := b.text(tr, "summary", byType)
		if r := strings.TrimSpace(req.Rationale); r != "" {
			summary += "\n\n" + r
		}
		return summary
	})
	b.stage(IDClosing, SectionClosing, false, func(tr *provenance.Trail) string {
		return b.text(tr, "closing", byType)
	})
	b.stage(IDCompliance, SectionCompliance, true, func(tr *provenance.Trail) string {
		return joinNonEmpty(" ", b.text(tr, "compliance", []string{"base"}), b.text(tr, "compliance", byType))
	})
	b.stage(IDSignature, SectionSignature, true, func(tr *provenance.Trail) string {
		return b.text(tr, "signature")
	})

	var trail provenance.Trail
	for _, s := range b.sections {
		trail.Merge(s.Provenance)
	}
	subject := Subject(t, req.Context)
	meta := Metadata{
		AssemblyVersion:      p.opts.AssemblyVersion,
		Variant:              p.variant,
		PhraseLibraryVersion: p.opts.Phrases.Version,
		GeneratedAt:          p.opts.Clock.Now().UTC(),
		Provenance:           trail,
		ContentFingerprint:   fingerprint(subject, b.sections),
	}
	return newCommunication(t, req.Context.CaseReference, subject, b.sections, meta)
}

var outcomes = map[CommunicationType]string{
	StandardAcceptance: "accepted on standard terms",
	ModifiedAcceptance: "offer on modified terms",
	RequirementsLetter: "additional requirements",
	DeclineNotice:      "unable to offer cover",
	PostponementNotice: "decision postponed",
}

// Subject returns "<product> application <case ref>: <outcome>".
func Subject(t CommunicationType, ctx CaseContext) string {
	product := strings.TrimSpace(ctx.ProductName)
	if product == "" {
		product = "Insurance"
	}
	head := product + " application"
	if ref := strings.TrimSpace(ctx.CaseReference); ref != "" {
		head += " " + ref
	}
	return head + ": " + outcomes[t.Normalize()]
}

func fingerprint(subject string, sections []Section) string {
	parts := []string{subject}
	for _, s := range sections {
		lock := "0"
		if s.Locked {
			lock = "1"
		}
		parts = append(parts, s.ID, string(s.Type), lock, s.Content,
			strings.Join(s.Provenance.PhraseIDs, ","), strings.Join(s.Provenance.ReasonCodes, ","))
	}
	return provenance.Fingerprint(parts...)
}

// ---------------------------------------------------------------------------
// builder
// ---------------------------------------------------------------------------

type builder struct {
	lib      *PhraseLibrary
	vars     map[string]string
	sections []Section
}

func newBuilder(lib *PhraseLibrary, req *AssemblyRequest) *builder {
	ctx := req.Context
	vars := map[string]string{
		"applicant_name":      orDefault(ctx.ApplicantName, "Applicant"),
		"product_name":        orDefault(ctx.ProductName, "us"),
		"case_reference":      strings.TrimSpace(ctx.CaseReference),
		"sum_assured":         FormatSumAssured(ctx.SumAssured),
		"postponement_period": orDefault(req.PostponementPeriod, "the postponement period"),
	}
	return &builder{lib: lib, vars: vars}
}

// stage runs one pipeline step and keeps its section when it produced text.
func (b *builder) stage(id string, typ SectionType, locked bool, fn func(tr *provenance.Trail) string) {
	var tr provenance.Trail
	content := strings.TrimSpace(fn(&tr))
	if content == "" {
		return
	}
	b.sections = append(b.sections, Section{
		ID:         id,
		Type:       typ,
		Content:    content,
		Locked:     locked,
		Provenance: tr,
	})
}

// text selects a phrase, records it and interpolates the request variables.
func (b *builder) text(tr *provenance.Trail, category string, tagSets ...[]string) string {
	return b.textWith(tr, nil, category, tagSets...)
}

func (b *builder) textWith(tr *provenance.Trail, extra map[string]string, category string, tagSets ...[]string) string {
	p, ok := b.lib.Match(category, tagSets...)
	if !ok {
		return ""
	}
	tr.AddPhrase(p.ID)
	vars := b.vars
	if len(extra) > 0 {
		vars = make(map[string]string, len(b.vars)+len(extra))
		for k, v := range b.vars {
			vars[k] = v
		}
		for k, v := range extra {
			vars[k] = v
		}
	}
	return tidy(interpolate(p.Text, vars))
}

// tidy collapses repeated spaces and drops spaces before punctuation left by
// empty placeholders. Leading indentation is kept.
func tidy(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		trimmed := strings.TrimLeft(line, " ")
		indent := line[:len(line)-len(trimmed)]
		trimmed = strings.Join(strings.Fields(trimmed), " ")
		trimmed = strings.NewReplacer(" ,", ",", " .", ".", " :", ":").Replace(trimmed)
		lines[i] = indent + trimmed
	}
	return strings.Join(lines, "\n")
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}

func joinNonEmpty(sep string, parts ...string) string {
	return strings.Join(nonEmpty(parts), sep)
}

func bullet(text string) string {
	return "- " + strings.TrimSpace(text)
}

// ---------------------------------------------------------------------------
// stages
// ---------------------------------------------------------------------------

func reasonsOf(req *AssemblyRequest, types ...ReasonType) []ReasonRecord {
	var out []ReasonRecord
	for _, r := range req.Reasons {
		for _, t := range types {
			if r.Type == t {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

func positiveFactors(b *builder, req *AssemblyRequest, tr *provenance.Trail) string {
	positives := reasonsOf(req, ReasonPositiveFactor)
	if len(positives) == 0 {
		return ""
	}
	lines := []string{b.text(tr, "positive", []string{"intro"})}
	for _, r := range positives {
		if strings.TrimSpace(r.Description) == "" {
			continue
		}
		lines = append(lines, bullet(r.Description))
		tr.AddReason(r.Code)
	}
	if len(lines) == 1 {
		return ""
	}
	return strings.Join(lines, "\n")
}

// templateMedical renders MedicalCondition records through the category
// formatters. Condition reasons stand in when no records were supplied.
func templateMedical(b *builder, req *AssemblyRequest, tr *provenance.Trail) string {
	conditions := req.Conditions
	if len(conditions) == 0 {
		for _, r := range reasonsOf(req, ReasonCondition) {
			conditions = append(conditions, MedicalCondition{Code: r.Code, Name: r.Description, Severity: r.Severity})
		}
	}
	if len(conditions) == 0 {
		return ""
	}
	paragraphs := []string{b.text(tr, "medical", []string{"intro"})}
	for _, c := range conditions {
		assessment := b.text(tr, "formatter",
			[]string{"category:" + string(ResolveCategory(c))},
			[]string{"category:" + string(CategoryGeneric)})
		paragraphs = append(paragraphs, FormatCondition(c, assessment))
		tr.AddReason(c.Code)
	}
	return strings.Join(paragraphs, "\n\n")
}

// phraseBlockMedical renders condition and risk-factor reasons from phrase
// blocks. Condition records stand in when no condition reasons were supplied.
func phraseBlockMedical(b *builder, req *AssemblyRequest, tr *provenance.Trail) string {
	reasons := reasonsOf(req, ReasonCondition, ReasonRiskFactor)
	if len(reasonsOf(req, ReasonCondition)) == 0 {
		var fromConditions []ReasonRecord
		for _, c := range req.Conditions {
			fromConditions = append(fromConditions, ReasonRecord{Type: ReasonCondition, Code: c.Code, Description: c.Name, Severity: c.Severity})
		}
		reasons = append(fromConditions, reasons...)
	}
	if len(reasons) == 0 {
		return ""
	}
	paragraphs := []string{b.text(tr, "medical", []string{"intro"})}
	for _, r := range reasons {
		category := "condition"
		if r.Type == ReasonRiskFactor {
			category = "risk_factor"
		}
		extra := map[string]string{
			"description": orDefault(r.Description, "Disclosed condition"),
			"code":        r.Code,
			"severity":    r.Severity,
		}
		for k, v := range r.Details {
			if _, reserved := extra[k]; !reserved {
				extra[k] = v
			}
		}
		var tagSets [][]string
		if r.Code != "" {
			tagSets = append(tagSets, []string{"code:" + r.Code})
		}
		tagSets = append(tagSets, []string{"reason:" + string(r.Type)})
		text := b.textWith(tr, extra, category, tagSets...)
		if text == "" {
			continue
		}
		if s := humanize(r.Severity); s != "" && r.Type == ReasonCondition {
			text += " Severity is recorded as " + s + "."
		}
		paragraphs = append(paragraphs, text)
		tr.AddReason(r.Code)
	}
	return strings.Join(paragraphs, "\n\n")
}

func modificationsSection(b *builder, req *AssemblyRequest, tr *provenance.Trail) string {
	mods := append([]Modification(nil), req.Modifications...)
	for _, r := range reasonsOf(req, ReasonModification) {
		mods = append(mods, Modification{
			Code:             r.Code,
			What:             r.Description,
			Why:              r.Details["why"],
			Duration:         r.Details["duration"],
			ReviewPeriod:     r.Details["review_period"],
			RelatedCondition: r.Details["related_condition"],
		})
	}
	var items []string
	for _, m := range mods {
		if strings.TrimSpace(m.What) == "" {
			continue
		}
		items = append(items, whatWhy(m.What, m.Why, m.Duration, m.ReviewPeriod, m.RelatedCondition))
		tr.AddReason(m.Code)
	}
	if len(items) == 0 {
		return ""
	}
	return b.text(tr, "modification", []string{"intro"}) + "\n" +
		strings.Join(items, "\n") + "\n\n" +
		b.text(tr, "modification", []string{"consent"})
}

func normalizeUrgency(u string) string {
	switch strings.ToLower(strings.TrimSpace(u)) {
	case UrgencyUrgent, "high", "immediate":
		return UrgencyUrgent
	case UrgencyRoutine, "low":
		return UrgencyRoutine
	default:
		return UrgencyStandard
	}
}

func requirementsSection(b *builder, req *AssemblyRequest, tr *provenance.Trail) string {
	reqs := append([]TestRequirement(nil), req.TestRequirements...)
	for _, r := range reasonsOf(req, ReasonTestRequirement) {
		reqs = append(reqs, TestRequirement{
			Code:             r.Code,
			What:             r.Description,
			Why:              r.Details["why"],
			Urgency:          r.Details["urgency"],
			RelatedCondition: r.Details["related_condition"],
		})
	}
	groups := map[string][]TestRequirement{}
	for _, r := range reqs {
		if strings.TrimSpace(r.What) == "" {
			continue
		}
		u := normalizeUrgency(r.Urgency)
		groups[u] = append(groups[u], r)
	}
	if len(groups) == 0 {
		return ""
	}
	blocks := []string{b.text(tr, "requirement", []string{"intro"})}
	for _, u := range []string{UrgencyUrgent, UrgencyStandard, UrgencyRoutine} {
		if len(groups[u]) == 0 {
			continue
		}
		lines := []string{b.text(tr, "requirement", []string{"urgency:" + u})}
		for _, r := range groups[u] {
			lines = append(lines, whatWhy(r.What, r.Why, "", "", r.RelatedCondition))
			tr.AddReason(r.Code)
		}
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	blocks = append(blocks, b.text(tr, "requirement", []string{"deadline"}))
	return strings.Join(blocks, "\n\n")
}

func reasonList(b *builder, category string, reasons []DeclineReason, tr *provenance.Trail) string {
	var items []string
	for _, r := range reasons {
		if strings.TrimSpace(r.Description) == "" {
			continue
		}
		items = append(items, bullet(r.Description))
		tr.AddReason(r.Code)
	}
	if len(items) == 0 {
		return ""
	}
	return b.text(tr, category, []string{"intro"}) + "\n" + strings.Join(items, "\n")
}

// whatWhy renders one item as a bullet with indented annotations.
func whatWhy(what, why, duration, review, related string) string {
	lines := []string{bullet(what)}
	if s := strings.TrimSpace(why); s != "" {
		lines = append(lines, "  Reason: "+s)
	}
	if s := strings.TrimSpace(duration); s != "" {
		lines = append(lines, "  Duration: "+s)
	}
	if s := strings.TrimSpace(review); s != "" {
		lines = append(lines, "  Review: "+s)
	}
	if s := strings.TrimSpace(related); s != "" {
		lines = append(lines, "  Related condition: "+s)
	}
	return strings.Join(lines, "\n")
}
