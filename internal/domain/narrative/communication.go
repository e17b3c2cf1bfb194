package narrative

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/uwdesk/decisioncore/internal/platform/provenance"
)

var (
	ErrSectionLocked    = errors.New("section is locked")
	ErrSectionNotFound  = errors.New("section not found")
	ErrNotDraft         = errors.New("communication is not a draft")
	ErrEditorRequired   = errors.New("editor is required")
	ErrApproverRequired = errors.New("approver is required")
)

// ApprovalError lists why a communication could not be approved.
type ApprovalError struct {
	MissingDisclosures []string `json:"missing_disclosures"`
	MissingCompliance  bool     `json:"missing_compliance"`
}

func (e *ApprovalError) Error() string {
	var parts []string
	if len(e.MissingDisclosures) > 0 {
		parts = append(parts, "missing disclosures: "+strings.Join(e.MissingDisclosures, "; "))
	}
	if e.MissingCompliance {
		parts = append(parts, "no locked compliance section")
	}
	return "approval blocked: " + strings.Join(parts, ", ")
}

type Status string

const (
	StatusDraft    Status = "draft"
	StatusApproved Status = "approved"
)

type Metadata struct {
	AssemblyVersion      string           `json:"assembly_version"`
	Variant              Variant          `json:"variant"`
	PhraseLibraryVersion string           `json:"phrase_library_version"`
	GeneratedAt          time.Time        `json:"generated_at"`
	Provenance           provenance.Trail `json:"provenance"`
	ContentFingerprint   string           `json:"content_fingerprint"`
}

// EditRecord is one entry of the edit-history ledger.
type EditRecord struct {
	Editor          string    `json:"editor"`
	Timestamp       time.Time `json:"timestamp"`
	SectionID       string    `json:"section_id"`
	PreviousContent string    `json:"previous_content"`
	NewContent      string    `json:"new_content"`
}

// Communication is an assembled letter. The section list (ids, types and
// lock flags) is fixed at assembly; only the content of unlocked sections
// changes, and only through Edit.
type Communication struct {
	ID            uuid.UUID
	Type          CommunicationType
	CaseReference string
	Subject       string
	Metadata      Metadata
	Status        Status
	ApprovedBy    string
	ApprovedAt    *time.Time
	VersionID     int
	CreatedAt     time.Time
	UpdatedAt     time.Time

	sections []Section
	body     string
	edits    []EditRecord
}

func newCommunication(t CommunicationType, caseRef, subject string, sections []Section, meta Metadata) *Communication {
	c := &Communication{
		ID:            uuid.New(),
		Type:          t,
		CaseReference: caseRef,
		Subject:       subject,
		Metadata:      meta,
		Status:        StatusDraft,
		VersionID:     1,
		CreatedAt:     meta.GeneratedAt,
		UpdatedAt:     meta.GeneratedAt,
		sections:      sections,
	}
	c.recompose()
	return c
}

// Restore rebuilds a communication from stored state.
func Restore(c Communication, sections []Section, edits []EditRecord) *Communication {
	out := c
	out.sections = cloneSections(sections)
	out.edits = append([]EditRecord(nil), edits...)
	out.recompose()
	return &out
}

func cloneSections(in []Section) []Section {
	out := make([]Section, len(in))
	for i, s := range in {
		out[i] = s.clone()
	}
	return out
}

// Sections returns a copy of the ordered sections.
func (c *Communication) Sections() []Section {
	return cloneSections(c.sections)
}

func (c *Communication) Section(id string) (Section, bool) {
	for _, s := range c.sections {
		if s.ID == id {
			return s.clone(), true
		}
	}
	return Section{}, false
}

// Body is the ordered concatenation of every section's current content.
func (c *Communication) Body() string {
	return c.body
}

// EditHistory returns a copy of the edit ledger, oldest first.
func (c *Communication) EditHistory() []EditRecord {
	return append([]EditRecord(nil), c.edits...)
}

func (c *Communication) recompose() {
	parts := make([]string, 0, len(c.sections))
	for _, s := range c.sections {
		if s.Content != "" {
			parts = append(parts, s.Content)
		}
	}
	c.body = strings.Join(parts, "\n\n")
}

// Edit replaces the content of an unlocked section, records the change and
// recomposes the body. On error nothing changes.
func (c *Communication) Edit(sectionID, content, editor string, at time.Time) error {
	if c.Status != StatusDraft {
		return ErrNotDraft
	}
	if strings.TrimSpace(editor) == "" {
		return ErrEditorRequired
	}
	idx := -1
	for i, s := range c.sections {
		if s.ID == sectionID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrSectionNotFound, sectionID)
	}
	if c.sections[idx].Locked {
		return fmt.Errorf("%w: %s", ErrSectionLocked, sectionID)
	}
	c.edits = append(c.edits, EditRecord{
		Editor:          editor,
		Timestamp:       at,
		SectionID:       sectionID,
		PreviousContent: c.sections[idx].Content,
		NewContent:      content,
	})
	c.sections[idx].Content = content
	c.UpdatedAt = at
	c.recompose()
	return nil
}

// DisclosureChecks evaluates the required disclosures against the current
// body.
func (c *Communication) DisclosureChecks() []DisclosureCheck {
	return CheckDisclosures(c.Type, c.body)
}

func (c *Communication) hasLockedCompliance() bool {
	for _, s := range c.sections {
		if s.Type == SectionCompliance && s.Locked {
			return true
		}
	}
	return false
}

// CheckApproval returns an *ApprovalError when the communication cannot be
// approved in its current state, and nil otherwise.
func (c *Communication) CheckApproval() error {
	aerr := &ApprovalError{MissingCompliance: !c.hasLockedCompliance()}
	for _, d := range c.DisclosureChecks() {
		if !d.Present {
			aerr.MissingDisclosures = append(aerr.MissingDisclosures, d.Description)
		}
	}
	if len(aerr.MissingDisclosures) > 0 || aerr.MissingCompliance {
		return aerr
	}
	return nil
}

// Approve moves a draft to approved when every required disclosure is
// present and a locked compliance section exists. On error nothing changes.
func (c *Communication) Approve(approver string, at time.Time) error {
	if c.Status != StatusDraft {
		return ErrNotDraft
	}
	if strings.TrimSpace(approver) == "" {
		return ErrApproverRequired
	}
	if err := c.CheckApproval(); err != nil {
		return err
	}
	c.Status = StatusApproved
	c.ApprovedBy = approver
	approvedAt := at
	c.ApprovedAt = &approvedAt
	c.UpdatedAt = at
	return nil
}

type communicationJSON struct {
	ID            uuid.UUID         `json:"id"`
	Type          CommunicationType `json:"communication_type"`
	CaseReference string            `json:"case_reference"`
	Subject       string            `json:"subject"`
	Status        Status            `json:"status"`
	Sections      []Section         `json:"sections"`
	Body          string            `json:"body"`
	Metadata      Metadata          `json:"metadata"`
	EditCount     int               `json:"edit_count"`
	ApprovedBy    string            `json:"approved_by,omitempty"`
	ApprovedAt    *time.Time        `json:"approved_at,omitempty"`
	VersionID     int               `json:"version"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (c *Communication) MarshalJSON() ([]byte, error) {
	return json.Marshal(communicationJSON{
		ID:            c.ID,
		Type:          c.Type,
		CaseReference: c.CaseReference,
		Subject:       c.Subject,
		Status:        c.Status,
		Sections:      c.sections,
		Body:          c.body,
		Metadata:      c.Metadata,
		EditCount:     len(c.edits),
		ApprovedBy:    c.ApprovedBy,
		ApprovedAt:    c.ApprovedAt,
		VersionID:     c.VersionID,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	})
}
