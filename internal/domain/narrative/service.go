package narrative

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uwdesk/decisioncore/internal/platform/db"
	"github.com/uwdesk/decisioncore/internal/platform/middleware"
	"github.com/uwdesk/decisioncore/internal/platform/provenance"
)

var ErrUnknownVariant = errors.New("unknown narrative variant")

// Counter receives workflow events. Labels are name/value pairs.
type Counter interface {
	Inc(name string, labels ...string)
}

type nopCounter struct{}

func (nopCounter) Inc(string, ...string) {}

// Service persists assembled communications and serializes edits and
// approvals through optimistic versioning. Section content is never logged.
type Service struct {
	assemblers     map[Variant]Assembler
	defaultVariant Variant
	repo           CommunicationRepository
	tx             db.Transactor
	clock          provenance.Clock
	metrics        Counter
	logger         zerolog.Logger
}

func NewService(repo CommunicationRepository, defaultVariant Variant, logger zerolog.Logger, assemblers ...Assembler) (*Service, error) {
	s := &Service{
		assemblers:     make(map[Variant]Assembler, len(assemblers)),
		defaultVariant: defaultVariant,
		repo:           repo,
		clock:          provenance.SystemClock{},
		metrics:        nopCounter{},
		logger:         logger.With().Str("component", "narrative").Logger(),
	}
	for _, a := range assemblers {
		s.assemblers[a.Variant()] = a
	}
	if _, ok := s.assemblers[defaultVariant]; !ok {
		return nil, fmt.Errorf("%w: no assembler for default %q", ErrUnknownVariant, defaultVariant)
	}
	return s, nil
}

// WithTransactor runs each read-modify-write inside one transaction.
func (s *Service) WithTransactor(tx db.Transactor) *Service {
	s.tx = tx
	return s
}

// WithClock sets the clock used for edit and approval timestamps.
func (s *Service) WithClock(c provenance.Clock) *Service {
	s.clock = c
	return s
}

func (s *Service) WithMetrics(m Counter) *Service {
	s.metrics = m
	return s
}

func (s *Service) assembler(v Variant) (Assembler, error) {
	if v == "" {
		v = s.defaultVariant
	}
	a, ok := s.assemblers[v]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVariant, v)
	}
	return a, nil
}

// Preview assembles without persisting.
func (s *Service) Preview(v Variant, req *AssemblyRequest) (*Communication, error) {
	a, err := s.assembler(v)
	if err != nil {
		return nil, err
	}
	return a.Assemble(req), nil
}

// Assemble builds a draft and stores it.
func (s *Service) Assemble(ctx context.Context, v Variant, req *AssemblyRequest) (*Communication, error) {
	c, err := s.Preview(v, req)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("store communication: %w", err)
	}
	s.log(ctx).Info().
		Str("communication_id", c.ID.String()).
		Str("communication_type", string(c.Type)).
		Str("variant", string(c.Metadata.Variant)).
		Int("sections", len(c.sections)).
		Int("phrases", len(c.Metadata.Provenance.PhraseIDs)).
		Msg("communication assembled")
	s.metrics.Inc("narrative_communications_assembled_total",
		"variant", string(c.Metadata.Variant), "communication_type", string(c.Type))
	return c, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Communication, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Communication, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// log tags entries with the request id when one is on ctx.
func (s *Service) log(ctx context.Context) *zerolog.Logger {
	l := s.logger
	if rid := middleware.RequestIDFromContext(ctx); rid != "" {
		l = l.With().Str("request_id", rid).Logger()
	}
	return &l
}

func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.InTx(ctx, fn)
}

// mutate loads the communication, checks the caller's version, applies fn
// and stores the result.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, version int, fn func(c *Communication) error) (*Communication, error) {
	var out *Communication
	err := s.inTx(ctx, func(ctx context.Context) error {
		c, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if c.VersionID != version {
			return ErrVersionConflict
		}
		if err := fn(c); err != nil {
			return err
		}
		if err := s.repo.Update(ctx, c, version); err != nil {
			return err
		}
		out = c
		return nil
	})
	return out, err
}

// EditSection replaces the content of an unlocked section.
func (s *Service) EditSection(ctx context.Context, id uuid.UUID, sectionID, content, editor string, version int) (*Communication, error) {
	c, err := s.mutate(ctx, id, version, func(c *Communication) error {
		return c.Edit(sectionID, content, editor, s.clock.Now().UTC())
	})
	if err != nil {
		s.log(ctx).Warn().
			Err(err).
			Str("communication_id", id.String()).
			Str("section_id", sectionID).
			Str("editor", editor).
			Msg("section edit rejected")
		s.metrics.Inc("narrative_section_edits_total", "outcome", "rejected")
		return nil, err
	}
	s.log(ctx).Info().
		Str("communication_id", id.String()).
		Str("section_id", sectionID).
		Str("editor", editor).
		Int("edit_count", len(c.edits)).
		Int("version", c.VersionID).
		Msg("section edited")
	s.metrics.Inc("narrative_section_edits_total", "outcome", "applied")
	return c, nil
}

// Approve moves a draft to approved once every required disclosure is
// present.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, approver string, version int) (*Communication, error) {
	c, err := s.mutate(ctx, id, version, func(c *Communication) error {
		return c.Approve(approver, s.clock.Now().UTC())
	})
	if err != nil {
		ev := s.log(ctx).Warn().Err(err).Str("communication_id", id.String()).Str("approver", approver)
		outcome := "rejected"
		var aerr *ApprovalError
		if errors.As(err, &aerr) {
			outcome = "blocked"
			ev = ev.Int("missing_disclosures", len(aerr.MissingDisclosures)).Bool("missing_compliance", aerr.MissingCompliance)
		}
		ev.Msg("approval rejected")
		s.metrics.Inc("narrative_approvals_total", "outcome", outcome)
		return nil, err
	}
	s.log(ctx).Info().
		Str("communication_id", id.String()).
		Str("approver", approver).
		Int("version", c.VersionID).
		Msg("communication approved")
	s.metrics.Inc("narrative_approvals_total", "outcome", "approved")
	return c, nil
}

func (s *Service) Disclosures(ctx context.Context, id uuid.UUID) ([]DisclosureCheck, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.DisclosureChecks(), nil
}

func (s *Service) Edits(ctx context.Context, id uuid.UUID) ([]EditRecord, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.EditHistory(), nil
}
