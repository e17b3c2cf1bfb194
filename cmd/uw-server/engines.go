package main

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/uwdesk/decisioncore/internal/config"
	"github.com/uwdesk/decisioncore/internal/domain/extraction"
	"github.com/uwdesk/decisioncore/internal/domain/narrative"
	"github.com/uwdesk/decisioncore/internal/domain/scoring"
	"github.com/uwdesk/decisioncore/internal/platform/db"
)

// engines holds the stateless components built from configuration.
type engines struct {
	extractor  *extraction.Extractor
	scorer     *scoring.Engine
	assemblers []narrative.Assembler
}

func loadEngines(cfg *config.Config, dictionaryPath string) (*engines, error) {
	if dictionaryPath == "" {
		dictionaryPath = cfg.ClinicalDictionaryPath
	}
	dict, err := loadDictionary(dictionaryPath)
	if err != nil {
		return nil, err
	}

	weights, err := loadWeights(cfg.ScoringWeightsPath)
	if err != nil {
		return nil, err
	}

	phrases, err := loadPhrases(cfg.PhraseLibraryPath)
	if err != nil {
		return nil, err
	}

	opts := narrative.Options{Phrases: phrases, AssemblyVersion: cfg.AssemblyVersion}
	var assemblers []narrative.Assembler
	for _, v := range []narrative.Variant{narrative.VariantTemplate, narrative.VariantPhraseBlock} {
		a, err := narrative.NewAssembler(v, opts)
		if err != nil {
			return nil, err
		}
		assemblers = append(assemblers, a)
	}

	return &engines{
		extractor:  extraction.NewExtractor(dict),
		scorer:     scoring.NewEngine(weights),
		assemblers: assemblers,
	}, nil
}

func (e *engines) assembler(v narrative.Variant) (narrative.Assembler, error) {
	for _, a := range e.assemblers {
		if a.Variant() == v {
			return a, nil
		}
	}
	return nil, fmt.Errorf("unknown narrative variant %q", v)
}

// narrativeService wires the assemblers to persistence. tx may be nil, in
// which case mutations run without an explicit transaction.
func (e *engines) narrativeService(cfg *config.Config, repo narrative.CommunicationRepository, tx db.Transactor, logger zerolog.Logger) (*narrative.Service, error) {
	svc, err := narrative.NewService(repo, narrative.Variant(cfg.NarrativeVariant), logger, e.assemblers...)
	if err != nil {
		return nil, err
	}
	if tx != nil {
		svc = svc.WithTransactor(tx)
	}
	return svc, nil
}

func loadDictionary(path string) (*extraction.Dictionary, error) {
	if path == "" {
		return extraction.DefaultDictionary()
	}
	d, err := extraction.LoadDictionary(path)
	if err != nil {
		return nil, fmt.Errorf("clinical dictionary: %w", err)
	}
	return d, nil
}

func loadWeights(path string) (*scoring.Weights, error) {
	if path == "" {
		return scoring.DefaultWeights()
	}
	w, err := scoring.LoadWeights(path)
	if err != nil {
		return nil, fmt.Errorf("scoring weights: %w", err)
	}
	return w, nil
}

func loadPhrases(path string) (*narrative.PhraseLibrary, error) {
	if path == "" {
		return narrative.DefaultPhraseLibrary()
	}
	l, err := narrative.LoadPhraseLibrary(path)
	if err != nil {
		return nil, fmt.Errorf("phrase library: %w", err)
	}
	return l, nil
}
