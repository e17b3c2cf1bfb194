package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/uwdesk/decisioncore/internal/domain/narrative"
	"github.com/uwdesk/decisioncore/internal/domain/scoring"
)

// The commands in this file run the engines locally against JSON or text
// files. They need no database. A path of "-" reads stdin.

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract clinical entities from a text file",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			dictPath, _ := cmd.Flags().GetString("dictionary")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			eng, err := loadEngines(cfg, dictPath)
			if err != nil {
				return err
			}

			text, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			if strings.TrimSpace(string(text)) == "" {
				return fmt.Errorf("input text is empty")
			}
			return writeJSON(cmd.OutOrStdout(), eng.extractor.Extract(string(text), nil))
		},
	}
	cmd.Flags().String("file", "-", "Clinical text file")
	cmd.Flags().String("dictionary", "", "Clinical dictionary YAML (defaults to CLINICAL_DICTIONARY_PATH, then the embedded dictionary)")
	return cmd
}

func scoreCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a case snapshot",
	}

	complexity := &cobra.Command{
		Use:   "complexity",
		Short: "Assess case complexity",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, snap, err := loadCase(cmd)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), eng.scorer.AssessComplexity(snap))
		},
	}
	complexity.Flags().String("case", "-", "Case snapshot JSON file")
	cmd.AddCommand(complexity)

	yield := &cobra.Command{
		Use:   "yield",
		Short: "Predict the yield of one or more tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			tests, _ := cmd.Flags().GetStringSlice("test")
			if len(tests) == 0 {
				return fmt.Errorf("at least one --test is required")
			}
			eng, snap, err := loadCase(cmd)
			if err != nil {
				return err
			}
			out := make([]*scoring.YieldResult, 0, len(tests))
			for _, code := range tests {
				out = append(out, eng.scorer.PredictYield(code, snap))
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	yield.Flags().String("case", "-", "Case snapshot JSON file")
	yield.Flags().StringSlice("test", nil, "Test code, repeatable")
	cmd.AddCommand(yield)

	return cmd
}

func loadCase(cmd *cobra.Command) (*engines, *scoring.CaseSnapshot, error) {
	file, _ := cmd.Flags().GetString("case")
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	eng, err := loadEngines(cfg, "")
	if err != nil {
		return nil, nil, err
	}
	var snap scoring.CaseSnapshot
	if err := readJSON(cmd, file, &snap); err != nil {
		return nil, nil, err
	}
	if err := snap.Validate(); err != nil {
		return nil, nil, err
	}
	return eng, &snap, nil
}

func assembleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assemble",
		Short: "Assemble a draft communication without storing it",
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("request")
			variant, _ := cmd.Flags().GetString("variant")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if variant == "" {
				variant = cfg.NarrativeVariant
			}
			eng, err := loadEngines(cfg, "")
			if err != nil {
				return err
			}
			a, err := eng.assembler(narrative.Variant(variant))
			if err != nil {
				return err
			}

			var req narrative.AssemblyRequest
			if err := readJSON(cmd, file, &req); err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), a.Assemble(&req))
		},
	}
	cmd.Flags().String("request", "-", "Assembly request JSON file")
	cmd.Flags().String("variant", "", "template or phrase_block (defaults to NARRATIVE_VARIANT)")
	return cmd
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

func readJSON(cmd *cobra.Command, path string, v interface{}) error {
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
