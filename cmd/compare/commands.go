package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"gocompare/app"
	"gocompare/domain/analysis"
	"gocompare/internal/testkit"
)

func newRunCmd(opts *options) *cobra.Command {
	var in inputFlags
	var out string
	var quiet bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a comparison batch",
		Long: `Run every comparison the mode derives from the contract and write the
batch result as JSON.

Example: compare run -c contract.yaml -d trial.csv -m longitudinal -o result.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, svc, cleanup, err := prepare(cmd, opts, &in)
			if err != nil {
				return err
			}
			defer cleanup()

			if !quiet {
				req.Progress = func(completed, total int, target string) {
					fmt.Fprintf(cmd.ErrOrStderr(), "\r[%d/%d] %-40s", completed, total, target)
					if completed == total {
						fmt.Fprintln(cmd.ErrOrStderr())
					}
				}
			}
			result, err := svc.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), out, result); err != nil {
				return err
			}
			if !quiet {
				printSummary(cmd.ErrOrStderr(), result)
			}
			return nil
		},
	}
	in.register(cmd)
	cmd.Flags().StringVarP(&out, "output", "o", "", "Write the result to this file instead of stdout")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress and summary output")
	return cmd
}

func newPlanCmd(opts *options) *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the execution strategy and task matrix without running tests",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, svc, cleanup, err := prepare(cmd, opts, &in)
			if err != nil {
				return err
			}
			defer cleanup()

			report, err := svc.Plan(cmd.Context(), req)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), report)
			return nil
		},
	}
	in.register(cmd)
	return cmd
}

func newValidateCmd(opts *options) *cobra.Command {
	var in inputFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a contract against a dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, svc, cleanup, err := prepare(cmd, opts, &in)
			if err != nil {
				return err
			}
			defer cleanup()

			if err := svc.Validate(req); err != nil {
				return err
			}
			tasks, err := app.BuildTasks(req.Contract, req.Mode)
			if err != nil {
				return err
			}
			okColor.Fprintf(cmd.OutOrStdout(), "contract OK: %d variable(s), %d task(s) in mode %s\n",
				len(req.Contract.Variables), len(tasks), req.Mode)
			return nil
		},
	}
	in.register(cmd)
	return cmd
}

func newGenerateCmd() *cobra.Command {
	cfg := testkit.DefaultTrialConfig()
	var contractOut string

	cmd := &cobra.Command{
		Use:   "generate [data-file]",
		Short: "Generate a synthetic longitudinal trial dataset (CSV or XLSX)",
		Long: `Generate a seeded two-arm trial with repeated measurements, a site
subgroup and categorical outcomes, together with its contract.

Example: compare generate trial.xlsx --subjects 50 --contract-out contract.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gen := testkit.NewTrialGenerator(cfg)
			if err := gen.Export(args[0]); err != nil {
				return err
			}
			if contractOut == "" {
				ext := filepath.Ext(args[0])
				contractOut = args[0][:len(args[0])-len(ext)] + ".contract.yaml"
			}
			body, err := yaml.Marshal(gen.Contract())
			if err != nil {
				return fmt.Errorf("encode contract: %w", err)
			}
			if err := os.WriteFile(contractOut, body, 0o644); err != nil {
				return fmt.Errorf("write contract: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s and %s\n", args[0], contractOut)
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.SubjectsPerArm, "subjects", cfg.SubjectsPerArm, "Subjects per arm")
	cmd.Flags().Float64Var(&cfg.Decline, "decline", cfg.Decline, "Per-visit decline of the treated arm")
	cmd.Flags().Float64Var(&cfg.MissingRate, "missing-rate", cfg.MissingRate, "Probability that a follow-up measurement is missing")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	cmd.Flags().StringVar(&contractOut, "contract-out", "", "Contract file (default: <data-file>.contract.yaml)")
	return cmd
}

// prepare loads configuration, contract and data source shared by run, plan
// and validate.
func prepare(cmd *cobra.Command, opts *options, in *inputFlags) (app.BatchRequest, *app.BatchService, func(), error) {
	noop := func() {}
	cfg, logger, err := opts.load()
	if err != nil {
		return app.BatchRequest{}, nil, noop, err
	}
	if cmd.Flags().Changed("stratify") {
		cfg.Analysis.Stratify = in.stratify
	}
	mode, err := analysis.ParseMode(in.mode)
	if err != nil {
		return app.BatchRequest{}, nil, noop, err
	}
	contract, err := in.loadContract(logger)
	if err != nil {
		return app.BatchRequest{}, nil, noop, err
	}
	source, cleanup, err := in.openSource(cmd.Context(), cfg, contract)
	if err != nil {
		return app.BatchRequest{}, nil, noop, err
	}
	req := app.BatchRequest{Contract: contract, Mode: mode, Source: source}
	return req, app.NewBatchService(cfg, logger), cleanup, nil
}

func writeJSON(stdout io.Writer, path string, v interface{}) error {
	w := stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
