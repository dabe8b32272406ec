package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"gocompare/adapters/excel"
	"gocompare/adapters/roles"
	"gocompare/adapters/sqlstore"
	"gocompare/domain/variable"
	"gocompare/internal"
	"gocompare/internal/config"
	"gocompare/ports"
)

// inputFlags locate the contract and dataset of a batch.
type inputFlags struct {
	contract      string
	suggestions   string
	suggestPath   string
	minConfidence float64
	data          string
	sheet         string
	table         string
	orderBy       string
	mode          string
	stratify      bool
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.contract, "contract", "c", "", "Variable contract file (YAML or JSON)")
	cmd.Flags().StringVar(&f.suggestions, "suggestions", "", "Role suggestion document (JSON) merged into the contract")
	cmd.Flags().StringVar(&f.suggestPath, "suggestion-path", "", "Path of the variable array inside the suggestion document")
	cmd.Flags().Float64Var(&f.minConfidence, "min-confidence", 0.5, "Minimum confidence of accepted suggestions")
	cmd.Flags().StringVarP(&f.data, "data", "d", "", "CSV or XLSX data file")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "XLSX sheet name (default: first sheet)")
	cmd.Flags().StringVar(&f.table, "table", "", "SQL table to read instead of a file (uses the configured database)")
	cmd.Flags().StringVar(&f.orderBy, "order-by", "", "Unique column ordering SQL rows (default: the contract's id variable)")
	cmd.Flags().StringVarP(&f.mode, "mode", "m", "all-outcomes-vs-group", "Batch mode: all-outcomes-vs-group, timepoint-matrix, pairwise-timepoints, longitudinal")
	cmd.Flags().BoolVar(&f.stratify, "stratify", false, "Repeat group comparisons within each subgroup level")
	_ = cmd.MarkFlagRequired("contract")
}

// readContract parses a contract file. YAML is a superset of JSON, so both
// formats go through the same decoder.
func readContract(path string) (variable.DatasetContract, error) {
	var contract variable.DatasetContract
	body, err := os.ReadFile(path)
	if err != nil {
		return contract, fmt.Errorf("read contract: %w", err)
	}
	if err := yaml.Unmarshal(body, &contract); err != nil {
		return contract, fmt.Errorf("parse contract %s: %w", path, err)
	}
	return contract, nil
}

func (f *inputFlags) loadContract(logger *internal.Logger) (variable.DatasetContract, error) {
	contract, err := readContract(f.contract)
	if err != nil {
		return contract, err
	}
	if f.suggestions == "" {
		return contract, nil
	}
	body, err := os.ReadFile(f.suggestions)
	if err != nil {
		return contract, fmt.Errorf("read suggestions: %w", err)
	}
	doc, err := roles.Parse(body, f.suggestPath)
	if err != nil {
		return contract, err
	}
	merged, report, err := roles.Merge(contract, doc, f.minConfidence)
	if err != nil {
		return contract, err
	}
	logger.Info("suggestions merged: %d added, %d filled, %d skipped", len(report.Added), len(report.Filled), len(report.Skipped))
	return merged, nil
}

// openSource returns the dataset accessor and a cleanup func.
func (f *inputFlags) openSource(ctx context.Context, cfg *config.Config, contract variable.DatasetContract) (ports.DataAccessor, func(), error) {
	noop := func() {}
	table := f.table
	if table == "" && f.data == "" {
		table = cfg.Database.Table
	}
	switch {
	case f.data != "":
		reader := excel.NewDataReader(f.data)
		if f.sheet != "" {
			reader = reader.WithSheet(f.sheet)
		}
		frame, err := reader.ReadFrame()
		if err != nil {
			return nil, noop, err
		}
		return frame, noop, nil
	case table != "":
		if cfg.Database.URL == "" {
			return nil, noop, fmt.Errorf("table %s requested but DATABASE_URL is not set", table)
		}
		orderBy := f.orderBy
		if orderBy == "" {
			id, ok := contract.SubjectID()
			if !ok {
				return nil, noop, fmt.Errorf("--order-by is required when the contract has no id variable")
			}
			orderBy = id.Name
		}
		db, err := sqlx.Open(cfg.Database.Driver, cfg.Database.URL)
		if err != nil {
			return nil, noop, fmt.Errorf("open database: %w", err)
		}
		acc, err := sqlstore.NewAccessor(ctx, db, table, orderBy)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		return acc, func() { db.Close() }, nil
	}
	return nil, noop, fmt.Errorf("one of --data or --table is required")
}
