package app

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"gocompare/adapters/memory"
	"gocompare/adapters/stats/correction"
	"gocompare/adapters/stats/selector"
	"gocompare/adapters/stats/tests"
	"gocompare/domain/analysis"
	"gocompare/domain/core"
	"gocompare/domain/variable"
	"gocompare/internal"
	"gocompare/internal/config"
	"gocompare/ports"
)

// BatchRequest is one batch invocation.
type BatchRequest struct {
	Contract variable.DatasetContract
	Mode     analysis.Mode
	Source   ports.DataAccessor
	Progress ports.ProgressFunc
}

// PlanReport is what a batch would do, without running any test.
type PlanReport struct {
	Mode      analysis.Mode      `json:"mode"`
	Execution analysis.Execution `json:"execution"`
	Tasks     []analysis.Task    `json:"tasks"`
}

// BatchService orchestrates batches: validation, planning, task generation,
// pooled execution and correction.
type BatchService struct {
	cfg       *config.Config
	logger    *internal.Logger
	selector  *selector.Selector
	runner    *tests.Runner
	corrector *correction.Corrector
	governor  *MemoryGovernor
}

// NewBatchService creates a batch service
func NewBatchService(cfg *config.Config, logger *internal.Logger) *BatchService {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &BatchService{
		cfg:    cfg,
		logger: logger.WithComponent("BatchService"),
		selector: selector.New(selector.Config{
			NormalityAlpha:         cfg.Analysis.NormalityAlpha,
			VarianceAlpha:          cfg.Analysis.VarianceAlpha,
			RandomSlopeMinSubjects: cfg.Analysis.RandomSlopeMinSubjects,
		}),
		runner:    tests.NewRunner(cfg.Analysis.MixedMaxIterations),
		corrector: correction.NewCorrector(),
		governor:  NewMemoryGovernor(cfg.Memory, cfg.Execution.Workers, logger),
	}
}

// columnLister is implemented by accessors that know their header.
type columnLister interface {
	Columns() []string
}

// Validate checks the contract, the mode and, when the source exposes its
// header, that every declared variable exists. Failures are InvalidDesign.
func (s *BatchService) Validate(req BatchRequest) error {
	if req.Source == nil {
		return core.NewInvalidDesignError("no data source")
	}
	if err := req.Contract.Validate(); err != nil {
		return err
	}
	if _, err := analysis.ParseMode(string(req.Mode)); err != nil {
		return err
	}
	if lister, ok := req.Source.(columnLister); ok {
		have := make(map[string]bool)
		for _, c := range lister.Columns() {
			have[c] = true
		}
		var missing []string
		for _, v := range req.Contract.Variables {
			if v.Role != variable.RoleExclude && !have[v.Name] {
				missing = append(missing, v.Name)
			}
		}
		if len(missing) > 0 {
			return core.NewInvalidDesignError("variables not in dataset: %s", strings.Join(missing, ", "))
		}
	}
	return nil
}

// plan runs every batch-fatal step: validation, sizing and task generation.
func (s *BatchService) plan(ctx context.Context, req BatchRequest) (*ExecutionPlan, ports.DataAccessor, []analysis.Task, error) {
	if err := s.Validate(req); err != nil {
		return nil, nil, nil, err
	}
	base, err := BuildTasks(req.Contract, req.Mode)
	if err != nil {
		return nil, nil, nil, err
	}
	plan, err := s.governor.Plan(ctx, req.Source, req.Contract, len(TaskColumns(base)))
	if err != nil {
		return nil, nil, nil, err
	}

	acc := req.Source
	tasks := base
	if s.cfg.Analysis.Stratify {
		if tasks, err = Stratify(ctx, acc, req.Contract, tasks, plan.Filter); err != nil {
			return nil, nil, nil, err
		}
	}
	if tasks, err = AssignIDs(tasks); err != nil {
		return nil, nil, nil, err
	}

	if plan.Preload() {
		cache := memory.NewCache(req.Source)
		if err := cache.Prewarm(ctx, batchColumns(req.Contract, tasks), plan.Filter...); err != nil {
			return nil, nil, nil, err
		}
		acc = cache
	}
	return plan, acc, tasks, nil
}

// Plan reports the execution plan and task matrix without running tests.
func (s *BatchService) Plan(ctx context.Context, req BatchRequest) (*PlanReport, error) {
	plan, _, tasks, err := s.plan(ctx, req)
	if err != nil {
		return nil, err
	}
	return &PlanReport{Mode: req.Mode, Execution: plan.Execution, Tasks: tasks}, nil
}

// Run executes the batch. Batch-fatal errors (InvalidDesign, MemoryExceeded)
// return no result; task failures are recorded and never abort the batch.
func (s *BatchService) Run(ctx context.Context, req BatchRequest) (*analysis.BatchResult, error) {
	plan, acc, tasks, err := s.plan(ctx, req)
	if err != nil {
		if core.IsBatchFatal(err) {
			s.logger.Warn("batch rejected: %v", err)
		} else {
			s.logger.Error("batch failed before dispatch: %v", err)
		}
		return nil, err
	}
	s.logger.Info("running %d task(s) in mode %s", len(tasks), req.Mode)

	sl := newSlicer(acc, req.Contract, plan.Filter)
	exec := NewConcurrentExecutor(plan.Execution.Workers, s.cfg.Execution.MixedWeight, s.cfg.Execution.TaskTimeout, s.logger)
	outcomes := exec.Execute(ctx, tasks, func(ctx context.Context, t analysis.Task) analysis.Outcome {
		return s.runTask(ctx, sl, t)
	}, req.Progress)

	result, err := s.aggregate(req.Mode, plan, outcomes)
	if err != nil {
		return nil, err
	}
	sum := result.Summary
	s.logger.Info("run %s: %d/%d succeeded, %d significant (raw), %d significant (%s), fingerprint %s",
		result.RunID, sum.Succeeded, sum.Total, sum.SignificantRaw, sum.SignificantAdjusted, result.Correction, result.Fingerprint.Short())
	return result, nil
}

// runTask takes one task from data slice to outcome.
func (s *BatchService) runTask(ctx context.Context, sl *slicer, t analysis.Task) analysis.Outcome {
	data, err := sl.Load(ctx, t)
	if err != nil {
		return analysis.Failed(t, analysis.Decision{}, nil, err)
	}
	decision, err := s.selector.Select(data.Profile)
	if err != nil {
		return analysis.Failed(t, decision, data.Descriptives, err)
	}
	if decision.Method == analysis.MethodMixedModel && constantResponse(data.Input.Long) {
		return analysis.Failed(t, decision, data.Descriptives, core.NewInsufficientDataError("outcome is constant"))
	}
	res, err := s.runner.Run(ctx, decision, data.Input)
	if err != nil {
		return analysis.Failed(t, decision, data.Descriptives, err)
	}
	s.logger.Trace("%s: %s", t.Label(), tests.String(res))
	return analysis.Succeeded(t, decision, data.Descriptives, &res)
}

// aggregate is the post-barrier step: correction over successful tasks,
// records in task order, summary, identity and fingerprint.
func (s *BatchService) aggregate(mode analysis.Mode, plan *ExecutionPlan, outcomes []analysis.Outcome) (*analysis.BatchResult, error) {
	alpha := s.cfg.Analysis.Alpha

	var keys []string
	var raw []float64
	for _, o := range outcomes {
		if o.OK() {
			keys = append(keys, o.Task.ID.String())
			raw = append(raw, o.Result.PValue)
		}
	}
	adjusted := s.corrector.Adjust(keys, raw)

	result := &analysis.BatchResult{
		Mode:       mode,
		Alpha:      alpha,
		Correction: s.corrector.Method(),
		Records:    make([]analysis.Record, 0, len(outcomes)),
		Execution:  plan.Execution,
		Summary: analysis.Summary{
			Total:          len(outcomes),
			FailuresByKind: make(map[core.ErrorKind]int),
			MethodCounts:   make(map[analysis.Method]int),
		},
	}

	taskKeys := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		taskKeys = append(taskKeys, o.Task.Key())
		rec := analysis.Record{
			Task:         o.Task,
			Decision:     o.Decision,
			Descriptives: o.Descriptives,
		}
		if o.OK() {
			rec.Status = analysis.StatusSucceeded
			rec.Result = o.Result
			rec.RawP = analysis.Float64(o.Result.PValue)
			adj := adjusted[o.Task.ID.String()]
			rec.AdjustedP = analysis.Float64(adj)
			rec.Significant = o.Result.PValue < alpha
			rec.AdjustedSignificant = adj < alpha

			result.Summary.Succeeded++
			result.Summary.MethodCounts[o.Decision.Method]++
			if rec.Significant {
				result.Summary.SignificantRaw++
			}
			if rec.AdjustedSignificant {
				result.Summary.SignificantAdjusted++
			}
		} else {
			err := o.Err
			if err == nil {
				err = core.NewInsufficientDataError("task produced no result")
			}
			kind := core.KindOf(err)
			rec.Status = analysis.StatusFailed
			rec.Error = &analysis.TaskError{Kind: kind, Message: err.Error()}
			result.Summary.Failed++
			result.Summary.FailuresByKind[kind]++
		}
		result.Records = append(result.Records, rec)
	}

	e := plan.Execution
	result.RunID = core.RunID(core.DeriveID("run", string(mode), strings.Join(taskKeys, "\x1e"),
		string(e.Strategy), strconv.FormatInt(e.Seed, 10), strconv.Itoa(e.SampledSubjects)))

	fp, err := core.HashJSON(struct {
		Records   []analysis.Record  `json:"records"`
		Execution analysis.Execution `json:"execution"`
	}{result.Records, result.Execution})
	if err != nil {
		return nil, err
	}
	result.Fingerprint = fp
	return result, nil
}

// batchColumns lists the columns preloaded for a batch: outcomes, group,
// subject id and covariates.
func batchColumns(contract variable.DatasetContract, tasks []analysis.Task) []string {
	set := make(map[string]bool)
	for _, c := range TaskColumns(tasks) {
		set[c] = true
	}
	for _, t := range tasks {
		if t.Group != "" {
			set[t.Group] = true
		}
		for _, c := range t.Covariates {
			set[c] = true
		}
	}
	if id, ok := contract.SubjectID(); ok {
		set[id.Name] = true
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
