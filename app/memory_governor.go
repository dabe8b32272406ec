package app

import (
	"context"
	"math/rand"
	"sort"
	"strconv"

	"gocompare/domain/analysis"
	"gocompare/domain/core"
	"gocompare/domain/variable"
	"gocompare/internal"
	"gocompare/internal/config"
	"gocompare/ports"
)

// ExecutionPlan is the MemoryGovernor's decision for one batch.
type ExecutionPlan struct {
	Execution analysis.Execution
	// Filter is applied to every column load of the batch. It restricts
	// sampled batches to the sampled subjects.
	Filter []ports.Predicate
	// Subjects lists the sampled subject IDs, sorted. It is empty when rows
	// were sampled by position.
	Subjects []string
}

// Preload reports whether columns are loaded up front into a shared cache.
func (p *ExecutionPlan) Preload() bool {
	return p.Execution.Strategy != analysis.StrategyChunked
}

// MemoryGovernor sizes a batch and picks its execution strategy.
type MemoryGovernor struct {
	cfg     config.MemoryConfig
	workers int
	logger  *internal.Logger
}

// NewMemoryGovernor creates a governor with the given limits.
func NewMemoryGovernor(cfg config.MemoryConfig, workers int, logger *internal.Logger) *MemoryGovernor {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &MemoryGovernor{cfg: cfg, workers: workers, logger: logger.WithComponent("MemoryGovernor")}
}

// Plan estimates rows × distinct subjects × outcomes and chooses full,
// chunked or sampled execution.
func (g *MemoryGovernor) Plan(ctx context.Context, acc ports.DataAccessor, contract variable.DatasetContract, outcomes int) (*ExecutionPlan, error) {
	rows, err := acc.RowCount(ctx)
	if err != nil {
		return nil, err
	}

	id, hasID := contract.SubjectID()
	var subjects []string
	nSubjects := rows
	if hasID {
		col, err := acc.Column(ctx, id.Name, ports.NotMissing(id.Name))
		if err != nil {
			return nil, err
		}
		subjects = distinctSorted(col)
		sort.Strings(subjects)
		nSubjects = len(subjects)
	}

	estimate := float64(rows) * float64(nSubjects) * float64(outcomes)
	plan := &ExecutionPlan{Execution: analysis.Execution{
		Estimate:       estimate,
		Rows:           rows,
		Subjects:       nSubjects,
		SampleFraction: 1,
		Seed:           g.cfg.Seed,
		Workers:        g.workers,
	}}

	switch {
	case estimate <= g.cfg.FullLimit:
		plan.Execution.Strategy = analysis.StrategyFull
	case estimate <= g.cfg.ChunkLimit:
		plan.Execution.Strategy = analysis.StrategyChunked
		plan.Execution.Workers = 1
	default:
		if err := g.sample(ctx, acc, id.Name, hasID, subjects, outcomes, plan); err != nil {
			return nil, err
		}
	}

	e := plan.Execution
	if e.Sampled {
		g.logger.Warn("estimate %.0f exceeds chunk limit %.0f: sampling %d of %d subjects (fraction %.4f, seed %d)",
			e.Estimate, g.cfg.ChunkLimit, e.SampledSubjects, e.Subjects, e.SampleFraction, e.Seed)
	} else {
		g.logger.Info("strategy %s: estimate %.0f (%d rows, %d subjects, %d outcomes), %d worker(s)",
			e.Strategy, e.Estimate, e.Rows, e.Subjects, outcomes, e.Workers)
	}
	return plan, nil
}

// sample keeps a seeded random subset of subjects. The candidates are sorted
// before shuffling so the subset depends only on the subject set and seed.
// Without a subject id every row is its own subject and rows are sampled by
// position.
func (g *MemoryGovernor) sample(ctx context.Context, acc ports.DataAccessor, idColumn string, hasID bool, subjects []string, outcomes int, plan *ExecutionPlan) error {
	if !hasID {
		subjects = make([]string, plan.Execution.Rows)
		for i := range subjects {
			subjects[i] = strconv.Itoa(i + 1)
		}
	}

	keep := SampleSubjects(subjects, g.cfg.MaxSampledSubjects, g.cfg.Seed)
	var filter []ports.Predicate
	if hasID {
		filter = []ports.Predicate{ports.In(idColumn, keep)}
	} else {
		positions := make([]int, len(keep))
		for i, k := range keep {
			positions[i], _ = strconv.Atoi(k)
		}
		sort.Ints(positions)
		filter = []ports.Predicate{ports.Rows(positions)}
	}
	rows, err := acc.RowCount(ctx, filter...)
	if err != nil {
		return err
	}
	post := float64(rows) * float64(len(keep)) * float64(outcomes)
	if post > g.cfg.SampledCeiling {
		return core.NewMemoryExceededError(post, g.cfg.SampledCeiling)
	}

	plan.Execution.Strategy = analysis.StrategySampled
	plan.Execution.Sampled = true
	plan.Execution.SampledSubjects = len(keep)
	if len(subjects) > 0 {
		plan.Execution.SampleFraction = float64(len(keep)) / float64(len(subjects))
	}
	plan.Filter = filter
	if hasID {
		plan.Subjects = keep
	}
	return nil
}

// SampleSubjects shuffles a sorted copy of ids with the seed and keeps the
// first max, returned sorted.
func SampleSubjects(ids []string, max int, seed int64) []string {
	subjects := make([]string, len(ids))
	copy(subjects, ids)
	sort.Strings(subjects)

	rng := rand.New(rand.NewSource(seed))
	rng.Shuffle(len(subjects), func(i, j int) {
		subjects[i], subjects[j] = subjects[j], subjects[i]
	})

	if max > 0 && max < len(subjects) {
		subjects = subjects[:max]
	}
	sort.Strings(subjects)
	return subjects
}
